package usecase

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/jabinweb/sciocare-sub001/internal/domain"
	"github.com/jabinweb/sciocare-sub001/internal/domain/model"
	"github.com/jabinweb/sciocare-sub001/internal/domain/ports/repository"
	"github.com/jabinweb/sciocare-sub001/internal/infra/metrics"
)

// Compile-time check
var _ ProvisionUseCase = (*provisionUC)(nil)

// ProvisionUseCase turns a completed payment into subscription entitlements.
type ProvisionUseCase interface {
	// Provision creates or reuses subscription rows described by spec.
	// It is idempotent: reprocessing a payment that already produced its
	// entitlements returns the existing rows untouched unless force is set.
	Provision(ctx context.Context, payment *model.Payment, spec *model.ProvisionSpec, force bool) ([]*model.Subscription, error)
}

type provisionUC struct {
	subs repository.SubscriptionRepository
	tm   repository.TransactionManager
	log  *zerolog.Logger
	now  func() time.Time
}

func NewProvisionUseCase(subs repository.SubscriptionRepository, tm repository.TransactionManager, logger *zerolog.Logger) *provisionUC {
	l := logger.With().Str("component", "ProvisionUC").Logger()
	return &provisionUC{subs: subs, tm: tm, log: &l, now: time.Now}
}

func (u *provisionUC) Provision(ctx context.Context, payment *model.Payment, spec *model.ProvisionSpec, force bool) ([]*model.Subscription, error) {
	if payment == nil || spec == nil {
		return nil, domain.ErrInvalidArgument
	}
	var (
		subs []*model.Subscription
		err  error
	)
	switch spec.Type {
	case model.ProvisionTypeClass:
		subs, err = u.provisionClass(ctx, payment, spec, force)
	case model.ProvisionTypeSubject:
		subs, err = u.provisionSubjects(ctx, payment, spec, force)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSubscriptionType, spec.Type)
	}
	if err != nil {
		return nil, err
	}
	metrics.IncSubscriptionsProvisioned(spec.Type, len(subs))
	return subs, nil
}

func (u *provisionUC) provisionClass(ctx context.Context, payment *model.Payment, spec *model.ProvisionSpec, force bool) ([]*model.Subscription, error) {
	if spec.ClassID == nil {
		return nil, fmt.Errorf("%w: classId is required", domain.ErrInvalidArgument)
	}

	var out []*model.Subscription
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := lockUser(ctx, tx, spec.UserID); err != nil {
			return err
		}

		existing, err := u.subs.FindActiveClass(ctx, tx, spec.UserID, *spec.ClassID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if existing != nil {
			if !force {
				// already provisioned; duplicate notification, not a new grant
				u.log.Info().Str("subscription_id", existing.ID).Str("payment_id", payment.ID).Msg("class subscription already active")
				out = []*model.Subscription{existing}
				return nil
			}
			end := model.AcademicYearEnd(u.now())
			if err := u.subs.UpdateTerm(ctx, tx, existing.ID, end, payment.Amount); err != nil {
				return err
			}
			existing.EndDate = end
			existing.Amount = payment.Amount
			out = []*model.Subscription{existing}
			return nil
		}

		sub := u.newSubscription(payment, spec, spec.ClassID, nil, payment.Amount)
		if err := u.subs.Save(ctx, tx, sub); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				// the webhook path won the race; its row is the entitlement
				cur, ferr := u.subs.FindActiveClass(ctx, tx, spec.UserID, *spec.ClassID)
				if ferr != nil {
					return err
				}
				out = []*model.Subscription{cur}
				return nil
			}
			return err
		}
		out = []*model.Subscription{sub}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *provisionUC) provisionSubjects(ctx context.Context, payment *model.Payment, spec *model.ProvisionSpec, force bool) ([]*model.Subscription, error) {
	ids := spec.TargetSubjects()
	if len(ids) == 0 {
		return nil, domain.ErrNoSubjectIDs
	}
	// The payment covers the whole target list, so each row carries an even
	// floor split of the total regardless of how many rows get created now.
	perSubject := payment.Amount / int64(len(ids))

	var out []*model.Subscription
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		out = out[:0]
		if err := lockUser(ctx, tx, spec.UserID); err != nil {
			return err
		}

		var existing []*model.Subscription
		if force {
			n, err := u.subs.DeleteActiveSubjects(ctx, tx, spec.UserID, ids)
			if err != nil {
				return err
			}
			u.log.Info().Int64("deleted", n).Str("payment_id", payment.ID).Msg("reprocessing subject subscriptions")
		} else {
			var err error
			existing, err = u.subs.FindActiveSubjects(ctx, tx, spec.UserID, ids)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
		}

		covered := make(map[int64]bool, len(existing))
		for _, s := range existing {
			if s.SubjectID != nil {
				covered[*s.SubjectID] = true
			}
			out = append(out, s)
		}

		for _, id := range ids {
			if covered[id] {
				continue
			}
			subjectID := id
			sub := u.newSubscription(payment, spec, nil, &subjectID, perSubject)
			if err := u.subs.Save(ctx, tx, sub); err != nil {
				if errors.Is(err, domain.ErrAlreadyExists) {
					dup, ferr := u.subs.FindActiveSubjects(ctx, tx, spec.UserID, []int64{id})
					if ferr != nil || len(dup) == 0 {
						return err
					}
					out = append(out, dup[0])
					continue
				}
				return err
			}
			out = append(out, sub)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *provisionUC) newSubscription(payment *model.Payment, spec *model.ProvisionSpec, classID, subjectID *int64, amount int64) *model.Subscription {
	now := u.now()
	return &model.Subscription{
		ID:        uuid.NewString(),
		UserID:    spec.UserID,
		ClassID:   classID,
		SubjectID: subjectID,
		Status:    model.SubscriptionStatusActive,
		PlanType:  spec.Type,
		Amount:    amount,
		Currency:  payment.Currency,
		StartDate: now,
		EndDate:   model.AcademicYearEnd(now),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func hashToInt64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64() & ((1 << 63) - 1))
}

// lockUser serializes provisioning per user when running on a real database
// transaction. In-memory test transactions skip the lock.
func lockUser(ctx context.Context, tx repository.Tx, userID string) error {
	t, ok := tx.(pgx.Tx)
	if !ok {
		return nil
	}
	_, err := t.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", hashToInt64(userID))
	return err
}
