//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jabinweb/sciocare-sub001/internal/domain"
	"github.com/jabinweb/sciocare-sub001/internal/domain/model"
	"github.com/jabinweb/sciocare-sub001/internal/domain/ports/repository"
	"github.com/jabinweb/sciocare-sub001/internal/usecase"
)

func i64(v int64) *int64 { return &v }

func classSpec(userID string, classID int64) *model.ProvisionSpec {
	return &model.ProvisionSpec{Type: model.ProvisionTypeClass, UserID: userID, ClassID: i64(classID)}
}

func subjectSpec(userID string, ids ...int64) *model.ProvisionSpec {
	return &model.ProvisionSpec{Type: model.ProvisionTypeSubject, UserID: userID, SubjectIDs: ids}
}

func completedPayment(amount int64) *model.Payment {
	return &model.Payment{
		ID:       "pay-1",
		UserID:   "user-1",
		Gateway:  model.GatewayRazorpay,
		Amount:   amount,
		Currency: "INR",
		Status:   model.PaymentStatusCompleted,
	}
}

func TestProvisionUseCase_Class(t *testing.T) {
	ctx := context.Background()

	t.Run("should create an active class subscription ending March 31", func(t *testing.T) {
		// --- Arrange ---
		subs := NewMockSubscriptionRepo()
		uc := usecase.NewProvisionUseCase(subs, NewMockTxManager(), testLogger())
		p := completedPayment(49900)

		// --- Act ---
		out, err := uc.Provision(ctx, p, classSpec("user-1", 7), false)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(out) != 1 {
			t.Fatalf("expected 1 subscription, got %d", len(out))
		}
		s := out[0]
		if s.Status != model.SubscriptionStatusActive {
			t.Errorf("expected ACTIVE, got %s", s.Status)
		}
		if s.ClassID == nil || *s.ClassID != 7 || s.SubjectID != nil {
			t.Error("expected class-scoped row with nil subject")
		}
		if s.Amount != 49900 {
			t.Errorf("class subscription carries full amount, got %d", s.Amount)
		}
		if s.EndDate.Month() != time.March || s.EndDate.Day() != 31 {
			t.Errorf("expected academic year end, got %s", s.EndDate)
		}
		if !s.EndDate.After(time.Now()) {
			t.Errorf("end date must be in the future, got %s", s.EndDate)
		}
	})

	t.Run("should return the existing row instead of granting twice", func(t *testing.T) {
		subs := NewMockSubscriptionRepo()
		uc := usecase.NewProvisionUseCase(subs, NewMockTxManager(), testLogger())
		p := completedPayment(49900)

		first, err := uc.Provision(ctx, p, classSpec("user-1", 7), false)
		if err != nil {
			t.Fatalf("first provision: %v", err)
		}
		second, err := uc.Provision(ctx, p, classSpec("user-1", 7), false)
		if err != nil {
			t.Fatalf("second provision: %v", err)
		}
		if len(second) != 1 || second[0].ID != first[0].ID {
			t.Fatalf("expected the original row back, got %+v", second)
		}
		if got, _ := subs.ListByUser(ctx, nil, "user-1"); len(got) != 1 {
			t.Fatalf("expected exactly 1 stored row, got %d", len(got))
		}
	})

	t.Run("should extend the term in place when forced", func(t *testing.T) {
		subs := NewMockSubscriptionRepo()
		uc := usecase.NewProvisionUseCase(subs, NewMockTxManager(), testLogger())

		first, err := uc.Provision(ctx, completedPayment(49900), classSpec("user-1", 7), false)
		if err != nil {
			t.Fatalf("first provision: %v", err)
		}
		forced, err := uc.Provision(ctx, completedPayment(59900), classSpec("user-1", 7), true)
		if err != nil {
			t.Fatalf("forced provision: %v", err)
		}
		if forced[0].ID != first[0].ID {
			t.Error("force must reuse the same row, not create a new one")
		}
		stored, err := subs.FindByID(ctx, nil, first[0].ID)
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if stored.Amount != 59900 {
			t.Errorf("expected amount rewritten to 59900, got %d", stored.Amount)
		}
	})

	t.Run("should adopt the concurrent winner's row on unique violation", func(t *testing.T) {
		subs := NewMockSubscriptionRepo()
		winner := &model.Subscription{
			UserID: "user-1", ClassID: i64(7),
			Status: model.SubscriptionStatusActive, PlanType: model.ProvisionTypeClass,
			EndDate: model.AcademicYearEnd(time.Now()),
		}
		// Simulate losing the insert race: the check misses, the insert hits
		// the unique index.
		misses := true
		subs.FindActiveClassFunc = func(ctx context.Context, tx repository.Tx, userID string, classID int64) (*model.Subscription, error) {
			if misses {
				misses = false
				return nil, domain.ErrNotFound
			}
			subs.FindActiveClassFunc = nil
			return subs.FindActiveClass(ctx, tx, userID, classID)
		}
		if err := subs.Save(ctx, nil, winner); err != nil {
			t.Fatalf("seed: %v", err)
		}
		uc := usecase.NewProvisionUseCase(subs, NewMockTxManager(), testLogger())

		out, err := uc.Provision(ctx, completedPayment(49900), classSpec("user-1", 7), false)
		if err != nil {
			t.Fatalf("expected race to resolve cleanly, got %v", err)
		}
		if len(out) != 1 || out[0].ID != winner.ID {
			t.Fatalf("expected winner's row, got %+v", out)
		}
	})

	t.Run("should reject a class spec without classId", func(t *testing.T) {
		uc := usecase.NewProvisionUseCase(NewMockSubscriptionRepo(), NewMockTxManager(), testLogger())
		spec := &model.ProvisionSpec{Type: model.ProvisionTypeClass, UserID: "user-1"}
		if _, err := uc.Provision(ctx, completedPayment(100), spec, false); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestProvisionUseCase_Subjects(t *testing.T) {
	ctx := context.Background()

	t.Run("should split the amount evenly across subject rows", func(t *testing.T) {
		// --- Arrange ---
		subs := NewMockSubscriptionRepo()
		uc := usecase.NewProvisionUseCase(subs, NewMockTxManager(), testLogger())

		// --- Act ---
		out, err := uc.Provision(ctx, completedPayment(999), subjectSpec("user-1", 11, 12), false)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(out) != 2 {
			t.Fatalf("expected 2 subscriptions, got %d", len(out))
		}
		for _, s := range out {
			if s.Amount != 499 { // floor(999/2)
				t.Errorf("expected floor split 499, got %d", s.Amount)
			}
			if s.SubjectID == nil || s.ClassID != nil {
				t.Error("expected subject-scoped rows")
			}
		}
	})

	t.Run("should only create rows for uncovered subjects", func(t *testing.T) {
		subs := NewMockSubscriptionRepo()
		uc := usecase.NewProvisionUseCase(subs, NewMockTxManager(), testLogger())

		if _, err := uc.Provision(ctx, completedPayment(500), subjectSpec("user-1", 11), false); err != nil {
			t.Fatalf("seed provision: %v", err)
		}
		out, err := uc.Provision(ctx, completedPayment(1000), subjectSpec("user-1", 11, 12), false)
		if err != nil {
			t.Fatalf("second provision: %v", err)
		}
		if len(out) != 2 {
			t.Fatalf("expected both rows reported, got %d", len(out))
		}
		stored, _ := subs.ListByUser(ctx, nil, "user-1")
		if len(stored) != 2 {
			t.Fatalf("expected 2 stored rows total, got %d", len(stored))
		}
		// the uncovered subject still carries the split of the full target list
		for _, s := range stored {
			if s.SubjectID != nil && *s.SubjectID == 12 && s.Amount != 500 {
				t.Errorf("new row should carry 1000/2=500, got %d", s.Amount)
			}
		}
	})

	t.Run("should rebuild all rows when forced", func(t *testing.T) {
		subs := NewMockSubscriptionRepo()
		uc := usecase.NewProvisionUseCase(subs, NewMockTxManager(), testLogger())

		first, err := uc.Provision(ctx, completedPayment(500), subjectSpec("user-1", 11), false)
		if err != nil {
			t.Fatalf("seed provision: %v", err)
		}
		out, err := uc.Provision(ctx, completedPayment(800), subjectSpec("user-1", 11), true)
		if err != nil {
			t.Fatalf("forced provision: %v", err)
		}
		if len(out) != 1 {
			t.Fatalf("expected 1 row, got %d", len(out))
		}
		if out[0].ID == first[0].ID {
			t.Error("force must replace the row, not reuse it")
		}
		if out[0].Amount != 800 {
			t.Errorf("expected new amount 800, got %d", out[0].Amount)
		}
	})

	t.Run("should reject an empty subject list", func(t *testing.T) {
		uc := usecase.NewProvisionUseCase(NewMockSubscriptionRepo(), NewMockTxManager(), testLogger())
		spec := &model.ProvisionSpec{Type: model.ProvisionTypeSubject, UserID: "user-1"}
		if _, err := uc.Provision(ctx, completedPayment(100), spec, false); !errors.Is(err, domain.ErrNoSubjectIDs) {
			t.Fatalf("expected ErrNoSubjectIDs, got %v", err)
		}
	})

	t.Run("should reject an unknown provisioning type", func(t *testing.T) {
		uc := usecase.NewProvisionUseCase(NewMockSubscriptionRepo(), NewMockTxManager(), testLogger())
		spec := &model.ProvisionSpec{Type: "lifetime", UserID: "user-1"}
		if _, err := uc.Provision(ctx, completedPayment(100), spec, false); !errors.Is(err, domain.ErrInvalidSubscriptionType) {
			t.Fatalf("expected ErrInvalidSubscriptionType, got %v", err)
		}
	})
}
