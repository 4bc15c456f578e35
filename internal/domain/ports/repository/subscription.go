package repository

import (
	"context"
	"time"

	"github.com/jabinweb/sciocare-sub001/internal/domain/model"
)

type SubscriptionRepository interface {
	// Save inserts the subscription. Returns domain.ErrAlreadyExists when an
	// ACTIVE row for the same (user, class|subject) scope already exists
	// (partial unique index), so callers can fall back to the existing row.
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	// FindActiveClass returns the ACTIVE class-scoped row (subject IS NULL)
	// for the user with end_date >= now, or domain.ErrNotFound.
	FindActiveClass(ctx context.Context, tx Tx, userID string, classID int64) (*model.Subscription, error)
	// FindActiveSubjects returns ACTIVE subject-scoped rows for any of the ids.
	FindActiveSubjects(ctx context.Context, tx Tx, userID string, subjectIDs []int64) ([]*model.Subscription, error)
	DeleteActiveSubjects(ctx context.Context, tx Tx, userID string, subjectIDs []int64) (int64, error)
	// UpdateTerm rewrites end date and amount in place (manual reprocessing).
	UpdateTerm(ctx context.Context, tx Tx, id string, endDate time.Time, amount int64) error
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Subscription, error)
	// ExpireOverdue flips ACTIVE rows whose end_date has passed to EXPIRED and
	// returns how many were updated.
	ExpireOverdue(ctx context.Context, tx Tx, now time.Time) (int64, error)
}
