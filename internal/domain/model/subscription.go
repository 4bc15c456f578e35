package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusActive         SubscriptionStatus = "ACTIVE"
	SubscriptionStatusExpired        SubscriptionStatus = "EXPIRED"
	SubscriptionStatusCancelled      SubscriptionStatus = "CANCELLED"
	SubscriptionStatusGracePeriod    SubscriptionStatus = "GRACE_PERIOD"
	SubscriptionStatusPendingRenewal SubscriptionStatus = "PENDING_RENEWAL"
)

// Subscription is a granted entitlement. Exactly one of ClassID/SubjectID is
// set: a class-scoped row has SubjectID nil, a subject-scoped row has ClassID
// nil. At most one ACTIVE row may exist per (user, class|subject) pair; the
// storage layer enforces this with a partial unique index.
type Subscription struct {
	ID        string // UUID
	UserID    string
	ClassID   *int64
	SubjectID *int64
	Status    SubscriptionStatus
	PlanType  string // class_subscription | subject_subscription
	Amount    int64  // minor units attributed to this row
	Currency  string
	StartDate time.Time
	EndDate   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ActiveAt reports whether the subscription grants access at t.
func (s *Subscription) ActiveAt(t time.Time) bool {
	return s.Status == SubscriptionStatusActive && !t.After(s.EndDate)
}

// AcademicYearEnd returns the subscription expiry for a purchase made at now:
// the next occurrence of March 31, end of day. A purchase on March 31 itself
// still expires that same day.
func AcademicYearEnd(now time.Time) time.Time {
	year := now.Year()
	cutoff := time.Date(year, time.March, 31, 23, 59, 59, 0, now.Location())
	if now.After(cutoff) {
		cutoff = time.Date(year+1, time.March, 31, 23, 59, 59, 0, now.Location())
	}
	return cutoff
}
