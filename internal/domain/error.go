package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")

	// Payment verification errors
	ErrPaymentNotFound      = errors.New("payment record not found")
	ErrInvalidSignature     = errors.New("invalid payment signature")
	ErrPaymentNotCompleted  = errors.New("payment not completed")
	ErrGatewayNotConfigured = errors.New("payment gateway not configured")
	ErrCircuitOpen          = errors.New("gateway circuit breaker is open")
	ErrLockNotAcquired      = errors.New("could not acquire processing lock")

	// Provisioning errors
	ErrInvalidSubscriptionType = errors.New("invalid subscription type")
	ErrNoSubjectIDs            = errors.New("no subject ids to provision")
)

// nonRetriable wraps an error to mark it as a permanent failure.
type nonRetriable struct{ err error }

func (e *nonRetriable) Error() string { return e.err.Error() }
func (e *nonRetriable) Unwrap() error { return e.err }

// NonRetriable tags err as permanent so the retry executor fails fast on it.
func NonRetriable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetriable{err: err}
}

// permanent lists sentinel errors that are never worth retrying: they signal
// a bad request or a terminal gateway decision, not a transient fault.
var permanent = []error{
	ErrNotFound,
	ErrInvalidArgument,
	ErrPaymentNotFound,
	ErrInvalidSignature,
	ErrPaymentNotCompleted,
	ErrGatewayNotConfigured,
	ErrInvalidSubscriptionType,
	ErrNoSubjectIDs,
}

// IsNonRetriable reports whether err (or anything it wraps) is classified
// permanent, either by an explicit NonRetriable tag or by sentinel identity.
func IsNonRetriable(err error) bool {
	if err == nil {
		return false
	}
	var nr *nonRetriable
	if errors.As(err, &nr) {
		return true
	}
	for _, p := range permanent {
		if errors.Is(err, p) {
			return true
		}
	}
	return false
}
