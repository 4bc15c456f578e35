package model

import "time"

type ErrorLevel string

const (
	ErrorLevelWarn     ErrorLevel = "WARN"
	ErrorLevelError    ErrorLevel = "ERROR"
	ErrorLevelCritical ErrorLevel = "CRITICAL"
)

// ErrorLog is an append-only diagnostic record. Business logic never reads it;
// it feeds the admin log viewer and critical-alert routing only.
type ErrorLog struct {
	ID        string // ULID, sortable by time
	Level     ErrorLevel
	Source    string // component that emitted the entry
	Message   string
	Details   map[string]interface{}
	UserID    *string
	PaymentID *string
	Stack     string
	CreatedAt time.Time
}
