package model

import (
	"fmt"

	"github.com/jabinweb/sciocare-sub001/internal/domain"
)

const (
	ProvisionTypeClass   = "class_subscription"
	ProvisionTypeSubject = "subject_subscription"
)

// ProvisionSpec is the parsed form of Payment.Metadata: what entitlement to
// grant once the payment is verified.
type ProvisionSpec struct {
	Type       string
	UserID     string
	UserEmail  string // optional; used for welcome/receipt mail
	ClassID    *int64
	SubjectID  *int64
	SubjectIDs []int64
}

// TargetSubjects resolves the subject id list for a subject_subscription:
// the explicit list when present, otherwise the single SubjectID.
func (s *ProvisionSpec) TargetSubjects() []int64 {
	if len(s.SubjectIDs) > 0 {
		return s.SubjectIDs
	}
	if s.SubjectID != nil {
		return []int64{*s.SubjectID}
	}
	return nil
}

// ParseProvisionSpec validates raw payment metadata. The metadata travels as
// opaque JSONB, so all numbers arrive as float64.
func ParseProvisionSpec(meta map[string]interface{}) (*ProvisionSpec, error) {
	if len(meta) == 0 {
		return nil, fmt.Errorf("%w: empty metadata", domain.ErrInvalidSubscriptionType)
	}
	spec := &ProvisionSpec{}

	t, _ := meta["type"].(string)
	switch t {
	case ProvisionTypeClass, ProvisionTypeSubject:
		spec.Type = t
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSubscriptionType, t)
	}

	spec.UserID, _ = meta["userId"].(string)
	if spec.UserID == "" {
		return nil, fmt.Errorf("%w: metadata userId is required", domain.ErrInvalidArgument)
	}
	spec.UserEmail, _ = meta["userEmail"].(string)

	if v, ok := asInt64(meta["classId"]); ok {
		spec.ClassID = &v
	}
	if v, ok := asInt64(meta["subjectId"]); ok {
		spec.SubjectID = &v
	}
	if raw, ok := meta["subjectIds"].([]interface{}); ok {
		for _, e := range raw {
			v, ok := asInt64(e)
			if !ok {
				return nil, fmt.Errorf("%w: bad subjectIds entry %v", domain.ErrInvalidArgument, e)
			}
			spec.SubjectIDs = append(spec.SubjectIDs, v)
		}
	}

	switch spec.Type {
	case ProvisionTypeClass:
		if spec.ClassID == nil {
			return nil, fmt.Errorf("%w: classId is required", domain.ErrInvalidArgument)
		}
	case ProvisionTypeSubject:
		if len(spec.TargetSubjects()) == 0 {
			return nil, domain.ErrNoSubjectIDs
		}
	}
	return spec, nil
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}
