package marketplace

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind classifies engine failures.
type Kind string

const (
	KindInvalidTransition  Kind = "invalid_transition"
	KindNotEligible        Kind = "not_eligible"
	KindPreconditionFailed Kind = "precondition_failed"
	KindSchedulingConflict Kind = "scheduling_conflict"
	KindDuplicateBid       Kind = "duplicate_bid"
	KindFieldNotAllowed    Kind = "field_not_allowed"
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not_found"
)

// Sentinels for errors.Is checks; they match any *Error of the same kind.
var (
	ErrInvalidTransition  = &Error{Kind: KindInvalidTransition}
	ErrNotEligible        = &Error{Kind: KindNotEligible}
	ErrPreconditionFailed = &Error{Kind: KindPreconditionFailed}
	ErrSchedulingConflict = &Error{Kind: KindSchedulingConflict}
	ErrDuplicateBid       = &Error{Kind: KindDuplicateBid}
	ErrFieldNotAllowed    = &Error{Kind: KindFieldNotAllowed}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrNotFound           = &Error{Kind: KindNotFound}
)

// Conflict identifies the commitment that overlaps a candidate execution time.
type Conflict struct {
	AdvertisementID uuid.UUID `json:"advertisementId"`
	Title           string    `json:"title"`
	ExecutionTime   time.Time `json:"executionTime"`
}

// Error is returned by every engine operation that fails for a domain reason.
type Error struct {
	Kind            Kind
	Op              string
	AdvertisementID uuid.UUID
	Message         string
	// Conflict is set for KindSchedulingConflict.
	Conflict *Conflict
	// Fields is set for KindFieldNotAllowed.
	Fields []string
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.AdvertisementID != uuid.Nil {
		fmt.Fprintf(&b, " (advertisement %s)", e.AdvertisementID)
	}
	if e.Conflict != nil {
		fmt.Fprintf(&b, " conflicts with %s %q at %s",
			e.Conflict.AdvertisementID, e.Conflict.Title, e.Conflict.ExecutionTime.Format(time.RFC3339))
	}
	if len(e.Fields) > 0 {
		fmt.Fprintf(&b, " fields=%s", strings.Join(e.Fields, ","))
	}
	return b.String()
}

// Is enables errors.Is checks against the kind sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, op string, adID uuid.UUID, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, AdvertisementID: adID, Message: fmt.Sprintf(format, args...)}
}
