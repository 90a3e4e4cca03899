package approaches

import (
	"errors"
	"fmt"
)

// ErrVersionConflict indicates the collection row changed underneath the
// caller between load and save. The request is not retried here.
var ErrVersionConflict = errors.New("approaches: collection version conflict")

// QuotaKind distinguishes which per-question limit a mutation tripped.
type QuotaKind string

const (
	// QuotaKindSlots means the question already holds the maximum number of approaches.
	QuotaKindSlots QuotaKind = "slot_limit"
	// QuotaKindSize means the combined content size budget would be exceeded.
	QuotaKindSize QuotaKind = "size_limit"
)

// NotFoundError reports a missing question, collection, or approach.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("approaches: %s not found: %s", e.Resource, e.ID)
}

// QuotaExceededError carries enough structured detail for a caller to render
// an actionable rejection message without re-deriving the numbers.
type QuotaExceededError struct {
	Kind           QuotaKind
	QuestionID     string
	LimitBytes     int
	RemainingBytes int
	AttemptedBytes int
	MaxSlots       int
	UsedSlots      int
}

func (e *QuotaExceededError) Error() string {
	if e.Kind == QuotaKindSlots {
		return fmt.Sprintf("approaches: maximum %d approaches allowed per question, %d already used", e.MaxSlots, e.UsedSlots)
	}
	return fmt.Sprintf("approaches: combined size limit exceeded: %.2f KB remaining for question %s, attempted %.2f KB (limit %d bytes)",
		e.RemainingKB(), e.QuestionID, e.AttemptedKB(), e.LimitBytes)
}

// RemainingKB reports the remaining capacity in KiB.
func (e *QuotaExceededError) RemainingKB() float64 {
	return float64(e.RemainingBytes) / 1024.0
}

// AttemptedKB reports the rejected payload size in KiB.
func (e *QuotaExceededError) AttemptedKB() float64 {
	return float64(e.AttemptedBytes) / 1024.0
}
