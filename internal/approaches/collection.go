package approaches

import (
	"sort"
	"time"
)

// Collection is the aggregate root holding all of one user's approaches,
// grouped by question. Every mutation validates the per-question quotas
// before any state becomes observable; no intermediate state ever violates
// them.
type Collection struct {
	UserID              string
	DisplayName         string
	ByQuestion          map[string][]Approach
	TotalCount          int
	LastModifiedSeconds int64

	// Version is the optimistic concurrency token carried from the loaded
	// row. Zero means the collection has not been persisted yet.
	Version int64
}

// NewCollection returns an empty collection for the given owner.
func NewCollection(userID, displayName string) *Collection {
	return &Collection{
		UserID:      userID,
		DisplayName: displayName,
		ByQuestion:  map[string][]Approach{},
	}
}

// TotalSizeForQuestion sums ContentSize across the question's approaches.
func (c *Collection) TotalSizeForQuestion(questionID string) int {
	total := 0
	for _, approach := range c.ByQuestion[questionID] {
		total += approach.ContentSize
	}
	return total
}

// CountForQuestion reports how many approaches the question holds.
func (c *Collection) CountForQuestion(questionID string) int {
	return len(c.ByQuestion[questionID])
}

// UsageForQuestion summarizes quota consumption for one question.
func (c *Collection) UsageForQuestion(questionID string) Usage {
	return newUsage(c.TotalSizeForQuestion(questionID), c.CountForQuestion(questionID))
}

// Add appends a fully-formed approach to the question's list after checking
// the slot limit and then the combined size limit. On rejection the
// collection is left byte-for-byte unchanged.
func (c *Collection) Add(questionID string, approach Approach, now time.Time) error {
	used := c.CountForQuestion(questionID)
	if used >= MaxApproachesPerQuestion {
		return &QuotaExceededError{
			Kind:       QuotaKindSlots,
			QuestionID: questionID,
			MaxSlots:   MaxApproachesPerQuestion,
			UsedSlots:  used,
		}
	}

	currentTotal := c.TotalSizeForQuestion(questionID)
	if currentTotal+approach.ContentSize > MaxCombinedBytesPerQuestion {
		return &QuotaExceededError{
			Kind:           QuotaKindSize,
			QuestionID:     questionID,
			LimitBytes:     MaxCombinedBytesPerQuestion,
			RemainingBytes: MaxCombinedBytesPerQuestion - currentTotal,
			AttemptedBytes: approach.ContentSize,
			MaxSlots:       MaxApproachesPerQuestion,
			UsedSlots:      used,
		}
	}

	if c.ByQuestion == nil {
		c.ByQuestion = map[string][]Approach{}
	}
	c.ByQuestion[questionID] = append(c.ByQuestion[questionID], approach)
	c.TotalCount++
	c.LastModifiedSeconds = now.Unix()
	return nil
}

// Update applies a partial content change to the identified approach using a
// copy-on-write candidate: the stored approach is only replaced once the
// adjusted per-question total fits the budget. The rejected path never
// touches stored content, so rollback is exact by construction.
func (c *Collection) Update(questionID, approachID string, patch ContentPatch, now time.Time) (Approach, error) {
	index := -1
	list := c.ByQuestion[questionID]
	for i := range list {
		if list[i].ID == approachID {
			index = i
			break
		}
	}
	if index < 0 {
		return Approach{}, &NotFoundError{Resource: "approach", ID: approachID}
	}

	stored := list[index]
	candidate := stored
	if patch.TextContent != nil {
		candidate.TextContent = *patch.TextContent
	}
	if patch.CodeContent != nil {
		candidate.CodeContent = *patch.CodeContent
	}
	if patch.CodeLanguage != nil {
		candidate.CodeLanguage = *patch.CodeLanguage
	}
	candidate.recomputeSize()

	currentTotal := c.TotalSizeForQuestion(questionID)
	adjustedTotal := currentTotal - stored.ContentSize + candidate.ContentSize
	if adjustedTotal > MaxCombinedBytesPerQuestion {
		return Approach{}, &QuotaExceededError{
			Kind:           QuotaKindSize,
			QuestionID:     questionID,
			LimitBytes:     MaxCombinedBytesPerQuestion,
			RemainingBytes: MaxCombinedBytesPerQuestion - (currentTotal - stored.ContentSize),
			AttemptedBytes: candidate.ContentSize,
			MaxSlots:       MaxApproachesPerQuestion,
			UsedSlots:      len(list),
		}
	}

	candidate.UpdatedAtSeconds = now.Unix()
	list[index] = candidate
	c.LastModifiedSeconds = now.Unix()
	return candidate, nil
}

// Remove deletes the identified approach. It reports whether anything was
// removed; the service layer converts a miss into a NotFoundError. Emptied
// per-question entries are deleted from the map.
func (c *Collection) Remove(questionID, approachID string, now time.Time) bool {
	list := c.ByQuestion[questionID]
	for i := range list {
		if list[i].ID != approachID {
			continue
		}
		list = append(list[:i], list[i+1:]...)
		if len(list) == 0 {
			delete(c.ByQuestion, questionID)
		} else {
			c.ByQuestion[questionID] = list
		}
		c.TotalCount--
		c.LastModifiedSeconds = now.Unix()
		return true
	}
	return false
}

// RemoveAllForQuestion drops every approach tied to the question and returns
// how many were removed.
func (c *Collection) RemoveAllForQuestion(questionID string, now time.Time) int {
	list, ok := c.ByQuestion[questionID]
	if !ok {
		return 0
	}
	delete(c.ByQuestion, questionID)
	c.TotalCount -= len(list)
	c.LastModifiedSeconds = now.Unix()
	return len(list)
}

// Find returns the approach with the given id regardless of question.
func (c *Collection) Find(approachID string) (Approach, bool) {
	for _, list := range c.ByQuestion {
		for _, approach := range list {
			if approach.ID == approachID {
				return approach, true
			}
		}
	}
	return Approach{}, false
}

// ForQuestion returns the question's approaches in submission order.
func (c *Collection) ForQuestion(questionID string) []Approach {
	list := c.ByQuestion[questionID]
	out := make([]Approach, len(list))
	copy(out, list)
	return out
}

// AllFlat returns every approach across questions, most recently created
// first. Ties on the creation second fall back to the approach id so the
// order stays stable across calls regardless of map iteration.
func (c *Collection) AllFlat() []Approach {
	out := make([]Approach, 0, c.TotalCount)
	for _, list := range c.ByQuestion {
		out = append(out, list...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAtSeconds != out[j].CreatedAtSeconds {
			return out[i].CreatedAtSeconds > out[j].CreatedAtSeconds
		}
		return out[i].ID < out[j].ID
	})
	return out
}
