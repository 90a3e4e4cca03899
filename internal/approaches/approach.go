package approaches

const (
	// MaxApproachesPerQuestion caps how many approaches one user may keep per question.
	MaxApproachesPerQuestion = 3
	// MaxCombinedBytesPerQuestion caps the combined text+code size across all
	// of a user's approaches for one question.
	MaxCombinedBytesPerQuestion = 15 * 1024
)

// Approach is a single solution writeup owned by a user's collection. It is
// never addressed outside the collection except by (userID, questionID, id).
type Approach struct {
	ID               string `json:"id"`
	QuestionID       string `json:"question_id"`
	QuestionTitle    string `json:"question_title"`
	TextContent      string `json:"text_content"`
	CodeContent      string `json:"code_content,omitempty"`
	CodeLanguage     string `json:"code_language"`
	ContentSize      int    `json:"content_size"`
	CreatedAtSeconds int64  `json:"created_at_s"`
	UpdatedAtSeconds int64  `json:"updated_at_s"`
}

// recomputeSize derives ContentSize from the current content fields.
// ContentSize is never set independently.
func (a *Approach) recomputeSize() {
	a.ContentSize = len(a.TextContent) + len(a.CodeContent)
}

// Draft carries the user-supplied fields for a new approach.
type Draft struct {
	TextContent  string
	CodeContent  string
	CodeLanguage string
}

func (d Draft) contentSize() int {
	return len(d.TextContent) + len(d.CodeContent)
}

// ContentPatch describes a partial update. Nil fields are left untouched and
// keep their stored value during size recomputation.
type ContentPatch struct {
	TextContent  *string
	CodeContent  *string
	CodeLanguage *string
}

func (p ContentPatch) empty() bool {
	return p.TextContent == nil && p.CodeContent == nil && p.CodeLanguage == nil
}

// Usage summarizes a user's quota consumption for one question.
type Usage struct {
	UsedBytes      int     `json:"used_bytes"`
	UsedKB         float64 `json:"used_kb"`
	RemainingBytes int     `json:"remaining_bytes"`
	RemainingKB    float64 `json:"remaining_kb"`
	ApproachCount  int     `json:"approach_count"`
	RemainingSlots int     `json:"remaining_slots"`
	MaxBytes       int     `json:"max_bytes"`
	MaxKB          float64 `json:"max_kb"`
}

func newUsage(usedBytes, count int) Usage {
	remaining := MaxCombinedBytesPerQuestion - usedBytes
	if remaining < 0 {
		remaining = 0
	}
	return Usage{
		UsedBytes:      usedBytes,
		UsedKB:         float64(usedBytes) / 1024.0,
		RemainingBytes: remaining,
		RemainingKB:    float64(remaining) / 1024.0,
		ApproachCount:  count,
		RemainingSlots: MaxApproachesPerQuestion - count,
		MaxBytes:       MaxCombinedBytesPerQuestion,
		MaxKB:          float64(MaxCombinedBytesPerQuestion) / 1024.0,
	}
}
