package progress

import (
	"encoding/json"
	"fmt"

	"github.com/drillhub/backend/internal/catalog"
)

// SolvedQuestion is one entry of a user's solved record. Title and
// category name are denormalized at solve time so the record reads
// without catalog joins.
type SolvedQuestion struct {
	QuestionID      string        `json:"question_id"`
	Title           string        `json:"title"`
	CategoryName    string        `json:"category_name"`
	Level           catalog.Level `json:"level"`
	SolvedAtSeconds int64         `json:"solved_at_s"`
}

// Record is the persisted per-user progress row. The solved map lives in
// one JSON document; the counters are denormalized from it.
type Record struct {
	UserID              string `gorm:"column:user_id;primaryKey;size:190;not null"`
	SolvedJSON          string `gorm:"column:solved_json;type:text;not null;default:'{}'"`
	TotalSolved         int    `gorm:"column:total_solved;not null;default:0"`
	EasySolved          int    `gorm:"column:easy_solved;not null;default:0"`
	MediumSolved        int    `gorm:"column:medium_solved;not null;default:0"`
	HardSolved          int    `gorm:"column:hard_solved;not null;default:0"`
	LastSolvedAtSeconds int64  `gorm:"column:last_solved_at_s;not null;default:0"`
	CreatedAtSeconds    int64  `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "user_progress"
}

// Solved decodes the stored solved map.
func (r *Record) Solved() (map[string]SolvedQuestion, error) {
	if r.SolvedJSON == "" {
		return map[string]SolvedQuestion{}, nil
	}
	var solved map[string]SolvedQuestion
	if err := json.Unmarshal([]byte(r.SolvedJSON), &solved); err != nil {
		return nil, fmt.Errorf("progress: decode solved map for user %s: %w", r.UserID, err)
	}
	if solved == nil {
		solved = map[string]SolvedQuestion{}
	}
	return solved, nil
}

// SetSolved encodes the solved map and refreshes every denormalized
// counter from it.
func (r *Record) SetSolved(solved map[string]SolvedQuestion) error {
	encoded, err := json.Marshal(solved)
	if err != nil {
		return fmt.Errorf("progress: encode solved map for user %s: %w", r.UserID, err)
	}
	r.SolvedJSON = string(encoded)

	r.TotalSolved = len(solved)
	r.EasySolved = 0
	r.MediumSolved = 0
	r.HardSolved = 0
	r.LastSolvedAtSeconds = 0
	for _, entry := range solved {
		switch entry.Level {
		case catalog.LevelEasy:
			r.EasySolved++
		case catalog.LevelMedium:
			r.MediumSolved++
		case catalog.LevelHard:
			r.HardSolved++
		}
		if entry.SolvedAtSeconds > r.LastSolvedAtSeconds {
			r.LastSolvedAtSeconds = entry.SolvedAtSeconds
		}
	}
	return nil
}
