package catalog

import (
	"encoding/json"
	"fmt"
)

// Category groups questions and carries denormalized per-level question id
// lists so list endpoints answer from a single row scan.
type Category struct {
	ID               string `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	Name             string `gorm:"column:name;size:190;not null;uniqueIndex:idx_categories_name" json:"name"`
	DisplayOrder     int    `gorm:"column:display_order;not null;default:0;index:idx_categories_order" json:"display_order"`
	EasyIDsJSON      string `gorm:"column:easy_ids_json;type:text;not null;default:'[]'" json:"-"`
	MediumIDsJSON    string `gorm:"column:medium_ids_json;type:text;not null;default:'[]'" json:"-"`
	HardIDsJSON      string `gorm:"column:hard_ids_json;type:text;not null;default:'[]'" json:"-"`
	EasyCount        int    `gorm:"column:easy_count;not null;default:0" json:"easy_count"`
	MediumCount      int    `gorm:"column:medium_count;not null;default:0" json:"medium_count"`
	HardCount        int    `gorm:"column:hard_count;not null;default:0" json:"hard_count"`
	TotalQuestions   int    `gorm:"column:total_questions;not null;default:0" json:"total_questions"`
	CreatedBy        string `gorm:"column:created_by;size:190;not null;default:''" json:"created_by"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null" json:"created_at_s"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null" json:"updated_at_s"`
}

// TableName provides the explicit table binding for GORM.
func (Category) TableName() string {
	return "categories"
}

// QuestionIDs decodes the stored id list for one difficulty level.
func (c *Category) QuestionIDs(level Level) ([]string, error) {
	raw := c.idsColumn(level)
	if *raw == "" {
		return []string{}, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(*raw), &ids); err != nil {
		return nil, fmt.Errorf("catalog: decode %s id list for category %s: %w", level, c.ID, err)
	}
	return ids, nil
}

// AddQuestionID appends the question to the level's list when absent and
// refreshes the denormalized counts.
func (c *Category) AddQuestionID(questionID string, level Level) error {
	ids, err := c.QuestionIDs(level)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == questionID {
			return c.recalculateCounts()
		}
	}
	return c.setQuestionIDs(level, append(ids, questionID))
}

// RemoveQuestionID drops the question from the level's list when present
// and refreshes the denormalized counts.
func (c *Category) RemoveQuestionID(questionID string, level Level) error {
	ids, err := c.QuestionIDs(level)
	if err != nil {
		return err
	}
	kept := ids[:0]
	for _, existing := range ids {
		if existing != questionID {
			kept = append(kept, existing)
		}
	}
	return c.setQuestionIDs(level, kept)
}

func (c *Category) setQuestionIDs(level Level, ids []string) error {
	encoded, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("catalog: encode %s id list for category %s: %w", level, c.ID, err)
	}
	*c.idsColumn(level) = string(encoded)
	return c.recalculateCounts()
}

func (c *Category) recalculateCounts() error {
	counts := map[Level]int{}
	for _, level := range Levels() {
		ids, err := c.QuestionIDs(level)
		if err != nil {
			return err
		}
		counts[level] = len(ids)
	}
	c.EasyCount = counts[LevelEasy]
	c.MediumCount = counts[LevelMedium]
	c.HardCount = counts[LevelHard]
	c.TotalQuestions = c.EasyCount + c.MediumCount + c.HardCount
	return nil
}

func (c *Category) idsColumn(level Level) *string {
	switch level {
	case LevelMedium:
		return &c.MediumIDsJSON
	case LevelHard:
		return &c.HardIDsJSON
	default:
		return &c.EasyIDsJSON
	}
}

// CodeSnippet is a language-tagged snippet attached to a question statement.
type CodeSnippet struct {
	Language    string `json:"language"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

// Question is the persisted question row. CategoryName is denormalized so
// summary listings avoid a join.
type Question struct {
	ID               string `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	Title            string `gorm:"column:title;size:190;not null;index:idx_questions_title" json:"title"`
	Statement        string `gorm:"column:statement;type:text;not null" json:"statement"`
	CategoryID       string `gorm:"column:category_id;size:190;not null;index:idx_questions_category" json:"category_id"`
	CategoryName     string `gorm:"column:category_name;size:190;not null;default:''" json:"category_name"`
	Level            Level  `gorm:"column:level;size:16;not null" json:"level"`
	DisplayOrder     int    `gorm:"column:display_order;not null;default:0" json:"display_order"`
	SnippetsJSON     string `gorm:"column:snippets_json;type:text;not null;default:'[]'" json:"-"`
	ImageURLsJSON    string `gorm:"column:image_urls_json;type:text;not null;default:'[]'" json:"-"`
	ImageFolderURL   string `gorm:"column:image_folder_url;size:500;not null;default:''" json:"image_folder_url,omitempty"`
	CreatedBy        string `gorm:"column:created_by;size:190;not null;default:''" json:"created_by"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null" json:"created_at_s"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null" json:"updated_at_s"`
}

// TableName provides the explicit table binding for GORM.
func (Question) TableName() string {
	return "questions"
}

// Snippets decodes the stored snippet list.
func (q *Question) Snippets() ([]CodeSnippet, error) {
	if q.SnippetsJSON == "" {
		return []CodeSnippet{}, nil
	}
	var snippets []CodeSnippet
	if err := json.Unmarshal([]byte(q.SnippetsJSON), &snippets); err != nil {
		return nil, fmt.Errorf("catalog: decode snippets for question %s: %w", q.ID, err)
	}
	return snippets, nil
}

// SetSnippets encodes and stores the snippet list.
func (q *Question) SetSnippets(snippets []CodeSnippet) error {
	if snippets == nil {
		snippets = []CodeSnippet{}
	}
	encoded, err := json.Marshal(snippets)
	if err != nil {
		return fmt.Errorf("catalog: encode snippets for question %s: %w", q.ID, err)
	}
	q.SnippetsJSON = string(encoded)
	return nil
}

// ImageURLs decodes the stored image url list.
func (q *Question) ImageURLs() ([]string, error) {
	if q.ImageURLsJSON == "" {
		return []string{}, nil
	}
	var urls []string
	if err := json.Unmarshal([]byte(q.ImageURLsJSON), &urls); err != nil {
		return nil, fmt.Errorf("catalog: decode image urls for question %s: %w", q.ID, err)
	}
	return urls, nil
}

// SetImageURLs encodes and stores the image url list.
func (q *Question) SetImageURLs(urls []string) error {
	if urls == nil {
		urls = []string{}
	}
	encoded, err := json.Marshal(urls)
	if err != nil {
		return fmt.Errorf("catalog: encode image urls for question %s: %w", q.ID, err)
	}
	q.ImageURLsJSON = string(encoded)
	return nil
}

// HasSnippets reports whether the question carries at least one snippet.
func (q *Question) HasSnippets() bool {
	return q.SnippetsJSON != "" && q.SnippetsJSON != "[]"
}
