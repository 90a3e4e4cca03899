package catalog

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// QuestionFacts is the denormalized slice of a question that other
// services copy into their own rows.
type QuestionFacts struct {
	ID           string
	Title        string
	CategoryName string
	Level        Level
}

// Lookup answers point reads against the question table without pulling
// in either catalog service. It satisfies the question lookup interfaces
// of the approaches and progress packages.
type Lookup struct {
	db *gorm.DB
}

func NewLookup(db *gorm.DB) *Lookup {
	return &Lookup{db: db}
}

// LookupQuestionTitle returns the question's title, reporting absence
// without an error.
func (l *Lookup) LookupQuestionTitle(ctx context.Context, questionID string) (string, bool, error) {
	facts, found, err := l.LookupQuestionFacts(ctx, questionID)
	if err != nil || !found {
		return "", found, err
	}
	return facts.Title, true, nil
}

// LookupQuestionFacts returns the denormalized facts for one question,
// reporting absence without an error.
func (l *Lookup) LookupQuestionFacts(ctx context.Context, questionID string) (QuestionFacts, bool, error) {
	var question Question
	err := l.db.WithContext(ctx).
		Select("id", "title", "category_name", "level").
		Where("id = ?", questionID).
		Take(&question).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return QuestionFacts{}, false, nil
	}
	if err != nil {
		return QuestionFacts{}, false, err
	}
	return QuestionFacts{
		ID:           question.ID,
		Title:        question.Title,
		CategoryName: question.CategoryName,
		Level:        question.Level,
	}, true, nil
}
