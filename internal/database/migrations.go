package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/drillhub/backend/internal/catalog"
)

const migrationBackfillQuestionDisplayOrder = "2026-07-12_backfill_question_display_order"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillQuestionDisplayOrder, apply: backfillQuestionDisplayOrder},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillQuestionDisplayOrder assigns sequential display orders to
// questions created before ordering existed. Each (category, level)
// group is numbered by creation time, continuing after the highest
// order already present in the group.
func backfillQuestionDisplayOrder(db *gorm.DB) error {
	var questions []catalog.Question
	err := db.Model(&catalog.Question{}).
		Where("display_order = 0").
		Order("category_id ASC, level ASC, created_at_s ASC, id ASC").
		Find(&questions).Error
	if err != nil {
		return err
	}

	nextOrder := map[string]int{}
	for index := range questions {
		question := &questions[index]
		groupKey := question.CategoryID + "\x00" + string(question.Level)
		if _, seen := nextOrder[groupKey]; !seen {
			var highest *int
			err := db.Model(&catalog.Question{}).
				Select("MAX(display_order)").
				Where("category_id = ? AND level = ?", question.CategoryID, question.Level).
				Scan(&highest).Error
			if err != nil {
				return err
			}
			if highest != nil {
				nextOrder[groupKey] = *highest
			}
		}
		nextOrder[groupKey]++
		err := db.Model(&catalog.Question{}).
			Where("id = ?", question.ID).
			Update("display_order", nextOrder[groupKey]).Error
		if err != nil {
			return err
		}
	}
	return nil
}
