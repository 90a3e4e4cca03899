package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/drillhub/backend/internal/cache"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingPurger     = errors.New("purger dependency is required")
	noOpLogger           = zap.NewNop()
)

// ServiceError wraps a failure with a dotted operation code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

const (
	opCategoryNew        = "categories.service.new"
	opCategoryCreate     = "categories.create"
	opCategoryUpdate     = "categories.update"
	opCategoryDelete     = "categories.delete"
	opCategoryList       = "categories.list"
	opCategoryGet        = "categories.get"
	opCategoryGlobalInfo = "categories.global_info"
	opCategoryOrder      = "categories.display_order"
	opCategoryMembership = "categories.membership"
)

// ApproachPurger removes every stored approach for a question across all
// users. Implemented by the approaches service.
type ApproachPurger interface {
	RemoveAllForQuestion(ctx context.Context, questionID string) (int, error)
}

// ProgressPurger removes a question from every user's solved record.
// Implemented by the progress service.
type ProgressPurger interface {
	RemoveQuestionFromAllUsers(ctx context.Context, questionID string) (int, error)
}

// CategoryInfo is the per-category slice of the global listing served to
// authenticated users.
type CategoryInfo struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	EasyQuestionIDs   []string `json:"easy_question_ids"`
	MediumQuestionIDs []string `json:"medium_question_ids"`
	HardQuestionIDs   []string `json:"hard_question_ids"`
	EasyCount         int      `json:"easy_count"`
	MediumCount       int      `json:"medium_count"`
	HardCount         int      `json:"hard_count"`
	TotalQuestions    int      `json:"total_questions"`
}

// GlobalCategoriesInfo maps category id to its info block.
type GlobalCategoriesInfo struct {
	Categories map[string]CategoryInfo `json:"categories"`
}

// CategoryDeleteResult summarizes the cascade performed by a category
// deletion.
type CategoryDeleteResult struct {
	CategoryName      string `json:"category_name"`
	DeletedQuestions  int    `json:"deleted_questions"`
	RemovedApproaches int    `json:"removed_approaches"`
	RemovedProgress   int    `json:"removed_progress_entries"`
}

// CategoryServiceConfig carries the dependencies required to construct a
// CategoryService.
type CategoryServiceConfig struct {
	Database   *gorm.DB
	Cache      *cache.Store
	Clock      func() time.Time
	IDProvider IDProvider
	Approaches ApproachPurger
	Progress   ProgressPurger
	Logger     *zap.Logger
}

// CategoryService owns category rows and the denormalized per-level
// question id lists they carry.
type CategoryService struct {
	db         *gorm.DB
	cache      *cache.Store
	clock      func() time.Time
	idProvider IDProvider
	approaches ApproachPurger
	progress   ProgressPurger
	logger     *zap.Logger
}

func NewCategoryService(cfg CategoryServiceConfig) (*CategoryService, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opCategoryNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opCategoryNew, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.Approaches == nil || cfg.Progress == nil {
		return nil, newServiceError(opCategoryNew, "missing_purger", errMissingPurger)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &CategoryService{
		db:         cfg.Database,
		cache:      cfg.Cache,
		clock:      clock,
		idProvider: cfg.IDProvider,
		approaches: cfg.Approaches,
		progress:   cfg.Progress,
		logger:     logger,
	}, nil
}

// Create inserts a category with the next free display order slot.
func (s *CategoryService) Create(ctx context.Context, name, createdBy string) (Category, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Category{}, newServiceError(opCategoryCreate, "empty_name", errors.New("category name is required"))
	}

	taken, err := s.nameTaken(ctx, trimmed, "")
	if err != nil {
		s.logError(opCategoryCreate, "name_check_failed", err, zap.String("name", trimmed))
		return Category{}, newServiceError(opCategoryCreate, "name_check_failed", err)
	}
	if taken {
		return Category{}, &ConflictError{Resource: "category", Value: trimmed}
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCategoryCreate, "id_generation_failed", err)
		return Category{}, newServiceError(opCategoryCreate, "id_generation_failed", err)
	}

	maxOrder, err := s.maxDisplayOrder(ctx)
	if err != nil {
		s.logError(opCategoryCreate, "order_query_failed", err)
		return Category{}, newServiceError(opCategoryCreate, "order_query_failed", err)
	}

	now := s.clock().UTC().Unix()
	category := Category{
		ID:               id,
		Name:             trimmed,
		DisplayOrder:     maxOrder + 1,
		EasyIDsJSON:      "[]",
		MediumIDsJSON:    "[]",
		HardIDsJSON:      "[]",
		CreatedBy:        createdBy,
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
		s.logError(opCategoryCreate, "insert_failed", err, zap.String("name", trimmed))
		return Category{}, newServiceError(opCategoryCreate, "insert_failed", err)
	}

	s.invalidate(cache.TagAdminCategories, cache.TagGlobalCategories, cache.TagCategoriesProgress)
	return category, nil
}

// CategoryPatch carries the optional fields of a category update.
type CategoryPatch struct {
	Name         *string
	DisplayOrder *int
}

// Update renames a category and/or moves its display order slot.
func (s *CategoryService) Update(ctx context.Context, id string, patch CategoryPatch) (Category, error) {
	category, err := s.load(ctx, opCategoryUpdate, id)
	if err != nil {
		return Category{}, err
	}

	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		if trimmed == "" {
			return Category{}, newServiceError(opCategoryUpdate, "empty_name", errors.New("category name is required"))
		}
		if !strings.EqualFold(trimmed, category.Name) {
			taken, err := s.nameTaken(ctx, trimmed, id)
			if err != nil {
				s.logError(opCategoryUpdate, "name_check_failed", err, zap.String("category_id", id))
				return Category{}, newServiceError(opCategoryUpdate, "name_check_failed", err)
			}
			if taken {
				return Category{}, &ConflictError{Resource: "category", Value: trimmed}
			}
		}
		category.Name = trimmed
	}
	if patch.DisplayOrder != nil {
		category.DisplayOrder = *patch.DisplayOrder
	}
	category.UpdatedAtSeconds = s.clock().UTC().Unix()

	if err := s.db.WithContext(ctx).Save(&category).Error; err != nil {
		s.logError(opCategoryUpdate, "save_failed", err, zap.String("category_id", id))
		return Category{}, newServiceError(opCategoryUpdate, "save_failed", err)
	}

	// A rename changes the denormalized name on every question row.
	if patch.Name != nil {
		if err := s.db.WithContext(ctx).Model(&Question{}).
			Where("category_id = ?", id).
			Update("category_name", category.Name).Error; err != nil {
			s.logError(opCategoryUpdate, "question_rename_failed", err, zap.String("category_id", id))
			return Category{}, newServiceError(opCategoryUpdate, "question_rename_failed", err)
		}
	}

	s.invalidate(cache.TagAdminCategories, cache.TagGlobalCategories, cache.TagCategoriesProgress,
		cache.TagQuestionsMetadata, cache.TagAdminQuestionsSummary)
	return category, nil
}

// Delete removes a category and cascades over its questions: every
// question row, every user's approaches for those questions, and every
// solved-progress entry referencing them.
func (s *CategoryService) Delete(ctx context.Context, id string) (CategoryDeleteResult, error) {
	category, err := s.load(ctx, opCategoryDelete, id)
	if err != nil {
		return CategoryDeleteResult{}, err
	}

	var questions []Question
	if err := s.db.WithContext(ctx).Where("category_id = ?", id).Find(&questions).Error; err != nil {
		s.logError(opCategoryDelete, "question_query_failed", err, zap.String("category_id", id))
		return CategoryDeleteResult{}, newServiceError(opCategoryDelete, "question_query_failed", err)
	}

	result := CategoryDeleteResult{CategoryName: category.Name, DeletedQuestions: len(questions)}
	for _, question := range questions {
		removedApproaches, err := s.approaches.RemoveAllForQuestion(ctx, question.ID)
		if err != nil {
			s.logError(opCategoryDelete, "approach_purge_failed", err, zap.String("question_id", question.ID))
			return CategoryDeleteResult{}, newServiceError(opCategoryDelete, "approach_purge_failed", err)
		}
		result.RemovedApproaches += removedApproaches

		removedProgress, err := s.progress.RemoveQuestionFromAllUsers(ctx, question.ID)
		if err != nil {
			s.logError(opCategoryDelete, "progress_purge_failed", err, zap.String("question_id", question.ID))
			return CategoryDeleteResult{}, newServiceError(opCategoryDelete, "progress_purge_failed", err)
		}
		result.RemovedProgress += removedProgress
	}

	if len(questions) > 0 {
		if err := s.db.WithContext(ctx).Where("category_id = ?", id).Delete(&Question{}).Error; err != nil {
			s.logError(opCategoryDelete, "question_delete_failed", err, zap.String("category_id", id))
			return CategoryDeleteResult{}, newServiceError(opCategoryDelete, "question_delete_failed", err)
		}
	}
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Category{}).Error; err != nil {
		s.logError(opCategoryDelete, "delete_failed", err, zap.String("category_id", id))
		return CategoryDeleteResult{}, newServiceError(opCategoryDelete, "delete_failed", err)
	}

	s.invalidate(cache.TagAdminCategories, cache.TagGlobalCategories, cache.TagCategoriesProgress,
		cache.TagQuestionsMetadata, cache.TagAdminQuestionsSummary, cache.TagUserStats)
	return result, nil
}

// List returns every category ordered by display order then name. The
// result is cached until the next mutation.
func (s *CategoryService) List(ctx context.Context) ([]Category, error) {
	load := func(ctx context.Context) (any, error) {
		var categories []Category
		if err := s.db.WithContext(ctx).
			Order("display_order ASC, name ASC").
			Find(&categories).Error; err != nil {
			return nil, err
		}
		return categories, nil
	}

	if s.cache == nil {
		value, err := load(ctx)
		if err != nil {
			s.logError(opCategoryList, "query_failed", err)
			return nil, newServiceError(opCategoryList, "query_failed", err)
		}
		return value.([]Category), nil
	}

	value, err := s.cache.GetOrLoad(ctx, cache.TagAdminCategories, "all", load)
	if err != nil {
		s.logError(opCategoryList, "query_failed", err)
		return nil, newServiceError(opCategoryList, "query_failed", err)
	}
	return value.([]Category), nil
}

// Get returns one category by id.
func (s *CategoryService) Get(ctx context.Context, id string) (Category, error) {
	return s.load(ctx, opCategoryGet, id)
}

// GlobalInfo builds the per-category listing from the denormalized id
// lists, answering from a single table scan. Cached until the next
// catalog mutation.
func (s *CategoryService) GlobalInfo(ctx context.Context) (GlobalCategoriesInfo, error) {
	load := func(ctx context.Context) (any, error) {
		var categories []Category
		if err := s.db.WithContext(ctx).
			Order("display_order ASC, name ASC").
			Find(&categories).Error; err != nil {
			return nil, err
		}

		info := GlobalCategoriesInfo{Categories: make(map[string]CategoryInfo, len(categories))}
		for i := range categories {
			category := &categories[i]
			easyIDs, err := category.QuestionIDs(LevelEasy)
			if err != nil {
				return nil, err
			}
			mediumIDs, err := category.QuestionIDs(LevelMedium)
			if err != nil {
				return nil, err
			}
			hardIDs, err := category.QuestionIDs(LevelHard)
			if err != nil {
				return nil, err
			}
			info.Categories[category.ID] = CategoryInfo{
				ID:                category.ID,
				Name:              category.Name,
				EasyQuestionIDs:   easyIDs,
				MediumQuestionIDs: mediumIDs,
				HardQuestionIDs:   hardIDs,
				EasyCount:         category.EasyCount,
				MediumCount:       category.MediumCount,
				HardCount:         category.HardCount,
				TotalQuestions:    category.TotalQuestions,
			}
		}
		return info, nil
	}

	if s.cache == nil {
		value, err := load(ctx)
		if err != nil {
			s.logError(opCategoryGlobalInfo, "query_failed", err)
			return GlobalCategoriesInfo{}, newServiceError(opCategoryGlobalInfo, "query_failed", err)
		}
		return value.(GlobalCategoriesInfo), nil
	}

	value, err := s.cache.GetOrLoad(ctx, cache.TagGlobalCategories, "all", load)
	if err != nil {
		s.logError(opCategoryGlobalInfo, "query_failed", err)
		return GlobalCategoriesInfo{}, newServiceError(opCategoryGlobalInfo, "query_failed", err)
	}
	return value.(GlobalCategoriesInfo), nil
}

// UpdateDisplayOrder moves one category to the given slot.
func (s *CategoryService) UpdateDisplayOrder(ctx context.Context, id string, displayOrder int) (Category, error) {
	order := displayOrder
	return s.Update(ctx, id, CategoryPatch{DisplayOrder: &order})
}

// BatchUpdateDisplayOrder applies display order slots in bulk. Unknown
// ids are skipped; the count of updated rows is returned.
func (s *CategoryService) BatchUpdateDisplayOrder(ctx context.Context, orders map[string]int) (int, error) {
	updated := 0
	now := s.clock().UTC().Unix()
	for id, order := range orders {
		outcome := s.db.WithContext(ctx).Model(&Category{}).
			Where("id = ?", id).
			Updates(map[string]any{"display_order": order, "updated_at_s": now})
		if outcome.Error != nil {
			s.logError(opCategoryOrder, "batch_update_failed", outcome.Error, zap.String("category_id", id))
			return updated, newServiceError(opCategoryOrder, "batch_update_failed", outcome.Error)
		}
		updated += int(outcome.RowsAffected)
	}

	s.invalidate(cache.TagAdminCategories, cache.TagGlobalCategories)
	return updated, nil
}

// Count returns the number of categories.
func (s *CategoryService) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Category{}).Count(&count).Error; err != nil {
		s.logError(opCategoryList, "count_failed", err)
		return 0, newServiceError(opCategoryList, "count_failed", err)
	}
	return count, nil
}

// addQuestion registers a question id under the category's level list.
// Called by the question service when a question is created or moved.
func (s *CategoryService) addQuestion(ctx context.Context, categoryID, questionID string, level Level) error {
	return s.mutateMembership(ctx, categoryID, func(category *Category) error {
		return category.AddQuestionID(questionID, level)
	})
}

// removeQuestion drops a question id from the category's level list.
func (s *CategoryService) removeQuestion(ctx context.Context, categoryID, questionID string, level Level) error {
	return s.mutateMembership(ctx, categoryID, func(category *Category) error {
		return category.RemoveQuestionID(questionID, level)
	})
}

// moveQuestion shifts a question id between categories or levels.
func (s *CategoryService) moveQuestion(ctx context.Context, oldCategoryID, newCategoryID, questionID string, oldLevel, newLevel Level) error {
	if oldCategoryID != "" && (oldCategoryID != newCategoryID || oldLevel != newLevel) {
		if err := s.removeQuestion(ctx, oldCategoryID, questionID, oldLevel); err != nil {
			var notFound *NotFoundError
			if !errors.As(err, &notFound) {
				return err
			}
		}
	}
	return s.addQuestion(ctx, newCategoryID, questionID, newLevel)
}

func (s *CategoryService) mutateMembership(ctx context.Context, categoryID string, mutate func(*Category) error) error {
	category, err := s.load(ctx, opCategoryMembership, categoryID)
	if err != nil {
		return err
	}
	if err := mutate(&category); err != nil {
		s.logError(opCategoryMembership, "mutation_failed", err, zap.String("category_id", categoryID))
		return newServiceError(opCategoryMembership, "mutation_failed", err)
	}
	category.UpdatedAtSeconds = s.clock().UTC().Unix()
	if err := s.db.WithContext(ctx).Save(&category).Error; err != nil {
		s.logError(opCategoryMembership, "save_failed", err, zap.String("category_id", categoryID))
		return newServiceError(opCategoryMembership, "save_failed", err)
	}

	s.invalidate(cache.TagAdminCategories, cache.TagGlobalCategories)
	return nil
}

func (s *CategoryService) load(ctx context.Context, operation, id string) (Category, error) {
	var category Category
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Category{}, &NotFoundError{Resource: "category", ID: id}
	}
	if err != nil {
		s.logError(operation, "select_failed", err, zap.String("category_id", id))
		return Category{}, newServiceError(operation, "select_failed", err)
	}
	return category, nil
}

func (s *CategoryService) nameTaken(ctx context.Context, name, excludeID string) (bool, error) {
	query := s.db.WithContext(ctx).Model(&Category{}).Where("LOWER(name) = LOWER(?)", name)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *CategoryService) maxDisplayOrder(ctx context.Context) (int, error) {
	var highest *int
	if err := s.db.WithContext(ctx).Model(&Category{}).
		Select("MAX(display_order)").Scan(&highest).Error; err != nil {
		return 0, err
	}
	if highest == nil {
		return 0, nil
	}
	return *highest, nil
}

func (s *CategoryService) invalidate(tags ...cache.Tag) {
	if s.cache != nil {
		s.cache.Invalidate(tags...)
	}
}

func (s *CategoryService) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("catalog service error", attrs...)
}
