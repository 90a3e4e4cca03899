package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/drillhub/backend/internal/cache"
)

const (
	opQuestionNew      = "questions.service.new"
	opQuestionCreate   = "questions.create"
	opQuestionUpdate   = "questions.update"
	opQuestionDelete   = "questions.delete"
	opQuestionGet      = "questions.get"
	opQuestionList     = "questions.list"
	opQuestionMetadata = "questions.metadata"
	opQuestionSummary  = "questions.admin_summary"
	opQuestionOrder    = "questions.display_order"
	opQuestionCounts   = "questions.counts"
)

var errMissingCategories = errors.New("category service is required")

// QuestionDraft carries the fields of a question create request.
type QuestionDraft struct {
	Title          string
	Statement      string
	CategoryID     string
	Level          Level
	DisplayOrder   *int
	Snippets       []CodeSnippet
	ImageURLs      []string
	ImageFolderURL string
}

// QuestionPatch carries the optional fields of a question update.
type QuestionPatch struct {
	Title          *string
	Statement      *string
	CategoryID     *string
	Level          *Level
	DisplayOrder   *int
	Snippets       []CodeSnippet
	ImageURLs      []string
	ImageFolderURL *string
}

// ListFilter narrows and pages a question listing. Zero values mean no
// filtering; Page is 1-based.
type ListFilter struct {
	CategoryID string
	Level      Level
	Search     string
	Page       int
	PageSize   int
}

// QuestionPage is one page of a filtered listing.
type QuestionPage struct {
	Questions  []Question `json:"questions"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalCount int64      `json:"total_count"`
}

// QuestionMetadata is the lightweight per-question block used by
// selectors and title displays.
type QuestionMetadata struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Level Level  `json:"level"`
}

// QuestionsMetadata maps question id to its metadata block.
type QuestionsMetadata struct {
	Questions map[string]QuestionMetadata `json:"questions"`
}

// AdminQuestionSummary is one row of the admin question table.
type AdminQuestionSummary struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Level            Level  `json:"level"`
	CategoryName     string `json:"category_name"`
	DisplayOrder     int    `json:"display_order"`
	ImageCount       int    `json:"image_count"`
	HasCodeSnippets  bool   `json:"has_code_snippets"`
	CreatedByName    string `json:"created_by_name"`
	UpdatedAtSeconds int64  `json:"updated_at_s"`
}

// AdminSummaryPage is one page of the admin question table.
type AdminSummaryPage struct {
	Questions  []AdminQuestionSummary `json:"questions"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"page_size"`
	TotalCount int64                  `json:"total_count"`
}

// QuestionDeleteResult summarizes the cascade performed by a question
// deletion.
type QuestionDeleteResult struct {
	Title             string `json:"title"`
	RemovedApproaches int    `json:"removed_approaches"`
	RemovedProgress   int    `json:"removed_progress_entries"`
}

// OrderingEntry is one row of the drag-to-reorder admin listing.
type OrderingEntry struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	DisplayOrder int    `json:"display_order"`
	Level        Level  `json:"level"`
}

// DisplayOrderUpdate assigns one question a display order slot.
type DisplayOrderUpdate struct {
	QuestionID   string `json:"question_id"`
	DisplayOrder int    `json:"display_order"`
}

// LevelCounts breaks a question total down by difficulty.
type LevelCounts struct {
	Easy   int64 `json:"easy"`
	Medium int64 `json:"medium"`
	Hard   int64 `json:"hard"`
}

// QuestionCounts aggregates catalog size for the admin overview.
type QuestionCounts struct {
	Total      int64            `json:"total"`
	ByLevel    LevelCounts      `json:"by_level"`
	ByCategory map[string]int64 `json:"by_category"`
}

// QuestionServiceConfig carries the dependencies required to construct a
// QuestionService.
type QuestionServiceConfig struct {
	Database   *gorm.DB
	Cache      *cache.Store
	Clock      func() time.Time
	IDProvider IDProvider
	Categories *CategoryService
	Approaches ApproachPurger
	Progress   ProgressPurger
	Logger     *zap.Logger
}

// QuestionService owns question rows and keeps the category membership
// lists in step with every mutation.
type QuestionService struct {
	db         *gorm.DB
	cache      *cache.Store
	clock      func() time.Time
	idProvider IDProvider
	categories *CategoryService
	approaches ApproachPurger
	progress   ProgressPurger
	logger     *zap.Logger
}

func NewQuestionService(cfg QuestionServiceConfig) (*QuestionService, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opQuestionNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opQuestionNew, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.Categories == nil {
		return nil, newServiceError(opQuestionNew, "missing_categories", errMissingCategories)
	}
	if cfg.Approaches == nil || cfg.Progress == nil {
		return nil, newServiceError(opQuestionNew, "missing_purger", errMissingPurger)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &QuestionService{
		db:         cfg.Database,
		cache:      cfg.Cache,
		clock:      clock,
		idProvider: cfg.IDProvider,
		categories: cfg.Categories,
		approaches: cfg.Approaches,
		progress:   cfg.Progress,
		logger:     logger,
	}, nil
}

// Create inserts a question, registers it in its category's level list
// and auto-assigns the next display order slot when none is given.
func (s *QuestionService) Create(ctx context.Context, draft QuestionDraft, createdBy string) (Question, error) {
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		return Question{}, newServiceError(opQuestionCreate, "empty_title", errors.New("question title is required"))
	}
	taken, err := s.titleTaken(ctx, title, "")
	if err != nil {
		s.logError(opQuestionCreate, "title_check_failed", err, zap.String("title", title))
		return Question{}, newServiceError(opQuestionCreate, "title_check_failed", err)
	}
	if taken {
		return Question{}, &ConflictError{Resource: "question", Value: title}
	}

	category, err := s.categories.Get(ctx, draft.CategoryID)
	if err != nil {
		return Question{}, err
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opQuestionCreate, "id_generation_failed", err)
		return Question{}, newServiceError(opQuestionCreate, "id_generation_failed", err)
	}

	displayOrder := 0
	if draft.DisplayOrder != nil {
		displayOrder = *draft.DisplayOrder
	} else {
		highest, err := s.maxDisplayOrder(ctx, category.ID, draft.Level)
		if err != nil {
			s.logError(opQuestionCreate, "order_query_failed", err, zap.String("category_id", category.ID))
			return Question{}, newServiceError(opQuestionCreate, "order_query_failed", err)
		}
		displayOrder = highest + 1
	}

	now := s.clock().UTC().Unix()
	question := Question{
		ID:               id,
		Title:            title,
		Statement:        draft.Statement,
		CategoryID:       category.ID,
		CategoryName:     category.Name,
		Level:            draft.Level,
		DisplayOrder:     displayOrder,
		ImageFolderURL:   draft.ImageFolderURL,
		CreatedBy:        createdBy,
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	if err := question.SetSnippets(draft.Snippets); err != nil {
		return Question{}, newServiceError(opQuestionCreate, "encode_failed", err)
	}
	if err := question.SetImageURLs(draft.ImageURLs); err != nil {
		return Question{}, newServiceError(opQuestionCreate, "encode_failed", err)
	}

	if err := s.db.WithContext(ctx).Create(&question).Error; err != nil {
		s.logError(opQuestionCreate, "insert_failed", err, zap.String("title", title))
		return Question{}, newServiceError(opQuestionCreate, "insert_failed", err)
	}
	if err := s.categories.addQuestion(ctx, category.ID, question.ID, question.Level); err != nil {
		return Question{}, err
	}

	s.invalidate(cache.TagGlobalCategories, cache.TagAdminCategories,
		cache.TagAdminQuestionsSummary, cache.TagQuestionsMetadata)
	return question, nil
}

// Update applies a patch. Moving a question across categories or levels
// rewrites both membership lists.
func (s *QuestionService) Update(ctx context.Context, id string, patch QuestionPatch) (Question, error) {
	question, err := s.load(ctx, opQuestionUpdate, id)
	if err != nil {
		return Question{}, err
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return Question{}, newServiceError(opQuestionUpdate, "empty_title", errors.New("question title is required"))
		}
		if !strings.EqualFold(title, question.Title) {
			taken, err := s.titleTaken(ctx, title, id)
			if err != nil {
				s.logError(opQuestionUpdate, "title_check_failed", err, zap.String("question_id", id))
				return Question{}, newServiceError(opQuestionUpdate, "title_check_failed", err)
			}
			if taken {
				return Question{}, &ConflictError{Resource: "question", Value: title}
			}
		}
		question.Title = title
	}
	if patch.Statement != nil {
		question.Statement = *patch.Statement
	}
	if patch.Snippets != nil {
		if err := question.SetSnippets(patch.Snippets); err != nil {
			return Question{}, newServiceError(opQuestionUpdate, "encode_failed", err)
		}
	}
	if patch.ImageURLs != nil {
		if err := question.SetImageURLs(patch.ImageURLs); err != nil {
			return Question{}, newServiceError(opQuestionUpdate, "encode_failed", err)
		}
	}
	if patch.ImageFolderURL != nil {
		question.ImageFolderURL = *patch.ImageFolderURL
	}

	oldCategoryID := question.CategoryID
	oldLevel := question.Level
	if patch.CategoryID != nil && *patch.CategoryID != question.CategoryID {
		category, err := s.categories.Get(ctx, *patch.CategoryID)
		if err != nil {
			return Question{}, err
		}
		question.CategoryID = category.ID
		question.CategoryName = category.Name
	}
	if patch.Level != nil {
		question.Level = *patch.Level
	}
	if patch.DisplayOrder != nil {
		question.DisplayOrder = *patch.DisplayOrder
	}
	question.UpdatedAtSeconds = s.clock().UTC().Unix()

	if err := s.db.WithContext(ctx).Save(&question).Error; err != nil {
		s.logError(opQuestionUpdate, "save_failed", err, zap.String("question_id", id))
		return Question{}, newServiceError(opQuestionUpdate, "save_failed", err)
	}

	if oldCategoryID != question.CategoryID || oldLevel != question.Level {
		if err := s.categories.moveQuestion(ctx, oldCategoryID, question.CategoryID, question.ID, oldLevel, question.Level); err != nil {
			return Question{}, err
		}
	}

	s.invalidate(cache.TagGlobalCategories, cache.TagAdminCategories,
		cache.TagAdminQuestionsSummary, cache.TagQuestionsMetadata)
	return question, nil
}

// Delete removes a question and cascades: the category membership entry,
// every user's approaches for it, and every solved-progress entry.
func (s *QuestionService) Delete(ctx context.Context, id string) (QuestionDeleteResult, error) {
	question, err := s.load(ctx, opQuestionDelete, id)
	if err != nil {
		return QuestionDeleteResult{}, err
	}

	if err := s.categories.removeQuestion(ctx, question.CategoryID, question.ID, question.Level); err != nil {
		var notFound *NotFoundError
		if !errors.As(err, &notFound) {
			return QuestionDeleteResult{}, err
		}
	}

	removedApproaches, err := s.approaches.RemoveAllForQuestion(ctx, id)
	if err != nil {
		s.logError(opQuestionDelete, "approach_purge_failed", err, zap.String("question_id", id))
		return QuestionDeleteResult{}, newServiceError(opQuestionDelete, "approach_purge_failed", err)
	}
	removedProgress, err := s.progress.RemoveQuestionFromAllUsers(ctx, id)
	if err != nil {
		s.logError(opQuestionDelete, "progress_purge_failed", err, zap.String("question_id", id))
		return QuestionDeleteResult{}, newServiceError(opQuestionDelete, "progress_purge_failed", err)
	}

	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Question{}).Error; err != nil {
		s.logError(opQuestionDelete, "delete_failed", err, zap.String("question_id", id))
		return QuestionDeleteResult{}, newServiceError(opQuestionDelete, "delete_failed", err)
	}

	s.invalidate(cache.TagGlobalCategories, cache.TagAdminCategories,
		cache.TagAdminQuestionsSummary, cache.TagQuestionsMetadata,
		cache.TagCategoriesProgress, cache.TagUserStats)
	return QuestionDeleteResult{
		Title:             question.Title,
		RemovedApproaches: removedApproaches,
		RemovedProgress:   removedProgress,
	}, nil
}

// Get returns one question by id.
func (s *QuestionService) Get(ctx context.Context, id string) (Question, error) {
	return s.load(ctx, opQuestionGet, id)
}

// List returns a filtered page. Search wins over category and level
// filters; without any filter the newest questions come first.
func (s *QuestionService) List(ctx context.Context, filter ListFilter) (QuestionPage, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	ordering := "display_order ASC, created_at_s ASC"
	applyFilter := func(query *gorm.DB) *gorm.DB {
		switch {
		case strings.TrimSpace(filter.Search) != "":
			needle := "%" + strings.TrimSpace(filter.Search) + "%"
			return query.Where("title LIKE ? OR statement LIKE ?", needle, needle)
		case filter.CategoryID != "" && filter.Level != "":
			return query.Where("category_id = ? AND level = ?", filter.CategoryID, filter.Level)
		case filter.CategoryID != "":
			return query.Where("category_id = ?", filter.CategoryID)
		case filter.Level != "":
			return query.Where("level = ?", filter.Level)
		default:
			return query
		}
	}
	if strings.TrimSpace(filter.Search) != "" || (filter.CategoryID == "" && filter.Level == "") {
		ordering = "created_at_s DESC"
	}

	var total int64
	if err := applyFilter(s.db.WithContext(ctx).Model(&Question{})).Count(&total).Error; err != nil {
		s.logError(opQuestionList, "count_failed", err)
		return QuestionPage{}, newServiceError(opQuestionList, "count_failed", err)
	}

	var questions []Question
	if err := applyFilter(s.db.WithContext(ctx).Model(&Question{})).
		Order(ordering).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&questions).Error; err != nil {
		s.logError(opQuestionList, "query_failed", err)
		return QuestionPage{}, newServiceError(opQuestionList, "query_failed", err)
	}

	return QuestionPage{Questions: questions, Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Search returns every question whose title or statement matches the term.
func (s *QuestionService) Search(ctx context.Context, term string) ([]Question, error) {
	needle := "%" + strings.TrimSpace(term) + "%"
	var questions []Question
	if err := s.db.WithContext(ctx).
		Where("title LIKE ? OR statement LIKE ?", needle, needle).
		Order("created_at_s DESC").
		Find(&questions).Error; err != nil {
		s.logError(opQuestionList, "search_failed", err)
		return nil, newServiceError(opQuestionList, "search_failed", err)
	}
	return questions, nil
}

// Metadata returns the id/title/level block for every question, cached
// until the next catalog mutation.
func (s *QuestionService) Metadata(ctx context.Context) (QuestionsMetadata, error) {
	load := func(ctx context.Context) (any, error) {
		var questions []Question
		if err := s.db.WithContext(ctx).
			Select("id", "title", "level").
			Find(&questions).Error; err != nil {
			return nil, err
		}
		metadata := QuestionsMetadata{Questions: make(map[string]QuestionMetadata, len(questions))}
		for _, question := range questions {
			metadata.Questions[question.ID] = QuestionMetadata{
				ID:    question.ID,
				Title: question.Title,
				Level: question.Level,
			}
		}
		return metadata, nil
	}

	if s.cache == nil {
		value, err := load(ctx)
		if err != nil {
			s.logError(opQuestionMetadata, "query_failed", err)
			return QuestionsMetadata{}, newServiceError(opQuestionMetadata, "query_failed", err)
		}
		return value.(QuestionsMetadata), nil
	}

	value, err := s.cache.GetOrLoad(ctx, cache.TagQuestionsMetadata, "all", load)
	if err != nil {
		s.logError(opQuestionMetadata, "query_failed", err)
		return QuestionsMetadata{}, newServiceError(opQuestionMetadata, "query_failed", err)
	}
	return value.(QuestionsMetadata), nil
}

// AdminSummary returns one page of the admin question table, newest
// first, cached per page until the next catalog mutation.
func (s *QuestionService) AdminSummary(ctx context.Context, page, pageSize int) (AdminSummaryPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	load := func(ctx context.Context) (any, error) {
		var total int64
		if err := s.db.WithContext(ctx).Model(&Question{}).Count(&total).Error; err != nil {
			return nil, err
		}
		var questions []Question
		if err := s.db.WithContext(ctx).
			Order("created_at_s DESC").
			Offset((page - 1) * pageSize).
			Limit(pageSize).
			Find(&questions).Error; err != nil {
			return nil, err
		}

		summaries := make([]AdminQuestionSummary, 0, len(questions))
		for i := range questions {
			question := &questions[i]
			imageURLs, err := question.ImageURLs()
			if err != nil {
				return nil, err
			}
			summaries = append(summaries, AdminQuestionSummary{
				ID:               question.ID,
				Title:            question.Title,
				Level:            question.Level,
				CategoryName:     question.CategoryName,
				DisplayOrder:     question.DisplayOrder,
				ImageCount:       len(imageURLs),
				HasCodeSnippets:  question.HasSnippets(),
				CreatedByName:    question.CreatedBy,
				UpdatedAtSeconds: question.UpdatedAtSeconds,
			})
		}
		return AdminSummaryPage{Questions: summaries, Page: page, PageSize: pageSize, TotalCount: total}, nil
	}

	if s.cache == nil {
		value, err := load(ctx)
		if err != nil {
			s.logError(opQuestionSummary, "query_failed", err)
			return AdminSummaryPage{}, newServiceError(opQuestionSummary, "query_failed", err)
		}
		return value.(AdminSummaryPage), nil
	}

	key := fmt.Sprintf("page_%d_size_%d", page, pageSize)
	value, err := s.cache.GetOrLoad(ctx, cache.TagAdminQuestionsSummary, key, load)
	if err != nil {
		s.logError(opQuestionSummary, "query_failed", err)
		return AdminSummaryPage{}, newServiceError(opQuestionSummary, "query_failed", err)
	}
	return value.(AdminSummaryPage), nil
}

// UpdateDisplayOrder moves one question to the given slot.
func (s *QuestionService) UpdateDisplayOrder(ctx context.Context, id string, displayOrder int) error {
	question, err := s.load(ctx, opQuestionOrder, id)
	if err != nil {
		return err
	}
	question.DisplayOrder = displayOrder
	question.UpdatedAtSeconds = s.clock().UTC().Unix()
	if err := s.db.WithContext(ctx).Save(&question).Error; err != nil {
		s.logError(opQuestionOrder, "save_failed", err, zap.String("question_id", id))
		return newServiceError(opQuestionOrder, "save_failed", err)
	}

	s.invalidate(cache.TagGlobalCategories, cache.TagAdminCategories, cache.TagAdminQuestionsSummary)
	return nil
}

// BatchUpdateDisplayOrder applies display order slots in bulk. Unknown
// ids are skipped; the count of updated rows is returned.
func (s *QuestionService) BatchUpdateDisplayOrder(ctx context.Context, updates []DisplayOrderUpdate) (int, error) {
	updated := 0
	now := s.clock().UTC().Unix()
	for _, update := range updates {
		outcome := s.db.WithContext(ctx).Model(&Question{}).
			Where("id = ?", update.QuestionID).
			Updates(map[string]any{"display_order": update.DisplayOrder, "updated_at_s": now})
		if outcome.Error != nil {
			s.logError(opQuestionOrder, "batch_update_failed", outcome.Error, zap.String("question_id", update.QuestionID))
			return updated, newServiceError(opQuestionOrder, "batch_update_failed", outcome.Error)
		}
		updated += int(outcome.RowsAffected)
	}

	s.invalidate(cache.TagGlobalCategories, cache.TagAdminCategories, cache.TagAdminQuestionsSummary)
	return updated, nil
}

// ListForOrdering returns the questions of one category and level in
// display order, for the drag-to-reorder admin view.
func (s *QuestionService) ListForOrdering(ctx context.Context, categoryID string, level Level) ([]OrderingEntry, error) {
	var questions []Question
	if err := s.db.WithContext(ctx).
		Where("category_id = ? AND level = ?", categoryID, level).
		Order("display_order ASC, created_at_s ASC").
		Find(&questions).Error; err != nil {
		s.logError(opQuestionOrder, "query_failed", err, zap.String("category_id", categoryID))
		return nil, newServiceError(opQuestionOrder, "query_failed", err)
	}

	entries := make([]OrderingEntry, 0, len(questions))
	for _, question := range questions {
		entries = append(entries, OrderingEntry{
			ID:           question.ID,
			Title:        question.Title,
			DisplayOrder: question.DisplayOrder,
			Level:        question.Level,
		})
	}
	return entries, nil
}

// ResetDisplayOrder renumbers one category and level contiguously from
// one, keeping the existing order with creation time as tiebreaker.
func (s *QuestionService) ResetDisplayOrder(ctx context.Context, categoryID string, level Level) (int, error) {
	var questions []Question
	if err := s.db.WithContext(ctx).
		Where("category_id = ? AND level = ?", categoryID, level).
		Find(&questions).Error; err != nil {
		s.logError(opQuestionOrder, "query_failed", err, zap.String("category_id", categoryID))
		return 0, newServiceError(opQuestionOrder, "query_failed", err)
	}

	sort.SliceStable(questions, func(i, j int) bool {
		if questions[i].DisplayOrder != questions[j].DisplayOrder {
			return questions[i].DisplayOrder < questions[j].DisplayOrder
		}
		return questions[i].CreatedAtSeconds < questions[j].CreatedAtSeconds
	})

	now := s.clock().UTC().Unix()
	for index := range questions {
		if err := s.db.WithContext(ctx).Model(&Question{}).
			Where("id = ?", questions[index].ID).
			Updates(map[string]any{"display_order": index + 1, "updated_at_s": now}).Error; err != nil {
			s.logError(opQuestionOrder, "reset_failed", err, zap.String("question_id", questions[index].ID))
			return 0, newServiceError(opQuestionOrder, "reset_failed", err)
		}
	}

	s.invalidate(cache.TagGlobalCategories, cache.TagAdminCategories, cache.TagAdminQuestionsSummary)
	return len(questions), nil
}

// Counts aggregates catalog size for the admin overview.
func (s *QuestionService) Counts(ctx context.Context) (QuestionCounts, error) {
	counts := QuestionCounts{ByCategory: map[string]int64{}}
	if err := s.db.WithContext(ctx).Model(&Question{}).Count(&counts.Total).Error; err != nil {
		s.logError(opQuestionCounts, "count_failed", err)
		return QuestionCounts{}, newServiceError(opQuestionCounts, "count_failed", err)
	}

	type levelRow struct {
		Level Level
		N     int64
	}
	var levelRows []levelRow
	if err := s.db.WithContext(ctx).Model(&Question{}).
		Select("level, COUNT(*) AS n").
		Group("level").
		Scan(&levelRows).Error; err != nil {
		s.logError(opQuestionCounts, "level_count_failed", err)
		return QuestionCounts{}, newServiceError(opQuestionCounts, "level_count_failed", err)
	}
	for _, row := range levelRows {
		switch row.Level {
		case LevelEasy:
			counts.ByLevel.Easy = row.N
		case LevelMedium:
			counts.ByLevel.Medium = row.N
		case LevelHard:
			counts.ByLevel.Hard = row.N
		}
	}

	type categoryRow struct {
		CategoryName string
		N            int64
	}
	var categoryRows []categoryRow
	if err := s.db.WithContext(ctx).Model(&Question{}).
		Select("category_name, COUNT(*) AS n").
		Group("category_name").
		Scan(&categoryRows).Error; err != nil {
		s.logError(opQuestionCounts, "category_count_failed", err)
		return QuestionCounts{}, newServiceError(opQuestionCounts, "category_count_failed", err)
	}
	for _, row := range categoryRows {
		counts.ByCategory[row.CategoryName] = row.N
	}

	return counts, nil
}

func (s *QuestionService) load(ctx context.Context, operation, id string) (Question, error) {
	var question Question
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&question).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Question{}, &NotFoundError{Resource: "question", ID: id}
	}
	if err != nil {
		s.logError(operation, "select_failed", err, zap.String("question_id", id))
		return Question{}, newServiceError(operation, "select_failed", err)
	}
	return question, nil
}

func (s *QuestionService) titleTaken(ctx context.Context, title, excludeID string) (bool, error) {
	query := s.db.WithContext(ctx).Model(&Question{}).Where("LOWER(title) = LOWER(?)", title)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *QuestionService) maxDisplayOrder(ctx context.Context, categoryID string, level Level) (int, error) {
	var highest *int
	if err := s.db.WithContext(ctx).Model(&Question{}).
		Where("category_id = ? AND level = ?", categoryID, level).
		Select("MAX(display_order)").Scan(&highest).Error; err != nil {
		return 0, err
	}
	if highest == nil {
		return 0, nil
	}
	return *highest, nil
}

func (s *QuestionService) invalidate(tags ...cache.Tag) {
	if s.cache != nil {
		s.cache.Invalidate(tags...)
	}
}

func (s *QuestionService) logError(operation, reason string, err error, fields ...zap.Field) {
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
