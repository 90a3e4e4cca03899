package progress

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/drillhub/backend/internal/cache"
	"github.com/drillhub/backend/internal/catalog"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingResolver = errors.New("question resolver is required")
	noOpLogger         = zap.NewNop()

	// ErrAlreadySolved indicates a mark request for a question the user
	// already solved.
	ErrAlreadySolved = errors.New("progress: question already marked as solved")
	// ErrNotSolved indicates an unmark request for a question the user
	// never solved.
	ErrNotSolved = errors.New("progress: question not solved by user")
)

const (
	opProgressNew      = "progress.service.new"
	opMarkSolved       = "progress.mark_solved"
	opUnmarkSolved     = "progress.unmark_solved"
	opIsSolved         = "progress.is_solved"
	opSolvedMap        = "progress.solved_map"
	opStats            = "progress.stats"
	opCategoryProgress = "progress.categories"
	opRemoveQuestion   = "progress.remove_question_from_all_users"

	recentWindow = 7 * 24 * time.Hour
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

// QuestionResolver answers point reads for question facts. Implemented
// by the catalog lookup.
type QuestionResolver interface {
	LookupQuestionFacts(ctx context.Context, questionID string) (catalog.QuestionFacts, bool, error)
}

// ApproachCounter reports how many approaches a user holds for a
// question. Implemented by the approaches service.
type ApproachCounter interface {
	ApproachCount(ctx context.Context, userID, questionID string) (int, error)
}

// CatalogCounter aggregates question totals. Implemented by the catalog
// question service.
type CatalogCounter interface {
	Counts(ctx context.Context) (catalog.QuestionCounts, error)
}

// LevelProgress pairs solved counts with catalog totals per difficulty.
type LevelProgress struct {
	EasyTotal    int `json:"easy_total"`
	EasySolved   int `json:"easy_solved"`
	MediumTotal  int `json:"medium_total"`
	MediumSolved int `json:"medium_solved"`
	HardTotal    int `json:"hard_total"`
	HardSolved   int `json:"hard_solved"`
}

// RecentSolved is one row of the recent activity listing.
type RecentSolved struct {
	QuestionID      string        `json:"question_id"`
	Title           string        `json:"title"`
	CategoryName    string        `json:"category_name"`
	Level           catalog.Level `json:"level"`
	SolvedAtSeconds int64         `json:"solved_at_s"`
	ApproachCount   int           `json:"approach_count"`
}

// MeStats is the complete profile-page payload: overall totals, per-level
// breakdown, the week's activity count, and one page of recent solves.
type MeStats struct {
	TotalQuestions     int            `json:"total_questions"`
	TotalSolved        int            `json:"total_solved"`
	ProgressPercentage float64        `json:"progress_percentage"`
	ByLevel            LevelProgress  `json:"progress_by_level"`
	RecentSolvedCount  int            `json:"recent_solved_count"`
	RecentSolved       []RecentSolved `json:"recent_solved_questions"`
	Page               int            `json:"page"`
	PageSize           int            `json:"page_size"`
	TotalElements      int            `json:"total_elements"`
}

// CategoryProgress lists a user's solves within one category.
type CategoryProgress struct {
	CategoryName    string               `json:"category_name"`
	SolvedQuestions []CategorySolvedItem `json:"solved_questions"`
	TotalSolved     int                  `json:"total_solved"`
}

// CategorySolvedItem is one solve within a category listing.
type CategorySolvedItem struct {
	QuestionID      string `json:"question_id"`
	SolvedAtSeconds int64  `json:"solved_at_s"`
}

// ServiceConfig carries the dependencies required to construct a Service.
type ServiceConfig struct {
	Database   *gorm.DB
	Cache      *cache.Store
	Clock      func() time.Time
	Questions  QuestionResolver
	Approaches ApproachCounter
	Catalog    CatalogCounter
	Logger     *zap.Logger
}

// Service owns the per-user solved records.
type Service struct {
	db         *gorm.DB
	cache      *cache.Store
	clock      func() time.Time
	questions  QuestionResolver
	approaches ApproachCounter
	catalog    CatalogCounter
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opProgressNew, "missing_database", errMissingDatabase)
	}
	if cfg.Questions == nil {
		return nil, newServiceError(opProgressNew, "missing_question_resolver", errMissingResolver)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		cache:      cfg.Cache,
		clock:      clock,
		questions:  cfg.Questions,
		approaches: cfg.Approaches,
		catalog:    cfg.Catalog,
		logger:     logger,
	}, nil
}

// MarkSolved records a solve, denormalizing the question's facts into the
// user's record. Solving the same question twice is rejected.
func (s *Service) MarkSolved(ctx context.Context, userID, questionID string) (SolvedQuestion, error) {
	facts, found, err := s.questions.LookupQuestionFacts(ctx, questionID)
	if err != nil {
		s.logError(opMarkSolved, "question_lookup_failed", err, zap.String("question_id", questionID))
		return SolvedQuestion{}, newServiceError(opMarkSolved, "question_lookup_failed", err)
	}
	if !found {
		return SolvedQuestion{}, &catalog.NotFoundError{Resource: "question", ID: questionID}
	}

	record, err := s.loadOrNew(ctx, opMarkSolved, userID)
	if err != nil {
		return SolvedQuestion{}, err
	}
	solved, err := record.Solved()
	if err != nil {
		s.logError(opMarkSolved, "decode_failed", err, zap.String("user_id", userID))
		return SolvedQuestion{}, newServiceError(opMarkSolved, "decode_failed", err)
	}
	if _, already := solved[questionID]; already {
		return SolvedQuestion{}, ErrAlreadySolved
	}

	entry := SolvedQuestion{
		QuestionID:      questionID,
		Title:           facts.Title,
		CategoryName:    facts.CategoryName,
		Level:           facts.Level,
		SolvedAtSeconds: s.clock().UTC().Unix(),
	}
	solved[questionID] = entry
	if err := record.SetSolved(solved); err != nil {
		s.logError(opMarkSolved, "encode_failed", err, zap.String("user_id", userID))
		return SolvedQuestion{}, newServiceError(opMarkSolved, "encode_failed", err)
	}
	if err := s.db.WithContext(ctx).Save(record).Error; err != nil {
		s.logError(opMarkSolved, "save_failed", err, zap.String("user_id", userID))
		return SolvedQuestion{}, newServiceError(opMarkSolved, "save_failed", err)
	}

	s.invalidateUser(userID)
	return entry, nil
}

// UnmarkSolved removes a solve. Unmarking a question the user never
// solved is rejected.
func (s *Service) UnmarkSolved(ctx context.Context, userID, questionID string) error {
	record, err := s.load(ctx, opUnmarkSolved, userID)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrNotSolved
	}
	solved, err := record.Solved()
	if err != nil {
		s.logError(opUnmarkSolved, "decode_failed", err, zap.String("user_id", userID))
		return newServiceError(opUnmarkSolved, "decode_failed", err)
	}
	if _, ok := solved[questionID]; !ok {
		return ErrNotSolved
	}

	delete(solved, questionID)
	if err := record.SetSolved(solved); err != nil {
		s.logError(opUnmarkSolved, "encode_failed", err, zap.String("user_id", userID))
		return newServiceError(opUnmarkSolved, "encode_failed", err)
	}
	if err := s.db.WithContext(ctx).Save(record).Error; err != nil {
		s.logError(opUnmarkSolved, "save_failed", err, zap.String("user_id", userID))
		return newServiceError(opUnmarkSolved, "save_failed", err)
	}

	s.invalidateUser(userID)
	return nil
}

// IsSolved reports whether the user has solved the question. Users with
// no record have solved nothing.
func (s *Service) IsSolved(ctx context.Context, userID, questionID string) (bool, error) {
	record, err := s.load(ctx, opIsSolved, userID)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}
	solved, err := record.Solved()
	if err != nil {
		s.logError(opIsSolved, "decode_failed", err, zap.String("user_id", userID))
		return false, newServiceError(opIsSolved, "decode_failed", err)
	}
	_, ok := solved[questionID]
	return ok, nil
}

// SolvedMap returns the user's full solved record keyed by question id.
func (s *Service) SolvedMap(ctx context.Context, userID string) (map[string]SolvedQuestion, error) {
	record, err := s.load(ctx, opSolvedMap, userID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return map[string]SolvedQuestion{}, nil
	}
	solved, err := record.Solved()
	if err != nil {
		s.logError(opSolvedMap, "decode_failed", err, zap.String("user_id", userID))
		return nil, newServiceError(opSolvedMap, "decode_failed", err)
	}
	return solved, nil
}

// Stats assembles the profile-page payload, cached per user and page
// until the user's next progress mutation. Page is 1-based.
func (s *Service) Stats(ctx context.Context, userID string, page, pageSize int) (MeStats, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	load := func(ctx context.Context) (any, error) {
		return s.buildStats(ctx, userID, page, pageSize)
	}

	if s.cache == nil {
		value, err := load(ctx)
		if err != nil {
			s.logError(opStats, "build_failed", err, zap.String("user_id", userID))
			return MeStats{}, newServiceError(opStats, "build_failed", err)
		}
		return value.(MeStats), nil
	}

	key := fmt.Sprintf("%s_page_%d_size_%d", userID, page, pageSize)
	value, err := s.cache.GetOrLoad(ctx, cache.TagUserStats, key, load)
	if err != nil {
		s.logError(opStats, "build_failed", err, zap.String("user_id", userID))
		return MeStats{}, newServiceError(opStats, "build_failed", err)
	}
	return value.(MeStats), nil
}

func (s *Service) buildStats(ctx context.Context, userID string, page, pageSize int) (MeStats, error) {
	solved, err := s.SolvedMap(ctx, userID)
	if err != nil {
		return MeStats{}, err
	}

	stats := MeStats{
		TotalSolved:   len(solved),
		Page:          page,
		PageSize:      pageSize,
		TotalElements: len(solved),
		RecentSolved:  []RecentSolved{},
	}

	if s.catalog != nil {
		counts, err := s.catalog.Counts(ctx)
		if err != nil {
			return MeStats{}, err
		}
		stats.TotalQuestions = int(counts.Total)
		stats.ByLevel.EasyTotal = int(counts.ByLevel.Easy)
		stats.ByLevel.MediumTotal = int(counts.ByLevel.Medium)
		stats.ByLevel.HardTotal = int(counts.ByLevel.Hard)
		if counts.Total > 0 {
			stats.ProgressPercentage = float64(len(solved)) * 100.0 / float64(counts.Total)
		}
	}

	cutoff := s.clock().UTC().Add(-recentWindow).Unix()
	entries := make([]SolvedQuestion, 0, len(solved))
	for _, entry := range solved {
		entries = append(entries, entry)
		switch entry.Level {
		case catalog.LevelEasy:
			stats.ByLevel.EasySolved++
		case catalog.LevelMedium:
			stats.ByLevel.MediumSolved++
		case catalog.LevelHard:
			stats.ByLevel.HardSolved++
		}
		if entry.SolvedAtSeconds >= cutoff {
			stats.RecentSolvedCount++
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].SolvedAtSeconds != entries[j].SolvedAtSeconds {
			return entries[i].SolvedAtSeconds > entries[j].SolvedAtSeconds
		}
		return entries[i].QuestionID < entries[j].QuestionID
	})

	start := (page - 1) * pageSize
	if start < len(entries) {
		end := start + pageSize
		if end > len(entries) {
			end = len(entries)
		}
		for _, entry := range entries[start:end] {
			row := RecentSolved{
				QuestionID:      entry.QuestionID,
				Title:           entry.Title,
				CategoryName:    entry.CategoryName,
				Level:           entry.Level,
				SolvedAtSeconds: entry.SolvedAtSeconds,
			}
			if s.approaches != nil {
				count, err := s.approaches.ApproachCount(ctx, userID, entry.QuestionID)
				if err != nil {
					return MeStats{}, err
				}
				row.ApproachCount = count
			}
			stats.RecentSolved = append(stats.RecentSolved, row)
		}
	}

	return stats, nil
}

// CategoriesProgress groups the user's solves by category name, cached
// per user until the next progress or catalog mutation.
func (s *Service) CategoriesProgress(ctx context.Context, userID string) (map[string]CategoryProgress, error) {
	load := func(ctx context.Context) (any, error) {
		solved, err := s.SolvedMap(ctx, userID)
		if err != nil {
			return nil, err
		}

		grouped := map[string]CategoryProgress{}
		for _, entry := range solved {
			bucket := grouped[entry.CategoryName]
			bucket.CategoryName = entry.CategoryName
			bucket.SolvedQuestions = append(bucket.SolvedQuestions, CategorySolvedItem{
				QuestionID:      entry.QuestionID,
				SolvedAtSeconds: entry.SolvedAtSeconds,
			})
			bucket.TotalSolved = len(bucket.SolvedQuestions)
			grouped[entry.CategoryName] = bucket
		}
		for name, bucket := range grouped {
			sort.SliceStable(bucket.SolvedQuestions, func(i, j int) bool {
				return bucket.SolvedQuestions[i].SolvedAtSeconds > bucket.SolvedQuestions[j].SolvedAtSeconds
			})
			grouped[name] = bucket
		}
		return grouped, nil
	}

	if s.cache == nil {
		value, err := load(ctx)
		if err != nil {
			s.logError(opCategoryProgress, "build_failed", err, zap.String("user_id", userID))
			return nil, newServiceError(opCategoryProgress, "build_failed", err)
		}
		return value.(map[string]CategoryProgress), nil
	}

	value, err := s.cache.GetOrLoad(ctx, cache.TagCategoriesProgress, userID, load)
	if err != nil {
		s.logError(opCategoryProgress, "build_failed", err, zap.String("user_id", userID))
		return nil, newServiceError(opCategoryProgress, "build_failed", err)
	}
	return value.(map[string]CategoryProgress), nil
}

// RemoveQuestionFromAllUsers strips a deleted question from every user's
// solved record. Returns the number of records it touched.
func (s *Service) RemoveQuestionFromAllUsers(ctx context.Context, questionID string) (int, error) {
	var records []Record
	if err := s.db.WithContext(ctx).Find(&records).Error; err != nil {
		s.logError(opRemoveQuestion, "load_all_failed", err, zap.String("question_id", questionID))
		return 0, newServiceError(opRemoveQuestion, "load_all_failed", err)
	}

	removed := 0
	for i := range records {
		record := &records[i]
		solved, err := record.Solved()
		if err != nil {
			s.logError(opRemoveQuestion, "decode_failed", err, zap.String("user_id", record.UserID))
			continue
		}
		if _, ok := solved[questionID]; !ok {
			continue
		}

		delete(solved, questionID)
		if err := record.SetSolved(solved); err != nil {
			s.logError(opRemoveQuestion, "encode_failed", err, zap.String("user_id", record.UserID))
			continue
		}
		if err := s.db.WithContext(ctx).Save(record).Error; err != nil {
			s.logError(opRemoveQuestion, "save_failed", err, zap.String("user_id", record.UserID))
			continue
		}
		removed++
		s.invalidateUser(record.UserID)
	}
	return removed, nil
}

func (s *Service) load(ctx context.Context, operation, userID string) (*Record, error) {
	var record Record
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logError(operation, "select_failed", err, zap.String("user_id", userID))
		return nil, newServiceError(operation, "select_failed", err)
	}
	return &record, nil
}

func (s *Service) loadOrNew(ctx context.Context, operation, userID string) (*Record, error) {
	record, err := s.load(ctx, operation, userID)
	if err != nil {
		return nil, err
	}
	if record != nil {
		return record, nil
	}
	return &Record{
		UserID:           userID,
		SolvedJSON:       "{}",
		CreatedAtSeconds: s.clock().UTC().Unix(),
	}, nil
}

func (s *Service) invalidateUser(userID string) {
	if s.cache == nil {
		return
	}
	// Stats keys embed paging, so the whole region goes; the categories
	// region is keyed by bare user id.
	s.cache.Invalidate(cache.TagUserStats)
	s.cache.InvalidateKey(cache.TagCategoriesProgress, userID)
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("progress service error", attrs...)
}
