// Package admin aggregates the operational overview served to
// administrators.
package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/drillhub/backend/internal/approaches"
	"github.com/drillhub/backend/internal/cache"
	"github.com/drillhub/backend/internal/catalog"
)

const (
	activeUserWindow = 7 * 24 * time.Hour

	opOverview = "admin.overview"
)

var (
	errMissingDatabase = errors.New("database handle must be provided")
	errMissingCatalog  = errors.New("catalog services must be provided")
	errMissingUsers    = errors.New("user counter must be provided")

	noOpLogger = zap.NewNop()
)

// ServiceError reports an admin aggregation failure with a stable code.
type ServiceError struct {
	code string
	err  error
}

func newServiceError(operation string, reason string, cause error) *ServiceError {
	return &ServiceError{code: operation + "." + reason, err: cause}
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error { return e.err }

// Code returns the stable error code.
func (e *ServiceError) Code() string { return e.code }

// UserCounter reports registered and recently active account totals.
type UserCounter interface {
	Count(ctx context.Context) (int64, error)
	ActiveSince(ctx context.Context, cutoff time.Time) (int64, error)
	CreatedSince(ctx context.Context, cutoff time.Time) (int64, error)
}

// UserTotals summarizes the account population.
type UserTotals struct {
	Registered   int64 `json:"registered"`
	ActiveWeekly int64 `json:"active_weekly"`
	NewWeekly    int64 `json:"new_weekly"`
}

// Overview is the admin dashboard snapshot.
type Overview struct {
	Users              UserTotals             `json:"users"`
	Categories         int64                  `json:"categories"`
	Questions          catalog.QuestionCounts `json:"questions"`
	NewQuestionsWeekly int64                  `json:"new_questions_weekly"`
	TotalApproaches    int64                  `json:"total_approaches"`
	DatabaseHealthy    bool                   `json:"database_healthy"`
	GeneratedAtSecs    int64                  `json:"generated_at_s"`
}

// ServiceConfig carries the dependencies required to construct a
// Service.
type ServiceConfig struct {
	Database   *gorm.DB
	Cache      *cache.Store
	Clock      func() time.Time
	Categories *catalog.CategoryService
	Questions  *catalog.QuestionService
	Users      UserCounter
	Logger     *zap.Logger
}

// Service builds the cached admin overview.
type Service struct {
	db         *gorm.DB
	cache      *cache.Store
	now        func() time.Time
	categories *catalog.CategoryService
	questions  *catalog.QuestionService
	users      UserCounter
	logger     *zap.Logger
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Categories == nil || cfg.Questions == nil {
		return nil, errMissingCatalog
	}
	if cfg.Users == nil {
		return nil, errMissingUsers
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
		now:        clock,
		categories: cfg.Categories,
		questions:  cfg.Questions,
		users:      cfg.Users,
		logger:     logger,
	}, nil
}

// Overview assembles the dashboard snapshot, serving a cached copy when
// one is fresh.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	load := func(ctx context.Context) (any, error) {
		return s.buildOverview(ctx)
	}

	if s.cache == nil {
		value, err := load(ctx)
		if err != nil {
			s.logError(opOverview, "build_failed", err)
			return Overview{}, newServiceError(opOverview, "build_failed", err)
		}
		return value.(Overview), nil
	}

	value, err := s.cache.GetOrLoad(ctx, cache.TagAdminOverview, "all", load)
	if err != nil {
		s.logError(opOverview, "build_failed", err)
		return Overview{}, newServiceError(opOverview, "build_failed", err)
	}
	return value.(Overview), nil
}

func (s *Service) buildOverview(ctx context.Context) (Overview, error) {
	now := s.now().UTC()

	cutoff := now.Add(-activeUserWindow)

	registered, err := s.users.Count(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("count users: %w", err)
	}
	active, err := s.users.ActiveSince(ctx, cutoff)
	if err != nil {
		return Overview{}, fmt.Errorf("count active users: %w", err)
	}
	newUsers, err := s.users.CreatedSince(ctx, cutoff)
	if err != nil {
		return Overview{}, fmt.Errorf("count new users: %w", err)
	}
	categoryCount, err := s.categories.Count(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("count categories: %w", err)
	}
	questionCounts, err := s.questions.Counts(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("count questions: %w", err)
	}

	var newQuestions int64
	err = s.db.WithContext(ctx).Model(&catalog.Question{}).
		Where("created_at_s >= ?", cutoff.Unix()).
		Count(&newQuestions).Error
	if err != nil {
		return Overview{}, fmt.Errorf("count new questions: %w", err)
	}

	var totalApproaches int64
	err = s.db.WithContext(ctx).Model(&approaches.CollectionRecord{}).
		Select("COALESCE(SUM(total_count), 0)").
		Scan(&totalApproaches).Error
	if err != nil {
		return Overview{}, fmt.Errorf("sum approaches: %w", err)
	}

	return Overview{
		Users: UserTotals{
			Registered:   registered,
			ActiveWeekly: active,
			NewWeekly:    newUsers,
		},
		Categories:         categoryCount,
		Questions:          questionCounts,
		NewQuestionsWeekly: newQuestions,
		TotalApproaches:    totalApproaches,
		DatabaseHealthy:    s.databaseHealthy(ctx),
		GeneratedAtSecs:    now.Unix(),
	}, nil
}

func (s *Service) databaseHealthy(ctx context.Context) bool {
	sqlDB, err := s.db.DB()
	if err != nil {
		s.logError(opOverview, "database_handle", err)
		return false
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		s.logError(opOverview, "database_ping", err)
		return false
	}
	return true
}

func (s *Service) logError(operation string, reason string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}, fields...)
	s.logger.Error("admin service operation failed", allFields...)
}
