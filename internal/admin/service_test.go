package admin

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/drillhub/backend/internal/approaches"
	"github.com/drillhub/backend/internal/cache"
	"github.com/drillhub/backend/internal/catalog"
)

type staticUserCounter struct {
	registered int64
	active     int64
	created    int64
}

func (c staticUserCounter) Count(context.Context) (int64, error) {
	return c.registered, nil
}

func (c staticUserCounter) ActiveSince(context.Context, time.Time) (int64, error) {
	return c.active, nil
}

func (c staticUserCounter) CreatedSince(context.Context, time.Time) (int64, error) {
	return c.created, nil
}

type noopPurger struct{}

func (noopPurger) RemoveAllForQuestion(context.Context, string) (int, error) { return 0, nil }

func (noopPurger) RemoveQuestionFromAllUsers(context.Context, string) (int, error) { return 0, nil }

type sequenceIDProvider struct {
	prefix string
	next   int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("%s-%d", p.prefix, p.next), nil
}

func newTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:admin_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("access sql database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := db.AutoMigrate(&catalog.Category{}, &catalog.Question{}, &approaches.CollectionRecord{}); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}
	return db
}

type testFixture struct {
	service *Service
	cache   *cache.Store
	db      *gorm.DB
}

func newTestFixture(t *testing.T, users UserCounter) testFixture {
	t.Helper()

	db := newTestDatabase(t)
	store, err := cache.NewStore(cache.StoreConfig{TTL: time.Minute})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	clock := func() time.Time { return time.Unix(1760000000, 0).UTC() }

	categories, err := catalog.NewCategoryService(catalog.CategoryServiceConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: &sequenceIDProvider{prefix: "cat"},
		Approaches: noopPurger{},
		Progress:   noopPurger{},
	})
	if err != nil {
		t.Fatalf("new category service: %v", err)
	}
	questions, err := catalog.NewQuestionService(catalog.QuestionServiceConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: &sequenceIDProvider{prefix: "q"},
		Categories: categories,
		Approaches: noopPurger{},
		Progress:   noopPurger{},
	})
	if err != nil {
		t.Fatalf("new question service: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database:   db,
		Cache:      store,
		Clock:      clock,
		Categories: categories,
		Questions:  questions,
		Users:      users,
	})
	if err != nil {
		t.Fatalf("new admin service: %v", err)
	}

	ctx := context.Background()
	category, err := categories.Create(ctx, "Arrays", "admin-1")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	for index, level := range []catalog.Level{catalog.LevelEasy, catalog.LevelEasy, catalog.LevelHard} {
		_, err := questions.Create(ctx, catalog.QuestionDraft{
			Title:      fmt.Sprintf("Question %d", index+1),
			Statement:  "statement",
			CategoryID: category.ID,
			Level:      level,
		}, "admin-1")
		if err != nil {
			t.Fatalf("create question %d: %v", index+1, err)
		}
	}

	record := approaches.CollectionRecord{
		UserID:              "user-1",
		DisplayName:         "User One",
		DocumentJSON:        "{}",
		TotalCount:          2,
		LastModifiedSeconds: 1760000000,
		Version:             1,
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("insert approach record: %v", err)
	}

	return testFixture{service: service, cache: store, db: db}
}

func TestServiceOverviewAggregatesTotals(t *testing.T) {
	fixture := newTestFixture(t, staticUserCounter{registered: 12, active: 4, created: 3})

	overview, err := fixture.service.Overview(context.Background())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}

	if overview.Users.Registered != 12 {
		t.Fatalf("unexpected registered users: %d", overview.Users.Registered)
	}
	if overview.Users.ActiveWeekly != 4 {
		t.Fatalf("unexpected active users: %d", overview.Users.ActiveWeekly)
	}
	if overview.Users.NewWeekly != 3 {
		t.Fatalf("unexpected new users: %d", overview.Users.NewWeekly)
	}
	if overview.Categories != 1 {
		t.Fatalf("unexpected category count: %d", overview.Categories)
	}
	if overview.Questions.Total != 3 {
		t.Fatalf("unexpected question total: %d", overview.Questions.Total)
	}
	if overview.Questions.ByLevel.Easy != 2 || overview.Questions.ByLevel.Hard != 1 {
		t.Fatalf("unexpected level counts: %+v", overview.Questions.ByLevel)
	}
	if overview.Questions.ByCategory["Arrays"] != 3 {
		t.Fatalf("unexpected category breakdown: %+v", overview.Questions.ByCategory)
	}
	if overview.NewQuestionsWeekly != 3 {
		t.Fatalf("unexpected new question count: %d", overview.NewQuestionsWeekly)
	}
	if overview.TotalApproaches != 2 {
		t.Fatalf("unexpected approach total: %d", overview.TotalApproaches)
	}
	if !overview.DatabaseHealthy {
		t.Fatal("expected healthy database")
	}
	if overview.GeneratedAtSecs != 1760000000 {
		t.Fatalf("unexpected generation time: %d", overview.GeneratedAtSecs)
	}
}

func TestServiceOverviewServesCachedSnapshot(t *testing.T) {
	fixture := newTestFixture(t, staticUserCounter{registered: 5, active: 2})

	if _, err := fixture.service.Overview(context.Background()); err != nil {
		t.Fatalf("first overview: %v", err)
	}
	if _, err := fixture.service.Overview(context.Background()); err != nil {
		t.Fatalf("second overview: %v", err)
	}

	if hits := fixture.cache.Stats().Hits; hits == 0 {
		t.Fatal("expected second overview to hit the cache")
	}
}

func TestServiceOverviewReportsUnhealthyDatabase(t *testing.T) {
	fixture := newTestFixture(t, staticUserCounter{registered: 1, active: 1})

	overview, err := fixture.service.Overview(context.Background())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if !overview.DatabaseHealthy {
		t.Fatal("expected healthy database before close")
	}

	sqlDB, err := fixture.db.DB()
	if err != nil {
		t.Fatalf("access sql database: %v", err)
	}
	if err := sqlDB.Close(); err != nil && err != sql.ErrConnDone {
		t.Fatalf("close database: %v", err)
	}

	fixture.cache.Invalidate(cache.TagAdminOverview)
	if _, err := fixture.service.Overview(context.Background()); err == nil {
		t.Fatal("expected overview to fail against a closed database")
	}
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	if _, err := NewService(ServiceConfig{}); err == nil {
		t.Fatal("expected missing database error")
	}
}
