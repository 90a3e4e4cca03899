package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/drillhub/backend/internal/cache"
)

type staticIDGenerator struct {
	prefix string
	next   int
}

func (g *staticIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("%s-%d", g.prefix, g.next), nil
}

type stubApproachPurger struct {
	removed map[string]int
	err     error
}

func (p *stubApproachPurger) RemoveAllForQuestion(_ context.Context, questionID string) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	if p.removed == nil {
		p.removed = map[string]int{}
	}
	p.removed[questionID]++
	return 1, nil
}

type stubProgressPurger struct {
	removed map[string]int
	err     error
}

func (p *stubProgressPurger) RemoveQuestionFromAllUsers(_ context.Context, questionID string) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	if p.removed == nil {
		p.removed = map[string]int{}
	}
	p.removed[questionID]++
	return 1, nil
}

func newTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:catalog_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&Category{}, &Question{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testCatalog struct {
	categories *CategoryService
	questions  *QuestionService
	lookup     *Lookup
	cache      *cache.Store
	approaches *stubApproachPurger
	progress   *stubProgressPurger
}

func newTestCatalog(t *testing.T) *testCatalog {
	t.Helper()

	db := newTestDatabase(t)
	store, err := cache.NewStore(cache.StoreConfig{TTL: time.Minute})
	if err != nil {
		t.Fatalf("construct cache: %v", err)
	}
	approachPurger := &stubApproachPurger{}
	progressPurger := &stubProgressPurger{}
	clock := func() time.Time { return time.Unix(1760000000, 0).UTC() }

	categories, err := NewCategoryService(CategoryServiceConfig{
		Database:   db,
		Cache:      store,
		Clock:      clock,
		IDProvider: &staticIDGenerator{prefix: "category"},
		Approaches: approachPurger,
		Progress:   progressPurger,
	})
	if err != nil {
		t.Fatalf("construct category service: %v", err)
	}
	questions, err := NewQuestionService(QuestionServiceConfig{
		Database:   db,
		Cache:      store,
		Clock:      clock,
		IDProvider: &staticIDGenerator{prefix: "question"},
		Categories: categories,
		Approaches: approachPurger,
		Progress:   progressPurger,
	})
	if err != nil {
		t.Fatalf("construct question service: %v", err)
	}

	return &testCatalog{
		categories: categories,
		questions:  questions,
		lookup:     NewLookup(db),
		cache:      store,
		approaches: approachPurger,
		progress:   progressPurger,
	}
}

func mustCreateCategory(t *testing.T, fixture *testCatalog, name string) Category {
	t.Helper()
	category, err := fixture.categories.Create(context.Background(), name, "admin-1")
	if err != nil {
		t.Fatalf("create category %q: %v", name, err)
	}
	return category
}

func mustCreateQuestion(t *testing.T, fixture *testCatalog, categoryID, title string, level Level) Question {
	t.Helper()
	question, err := fixture.questions.Create(context.Background(), QuestionDraft{
		Title:      title,
		Statement:  "statement for " + title,
		CategoryID: categoryID,
		Level:      level,
	}, "admin-1")
	if err != nil {
		t.Fatalf("create question %q: %v", title, err)
	}
	return question
}

func asCatalogNotFound(t *testing.T, err error) *NotFoundError {
	t.Helper()
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	return notFound
}

func asCatalogConflict(t *testing.T, err error) *ConflictError {
	t.Helper()
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	return conflict
}
