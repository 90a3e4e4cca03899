package approaches

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type staticIDGenerator struct {
	next int
}

func (g *staticIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("approach-%d", g.next), nil
}

type mapQuestionLookup struct {
	titles map[string]string
	err    error
}

func (l *mapQuestionLookup) LookupQuestionTitle(_ context.Context, questionID string) (string, bool, error) {
	if l.err != nil {
		return "", false, l.err
	}
	title, ok := l.titles[questionID]
	return title, ok, nil
}

func newTestRepository(t *testing.T) Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:approaches_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&CollectionRecord{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	repo, err := NewRepository(db)
	if err != nil {
		t.Fatalf("failed to build repository: %v", err)
	}
	return repo
}

func newTestService(t *testing.T, titles map[string]string) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{
		Repository: newTestRepository(t),
		Questions:  &mapQuestionLookup{titles: titles},
		Clock:      func() time.Time { return time.Unix(1760000000, 0).UTC() },
		IDProvider: &staticIDGenerator{},
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service
}

func mustAdd(t *testing.T, service *Service, userID, questionID string, draft Draft) Approach {
	t.Helper()
	approach, err := service.Add(context.Background(), userID, "Test User", questionID, draft)
	if err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}
	return approach
}

func asQuotaError(t *testing.T, err error) *QuotaExceededError {
	t.Helper()
	var quotaErr *QuotaExceededError
	if !errors.As(err, &quotaErr) {
		t.Fatalf("expected quota error, got %v", err)
	}
	return quotaErr
}

func asNotFoundError(t *testing.T, err error) *NotFoundError {
	t.Helper()
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	return notFound
}

func repeat(char byte, size int) string {
	out := make([]byte, size)
	for i := range out {
		out[i] = char
	}
	return string(out)
}
