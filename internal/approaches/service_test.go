package approaches

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestServiceAddDenormalizesTitleAndReportsUsage(t *testing.T) {
	service := newTestService(t, map[string]string{"q1": "Two Sum"})

	approach := mustAdd(t, service, "user-1", "q1", Draft{TextContent: repeat('x', 10)})
	if approach.ContentSize != 10 {
		t.Fatalf("expected content size 10, got %d", approach.ContentSize)
	}
	if approach.QuestionTitle != "Two Sum" {
		t.Fatalf("expected denormalized title, got %q", approach.QuestionTitle)
	}
	if approach.CodeLanguage != "java" {
		t.Fatalf("expected default code language, got %q", approach.CodeLanguage)
	}
	if approach.ID == "" {
		t.Fatalf("expected generated id")
	}

	usage, err := service.Usage(context.Background(), "user-1", "q1")
	if err != nil {
		t.Fatalf("unexpected usage error: %v", err)
	}
	if usage.UsedBytes != 10 || usage.RemainingBytes != 15350 {
		t.Fatalf("unexpected usage bytes: %+v", usage)
	}
	if usage.ApproachCount != 1 || usage.RemainingSlots != 2 {
		t.Fatalf("unexpected usage slots: %+v", usage)
	}
}

func TestServiceAddRejectsUnknownQuestion(t *testing.T) {
	service := newTestService(t, map[string]string{})

	_, err := service.Add(context.Background(), "user-1", "Test User", "ghost", Draft{TextContent: "abc"})
	notFound := asNotFoundError(t, err)
	if notFound.Resource != "question" || notFound.ID != "ghost" {
		t.Fatalf("unexpected not-found details: %+v", notFound)
	}

	usage, err := service.Usage(context.Background(), "user-1", "ghost")
	if err != nil {
		t.Fatalf("unexpected usage error: %v", err)
	}
	if usage.UsedBytes != 0 || usage.RemainingBytes != 15360 || usage.RemainingSlots != 3 {
		t.Fatalf("expected zero-usage shape for untouched user, got %+v", usage)
	}
}

func TestServiceAddSlotLimitLeavesStoredStateUntouched(t *testing.T) {
	service := newTestService(t, map[string]string{"q1": "Two Sum"})
	ctx := context.Background()

	for i := 0; i < MaxApproachesPerQuestion; i++ {
		mustAdd(t, service, "user-1", "q1", Draft{TextContent: repeat('x', 100)})
	}

	_, err := service.Add(ctx, "user-1", "Test User", "q1", Draft{TextContent: "one more"})
	quotaErr := asQuotaError(t, err)
	if quotaErr.Kind != QuotaKindSlots {
		t.Fatalf("expected slot limit kind, got %s", quotaErr.Kind)
	}

	listed, err := service.ListForQuestion(ctx, "user-1", "q1")
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 stored approaches, got %d", len(listed))
	}
}

func TestServiceAddSizeLimitReportsRemainingCapacity(t *testing.T) {
	service := newTestService(t, map[string]string{"q1": "Two Sum"})
	ctx := context.Background()

	mustAdd(t, service, "user-1", "q1", Draft{TextContent: repeat('x', 7000)})
	mustAdd(t, service, "user-1", "q1", Draft{TextContent: repeat('x', 5000)})
	mustAdd(t, service, "user-1", "q1", Draft{TextContent: repeat('x', 3000)})

	_, err := service.Add(ctx, "user-1", "Test User", "q1", Draft{TextContent: repeat('x', 500)})
	quotaErr := asQuotaError(t, err)
	if quotaErr.Kind != QuotaKindSlots {
		t.Fatalf("three slots are used, slot limit fires first: got %s", quotaErr.Kind)
	}
}

func TestServiceAddSizeLimitWithFreeSlot(t *testing.T) {
	service := newTestService(t, map[string]string{"q1": "Two Sum"})
	ctx := context.Background()

	mustAdd(t, service, "user-1", "q1", Draft{TextContent: repeat('x', 8000)})
	mustAdd(t, service, "user-1", "q1", Draft{TextContent: repeat('x', 7000)})

	_, err := service.Add(ctx, "user-1", "Test User", "q1", Draft{TextContent: repeat('x', 500)})
	quotaErr := asQuotaError(t, err)
	if quotaErr.Kind != QuotaKindSize {
		t.Fatalf("expected size limit kind, got %s", quotaErr.Kind)
	}
	if quotaErr.RemainingBytes != 360 {
		t.Fatalf("expected 360 remaining bytes, got %d", quotaErr.RemainingBytes)
	}
	if quotaErr.AttemptedBytes != 500 {
		t.Fatalf("expected attempted 500 bytes, got %d", quotaErr.AttemptedBytes)
	}

	usage, err := service.Usage(ctx, "user-1", "q1")
	if err != nil {
		t.Fatalf("unexpected usage error: %v", err)
	}
	if usage.UsedBytes != 15000 {
		t.Fatalf("stored state must be unchanged after rejection, got %d bytes", usage.UsedBytes)
	}
}

func TestServiceUpdateRollsBackPersistedContent(t *testing.T) {
	service := newTestService(t, map[string]string{"q1": "Two Sum"})
	ctx := context.Background()

	created := mustAdd(t, service, "user-1", "q1", Draft{TextContent: repeat('t', 100)})

	oversized := repeat('x', 20000)
	_, err := service.Update(ctx, "user-1", "q1", created.ID, ContentPatch{TextContent: &oversized})
	quotaErr := asQuotaError(t, err)
	if quotaErr.Kind != QuotaKindSize {
		t.Fatalf("expected size limit kind, got %s", quotaErr.Kind)
	}

	stored, err := service.Detail(ctx, "user-1", "q1", created.ID)
	if err != nil {
		t.Fatalf("unexpected detail error: %v", err)
	}
	if stored.TextContent != created.TextContent {
		t.Fatalf("stored text must be byte-identical after rejection")
	}
	if stored.ContentSize != 100 {
		t.Fatalf("expected content size 100 after rejection, got %d", stored.ContentSize)
	}
}

func TestServiceUpdateCommitsWithinBudget(t *testing.T) {
	service := newTestService(t, map[string]string{"q1": "Two Sum"})
	ctx := context.Background()

	created := mustAdd(t, service, "user-1", "q1", Draft{TextContent: repeat('t', 100), CodeContent: repeat('c', 50)})

	newCode := repeat('d', 70)
	newLanguage := "python"
	updated, err := service.Update(ctx, "user-1", "q1", created.ID, ContentPatch{
		CodeContent:  &newCode,
		CodeLanguage: &newLanguage,
	})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.TextContent != created.TextContent {
		t.Fatalf("unset text field must keep its value")
	}
	if updated.CodeContent != newCode || updated.CodeLanguage != "python" {
		t.Fatalf("patched fields must be applied: %+v", updated)
	}
	if updated.ContentSize != 170 {
		t.Fatalf("expected recomputed size 170, got %d", updated.ContentSize)
	}
}

func TestServiceRemoveIsStrict(t *testing.T) {
	service := newTestService(t, map[string]string{"q1": "Two Sum"})
	ctx := context.Background()

	if err := service.Remove(ctx, "user-1", "q1", "missing"); err == nil {
		t.Fatalf("expected not-found error for user with no collection")
	} else {
		asNotFoundError(t, err)
	}

	created := mustAdd(t, service, "user-1", "q1", Draft{TextContent: "abc"})
	if err := service.Remove(ctx, "user-1", "q1", "missing"); err == nil {
		t.Fatalf("expected not-found error for unknown approach id")
	} else {
		asNotFoundError(t, err)
	}

	if err := service.Remove(ctx, "user-1", "q1", created.ID); err != nil {
		t.Fatalf("unexpected remove error: %v", err)
	}

	// Removing the last approach deletes the whole collection row.
	listed, err := service.ListAllForUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected empty listing after final removal")
	}
	if err := service.Remove(ctx, "user-1", "q1", created.ID); err == nil {
		t.Fatalf("expected not-found error after collection deletion")
	}
}

func TestServiceListAllForUserSortsAcrossQuestions(t *testing.T) {
	service := newTestService(t, map[string]string{"q1": "Two Sum", "q2": "Three Sum"})
	ctx := context.Background()

	first := mustAdd(t, service, "user-1", "q1", Draft{TextContent: "first"})
	second := mustAdd(t, service, "user-1", "q2", Draft{TextContent: "second"})

	flat, err := service.ListAllForUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(flat) != 2 {
		t.Fatalf("expected 2 approaches, got %d", len(flat))
	}
	// The fixed clock gives identical creation times, so the id tiebreaker
	// decides the order.
	if flat[0].ID != first.ID || flat[1].ID != second.ID {
		t.Fatalf("unexpected order: %s %s", flat[0].ID, flat[1].ID)
	}
}

func TestServiceRemoveAllForQuestionSweepsEveryUser(t *testing.T) {
	service := newTestService(t, map[string]string{"q1": "Two Sum", "q2": "Three Sum"})
	ctx := context.Background()

	mustAdd(t, service, "user-1", "q1", Draft{TextContent: "a"})
	mustAdd(t, service, "user-1", "q2", Draft{TextContent: "b"})
	mustAdd(t, service, "user-2", "q1", Draft{TextContent: "c"})
	mustAdd(t, service, "user-2", "q1", Draft{TextContent: "d"})

	removed, err := service.RemoveAllForQuestion(ctx, "q1")
	if err != nil {
		t.Fatalf("unexpected sweep error: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed approaches, got %d", removed)
	}

	remaining, err := service.ListAllForUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(remaining) != 1 || remaining[0].QuestionID != "q2" {
		t.Fatalf("user-1 must keep only the q2 approach: %+v", remaining)
	}

	// user-2 lost every approach, so their collection row is gone and usage
	// reports the zero shape.
	usage, err := service.Usage(ctx, "user-2", "q1")
	if err != nil {
		t.Fatalf("unexpected usage error: %v", err)
	}
	if usage.UsedBytes != 0 || usage.ApproachCount != 0 {
		t.Fatalf("expected zero usage for swept user, got %+v", usage)
	}

	again, err := service.RemoveAllForQuestion(ctx, "q1")
	if err != nil {
		t.Fatalf("unexpected sweep error on retry: %v", err)
	}
	if again != 0 {
		t.Fatalf("retrying the sweep must be a no-op, got %d", again)
	}
}

func TestRepositorySaveDetectsVersionConflict(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Unix(1760000000, 0).UTC()

	collection := NewCollection("user-1", "Test User")
	if err := collection.Add("q1", testApproach("a", "q1", 10, 0), now); err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}
	if err := repo.Save(ctx, collection); err != nil {
		t.Fatalf("unexpected initial save error: %v", err)
	}

	stale, err := repo.Load(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	fresh, err := repo.Load(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	if err := fresh.Add("q1", testApproach("b", "q1", 10, 0), now); err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}
	if err := repo.Save(ctx, fresh); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	if err := stale.Add("q1", testApproach("c", "q1", 10, 0), now); err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}
	if err := repo.Save(ctx, stale); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	if err := repo.Delete(ctx, stale); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected version conflict on stale delete, got %v", err)
	}
}

func TestRepositorySaveMapsDuplicateInsertToVersionConflict(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Unix(1760000000, 0).UTC()

	first := NewCollection("user-1", "Test User")
	if err := first.Add("q1", testApproach("a", "q1", 10, 0), now); err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("unexpected initial save error: %v", err)
	}

	// A second version-0 collection for the same user races the first insert
	// and must surface as a version conflict, not a raw constraint error.
	racing := NewCollection("user-1", "Test User")
	if err := racing.Add("q1", testApproach("b", "q1", 10, 0), now); err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}
	if err := repo.Save(ctx, racing); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected version conflict on duplicate insert, got %v", err)
	}
}
