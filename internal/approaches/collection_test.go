package approaches

import (
	"testing"
	"time"
)

func testApproach(id, questionID string, textSize, codeSize int) Approach {
	approach := Approach{
		ID:               id,
		QuestionID:       questionID,
		QuestionTitle:    "Two Sum",
		TextContent:      repeat('t', textSize),
		CodeContent:      repeat('c', codeSize),
		CodeLanguage:     "go",
		CreatedAtSeconds: 1760000000,
		UpdatedAtSeconds: 1760000000,
	}
	approach.recomputeSize()
	return approach
}

func TestCollectionAddEnforcesSlotLimit(t *testing.T) {
	collection := NewCollection("user-1", "Test User")
	now := time.Unix(1760000000, 0).UTC()

	for i := 0; i < MaxApproachesPerQuestion; i++ {
		if err := collection.Add("q1", testApproach(string(rune('a'+i)), "q1", 100, 0), now); err != nil {
			t.Fatalf("unexpected add error: %v", err)
		}
	}
	if collection.TotalCount != 3 {
		t.Fatalf("expected total count 3, got %d", collection.TotalCount)
	}

	err := collection.Add("q1", testApproach("d", "q1", 1, 0), now)
	quotaErr := asQuotaError(t, err)
	if quotaErr.Kind != QuotaKindSlots {
		t.Fatalf("expected slot limit kind, got %s", quotaErr.Kind)
	}
	if quotaErr.UsedSlots != 3 || quotaErr.MaxSlots != 3 {
		t.Fatalf("unexpected slot numbers: %+v", quotaErr)
	}
	if collection.TotalCount != 3 || len(collection.ByQuestion["q1"]) != 3 {
		t.Fatalf("collection must be unchanged after rejection")
	}
}

func TestCollectionAddEnforcesCombinedSizeLimit(t *testing.T) {
	collection := NewCollection("user-1", "Test User")
	now := time.Unix(1760000000, 0).UTC()

	if err := collection.Add("q1", testApproach("a", "q1", 10000, 0), now); err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}
	if err := collection.Add("q1", testApproach("b", "q1", 5000, 0), now); err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}

	err := collection.Add("q1", testApproach("c", "q1", 500, 0), now)
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
	if collection.TotalSizeForQuestion("q1") != 15000 {
		t.Fatalf("collection size must be unchanged after rejection")
	}
	if collection.TotalCount != 2 {
		t.Fatalf("collection count must be unchanged after rejection")
	}
}

func TestCollectionAddAllowsExactBudget(t *testing.T) {
	collection := NewCollection("user-1", "Test User")
	now := time.Unix(1760000000, 0).UTC()

	if err := collection.Add("q1", testApproach("a", "q1", 15000, 0), now); err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}
	if err := collection.Add("q1", testApproach("b", "q1", 360, 0), now); err != nil {
		t.Fatalf("an approach filling the budget exactly must be accepted: %v", err)
	}
	if collection.TotalSizeForQuestion("q1") != MaxCombinedBytesPerQuestion {
		t.Fatalf("expected question to sit exactly at the byte budget")
	}
}

func TestCollectionUpdateRollsBackOnSizeViolation(t *testing.T) {
	collection := NewCollection("user-1", "Test User")
	now := time.Unix(1760000000, 0).UTC()
	original := testApproach("a", "q1", 60, 40)
	if err := collection.Add("q1", original, now); err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}

	oversized := repeat('x', 20000)
	later := time.Unix(1760000500, 0).UTC()
	_, err := collection.Update("q1", "a", ContentPatch{TextContent: &oversized}, later)
	quotaErr := asQuotaError(t, err)
	if quotaErr.Kind != QuotaKindSize {
		t.Fatalf("expected size limit kind, got %s", quotaErr.Kind)
	}
	if quotaErr.RemainingBytes != MaxCombinedBytesPerQuestion {
		t.Fatalf("remaining must be reported against the pre-update baseline, got %d", quotaErr.RemainingBytes)
	}

	stored := collection.ByQuestion["q1"][0]
	if stored.TextContent != original.TextContent {
		t.Fatalf("text content must be byte-identical after rollback")
	}
	if stored.CodeContent != original.CodeContent {
		t.Fatalf("code content must be byte-identical after rollback")
	}
	if stored.ContentSize != 100 {
		t.Fatalf("expected content size 100 after rollback, got %d", stored.ContentSize)
	}
	if stored.UpdatedAtSeconds != original.UpdatedAtSeconds {
		t.Fatalf("updatedAt must not move on a rejected update")
	}
}

func TestCollectionUpdateLeavesUnsetFieldsAlone(t *testing.T) {
	collection := NewCollection("user-1", "Test User")
	now := time.Unix(1760000000, 0).UTC()
	if err := collection.Add("q1", testApproach("a", "q1", 60, 40), now); err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}

	newText := repeat('y', 80)
	later := time.Unix(1760000500, 0).UTC()
	updated, err := collection.Update("q1", "a", ContentPatch{TextContent: &newText}, later)
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.CodeContent != repeat('c', 40) {
		t.Fatalf("code content must survive a text-only update")
	}
	if updated.ContentSize != 120 {
		t.Fatalf("expected recomputed size 120, got %d", updated.ContentSize)
	}
	if updated.UpdatedAtSeconds != later.Unix() {
		t.Fatalf("updatedAt must advance on commit")
	}
	if collection.LastModifiedSeconds != later.Unix() {
		t.Fatalf("collection lastModified must advance on commit")
	}
}

func TestCollectionUpdateRejectsUnknownApproach(t *testing.T) {
	collection := NewCollection("user-1", "Test User")
	text := "hello"
	_, err := collection.Update("q1", "missing", ContentPatch{TextContent: &text}, time.Unix(1760000000, 0))
	notFound := asNotFoundError(t, err)
	if notFound.Resource != "approach" {
		t.Fatalf("unexpected resource %q", notFound.Resource)
	}
}

func TestCollectionRemoveDeletesEmptyQuestionEntry(t *testing.T) {
	collection := NewCollection("user-1", "Test User")
	now := time.Unix(1760000000, 0).UTC()
	if err := collection.Add("q1", testApproach("a", "q1", 10, 0), now); err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}
	if err := collection.Add("q2", testApproach("b", "q2", 10, 0), now); err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}

	if !collection.Remove("q1", "a", now) {
		t.Fatalf("expected removal to succeed")
	}
	if _, present := collection.ByQuestion["q1"]; present {
		t.Fatalf("emptied question entry must be deleted from the map")
	}
	if collection.TotalCount != 1 {
		t.Fatalf("expected total count 1, got %d", collection.TotalCount)
	}

	if !collection.Remove("q2", "b", now) {
		t.Fatalf("expected removal to succeed")
	}
	if collection.TotalCount != 0 {
		t.Fatalf("expected total count 0 after removing everything")
	}
	if collection.Remove("q2", "b", now) {
		t.Fatalf("removing an absent approach must report false")
	}
}

func TestCollectionAllFlatSortsByCreationDescending(t *testing.T) {
	collection := NewCollection("user-1", "Test User")
	now := time.Unix(1760000000, 0).UTC()

	first := testApproach("a", "q1", 10, 0)
	first.CreatedAtSeconds = 1700000100
	second := testApproach("b", "q2", 10, 0)
	second.CreatedAtSeconds = 1700000300
	third := testApproach("c", "q1", 10, 0)
	third.CreatedAtSeconds = 1700000200

	for _, approach := range []Approach{first, second, third} {
		if err := collection.Add(approach.QuestionID, approach, now); err != nil {
			t.Fatalf("unexpected add error: %v", err)
		}
	}

	flat := collection.AllFlat()
	if len(flat) != 3 {
		t.Fatalf("expected 3 approaches, got %d", len(flat))
	}
	if flat[0].ID != "b" || flat[1].ID != "c" || flat[2].ID != "a" {
		t.Fatalf("unexpected flat order: %s %s %s", flat[0].ID, flat[1].ID, flat[2].ID)
	}
}

func TestCollectionAllFlatOrdersCreationTiesByID(t *testing.T) {
	collection := NewCollection("user-1", "Test User")
	now := time.Unix(1760000000, 0).UTC()

	// One approach per question keeps every entry on a separate map key, and
	// the shared creation second forces the comparator onto the tiebreaker.
	for _, id := range []string{"e", "b", "h", "a", "f", "c", "g", "d"} {
		approach := testApproach(id, "q-"+id, 10, 0)
		if err := collection.Add(approach.QuestionID, approach, now); err != nil {
			t.Fatalf("unexpected add error: %v", err)
		}
	}

	want := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for attempt := 0; attempt < 10; attempt++ {
		flat := collection.AllFlat()
		if len(flat) != len(want) {
			t.Fatalf("expected %d approaches, got %d", len(want), len(flat))
		}
		for i, id := range want {
			if flat[i].ID != id {
				t.Fatalf("attempt %d: unexpected id at index %d: got %s, want %s", attempt, i, flat[i].ID, id)
			}
		}
	}
}

func TestCollectionInvariantsHoldAcrossMixedMutations(t *testing.T) {
	collection := NewCollection("user-1", "Test User")
	now := time.Unix(1760000000, 0).UTC()

	checkInvariants := func() {
		total := 0
		for questionID, list := range collection.ByQuestion {
			if len(list) == 0 {
				t.Fatalf("empty list persisted for question %s", questionID)
			}
			if len(list) > MaxApproachesPerQuestion {
				t.Fatalf("slot invariant violated for question %s", questionID)
			}
			size := 0
			for _, approach := range list {
				size += approach.ContentSize
			}
			if size > MaxCombinedBytesPerQuestion {
				t.Fatalf("size invariant violated for question %s", questionID)
			}
			total += len(list)
		}
		if total != collection.TotalCount {
			t.Fatalf("totalCount %d does not match map contents %d", collection.TotalCount, total)
		}
	}

	_ = collection.Add("q1", testApproach("a", "q1", 6000, 0), now)
	checkInvariants()
	_ = collection.Add("q1", testApproach("b", "q1", 6000, 0), now)
	checkInvariants()
	_ = collection.Add("q1", testApproach("c", "q1", 6000, 0), now)
	checkInvariants()
	bigger := repeat('z', 9000)
	_, _ = collection.Update("q1", "a", ContentPatch{TextContent: &bigger}, now)
	checkInvariants()
	collection.Remove("q1", "b", now)
	checkInvariants()
	_, _ = collection.Update("q1", "a", ContentPatch{TextContent: &bigger}, now)
	checkInvariants()
	collection.RemoveAllForQuestion("q1", now)
	checkInvariants()
	if collection.TotalCount != 0 {
		t.Fatalf("expected empty collection at the end, got %d", collection.TotalCount)
	}
}

func TestCollectionUsageForQuestion(t *testing.T) {
	collection := NewCollection("user-1", "Test User")
	now := time.Unix(1760000000, 0).UTC()
	if err := collection.Add("q1", testApproach("a", "q1", 10, 0), now); err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}

	usage := collection.UsageForQuestion("q1")
	if usage.UsedBytes != 10 || usage.RemainingBytes != 15350 {
		t.Fatalf("unexpected byte usage: %+v", usage)
	}
	if usage.ApproachCount != 1 || usage.RemainingSlots != 2 {
		t.Fatalf("unexpected slot usage: %+v", usage)
	}
	if usage.MaxBytes != 15360 {
		t.Fatalf("unexpected max bytes: %d", usage.MaxBytes)
	}

	empty := collection.UsageForQuestion("unknown-question")
	if empty.UsedBytes != 0 || empty.RemainingBytes != 15360 || empty.ApproachCount != 0 || empty.RemainingSlots != 3 {
		t.Fatalf("expected zero-usage shape, got %+v", empty)
	}
}
