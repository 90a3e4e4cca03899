package ratelimit

import (
	"fmt"
	"testing"
	"time"
)

func newTestLimiter(start time.Time) (*Limiter, func(time.Duration)) {
	current := start
	limiter := NewLimiter()
	limiter.clock = func() time.Time { return current }
	advance := func(d time.Duration) { current = current.Add(d) }
	return limiter, advance
}

func TestLimiterAllowsFullWriteBurst(t *testing.T) {
	limiter, _ := newTestLimiter(time.Unix(1760000000, 0))

	for i := 0; i < WriteRequestsPerMinute; i++ {
		if !limiter.Allow("user-1", Write) {
			t.Fatalf("write %d should be allowed", i+1)
		}
	}
	if limiter.Allow("user-1", Write) {
		t.Fatalf("write beyond the burst should be rejected")
	}
}

func TestLimiterRefillsOverTime(t *testing.T) {
	limiter, advance := newTestLimiter(time.Unix(1760000000, 0))

	for i := 0; i < WriteRequestsPerMinute; i++ {
		limiter.Allow("user-1", Write)
	}
	if limiter.Allow("user-1", Write) {
		t.Fatalf("expected exhausted bucket")
	}

	// One write token refills every six seconds.
	advance(6 * time.Second)
	if !limiter.Allow("user-1", Write) {
		t.Fatalf("expected one token after refill interval")
	}
	if limiter.Allow("user-1", Write) {
		t.Fatalf("expected only one refilled token")
	}
}

func TestLimiterSeparatesUsersAndKinds(t *testing.T) {
	limiter, _ := newTestLimiter(time.Unix(1760000000, 0))

	for i := 0; i < WriteRequestsPerMinute; i++ {
		limiter.Allow("user-1", Write)
	}
	if limiter.Allow("user-1", Write) {
		t.Fatalf("user-1 write budget should be spent")
	}
	if !limiter.Allow("user-2", Write) {
		t.Fatalf("user-2 has an independent write budget")
	}
	if !limiter.Allow("user-1", Read) {
		t.Fatalf("read budget is independent of write budget")
	}
}

func TestLimiterReadBudgetIsLarger(t *testing.T) {
	limiter, _ := newTestLimiter(time.Unix(1760000000, 0))

	for i := 0; i < ReadRequestsPerMinute; i++ {
		if !limiter.Allow("user-1", Read) {
			t.Fatalf("read %d should be allowed", i+1)
		}
	}
	if limiter.Allow("user-1", Read) {
		t.Fatalf("read beyond the burst should be rejected")
	}
}

func TestLimiterTokensReportsRemainingBudget(t *testing.T) {
	limiter, _ := newTestLimiter(time.Unix(1760000000, 0))

	if got := limiter.Tokens("user-1", Write); got != WriteRequestsPerMinute {
		t.Fatalf("expected full budget for unseen user, got %d", got)
	}

	limiter.Allow("user-1", Write)
	limiter.Allow("user-1", Write)
	if got := limiter.Tokens("user-1", Write); got != WriteRequestsPerMinute-2 {
		t.Fatalf("expected 8 remaining tokens, got %d", got)
	}
}

func TestLimiterPrunesIdleBuckets(t *testing.T) {
	limiter, advance := newTestLimiter(time.Unix(1760000000, 0))

	for i := 0; i < pruneThreshold; i++ {
		limiter.Allow(fmt.Sprintf("user-%d", i), Read)
	}
	if len(limiter.buckets) != pruneThreshold {
		t.Fatalf("expected %d buckets, got %d", pruneThreshold, len(limiter.buckets))
	}

	advance(staleAfter + time.Minute)
	limiter.Allow("late-user", Read)

	if len(limiter.buckets) != 1 {
		t.Fatalf("expected idle buckets to be pruned, got %d", len(limiter.buckets))
	}
}
