package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// WriteRequestsPerMinute caps mutating API calls per user.
	WriteRequestsPerMinute = 10

	// ReadRequestsPerMinute caps read-only API calls per user.
	ReadRequestsPerMinute = 60

	// staleAfter is how long an idle user's bucket survives before the
	// next prune removes it.
	staleAfter = 10 * time.Minute

	// pruneThreshold is the bucket count that triggers a prune pass.
	pruneThreshold = 4096
)

// Kind selects which per-user budget a request draws from.
type Kind int

const (
	Read Kind = iota
	Write
)

// Limiter tracks a token bucket per user and per kind. Buckets are
// created lazily on first use and pruned once they have been idle for
// a while.
type Limiter struct {
	mutex   sync.Mutex
	buckets map[bucketKey]*userBucket
	clock   func() time.Time
}

type bucketKey struct {
	userID string
	kind   Kind
}

type userBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLimiter() *Limiter {
	return &Limiter{
		buckets: map[bucketKey]*userBucket{},
		clock:   time.Now,
	}
}

// Allow reports whether the user has budget left for one more request of
// the given kind, consuming a token when it does.
func (l *Limiter) Allow(userID string, kind Kind) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.clock()
	key := bucketKey{userID: userID, kind: kind}
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = &userBucket{limiter: newRateLimiter(kind)}
		if len(l.buckets) >= pruneThreshold {
			l.pruneLocked(now)
		}
		l.buckets[key] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.AllowN(now, 1)
}

// Tokens returns the number of whole tokens currently available to the
// user for the given kind. Users with no bucket have a full budget.
func (l *Limiter) Tokens(userID string, kind Kind) int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	bucket, ok := l.buckets[bucketKey{userID: userID, kind: kind}]
	if !ok {
		return limitFor(kind)
	}
	return int(bucket.limiter.TokensAt(l.clock()))
}

func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-staleAfter)
	for key, bucket := range l.buckets {
		if bucket.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

func newRateLimiter(kind Kind) *rate.Limiter {
	perMinute := limitFor(kind)
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
}

func limitFor(kind Kind) int {
	if kind == Write {
		return WriteRequestsPerMinute
	}
	return ReadRequestsPerMinute
}
