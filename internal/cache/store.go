package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	errNonPositiveTTL = errors.New("cache store requires a positive ttl")
	errMissingLoader  = errors.New("cache load requires a loader")
)

// Loader computes the value for a cache key on a miss.
type Loader func(ctx context.Context) (any, error)

// StoreConfig carries the dependencies required to construct a Store.
type StoreConfig struct {
	TTL   time.Duration
	Clock func() time.Time
}

// Store is an in-process region cache. Entries live under a (tag, key)
// pair and expire after the configured TTL; concurrent misses for the
// same pair share a single loader call.
type Store struct {
	ttl   time.Duration
	clock func() time.Time

	mutex   sync.Mutex
	regions map[Tag]map[string]entry
	hits    int64
	misses  int64

	group singleflight.Group
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Stats reports cumulative hit and miss counts alongside the number of
// live entries.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

func NewStore(config StoreConfig) (*Store, error) {
	if config.TTL <= 0 {
		return nil, errNonPositiveTTL
	}
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		ttl:     config.TTL,
		clock:   clock,
		regions: map[Tag]map[string]entry{},
	}, nil
}

// Get returns the cached value for the pair when present and unexpired.
func (s *Store) Get(tag Tag, key string) (any, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	region, ok := s.regions[tag]
	if !ok {
		s.misses++
		return nil, false
	}
	cached, ok := region[key]
	if !ok {
		s.misses++
		return nil, false
	}
	if s.clock().After(cached.expiresAt) {
		delete(region, key)
		s.misses++
		return nil, false
	}
	s.hits++
	return cached.value, true
}

// Set stores the value under the pair, replacing any previous entry.
func (s *Store) Set(tag Tag, key string, value any) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	region, ok := s.regions[tag]
	if !ok {
		region = map[string]entry{}
		s.regions[tag] = region
	}
	region[key] = entry{value: value, expiresAt: s.clock().Add(s.ttl)}
}

// GetOrLoad returns the cached value for the pair, invoking the loader on
// a miss. Concurrent misses for the same pair are collapsed into one
// loader call; every waiter receives the same result. Loader errors are
// not cached.
func (s *Store) GetOrLoad(ctx context.Context, tag Tag, key string, loader Loader) (any, error) {
	if loader == nil {
		return nil, errMissingLoader
	}
	if cached, ok := s.Get(tag, key); ok {
		return cached, nil
	}

	flightKey := string(tag) + "\x00" + key
	value, err, _ := s.group.Do(flightKey, func() (any, error) {
		// Re-check under the flight: another caller may have loaded the
		// value between our miss and the group admitting us.
		if cached, ok := s.Get(tag, key); ok {
			return cached, nil
		}
		loaded, loadErr := loader(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		s.Set(tag, key, loaded)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Invalidate drops every entry in the named regions.
func (s *Store) Invalidate(tags ...Tag) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, tag := range tags {
		delete(s.regions, tag)
	}
}

// InvalidateKey drops a single entry, leaving the rest of its region intact.
func (s *Store) InvalidateKey(tag Tag, key string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if region, ok := s.regions[tag]; ok {
		delete(region, key)
	}
}

// Stats returns a snapshot of the cumulative counters.
func (s *Store) Stats() Stats {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entries := 0
	for _, region := range s.regions {
		entries += len(region)
	}
	return Stats{Hits: s.hits, Misses: s.misses, Entries: entries}
}
