package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"cosmotablas-service/internal/domain"
	"cosmotablas-service/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// BoardLoader computes global boards from the backing repositories.
type BoardLoader interface {
	LoadAllTables(ctx context.Context) (domain.TableBoards, error)
	LoadTopMistakes(ctx context.Context) ([]domain.MistakeEntry, error)
}

const (
	tablesKey   = "all_tables"
	mistakesKey = "mistakes"
)

// BoardRepository caches global boards in process with a TTL so a burst of
// leaderboard reads costs one query. A non-positive TTL disables caching.
type BoardRepository struct {
	loader  BoardLoader
	ttl     time.Duration
	clock   func() time.Time
	metrics *metrics.Recorder
	sf      singleflight.Group

	mu    sync.Mutex
	rnd   *rand.Rand
	cache map[string]cachedBoard
	// gen advances on every Invalidate; loads started under an older
	// generation are served but never cached.
	gen uint64
}

type cachedBoard struct {
	value     any
	expiresAt time.Time
}

func NewBoardRepository(loader BoardLoader, ttl time.Duration, m *metrics.Recorder) *BoardRepository {
	return &BoardRepository{
		loader:  loader,
		ttl:     ttl,
		clock:   time.Now,
		metrics: m,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:   make(map[string]cachedBoard),
	}
}

func (r *BoardRepository) AllTables(ctx context.Context) (domain.TableBoards, error) {
	v, err := r.get(ctx, tablesKey, func(ctx context.Context) (any, error) {
		return r.loader.LoadAllTables(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(domain.TableBoards), nil
}

func (r *BoardRepository) TopMistakes(ctx context.Context) ([]domain.MistakeEntry, error) {
	v, err := r.get(ctx, mistakesKey, func(ctx context.Context) (any, error) {
		return r.loader.LoadTopMistakes(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.MistakeEntry), nil
}

// Invalidate drops the cached leaderboard; mistakes expire on their own.
func (r *BoardRepository) Invalidate(_ context.Context) error {
	r.mu.Lock()
	r.gen++
	delete(r.cache, tablesKey)
	r.mu.Unlock()
	return nil
}

func (r *BoardRepository) get(ctx context.Context, key string, load func(context.Context) (any, error)) (any, error) {
	if v, ok := r.lookup(key); ok {
		r.metrics.CacheLookup(key, true)
		return v, nil
	}
	r.metrics.CacheLookup(key, false)

	gen := r.generation()
	v, err, _ := r.sf.Do(fmt.Sprintf("%s:%d", key, gen), func() (interface{}, error) {
		// Re-check in case another goroutine filled it.
		if v, ok := r.lookup(key); ok {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if ttl := r.ttlWithJitter(); ttl > 0 {
			r.mu.Lock()
			if r.gen == gen {
				r.cache[key] = cachedBoard{value: v, expiresAt: r.clock().Add(ttl)}
			}
			r.mu.Unlock()
		}
		return v, nil
	})
	return v, err
}

func (r *BoardRepository) generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

func (r *BoardRepository) lookup(key string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.cache[key]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return nil, false
	}
	return entry.value, true
}

func (r *BoardRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
