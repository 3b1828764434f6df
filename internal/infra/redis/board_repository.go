package redis

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"cosmotablas-service/internal/domain"
	"cosmotablas-service/internal/metrics"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// BoardLoader computes global boards from the backing store (Postgres).
type BoardLoader interface {
	LoadAllTables(ctx context.Context) (domain.TableBoards, error)
	LoadTopMistakes(ctx context.Context) ([]domain.MistakeEntry, error)
}

const (
	tablesKey   = "leaderboard:all"
	mistakesKey = "mistakes:top"
)

// BoardRepository caches the global boards in Redis as JSON so every gateway
// instance shares one short-lived copy. On a miss a single loader call per
// key refills it; Redis failures fall through to the loader.
type BoardRepository struct {
	client  *redis.Client
	loader  BoardLoader
	ttl     time.Duration
	metrics *metrics.Recorder
	sf      singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
	// gen advances on every local Invalidate; a load that spans one is not
	// written back. Other instances are bounded by the TTL.
	gen atomic.Uint64
}

func NewBoardRepository(client *redis.Client, loader BoardLoader, ttl time.Duration, m *metrics.Recorder) *BoardRepository {
	return &BoardRepository{
		client:  client,
		loader:  loader,
		ttl:     ttl,
		metrics: m,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *BoardRepository) AllTables(ctx context.Context) (domain.TableBoards, error) {
	var boards domain.TableBoards
	err := r.get(ctx, tablesKey, &boards, func(ctx context.Context) (any, error) {
		return r.loader.LoadAllTables(ctx)
	})
	if err != nil {
		return nil, err
	}
	if boards == nil {
		boards = domain.TableBoards{}
	}
	return boards, nil
}

func (r *BoardRepository) TopMistakes(ctx context.Context) ([]domain.MistakeEntry, error) {
	var entries []domain.MistakeEntry
	err := r.get(ctx, mistakesKey, &entries, func(ctx context.Context) (any, error) {
		return r.loader.LoadTopMistakes(ctx)
	})
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.MistakeEntry{}
	}
	return entries, nil
}

// Invalidate drops the cached leaderboard so the next read sees new records.
func (r *BoardRepository) Invalidate(ctx context.Context) error {
	r.gen.Add(1)
	return r.client.Del(ctx, tablesKey).Err()
}

// get decodes the cached payload of key into dst, loading and caching it on a miss.
func (r *BoardRepository) get(ctx context.Context, key string, dst any, load func(context.Context) (any, error)) error {
	if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
		if json.Unmarshal(raw, dst) == nil {
			r.metrics.CacheLookup(key, true)
			return nil
		}
	}
	r.metrics.CacheLookup(key, false)

	gen := r.gen.Load()
	raw, err, _ := r.sf.Do(fmt.Sprintf("%s:%d", key, gen), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
			return raw, nil
		} else if !errors.Is(err, redis.Nil) {
			// Cache unavailable; serve from the loader without caching.
			v, err := load(ctx)
			if err != nil {
				return nil, err
			}
			return json.Marshal(v)
		}

		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		if r.gen.Load() != gen {
			return payload, nil
		}
		_ = r.client.Set(ctx, key, payload, r.ttlWithJitter()).Err()
		if r.gen.Load() != gen {
			_ = r.client.Del(ctx, key).Err()
		}
		return payload, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.([]byte), dst)
}

func (r *BoardRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
