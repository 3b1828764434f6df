package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"cosmotablas-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestBoardRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{boards: sampleBoards()}
	repo := NewBoardRepository(newClient(mr), loader, 30*time.Second, nil)

	boards, err := repo.AllTables(context.Background())
	if err != nil {
		t.Fatalf("all tables: %v", err)
	}
	if len(boards[5]) != 2 || boards[5][0].PlayerID != "a" {
		t.Fatalf("unexpected boards %+v", boards)
	}
	if loader.tableCalls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.tableCalls)
	}

	// Second call should hit cache, loader not incremented.
	cached, _ := repo.AllTables(context.Background())
	if loader.tableCalls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.tableCalls)
	}
	if !cached[5][0].RecordedAt.Equal(boards[5][0].RecordedAt) {
		t.Fatalf("expected timestamps to survive the cache")
	}

	ttl := mr.TTL(tablesKey)
	if ttl < 30*time.Second || ttl > 33*time.Second {
		t.Fatalf("expected ttl with at most 10%% jitter, got %v", ttl)
	}

	mr.FastForward(time.Minute)
	_, _ = repo.AllTables(context.Background())
	if loader.tableCalls != 2 {
		t.Fatalf("expected reload after expiry, loader calls=%d", loader.tableCalls)
	}
}

func TestBoardRepositoryInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{
		boards:   sampleBoards(),
		mistakes: []domain.MistakeEntry{{Table: 7, Multiplier: 8, Count: 9}},
	}
	repo := NewBoardRepository(newClient(mr), loader, time.Minute, nil)

	_, _ = repo.AllTables(context.Background())
	_, _ = repo.TopMistakes(context.Background())
	if err := repo.Invalidate(context.Background()); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists(tablesKey) {
		t.Fatalf("expected leaderboard key removed")
	}
	if !mr.Exists(mistakesKey) {
		t.Fatalf("expected mistakes key kept")
	}

	top, _ := repo.TopMistakes(context.Background())
	if loader.mistakeCalls != 1 || len(top) != 1 || top[0].Count != 9 {
		t.Fatalf("expected cached mistakes, calls=%d top=%+v", loader.mistakeCalls, top)
	}
}

func TestBoardRepositorySkipsWriteBackAfterInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &gatedLoader{
		boards:  sampleBoards(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	repo := NewBoardRepository(newClient(mr), loader, time.Minute, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = repo.AllTables(context.Background())
	}()
	<-loader.started

	if err := repo.Invalidate(context.Background()); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	close(loader.release)
	<-done

	if mr.Exists(tablesKey) {
		t.Fatalf("expected board loaded before invalidate to stay uncached")
	}
}

// gatedLoader holds its first LoadAllTables until release is closed.
type gatedLoader struct {
	boards  domain.TableBoards
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (l *gatedLoader) LoadAllTables(context.Context) (domain.TableBoards, error) {
	l.once.Do(func() {
		close(l.started)
		<-l.release
	})
	return l.boards, nil
}

func (l *gatedLoader) LoadTopMistakes(context.Context) ([]domain.MistakeEntry, error) {
	return nil, nil
}

func TestBoardRepositoryFallsBackWhenRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := newClient(mr)
	mr.Close()

	loader := &countingLoader{boards: sampleBoards()}
	repo := NewBoardRepository(client, loader, time.Minute, nil)

	boards, err := repo.AllTables(context.Background())
	if err != nil {
		t.Fatalf("expected loader fallback, got %v", err)
	}
	if len(boards[5]) != 2 {
		t.Fatalf("unexpected boards %+v", boards)
	}
}

type countingLoader struct {
	boards       domain.TableBoards
	mistakes     []domain.MistakeEntry
	tableCalls   int
	mistakeCalls int
}

func (l *countingLoader) LoadAllTables(context.Context) (domain.TableBoards, error) {
	l.tableCalls++
	return l.boards, nil
}

func (l *countingLoader) LoadTopMistakes(context.Context) ([]domain.MistakeEntry, error) {
	l.mistakeCalls++
	return l.mistakes, nil
}

func sampleBoards() domain.TableBoards {
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return domain.TableBoards{
		5: {
			{ID: 1, PlayerID: "a", PlayerName: "Ana", TableNumber: 5, ElapsedMs: 12000, Score: 12, RecordedAt: at},
			{ID: 2, PlayerID: "b", PlayerName: "Beto", TableNumber: 5, ElapsedMs: 9000, ErrorCount: 1, Score: 14, RecordedAt: at.Add(time.Minute)},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:       mr.Addr(),
		MaxRetries: -1,
	})
}
