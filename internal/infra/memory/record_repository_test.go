package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"cosmotablas-service/internal/domain"
)

func TestRecordRepositoryViews(t *testing.T) {
	ctx := context.Background()
	repo := NewRecordRepository()
	base := time.Unix(1_700_000_000, 0)

	insert := func(player string, score int, offset time.Duration) {
		t.Helper()
		_, err := repo.InsertRecord(ctx, domain.AttemptRecord{
			PlayerID: player, PlayerName: player, TableNumber: 5, Score: score, RecordedAt: base.Add(offset),
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	insert("a", 12, 0)
	insert("b", 14, time.Second)
	insert("a", 20, 2*time.Second)

	best, _ := repo.BestPerPlayer(ctx, 5, 10)
	if len(best) != 2 || best[0].PlayerID != "a" || best[0].Score != 12 || best[1].PlayerID != "b" {
		t.Fatalf("unexpected best view %+v", best)
	}

	all, _ := repo.AllAttempts(ctx, 5, 2)
	if len(all) != 2 || all[0].Score != 12 || all[1].Score != 14 {
		t.Fatalf("unexpected all view %+v", all)
	}

	tables, _ := repo.TablesWithRecords(ctx)
	if len(tables) != 1 || tables[0] != 5 {
		t.Fatalf("unexpected tables %v", tables)
	}
}

func TestMistakeRepositoryConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	repo := NewMistakeRepository()
	key := domain.QuestionKey{Table: 7, Multiplier: 8}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.IncrementMistakes(ctx, []domain.QuestionKey{key, {Table: 3, Multiplier: 4}})
		}()
	}
	wg.Wait()
	_ = repo.IncrementMistakes(ctx, []domain.QuestionKey{key})

	top, _ := repo.TopMistakes(ctx, 1)
	if len(top) != 1 || top[0].Key() != key || top[0].Count != 51 {
		t.Fatalf("unexpected top mistakes %+v", top)
	}
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore()

	records := []domain.AttemptRecord{{ID: 1, PlayerID: "a", TableNumber: 3, Score: 10}}
	if err := store.SaveTable(ctx, 3, records); err != nil {
		t.Fatalf("save table: %v", err)
	}
	records[0].Score = 99

	loaded, _ := store.LoadRecords(ctx)
	if len(loaded) != 1 || loaded[0].Score != 10 {
		t.Fatalf("expected isolated snapshot, got %+v", loaded)
	}

	_ = store.SavePlayerMistakes(ctx, "a", []domain.MistakeEntry{{Table: 3, Multiplier: 4, Count: 2}})
	mistakes, _ := store.LoadMistakes(ctx)
	if len(mistakes["a"]) != 1 {
		t.Fatalf("expected one mistake entry, got %+v", mistakes)
	}

	_ = store.ClearRecords(ctx)
	_ = store.ClearMistakes(ctx)
	loaded, _ = store.LoadRecords(ctx)
	mistakes, _ = store.LoadMistakes(ctx)
	if len(loaded) != 0 || len(mistakes) != 0 {
		t.Fatalf("expected empty store after clear")
	}
}
