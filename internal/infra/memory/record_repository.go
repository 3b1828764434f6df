package memory

import (
	"context"
	"sort"
	"sync"

	"cosmotablas-service/internal/domain"
)

// RecordRepository is an in-process stand-in for the gateway's records table.
type RecordRepository struct {
	mu      sync.RWMutex
	lastID  int64
	records map[int][]domain.AttemptRecord
}

func NewRecordRepository() *RecordRepository {
	return &RecordRepository{records: make(map[int][]domain.AttemptRecord)}
}

func (r *RecordRepository) InsertRecord(_ context.Context, rec domain.AttemptRecord) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastID++
	rec.ID = r.lastID
	r.records[rec.TableNumber] = append(r.records[rec.TableNumber], rec)
	return rec.ID, nil
}

func (r *RecordRepository) BestPerPlayer(_ context.Context, tableNumber, limit int) ([]domain.AttemptRecord, error) {
	r.mu.RLock()
	best := make(map[string]domain.AttemptRecord)
	for _, rec := range r.records[tableNumber] {
		if cur, ok := best[rec.PlayerID]; !ok || domain.Less(rec, cur) {
			best[rec.PlayerID] = rec
		}
	}
	r.mu.RUnlock()

	out := make([]domain.AttemptRecord, 0, len(best))
	for _, rec := range best {
		out = append(out, rec)
	}
	return sortAndCap(out, limit), nil
}

func (r *RecordRepository) AllAttempts(_ context.Context, tableNumber, limit int) ([]domain.AttemptRecord, error) {
	r.mu.RLock()
	out := make([]domain.AttemptRecord, len(r.records[tableNumber]))
	copy(out, r.records[tableNumber])
	r.mu.RUnlock()
	return sortAndCap(out, limit), nil
}

func (r *RecordRepository) TablesWithRecords(_ context.Context) ([]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int, 0, len(r.records))
	for n, recs := range r.records {
		if len(recs) > 0 {
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out, nil
}

// MistakeRepository keeps global mistake counters in process.
type MistakeRepository struct {
	mu     sync.Mutex
	counts map[domain.QuestionKey]int
}

func NewMistakeRepository() *MistakeRepository {
	return &MistakeRepository{counts: make(map[domain.QuestionKey]int)}
}

// IncrementMistakes bumps every key under one lock, so concurrent batches never lose counts.
func (r *MistakeRepository) IncrementMistakes(_ context.Context, keys []domain.QuestionKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		r.counts[k]++
	}
	return nil
}

func (r *MistakeRepository) TopMistakes(_ context.Context, limit int) ([]domain.MistakeEntry, error) {
	r.mu.Lock()
	out := make([]domain.MistakeEntry, 0, len(r.counts))
	for k, n := range r.counts {
		out = append(out, domain.MistakeEntry{Table: k.Table, Multiplier: k.Multiplier, Count: n})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Table != out[j].Table {
			return out[i].Table < out[j].Table
		}
		return out[i].Multiplier < out[j].Multiplier
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortAndCap(records []domain.AttemptRecord, limit int) []domain.AttemptRecord {
	sort.Slice(records, func(i, j int) bool { return domain.Less(records[i], records[j]) })
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}
