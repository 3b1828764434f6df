package memory

import (
	"context"
	"sort"
	"sync"

	"cosmotablas-service/internal/domain"
)

// LocalStore is an in-memory implementation of the ledger and mistake stores.
// It keeps copies so callers cannot alias saved snapshots.
type LocalStore struct {
	mu       sync.RWMutex
	tables   map[int][]domain.AttemptRecord
	mistakes map[string][]domain.MistakeEntry
}

func NewLocalStore() *LocalStore {
	return &LocalStore{
		tables:   make(map[int][]domain.AttemptRecord),
		mistakes: make(map[string][]domain.MistakeEntry),
	}
}

func (s *LocalStore) LoadRecords(_ context.Context) ([]domain.AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tables := make([]int, 0, len(s.tables))
	for n := range s.tables {
		tables = append(tables, n)
	}
	sort.Ints(tables)

	var out []domain.AttemptRecord
	for _, n := range tables {
		out = append(out, s.tables[n]...)
	}
	return out, nil
}

func (s *LocalStore) SaveTable(_ context.Context, tableNumber int, records []domain.AttemptRecord) error {
	snapshot := make([]domain.AttemptRecord, len(records))
	copy(snapshot, records)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[tableNumber] = snapshot
	return nil
}

func (s *LocalStore) ClearRecords(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = make(map[int][]domain.AttemptRecord)
	return nil
}

func (s *LocalStore) LoadMistakes(_ context.Context) (map[string][]domain.MistakeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]domain.MistakeEntry, len(s.mistakes))
	for playerID, entries := range s.mistakes {
		out[playerID] = append([]domain.MistakeEntry(nil), entries...)
	}
	return out, nil
}

func (s *LocalStore) SavePlayerMistakes(_ context.Context, playerID string, entries []domain.MistakeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mistakes[playerID] = append([]domain.MistakeEntry(nil), entries...)
	return nil
}

func (s *LocalStore) ClearMistakes(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mistakes = make(map[string][]domain.MistakeEntry)
	return nil
}
