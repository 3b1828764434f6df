package app

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"cosmotablas-service/internal/domain"
)

// DefaultTopMistakes is the number of weak spots returned when no limit is given.
const DefaultTopMistakes = 10

// MistakeStore persists per-player mistake tallies.
type MistakeStore interface {
	LoadMistakes(ctx context.Context) (map[string][]domain.MistakeEntry, error)
	SavePlayerMistakes(ctx context.Context, playerID string, entries []domain.MistakeEntry) error
	ClearMistakes(ctx context.Context) error
}

// MistakeAggregator counts first-attempt wrong answers per player. Counts only grow.
type MistakeAggregator struct {
	store  MistakeStore
	logger *slog.Logger

	mu      sync.RWMutex
	players map[string]*tally
}

// tally remembers first-seen order so equal counts rank deterministically.
type tally struct {
	order  []domain.QuestionKey
	counts map[domain.QuestionKey]int
}

func NewMistakeAggregator(store MistakeStore, logger *slog.Logger) *MistakeAggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &MistakeAggregator{
		store:   store,
		logger:  logger,
		players: make(map[string]*tally),
	}
}

// Load restores tallies from the store.
func (a *MistakeAggregator) Load(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	saved, err := a.store.LoadMistakes(ctx)
	if err != nil {
		a.logger.Warn("mistakes_load_failed", "err", err)
		return err
	}

	players := make(map[string]*tally, len(saved))
	for playerID, entries := range saved {
		t := newTally()
		for _, e := range entries {
			if !domain.ValidQuestion(e.Key()) || e.Count <= 0 {
				continue
			}
			t.add(e.Key(), e.Count)
		}
		players[playerID] = t
	}

	a.mu.Lock()
	a.players = players
	a.mu.Unlock()
	return nil
}

// Reset forgets every tally.
func (a *MistakeAggregator) Reset(ctx context.Context) {
	a.mu.Lock()
	a.players = make(map[string]*tally)
	a.mu.Unlock()
	if a.store != nil {
		if err := a.store.ClearMistakes(ctx); err != nil {
			a.logger.Warn("mistakes_reset_persist_failed", "err", err)
		}
	}
}

// RecordMistakes adds one to the tally of every valid pair; invalid pairs are
// dropped. Duplicates in one call all count. Returns the number accepted.
func (a *MistakeAggregator) RecordMistakes(ctx context.Context, playerID string, mistakes []domain.QuestionKey) int {
	valid := domain.FilterQuestions(mistakes)
	if playerID == "" || len(valid) == 0 {
		return 0
	}

	a.mu.Lock()
	t, ok := a.players[playerID]
	if !ok {
		t = newTally()
		a.players[playerID] = t
	}
	for _, k := range valid {
		t.add(k, 1)
	}
	snapshot := t.entries()
	if a.store != nil {
		if err := a.store.SavePlayerMistakes(ctx, playerID, snapshot); err != nil {
			a.logger.Warn("mistakes_persist_failed", "player", playerID, "err", err)
		}
	}
	a.mu.Unlock()

	return len(valid)
}

// TopMistakes returns the player's most frequent misses, highest count first.
func (a *MistakeAggregator) TopMistakes(playerID string, limit int) []domain.MistakeEntry {
	if limit <= 0 {
		limit = DefaultTopMistakes
	}
	a.mu.RLock()
	t, ok := a.players[playerID]
	if !ok {
		a.mu.RUnlock()
		return []domain.MistakeEntry{}
	}
	entries := t.entries()
	a.mu.RUnlock()

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Count > entries[j].Count })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func newTally() *tally {
	return &tally{counts: make(map[domain.QuestionKey]int)}
}

func (t *tally) add(k domain.QuestionKey, n int) {
	if _, ok := t.counts[k]; !ok {
		t.order = append(t.order, k)
	}
	t.counts[k] += n
}

// entries lists the tally in first-seen order.
func (t *tally) entries() []domain.MistakeEntry {
	out := make([]domain.MistakeEntry, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, domain.MistakeEntry{Table: k.Table, Multiplier: k.Multiplier, Count: t.counts[k]})
	}
	return out
}
