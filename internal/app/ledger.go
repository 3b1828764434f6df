package app

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"cosmotablas-service/internal/domain"
)

// DefaultLedgerCapacity bounds the number of attempts kept per table.
const DefaultLedgerCapacity = 100

// LedgerStore persists ledger snapshots (local storage, SQLite, ...).
type LedgerStore interface {
	LoadRecords(ctx context.Context) ([]domain.AttemptRecord, error)
	SaveTable(ctx context.Context, tableNumber int, records []domain.AttemptRecord) error
	ClearRecords(ctx context.Context) error
}

// Ledger keeps the attempt records of every table and derives leaderboards
// from them. Mutation is serialized per table; persistence is best effort.
type Ledger struct {
	store    LedgerStore
	logger   *slog.Logger
	capacity int
	now      func() time.Time
	lastID   atomic.Int64

	mu     sync.RWMutex
	tables map[int]*tableLedger
}

type tableLedger struct {
	mu      sync.RWMutex
	records []domain.AttemptRecord
	// retired is set once Reset or Load replaced the table; its records
	// must never reach the store again.
	retired bool
}

// LedgerOption customizes a Ledger.
type LedgerOption func(*Ledger)

// WithCapacity overrides DefaultLedgerCapacity.
func WithCapacity(n int) LedgerOption {
	return func(l *Ledger) {
		if n > 0 {
			l.capacity = n
		}
	}
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// WithLedgerLogger sets the logger used for swallowed persistence failures.
func WithLedgerLogger(logger *slog.Logger) LedgerOption {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewLedger(store LedgerStore, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store:    store,
		logger:   slog.Default(),
		capacity: DefaultLedgerCapacity,
		now:      time.Now,
		tables:   make(map[int]*tableLedger),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load replaces the in-memory state with the store's snapshot. Stored records
// that fail validation or whose score does not match ComputeScore are skipped.
// A failing store leaves the ledger empty; the error is returned for logging only.
func (l *Ledger) Load(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	records, err := l.store.LoadRecords(ctx)
	if err != nil {
		l.logger.Warn("ledger_load_failed", "err", err)
		return err
	}

	tables := make(map[int]*tableLedger)
	var maxID int64
	for _, rec := range records {
		if err := domain.ValidateAttempt(rec.TableNumber, rec.ElapsedMs, rec.ErrorCount); err != nil {
			l.logger.Warn("ledger_record_skipped", "id", rec.ID, "table", rec.TableNumber, "player", rec.PlayerID, "err", err)
			continue
		}
		if want := domain.ComputeScore(rec.ElapsedMs, rec.ErrorCount); rec.Score != want {
			l.logger.Warn("ledger_record_skipped", "id", rec.ID, "table", rec.TableNumber, "player", rec.PlayerID,
				"err", "score mismatch", "score", rec.Score, "want", want)
			continue
		}
		t, ok := tables[rec.TableNumber]
		if !ok {
			t = &tableLedger{}
			tables[rec.TableNumber] = t
		}
		t.records = append(t.records, rec)
		if rec.ID > maxID {
			maxID = rec.ID
		}
	}
	for _, t := range tables {
		t.evictLocked(l.capacity)
	}

	l.mu.Lock()
	l.retireLocked()
	l.tables = tables
	l.mu.Unlock()
	l.lastID.Store(maxID)
	return nil
}

// Reset drops every record, in memory and in the store. Inserts racing with
// Reset either finish before the store is cleared or land in the new tables.
func (l *Ledger) Reset(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.retireLocked()
	l.tables = make(map[int]*tableLedger)
	if l.store != nil {
		if err := l.store.ClearRecords(ctx); err != nil {
			l.logger.Warn("ledger_reset_persist_failed", "err", err)
		}
	}
}

// retireLocked waits for in-flight inserts on every current table and marks
// the tables retired. l.mu must be held.
func (l *Ledger) retireLocked() {
	for _, t := range l.tables {
		t.mu.Lock()
		t.retired = true
		t.mu.Unlock()
	}
}

// AddRecord stores a finished attempt and reports where it ranks. The score
// is always computed here; callers cannot supply one.
func (l *Ledger) AddRecord(ctx context.Context, playerID, playerName string, tableNumber int, elapsedMs int64, errorCount int) (domain.RecordResult, error) {
	if err := domain.ValidateAttempt(tableNumber, elapsedMs, errorCount); err != nil {
		return domain.RecordResult{}, err
	}
	score := domain.ComputeScore(elapsedMs, errorCount)

	t := l.lockTable(tableNumber)
	defer t.mu.Unlock()

	prevBest, seen := t.bestScoreLocked(playerID)
	rec := domain.AttemptRecord{
		ID:          l.lastID.Add(1),
		PlayerID:    playerID,
		PlayerName:  domain.DisplayName(playerName),
		TableNumber: tableNumber,
		ElapsedMs:   elapsedMs,
		ErrorCount:  errorCount,
		Score:       score,
		RecordedAt:  l.now(),
	}
	t.records = append(t.records, rec)
	t.evictLocked(l.capacity)

	board := bestPerPlayer(t.records)
	rank := rankOf(board, playerID)

	// Persisting under the table lock keeps snapshots in mutation order.
	l.persistLocked(ctx, tableNumber, t.records)

	return domain.RecordResult{
		Rank:              rank,
		TotalPlayers:      len(board),
		IsNewPersonalBest: !seen || score < prevBest,
		IsAbsoluteRecord:  rank == 1,
		Score:             score,
	}, nil
}

// Rank is the player's 1-indexed position in the best-per-player view, 0 if absent.
func (l *Ledger) Rank(tableNumber int, playerID string) int {
	t := l.table(tableNumber, false)
	if t == nil {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return rankOf(bestPerPlayer(t.records), playerID)
}

// BestPerPlayer returns each player's best attempt, best first. limit <= 0 means all.
func (l *Ledger) BestPerPlayer(tableNumber, limit int) []domain.AttemptRecord {
	t := l.table(tableNumber, false)
	if t == nil {
		return []domain.AttemptRecord{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return capped(bestPerPlayer(t.records), limit)
}

// AllAttempts returns every attempt, best first. limit <= 0 means all.
func (l *Ledger) AllAttempts(tableNumber, limit int) []domain.AttemptRecord {
	return l.sortedView(tableNumber, limit, domain.Less)
}

// FastestAttempts orders attempts by elapsed time.
func (l *Ledger) FastestAttempts(tableNumber, limit int) []domain.AttemptRecord {
	return l.sortedView(tableNumber, limit, func(a, b domain.AttemptRecord) bool {
		if a.ElapsedMs != b.ElapsedMs {
			return a.ElapsedMs < b.ElapsedMs
		}
		return domain.Less(a, b)
	})
}

// FewestErrors orders attempts by error count, then elapsed time.
func (l *Ledger) FewestErrors(tableNumber, limit int) []domain.AttemptRecord {
	return l.sortedView(tableNumber, limit, func(a, b domain.AttemptRecord) bool {
		if a.ErrorCount != b.ErrorCount {
			return a.ErrorCount < b.ErrorCount
		}
		if a.ElapsedMs != b.ElapsedMs {
			return a.ElapsedMs < b.ElapsedMs
		}
		return domain.Less(a, b)
	})
}

// TablesWithRecords lists tables holding at least one record, ascending.
func (l *Ledger) TablesWithRecords() []int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]int, 0, len(l.tables))
	for n, t := range l.tables {
		t.mu.RLock()
		size := len(t.records)
		t.mu.RUnlock()
		if size > 0 {
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}

// Boards returns the best-per-player view of every standard table with records.
func (l *Ledger) Boards(limit int) domain.TableBoards {
	boards := make(domain.TableBoards)
	for _, n := range l.TablesWithRecords() {
		if !domain.IsStandardTable(n) {
			continue
		}
		boards[n] = l.BestPerPlayer(n, limit)
	}
	return boards
}

func (l *Ledger) table(n int, create bool) *tableLedger {
	l.mu.RLock()
	t, ok := l.tables[n]
	l.mu.RUnlock()
	if ok || !create {
		return t
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.tables[n]; ok {
		return t
	}
	t = &tableLedger{}
	l.tables[n] = t
	return t
}

// lockTable returns the live table n with its write lock held.
func (l *Ledger) lockTable(n int) *tableLedger {
	for {
		t := l.table(n, true)
		t.mu.Lock()
		if !t.retired {
			return t
		}
		t.mu.Unlock()
	}
}

func (l *Ledger) sortedView(tableNumber, limit int, less func(a, b domain.AttemptRecord) bool) []domain.AttemptRecord {
	t := l.table(tableNumber, false)
	if t == nil {
		return []domain.AttemptRecord{}
	}
	t.mu.RLock()
	out := make([]domain.AttemptRecord, len(t.records))
	copy(out, t.records)
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return capped(out, limit)
}

func (l *Ledger) persistLocked(ctx context.Context, tableNumber int, records []domain.AttemptRecord) {
	if l.store == nil {
		return
	}
	snapshot := make([]domain.AttemptRecord, len(records))
	copy(snapshot, records)
	if err := l.store.SaveTable(ctx, tableNumber, snapshot); err != nil {
		l.logger.Warn("ledger_persist_failed", "table", tableNumber, "err", err)
	}
}

func (t *tableLedger) bestScoreLocked(playerID string) (int, bool) {
	best, seen := 0, false
	for _, rec := range t.records {
		if rec.PlayerID != playerID {
			continue
		}
		if !seen || rec.Score < best {
			best, seen = rec.Score, true
		}
	}
	return best, seen
}

// evictLocked keeps the best capacity records; the worst go first.
func (t *tableLedger) evictLocked(capacity int) {
	if len(t.records) <= capacity {
		return
	}
	sort.Slice(t.records, func(i, j int) bool { return domain.Less(t.records[i], t.records[j]) })
	for i := capacity; i < len(t.records); i++ {
		t.records[i] = domain.AttemptRecord{}
	}
	t.records = t.records[:capacity]
}

func bestPerPlayer(records []domain.AttemptRecord) []domain.AttemptRecord {
	best := make(map[string]int, len(records))
	out := make([]domain.AttemptRecord, 0, len(records))
	for _, rec := range records {
		idx, ok := best[rec.PlayerID]
		if !ok {
			best[rec.PlayerID] = len(out)
			out = append(out, rec)
			continue
		}
		if domain.Less(rec, out[idx]) {
			out[idx] = rec
		}
	}
	sort.Slice(out, func(i, j int) bool { return domain.Less(out[i], out[j]) })
	return out
}

func rankOf(board []domain.AttemptRecord, playerID string) int {
	for i, rec := range board {
		if rec.PlayerID == playerID {
			return i + 1
		}
	}
	return 0
}

func capped(records []domain.AttemptRecord, limit int) []domain.AttemptRecord {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}
