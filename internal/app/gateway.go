package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cosmotablas-service/internal/domain"
	"cosmotablas-service/internal/metrics"
)

const (
	// DefaultBoardSize is how many players a global table board shows.
	DefaultBoardSize = 10
	// DefaultGlobalMistakes is how many weak spots GET /mistakes returns.
	DefaultGlobalMistakes = 20
)

// RecordRepository stores every accepted remote attempt (Postgres, memory).
type RecordRepository interface {
	InsertRecord(ctx context.Context, rec domain.AttemptRecord) (int64, error)
	BestPerPlayer(ctx context.Context, tableNumber, limit int) ([]domain.AttemptRecord, error)
	AllAttempts(ctx context.Context, tableNumber, limit int) ([]domain.AttemptRecord, error)
	TablesWithRecords(ctx context.Context) ([]int, error)
}

// MistakeRepository keeps the population-wide mistake counters.
type MistakeRepository interface {
	IncrementMistakes(ctx context.Context, keys []domain.QuestionKey) error
	TopMistakes(ctx context.Context, limit int) ([]domain.MistakeEntry, error)
}

// BoardLoader computes the cacheable global views from the repositories.
type BoardLoader interface {
	LoadAllTables(ctx context.Context) (domain.TableBoards, error)
	LoadTopMistakes(ctx context.Context) ([]domain.MistakeEntry, error)
}

// BoardRepository serves the global views, usually from a short-lived cache.
type BoardRepository interface {
	AllTables(ctx context.Context) (domain.TableBoards, error)
	TopMistakes(ctx context.Context) ([]domain.MistakeEntry, error)
	Invalidate(ctx context.Context) error
}

type repositoryLoader struct {
	records   RecordRepository
	mistakes  MistakeRepository
	boardSize int
	topN      int
}

// NewBoardLoader builds a BoardLoader over the repositories.
func NewBoardLoader(records RecordRepository, mistakes MistakeRepository, boardSize, topMistakes int) BoardLoader {
	if boardSize <= 0 {
		boardSize = DefaultBoardSize
	}
	if topMistakes <= 0 {
		topMistakes = DefaultGlobalMistakes
	}
	return &repositoryLoader{records: records, mistakes: mistakes, boardSize: boardSize, topN: topMistakes}
}

func (l *repositoryLoader) LoadAllTables(ctx context.Context) (domain.TableBoards, error) {
	tables, err := l.records.TablesWithRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	boards := make(domain.TableBoards, len(tables))
	for _, n := range tables {
		if !domain.IsStandardTable(n) {
			continue
		}
		records, err := l.records.BestPerPlayer(ctx, n, l.boardSize)
		if err != nil {
			return nil, fmt.Errorf("load table %d: %w", n, err)
		}
		if len(records) > 0 {
			boards[n] = records
		}
	}
	return boards, nil
}

func (l *repositoryLoader) LoadTopMistakes(ctx context.Context) ([]domain.MistakeEntry, error) {
	entries, err := l.mistakes.TopMistakes(ctx, l.topN)
	if err != nil {
		return nil, fmt.Errorf("load top mistakes: %w", err)
	}
	return entries, nil
}

// GatewayService holds the use cases behind the shared HTTP gateway. Every
// submission is re-verified here; nothing a client claims is trusted.
type GatewayService struct {
	records   RecordRepository
	mistakes  MistakeRepository
	boards    BoardRepository
	hub       *BoardHub
	metrics   *metrics.Recorder
	logger    *slog.Logger
	boardSize int
	now       func() time.Time
}

// GatewayOption customizes a GatewayService.
type GatewayOption func(*GatewayService)

func WithHub(hub *BoardHub) GatewayOption {
	return func(s *GatewayService) { s.hub = hub }
}

func WithMetrics(m *metrics.Recorder) GatewayOption {
	return func(s *GatewayService) { s.metrics = m }
}

func WithGatewayLogger(logger *slog.Logger) GatewayOption {
	return func(s *GatewayService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithBoardSize(n int) GatewayOption {
	return func(s *GatewayService) {
		if n > 0 {
			s.boardSize = n
		}
	}
}

// WithGatewayClock is test-only for deterministic timestamps.
func WithGatewayClock(now func() time.Time) GatewayOption {
	return func(s *GatewayService) { s.now = now }
}

func NewGatewayService(records RecordRepository, mistakes MistakeRepository, boards BoardRepository, opts ...GatewayOption) *GatewayService {
	s := &GatewayService{
		records:   records,
		mistakes:  mistakes,
		boards:    boards,
		hub:       NewBoardHub(),
		logger:    slog.Default(),
		boardSize: DefaultBoardSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit verifies a claimed attempt and stores it. Validation failures are
// returned as *domain.ValidationError; anything else is a storage failure.
func (s *GatewayService) Submit(ctx context.Context, sub domain.Submission) (int64, error) {
	rec, err := sub.Verify()
	if err != nil {
		s.metrics.SubmissionRejected(domain.Reason(err))
		return 0, err
	}
	rec.RecordedAt = s.now()

	id, err := s.records.InsertRecord(ctx, rec)
	if err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}
	s.metrics.SubmissionAccepted()
	s.logger.Info("record_accepted", "id", id, "table", rec.TableNumber, "player", rec.PlayerID, "score", rec.Score)

	if s.boards != nil {
		if err := s.boards.Invalidate(ctx); err != nil {
			s.logger.Warn("board_cache_invalidate_failed", "err", err)
		}
	}
	s.publish(ctx, rec.TableNumber)
	return id, nil
}

// Leaderboard returns one table's top records in the requested view.
func (s *GatewayService) Leaderboard(ctx context.Context, tableNumber int, mode domain.BoardMode) ([]domain.AttemptRecord, error) {
	if err := domain.CheckStandardTable(tableNumber); err != nil {
		return nil, err
	}
	var (
		records []domain.AttemptRecord
		err     error
	)
	if mode == domain.BoardModeAll {
		records, err = s.records.AllAttempts(ctx, tableNumber, s.boardSize)
	} else {
		records, err = s.records.BestPerPlayer(ctx, tableNumber, s.boardSize)
	}
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	return records, nil
}

// AllTables returns the best-per-player board of every table that has records.
func (s *GatewayService) AllTables(ctx context.Context) (domain.TableBoards, error) {
	boards, err := s.boards.AllTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("load all tables: %w", err)
	}
	return boards, nil
}

// IngestMistakes counts a reported batch of misses and returns how many were accepted.
func (s *GatewayService) IngestMistakes(ctx context.Context, batch []domain.QuestionKey) (int, error) {
	valid, err := domain.FilterMistakeBatch(batch)
	if err != nil {
		return 0, err
	}
	if err := s.mistakes.IncrementMistakes(ctx, valid); err != nil {
		return 0, fmt.Errorf("increment mistakes: %w", err)
	}
	s.metrics.MistakesIngested(len(valid))
	return len(valid), nil
}

// TopMistakes returns the population's most missed facts.
func (s *GatewayService) TopMistakes(ctx context.Context) ([]domain.MistakeEntry, error) {
	entries, err := s.boards.TopMistakes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load top mistakes: %w", err)
	}
	return entries, nil
}

// Subscribe streams a table's board, starting with its current state.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *GatewayService) Subscribe(ctx context.Context, tableNumber int) (<-chan domain.TableBoard, func(), error) {
	if err := domain.CheckStandardTable(tableNumber); err != nil {
		return nil, nil, err
	}
	board, err := s.tableBoard(ctx, tableNumber)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.Subscribe(tableNumber, board)
	return ch, cancel, nil
}

func (s *GatewayService) publish(ctx context.Context, tableNumber int) {
	if !s.hub.HasSubscribers(tableNumber) {
		return
	}
	board, err := s.tableBoard(ctx, tableNumber)
	if err != nil {
		s.logger.Warn("board_publish_failed", "table", tableNumber, "err", err)
		return
	}
	s.hub.Publish(board)
}

func (s *GatewayService) tableBoard(ctx context.Context, tableNumber int) (domain.TableBoard, error) {
	records, err := s.records.BestPerPlayer(ctx, tableNumber, s.boardSize)
	if err != nil {
		return domain.TableBoard{}, fmt.Errorf("load table board: %w", err)
	}
	return domain.TableBoard{TableNumber: tableNumber, Records: records, UpdatedAt: s.now()}, nil
}
