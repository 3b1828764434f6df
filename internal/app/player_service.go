package app

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"cosmotablas-service/internal/domain"
)

// RemoteGateway is the client side of the shared records gateway.
type RemoteGateway interface {
	SubmitRecord(ctx context.Context, rec domain.AttemptRecord) error
	SubmitMistakes(ctx context.Context, keys []domain.QuestionKey) error
	AllTables(ctx context.Context) (domain.TableBoards, error)
	TableBoard(ctx context.Context, tableNumber int, mode domain.BoardMode) ([]domain.AttemptRecord, error)
	TopMistakes(ctx context.Context) ([]domain.MistakeEntry, error)
}

// Dispatcher runs work the caller never waits for.
type Dispatcher interface {
	Go(task func(ctx context.Context))
}

// PlayerService is what the game screens call at the end of a session and
// when they show boards or build a challenge. Local state is authoritative
// for the player; the remote gateway is a best-effort mirror.
type PlayerService struct {
	ledger     *Ledger
	mistakes   *MistakeAggregator
	remote     RemoteGateway
	dispatcher Dispatcher
	logger     *slog.Logger
	slots      int
	boardSize  int

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// PlayerOption customizes a PlayerService.
type PlayerOption func(*PlayerService)

// WithRemote enables global boards and background submissions.
func WithRemote(remote RemoteGateway, dispatcher Dispatcher) PlayerOption {
	return func(s *PlayerService) {
		s.remote = remote
		s.dispatcher = dispatcher
	}
}

func WithChallengeSlots(n int) PlayerOption {
	return func(s *PlayerService) {
		if n > 0 {
			s.slots = n
		}
	}
}

// WithRandom fixes the shuffle source; tests use a seeded one.
func WithRandom(rnd *rand.Rand) PlayerOption {
	return func(s *PlayerService) {
		if rnd != nil {
			s.rnd = rnd
		}
	}
}

func WithPlayerLogger(logger *slog.Logger) PlayerOption {
	return func(s *PlayerService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewPlayerService(ledger *Ledger, mistakes *MistakeAggregator, opts ...PlayerOption) *PlayerService {
	s := &PlayerService{
		ledger:    ledger,
		mistakes:  mistakes,
		logger:    slog.Default(),
		slots:     DefaultChallengeSlots,
		boardSize: DefaultBoardSize,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CompleteSession stores a finished session locally and mirrors it to the
// gateway in the background. Only local validation failures are returned.
func (s *PlayerService) CompleteSession(ctx context.Context, out domain.SessionOutcome) (domain.SessionReport, error) {
	s.mistakes.RecordMistakes(ctx, out.PlayerID, out.Misses)

	errorCount := len(out.Misses)
	result, err := s.ledger.AddRecord(ctx, out.PlayerID, out.PlayerName, out.TableNumber, out.ElapsedMs, errorCount)
	if err != nil {
		return domain.SessionReport{}, err
	}

	accuracy := domain.Accuracy(out.Questions, errorCount)
	report := domain.SessionReport{
		Record:   result,
		Accuracy: accuracy,
		Stars:    domain.StarsForAccuracy(accuracy),
	}

	s.mirror(out, result.Score)
	return report, nil
}

// mirror submits the attempt and its misses without blocking the caller.
// Challenge attempts stay local; the gateway ranks standard tables only.
func (s *PlayerService) mirror(out domain.SessionOutcome, score int) {
	if s.remote == nil || s.dispatcher == nil || !domain.IsStandardTable(out.TableNumber) {
		return
	}
	rec := domain.AttemptRecord{
		PlayerID:    out.PlayerID,
		PlayerName:  domain.DisplayName(out.PlayerName),
		TableNumber: out.TableNumber,
		ElapsedMs:   out.ElapsedMs,
		ErrorCount:  len(out.Misses),
		Score:       score,
	}
	s.dispatcher.Go(func(ctx context.Context) {
		if err := s.remote.SubmitRecord(ctx, rec); err != nil {
			s.logger.Warn("remote_record_submit_failed", "player", rec.PlayerID, "table", rec.TableNumber, "err", err)
		}
	})

	misses := domain.FilterQuestions(out.Misses)
	if len(misses) == 0 {
		return
	}
	if len(misses) > domain.MaxMistakeBatch {
		misses = misses[:domain.MaxMistakeBatch]
	}
	s.dispatcher.Go(func(ctx context.Context) {
		if err := s.remote.SubmitMistakes(ctx, misses); err != nil {
			s.logger.Warn("remote_mistakes_submit_failed", "player", out.PlayerID, "err", err)
		}
	})
}

// ChallengeQuestions builds a challenge from the player's own weak spots.
func (s *PlayerService) ChallengeQuestions(playerID string) []domain.Question {
	top := s.mistakes.TopMistakes(playerID, s.slots)
	return s.selectQuestions(top)
}

// GlobalChallengeQuestions builds a challenge from the population's weak spots.
func (s *PlayerService) GlobalChallengeQuestions(ctx context.Context) ([]domain.Question, error) {
	if s.remote == nil {
		return []domain.Question{}, nil
	}
	top, err := s.remote.TopMistakes(ctx)
	if err != nil {
		return nil, err
	}
	return s.selectQuestions(top), nil
}

// GlobalBoards returns the gateway's boards, or the local ones flagged as
// degraded when the gateway cannot be reached.
func (s *PlayerService) GlobalBoards(ctx context.Context) domain.BoardView {
	if s.remote == nil {
		return s.localView("remote gateway not configured", s.ledger.Boards(s.boardSize))
	}
	boards, err := s.remote.AllTables(ctx)
	if err != nil {
		s.logger.Warn("remote_boards_failed", "err", err)
		return s.localView(err.Error(), s.ledger.Boards(s.boardSize))
	}
	return domain.BoardView{Source: domain.SourceRemote, Tables: boards}
}

// TableBoard is GlobalBoards for a single table and view.
func (s *PlayerService) TableBoard(ctx context.Context, tableNumber int, mode domain.BoardMode) domain.BoardView {
	if s.remote != nil {
		records, err := s.remote.TableBoard(ctx, tableNumber, mode)
		if err == nil {
			return domain.BoardView{Source: domain.SourceRemote, Tables: domain.TableBoards{tableNumber: records}}
		}
		s.logger.Warn("remote_table_board_failed", "table", tableNumber, "err", err)
		return s.localView(err.Error(), s.localTable(tableNumber, mode))
	}
	return s.localView("remote gateway not configured", s.localTable(tableNumber, mode))
}

func (s *PlayerService) localTable(tableNumber int, mode domain.BoardMode) domain.TableBoards {
	var records []domain.AttemptRecord
	if mode == domain.BoardModeAll {
		records = s.ledger.AllAttempts(tableNumber, s.boardSize)
	} else {
		records = s.ledger.BestPerPlayer(tableNumber, s.boardSize)
	}
	return domain.TableBoards{tableNumber: records}
}

func (s *PlayerService) localView(reason string, boards domain.TableBoards) domain.BoardView {
	return domain.BoardView{Source: domain.SourceLocal, Degraded: true, Reason: reason, Tables: boards}
}

func (s *PlayerService) selectQuestions(top []domain.MistakeEntry) []domain.Question {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return SelectChallengeQuestions(top, s.slots, s.rnd)
}
