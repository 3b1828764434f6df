package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cosmotablas-service/internal/app"
	"cosmotablas-service/internal/domain"
	"cosmotablas-service/internal/infra/memory"
	"cosmotablas-service/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGatewaySubmitAndQuery(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(nil)

	if _, err := gw.Submit(ctx, submission("a", "Ana", 5, 12000, 0, 12)); err != nil {
		t.Fatalf("submit A: %v", err)
	}
	if _, err := gw.Submit(ctx, submission("b", "Beto", 5, 9000, 1, 14)); err != nil {
		t.Fatalf("submit B: %v", err)
	}
	if _, err := gw.Submit(ctx, submission("a", "Ana", 5, 20000, 0, 20)); err != nil {
		t.Fatalf("submit A again: %v", err)
	}

	best, err := gw.Leaderboard(ctx, 5, domain.BoardModeBest)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(best) != 2 || best[0].PlayerID != "a" || best[0].Score != 12 {
		t.Fatalf("unexpected best view %+v", best)
	}
	all, _ := gw.Leaderboard(ctx, 5, domain.BoardModeAll)
	if len(all) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(all))
	}

	boards, err := gw.AllTables(ctx)
	if err != nil {
		t.Fatalf("all tables: %v", err)
	}
	if len(boards) != 1 || len(boards[5]) != 2 {
		t.Fatalf("unexpected boards %+v", boards)
	}
}

func TestGatewayRejectsTamperedScore(t *testing.T) {
	ctx := context.Background()
	m := metrics.NewRecorder()
	gw := newTestGateway(m)

	_, err := gw.Submit(ctx, submission("a", "Ana", 5, 10000, 1, 10))
	if !errors.Is(err, domain.ErrScoreMismatch) || domain.Reason(err) != "Points mismatch" {
		t.Fatalf("expected points mismatch, got %v", err)
	}
	_, err = gw.Submit(ctx, submission("a", "Ana", 5, 2999, 0, 3))
	if !errors.Is(err, domain.ErrImplausibleDuration) {
		t.Fatalf("expected implausible duration, got %v", err)
	}
	if best, _ := gw.Leaderboard(ctx, 5, domain.BoardModeAll); len(best) != 0 {
		t.Fatalf("rejected submissions must not be stored, got %+v", best)
	}

	if _, err := gw.Submit(ctx, submission("a", "Ana", 5, 10000, 1, 15)); err != nil {
		t.Fatalf("valid submit: %v", err)
	}
	if got := testutil.CollectAndCount(m.Registry(), "cosmotablas_record_submissions_total"); got != 3 {
		t.Fatalf("expected 3 submission series, got %d", got)
	}
}

func TestGatewayLeaderboardRejectsBadTable(t *testing.T) {
	gw := newTestGateway(nil)
	for _, table := range []int{0, 1, 10, domain.ChallengeTable} {
		if _, err := gw.Leaderboard(context.Background(), table, domain.BoardModeBest); !errors.Is(err, domain.ErrInvalidTable) {
			t.Fatalf("table %d: expected invalid table, got %v", table, err)
		}
	}
}

func TestGatewayIngestMistakes(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(nil)

	batch := make([]domain.QuestionKey, 0, 25)
	for i := 0; i < 25; i++ {
		batch = append(batch, domain.QuestionKey{Table: 7, Multiplier: 8})
	}
	batch[3] = domain.QuestionKey{Table: 11, Multiplier: 8}

	n, err := gw.IngestMistakes(ctx, batch)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if n != 19 {
		t.Fatalf("expected 19 accepted after capping and filtering, got %d", n)
	}

	top, err := gw.TopMistakes(ctx)
	if err != nil {
		t.Fatalf("top mistakes: %v", err)
	}
	if len(top) != 1 || top[0].Count != 19 {
		t.Fatalf("unexpected top mistakes %+v", top)
	}

	if _, err := gw.IngestMistakes(ctx, nil); !errors.Is(err, domain.ErrMissingMistakes) {
		t.Fatalf("expected missing mistakes, got %v", err)
	}
	if _, err := gw.IngestMistakes(ctx, []domain.QuestionKey{{Table: 1, Multiplier: 1}}); !errors.Is(err, domain.ErrNoValidMistakes) {
		t.Fatalf("expected no valid mistakes, got %v", err)
	}
}

func TestGatewaySubscribeReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(nil)

	ch, cancel, err := gw.Subscribe(ctx, 4)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	initial := <-ch
	if initial.TableNumber != 4 || len(initial.Records) != 0 {
		t.Fatalf("unexpected initial board %+v", initial)
	}

	if _, err := gw.Submit(ctx, submission("a", "Ana", 4, 7000, 0, 7)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case update := <-ch:
		if len(update.Records) != 1 || update.Records[0].PlayerID != "a" {
			t.Fatalf("unexpected update %+v", update)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for board update")
	}

	if _, _, err := gw.Subscribe(ctx, 12); !errors.Is(err, domain.ErrInvalidTable) {
		t.Fatalf("expected invalid table, got %v", err)
	}
}

func newTestGateway(m *metrics.Recorder) *app.GatewayService {
	records := memory.NewRecordRepository()
	mistakes := memory.NewMistakeRepository()
	boards := memory.NewBoardRepository(app.NewBoardLoader(records, mistakes, 10, 20), 30*time.Second, m)
	return app.NewGatewayService(records, mistakes, boards,
		app.WithMetrics(m),
		app.WithGatewayLogger(discardLogger()),
	)
}

func submission(id, name string, table int, elapsed int64, errs, points int) domain.Submission {
	return domain.Submission{
		PlayerID:     id,
		PlayerName:   name,
		TableNumber:  &table,
		ElapsedMs:    &elapsed,
		ErrorCount:   &errs,
		ClaimedScore: &points,
	}
}
