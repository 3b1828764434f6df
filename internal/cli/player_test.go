package cli

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"cosmotablas-service/internal/domain"
	"cosmotablas-service/internal/infra/sqlite"
	"github.com/goccy/go-json"
)

func TestParseMisses(t *testing.T) {
	keys, err := parseMisses([]string{"7x8", " 3X4 "})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(keys) != 2 || keys[0] != (domain.QuestionKey{Table: 7, Multiplier: 8}) || keys[1] != (domain.QuestionKey{Table: 3, Multiplier: 4}) {
		t.Fatalf("unexpected keys %+v", keys)
	}
	for _, bad := range []string{"78", "ax8", "7x"} {
		if _, err := parseMisses([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestRecordThenChallengeOffline(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_PATH", filepath.Join(dir, "absent.yaml"))
	chdir(t, dir)

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"record", "--player", "p1", "--name", "Ana", "--table", "7", "--elapsed-ms", "9000", "--miss", "7x8", "--miss", "7x6"})
	if err := root.Execute(); err != nil {
		t.Fatalf("record: %v", err)
	}
	var report domain.SessionReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v (%s)", err, out.String())
	}
	if report.Record.Score != 19 || report.Record.Rank != 1 || report.Stars != 2 {
		t.Fatalf("unexpected report %+v", report)
	}

	out.Reset()
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"challenge", "--player", "p1"})
	if err := root.Execute(); err != nil {
		t.Fatalf("challenge: %v", err)
	}
	var questions []domain.Question
	if err := json.Unmarshal(out.Bytes(), &questions); err != nil {
		t.Fatalf("decode questions: %v", err)
	}
	if len(questions) != 8 {
		t.Fatalf("expected 8 questions from the persisted mistakes, got %d", len(questions))
	}

	out.Reset()
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"leaderboard", "--table", "7"})
	if err := root.Execute(); err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	var view domain.BoardView
	if err := json.Unmarshal(out.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if !view.Degraded || view.Source != domain.SourceLocal || len(view.Tables[7]) != 1 {
		t.Fatalf("expected degraded local view, got %+v", view)
	}
}

func TestRecordSurvivesCorruptedLocalData(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_PATH", filepath.Join(dir, "absent.yaml"))
	chdir(t, dir)

	store, err := sqlite.Open(context.Background(), defaultLocalDB, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	db, err := sql.Open("sqlite3", defaultLocalDB)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	_, err = db.Exec(`INSERT INTO local_records (id, player_id, player_name, table_number, elapsed_ms, error_count, score, recorded_at)
		VALUES (1, 'p0', 'Old', 7, 'oops', 0, 9, 0)`)
	if closeErr := db.Close(); closeErr != nil {
		t.Fatalf("close raw: %v", closeErr)
	}
	if err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"record", "--player", "p1", "--name", "Ana", "--table", "7", "--elapsed-ms", "9000"})
	if err := root.Execute(); err != nil {
		t.Fatalf("record must survive unreadable local data: %v", err)
	}
	var report domain.SessionReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v (%s)", err, out.String())
	}
	if report.Record.Score != 9 || report.Record.Rank != 1 || report.Record.TotalPlayers != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
