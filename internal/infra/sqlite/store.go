// Package sqlite persists the player's local ledger and mistake tallies.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"cosmotablas-service/internal/domain"
	"github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var sqlBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

// Store keeps snapshots of ledger tables and per-player mistake tallies.
// Each save replaces the previous snapshot inside one transaction.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (or creates) the database at path and applies migrations.
// Use ":memory:" for a throwaway store.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, log: logger.With("component", "sqlite_store")}
	if err := s.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.log.Debug("local_store_ready", "path", path)
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) applyMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return err
	}
	for _, entry := range entries {
		version := entry.Name()
		var applied int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&applied); err != nil {
			return err
		}
		if applied > 0 {
			continue
		}
		body, err := migrationsFS.ReadFile("migrations/" + version)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("apply migration %s: %w", version, err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return err
		}
		s.log.Debug("migration_applied", "version", version)
	}
	return nil
}

func (s *Store) LoadRecords(ctx context.Context) ([]domain.AttemptRecord, error) {
	query, args, err := sqlBuilder.
		Select("id", "player_id", "player_name", "table_number", "elapsed_ms", "error_count", "score", "recorded_at").
		From("local_records").
		OrderBy("table_number", "id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	defer rows.Close()

	var out []domain.AttemptRecord
	for rows.Next() {
		var (
			rec        domain.AttemptRecord
			recordedAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.PlayerID, &rec.PlayerName, &rec.TableNumber, &rec.ElapsedMs, &rec.ErrorCount, &rec.Score, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.RecordedAt = time.UnixMilli(recordedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) SaveTable(ctx context.Context, tableNumber int, records []domain.AttemptRecord) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		del, args, err := sqlBuilder.Delete("local_records").Where(squirrel.Eq{"table_number": tableNumber}).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, del, args...); err != nil {
			return fmt.Errorf("clear table %d: %w", tableNumber, err)
		}
		if len(records) == 0 {
			return nil
		}

		insert := sqlBuilder.Insert("local_records").
			Columns("id", "player_id", "player_name", "table_number", "elapsed_ms", "error_count", "score", "recorded_at")
		for _, rec := range records {
			insert = insert.Values(rec.ID, rec.PlayerID, rec.PlayerName, tableNumber, rec.ElapsedMs, rec.ErrorCount, rec.Score, rec.RecordedAt.UnixMilli())
		}
		query, args, err := insert.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("save table %d: %w", tableNumber, err)
		}
		return nil
	})
}

func (s *Store) ClearRecords(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM local_records`); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}

func (s *Store) LoadMistakes(ctx context.Context) (map[string][]domain.MistakeEntry, error) {
	query, args, err := sqlBuilder.
		Select("player_id", "table_number", "multiplier", "count").
		From("local_mistakes").
		OrderBy("player_id", "position").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load mistakes: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.MistakeEntry)
	for rows.Next() {
		var (
			playerID string
			entry    domain.MistakeEntry
		)
		if err := rows.Scan(&playerID, &entry.Table, &entry.Multiplier, &entry.Count); err != nil {
			return nil, fmt.Errorf("scan mistake: %w", err)
		}
		out[playerID] = append(out[playerID], entry)
	}
	return out, rows.Err()
}

func (s *Store) SavePlayerMistakes(ctx context.Context, playerID string, entries []domain.MistakeEntry) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		del, args, err := sqlBuilder.Delete("local_mistakes").Where(squirrel.Eq{"player_id": playerID}).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, del, args...); err != nil {
			return fmt.Errorf("clear mistakes: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}

		insert := sqlBuilder.Insert("local_mistakes").
			Columns("player_id", "table_number", "multiplier", "count", "position")
		for i, e := range entries {
			insert = insert.Values(playerID, e.Table, e.Multiplier, e.Count, i)
		}
		query, args, err := insert.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("save mistakes: %w", err)
		}
		return nil
	})
}

func (s *Store) ClearMistakes(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM local_mistakes`); err != nil {
		return fmt.Errorf("clear mistakes: %w", err)
	}
	return nil
}

func (s *Store) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
