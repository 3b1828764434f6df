package postgres

import (
	"context"
	"fmt"

	"cosmotablas-service/internal/domain"
	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var recordColumns = []string{"id", "user_id", "user_name", "table_number", "time_ms", "errors", "points", "created_at"}

// Leaderboard ordering shared by every query: score, then age, then insertion.
var boardOrder = []string{"points ASC", "created_at ASC", "id ASC"}

// RecordRepository stores accepted attempts in global_records.
type RecordRepository struct {
	pool *pgxpool.Pool
}

func NewRecordRepository(pool *pgxpool.Pool) *RecordRepository {
	return &RecordRepository{pool: pool}
}

func (r *RecordRepository) InsertRecord(ctx context.Context, rec domain.AttemptRecord) (int64, error) {
	query, args, err := psql.Insert("global_records").
		Columns("user_id", "user_name", "table_number", "time_ms", "errors", "points", "created_at").
		Values(rec.PlayerID, rec.PlayerName, rec.TableNumber, rec.ElapsedMs, rec.ErrorCount, rec.Score, rec.RecordedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}

	var id int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}
	return id, nil
}

// BestPerPlayer picks each player's best row with DISTINCT ON, then ranks
// those rows. limit <= 0 means no limit.
func (r *RecordRepository) BestPerPlayer(ctx context.Context, tableNumber, limit int) ([]domain.AttemptRecord, error) {
	return r.query(ctx, bestPerPlayerQuery(tableNumber, limit))
}

func bestPerPlayerQuery(tableNumber, limit int) squirrel.SelectBuilder {
	inner := squirrel.Select(recordColumns...).
		Options("DISTINCT ON (user_id)").
		From("global_records").
		Where(squirrel.Eq{"table_number": tableNumber}).
		OrderBy(append([]string{"user_id"}, boardOrder...)...)

	q := psql.Select(recordColumns...).
		FromSelect(inner, "best").
		OrderBy(boardOrder...)
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return q
}

func (r *RecordRepository) AllAttempts(ctx context.Context, tableNumber, limit int) ([]domain.AttemptRecord, error) {
	q := psql.Select(recordColumns...).
		From("global_records").
		Where(squirrel.Eq{"table_number": tableNumber}).
		OrderBy(boardOrder...)
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return r.query(ctx, q)
}

func (r *RecordRepository) TablesWithRecords(ctx context.Context) ([]int, error) {
	query, args, err := psql.Select("DISTINCT table_number").
		From("global_records").
		OrderBy("table_number").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build tables query: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, n)
	}
	return tables, rows.Err()
}

func (r *RecordRepository) query(ctx context.Context, q squirrel.SelectBuilder) ([]domain.AttemptRecord, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build leaderboard query: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows pgx.Rows) ([]domain.AttemptRecord, error) {
	records := []domain.AttemptRecord{}
	for rows.Next() {
		var rec domain.AttemptRecord
		if err := rows.Scan(&rec.ID, &rec.PlayerID, &rec.PlayerName, &rec.TableNumber, &rec.ElapsedMs, &rec.ErrorCount, &rec.Score, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
