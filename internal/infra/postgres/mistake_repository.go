package postgres

import (
	"context"
	"fmt"

	"cosmotablas-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// MistakeRepository keeps the global per-question counters in question_mistakes.
type MistakeRepository struct {
	pool *pgxpool.Pool
}

func NewMistakeRepository(pool *pgxpool.Pool) *MistakeRepository {
	return &MistakeRepository{pool: pool}
}

// IncrementMistakes upserts one row per key. The increment happens in the
// database so concurrent batches for the same question never lose counts;
// the batch runs as a single implicit transaction.
func (r *MistakeRepository) IncrementMistakes(ctx context.Context, keys []domain.QuestionKey) error {
	if len(keys) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, k := range keys {
		query, args, err := psql.Insert("question_mistakes").
			Columns("table_number", "multiplier", "error_count").
			Values(k.Table, k.Multiplier, 1).
			Suffix("ON CONFLICT (table_number, multiplier) DO UPDATE SET error_count = question_mistakes.error_count + 1, updated_at = now()").
			ToSql()
		if err != nil {
			return fmt.Errorf("build upsert: %w", err)
		}
		batch.Queue(query, args...)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range keys {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("increment mistake: %w", err)
		}
	}
	return nil
}

func (r *MistakeRepository) TopMistakes(ctx context.Context, limit int) ([]domain.MistakeEntry, error) {
	q := psql.Select("table_number", "multiplier", "error_count").
		From("question_mistakes").
		OrderBy("error_count DESC", "table_number ASC", "multiplier ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build top mistakes: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query top mistakes: %w", err)
	}
	defer rows.Close()

	entries := []domain.MistakeEntry{}
	for rows.Next() {
		var e domain.MistakeEntry
		if err := rows.Scan(&e.Table, &e.Multiplier, &e.Count); err != nil {
			return nil, fmt.Errorf("scan mistake: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
