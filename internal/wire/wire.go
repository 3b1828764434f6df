// Package wire defines the JSON bodies exchanged with the records gateway.
// Field names follow the deployed web client, so they mix camelCase requests
// with snake_case leaderboard rows.
package wire

import (
	"math"
	"time"

	"cosmotablas-service/internal/domain"
)

// RecordRequest is the body of POST /records. Numeric fields are pointers so
// an absent field can be told apart from zero.
type RecordRequest struct {
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
	TableNumber *int   `json:"tableNumber"`
	TimeMs      *int64 `json:"timeMs"`
	Errors      *int   `json:"errors"`
	Points      *int   `json:"points"`
}

func NewRecordRequest(rec domain.AttemptRecord) RecordRequest {
	table, elapsed, errs, points := rec.TableNumber, rec.ElapsedMs, rec.ErrorCount, rec.Score
	return RecordRequest{
		UserID:      rec.PlayerID,
		UserName:    rec.PlayerName,
		TableNumber: &table,
		TimeMs:      &elapsed,
		Errors:      &errs,
		Points:      &points,
	}
}

func (r RecordRequest) Submission() domain.Submission {
	return domain.Submission{
		PlayerID:     r.UserID,
		PlayerName:   r.UserName,
		TableNumber:  r.TableNumber,
		ElapsedMs:    r.TimeMs,
		ErrorCount:   r.Errors,
		ClaimedScore: r.Points,
	}
}

type RecordCreated struct {
	Success bool  `json:"success"`
	ID      int64 `json:"id"`
}

// Record is one leaderboard row; Date is epoch milliseconds.
type Record struct {
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	TableNumber int    `json:"table_number"`
	TimeMs      int64  `json:"time_ms"`
	Errors      int    `json:"errors"`
	Points      int    `json:"points"`
	Date        int64  `json:"date"`
}

func FromRecord(rec domain.AttemptRecord) Record {
	return Record{
		UserID:      rec.PlayerID,
		UserName:    rec.PlayerName,
		TableNumber: rec.TableNumber,
		TimeMs:      rec.ElapsedMs,
		Errors:      rec.ErrorCount,
		Points:      rec.Score,
		Date:        rec.RecordedAt.UnixMilli(),
	}
}

func FromRecords(records []domain.AttemptRecord) []Record {
	out := make([]Record, len(records))
	for i, rec := range records {
		out[i] = FromRecord(rec)
	}
	return out
}

func (r Record) Domain() domain.AttemptRecord {
	return domain.AttemptRecord{
		PlayerID:    r.UserID,
		PlayerName:  r.UserName,
		TableNumber: r.TableNumber,
		ElapsedMs:   r.TimeMs,
		ErrorCount:  r.Errors,
		Score:       r.Points,
		RecordedAt:  time.UnixMilli(r.Date),
	}
}

func ToRecords(rows []Record) []domain.AttemptRecord {
	out := make([]domain.AttemptRecord, len(rows))
	for i, row := range rows {
		out[i] = row.Domain()
	}
	return out
}

type RecordsResponse struct {
	Records []Record `json:"records"`
}

// TablesResponse maps table numbers (as JSON object keys) to their boards.
type TablesResponse struct {
	Tables map[int][]Record `json:"tables"`
}

func FromBoards(boards domain.TableBoards) TablesResponse {
	tables := make(map[int][]Record, len(boards))
	for n, records := range boards {
		if len(records) == 0 {
			continue
		}
		tables[n] = FromRecords(records)
	}
	return TablesResponse{Tables: tables}
}

func (t TablesResponse) Boards() domain.TableBoards {
	boards := make(domain.TableBoards, len(t.Tables))
	for n, rows := range t.Tables {
		boards[n] = ToRecords(rows)
	}
	return boards
}

// MistakeReport is one entry of POST /mistakes. Values are left untyped so a
// malformed entry is dropped instead of failing the whole batch.
type MistakeReport struct {
	Table      any `json:"table"`
	Multiplier any `json:"multiplier"`
}

// Key returns the reported pair, or the zero key when either value is not an
// integral number.
func (m MistakeReport) Key() domain.QuestionKey {
	table, ok1 := integral(m.Table)
	mult, ok2 := integral(m.Multiplier)
	if !ok1 || !ok2 {
		return domain.QuestionKey{}
	}
	return domain.QuestionKey{Table: table, Multiplier: mult}
}

type MistakesRequest struct {
	Mistakes []MistakeReport `json:"mistakes"`
}

func NewMistakesRequest(keys []domain.QuestionKey) MistakesRequest {
	reports := make([]MistakeReport, len(keys))
	for i, k := range keys {
		reports[i] = MistakeReport{Table: k.Table, Multiplier: k.Multiplier}
	}
	return MistakesRequest{Mistakes: reports}
}

func (r MistakesRequest) Keys() []domain.QuestionKey {
	keys := make([]domain.QuestionKey, len(r.Mistakes))
	for i, m := range r.Mistakes {
		keys[i] = m.Key()
	}
	return keys
}

type MistakesAccepted struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

type MistakesResponse struct {
	Mistakes []domain.MistakeEntry `json:"mistakes"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func integral(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
