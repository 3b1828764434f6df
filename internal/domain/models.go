package domain

import "time"

// AttemptRecord is one completed quiz attempt on a table.
type AttemptRecord struct {
	ID          int64     `json:"id"`
	PlayerID    string    `json:"playerId"`
	PlayerName  string    `json:"playerName"`
	TableNumber int       `json:"tableNumber"`
	ElapsedMs   int64     `json:"elapsedMs"`
	ErrorCount  int       `json:"errorCount"`
	Score       int       `json:"score"` // always ComputeScore(ElapsedMs, ErrorCount)
	RecordedAt  time.Time `json:"recordedAt"`
}

// Less orders records for every leaderboard: lower score first, then the
// earlier attempt, then the lower insertion id.
func Less(a, b AttemptRecord) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if !a.RecordedAt.Equal(b.RecordedAt) {
		return a.RecordedAt.Before(b.RecordedAt)
	}
	return a.ID < b.ID
}

// RecordResult summarizes a freshly inserted attempt.
type RecordResult struct {
	Rank              int  `json:"rank"` // 1-indexed, 0 when the player has no record left
	TotalPlayers      int  `json:"totalPlayers"`
	IsNewPersonalBest bool `json:"isNewPersonalBest"`
	IsAbsoluteRecord  bool `json:"isAbsoluteRecord"`
	Score             int  `json:"score"`
}

// QuestionKey identifies one multiplication fact.
type QuestionKey struct {
	Table      int `json:"table"`
	Multiplier int `json:"multiplier"`
}

// MistakeEntry is a tallied weak spot.
type MistakeEntry struct {
	Table      int `json:"table"`
	Multiplier int `json:"multiplier"`
	Count      int `json:"count"`
}

// Key returns the fact the entry counts.
func (m MistakeEntry) Key() QuestionKey {
	return QuestionKey{Table: m.Table, Multiplier: m.Multiplier}
}

// Question is a single prompt in a session.
type Question struct {
	ID         string `json:"id"`
	Table      int    `json:"table"`
	Multiplier int    `json:"multiplier"`
	Answer     int    `json:"answer"`
}

// TableBoards maps a table number to its best-per-player leaderboard.
type TableBoards map[int][]AttemptRecord

// BoardMode selects which leaderboard view of a table is returned.
type BoardMode string

const (
	BoardModeBest BoardMode = "best"
	BoardModeAll  BoardMode = "all"
)

// ParseBoardMode maps anything other than "all" to the best-per-player view.
func ParseBoardMode(raw string) BoardMode {
	if raw == string(BoardModeAll) {
		return BoardModeAll
	}
	return BoardModeBest
}

// SessionOutcome is what a finished session hands to the records core.
type SessionOutcome struct {
	PlayerID    string
	PlayerName  string
	TableNumber int
	ElapsedMs   int64
	Questions   int
	Misses      []QuestionKey // first-attempt wrong answers
}

// SessionReport is returned to the collaborator that displays the results.
type SessionReport struct {
	Record   RecordResult `json:"record"`
	Accuracy int          `json:"accuracy"`
	Stars    int          `json:"stars"`
}

// BoardSource tells the collaborator where displayed boards came from.
type BoardSource string

const (
	SourceRemote BoardSource = "remote"
	SourceLocal  BoardSource = "local"
)

// BoardView wraps global boards with their provenance. Degraded is set when
// the remote gateway failed and local data is shown instead.
type BoardView struct {
	Source   BoardSource `json:"source"`
	Degraded bool        `json:"degraded"`
	Reason   string      `json:"reason,omitempty"`
	Tables   TableBoards `json:"tables"`
}

// TableBoard is a point-in-time best-per-player leaderboard of one table.
type TableBoard struct {
	TableNumber int             `json:"tableNumber"`
	Records     []AttemptRecord `json:"records"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}
