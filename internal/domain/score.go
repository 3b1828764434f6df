package domain

import (
	"math"
	"strings"
	"unicode/utf8"
)

const (
	MinTable      = 2
	MaxTable      = 9
	MinMultiplier = 2
	MaxMultiplier = 9

	// ChallengeTable marks attempts made in challenge mode. It is accepted by
	// the local ledger only; the shared gateway ranks standard tables.
	ChallengeTable = 99

	// MinElapsedMs is the fastest plausible duration for a full session.
	MinElapsedMs = 3000
	// ErrorPenalty is the number of points added per first-attempt mistake.
	ErrorPenalty = 5
	// MaxPlayerNameLen bounds display names, counted in characters.
	MaxPlayerNameLen = 15
	// MaxMistakeBatch caps how many mistakes a single request may report.
	MaxMistakeBatch = 20

	// MaxElapsedMs and MaxErrorCount bound attempt inputs so every score
	// fits the 32-bit columns it is stored in.
	MaxElapsedMs  = math.MaxInt32
	MaxErrorCount = 1_000_000
)

// ComputeScore maps an attempt to its points: elapsed seconds rounded half
// away from zero, plus ErrorPenalty per error. Lower is better. Inputs are
// expected within MaxElapsedMs and MaxErrorCount.
func ComputeScore(elapsedMs int64, errorCount int) int {
	return int(math.Round(float64(elapsedMs)/1000)) + errorCount*ErrorPenalty
}

// IsStandardTable reports whether n is one of the ranked tables 2..9.
func IsStandardTable(n int) bool {
	return n >= MinTable && n <= MaxTable
}

// IsLedgerTable reports whether the local ledger accepts n.
func IsLedgerTable(n int) bool {
	return IsStandardTable(n) || n == ChallengeTable
}

// CheckStandardTable returns the wire validation error for tables outside 2..9.
func CheckStandardTable(n int) error {
	if !IsStandardTable(n) {
		return errInvalidTable
	}
	return nil
}

// ValidQuestion reports whether k lies in the 2..9 x 2..9 grid.
func ValidQuestion(k QuestionKey) bool {
	return IsStandardTable(k.Table) && k.Multiplier >= MinMultiplier && k.Multiplier <= MaxMultiplier
}

// NormalizePlayerName trims raw and checks its length.
func NormalizePlayerName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(name)
	if n < 1 || n > MaxPlayerNameLen {
		return "", errInvalidName
	}
	return name, nil
}

// DisplayName is the name the local ledger stores: trimmed, then truncated.
func DisplayName(raw string) string {
	return TruncateName(strings.TrimSpace(raw))
}

// TruncateName cuts name to MaxPlayerNameLen characters.
func TruncateName(name string) string {
	if utf8.RuneCountInString(name) <= MaxPlayerNameLen {
		return name
	}
	return string([]rune(name)[:MaxPlayerNameLen])
}

// ValidateAttempt checks the inputs of a local ledger insertion.
func ValidateAttempt(tableNumber int, elapsedMs int64, errorCount int) error {
	if !IsLedgerTable(tableNumber) {
		return errInvalidTable
	}
	if errorCount < 0 || errorCount > MaxErrorCount {
		return errInvalidErrors
	}
	if elapsedMs < MinElapsedMs || elapsedMs > MaxElapsedMs {
		return errInvalidTime
	}
	return nil
}

// Submission is an attempt claimed by a remote client. Nil fields were absent
// from the request.
type Submission struct {
	PlayerID     string
	PlayerName   string
	TableNumber  *int
	ElapsedMs    *int64
	ErrorCount   *int
	ClaimedScore *int
}

// Verify applies the gateway trust boundary and returns the record to store.
// Checks run in a fixed order so clients always see the same reason for the
// same payload. The claimed score is never corrected, only compared.
func (s Submission) Verify() (AttemptRecord, error) {
	if s.PlayerID == "" || s.PlayerName == "" || s.TableNumber == nil || *s.TableNumber == 0 ||
		s.ElapsedMs == nil || s.ErrorCount == nil || s.ClaimedScore == nil {
		return AttemptRecord{}, errMissingFields
	}
	if !IsStandardTable(*s.TableNumber) {
		return AttemptRecord{}, errInvalidTable
	}
	name, err := NormalizePlayerName(s.PlayerName)
	if err != nil {
		return AttemptRecord{}, err
	}
	if *s.ErrorCount < 0 || *s.ErrorCount > MaxErrorCount {
		return AttemptRecord{}, errInvalidErrors
	}
	score := ComputeScore(*s.ElapsedMs, *s.ErrorCount)
	if score != *s.ClaimedScore {
		return AttemptRecord{}, errScoreMismatch
	}
	if *s.ElapsedMs < MinElapsedMs || *s.ElapsedMs > MaxElapsedMs {
		return AttemptRecord{}, errInvalidTime
	}
	return AttemptRecord{
		PlayerID:    s.PlayerID,
		PlayerName:  TruncateName(name),
		TableNumber: *s.TableNumber,
		ElapsedMs:   *s.ElapsedMs,
		ErrorCount:  *s.ErrorCount,
		Score:       score,
	}, nil
}

// FilterMistakeBatch caps a reported batch to MaxMistakeBatch entries and
// drops pairs outside the grid.
func FilterMistakeBatch(batch []QuestionKey) ([]QuestionKey, error) {
	if len(batch) == 0 {
		return nil, errMissingBatch
	}
	if len(batch) > MaxMistakeBatch {
		batch = batch[:MaxMistakeBatch]
	}
	valid := FilterQuestions(batch)
	if len(valid) == 0 {
		return nil, errNoValidBatch
	}
	return valid, nil
}

// FilterQuestions keeps the pairs inside the grid, in order.
func FilterQuestions(keys []QuestionKey) []QuestionKey {
	valid := make([]QuestionKey, 0, len(keys))
	for _, k := range keys {
		if ValidQuestion(k) {
			valid = append(valid, k)
		}
	}
	return valid
}
