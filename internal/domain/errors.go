package domain

import "errors"

var (
	// ErrMissingFields is returned when a submission lacks a required field.
	ErrMissingFields = errors.New("missing required fields")
	// ErrInvalidTable indicates a table number outside the accepted domain.
	ErrInvalidTable = errors.New("invalid table number")
	// ErrInvalidPlayerName indicates an empty or oversized display name.
	ErrInvalidPlayerName = errors.New("invalid player name")
	// ErrInvalidErrorCount indicates a negative error count.
	ErrInvalidErrorCount = errors.New("invalid error count")
	// ErrScoreMismatch is returned when a claimed score differs from the recomputed one.
	ErrScoreMismatch = errors.New("score mismatch")
	// ErrImplausibleDuration rejects attempts faster than MinElapsedMs.
	ErrImplausibleDuration = errors.New("implausible duration")
	// ErrMissingMistakes is returned when a mistake batch is absent or empty.
	ErrMissingMistakes = errors.New("missing mistakes")
	// ErrNoValidMistakes is returned when filtering leaves no mistake to count.
	ErrNoValidMistakes = errors.New("no valid mistakes")
)

// ValidationError carries the machine-readable reason sent back to clients.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(reason string, err error) error {
	return &ValidationError{Reason: reason, Err: err}
}

// Validation failures with their wire reasons.
var (
	errMissingFields = invalid("Missing required fields", ErrMissingFields)
	errInvalidTable  = invalid("Invalid table number", ErrInvalidTable)
	errInvalidName   = invalid("Invalid user name", ErrInvalidPlayerName)
	errInvalidErrors = invalid("Invalid errors", ErrInvalidErrorCount)
	errScoreMismatch = invalid("Points mismatch", ErrScoreMismatch)
	errInvalidTime   = invalid("Invalid time", ErrImplausibleDuration)
	errMissingBatch  = invalid("Missing mistakes array", ErrMissingMistakes)
	errNoValidBatch  = invalid("No valid mistakes", ErrNoValidMistakes)
)

// Reason returns the wire reason of a validation error, or "" for anything else.
func Reason(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Reason
	}
	return ""
}
