package records

import "errors"

var (
	ErrEntryNotFound    = errors.New("entry not found")
	ErrExerciseNotFound = errors.New("exercise not found")
	ErrRecordNotFound   = errors.New("record not found")

	// ErrInvalidEntry marks a malformed lift log (no sets, non-positive reps, negative weight).
	// It is a validation failure and must not be retried.
	ErrInvalidEntry   = errors.New("invalid entry")
	ErrInvalidTrigger = errors.New("invalid trigger")
	ErrInvalidQuery   = errors.New("invalid query")

	// ErrInconsistentLedger aborts a recalculation pass when the stored ledger
	// violates the single chain head per record slot rule.
	ErrInconsistentLedger = errors.New("inconsistent ledger")
	// ErrCascadeTooLarge aborts a recalculation pass which would have to
	// reclassify more entries than allowed by Config.MaxCascade.
	ErrCascadeTooLarge = errors.New("cascade too large")
)

// ErrorKind maps an error returned from this package to a short label,
// used for metrics and HTTP status mapping.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidEntry), errors.Is(err, ErrInvalidTrigger), errors.Is(err, ErrInvalidQuery):
		return "invalid_input"
	case errors.Is(err, ErrEntryNotFound), errors.Is(err, ErrExerciseNotFound), errors.Is(err, ErrRecordNotFound):
		return "not_found"
	case errors.Is(err, ErrInconsistentLedger):
		return "inconsistent_ledger"
	case errors.Is(err, ErrCascadeTooLarge):
		return "cascade_too_large"
	default:
		return "internal"
	}
}
