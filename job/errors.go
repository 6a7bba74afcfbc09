package job

import "errors"

// Sentinel errors so callers can detect conditions via errors.Is instead of
// string comparisons.
var (
	// ErrInvalidArgument indicates caller misuse: empty uid, empty task id or
	// a nil params map. The offending call leaves the job unmodified.
	ErrInvalidArgument = errors.New("job: invalid argument")

	// ErrUnknownTask is returned when an effective plan spec references a
	// task identifier with no registered definition. Fatal to the run.
	ErrUnknownTask = errors.New("job: unknown task")

	// ErrPlanExhausted is returned when a next block is requested after the
	// cursor passed the last effective plan group.
	ErrPlanExhausted = errors.New("job: plan exhausted")
)
