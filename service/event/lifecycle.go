package event

// Event type names used in Context.EventType.
const (
	TypeJobStarted   = "jobStarted"
	TypeBlockApplied = "blockApplied"
	TypeJobFailed    = "jobFailed"
)

// JobStarted is published exactly once per run, after the agent setup hook
// completed and the effective plan was derived, before any block is applied.
type JobStarted struct {
	JobUID string `json:"jobUID"`
	RunID  string `json:"runID"`
	Groups int    `json:"groups"`
}

// BlockApplied is published every time an execution block has been appended
// to a job's execution queue. Block is the zero-based plan cursor, Units the
// number of execution units in the block (chain links included).
type BlockApplied struct {
	JobUID string `json:"jobUID"`
	RunID  string `json:"runID"`
	Block  int    `json:"block"`
	Units  int    `json:"units"`
}

// JobFailed is published when a run halts on a fatal error (unknown task at
// build time or a task instance failure).
type JobFailed struct {
	JobUID string `json:"jobUID"`
	RunID  string `json:"runID"`
	Error  string `json:"error"`
}
