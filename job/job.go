// Package job implements the execution coordinator for a named set of tasks:
// callers enqueue task identifiers against an agent's master plan, then run
// the job, which filters the plan, expands it into execution blocks and
// advances through them one synchronization group at a time.
package job

import (
	"context"
	"fmt"
	"log"
	"sync"

	"scrapeflow/agent"
	"scrapeflow/httpclient"
	"scrapeflow/internal/idgen"
	"scrapeflow/service/event"
	"scrapeflow/tracing"
)

// Job lifecycle states.
const (
	StateNotStarted = "notStarted"
	StatePreparing  = "preparing"
	StateRunning    = "running"
	StateCompleted  = "completed"
	StateFailed     = "failed"
)

// Option customises a job.
type Option func(j *Job)

// WithEvents attaches the event service lifecycle notifications are
// published through. Without one the job still runs, silently.
func WithEvents(events *event.Service) Option {
	return func(j *Job) {
		j.events = events
	}
}

// WithClient replaces the job's HTTP client (shared cookie jar and request
// log for all task instances of the run).
func WithClient(client *httpclient.Client) Option {
	return func(j *Job) {
		j.client = client
	}
}

// Job coordinates one run of a caller-selected subset of an agent's master
// plan. All exported methods are safe for concurrent use.
type Job struct {
	uid    string
	agent  *agent.Agent
	client *httpclient.Client
	events *event.Service

	mux       sync.RWMutex
	err       error
	runID     string
	params    map[string]interface{}
	enqueued  []string
	effective EffectivePlan
	queue     []*ExecutionBlock
	cursor    int
	state     string
	started   bool
	runErr    error
}

// New creates a job owned by the supplied agent.
func New(uid string, a *agent.Agent, opts ...Option) (*Job, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: uid cannot be empty", ErrInvalidArgument)
	}
	if a == nil {
		return nil, fmt.Errorf("%w: agent cannot be nil", ErrInvalidArgument)
	}
	j := &Job{
		uid:    uid,
		agent:  a,
		params: make(map[string]interface{}),
		cursor: -1,
		state:  StateNotStarted,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.client == nil {
		client, err := httpclient.New()
		if err != nil {
			return nil, err
		}
		j.client = client
	}
	return j, nil
}

// Enqueue appends a task identifier to the run request. It may be called any
// number of times before Run; duplicates are permitted and significant. An
// empty identifier leaves the job unmodified and latches ErrInvalidArgument
// (see Err), keeping the call chainable.
func (j *Job) Enqueue(taskID string) *Job {
	j.mux.Lock()
	defer j.mux.Unlock()
	if taskID == "" {
		if j.err == nil {
			j.err = fmt.Errorf("%w: task id cannot be empty", ErrInvalidArgument)
		}
		return j
	}
	j.enqueued = append(j.enqueued, taskID)
	return j
}

// Params shallow-merges the supplied map into the job's parameters, keys
// already present are overwritten. A nil map leaves the job unmodified and
// latches ErrInvalidArgument.
func (j *Job) Params(params map[string]interface{}) *Job {
	j.mux.Lock()
	defer j.mux.Unlock()
	if params == nil {
		if j.err == nil {
			j.err = fmt.Errorf("%w: params cannot be nil", ErrInvalidArgument)
		}
		return j
	}
	for key, value := range params {
		j.params[key] = value
	}
	return j
}

// Err returns the first error latched by a chainable call, or nil.
func (j *Job) Err() error {
	j.mux.RLock()
	defer j.mux.RUnlock()
	return j.err
}

// Run starts the job: it invokes the agent's setup hook, derives the
// effective plan from the enqueued identifiers and produces the first
// execution block. Run is idempotent – only the first call has any effect,
// subsequent calls return nil immediately.
func (j *Job) Run(ctx context.Context) (err error) {
	j.mux.Lock()
	if j.err != nil {
		err = j.err
		j.mux.Unlock()
		return err
	}
	if j.started {
		j.mux.Unlock()
		return nil
	}
	j.started = true
	j.state = StatePreparing
	j.runID = idgen.New()
	enqueued := make([]string, len(j.enqueued))
	copy(enqueued, j.enqueued)
	j.mux.Unlock()

	ctx, span := tracing.StartSpan(ctx, "job.run "+j.uid, "INTERNAL")
	span.WithAttributes(map[string]string{"job.uid": j.uid, "agent.name": j.agent.Name()})
	defer func() { tracing.EndSpan(span, err) }()

	// Preparation always completes in full before the first block exists.
	if err = j.agent.Setup(ctx, j); err != nil {
		j.fail(ctx, err)
		return err
	}
	effective := filterPlan(j.agent.Plan(), enqueued)

	j.mux.Lock()
	j.effective = effective
	j.state = StateRunning
	j.mux.Unlock()

	j.publishStarted(ctx, len(effective))
	if len(effective) == 0 {
		j.complete()
		return nil
	}
	return j.advance(ctx)
}

// Continue produces the next execution block. It is the continuation entry
// point invoked once all units of the current block completed. Once the
// cursor passed the last effective plan group the job transitions to
// completed and ErrPlanExhausted is returned instead of an empty block.
func (j *Job) Continue(ctx context.Context) error {
	j.mux.Lock()
	if !j.started {
		j.mux.Unlock()
		return fmt.Errorf("%w: job %s has not started", ErrInvalidArgument, j.uid)
	}
	switch j.state {
	case StateFailed:
		err := j.runErr
		j.mux.Unlock()
		return err
	case StateCompleted:
		j.mux.Unlock()
		return fmt.Errorf("%w: job %s", ErrPlanExhausted, j.uid)
	}
	if j.cursor+1 >= len(j.effective) {
		j.state = StateCompleted
		j.mux.Unlock()
		return fmt.Errorf("%w: job %s", ErrPlanExhausted, j.uid)
	}
	j.mux.Unlock()
	return j.advance(ctx)
}

// Fail aborts the run: the job transitions to failed, no further blocks are
// produced and the cause is retained.
func (j *Job) Fail(ctx context.Context, cause error) {
	j.fail(ctx, cause)
}

// advance builds the block for the next effective plan group, appends it to
// the execution queue and raises the block-applied notification. Blocks are
// produced strictly in plan order, one cursor increment at a time.
func (j *Job) advance(ctx context.Context) error {
	j.mux.Lock()
	next := j.cursor + 1
	if next >= len(j.effective) {
		j.mux.Unlock()
		return fmt.Errorf("%w: job %s", ErrPlanExhausted, j.uid)
	}
	group := j.effective[next]
	params := make(map[string]interface{}, len(j.params))
	for key, value := range j.params {
		params[key] = value
	}
	j.mux.Unlock()

	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("job.block %s/%d", j.uid, next), "INTERNAL")
	block, err := buildBlock(ctx, j.agent, group, next, params)
	tracing.EndSpan(span, err)
	if err != nil {
		j.fail(ctx, err)
		return err
	}

	j.mux.Lock()
	j.cursor = next
	j.queue = append(j.queue, block)
	j.mux.Unlock()

	j.publishBlockApplied(ctx, block)
	return nil
}

func (j *Job) fail(ctx context.Context, cause error) {
	j.mux.Lock()
	if j.state == StateFailed {
		j.mux.Unlock()
		return
	}
	j.state = StateFailed
	j.runErr = cause
	j.mux.Unlock()

	if j.events == nil {
		return
	}
	publisher, err := event.PublisherOf[event.JobFailed](j.events)
	if err != nil {
		log.Printf("job %s: failed to resolve publisher: %v", j.uid, err)
		return
	}
	eCtx := &event.Context{JobUID: j.uid, RunID: j.RunID(), EventType: event.TypeJobFailed}
	payload := event.JobFailed{JobUID: j.uid, RunID: j.RunID(), Error: cause.Error()}
	if err := publisher.Publish(ctx, event.NewEvent(eCtx, payload)); err != nil {
		log.Printf("job %s: failed to publish failure event: %v", j.uid, err)
	}
}

func (j *Job) complete() {
	j.mux.Lock()
	defer j.mux.Unlock()
	if j.state == StateRunning {
		j.state = StateCompleted
	}
}

func (j *Job) publishStarted(ctx context.Context, groups int) {
	if j.events == nil {
		return
	}
	publisher, err := event.PublisherOf[event.JobStarted](j.events)
	if err != nil {
		log.Printf("job %s: failed to resolve publisher: %v", j.uid, err)
		return
	}
	eCtx := &event.Context{JobUID: j.uid, RunID: j.RunID(), EventType: event.TypeJobStarted}
	payload := event.JobStarted{JobUID: j.uid, RunID: j.RunID(), Groups: groups}
	if err := publisher.Publish(ctx, event.NewEvent(eCtx, payload)); err != nil {
		log.Printf("job %s: failed to publish start event: %v", j.uid, err)
	}
}

func (j *Job) publishBlockApplied(ctx context.Context, block *ExecutionBlock) {
	if j.events == nil {
		return
	}
	publisher, err := event.PublisherOf[event.BlockApplied](j.events)
	if err != nil {
		log.Printf("job %s: failed to resolve publisher: %v", j.uid, err)
		return
	}
	eCtx := &event.Context{JobUID: j.uid, RunID: j.RunID(), EventType: event.TypeBlockApplied, Block: block.Group}
	payload := event.BlockApplied{JobUID: j.uid, RunID: j.RunID(), Block: block.Group, Units: block.Len()}
	if err := publisher.Publish(ctx, event.NewEvent(eCtx, payload)); err != nil {
		log.Printf("job %s: failed to publish block event: %v", j.uid, err)
	}
}

// UID returns the job identifier.
func (j *Job) UID() string {
	return j.uid
}

// RunID returns the identifier of the current run, empty before Run.
func (j *Job) RunID() string {
	j.mux.RLock()
	defer j.mux.RUnlock()
	return j.runID
}

// Client returns the job's HTTP client.
func (j *Job) Client() *httpclient.Client {
	return j.client
}

// Parameters returns a copy of the job's parameters.
func (j *Job) Parameters() map[string]interface{} {
	j.mux.RLock()
	defer j.mux.RUnlock()
	out := make(map[string]interface{}, len(j.params))
	for key, value := range j.params {
		out[key] = value
	}
	return out
}

// Enqueued returns a copy of the enqueued task identifiers, in enqueue order.
func (j *Job) Enqueued() []string {
	j.mux.RLock()
	defer j.mux.RUnlock()
	out := make([]string, len(j.enqueued))
	copy(out, j.enqueued)
	return out
}

// Effective returns the derived effective plan, nil before Run.
func (j *Job) Effective() EffectivePlan {
	j.mux.RLock()
	defer j.mux.RUnlock()
	out := make(EffectivePlan, len(j.effective))
	copy(out, j.effective)
	return out
}

// Queue returns the execution queue produced so far, in block order.
func (j *Job) Queue() []*ExecutionBlock {
	j.mux.RLock()
	defer j.mux.RUnlock()
	out := make([]*ExecutionBlock, len(j.queue))
	copy(out, j.queue)
	return out
}

// Block returns the execution block at the given queue position, or nil.
func (j *Job) Block(index int) *ExecutionBlock {
	j.mux.RLock()
	defer j.mux.RUnlock()
	if index < 0 || index >= len(j.queue) {
		return nil
	}
	return j.queue[index]
}

// Cursor returns the plan cursor: -1 before the first block, then the index
// of the last produced block.
func (j *Job) Cursor() int {
	j.mux.RLock()
	defer j.mux.RUnlock()
	return j.cursor
}

// Started reports whether Run was invoked.
func (j *Job) Started() bool {
	j.mux.RLock()
	defer j.mux.RUnlock()
	return j.started
}

// State returns the job lifecycle state.
func (j *Job) State() string {
	j.mux.RLock()
	defer j.mux.RUnlock()
	return j.state
}

// RunErr returns the fatal error that halted the run, nil unless failed.
func (j *Job) RunErr() error {
	j.mux.RLock()
	defer j.mux.RUnlock()
	return j.runErr
}

var _ agent.Session = (*Job)(nil)
