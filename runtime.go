package scrapeflow

import (
	"context"
	"fmt"
	"time"

	"scrapeflow/agent"
	"scrapeflow/job"
	"scrapeflow/service/dao"
	jobmemory "scrapeflow/service/dao/job/memory"
	"scrapeflow/service/event"
	"scrapeflow/service/runner"
)

// Runtime wires an agent together with the event service, the job registry
// and the block runner.
type Runtime struct {
	agent  *agent.Agent
	config *Config
	events *event.Service
	jobs   dao.Service[string, job.Job]
	runner *runner.Service
}

// New creates a runtime for the supplied agent. Defaults: in-memory event
// queues, in-memory job registry and the default runner worker pool.
func New(a *agent.Agent, options ...Option) (*Runtime, error) {
	if a == nil {
		return nil, fmt.Errorf("agent cannot be nil")
	}
	r := &Runtime{agent: a}
	for _, option := range options {
		option(r)
	}
	if r.config == nil {
		r.config = DefaultConfig()
	}
	if err := r.config.Validate(); err != nil {
		return nil, err
	}
	if r.events == nil {
		events, err := event.New("memory")
		if err != nil {
			return nil, err
		}
		r.events = events
	}
	if r.jobs == nil {
		r.jobs = jobmemory.New()
	}
	blockRunner, err := runner.New(
		runner.WithConfig(r.config.Runner),
		runner.WithJobStore(r.jobs),
		runner.WithEvents(r.events),
	)
	if err != nil {
		return nil, err
	}
	r.runner = blockRunner
	return r, nil
}

// Agent returns the agent the runtime serves.
func (r *Runtime) Agent() *agent.Agent {
	return r.agent
}

// Events returns the runtime's event service.
func (r *Runtime) Events() *event.Service {
	return r.events
}

// Start launches the block runner.
func (r *Runtime) Start(ctx context.Context) error {
	return r.runner.Start(ctx)
}

// Shutdown stops the runner workers and every event listener.
func (r *Runtime) Shutdown() {
	r.runner.Shutdown()
	r.events.Shutdown()
}

// NewJob creates a job bound to this runtime's agent and registers it so the
// runner can resolve it.
func (r *Runtime) NewJob(ctx context.Context, uid string) (*job.Job, error) {
	j, err := job.New(uid, r.agent, job.WithEvents(r.events))
	if err != nil {
		return nil, err
	}
	if err := r.jobs.Save(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// Job returns the registered job with the given uid.
func (r *Runtime) Job(ctx context.Context, uid string) (*job.Job, error) {
	return r.jobs.Load(ctx, uid)
}

// WaitForJob blocks until the job reaches a terminal state or the timeout
// elapses. It returns the job's fatal error when the run failed.
func (r *Runtime) WaitForJob(ctx context.Context, uid string, timeout time.Duration) error {
	j, err := r.jobs.Load(ctx, uid)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		switch j.State() {
		case job.StateCompleted:
			return nil
		case job.StateFailed:
			return j.RunErr()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("job %s did not finish within %s", uid, timeout)
		}
	}
}
