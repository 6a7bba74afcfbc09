// Package agent implements the external orchestrator contract: the owner of
// the master plan and of the task definition registry, plus the setup hook a
// job invokes once per run before deriving its effective plan.
package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/viant/afs"

	"scrapeflow/httpclient"
	"scrapeflow/model"
)

// Session is the view of a job the setup hook receives. Typical setup work is
// authenticating through the job's HTTP client so that cookies are in the jar
// before the first block runs.
type Session interface {
	UID() string
	Parameters() map[string]interface{}
	Client() *httpclient.Client
}

// SetupFunc prepares a run. It is invoked exactly once per job run, before
// plan computation.
type SetupFunc func(ctx context.Context, session Session) error

// Option customises an agent.
type Option func(a *Agent)

// WithSetup installs the per-run setup hook.
func WithSetup(setup SetupFunc) Option {
	return func(a *Agent) {
		a.setup = setup
	}
}

// WithDefinitions registers task definitions at construction time.
func WithDefinitions(definitions ...model.Definition) Option {
	return func(a *Agent) {
		for _, definition := range definitions {
			a.definitions[definition.ID()] = definition
		}
	}
}

// Agent owns a read-only master plan and a task definition registry keyed by
// task identifier. Jobs never mutate either.
type Agent struct {
	name        string
	plan        *model.Plan
	definitions map[string]model.Definition
	setup       SetupFunc
	mux         sync.RWMutex
}

// New creates an agent for the supplied master plan.
func New(name string, plan *model.Plan, opts ...Option) (*Agent, error) {
	if name == "" {
		return nil, fmt.Errorf("agent name cannot be empty")
	}
	if plan == nil {
		return nil, fmt.Errorf("agent %s: plan cannot be nil", name)
	}
	ret := &Agent{
		name:        name,
		plan:        plan,
		definitions: make(map[string]model.Definition),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret, nil
}

// Load creates an agent with a master plan loaded from a YAML document.
func Load(ctx context.Context, fs afs.Service, name, planURL string, opts ...Option) (*Agent, error) {
	plan, err := model.LoadPlan(ctx, fs, planURL)
	if err != nil {
		return nil, err
	}
	return New(name, plan, opts...)
}

// Name returns the agent identifier used in error messages.
func (a *Agent) Name() string {
	return a.name
}

// Plan returns the read-only master plan.
func (a *Agent) Plan() *model.Plan {
	return a.plan
}

// Register adds a task definition to the registry.
func (a *Agent) Register(definition model.Definition) {
	a.mux.Lock()
	defer a.mux.Unlock()
	a.definitions[definition.ID()] = definition
}

// Lookup returns the definition registered under the identifier, or nil.
func (a *Agent) Lookup(id string) model.Definition {
	a.mux.RLock()
	defer a.mux.RUnlock()
	return a.definitions[id]
}

// Setup invokes the setup hook when one is installed.
func (a *Agent) Setup(ctx context.Context, session Session) error {
	if a.setup == nil {
		return nil
	}
	if err := a.setup(ctx, session); err != nil {
		return fmt.Errorf("agent %s: setup failed: %w", a.name, err)
	}
	return nil
}
