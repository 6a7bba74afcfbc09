package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"scrapeflow/agent"
	"scrapeflow/internal/clock"
	"scrapeflow/internal/idgen"
	"scrapeflow/model"
)

// UnitState tracks the execution state of a single unit.
type UnitState string

const (
	UnitStatePending   UnitState = "pending"
	UnitStateRunning   UnitState = "running"
	UnitStateCompleted UnitState = "completed"
	UnitStateFailed    UnitState = "failed"
)

// ExecutionUnit wraps one task instance. Next holds the arena index of the
// self-sync successor, -1 when the unit ends a chain (or never was part of
// one).
type ExecutionUnit struct {
	ID     string
	TaskID string
	Task   model.Task
	Next   int

	mux         sync.RWMutex
	state       UnitState
	startedAt   *time.Time
	completedAt *time.Time
	errMsg      string
}

func newExecutionUnit(taskID string, task model.Task) *ExecutionUnit {
	return &ExecutionUnit{
		ID:     fmt.Sprintf("%s-%s", taskID, idgen.New()),
		TaskID: taskID,
		Task:   task,
		Next:   -1,
		state:  UnitStatePending,
	}
}

// Start marks the unit as running.
func (u *ExecutionUnit) Start() {
	u.mux.Lock()
	defer u.mux.Unlock()
	now := clock.Now()
	u.startedAt = &now
	u.state = UnitStateRunning
}

// Complete marks the unit as completed.
func (u *ExecutionUnit) Complete() {
	u.mux.Lock()
	defer u.mux.Unlock()
	now := clock.Now()
	u.completedAt = &now
	u.state = UnitStateCompleted
}

// Fail marks the unit as failed.
func (u *ExecutionUnit) Fail(err error) {
	u.mux.Lock()
	defer u.mux.Unlock()
	now := clock.Now()
	u.completedAt = &now
	if err != nil {
		u.errMsg = err.Error()
	}
	u.state = UnitStateFailed
}

// State returns the unit's current state.
func (u *ExecutionUnit) State() UnitState {
	u.mux.RLock()
	defer u.mux.RUnlock()
	return u.state
}

// Err returns the failure message, empty unless the unit failed.
func (u *ExecutionUnit) Err() string {
	u.mux.RLock()
	defer u.mux.RUnlock()
	return u.errMsg
}

// ExecutionBlock is the executable expansion of one effective plan group: a
// flat arena of execution units of which only chain heads are dispatched
// directly; chained followers are reachable via Next indexes.
type ExecutionBlock struct {
	Group int

	units []*ExecutionUnit
	heads []int

	mux      sync.Mutex
	finished bool
}

// Len returns the total number of units in the block, chain links included.
func (b *ExecutionBlock) Len() int {
	return len(b.units)
}

// Unit returns the unit at the given arena index, or nil.
func (b *ExecutionBlock) Unit(index int) *ExecutionUnit {
	if index < 0 || index >= len(b.units) {
		return nil
	}
	return b.units[index]
}

// Units returns the arena in order.
func (b *ExecutionBlock) Units() []*ExecutionUnit {
	out := make([]*ExecutionUnit, len(b.units))
	copy(out, b.units)
	return out
}

// Heads returns the arena indexes of the chain heads, in group order.
func (b *ExecutionBlock) Heads() []int {
	out := make([]int, len(b.heads))
	copy(out, b.heads)
	return out
}

// Successor resolves the self-sync successor of the unit at the given index,
// or nil when the unit ends its chain.
func (b *ExecutionBlock) Successor(index int) *ExecutionUnit {
	unit := b.Unit(index)
	if unit == nil || unit.Next < 0 {
		return nil
	}
	return b.Unit(unit.Next)
}

// Completed reports whether every unit in the block completed.
func (b *ExecutionBlock) Completed() bool {
	for _, unit := range b.units {
		if unit.State() != UnitStateCompleted {
			return false
		}
	}
	return true
}

// TryFinish returns true exactly once, when every unit in the block has
// completed. Concurrent completers race for the single true result, so block
// continuation is triggered exactly once.
func (b *ExecutionBlock) TryFinish() bool {
	b.mux.Lock()
	defer b.mux.Unlock()
	if b.finished || !b.Completed() {
		return false
	}
	b.finished = true
	return true
}

// buildBlock converts one effective plan group into an execution block. Every
// spec resolves its definition from the agent registry and expands into zero
// or more units; self-sync specs contribute a single chain head with the
// remaining units linked via Next.
func buildBlock(ctx context.Context, a *agent.Agent, group model.Group, groupIndex int, params map[string]interface{}) (*ExecutionBlock, error) {
	block := &ExecutionBlock{Group: groupIndex}
	for _, spec := range group {
		definition := a.Lookup(spec.ID)
		if definition == nil {
			return nil, fmt.Errorf("agent %s: %w: %s", a.Name(), ErrUnknownTask, spec.ID)
		}
		instances, err := definition.Build(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("task %s: build failed: %w", spec.ID, err)
		}
		previous := -1
		for _, task := range instances {
			unit := newExecutionUnit(spec.ID, task)
			index := len(block.units)
			block.units = append(block.units, unit)
			if spec.SelfSync && previous >= 0 {
				block.units[previous].Next = index
			} else {
				block.heads = append(block.heads, index)
			}
			previous = index
		}
	}
	return block, nil
}
