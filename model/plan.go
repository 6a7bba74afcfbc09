package model

import (
	"fmt"
)

type (
	// TaskSpec is a declarative node in a plan group: a task identifier plus
	// its synchronization flags. Specs are immutable once part of a plan.
	TaskSpec struct {
		ID       string `json:"id" yaml:"id"`
		Sync     bool   `json:"sync,omitempty" yaml:"sync,omitempty"`
		SelfSync bool   `json:"selfSync,omitempty" yaml:"selfSync,omitempty"`
	}

	// Group is an ordered sequence of task specs that may start together.
	Group []*TaskSpec

	// Plan is the master execution plan: an ordered sequence of
	// synchronization groups, advanced one group at a time.
	Plan struct {
		Name    string  `json:"name,omitempty" yaml:"name,omitempty"`
		Version string  `json:"version,omitempty" yaml:"version,omitempty"`
		Groups  []Group `json:"groups" yaml:"groups"`
	}
)

// NewSpec creates a task spec for the given identifier.
func NewSpec(id string) *TaskSpec {
	return &TaskSpec{ID: id}
}

// WithSync marks the spec as synchronous.
func (s *TaskSpec) WithSync(sync bool) *TaskSpec {
	s.Sync = sync
	return s
}

// WithSelfSync marks the spec as self-synchronous: all instances expanded
// from it must run strictly one after another.
func (s *TaskSpec) WithSelfSync(selfSync bool) *TaskSpec {
	s.SelfSync = selfSync
	return s
}

// Lookup returns the first spec in the group with the given identifier, or
// nil.
func (g Group) Lookup(id string) *TaskSpec {
	for _, spec := range g {
		if spec.ID == id {
			return spec
		}
	}
	return nil
}

// NewPlan creates an empty plan.
func NewPlan(name string) *Plan {
	return &Plan{Name: name}
}

// AddGroup appends a synchronization group built from the supplied specs.
func (p *Plan) AddGroup(specs ...*TaskSpec) *Plan {
	p.Groups = append(p.Groups, Group(specs))
	return p
}

// TaskIDs returns every task identifier referenced by the plan, in plan
// order, duplicates removed.
func (p *Plan) TaskIDs() []string {
	var out []string
	seen := map[string]bool{}
	for _, group := range p.Groups {
		for _, spec := range group {
			if seen[spec.ID] {
				continue
			}
			seen[spec.ID] = true
			out = append(out, spec.ID)
		}
	}
	return out
}

// Validate performs a best-effort structural validation of the plan. The
// returned slice is empty when the plan is sound; otherwise it contains
// human-readable error descriptions.
func (p *Plan) Validate() []error {
	var issues []error
	if len(p.Groups) == 0 {
		issues = append(issues, fmt.Errorf("plan has no groups"))
		return issues
	}
	for i, group := range p.Groups {
		if len(group) == 0 {
			issues = append(issues, fmt.Errorf("group %d is empty", i))
		}
		seen := map[string]bool{}
		for _, spec := range group {
			if spec == nil {
				issues = append(issues, fmt.Errorf("group %d contains a nil spec", i))
				continue
			}
			if spec.ID == "" {
				issues = append(issues, fmt.Errorf("group %d contains a spec with empty id", i))
				continue
			}
			if seen[spec.ID] {
				issues = append(issues, fmt.Errorf("duplicate task id %s in group %d", spec.ID, i))
			}
			seen[spec.ID] = true
		}
	}
	return issues
}
