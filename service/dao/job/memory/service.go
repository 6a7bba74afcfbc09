// Package memory implements the in-memory job registry. Unlike a persistence
// layer it intentionally stores live pointers: a job is a running lifecycle
// object shared between the runtime and the runner, not a serialisable
// record.
package memory

import (
	"context"
	"sync"

	"scrapeflow/job"
	"scrapeflow/service/dao"
)

// Service implements an in-memory job store keyed by uid.
type Service struct {
	jobs map[string]*job.Job
	mux  sync.RWMutex
}

var _ dao.Service[string, job.Job] = (*Service)(nil)

// New creates an empty store.
func New() *Service {
	return &Service{jobs: map[string]*job.Job{}}
}

// Save registers the supplied job under its uid.
func (s *Service) Save(_ context.Context, j *job.Job) error {
	if j == nil {
		return dao.ErrNilEntity
	}
	if j.UID() == "" {
		return dao.ErrInvalidID
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	s.jobs[j.UID()] = j
	return nil
}

// Load retrieves the live job or dao.ErrNotFound.
func (s *Service) Load(_ context.Context, uid string) (*job.Job, error) {
	if uid == "" {
		return nil, dao.ErrInvalidID
	}
	s.mux.RLock()
	j, ok := s.jobs[uid]
	s.mux.RUnlock()
	if !ok {
		return nil, dao.ErrNotFound
	}
	return j, nil
}

// Delete removes a job from the registry.
func (s *Service) Delete(_ context.Context, uid string) error {
	if uid == "" {
		return dao.ErrInvalidID
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, ok := s.jobs[uid]; !ok {
		return dao.ErrNotFound
	}
	delete(s.jobs, uid)
	return nil
}

// List returns registered jobs, optionally filtered by the "State"
// parameter.
func (s *Service) List(_ context.Context, parameters ...*dao.Parameter) ([]*job.Job, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	var states []string
	for _, parameter := range parameters {
		if parameter == nil || parameter.Name != "State" {
			continue
		}
		switch value := parameter.Value.(type) {
		case string:
			states = append(states, value)
		case []string:
			states = append(states, value...)
		}
	}
	out := make([]*job.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if len(states) > 0 && !contains(states, j.State()) {
			continue
		}
		out = append(out, j)
	}
	return out, nil
}

func contains(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}
