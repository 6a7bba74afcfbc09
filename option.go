package scrapeflow

import (
	"scrapeflow/job"
	"scrapeflow/service/dao"
	"scrapeflow/service/event"
)

// Option customises the runtime.
type Option func(r *Runtime)

// WithConfig sets the runtime configuration.
func WithConfig(config *Config) Option {
	return func(r *Runtime) {
		r.config = config
	}
}

// WithEventService replaces the default in-memory event service.
func WithEventService(events *event.Service) Option {
	return func(r *Runtime) {
		r.events = events
	}
}

// WithJobStore replaces the default in-memory job registry.
func WithJobStore(jobs dao.Service[string, job.Job]) Option {
	return func(r *Runtime) {
		r.jobs = jobs
	}
}
