package model

import (
	"context"

	"scrapeflow/httpclient"
)

// Task is a single runnable task instance produced by a definition builder.
// Instances perform their work through the job's HTTP client so that all
// requests of a run share one cookie jar and one request log.
type Task interface {
	// Name identifies the instance, typically "<definition id>#<n>".
	Name() string

	// Run performs the instance's work.
	Run(ctx context.Context, client *httpclient.Client) error
}

// Definition expands a task identifier into zero or more runnable instances
// for a specific job. A (nil, nil) result from Build is a valid zero-instance
// expansion.
type Definition interface {
	// ID is the task identifier the definition is registered under.
	ID() string

	// Build produces the run-time instances using the job's parameters.
	Build(ctx context.Context, params map[string]interface{}) ([]Task, error)
}

// TaskFunc adapts a plain function to the Task interface.
func TaskFunc(name string, run func(ctx context.Context, client *httpclient.Client) error) Task {
	return &taskFunc{name: name, run: run}
}

type taskFunc struct {
	name string
	run  func(ctx context.Context, client *httpclient.Client) error
}

func (t *taskFunc) Name() string { return t.name }

func (t *taskFunc) Run(ctx context.Context, client *httpclient.Client) error {
	if t.run == nil {
		return nil
	}
	return t.run(ctx, client)
}
