package agent

import (
	"context"
	"fmt"

	"github.com/viant/structology/conv"

	"scrapeflow/model"
)

// Define adapts a plain build function to the model.Definition interface.
func Define(id string, build func(ctx context.Context, params map[string]interface{}) ([]model.Task, error)) model.Definition {
	return &definition{id: id, build: build}
}

type definition struct {
	id    string
	build func(ctx context.Context, params map[string]interface{}) ([]model.Task, error)
}

func (d *definition) ID() string { return d.id }

func (d *definition) Build(ctx context.Context, params map[string]interface{}) ([]model.Task, error) {
	if d.build == nil {
		return nil, nil
	}
	return d.build(ctx, params)
}

// Typed adapts a build function taking a typed input. The job's loose params
// map is converted into In before the builder runs, so definitions declare
// the parameters they consume as a plain struct.
func Typed[In any](id string, build func(ctx context.Context, input In) ([]model.Task, error)) model.Definition {
	options := conv.DefaultOptions()
	options.ClonePointerData = true
	options.IgnoreUnmapped = true
	return &typedDefinition[In]{
		id:        id,
		build:     build,
		converter: conv.NewConverter(options),
	}
}

type typedDefinition[In any] struct {
	id        string
	build     func(ctx context.Context, input In) ([]model.Task, error)
	converter *conv.Converter
}

func (d *typedDefinition[In]) ID() string { return d.id }

func (d *typedDefinition[In]) Build(ctx context.Context, params map[string]interface{}) ([]model.Task, error) {
	var input In
	if err := d.converter.Convert(params, &input); err != nil {
		return nil, fmt.Errorf("task %s: failed to convert params: %w", d.id, err)
	}
	return d.build(ctx, input)
}
