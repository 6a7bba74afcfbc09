// Package dao defines the generic storage contract used by the runtime to
// track live entities (currently jobs) by key.
package dao

import (
	"context"
)

// Service is a generic keyed store.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}
