// Package fs provides a filesystem-backed messaging.Queue built on viant/afs.
// Messages travel through pending -> processing -> completed directories;
// failed messages are retried until the limit is reached and then parked in a
// dead letter directory.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"

	"scrapeflow/internal/clock"
	"scrapeflow/internal/idgen"
	"scrapeflow/service/messaging"
)

// Config holds configuration for the filesystem queue.
type Config struct {
	BasePath   string
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultConfig returns a default queue configuration.
func DefaultConfig() Config {
	return Config{
		BasePath:   "/tmp/scrapeflow/queue",
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// Message implements messaging.Message for the filesystem queue.
type Message[T any] struct {
	ID        string    `json:"id"`
	Data      T         `json:"data"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Retries   int       `json:"retries"`

	queue     *Queue[T]
	processed bool
	mu        sync.Mutex
}

// T returns the message payload.
func (m *Message[T]) T() *T {
	return &m.Data
}

// Ack acknowledges that the message was processed successfully.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	m.UpdatedAt = clock.Now()
	return m.queue.complete(context.Background(), m)
}

// Nack indicates that message processing failed.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	m.Retries++
	if err != nil {
		m.Error = err.Error()
	}
	m.UpdatedAt = clock.Now()
	return m.queue.fail(context.Background(), m)
}

// Queue implements a filesystem-based messaging.Queue.
type Queue[T any] struct {
	fs            afs.Service
	config        Config
	pendingDir    string
	processingDir string
	completedDir  string
	failedDir     string
	dlqDir        string
	mu            sync.Mutex
}

// NewQueue creates a new filesystem-backed queue, ensuring the state
// directories exist.
func NewQueue[T any](fs afs.Service, config Config) (*Queue[T], error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	q := &Queue[T]{
		fs:            fs,
		config:        config,
		pendingDir:    path.Join(config.BasePath, "pending"),
		processingDir: path.Join(config.BasePath, "processing"),
		completedDir:  path.Join(config.BasePath, "completed"),
		failedDir:     path.Join(config.BasePath, "failed"),
		dlqDir:        path.Join(config.BasePath, "dlq"),
	}
	ctx := context.Background()
	for _, dir := range []string{q.pendingDir, q.processingDir, q.completedDir, q.failedDir, q.dlqDir} {
		if exists, _ := fs.Exists(ctx, dir); !exists {
			if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}
	return q, nil
}

// Publish adds a new message to the queue.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	message := &Message[T]{
		ID:        idgen.New(),
		Data:      *t,
		CreatedAt: clock.Now(),
		UpdatedAt: clock.Now(),
		queue:     q,
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return q.upload(ctx, path.Join(q.pendingDir, fileName(message.ID)), data)
}

// Consume retrieves a single message; retry-eligible failed messages take
// precedence over pending ones. Returns (nil, nil) when the queue is empty.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	if msg, err := q.takeOldest(ctx, q.failedDir, true); err != nil || msg != nil {
		return orNil(msg, err)
	}
	msg, err := q.takeOldest(ctx, q.pendingDir, false)
	return orNil(msg, err)
}

// orNil keeps the returned interface nil when the concrete message is nil.
func orNil[T any](msg *Message[T], err error) (messaging.Message[T], error) {
	if err != nil || msg == nil {
		return nil, err
	}
	return msg, nil
}

// takeOldest claims the oldest json message in dir, moving it to the
// processing directory. With retry=true, messages past the retry limit are
// moved to the dead letter directory instead of being claimed.
func (q *Queue[T]) takeOldest(ctx context.Context, dir string, retry bool) (*Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	objects, err := q.fs.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var files []storage.Object
	for _, obj := range objects {
		if !obj.IsDir() && strings.HasSuffix(obj.Name(), ".json") {
			files = append(files, obj)
		}
	}
	if len(files) == 0 {
		return nil, nil
	}
	obj := files[0]
	message, err := q.read(ctx, obj.URL())
	if err != nil {
		// Unreadable message, park it in the dead letter directory.
		_ = q.fs.Move(ctx, obj.URL(), path.Join(q.dlqDir, "invalid-"+obj.Name()))
		return nil, err
	}
	if retry && message.Retries > q.config.MaxRetries {
		if err := q.fs.Move(ctx, obj.URL(), path.Join(q.dlqDir, obj.Name())); err != nil {
			return nil, fmt.Errorf("failed to move message to dlq: %w", err)
		}
		return nil, nil
	}

	message.UpdatedAt = clock.Now()
	message.queue = q
	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := q.upload(ctx, path.Join(q.processingDir, obj.Name()), data); err != nil {
		return nil, fmt.Errorf("failed to move message to processing: %w", err)
	}
	if err := q.fs.Delete(ctx, obj.URL()); err != nil {
		return nil, fmt.Errorf("failed to delete claimed message: %w", err)
	}
	return message, nil
}

// complete moves a message to the completed directory.
func (q *Queue[T]) complete(ctx context.Context, m *Message[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := q.upload(ctx, path.Join(q.completedDir, fileName(m.ID)), data); err != nil {
		return fmt.Errorf("failed to write completed message: %w", err)
	}
	return q.remove(ctx, path.Join(q.processingDir, fileName(m.ID)))
}

// fail moves a message either back to the failed directory for retry or to
// the dead letter directory once the limit is exceeded.
func (q *Queue[T]) fail(ctx context.Context, m *Message[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	dest := path.Join(q.failedDir, fileName(m.ID))
	if m.Retries > q.config.MaxRetries {
		dest = path.Join(q.dlqDir, fileName(m.ID))
	}
	if err := q.upload(ctx, dest, data); err != nil {
		return fmt.Errorf("failed to write failed message: %w", err)
	}
	return q.remove(ctx, path.Join(q.processingDir, fileName(m.ID)))
}

func (q *Queue[T]) remove(ctx context.Context, location string) error {
	if exists, _ := q.fs.Exists(ctx, location); exists {
		if err := q.fs.Delete(ctx, location); err != nil {
			return fmt.Errorf("failed to delete %s: %w", location, err)
		}
	}
	return nil
}

func (q *Queue[T]) upload(ctx context.Context, location string, data []byte) error {
	return q.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewBuffer(data))
}

func (q *Queue[T]) read(ctx context.Context, URL string) (*Message[T], error) {
	data, err := q.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", URL, err)
	}
	var message Message[T]
	if err := json.Unmarshal(data, &message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", URL, err)
	}
	return &message, nil
}

func fileName(id string) string {
	return id + ".json"
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
