package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"scrapeflow/job"
	"scrapeflow/service/dao"
	"scrapeflow/service/event"
	"scrapeflow/service/messaging"
	"scrapeflow/service/messaging/memory"
	"scrapeflow/tracing"
)

// UnitRef addresses one execution unit inside a job's execution queue. It is
// the payload dispatched to workers; being index-based it stays serialisable
// for any queue vendor.
type UnitRef struct {
	JobUID string `json:"jobUID"`
	Block  int    `json:"block"`
	Unit   int    `json:"unit"`
}

// Config represents runner configuration.
type Config struct {
	// WorkerCount is the number of workers executing task instances.
	WorkerCount int
}

// DefaultConfig returns the default runner configuration.
func DefaultConfig() Config {
	return Config{WorkerCount: 5}
}

// Option customises the runner service.
type Option func(s *Service)

// WithConfig sets the configuration.
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithWorkers sets the number of worker goroutines.
func WithWorkers(count int) Option {
	return func(s *Service) {
		s.config.WorkerCount = count
	}
}

// WithJobStore sets the job registry used to resolve unit references.
func WithJobStore(jobs dao.Service[string, job.Job]) Option {
	return func(s *Service) {
		s.jobs = jobs
	}
}

// WithQueue sets the unit dispatch queue implementation.
func WithQueue(queue messaging.Queue[UnitRef]) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithEvents sets the event service carrying lifecycle notifications.
func WithEvents(events *event.Service) Option {
	return func(s *Service) {
		s.events = events
	}
}

// Service executes the units of applied blocks through a worker pool.
type Service struct {
	config Config
	jobs   dao.Service[string, job.Job]
	queue  messaging.Queue[UnitRef]
	events *event.Service

	workers  []*worker
	workerWg sync.WaitGroup
}

type worker struct {
	id       int
	service  *Service
	ctx      context.Context
	cancelFn context.CancelFunc
}

// New creates a runner service.
func New(options ...Option) (*Service, error) {
	s := &Service{
		config: DefaultConfig(),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.jobs == nil {
		return nil, fmt.Errorf("job store is required")
	}
	if s.events == nil {
		return nil, fmt.Errorf("event service is required")
	}
	if s.queue == nil {
		s.queue = memory.NewQueue[UnitRef](memory.DefaultConfig())
	}
	return s, nil
}

// Start subscribes to block-applied events and launches the worker pool.
func (s *Service) Start(ctx context.Context) error {
	if err := event.SetListenerOf[event.BlockApplied](s.events, func(e *event.Event[event.BlockApplied]) {
		s.onBlockApplied(ctx, e)
	}); err != nil {
		return err
	}
	for i := 0; i < s.config.WorkerCount; i++ {
		workerCtx, cancel := context.WithCancel(ctx)
		w := &worker{id: i, service: s, ctx: workerCtx, cancelFn: cancel}
		s.workers = append(s.workers, w)
		s.workerWg.Add(1)
		go w.run()
	}
	return nil
}

// Shutdown stops the worker pool and waits until every worker exited.
func (s *Service) Shutdown() {
	for _, w := range s.workers {
		w.cancelFn()
	}
	s.workerWg.Wait()
}

// onBlockApplied dispatches every chain head of the applied block. A block
// with no units (every spec expanded to zero instances) finishes immediately
// and requests the next one.
func (s *Service) onBlockApplied(ctx context.Context, e *event.Event[event.BlockApplied]) {
	j, err := s.jobs.Load(ctx, e.Data.JobUID)
	if err != nil {
		log.Printf("runner: unknown job %s: %v", e.Data.JobUID, err)
		return
	}
	block := j.Block(e.Data.Block)
	if block == nil {
		log.Printf("runner: job %s has no block %d", j.UID(), e.Data.Block)
		return
	}
	for _, head := range block.Heads() {
		ref := UnitRef{JobUID: j.UID(), Block: e.Data.Block, Unit: head}
		if err := s.queue.Publish(ctx, &ref); err != nil {
			log.Printf("runner: failed to dispatch unit %d of job %s: %v", head, j.UID(), err)
		}
	}
	if block.Len() == 0 && block.TryFinish() {
		s.continueJob(ctx, j)
	}
}

// run processes unit references from the queue.
func (w *worker) run() {
	defer w.service.workerWg.Done()
	for {
		msg, err := w.service.queue.Consume(w.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if msg == nil {
			continue
		}
		if pErr := w.service.processMessage(w.ctx, msg); pErr != nil {
			log.Printf("worker %d: failed to process unit: %v", w.id, pErr)
		}
	}
}

// processMessage executes a single unit: run the task instance through the
// job's HTTP client, release the self-sync successor and, when the unit was
// the last of its block, request the next block.
func (s *Service) processMessage(ctx context.Context, msg messaging.Message[UnitRef]) error {
	ref := msg.T()
	j, err := s.jobs.Load(ctx, ref.JobUID)
	if err != nil {
		return msg.Nack(err)
	}
	block := j.Block(ref.Block)
	if block == nil {
		return msg.Nack(fmt.Errorf("job %s has no block %d", ref.JobUID, ref.Block))
	}
	unit := block.Unit(ref.Unit)
	if unit == nil {
		return msg.Nack(fmt.Errorf("block %d of job %s has no unit %d", ref.Block, ref.JobUID, ref.Unit))
	}

	unit.Start()
	unitCtx, span := tracing.StartSpan(ctx, "runner.unit "+unit.TaskID, "CONSUMER")
	span.WithAttributes(map[string]string{"job.uid": j.UID(), "task.id": unit.TaskID})
	err = unit.Task.Run(unitCtx, j.Client())
	tracing.EndSpan(span, err)

	if err != nil {
		unit.Fail(err)
		// Task failures are fatal to the run; retries are an external
		// concern.
		j.Fail(ctx, fmt.Errorf("task %s: %w", unit.TaskID, err))
		return msg.Ack()
	}
	unit.Complete()

	if unit.Next >= 0 {
		next := UnitRef{JobUID: ref.JobUID, Block: ref.Block, Unit: unit.Next}
		if err := s.queue.Publish(ctx, &next); err != nil {
			return msg.Nack(fmt.Errorf("failed to dispatch chained unit: %w", err))
		}
	}
	if block.TryFinish() {
		s.continueJob(ctx, j)
	}
	return msg.Ack()
}

func (s *Service) continueJob(ctx context.Context, j *job.Job) {
	if err := j.Continue(ctx); err != nil && !errors.Is(err, job.ErrPlanExhausted) {
		log.Printf("runner: job %s continuation failed: %v", j.UID(), err)
	}
}
