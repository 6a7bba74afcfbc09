package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService(t *testing.T) {
	service, err := New("memory")
	require.NoError(t, err)
	require.NotNil(t, service)
	defer service.Shutdown()

	_, err = New("bogus")
	assert.Error(t, err)

	_, err = New("fs")
	assert.Error(t, err, "fs vendor requires a queue config factory")
}

func TestPublishConsume(t *testing.T) {
	service, err := New("memory")
	require.NoError(t, err)
	defer service.Shutdown()

	publisher, err := PublisherOf[BlockApplied](service)
	require.NoError(t, err)

	ctx := context.Background()
	eCtx := &Context{JobUID: "job-1", RunID: "run-1", EventType: TypeBlockApplied, Block: 0}
	payload := BlockApplied{JobUID: "job-1", RunID: "run-1", Block: 0, Units: 3}
	require.NoError(t, publisher.Publish(ctx, NewEvent(eCtx, payload)))

	got, err := publisher.Consume(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, payload, got.Data)
	assert.Equal(t, "job-1", got.Context.JobUID)
	assert.Equal(t, TypeBlockApplied, got.Context.EventType)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestTypedListener(t *testing.T) {
	service, err := New("memory")
	require.NoError(t, err)
	defer service.Shutdown()

	received := make(chan *Event[JobStarted], 1)
	err = SetListenerOf[JobStarted](service, func(event *Event[JobStarted]) {
		received <- event
	})
	require.NoError(t, err)

	publisher, err := PublisherOf[JobStarted](service)
	require.NoError(t, err)

	eCtx := &Context{JobUID: "job-1", RunID: "run-1", EventType: TypeJobStarted}
	payload := JobStarted{JobUID: "job-1", RunID: "run-1", Groups: 2}
	require.NoError(t, publisher.Publish(context.Background(), NewEvent(eCtx, payload)))

	select {
	case event := <-received:
		assert.Equal(t, payload, event.Data)
	case <-time.After(time.Second):
		t.Fatal("listener did not receive the event")
	}
}

func TestListenersAreTypeScoped(t *testing.T) {
	service, err := New("memory")
	require.NoError(t, err)
	defer service.Shutdown()

	var mu sync.Mutex
	var started, failed int
	require.NoError(t, SetListenerOf[JobStarted](service, func(event *Event[JobStarted]) {
		mu.Lock()
		started++
		mu.Unlock()
	}))
	require.NoError(t, SetListenerOf[JobFailed](service, func(event *Event[JobFailed]) {
		mu.Lock()
		failed++
		mu.Unlock()
	}))

	ctx := context.Background()
	startedPublisher, err := PublisherOf[JobStarted](service)
	require.NoError(t, err)
	failedPublisher, err := PublisherOf[JobFailed](service)
	require.NoError(t, err)

	eCtx := &Context{JobUID: "job-1", RunID: "run-1"}
	require.NoError(t, startedPublisher.Publish(ctx, NewEvent(eCtx, JobStarted{JobUID: "job-1"})))
	require.NoError(t, startedPublisher.Publish(ctx, NewEvent(eCtx, JobStarted{JobUID: "job-1"})))
	require.NoError(t, failedPublisher.Publish(ctx, NewEvent(eCtx, JobFailed{JobUID: "job-1", Error: "boom"})))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return started == 2 && failed == 1
	}, time.Second, 10*time.Millisecond)
}

func TestUntypedMirror(t *testing.T) {
	service, err := New("memory")
	require.NoError(t, err)
	defer service.Shutdown()

	received := make(chan *Event[any], 2)
	service.SetListener(func(event *Event[any]) {
		received <- event
	})

	publisher, err := PublisherOf[BlockApplied](service)
	require.NoError(t, err)
	eCtx := &Context{JobUID: "job-1", RunID: "run-1", EventType: TypeBlockApplied}
	require.NoError(t, publisher.Publish(context.Background(), NewEvent(eCtx, BlockApplied{Block: 1, Units: 2})))

	select {
	case event := <-received:
		assert.Equal(t, TypeBlockApplied, event.Context.EventType)
		payload, ok := event.Data.(BlockApplied)
		require.True(t, ok)
		assert.Equal(t, 1, payload.Block)
	case <-time.After(time.Second):
		t.Fatal("untyped listener did not receive the mirrored event")
	}
}

func TestSetListenerConcurrent(t *testing.T) {
	service, err := New("memory")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			service.SetListener(func(event *Event[any]) {})
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		service.Shutdown()
	}()
	wg.Wait()
	service.Shutdown()
}

func TestPublishManyWithoutUntypedListener(t *testing.T) {
	service, err := New("memory")
	require.NoError(t, err)
	defer service.Shutdown()

	var mu sync.Mutex
	var delivered int
	require.NoError(t, SetListenerOf[BlockApplied](service, func(event *Event[BlockApplied]) {
		mu.Lock()
		delivered++
		mu.Unlock()
	}))

	publisher, err := PublisherOf[BlockApplied](service)
	require.NoError(t, err)

	// Well past the memory queue buffer; with no untyped listener installed
	// nothing may pile up on the mirror queue and stall the publisher.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	total := 150
	for i := 0; i < total; i++ {
		eCtx := &Context{JobUID: "job-1", RunID: "run-1", EventType: TypeBlockApplied, Block: i}
		require.NoError(t, publisher.Publish(ctx, NewEvent(eCtx, BlockApplied{JobUID: "job-1", Block: i, Units: 1})))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered == total
	}, 5*time.Second, 10*time.Millisecond)
}

func TestPublisherReuse(t *testing.T) {
	service, err := New("memory")
	require.NoError(t, err)
	defer service.Shutdown()

	first, err := PublisherOf[JobStarted](service)
	require.NoError(t, err)
	second, err := PublisherOf[JobStarted](service)
	require.NoError(t, err)
	assert.Same(t, first, second)
}
