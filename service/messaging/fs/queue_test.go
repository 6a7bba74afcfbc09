package fs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
)

type unitRef struct {
	JobUID string `json:"jobUID"`
	Block  int    `json:"block"`
	Unit   int    `json:"unit"`
}

func TestQueue(t *testing.T) {
	fs := afs.New()
	ctx := context.Background()

	config := Config{
		BasePath:   t.TempDir(),
		MaxRetries: 2,
		RetryDelay: 10 * time.Millisecond,
	}
	queue, err := NewQueue[unitRef](fs, config)
	require.NoError(t, err)
	require.NotNil(t, queue)

	for _, dir := range []string{queue.pendingDir, queue.processingDir, queue.completedDir, queue.failedDir, queue.dlqDir} {
		exists, err := fs.Exists(ctx, dir)
		assert.NoError(t, err)
		assert.True(t, exists, fmt.Sprintf("directory %s should exist", dir))
	}

	payloads := []unitRef{
		{JobUID: "job-1", Block: 0, Unit: 0},
		{JobUID: "job-1", Block: 0, Unit: 1},
		{JobUID: "job-1", Block: 0, Unit: 2},
	}
	for i := range payloads {
		err := queue.Publish(ctx, &payloads[i])
		assert.NoError(t, err)
	}

	for i := 0; i < len(payloads); i++ {
		message, err := queue.Consume(ctx)
		require.NoError(t, err)
		require.NotNil(t, message)

		payload := message.T()
		assert.Equal(t, "job-1", payload.JobUID)
		assert.Contains(t, []int{0, 1, 2}, payload.Unit)

		err = message.Ack()
		assert.NoError(t, err)
	}

	// Queue drained
	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.Nil(t, message)
}

func TestQueueRetries(t *testing.T) {
	fs := afs.New()
	ctx := context.Background()

	config := Config{
		BasePath:   t.TempDir(),
		MaxRetries: 2,
		RetryDelay: 10 * time.Millisecond,
	}
	queue, err := NewQueue[unitRef](fs, config)
	require.NoError(t, err)

	payload := unitRef{JobUID: "job-2", Block: 1, Unit: 0}
	require.NoError(t, queue.Publish(ctx, &payload))

	// Nack through all retries
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		message, err := queue.Consume(ctx)
		require.NoError(t, err)
		require.NotNil(t, message, "attempt %d should yield a message", attempt)

		err = message.Nack(fmt.Errorf("attempt %d failed", attempt))
		assert.NoError(t, err)
	}

	// Retries exhausted, message parked in the dead letter directory
	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.Nil(t, message)

	dlqObjects, err := fs.List(ctx, queue.dlqDir)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(dlqObjects)-1)
}

func TestQueueInitialization(t *testing.T) {
	fs := afs.New()

	_, err := NewQueue[unitRef](fs, Config{})
	assert.Error(t, err, "should error with empty BasePath")

	queue, err := NewQueue[unitRef](fs, Config{BasePath: t.TempDir(), MaxRetries: 2})
	assert.NoError(t, err)
	assert.NotNil(t, queue)
}
