package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scrapeflow/agent"
	"scrapeflow/job"
	"scrapeflow/model"
	"scrapeflow/service/dao"
)

func newJob(t *testing.T, uid string) *job.Job {
	t.Helper()
	plan := model.NewPlan("shop").AddGroup(model.NewSpec("login"))
	a, err := agent.New("shop", plan, agent.WithDefinitions(
		agent.Define("login", func(ctx context.Context, params map[string]interface{}) ([]model.Task, error) {
			return []model.Task{model.TaskFunc("login", nil)}, nil
		}),
	))
	require.NoError(t, err)
	j, err := job.New(uid, a)
	require.NoError(t, err)
	return j
}

func TestSaveLoad(t *testing.T) {
	store := New()
	ctx := context.Background()

	j := newJob(t, "job-1")
	require.NoError(t, store.Save(ctx, j))

	loaded, err := store.Load(ctx, "job-1")
	require.NoError(t, err)
	// The registry hands back the live job, not a copy.
	assert.Same(t, j, loaded)

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, dao.ErrNotFound)

	_, err = store.Load(ctx, "")
	assert.ErrorIs(t, err, dao.ErrInvalidID)
}

func TestSaveInvalid(t *testing.T) {
	store := New()
	assert.ErrorIs(t, store.Save(context.Background(), nil), dao.ErrNilEntity)
}

func TestDelete(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newJob(t, "job-1")))
	require.NoError(t, store.Delete(ctx, "job-1"))

	_, err := store.Load(ctx, "job-1")
	assert.ErrorIs(t, err, dao.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "job-1"), dao.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, ""), dao.ErrInvalidID)
}

func TestListByState(t *testing.T) {
	store := New()
	ctx := context.Background()

	idle := newJob(t, "job-idle")
	require.NoError(t, store.Save(ctx, idle))

	running := newJob(t, "job-running")
	running.Enqueue("login")
	require.NoError(t, running.Run(ctx))
	require.NoError(t, store.Save(ctx, running))

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyRunning, err := store.List(ctx, dao.NewParameter("State", job.StateRunning))
	require.NoError(t, err)
	require.Len(t, onlyRunning, 1)
	assert.Equal(t, "job-running", onlyRunning[0].UID())

	either, err := store.List(ctx, dao.NewParameter("State", job.StateRunning, job.StateNotStarted))
	require.NoError(t, err)
	assert.Len(t, either, 2)
}
