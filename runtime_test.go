package scrapeflow

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scrapeflow/agent"
	"scrapeflow/httpclient"
	"scrapeflow/job"
	"scrapeflow/model"
	"scrapeflow/service/dao"
	"scrapeflow/service/event"
)

func TestNewRuntime(t *testing.T) {
	plan := model.NewPlan("shop").AddGroup(model.NewSpec("login"))
	a, err := agent.New("shop", plan)
	require.NoError(t, err)

	rt, err := New(a)
	require.NoError(t, err)
	assert.Same(t, a, rt.Agent())
	assert.NotNil(t, rt.Events())

	_, err = New(nil)
	assert.Error(t, err)

	_, err = New(a, WithConfig(&Config{}))
	assert.Error(t, err, "zero worker count should be rejected")
}

func TestRuntimeEndToEnd(t *testing.T) {
	var mu sync.Mutex
	fetched := map[string]int{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "s1", Path: "/"})
		default:
			cookie, err := r.Cookie("session")
			if err != nil || cookie.Value != "s1" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			mu.Lock()
			fetched[r.URL.Path]++
			mu.Unlock()
		}
	}))
	defer server.Close()

	fetch := func(path string) func(ctx context.Context, client *httpclient.Client) error {
		return func(ctx context.Context, client *httpclient.Client) error {
			entry, err := client.Get(ctx, server.URL+path, nil)
			if err != nil {
				return err
			}
			if entry.Response.StatusCode != http.StatusOK {
				return fmt.Errorf("unexpected status %d for %s", entry.Response.StatusCode, path)
			}
			return nil
		}
	}

	plan := model.NewPlan("shop").
		AddGroup(model.NewSpec("listPages")).
		AddGroup(model.NewSpec("productDetails").WithSelfSync(true))
	a, err := agent.New("shop", plan,
		agent.WithSetup(func(ctx context.Context, session agent.Session) error {
			_, err := session.Client().Post(ctx, server.URL+"/login", &httpclient.RequestOptions{
				Form: url.Values{"user": []string{"alice"}},
			})
			return err
		}),
		agent.WithDefinitions(
			agent.Typed("listPages", func(ctx context.Context, input struct {
				MaxPages int `json:"maxPages"`
			}) ([]model.Task, error) {
				var tasks []model.Task
				for i := 1; i <= input.MaxPages; i++ {
					tasks = append(tasks, model.TaskFunc(fmt.Sprintf("listPages#%d", i), fetch(fmt.Sprintf("/pages/%d", i))))
				}
				return tasks, nil
			}),
			agent.Define("productDetails", func(ctx context.Context, params map[string]interface{}) ([]model.Task, error) {
				return []model.Task{
					model.TaskFunc("productDetails#1", fetch("/products/1")),
					model.TaskFunc("productDetails#2", fetch("/products/2")),
				}, nil
			}),
		),
	)
	require.NoError(t, err)

	rt, err := New(a)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, rt.Start(ctx))
	defer rt.Shutdown()

	j, err := rt.NewJob(ctx, "catalogue-1")
	require.NoError(t, err)

	err = j.Enqueue("listPages").Enqueue("productDetails").
		Params(map[string]interface{}{"maxPages": 3}).
		Run(ctx)
	require.NoError(t, err)

	require.NoError(t, rt.WaitForJob(ctx, "catalogue-1", 5*time.Second))
	assert.Equal(t, job.StateCompleted, j.State())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{
		"/pages/1":    1,
		"/pages/2":    1,
		"/pages/3":    1,
		"/products/1": 1,
		"/products/2": 1,
	}, fetched)

	// Every exchange, the login included, landed in the shared request log.
	assert.Len(t, j.Client().Log(), 6)
}

func TestRuntimeEventOrder(t *testing.T) {
	rec := struct {
		mu    sync.Mutex
		types []string
	}{}

	plan := model.NewPlan("shop").
		AddGroup(model.NewSpec("login")).
		AddGroup(model.NewSpec("listPages"))
	a, err := agent.New("shop", plan, agent.WithDefinitions(
		agent.Define("login", func(ctx context.Context, params map[string]interface{}) ([]model.Task, error) {
			return []model.Task{model.TaskFunc("login", nil)}, nil
		}),
		agent.Define("listPages", func(ctx context.Context, params map[string]interface{}) ([]model.Task, error) {
			return []model.Task{model.TaskFunc("listPages", nil)}, nil
		}),
	))
	require.NoError(t, err)

	rt, err := New(a)
	require.NoError(t, err)
	rt.Events().SetListener(func(e *event.Event[any]) {
		rec.mu.Lock()
		rec.types = append(rec.types, e.Context.EventType)
		rec.mu.Unlock()
	})
	ctx := context.Background()
	require.NoError(t, rt.Start(ctx))
	defer rt.Shutdown()

	j, err := rt.NewJob(ctx, "job-order")
	require.NoError(t, err)
	require.NoError(t, j.Enqueue("login").Enqueue("listPages").Run(ctx))
	require.NoError(t, rt.WaitForJob(ctx, "job-order", 5*time.Second))

	// One started event plus one block-applied per group.
	assert.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.types) >= 3
	}, 5*time.Second, 10*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, event.TypeJobStarted, rec.types[0])
	assert.Equal(t, []string{event.TypeBlockApplied, event.TypeBlockApplied}, rec.types[1:3])
}

func TestRuntimeJobLookup(t *testing.T) {
	plan := model.NewPlan("shop").AddGroup(model.NewSpec("login"))
	a, err := agent.New("shop", plan)
	require.NoError(t, err)

	rt, err := New(a)
	require.NoError(t, err)
	ctx := context.Background()

	created, err := rt.NewJob(ctx, "job-1")
	require.NoError(t, err)

	loaded, err := rt.Job(ctx, "job-1")
	require.NoError(t, err)
	assert.Same(t, created, loaded)

	_, err = rt.Job(ctx, "missing")
	assert.ErrorIs(t, err, dao.ErrNotFound)
}

func TestRuntimeWaitForJobFailure(t *testing.T) {
	boom := fmt.Errorf("blocked by robots")
	plan := model.NewPlan("shop").AddGroup(model.NewSpec("login"))
	a, err := agent.New("shop", plan, agent.WithDefinitions(
		agent.Define("login", func(ctx context.Context, params map[string]interface{}) ([]model.Task, error) {
			return []model.Task{model.TaskFunc("login", func(ctx context.Context, client *httpclient.Client) error {
				return boom
			})}, nil
		}),
	))
	require.NoError(t, err)

	rt, err := New(a)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, rt.Start(ctx))
	defer rt.Shutdown()

	j, err := rt.NewJob(ctx, "job-2")
	require.NoError(t, err)
	require.NoError(t, j.Enqueue("login").Run(ctx))

	err = rt.WaitForJob(ctx, "job-2", 5*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
