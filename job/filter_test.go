package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scrapeflow/model"
)

func TestFilterPlanEnqueueOrderWins(t *testing.T) {
	// Master group order is b, a - caller order a, b must win.
	master := model.NewPlan("m").AddGroup(model.NewSpec("b"), model.NewSpec("a"))

	effective := filterPlan(master, []string{"a", "b"})
	require.Len(t, effective, 1)
	require.Len(t, effective[0], 2)
	assert.Equal(t, "a", effective[0][0].ID)
	assert.Equal(t, "b", effective[0][1].ID)
}

func TestFilterPlanDuplicateEnqueues(t *testing.T) {
	master := model.NewPlan("m").AddGroup(model.NewSpec("a"), model.NewSpec("b"))

	effective := filterPlan(master, []string{"a", "b", "a"})
	require.Len(t, effective, 1)
	require.Len(t, effective[0], 3)
	assert.Equal(t, "a", effective[0][0].ID)
	assert.Equal(t, "b", effective[0][1].ID)
	assert.Equal(t, "a", effective[0][2].ID)
	// Duplicate entries reference the same immutable spec.
	assert.Same(t, effective[0][0], effective[0][2])
}

func TestFilterPlanDropsEmptyGroups(t *testing.T) {
	master := model.NewPlan("m").
		AddGroup(model.NewSpec("a")).
		AddGroup(model.NewSpec("x"), model.NewSpec("y")).
		AddGroup(model.NewSpec("b"))

	effective := filterPlan(master, []string{"b", "a"})
	require.Len(t, effective, 2)
	assert.Equal(t, "a", effective[0][0].ID)
	assert.Equal(t, "b", effective[1][0].ID)
}

func TestFilterPlanUnknownIDsIgnored(t *testing.T) {
	master := model.NewPlan("m").AddGroup(model.NewSpec("a"))

	effective := filterPlan(master, []string{"nope", "a", "alsoNope"})
	require.Len(t, effective, 1)
	require.Len(t, effective[0], 1)
	assert.Equal(t, "a", effective[0][0].ID)
}

func TestFilterPlanNothingEnqueued(t *testing.T) {
	master := model.NewPlan("m").AddGroup(model.NewSpec("a"))
	assert.Empty(t, filterPlan(master, nil))
}
