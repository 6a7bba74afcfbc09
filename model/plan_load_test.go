package model

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
)

func TestLoadPlan(t *testing.T) {
	dir := t.TempDir()
	location := filepath.Join(dir, "plan.yaml")
	err := os.WriteFile(location, []byte("name: demo\ngroups:\n  - - id: fetch\n"), 0o644)
	require.NoError(t, err)

	plan, err := LoadPlan(context.Background(), afs.New(), location)
	require.NoError(t, err)
	assert.Equal(t, "demo", plan.Name)
	require.Len(t, plan.Groups, 1)
	assert.Equal(t, "fetch", plan.Groups[0][0].ID)
}

func TestLoadPlanMissing(t *testing.T) {
	_, err := LoadPlan(context.Background(), afs.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
