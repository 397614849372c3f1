package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRun(id string, started time.Time) *Run {
	return &Run{
		ID:        id,
		Task:      "MolD #1",
		InputPath: "/data/sequences.fas",
		Taxa:      "ALL,ALLVSALL",
		Outcome:   "done",
		Diagnosis: "/tmp/run/out.html",
		StartedAt: started,
		EndedAt:   started.Add(time.Minute),
	}
}

func TestSaveAndGetRun(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(ctx)
	require.NoError(t, err)
	defer store.Close()

	started := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveRun(ctx, testRun("20260830T120000", started)))

	got, err := store.GetRun(ctx, "20260830T120000")
	require.NoError(t, err)
	assert.Equal(t, "MolD #1", got.Task)
	assert.Equal(t, "done", got.Outcome)
	assert.Equal(t, "/data/sequences.fas", got.InputPath)
	assert.True(t, got.StartedAt.Equal(started))

	_, err = store.GetRun(ctx, "missing")
	assert.ErrorContains(t, err, "run not found")
}

func TestSaveRunUpsert(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(ctx)
	require.NoError(t, err)
	defer store.Close()

	run := testRun("r1", time.Now().UTC())
	require.NoError(t, store.SaveRun(ctx, run))

	run.Outcome = "fail"
	run.Detail = "bad input"
	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "fail", got.Outcome)
	assert.Equal(t, "bad input", got.Detail)

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestListRunsOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(ctx)
	require.NoError(t, err)
	defer store.Close()

	base := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := testRun(string(rune('a'+i)), base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, store.SaveRun(ctx, run))
	}

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].ID, "newest run first")
	assert.Equal(t, "a", runs[2].ID)

	limited, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLiteStoreCreatesParentDirs(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "history.db")
	store, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveRun(ctx, testRun("x", time.Now().UTC())))
	runs, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
