package hittuning

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	sqlx "github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeJobDB creates a per-job database holding n runs.
func writeJobDB(t *testing.T, path string, job, n int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	db, err := OpenResultsDB(path)
	require.NoError(t, err)
	defer db.Close()
	for i := 0; i < n; i++ {
		p := DefaultParams()
		p.MaxMultiHit = job
		_, err := db.AddRun(p, job, filepath.Base(path), "", "", "")
		require.NoError(t, err)
	}
}

func countRuns(t *testing.T, path string) int {
	t.Helper()
	db, err := OpenResultsDB(path)
	require.NoError(t, err)
	defer db.Close()
	runs, err := db.AllRuns()
	require.NoError(t, err)
	return len(runs)
}

func TestMergeOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultMergeOptions().validate())
	assert.Error(t, MergeOptions{Table: "runs; DROP", Conflict: "ignore"}.validate())
	assert.Error(t, MergeOptions{Table: "runs", Conflict: "abort"}.validate())

	assert.Equal(t, "INSERT OR IGNORE", DefaultMergeOptions().insertVerb(SQLite))
	assert.Equal(t, "INSERT IGNORE", DefaultMergeOptions().insertVerb(MySQL))
	assert.Equal(t, "REPLACE", MergeOptions{Conflict: "replace"}.insertVerb(MySQL))
	assert.Equal(t, "INSERT OR REPLACE", MergeOptions{Conflict: "replace"}.insertVerb(SQLite))
}

func TestCommonColumns(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, commonColumns([]string{"id", "a", "b", "c"}, []string{"id", "c", "a"}))
}

func TestMergeDatabases(t *testing.T) {
	root := t.TempDir()
	first := filepath.Join(root, "0", "hitTuning_0.db")
	second := filepath.Join(root, "1", "hitTuning_100.db")
	writeJobDB(t, first, 0, 2)
	writeJobDB(t, second, 100, 3)

	// a database without the runs table is skipped
	other := filepath.Join(root, "other.db")
	db, err := sqlx.Connect("sqlite", other)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE notes (id INTEGER PRIMARY KEY, text TEXT)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	dest := filepath.Join(root, "merged.db")
	sources, err := FindDatabases(root, "", dest)
	require.NoError(t, err)
	assert.Equal(t, []string{first, second, other}, sources)

	n, err := MergeDatabases(context.Background(), dest, sources, DefaultMergeOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 5, countRuns(t, dest))

	// the destination is excluded from discovery
	sources, err = FindDatabases(root, "**/*.db", dest)
	require.NoError(t, err)
	assert.NotContains(t, sources, dest)

	merged, err := OpenResultsDB(dest)
	require.NoError(t, err)
	defer merged.Close()
	runs, err := merged.SearchRuns(map[string]any{"jobNum": 100})
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestMergeDatabasesNoSources(t *testing.T) {
	n, err := MergeDatabases(context.Background(), filepath.Join(t.TempDir(), "dest.db"), nil, DefaultMergeOptions())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMergeIntoDB(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "hitTuning_3.db")
	writeJobDB(t, src, 3, 2)

	dest := openTestDB(t, "central.db")
	_, err := dest.AddRun(DefaultParams(), 1, "existing.fcl", "", "", "")
	require.NoError(t, err)

	n, err := MergeIntoDB(context.Background(), dest, []string{src}, DefaultMergeOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	runs, err := dest.AllRuns()
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestWatchAndMerge(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(t.TempDir(), "merged.db")
	writeJobDB(t, filepath.Join(root, "0", "hitTuning_0.db"), 0, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- WatchAndMerge(ctx, root, dest, DefaultMergeOptions(), 300*time.Millisecond)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(dest)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	writeJobDB(t, filepath.Join(root, "0", "hitTuning_1.db"), 1, 2)

	assert.Eventually(t, func() bool {
		db, err := OpenResultsDB(dest)
		if err != nil {
			return false
		}
		defer db.Close()
		runs, err := db.AllRuns()
		return err == nil && len(runs) == 3
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestWatchAndMergeRejectsSettle(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(t.TempDir(), "merged.db")
	for _, settle := range []time.Duration{0, -time.Second} {
		err := WatchAndMerge(context.Background(), root, dest, DefaultMergeOptions(), settle)
		assert.ErrorContains(t, err, "settle time must be positive")
	}
	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
}

func TestWatchAndMergeShortSettle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- WatchAndMerge(ctx, t.TempDir(), filepath.Join(t.TempDir(), "merged.db"), DefaultMergeOptions(), time.Nanosecond)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
