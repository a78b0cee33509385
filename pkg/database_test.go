package hittuning

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, name string) *ResultsDB {
	t.Helper()
	db, err := OpenResultsDB(filepath.Join(t.TempDir(), name))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestColumns(t *testing.T) {
	cols := Columns()
	assert.Equal(t, "id", cols[0])
	assert.Contains(t, cols, "roiThreshold_2")
	assert.Contains(t, cols, "LongMaxHits_0")
	assert.Contains(t, cols, "ratio_pi2")
	// id, 5 bookkeeping columns, 8x3 plane parameters, MaxMultiHit, Chi2NDF,
	// notes and 24 ratios
	assert.Len(t, cols, 1+5+24+3+24)
	assert.Len(t, ratioColumns(), 24)
}

func TestAddAndGetRun(t *testing.T) {
	db := openTestDB(t, "hitTuning_0.db")

	params := DefaultParams()
	params.RoiThreshold = [NPlanes]float64{3, 2, 1}
	params.LongMaxHits = [NPlanes]int{5, 5, 5}
	id, err := db.AddRun(params, 7, "hitTuning_test_7.fcl", "", "", "first")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	run, err := db.GetRun(id)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, 7, run.JobNum)
	assert.Equal(t, "hitTuning_test_7.fcl", run.FCLFilename)
	assert.False(t, run.OutputFilename.Valid)
	assert.Equal(t, "first", run.Notes.String)
	assert.Equal(t, params, run.Params())
	assert.Equal(t, unsetResults(), run.Results())

	missing, err := db.GetRun(42)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateRun(t *testing.T) {
	db := openTestDB(t, "hitTuning_0.db")
	id, err := db.AddRun(DefaultParams(), 0, "a.fcl", "", "", "")
	require.NoError(t, err)

	require.NoError(t, db.UpdateOutputFilename(id, "output_0.root"))
	require.NoError(t, db.UpdateHistFilename(id, "hist_output_0.root"))

	var res Results
	for i := range res {
		for j := range res[i] {
			res[i][j] = float64(i) + float64(j)/10
		}
	}
	require.NoError(t, db.UpdateResults(id, res))

	run, err := db.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, "output_0.root", run.OutputFilename.String)
	assert.Equal(t, "hist_output_0.root", run.HistFilename.String)
	assert.Equal(t, res, run.Results())
	assert.InDelta(t, 2.3, run.RatioGamma2, 1e-12)
}

func TestSearchRuns(t *testing.T) {
	db := openTestDB(t, "hitTuning.db")
	for job, mmh := range []int{5, 7, 7} {
		p := DefaultParams()
		p.MaxMultiHit = mmh
		_, err := db.AddRun(p, job, "a.fcl", "", "", "")
		require.NoError(t, err)
	}

	runs, err := db.SearchRuns(map[string]any{"MaxMultiHit": 7})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = db.SearchRuns(map[string]any{"MaxMultiHit": 7, "jobNum": 2})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].JobNum)

	all, err := db.AllRuns()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 2, all[0].JobNum, "newest first")

	_, err = db.SearchRuns(map[string]any{"bogus; DROP TABLE runs": 1})
	var colErr *ErrUnknownColumn
	assert.ErrorAs(t, err, &colErr)
}

func TestBestRuns(t *testing.T) {
	db := openTestDB(t, "hitTuning.db")
	for _, total := range []float64{0.8, 1.05, -1, 0.97} {
		id, err := db.AddRun(DefaultParams(), 0, "a.fcl", "", "", "")
		require.NoError(t, err)
		if total < 0 {
			continue
		}
		res := unsetResults()
		res[0][0] = total
		require.NoError(t, db.UpdateResults(id, res))
	}

	best, err := db.BestRuns("ratio_total", 2)
	require.NoError(t, err)
	require.Len(t, best, 2)
	assert.Equal(t, 0.97, best[0].RatioTotal)
	assert.Equal(t, 1.05, best[1].RatioTotal)

	_, err = db.BestRuns("jobNum", 2)
	assert.Error(t, err)
}

func TestCreateRunsTableSQL(t *testing.T) {
	assert.Contains(t, createRunsTableSQL(SQLite), "AUTOINCREMENT")
	assert.Contains(t, createRunsTableSQL(MySQL), "AUTO_INCREMENT")
	assert.Equal(t, "mysql", MySQL.String())
}
