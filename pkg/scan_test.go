package hittuning

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextVersion(t *testing.T) {
	dir := t.TempDir()
	names := NextVersion(dir, "v1")
	assert.Equal(t, 0, names.Version)
	assert.Equal(t, filepath.Join(dir, "hitTuning_v1_0.fcl"), names.FCL)
	assert.Equal(t, filepath.Join(dir, "output_v1_0.root"), names.Output)
	assert.Equal(t, filepath.Join(dir, "ana_v1_0.root"), names.Ana)
	assert.Equal(t, filepath.Join(dir, "hist_output_v1_0.root"), names.Hist)

	require.NoError(t, os.WriteFile(names.FCL, nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hitTuning_v1_1.fcl"), nil, 0o644))
	assert.Equal(t, 2, NextVersion(dir, "v1").Version)
	assert.Equal(t, 0, NextVersion(dir, "v2").Version)
}

var tfileServiceRegexp = regexp.MustCompile(`services\.TFileService\.fileName: "([^"]+)"`)

// anaFromFCL returns the TFileService file named in the FCL passed to lar.
func anaFromFCL(t *testing.T) func(args []string) string {
	return func(args []string) string {
		text, err := os.ReadFile(argAfter(args, "-c"))
		require.NoError(t, err)
		m := tfileServiceRegexp.FindSubmatch(text)
		require.NotNil(t, m)
		return string(m[1])
	}
}

func TestRunInteractive(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{respond: fakeLar(t, anaFromFCL(t))}
	second := DefaultParams()
	second.MaxMultiHit = 7

	opts := InteractiveOptions{
		MC:        true,
		Tag:       "scan",
		OutputDir: dir,
		InputFile: "input.root",
		JobNum:    -1,
		DBFile:    filepath.Join(dir, "scan.db"),
		Lar:       Lar{Runner: runner},
		Analysis:  AnalysisOptions{TreeName: "hitdumper/hitdumpertree"},
	}
	results, err := RunInteractive(context.Background(), []FCLParams{DefaultParams(), second}, opts)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for i, res := range results {
		require.NoError(t, res.Err)
		assert.Equal(t, i, res.Names.Version)
		assert.FileExists(t, res.Names.FCL)
		assert.FileExists(t, res.Names.Hist)
		assert.InDelta(t, 0.375, res.Results[0][0], 1e-6)
	}
	assert.Len(t, runner.calls, 2)

	db, err := OpenResultsDB(opts.DBFile)
	require.NoError(t, err)
	defer db.Close()
	runs, err := db.AllRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 7, runs[1].MaxMultiHit)
	assert.Equal(t, results[1].Names.Output, runs[1].OutputFilename.String)
	assert.InDelta(t, 0.375, runs[1].RatioMu, 1e-6)
}

func TestRunInteractiveLarFailure(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{respond: func(string, []string) (string, error) {
		return "", os.ErrPermission
	}}
	opts := InteractiveOptions{
		MC:        true,
		Tag:       "scan",
		OutputDir: dir,
		DBFile:    filepath.Join(dir, "scan.db"),
		Lar:       Lar{Runner: runner},
	}
	results, err := RunInteractive(context.Background(), []FCLParams{DefaultParams(), DefaultParams()}, opts)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.ErrorIs(t, res.Err, os.ErrPermission)
		assert.Equal(t, unsetResults(), res.Results)
	}
	assert.Equal(t, 1, results[1].Names.Version)

	db, err := OpenResultsDB(opts.DBFile)
	require.NoError(t, err)
	defer db.Close()
	runs, err := db.AllRuns()
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunInteractiveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dir := t.TempDir()
	results, err := RunInteractive(ctx, []FCLParams{DefaultParams()}, InteractiveOptions{
		Tag: "scan", OutputDir: dir, DBFile: filepath.Join(dir, "scan.db"),
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}
