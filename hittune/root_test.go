package main

import (
	"path"
	"testing"

	hittuning "github.com/sbn-icarus/hittuning_go/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilters(t *testing.T) {
	filters, err := parseFilters([]string{"MaxMultiHit=5", "fcl_filename=hitTuning_test_0.fcl"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"MaxMultiHit": 5.0, "fcl_filename": "hitTuning_test_0.fcl"}, filters)

	_, err = parseFilters([]string{"MaxMultiHit"})
	assert.Error(t, err)
	_, err = parseFilters([]string{"=5"})
	assert.Error(t, err)
}

func TestFCLOptions(t *testing.T) {
	config := hittuning.DefaultConfiguration()
	config.MC = true
	config.FCLAnalyzers = []string{"hitdumper: @local::hitdumper_icarus"}

	opts, err := fclOptions(config)
	require.NoError(t, err)
	assert.True(t, opts.MC)
	assert.Equal(t, "hitdump.root", opts.TFileService)
	assert.Equal(t, []hittuning.AnalyzerModule{{Label: "hitdumper", Config: "@local::hitdumper_icarus"}}, opts.Analyzers)

	config.FCLAnalyzers = []string{"broken"}
	_, err = fclOptions(config)
	assert.Error(t, err)
}

func TestAnalysisOptions(t *testing.T) {
	config := hittuning.DefaultConfiguration()
	config.Skip = 3
	config.NumWorkers = 4
	opts := analysisOptions(config)
	assert.Equal(t, hittuning.ReadRange{Skip: 3, MaxEvents: config.MaxEvents}, opts.Loop.Range)
	assert.Equal(t, 4, opts.Loop.NumWorkers)
	assert.Equal(t, config.TreeName, opts.TreeName)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"grid", "run", "scan", "analyze", "merge", "display", "files", "submit", "job", "query", "skim"} {
		assert.True(t, names[want], want)
	}
}

func TestJobScriptRunsJobCommand(t *testing.T) {
	c := hittuning.DefaultSubmitConfig()
	assert.Equal(t, rootCmd.Name(), path.Base(c.JobBinary))

	script, err := hittuning.JobScript(c)
	require.NoError(t, err)
	assert.Contains(t, script, c.JobBinary+`" `+jobCmd.Name()+" --workdir")
	require.NotNil(t, jobCmd.Flags().Lookup("workdir"))
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}
