package hittuning

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfiguration(t *testing.T) {
	c := DefaultConfiguration()
	assert.Equal(t, "test", c.Tag)
	assert.Equal(t, "hitdumper/hitdumpertree", c.TreeName)
	assert.Equal(t, 1.0, c.ADCScaleFactor)
	assert.Equal(t, 2881, c.Submit.NJobs)
	assert.Equal(t, "jobsub_submit", c.Submit.Binary)
}

func TestLoadConfigurationEmpty(t *testing.T) {
	c, err := LoadConfiguration("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfiguration(), c)
}

func TestLoadConfigurationJSON(t *testing.T) {
	name := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(name, []byte(`{
		"tag": "v3",
		"mc": true,
		"num_workers": 4,
		"submit": {"n_jobs": 10, "env": {"FOO": "bar"}}
	}`), 0o644))

	c, err := LoadConfiguration(name)
	require.NoError(t, err)
	assert.Equal(t, "v3", c.Tag)
	assert.True(t, c.MC)
	assert.Equal(t, 4, c.NumWorkers)
	assert.Equal(t, 10, c.Submit.NJobs)
	assert.Equal(t, map[string]string{"FOO": "bar"}, c.Submit.Env)
	assert.Equal(t, "jobsub_submit", c.Submit.Binary)
	assert.Equal(t, "lar", c.LarBinary)
}

func TestLoadConfigurationYAML(t *testing.T) {
	name := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(name, []byte(`
tag: v4
verbosity: 2
fcl_analyzers:
  - "hitdumper: @local::hitdumper_icarus"
data_tpc: WW
submit:
  dry_run: true
`), 0o644))

	c, err := LoadConfiguration(name)
	require.NoError(t, err)
	assert.Equal(t, "v4", c.Tag)
	assert.Equal(t, 2, c.Verbosity)
	assert.Equal(t, []string{"hitdumper: @local::hitdumper_icarus"}, c.FCLAnalyzers)
	assert.Equal(t, "WW", c.DataTPC)
	assert.True(t, c.Submit.DryRun)
	assert.Equal(t, 2881, c.Submit.NJobs)
}

func TestLoadConfigurationErrors(t *testing.T) {
	_, err := LoadConfiguration(filepath.Join(t.TempDir(), "missing.json"))
	var openErr *ErrOpenFile
	assert.ErrorAs(t, err, &openErr)

	name := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(name, []byte("{not json"), 0o644))
	_, err = LoadConfiguration(name)
	assert.Error(t, err)
}
