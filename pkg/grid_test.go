package hittuning

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGridSize(t *testing.T) {
	spec := DefaultGridSpec()
	assert.Equal(t, 2880, spec.Size())

	grid, err := CreateGrid(spec, true)
	require.NoError(t, err)
	require.Len(t, grid, 2881)
	assert.Equal(t, DefaultParams(), grid[0])

	first := grid[1]
	assert.Equal(t, [NPlanes]float64{6, 6, 6}, first.RoiThreshold)
	assert.Equal(t, [NPlanes]int{1, 1, 1}, first.LongMaxHits)
	assert.Equal(t, [NPlanes]float64{2, 2, 2}, first.LongPulseWidth)
	assert.Equal(t, [NPlanes]float64{2, 1.5, 1}, first.PulseWidthCuts)
	assert.Equal(t, 5, first.MaxMultiHit)
	assert.Equal(t, 500.0, first.Chi2NDF)

	// Chi2NDF varies fastest
	assert.Equal(t, 1000.0, grid[2].Chi2NDF)
	assert.Equal(t, first.MaxMultiHit, grid[2].MaxMultiHit)
	assert.Equal(t, 7, grid[6].MaxMultiHit)

	last := grid[len(grid)-1]
	assert.Equal(t, [NPlanes]float64{1, 1, 1}, last.RoiThreshold)
	assert.Equal(t, [NPlanes]int{15, 15, 15}, last.LongMaxHits)
	assert.Equal(t, 12, last.MaxMultiHit)
	assert.Equal(t, 2500.0, last.Chi2NDF)
}

func TestCreateGridWithoutDefault(t *testing.T) {
	grid, err := CreateGrid(DefaultGridSpec(), false)
	require.NoError(t, err)
	assert.Len(t, grid, 2880)
}

func TestLoadGridSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.yaml")
	yamlText := `
roiThreshold: [4, [3, 2, 1]]
MaxMultiHit: [5, 7]
`
	require.NoError(t, os.WriteFile(path, []byte(yamlText), 0o644))

	spec, err := LoadGridSpec(path)
	require.NoError(t, err)
	assert.Equal(t, 4, spec.Size())

	grid, err := CreateGrid(spec, false)
	require.NoError(t, err)
	require.Len(t, grid, 4)
	assert.Equal(t, [NPlanes]float64{4, 4, 4}, grid[0].RoiThreshold)
	assert.Equal(t, [NPlanes]float64{3, 2, 1}, grid[2].RoiThreshold)
	assert.Equal(t, 7, grid[3].MaxMultiHit)
	assert.Equal(t, DefaultParams().PulseRatioCuts, grid[3].PulseRatioCuts)
	assert.Equal(t, DefaultParams().LongMaxHits, grid[3].LongMaxHits)
}

func TestCreateGridRejectsBadCandidate(t *testing.T) {
	spec := DefaultGridSpec()
	spec.RoiThreshold = []Candidate{{1, 2}}
	_, err := CreateGrid(spec, false)
	assert.ErrorContains(t, err, "roiThreshold")

	spec = DefaultGridSpec()
	spec.LongMaxHits = []Candidate{{5}, {2, 2.5, 3}}
	grid, err := CreateGrid(spec, false)
	assert.ErrorContains(t, err, "LongMaxHits")
	assert.ErrorContains(t, err, "not an integer")
	assert.Nil(t, grid)

	spec = DefaultGridSpec()
	spec.LongMaxHits = []Candidate{{2, 4, 6}}
	grid, err = CreateGrid(spec, false)
	require.NoError(t, err)
	assert.Equal(t, [NPlanes]int{2, 4, 6}, grid[0].LongMaxHits)
}

func TestLoadGridSpecRejectsMappings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roiThreshold: [{a: 1}]\n"), 0o644))
	_, err := LoadGridSpec(path)
	assert.Error(t, err)
}

func TestWriteGridDebug(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fclFiles")
	grid, err := CreateGrid(DefaultGridSpec(), true)
	require.NoError(t, err)

	n, err := WriteGrid(dir, "test", grid, FCLOptions{MC: true}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	p, err := ParseFCL(GridFCLName(dir, "test", 1))
	require.NoError(t, err)
	assert.Equal(t, grid[1], p)
}
