package hittuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{"5", 5},
		{" 5.0 ", 5.0},
		{"1e3", 1000.0},
		{"TRUE", true},
		{"false", false},
		{`"wire2channelroi2d:PHYSCRATEDATATPCWW"`, "wire2channelroi2d:PHYSCRATEDATATPCWW"},
		{"@local::gausshit_sbn", "@local::gausshit_sbn"},
		{"[2.0, 1.5, 1]", []any{2.0, 1.5, 1}},
		{"[]", []any{}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseValue(tt.raw))
		})
	}
}

func TestAllValuesDropsComments(t *testing.T) {
	text := "a.MaxMultiHit: 5 # first\nb.MaxMultiHit : 7\n"
	assert.Equal(t, []any{5, 7}, AllValues("MaxMultiHit", text))
	assert.Empty(t, AllValues("Chi2NDF", text))
}

func TestEnsureList3(t *testing.T) {
	assert.Equal(t, []any{4, 4, 4}, ensureList3(4))
	assert.Equal(t, []any{4, 4, 4}, ensureList3([]any{4}))
	assert.Equal(t, []any{1, 2, 2}, ensureList3([]any{1, 2}))
	assert.Equal(t, []any{1, 2, 3}, ensureList3([]any{1, 2, 3, 4}))
	assert.Nil(t, ensureList3([]any{}))
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "5.0", formatFloat(5))
	assert.Equal(t, "0.35", formatFloat(0.35))
	assert.Equal(t, "[2.0, 1.5, 1.0]", formatFloatList([NPlanes]float64{2, 1.5, 1}))
	assert.Equal(t, "[1, 5, 10]", formatIntList([NPlanes]int{1, 5, 10}))
}

func TestParamsString(t *testing.T) {
	s := DefaultParams().String()
	assert.True(t, strings.HasPrefix(s, "fclParams:\n"))
	assert.Contains(t, s, "PulseRatioCuts: [0.35, 0.4, 0.2]")
	assert.Contains(t, s, "MaxMultiHit: 5")
	assert.Contains(t, s, "Chi2NDF: 500.0")
}

func TestParseFCLTextLastOccurrenceWins(t *testing.T) {
	text := `
x.HitFinderToolVec.CandidateHitsPlane0.RoiThreshold: 3.0
y.HitFinderToolVec.CandidateHitsPlane0.RoiThreshold: 4.0
y.LongMaxHits: 15
y.PulseWidthCuts: [3.0, 2.0]
y.MaxMultiHit: 12
`
	p, err := ParseFCLText(text)
	require.NoError(t, err)

	want := DefaultParams()
	want.RoiThreshold[0] = 4
	want.LongMaxHits = [NPlanes]int{15, 15, 15}
	want.PulseWidthCuts = [NPlanes]float64{3, 2, 2}
	want.MaxMultiHit = 12
	assert.Equal(t, want, p)
}

func TestParseFCLTextRejectsStrings(t *testing.T) {
	_, err := ParseFCLText("a.Chi2NDF: abc\n")
	assert.Error(t, err)
}

func TestGenerateFCLRoundTrip(t *testing.T) {
	params := FCLParams{
		RoiThreshold:    [NPlanes]float64{3, 2, 1},
		MinPulseHeight:  replicate(2.0),
		MinPulseSigma:   replicate(1.0),
		LongMaxHits:     replicate(10),
		LongPulseWidth:  replicate(8.0),
		PulseHeightCuts: replicate(2.0),
		PulseWidthCuts:  [NPlanes]float64{2, 1.5, 1},
		PulseRatioCuts:  [NPlanes]float64{0.35, 0.4, 0.2},
		MaxMultiHit:     7,
		Chi2NDF:         1500,
	}
	for _, mc := range []bool{true, false} {
		text, err := GenerateFCL(params, FCLOptions{MC: mc})
		require.NoError(t, err)
		for _, producer := range hitFinderProducers {
			assert.Contains(t, text, "icarus_stage1_producers."+producer+".MaxMultiHit:")
		}
		got, err := ParseFCLText(text)
		require.NoError(t, err)
		assert.Equal(t, params, got, "mc=%t", mc)
	}
}

func TestGenerateFCLAnalyzersAndTFileService(t *testing.T) {
	opts := FCLOptions{
		MC: true,
		Analyzers: []AnalyzerModule{
			{Label: "hitdumper", Config: "@local::hitdumper_icarus"},
		},
		TFileService: "ana.root",
	}
	text, err := GenerateFCL(DefaultParams(), opts)
	require.NoError(t, err)
	assert.Contains(t, text, "hitdumper: @local::hitdumper_icarus")
	assert.Contains(t, text, "physics.outana:    [ hitdumper ]")
	assert.Contains(t, text, `services.TFileService.fileName: "ana.root"`)
}

func TestParseAnalyzerModule(t *testing.T) {
	m, err := ParseAnalyzerModule(" hitdumper : @local::hitdumper_icarus ")
	require.NoError(t, err)
	assert.Equal(t, AnalyzerModule{Label: "hitdumper", Config: "@local::hitdumper_icarus"}, m)

	_, err = ParseAnalyzerModule("hitdumper")
	assert.Error(t, err)
}

func TestWriteAndParseFCL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hitTuning_test_0.fcl")
	require.NoError(t, WriteFCL(path, DefaultParams(), FCLOptions{}))
	p, err := ParseFCL(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultParams(), p)

	_, err = ParseFCL(filepath.Join(t.TempDir(), "missing.fcl"))
	var openErr *ErrOpenFile
	assert.ErrorAs(t, err, &openErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
