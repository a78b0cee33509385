package hittuning

import (
	"path/filepath"
	"testing"

	sqlx "github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultChannelMap(t *testing.T) {
	m := DefaultChannelMap()
	tests := []struct {
		channel int
		plane   int
		tpc     TPC
	}{
		{0, 0, TPCEE},
		{2239, 0, TPCEE},
		{2240, 1, TPCEE},
		{609, 0, TPCEE},
		{15700, 0, TPCEW},
		{21087, 1, TPCEW},
		{21888, 2, TPCEW},
		{55295, 2, TPCWW},
		{21500, -1, -1},
		{55296, -1, -1},
		{-1, -1, -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.plane, m.Plane(tt.channel), "channel %d", tt.channel)
		assert.Equal(t, tt.tpc, m.TPCOf(tt.channel), "channel %d", tt.channel)
	}
}

func TestDefaultChannelMapIsACopy(t *testing.T) {
	m := DefaultChannelMap()
	m.Ranges[0].Plane = 2
	assert.Equal(t, 0, DefaultChannelMap().Plane(0))
}

func TestDisplayBounds(t *testing.T) {
	assert.Equal(t, [2]int{2304, 8063}, DisplayBounds(1, TPCEE))
	assert.Equal(t, [2]int{49536, 55295}, DisplayBounds(2, TPCWW))
	assert.Equal(t, [2]int{0, 0}, DisplayBounds(3, TPCWW))
	assert.Equal(t, [2]int{0, 0}, DisplayBounds(0, TPC(7)))
}

func TestLoadChannelMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.db")
	db, err := sqlx.Connect("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	db.MustExec(`CREATE TABLE ChannelRanges (
		MinRun INTEGER, MaxRun INTEGER,
		MinChannel INTEGER, MaxChannel INTEGER, Plane INTEGER, TPC INTEGER)`)
	db.MustExec(`INSERT INTO ChannelRanges VALUES
		(0, 100, 0, 99, 0, 3),
		(0, 100, 100, 199, 2, 3),
		(101, 200, 0, 199, 1, 0)`)

	m, err := LoadChannelMap(db, 50)
	require.NoError(t, err)
	require.Len(t, m.Ranges, 2)
	assert.Equal(t, 0, m.Plane(10))
	assert.Equal(t, 2, m.Plane(150))
	assert.Equal(t, TPCEE, m.TPCOf(150))

	m, err = LoadChannelMap(db, 150)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Plane(10))
	assert.Equal(t, TPCWW, m.TPCOf(10))

	_, err = LoadChannelMap(db, 500)
	assert.Error(t, err)

	opened, err := ConnectChannelMapDB(path, DefaultConfiguration())
	require.NoError(t, err)
	defer opened.Close()
	_, err = LoadChannelMap(opened, 50)
	assert.NoError(t, err)
}

func TestSpeciesFromPDG(t *testing.T) {
	tests := map[int]Species{
		11: Electron, -11: Electron,
		22:   Photon,
		-13:  Muon,
		2212: Proton,
		211:  Pion, -211: Pion, 111: Pion,
		2112: Other, 0: Other,
	}
	for pdg, want := range tests {
		assert.Equal(t, want, SpeciesFromPDG(pdg), "pdg %d", pdg)
	}
}

func TestSpeciesNames(t *testing.T) {
	assert.Equal(t, "Electrons", Electron.Dir())
	assert.Equal(t, "gamma", Photon.Short())
	assert.Equal(t, "Pions", Pion.Dir())
	assert.Equal(t, 3.5, Proton.Bin())
	assert.Equal(t, 5.5, Other.Bin())
	assert.Equal(t, [NSpecies + 1]string{"total", "ele", "gamma", "mu", "p", "pi"}, ResultLabels())
	for i, s := range trackedSpecies {
		assert.Equal(t, ResultLabels()[i+1], s.Short())
	}
}

func TestParseTPC(t *testing.T) {
	tpc, err := ParseTPC("EW")
	require.NoError(t, err)
	assert.Equal(t, TPCEW, tpc)
	assert.Equal(t, "EW", tpc.String())

	_, err = ParseTPC("XX")
	assert.Error(t, err)
	assert.Equal(t, "TPC(9)", TPC(9).String())
}

func TestEventSignal(t *testing.T) {
	e := &Event{ROIs: []ChannelROI{
		{Channel: 5, TPC: TPCEE, Start: 2, ADC: []float32{1, 2}},
		{Channel: 5, TPC: TPCEE, Start: 6, ADC: []float32{3}},
		{Channel: 9, TPC: TPCWW, Start: 0, ADC: []float32{4}},
	}}
	signal, ok := e.Signal(5)
	require.True(t, ok)
	assert.Equal(t, []float32{0, 0, 1, 2, 0, 0, 3}, signal)

	_, ok = e.Signal(6)
	assert.False(t, ok)

	assert.Equal(t, []int32{5}, e.WireChannels(TPCEE))
	assert.Empty(t, e.WireChannels(TPCEW))
}
