package hittuning

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	events []EventSummary
	err    error
}

func (s *fakeSink) WriteEvent(e EventSummary) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

// mcEvent has a muon hit on plane 0 and an electron hit on plane 2 of the EE
// TPC, plus one deposit on an unmapped channel.
func mcEvent() *Event {
	return &Event{
		Run: 1, SubRun: 2, Event: 3,
		Hits: []Hit{
			{Channel: 100, TPC: TPCEE, Plane: 0, Wire: 100, PeakAmp: 30, RMS: 2, Integral: 50, SummedADC: 40, GoodnessFit: 2, DoF: 4},
			{Channel: 9000, TPC: TPCEE, Plane: 2, Wire: 936, PeakAmp: 10, RMS: 1, Integral: 20, SummedADC: 0, GoodnessFit: 1, DoF: 0},
		},
		Matches: []HitMatch{
			{HitIndex: 0, TrackID: 1, PDG: 13, Energy: 2, IDEFraction: 1},
			{HitIndex: 1, TrackID: 2, PDG: 11, Energy: 1, IDEFraction: 0.5},
		},
		Particles: []MCParticle{
			{TrackID: 1, PDG: 13, Pz: 1, E: 100},
			{TrackID: 2, PDG: 11, Px: 1, E: 10},
		},
		IDEs: []IDE{
			{Channel: 100, TrackID: 1, Energy: 3},
			{Channel: 9000, TrackID: 2, Energy: 1},
			{Channel: 21500, TrackID: 2, Energy: 100},
		},
	}
}

func TestSafeDivide(t *testing.T) {
	assert.Equal(t, 0.0, SafeDivide(1.0, 0.0))
	assert.Equal(t, 2.5, SafeDivide(5.0, 2.0))
	assert.Equal(t, float32(0), SafeDivide(float32(3), 0))
}

func TestFillValue(t *testing.T) {
	assert.Equal(t, -1.0, FillValue(0.0, 0.0))
	assert.Equal(t, -2.0, FillValue(3.0, 0.0))
	assert.Equal(t, 0.0, FillValue(0.0, 4.0))
	assert.Equal(t, 0.5, FillValue(2.0, 4.0))
}

func TestProcessMCEvent(t *testing.T) {
	sink := &fakeSink{}
	a := NewAnalyzer(AnalyzerOptions{MC: true, Summary: sink})
	require.NoError(t, a.ProcessEvent(mcEvent()))

	assert.Equal(t, 1, a.Processed)
	assert.Equal(t, 0, a.Skipped)
	assert.Equal(t, 0, a.Failed)

	hit, ide := a.TotalEnergies()
	assert.InDeltaSlice(t, []float64{2, 0, 0.5}, hit[:], 1e-9)
	assert.InDeltaSlice(t, []float64{3, 0, 1}, ide[:], 1e-9)

	res := a.Results()
	expected := [NPlanes + 1]float64{0.625, 2.0 / 3, 0, 0.5}
	for _, row := range []int{0, int(Electron) + 1, int(Muon) + 1} {
		assert.InDeltaSlice(t, expected[:], res[row][:], 1e-9, "row %d", row)
	}
	for _, row := range []int{int(Photon) + 1, int(Proton) + 1, int(Pion) + 1} {
		assert.Equal(t, [NPlanes + 1]float64{}, res[row], "row %d", row)
	}

	assert.EqualValues(t, 2*NPlanes, a.particleCount.Entries())
	assert.EqualValues(t, 1, a.maxEParticleCount.Entries())

	// Every matched hit goes to the all-particle set, only hits with more
	// than half of their charge from a species to the species set.
	assert.EqualValues(t, 1, a.all.HitIntegral[0].Entries())
	assert.EqualValues(t, 1, a.all.HitIntegral[2].Entries())
	assert.EqualValues(t, 1, a.all.HitAreaRatio[0].Entries())
	assert.EqualValues(t, 0, a.all.HitAreaRatio[2].Entries())
	assert.EqualValues(t, 1, a.all.HitFit[0].Entries())
	assert.EqualValues(t, 0, a.all.HitFit[2].Entries())
	assert.EqualValues(t, 1, a.species[Muon].HitIntegral[0].Entries())
	assert.EqualValues(t, 0, a.species[Electron].HitIntegral[2].Entries())

	assert.EqualValues(t, 1, a.all.EnergyRatio[1].Entries())
	assert.EqualValues(t, 1, a.species[Electron].EnergyRatio[0].Entries())
	assert.EqualValues(t, 0, a.species[Photon].EnergyRatio[0].Entries())

	assert.EqualValues(t, 1, a.all.MaxETheta.Entries())
	assert.EqualValues(t, 1, a.species[Muon].MaxETheta.Entries())
	assert.EqualValues(t, 0, a.species[Electron].MaxETheta.Entries())

	// Two hits in EE: the hit count 2 is filled once per hit.
	assert.EqualValues(t, 2, a.tpc[TPCEE].NHits.Entries())
	assert.InDelta(t, 2, a.tpc[TPCEE].NHits.XMean(), 1e-9)
	assert.EqualValues(t, 2, a.tpc[TPCEE].PeakAmplitude.Entries())
	assert.EqualValues(t, 0, a.tpc[TPCWW].NHits.Entries())

	require.Len(t, sink.events, 1)
	s := sink.events[0]
	assert.Equal(t, int32(3), s.Event)
	assert.Equal(t, [NTPCs]int32{0, 0, 0, 2}, s.NHits)
	assert.InDeltaSlice(t, []float64{2.0 / 3, -1, 0.5}, s.Ratio[:], 1e-9)
	assert.InDelta(t, 2.0/3+0.5, s.TotalRatio, 1e-9)
	assert.Equal(t, int32(13), s.MaxEPDG)
	assert.Equal(t, 3.0, s.MaxEEnergy)
	assert.Equal(t, 0.0, s.MaxETheta)
	assert.Equal(t, 0.0, s.MaxEPhi)
	assert.Equal(t, uint8(1<<Electron|1<<Muon), s.SpeciesMask)
}

func TestMaxEAngles(t *testing.T) {
	e := mcEvent()
	e.Particles[0].Px, e.Particles[0].Py, e.Particles[0].Pz = 0, 1, 0
	sink := &fakeSink{}
	a := NewAnalyzer(AnalyzerOptions{MC: true, Summary: sink})
	require.NoError(t, a.ProcessEvent(e))

	require.Len(t, sink.events, 1)
	assert.InDelta(t, math.Pi/2, sink.events[0].MaxETheta, 1e-9)
	assert.InDelta(t, math.Pi/2, sink.events[0].MaxEPhi, 1e-9)
}

func TestProcessEventWithoutTrackedSpecies(t *testing.T) {
	e := &Event{
		Hits:    []Hit{{Channel: 100, TPC: TPCEE, Plane: 0, Integral: 10}},
		Matches: []HitMatch{{HitIndex: 0, TrackID: 1, PDG: 2112, Energy: 5, IDEFraction: 1}},
		IDEs:    []IDE{{Channel: 100, TrackID: 1, Energy: 5}},
	}
	sink := &fakeSink{}
	a := NewAnalyzer(AnalyzerOptions{MC: true, Summary: sink})
	require.NoError(t, a.ProcessEvent(e))

	assert.Equal(t, 1, a.Processed)
	assert.Equal(t, 1, a.Skipped)
	assert.EqualValues(t, 1, a.all.HitIntegral[0].Entries())
	assert.EqualValues(t, 0, a.all.HitEnergy[0].Entries())
	assert.EqualValues(t, 0, a.particleCount.Entries())
	assert.EqualValues(t, 1, a.tpc[TPCEE].NHits.Entries())
	assert.Empty(t, sink.events)

	hit, ide := a.TotalEnergies()
	assert.Equal(t, [NPlanes]float64{}, hit)
	assert.Equal(t, [NPlanes]float64{}, ide)
}

func TestProcessEventBadMatch(t *testing.T) {
	e := mcEvent()
	e.Matches = append(e.Matches, HitMatch{HitIndex: 7, TrackID: 1, PDG: 13, Energy: 1, IDEFraction: 1})

	a := NewAnalyzer(AnalyzerOptions{MC: true})
	require.Error(t, a.ProcessEvent(e))

	assert.Equal(t, 0, a.Processed)
	assert.Equal(t, 1, a.Failed)
	assert.EqualValues(t, 0, a.tpc[TPCEE].NHits.Entries())
	assert.EqualValues(t, 0, a.all.HitIntegral[0].Entries())
	assert.EqualValues(t, 0, a.particleCount.Entries())
}

func TestProcessEventSummaryError(t *testing.T) {
	sinkErr := errors.New("disk full")
	a := NewAnalyzer(AnalyzerOptions{MC: true, Summary: &fakeSink{err: sinkErr}})
	err := a.ProcessEvent(mcEvent())
	require.Error(t, err)
	assert.ErrorIs(t, err, sinkErr)
}

func TestDataModeResultsUnset(t *testing.T) {
	sink := &fakeSink{}
	a := NewAnalyzer(AnalyzerOptions{Summary: sink})
	require.NoError(t, a.ProcessEvent(mcEvent()))

	res := a.Results()
	for _, row := range res {
		for _, v := range row {
			assert.Equal(t, -1.0, v)
		}
	}
	assert.Nil(t, a.particleCount)
	assert.Len(t, a.Directories(), NTPCs)

	require.Len(t, sink.events, 1)
	assert.Equal(t, [NTPCs]int32{0, 0, 0, 2}, sink.events[0].NHits)
	assert.Equal(t, int32(-9999), sink.events[0].MaxEPDG)
	assert.Equal(t, float64(unknownAngle), sink.events[0].MaxETheta)
}

func TestDirectories(t *testing.T) {
	a := NewAnalyzer(AnalyzerOptions{MC: true})
	dirs := a.Directories()
	require.Len(t, dirs, 2+NSpecies+NTPCs)

	assert.Equal(t, "", dirs[0].Name)
	assert.Len(t, dirs[0].Hists, 2)
	assert.Equal(t, "AllParticles", dirs[1].Name)
	assert.Len(t, dirs[1].Hists, 7*NPlanes+4)
	assert.Equal(t, "Electrons", dirs[2].Name)
	assert.Equal(t, "Pions", dirs[6].Name)
	assert.Equal(t, "Hits_WW", dirs[7].Name)
	assert.Equal(t, "Hits_EE", dirs[10].Name)
	assert.Len(t, dirs[10].Hists, 8)
}
