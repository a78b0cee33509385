package hittuning

import (
	"fmt"
	"math"

	"go-hep.org/x/hep/hbook"
	"golang.org/x/exp/constraints"
)

// Results holds hit/truth energy ratios. Rows are total, ele, gamma, mu, p,
// pi; columns are all planes combined followed by planes 0, 1 and 2.
type Results [NSpecies + 1][NPlanes + 1]float64

func unsetResults() Results {
	var r Results
	for i := range r {
		for j := range r[i] {
			r[i][j] = -1
		}
	}
	return r
}

// SafeDivide returns a/b, or 0 when b is zero.
func SafeDivide[T constraints.Float](a, b T) T {
	if b == 0 {
		return 0
	}
	return a / b
}

// FillValue is the per-event energy ratio: -1 when both energies are zero,
// -2 when only the truth energy is zero.
func FillValue[T constraints.Float](hitEnergy, ideEnergy T) T {
	switch {
	case ideEnergy == 0 && hitEnergy == 0:
		return -1
	case ideEnergy == 0:
		return -2
	}
	return hitEnergy / ideEnergy
}

const unknownAngle = -9999

// EventSummary is the per-event record handed to a SummarySink.
type EventSummary struct {
	Run    int32
	SubRun int32
	Event  int32

	NHits      [NTPCs]int32
	HitEnergy  [NPlanes]float64
	IDEEnergy  [NPlanes]float64
	Ratio      [NPlanes]float64
	TotalRatio float64

	MaxEPDG    int32
	MaxEEnergy float64
	MaxETheta  float64
	MaxEPhi    float64

	// Bit s is set when species s deposited energy in the event.
	SpeciesMask uint8
}

// SummarySink receives one summary per accepted event.
type SummarySink interface {
	WriteEvent(EventSummary) error
}

type AnalyzerOptions struct {
	// MC enables the truth accounting; otherwise only the hit histograms and
	// the waveform overlay are produced.
	MC         bool
	ChannelMap *ChannelMap
	Waveform   WaveformSpec
	Summary    SummarySink
}

// Analyzer accumulates histograms and energy totals over events. It is not
// safe for concurrent use; the event loop feeds it from a single goroutine.
type Analyzer struct {
	opts AnalyzerOptions

	particleCount     *hbook.H1D
	maxEParticleCount *hbook.H1D
	all               *energyHists
	species           [NSpecies]*energyHists
	tpc               [NTPCs]*tpcHists
	waveform          *Waveform
	waveformTried     bool

	// Row 0 is all particles, row s+1 species s.
	totalHit [NSpecies + 1][NPlanes]float64
	totalIDE [NSpecies + 1][NPlanes]float64

	Processed int
	Skipped   int
	Failed    int
}

func NewAnalyzer(opts AnalyzerOptions) *Analyzer {
	if opts.ChannelMap == nil {
		opts.ChannelMap = DefaultChannelMap()
	}
	a := &Analyzer{opts: opts}
	binning := dataTPCBinning
	if opts.MC {
		binning = mcTPCBinning
		a.particleCount = newH1D("h_particleCount", "Particle Count per Event;Particle Type;Counts", 6, 0, 6)
		a.maxEParticleCount = newH1D("h_maxEParticleCount", "Highest Energy Particle per Event;Particle Type;Counts", 6, 0, 6)
		a.all = newAllParticleHists()
		for _, s := range trackedSpecies {
			a.species[s] = newSpeciesHists(s)
		}
	}
	for t := 0; t < NTPCs; t++ {
		a.tpc[t] = newTPCHists(TPC(t), binning)
	}
	return a
}

type hitFill struct {
	plane   int
	hit     Hit
	species Species
}

// eventAccount is everything computed from one event before any histogram
// is touched, so a failing event leaves no partial fills behind.
type eventAccount struct {
	byTPC     [NTPCs][]Hit
	hitFills  []hitFill
	found     [NSpecies]bool
	hitEnergy [NPlanes]float64
	ideEnergy [NPlanes]float64

	hasMax     bool
	maxPDG     int32
	maxEnergy  float64
	theta, phi float64
	totalRatio float64
	waveform   *Waveform
}

func (acc *eventAccount) anyFound() bool {
	for _, f := range acc.found {
		if f {
			return true
		}
	}
	return false
}

func (acc *eventAccount) speciesMask() uint8 {
	var mask uint8
	for s, f := range acc.found {
		if f {
			mask |= 1 << s
		}
	}
	return mask
}

func (a *Analyzer) account(e *Event) (*eventAccount, error) {
	acc := &eventAccount{byTPC: e.HitsByTPC(), theta: unknownAngle, phi: unknownAngle}

	if a.opts.Waveform.Enabled && !a.waveformTried && a.opts.Waveform.matches(e) {
		a.waveformTried = true
		w, err := BuildWaveform(e, a.opts.Waveform)
		if err != nil {
			logger.Error(fmt.Sprintf("No waveform for %s: %v", e, err))
		} else {
			acc.waveform = w
		}
	}

	if !a.opts.MC {
		return acc, nil
	}

	particles := make(map[int32]MCParticle, len(e.Particles))
	for _, p := range e.Particles {
		particles[p.TrackID] = p
	}

	for _, m := range e.Matches {
		if m.HitIndex < 0 || int(m.HitIndex) >= len(e.Hits) {
			return nil, fmt.Errorf("match refers to hit %d of %d", m.HitIndex, len(e.Hits))
		}
		hit := e.Hits[m.HitIndex]
		plane := int(hit.Plane)
		if plane < 0 || plane >= NPlanes {
			continue
		}
		s := SpeciesFromPDG(int(m.PDG))
		if s != Other {
			if m.Energy > 0 {
				acc.found[s] = true
			}
			if m.IDEFraction > 0.5 {
				acc.hitFills = append(acc.hitFills, hitFill{plane: plane, hit: hit, species: s})
			}
		}
		acc.hitFills = append(acc.hitFills, hitFill{plane: plane, hit: hit, species: Other})
		acc.hitEnergy[plane] += float64(m.Energy) * float64(m.IDEFraction)
	}

	if !acc.anyFound() {
		return acc, nil
	}

	maxE := -1.0
	maxTrack := int32(-1)
	for _, ide := range e.IDEs {
		plane := a.opts.ChannelMap.Plane(int(ide.Channel))
		if plane < 0 {
			continue
		}
		acc.ideEnergy[plane] += float64(ide.Energy)
		if float64(ide.Energy) > maxE {
			maxE = float64(ide.Energy)
			maxTrack = ide.TrackID
			p, ok := particles[ide.TrackID]
			acc.hasMax = ok
			acc.maxPDG = p.PDG
		}
	}
	if maxE > 0 {
		acc.maxEnergy = maxE
	}
	if p, ok := particles[maxTrack]; ok && maxTrack != -1 {
		px, py, pz := float64(p.Px), float64(p.Py), float64(p.Pz)
		acc.theta = math.Atan2(math.Hypot(px, py), pz)
		acc.phi = math.Atan2(py, px)
	}

	for i := 0; i < NPlanes; i++ {
		if acc.ideEnergy[i] > 0 {
			acc.totalRatio += acc.hitEnergy[i] / acc.ideEnergy[i]
		}
	}
	return acc, nil
}

// ProcessEvent adds one event to the accumulated histograms. A panic while
// processing is recovered, the event is discarded and an error returned.
func (a *Analyzer) ProcessEvent(e *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			a.Failed++
			err = fmt.Errorf("panic processing %s: %v", e, r)
			logger.Error(err.Error())
		}
	}()

	acc, err := a.account(e)
	if err != nil {
		a.Failed++
		return fmt.Errorf("error processing %s: %w", e, err)
	}
	a.Processed++

	for t := range acc.byTPC {
		a.tpc[t].fill(acc.byTPC[t])
	}
	if acc.waveform != nil {
		a.waveform = acc.waveform
		if configuration.Verbosity > 0 {
			logger.Info(fmt.Sprintf("Waveform overlay built for channel %d in %s", a.waveform.Channel, e), "analysis")
		}
	}

	summary := EventSummary{Run: e.Run, SubRun: e.SubRun, Event: e.Event, MaxEPDG: -9999,
		MaxETheta: unknownAngle, MaxEPhi: unknownAngle}
	for t := range acc.byTPC {
		summary.NHits[t] = int32(len(acc.byTPC[t]))
	}

	if !a.opts.MC {
		return a.writeSummary(summary)
	}

	for _, f := range acc.hitFills {
		if f.species == Other {
			a.all.fillHit(f.plane, f.hit)
		} else {
			a.species[f.species].fillHit(f.plane, f.hit)
		}
	}

	if !acc.anyFound() {
		a.Skipped++
		if configuration.Verbosity > 1 {
			logger.Info(fmt.Sprintf("No tracked particle deposited energy in %s", e), "analysis")
		}
		return nil
	}

	maxSpecies := Other
	if acc.hasMax {
		maxSpecies = SpeciesFromPDG(int(acc.maxPDG))
		a.maxEParticleCount.Fill(maxSpecies.Bin(), 1)
	}

	a.all.fillMaxE(acc.theta, acc.phi, acc.totalRatio)
	var ratios [NPlanes]float64
	for plane := 0; plane < NPlanes; plane++ {
		ratios[plane] = FillValue(acc.hitEnergy[plane], acc.ideEnergy[plane])
		a.all.fillEnergy(plane, acc.hitEnergy[plane], acc.ideEnergy[plane], ratios[plane])
		a.totalHit[0][plane] += acc.hitEnergy[plane]
		a.totalIDE[0][plane] += acc.ideEnergy[plane]
	}

	for _, s := range trackedSpecies {
		if !acc.found[s] {
			continue
		}
		for plane := 0; plane < NPlanes; plane++ {
			// One count per plane, so each found species adds NPlanes entries.
			a.particleCount.Fill(s.Bin(), 1)
			a.species[s].fillEnergy(plane, acc.hitEnergy[plane], acc.ideEnergy[plane], ratios[plane])
			a.totalHit[s+1][plane] += acc.hitEnergy[plane]
			a.totalIDE[s+1][plane] += acc.ideEnergy[plane]
		}
		if acc.hasMax && maxSpecies == s {
			a.species[s].fillMaxE(acc.theta, acc.phi, acc.totalRatio)
		}
	}

	summary.HitEnergy = acc.hitEnergy
	summary.IDEEnergy = acc.ideEnergy
	summary.Ratio = ratios
	summary.TotalRatio = acc.totalRatio
	if acc.hasMax {
		summary.MaxEPDG = acc.maxPDG
	}
	summary.MaxEEnergy = acc.maxEnergy
	summary.MaxETheta = acc.theta
	summary.MaxEPhi = acc.phi
	summary.SpeciesMask = acc.speciesMask()
	return a.writeSummary(summary)
}

func (a *Analyzer) writeSummary(s EventSummary) error {
	if a.opts.Summary == nil {
		return nil
	}
	if err := a.opts.Summary.WriteEvent(s); err != nil {
		return fmt.Errorf("error writing summary for event %d: %w", s.Event, err)
	}
	return nil
}

// Results returns the accumulated hit/IDE energy ratios. Without truth
// information every entry is -1.
func (a *Analyzer) Results() Results {
	if !a.opts.MC {
		return unsetResults()
	}
	var res Results
	for row := range res {
		var hit, ide float64
		for plane := 0; plane < NPlanes; plane++ {
			res[row][plane+1] = SafeDivide(a.totalHit[row][plane], a.totalIDE[row][plane])
			hit += a.totalHit[row][plane]
			ide += a.totalIDE[row][plane]
		}
		res[row][0] = SafeDivide(hit, ide)
	}
	return res
}

// TotalEnergies returns the summed hit and IDE energies per plane for all
// particles.
func (a *Analyzer) TotalEnergies() (hit, ide [NPlanes]float64) {
	return a.totalHit[0], a.totalIDE[0]
}

// Waveform returns the overlay built so far, or nil.
func (a *Analyzer) Waveform() *Waveform {
	return a.waveform
}

// Directories lists the histograms in output order.
func (a *Analyzer) Directories() []HistDir {
	var dirs []HistDir
	if a.opts.MC {
		dirs = append(dirs,
			HistDir{Name: "", Hists: []any{a.particleCount, a.maxEParticleCount}},
			HistDir{Name: "AllParticles", Hists: a.all.list()})
		for _, s := range trackedSpecies {
			dirs = append(dirs, HistDir{Name: s.Dir(), Hists: a.species[s].list()})
		}
	}
	for t := 0; t < NTPCs; t++ {
		dirs = append(dirs, HistDir{Name: "Hits_" + TPC(t).String(), Hists: a.tpc[t].list()})
	}
	if a.waveform != nil {
		dirs = append(dirs, HistDir{Name: "WireWaveformWithHits", Hists: []any{a.waveform.Wire, a.waveform.Hits}})
	}
	return dirs
}

// LogSummary reports the totals of the loop.
func (a *Analyzer) LogSummary() {
	if configuration.Verbosity < 1 {
		return
	}
	logger.Info(fmt.Sprintf("Events processed: %d, skipped: %d, failed: %d", a.Processed, a.Skipped, a.Failed), "analysis")
	if !a.opts.MC {
		return
	}
	for plane := 0; plane < NPlanes; plane++ {
		logger.Info(fmt.Sprintf("Plane %d total Hit Energy over all events: %g MeV", plane, a.totalHit[0][plane]), "analysis")
		logger.Info(fmt.Sprintf("Plane %d total IDE Energy over all events: %g MeV", plane, a.totalIDE[0][plane]), "analysis")
	}
}
