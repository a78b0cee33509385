package hittuning

import (
	"fmt"

	"go-hep.org/x/hep/hbook"
)

func newH1D(name, title string, n int, xmin, xmax float64) *hbook.H1D {
	h := hbook.NewH1D(n, xmin, xmax)
	h.Annotation()["name"] = name
	h.Annotation()["title"] = title
	return h
}

func newH2D(name, title string, nx int, xmin, xmax float64, ny int, ymin, ymax float64) *hbook.H2D {
	h := hbook.NewH2D(nx, xmin, xmax, ny, ymin, ymax)
	h.Annotation()["name"] = name
	h.Annotation()["title"] = title
	return h
}

// HistDir is one directory of the output file; the empty name is the top
// level. Hists holds *hbook.H1D and *hbook.H2D values in write order.
type HistDir struct {
	Name  string
	Hists []any
}

// energyHists is the per-plane energy and hit-shape set, kept once for all
// particles and once per species.
type energyHists struct {
	HitEnergy    [NPlanes]*hbook.H1D
	IDEEnergy    [NPlanes]*hbook.H1D
	EnergyRatio  [NPlanes]*hbook.H1D
	HitIntegral  [NPlanes]*hbook.H1D
	HitADC       [NPlanes]*hbook.H1D
	HitAreaRatio [NPlanes]*hbook.H1D
	HitFit       [NPlanes]*hbook.H1D

	MaxETheta    *hbook.H1D
	MaxEPhi      *hbook.H1D
	MaxEThetaVsE *hbook.H2D
	MaxEPhiVsE   *hbook.H2D
}

func newEnergyHists(suffix, eventDesc, hitsDesc, maxDesc string) *energyHists {
	h := &energyHists{}
	for i := 0; i < NPlanes; i++ {
		h.HitEnergy[i] = newH1D(fmt.Sprintf("h_hitEnergy%s_plane%d", suffix, i),
			fmt.Sprintf("Hit Energy from BackTrackerHitMatchingData%s Plane %d;Energy (MeV);Counts", eventDesc, i), 100, 0, 1e4)
		h.IDEEnergy[i] = newH1D(fmt.Sprintf("h_ideEnergy%s_plane%d", suffix, i),
			fmt.Sprintf("IDE Energy from SimChannel%s Plane %d;Energy (MeV);Counts", eventDesc, i), 100, 0, 1e4)
		h.EnergyRatio[i] = newH1D(fmt.Sprintf("h_energyRatio%s_plane%d", suffix, i),
			fmt.Sprintf("Ratio of Hit Energy to IDE Energy%s Plane %d;Hit Energy / IDE Energy;Counts", eventDesc, i), 256, -2, 1.2)
		h.HitIntegral[i] = newH1D(fmt.Sprintf("h_hitIntegral%s_plane%d", suffix, i),
			fmt.Sprintf("Hit Integral %s Plane %d;Integral (tick x ADC);Counts", hitsDesc, i), 100, 0, 5e3)
		h.HitADC[i] = newH1D(fmt.Sprintf("h_hitADC%s_plane%d", suffix, i),
			fmt.Sprintf("Hit Summed ADC %s Plane %d;Summed ADC;Counts", hitsDesc, i), 100, 0, 5e3)
		h.HitAreaRatio[i] = newH1D(fmt.Sprintf("h_hitAreaRatio%s_plane%d", suffix, i),
			fmt.Sprintf("Hit Integral/ADC %s Plane %d;Hit Integral/ADC Ratio;Counts", hitsDesc, i), 100, 0, 2)
		h.HitFit[i] = newH1D(fmt.Sprintf("h_hitFit%s_plane%d", suffix, i),
			fmt.Sprintf("Chi2/NDOF %s Plane %d;Chi2/NDOF;Counts", hitsDesc, i), 100, 0, 1)
	}
	h.MaxETheta = newH1D("h_maxETheta"+suffix,
		fmt.Sprintf("Theta of Highest Energy %s per Event;Theta (radians);Counts", maxDesc), 100, -4, 4)
	h.MaxEPhi = newH1D("h_maxEPhi"+suffix,
		fmt.Sprintf("Phi of Highest Energy %s per Event;Phi (radians);Counts", maxDesc), 100, -4, 4)
	h.MaxEThetaVsE = newH2D("h_maxETheta_vs_E"+suffix,
		fmt.Sprintf("Theta vs Energy of Highest Energy %s per Event;Theta (radians);Energy (MeV)", maxDesc), 100, -4, 4, 256, -2, 1.2)
	h.MaxEPhiVsE = newH2D("h_maxEPhi_vs_E"+suffix,
		fmt.Sprintf("Phi vs Energy of Highest Energy %s per Event;Phi (radians);Energy (MeV)", maxDesc), 100, -4, 4, 256, -2, 1.2)
	return h
}

func newAllParticleHists() *energyHists {
	return newEnergyHists("", "", "all Hits", "Particle")
}

func newSpeciesHists(s Species) *energyHists {
	return newEnergyHists("_"+s.Short(), fmt.Sprintf(" (%s in Event)", s), "Hits from "+s.Dir(), s.String())
}

func (h *energyHists) fillHit(plane int, hit Hit) {
	h.HitIntegral[plane].Fill(float64(hit.Integral), 1)
	h.HitADC[plane].Fill(float64(hit.SummedADC), 1)
	if hit.SummedADC != 0 {
		h.HitAreaRatio[plane].Fill(float64(hit.Integral)/float64(hit.SummedADC), 1)
	}
	if hit.DoF != 0 {
		h.HitFit[plane].Fill(float64(hit.GoodnessFit)/float64(hit.DoF), 1)
	}
}

func (h *energyHists) fillEnergy(plane int, hitE, ideE, ratio float64) {
	h.HitEnergy[plane].Fill(hitE, 1)
	h.IDEEnergy[plane].Fill(ideE, 1)
	h.EnergyRatio[plane].Fill(ratio, 1)
}

func (h *energyHists) fillMaxE(theta, phi, totalRatio float64) {
	h.MaxETheta.Fill(theta, 1)
	h.MaxEPhi.Fill(phi, 1)
	h.MaxEThetaVsE.Fill(theta, totalRatio, 1)
	h.MaxEPhiVsE.Fill(phi, totalRatio, 1)
}

func (h *energyHists) list() []any {
	out := make([]any, 0, 7*NPlanes+4)
	for i := 0; i < NPlanes; i++ {
		out = append(out, h.HitEnergy[i], h.IDEEnergy[i], h.EnergyRatio[i],
			h.HitIntegral[i], h.HitADC[i], h.HitAreaRatio[i], h.HitFit[i])
	}
	return append(out, h.MaxETheta, h.MaxEPhi, h.MaxEThetaVsE, h.MaxEPhiVsE)
}

// tpcBinning differs between MC and data hit histograms.
type tpcBinning struct {
	nHitsMax     float64
	integralBins int
	integralMax  float64
	gofMax       float64
	adcMax       float64
}

var (
	mcTPCBinning   = tpcBinning{nHitsMax: 1000, integralBins: 500, integralMax: 2000, gofMax: 10, adcMax: 2000}
	dataTPCBinning = tpcBinning{nHitsMax: 25000, integralBins: 100, integralMax: 1000, gofMax: 5, adcMax: 1000}
)

// tpcHists are the hit property histograms of one TPC.
type tpcHists struct {
	PeakAmplitude *hbook.H1D
	NHits         *hbook.H1D
	RMS           *hbook.H1D
	Integral      *hbook.H1D
	GoodnessOfFit *hbook.H1D
	HitSummedADC  *hbook.H1D
	ROISummedADC  *hbook.H1D
	Channel       *hbook.H1D
}

func newTPCHists(tpc TPC, b tpcBinning) *tpcHists {
	id := tpc.String()
	return &tpcHists{
		PeakAmplitude: newH1D("hPeakAmplitude_"+id, fmt.Sprintf("Hit Peak Amplitude %s;Amplitude;Counts", id), 400, 0, 400),
		NHits:         newH1D("hNHits_"+id, fmt.Sprintf("Number of Hits %s;Number of Hits;Counts", id), 250, 0, b.nHitsMax),
		RMS:           newH1D("hRMS_"+id, fmt.Sprintf("Hit RMS %s;RMS;Counts", id), 100, 0, 20),
		Integral:      newH1D("hIntegral_"+id, fmt.Sprintf("Hit Integral %s;Integral;Counts", id), b.integralBins, 0, b.integralMax),
		GoodnessOfFit: newH1D("hGoodnessOfFit_"+id, fmt.Sprintf("Hit Goodness of Fit %s;Goodness of Fit;Counts", id), 50, 0, b.gofMax),
		HitSummedADC:  newH1D("hHitSummedADC_"+id, fmt.Sprintf("Hit Summed ADC %s;Hit Summed ADC;Counts", id), 500, 0, b.adcMax),
		ROISummedADC:  newH1D("hROISummedADC_"+id, fmt.Sprintf("ROI Summed ADC %s;ROI Summed ADC;Counts", id), 500, 0, b.adcMax),
		Channel:       newH1D("hChannel_"+id, fmt.Sprintf("Hit Channel %s;Channel;Counts", id), 3500, 0, 3500),
	}
}

// fill records one event worth of hits. The event's hit count is filled once
// per hit, so hNHits is weighted by multiplicity like the reference ROOT
// histograms.
func (h *tpcHists) fill(hits []Hit) {
	for _, hit := range hits {
		h.PeakAmplitude.Fill(float64(hit.PeakAmp), 1)
		h.NHits.Fill(float64(len(hits)), 1)
		h.RMS.Fill(float64(hit.RMS), 1)
		h.Integral.Fill(float64(hit.Integral), 1)
		h.GoodnessOfFit.Fill(float64(hit.GoodnessFit), 1)
		h.HitSummedADC.Fill(float64(hit.SummedADC), 1)
		h.ROISummedADC.Fill(float64(hit.ROISummedADC), 1)
		h.Channel.Fill(float64(hit.Wire), 1)
	}
}

func (h *tpcHists) list() []any {
	return []any{h.PeakAmplitude, h.NHits, h.RMS, h.Integral, h.GoodnessOfFit,
		h.HitSummedADC, h.ROISummedADC, h.Channel}
}
