package hittuning

import "fmt"

// flatEvent is the flat branch layout of the hit tree: one entry per event,
// variable-length collections stored as parallel slices behind a count leaf.
type flatEvent struct {
	Run    int32
	SubRun int32
	Event  int32

	NHits           int32
	HitChannel      []int32
	HitTPC          []int32
	HitPlane        []int32
	HitWire         []int32
	HitStartTick    []int32
	HitEndTick      []int32
	HitDoF          []int32
	HitPeakTime     []float32
	HitRMS          []float32
	HitPeakAmp      []float32
	HitIntegral     []float32
	HitSummedADC    []float32
	HitROISummedADC []float32
	HitGoF          []float32

	NMatch            int32
	MatchHit          []int32
	MatchTrackID      []int32
	MatchPDG          []int32
	MatchEnergy       []float32
	MatchIDEFraction  []float32
	MatchNumElectrons []float32
	MatchIDENFraction []float32

	NMCP       int32
	MCPTrackID []int32
	MCPPDG     []int32
	MCPPx      []float32
	MCPPy      []float32
	MCPPz      []float32
	MCPE       []float32

	NIDE            int32
	IDEChannel      []int32
	IDETick         []int32
	IDETrackID      []int32
	IDEEnergy       []float32
	IDENumElectrons []float32

	NROI       int32
	ROIChannel []int32
	ROITPC     []int32
	ROIStart   []int32
	ROISize    []int32
	NADC       int32
	ROIADC     []float32
}

type branchGroup int

const (
	headerBranches branchGroup = iota
	hitBranches
	truthBranches
	wireBranches
)

func (g branchGroup) String() string {
	switch g {
	case headerBranches:
		return "header"
	case hitBranches:
		return "hits"
	case truthBranches:
		return "truth"
	case wireBranches:
		return "wires"
	default:
		return "unknown"
	}
}

// required groups must be present in every input tree
func (g branchGroup) required() bool {
	return g == headerBranches || g == hitBranches
}

type branchVar struct {
	name  string
	count string
	value any
	group branchGroup
}

// branches lists the tree layout. Count leaves come before the slices that
// use them.
func (f *flatEvent) branches() []branchVar {
	return []branchVar{
		{"run", "", &f.Run, headerBranches},
		{"subrun", "", &f.SubRun, headerBranches},
		{"event", "", &f.Event, headerBranches},

		{"nhits", "", &f.NHits, hitBranches},
		{"hit_channel", "nhits", &f.HitChannel, hitBranches},
		{"hit_tpc", "nhits", &f.HitTPC, hitBranches},
		{"hit_plane", "nhits", &f.HitPlane, hitBranches},
		{"hit_wire", "nhits", &f.HitWire, hitBranches},
		{"hit_start_tick", "nhits", &f.HitStartTick, hitBranches},
		{"hit_end_tick", "nhits", &f.HitEndTick, hitBranches},
		{"hit_dof", "nhits", &f.HitDoF, hitBranches},
		{"hit_peak_time", "nhits", &f.HitPeakTime, hitBranches},
		{"hit_rms", "nhits", &f.HitRMS, hitBranches},
		{"hit_peak_amp", "nhits", &f.HitPeakAmp, hitBranches},
		{"hit_integral", "nhits", &f.HitIntegral, hitBranches},
		{"hit_summed_adc", "nhits", &f.HitSummedADC, hitBranches},
		{"hit_roi_summed_adc", "nhits", &f.HitROISummedADC, hitBranches},
		{"hit_gof", "nhits", &f.HitGoF, hitBranches},

		{"nmatch", "", &f.NMatch, truthBranches},
		{"match_hit", "nmatch", &f.MatchHit, truthBranches},
		{"match_trackid", "nmatch", &f.MatchTrackID, truthBranches},
		{"match_pdg", "nmatch", &f.MatchPDG, truthBranches},
		{"match_energy", "nmatch", &f.MatchEnergy, truthBranches},
		{"match_ide_fraction", "nmatch", &f.MatchIDEFraction, truthBranches},
		{"match_num_electrons", "nmatch", &f.MatchNumElectrons, truthBranches},
		{"match_iden_fraction", "nmatch", &f.MatchIDENFraction, truthBranches},

		{"nmcp", "", &f.NMCP, truthBranches},
		{"mcp_trackid", "nmcp", &f.MCPTrackID, truthBranches},
		{"mcp_pdg", "nmcp", &f.MCPPDG, truthBranches},
		{"mcp_px", "nmcp", &f.MCPPx, truthBranches},
		{"mcp_py", "nmcp", &f.MCPPy, truthBranches},
		{"mcp_pz", "nmcp", &f.MCPPz, truthBranches},
		{"mcp_e", "nmcp", &f.MCPE, truthBranches},

		{"nide", "", &f.NIDE, truthBranches},
		{"ide_channel", "nide", &f.IDEChannel, truthBranches},
		{"ide_tick", "nide", &f.IDETick, truthBranches},
		{"ide_trackid", "nide", &f.IDETrackID, truthBranches},
		{"ide_energy", "nide", &f.IDEEnergy, truthBranches},
		{"ide_num_electrons", "nide", &f.IDENumElectrons, truthBranches},

		{"nroi", "", &f.NROI, wireBranches},
		{"roi_channel", "nroi", &f.ROIChannel, wireBranches},
		{"roi_tpc", "nroi", &f.ROITPC, wireBranches},
		{"roi_start", "nroi", &f.ROIStart, wireBranches},
		{"roi_size", "nroi", &f.ROISize, wireBranches},
		{"nadc", "", &f.NADC, wireBranches},
		{"roi_adc", "nadc", &f.ROIADC, wireBranches},
	}
}

// toEvent copies the current entry into a fresh Event. Groups not read are
// left empty.
func (f *flatEvent) toEvent() (*Event, error) {
	e := &Event{Run: f.Run, SubRun: f.SubRun, Event: f.Event}

	e.Hits = make([]Hit, len(f.HitChannel))
	for i := range e.Hits {
		e.Hits[i] = Hit{
			Channel:      f.HitChannel[i],
			TPC:          TPC(f.HitTPC[i]),
			Plane:        f.HitPlane[i],
			Wire:         f.HitWire[i],
			StartTick:    f.HitStartTick[i],
			EndTick:      f.HitEndTick[i],
			DoF:          f.HitDoF[i],
			PeakTime:     f.HitPeakTime[i],
			RMS:          f.HitRMS[i],
			PeakAmp:      f.HitPeakAmp[i],
			Integral:     f.HitIntegral[i],
			SummedADC:    f.HitSummedADC[i],
			ROISummedADC: f.HitROISummedADC[i],
			GoodnessFit:  f.HitGoF[i],
		}
	}

	e.Matches = make([]HitMatch, len(f.MatchHit))
	for i := range e.Matches {
		e.Matches[i] = HitMatch{
			HitIndex:     f.MatchHit[i],
			TrackID:      f.MatchTrackID[i],
			PDG:          f.MatchPDG[i],
			Energy:       f.MatchEnergy[i],
			IDEFraction:  f.MatchIDEFraction[i],
			NumElectrons: f.MatchNumElectrons[i],
			IDENFraction: f.MatchIDENFraction[i],
		}
	}

	e.Particles = make([]MCParticle, len(f.MCPTrackID))
	for i := range e.Particles {
		e.Particles[i] = MCParticle{
			TrackID: f.MCPTrackID[i],
			PDG:     f.MCPPDG[i],
			Px:      f.MCPPx[i],
			Py:      f.MCPPy[i],
			Pz:      f.MCPPz[i],
			E:       f.MCPE[i],
		}
	}

	e.IDEs = make([]IDE, len(f.IDEChannel))
	for i := range e.IDEs {
		e.IDEs[i] = IDE{
			Channel:      f.IDEChannel[i],
			Tick:         f.IDETick[i],
			TrackID:      f.IDETrackID[i],
			Energy:       f.IDEEnergy[i],
			NumElectrons: f.IDENumElectrons[i],
		}
	}

	e.ROIs = make([]ChannelROI, len(f.ROIChannel))
	offset := 0
	for i := range e.ROIs {
		size := int(f.ROISize[i])
		if offset+size > len(f.ROIADC) {
			return nil, fmt.Errorf("%s: ROI %d needs %d samples, only %d stored", e, i, offset+size, len(f.ROIADC))
		}
		e.ROIs[i] = ChannelROI{
			Channel: f.ROIChannel[i],
			TPC:     TPC(f.ROITPC[i]),
			Start:   f.ROIStart[i],
			ADC:     append([]float32(nil), f.ROIADC[offset:offset+size]...),
		}
		offset += size
	}

	for _, m := range e.Matches {
		if m.HitIndex < 0 || int(m.HitIndex) >= len(e.Hits) {
			return nil, fmt.Errorf("%s: match refers to hit %d of %d", e, m.HitIndex, len(e.Hits))
		}
	}
	return e, nil
}

// fill loads an Event into the branch buffers.
func (f *flatEvent) fill(e *Event) {
	f.Run, f.SubRun, f.Event = e.Run, e.SubRun, e.Event

	f.NHits = int32(len(e.Hits))
	f.HitChannel = f.HitChannel[:0]
	f.HitTPC = f.HitTPC[:0]
	f.HitPlane = f.HitPlane[:0]
	f.HitWire = f.HitWire[:0]
	f.HitStartTick = f.HitStartTick[:0]
	f.HitEndTick = f.HitEndTick[:0]
	f.HitDoF = f.HitDoF[:0]
	f.HitPeakTime = f.HitPeakTime[:0]
	f.HitRMS = f.HitRMS[:0]
	f.HitPeakAmp = f.HitPeakAmp[:0]
	f.HitIntegral = f.HitIntegral[:0]
	f.HitSummedADC = f.HitSummedADC[:0]
	f.HitROISummedADC = f.HitROISummedADC[:0]
	f.HitGoF = f.HitGoF[:0]
	for _, h := range e.Hits {
		f.HitChannel = append(f.HitChannel, h.Channel)
		f.HitTPC = append(f.HitTPC, int32(h.TPC))
		f.HitPlane = append(f.HitPlane, h.Plane)
		f.HitWire = append(f.HitWire, h.Wire)
		f.HitStartTick = append(f.HitStartTick, h.StartTick)
		f.HitEndTick = append(f.HitEndTick, h.EndTick)
		f.HitDoF = append(f.HitDoF, h.DoF)
		f.HitPeakTime = append(f.HitPeakTime, h.PeakTime)
		f.HitRMS = append(f.HitRMS, h.RMS)
		f.HitPeakAmp = append(f.HitPeakAmp, h.PeakAmp)
		f.HitIntegral = append(f.HitIntegral, h.Integral)
		f.HitSummedADC = append(f.HitSummedADC, h.SummedADC)
		f.HitROISummedADC = append(f.HitROISummedADC, h.ROISummedADC)
		f.HitGoF = append(f.HitGoF, h.GoodnessFit)
	}

	f.NMatch = int32(len(e.Matches))
	f.MatchHit = f.MatchHit[:0]
	f.MatchTrackID = f.MatchTrackID[:0]
	f.MatchPDG = f.MatchPDG[:0]
	f.MatchEnergy = f.MatchEnergy[:0]
	f.MatchIDEFraction = f.MatchIDEFraction[:0]
	f.MatchNumElectrons = f.MatchNumElectrons[:0]
	f.MatchIDENFraction = f.MatchIDENFraction[:0]
	for _, m := range e.Matches {
		f.MatchHit = append(f.MatchHit, m.HitIndex)
		f.MatchTrackID = append(f.MatchTrackID, m.TrackID)
		f.MatchPDG = append(f.MatchPDG, m.PDG)
		f.MatchEnergy = append(f.MatchEnergy, m.Energy)
		f.MatchIDEFraction = append(f.MatchIDEFraction, m.IDEFraction)
		f.MatchNumElectrons = append(f.MatchNumElectrons, m.NumElectrons)
		f.MatchIDENFraction = append(f.MatchIDENFraction, m.IDENFraction)
	}

	f.NMCP = int32(len(e.Particles))
	f.MCPTrackID = f.MCPTrackID[:0]
	f.MCPPDG = f.MCPPDG[:0]
	f.MCPPx = f.MCPPx[:0]
	f.MCPPy = f.MCPPy[:0]
	f.MCPPz = f.MCPPz[:0]
	f.MCPE = f.MCPE[:0]
	for _, p := range e.Particles {
		f.MCPTrackID = append(f.MCPTrackID, p.TrackID)
		f.MCPPDG = append(f.MCPPDG, p.PDG)
		f.MCPPx = append(f.MCPPx, p.Px)
		f.MCPPy = append(f.MCPPy, p.Py)
		f.MCPPz = append(f.MCPPz, p.Pz)
		f.MCPE = append(f.MCPE, p.E)
	}

	f.NIDE = int32(len(e.IDEs))
	f.IDEChannel = f.IDEChannel[:0]
	f.IDETick = f.IDETick[:0]
	f.IDETrackID = f.IDETrackID[:0]
	f.IDEEnergy = f.IDEEnergy[:0]
	f.IDENumElectrons = f.IDENumElectrons[:0]
	for _, ide := range e.IDEs {
		f.IDEChannel = append(f.IDEChannel, ide.Channel)
		f.IDETick = append(f.IDETick, ide.Tick)
		f.IDETrackID = append(f.IDETrackID, ide.TrackID)
		f.IDEEnergy = append(f.IDEEnergy, ide.Energy)
		f.IDENumElectrons = append(f.IDENumElectrons, ide.NumElectrons)
	}

	f.NROI = int32(len(e.ROIs))
	f.ROIChannel = f.ROIChannel[:0]
	f.ROITPC = f.ROITPC[:0]
	f.ROIStart = f.ROIStart[:0]
	f.ROISize = f.ROISize[:0]
	f.ROIADC = f.ROIADC[:0]
	for _, r := range e.ROIs {
		f.ROIChannel = append(f.ROIChannel, r.Channel)
		f.ROITPC = append(f.ROITPC, int32(r.TPC))
		f.ROIStart = append(f.ROIStart, r.Start)
		f.ROISize = append(f.ROISize, int32(len(r.ADC)))
		f.ROIADC = append(f.ROIADC, r.ADC...)
	}
	f.NADC = int32(len(f.ROIADC))
}
