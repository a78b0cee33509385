package hittuning

import "fmt"

// TPC identifies one of the four ICARUS TPCs. The order matches the hit
// histogram directories.
type TPC int

const (
	TPCWW TPC = iota
	TPCWE
	TPCEW
	TPCEE
)

const NTPCs = 4

var tpcLabels = [NTPCs]string{"WW", "WE", "EW", "EE"}

func (t TPC) String() string {
	if t < 0 || int(t) >= NTPCs {
		return fmt.Sprintf("TPC(%d)", int(t))
	}
	return tpcLabels[t]
}

// ParseTPC converts a label such as "EE" into a TPC.
func ParseTPC(label string) (TPC, error) {
	for i, l := range tpcLabels {
		if l == label {
			return TPC(i), nil
		}
	}
	return -1, fmt.Errorf("unknown TPC %q", label)
}

// Hit is a reconstructed Gaussian hit.
type Hit struct {
	Channel      int32
	TPC          TPC
	Plane        int32
	Wire         int32
	StartTick    int32
	EndTick      int32
	PeakTime     float32
	RMS          float32
	PeakAmp      float32
	Integral     float32
	SummedADC    float32
	ROISummedADC float32
	GoodnessFit  float32
	DoF          int32
}

// HitMatch associates a hit with the MC particle that deposited charge in it.
type HitMatch struct {
	HitIndex     int32
	TrackID      int32
	PDG          int32
	Energy       float32
	IDEFraction  float32
	NumElectrons float32
	IDENFraction float32
}

type MCParticle struct {
	TrackID int32
	PDG     int32
	Px      float32
	Py      float32
	Pz      float32
	E       float32
}

// IDE is one ionization deposit on a channel at a given tick.
type IDE struct {
	Channel      int32
	Tick         int32
	TrackID      int32
	Energy       float32
	NumElectrons float32
}

// ChannelROI holds the deconvolved samples of one region of interest.
type ChannelROI struct {
	Channel int32
	TPC     TPC
	Start   int32
	ADC     []float32
}

type Event struct {
	Run    int32
	SubRun int32
	Event  int32

	Hits      []Hit
	Matches   []HitMatch
	Particles []MCParticle
	IDEs      []IDE
	ROIs      []ChannelROI
}

func (e *Event) String() string {
	return fmt.Sprintf("run %d subrun %d event %d", e.Run, e.SubRun, e.Event)
}

// HitsByTPC splits the hits into the four TPC collections.
func (e *Event) HitsByTPC() [NTPCs][]Hit {
	var out [NTPCs][]Hit
	for _, h := range e.Hits {
		if h.TPC < 0 || int(h.TPC) >= NTPCs {
			continue
		}
		out[h.TPC] = append(out[h.TPC], h)
	}
	return out
}

// Signal rebuilds the dense waveform of a channel from its ROIs. The length
// is the end of the last ROI; ticks outside any ROI are zero. ok is false
// when the channel has no ROI in the event.
func (e *Event) Signal(channel int32) (signal []float32, ok bool) {
	n := 0
	for _, r := range e.ROIs {
		if r.Channel != channel {
			continue
		}
		ok = true
		if end := int(r.Start) + len(r.ADC); end > n {
			n = end
		}
	}
	if !ok {
		return nil, false
	}
	signal = make([]float32, n)
	for _, r := range e.ROIs {
		if r.Channel != channel {
			continue
		}
		copy(signal[r.Start:], r.ADC)
	}
	return signal, true
}

// WireChannels lists the channels with at least one ROI in the given TPC.
func (e *Event) WireChannels(tpc TPC) []int32 {
	seen := make(map[int32]bool)
	var channels []int32
	for _, r := range e.ROIs {
		if r.TPC != tpc || seen[r.Channel] {
			continue
		}
		seen[r.Channel] = true
		channels = append(channels, r.Channel)
	}
	return channels
}
