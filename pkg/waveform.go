package hittuning

import (
	"fmt"
	"image/color"
	"math"

	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot/vg"
)

// WaveformSpec selects the channel whose ROI waveform is overlaid with the
// hit Gaussians. Run or Event set to -1 match any event, so the first
// event with the channel is used.
type WaveformSpec struct {
	Enabled bool
	Run     int
	Event   int
	Channel int32
	TPC     TPC

	// Tick window [TimeLow, TimeHigh). TimeHigh <= 0 uses the whole signal.
	TimeLow  int
	TimeHigh int
	ADCScale float64
}

// WaveformSpecFromConfig returns the MC or data overlay selection.
func WaveformSpecFromConfig(config Configuration) (WaveformSpec, error) {
	if config.MC {
		tpc, err := ParseTPC(config.WaveformTPC)
		if err != nil {
			return WaveformSpec{}, err
		}
		return WaveformSpec{
			Enabled:  true,
			Run:      config.WaveformRun,
			Event:    config.WaveformEvent,
			Channel:  int32(config.WaveformChannel),
			TPC:      tpc,
			ADCScale: 1,
		}, nil
	}
	tpc, err := ParseTPC(config.DataTPC)
	if err != nil {
		return WaveformSpec{}, err
	}
	return WaveformSpec{
		Enabled:  true,
		Run:      -1,
		Event:    -1,
		Channel:  int32(config.DataChannel),
		TPC:      tpc,
		TimeLow:  config.TimeLow,
		TimeHigh: config.TimeHigh,
		ADCScale: config.ADCScaleFactor,
	}, nil
}

func (s WaveformSpec) matches(e *Event) bool {
	return (s.Run < 0 || int(e.Run) == s.Run) && (s.Event < 0 || int(e.Event) == s.Event)
}

// Waveform is the ROI signal of one channel next to the sum of its hit
// Gaussians, binned one tick per bin.
type Waveform struct {
	Run     int32
	Event   int32
	Channel int32
	Wire    *hbook.H1D
	Hits    *hbook.H1D
	NHits   int
}

func gaussian(x, amplitude, mean, sigma float64) float64 {
	d := (x - mean) / sigma
	return amplitude * math.Exp(-0.5*d*d)
}

// BuildWaveform builds the overlay for spec.Channel in e. Hits come from the
// TPC of the spec; hits with zero RMS are ignored.
func BuildWaveform(e *Event, spec WaveformSpec) (*Waveform, error) {
	signal, ok := e.Signal(spec.Channel)
	if !ok {
		return nil, fmt.Errorf("channel %d has no ROI", spec.Channel)
	}
	low, high := spec.TimeLow, spec.TimeHigh
	if high <= 0 {
		low, high = 0, len(signal)
	}
	if low < 0 || high <= low {
		return nil, fmt.Errorf("invalid tick window [%d, %d)", low, high)
	}
	scale := spec.ADCScale
	if scale == 0 {
		scale = 1
	}

	w := &Waveform{
		Run:     e.Run,
		Event:   e.Event,
		Channel: spec.Channel,
		Wire: newH1D("hWire", fmt.Sprintf("Wire vs Hits on Channel %d;Time Tick;ADC Counts", spec.Channel),
			high-low, float64(low), float64(high)),
		Hits: newH1D("hHits", "Summed Hit Gaussians", high-low, float64(low), float64(high)),
	}
	for i := low; i < high && i < len(signal); i++ {
		w.Wire.Fill(float64(i)+0.5, float64(signal[i])/scale)
	}

	for _, hit := range e.HitsByTPC()[spec.TPC] {
		if hit.Channel != spec.Channel || hit.RMS == 0 {
			continue
		}
		w.NHits++
		for i := low; i < high; i++ {
			x := float64(i) + 0.5
			if v := gaussian(x, float64(hit.PeakAmp), float64(hit.PeakTime), float64(hit.RMS)); v != 0 {
				w.Hits.Fill(x, v)
			}
		}
	}
	return w, nil
}

// Max is the largest bin content of either curve.
func (w *Waveform) Max() float64 {
	m := 0.0
	for _, h := range []*hbook.H1D{w.Wire, w.Hits} {
		for i := 0; i < h.Len(); i++ {
			if v := h.Value(i); v > m {
				m = v
			}
		}
	}
	return m
}

// SavePNG draws both curves with the y range opened to 1.2 times the
// maximum.
func (w *Waveform) SavePNG(filename string) error {
	p := hplot.New()
	p.Title.Text = fmt.Sprintf("Wire vs Hits on Channel %d", w.Channel)
	p.X.Label.Text = "Time Tick"
	p.Y.Label.Text = "ADC Counts"

	wire := hplot.NewH1D(w.Wire)
	wire.FillColor = nil
	wire.LineStyle.Color = color.RGBA{B: 255, A: 255}
	wire.Infos.Style = hplot.HInfoNone

	hits := hplot.NewH1D(w.Hits)
	hits.FillColor = nil
	hits.LineStyle.Color = color.RGBA{R: 255, A: 255}
	hits.Infos.Style = hplot.HInfoNone

	p.Add(wire, hits)
	p.Legend.Add("Wire ROI", wire)
	p.Legend.Add("Hit Gaussians", hits)
	p.Legend.Top = true
	if m := w.Max(); m > 0 {
		p.Y.Max = 1.2 * m
	}

	if err := p.Save(8*vg.Inch, 6*vg.Inch, filename); err != nil {
		return fmt.Errorf("error saving %s: %w", filename, err)
	}
	return nil
}
