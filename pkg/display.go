package hittuning

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/rhist"
	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Display order of the TPCs.
var displayTPCs = []TPC{TPCEE, TPCEW, TPCWE, TPCWW}

type DisplayOptions struct {
	OutputDir string
	Tag       string
	Event     int
	Plane     int
	// Tick range [low, high].
	TimeRange [2]int
	// Channel range; {0, 0} selects the plane bounds of each TPC.
	WireRange [2]int
}

func DefaultDisplayOptions() DisplayOptions {
	return DisplayOptions{
		OutputDir: "eventDisplays",
		Tag:       "test",
		TimeRange: [2]int{0, 5000},
	}
}

// HitEllipse marks one hit on the display: one channel wide, RMS ticks high.
type HitEllipse struct {
	X, Y   float64
	RX, RY float64
}

// TPCDisplay is the channel vs tick view of one TPC.
type TPCDisplay struct {
	TPC      TPC
	Wires    [2]int
	Hist     *hbook.H2D
	Ellipses []HitEllipse
	NHits    int
}

type Display struct {
	Run   int32
	Event int32
	Plane int
	Views []TPCDisplay
	NPart *hbook.H1D
}

// BuildDisplay fills the channel vs tick histograms of every TPC for one
// event. The tick axis is flipped so early ticks are drawn at the top.
func BuildDisplay(e *Event, opts DisplayOptions) (*Display, error) {
	if opts.Plane < 0 || opts.Plane >= NPlanes {
		return nil, fmt.Errorf("invalid plane %d", opts.Plane)
	}
	t0, t1 := opts.TimeRange[0], opts.TimeRange[1]
	if t1 <= t0 {
		return nil, fmt.Errorf("invalid time range [%d, %d]", t0, t1)
	}

	d := &Display{
		Run:   e.Run,
		Event: e.Event,
		Plane: opts.Plane,
		NPart: newH1D("npart", "Number of Hits", 51, -0.5, 50.5),
	}
	hitsByTPC := e.HitsByTPC()
	flip := func(tick float64) float64 { return float64(t0+t1) - tick }

	for _, tpc := range displayTPCs {
		wires := DisplayBounds(opts.Plane, tpc)
		if opts.WireRange != [2]int{0, 0} {
			wires = opts.WireRange
		}
		if wires[1] <= wires[0] {
			return nil, fmt.Errorf("invalid wire range [%d, %d] for %s", wires[0], wires[1], tpc)
		}
		if configuration.Verbosity > 1 {
			logger.Info(fmt.Sprintf("Displaying %s plane %d with wire range %v and time range %v", tpc, opts.Plane, wires, opts.TimeRange), "display")
		}

		view := TPCDisplay{
			TPC:   tpc,
			Wires: wires,
			Hist: newH2D(fmt.Sprintf("h_wire2d%d_%s", e.Event, tpc),
				fmt.Sprintf("Display: Run %d Event %d %s;Channel;Time Ticks", e.Run, e.Event, tpc),
				wires[1]-wires[0], float64(wires[0]), float64(wires[1]),
				t1-t0, float64(t0), float64(t1)),
		}

		for _, roi := range e.ROIs {
			if roi.TPC != tpc || int(roi.Channel) < wires[0] || int(roi.Channel) > wires[1] {
				continue
			}
			for i, adc := range roi.ADC {
				tick := int(roi.Start) + i
				if tick < t0 || tick > t1 {
					continue
				}
				view.Hist.Fill(float64(roi.Channel)+0.5, flip(float64(tick)+0.5), float64(adc))
			}
		}

		hits := hitsByTPC[tpc]
		view.NHits = len(hits)
		for _, h := range hits {
			if int(h.Channel) < wires[0] || int(h.Channel) > wires[1] {
				continue
			}
			mean := float64(h.PeakTime)
			if mean < float64(t0) || mean > float64(t1) {
				continue
			}
			view.Ellipses = append(view.Ellipses, HitEllipse{
				X: float64(h.Channel) + 0.5, Y: flip(mean), RX: 1, RY: float64(h.RMS),
			})
		}
		d.NPart.Fill(float64(len(hits)), 1)
		d.Views = append(d.Views, view)
	}
	return d, nil
}

// FindDisplay reads src until the requested event and builds its display.
func FindDisplay(ctx context.Context, src EventSource, opts DisplayOptions) (*Display, error) {
	var display *Display
	err := src.ForEach(ctx, func(e *Event) error {
		if configuration.Verbosity > 1 {
			logger.Info(fmt.Sprintf("Run %d, event %d", e.Run, e.Event), "display")
		}
		if int(e.Event) != opts.Event {
			return nil
		}
		d, err := BuildDisplay(e, opts)
		if err != nil {
			return err
		}
		display = d
		return errStopIteration
	})
	if err != nil {
		return nil, err
	}
	if display == nil {
		return nil, fmt.Errorf("event %d not found", opts.Event)
	}
	return display, nil
}

// ellipses draws translucent hit ellipses over a plot.
type ellipses struct {
	items []HitEllipse
	color color.Color
}

func (el ellipses) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	const n = 24
	for _, e := range el.items {
		pts := make([]vg.Point, 0, n)
		for i := 0; i < n; i++ {
			a := 2 * math.Pi * float64(i) / n
			pts = append(pts, vg.Point{
				X: trX(e.X + e.RX*math.Cos(a)),
				Y: trY(e.Y + e.RY*math.Sin(a)),
			})
		}
		c.FillPolygon(el.color, c.ClipPolygonXY(pts))
	}
}

func (v TPCDisplay) plot(withHits bool) *hplot.Plot {
	p := hplot.New()
	p.Title.Text = v.Hist.Annotation()["title"].(string)
	p.X.Label.Text = "Channel"
	p.Y.Label.Text = "Time Ticks"
	p.Add(hplot.NewH2D(v.Hist, palette.Heat(64, 1)))
	if withHits {
		p.Add(ellipses{items: v.Ellipses, color: color.NRGBA{R: 255, A: 51}})
	}
	return p
}

// PNGNames returns the colour map and hit overlay image names of a view.
func (d *Display) PNGNames(opts DisplayOptions, v TPCDisplay) (string, string) {
	base := fmt.Sprintf("%s_run%d_evt%d_plane%d_%s.png", opts.Tag, d.Run, d.Event, d.Plane, v.TPC)
	return filepath.Join(opts.OutputDir, "event_"+base), filepath.Join(opts.OutputDir, "eventHits_"+base)
}

// ROOTName is the display histogram file name.
func ROOTName(opts DisplayOptions) string {
	return filepath.Join(opts.OutputDir, fmt.Sprintf("display_%s_evt%d_plane%d.root", opts.Tag, opts.Event, opts.Plane))
}

// Save writes two PNGs per TPC and the ROOT file with the 2D histograms and
// the hit count histogram. It returns the files written.
func (d *Display) Save(opts DisplayOptions) (files []string, err error) {
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating %s: %w", opts.OutputDir, err)
	}

	for _, v := range d.Views {
		wireName, hitsName := d.PNGNames(opts, v)
		if err := v.plot(false).Save(12*vg.Inch, 8*vg.Inch, wireName); err != nil {
			return files, fmt.Errorf("error saving %s: %w", wireName, err)
		}
		if err := v.plot(true).Save(12*vg.Inch, 8*vg.Inch, hitsName); err != nil {
			return files, fmt.Errorf("error saving %s: %w", hitsName, err)
		}
		files = append(files, wireName, hitsName)
	}

	rootName := ROOTName(opts)
	f, err := groot.Create(rootName)
	if err != nil {
		return files, &ErrOpenFile{Filename: rootName, Err: err}
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	for _, v := range d.Views {
		key := fmt.Sprintf("wire_%d_%s", d.Event, v.TPC)
		if err := f.Put(key, rhist.NewH2DFrom(v.Hist)); err != nil {
			return files, fmt.Errorf("error writing %s: %w", key, err)
		}
	}
	if err := f.Put("npart", rhist.NewH1DFrom(d.NPart)); err != nil {
		return files, fmt.Errorf("error writing npart: %w", err)
	}
	files = append(files, rootName)

	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Display of event %d plane %d written to %s", d.Event, d.Plane, opts.OutputDir), "display")
	}
	return files, nil
}
