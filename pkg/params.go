package hittuning

import (
	"fmt"
	"strconv"
	"strings"
)

const NPlanes = 3

// FCLParams holds the gaushit hit-finder parameters that are scanned. Every
// per-plane parameter is written identically for the four TPC producers.
type FCLParams struct {
	RoiThreshold    [NPlanes]float64 `yaml:"roiThreshold"`
	MinPulseHeight  [NPlanes]float64 `yaml:"minPulseHeight"`
	MinPulseSigma   [NPlanes]float64 `yaml:"minPulseSigma"`
	LongMaxHits     [NPlanes]int     `yaml:"LongMaxHits"`
	LongPulseWidth  [NPlanes]float64 `yaml:"LongPulseWidth"`
	PulseHeightCuts [NPlanes]float64 `yaml:"PulseHeightCuts"`
	PulseWidthCuts  [NPlanes]float64 `yaml:"PulseWidthCuts"`
	PulseRatioCuts  [NPlanes]float64 `yaml:"PulseRatioCuts"`
	MaxMultiHit     int              `yaml:"MaxMultiHit"`
	Chi2NDF         float64          `yaml:"Chi2NDF"`
}

func DefaultParams() FCLParams {
	return FCLParams{
		RoiThreshold:    [NPlanes]float64{5, 5, 5},
		MinPulseHeight:  [NPlanes]float64{2, 2, 2},
		MinPulseSigma:   [NPlanes]float64{1, 1, 1},
		LongMaxHits:     [NPlanes]int{1, 1, 1},
		LongPulseWidth:  [NPlanes]float64{10, 10, 10},
		PulseHeightCuts: [NPlanes]float64{3, 3, 3},
		PulseWidthCuts:  [NPlanes]float64{2, 1.5, 1},
		PulseRatioCuts:  [NPlanes]float64{0.35, 0.4, 0.2},
		MaxMultiHit:     5,
		Chi2NDF:         500,
	}
}

func replicate[T any](v T) [NPlanes]T {
	return [NPlanes]T{v, v, v}
}

func (p FCLParams) String() string {
	var b strings.Builder
	b.WriteString("fclParams:\n")
	fmt.Fprintf(&b, "    roiThreshold: %s\n", formatFloatList(p.RoiThreshold))
	fmt.Fprintf(&b, "    minPulseHeight: %s\n", formatFloatList(p.MinPulseHeight))
	fmt.Fprintf(&b, "    minPulseSigma: %s\n", formatFloatList(p.MinPulseSigma))
	fmt.Fprintf(&b, "    LongMaxHits: %s\n", formatIntList(p.LongMaxHits))
	fmt.Fprintf(&b, "    LongPulseWidth: %s\n", formatFloatList(p.LongPulseWidth))
	fmt.Fprintf(&b, "    PulseHeightCuts: %s\n", formatFloatList(p.PulseHeightCuts))
	fmt.Fprintf(&b, "    PulseWidthCuts: %s\n", formatFloatList(p.PulseWidthCuts))
	fmt.Fprintf(&b, "    PulseRatioCuts: %s\n", formatFloatList(p.PulseRatioCuts))
	fmt.Fprintf(&b, "    MaxMultiHit: %d\n", p.MaxMultiHit)
	fmt.Fprintf(&b, "    Chi2NDF: %s", formatFloat(p.Chi2NDF))
	return b.String()
}

// formatFloat always keeps a decimal point so FHiCL reads the value back as a
// float: 5 -> "5.0", 0.35 -> "0.35".
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func formatFloatList(v [NPlanes]float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = formatFloat(x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatIntList(v [NPlanes]int) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.Itoa(x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
