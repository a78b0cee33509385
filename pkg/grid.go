package hittuning

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Candidate is one value of a scanned parameter: a single value used for all
// planes or one value per plane.
type Candidate []float64

func (c *Candidate) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v float64
		if err := node.Decode(&v); err != nil {
			return err
		}
		*c = Candidate{v}
		return nil
	case yaml.SequenceNode:
		var v []float64
		if err := node.Decode(&v); err != nil {
			return err
		}
		*c = Candidate(v)
		return nil
	}
	return fmt.Errorf("line %d: grid candidate must be a number or a list of numbers", node.Line)
}

func (c Candidate) planes() ([NPlanes]float64, error) {
	switch len(c) {
	case 1:
		return replicate(c[0]), nil
	case NPlanes:
		return [NPlanes]float64{c[0], c[1], c[2]}, nil
	}
	return [NPlanes]float64{}, fmt.Errorf("candidate %v must have 1 or %d values", []float64(c), NPlanes)
}

// GridSpec lists the candidates for every scanned parameter.
type GridSpec struct {
	RoiThreshold    []Candidate `yaml:"roiThreshold"`
	MinPulseHeight  []Candidate `yaml:"minPulseHeight"`
	MinPulseSigma   []Candidate `yaml:"minPulseSigma"`
	LongMaxHits     []Candidate `yaml:"LongMaxHits"`
	LongPulseWidth  []Candidate `yaml:"LongPulseWidth"`
	PulseHeightCuts []Candidate `yaml:"PulseHeightCuts"`
	PulseWidthCuts  []Candidate `yaml:"PulseWidthCuts"`
	PulseRatioCuts  []Candidate `yaml:"PulseRatioCuts"`
	MaxMultiHit     []int       `yaml:"MaxMultiHit"`
	Chi2NDF         []float64   `yaml:"Chi2NDF"`
}

func scalars(values ...float64) []Candidate {
	out := make([]Candidate, len(values))
	for i, v := range values {
		out[i] = Candidate{v}
	}
	return out
}

func DefaultGridSpec() GridSpec {
	return GridSpec{
		RoiThreshold:    scalars(6, 5, 4, 3, 2, 1),
		MinPulseHeight:  scalars(2),
		MinPulseSigma:   scalars(1),
		LongMaxHits:     scalars(1, 5, 10, 15),
		LongPulseWidth:  scalars(2, 5, 8),
		PulseHeightCuts: scalars(2, 3),
		PulseWidthCuts:  []Candidate{{2, 1.5, 1}},
		PulseRatioCuts:  []Candidate{{0.35, 0.4, 0.2}},
		MaxMultiHit:     []int{5, 7, 10, 12},
		Chi2NDF:         []float64{500, 1000, 1500, 2000, 2500},
	}
}

// LoadGridSpec reads a YAML grid. Parameters left out of the file keep the
// default parameter value as their only candidate.
func LoadGridSpec(path string) (GridSpec, error) {
	var spec GridSpec
	data, err := os.ReadFile(path)
	if err != nil {
		return spec, &ErrOpenFile{Filename: path, Err: err}
	}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return spec, fmt.Errorf("error parsing grid %s: %w", path, err)
	}
	spec.fillDefaults()
	return spec, nil
}

func (g *GridSpec) fillDefaults() {
	def := DefaultParams()
	fill := func(c *[]Candidate, v [NPlanes]float64) {
		if len(*c) == 0 {
			*c = []Candidate{{v[0], v[1], v[2]}}
		}
	}
	fill(&g.RoiThreshold, def.RoiThreshold)
	fill(&g.MinPulseHeight, def.MinPulseHeight)
	fill(&g.MinPulseSigma, def.MinPulseSigma)
	longMaxHits := [NPlanes]float64{}
	for i, v := range def.LongMaxHits {
		longMaxHits[i] = float64(v)
	}
	fill(&g.LongMaxHits, longMaxHits)
	fill(&g.LongPulseWidth, def.LongPulseWidth)
	fill(&g.PulseHeightCuts, def.PulseHeightCuts)
	fill(&g.PulseWidthCuts, def.PulseWidthCuts)
	fill(&g.PulseRatioCuts, def.PulseRatioCuts)
	if len(g.MaxMultiHit) == 0 {
		g.MaxMultiHit = []int{def.MaxMultiHit}
	}
	if len(g.Chi2NDF) == 0 {
		g.Chi2NDF = []float64{def.Chi2NDF}
	}
}

// Size is the number of combinations, without the optional default entry.
func (g GridSpec) Size() int {
	return len(g.RoiThreshold) * len(g.MinPulseHeight) * len(g.MinPulseSigma) *
		len(g.LongMaxHits) * len(g.LongPulseWidth) * len(g.PulseHeightCuts) *
		len(g.PulseWidthCuts) * len(g.PulseRatioCuts) * len(g.MaxMultiHit) * len(g.Chi2NDF)
}

// resolve expands every candidate of a parameter to per-plane values.
func resolve(name string, candidates []Candidate) ([][NPlanes]float64, error) {
	out := make([][NPlanes]float64, len(candidates))
	for i, c := range candidates {
		v, err := c.planes()
		if err != nil {
			return nil, fmt.Errorf("invalid grid: %s: %w", name, err)
		}
		out[i] = v
	}
	return out, nil
}

func resolveInts(name string, candidates []Candidate) ([][NPlanes]int, error) {
	values, err := resolve(name, candidates)
	if err != nil {
		return nil, err
	}
	out := make([][NPlanes]int, len(values))
	for i, v := range values {
		for j, x := range v {
			if x != math.Trunc(x) {
				return nil, fmt.Errorf("invalid grid: %s: candidate %v is not an integer", name, []float64(candidates[i]))
			}
			out[i][j] = int(x)
		}
	}
	return out, nil
}

// CreateGrid expands the cartesian product of the spec. The last parameter
// (Chi2NDF) varies fastest. With defaultFirst the default parameters are
// prepended.
func CreateGrid(spec GridSpec, defaultFirst bool) ([]FCLParams, error) {
	var rois, mphs, mpss, lpws, phcs, pwcs, prcs [][NPlanes]float64
	params := []struct {
		name       string
		candidates []Candidate
		dst        *[][NPlanes]float64
	}{
		{"roiThreshold", spec.RoiThreshold, &rois},
		{"minPulseHeight", spec.MinPulseHeight, &mphs},
		{"minPulseSigma", spec.MinPulseSigma, &mpss},
		{"LongPulseWidth", spec.LongPulseWidth, &lpws},
		{"PulseHeightCuts", spec.PulseHeightCuts, &phcs},
		{"PulseWidthCuts", spec.PulseWidthCuts, &pwcs},
		{"PulseRatioCuts", spec.PulseRatioCuts, &prcs},
	}
	var err error
	for _, p := range params {
		if *p.dst, err = resolve(p.name, p.candidates); err != nil {
			return nil, err
		}
	}
	lmhs, err := resolveInts("LongMaxHits", spec.LongMaxHits)
	if err != nil {
		return nil, err
	}

	grid := make([]FCLParams, 0, spec.Size()+1)
	if defaultFirst {
		grid = append(grid, DefaultParams())
	}
	for _, roi := range rois {
		for _, mph := range mphs {
			for _, mps := range mpss {
				for _, lmh := range lmhs {
					for _, lpw := range lpws {
						for _, phc := range phcs {
							for _, pwc := range pwcs {
								for _, prc := range prcs {
									for _, mmh := range spec.MaxMultiHit {
										for _, chi := range spec.Chi2NDF {
											grid = append(grid, FCLParams{
												RoiThreshold:    roi,
												MinPulseHeight:  mph,
												MinPulseSigma:   mps,
												LongMaxHits:     lmh,
												LongPulseWidth:  lpw,
												PulseHeightCuts: phc,
												PulseWidthCuts:  pwc,
												PulseRatioCuts:  prc,
												MaxMultiHit:     mmh,
												Chi2NDF:         chi,
											})
										}
									}
								}
							}
						}
					}
				}
			}
		}
	}

	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Created grid with %d parameter combinations", len(grid)), "grid")
	}
	return grid, nil
}

// GridFCLName is the file name of grid entry i.
func GridFCLName(dir, tag string, i int) string {
	return filepath.Join(dir, fmt.Sprintf("hitTuning_%s_%d.fcl", tag, i))
}

// WriteGrid writes one FCL per grid entry into dir and returns the number of
// files written. Debug mode stops after the first two entries.
func WriteGrid(dir, tag string, grid []FCLParams, opts FCLOptions, debug bool) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("error creating %s: %w", dir, err)
	}
	written := 0
	for i, params := range grid {
		if debug && i > 1 {
			break
		}
		if i%100 == 0 {
			logger.Info(fmt.Sprintf("Creating FCL for parameter set %d/%d", i, len(grid)), "grid")
		}
		if err := WriteFCL(GridFCLName(dir, tag, i), params, opts); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}
