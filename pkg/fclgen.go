package hittuning

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"strings"
	"text/template"
)

//go:embed templates/*.fcl.tmpl
var templateFS embed.FS

// Hit-finder producers, one per TPC, all configured with the same parameters.
var hitFinderProducers = []string{"gaushit2dTPCEE", "gaushit2dTPCEW", "gaushit2dTPCWE", "gaushit2dTPCWW"}

// AnalyzerModule is an extra analyzer appended to the outana path, e.g.
// {Label: "hitdumper", Config: "@local::hitdumper_icarus"}.
type AnalyzerModule struct {
	Label  string
	Config string
}

// ParseAnalyzerModule reads the "label: config" form used in configuration
// files.
func ParseAnalyzerModule(s string) (AnalyzerModule, error) {
	label, config, ok := strings.Cut(s, ":")
	label = strings.TrimSpace(label)
	config = strings.TrimSpace(config)
	if !ok || label == "" || config == "" {
		return AnalyzerModule{}, fmt.Errorf("invalid analyzer module %q, expected \"label: config\"", s)
	}
	return AnalyzerModule{Label: label, Config: config}, nil
}

type FCLOptions struct {
	MC           bool
	Analyzers    []AnalyzerModule
	TFileService string
}

type fclProducer struct {
	Name   string
	Params FCLParams
}

var fclTemplates = template.Must(template.New("fcl").Funcs(template.FuncMap{
	"float":  formatFloat,
	"floats": formatFloatList,
	"ints":   formatIntList,
	"producer": func(p FCLParams, name string) fclProducer {
		return fclProducer{Name: name, Params: p}
	},
	"labels": func(modules []AnalyzerModule) string {
		labels := make([]string, len(modules))
		for i, m := range modules {
			labels[i] = m.Label
		}
		return strings.Join(labels, ", ")
	},
}).ParseFS(templateFS, "templates/*.fcl.tmpl"))

// GenerateFCL renders the stage1 configuration for one parameter set.
func GenerateFCL(params FCLParams, opts FCLOptions) (string, error) {
	name := "stage1_data.fcl.tmpl"
	if opts.MC {
		name = "stage1_mc.fcl.tmpl"
	}
	data := struct {
		Params       FCLParams
		Producers    []string
		Analyzers    []AnalyzerModule
		TFileService string
	}{
		Params:       params,
		Producers:    hitFinderProducers,
		Analyzers:    opts.Analyzers,
		TFileService: opts.TFileService,
	}

	var buf bytes.Buffer
	if err := fclTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("error rendering %s: %w", name, err)
	}
	return buf.String(), nil
}

func WriteFCL(path string, params FCLParams, opts FCLOptions) error {
	text, err := GenerateFCL(params, opts)
	if err != nil {
		return err
	}
	if configuration.Verbosity > 1 {
		logger.Info(fmt.Sprintf("Writing %s with\n%s", path, params), "fcl")
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("error writing fcl %s: %w", path, err)
	}
	return nil
}
