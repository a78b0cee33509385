package hittuning

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AnalysisOptions configures the event loop run over the flat hit tree that
// the lar job writes through TFileService.
type AnalysisOptions struct {
	TreeName   string
	ChannelMap *ChannelMap
	Summary    SummarySink
	Loop       EventLoopOptions
	// Write the waveform overlay as a PNG next to the histogram file.
	WaveformPNG bool
}

// AnalyzeFiles runs the MC or data event loop over files and writes the
// histograms to histFile.
func AnalyzeFiles(ctx context.Context, files []string, histFile string, mc bool, waveform WaveformSpec, opts AnalysisOptions) (*Analyzer, error) {
	analyzer := NewAnalyzer(AnalyzerOptions{
		MC:         mc,
		ChannelMap: opts.ChannelMap,
		Waveform:   waveform,
		Summary:    opts.Summary,
	})
	if err := RunEventLoop(ctx, files, TreeOpener(opts.TreeName), opts.Loop, analyzer); err != nil {
		return analyzer, err
	}
	if err := WriteHistograms(histFile, analyzer.Directories()); err != nil {
		return analyzer, err
	}
	if w := analyzer.Waveform(); w != nil && opts.WaveformPNG {
		png := strings.TrimSuffix(histFile, ".root") + "_waveform.png"
		if err := w.SavePNG(png); err != nil {
			logger.Error(err.Error())
		}
	}
	return analyzer, nil
}

// GridJobOptions describes one grid job: one parameter set on one input.
type GridJobOptions struct {
	JobNum     int
	FCLFile    string
	InputFile  string
	WorkDir    string
	AnaFile    string
	Lar        Lar
	LarOptions []string
	Waveform   WaveformSpec
	Analysis   AnalysisOptions
}

type GridJobResult struct {
	RunID      int64
	DBFile     string
	OutputFile string
	HistFile   string
	Results    Results
}

// Stage of a grid job that failed.
type JobStage int

const (
	StageSetup JobStage = iota
	StageLar
	StageAnalysis
)

// ErrJobStage reports which stage of a grid job failed.
type ErrJobStage struct {
	Stage JobStage
	Err   error
}

func (e *ErrJobStage) Error() string {
	return e.Err.Error()
}

func (e *ErrJobStage) Unwrap() error { return e.Err }

// RunGridJob records the parameter set in a per-job database, runs lar and
// the MC event loop, then stores the histogram file name and the ratios.
func RunGridJob(ctx context.Context, opts GridJobOptions) (res *GridJobResult, err error) {
	res = &GridJobResult{
		DBFile:     filepath.Join(opts.WorkDir, fmt.Sprintf("hitTuning_%d.db", opts.JobNum)),
		OutputFile: filepath.Join(opts.WorkDir, fmt.Sprintf("output_%d.root", opts.JobNum)),
		HistFile:   filepath.Join(opts.WorkDir, fmt.Sprintf("hist_output_%d.root", opts.JobNum)),
	}
	stageErr := func(stage JobStage, err error) error {
		return &ErrJobStage{Stage: stage, Err: err}
	}

	db, err := OpenResultsDB(res.DBFile)
	if err != nil {
		return res, stageErr(StageSetup, err)
	}
	defer func() {
		err = errors.Join(err, db.Close())
	}()

	params, err := ParseFCL(opts.FCLFile)
	if err != nil {
		return res, stageErr(StageSetup, err)
	}
	res.RunID, err = db.AddRun(params, opts.JobNum, opts.FCLFile, "", "", "")
	if err != nil {
		return res, stageErr(StageSetup, err)
	}

	if err := opts.Lar.Run(ctx, opts.FCLFile, opts.InputFile, res.OutputFile, opts.LarOptions); err != nil {
		return res, stageErr(StageLar, err)
	}
	if err := db.UpdateOutputFilename(res.RunID, res.OutputFile); err != nil {
		return res, stageErr(StageLar, err)
	}

	anaFile := opts.AnaFile
	if !filepath.IsAbs(anaFile) {
		anaFile = filepath.Join(opts.WorkDir, anaFile)
	}
	analyzer, err := AnalyzeFiles(ctx, []string{anaFile}, res.HistFile, true, opts.Waveform, opts.Analysis)
	if err != nil {
		return res, stageErr(StageAnalysis, err)
	}
	res.Results = analyzer.Results()
	if err := db.UpdateHistFilename(res.RunID, res.HistFile); err != nil {
		return res, stageErr(StageAnalysis, err)
	}
	if err := db.UpdateResults(res.RunID, res.Results); err != nil {
		return res, stageErr(StageAnalysis, err)
	}
	return res, nil
}

// VersionedNames are the files of one interactive parameter set.
type VersionedNames struct {
	Version int
	FCL     string
	Output  string
	Ana     string
	Hist    string
}

func versionedNames(dir, tag string, v int) VersionedNames {
	return VersionedNames{
		Version: v,
		FCL:     filepath.Join(dir, fmt.Sprintf("hitTuning_%s_%d.fcl", tag, v)),
		Output:  filepath.Join(dir, fmt.Sprintf("output_%s_%d.root", tag, v)),
		Ana:     filepath.Join(dir, fmt.Sprintf("ana_%s_%d.root", tag, v)),
		Hist:    filepath.Join(dir, fmt.Sprintf("hist_output_%s_%d.root", tag, v)),
	}
}

// NextVersion returns the names of the first version whose FCL file does not
// exist yet.
func NextVersion(dir, tag string) VersionedNames {
	for v := 0; ; v++ {
		names := versionedNames(dir, tag, v)
		if _, err := os.Stat(names.FCL); errors.Is(err, os.ErrNotExist) {
			return names
		}
	}
}

type InteractiveOptions struct {
	MC         bool
	Tag        string
	OutputDir  string
	InputFile  string
	JobNum     int
	DBFile     string
	FCL        FCLOptions
	Lar        Lar
	LarOptions []string
	Waveform   WaveformSpec
	Analysis   AnalysisOptions
}

type InteractiveResult struct {
	Names   VersionedNames
	RunID   int64
	Results Results
	Err     error
}

// RunInteractive processes every parameter set in turn with versioned file
// names. A failing parameter set is logged and the scan moves on.
func RunInteractive(ctx context.Context, grid []FCLParams, opts InteractiveOptions) ([]InteractiveResult, error) {
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating %s: %w", opts.OutputDir, err)
	}
	dbFile := opts.DBFile
	if dbFile == "" {
		dbFile = fmt.Sprintf("hitTuning_%s.db", opts.Tag)
	}
	db, err := OpenResultsDB(dbFile)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	results := make([]InteractiveResult, 0, len(grid))
	for i, params := range grid {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := runParameterSet(ctx, db, params, opts)
		if res.Err != nil {
			logger.Error(fmt.Sprintf("Parameter set %d failed: %v", i, res.Err))
		}
		results = append(results, res)
	}
	return results, nil
}

func runParameterSet(ctx context.Context, db *ResultsDB, params FCLParams, opts InteractiveOptions) (res InteractiveResult) {
	res.Names = NextVersion(opts.OutputDir, opts.Tag)
	res.Results = unsetResults()

	fclOpts := opts.FCL
	fclOpts.MC = opts.MC
	fclOpts.TFileService = res.Names.Ana
	if err := WriteFCL(res.Names.FCL, params, fclOpts); err != nil {
		res.Err = err
		return res
	}

	id, err := db.AddRun(params, opts.JobNum, res.Names.FCL, "", "", "")
	if err != nil {
		res.Err = err
		return res
	}
	res.RunID = id

	if err := opts.Lar.Run(ctx, res.Names.FCL, opts.InputFile, res.Names.Output, opts.LarOptions); err != nil {
		res.Err = err
		return res
	}
	if err := db.UpdateOutputFilename(id, res.Names.Output); err != nil {
		res.Err = err
		return res
	}

	analyzer, err := AnalyzeFiles(ctx, []string{res.Names.Ana}, res.Names.Hist, opts.MC, opts.Waveform, opts.Analysis)
	if err != nil {
		res.Err = err
		return res
	}
	if err := db.UpdateHistFilename(id, res.Names.Hist); err != nil {
		res.Err = err
		return res
	}
	if opts.MC {
		res.Results = analyzer.Results()
		if err := db.UpdateResults(id, res.Results); err != nil {
			res.Err = err
		}
	}
	return res
}
