package hittuning

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Grid job exit codes. Every failure is fatal and reported once.
const (
	ExitOK            = 0
	ExitSection       = 10
	ExitCondorDir     = 15
	ExitOutputDir     = 20
	ExitAnaFile       = 25
	ExitFileList      = 26
	ExitTreeName      = 27
	ExitTarDir        = 28
	ExitSetup         = 30
	ExitInputList     = 35
	ExitFCL           = 40
	ExitAnalysis      = 45
	ExitOutputMissing = 50
	ExitMkdir         = 60
	ExitHistTransfer  = 61
	ExitDBTransfer    = 62
)

// JobError carries the exit code of a failed grid job.
type JobError struct {
	Code int
	Err  error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job failed with code %d: %v", e.Code, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

func jobErrorf(code int, format string, args ...any) *JobError {
	return &JobError{Code: code, Err: fmt.Errorf(format, args...)}
}

// ExitCode maps an error to the job exit code; errors that are not a
// JobError exit with the analysis code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var jobErr *JobError
	if errors.As(err, &jobErr) {
		return jobErr.Code
	}
	return ExitAnalysis
}

// JobEnv is the environment handed to a grid job by jobsub.
type JobEnv struct {
	Section        int
	CondorDirInput string
	OutputDir      string
	AnaFile        string
	FileList       string
	TreeName       string
	TarDir         string
	PythonPath     string
	Tag            string
}

// LoadJobEnv validates the job environment in the order the exit codes are
// numbered.
func LoadJobEnv(getenv func(string) string) (JobEnv, error) {
	var env JobEnv
	section := getenv("JOBSUBJOBSECTION")
	if section == "" {
		return env, jobErrorf(ExitSection, "JOBSUBJOBSECTION is not set")
	}
	n, err := strconv.Atoi(section)
	if err != nil || n < 0 {
		return env, jobErrorf(ExitSection, "invalid JOBSUBJOBSECTION %q", section)
	}
	env.Section = n

	required := []struct {
		name string
		code int
		dst  *string
	}{
		{"CONDOR_DIR_INPUT", ExitCondorDir, &env.CondorDirInput},
		{"outputDir", ExitOutputDir, &env.OutputDir},
		{"anaFile", ExitAnaFile, &env.AnaFile},
		{"fileList", ExitFileList, &env.FileList},
		{"treeName", ExitTreeName, &env.TreeName},
		{"INPUT_TAR_DIR_LOCAL", ExitTarDir, &env.TarDir},
	}
	for _, r := range required {
		*r.dst = getenv(r.name)
		if *r.dst == "" {
			return env, jobErrorf(r.code, "%s is not set", r.name)
		}
	}
	env.PythonPath = getenv("PYTHONPATH")
	env.Tag = getenv("tag")
	return env, nil
}

// ChildEnv is the extra environment of the processes started by the job.
func (e JobEnv) ChildEnv() []string {
	path := e.TarDir
	if e.PythonPath != "" {
		path += ":" + e.PythonPath
	}
	return []string{"PYTHONPATH=" + path}
}

// JobRunner executes one grid job of a parameter scan.
type JobRunner struct {
	Env        JobEnv
	Runner     CommandRunner
	Experiment string
	WorkDir    string
	// Local log file transferred to the output shard on exit.
	LogFile    string
	LarBinary  string
	LarOptions []string
	Waveform   WaveformSpec
	Analysis   AnalysisOptions
}

func (j *JobRunner) ifdh(ctx context.Context, args ...string) error {
	_, err := j.Runner.Output(ctx, j.Env.ChildEnv(), "ifdh", args...)
	return err
}

// InputFile picks line Section mod n of the input list.
func (j *JobRunner) InputFile() (string, error) {
	listPath := filepath.Join(j.Env.CondorDirInput, j.Env.FileList)
	inputs, err := ReadFileList(listPath)
	if err != nil {
		return "", jobErrorf(ExitInputList, "input list %s: %w", listPath, err)
	}
	if len(inputs) == 0 {
		return "", jobErrorf(ExitInputList, "input list %s is empty", listPath)
	}
	return inputs[j.Env.Section%len(inputs)], nil
}

// FCLFile locates hitTuning_<tag>_<section>.fcl in the tarball directory.
// Without a tag any tag matches.
func (j *JobRunner) FCLFile() (string, error) {
	if j.Env.Tag != "" {
		name := filepath.Join(j.Env.TarDir, fmt.Sprintf("hitTuning_%s_%d.fcl", j.Env.Tag, j.Env.Section))
		if _, err := os.Stat(name); err != nil {
			return "", jobErrorf(ExitFCL, "FCL file for job %d: %w", j.Env.Section, err)
		}
		return name, nil
	}
	pattern := fmt.Sprintf("**/hitTuning_*_%d.fcl", j.Env.Section)
	matches, err := doublestar.Glob(os.DirFS(j.Env.TarDir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return "", jobErrorf(ExitFCL, "searching FCL file for job %d: %w", j.Env.Section, err)
	}
	if len(matches) == 0 {
		return "", jobErrorf(ExitFCL, "no FCL file for job %d in %s", j.Env.Section, j.Env.TarDir)
	}
	return filepath.Join(j.Env.TarDir, filepath.FromSlash(matches[0])), nil
}

// Run executes the job. The returned error is a *JobError.
func (j *JobRunner) Run(ctx context.Context) (err error) {
	if j.Runner == nil {
		j.Runner = ExecRunner{}
	}
	shard := ShardDir(j.Env.OutputDir, j.Env.Section)
	defer func() {
		j.transferLog(ctx, shard)
	}()

	logger.Info(fmt.Sprintf("Job %d starting, output shard %s", j.Env.Section, shard), "job")

	if _, err := j.Runner.Output(ctx, nil, "htgettoken", "-a", "htvaultprod.fnal.gov", "-i", j.Experiment); err != nil {
		return &JobError{Code: ExitSetup, Err: fmt.Errorf("token setup: %w", err)}
	}

	input, err := j.InputFile()
	if err != nil {
		return err
	}
	fcl, err := j.FCLFile()
	if err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("Job %d: input %s, FCL %s", j.Env.Section, input, fcl), "job")

	res, err := RunGridJob(ctx, GridJobOptions{
		JobNum:     j.Env.Section,
		FCLFile:    fcl,
		InputFile:  input,
		WorkDir:    j.WorkDir,
		AnaFile:    j.Env.AnaFile,
		Lar:        Lar{Binary: j.LarBinary, Env: j.Env.ChildEnv(), Runner: j.Runner},
		LarOptions: j.LarOptions,
		Waveform:   j.Waveform,
		Analysis:   j.Analysis,
	})
	if err != nil {
		return &JobError{Code: ExitAnalysis, Err: err}
	}

	for _, f := range []string{res.HistFile, res.DBFile} {
		if _, err := os.Stat(f); err != nil {
			return jobErrorf(ExitOutputMissing, "expected output %s: %w", f, err)
		}
	}

	if err := j.ifdh(ctx, "mkdir_p", shard); err != nil {
		return &JobError{Code: ExitMkdir, Err: err}
	}
	if err := j.ifdh(ctx, "cp", "-D", res.HistFile, shard); err != nil {
		return &JobError{Code: ExitHistTransfer, Err: err}
	}
	if err := j.ifdh(ctx, "cp", "-D", res.DBFile, shard); err != nil {
		return &JobError{Code: ExitDBTransfer, Err: err}
	}

	logger.Info(fmt.Sprintf("Job %d done: total ratio %.4f", j.Env.Section, res.Results[0][0]), "job")
	return nil
}

// transferLog copies the job log to the shard; failures are only warned
// about.
func (j *JobRunner) transferLog(ctx context.Context, shard string) {
	if j.LogFile == "" {
		return
	}
	if _, err := os.Stat(j.LogFile); err != nil {
		logger.Error(fmt.Sprintf("Warning: log file %s missing: %v", j.LogFile, err))
		return
	}
	if err := j.ifdh(ctx, "cp", "-D", j.LogFile, shard); err != nil {
		logger.Error(fmt.Sprintf("Warning: log transfer failed: %s", strings.TrimSpace(err.Error())))
	}
}
