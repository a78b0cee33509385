package hittuning

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"text/template"

	"github.com/google/uuid"
)

// JobScriptName is the default grid executable. It sets up icaruscode and
// hands over to "hittune job" from the tarball.
const JobScriptName = "hittuneJob.sh"

//go:embed templates/hittuneJob.sh.tmpl
var jobScriptText string

var jobScriptTemplate = template.Must(template.New("jobscript").Parse(jobScriptText))

// SubmitConfig holds the jobsub_submit settings of a parameter scan.
type SubmitConfig struct {
	Binary           string            `json:"binary" yaml:"binary"`
	Group            string            `json:"group" yaml:"group"`
	Memory           string            `json:"memory" yaml:"memory"`
	Disk             string            `json:"disk" yaml:"disk"`
	ExpectedLifetime string            `json:"expected_lifetime" yaml:"expected_lifetime"`
	MaxConcurrent    int               `json:"max_concurrent" yaml:"max_concurrent"`
	NJobs            int               `json:"n_jobs" yaml:"n_jobs"`
	UsageModel       string            `json:"usage_model" yaml:"usage_model"`
	Image            string            `json:"image" yaml:"image"`
	Tarball          string            `json:"tarball" yaml:"tarball"`
	FileList         string            `json:"file_list" yaml:"file_list"`
	OutputDir        string            `json:"output_dir" yaml:"output_dir"`
	Script           string            `json:"script" yaml:"script"`
	// Path of the hittune binary and of its configuration inside the tarball.
	JobBinary        string            `json:"job_binary" yaml:"job_binary"`
	JobConfig        string            `json:"job_config" yaml:"job_config"`
	Setup            string            `json:"setup" yaml:"setup"`
	Release          string            `json:"release" yaml:"release"`
	Qualifiers       string            `json:"qualifiers" yaml:"qualifiers"`
	AnaFile          string            `json:"ana_file" yaml:"ana_file"`
	TreeName         string            `json:"tree_name" yaml:"tree_name"`
	Tag              string            `json:"tag" yaml:"tag"`
	Env              map[string]string `json:"env" yaml:"env"`
	DryRun           bool              `json:"dry_run" yaml:"dry_run"`
}

func DefaultSubmitConfig() SubmitConfig {
	return SubmitConfig{
		Binary:           "jobsub_submit",
		Group:            "icarus",
		Memory:           "2500MB",
		Disk:             "20GB",
		ExpectedLifetime: "8h",
		MaxConcurrent:    500,
		NJobs:            2881,
		UsageModel:       "DEDICATED,OPPORTUNISTIC",
		Image:            "/cvmfs/singularity.opensciencegrid.org/fermilab/fnal-wn-sl7:latest",
		Script:           JobScriptName,
		JobBinary:        "bin/hittune",
		Setup:            "/cvmfs/icarus.opensciencegrid.org/products/icarus/setup_icarus.sh",
		Release:          "v09_37_02_01",
		Qualifiers:       "e20:prof",
		AnaFile:          "hitdump.root",
		TreeName:         "hitdumper/hitdumpertree",
		Tag:              "test",
	}
}

func (c SubmitConfig) validate() error {
	switch {
	case c.NJobs < 1:
		return fmt.Errorf("number of jobs must be positive, got %d", c.NJobs)
	case c.OutputDir == "":
		return fmt.Errorf("output directory is required")
	case c.FileList == "":
		return fmt.Errorf("file list is required")
	case c.Tarball == "":
		return fmt.Errorf("tarball is required")
	case c.Script == "":
		return fmt.Errorf("job script is required")
	case c.JobBinary == "":
		return fmt.Errorf("job binary is required")
	}
	return nil
}

// BuildSubmitArgs returns the jobsub_submit arguments. submissionID is
// exported to the jobs so their outputs can be traced back to a submission.
func BuildSubmitArgs(c SubmitConfig, submissionID string) []string {
	args := []string{
		"-G", c.Group,
		"-N", strconv.Itoa(c.NJobs),
		"--memory=" + c.Memory,
		"--disk=" + c.Disk,
		"--expected-lifetime=" + c.ExpectedLifetime,
		"--resource-provides=usage_model=" + c.UsageModel,
	}
	if c.MaxConcurrent > 0 {
		args = append(args, "--maxConcurrent", strconv.Itoa(c.MaxConcurrent))
	}
	if c.Image != "" {
		args = append(args, "--singularity-image", c.Image)
	}
	args = append(args,
		"--tar_file_name", "dropbox://"+c.Tarball,
		"-f", "dropbox://"+c.FileList,
		"-e", "outputDir="+c.OutputDir,
		"-e", "anaFile="+c.AnaFile,
		"-e", "fileList="+filepath.Base(c.FileList),
		"-e", "treeName="+c.TreeName,
		"-e", "tag="+c.Tag,
	)
	if submissionID != "" {
		args = append(args, "-e", "submissionID="+submissionID)
	}

	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", k+"="+c.Env[k])
	}
	return append(args, "file://"+c.Script)
}

// JobScript renders the grid wrapper that runs "hittune job".
func JobScript(c SubmitConfig) (string, error) {
	var buf bytes.Buffer
	err := jobScriptTemplate.Execute(&buf, struct {
		Setup, Release, Qualifiers, Binary, Config string
	}{c.Setup, c.Release, c.Qualifiers, c.JobBinary, c.JobConfig})
	if err != nil {
		return "", fmt.Errorf("error rendering job script: %w", err)
	}
	return buf.String(), nil
}

// WriteJobScript writes the wrapper to c.Script unless a script is already
// there, so a hand-edited wrapper is submitted as is.
func WriteJobScript(c SubmitConfig) error {
	if _, err := os.Stat(c.Script); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return &ErrOpenFile{Filename: c.Script, Err: err}
	}
	script, err := JobScript(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.Script, []byte(script), 0o755); err != nil {
		return &ErrOpenFile{Filename: c.Script, Err: err}
	}
	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Wrote job script %s", c.Script), "submit")
	}
	return nil
}

// ShardDir is the output subdirectory of a job; jobs are bucketed by
// hundreds so no directory holds more than 100 job outputs.
func ShardDir(base string, jobNum int) string {
	return filepath.Join(base, strconv.Itoa(jobNum/100))
}

// PrepareOutputDirs creates every shard used by nJobs jobs.
func PrepareOutputDirs(base string, nJobs int) ([]string, error) {
	var dirs []string
	for job := 0; job < nJobs; job += 100 {
		dir := ShardDir(base, job)
		if err := os.MkdirAll(dir, 0o775); err != nil {
			return dirs, fmt.Errorf("error creating output directory %s: %w", dir, err)
		}
		dirs = append(dirs, dir)
	}
	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Created %d output directories under %s", len(dirs), base), "submit")
	}
	return dirs, nil
}

var jobIDRegexp = regexp.MustCompile(`\d+\.\d+@[\w.\-]+`)

// ParseJobID extracts the first cluster id (e.g. 123456.0@jobsub01.fnal.gov)
// from the jobsub_submit output.
func ParseJobID(output string) (string, bool) {
	id := jobIDRegexp.FindString(output)
	return id, id != ""
}

type SubmitResult struct {
	SubmissionID string
	JobID        string
	Args         []string
	Output       string
}

// Submit creates the output shards and submits the scan. In dry-run mode the
// command line is written to out and nothing is run.
func Submit(ctx context.Context, c SubmitConfig, runner CommandRunner, out io.Writer) (*SubmitResult, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	res := &SubmitResult{SubmissionID: uuid.NewString()}
	res.Args = BuildSubmitArgs(c, res.SubmissionID)
	binary := c.Binary
	if binary == "" {
		binary = "jobsub_submit"
	}

	if c.DryRun {
		fmt.Fprintln(out, CommandLine(binary, res.Args...))
		return res, nil
	}

	if err := WriteJobScript(c); err != nil {
		return nil, err
	}
	if _, err := PrepareOutputDirs(c.OutputDir, c.NJobs); err != nil {
		return nil, err
	}
	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Submitting %d jobs (submission %s)", c.NJobs, res.SubmissionID), "submit")
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	output, err := runner.Output(ctx, nil, binary, res.Args...)
	res.Output = output
	if err != nil {
		return res, err
	}
	id, ok := ParseJobID(output)
	if !ok {
		return res, fmt.Errorf("no job id in jobsub output: %s", output)
	}
	res.JobID = id
	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Submitted %s", id), "submit")
	}
	return res, nil
}
