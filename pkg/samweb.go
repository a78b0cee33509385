package hittuning

import (
	"context"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
)

// SAMWeb queries the data catalog through the samweb client.
type SAMWeb struct {
	Experiment string
	Binary     string
	Runner     CommandRunner
}

func NewSAMWeb(experiment string, runner CommandRunner) *SAMWeb {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &SAMWeb{Experiment: experiment, Binary: "samweb", Runner: runner}
}

func (s *SAMWeb) run(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-e", s.Experiment}, args...)
	if configuration.Verbosity > 1 {
		logger.Info(CommandLine(s.Binary, full...), "samweb")
	}
	return s.Runner.Output(ctx, nil, s.Binary, full...)
}

// ListFiles returns the file names matching a dimensions query.
func (s *SAMWeb) ListFiles(ctx context.Context, dims string) ([]string, error) {
	out, err := s.run(ctx, "list-files", dims)
	if err != nil {
		return nil, fmt.Errorf("error listing files for %q: %w", dims, err)
	}
	files := nonEmptyLines(out)
	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("%d files match %q", len(files), dims), "samweb")
	}
	return files, nil
}

// parseLocation turns "dcache:/pnfs/dir(123@tape)" into "/pnfs/dir".
func parseLocation(loc string) string {
	loc = strings.TrimSpace(loc)
	if i := strings.Index(loc, ":"); i >= 0 && !strings.HasPrefix(loc, "/") {
		loc = loc[i+1:]
	}
	if i := strings.Index(loc, "("); i >= 0 {
		loc = loc[:i]
	}
	return loc
}

// LocateFile returns the full path of the first location of a file.
func (s *SAMWeb) LocateFile(ctx context.Context, name string) (string, error) {
	out, err := s.run(ctx, "locate-file", name)
	if err != nil {
		return "", fmt.Errorf("error locating %s: %w", name, err)
	}
	locations := nonEmptyLines(out)
	if len(locations) == 0 {
		return "", fmt.Errorf("no location for %s", name)
	}
	return path.Join(parseLocation(locations[0]), name), nil
}

// FileAccessURLs returns the access URLs of a file for a schema such as
// "root" or "https".
func (s *SAMWeb) FileAccessURLs(ctx context.Context, name, schema string) ([]string, error) {
	args := []string{"get-file-access-url"}
	if schema != "" {
		args = append(args, "--schema="+schema)
	}
	out, err := s.run(ctx, append(args, name)...)
	if err != nil {
		return nil, fmt.Errorf("error getting access URL of %s: %w", name, err)
	}
	return nonEmptyLines(out), nil
}

// Stage0Dims selects the files of a definition, optionally restricted to a
// data tier and a list of runs.
func Stage0Dims(defname, dataTier string, runs []int) string {
	parts := []string{"defname: " + defname}
	if dataTier != "" {
		parts = append(parts, "data_tier "+dataTier)
	}
	if len(runs) > 0 {
		ids := make([]string, len(runs))
		for i, r := range runs {
			ids[i] = strconv.Itoa(r)
		}
		parts = append(parts, "run_number "+strings.Join(ids, ","))
	}
	return strings.Join(parts, " and ")
}

// EventDims selects the files of a definition holding one event.
func EventDims(defname string, run, event int) string {
	return fmt.Sprintf("defname: %s and run_number %d and first_event <= %d and last_event >= %d",
		defname, run, event, event)
}

// FindEventFile returns the first file containing the event together with
// its xrootd access URL.
func (s *SAMWeb) FindEventFile(ctx context.Context, defname string, run, event int) (string, string, error) {
	files, err := s.ListFiles(ctx, EventDims(defname, run, event))
	if err != nil {
		return "", "", err
	}
	if len(files) == 0 {
		return "", "", fmt.Errorf("no file in %s holds run %d event %d", defname, run, event)
	}
	urls, err := s.FileAccessURLs(ctx, files[0], "root")
	if err != nil {
		return files[0], "", err
	}
	if len(urls) == 0 {
		return files[0], "", fmt.Errorf("no access URL for %s", files[0])
	}
	return files[0], urls[0], nil
}

// WriteFileList writes one entry per line.
func WriteFileList(filename string, entries []string) error {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(filename, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("error writing file list %s: %w", filename, err)
	}
	return nil
}

// ReadFileList reads a file list, ignoring blank lines and # comments.
func ReadFileList(filename string) ([]string, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	var out []string
	for _, line := range nonEmptyLines(string(data)) {
		if !strings.HasPrefix(line, "#") {
			out = append(out, line)
		}
	}
	return out, nil
}
