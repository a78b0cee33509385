package hittuning

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
)

// CommandRunner runs external tools (samweb, jobsub_submit, ifdh, lar).
type CommandRunner interface {
	// Output runs the command and returns its combined stdout and stderr.
	Output(ctx context.Context, env []string, name string, args ...string) (string, error)
}

// ExecRunner runs commands with os/exec. Extra environment entries are
// appended to the current environment. When Stream is set the output is
// copied there as well as captured.
type ExecRunner struct {
	Stream io.Writer
}

func (r ExecRunner) Output(ctx context.Context, env []string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(env) > 0 {
		cmd.Env = append(cmd.Environ(), env...)
	}
	var buf bytes.Buffer
	var out io.Writer = &buf
	if r.Stream != nil {
		out = io.MultiWriter(&buf, r.Stream)
	}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Run(); err != nil {
		return buf.String(), &ErrCommand{Command: append([]string{name}, args...), Output: buf.String(), Err: err}
	}
	return buf.String(), nil
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`&;|<>()*?[]{}!#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, `'`, `'"'"'`) + "'"
}

// CommandLine renders a command for logs and dry runs.
func CommandLine(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, shellQuote(name))
	for _, a := range args {
		parts = append(parts, shellQuote(a))
	}
	return strings.Join(parts, " ")
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
