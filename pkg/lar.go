package hittuning

import (
	"context"
	"fmt"
	"strings"
)

// LarArgs builds the lar arguments. Inputs not ending in .root are treated
// as file lists. Without options every event is processed.
func LarArgs(fcl, input, output string, options []string) []string {
	args := []string{"-c", fcl}
	if strings.HasSuffix(input, ".root") {
		args = append(args, "-s", input)
	} else {
		args = append(args, "--source-list", input)
	}
	args = append(args, "-o", output)
	if len(options) == 0 {
		return append(args, "-n", "-1")
	}
	return append(args, options...)
}

// EventOptions returns the lar options limiting the number of events; n <= 0
// leaves the default of all events.
func EventOptions(n int) []string {
	if n <= 0 {
		return nil
	}
	return []string{"-n", fmt.Sprint(n)}
}

type Lar struct {
	Binary string
	Env    []string
	Runner CommandRunner
}

// Run processes input with fcl and writes the art output to output.
func (l Lar) Run(ctx context.Context, fcl, input, output string, options []string) error {
	binary := l.Binary
	if binary == "" {
		binary = "lar"
	}
	runner := l.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	args := LarArgs(fcl, input, output, options)
	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Running command: %s", CommandLine(binary, args...)), "lar")
	}
	if _, err := runner.Output(ctx, l.Env, binary, args...); err != nil {
		return fmt.Errorf("lar failed on %s: %w", fcl, err)
	}
	return nil
}
