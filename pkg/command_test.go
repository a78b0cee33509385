package hittuning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCall struct {
	env  []string
	name string
	args []string
}

// fakeRunner records every command and answers through respond.
type fakeRunner struct {
	calls   []fakeCall
	respond func(name string, args []string) (string, error)
}

func (r *fakeRunner) Output(_ context.Context, env []string, name string, args ...string) (string, error) {
	r.calls = append(r.calls, fakeCall{env: env, name: name, args: args})
	if r.respond == nil {
		return "", nil
	}
	return r.respond(name, args)
}

func (r *fakeRunner) names() []string {
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.name
		if len(c.args) > 0 {
			out[i] += " " + c.args[0]
		}
	}
	return out
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, "''", shellQuote(""))
	assert.Equal(t, "lar", shellQuote("lar"))
	assert.Equal(t, "'-n 5'", shellQuote("-n 5"))
	assert.Equal(t, `'it'"'"'s'`, shellQuote("it's"))
	assert.Equal(t, "'defname: x and run_number 1'", shellQuote("defname: x and run_number 1"))
}

func TestCommandLine(t *testing.T) {
	assert.Equal(t, "lar -c job.fcl -s 'my file.root'", CommandLine("lar", "-c", "job.fcl", "-s", "my file.root"))
}

func TestNonEmptyLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, nonEmptyLines("\n a \n\n\tb\n"))
	assert.Empty(t, nonEmptyLines("  \n"))
}

func TestExecRunner(t *testing.T) {
	out, err := ExecRunner{}.Output(context.Background(), []string{"HITTUNE_TEST=42"}, "sh", "-c", "echo $HITTUNE_TEST")
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)

	out, err = ExecRunner{}.Output(context.Background(), nil, "sh", "-c", "echo failing; exit 3")
	require.Error(t, err)
	assert.Equal(t, "failing\n", out)
	var cmdErr *ErrCommand
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "sh", cmdErr.Command[0])
	assert.Contains(t, err.Error(), "failing")
}
