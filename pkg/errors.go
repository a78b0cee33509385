package hittuning

import (
	"fmt"
	"strings"
)

// ErrOpenFile represents an error when opening a file.
type ErrOpenFile struct {
	Filename string
	Err      error
}

func (e *ErrOpenFile) Error() string {
	return fmt.Sprintf("error opening file %q: %v", e.Filename, e.Err)
}

func (e *ErrOpenFile) Unwrap() error { return e.Err }

// ErrCommand is returned when an external tool exits with an error.
type ErrCommand struct {
	Command []string
	Output  string
	Err     error
}

func (e *ErrCommand) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("command %q failed: %v", strings.Join(e.Command, " "), e.Err)
	}
	return fmt.Sprintf("command %q failed: %v (output: %s)", strings.Join(e.Command, " "), e.Err, out)
}

func (e *ErrCommand) Unwrap() error { return e.Err }

// ErrUnknownColumn is returned when a search filter names a column the runs
// table does not have.
type ErrUnknownColumn struct {
	Column string
}

func (e *ErrUnknownColumn) Error() string {
	return fmt.Sprintf("unknown column %q in runs table", e.Column)
}
