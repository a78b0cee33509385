package hittuning

import (
	"context"
	"errors"
	"fmt"
	"path"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/rtree"
)

// EventSource feeds events to the event loops.
type EventSource interface {
	// ForEach calls fn for every event in order and stops at the first error.
	ForEach(ctx context.Context, fn func(*Event) error) error
	Close() error
}

var errStopIteration = errors.New("stop iteration")

// ReadRange selects entries [Skip, Skip+MaxEvents). MaxEvents <= 0 reads to
// the end of the tree.
type ReadRange struct {
	Skip      int
	MaxEvents int
}

func (r ReadRange) bounds(entries int64) (int64, int64) {
	beg := int64(r.Skip)
	if beg > entries {
		beg = entries
	}
	end := entries
	if r.MaxEvents > 0 && beg+int64(r.MaxEvents) < end {
		end = beg + int64(r.MaxEvents)
	}
	return beg, end
}

// TreeReader reads the flat hit tree written by the hit dumper analyzer.
type TreeReader struct {
	filename string
	file     *riofs.File
	tree     rtree.Tree
	rng      ReadRange

	HasTruth bool
	HasWires bool
}

// OpenTreeReader opens treeName (which may include directories, e.g.
// "hitdumper/hitdumpertree") in a ROOT file.
func OpenTreeReader(filename, treeName string, rng ReadRange) (*TreeReader, error) {
	f, err := groot.Open(filename)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}

	obj, err := riofs.Dir(f).Get(treeName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error reading %s from %s: %w", treeName, filename, err)
	}
	tree, ok := obj.(rtree.Tree)
	if !ok {
		f.Close()
		return nil, fmt.Errorf("%s in %s is a %T, not a tree", treeName, filename, obj)
	}

	r := &TreeReader{filename: filename, file: f, tree: tree, rng: rng}
	var probe flatEvent
	r.HasTruth = r.hasGroup(&probe, truthBranches)
	r.HasWires = r.hasGroup(&probe, wireBranches)
	for _, g := range []branchGroup{headerBranches, hitBranches} {
		if !r.hasGroup(&probe, g) {
			f.Close()
			return nil, fmt.Errorf("tree %s in %s is missing %s branches", treeName, filename, g)
		}
	}

	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Opened %s:%s with %d entries (truth: %t, wires: %t)",
			filename, treeName, tree.Entries(), r.HasTruth, r.HasWires), "reader")
	}
	return r, nil
}

func (r *TreeReader) hasGroup(f *flatEvent, g branchGroup) bool {
	for _, b := range f.branches() {
		if b.group == g && r.tree.Branch(b.name) == nil {
			return false
		}
	}
	return true
}

func (r *TreeReader) Entries() int64 {
	return r.tree.Entries()
}

func (r *TreeReader) ForEach(ctx context.Context, fn func(*Event) error) error {
	var buf flatEvent
	var rvars []rtree.ReadVar
	for _, b := range buf.branches() {
		switch {
		case b.group == truthBranches && !r.HasTruth:
			continue
		case b.group == wireBranches && !r.HasWires:
			continue
		}
		rvars = append(rvars, rtree.ReadVar{Name: b.name, Value: b.value})
	}

	beg, end := r.rng.bounds(r.tree.Entries())
	if beg >= end {
		return nil
	}
	reader, err := rtree.NewReader(r.tree, rvars, rtree.WithRange(beg, end))
	if err != nil {
		return fmt.Errorf("error creating reader for %s: %w", r.filename, err)
	}
	defer reader.Close()

	err = reader.Read(func(rctx rtree.RCtx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		event, err := buf.toEvent()
		if err != nil {
			return fmt.Errorf("entry %d: %w", rctx.Entry, err)
		}
		return fn(event)
	})
	if errors.Is(err, errStopIteration) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error reading %s: %w", r.filename, err)
	}
	return nil
}

func (r *TreeReader) Close() error {
	return r.file.Close()
}

// MemorySource serves events held in memory.
type MemorySource struct {
	Events []*Event
}

func (m *MemorySource) ForEach(ctx context.Context, fn func(*Event) error) error {
	for _, e := range m.Events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			if errors.Is(err, errStopIteration) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (m *MemorySource) Close() error {
	return nil
}

// TreeWriter writes events in the flat hit tree layout.
type TreeWriter struct {
	file   *riofs.File
	writer rtree.Writer
	buf    *flatEvent
	n      int
}

// CreateTreeWriter creates filename and a tree named treeName inside it.
// withTruth and withWires select the optional branch groups.
func CreateTreeWriter(filename, treeName string, withTruth, withWires bool) (*TreeWriter, error) {
	f, err := groot.Create(filename)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}

	var dir riofs.Directory = f
	if d := path.Dir(treeName); d != "." {
		dir, err = riofs.Dir(f).Mkdir(d)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("error creating directory %s in %s: %w", d, filename, err)
		}
	}

	buf := &flatEvent{}
	var wvars []rtree.WriteVar
	for _, b := range buf.branches() {
		switch {
		case b.group == truthBranches && !withTruth:
			continue
		case b.group == wireBranches && !withWires:
			continue
		}
		wvars = append(wvars, rtree.WriteVar{Name: b.name, Value: b.value, Count: b.count})
	}

	w, err := rtree.NewWriter(dir, path.Base(treeName), wvars, rtree.WithTitle("flat hit tree"))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating tree %s: %w", treeName, err)
	}
	return &TreeWriter{file: f, writer: w, buf: buf}, nil
}

func (w *TreeWriter) Write(e *Event) error {
	w.buf.fill(e)
	if _, err := w.writer.Write(); err != nil {
		return fmt.Errorf("error writing %s: %w", e, err)
	}
	w.n++
	return nil
}

// Entries is the number of events written so far.
func (w *TreeWriter) Entries() int {
	return w.n
}

func (w *TreeWriter) Close() error {
	return errors.Join(w.writer.Close(), w.file.Close())
}
