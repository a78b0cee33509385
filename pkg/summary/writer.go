// Package summary writes the per-event energy summary of the event loop to
// an HDF5 file.
package summary

import (
	"errors"
	"fmt"

	hdf5 "github.com/jmbenlloch/go-hdf5"
	hittuning "github.com/sbn-icarus/hittuning_go/pkg"
)

// Writer implements hittuning.SummarySink.
type Writer struct {
	File          *hdf5.File
	Filename      string
	RunGroup      *hdf5.Group
	AnalysisGroup *hdf5.Group
	EventTable    *hdf5.Dataset
	RunInfoTable  *hdf5.Dataset
	SummaryTable  *hdf5.Dataset
	ResultsTable  *hdf5.Dataset
	EvtCounter    int
	RunCounter    int
	ResultCounter int

	runs map[int32]bool
}

func NewWriter(filename string, compression int) (*Writer, error) {
	hdf5.SetStringLength(STRLEN)

	w := &Writer{Filename: filename, runs: make(map[int32]bool)}
	if err := w.create(compression); err != nil {
		return nil, errors.Join(err, w.Close())
	}

	if hittuning.GetConfiguration().Verbosity > 0 {
		hittuning.GetLogger().Info(fmt.Sprintf("Creating summary file %s", filename), "summary")
	}
	return w, nil
}

func (w *Writer) create(compression int) (err error) {
	if w.File, err = openFile(w.Filename); err != nil {
		return err
	}
	if w.RunGroup, err = createGroup(w.File, "Run"); err != nil {
		return err
	}
	if w.AnalysisGroup, err = createGroup(w.File, "Analysis"); err != nil {
		return err
	}
	if w.EventTable, err = createTable(w.RunGroup, "events", eventHDF5{}, compression); err != nil {
		return err
	}
	if w.RunInfoTable, err = createTable(w.RunGroup, "runInfo", runInfoHDF5{}, compression); err != nil {
		return err
	}
	if w.SummaryTable, err = createTable(w.AnalysisGroup, "summary", eventSummaryHDF5{}, compression); err != nil {
		return err
	}
	w.ResultsTable, err = createTable(w.AnalysisGroup, "results", resultsHDF5{}, compression)
	return err
}

func (w *Writer) WriteEvent(s hittuning.EventSummary) error {
	if !w.runs[s.Run] {
		if err := writeEntryToTable(w.RunInfoTable, runInfoHDF5{run_number: s.Run}, w.RunCounter); err != nil {
			return fmt.Errorf("error writing run info: %w", err)
		}
		w.runs[s.Run] = true
		w.RunCounter++
	}

	if err := writeEntryToTable(w.EventTable, eventHDF5{
		run:        s.Run,
		subrun:     s.SubRun,
		evt_number: s.Event,
	}, w.EvtCounter); err != nil {
		return fmt.Errorf("error writing event table: %w", err)
	}

	if err := writeEntryToTable(w.SummaryTable, eventSummaryHDF5{
		evt_number:   s.Event,
		nhits:        s.NHits,
		hit_energy:   s.HitEnergy,
		ide_energy:   s.IDEEnergy,
		ratio:        s.Ratio,
		total_ratio:  s.TotalRatio,
		maxe_pdg:     s.MaxEPDG,
		maxe_energy:  s.MaxEEnergy,
		maxe_theta:   s.MaxETheta,
		maxe_phi:     s.MaxEPhi,
		species_mask: s.SpeciesMask,
	}, w.EvtCounter); err != nil {
		return fmt.Errorf("error writing summary table: %w", err)
	}
	w.EvtCounter++
	return nil
}

// WriteResults appends the ratio matrix, one row per species.
func (w *Writer) WriteResults(results hittuning.Results) error {
	labels := hittuning.ResultLabels()
	rows := make([]resultsHDF5, len(results))
	for i, r := range results {
		rows[i] = resultsHDF5{
			species: convertToHdf5String(labels[i]),
			all:     r[0],
			plane0:  r[1],
			plane1:  r[2],
			plane2:  r[3],
		}
	}
	if err := writeArrayToTable(w.ResultsTable, &rows, w.ResultCounter); err != nil {
		return fmt.Errorf("error writing results table: %w", err)
	}
	w.ResultCounter += len(rows)
	return nil
}

type closer interface {
	Close() error
}

type resource struct {
	name string
	c    closer
}

// openResources lists what NewWriter has created so far, tables before the
// groups and file holding them. A nil pointer stored in the closer interface
// is not a nil interface, so each field is checked before it is listed.
func (w *Writer) openResources() []resource {
	var resources []resource
	tables := []struct {
		name string
		d    *hdf5.Dataset
	}{
		{"event table", w.EventTable},
		{"run info table", w.RunInfoTable},
		{"summary table", w.SummaryTable},
		{"results table", w.ResultsTable},
	}
	for _, t := range tables {
		if t.d != nil {
			resources = append(resources, resource{t.name, t.d})
		}
	}
	if w.RunGroup != nil {
		resources = append(resources, resource{"run group", w.RunGroup})
	}
	if w.AnalysisGroup != nil {
		resources = append(resources, resource{"analysis group", w.AnalysisGroup})
	}
	if w.File != nil {
		resources = append(resources, resource{"file", w.File})
	}
	return resources
}

func (w *Writer) Close() error {
	if hittuning.GetConfiguration().Verbosity > 0 {
		hittuning.GetLogger().Info(fmt.Sprintf("Closing summary file %s after %d events", w.Filename, w.EvtCounter), "summary")
	}
	var errs []error
	for _, r := range w.openResources() {
		if err := r.c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing %s: %w", r.name, err))
		}
	}
	w.EventTable, w.RunInfoTable, w.SummaryTable, w.ResultsTable = nil, nil, nil, nil
	w.RunGroup, w.AnalysisGroup, w.File = nil, nil, nil
	return errors.Join(errs...)
}
