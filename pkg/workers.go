package hittuning

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// SourceOpener opens one input file as an event source.
type SourceOpener func(filename string) (EventSource, error)

// TreeOpener opens files with TreeReader using the given tree name.
func TreeOpener(treeName string) SourceOpener {
	return func(filename string) (EventSource, error) {
		return OpenTreeReader(filename, treeName, ReadRange{})
	}
}

type EventLoopOptions struct {
	// Events skipped and maximum number of events analyzed over all files.
	Range      ReadRange
	NumWorkers int
}

func readFile(ctx context.Context, id int, filename string, open SourceOpener, events chan<- *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %d recovered from panic reading %s: %v", id, filename, r)
		}
	}()

	src, err := open(filename)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, src.Close())
	}()

	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Worker %d reading %s", id, filename), "eventLoop")
	}
	return src.ForEach(ctx, func(e *Event) error {
		select {
		case events <- e:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func worker(ctx context.Context, id int, jobs <-chan string, open SourceOpener, events chan<- *Event, errs chan<- error) {
	for filename := range jobs {
		if err := readFile(ctx, id, filename, open, events); err != nil {
			errs <- err
		}
	}
}

func sendFilesToWorkers(ctx context.Context, files []string, jobs chan<- string) {
	defer close(jobs)
	for _, f := range files {
		select {
		case jobs <- f:
		case <-ctx.Done():
			return
		}
	}
}

// RunEventLoop reads the input files concurrently and feeds every event to
// the analyzer from a single goroutine. Events that fail are logged and
// dropped; unreadable files are reported in the returned error after the
// remaining files have been processed.
func RunEventLoop(ctx context.Context, files []string, open SourceOpener, opts EventLoopOptions, analyzer *Analyzer) error {
	nWorkers := opts.NumWorkers
	if nWorkers < 1 {
		nWorkers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan string, nWorkers)
	events := make(chan *Event, 100*nWorkers)
	errs := make(chan error, len(files))

	var wg sync.WaitGroup
	for w := 1; w <= nWorkers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			worker(ctx, id, jobs, open, events, errs)
		}(w)
	}
	go sendFilesToWorkers(ctx, files, jobs)
	go func() {
		wg.Wait()
		close(events)
		close(errs)
	}()

	start := time.Now()
	received := 0
	analyzed := 0
	limitReached := false
	for e := range events {
		if limitReached {
			continue
		}
		received++
		if received <= opts.Range.Skip {
			if configuration.Verbosity > 1 {
				logger.Info(fmt.Sprintf("Skipping %s", e), "eventLoop")
			}
			continue
		}
		if configuration.Verbosity > 1 {
			logger.Info(fmt.Sprintf("Processing %s", e), "eventLoop")
		}
		if err := analyzer.ProcessEvent(e); err != nil {
			logger.Error(err.Error())
		}
		analyzed++
		if opts.Range.MaxEvents > 0 && analyzed >= opts.Range.MaxEvents {
			if configuration.Verbosity > 0 {
				logger.Info("Max events reached", "eventLoop")
			}
			limitReached = true
			cancel()
		}
	}

	var fileErrs []error
	for err := range errs {
		if limitReached && errors.Is(err, context.Canceled) {
			continue
		}
		logger.Error(err.Error())
		fileErrs = append(fileErrs, err)
	}

	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Event loop over %d files took %s", len(files), time.Since(start)), "eventLoop")
	}
	analyzer.LogSummary()

	if err := ctx.Err(); err != nil && !limitReached {
		return err
	}
	return errors.Join(fileErrs...)
}
