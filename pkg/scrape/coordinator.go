package scrape

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/poedb-scraper/pkg/models"
	"github.com/Sriram-PR/poedb-scraper/pkg/storage"
)

// Processor turns one target into a terminal Outcome. It must not panic or block forever.
type Processor interface {
	Process(ctx context.Context, target models.DiscoveryTarget) models.Outcome
}

// Coordinator runs a Processor over every target with a fixed cap on in-flight work,
// folding each Outcome into the result store and the run counters.
type Coordinator struct {
	processor     Processor
	store         *storage.ResultStore
	recorder      storage.OutcomeRecorder // Optional ledger, nil when disabled
	limit         int64
	progressEvery int64
	log           *logrus.Entry

	total      atomic.Int64
	processed  atomic.Int64
	succeeded  atomic.Int64
	failed     atomic.Int64
	duplicates atomic.Int64
	skipped    atomic.Int64
	startNanos atomic.Int64 // Phase start as UnixNano, 0 before Run
}

var errMissingRecord = errors.New("success outcome without a record")

// Option configures optional Coordinator behavior
type Option func(*Coordinator)

// WithRecorder sends every terminal outcome to r. Recorder errors are logged and never abort the run.
func WithRecorder(r storage.OutcomeRecorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithProgressEvery sets how many processed items separate two progress lines
func WithProgressEvery(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.progressEvery = int64(n)
		}
	}
}

// NewCoordinator creates a Coordinator. maxConcurrency values below 1 are treated as 1.
func NewCoordinator(processor Processor, store *storage.ResultStore, maxConcurrency int, log *logrus.Entry, opts ...Option) *Coordinator {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	c := &Coordinator{
		processor:     processor,
		store:         store,
		limit:         int64(maxConcurrency),
		progressEvery: 50,
		log:           log.WithField("component", "coordinator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run processes every target and returns the final counters.
// It returns only after each started target has been folded into the counters and store.
// ctx gates only the start of work: once cancelled, targets not yet started are counted as
// skipped, while started ones run to completion bounded by their own per-item and client timeouts.
func (c *Coordinator) Run(ctx context.Context, targets []models.DiscoveryTarget) models.RunCounters {
	c.reset(len(targets))
	c.log.WithFields(logrus.Fields{"targets": len(targets), "max_concurrency": c.limit}).Info("Starting parallel processing")

	sem := semaphore.NewWeighted(c.limit)
	outcomes := make(chan models.Outcome, c.limit)

	// Single collector: store insert, counters and output lines are applied serially
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for o := range outcomes {
			c.apply(o)
		}
	}()

	// In-flight items must not see run cancellation
	workCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i, target := range targets {
		if err := sem.Acquire(ctx, 1); err != nil {
			remaining := int64(len(targets) - i)
			c.skipped.Add(remaining)
			c.log.Warnf("Run cancelled (%v): skipping %d targets not yet started", err, remaining)
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			outcomes <- c.processor.Process(workCtx, target)
		}()
	}

	wg.Wait()
	close(outcomes)
	<-collectorDone

	final := c.Progress()
	c.log.WithFields(logrus.Fields{
		"succeeded":  final.Succeeded,
		"failed":     final.Failed,
		"duplicates": final.Duplicates,
		"skipped":    final.Skipped,
	}).Infof("Completed in %.1f seconds", c.Elapsed().Seconds())
	return final
}

func (c *Coordinator) reset(total int) {
	c.total.Store(int64(total))
	c.processed.Store(0)
	c.succeeded.Store(0)
	c.failed.Store(0)
	c.duplicates.Store(0)
	c.skipped.Store(0)
	c.startNanos.Store(time.Now().UnixNano())
}

// apply folds one outcome in. Only the collector goroutine calls it.
// processed is bumped before the per-kind counter so a concurrent Progress,
// which loads the per-kind counters first, never sees them exceed processed.
func (c *Coordinator) apply(o models.Outcome) {
	if o.Kind == models.OutcomeSuccess {
		switch {
		case o.Record == nil:
			o.Kind = models.OutcomeFailure
			o.Err = errMissingRecord
		case !c.store.PutIfAbsent(*o.Record):
			o.Kind = models.OutcomeDuplicate
		}
	}

	processed := c.processed.Add(1)
	switch {
	case o.Kind == models.OutcomeSuccess:
		c.succeeded.Add(1)
	case o.Kind == models.OutcomeDuplicate:
		c.duplicates.Add(1)
	default:
		c.failed.Add(1)
	}

	if c.recorder != nil {
		if err := c.recorder.RecordOutcome(o.Target.Identifier, storage.EntryFromOutcome(o, time.Now().UTC())); err != nil {
			c.log.WithField("item", o.Target.DisplayName).Warnf("Failed to record outcome: %v", err)
		}
	}

	c.logItem(processed, o)
	if processed%c.progressEvery == 0 {
		c.log.Info(FormatProgressLine(c.Progress(), c.Elapsed()))
	}
}

func (c *Coordinator) logItem(processed int64, o models.Outcome) {
	line := FormatItemLine(processed, c.total.Load(), o)
	itemLog := c.log.WithFields(logrus.Fields{
		"item":     o.Target.DisplayName,
		"duration": o.Duration.Round(time.Millisecond),
	})
	if o.Kind.IsFailure() {
		itemLog.Warn(line)
		return
	}
	itemLog.Info(line)
}

// Progress returns a snapshot of the counters. Safe to call while Run is in progress.
func (c *Coordinator) Progress() models.RunCounters {
	succeeded := c.succeeded.Load()
	failed := c.failed.Load()
	duplicates := c.duplicates.Load()
	return models.RunCounters{
		TotalDiscovered: c.total.Load(),
		Processed:       c.processed.Load(),
		Succeeded:       succeeded,
		Failed:          failed,
		Duplicates:      duplicates,
		Skipped:         c.skipped.Load(),
	}
}

// Elapsed returns the time since the current or last Run began
func (c *Coordinator) Elapsed() time.Duration {
	start := c.startNanos.Load()
	if start == 0 {
		return 0
	}
	return time.Since(time.Unix(0, start))
}
