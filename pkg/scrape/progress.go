package scrape

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/poedb-scraper/pkg/models"
)

// FormatItemLine renders the per-item line, e.g. "[12/340] ✓ Headhunter" or "[13/340] ✗ Foo -> 404".
func FormatItemLine(processed, total int64, o models.Outcome) string {
	prefix := fmt.Sprintf("[%d/%d] %s %s", processed, total, o.Kind.Mark(), o.Target.DisplayName)
	if o.Kind == models.OutcomeSuccess {
		return prefix
	}
	return prefix + " -> " + o.Message()
}

// FormatProgressLine renders the periodic progress line
func FormatProgressLine(counters models.RunCounters, elapsed time.Duration) string {
	return fmt.Sprintf(">>> Progress: %d/%d (%d success, %d failed) - Elapsed: %.1fs",
		counters.Processed, counters.TotalDiscovered, counters.Succeeded, counters.Failed, elapsed.Seconds())
}

// LogSummary writes the end-of-run block
func LogSummary(log *logrus.Entry, counters models.RunCounters, stored int, elapsed time.Duration) {
	log.Info("========================================================================")
	log.Info("SCRAPE FINISHED")
	log.Infof("Duration:             %v", elapsed.Round(time.Millisecond))
	log.Infof("Total items processed: %d / %d", counters.Processed, counters.TotalDiscovered)
	log.Infof("Successful:           %d", counters.Succeeded)
	log.Infof("Failed:               %d", counters.Failed)
	if counters.Duplicates > 0 {
		log.Infof("Duplicate names:      %d", counters.Duplicates)
	}
	if counters.Skipped > 0 {
		log.Warnf("Skipped (cancelled):  %d", counters.Skipped)
	}
	log.Infof("Unique items saved:   %d", stored)
	log.Info("========================================================================")
}
