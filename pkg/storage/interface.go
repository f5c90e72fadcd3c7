package storage

import (
	"context"
	"time"

	"github.com/Sriram-PR/poedb-scraper/pkg/models"
)

// OutcomeRecorder receives the terminal outcome of each target.
// Implementations must be safe for concurrent use.
type OutcomeRecorder interface {
	// RecordOutcome stores the terminal state for a target identifier, replacing any earlier entry
	RecordOutcome(identifier string, entry *models.OutcomeDBEntry) error
}

// OutcomeLedger is the full per-run record of target outcomes
type OutcomeLedger interface {
	OutcomeRecorder

	// CheckOutcome retrieves the recorded kind and entry for an identifier.
	// Returns OutcomeUnset and a nil entry if nothing was recorded.
	CheckOutcome(identifier string) (kind models.OutcomeKind, entry *models.OutcomeDBEntry, err error)

	// Count returns the number of identifiers recorded in this run
	Count() int

	// WriteFailureLog writes every failed target as a tab-separated line to filePath
	WriteFailureLog(ctx context.Context, filePath string) (written int, err error)

	// RunGC runs periodic garbage collection. Should be run in a goroutine
	RunGC(ctx context.Context, interval time.Duration)

	// Close cleanly closes the database connection
	Close() error
}
