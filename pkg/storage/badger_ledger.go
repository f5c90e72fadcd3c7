package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/poedb-scraper/pkg/log"
	"github.com/Sriram-PR/poedb-scraper/pkg/models"
	"github.com/Sriram-PR/poedb-scraper/pkg/utils"
)

const (
	itemKeyPrefix = "item:"      // Prefix for target identifier keys in DB
	ledgerDBDir   = "outcome_db" // Subdirectory name within stateDir for Badger DB files
)

// BadgerLedger implements OutcomeLedger using BadgerDB.
// The ledger only describes the current run: it is wiped when opened.
type BadgerLedger struct {
	db       *badger.DB
	log      *logrus.Entry
	keyCount atomic.Int64 // Cached key count for O(1) Count
}

// NewBadgerLedger removes any previous ledger for siteName under stateDir and opens a fresh one
func NewBadgerLedger(stateDir, siteName string, logger *logrus.Entry) (*BadgerLedger, error) {
	store := &BadgerLedger{log: logger.WithField("component", "ledger")}

	dbPath := filepath.Join(stateDir, utils.PathComponent(siteName)+"_"+ledgerDBDir)

	if err := os.RemoveAll(dbPath); err != nil {
		// Badger may still be able to open over leftovers
		store.log.Errorf("Failed to remove previous ledger directory %s: %v", dbPath, err)
	}

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create ledger directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	opts := badger.DefaultOptions(dbPath).
		WithLogger(log.NewBadgerLogrusAdapter(logger)).
		WithNumVersionsToKeep(1)

	var err error
	store.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}

	store.log.Infof("Outcome ledger initialized at: %s", dbPath)
	return store, nil
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
func (s *BadgerLedger) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// RecordOutcome implements the OutcomeRecorder interface
func (s *BadgerLedger) RecordOutcome(identifier string, entry *models.OutcomeDBEntry) error {
	if s.db == nil || s.db.IsClosed() {
		return fmt.Errorf("%w: ledger not open", utils.ErrDatabase)
	}
	key := []byte(itemKeyPrefix + identifier)

	entryBytes, errJson := json.Marshal(entry)
	if errJson != nil {
		return fmt.Errorf("%w: failed to marshal OutcomeDBEntry for key '%s': %w", utils.ErrParsing, string(key), errJson)
	}

	isNew := false
	err := s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		isNew = errors.Is(errGet, badger.ErrKeyNotFound)
		return txn.SetEntry(badger.NewEntry(key, entryBytes))
	})
	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error in RecordOutcome: %v", err)
		return fmt.Errorf("%w: failed recording outcome for key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if isNew {
		s.keyCount.Add(1)
	}
	return nil
}

// CheckOutcome implements the OutcomeLedger interface
func (s *BadgerLedger) CheckOutcome(identifier string) (models.OutcomeKind, *models.OutcomeDBEntry, error) {
	var entry *models.OutcomeDBEntry
	key := []byte(itemKeyPrefix + identifier)

	errView := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: failed getting key '%s': %w", utils.ErrDatabase, string(key), errGet)
		}
		return item.Value(func(val []byte) error {
			var decoded models.OutcomeDBEntry
			if errJson := json.Unmarshal(val, &decoded); errJson != nil {
				return fmt.Errorf("%w: decoding OutcomeDBEntry for key '%s': %w", utils.ErrParsing, string(key), errJson)
			}
			entry = &decoded
			return nil
		})
	})
	if errView != nil {
		return models.OutcomeUnset, nil, errView
	}
	if entry == nil {
		return models.OutcomeUnset, nil, nil
	}
	return entry.Status, entry, nil
}

// Count implements the OutcomeLedger interface
func (s *BadgerLedger) Count() int {
	return int(s.keyCount.Load())
}

// WriteFailureLog implements the OutcomeLedger interface.
// Lines are `identifier\tname\tstatus\tcategory` in key order.
func (s *BadgerLedger) WriteFailureLog(ctx context.Context, filePath string) (int, error) {
	file, err := os.Create(filePath)
	if err != nil {
		return 0, fmt.Errorf("%w: create failure log '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	written := 0
	var writeErr error

	iterErr := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(itemKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			identifier := strings.TrimPrefix(string(item.KeyCopy(nil)), itemKeyPrefix)

			var entry models.OutcomeDBEntry
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &entry) }); err != nil {
				s.log.Warnf("Skipping undecodable ledger entry '%s': %v", identifier, err)
				continue
			}
			if !entry.Status.IsFailure() {
				continue
			}

			line := strings.Join([]string{identifier, entry.Name, entry.Status.String(), entry.ErrorType}, "\t")
			if _, err := writer.WriteString(line + "\n"); err != nil && writeErr == nil {
				writeErr = err
			}
			written++
		}
		return nil
	})

	if flushErr := writer.Flush(); flushErr != nil && writeErr == nil {
		writeErr = flushErr
	}
	if iterErr != nil {
		return written, iterErr
	}
	if writeErr != nil {
		return written, fmt.Errorf("%w: writing failure log '%s': %w", utils.ErrFilesystem, filePath, writeErr)
	}

	s.log.Infof("Wrote %d failed targets to %s", written, filePath)
	return written, nil
}

// RunGC runs BadgerDB's garbage collection periodically
func (s *BadgerLedger) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				continue
			}
			var err error
			for err == nil {
				err = s.db.RunValueLogGC(0.5)
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}

		case <-ctx.Done():
			s.log.Debugf("Stopping ledger GC: %v", ctx.Err())
			return
		}
	}
}

// Close implements the OutcomeLedger interface
func (s *BadgerLedger) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		s.log.Errorf("Error closing ledger: %v", err)
		return fmt.Errorf("%w: closing ledger: %w", utils.ErrDatabase, err)
	}
	s.log.Debug("Outcome ledger closed")
	return nil
}

// EntryFromOutcome builds the ledger entry for a terminal outcome
func EntryFromOutcome(o models.Outcome, at time.Time) *models.OutcomeDBEntry {
	entry := &models.OutcomeDBEntry{
		Name:        o.Target.DisplayName,
		Status:      o.Kind,
		LastAttempt: at,
	}
	if o.Record != nil {
		entry.Value = o.Record.Value
	}
	if o.Kind.IsFailure() {
		entry.ErrorType = utils.CategorizeError(o.Err)
		entry.Message = o.Message()
	}
	return entry
}
