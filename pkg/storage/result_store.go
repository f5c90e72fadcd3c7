package storage

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/poedb-scraper/pkg/models"
)

// ResultStore holds successfully extracted records keyed by name.
// Inserts are insert-if-absent: the first record for a name is kept.
type ResultStore struct {
	mu      sync.RWMutex
	records map[string]models.ExtractedRecord
	frozen  bool
	log     *logrus.Entry
}

// NewResultStore creates an empty store
func NewResultStore(log *logrus.Entry) *ResultStore {
	return &ResultStore{
		records: make(map[string]models.ExtractedRecord),
		log:     log.WithField("component", "result_store"),
	}
}

// PutIfAbsent inserts rec if no record exists for rec.Name.
// Returns false if the name was already present or the store is frozen.
func (s *ResultStore) PutIfAbsent(rec models.ExtractedRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		s.log.WithField("item", rec.Name).Error("Insert rejected: result store is frozen")
		return false
	}
	if _, exists := s.records[rec.Name]; exists {
		return false
	}
	s.records[rec.Name] = rec
	return true
}

// Get returns the record stored for name
func (s *ResultStore) Get(name string) (models.ExtractedRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[name]
	return rec, ok
}

// Len returns the number of stored records
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Snapshot returns a copy of all records in no particular order
func (s *ResultStore) Snapshot() []models.ExtractedRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ExtractedRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out
}

// Freeze makes the store read-only for the write phase
func (s *ResultStore) Freeze() {
	s.mu.Lock()
	s.frozen = true
	s.mu.Unlock()
}
