package models

import "time"

// DiscoveryTarget is one detail page found on the listing page, to be processed exactly once
type DiscoveryTarget struct {
	Identifier  string // href as found on the listing (site-relative path or absolute URL)
	DisplayName string // Name read from the listing entry
}

// ExtractedRecord is the name/value pair persisted to the output artifact
type ExtractedRecord struct {
	Name  string `yaml:"name" json:"name"`
	Value string `yaml:"value" json:"value"` // Icon path, e.g. Art/2DItems/Rings/RingOfX.png
}

// Outcome is the terminal classification of processing one DiscoveryTarget
type Outcome struct {
	Target   DiscoveryTarget
	Kind     OutcomeKind
	Record   *ExtractedRecord // Set only when Kind is OutcomeSuccess
	Err      error            // Underlying error for failure kinds
	Duration time.Duration
}

// Message returns a short human-readable reason for a non-success outcome.
func (o Outcome) Message() string {
	switch o.Kind {
	case OutcomeSuccess:
		return ""
	case OutcomeDuplicate:
		return "duplicate name"
	case OutcomeNotFound:
		return "404"
	case OutcomeTimeout:
		return "Timeout"
	case OutcomeFieldMissing:
		return "Icon not found"
	}
	if o.Err != nil {
		return o.Err.Error()
	}
	return "unknown failure"
}

// RunCounters is a snapshot of the coordinator's counters
type RunCounters struct {
	TotalDiscovered int64 `yaml:"total_discovered"`
	Processed       int64 `yaml:"processed"`
	Succeeded       int64 `yaml:"succeeded"`
	Failed          int64 `yaml:"failed"`
	Duplicates      int64 `yaml:"duplicates"`        // Successes whose name was already stored
	Skipped         int64 `yaml:"skipped,omitempty"` // Targets never started because the run was cancelled
}

// OutcomeDBEntry stores the terminal state of one target in the outcome ledger
type OutcomeDBEntry struct {
	Name        string      `json:"name"`
	Status      OutcomeKind `json:"status"`
	ErrorType   string      `json:"error_type,omitempty"` // Error category (on failure)
	Message     string      `json:"message,omitempty"`    // Failure message (on failure)
	Value       string      `json:"value,omitempty"`      // Extracted value (on success)
	LastAttempt time.Time   `json:"last_attempt"`
}

// RunMetadata holds the summary of a single scrape run, written as YAML when enabled.
type RunMetadata struct {
	RunID          string                 `yaml:"run_id"`
	ListingURL     string                 `yaml:"listing_url"`
	StartTime      time.Time              `yaml:"start_time"`
	EndTime        time.Time              `yaml:"end_time"`
	Counters       RunCounters            `yaml:"counters"`
	RecordsWritten int                    `yaml:"records_written"`
	OutputFile     string                 `yaml:"output_file"`
	OutputSHA256   string                 `yaml:"output_sha256,omitempty"`
	Configuration  map[string]interface{} `yaml:"configuration,omitempty"` // Flexible dump of AppConfig
}
