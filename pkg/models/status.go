package models

// OutcomeKind is the terminal state of a processed target
type OutcomeKind string

const (
	OutcomeUnset        OutcomeKind = ""              // Zero value = not yet processed
	OutcomeSuccess      OutcomeKind = "success"       // Value extracted and stored
	OutcomeDuplicate    OutcomeKind = "duplicate"     // Value extracted but the name was already stored
	OutcomeNotFound     OutcomeKind = "not_found"     // Detail page returned HTTP 404
	OutcomeTimeout      OutcomeKind = "timeout"       // Request or item deadline exceeded
	OutcomeFieldMissing OutcomeKind = "field_missing" // Page parsed but the labelled cell was absent or empty
	OutcomeFailure      OutcomeKind = "failure"       // Any other error
)

// String implements fmt.Stringer for logging
func (k OutcomeKind) String() string {
	if k == "" {
		return "unset"
	}
	return string(k)
}

// IsValid returns true if the kind is a known terminal value
func (k OutcomeKind) IsValid() bool {
	switch k {
	case OutcomeSuccess, OutcomeDuplicate, OutcomeNotFound, OutcomeTimeout, OutcomeFieldMissing, OutcomeFailure:
		return true
	}
	return false
}

// IsFailure returns true for the kinds that count towards the failed counter
func (k OutcomeKind) IsFailure() bool {
	switch k {
	case OutcomeNotFound, OutcomeTimeout, OutcomeFieldMissing, OutcomeFailure:
		return true
	}
	return false
}

// Mark returns the single-glyph marker used in per-item progress lines
func (k OutcomeKind) Mark() string {
	switch k {
	case OutcomeSuccess:
		return "✓"
	case OutcomeDuplicate:
		return "="
	case OutcomeTimeout:
		return "⏱"
	}
	return "✗"
}
