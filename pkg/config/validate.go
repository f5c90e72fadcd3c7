package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/andybalholm/cascadia"

	"github.com/Sriram-PR/poedb-scraper/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// BaseURL
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	base, parseErr := url.Parse(c.BaseURL)
	if parseErr != nil {
		return warnings, fmt.Errorf("%w: invalid base_url '%s': %w", utils.ErrConfigValidation, c.BaseURL, parseErr)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return warnings, fmt.Errorf("%w: base_url '%s' must be an absolute http(s) URL", utils.ErrConfigValidation, c.BaseURL)
	}

	// ListingPath
	if c.ListingPath == "" {
		c.ListingPath = DefaultListingPath
	} else if c.ListingPath[0] != '/' {
		warnings = append(warnings, fmt.Sprintf("listing_path '%s' has no leading slash, prefixing '/'", c.ListingPath))
		c.ListingPath = "/" + c.ListingPath
	}

	// AllowedPathPrefix normalization
	if c.AllowedPathPrefix == "" {
		c.AllowedPathPrefix = DefaultAllowedPathPrefix
	} else if c.AllowedPathPrefix[0] != '/' {
		c.AllowedPathPrefix = "/" + c.AllowedPathPrefix
	}

	// Selectors
	if c.ItemSelector == "" {
		c.ItemSelector = DefaultItemSelector
	}
	if c.NameSelector == "" {
		c.NameSelector = DefaultNameSelector
	}
	if c.CellSelector == "" {
		c.CellSelector = DefaultCellSelector
	}
	if _, compileErr := c.CompileSelectors(); compileErr != nil {
		return warnings, compileErr
	}

	// FieldLabel
	if strings.TrimSpace(c.FieldLabel) == "" {
		c.FieldLabel = DefaultFieldLabel
	}

	// MaxConcurrency
	if c.MaxConcurrency <= 0 {
		warnings = append(warnings, fmt.Sprintf("max_concurrency should be > 0, defaulting to %d", DefaultMaxConcurrency))
		c.MaxConcurrency = DefaultMaxConcurrency
	}

	// ProgressEvery
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = DefaultProgressEvery
	}

	// PerItemTimeout
	if c.PerItemTimeout < 0 {
		warnings = append(warnings, "per_item_timeout cannot be negative, disabling timeout")
		c.PerItemTimeout = 0
	}

	// GlobalTimeout
	if c.GlobalTimeout < 0 {
		warnings = append(warnings, "global_timeout cannot be negative, disabling timeout")
		c.GlobalTimeout = 0
	}

	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}

	// OutputFile
	if c.OutputFile == "" {
		warnings = append(warnings, fmt.Sprintf("output_file is empty, defaulting to '%s'", DefaultOutputFile))
		c.OutputFile = DefaultOutputFile
	}

	// Delimiter
	if c.Delimiter == "" {
		c.Delimiter = DefaultDelimiter
	}
	if utf8.RuneCountInString(c.Delimiter) != 1 || c.Delimiter == "\n" || c.Delimiter == "\r" {
		return warnings, fmt.Errorf("%w: delimiter must be exactly one non-newline character, got %q", utils.ErrConfigValidation, c.Delimiter)
	}

	// StateDir
	if c.StateDir == "" {
		if c.EnableOutcomeLedger {
			warnings = append(warnings, fmt.Sprintf("state_dir is empty, defaulting to '%s'", DefaultStateDir))
		}
		c.StateDir = DefaultStateDir
	}

	// Failure log needs the ledger
	if c.FailureLogFile != "" && !c.EnableOutcomeLedger {
		warnings = append(warnings,
			"'failure_log_file' is set but 'enable_outcome_ledger' is false. Enabling the outcome ledger")
		c.EnableOutcomeLedger = true
	}

	// Metadata YAML filename
	if c.EnableMetadataYAML && c.MetadataYAMLFilename == "" {
		warnings = append(warnings,
			"'enable_metadata_yaml' is true but 'metadata_yaml_filename' is empty. "+
				"Defaulting to '"+DefaultMetadataYAMLFilename+"'")
		c.MetadataYAMLFilename = DefaultMetadataYAMLFilename
	}

	// MaxPageSizeBytes
	if c.MaxPageSizeBytes < 0 {
		warnings = append(warnings, "max_page_size_bytes cannot be negative, setting to default")
		c.MaxPageSizeBytes = 0
	}
	if c.MaxPageSizeBytes == 0 {
		c.MaxPageSizeBytes = DefaultMaxPageSizeBytes
	}

	// HTTPClientSettings defaults
	c.validateHTTPClientSettings()

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
// Idle connection limits follow max_concurrency since every request goes to one host.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 30 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = c.MaxConcurrency
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

// CompiledSelectors holds the matchers used by discovery and extraction
type CompiledSelectors struct {
	Item cascadia.Selector
	Name cascadia.Selector
	Cell cascadia.Selector
}

// CompileSelectors compiles the configured CSS selectors once for reuse across workers.
func (c *AppConfig) CompileSelectors() (CompiledSelectors, error) {
	var out CompiledSelectors
	var err error
	if out.Item, err = cascadia.Compile(c.ItemSelector); err != nil {
		return out, fmt.Errorf("%w: item_selector '%s' does not compile: %w", utils.ErrConfigValidation, c.ItemSelector, err)
	}
	if out.Name, err = cascadia.Compile(c.NameSelector); err != nil {
		return out, fmt.Errorf("%w: name_selector '%s' does not compile: %w", utils.ErrConfigValidation, c.NameSelector, err)
	}
	if out.Cell, err = cascadia.Compile(c.CellSelector); err != nil {
		return out, fmt.Errorf("%w: cell_selector '%s' does not compile: %w", utils.ErrConfigValidation, c.CellSelector, err)
	}
	return out, nil
}
