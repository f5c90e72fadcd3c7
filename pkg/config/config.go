package config

import (
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL              = "https://poedb.tw"
	DefaultListingPath          = "/us/Unique_item"
	DefaultItemSelector         = "a.uniqueitem"
	DefaultNameSelector         = "span.uniqueName"
	DefaultAllowedPathPrefix    = "/us/"
	DefaultFieldLabel           = "Icon"
	DefaultCellSelector         = "td"
	DefaultMaxConcurrency       = 50
	DefaultProgressEvery        = 50
	DefaultOutputFile           = "unique_items_output.txt"
	DefaultDelimiter            = ";"
	DefaultStateDir             = "./scraper_state"
	DefaultMetadataYAMLFilename = "run_metadata.yaml"
	DefaultMaxPageSizeBytes     = 10 * 1024 * 1024
	DefaultUserAgent            = "poedb-scraper/1.0 (+https://github.com/Sriram-PR/poedb-scraper)"
)

// AppConfig holds the global application configuration
type AppConfig struct {
	BaseURL              string           `yaml:"base_url"`
	ListingPath          string           `yaml:"listing_path"`
	ItemSelector         string           `yaml:"item_selector"`
	NameSelector         string           `yaml:"name_selector"`
	AllowedPathPrefix    string           `yaml:"allowed_path_prefix"`
	FieldLabel           string           `yaml:"field_label"`
	CellSelector         string           `yaml:"cell_selector"`
	MaxConcurrency       int              `yaml:"max_concurrency"`
	ProgressEvery        int              `yaml:"progress_every,omitempty"`
	PerItemTimeout       time.Duration    `yaml:"per_item_timeout,omitempty"` // Deadline for one detail page (0 = client timeout only)
	GlobalTimeout        time.Duration    `yaml:"global_timeout,omitempty"`
	UserAgent            string           `yaml:"user_agent,omitempty"`
	OutputFile           string           `yaml:"output_file"`
	Delimiter            string           `yaml:"delimiter"`
	StateDir             string           `yaml:"state_dir"`
	EnableOutcomeLedger  bool             `yaml:"enable_outcome_ledger,omitempty"`
	FailureLogFile       string           `yaml:"failure_log_file,omitempty"` // Requires the outcome ledger
	EnableMetadataYAML   bool             `yaml:"enable_metadata_yaml,omitempty"`
	MetadataYAMLFilename string           `yaml:"metadata_yaml_filename,omitempty"`
	MaxPageSizeBytes     int64            `yaml:"max_page_size_bytes,omitempty"`
	HTTPClientSettings   HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// Default returns the poedb.tw configuration used when no config file is present.
// Validate is applied so the result is ready to use.
func Default() AppConfig {
	cfg := AppConfig{}
	_, _ = cfg.Validate()
	return cfg
}

// ListingURL returns the absolute address of the listing page.
// Only valid after Validate has succeeded.
func (c *AppConfig) ListingURL() string {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return strings.TrimRight(c.BaseURL, "/") + c.ListingPath
	}
	ref, err := url.Parse(c.ListingPath)
	if err != nil {
		return strings.TrimRight(c.BaseURL, "/") + c.ListingPath
	}
	return base.ResolveReference(ref).String()
}

// GetEffectiveMetadataYAMLFilename determines the filename for the YAML metadata.
func (c *AppConfig) GetEffectiveMetadataYAMLFilename() string {
	if c.MetadataYAMLFilename != "" {
		return c.MetadataYAMLFilename
	}
	return DefaultMetadataYAMLFilename
}

// ToMap returns the run-relevant subset of the configuration for metadata output
func (c *AppConfig) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"base_url":            c.BaseURL,
		"listing_path":        c.ListingPath,
		"item_selector":       c.ItemSelector,
		"name_selector":       c.NameSelector,
		"allowed_path_prefix": c.AllowedPathPrefix,
		"field_label":         c.FieldLabel,
		"max_concurrency":     c.MaxConcurrency,
		"per_item_timeout":    c.PerItemTimeout.String(),
		"delimiter":           c.Delimiter,
	}
}
