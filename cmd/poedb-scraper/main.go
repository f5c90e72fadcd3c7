package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/poedb-scraper/pkg/config"
	"github.com/Sriram-PR/poedb-scraper/pkg/discover"
	"github.com/Sriram-PR/poedb-scraper/pkg/fetch"
	applog "github.com/Sriram-PR/poedb-scraper/pkg/log"
	"github.com/Sriram-PR/poedb-scraper/pkg/models"
	"github.com/Sriram-PR/poedb-scraper/pkg/output"
	"github.com/Sriram-PR/poedb-scraper/pkg/process"
	"github.com/Sriram-PR/poedb-scraper/pkg/scrape"
	"github.com/Sriram-PR/poedb-scraper/pkg/storage"
	"github.com/Sriram-PR/poedb-scraper/pkg/utils"
)

const version = "1.0.0"

// Exit codes
const (
	exitOK          = 0
	exitFailure     = 1 // Config, discovery or setup failure
	exitWriteFailed = 2
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		os.Exit(runScrape(args))
	}

	switch args[0] {
	case "scrape":
		os.Exit(runScrape(args[1:]))
	case "validate":
		runValidate(args[1:])
	case "version":
		fmt.Printf("poedb-scraper %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsageTo(os.Stderr)
		os.Exit(exitFailure)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `poedb-scraper - PoEDB unique item icon scraper

Usage:
  poedb-scraper [command] [options]

Commands:
  scrape      Scrape the unique item listing and write Name;IconPath lines (default)
  validate    Validate configuration file
  version     Show version info

Run 'poedb-scraper <command> -h' for command-specific help.`)
}

// loadConfig loads and parses the config file
func loadConfig(path string) (*config.AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg config.AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// loadConfigOrDefault behaves like loadConfig, except that a missing file at the
// default path yields an empty config so the built-in defaults apply.
func loadConfigOrDefault(path string, explicit bool) (*config.AppConfig, error) {
	cfg, err := loadConfig(path)
	if err != nil && !explicit && errors.Is(err, os.ErrNotExist) {
		return &config.AppConfig{}, nil
	}
	return cfg, err
}

// scrapeFlags holds the command-line overrides for the scrape command
type scrapeFlags struct {
	configFile     string
	configExplicit bool
	concurrency    int
	outputFile     string
	logLevel       string
	ledger         bool
	failureLog     string
	metadata       bool
}

func parseScrapeFlags(args []string, stderr io.Writer) (scrapeFlags, error) {
	var f scrapeFlags
	fs := flag.NewFlagSet("scrape", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configFile, "config", "config.yaml", "Path to config file (built-in defaults if the default path is missing)")
	fs.IntVar(&f.concurrency, "concurrency", 0, "Max detail pages in flight (overrides max_concurrency)")
	fs.StringVar(&f.outputFile, "output", "", "Output file path (overrides output_file)")
	fs.StringVar(&f.logLevel, "loglevel", "info", "Log level (trace, debug, info, warn, error)")
	fs.BoolVar(&f.ledger, "ledger", false, "Record every item outcome in the on-disk ledger")
	fs.StringVar(&f.failureLog, "failure-log", "", "Write failed items to this TSV file (implies -ledger)")
	fs.BoolVar(&f.metadata, "metadata", false, "Write a YAML run summary into state_dir")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: poedb-scraper scrape [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  poedb-scraper\n")
		fmt.Fprintf(stderr, "  poedb-scraper scrape -concurrency 20 -output items.txt\n")
		fmt.Fprintf(stderr, "  poedb-scraper scrape -failure-log failed.tsv\n")
	}

	if err := fs.Parse(args); err != nil {
		return f, err
	}
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == "config" {
			f.configExplicit = true
		}
	})
	return f, nil
}

// applyOverrides copies flag values that were set onto cfg
func (f scrapeFlags) applyOverrides(cfg *config.AppConfig) {
	if f.concurrency != 0 {
		cfg.MaxConcurrency = f.concurrency
	}
	if f.outputFile != "" {
		cfg.OutputFile = f.outputFile
	}
	if f.ledger {
		cfg.EnableOutcomeLedger = true
	}
	if f.failureLog != "" {
		cfg.FailureLogFile = f.failureLog
	}
	if f.metadata {
		cfg.EnableMetadataYAML = true
	}
}

// runScrape handles the scrape command and returns the process exit code
func runScrape(args []string) int {
	flags, err := parseScrapeFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitFailure
	}

	logger, levelErr := applog.New(flags.logLevel, os.Stderr)
	if levelErr != nil {
		logger.Warn(levelErr)
	}

	logger.Infof("Loading configuration from %s", flags.configFile)
	appCfg, err := loadConfigOrDefault(flags.configFile, flags.configExplicit)
	if err != nil {
		logger.Errorf("Config error: %v", err)
		return exitFailure
	}
	flags.applyOverrides(appCfg)

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		logger.Warn(w)
	}
	if err != nil {
		logger.Errorf("Configuration error: %v", err)
		return exitFailure
	}
	logAppConfig(appCfg, logger)

	// ===========================================================
	// == Setup Global Context & Signal Handling ==
	// ===========================================================
	var runCtx context.Context
	var cancelRun context.CancelFunc
	if appCfg.GlobalTimeout > 0 {
		logger.Infof("Setting global timeout: %v", appCfg.GlobalTimeout)
		runCtx, cancelRun = context.WithTimeout(context.Background(), appCfg.GlobalTimeout)
	} else {
		runCtx, cancelRun = context.WithCancel(context.Background())
	}
	defer cancelRun()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("PANIC in signal handler: %v", r)
			}
		}()
		sig := <-sigChan
		logger.Warnf("Received signal: %v. Finishing in-flight items, skipping the rest...", sig)
		cancelRun()

		select {
		case sig = <-sigChan:
			logger.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(exitFailure)
		case <-time.After(30 * time.Second):
			logger.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(exitFailure)
		}
	}()
	defer signal.Stop(sigChan)

	return execute(runCtx, appCfg, logger.WithField("run_id", uuid.NewString()))
}

// execute runs one scrape with an already validated config and returns the exit code.
func execute(ctx context.Context, appCfg *config.AppConfig, log *logrus.Entry) int {
	startTime := time.Now()
	log.Info("Initializing components...")

	httpClient := fetch.NewClient(appCfg.HTTPClientSettings, log)
	fetcher := fetch.NewHTTPFetcher(httpClient, appCfg.UserAgent, appCfg.MaxPageSizeBytes, log)

	// --- Outcome ledger (optional) ---
	var ledger storage.OutcomeLedger
	if appCfg.EnableOutcomeLedger {
		badgerLedger, err := storage.NewBadgerLedger(appCfg.StateDir, siteName(appCfg.BaseURL), log)
		if err != nil {
			log.Errorf("Failed to initialize outcome ledger: %v", err)
			return exitFailure
		}
		ledger = badgerLedger
		defer func() {
			if err := ledger.Close(); err != nil {
				log.Warnf("Closing outcome ledger: %v", err)
			}
		}()
		gcCtx, stopGC := context.WithCancel(ctx)
		defer stopGC()
		go ledger.RunGC(gcCtx, 10*time.Minute)
	}

	// --- Discovery ---
	discoverer, err := discover.NewDiscoverer(appCfg, fetcher, log)
	if err != nil {
		log.Errorf("Failed to initialize discoverer: %v", err)
		return exitFailure
	}
	log.Infof("Fetching unique items list from %s", appCfg.ListingURL())
	targets, err := discoverer.Discover(ctx)
	if err != nil {
		if errors.Is(err, utils.ErrNoItemsFound) {
			log.Warn("No unique items found on page")
			return exitOK
		}
		log.WithField("error_type", utils.CategorizeError(err)).Errorf("Discovery failed: %v", err)
		return exitFailure
	}
	stats := discoverer.Stats()
	log.WithFields(logrus.Fields{"matched": stats.Matched, "filtered": stats.Matched - stats.Accepted}).
		Infof("Found %d unique items", len(targets))

	// --- Per-item processing ---
	processor, err := process.NewItemProcessor(appCfg, fetcher, log)
	if err != nil {
		log.Errorf("Failed to initialize item processor: %v", err)
		return exitFailure
	}
	store := storage.NewResultStore(log)
	opts := []scrape.Option{scrape.WithProgressEvery(appCfg.ProgressEvery)}
	if ledger != nil {
		opts = append(opts, scrape.WithRecorder(ledger))
	}
	coordinator := scrape.NewCoordinator(processor, store, appCfg.MaxConcurrency, log, opts...)
	counters := coordinator.Run(ctx, targets)

	scrape.LogSummary(log, counters, store.Len(), coordinator.Elapsed())
	if ctx.Err() != nil {
		log.Warnf("Run interrupted (%v); writing the %d items collected so far", ctx.Err(), store.Len())
	}

	// --- Output ---
	store.Freeze()
	records := store.Snapshot()
	writer := output.NewWriter(appCfg.Delimiter, log)
	if err := writer.Write(records, appCfg.OutputFile); err != nil {
		log.WithField("error_type", utils.CategorizeError(err)).Errorf("Failed to write results: %v", err)
		return exitWriteFailed
	}

	if ledger != nil {
		log.Debugf("Outcome ledger holds %d entries", ledger.Count())
	}
	if ledger != nil && appCfg.FailureLogFile != "" {
		// Uses a fresh context so an interrupted run still reports its failures
		n, err := ledger.WriteFailureLog(context.Background(), appCfg.FailureLogFile)
		if err != nil {
			log.Errorf("Error writing failure log: %v", err)
		} else {
			log.Infof("Wrote %d failed items to %s", n, appCfg.FailureLogFile)
		}
	}

	if appCfg.EnableMetadataYAML {
		meta := models.RunMetadata{
			RunID:          runID(log),
			ListingURL:     appCfg.ListingURL(),
			StartTime:      startTime,
			EndTime:        time.Now(),
			Counters:       counters,
			RecordsWritten: len(records),
			OutputFile:     appCfg.OutputFile,
			Configuration:  appCfg.ToMap(),
		}
		metaPath := filepath.Join(appCfg.StateDir, appCfg.GetEffectiveMetadataYAMLFilename())
		if err := output.WriteRunMetadata(metaPath, meta, log); err != nil {
			log.Errorf("Error writing run metadata: %v", err)
		}
	}

	log.Infof("Done! Results saved to: %s", appCfg.OutputFile)
	return exitOK
}

// runID returns the run_id field attached to log, or a new one
func runID(log *logrus.Entry) string {
	if id, ok := log.Data["run_id"].(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// siteName derives the ledger directory name from the base URL host
func siteName(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return "site"
	}
	return u.Host
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: poedb-scraper validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(exitFailure)
	}

	os.Exit(doValidate(*configFile, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return exitFailure
	}

	fmt.Fprintf(stdout, "OK: listing %s\n", appCfg.ListingURL())
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return exitOK
}

// logAppConfig logs the effective configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Config: Listing:%s, MaxConcurrency:%d, PerItemTimeout:%v, GlobalTimeout:%v",
		appCfg.ListingURL(), appCfg.MaxConcurrency, appCfg.PerItemTimeout, appCfg.GlobalTimeout)
	log.Infof("Config Selectors: Item:'%s', Name:'%s', Cell:'%s', Label:'%s', Prefix:'%s'",
		appCfg.ItemSelector, appCfg.NameSelector, appCfg.CellSelector, appCfg.FieldLabel, appCfg.AllowedPathPrefix)
	log.Infof("Config Output: File:%s, Delimiter:%q, Ledger:%t, FailureLog:'%s', MetadataYAML:%t",
		appCfg.OutputFile, appCfg.Delimiter, appCfg.EnableOutcomeLedger, appCfg.FailureLogFile, appCfg.EnableMetadataYAML)
	log.Infof("Config HTTP Client: Timeout:%v, MaxIdle:%d, MaxIdlePerHost:%d, IdleTimeout:%v, TLSTimeout:%v, DialerTimeout:%v",
		appCfg.HTTPClientSettings.Timeout, appCfg.HTTPClientSettings.MaxIdleConns, appCfg.HTTPClientSettings.MaxIdleConnsPerHost,
		appCfg.HTTPClientSettings.IdleConnTimeout, appCfg.HTTPClientSettings.TLSHandshakeTimeout, appCfg.HTTPClientSettings.DialerTimeout)
}
