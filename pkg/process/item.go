package process

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"runtime/debug"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/poedb-scraper/pkg/config"
	"github.com/Sriram-PR/poedb-scraper/pkg/fetch"
	"github.com/Sriram-PR/poedb-scraper/pkg/models"
	"github.com/Sriram-PR/poedb-scraper/pkg/parse"
	"github.com/Sriram-PR/poedb-scraper/pkg/utils"
)

// ItemProcessor fetches one detail page and extracts the labelled field.
// It never touches shared state: the caller folds the returned Outcome into counters and the store.
type ItemProcessor struct {
	fetcher fetch.PageFetcher
	baseURL *url.URL
	cells   goquery.Matcher
	label   string
	timeout time.Duration // 0 = rely on the client timeout
	log     *logrus.Entry
}

// NewItemProcessor creates an ItemProcessor from a validated configuration
func NewItemProcessor(cfg *config.AppConfig, fetcher fetch.PageFetcher, log *logrus.Entry) (*ItemProcessor, error) {
	selectors, err := cfg.CompileSelectors()
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base_url: %w", utils.ErrConfigValidation, err)
	}
	return &ItemProcessor{
		fetcher: fetcher,
		baseURL: base,
		cells:   selectors.Cell,
		label:   cfg.FieldLabel,
		timeout: cfg.PerItemTimeout,
		log:     log.WithField("component", "item_processor"),
	}, nil
}

// Process handles a single target and always returns a terminal Outcome.
// Every error, including a panic, is converted so one bad page cannot abort the run.
func (p *ItemProcessor) Process(ctx context.Context, target models.DiscoveryTarget) (outcome models.Outcome) {
	startTime := time.Now()
	taskLog := p.log.WithFields(logrus.Fields{"item": target.DisplayName, "href": target.Identifier})

	defer func() {
		if r := recover(); r != nil {
			outcome = models.Outcome{
				Target: target,
				Kind:   models.OutcomeFailure,
				Err:    fmt.Errorf("panic: %v", r),
			}
			taskLog.WithFields(logrus.Fields{
				"panic_info":  r,
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered in Process")
		}
		outcome.Duration = time.Since(startTime)
	}()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	value, err := p.extract(ctx, target)
	if err != nil {
		kind := Classify(err)
		taskLog.WithFields(logrus.Fields{
			"outcome":     kind,
			"error_type":  utils.CategorizeError(err),
			"status_code": fetch.StatusCode(err),
		}).Debugf("Item failed: %v", err)
		return models.Outcome{Target: target, Kind: kind, Err: err}
	}

	return models.Outcome{
		Target: target,
		Kind:   models.OutcomeSuccess,
		Record: &models.ExtractedRecord{Name: target.DisplayName, Value: value},
	}
}

func (p *ItemProcessor) extract(ctx context.Context, target models.DiscoveryTarget) (string, error) {
	pageURL, err := parse.ResolveTarget(p.baseURL, target.Identifier)
	if err != nil {
		return "", err
	}

	raw, err := p.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return "", err
	}

	doc, err := parse.ParseHTML(raw)
	if err != nil {
		return "", err
	}

	value, ok := FindLabelledValue(doc, p.cells, p.label)
	if !ok {
		return "", fmt.Errorf("%w: no non-empty cell after '%s' on %s", utils.ErrFieldNotFound, p.label, pageURL)
	}
	return value, nil
}

// FindLabelledValue scans cells for one whose trimmed text equals label and returns the
// trimmed text of its next sibling element. Label cells with an empty sibling are skipped
// and the scan continues.
func FindLabelledValue(doc *parse.Document, cells goquery.Matcher, label string) (string, bool) {
	for _, cell := range doc.SelectAllMatcher(cells) {
		if cell.Text() != label {
			continue
		}
		next, ok := cell.NextSibling()
		if !ok {
			continue
		}
		if value := next.Text(); value != "" {
			return value, true
		}
	}
	return "", false
}

// Classify maps a processing error to its terminal outcome kind
func Classify(err error) models.OutcomeKind {
	switch {
	case err == nil:
		return models.OutcomeSuccess
	case errors.Is(err, utils.ErrNotFound):
		return models.OutcomeNotFound
	case utils.IsTimeout(err):
		return models.OutcomeTimeout
	case errors.Is(err, utils.ErrFieldNotFound):
		return models.OutcomeFieldMissing
	default:
		return models.OutcomeFailure
	}
}
