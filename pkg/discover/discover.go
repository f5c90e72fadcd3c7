package discover

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/poedb-scraper/pkg/config"
	"github.com/Sriram-PR/poedb-scraper/pkg/fetch"
	"github.com/Sriram-PR/poedb-scraper/pkg/models"
	"github.com/Sriram-PR/poedb-scraper/pkg/parse"
	"github.com/Sriram-PR/poedb-scraper/pkg/utils"
)

// DiscoveryStats counts the listing entries and why each skipped entry was dropped
type DiscoveryStats struct {
	Matched         int // Elements matching the item selector
	MissingName     int
	MissingHref     int
	OutsidePrefix   int
	FragmentOrQuery int
	SelfLink        int
	DuplicateHref   int
	Accepted        int
}

// Discoverer reads the listing page and produces the set of detail targets
type Discoverer struct {
	fetcher    fetch.PageFetcher
	selectors  config.CompiledSelectors
	baseURL    *url.URL
	listingURL *url.URL
	listing    string // Listing path as configured, for the raw self-link check
	prefix     string
	log        *logrus.Entry

	stats DiscoveryStats
}

// NewDiscoverer creates a Discoverer from a validated configuration
func NewDiscoverer(cfg *config.AppConfig, fetcher fetch.PageFetcher, log *logrus.Entry) (*Discoverer, error) {
	selectors, err := cfg.CompileSelectors()
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base_url: %w", utils.ErrConfigValidation, err)
	}
	listingURL, err := url.Parse(cfg.ListingURL())
	if err != nil {
		return nil, fmt.Errorf("%w: listing URL: %w", utils.ErrConfigValidation, err)
	}
	return &Discoverer{
		fetcher:    fetcher,
		selectors:  selectors,
		baseURL:    base,
		listingURL: listingURL,
		listing:    cfg.ListingPath,
		prefix:     cfg.AllowedPathPrefix,
		log:        log.WithField("component", "discoverer"),
	}, nil
}

// Stats returns the counts from the most recent Discover call
func (d *Discoverer) Stats() DiscoveryStats {
	return d.stats
}

// Discover fetches and parses the listing page and returns its detail targets in first-seen order.
// A fetch or parse failure is returned as-is and is fatal to the run.
// If no element matches the item selector it returns utils.ErrNoItemsFound.
func (d *Discoverer) Discover(ctx context.Context) ([]models.DiscoveryTarget, error) {
	listingURL := d.listingURL.String()
	pageLog := d.log.WithField("url", listingURL)
	pageLog.Info("Fetching listing page")

	raw, err := d.fetcher.Fetch(ctx, listingURL)
	if err != nil {
		return nil, utils.WrapErrorf(err, "fetching listing page %s", listingURL)
	}
	doc, err := parse.ParseHTML(raw)
	if err != nil {
		return nil, utils.WrapErrorf(err, "parsing listing page %s", listingURL)
	}

	return d.extract(doc, pageLog)
}

func (d *Discoverer) extract(doc *parse.Document, pageLog *logrus.Entry) ([]models.DiscoveryTarget, error) {
	d.stats = DiscoveryStats{}

	elements := doc.SelectAllMatcher(d.selectors.Item)
	d.stats.Matched = len(elements)
	if len(elements) == 0 {
		return nil, utils.ErrNoItemsFound
	}
	pageLog.Infof("Found %d total listing elements", len(elements))

	seen := make(map[string]struct{}, len(elements))
	targets := make([]models.DiscoveryTarget, 0, len(elements))

	for _, el := range elements {
		nameEl, ok := el.SelectFirstMatcher(d.selectors.Name)
		if !ok || nameEl.Text() == "" {
			d.stats.MissingName++
			continue
		}
		name := nameEl.Text()

		href, ok := el.Attr("href")
		if !ok || href == "" {
			d.stats.MissingHref++
			continue
		}

		if !strings.HasPrefix(href, d.prefix) {
			d.stats.OutsidePrefix++
			continue
		}
		if strings.ContainsAny(href, "#?") {
			d.stats.FragmentOrQuery++
			continue
		}
		if href == d.listing || parse.SamePage(d.baseURL, href, d.listingURL) {
			d.stats.SelfLink++
			continue
		}
		if _, dup := seen[href]; dup {
			d.stats.DuplicateHref++
			pageLog.Debugf("Duplicate href '%s' dropped (name '%s')", href, name)
			continue
		}
		seen[href] = struct{}{}
		targets = append(targets, models.DiscoveryTarget{Identifier: href, DisplayName: name})
	}
	d.stats.Accepted = len(targets)

	pageLog.WithFields(logrus.Fields{
		"missing_name":      d.stats.MissingName,
		"missing_href":      d.stats.MissingHref,
		"outside_prefix":    d.stats.OutsidePrefix,
		"fragment_or_query": d.stats.FragmentOrQuery,
		"self_link":         d.stats.SelfLink,
		"duplicate_href":    d.stats.DuplicateHref,
	}).Infof("After filtering and deduplication: %d unique items to process", len(targets))

	return targets, nil
}
