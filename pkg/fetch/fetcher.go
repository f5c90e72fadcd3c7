package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/poedb-scraper/pkg/utils"
)

// PageFetcher retrieves the raw body of a page.
// Implementations must be safe for concurrent use by many workers.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// StatusError is returned for non-2xx responses. It unwraps to the matching sentinel
// (ErrNotFound, ErrClientHTTPError, ErrServerHTTPError or ErrOtherHTTPError).
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
	kind       error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: status %s (%s)", e.kind, e.Status, e.URL)
}

func (e *StatusError) Unwrap() error { return e.kind }

func newStatusError(url string, resp *http.Response) *StatusError {
	code := resp.StatusCode
	status := resp.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", code, http.StatusText(code))
	}
	var kind error
	switch {
	case code == http.StatusNotFound:
		kind = utils.ErrNotFound
	case code >= 400 && code < 500:
		kind = utils.ErrClientHTTPError
	case code >= 500:
		kind = utils.ErrServerHTTPError
	default:
		kind = utils.ErrOtherHTTPError
	}
	return &StatusError{URL: url, StatusCode: code, Status: status, kind: kind}
}

// StatusCode extracts the HTTP status from err, or 0 if err carries none
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// HTTPFetcher performs a single GET per call and classifies the failure.
// There is no retry: a failed page is reported once and the run moves on.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64 // 0 = unlimited
	log       *logrus.Entry
}

// NewHTTPFetcher creates a new HTTPFetcher instance
func NewHTTPFetcher(client *http.Client, userAgent string, maxBytes int64, log *logrus.Entry) *HTTPFetcher {
	return &HTTPFetcher{
		client:    client,
		userAgent: userAgent,
		maxBytes:  maxBytes,
		log:       log.WithField("component", "fetcher"),
	}
}

// Fetch GETs url and returns its body as text.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	reqLog := f.log.WithField("url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", utils.ErrRequestCreation, url, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		if utils.IsTimeout(err) {
			reqLog.Debugf("Request timed out: %v", err)
			return "", fmt.Errorf("%w: %s: %w", utils.ErrTimeout, url, err)
		}
		reqLog.Debugf("Network error: %v", err)
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a bounded amount so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		statusErr := newStatusError(url, resp)
		reqLog.WithField("status_code", resp.StatusCode).Debug("Non-2xx response")
		return "", statusErr
	}

	var reader io.Reader = resp.Body
	if f.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		if utils.IsTimeout(err) {
			return "", fmt.Errorf("%w: reading body of %s: %w", utils.ErrTimeout, url, err)
		}
		return "", fmt.Errorf("%w: %s: %w", utils.ErrResponseBodyRead, url, err)
	}
	if f.maxBytes > 0 && int64(len(body)) > f.maxBytes {
		return "", fmt.Errorf("%w: %s: body exceeds %d bytes", utils.ErrResponseBodyRead, url, f.maxBytes)
	}

	reqLog.WithField("bytes", len(body)).Debug("Successfully fetched")
	return string(body), nil
}
