package fetch

import (
	"fmt"
	"net"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/poedb-scraper/pkg/config"
)

const maxRedirects = 10

// NewClient creates the HTTP client shared by the listing fetch and every detail worker.
// All requests go to one host, so MaxIdleConnsPerHost should be at least max_concurrency
// or most workers will dial a fresh connection per item.
func NewClient(cfg config.HTTPClientConfig, log *logrus.Entry) *http.Client {
	clientLog := log.WithField("component", "http_client")
	clientLog.WithFields(logrus.Fields{
		"timeout":                 cfg.Timeout,
		"max_idle_conns":          cfg.MaxIdleConns,
		"max_idle_conns_per_host": cfg.MaxIdleConnsPerHost,
	}).Debug("Initializing HTTP client")

	dialer := &net.Dialer{
		Timeout:   cfg.DialerTimeout,
		KeepAlive: cfg.DialerKeepAlive,
	}

	transport := &http.Transport{
		Proxy:                  http.ProxyFromEnvironment,
		DialContext:            dialer.DialContext,
		ForceAttemptHTTP2:      true,
		MaxIdleConns:           cfg.MaxIdleConns,
		MaxIdleConnsPerHost:    cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:        0, // Concurrency is capped by the coordinator, not the transport
		IdleConnTimeout:        cfg.IdleConnTimeout,
		TLSHandshakeTimeout:    cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout:  cfg.ExpectContinueTimeout,
		MaxResponseHeaderBytes: 1 << 20,
	}
	if cfg.ForceAttemptHTTP2 != nil {
		transport.ForceAttemptHTTP2 = *cfg.ForceAttemptHTTP2
	}

	return &http.Client{
		Timeout:       cfg.Timeout,
		Transport:     transport,
		CheckRedirect: redirectPolicy(clientLog),
	}
}

// redirectPolicy follows at most maxRedirects hops and only to http(s) targets.
func redirectPolicy(log *logrus.Entry) func(req *http.Request, via []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
			return fmt.Errorf("refusing redirect to %s", req.URL.Redacted())
		}
		log.Debugf("Redirecting: %s -> %s (hop %d)", via[len(via)-1].URL, req.URL, len(via))
		return nil
	}
}
