package parse

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/Sriram-PR/poedb-scraper/pkg/utils"
)

// ResolveTarget turns a target identifier into an absolute address.
// Identifiers that already carry an http or https scheme are returned unchanged,
// anything else is resolved against base.
func ResolveTarget(base *url.URL, identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", fmt.Errorf("%w: URL: empty target identifier", utils.ErrParsing)
	}
	ref, err := url.Parse(identifier)
	if err != nil {
		return "", fmt.Errorf("%w: URL '%s': %w", utils.ErrParsing, identifier, err)
	}
	if ref.IsAbs() {
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return "", fmt.Errorf("%w: URL '%s': unsupported scheme %q", utils.ErrParsing, identifier, ref.Scheme)
		}
		return identifier, nil
	}
	if base == nil {
		return "", fmt.Errorf("%w: URL '%s': relative identifier without base", utils.ErrParsing, identifier)
	}
	return base.ResolveReference(ref).String(), nil
}

// NormalizeURL standardizes a URL for equality checks.
// Scheme and host are lowercased, default ports dropped, a trailing slash removed
// (root stays "/"), and the query and fragment cleared. Path case is preserved.
// Does not modify the input.
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	if host, port, err := net.SplitHostPort(normalized.Host); err == nil {
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	if normalized.Path == "" {
		normalized.Path = "/"
	} else if len(normalized.Path) > 1 && strings.HasSuffix(normalized.Path, "/") {
		normalized.Path = strings.TrimSuffix(normalized.Path, "/")
	}

	normalized.Fragment = ""
	normalized.RawFragment = ""
	normalized.RawQuery = ""
	normalized.ForceQuery = false

	return normalized.String()
}

// SamePage reports whether identifier, resolved against base, addresses the same page as page.
func SamePage(base *url.URL, identifier string, page *url.URL) bool {
	resolved, err := ResolveTarget(base, identifier)
	if err != nil {
		return false
	}
	u, err := url.Parse(resolved)
	if err != nil {
		return false
	}
	return NormalizeURL(u) == NormalizeURL(page)
}
