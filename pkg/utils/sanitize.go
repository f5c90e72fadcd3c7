package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`) // Anything outside a portable directory-name alphabet

const maxPathComponent = 64

// PathComponent turns an arbitrary label, typically a host such as "poedb.tw" or "127.0.0.1:8080",
// into a lowercase directory name. Runs of unsafe characters become one underscore.
func PathComponent(label string) string {
	cleaned := unsafePathChars.ReplaceAllString(strings.ToLower(label), "_")
	cleaned = strings.Trim(cleaned, "_.")

	if len(cleaned) > maxPathComponent {
		cut := maxPathComponent
		for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
			cut--
		}
		cleaned = strings.TrimRight(cleaned[:cut], "_.")
	}

	if cleaned == "" {
		return "default"
	}
	return cleaned
}
