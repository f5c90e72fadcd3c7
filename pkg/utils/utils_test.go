package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
)

// --- CategorizeError Tests ---

// Each case is shaped like an error the fetcher, processor, writer or ledger actually returns.
func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"Nil", nil, "None"},
		{"DetailPage404", fmt.Errorf("https://poedb.tw/us/Gone: status 404 Not Found (%w)", ErrNotFound), "HTTP_404"},
		{"Forbidden", fmt.Errorf("https://poedb.tw/us/A: status 403 Forbidden (%w)", ErrClientHTTPError), "HTTP_403"},
		{"TooManyRequests", fmt.Errorf("https://poedb.tw/us/A: status 429 Too Many Requests (%w)", ErrClientHTTPError), "HTTP_429"},
		{"Gone410", fmt.Errorf("https://poedb.tw/us/A: status 410 Gone (%w)", ErrClientHTTPError), "HTTP_4xx"},
		{"BadGateway", fmt.Errorf("https://poedb.tw/us/A: status 502 Bad Gateway (%w)", ErrServerHTTPError), "HTTP_5xx"},
		{"ClientTimeout", fmt.Errorf("%w: https://poedb.tw/us/A: %w", ErrTimeout, context.DeadlineExceeded), "Network_Timeout"},
		{"IconMissing", fmt.Errorf("%w: no non-empty cell after 'Icon' on https://poedb.tw/us/A", ErrFieldNotFound), "Content_FieldNotFound"},
		{"EmptyListing", ErrNoItemsFound, "Content_NoItems"},
		{"BadIdentifier", fmt.Errorf("%w: URL: empty identifier", ErrParsing), "Content_ParsingURL"},
		{"BodyTooLarge", fmt.Errorf("%w: https://poedb.tw/us/A: body exceeds 10 bytes", ErrResponseBodyRead), "Network_BodyRead"},
		{"OutputDirPermission", fmt.Errorf("%w: creating output directory 'out': %w", ErrFilesystem, os.ErrPermission), "Filesystem_Permission"},
		{"LedgerClosed", fmt.Errorf("%w: ledger is closed", ErrDatabase), "Database_Other"},
		{"BadDelimiter", fmt.Errorf("%w: delimiter must be exactly one character", ErrConfigValidation), "Config_Validation"},
		{"RunCancelled", fmt.Errorf("fetching listing page https://poedb.tw/us/Unique_item: %w", context.Canceled), "System_ContextCanceled"},
		{"ConnectionRefused", errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), "Network_ConnectionRefused"},
		{"Unrecognised", errors.New("panic: runtime error"), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorizeError(tt.err); got != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}

// --- PathComponent Tests ---

func TestPathComponent(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Host", "poedb.tw", "poedb.tw"},
		{"HostWithPort", "127.0.0.1:8080", "127.0.0.1_8080"},
		{"UpperCase", "PoEDB.TW", "poedb.tw"},
		{"Slashes", "poedb.tw/us/Unique_item", "poedb.tw_us_unique_item"},
		{"RunOfUnsafe", "a<>:b", "a_b"},
		{"Spaces", "  my site  ", "my_site"},
		{"LeadingDot", ".hidden", "hidden"},
		{"NonASCII", "café.example", "caf_.example"},
		{"Empty", "", "default"},
		{"OnlyUnsafe", "<>:", "default"},
		{"ControlChars", "a\x00\x01b", "a_b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PathComponent(tt.input)
			if result != tt.expected {
				t.Errorf("PathComponent(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPathComponent_LongLabel(t *testing.T) {
	result := PathComponent(strings.Repeat("a", 150))
	if len(result) != 64 {
		t.Errorf("PathComponent(long) length = %d, want 64", len(result))
	}
}

// --- WrapErrorf Tests ---

func TestWrapErrorf_NilError(t *testing.T) {
	result := WrapErrorf(nil, "some context")
	if result != nil {
		t.Errorf("WrapErrorf(nil, ...) = %v, want nil", result)
	}
}

func TestWrapErrorf_WrapsError(t *testing.T) {
	original := errors.New("original error")
	wrapped := WrapErrorf(original, "context %s", "value")

	if wrapped == nil {
		t.Fatal("WrapErrorf() returned nil, want error")
	}
	if !errors.Is(wrapped, original) {
		t.Error("WrapErrorf() result should wrap original error")
	}
	expectedMsg := "context value: original error"
	if wrapped.Error() != expectedMsg {
		t.Errorf("WrapErrorf() message = %q, want %q", wrapped.Error(), expectedMsg)
	}
}

func TestIsTimeout(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"Nil", nil, false},
		{"Sentinel", ErrTimeout, true},
		{"WrappedSentinel", fmt.Errorf("fetch: %w", ErrTimeout), true},
		{"DeadlineExceeded", context.DeadlineExceeded, true},
		{"Canceled", context.Canceled, false},
		{"NotFound", ErrNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTimeout(tt.err); got != tt.expected {
				t.Errorf("IsTimeout(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}
