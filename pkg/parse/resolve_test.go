package parse

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/poedb-scraper/pkg/utils"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestResolveTarget(t *testing.T) {
	base := mustParse(t, "https://poedb.tw")

	tests := []struct {
		name       string
		identifier string
		expected   string
	}{
		{"site-relative path", "/us/Ring_of_X", "https://poedb.tw/us/Ring_of_X"},
		{"absolute https kept", "https://other.example/us/Ring", "https://other.example/us/Ring"},
		{"absolute http kept", "http://poedb.tw/us/Ring", "http://poedb.tw/us/Ring"},
		{"surrounding whitespace", "  /us/Kaoms_Heart ", "https://poedb.tw/us/Kaoms_Heart"},
		{"escaped characters", "/us/Kaom%27s_Heart", "https://poedb.tw/us/Kaom%27s_Heart"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveTarget(base, tt.identifier)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolveTarget_Errors(t *testing.T) {
	base := mustParse(t, "https://poedb.tw")

	tests := []struct {
		name       string
		base       *url.URL
		identifier string
	}{
		{"empty", base, ""},
		{"unsupported scheme", base, "javascript:void(0)"},
		{"bad escape", base, "/us/%zz"},
		{"no base", nil, "/us/Ring"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveTarget(tt.base, tt.identifier)
			require.Error(t, err)
			assert.ErrorIs(t, err, utils.ErrParsing)
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"HTTPS://PoEDB.tw/us/Unique_item", "https://poedb.tw/us/Unique_item"},
		{"https://poedb.tw:443/us/Unique_item", "https://poedb.tw/us/Unique_item"},
		{"http://poedb.tw:80/us/", "http://poedb.tw/us"},
		{"http://poedb.tw:8080/us", "http://poedb.tw:8080/us"},
		{"https://poedb.tw", "https://poedb.tw/"},
		{"https://poedb.tw/us/Unique_item?lang=en#top", "https://poedb.tw/us/Unique_item"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeURL(mustParse(t, tt.input)))
		})
	}
}

func TestNormalizeURL_NilAndNoMutation(t *testing.T) {
	assert.Equal(t, "", NormalizeURL(nil))

	u := mustParse(t, "HTTPS://PoEDB.tw:443/us/?q=1#f")
	original := *u
	NormalizeURL(u)
	assert.Equal(t, original, *u)
}

func TestSamePage(t *testing.T) {
	base := mustParse(t, "https://poedb.tw")
	listing := mustParse(t, "https://poedb.tw/us/Unique_item")

	assert.True(t, SamePage(base, "/us/Unique_item", listing))
	assert.True(t, SamePage(base, "/us/Unique_item/", listing))
	assert.True(t, SamePage(base, "https://POEDB.tw:443/us/Unique_item", listing))
	assert.False(t, SamePage(base, "/us/Ring_of_X", listing))
	assert.False(t, SamePage(base, "/us/unique_item", listing), "path comparison is case-sensitive")
	assert.False(t, SamePage(base, "", listing))
}
