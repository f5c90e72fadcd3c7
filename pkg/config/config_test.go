package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "https://poedb.tw/us/Unique_item", cfg.ListingURL())
	assert.Equal(t, 50, cfg.MaxConcurrency)
}

func TestListingURL(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		path     string
		expected string
	}{
		{"plain host", "https://poedb.tw", "/us/Unique_item", "https://poedb.tw/us/Unique_item"},
		{"trailing slash", "https://poedb.tw/", "/us/Unique_item", "https://poedb.tw/us/Unique_item"},
		{"port", "http://127.0.0.1:8080", "/us/Unique_item", "http://127.0.0.1:8080/us/Unique_item"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AppConfig{BaseURL: tt.base, ListingPath: tt.path}
			assert.Equal(t, tt.expected, cfg.ListingURL())
		})
	}
}

func TestGetEffectiveMetadataYAMLFilename(t *testing.T) {
	assert.Equal(t, "run_metadata.yaml", (&AppConfig{}).GetEffectiveMetadataYAMLFilename())
	assert.Equal(t, "meta.yaml", (&AppConfig{MetadataYAMLFilename: "meta.yaml"}).GetEffectiveMetadataYAMLFilename())
}

func TestAppConfig_YAMLDecode(t *testing.T) {
	raw := `
base_url: "http://localhost:9000"
listing_path: "/us/Unique_item"
max_concurrency: 10
per_item_timeout: 5s
delimiter: "|"
http_client_settings:
  timeout: 20s
`
	var cfg AppConfig
	require.NoError(t, yaml.Unmarshal([]byte(raw), &cfg))
	_, err := cfg.Validate()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000", cfg.BaseURL)
	assert.Equal(t, 10, cfg.MaxConcurrency)
	assert.Equal(t, "5s", cfg.PerItemTimeout.String())
	assert.Equal(t, "|", cfg.Delimiter)
	assert.Equal(t, "20s", cfg.HTTPClientSettings.Timeout.String())
}

func TestCompileSelectors(t *testing.T) {
	cfg := Default()
	sels, err := cfg.CompileSelectors()
	require.NoError(t, err)
	assert.NotNil(t, sels.Item)
	assert.NotNil(t, sels.Name)
	assert.NotNil(t, sels.Cell)
}

func TestToMap(t *testing.T) {
	cfg := Default()
	m := cfg.ToMap()
	assert.Equal(t, "https://poedb.tw", m["base_url"])
	assert.Equal(t, 50, m["max_concurrency"])
	assert.Equal(t, ";", m["delimiter"])
}
