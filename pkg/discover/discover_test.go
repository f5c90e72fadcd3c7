package discover

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/poedb-scraper/pkg/config"
	"github.com/Sriram-PR/poedb-scraper/pkg/fetch"
	"github.com/Sriram-PR/poedb-scraper/pkg/models"
	"github.com/Sriram-PR/poedb-scraper/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// stubFetcher serves fixed bodies keyed by URL
type stubFetcher struct {
	pages map[string]string
	err   error
}

func (s *stubFetcher) Fetch(_ context.Context, url string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	body, ok := s.pages[url]
	if !ok {
		return "", utils.ErrNotFound
	}
	return body, nil
}

func newTestDiscoverer(t *testing.T, listingHTML string) *Discoverer {
	t.Helper()
	cfg := config.Default()
	f := &stubFetcher{pages: map[string]string{cfg.ListingURL(): listingHTML}}
	d, err := NewDiscoverer(&cfg, f, testLogger())
	require.NoError(t, err)
	return d
}

func TestDiscover_FiltersSelfAndFragmentLinks(t *testing.T) {
	listing := `<html><body>
<a class="uniqueitem" href="/us/Ring_of_X"><span class="uniqueName">Ring of X</span></a>
<a class="uniqueitem" href="/us/Unique_item"><span class="uniqueName">Unique Items</span></a>
<a class="uniqueitem" href="/us/Ring_of_X#notes"><span class="uniqueName">Ring of X</span></a>
</body></html>`

	d := newTestDiscoverer(t, listing)
	targets, err := d.Discover(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []models.DiscoveryTarget{{Identifier: "/us/Ring_of_X", DisplayName: "Ring of X"}}, targets)

	stats := d.Stats()
	assert.Equal(t, 3, stats.Matched)
	assert.Equal(t, 1, stats.SelfLink)
	assert.Equal(t, 1, stats.FragmentOrQuery)
	assert.Equal(t, 1, stats.Accepted)
}

func TestDiscover_Filters(t *testing.T) {
	listing := `<html><body>
<a class="uniqueitem" href="/us/Headhunter"><span class="uniqueName"> Headhunter </span></a>
<a class="uniqueitem" href="/us/Missing_Name"><span class="other">nope</span></a>
<a class="uniqueitem" href="/us/Blank_Name"><span class="uniqueName">   </span></a>
<a class="uniqueitem"><span class="uniqueName">No Href</span></a>
<a class="uniqueitem" href=""><span class="uniqueName">Empty Href</span></a>
<a class="uniqueitem" href="/tw/Headhunter"><span class="uniqueName">Wrong Locale</span></a>
<a class="uniqueitem" href="https://poedb.tw/us/Absolute"><span class="uniqueName">Absolute</span></a>
<a class="uniqueitem" href="/us/Search?q=ring"><span class="uniqueName">Query</span></a>
<a class="uniqueitem" href="/us/Unique_item/"><span class="uniqueName">Self Trailing Slash</span></a>
<a class="uniqueitem" href="/us/Headhunter"><span class="uniqueName">Headhunter Again</span></a>
<a class="uniqueitem" href="/us/Mageblood"><span class="uniqueName">Mageblood</span></a>
<a class="notunique" href="/us/Other"><span class="uniqueName">Other</span></a>
</body></html>`

	d := newTestDiscoverer(t, listing)
	targets, err := d.Discover(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []models.DiscoveryTarget{
		{Identifier: "/us/Headhunter", DisplayName: "Headhunter"},
		{Identifier: "/us/Mageblood", DisplayName: "Mageblood"},
	}, targets)

	stats := d.Stats()
	assert.Equal(t, 11, stats.Matched)
	assert.Equal(t, 2, stats.MissingName)
	assert.Equal(t, 2, stats.MissingHref)
	assert.Equal(t, 2, stats.OutsidePrefix)
	assert.Equal(t, 1, stats.FragmentOrQuery)
	assert.Equal(t, 1, stats.SelfLink)
	assert.Equal(t, 1, stats.DuplicateHref)
	assert.Equal(t, 2, stats.Accepted)
}

func TestDiscover_DuplicateHrefFirstNameWins(t *testing.T) {
	listing := `<a class="uniqueitem" href="/us/Kaoms_Heart"><span class="uniqueName">Kaom's Heart</span></a>
<a class="uniqueitem" href="/us/Kaoms_Heart"><span class="uniqueName">Kaom's Heart (Legacy)</span></a>`

	d := newTestDiscoverer(t, listing)
	targets, err := d.Discover(context.Background())

	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "Kaom's Heart", targets[0].DisplayName)
}

func TestDiscover_SameNameDifferentHrefKept(t *testing.T) {
	listing := `<a class="uniqueitem" href="/us/Atziris_Disfavour"><span class="uniqueName">Atziri's Disfavour</span></a>
<a class="uniqueitem" href="/us/Atziris_Disfavour_race"><span class="uniqueName">Atziri's Disfavour</span></a>`

	d := newTestDiscoverer(t, listing)
	targets, err := d.Discover(context.Background())

	require.NoError(t, err)
	assert.Len(t, targets, 2, "name dedup happens in the result store, not here")
}

func TestDiscover_NoItems(t *testing.T) {
	d := newTestDiscoverer(t, `<html><body><p>maintenance</p></body></html>`)
	targets, err := d.Discover(context.Background())

	assert.Nil(t, targets)
	assert.ErrorIs(t, err, utils.ErrNoItemsFound)
}

func TestDiscover_AllFilteredIsNotNoItems(t *testing.T) {
	d := newTestDiscoverer(t, `<a class="uniqueitem" href="/us/Unique_item"><span class="uniqueName">Self</span></a>`)
	targets, err := d.Discover(context.Background())

	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestDiscover_FetchFailureIsFatal(t *testing.T) {
	cfg := config.Default()
	boom := errors.New("connection refused")
	d, err := NewDiscoverer(&cfg, &stubFetcher{err: boom}, testLogger())
	require.NoError(t, err)

	targets, err := d.Discover(context.Background())

	assert.Nil(t, targets)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, utils.ErrNoItemsFound)
}

func TestDiscover_OverHTTP(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/us/Unique_item", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<a class="uniqueitem" href="/us/Ring_of_X"><span class="uniqueName">Ring of X</span></a>`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfg := config.AppConfig{BaseURL: server.URL}
	_, err := cfg.Validate()
	require.NoError(t, err)

	client := &http.Client{Timeout: 5 * time.Second}
	d, err := NewDiscoverer(&cfg, fetch.NewHTTPFetcher(client, cfg.UserAgent, 0, testLogger()), testLogger())
	require.NoError(t, err)

	targets, err := d.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.DiscoveryTarget{{Identifier: "/us/Ring_of_X", DisplayName: "Ring of X"}}, targets)
}

func TestDiscover_ListingNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)

	cfg := config.AppConfig{BaseURL: server.URL}
	_, err := cfg.Validate()
	require.NoError(t, err)

	d, err := NewDiscoverer(&cfg, fetch.NewHTTPFetcher(server.Client(), "", 0, testLogger()), testLogger())
	require.NoError(t, err)

	_, err = d.Discover(context.Background())
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestDiscover_PaddedHrefIsOutsidePrefix(t *testing.T) {
	listing := `<a class="uniqueitem" href=" /us/Padded"><span class="uniqueName">Padded</span></a>
<a class="uniqueitem" href="/us/Plain"><span class="uniqueName">Plain</span></a>`

	d := newTestDiscoverer(t, listing)
	targets, err := d.Discover(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []models.DiscoveryTarget{{Identifier: "/us/Plain", DisplayName: "Plain"}}, targets)
	assert.Equal(t, 1, d.Stats().OutsidePrefix)
}
