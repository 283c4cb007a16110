package scraper

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "jmorse87/carscout/pkg/errors"
)

const detailPageHTML = `<html><body>
	<h2 class="postingtitle">2009 Toyota Corolla - $5900 (oakland)</h2>
	<time class="date timeago" datetime="2024-05-18T14:02:35-0700">2024-05-18</time>
	<p class="attrgroup">
		<span>2009 toyota corolla</span>
		<span>odometer: 60000</span>
		<span>title status: clean</span>
	</p>
	<section id="postingbody">Runs great, well maintained.</section>
</body></html>`

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	cache map[string][]byte
}

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{cache: make(map[string][]byte)}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, &mockError{message: "cache miss"}
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.cache[key] = value
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	delete(m.cache, key)
	return nil
}

type mockError struct {
	message string
}

func (e *mockError) Error() string {
	return e.message
}

func TestFetchListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(detailPageHTML))
	}))
	defer server.Close()

	fetcher := NewListingFetcher(nil, 0)
	record, err := fetcher.FetchListing(server.URL+"/eby/cto/7601234567.html", "$5,900")
	require.NoError(t, err)

	assert.Equal(t, "7601234567", record.ID)
	assert.Equal(t, server.URL+"/eby/cto/7601234567.html", record.URL)
	assert.Equal(t, "$5,900", record.Price)
	assert.Equal(t, "2009 Toyota Corolla - $5900 (oakland)", record.PostingTitle)
	assert.Equal(t, "Runs great, well maintained.", record.PostingBody)
	assert.Equal(t, []string{"60000"}, record.Attributes[AttrOdometer])
	assert.Equal(t, []string{"clean"}, record.Attributes[AttrTitleStatus])
	assert.Equal(t, []string{"2009 toyota corolla"}, record.Attributes[AttrCatchAll])

	// the posting time keeps its wall-clock reading with the zone dropped
	assert.Equal(t, time.Date(2024, 5, 18, 14, 2, 35, 0, time.UTC), record.TimePosted)
}

func TestFetchListingMissingAnchors(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"missing time", `<html><body>
			<h2 class="postingtitle">t</h2><section id="postingbody">b</section>
		</body></html>`},
		{"unparsable time", `<html><body>
			<time datetime="yesterday"></time>
			<h2 class="postingtitle">t</h2><section id="postingbody">b</section>
		</body></html>`},
		{"missing title", `<html><body>
			<time datetime="2024-05-18T14:02:35-0700"></time>
			<section id="postingbody">b</section>
		</body></html>`},
		{"missing body", `<html><body>
			<time datetime="2024-05-18T14:02:35-0700"></time>
			<h2 class="postingtitle">t</h2>
		</body></html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.html))
			}))
			defer server.Close()

			fetcher := NewListingFetcher(nil, 0)
			_, err := fetcher.FetchListing(server.URL+"/x.html", "$1")
			require.Error(t, err)
			assert.True(t, apperr.IsType(err, apperr.ErrorTypeParse))
		})
	}
}

func TestFetchListingBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("<html><body>not found</body></html>"))
	}))
	defer server.Close()

	fetcher := NewListingFetcher(nil, 0)
	_, err := fetcher.FetchListing(server.URL+"/gone.html", "$1")
	require.Error(t, err)
	assert.True(t, apperr.IsType(err, apperr.ErrorTypeFetch))
}

func TestFetchListingEmptyURL(t *testing.T) {
	fetcher := NewListingFetcher(nil, 0)
	_, err := fetcher.FetchListing("", "$1")
	require.Error(t, err)
	assert.True(t, apperr.IsType(err, apperr.ErrorTypeParse))
}

func TestFetchListingUsesPageCache(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(detailPageHTML))
	}))
	defer server.Close()

	mockCache := NewMockCacheService()
	fetcher := NewListingFetcher(mockCache, time.Minute)

	url := server.URL + "/eby/cto/7601234567.html"
	_, err := fetcher.FetchListing(url, "$1")
	require.NoError(t, err)
	assert.Equal(t, 1, requests)

	// second fetch is served from the cache
	record, err := fetcher.FetchListing(url, "$1")
	require.NoError(t, err)
	assert.Equal(t, 1, requests)
	assert.Equal(t, "7601234567", record.ID)
}

func TestListingIDFromURL(t *testing.T) {
	assert.Equal(t, "7601234567",
		listingIDFromURL("https://sfbay.craigslist.org/eby/cto/d/oakland-2009-toyota/7601234567.html"))
	assert.Equal(t, "7601234567",
		listingIDFromURL("https://sfbay.craigslist.org/eby/cto/7601234567.html?lang=en"))
}
