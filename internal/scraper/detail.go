package scraper

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jmorse87/carscout/helpers"
	"jmorse87/carscout/logger"
	apperr "jmorse87/carscout/pkg/errors"
	"jmorse87/carscout/services/cache"
)

// Layouts tried against the detail page's machine-readable datetime
// attribute. The zone, when present, is parsed and then dropped.
var postedAtLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ListingFetcher retrieves a detail page and assembles one ListingRecord
type ListingFetcher struct {
	Cache   cache.CacheService
	PageTTL time.Duration

	log *logger.Logger
}

// NewListingFetcher creates a fetcher backed by the given page cache
func NewListingFetcher(cacheSvc cache.CacheService, pageTTL time.Duration) *ListingFetcher {
	return &ListingFetcher{
		Cache:   cacheSvc,
		PageTTL: pageTTL,
		log:     logger.ForScraper(),
	}
}

// FetchListing retrieves detailURL and assembles the listing record,
// merging the extracted attributes with the price observed on the
// results page, the posting timestamp, title, body and the URL itself.
// One network request per call, no retries.
func (f *ListingFetcher) FetchListing(detailURL, price string) (*ListingRecord, error) {
	if strings.TrimSpace(detailURL) == "" {
		return nil, apperr.NewParse("detail", "result row had no detail link", nil)
	}

	body, err := f.fetchPage(detailURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, apperr.NewParse("detail", "failed to parse detail page", err)
	}

	record := &ListingRecord{
		ID:         listingIDFromURL(detailURL),
		URL:        detailURL,
		Price:      price,
		Attributes: ExtractAttributes(doc.Find("p.attrgroup")),
	}

	record.TimePosted, err = parsePostedAt(doc)
	if err != nil {
		return nil, err
	}

	title := doc.Find("h2.postingtitle").First()
	if title.Length() == 0 {
		return nil, apperr.NewParse("detail", "posting title not found", nil)
	}
	record.PostingTitle = strings.TrimSpace(title.Text())

	postingBody := doc.Find("section#postingbody").First()
	if postingBody.Length() == 0 {
		return nil, apperr.NewParse("detail", "posting body not found", nil)
	}
	record.PostingBody = strings.TrimSpace(postingBody.Text())

	return record, nil
}

// fetchPage returns the page body for url, consulting the cache first
func (f *ListingFetcher) fetchPage(url string) ([]byte, error) {
	key := pageCacheKey(url)

	if f.Cache != nil {
		if body, err := f.Cache.Get(key); err == nil {
			f.log.Debug().Str("url", url).Msg("detail page served from cache")
			return body, nil
		}
	}

	reader, err := helpers.FetchWithBrowserHeaders(url)
	if err != nil {
		return nil, apperr.NewFetch("detail", "failed to fetch detail page", err)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, apperr.NewFetch("detail", "failed to read detail page", err)
	}

	if f.Cache != nil && f.PageTTL > 0 {
		if err := f.Cache.Set(key, body, f.PageTTL); err != nil {
			f.log.Debug().Err(err).Str("url", url).Msg("failed to cache detail page")
		}
	}

	return body, nil
}

// parsePostedAt extracts the posting timestamp from the single
// distinguished time element and strips its zone so the result is naive.
func parsePostedAt(doc *goquery.Document) (time.Time, error) {
	timeEl := doc.Find("time").First()
	if timeEl.Length() == 0 {
		return time.Time{}, apperr.NewParse("detail", "time element not found", nil)
	}

	value, exists := timeEl.Attr("datetime")
	if !exists || strings.TrimSpace(value) == "" {
		return time.Time{}, apperr.NewParse("detail", "time element has no datetime attribute", nil)
	}
	value = strings.TrimSpace(value)

	for _, layout := range postedAtLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return stripZone(t), nil
		}
	}

	return time.Time{}, apperr.NewParse("detail", "unparsable posting time: "+value, nil)
}

// stripZone keeps the wall-clock reading and discards the zone
func stripZone(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// listingIDFromURL derives a listing ID from the detail URL's last path
// segment, e.g. ".../7601234567.html" -> "7601234567".
func listingIDFromURL(rawURL string) string {
	trimmed := strings.TrimSuffix(strings.Split(rawURL, "?")[0], "/")
	part, err := helpers.GetSplitPart(trimmed, "/", strings.Count(trimmed, "/"))
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(part, ".html")
}

// pageCacheKey builds the cache key for a detail page body
func pageCacheKey(url string) string {
	return "page:" + url
}
