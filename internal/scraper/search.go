package scraper

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jmorse87/carscout/helpers"
	"jmorse87/carscout/logger"
	apperr "jmorse87/carscout/pkg/errors"
	"jmorse87/carscout/services/cache"
)

// ScraperConfig configures a Scraper
type ScraperConfig struct {
	// BaseURL overrides the https://{city}.craigslist.org/ base when set
	// (used by tests); the city segment is ignored in that case.
	BaseURL string

	// CategoryPath is the path segment under /search/, e.g. "eby/cto"
	CategoryPath string

	// Concurrency bounds the detail-page fetch pool; 1 means fully
	// sequential fetching.
	Concurrency int

	Cache        cache.CacheService
	PageCacheTTL time.Duration
}

// Scraper performs one search and fans out over the result rows
type Scraper struct {
	baseURL      string
	categoryPath string
	concurrency  int
	fetcher      *ListingFetcher
	log          *logger.Logger
}

// NewScraper creates a new scraper
func NewScraper(config ScraperConfig) *Scraper {
	concurrency := config.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	categoryPath := config.CategoryPath
	if categoryPath == "" {
		categoryPath = "eby/cto"
	}

	return &Scraper{
		baseURL:      config.BaseURL,
		categoryPath: categoryPath,
		concurrency:  concurrency,
		fetcher:      NewListingFetcher(config.Cache, config.PageCacheTTL),
		log:          logger.ForScraper(),
	}
}

// Run executes the query: one results-page fetch, row enumeration, and a
// bounded fan-out over the detail pages. The returned records are in
// original row order and number at most query.MaxResults. Zero result
// rows surface as an empty-results error alongside the report, so an
// empty search is never indistinguishable from "nothing matched".
func (s *Scraper) Run(ctx context.Context, query SearchQuery) ([]ListingRecord, *RunReport, error) {
	report := &RunReport{}

	if err := query.Validate(); err != nil {
		return nil, report, err
	}

	base := s.baseURL
	if base == "" {
		base = "https://" + query.City + ".craigslist.org/"
	}

	listingsURL := buildListingsURL(base, s.categoryPath, query)
	s.log.Debug().Str("url", listingsURL).Msg("fetching search results")

	rows, err := s.fetchResultRows(listingsURL, base)
	if err != nil {
		return nil, report, err
	}
	report.RowsFound = len(rows)

	if len(rows) == 0 {
		report.EmptyResults = true
		return nil, report, apperr.NewEmptyResults("search", "no result rows on search page")
	}

	records, err := s.fetchListings(ctx, rows, query.MaxResults, report)
	report.Fetched = len(records)

	s.log.Info().
		Int("rows", report.RowsFound).
		Int("fetched", report.Fetched).
		Int("failed", len(report.Failures)).
		Msg("scrape complete")

	return records, report, err
}

// buildListingsURL composes the search endpoint with its query string.
// Only sort, search_distance, postal, min_price, max_price and
// auto_make_model are transmitted; the make+model term keeps its literal
// plus, so it is appended outside of Values.Encode.
func buildListingsURL(base, categoryPath string, query SearchQuery) string {
	params := url.Values{}
	params.Set("sort", query.SortResults)
	params.Set("search_distance", query.SearchDistance)
	params.Set("postal", query.Postal)
	params.Set("min_price", strconv.Itoa(query.MinPrice))
	params.Set("max_price", strconv.Itoa(query.MaxPrice))

	makeModel := url.QueryEscape(query.Make) + "+" + url.QueryEscape(query.Model)

	return strings.TrimSuffix(base, "/") + "/search/" + categoryPath +
		"?" + params.Encode() + "&auto_make_model=" + makeModel
}

// fetchResultRows retrieves the results page and enumerates its rows in
// document order. A row without a usable anchor still occupies its index
// (with an empty link) so positional correlation stays intact; the
// detail fetch for it fails and is reported.
func (s *Scraper) fetchResultRows(listingsURL, base string) ([]ResultRow, error) {
	body, err := helpers.FetchWithBrowserHeaders(listingsURL)
	if err != nil {
		return nil, apperr.NewFetch("search", "failed to fetch search results", err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, apperr.NewParse("search", "failed to parse search results", err)
	}

	baseParsed, err := url.Parse(base)
	if err != nil {
		return nil, apperr.NewParse("search", "invalid base URL: "+base, err)
	}

	var rows []ResultRow
	doc.Find("li.result-row").Each(func(i int, row *goquery.Selection) {
		price := strings.TrimSpace(row.Find("span.result-price").First().Text())

		link := ""
		if href, exists := row.Find("a").First().Attr("href"); exists {
			link = resolveLink(baseParsed, strings.TrimSpace(href))
		}

		rows = append(rows, ResultRow{Index: i, Price: price, Link: link})
	})

	return rows, nil
}

// resolveLink resolves a row's detail link against the base city URL
func resolveLink(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// fetchListings fans out over the rows in windows of the configured
// concurrency, stops issuing new windows once the successful record
// count reaches the limit, and returns the records re-ordered by
// original row index, truncated to the limit. Overflow within a window
// is discarded, never re-ordered.
func (s *Scraper) fetchListings(ctx context.Context, rows []ResultRow, limit int, report *RunReport) ([]ListingRecord, error) {
	results := make([]*ListingRecord, len(rows))

	var mu sync.Mutex
	fetched := 0

	for start := 0; start < len(rows) && fetched < limit; start += s.concurrency {
		if err := ctx.Err(); err != nil {
			return collectInOrder(results, limit), err
		}

		end := start + s.concurrency
		if end > len(rows) {
			end = len(rows)
		}

		var wg sync.WaitGroup
		for _, row := range rows[start:end] {
			wg.Add(1)
			go func(row ResultRow) {
				defer wg.Done()

				record, err := s.fetcher.FetchListing(row.Link, row.Price)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					report.Failures = append(report.Failures, RowFailure{Index: row.Index, URL: row.Link, Err: err})
					s.log.Warn().Err(err).Int("row", row.Index).Str("url", row.Link).Msg("skipping result row")
					return
				}
				results[row.Index] = record
				fetched++
			}(row)
		}
		wg.Wait()
	}

	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].Index < report.Failures[j].Index
	})

	return collectInOrder(results, limit), nil
}

// collectInOrder compacts the sparse result slice in row order up to limit
func collectInOrder(results []*ListingRecord, limit int) []ListingRecord {
	records := make([]ListingRecord, 0, limit)
	for _, record := range results {
		if record == nil {
			continue
		}
		if len(records) >= limit {
			break
		}
		records = append(records, *record)
	}
	return records
}
