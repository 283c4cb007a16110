package scraper

import (
	"strings"
	"time"

	apperr "jmorse87/carscout/pkg/errors"
)

// Attribute keys with meaning to the filter stage. Everything else the
// extractor finds is carried under whatever label the page used, and
// unlabeled fragments accumulate under AttrCatchAll.
const (
	AttrCatchAll    = "attribute"
	AttrOdometer    = "odometer"
	AttrTitle       = "title"
	AttrTitleStatus = "title status"
)

// SearchQuery describes one search against a city's vehicle listings.
// It is constructed once from caller input and never mutated.
//
// MinAutoYear through AutoTransmission are accepted but not transmitted
// to the search endpoint; the outbound interface is fixed to the six
// parameters buildListingsURL sends.
type SearchQuery struct {
	City           string
	SortResults    string
	SearchDistance string
	Postal         string
	MinPrice       int
	MaxPrice       int
	Make           string
	Model          string

	MinAutoYear      string
	MinAutoMiles     string
	MaxAutoMiles     string
	Condition1       string
	Condition2       string
	AutoCylinders    string
	AutoTitleStatus  string
	AutoTransmission string

	MaxResults int
}

// Validate checks the query invariants before any network activity
func (q SearchQuery) Validate() error {
	if strings.TrimSpace(q.City) == "" {
		return apperr.NewValidation("query", "city must not be empty")
	}
	if q.MaxResults < 0 {
		return apperr.NewValidation("query", "max results must be >= 0")
	}
	if q.MinPrice < 0 || q.MaxPrice < 0 {
		return apperr.NewValidation("query", "price bounds must be non-negative")
	}
	if q.MinPrice > q.MaxPrice {
		return apperr.NewValidation("query", "min price must not exceed max price")
	}
	return nil
}

// ResultRow is one entry on the search-results page. Index is the row's
// ordinal position in document order and is the sole correlation key
// between the results page and the detail fetch: row i's displayed price
// is paired with row i's detail page. No listing ID is cross-checked.
type ResultRow struct {
	Index int
	Price string
	Link  string
}

// ListingRecord is the assembled record for one detail page.
// The distinguished fields are pulled out of the generic attribute map;
// TimePosted is timezone-naive (the zone observed on the page is dropped
// so later comparisons are naive-vs-naive).
type ListingRecord struct {
	ID           string              `json:"id"`
	URL          string              `json:"url"`
	Price        string              `json:"price,omitempty"`
	TimePosted   time.Time           `json:"time_posted"`
	PostingTitle string              `json:"posting_title"`
	PostingBody  string              `json:"posting_body"`
	Attributes   map[string][]string `json:"attributes,omitempty"`
}

// Attr returns the first value recorded under key
func (r *ListingRecord) Attr(key string) (string, bool) {
	values, ok := r.Attributes[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// RowFailure records why a single result row produced no listing
type RowFailure struct {
	Index int
	URL   string
	Err   error
}

// RunReport aggregates the outcome of one scrape run. Per-row failures
// are reported here instead of aborting the run.
type RunReport struct {
	RowsFound    int
	Fetched      int
	EmptyResults bool
	Failures     []RowFailure
}
