package scraper

import (
	"strconv"
	"strings"
	"time"

	"jmorse87/carscout/logger"
	apperr "jmorse87/carscout/pkg/errors"
)

// Filter applies the mileage, title-status and recency predicates over a
// fetched listing set.
type Filter struct {
	MaxMileage float64
	Weeks      int

	unallowed map[string]struct{}
	log       *logger.Logger

	// now is swappable in tests
	now func() time.Time
}

// NewFilter creates a filter. unallowedTitles membership is checked
// case-insensitively over trimmed values; weeks defaults to 2 when not
// positive.
func NewFilter(maxMileage float64, unallowedTitles []string, weeks int) *Filter {
	if weeks <= 0 {
		weeks = 2
	}

	unallowed := make(map[string]struct{}, len(unallowedTitles))
	for _, title := range unallowedTitles {
		unallowed[strings.ToLower(strings.TrimSpace(title))] = struct{}{}
	}

	return &Filter{
		MaxMileage: maxMileage,
		Weeks:      weeks,
		unallowed:  unallowed,
		log:        logger.ForFilter(),
		now:        time.Now,
	}
}

// Apply returns the subsequence of records passing all predicates,
// preserving the original order. Input records are not mutated. Records
// whose odometer value cannot be parsed are excluded with a warning.
func (f *Filter) Apply(records []ListingRecord) []ListingRecord {
	cutoff := stripZone(f.now()).AddDate(0, 0, -7*f.Weeks)

	var kept []ListingRecord
	for i := range records {
		ok, err := f.keep(&records[i], cutoff)
		if err != nil {
			f.log.Warn().Err(err).Str("url", records[i].URL).Msg("excluding listing")
			continue
		}
		if ok {
			kept = append(kept, records[i])
		}
	}

	f.log.Info().
		Int("in", len(records)).
		Int("kept", len(kept)).
		Msg("filter applied")

	return kept
}

// keep evaluates all predicates for one record
func (f *Filter) keep(record *ListingRecord, cutoff time.Time) (bool, error) {
	// Odometer must be present, numeric, and strictly below the ceiling.
	// A missing odometer is non-qualifying rather than a crash.
	odometerStr, ok := record.Attr(AttrOdometer)
	if !ok {
		f.log.Debug().Str("url", record.URL).Msg("no odometer value, excluding")
		return false, nil
	}
	odometer, err := strconv.ParseFloat(strings.TrimSpace(odometerStr), 64)
	if err != nil {
		return false, apperr.NewParse("filter", "non-numeric odometer: "+odometerStr, err)
	}
	if odometer >= f.MaxMileage {
		return false, nil
	}

	// Title status comes from "title", overridden by "title status" when
	// present. A record with neither is only unallowed if the empty value
	// was explicitly listed.
	title, _ := record.Attr(AttrTitle)
	if status, ok := record.Attr(AttrTitleStatus); ok {
		title = status
	}
	if _, bad := f.unallowed[strings.ToLower(strings.TrimSpace(title))]; bad {
		return false, nil
	}

	// Recency: naive-vs-naive comparison against now minus the window
	if record.TimePosted.Before(cutoff) {
		return false, nil
	}

	return true, nil
}
