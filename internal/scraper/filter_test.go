package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testRecord(odometer, title string, posted time.Time) ListingRecord {
	attrs := map[string][]string{}
	if odometer != "" {
		attrs[AttrOdometer] = []string{odometer}
	}
	if title != "" {
		attrs[AttrTitle] = []string{title}
	}
	return ListingRecord{
		URL:        "https://sfbay.craigslist.org/eby/cto/1234.html",
		TimePosted: posted,
		Attributes: attrs,
	}
}

func newTestFilter(maxMileage float64, unallowed []string, weeks int, now time.Time) *Filter {
	f := NewFilter(maxMileage, unallowed, weeks)
	f.now = func() time.Time { return now }
	return f
}

func TestFilterRetainsQualifyingRecord(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	f := newTestFilter(60000, []string{"salvage", "rebuilt"}, 2, now)

	record := testRecord("50000", "clean", now)
	kept := f.Apply([]ListingRecord{record})

	assert.Len(t, kept, 1)
	assert.Equal(t, record.URL, kept[0].URL)
}

func TestFilterExcludesHighMileage(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	f := newTestFilter(60000, []string{"salvage", "rebuilt"}, 2, now)

	kept := f.Apply([]ListingRecord{testRecord("70000", "clean", now)})
	assert.Empty(t, kept)

	// the ceiling is exclusive
	kept = f.Apply([]ListingRecord{testRecord("60000", "clean", now)})
	assert.Empty(t, kept)
}

func TestFilterExcludesUnallowedTitle(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	f := newTestFilter(60000, []string{"salvage", "rebuilt"}, 2, now)

	kept := f.Apply([]ListingRecord{testRecord("50000", "salvage", now)})
	assert.Empty(t, kept)

	// membership is case-insensitive over trimmed values
	kept = f.Apply([]ListingRecord{testRecord("50000", " Salvage ", now)})
	assert.Empty(t, kept)
}

func TestFilterTitleStatusOverridesTitle(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	f := newTestFilter(60000, []string{"salvage"}, 2, now)

	record := testRecord("50000", "clean", now)
	record.Attributes[AttrTitleStatus] = []string{"salvage"}

	kept := f.Apply([]ListingRecord{record})
	assert.Empty(t, kept)
}

func TestFilterMissingTitleIsAllowed(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	f := newTestFilter(60000, []string{"salvage"}, 2, now)

	kept := f.Apply([]ListingRecord{testRecord("50000", "", now)})
	assert.Len(t, kept, 1)

	// unless the empty value was explicitly listed as unallowed
	f = newTestFilter(60000, []string{"salvage", ""}, 2, now)
	kept = f.Apply([]ListingRecord{testRecord("50000", "", now)})
	assert.Empty(t, kept)
}

func TestFilterExcludesStaleListing(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	f := newTestFilter(60000, []string{"salvage"}, 2, now)

	kept := f.Apply([]ListingRecord{testRecord("50000", "clean", now.AddDate(0, 0, -30))})
	assert.Empty(t, kept)

	// the cutoff is inclusive
	kept = f.Apply([]ListingRecord{testRecord("50000", "clean", now.AddDate(0, 0, -14))})
	assert.Len(t, kept, 1)
}

func TestFilterHonorsWeekRange(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	posted := now.AddDate(0, 0, -30)

	// 4 weeks = 28 days, too old
	f := newTestFilter(60000, nil, 4, now)
	assert.Empty(t, f.Apply([]ListingRecord{testRecord("50000", "clean", posted)}))

	// 5 weeks = 35 days, retained
	f = newTestFilter(60000, nil, 5, now)
	assert.Len(t, f.Apply([]ListingRecord{testRecord("50000", "clean", posted)}), 1)
}

func TestFilterMissingOdometerExcludes(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	f := newTestFilter(60000, []string{"salvage"}, 2, now)

	kept := f.Apply([]ListingRecord{testRecord("", "clean", now)})
	assert.Empty(t, kept)
}

func TestFilterNonNumericOdometerExcludes(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	f := newTestFilter(60000, []string{"salvage"}, 2, now)

	kept := f.Apply([]ListingRecord{testRecord("sixty thousand", "clean", now)})
	assert.Empty(t, kept)
}

func TestFilterPreservesOrderAndInput(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	f := newTestFilter(60000, []string{"salvage"}, 2, now)

	records := []ListingRecord{
		testRecord("10000", "clean", now),
		testRecord("70000", "clean", now),
		testRecord("20000", "clean", now),
	}
	records[0].ID = "a"
	records[2].ID = "c"

	kept := f.Apply(records)
	assert.Len(t, kept, 2)
	assert.Equal(t, "a", kept[0].ID)
	assert.Equal(t, "c", kept[1].ID)

	// the input sequence is untouched
	assert.Len(t, records, 3)
	assert.Equal(t, []string{"70000"}, records[1].Attributes[AttrOdometer])
}
