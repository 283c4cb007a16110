package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractAttributes parses the label/value spans inside the given
// attribute-group blocks into a multi-valued mapping.
//
// Each span is trimmed and split on the FIRST colon only: the left part
// (lower-cased, trimmed) becomes the key and the trimmed remainder is the
// value, embedded colons kept verbatim. Spans without a colon accumulate
// under AttrCatchAll in encounter order. Empty spans are skipped.
func ExtractAttributes(groups *goquery.Selection) map[string][]string {
	attrs := make(map[string][]string)

	groups.Each(func(_ int, group *goquery.Selection) {
		group.Find("span").Each(func(_ int, span *goquery.Selection) {
			text := strings.TrimSpace(span.Text())
			if text == "" {
				return
			}

			key, value, found := strings.Cut(text, ":")
			if found {
				key = strings.ToLower(strings.TrimSpace(key))
				attrs[key] = append(attrs[key], strings.TrimSpace(value))
			} else {
				attrs[AttrCatchAll] = append(attrs[AttrCatchAll], text)
			}
		})
	})

	return attrs
}
