package song

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultLocale is used when no locale is configured.
const DefaultLocale = "ro"

// NewCollator returns a case-insensitive collator for the given BCP-47 locale.
// Unparseable tags fall back to DefaultLocale. A collator is not safe for
// concurrent use.
func NewCollator(locale string) *collate.Collator {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		tag = language.Make(DefaultLocale)
	}
	return collate.New(tag, collate.IgnoreCase)
}

// Project returns the records to display for a search term: those with a
// title containing term case-insensitively, sorted by title. The input slice
// is never modified and a fresh slice is returned on every call. A nil
// collator compares lower-cased titles bytewise.
func Project(records []Record, term string, c *collate.Collator) []Record {
	needle := strings.ToLower(term)
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Title == "" {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(r.Title), needle) {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if cmp := compareTitles(c, out[i].Title, out[j].Title); cmp != 0 {
			return cmp < 0
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func compareTitles(c *collate.Collator, a, b string) int {
	if c != nil {
		return c.CompareString(a, b)
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}
