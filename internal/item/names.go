package item

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// NameCollator orders names alphabetically, ignoring case. A collator is
// not safe for concurrent use; create one per sort.
func NameCollator() *collate.Collator {
	return collate.New(language.Und, collate.IgnoreCase)
}

// FoldName returns s case folded, for case-insensitive matching.
func FoldName(s string) string {
	return cases.Fold().String(s)
}

// MatchesName reports whether name contains query, ignoring case.
// An empty query matches every name.
func MatchesName(name, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(FoldName(name), FoldName(query))
}
