package core

import (
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldName strips diacritics and upper-cases name so "leão" and "LEAO" compare equal.
func foldName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Upper(language.Und))
	folded, _, err := transform.String(t, name)
	if err != nil {
		return name
	}
	return folded
}

// suggestionLimit is the largest edit distance still considered a typo.
func suggestionLimit(name string) int {
	n := utf8.RuneCountInString(name)
	if n <= 3 {
		return 1
	}
	return n/3 + 1
}

// SuggestSpecies returns the catalog species closest to name, for "did you
// mean" hints. ok is false when name is already a catalog key or nothing is
// close enough.
func (e *Evaluator) SuggestSpecies(name string) (suggestion string, ok bool) {
	if _, known := e.view.FindSpecies(name); known {
		return "", false
	}
	folded := foldName(name)
	if folded == "" {
		return "", false
	}
	best := suggestionLimit(folded) + 1
	for _, candidate := range e.view.catalog.SpeciesNames() {
		d := levenshtein.ComputeDistance(folded, foldName(candidate))
		if d < best {
			best, suggestion = d, candidate
		}
	}
	return suggestion, suggestion != ""
}
