package resolver

import (
	"fmt"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
	"github.com/pmezard/go-difflib/difflib"
)

// SimilarityFunc returns a similarity ratio in [0,1] between two strings.
type SimilarityFunc func(a, b string) float64

// Scorer names accepted by ParseSimilarity.
const (
	SimilarityRatio       = "ratio"
	SimilarityLevenshtein = "levenshtein"
	SimilarityJaroWinkler = "jaro-winkler"
)

// Ratio is 2*M/T over runes, where M counts characters in the matching
// blocks difflib finds and T is the combined length. A query contained in a
// much longer label still scores 2q/(q+L).
func Ratio(a, b string) float64 {
	return difflib.NewMatcher(runes(a), runes(b)).Ratio()
}

// Levenshtein is 1 - distance/longest, computed over runes so that Japanese
// titles are compared character by character.
func Levenshtein(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(matchr.Levenshtein(a, b))/float64(longest)
}

// JaroWinkler favors shared prefixes.
func JaroWinkler(a, b string) float64 {
	return matchr.JaroWinkler(a, b, false)
}

// ParseSimilarity maps a configured scorer name to its function. The empty
// name selects Ratio.
func ParseSimilarity(name string) (SimilarityFunc, error) {
	switch name {
	case "", SimilarityRatio:
		return Ratio, nil
	case SimilarityLevenshtein:
		return Levenshtein, nil
	case SimilarityJaroWinkler:
		return JaroWinkler, nil
	default:
		return nil, fmt.Errorf("unknown similarity %q", name)
	}
}

func runes(s string) []string {
	out := make([]string, 0, utf8.RuneCountInString(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
