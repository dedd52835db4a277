// Package similarity scores how closely two pieces of text match and finds the
// page of a chapter that best matches a saved snippet.
package similarity

import (
	"strings"

	"golang.org/x/text/cases"
)

const gramSize = 3

// Normalize case-folds s and collapses runs of whitespace to single spaces.
func Normalize(s string) string {
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}

// trigrams returns the set of rune trigrams of an already normalized string.
// Strings shorter than a trigram yield themselves as the only gram.
func trigrams(s string) map[string]struct{} {
	runes := []rune(s)
	grams := make(map[string]struct{})
	if len(runes) == 0 {
		return grams
	}
	if len(runes) < gramSize {
		grams[s] = struct{}{}
		return grams
	}
	for i := 0; i+gramSize <= len(runes); i++ {
		grams[string(runes[i:i+gramSize])] = struct{}{}
	}
	return grams
}

// Score returns the trigram overlap coefficient of a and b in [0,1]:
// shared trigrams divided by the trigram count of the smaller text.
// Identical texts score 1, texts with no trigram in common score 0.
// Score is symmetric.
func Score(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1
	}
	return overlap(trigrams(na), trigrams(nb))
}

func overlap(ga, gb map[string]struct{}) float64 {
	if len(ga) == 0 || len(gb) == 0 {
		return 0
	}
	if len(gb) < len(ga) {
		ga, gb = gb, ga
	}
	shared := 0
	for g := range ga {
		if _, ok := gb[g]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(ga))
}

// Match is the result of a best-match search.
type Match struct {
	Index int
	Score float64
}

// BestMatch returns the page that best matches snippet. The earliest page
// containing the snippet literally wins, then the earliest page containing it
// after normalization. Otherwise the highest score wins and ties go to the
// lowest index.
// ok is false when snippet is blank or no page shares any trigram with it.
func BestMatch(pages []string, snippet string) (m Match, ok bool) {
	needle := Normalize(snippet)
	if needle == "" || len(pages) == 0 {
		return Match{}, false
	}

	for i, p := range pages {
		if strings.Contains(p, snippet) {
			return Match{Index: i, Score: 1}, true
		}
	}

	normalized := make([]string, len(pages))
	for i, p := range pages {
		normalized[i] = Normalize(p)
		if strings.Contains(normalized[i], needle) {
			return Match{Index: i, Score: 1}, true
		}
	}

	needleGrams := trigrams(needle)
	best := Match{Index: -1}
	for i, p := range normalized {
		s := overlap(needleGrams, trigrams(p))
		if s > best.Score {
			best = Match{Index: i, Score: s}
		}
	}
	if best.Index < 0 {
		return Match{}, false
	}
	return best, true
}
