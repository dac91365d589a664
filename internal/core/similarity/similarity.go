// Package similarity scores approximate matches between customer identities
// All scores are symmetric: Score(a, b) == Score(b, a)
package similarity

import "arledger/internal/core/normalize"

// Weights for the identity triple, renormalized over the fields present on both sides
const (
	WeightName   = 50
	WeightStreet = 30
	WeightCity   = 20
)

// DefaultThreshold is the minimum score for a candidate to be reported
const DefaultThreshold = 80.0

// Triple is a (name, street, city) identity as extracted from a document
type Triple struct {
	Name   string
	Street string
	City   string
}

// Normalized returns the folded comparison form of t
func (t Triple) Normalized() Triple {
	return Triple{
		Name:   normalize.Text(t.Name),
		Street: normalize.Text(t.Street),
		City:   normalize.Text(t.City),
	}
}

// Ratio returns the normalized Levenshtein similarity of a and b in [0,100]
// inputs are compared as given, callers normalize first
func Ratio(a, b string) float64 {
	if a == b {
		return 100
	}
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 100
	}
	d := distance(ra, rb)
	return 100 * (1 - float64(d)/float64(longest))
}

// Score returns the weighted similarity of two triples in [0,100]
// a missing name on either side scores zero, street and city only count when both sides carry them
func Score(a, b Triple) float64 {
	na, nb := a.Normalized(), b.Normalized()
	return ScoreNormalized(na, nb)
}

// ScoreNormalized is Score for triples that were already normalized
func ScoreNormalized(a, b Triple) float64 {
	if a.Name == "" || b.Name == "" {
		return 0
	}
	total := float64(WeightName) * Ratio(a.Name, b.Name)
	weights := float64(WeightName)
	if a.Street != "" && b.Street != "" {
		total += float64(WeightStreet) * Ratio(a.Street, b.Street)
		weights += WeightStreet
	}
	if a.City != "" && b.City != "" {
		total += float64(WeightCity) * Ratio(a.City, b.City)
		weights += WeightCity
	}
	return total / weights
}

// distance is the classic two row Levenshtein edit distance over runes
func distance(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
