package search

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// tokenSetRatio scores a and b on a 0..100 similarity scale using the
// classic token-set-ratio technique: split both strings into tokens, pull
// out the shared tokens, and compare the shared set against each side's
// leftovers so word order and repeated/missing words matter less than a
// whole-string comparison would. andreiashu-geobed used
// agnivade/levenshtein for a single whole-string edit-distance gate
// (fuzzyMatch); this reuses the same primitive (via ratio) to compare the
// joined, sorted token-set strings inside a token-set algorithm instead, since spec.md's tiered
// design already covers the whole-string exact/prefix cases.
func tokenSetRatio(a, b string) float64 {
	ta := tokenize(a)
	tb := tokenize(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 100
	}

	setA := toSet(ta)
	setB := toSet(tb)

	intersection := sortedJoin(intersectTokens(setA, setB))
	onlyA := sortedJoin(diffTokens(setA, setB))
	onlyB := sortedJoin(diffTokens(setB, setA))

	t0 := intersection
	t1 := strings.TrimSpace(intersection + " " + onlyA)
	t2 := strings.TrimSpace(intersection + " " + onlyB)

	best := ratio(t0, t1)
	if s := ratio(t0, t2); s > best {
		best = s
	}
	if s := ratio(t1, t2); s > best {
		best = s
	}
	return best
}

// ratio converts a Levenshtein edit distance into a 0..100 similarity
// score, normalized by the longer of the two strings.
func ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 100
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	score := (1 - float64(dist)/float64(maxLen)) * 100
	if score < 0 {
		score = 0
	}
	return score
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(strings.TrimSpace(s)))
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func intersectTokens(a, b map[string]struct{}) []string {
	var out []string
	for t := range a {
		if _, ok := b[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

func diffTokens(a, b map[string]struct{}) []string {
	var out []string
	for t := range a {
		if _, ok := b[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}

func sortedJoin(tokens []string) string {
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
