package marking

import "strings"

// fuzzyHints returns every known name within Levenshtein ratio > 0.8 of
// name, or where either name contains the other as a case-sensitive
// substring (spec.md §4.3),
// sorted for deterministic error messages.
func fuzzyHints(name string, known map[string]struct{}) []string {
	var hints []string
	for k := range known {
		if strings.Contains(k, name) || strings.Contains(name, k) {
			hints = append(hints, k)
			continue
		}
		if levenshteinRatio(name, k) > 0.8 {
			hints = append(hints, k)
		}
	}
	sortStrings(hints)
	return hints
}

func sortStrings(ss []string) {
	for i := 1; i < len(ss); i++ {
		for j := i; j > 0 && ss[j-1] > ss[j]; j-- {
			ss[j-1], ss[j] = ss[j], ss[j-1]
		}
	}
}

// levenshteinRatio returns 1 - distance/maxlen, the similarity ratio used
// for fuzzy package-name hints. distance is computed with the standard
// dynamic-programming edit-distance recurrence.
func levenshteinRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	d := levenshteinDistance(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(d)/float64(maxLen)
}

func levenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			cur[j] = min3(del, ins, sub)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
