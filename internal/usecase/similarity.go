package usecase

import "strings"

// stringSimilarity scores two names in [0,1]. Exact case-insensitive equality
// is 1.0; substring containment short-circuits to 0.8; otherwise a normalized
// Levenshtein similarity. Symmetric in its arguments.
func stringSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.8
	}

	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}

	dist := levenshteinDistance(a, b)
	sim := 1.0 - float64(dist)/float64(maxLen)
	if sim < 0 {
		return 0.0
	}
	return sim
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	// Use two rows instead of the full matrix for space efficiency
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}
