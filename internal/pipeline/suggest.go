package pipeline

import (
	"fmt"
	"strings"

	m3errors "github.com/m3-mcp/m3/internal/errors"
)

// suggestThreshold mirrors the original's fuzzy-match acceptance bar (a
// thefuzz score of 80 or better out of 100) translated to a normalized
// Levenshtein similarity: 1 - distance/maxLen >= 0.80.
const suggestThreshold = 0.80

// unknownNameError builds the Preset/Validation error raised when name
// isn't found in candidates, appending a "did you mean" suggestion when one
// candidate scores above suggestThreshold.
func unknownNameError(kind m3errors.Kind, noun, name string, candidates []string) error {
	msg := fmt.Sprintf("unknown %s: %s", noun, name)
	if best, ok := closestMatch(name, candidates); ok {
		msg = fmt.Sprintf("%s (did you mean %q?)", msg, best)
	}
	return m3errors.New(kind, msg)
}

// closestMatch returns the candidate most similar to name, if any clears
// suggestThreshold.
func closestMatch(name string, candidates []string) (string, bool) {
	var best string
	var bestScore float64
	for _, c := range candidates {
		score := similarity(name, c)
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	if bestScore >= suggestThreshold {
		return best, true
	}
	return "", false
}

func similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(maxLen)
}

// levenshtein computes classic edit distance via the two-row dynamic
// programming table.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			min := del
			if ins < min {
				min = ins
			}
			if sub < min {
				min = sub
			}
			curr[j] = min
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
