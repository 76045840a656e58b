// Package dedup finds and merges near-duplicate items across sources
// within one catalog.
package dedup

import "strings"

// Ratio returns a normalized similarity in [0,1] between two strings,
// computed over the longest matching blocks of the lower-cased, trimmed
// inputs: 2*matched / (len(a)+len(b)). It is symmetric, and 1.0 for
// identical inputs.
func Ratio(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" && b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	matched := matchingBlockTotal([]rune(a), []rune(b))
	return 2 * float64(matched) / float64(len([]rune(a))+len([]rune(b)))
}

type span struct {
	aLo, aHi int
	bLo, bHi int
}

// matchingBlockTotal sums the lengths of the longest matching blocks,
// recursing on the unmatched regions either side of each block.
func matchingBlockTotal(a, b []rune) int {
	total := 0
	stack := []span{{0, len(a), 0, len(b)}}

	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		ai, bi, size := longestMatch(a, b, s)
		if size == 0 {
			continue
		}
		total += size
		stack = append(stack,
			span{s.aLo, ai, s.bLo, bi},
			span{ai + size, s.aHi, bi + size, s.bHi},
		)
	}
	return total
}

// longestMatch finds the longest common substring within the given spans
// using a rolling single-row dynamic program.
func longestMatch(a, b []rune, s span) (bestA, bestB, bestSize int) {
	bestA, bestB = s.aLo, s.bLo

	// lengths[j] is the match length ending at a[i], b[j].
	lengths := make(map[int]int)
	for i := s.aLo; i < s.aHi; i++ {
		next := make(map[int]int)
		for j := s.bLo; j < s.bHi; j++ {
			if a[i] != b[j] {
				continue
			}
			k := lengths[j-1] + 1
			next[j] = k
			if k > bestSize {
				bestA = i - k + 1
				bestB = j - k + 1
				bestSize = k
			}
		}
		lengths = next
	}
	return bestA, bestB, bestSize
}

// yearCompatible reports whether two release years could plausibly refer
// to the same title: either unset, or at most one year apart.
func yearCompatible(y1, y2 int) bool {
	if y1 == 0 || y2 == 0 {
		return true
	}
	diff := y1 - y2
	if diff < 0 {
		diff = -diff
	}
	return diff <= 1
}
