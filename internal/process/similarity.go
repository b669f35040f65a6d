package process

import (
	"regexp"
	"strings"
)

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9\p{Han}]+`)

// normalizedTitle lowercases a title and collapses non-alphanumeric runs to
// single spaces so that punctuation and casing do not affect similarity.
func normalizedTitle(title string) string {
	lower := strings.ToLower(title)
	return strings.TrimSpace(nonAlnumRe.ReplaceAllString(lower, " "))
}

// TitleSimilarity returns the character-level similarity ratio between two
// normalized titles in [0,1] using Ratcliff/Obershelp matching:
// 2*matches / (len(a)+len(b)).
func TitleSimilarity(a, b string) float64 {
	ra := []rune(normalizedTitle(a))
	rb := []rune(normalizedTitle(b))
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchingChars(ra, rb)) / float64(total)
}

// matchingChars counts matched characters by recursively splitting around
// the longest common substring, the same scheme difflib-style ratios use.
func matchingChars(a, b []rune) int {
	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	matched := size
	matched += matchingChars(a[:ai], b[:bi])
	matched += matchingChars(a[ai+size:], b[bi+size:])
	return matched
}

// longestCommonSubstring returns the start offsets and length of the longest
// run of runes common to a and b. O(len(a)*len(b)) time, O(len(b)) space.
func longestCommonSubstring(a, b []rune) (aStart, bStart, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > size {
					size = cur[j]
					aStart = i - size
					bStart = j - size
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return aStart, bStart, size
}
