package reflow

import (
	"strings"
)

// Hyphenator finds valid break points inside a word using Liang's
// pattern algorithm: patterns vote odd (break allowed) or even (break
// forbidden) at inter-letter positions, the highest value wins.
type Hyphenator struct {
	// letters -> weights; weights has len(letters)+1 entries covering
	// the positions around each letter.
	patterns map[string][]byte
	maxLen   int
	enabled  bool
}

// Minimum fragment sizes on either side of a break.
const (
	MinPrefix = 2
	MinSuffix = 3
)

// NewHyphenator builds the English hyphenator from the embedded pattern
// set. Disabled hyphenators report no break points.
func NewHyphenator(enabled bool) *Hyphenator {
	h := &Hyphenator{patterns: make(map[string][]byte), enabled: enabled}
	if !enabled {
		return h
	}
	for _, p := range englishPatterns {
		letters, weights := parsePattern(p)
		h.patterns[letters] = weights
		if len(letters) > h.maxLen {
			h.maxLen = len(letters)
		}
	}
	return h
}

// parsePattern splits a TeX-style pattern like "4m1p" into its letters
// and position weights.
func parsePattern(p string) (string, []byte) {
	var letters strings.Builder
	weights := []byte{0}
	for _, r := range p {
		if r >= '0' && r <= '9' {
			weights[len(weights)-1] = byte(r - '0')
			continue
		}
		letters.WriteRune(r)
		weights = append(weights, 0)
	}
	return letters.String(), weights
}

// hyphenatable reports whether the word is in scope for the pattern
// language. Dispatch is by letter classification: plain ASCII letters
// go through the English patterns, everything else is left unbroken.
func hyphenatable(word string) bool {
	if len(word) < MinPrefix+MinSuffix {
		return false
	}
	for _, r := range word {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// Breaks returns the valid break indices of word (byte offsets where a
// hyphen may be inserted), honoring MinPrefix and MinSuffix. Empty when
// hyphenation is disabled or the word is out of scope.
func (h *Hyphenator) Breaks(word string) []int {
	if !h.enabled || !hyphenatable(word) {
		return nil
	}
	lower := "." + strings.ToLower(word) + "."
	n := len(lower)
	values := make([]byte, n+1)
	for i := 0; i < n; i++ {
		max := n - i
		if max > h.maxLen {
			max = h.maxLen
		}
		for l := 1; l <= max; l++ {
			weights, ok := h.patterns[lower[i:i+l]]
			if !ok {
				continue
			}
			for j, w := range weights {
				if w > values[i+j] {
					values[i+j] = w
				}
			}
		}
	}

	var breaks []int
	// values index k corresponds to the gap before lower[k]; shift by
	// one for the leading dot to get offsets into word.
	for k := 2; k < n-1; k++ {
		pos := k - 1
		if pos < MinPrefix || len(word)-pos < MinSuffix {
			continue
		}
		if values[k]%2 == 1 {
			breaks = append(breaks, pos)
		}
	}
	return breaks
}

// englishPatterns is a compact subset of the Knuth-Liang English
// hyphenation patterns covering common letter sequences.
var englishPatterns = []string{
	".ab4i", ".ach4", ".ad4der", ".an3te", ".anti5", ".be5ra", ".com5er",
	".de4moi", ".dis1", ".ele5", ".en3s", ".ge5og", ".im5pin", ".in1",
	".inter1", ".mis1", ".mon3e", ".non1", ".over1", ".per1", ".re1",
	".un1", ".under1", "a1b", "a1ble", "ab5o", "a1c", "a1d", "a1f", "a2g",
	"a1j", "a1la", "a1ly", "a1m", "a5nee", "a1n2a", "a1p", "a1r", "a1sia",
	"a1ta", "a1to", "a1tu", "a1ty", "a1vo", "1ba", "1bat", "b1b", "b1c",
	"b1d", "1be", "b1l2", "1bo", "b1r2", "b1s", "b1t", "1bu", "1ca",
	"c1c", "1ce", "3cei", "1ci", "c1l2", "1co", "c1r2", "c1t", "1cu",
	"1cy", "1da", "d1b", "d1c", "d1d", "1de", "d1f", "d1g", "1di", "d1j",
	"d1l", "d1m", "1do", "d1p", "d1r2", "d1s2", "d1t", "1du", "1dy",
	"e1b", "e1c", "e1d", "e1f", "e1g", "e1je", "e1la", "e1ly", "e1m",
	"e1n2a", "e1p", "e1q", "e1r", "e1si", "e1ta", "e1to", "e1va", "e1wa",
	"1fa", "f1b", "f1c", "1fe", "f1f", "1fi", "f1l2", "1fo", "f1r2",
	"f1s", "f1t", "1fu", "1fy", "1ga", "g1b", "g1c", "g1d", "1ge", "g1g",
	"1gi", "g1l2", "1go", "g1r2", "g1s2", "1gu", "1gy", "1ha", "h1b",
	"h1c", "h1d", "1he", "1hi", "h1l", "1ho", "h1r", "h1s", "h1t", "1hu",
	"1hy", "i1a", "i1b", "i1c", "i1d", "i1f", "i1g", "i1j", "i1la",
	"i1ly", "i1m", "i1n2a", "i1o", "i1p", "i1q", "i1r", "i1sia", "i1ta",
	"i1to", "i1ty", "i1v", "1ja", "1je", "1jo", "1ka", "k1b", "1ke",
	"k1l", "1ki", "1ko", "k1s2", "k1t", "1ku", "1ky", "1la", "l1b",
	"l1c", "l1d", "1le", "l1f", "l1g", "1li", "l1j", "l1l", "l1m", "1lo",
	"l1p", "l1r", "l1s2", "l1t", "1lu", "1ly", "1ma", "m1b", "m1c",
	"m1d", "1me", "m1f", "1mi", "m1l", "m1m", "1mo", "m1n", "m1p", "m1r",
	"m1s2", "m1t", "1mu", "1my", "1na", "n1b", "n1c", "n1d", "1ne",
	"n1f", "n1g", "1ni", "n1j", "n1l", "n1m", "n1n", "1no", "n1p", "n1r",
	"n1s2", "n1t", "1nu", "1ny", "o1b", "o1c", "o1d", "o1f", "o2g",
	"o1h", "o1j", "o1la", "o1ly", "o1m", "o1n2a", "o1p", "o1q", "o1r",
	"o1sia", "o1ta", "o1to", "o1ty", "o1va", "1pa", "p1b", "p1c", "p1d",
	"1pe", "p1f", "p1g", "1pi", "p1l2", "p1m", "1po", "p1p", "p1r2",
	"p1s2", "p1t", "1pu", "1py", "q1u2", "1ra", "r1b", "r1c", "r1d",
	"1re", "r1f", "r1g", "1ri", "r1j", "r1l", "r1m", "r1n", "1ro", "r1p",
	"r1q", "r1r", "r1s2", "r1t", "1ru", "1ry", "1sa", "s1b", "s1c",
	"1se", "s1f", "1si", "s1l2", "s1m", "s1n", "1so", "s1p", "s1r",
	"s1s2", "s1t", "1su", "1sy", "1ta", "t1b", "t1c", "t1d", "1te",
	"t1f", "t1g", "1ti", "t1l", "t1m", "1to", "t1p", "t1r2", "t1s2",
	"t1t", "1tu", "1ty", "u1b", "u1c", "u1d", "u1f", "u1g", "u1j",
	"u1la", "u1ly", "u1m", "u1n2a", "u1p", "u1q", "u1r", "u1ta", "u1to",
	"u1ty", "u1v", "1va", "v1b", "1ve", "1vi", "v1l", "1vo", "v1r",
	"1vu", "1vy", "1wa", "w1b", "1we", "1wi", "w1l", "1wo", "w1r", "w1s",
	"1xa", "x1c", "1xe", "1xi", "1xo", "x1t", "1xu", "1ya", "y1b", "y1c",
	"y1d", "1ye", "y1g", "1yi", "y1l", "y1m", "1yo", "y1p", "y1r",
	"y1s2", "y1t", "1za", "z1b", "1ze", "1zi", "z1l", "1zo", "z1z",
}
