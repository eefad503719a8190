// Package picker implements the file/symbol fuzzy-finder subsystem of
// spec.md §4.5: subprocess file enumeration, streaming reads, and
// in-process fuzzy scoring of files/recent-files/symbols.
package picker

import (
	"sort"
	"unicode"

	"github.com/sahilm/fuzzy"
)

// MaxResults caps every picker response, per spec.md §4.5/§8.
const MaxResults = 50

// Result is one scored picker entry. Index is the candidate's position in
// the slice passed to Score, letting callers map a match back to a richer
// record (e.g. a symbol's location) the plain string doesn't carry.
type Result struct {
	Text  string
	Score int
	Index int
}

// stringSource adapts a []string to fuzzy.Source.
type stringSource []string

func (s stringSource) String(i int) string { return s[i] }
func (s stringSource) Len() int            { return len(s) }

// Score ranks candidates against query using sahilm/fuzzy's subsequence
// matcher for candidate matched-index positions, then re-scores each match
// with the prefix > word-boundary > subsequence tiering and camelCase
// boundary bonus spec.md §4.5/§8 describes — sahilm/fuzzy's own relevance
// score is tuned for a different ranking (longest contiguous run), not the
// explicit tiering spec.md requires, so it supplies match positions only.
//
// An empty query returns every candidate in its original order (the
// caller's "recent files first, then the rest" ordering for empty-query
// file mode), capped at MaxResults.
func Score(query string, candidates []string) []Result {
	if query == "" {
		n := len(candidates)
		if n > MaxResults {
			n = MaxResults
		}
		out := make([]Result, n)
		for i := 0; i < n; i++ {
			out[i] = Result{Text: candidates[i], Score: 0, Index: i}
		}
		return out
	}

	matches := fuzzy.Find(query, stringSource(candidates))

	out := make([]Result, 0, len(matches))
	for _, m := range matches {
		out = append(out, Result{Text: m.Str, Score: score(query, m.Str, m.MatchedIndexes), Index: m.Index})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if len(out[i].Text) != len(out[j].Text) {
			return len(out[i].Text) < len(out[j].Text)
		}
		return out[i].Text < out[j].Text
	})

	if len(out) > MaxResults {
		out = out[:MaxResults]
	}
	return out
}

// score tiers a match: prefix match beats a word-boundary match beats a
// bare subsequence match, with a bonus per camelCase boundary hit, per
// spec.md §4.5/§8's fuzzy-matching rules.
func score(query, candidate string, matchedIndexes []int) int {
	const (
		tierPrefix       = 1_000_000
		tierWordBoundary = 500_000
		tierSubsequence  = 0
		boundaryBonus    = 1_000
	)

	base := tierSubsequence
	lowerCandidate := lowerASCII(candidate)
	lowerQuery := lowerASCII(query)

	if len(lowerQuery) <= len(lowerCandidate) && lowerCandidate[:len(lowerQuery)] == lowerQuery {
		base = tierPrefix
	} else if isWordBoundaryMatch(candidate, matchedIndexes) {
		base = tierWordBoundary
	}

	bonus := 0
	for _, idx := range matchedIndexes {
		if isBoundary(candidate, idx) {
			bonus += boundaryBonus
		}
	}

	// Tighter matches (smaller span) rank slightly higher within a tier;
	// candidate length only breaks exact score ties, in Score's sort.
	span := 0
	if len(matchedIndexes) > 0 {
		span = matchedIndexes[len(matchedIndexes)-1] - matchedIndexes[0]
	}

	return base + bonus - span
}

func isWordBoundaryMatch(candidate string, matchedIndexes []int) bool {
	if len(matchedIndexes) == 0 {
		return false
	}
	return isBoundary(candidate, matchedIndexes[0])
}

// isBoundary reports whether position idx in s starts a "word": the
// string start, the char after a separator, or a camelCase uppercase
// transition.
func isBoundary(s string, idx int) bool {
	runes := []rune(s)
	if idx <= 0 || idx >= len(runes) {
		return idx == 0
	}
	prev, cur := runes[idx-1], runes[idx]
	if !unicode.IsLetter(prev) && !unicode.IsDigit(prev) {
		return true
	}
	if unicode.IsUpper(cur) && !unicode.IsUpper(prev) {
		return true
	}
	return false
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
