// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package matcher

import "github.com/saferwall/dxscan/ahocorasick"

// usingStringsPlan is the per-matcher-node derived state of the
// using-strings acceleration: a once-built Aho-Corasick trie (kept here
// twice — exact-case and ASCII-folded — since the query's
// keywords may mix case-sensitive and case-insensitive entries under one
// matcher node), the lowered literal/match-type per keyword, and which
// keyword indices are the empty string (handled by reference-count
// membership rather than a trie scan, since an empty pattern would
// otherwise "hit" at every position).
type usingStringsPlan struct {
	literals  []string
	matchType []MatchType
	ignoreCs  []bool
	rawTrie   *ahocorasick.Trie
	foldTrie  *ahocorasick.Trie
	rawIdx    []int // rawTrie pattern index -> original keyword index
	foldIdx   []int // foldTrie pattern index -> original keyword index
	emptyIdx  []int // keyword indices whose literal is ""
}

func buildUsingStringsPlan(patterns []*StringMatcher) *usingStringsPlan {
	plan := &usingStringsPlan{
		literals:  make([]string, len(patterns)),
		matchType: make([]MatchType, len(patterns)),
		ignoreCs:  make([]bool, len(patterns)),
	}
	var rawPatterns, foldPatterns [][]byte
	for i, p := range patterns {
		lit, mt := p.Value, p.MatchType
		if mt == SimilarRegex {
			lit, mt = lowerSimilarRegex(lit)
		}
		plan.literals[i] = lit
		plan.matchType[i] = mt
		plan.ignoreCs[i] = p.IgnoreCase

		if lit == "" {
			plan.emptyIdx = append(plan.emptyIdx, i)
			continue
		}
		if p.IgnoreCase {
			plan.foldIdx = append(plan.foldIdx, i)
			foldPatterns = append(foldPatterns, foldASCIIBytes([]byte(lit)))
		} else {
			plan.rawIdx = append(plan.rawIdx, i)
			rawPatterns = append(rawPatterns, []byte(lit))
		}
	}
	if len(rawPatterns) > 0 {
		plan.rawTrie = ahocorasick.Build(rawPatterns)
	}
	if len(foldPatterns) > 0 {
		plan.foldTrie = ahocorasick.Build(foldPatterns)
	}
	return plan
}

func foldASCIIBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return out
}

// evalUsingStrings is the pure evaluation half: given the compiled plan
// and the set of strings the candidate (method or class) actually
// references, decide whether every configured keyword hits at least
// once across that set.
func evalUsingStrings(plan *usingStringsPlan, candidateStrings []string, metrics func(n int)) bool {
	if plan == nil {
		return true
	}
	n := len(plan.literals)
	if n == 0 {
		return true
	}
	hit := make([]bool, n)

	hasEmptyCandidate := false
	for _, s := range candidateStrings {
		if s == "" {
			hasEmptyCandidate = true
			break
		}
	}
	for _, kwIdx := range plan.emptyIdx {
		hit[kwIdx] = hasEmptyCandidate
	}

	var hits int
	for _, s := range candidateStrings {
		b := []byte(s)
		if plan.rawTrie != nil {
			rawHits := plan.rawTrie.Scan(b)
			hits += len(rawHits)
			for _, h := range rawHits {
				kwIdx := plan.rawIdx[h.Pattern]
				if acceptsHit(plan.matchType[kwIdx], h.Begin, h.End, len(b)) {
					hit[kwIdx] = true
				}
			}
		}
		if plan.foldTrie != nil {
			folded := foldASCIIBytes(b)
			foldHits := plan.foldTrie.Scan(folded)
			hits += len(foldHits)
			for _, h := range foldHits {
				kwIdx := plan.foldIdx[h.Pattern]
				if acceptsHit(plan.matchType[kwIdx], h.Begin, h.End, len(folded)) {
					hit[kwIdx] = true
				}
			}
		}
	}
	if metrics != nil {
		metrics(hits)
	}

	for _, ok := range hit {
		if !ok {
			return false
		}
	}
	return true
}

// acceptsHit gates a raw Aho-Corasick hit through the keyword's own
// match type: StartWith requires the hit to begin at offset zero, and
// so on.
func acceptsHit(mt MatchType, begin, end, textLen int) bool {
	switch mt {
	case StartWith:
		return begin == 0
	case EndWith:
		return end == textLen
	case Equal:
		return begin == 0 && end == textLen
	default: // Contains
		return true
	}
}
