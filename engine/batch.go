// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package engine

import (
	"strings"
	"time"

	"github.com/saferwall/dxscan/ahocorasick"
	"github.com/saferwall/dxscan/cache"
	"github.com/saferwall/dxscan/matcher"
)

// BatchKey pairs a caller-chosen union key with the small set of string
// patterns that must all be present among a candidate's using-strings
// for it to belong to that key's result bucket.
type BatchKey struct {
	Key      string
	Patterns []*matcher.StringMatcher
}

type batchEntry struct {
	keyIdx    int
	matchType matcher.MatchType
}

// batchPlan is the combined-trie compilation of every key's pattern set:
// one pass of a candidate's using-strings against rawTrie/foldTrie yields
// hits against every key at once, instead of one scan per key.
type batchPlan struct {
	rawTrie, foldTrie *ahocorasick.Trie
	rawEntries        []batchEntry
	foldEntries       []batchEntry
	required          []int // per key index, count of distinct patterns required
	emptyKeys         []int // key indices whose pattern set includes the empty literal
}

func buildBatchPlan(keys []BatchKey) *batchPlan {
	p := &batchPlan{required: make([]int, len(keys))}
	var rawPatterns, foldPatterns [][]byte
	for ki, k := range keys {
		p.required[ki] = len(k.Patterns)
		for _, sm := range k.Patterns {
			lit, mt := sm.Value, sm.MatchType
			if mt == matcher.SimilarRegex {
				lit, mt = matcher.LowerSimilarRegex(lit)
			}
			if lit == "" {
				p.emptyKeys = append(p.emptyKeys, ki)
				continue
			}
			if sm.IgnoreCase {
				foldPatterns = append(foldPatterns, []byte(strings.ToLower(lit)))
				p.foldEntries = append(p.foldEntries, batchEntry{keyIdx: ki, matchType: mt})
			} else {
				rawPatterns = append(rawPatterns, []byte(lit))
				p.rawEntries = append(p.rawEntries, batchEntry{keyIdx: ki, matchType: mt})
			}
		}
	}
	if len(rawPatterns) > 0 {
		p.rawTrie = ahocorasick.Build(rawPatterns)
	}
	if len(foldPatterns) > 0 {
		p.foldTrie = ahocorasick.Build(foldPatterns)
	}
	return p
}

// match evaluates the plan against one candidate's decoded using-strings
// and returns the set of key indices fully satisfied.
func (p *batchPlan) match(strs []string) []int {
	satisfied := make(map[int]map[int]bool) // keyIdx -> set of pattern positions hit (raw entries by their index, fold entries offset past the raw ones, so each position is one pattern)
	satisfy := func(entries []batchEntry, idx, base int) {
		ki := entries[idx].keyIdx
		if satisfied[ki] == nil {
			satisfied[ki] = make(map[int]bool)
		}
		satisfied[ki][base+idx] = true
	}

	hasEmpty := false
	for _, s := range strs {
		if s == "" {
			hasEmpty = true
		}
		if p.rawTrie != nil {
			for _, h := range p.rawTrie.Scan([]byte(s)) {
				if acceptsBatchHit(p.rawEntries[h.Pattern].matchType, h.Begin, h.End, len(s)) {
					satisfy(p.rawEntries, h.Pattern, 0)
				}
			}
		}
		if p.foldTrie != nil {
			folded := strings.ToLower(s)
			for _, h := range p.foldTrie.Scan([]byte(folded)) {
				if acceptsBatchHit(p.foldEntries[h.Pattern].matchType, h.Begin, h.End, len(folded)) {
					satisfy(p.foldEntries, h.Pattern, len(p.rawEntries))
				}
			}
		}
	}

	var out []int
	for ki, need := range p.required {
		if need == 0 {
			continue
		}
		got := len(satisfied[ki])
		for _, ek := range p.emptyKeys {
			if ek == ki && hasEmpty {
				got++
			}
		}
		if got >= need {
			out = append(out, ki)
		}
	}
	return out
}

func acceptsBatchHit(typ matcher.MatchType, begin, end, textLen int) bool {
	switch typ {
	case matcher.StartWith:
		return begin == 0
	case matcher.EndWith:
		return end == textLen
	case matcher.Equal:
		return begin == 0 && end == textLen
	default:
		return true
	}
}

// BatchFindClassUsingStrings fans every defined class across every
// loaded image into the union keys whose patterns are all present among
// that class's (or its methods' union of) using-strings.
func (e *Engine) BatchFindClassUsingStrings(keys []BatchKey) (map[string][]ClassResult, error) {
	defer e.observeQuery("batch_class", time.Now())
	if err := e.ensureAll(cache.FlagTypes | cache.FlagStrings | cache.FlagFields | cache.FlagMethods |
		cache.FlagOpcodeSeq | cache.FlagUsingString); err != nil {
		return nil, err
	}
	plan := buildBatchPlan(keys)
	out := make(map[string][]ClassResult)
	for _, c := range e.Images() {
		for _, cd := range c.View.ClassDefs {
			strs := classUsingStringsPublic(c, cd.ClassIdx)
			for _, ki := range plan.match(strs) {
				out[keys[ki].Key] = append(out[keys[ki].Key], classResultFrom(c, cd.ClassIdx))
			}
		}
	}
	return out, nil
}

// BatchFindMethodUsingStrings is BatchFindClassUsingStrings for methods.
func (e *Engine) BatchFindMethodUsingStrings(keys []BatchKey) (map[string][]MethodResult, error) {
	defer e.observeQuery("batch_method", time.Now())
	if err := e.ensureAll(cache.FlagTypes | cache.FlagStrings | cache.FlagMethods | cache.FlagUsingString); err != nil {
		return nil, err
	}
	plan := buildBatchPlan(keys)
	out := make(map[string][]MethodResult)
	for _, c := range e.Images() {
		for methodID := range c.View.MethodIDs {
			ids := c.MethodUsingStringIDs[uint32(methodID)]
			strs := make([]string, len(ids))
			for i, sid := range ids {
				strs[i] = c.View.StringAt(sid)
			}
			for _, ki := range plan.match(strs) {
				out[keys[ki].Key] = append(out[keys[ki].Key], methodResultFrom(c, uint32(methodID)))
			}
		}
	}
	return out, nil
}

func classUsingStringsPublic(c *cache.Cache, classTypeID uint32) []string {
	var out []string
	for _, methodID := range c.ClassMethodIDs[classTypeID] {
		for _, sid := range c.MethodUsingStringIDs[methodID] {
			out = append(out, c.View.StringAt(sid))
		}
	}
	return out
}
