// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package matcher

import "github.com/saferwall/dxscan/matcher/memo"

// getOrBuildPlan returns the Aho-Corasick acceleration plan for node's
// using-strings list, building and memoizing it on first touch by this
// worker's memo store. node is the matcher struct's own pointer (e.g.
// *ClassMatcher), so the cache key is identity, not structural equality
// of the pattern slice.
func getOrBuildPlan(ctx *Context, node any, patterns []*StringMatcher) *usingStringsPlan {
	return memo.GetOrCompute[*usingStringsPlan](ctx.Memo, node, func() *usingStringsPlan {
		return buildUsingStringsPlan(patterns)
	})
}

// reportACHits returns a callback evalUsingStrings invokes with the
// number of raw trie hits produced by one scan, wired to the shared
// ahocorasick.hits_total counter; nil when no metrics collectors are
// configured so the caller can skip the call entirely.
func reportACHits(ctx *Context) func(int) {
	if ctx.Metrics == nil {
		return nil
	}
	return func(n int) { ctx.Metrics.ACTrieHits.Add(float64(n)) }
}
