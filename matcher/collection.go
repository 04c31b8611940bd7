// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package matcher

import "github.com/saferwall/dxscan/hungarian"

// matchCollection evaluates the shared count/list/match-type contract
// of every set-against-set matcher: count (if present)
// bounds len(items); list (if present) is Hungarian-matched against
// items via judge, injectively, and — when coll.MatchType is
// CollectionEqual — the match must additionally consume every item
// (len(items) == len(coll.List)). ctx may be nil for context-free
// matchers (encoded-value arrays); it is only consulted for metrics.
func matchCollection[P, I any](ctx *Context, coll *Collection[P], items []I, judge func(item I, pattern P) bool) bool {
	if coll == nil {
		return true
	}
	if coll.Count != nil && !isIntRangeMatched(coll.Count, int64(len(items))) {
		return false
	}
	if coll.List == nil {
		return true
	}
	var steps *int
	if ctx != nil && ctx.Metrics != nil {
		steps = new(int)
		defer func() { ctx.Metrics.HungarianDFSSteps.Add(float64(*steps)) }()
	}
	equalSize := coll.MatchType == CollectionEqual
	return hungarian.Satisfies(len(items), len(coll.List), func(item, pattern int) bool {
		return judge(items[item], coll.List[pattern])
	}, equalSize, steps)
}
