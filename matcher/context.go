// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package matcher

import (
	"github.com/saferwall/dxscan/cache"
	"github.com/saferwall/dxscan/internal/metrics"
	"github.com/saferwall/dxscan/matcher/memo"
)

// ImageSet is the minimal surface the evaluator needs from whatever owns
// the engine's image collection: a cache lookup by id. The engine's
// Engine type is the production implementation; tests can supply a
// trivial map-backed one.
type ImageSet interface {
	CacheFor(imageID uint32) *cache.Cache
}

// Context threads everything one evaluation run shares: the image
// collection, this worker's memo store (see matcher/memo), and the
// metrics collectors evaluation increments.
type Context struct {
	Images  ImageSet
	Memo    *memo.Store
	Metrics *metrics.Collectors
}

func (ctx *Context) countEval() {
	if ctx.Metrics != nil {
		ctx.Metrics.MatcherEvaluations.Inc()
	}
}
