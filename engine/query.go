// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/saferwall/dxscan/cache"
	"github.com/saferwall/dxscan/matcher"
	"github.com/saferwall/dxscan/matcher/memo"
)

// FindClass evaluates m against every defined class across every
// loaded image, honoring Options.
func (e *Engine) FindClass(m *matcher.ClassMatcher, opts Options) ([]ClassResult, error) {
	defer e.observeQuery("class", time.Now())
	req := matcher.AnalyzeClass(m)
	if err := e.ensureAll(req.Flags); err != nil {
		return nil, err
	}
	trie := opts.packageTrie()
	inClasses := scopeSet(opts.InClasses)

	accept := func(c *cache.Cache, classTypeID uint32) bool {
		if inClasses != nil {
			if _, ok := inClasses[EncodeID(c.ImageID, classTypeID)]; !ok {
				return false
			}
		}
		if trie != nil && !trie.Accept(c.TypeName[classTypeID]) {
			return false
		}
		if opts.SourceFile != "" && c.ClassSourceFile[classTypeID] != opts.SourceFile {
			return false
		}
		return true
	}

	var results []ClassResult
	var mu sync.Mutex
	emit := func(c *cache.Cache, classTypeID uint32) {
		mu.Lock()
		results = append(results, classResultFrom(c, classTypeID))
		mu.Unlock()
	}

	if req.HasFastPath {
		if c, ok := e.imageForType(req.FastPathClassName); ok {
			classTypeID := c.TypeIDByName[req.FastPathClassName]
			ctx := &matcher.Context{Images: e, Memo: memo.New(), Metrics: e.metrics}
			if accept(c, classTypeID) && matcher.MatchClass(ctx, c.ImageID, classTypeID, m) {
				emit(c, classTypeID)
			}
		}
		return dedupeClasses(results), nil
	}

	e.pool.Reset()
	var found atomic.Bool
	var wg sync.WaitGroup
	for _, c := range e.Images() {
		c := c
		ids := make([]uint32, len(c.View.ClassDefs))
		for i, cd := range c.View.ClassDefs {
			ids[i] = cd.ClassIdx
		}
		sliceBatches(len(ids), func(start, end int) {
			batch := ids[start:end]
			wg.Add(1)
			e.pool.Submit(func(skipped func() bool) {
				defer wg.Done()
				if opts.FindFirst && skipped() {
					e.countSkip()
					return
				}
				ctx := &matcher.Context{Images: e, Memo: memo.New(), Metrics: e.metrics}
				for _, classTypeID := range batch {
					if opts.FindFirst && found.Load() {
						return
					}
					if !accept(c, classTypeID) {
						continue
					}
					if matcher.MatchClass(ctx, c.ImageID, classTypeID, m) {
						emit(c, classTypeID)
						if opts.FindFirst {
							found.Store(true)
							e.pool.SkipUnstarted()
							return
						}
					}
				}
			})
		})
	}
	wg.Wait()
	return dedupeClasses(results), nil
}

// FindMethod is FindClass over method ids.
func (e *Engine) FindMethod(m *matcher.MethodMatcher, opts Options) ([]MethodResult, error) {
	defer e.observeQuery("method", time.Now())
	req := matcher.AnalyzeMethod(m)
	if err := e.ensureAll(req.Flags); err != nil {
		return nil, err
	}
	inMethods := scopeSet(opts.InMethods)
	trie := opts.packageTrie()

	accept := func(c *cache.Cache, methodID uint32) bool {
		if inMethods != nil {
			if _, ok := inMethods[EncodeID(c.ImageID, methodID)]; !ok {
				return false
			}
		}
		if trie != nil {
			mid := c.View.MethodIDs[methodID]
			if !trie.Accept(c.TypeName[mid.ClassIdx]) {
				return false
			}
		}
		return true
	}

	var results []MethodResult
	var mu sync.Mutex
	emit := func(c *cache.Cache, methodID uint32) {
		// Canonicalize a matched reference row onto the declaring
		// image's own entry; a row whose declaring class is loaded
		// nowhere names a phantom (framework reference) and is dropped.
		if xref, ok := c.MethodCrossInfo[methodID]; ok {
			if target := e.CacheFor(xref.ImageID); target != nil {
				c, methodID = target, xref.ID
			}
		} else if !declaresMethod(c, methodID) {
			return
		}
		mu.Lock()
		results = append(results, methodResultFrom(c, methodID))
		mu.Unlock()
	}

	if req.HasFastPath {
		if c, ok := e.imageForType(req.FastPathClassName); ok {
			classTypeID := c.TypeIDByName[req.FastPathClassName]
			ctx := &matcher.Context{Images: e, Memo: memo.New(), Metrics: e.metrics}
			for _, methodID := range c.ClassMethodIDs[classTypeID] {
				if accept(c, methodID) && matcher.MatchMethod(ctx, c.ImageID, methodID, m) {
					emit(c, methodID)
				}
			}
		}
		return dedupeMethods(results), nil
	}

	e.pool.Reset()
	var found atomic.Bool
	var wg sync.WaitGroup
	for _, c := range e.Images() {
		c := c
		n := len(c.View.MethodIDs)
		sliceBatches(n, func(start, end int) {
			wg.Add(1)
			e.pool.Submit(func(skipped func() bool) {
				defer wg.Done()
				if opts.FindFirst && skipped() {
					e.countSkip()
					return
				}
				ctx := &matcher.Context{Images: e, Memo: memo.New(), Metrics: e.metrics}
				for methodID := uint32(start); methodID < uint32(end); methodID++ {
					if opts.FindFirst && found.Load() {
						return
					}
					if !accept(c, methodID) {
						continue
					}
					if matcher.MatchMethod(ctx, c.ImageID, methodID, m) {
						emit(c, methodID)
						if opts.FindFirst {
							found.Store(true)
							e.pool.SkipUnstarted()
							return
						}
					}
				}
			})
		})
	}
	wg.Wait()
	return dedupeMethods(results), nil
}

// FindField is FindClass over field ids.
func (e *Engine) FindField(m *matcher.FieldMatcher, opts Options) ([]FieldResult, error) {
	defer e.observeQuery("field", time.Now())
	req := matcher.AnalyzeField(m)
	if err := e.ensureAll(req.Flags); err != nil {
		return nil, err
	}
	inFields := scopeSet(opts.InFields)
	trie := opts.packageTrie()

	accept := func(c *cache.Cache, fieldID uint32) bool {
		if inFields != nil {
			if _, ok := inFields[EncodeID(c.ImageID, fieldID)]; !ok {
				return false
			}
		}
		if trie != nil {
			fid := c.View.FieldIDs[fieldID]
			if !trie.Accept(c.TypeName[fid.ClassIdx]) {
				return false
			}
		}
		return true
	}

	var results []FieldResult
	var mu sync.Mutex
	emit := func(c *cache.Cache, fieldID uint32) {
		if xref, ok := c.FieldCrossInfo[fieldID]; ok {
			if target := e.CacheFor(xref.ImageID); target != nil {
				c, fieldID = target, xref.ID
			}
		} else if !declaresField(c, fieldID) {
			return
		}
		mu.Lock()
		results = append(results, fieldResultFrom(c, fieldID))
		mu.Unlock()
	}

	if req.HasFastPath {
		if c, ok := e.imageForType(req.FastPathClassName); ok {
			classTypeID := c.TypeIDByName[req.FastPathClassName]
			ctx := &matcher.Context{Images: e, Memo: memo.New(), Metrics: e.metrics}
			for _, fieldID := range c.ClassFieldIDs[classTypeID] {
				if accept(c, fieldID) && matcher.MatchField(ctx, c.ImageID, fieldID, m) {
					emit(c, fieldID)
				}
			}
		}
		return dedupeFields(results), nil
	}

	e.pool.Reset()
	var found atomic.Bool
	var wg sync.WaitGroup
	for _, c := range e.Images() {
		c := c
		n := len(c.View.FieldIDs)
		sliceBatches(n, func(start, end int) {
			wg.Add(1)
			e.pool.Submit(func(skipped func() bool) {
				defer wg.Done()
				if opts.FindFirst && skipped() {
					e.countSkip()
					return
				}
				ctx := &matcher.Context{Images: e, Memo: memo.New(), Metrics: e.metrics}
				for fieldID := uint32(start); fieldID < uint32(end); fieldID++ {
					if opts.FindFirst && found.Load() {
						return
					}
					if !accept(c, fieldID) {
						continue
					}
					if matcher.MatchField(ctx, c.ImageID, fieldID, m) {
						emit(c, fieldID)
						if opts.FindFirst {
							found.Store(true)
							e.pool.SkipUnstarted()
							return
						}
					}
				}
			})
		})
	}
	wg.Wait()
	return dedupeFields(results), nil
}

// declaresMethod reports whether c's own image declares methodID's class.
func declaresMethod(c *cache.Cache, methodID uint32) bool {
	if int(methodID) >= len(c.View.MethodIDs) {
		return false
	}
	classIdx := c.View.MethodIDs[methodID].ClassIdx
	return int(classIdx) < len(c.TypeDefFlag) && c.TypeDefFlag[classIdx]
}

// declaresField is declaresMethod for field ids.
func declaresField(c *cache.Cache, fieldID uint32) bool {
	if int(fieldID) >= len(c.View.FieldIDs) {
		return false
	}
	classIdx := c.View.FieldIDs[fieldID].ClassIdx
	return int(classIdx) < len(c.TypeDefFlag) && c.TypeDefFlag[classIdx]
}

// sliceBatches invokes fn(start, end) for each ≈BatchSize-sized slice
// of [0, n).
func sliceBatches(n int, fn func(start, end int)) {
	for start := 0; start < n; start += BatchSize {
		end := start + BatchSize
		if end > n {
			end = n
		}
		fn(start, end)
	}
}

func (e *Engine) countSkip() {
	if e.metrics != nil {
		e.metrics.TasksSkipped.Inc()
	}
}
