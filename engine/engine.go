// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package engine is the query driver and cross-image resolver: the
// Engine type owns the set of loaded images, drives the find and
// batch-find queries over a fixed workpool.Pool, and fills the
// cross-image tables once every image's prerequisite flags are ready.
package engine

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/saferwall/dxscan/cache"
	"github.com/saferwall/dxscan/dxerr"
	"github.com/saferwall/dxscan/image"
	"github.com/saferwall/dxscan/internal/dxlog"
	"github.com/saferwall/dxscan/internal/metrics"
	"github.com/saferwall/dxscan/workpool"
)

// BatchSize is the default work-slicing unit: each fan-out task
// evaluates the matcher over at most this many class-defs/method-ids/
// field-ids before appending its slice of matches.
const BatchSize = 5000

// EncodeID packs an image id and a local (type/method/field) id into
// the opaque u64 result-bean id surfaced at the engine boundary.
func EncodeID(imageID, localID uint32) uint64 {
	return uint64(imageID)<<32 | uint64(localID)
}

// DecodeID splits an encoded id back into its image id and local id.
func DecodeID(id uint64) (imageID, localID uint32) {
	return uint32(id >> 32), uint32(id)
}

// Config carries per-engine construction options. The zero value (or a
// nil pointer) selects the defaults documented on each field.
type Config struct {
	// PoolSize is the worker pool size; 0 means hardware parallelism
	// (runtime.NumCPU).
	PoolSize int
	// UniqueResult deduplicates invocation and field-use accessor
	// results per caller: a method that invokes the same target twice
	// reports it once.
	UniqueResult bool
}

// Engine owns every loaded image's cache and drives queries across them.
type Engine struct {
	pool         *workpool.Pool
	metrics      *metrics.Collectors
	logger       *dxlog.Helper
	uniqueResult bool

	mu       sync.RWMutex
	images   []*cache.Cache
	byID     map[uint32]*cache.Cache
	nameToID map[string]uint32 // first-declaring-image wins, stable per name

	crossRefMu    sync.Mutex
	crossRefsDone bool
}

// New builds an Engine with the default Config. m may be nil to disable
// metrics.
func New(m *metrics.Collectors) *Engine {
	return NewWithConfig(m, nil)
}

// NewWithConfig builds an Engine with an explicit Config; cfg may be nil
// for the defaults.
func NewWithConfig(m *metrics.Collectors, cfg *Config) *Engine {
	poolSize := runtime.NumCPU()
	unique := false
	if cfg != nil {
		if cfg.PoolSize > 0 {
			poolSize = cfg.PoolSize
		}
		unique = cfg.UniqueResult
	}
	return &Engine{
		pool:         workpool.New(poolSize),
		metrics:      m,
		uniqueResult: unique,
		byID:         make(map[uint32]*cache.Cache),
		nameToID:     make(map[string]uint32),
	}
}

// SetLogger installs l as the engine's log sink. The default is no
// logging at all; the CLI installs a level-filtered stderr logger that
// lets debug lines through only when run with --verbose.
func (e *Engine) SetLogger(l dxlog.Logger) {
	e.logger = dxlog.NewHelper(l)
}

func (e *Engine) debugf(format string, a ...interface{}) {
	if e.logger != nil {
		e.logger.Debugf(format, a...)
	}
}

func (e *Engine) infof(format string, a ...interface{}) {
	if e.logger != nil {
		e.logger.Infof(format, a...)
	}
}

// Close shuts down the engine's worker pool and releases every image's
// memory mapping.
func (e *Engine) Close() error {
	e.pool.Close()
	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for _, c := range e.images {
		if err := c.View.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// AddImage opens path, assigns it the next image id in insertion order,
// and populates the name map and minimal type skeleton. It refuses with
// ErrCrossRefsAlreadyBuilt once BuildCrossRefs has run — growing the
// image set after cross-refs are filled would leave them stale.
func (e *Engine) AddImage(path string) (uint32, error) {
	view, err := image.Open(path)
	if err != nil {
		return 0, err
	}
	return e.addView(view)
}

// AddImageBytes is AddImage for an already-extracted in-memory image (an
// archive member the caller has unpacked itself).
func (e *Engine) AddImageBytes(data []byte) (uint32, error) {
	view, err := image.NewBytes(data)
	if err != nil {
		return 0, err
	}
	return e.addView(view)
}

func (e *Engine) addView(view *image.View) (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.crossRefsDone {
		return 0, dxerr.ErrCrossRefsAlreadyBuilt
	}
	imageID := uint32(len(e.images))
	c := cache.New(imageID, view, e.metrics)
	if err := c.InitCache(cache.FlagStrings | cache.FlagTypes); err != nil {
		return 0, err
	}
	e.images = append(e.images, c)
	e.byID[imageID] = c
	for name, typeID := range c.TypeIDByName {
		if !c.TypeDefFlag[typeID] {
			continue
		}
		if _, exists := e.nameToID[name]; !exists {
			e.nameToID[name] = imageID
		}
	}
	e.infof("image %d loaded: %d types, %d methods, %d class-defs",
		imageID, len(view.TypeIDs), len(view.MethodIDs), len(view.ClassDefs))
	return imageID, nil
}

// CacheFor implements matcher.ImageSet.
func (e *Engine) CacheFor(imageID uint32) *cache.Cache {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.byID[imageID]
}

// Images returns the current image set, in insertion order. The returned
// slice is owned by the caller; the engine never mutates it in place.
func (e *Engine) Images() []*cache.Cache {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*cache.Cache, len(e.images))
	copy(out, e.images)
	return out
}

// imageForType resolves a class/interface descriptor to the image that
// declares it. ok is false if no loaded image declares that type.
func (e *Engine) imageForType(descriptor string) (*cache.Cache, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	imageID, ok := e.nameToID[descriptor]
	if !ok {
		return nil, false
	}
	return e.byID[imageID], true
}

// ensureAll calls InitCache(want) on every currently-loaded image,
// fanning out across the pool. Query operations always call this before
// evaluating a single matcher node: a find is launched only after all
// requested flags on all images are ready.
func (e *Engine) ensureAll(want cache.Flags) error {
	if want.Any(cache.FlagCallerMethod | cache.FlagRWFieldMethod) {
		e.mu.RLock()
		done := e.crossRefsDone
		e.mu.RUnlock()
		if !done {
			if err := e.BuildCrossRefs(); err != nil && err != dxerr.ErrCrossRefsAlreadyBuilt {
				return err
			}
		}
	}

	images := e.Images()
	errs := make([]error, len(images))
	var wg sync.WaitGroup
	wg.Add(len(images))
	for i, c := range images {
		i, c := i, c
		e.pool.Submit(func(skipped func() bool) {
			defer wg.Done()
			errs[i] = c.InitCache(want)
		})
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// ExportImage writes imageID's raw bytes to path, so an image extracted
// from an archive in memory can be materialized for other tools. A
// failed write surfaces as ErrWriteFailure; the destination may hold a
// partial file.
func (e *Engine) ExportImage(imageID uint32, path string) error {
	c := e.CacheFor(imageID)
	if c == nil {
		return dxerr.ErrImageNotFound
	}
	if err := os.WriteFile(path, c.View.Data(), 0644); err != nil {
		return fmt.Errorf("%w: %v", dxerr.ErrWriteFailure, err)
	}
	return nil
}

// observeQuery records one find_* query's end-to-end latency.
func (e *Engine) observeQuery(kind string, start time.Time) {
	if e.metrics != nil {
		e.metrics.QuerySeconds.With(prometheus.Labels{"kind": kind}).
			Observe(time.Since(start).Seconds())
	}
}
