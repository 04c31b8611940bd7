// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package cache holds the image cache: the set of lazily-populated,
// per-image derived indices every matcher evaluation reads through. It
// owns the one mutex per image that serializes InitCache, and the flag
// word that lets a second InitCache call for a flag set already
// satisfied observe "done" without retaking the lock.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/saferwall/dxscan/bytecode"
	"github.com/saferwall/dxscan/image"
	"github.com/saferwall/dxscan/internal/metrics"
)

// FieldUse pairs a referenced field id with whether the reference was a
// read (iget/sget) or a write (iput/sput).
type FieldUse struct {
	FieldID uint32
	IsGet   bool
}

// CrossRef names a method or field belonging to another image.
type CrossRef struct {
	ImageID uint32
	ID      uint32
}

// Cache holds every derived index for exactly one image.
type Cache struct {
	ImageID uint32
	View    *image.View
	Metrics *metrics.Collectors

	mu   sync.Mutex
	done atomic.Uint32 // Flags bitmask of categories fully populated

	TypeName       []string
	TypeArrayCount []int
	TypeIDByName   map[string]uint32
	TypeDefFlag    []bool
	TypeDefIdx     []int32 // -1 if not defined here

	ClassInterfaces  map[uint32][]uint32
	ClassSourceFile  map[uint32]string
	ClassAccessFlags map[uint32]uint32
	ClassSuperclass  map[uint32]uint32 // NoIndex (^uint32(0)) if none
	ClassFieldIDs    map[uint32][]uint32
	ClassMethodIDs   map[uint32][]uint32

	FieldAccessFlags  map[uint32]uint32
	MethodAccessFlags map[uint32]uint32
	MethodCode        map[uint32]*image.CodeItem

	MethodOpcodeSeq      map[uint32][]bytecode.Opcode
	MethodUsingStringIDs map[uint32][]uint32
	MethodInvokingIDs    map[uint32][]uint32
	MethodUsingFieldIDs  map[uint32][]FieldUse
	MethodUsingNumbers   map[uint32][]bytecode.Number

	ClassAnnotations           map[uint32]*image.AnnotationSet
	MethodAnnotations          map[uint32]*image.AnnotationSet
	FieldAnnotations           map[uint32]*image.AnnotationSet
	MethodParameterAnnotations map[uint32][]*image.AnnotationSet

	// Cross-image tables: empty until PutCrossRef runs.
	MethodCallerIDs   map[uint32][]CrossRef
	FieldGetMethodIDs map[uint32][]CrossRef
	FieldPutMethodIDs map[uint32][]CrossRef
	MethodCrossInfo   map[uint32]CrossRef
	FieldCrossInfo    map[uint32]CrossRef
	crossRefsBuilt    bool

	wellKnown  wellKnownIDs
	fieldNames []string // lazy, built on first enum-value resolution
}

// New builds an empty Cache over view. Call InitCache before reading any
// derived index.
func New(imageID uint32, view *image.View, m *metrics.Collectors) *Cache {
	return &Cache{
		ImageID:                    imageID,
		View:                       view,
		Metrics:                    m,
		TypeIDByName:               make(map[string]uint32),
		ClassInterfaces:            make(map[uint32][]uint32),
		ClassSourceFile:            make(map[uint32]string),
		ClassAccessFlags:           make(map[uint32]uint32),
		ClassSuperclass:            make(map[uint32]uint32),
		ClassFieldIDs:              make(map[uint32][]uint32),
		ClassMethodIDs:             make(map[uint32][]uint32),
		FieldAccessFlags:           make(map[uint32]uint32),
		MethodAccessFlags:          make(map[uint32]uint32),
		MethodCode:                 make(map[uint32]*image.CodeItem),
		MethodOpcodeSeq:            make(map[uint32][]bytecode.Opcode),
		MethodUsingStringIDs:       make(map[uint32][]uint32),
		MethodInvokingIDs:          make(map[uint32][]uint32),
		MethodUsingFieldIDs:        make(map[uint32][]FieldUse),
		MethodUsingNumbers:         make(map[uint32][]bytecode.Number),
		ClassAnnotations:           make(map[uint32]*image.AnnotationSet),
		MethodAnnotations:          make(map[uint32]*image.AnnotationSet),
		FieldAnnotations:           make(map[uint32]*image.AnnotationSet),
		MethodParameterAnnotations: make(map[uint32][]*image.AnnotationSet),
		MethodCallerIDs:            make(map[uint32][]CrossRef),
		FieldGetMethodIDs:          make(map[uint32][]CrossRef),
		FieldPutMethodIDs:          make(map[uint32][]CrossRef),
		MethodCrossInfo:            make(map[uint32]CrossRef),
		FieldCrossInfo:             make(map[uint32]CrossRef),
	}
}

// NeedInitCache reports whether any category in want is still missing.
func (c *Cache) NeedInitCache(want Flags) bool {
	return Flags(c.done.Load())&want != want
}

// InitCache idempotently populates every derived index category named in
// want that isn't already built. Concurrent callers serialize on c.mu;
// the done bitset is updated last, under the lock, so a reader that finds
// it already satisfied never takes the lock at all.
func (c *Cache) InitCache(want Flags) error {
	if !c.NeedInitCache(want) {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	have := Flags(c.done.Load())
	missing := want &^ have
	if missing == 0 {
		return nil
	}

	if missing.Any(FlagStrings | FlagTypes) {
		start := time.Now()
		c.buildTypeIndex()
		c.observe("types", start)
	}
	// FlagProtos needs no build step: proto_type_list is read straight
	// off image.View.ProtoIDs, never copied into the cache.
	if missing.Any(classDataFlags) {
		start := time.Now()
		if err := c.walkClassData(missing); err != nil {
			return err
		}
		c.observe("classdata", start)
	}
	if missing.Any(FlagClassAnnotation | FlagFieldAnnotation | FlagMethodAnnotation | FlagParameterAnnotation) {
		start := time.Now()
		c.buildAnnotationIndex()
		c.observe("annotations", start)
	}

	c.done.Store(uint32(have | missing))
	return nil
}

func (c *Cache) observe(category string, start time.Time) {
	if c.Metrics == nil {
		return
	}
	c.Metrics.CacheBuildSeconds.With(prometheus.Labels{"category": category}).
		Observe(time.Since(start).Seconds())
}

func (c *Cache) buildTypeIndex() {
	n := len(c.View.TypeIDs)
	c.TypeName = make([]string, n)
	c.TypeArrayCount = make([]int, n)
	c.TypeDefFlag = make([]bool, n)
	c.TypeDefIdx = make([]int32, n)
	for i := range c.TypeDefIdx {
		c.TypeDefIdx[i] = -1
	}
	for t := 0; t < n; t++ {
		name := c.View.TypeName(uint32(t))
		c.TypeName[t] = name
		c.TypeArrayCount[t] = leadingArrayRank(name)
		c.TypeIDByName[name] = uint32(t)
	}
	for i, cd := range c.View.ClassDefs {
		if int(cd.ClassIdx) < n {
			c.TypeDefFlag[cd.ClassIdx] = true
			c.TypeDefIdx[cd.ClassIdx] = int32(i)
		}
		c.ClassInterfaces[cd.ClassIdx] = cd.Interfaces
		c.ClassSourceFile[cd.ClassIdx] = c.View.StringAt(cd.SourceFileIdx)
		c.ClassAccessFlags[cd.ClassIdx] = cd.AccessFlags
		c.ClassSuperclass[cd.ClassIdx] = cd.SuperclassIdx
	}
	c.findWellKnownIDs()
}

func leadingArrayRank(descriptor string) int {
	n := 0
	for n < len(descriptor) && descriptor[n] == '[' {
		n++
	}
	return n
}
