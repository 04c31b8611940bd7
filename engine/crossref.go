// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package engine

import (
	"sync"

	"github.com/saferwall/dxscan/cache"
	"github.com/saferwall/dxscan/dxerr"
)

// BuildCrossRefs fills the cross-image tables: it resolves every
// method-id/field-id table entry across every loaded image whose
// declaring class is defined in a *different* loaded image, then fans
// the caller and field-use tables into the declaring
// image. It first initializes every image for method-invoking and
// using-field (the categories the fan-in walk reads), and refuses to
// run twice.
func (e *Engine) BuildCrossRefs() error {
	e.crossRefMu.Lock()
	defer e.crossRefMu.Unlock()
	if e.crossRefsDone {
		return dxerr.ErrCrossRefsAlreadyBuilt
	}

	need := cache.FlagTypes | cache.FlagStrings | cache.FlagFields | cache.FlagMethods |
		cache.FlagMethodInvoking | cache.FlagUsingField
	if err := e.ensureAll(need); err != nil {
		return err
	}

	images := e.Images()
	for _, c := range images {
		e.resolveCrossInfo(c)
	}

	var wg sync.WaitGroup
	wg.Add(len(images))
	for _, c := range images {
		c := c
		e.pool.Submit(func(skipped func() bool) {
			defer wg.Done()
			e.fanIn(c, images)
		})
	}
	wg.Wait()

	for _, c := range images {
		c.MarkCrossRefsBuilt()
	}
	e.mu.Lock()
	e.crossRefsDone = true
	e.mu.Unlock()
	e.debugf("cross-image references built across %d image(s)", len(images))
	return nil
}

// resolveCrossInfo populates c.MethodCrossInfo/FieldCrossInfo for every
// method-id/field-id entry in c's own tables whose declaring class isn't
// defined in c, by asking the declaring image (found via the name map)
// to resolve the same name+shorty/name among its own declarations.
func (e *Engine) resolveCrossInfo(c *cache.Cache) {
	for methodID, mid := range c.View.MethodIDs {
		if int(mid.ClassIdx) < len(c.TypeDefFlag) && c.TypeDefFlag[mid.ClassIdx] {
			continue // declared locally, no redirect needed
		}
		descriptor := c.TypeName[mid.ClassIdx]
		owner, ok := e.imageForType(descriptor)
		if !ok || owner.ImageID == c.ImageID {
			continue
		}
		name := c.View.StringAt(mid.NameIdx)
		var shorty string
		if int(mid.ProtoIdx) < len(c.View.ProtoIDs) {
			shorty = c.View.StringAt(c.View.ProtoIDs[mid.ProtoIdx].ShortyIdx)
		}
		if targetID, ok := owner.ResolveMethod(descriptor, name, shorty); ok {
			c.MethodCrossInfo[uint32(methodID)] = cache.CrossRef{ImageID: owner.ImageID, ID: targetID}
		}
	}
	for fieldID, fid := range c.View.FieldIDs {
		if int(fid.ClassIdx) < len(c.TypeDefFlag) && c.TypeDefFlag[fid.ClassIdx] {
			continue
		}
		descriptor := c.TypeName[fid.ClassIdx]
		owner, ok := e.imageForType(descriptor)
		if !ok || owner.ImageID == c.ImageID {
			continue
		}
		name := c.View.StringAt(fid.NameIdx)
		if targetID, ok := owner.ResolveField(descriptor, name); ok {
			c.FieldCrossInfo[uint32(fieldID)] = cache.CrossRef{ImageID: owner.ImageID, ID: targetID}
		}
	}
}

// fanIn walks c's own method-invoking and using-field derived indices,
// and for every reference that redirects to another image (per
// resolveCrossInfo), pushes a caller edge into that image's
// MethodCallerIDs / Field{Get,Put}MethodIDs.
func (e *Engine) fanIn(c *cache.Cache, images []*cache.Cache) {
	byID := make(map[uint32]*cache.Cache, len(images))
	for _, img := range images {
		byID[img.ImageID] = img
	}
	for methodID, invoked := range c.MethodInvokingIDs {
		for _, targetLocalID := range invoked {
			xref, ok := c.MethodCrossInfo[targetLocalID]
			if !ok {
				continue
			}
			target := byID[xref.ImageID]
			if target == nil {
				continue
			}
			target.PutCrossRef(xref.ID, c.ImageID, uint32(methodID))
		}
	}
	for methodID, uses := range c.MethodUsingFieldIDs {
		for _, use := range uses {
			xref, ok := c.FieldCrossInfo[use.FieldID]
			if !ok {
				continue
			}
			target := byID[xref.ImageID]
			if target == nil {
				continue
			}
			target.PutFieldCrossRef(xref.ID, c.ImageID, uint32(methodID), use.IsGet)
		}
	}
}
