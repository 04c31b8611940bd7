// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cache

import "sync"

// NameResolver maps a class/method/field name from one image to the id
// it holds in this image, so a caller's "this method invokes that
// descriptor" edge can be turned into a genuine cross-image reference.
// *Cache implements it (see resolve.go); the engine finds the owning
// image through its name map and then resolves against that image's Cache.
type NameResolver interface {
	// ResolveMethod returns the method id matching classDescriptor/
	// methodName/shorty in this image, or false if this image never
	// declares it.
	ResolveMethod(classDescriptor, methodName, shorty string) (uint32, bool)
	// ResolveField returns the field id matching classDescriptor/
	// fieldName in this image, or false if this image never declares it.
	ResolveField(classDescriptor, fieldName string) (uint32, bool)
}

// crossRefShards hashes a target (imageID, id) pair down to one of a
// fixed 32-slot mutex pool, so PutCrossRef calls against unrelated
// targets across many goroutines rarely contend, without paying for one
// mutex per id. Fan-in is many-writers-one-target.
const crossRefShards = 32

var crossRefLocks [crossRefShards]sync.Mutex

func crossRefShard(imageID, id uint32) *sync.Mutex {
	h := imageID*2654435761 + id
	return &crossRefLocks[h%crossRefShards]
}

// PutCrossRef records that callerImageID's method callerMethodID invokes
// this cache's method targetMethodID, appending to MethodCallerIDs under
// the target's shard lock. Safe to call concurrently from many images'
// query workers against the same target cache.
func (c *Cache) PutCrossRef(targetMethodID uint32, callerImageID, callerMethodID uint32) {
	lock := crossRefShard(c.ImageID, targetMethodID)
	lock.Lock()
	defer lock.Unlock()
	c.MethodCallerIDs[targetMethodID] = append(c.MethodCallerIDs[targetMethodID],
		CrossRef{ImageID: callerImageID, ID: callerMethodID})
}

// PutFieldCrossRef records that callerImageID's method callerMethodID
// reads (isGet) or writes targetFieldID.
func (c *Cache) PutFieldCrossRef(targetFieldID uint32, callerImageID, callerMethodID uint32, isGet bool) {
	lock := crossRefShard(c.ImageID, targetFieldID)
	lock.Lock()
	defer lock.Unlock()
	ref := CrossRef{ImageID: callerImageID, ID: callerMethodID}
	if isGet {
		c.FieldGetMethodIDs[targetFieldID] = append(c.FieldGetMethodIDs[targetFieldID], ref)
	} else {
		c.FieldPutMethodIDs[targetFieldID] = append(c.FieldPutMethodIDs[targetFieldID], ref)
	}
}

// MarkCrossRefsBuilt records that cross-ref fan-in has run for this
// cache; it does not itself block later Put*CrossRef calls. The engine
// calls this once cross-ref fan-in for the whole image set completes,
// and refuses new images afterward with ErrCrossRefsAlreadyBuilt.
func (c *Cache) MarkCrossRefsBuilt() { c.crossRefsBuilt = true }

// CrossRefsBuilt reports whether MarkCrossRefsBuilt has run.
func (c *Cache) CrossRefsBuilt() bool { return c.crossRefsBuilt }
