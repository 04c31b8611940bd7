// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cache

// ResolveMethod implements NameResolver: it looks up methodName/shorty
// among classDescriptor's own declared methods in this image. Requires
// FlagTypes|FlagFields|FlagMethods already populated; callers (the
// engine's cross-image fill) ensure that before resolving.
func (c *Cache) ResolveMethod(classDescriptor, methodName, shorty string) (uint32, bool) {
	classTypeID, ok := c.TypeIDByName[classDescriptor]
	if !ok || int(classTypeID) >= len(c.TypeDefFlag) || !c.TypeDefFlag[classTypeID] {
		return 0, false
	}
	for _, methodID := range c.ClassMethodIDs[classTypeID] {
		if int(methodID) >= len(c.View.MethodIDs) {
			continue
		}
		mid := c.View.MethodIDs[methodID]
		if c.View.StringAt(mid.NameIdx) != methodName {
			continue
		}
		if int(mid.ProtoIdx) >= len(c.View.ProtoIDs) {
			continue
		}
		if c.View.StringAt(c.View.ProtoIDs[mid.ProtoIdx].ShortyIdx) == shorty {
			return methodID, true
		}
	}
	return 0, false
}

// ResolveField implements NameResolver for fields: classDescriptor's own
// declared fields are searched by name (field descriptors never overload
// on type the way methods overload on shorty).
func (c *Cache) ResolveField(classDescriptor, fieldName string) (uint32, bool) {
	classTypeID, ok := c.TypeIDByName[classDescriptor]
	if !ok || int(classTypeID) >= len(c.TypeDefFlag) || !c.TypeDefFlag[classTypeID] {
		return 0, false
	}
	for _, fieldID := range c.ClassFieldIDs[classTypeID] {
		if int(fieldID) >= len(c.View.FieldIDs) {
			continue
		}
		if c.View.StringAt(c.View.FieldIDs[fieldID].NameIdx) == fieldName {
			return fieldID, true
		}
	}
	return 0, false
}
