// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cache

import "github.com/saferwall/dxscan/image"

// wellKnownIDs caches the type ids of the retention-policy and
// target-element annotation descriptors an AnnotationMatcher's policy
// and target filters resolve against, resolved once per image instead
// of on every evaluation.
type wellKnownIDs struct {
	retentionPolicy int32 // java.lang.annotation.RetentionPolicy enum type, -1 if absent
	target          int32 // java.lang.annotation.Target annotation type, -1 if absent
	retention       int32 // java.lang.annotation.Retention annotation type, -1 if absent
}

func (c *Cache) findWellKnownIDs() {
	c.wellKnown = wellKnownIDs{retentionPolicy: -1, target: -1, retention: -1}
	for _, want := range []struct {
		name string
		dst  *int32
	}{
		{"Ljava/lang/annotation/RetentionPolicy;", &c.wellKnown.retentionPolicy},
		{"Ljava/lang/annotation/Target;", &c.wellKnown.target},
		{"Ljava/lang/annotation/Retention;", &c.wellKnown.retention},
	} {
		if id, ok := c.TypeIDByName[want.name]; ok {
			*want.dst = int32(id)
		}
	}
}

// WellKnownRetentionPolicyType returns the resolved type id of
// java.lang.annotation.RetentionPolicy, or false if this image never
// references it.
func (c *Cache) WellKnownRetentionPolicyType() (uint32, bool) {
	if c.wellKnown.retentionPolicy < 0 {
		return 0, false
	}
	return uint32(c.wellKnown.retentionPolicy), true
}

// WellKnownTargetType returns the resolved type id of
// java.lang.annotation.Target, or false if this image never references
// it.
func (c *Cache) WellKnownTargetType() (uint32, bool) {
	if c.wellKnown.target < 0 {
		return 0, false
	}
	return uint32(c.wellKnown.target), true
}

// WellKnownRetentionType returns the resolved type id of
// java.lang.annotation.Retention, or false if this image never
// references it.
func (c *Cache) WellKnownRetentionType() (uint32, bool) {
	if c.wellKnown.retention < 0 {
		return 0, false
	}
	return uint32(c.wellKnown.retention), true
}

// buildAnnotationIndex is the annotation directory fan-out: for every
// class-def with an annotations offset, split
// its decoded AnnotationsDirectory into the four per-entity tables
// matchers read (class/field/method/parameter), so a ClassAnnotation/
// FieldAnnotation/MethodAnnotation/ParameterAnnotation matcher never
// has to walk the directory itself.
func (c *Cache) buildAnnotationIndex() {
	for _, cd := range c.View.ClassDefs {
		dir := c.View.AnnotationsAt(cd.AnnotationsOffset)
		if dir == nil {
			continue
		}
		if dir.Class != nil {
			c.ClassAnnotations[cd.ClassIdx] = dir.Class
		}
		for fieldID, set := range dir.Fields {
			c.FieldAnnotations[fieldID] = set
		}
		for methodID, set := range dir.Methods {
			c.MethodAnnotations[methodID] = set
		}
		for methodID, sets := range dir.Parameters {
			c.MethodParameterAnnotations[methodID] = sets
		}
	}
}

// ResolveEnumValue decodes a ValueEnum encoded-value into the enum
// constant's own field name, the one piece of an EncodedValue an
// AnnotationElementMatcher's literal comparison actually needs.
func (c *Cache) ResolveEnumValue(v *image.EncodedValue) string {
	if v.Tag != image.ValueEnum {
		return ""
	}
	fieldID := uint32(v.Int)
	if int(fieldID) >= len(c.fieldNameCache()) {
		return ""
	}
	return c.fieldNames[fieldID]
}

// fieldNameCache lazily builds a field-id -> name lookup the first time
// an enum value needs decoding; most queries never touch annotation
// elements at all, so this table is not part of the eager type index.
func (c *Cache) fieldNameCache() []string {
	if c.fieldNames != nil {
		return c.fieldNames
	}
	names := make([]string, len(c.View.FieldIDs))
	for i, f := range c.View.FieldIDs {
		names[i] = c.View.StringAt(f.NameIdx)
	}
	c.fieldNames = names
	return names
}
