// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package matcher

import (
	"github.com/saferwall/dxscan/cache"
	"github.com/saferwall/dxscan/image"
)

// isAnnotationsMatchedForSet evaluates an AnnotationsMatcher against a
// (possibly nil, meaning "no annotations recorded") AnnotationSet.
func isAnnotationsMatchedForSet(ctx *Context, imageID uint32, set *image.AnnotationSet, m *AnnotationsMatcher) bool {
	if m == nil {
		return true
	}
	var items []image.AnnotationItem
	if set != nil {
		items = set.Items
	}
	return matchCollection(ctx, m, items, func(item image.AnnotationItem, pattern *AnnotationMatcher) bool {
		return isAnnotationMatched(ctx, imageID, item, pattern)
	})
}

// isAnnotationMatched evaluates a single AnnotationMatcher against one
// decoded AnnotationItem.
func isAnnotationMatched(ctx *Context, imageID uint32, item image.AnnotationItem, m *AnnotationMatcher) bool {
	if m == nil {
		return true
	}
	c := ctx.Images.CacheFor(imageID)
	if c == nil {
		return false
	}
	if m.Type != nil && !isClassMatched(ctx, imageID, item.Annotation.TypeIdx, m.Type) {
		return false
	}
	if m.TargetElementTypes != 0 {
		targets, ok := metaTargetElementTypes(c, item.Annotation.TypeIdx)
		if !ok || targets&m.TargetElementTypes != m.TargetElementTypes {
			return false
		}
	}
	if m.Policy != nil {
		policy, ok := metaRetentionPolicy(c, item.Annotation.TypeIdx)
		if !ok || policy != *m.Policy {
			return false
		}
	}
	if !matchCollection(ctx, m.Elements, item.Annotation.Elements, func(el image.AnnotationElement, pattern *AnnotationElementMatcher) bool {
		return isAnnotationElementMatched(c, el, pattern)
	}) {
		return false
	}
	if len(m.UsingStrings) > 0 {
		plan := getOrBuildPlan(ctx, m, m.UsingStrings)
		var strs []string
		collectAnnotationStrings(c, &item.Annotation, &strs)
		if !evalUsingStrings(plan, strs, reportACHits(ctx)) {
			return false
		}
	}
	return true
}

// collectAnnotationStrings walks an annotation's element tree collecting
// every referenced string-table entry (String values, and Enum values'
// owning field names), the acceleration target for an AnnotationMatcher's
// using-strings list.
func collectAnnotationStrings(c *cache.Cache, a *image.Annotation, out *[]string) {
	for _, el := range a.Elements {
		collectValueStrings(c, &el.Value, out)
	}
}

func collectValueStrings(c *cache.Cache, v *image.EncodedValue, out *[]string) {
	switch v.Tag {
	case image.ValueString:
		*out = append(*out, c.View.StringAt(v.Str))
	case image.ValueEnum:
		*out = append(*out, c.ResolveEnumValue(v))
	case image.ValueArray:
		for i := range v.Array {
			collectValueStrings(c, &v.Array[i], out)
		}
	case image.ValueAnnotation:
		if v.Annotation != nil {
			collectAnnotationStrings(c, v.Annotation, out)
		}
	}
}

// isAnnotationElementMatched evaluates one name/value pair.
func isAnnotationElementMatched(c *cache.Cache, el image.AnnotationElement, m *AnnotationElementMatcher) bool {
	if m == nil {
		return true
	}
	if !isStringMatched(m.Name, c.View.StringAt(el.NameIdx)) {
		return false
	}
	return isEncodedValueMatched(c, el.Value, m.Value)
}

// isEncodedValueMatched dispatches on the encoded-value tag.
func isEncodedValueMatched(c *cache.Cache, v image.EncodedValue, m *EncodedValueMatcher) bool {
	if m == nil {
		return true
	}
	switch v.Tag {
	case image.ValueByte, image.ValueShort, image.ValueChar, image.ValueInt, image.ValueLong:
		return isUsingNumberValueMatched(float64(v.Int), m.Number)
	case image.ValueFloat:
		return isUsingNumberValueMatched(float64(v.Float), m.Number)
	case image.ValueDouble:
		return isUsingNumberValueMatched(v.Double, m.Number)
	case image.ValueBoolean:
		return m.Bool == nil || *m.Bool == v.Bool
	case image.ValueString:
		return isStringMatched(m.String, c.View.StringAt(v.Str))
	case image.ValueEnum:
		return isStringMatched(m.String, c.ResolveEnumValue(&v))
	case image.ValueType:
		return m.Type == nil || isClassTypeIDMatched(c, uint32(v.Int), m.Type)
	case image.ValueArray:
		return matchCollection(nil, m.Array, v.Array, func(item image.EncodedValue, pattern *EncodedValueMatcher) bool {
			return isEncodedValueMatched(c, item, pattern)
		})
	default:
		return true
	}
}

func isUsingNumberValueMatched(v float64, m *NumberMatcher) bool {
	if m == nil {
		return true
	}
	return v == m.Value
}

// isClassTypeIDMatched is a context-free ClassMatcher check for a
// ValueType encoded value's type id, used where no cross-image Context
// is threaded through (annotation element values never redirect across
// images — they name a type by descriptor only).
func isClassTypeIDMatched(c *cache.Cache, typeID uint32, m *ClassMatcher) bool {
	if int(typeID) >= len(c.TypeName) {
		return false
	}
	return isTypeNameMatched(m.ClassName, c.TypeName[typeID])
}

// metaTargetElementTypes and metaRetentionPolicy decode an annotation
// type's own @Target/@Retention meta-annotations on demand, each time a
// matcher asks; the result is not cached.
func metaTargetElementTypes(c *cache.Cache, annoTypeID uint32) (uint32, bool) {
	targetType, ok := c.WellKnownTargetType()
	if !ok {
		return 0, false
	}
	set := c.ClassAnnotations[annoTypeID]
	if set == nil {
		return 0, false
	}
	for _, item := range set.Items {
		if item.Annotation.TypeIdx != targetType {
			continue
		}
		var mask uint32
		for _, el := range item.Annotation.Elements {
			if el.Value.Tag == image.ValueArray {
				for _, v := range el.Value.Array {
					if v.Tag == image.ValueEnum {
						mask |= elementTypeBit(c.ResolveEnumValue(&v))
					}
				}
			} else if el.Value.Tag == image.ValueEnum {
				mask |= elementTypeBit(c.ResolveEnumValue(&el.Value))
			}
		}
		return mask, true
	}
	return 0, false
}

func metaRetentionPolicy(c *cache.Cache, annoTypeID uint32) (RetentionPolicy, bool) {
	retentionType, ok := c.WellKnownRetentionType()
	if !ok {
		return 0, false
	}
	set := c.ClassAnnotations[annoTypeID]
	if set == nil {
		return 0, false
	}
	for _, item := range set.Items {
		if item.Annotation.TypeIdx != retentionType {
			continue
		}
		for _, el := range item.Annotation.Elements {
			if el.Value.Tag == image.ValueEnum {
				return retentionPolicyFromName(c.ResolveEnumValue(&el.Value)), true
			}
		}
	}
	return 0, false
}

func elementTypeBit(fieldName string) uint32 {
	switch fieldName {
	case "TYPE":
		return 1 << 0
	case "FIELD":
		return 1 << 1
	case "METHOD":
		return 1 << 2
	case "PARAMETER":
		return 1 << 3
	case "CONSTRUCTOR":
		return 1 << 4
	case "LOCAL_VARIABLE":
		return 1 << 5
	case "ANNOTATION_TYPE":
		return 1 << 6
	case "PACKAGE":
		return 1 << 7
	default:
		return 0
	}
}

func retentionPolicyFromName(name string) RetentionPolicy {
	switch name {
	case "SOURCE":
		return RetentionSource
	case "CLASS":
		return RetentionClass
	case "RUNTIME":
		return RetentionRuntime
	default:
		return RetentionUnspecified
	}
}
