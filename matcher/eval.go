// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package matcher

import (
	"github.com/saferwall/dxscan/bytecode"
	"github.com/saferwall/dxscan/cache"
	"github.com/saferwall/dxscan/image"
)

// isClassMatched evaluates a ClassMatcher against the class declared
// at classTypeID in imageID's cache. All present children must match;
// absent children are vacuously satisfied.
func isClassMatched(ctx *Context, imageID, classTypeID uint32, m *ClassMatcher) bool {
	ctx.countEval()
	if m == nil {
		return true
	}
	c := ctx.Images.CacheFor(imageID)
	if c == nil {
		return false
	}
	if int(classTypeID) >= len(c.TypeName) {
		return false
	}

	if !isTypeNameMatched(m.ClassName, c.TypeName[classTypeID]) {
		return false
	}
	if !isStringMatched(m.SmaliSource, c.ClassSourceFile[classTypeID]) {
		return false
	}
	if !isAccessFlagsMatched(m.AccessFlags, c.ClassAccessFlags[classTypeID]) {
		return false
	}
	if m.SuperClass != nil {
		super := c.ClassSuperclass[classTypeID]
		if super == image.NoIndex || !isClassMatched(ctx, imageID, super, m.SuperClass) {
			return false
		}
	}
	if !matchCollection(ctx, m.Interfaces, c.ClassInterfaces[classTypeID], func(typeID uint32, pattern *ClassMatcher) bool {
		return isClassMatched(ctx, imageID, typeID, pattern)
	}) {
		return false
	}
	if !isAnnotationsMatchedForSet(ctx, imageID, c.ClassAnnotations[classTypeID], m.Annotations) {
		return false
	}
	if !matchCollection(ctx, m.Fields, c.ClassFieldIDs[classTypeID], func(fieldID uint32, pattern *FieldMatcher) bool {
		return isFieldMatched(ctx, imageID, fieldID, pattern)
	}) {
		return false
	}
	if !matchCollection(ctx, m.Methods, c.ClassMethodIDs[classTypeID], func(methodID uint32, pattern *MethodMatcher) bool {
		return isMethodMatched(ctx, imageID, methodID, pattern)
	}) {
		return false
	}
	if len(m.UsingStrings) > 0 {
		plan := getOrBuildPlan(ctx, m, m.UsingStrings)
		strs := classUsingStrings(c, classTypeID)
		if !evalUsingStrings(plan, strs, reportACHits(ctx)) {
			return false
		}
	}
	return true
}

// classUsingStrings is the union of every declared method's
// using-string set for a class, the acceleration target for a
// ClassMatcher's own using-strings list.
func classUsingStrings(c *cache.Cache, classTypeID uint32) []string {
	var out []string
	for _, methodID := range c.ClassMethodIDs[classTypeID] {
		for _, sid := range c.MethodUsingStringIDs[methodID] {
			out = append(out, c.View.StringAt(sid))
		}
	}
	return out
}

// isFieldMatched evaluates a FieldMatcher against fieldID, transferring
// to fieldID's owning image first if FieldCrossInfo says the declaring
// class lives elsewhere.
func isFieldMatched(ctx *Context, imageID, fieldID uint32, m *FieldMatcher) bool {
	ctx.countEval()
	if m == nil {
		return true
	}
	c := ctx.Images.CacheFor(imageID)
	if c == nil {
		return false
	}
	if xref, ok := c.FieldCrossInfo[fieldID]; ok {
		imageID, fieldID = xref.ImageID, xref.ID
		c = ctx.Images.CacheFor(imageID)
		if c == nil {
			return false
		}
	}
	if int(fieldID) >= len(c.View.FieldIDs) {
		return false
	}
	fid := c.View.FieldIDs[fieldID]

	if !isStringMatched(m.Name, c.View.StringAt(fid.NameIdx)) {
		return false
	}
	if !isAccessFlagsMatched(m.AccessFlags, c.FieldAccessFlags[fieldID]) {
		return false
	}
	if m.DeclaringClass != nil && !isClassMatched(ctx, imageID, fid.ClassIdx, m.DeclaringClass) {
		return false
	}
	if m.TypeClass != nil && !isTypeClassMatched(ctx, imageID, fid.TypeIdx, m.TypeClass) {
		return false
	}
	if !isAnnotationsMatchedForSet(ctx, imageID, c.FieldAnnotations[fieldID], m.Annotations) {
		return false
	}
	if !matchCollection(ctx, m.GetMethods, c.FieldGetMethodIDs[fieldID], func(ref cache.CrossRef, pattern *MethodMatcher) bool {
		return isMethodMatched(ctx, ref.ImageID, ref.ID, pattern)
	}) {
		return false
	}
	if !matchCollection(ctx, m.PutMethods, c.FieldPutMethodIDs[fieldID], func(ref cache.CrossRef, pattern *MethodMatcher) bool {
		return isMethodMatched(ctx, ref.ImageID, ref.ID, pattern)
	}) {
		return false
	}
	return true
}

// isTypeClassMatched evaluates a ClassMatcher against a referenced type
// id that names a type rather than a definite class-def (a field type,
// return type, parameter type, ...). A type the image merely references
// — a primitive, a framework class, an array of either — has no
// class-def to recurse into, so only a name-shaped matcher can accept
// it; structural children (fields, methods, super class, ...) require a
// local definition and fail otherwise.
func isTypeClassMatched(ctx *Context, imageID, typeID uint32, m *ClassMatcher) bool {
	c := ctx.Images.CacheFor(imageID)
	if c == nil || int(typeID) >= len(c.TypeName) {
		return false
	}
	if m == nil {
		return true
	}
	if int(typeID) < len(c.TypeDefFlag) && c.TypeDefFlag[typeID] {
		return isClassMatched(ctx, imageID, typeID, m)
	}
	if isNameOnlyClassMatcher(m) {
		return isTypeNameMatched(m.ClassName, c.TypeName[typeID])
	}
	return false
}

// isNameOnlyClassMatcher reports whether m constrains nothing but the
// type's name.
func isNameOnlyClassMatcher(m *ClassMatcher) bool {
	return m.SmaliSource == nil && m.AccessFlags == nil && m.SuperClass == nil &&
		m.Interfaces == nil && m.Annotations == nil && m.Fields == nil &&
		m.Methods == nil && len(m.UsingStrings) == 0
}

// isMethodMatched evaluates a MethodMatcher against methodID, applying
// the same cross-image transfer as isFieldMatched.
func isMethodMatched(ctx *Context, imageID, methodID uint32, m *MethodMatcher) bool {
	ctx.countEval()
	if m == nil {
		return true
	}
	c := ctx.Images.CacheFor(imageID)
	if c == nil {
		return false
	}
	if xref, ok := c.MethodCrossInfo[methodID]; ok {
		imageID, methodID = xref.ImageID, xref.ID
		c = ctx.Images.CacheFor(imageID)
		if c == nil {
			return false
		}
	}
	if int(methodID) >= len(c.View.MethodIDs) {
		return false
	}
	mid := c.View.MethodIDs[methodID]

	if !isStringMatched(m.Name, c.View.StringAt(mid.NameIdx)) {
		return false
	}
	if !isAccessFlagsMatched(m.AccessFlags, c.MethodAccessFlags[methodID]) {
		return false
	}
	if m.DeclaringClass != nil && !isClassMatched(ctx, imageID, mid.ClassIdx, m.DeclaringClass) {
		return false
	}

	var proto image.ProtoID
	if int(mid.ProtoIdx) < len(c.View.ProtoIDs) {
		proto = c.View.ProtoIDs[mid.ProtoIdx]
	}
	if m.ReturnType != nil && !isTypeClassMatched(ctx, imageID, proto.ReturnTypeIdx, m.ReturnType) {
		return false
	}
	if !isParametersMatched(ctx, imageID, methodID, proto.ParameterTypes, m.Parameters) {
		return false
	}
	if !isAnnotationsMatchedForSet(ctx, imageID, c.MethodAnnotations[methodID], m.Annotations) {
		return false
	}
	if len(m.UsingStrings) > 0 {
		plan := getOrBuildPlan(ctx, m, m.UsingStrings)
		strs := decodeMethodStrings(c, methodID)
		if !evalUsingStrings(plan, strs, reportACHits(ctx)) {
			return false
		}
	}
	for _, uf := range m.UsingFields {
		if !isUsingFieldMatched(ctx, imageID, methodID, uf) {
			return false
		}
	}
	for _, un := range m.UsingNumbers {
		if !isUsingNumberMatched(c, methodID, un) {
			return false
		}
	}
	if m.OpCodes != nil && !isOpCodesMatched(c, methodID, m.OpCodes) {
		return false
	}
	if !matchCollection(ctx, m.InvokingMethods, c.MethodInvokingIDs[methodID], func(targetID uint32, pattern *MethodMatcher) bool {
		return isMethodMatched(ctx, imageID, targetID, pattern)
	}) {
		return false
	}
	if !matchCollection(ctx, m.MethodCallers, c.MethodCallerIDs[methodID], func(ref cache.CrossRef, pattern *MethodMatcher) bool {
		return isMethodMatched(ctx, ref.ImageID, ref.ID, pattern)
	}) {
		return false
	}
	return true
}

func decodeMethodStrings(c *cache.Cache, methodID uint32) []string {
	ids := c.MethodUsingStringIDs[methodID]
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = c.View.StringAt(id)
	}
	return out
}

// isParametersMatched evaluates a ParametersMatcher per-index against a
// method's formal parameter list: unlike the Hungarian collection
// matchers, parameters are positional, so a non-nil list must be the
// same length as the parameter list and each entry matches the
// parameter at its own index (a nil entry is a positional wildcard).
func isParametersMatched(ctx *Context, imageID, methodID uint32, paramTypes []uint32, m *ParametersMatcher) bool {
	if m == nil {
		return true
	}
	if m.Count != nil && !isIntRangeMatched(m.Count, int64(len(paramTypes))) {
		return false
	}
	if m.List == nil {
		return true
	}
	if len(m.List) != len(paramTypes) {
		return false
	}
	for i, pm := range m.List {
		if !isParameterMatched(ctx, imageID, paramTypes[i], methodID, i, pm) {
			return false
		}
	}
	return true
}

// isParameterMatched evaluates a ParameterMatcher against the paramIdx-th
// formal parameter of methodID.
func isParameterMatched(ctx *Context, imageID, paramTypeID, methodID uint32, paramIdx int, m *ParameterMatcher) bool {
	if m == nil {
		return true
	}
	if m.TypeClass != nil && !isTypeClassMatched(ctx, imageID, paramTypeID, m.TypeClass) {
		return false
	}
	if m.Annotations != nil {
		c := ctx.Images.CacheFor(imageID)
		sets := c.MethodParameterAnnotations[methodID]
		var set *image.AnnotationSet
		if paramIdx < len(sets) {
			set = sets[paramIdx]
		}
		if !isAnnotationsMatchedForSet(ctx, imageID, set, m.Annotations) {
			return false
		}
	}
	return true
}

// isUsingFieldMatched evaluates one UsingFieldMatcher against methodID's
// field-use set: the read/write direction must match some recorded use,
// and that use's field id must satisfy the embedded FieldMatcher.
func isUsingFieldMatched(ctx *Context, imageID, methodID uint32, m *UsingFieldMatcher) bool {
	if m == nil {
		return true
	}
	c := ctx.Images.CacheFor(imageID)
	if c == nil {
		return false
	}
	for _, use := range c.MethodUsingFieldIDs[methodID] {
		if m.UsingType == UsingGet && !use.IsGet {
			continue
		}
		if m.UsingType == UsingPut && use.IsGet {
			continue
		}
		if isFieldMatched(ctx, imageID, use.FieldID, m.Field) {
			return true
		}
	}
	return false
}

// isUsingNumberMatched reports whether methodID's using-numbers set
// contains a literal equal to m.Value, widened to float64.
func isUsingNumberMatched(c *cache.Cache, methodID uint32, m *NumberMatcher) bool {
	if m == nil {
		return true
	}
	for _, n := range c.MethodUsingNumbers[methodID] {
		var v float64
		switch n.Kind {
		case bytecode.KindFloat:
			v = float64(n.Float)
		case bytecode.KindDouble:
			v = n.Double
		default:
			v = float64(n.Int)
		}
		if v == m.Value {
			return true
		}
	}
	return false
}

// isOpCodesMatched evaluates an OpCodesMatcher against methodID's
// recorded opcode sequence: wildcard entries match any opcode, and the
// sequence relationship (Equal/StartWith/EndWith/Contains) is tested
// via a wildcard-aware scan.
func isOpCodesMatched(c *cache.Cache, methodID uint32, m *OpCodesMatcher) bool {
	seq := c.MethodOpcodeSeq[methodID]
	if m.Count != nil && !isIntRangeMatched(m.Count, int64(len(seq))) {
		return false
	}
	if len(m.Sequence) == 0 {
		return true
	}
	return opcodeSeqMatches(seq, m.Sequence, m.MatchType)
}
