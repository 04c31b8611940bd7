// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package matcher

// MatchClass is the exported entry point for evaluating a ClassMatcher
// against the class declared at classTypeID in imageID — the engine's
// query driver calls this once per candidate type id.
func MatchClass(ctx *Context, imageID, classTypeID uint32, m *ClassMatcher) bool {
	return isClassMatched(ctx, imageID, classTypeID, m)
}

// MatchMethod is the exported entry point for evaluating a MethodMatcher
// against methodID.
func MatchMethod(ctx *Context, imageID, methodID uint32, m *MethodMatcher) bool {
	return isMethodMatched(ctx, imageID, methodID, m)
}

// MatchField is the exported entry point for evaluating a FieldMatcher
// against fieldID.
func MatchField(ctx *Context, imageID, fieldID uint32, m *FieldMatcher) bool {
	return isFieldMatched(ctx, imageID, fieldID, m)
}
