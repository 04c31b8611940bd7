// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package matcher

import "github.com/saferwall/dxscan/cache"

// Requirements is the analyzer's output: the union of need-flags every
// node in a matcher tree implies, plus the single declaring-class name
// the query driver can use for its fast path when the whole tree is
// anchored to one exact class name.
type Requirements struct {
	Flags             cache.Flags
	FastPathClassName string
	HasFastPath       bool
}

func (r *Requirements) add(f cache.Flags) { r.Flags |= f }

// merge folds o into r, dropping the fast path if the two disagree (a
// tree with more than one exact-class anchor has no single fast path).
func (r *Requirements) merge(o Requirements) {
	r.Flags |= o.Flags
	if !o.HasFastPath {
		return
	}
	switch {
	case !r.HasFastPath:
		r.FastPathClassName = o.FastPathClassName
		r.HasFastPath = true
	case r.FastPathClassName != o.FastPathClassName:
		r.HasFastPath = false
	}
}

// AnalyzeClass walks m and returns its Requirements — the entry point
// for class queries. Only the queried class's own exact name (for method
// and field queries, the declaring class's) yields a fast path; an exact
// name deeper in the tree can only drop it.
func AnalyzeClass(m *ClassMatcher) Requirements {
	var r Requirements
	analyzeClass(m, &r)
	if !isExactClassAnchor(m) {
		r.HasFastPath, r.FastPathClassName = false, ""
	}
	return r
}

// AnalyzeMethod is the method-query entry point.
func AnalyzeMethod(m *MethodMatcher) Requirements {
	var r Requirements
	analyzeMethod(m, &r)
	if m == nil || !isExactClassAnchor(m.DeclaringClass) {
		r.HasFastPath, r.FastPathClassName = false, ""
	}
	return r
}

// AnalyzeField is the field-query entry point.
func AnalyzeField(m *FieldMatcher) Requirements {
	var r Requirements
	analyzeField(m, &r)
	if m == nil || !isExactClassAnchor(m.DeclaringClass) {
		r.HasFastPath, r.FastPathClassName = false, ""
	}
	return r
}

// isExactClassAnchor reports whether c names one class exactly
// (case-sensitive Equal).
func isExactClassAnchor(c *ClassMatcher) bool {
	return c != nil && c.ClassName != nil && c.ClassName.MatchType == Equal && !c.ClassName.IgnoreCase
}

func analyzeClass(m *ClassMatcher, r *Requirements) {
	if m == nil {
		return
	}
	r.add(cache.FlagTypes | cache.FlagStrings)
	if m.ClassName != nil && m.ClassName.MatchType == Equal && !m.ClassName.IgnoreCase {
		if r.FastPathClassName == "" && !r.HasFastPath {
			r.FastPathClassName = m.ClassName.Value
			r.HasFastPath = true
		} else if r.FastPathClassName != m.ClassName.Value {
			r.HasFastPath = false
		}
	}
	analyzeClass(m.SuperClass, r)
	if m.Interfaces != nil {
		r.add(cache.FlagTypes)
		for _, child := range m.Interfaces.List {
			analyzeClass(child, r)
		}
	}
	if m.Annotations != nil {
		r.add(cache.FlagClassAnnotation)
		for _, child := range m.Annotations.List {
			analyzeAnnotation(child, r)
		}
	}
	if m.Fields != nil {
		r.add(cache.FlagFields)
		for _, child := range m.Fields.List {
			analyzeField(child, r)
		}
	}
	if m.Methods != nil {
		r.add(cache.FlagMethods)
		for _, child := range m.Methods.List {
			analyzeMethod(child, r)
		}
	}
	if len(m.UsingStrings) > 0 {
		r.add(cache.FlagMethods | cache.FlagUsingString)
	}
}

func analyzeField(m *FieldMatcher, r *Requirements) {
	if m == nil {
		return
	}
	r.add(cache.FlagFields)
	analyzeClass(m.DeclaringClass, r)
	analyzeClass(m.TypeClass, r)
	if m.Annotations != nil {
		r.add(cache.FlagFieldAnnotation)
		for _, child := range m.Annotations.List {
			analyzeAnnotation(child, r)
		}
	}
	if m.GetMethods != nil || m.PutMethods != nil {
		r.add(cache.FlagRWFieldMethod)
	}
	for _, child := range collectionOf(m.GetMethods) {
		analyzeMethod(child, r)
	}
	for _, child := range collectionOf(m.PutMethods) {
		analyzeMethod(child, r)
	}
}

func analyzeMethod(m *MethodMatcher, r *Requirements) {
	if m == nil {
		return
	}
	r.add(cache.FlagMethods)
	analyzeClass(m.DeclaringClass, r)
	if m.ReturnType != nil {
		r.add(cache.FlagProtos)
		analyzeClass(m.ReturnType, r)
	}
	if m.Parameters != nil {
		r.add(cache.FlagProtos)
		for _, p := range m.Parameters.List {
			analyzeClass(p.TypeClass, r)
			if p.Annotations != nil {
				r.add(cache.FlagParameterAnnotation)
				for _, child := range p.Annotations.List {
					analyzeAnnotation(child, r)
				}
			}
		}
	}
	if m.Annotations != nil {
		r.add(cache.FlagMethodAnnotation)
		for _, child := range m.Annotations.List {
			analyzeAnnotation(child, r)
		}
	}
	if len(m.UsingStrings) > 0 {
		r.add(cache.FlagUsingString)
	}
	if len(m.UsingFields) > 0 {
		r.add(cache.FlagUsingField)
		for _, uf := range m.UsingFields {
			analyzeField(uf.Field, r)
		}
	}
	if len(m.UsingNumbers) > 0 {
		r.add(cache.FlagUsingNumber)
	}
	if m.OpCodes != nil {
		r.add(cache.FlagOpcodeSeq)
	}
	if m.InvokingMethods != nil {
		r.add(cache.FlagMethodInvoking)
		for _, child := range m.InvokingMethods.List {
			analyzeMethod(child, r)
		}
	}
	if m.MethodCallers != nil {
		r.add(cache.FlagCallerMethod)
		for _, child := range m.MethodCallers.List {
			analyzeMethod(child, r)
		}
	}
}

func analyzeAnnotation(m *AnnotationMatcher, r *Requirements) {
	if m == nil {
		return
	}
	analyzeClass(m.Type, r)
	if m.Elements != nil {
		for _, child := range m.Elements.List {
			analyzeAnnotationElement(child, r)
		}
	}
}

func analyzeAnnotationElement(m *AnnotationElementMatcher, r *Requirements) {
	if m == nil || m.Value == nil {
		return
	}
	analyzeEncodedValue(m.Value, r)
}

func analyzeEncodedValue(m *EncodedValueMatcher, r *Requirements) {
	if m == nil {
		return
	}
	analyzeClass(m.Type, r)
	if m.Array != nil {
		for _, child := range m.Array.List {
			analyzeEncodedValue(child, r)
		}
	}
}

func collectionOf[T any](c *Collection[T]) []T {
	if c == nil {
		return nil
	}
	return c.List
}
