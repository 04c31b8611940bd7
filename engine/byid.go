// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package engine

import (
	"github.com/saferwall/dxscan/bytecode"
	"github.com/saferwall/dxscan/cache"
	"github.com/saferwall/dxscan/image"
)

// GetClassByIDs hydrates each encoded id into a ClassResult, skipping
// ids whose image or class id is not valid. Every FindClass result id
// hydrates back to itself.
func (e *Engine) GetClassByIDs(ids []uint64) []ClassResult {
	out := make([]ClassResult, 0, len(ids))
	for _, id := range ids {
		imageID, classTypeID := DecodeID(id)
		c := e.CacheFor(imageID)
		if c == nil || int(classTypeID) >= len(c.TypeName) {
			continue
		}
		out = append(out, classResultFrom(c, classTypeID))
	}
	return out
}

// GetMethodByIDs hydrates encoded method ids.
func (e *Engine) GetMethodByIDs(ids []uint64) []MethodResult {
	out := make([]MethodResult, 0, len(ids))
	for _, id := range ids {
		imageID, methodID := DecodeID(id)
		c := e.CacheFor(imageID)
		if c == nil || int(methodID) >= len(c.View.MethodIDs) {
			continue
		}
		out = append(out, methodResultFrom(c, methodID))
	}
	return out
}

// GetFieldByIDs hydrates encoded field ids.
func (e *Engine) GetFieldByIDs(ids []uint64) []FieldResult {
	out := make([]FieldResult, 0, len(ids))
	for _, id := range ids {
		imageID, fieldID := DecodeID(id)
		c := e.CacheFor(imageID)
		if c == nil || int(fieldID) >= len(c.View.FieldIDs) {
			continue
		}
		out = append(out, fieldResultFrom(c, fieldID))
	}
	return out
}

// GetCallMethods returns the encoded ids of every method that calls
// methodID, requiring BuildCrossRefs to have run.
func (e *Engine) GetCallMethods(methodID uint64) []uint64 {
	imageID, localID := DecodeID(methodID)
	c := e.CacheFor(imageID)
	if c == nil {
		return nil
	}
	refs := c.MethodCallerIDs[localID]
	out := make([]uint64, len(refs))
	for i, r := range refs {
		out[i] = EncodeID(r.ImageID, r.ID)
	}
	return e.uniqueIDs(out)
}

// uniqueIDs drops duplicate encoded ids, preserving first-seen order,
// when the engine was built with Config.UniqueResult.
func (e *Engine) uniqueIDs(ids []uint64) []uint64 {
	if !e.uniqueResult || len(ids) < 2 {
		return ids
	}
	seen := make(map[uint64]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// GetInvokeMethods returns the encoded ids methodID itself invokes,
// resolved through any cross-image redirect.
func (e *Engine) GetInvokeMethods(methodID uint64) []uint64 {
	imageID, localID := DecodeID(methodID)
	c := e.CacheFor(imageID)
	if c == nil {
		return nil
	}
	targets := c.MethodInvokingIDs[localID]
	out := make([]uint64, len(targets))
	for i, t := range targets {
		if xref, ok := c.MethodCrossInfo[t]; ok {
			out[i] = EncodeID(xref.ImageID, xref.ID)
		} else {
			out[i] = EncodeID(imageID, t)
		}
	}
	return e.uniqueIDs(out)
}

// GetUsingStrings returns the decoded string literals methodID's code
// references.
func (e *Engine) GetUsingStrings(methodID uint64) []string {
	imageID, localID := DecodeID(methodID)
	c := e.CacheFor(imageID)
	if c == nil {
		return nil
	}
	ids := c.MethodUsingStringIDs[localID]
	out := make([]string, len(ids))
	for i, sid := range ids {
		out[i] = c.View.StringAt(sid)
	}
	return out
}

// UsingField pairs an encoded field id with whether the access was a
// read, mirroring cache.FieldUse at the engine boundary.
type UsingField struct {
	FieldID uint64
	IsGet   bool
}

// GetUsingFields returns methodID's field-use set.
func (e *Engine) GetUsingFields(methodID uint64) []UsingField {
	imageID, localID := DecodeID(methodID)
	c := e.CacheFor(imageID)
	if c == nil {
		return nil
	}
	uses := c.MethodUsingFieldIDs[localID]
	out := make([]UsingField, 0, len(uses))
	seen := make(map[UsingField]struct{}, len(uses))
	for _, u := range uses {
		uf := UsingField{FieldID: EncodeID(imageID, u.FieldID), IsGet: u.IsGet}
		if e.uniqueResult {
			if _, ok := seen[uf]; ok {
				continue
			}
			seen[uf] = struct{}{}
		}
		out = append(out, uf)
	}
	return out
}

// FieldGetMethods returns the encoded ids of methods that read fieldID.
func (e *Engine) FieldGetMethods(fieldID uint64) []uint64 {
	return e.fieldCrossRefMethods(fieldID, true)
}

// FieldPutMethods returns the encoded ids of methods that write fieldID.
func (e *Engine) FieldPutMethods(fieldID uint64) []uint64 {
	return e.fieldCrossRefMethods(fieldID, false)
}

func (e *Engine) fieldCrossRefMethods(fieldID uint64, isGet bool) []uint64 {
	imageID, localID := DecodeID(fieldID)
	c := e.CacheFor(imageID)
	if c == nil {
		return nil
	}
	var refs []cache.CrossRef
	if isGet {
		refs = c.FieldGetMethodIDs[localID]
	} else {
		refs = c.FieldPutMethodIDs[localID]
	}
	out := make([]uint64, len(refs))
	for i, r := range refs {
		out[i] = EncodeID(r.ImageID, r.ID)
	}
	return e.uniqueIDs(out)
}

// GetMethodOpCodes returns methodID's recorded opcode sequence.
func (e *Engine) GetMethodOpCodes(methodID uint64) []bytecode.Opcode {
	imageID, localID := DecodeID(methodID)
	c := e.CacheFor(imageID)
	if c == nil {
		return nil
	}
	return c.MethodOpcodeSeq[localID]
}

// GetParameterNames returns methodID's declared parameter type
// descriptors, in positional order (bytecode containers don't carry
// parameter names in the stripped form dxscan targets, only types).
func (e *Engine) GetParameterNames(methodID uint64) []string {
	imageID, localID := DecodeID(methodID)
	c := e.CacheFor(imageID)
	if c == nil || int(localID) >= len(c.View.MethodIDs) {
		return nil
	}
	mid := c.View.MethodIDs[localID]
	if int(mid.ProtoIdx) >= len(c.View.ProtoIDs) {
		return nil
	}
	params := c.View.ProtoIDs[mid.ProtoIdx].ParameterTypes
	out := make([]string, len(params))
	for i, t := range params {
		out[i] = c.TypeName[t]
	}
	return out
}

// GetClassAnnotations returns the decoded annotation set declared on a
// class, or nil if it has none.
func (e *Engine) GetClassAnnotations(classID uint64) *image.AnnotationSet {
	imageID, localID := DecodeID(classID)
	c := e.CacheFor(imageID)
	if c == nil {
		return nil
	}
	return c.ClassAnnotations[localID]
}

// GetMethodAnnotations returns the decoded annotation set declared on a
// method.
func (e *Engine) GetMethodAnnotations(methodID uint64) *image.AnnotationSet {
	imageID, localID := DecodeID(methodID)
	c := e.CacheFor(imageID)
	if c == nil {
		return nil
	}
	return c.MethodAnnotations[localID]
}

// GetFieldAnnotations returns the decoded annotation set declared on a
// field.
func (e *Engine) GetFieldAnnotations(fieldID uint64) *image.AnnotationSet {
	imageID, localID := DecodeID(fieldID)
	c := e.CacheFor(imageID)
	if c == nil {
		return nil
	}
	return c.FieldAnnotations[localID]
}

// GetParameterAnnotations returns methodID's per-parameter annotation
// sets, in positional order.
func (e *Engine) GetParameterAnnotations(methodID uint64) []*image.AnnotationSet {
	imageID, localID := DecodeID(methodID)
	c := e.CacheFor(imageID)
	if c == nil {
		return nil
	}
	return c.MethodParameterAnnotations[localID]
}
