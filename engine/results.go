// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package engine

import "github.com/saferwall/dxscan/cache"

// ClassResult is a FindClass result bean.
type ClassResult struct {
	ID          uint64
	ImageID     uint32
	AccessFlags uint32
	Descriptor  string
	SourceFile  string
}

// MethodResult is a FindMethod result bean. Descriptor is the full
// image-independent text form ("Lcom/x/C;->work(I)V"), copied out of
// the image at the boundary, and is the driver's merge key.
type MethodResult struct {
	ID               uint64
	ImageID          uint32
	DeclaringClassID uint64
	AccessFlags      uint32
	Name             string
	Descriptor       string
	ReturnTypeID     uint64
	ParameterTypeIDs []uint64
}

// FieldResult is a FindField result bean.
type FieldResult struct {
	ID               uint64
	ImageID          uint32
	DeclaringClassID uint64
	AccessFlags      uint32
	Name             string
	Descriptor       string
	TypeID           uint64
}

func classResultFrom(c *cache.Cache, classTypeID uint32) ClassResult {
	return ClassResult{
		ID:          EncodeID(c.ImageID, classTypeID),
		ImageID:     c.ImageID,
		AccessFlags: c.ClassAccessFlags[classTypeID],
		Descriptor:  c.TypeName[classTypeID],
		SourceFile:  c.ClassSourceFile[classTypeID],
	}
}

func methodResultFrom(c *cache.Cache, methodID uint32) MethodResult {
	mid := c.View.MethodIDs[methodID]
	r := MethodResult{
		ID:               EncodeID(c.ImageID, methodID),
		ImageID:          c.ImageID,
		DeclaringClassID: EncodeID(c.ImageID, mid.ClassIdx),
		AccessFlags:      c.MethodAccessFlags[methodID],
		Name:             c.View.StringAt(mid.NameIdx),
	}
	desc := make([]byte, 0, 64)
	desc = append(desc, c.View.TypeName(mid.ClassIdx)...)
	desc = append(desc, "->"...)
	desc = append(desc, r.Name...)
	desc = append(desc, '(')
	if int(mid.ProtoIdx) < len(c.View.ProtoIDs) {
		proto := c.View.ProtoIDs[mid.ProtoIdx]
		r.ReturnTypeID = EncodeID(c.ImageID, proto.ReturnTypeIdx)
		r.ParameterTypeIDs = make([]uint64, len(proto.ParameterTypes))
		for i, t := range proto.ParameterTypes {
			r.ParameterTypeIDs[i] = EncodeID(c.ImageID, t)
			desc = append(desc, c.View.TypeName(t)...)
		}
		desc = append(desc, ')')
		desc = append(desc, c.View.TypeName(proto.ReturnTypeIdx)...)
	} else {
		desc = append(desc, ')')
	}
	r.Descriptor = string(desc)
	return r
}

func fieldResultFrom(c *cache.Cache, fieldID uint32) FieldResult {
	fid := c.View.FieldIDs[fieldID]
	name := c.View.StringAt(fid.NameIdx)
	return FieldResult{
		ID:               EncodeID(c.ImageID, fieldID),
		ImageID:          c.ImageID,
		DeclaringClassID: EncodeID(c.ImageID, fid.ClassIdx),
		AccessFlags:      c.FieldAccessFlags[fieldID],
		Name:             name,
		Descriptor:       c.View.TypeName(fid.ClassIdx) + "->" + name + ":" + c.View.TypeName(fid.TypeIdx),
		TypeID:           EncodeID(c.ImageID, fid.TypeIdx),
	}
}

// dedupeClasses is a no-op pass-through: classes are already unique by
// id.
func dedupeClasses(in []ClassResult) []ClassResult { return in }

// dedupeMethods deduplicates by descriptor text: the same method
// surfaced through two images' id tables collapses to one result.
func dedupeMethods(in []MethodResult) []MethodResult {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, r := range in {
		if _, ok := seen[r.Descriptor]; ok {
			continue
		}
		seen[r.Descriptor] = struct{}{}
		out = append(out, r)
	}
	return out
}

func dedupeFields(in []FieldResult) []FieldResult {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, r := range in {
		if _, ok := seen[r.Descriptor]; ok {
			continue
		}
		seen[r.Descriptor] = struct{}{}
		out = append(out, r)
	}
	return out
}
