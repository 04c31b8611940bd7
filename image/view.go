// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package image is a read-only, optionally memory-mapped view of one
// bytecode container image, plus the bounds-checked typed accessors
// that every higher layer reads through rather than indexing the
// backing byte slice directly.
//
// Parse decodes the on-disk layout (string/type/proto/field/method
// tables, class-defs, class data, code items, annotations) once at load
// time; the cache and matcher packages consume View purely through its
// exported fields and accessor methods, so a different container parser
// can be substituted without touching either.
package image

import (
	"os"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/saferwall/dxscan/dxerr"
)

// View is a read-only handle on one image's raw bytes and its decoded
// raw tables. All slices here borrow from the backing bytes (or,
// for decoded tables, were allocated once at Parse time) — nothing in the
// hot evaluation path copies them.
type View struct {
	data []byte
	mm   mmap.MMap // non-nil only when opened via Open; Close unmaps it
	f    *os.File

	Strings   [][]byte // raw string-table entries, modified-UTF-8 encoded
	TypeIDs   []TypeID
	ProtoIDs  []ProtoID
	FieldIDs  []FieldID
	MethodIDs []MethodID
	ClassDefs []ClassDef

	// classData and codeItems are keyed by the byte offset they were read
	// from, so repeated references (e.g. two class-defs can't share a
	// class_data_off, but a code item is addressed once per class-data
	// entry) decode at most once per Parse call.
	classData map[uint32]*ClassData
	codeItems map[uint32]*CodeItem
	annoDirs  map[uint32]*AnnotationsDirectory
}

// Open memory-maps the file at path read-only and parses its raw tables.
func Open(path string) (*View, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, dxerr.ErrImageNotFound
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	v := &View{data: data, mm: data, f: f}
	if err := v.Parse(); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

// NewBytes builds a View over an owned in-memory buffer (no mmap), for
// images already extracted from an archive by the caller.
func NewBytes(data []byte) (*View, error) {
	v := &View{data: data}
	if err := v.Parse(); err != nil {
		return nil, err
	}
	return v, nil
}

// Close releases the image's memory mapping, if any.
func (v *View) Close() error {
	if v.mm != nil {
		err := v.mm.Unmap()
		v.mm = nil
		if v.f != nil {
			v.f.Close()
			v.f = nil
		}
		return err
	}
	return nil
}

// Size returns the image's byte length.
func (v *View) Size() uint32 { return uint32(len(v.data)) }

// Data returns the image's full backing bytes, borrowed: valid until
// Close.
func (v *View) Data() []byte { return v.data }

// Uint8At reads a single byte at offset.
func (v *View) Uint8At(offset uint32) (uint8, error) {
	if int64(offset)+1 > int64(len(v.data)) {
		return 0, dxerr.ErrOutsideBoundary
	}
	return v.data[offset], nil
}

// Uint16At reads a little-endian uint16 at offset.
func (v *View) Uint16At(offset uint32) (uint16, error) {
	if int64(offset)+2 > int64(len(v.data)) {
		return 0, dxerr.ErrOutsideBoundary
	}
	return uint16(v.data[offset]) | uint16(v.data[offset+1])<<8, nil
}

// Uint32At reads a little-endian uint32 at offset.
func (v *View) Uint32At(offset uint32) (uint32, error) {
	if int64(offset)+4 > int64(len(v.data)) {
		return 0, dxerr.ErrOutsideBoundary
	}
	return uint32(v.data[offset]) | uint32(v.data[offset+1])<<8 |
		uint32(v.data[offset+2])<<16 | uint32(v.data[offset+3])<<24, nil
}

// Uint64At reads a little-endian uint64 at offset.
func (v *View) Uint64At(offset uint32) (uint64, error) {
	if int64(offset)+8 > int64(len(v.data)) {
		return 0, dxerr.ErrOutsideBoundary
	}
	lo, _ := v.Uint32At(offset)
	hi, _ := v.Uint32At(offset + 4)
	return uint64(hi)<<32 | uint64(lo), nil
}

// BytesAt returns a bounds-checked, borrowed sub-slice of the image.
func (v *View) BytesAt(offset, length uint32) ([]byte, error) {
	if int64(offset)+int64(length) > int64(len(v.data)) {
		return nil, dxerr.ErrOutsideBoundary
	}
	return v.data[offset : offset+length], nil
}

// StringAt returns the decoded string-table entry at idx, or "" if idx is
// out of range (a miss, not an error — matchers treat unknown ids as
// non-matching rather than failing the query).
func (v *View) StringAt(idx uint32) string {
	if idx == NoIndex || int(idx) >= len(v.Strings) {
		return ""
	}
	return decodeMUTF8(v.Strings[idx])
}

// TypeName returns the descriptor string for a type id, or "" if unknown.
func (v *View) TypeName(typeIdx uint32) string {
	if typeIdx == NoIndex || int(typeIdx) >= len(v.TypeIDs) {
		return ""
	}
	return v.StringAt(v.TypeIDs[typeIdx].DescriptorIdx)
}

// ClassDataAt returns the decoded class_data_item at offset, or nil if
// offset is 0 (no class data — a marker interface or pure-abstract class).
func (v *View) ClassDataAt(offset uint32) *ClassData {
	if offset == 0 {
		return nil
	}
	return v.classData[offset]
}

// CodeItemAt returns the decoded code item at offset, never nil: offset
// 0 maps to the shared EmptyCodeItem sentinel.
func (v *View) CodeItemAt(offset uint32) *CodeItem {
	if offset == 0 {
		return EmptyCodeItem
	}
	if c, ok := v.codeItems[offset]; ok {
		return c
	}
	return EmptyCodeItem
}

// AnnotationsAt returns the decoded annotations directory at offset, or
// nil if offset is 0 (no annotations anywhere in the class).
func (v *View) AnnotationsAt(offset uint32) *AnnotationsDirectory {
	if offset == 0 {
		return nil
	}
	return v.annoDirs[offset]
}
