// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package image

// TypeID is a single entry of the type-id table: a reference to one
// string-table entry holding the type's descriptor.
type TypeID struct {
	DescriptorIdx uint32
}

// ProtoID is a single entry of the proto-id table.
type ProtoID struct {
	ShortyIdx      uint32
	ReturnTypeIdx  uint32
	ParameterTypes []uint32 // type ids, empty for a no-arg proto
}

// FieldID is a single entry of the field-id table.
type FieldID struct {
	ClassIdx uint32 // type id of the declaring class
	TypeIdx  uint32 // type id of the field's type
	NameIdx  uint32 // string id of the field's name
}

// MethodID is a single entry of the method-id table.
type MethodID struct {
	ClassIdx uint32 // type id of the declaring class
	ProtoIdx uint32
	NameIdx  uint32
}

// ClassDef is a single entry of the class-def list: "this image declares a
// class" as opposed to merely referencing one through a type id.
type ClassDef struct {
	ClassIdx          uint32
	AccessFlags       uint32
	SuperclassIdx     uint32 // NoIndex if none (java.lang.Object or an interface)
	Interfaces        []uint32
	SourceFileIdx     uint32 // NoIndex if absent
	AnnotationsOffset uint32 // 0 if none
	ClassDataOffset   uint32 // 0 if none (marker/abstract classes)
	StaticValuesOff   uint32 // 0 if none
}

// NoIndex marks an absent optional index (superclass of Object, missing
// source file, etc), matching the container format's convention of using
// the all-ones sentinel rather than a signed -1.
const NoIndex = ^uint32(0)

// EncodedField is one entry of a class-data field list, after delta
// decoding: the field id is already resolved to an absolute index.
type EncodedField struct {
	FieldIdx    uint32
	AccessFlags uint32
}

// EncodedMethod is one entry of a class-data method list, after delta
// decoding.
type EncodedMethod struct {
	MethodIdx   uint32
	AccessFlags uint32
	CodeOffset  uint32 // 0 if the method is abstract/native (no code item)
}

// ClassData is the parsed class_data_item for one class-def: the field and
// method lists, already delta-decoded into absolute ids.
type ClassData struct {
	StaticFields   []EncodedField
	InstanceFields []EncodedField
	DirectMethods  []EncodedMethod
	VirtualMethods []EncodedMethod
}

// CodeItem is the parsed per-method code block: register/parameter counts
// and the raw instruction stream of 16-bit code units.
type CodeItem struct {
	RegistersSize uint16
	InsSize       uint16
	OutsSize      uint16
	TriesSize     uint16
	DebugInfoOff  uint32
	Insns         []uint16
}

// EmptyCodeItem is the shared empty-code sentinel every abstract or
// native method's MethodCode entry points at, so a method's code
// pointer is never nil.
var EmptyCodeItem = &CodeItem{}
