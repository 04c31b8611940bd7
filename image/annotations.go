// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package image

// Visibility mirrors the container's annotation visibility byte.
type Visibility byte

const (
	VisibilityBuild Visibility = iota
	VisibilityRuntime
	VisibilitySystem
)

// EncodedValueTag is the tag byte of a recursive encoded-value tree, used
// to decode constant and annotation-element literals.
type EncodedValueTag byte

const (
	ValueByte          EncodedValueTag = 0x00
	ValueShort         EncodedValueTag = 0x02
	ValueChar          EncodedValueTag = 0x03
	ValueInt           EncodedValueTag = 0x04
	ValueLong          EncodedValueTag = 0x06
	ValueFloat         EncodedValueTag = 0x10
	ValueDouble        EncodedValueTag = 0x11
	ValueMethodType   EncodedValueTag = 0x15
	ValueMethodHandle EncodedValueTag = 0x16
	ValueString       EncodedValueTag = 0x17
	ValueType         EncodedValueTag = 0x18
	ValueField        EncodedValueTag = 0x19
	ValueMethod       EncodedValueTag = 0x1a
	ValueEnum         EncodedValueTag = 0x1b
	ValueArray        EncodedValueTag = 0x1c
	ValueAnnotation   EncodedValueTag = 0x1d
	ValueNull         EncodedValueTag = 0x1e
	ValueBoolean      EncodedValueTag = 0x1f
)

// EncodedValue is one node of the recursive encoded-value tree. Exactly
// one of the typed fields is meaningful, selected by Tag.
type EncodedValue struct {
	Tag EncodedValueTag

	Int    int64   // Byte, Short, Char, Int, Long, Enum (field id), Method, Field, Type (type id)
	Float  float32 // Float
	Double float64 // Double
	Bool   bool    // Boolean
	Str    uint32  // String (string id), MethodType/MethodHandle (underlying table index)

	Array      []EncodedValue // Array
	Annotation *Annotation    // Annotation, and the nested payload of Enum's owning type is not stored here
}

// AnnotationElement is one name/value pair inside an annotation.
type AnnotationElement struct {
	NameIdx uint32 // string id
	Value   EncodedValue
}

// Annotation is a decoded encoded_annotation: the annotation's type and
// its element list.
type Annotation struct {
	TypeIdx  uint32 // type id of the annotation's own type
	Elements []AnnotationElement
}

// AnnotationItem pairs an Annotation with the visibility it was declared
// with (build/runtime/system), matching the container's annotation_item.
type AnnotationItem struct {
	Visibility Visibility
	Annotation Annotation
}

// AnnotationSet is an ordered collection of annotation items attached to
// one class, field, method, or parameter.
type AnnotationSet struct {
	Items []AnnotationItem
}

// AnnotationsDirectory groups every annotation attached to one class: its
// own, plus its fields', methods', and method parameters'.
type AnnotationsDirectory struct {
	Class      *AnnotationSet
	Fields     map[uint32]*AnnotationSet   // keyed by field id
	Methods    map[uint32]*AnnotationSet   // keyed by method id
	Parameters map[uint32][]*AnnotationSet // keyed by method id, one set per parameter position
}
