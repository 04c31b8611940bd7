// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package matcher holds the query language: a closed set of
// persistent, read-only matcher node types, an analyzer that walks a
// tree once to compute the flag set and fast-path class name a query
// needs, and the pure boolean evaluator functions operating on
// cache.Cache-resident data. The evaluator reads borrowed cache data
// and avoids allocating in the hot path.
package matcher

// MatchType selects how a String matcher's literal compares to a
// candidate.
type MatchType uint8

const (
	Equal MatchType = iota
	StartWith
	EndWith
	Contains
	SimilarRegex
)

// CollectionMatchType selects how a count/list matcher (Interfaces,
// Fields, Methods, Annotations, AnnotationElements,
// AnnotationEncodeArray) relates its pattern list to the candidate set.
// Parameter lists are matched positionally and ignore it.
type CollectionMatchType uint8

const (
	CollectionContains CollectionMatchType = iota
	CollectionEqual
)

// UsingType selects which field accesses an UsingFieldMatcher accepts.
type UsingType uint8

const (
	UsingGet UsingType = iota
	UsingPut
	UsingAny
)

// StringMatcher is the primitive string matcher. SimilarRegex is
// restricted to leading ^ / trailing $ and is lowered to one of the
// four literal match types at evaluation time.
type StringMatcher struct {
	Value      string
	MatchType  MatchType
	IgnoreCase bool
}

// IntRange is an inclusive numeric range.
type IntRange struct {
	Min, Max int64
}

// AccessFlagsMatcherType selects how AccessFlagsMatcher relates its
// flags to a candidate's actual access flags.
type AccessFlagsMatcherType uint8

const (
	FlagsEqual AccessFlagsMatcherType = iota
	FlagsContains
)

// AccessFlagsMatcher is a primitive access-flags matcher.
type AccessFlagsMatcher struct {
	Flags     uint32
	MatchType AccessFlagsMatcherType
}

// Collection wraps the repeated count/list/match-type shape shared by
// every set-against-set matcher: count bounds the candidate set size,
// list is a parallel pattern vector Hungarian-matched against it, and
// either may be nil to skip that half of the check.
type Collection[T any] struct {
	Count     *IntRange
	List      []T
	MatchType CollectionMatchType
}

// ClassMatcher is the root composite matcher over a class.
type ClassMatcher struct {
	ClassName    *StringMatcher
	SmaliSource  *StringMatcher
	AccessFlags  *AccessFlagsMatcher
	SuperClass   *ClassMatcher
	Interfaces   *Collection[*ClassMatcher]
	Annotations  *AnnotationsMatcher
	Fields       *FieldsMatcher
	Methods      *MethodsMatcher
	UsingStrings []*StringMatcher
}

// FieldsMatcher matches a class's field set.
type FieldsMatcher = Collection[*FieldMatcher]

// MethodsMatcher matches a class's method set, a method's invoking set,
// or a method's caller set, depending on which FieldMatcher/MethodMatcher
// field embeds it.
type MethodsMatcher = Collection[*MethodMatcher]

// AnnotationsMatcher matches an annotation set.
type AnnotationsMatcher = Collection[*AnnotationMatcher]

// AnnotationElementsMatcher matches an annotation's element list.
type AnnotationElementsMatcher = Collection[*AnnotationElementMatcher]

// FieldMatcher matches a single field.
type FieldMatcher struct {
	Name           *StringMatcher
	AccessFlags    *AccessFlagsMatcher
	DeclaringClass *ClassMatcher
	TypeClass      *ClassMatcher
	Annotations    *AnnotationsMatcher
	GetMethods     *MethodsMatcher
	PutMethods     *MethodsMatcher
}

// MethodMatcher matches a single method.
type MethodMatcher struct {
	Name            *StringMatcher
	AccessFlags     *AccessFlagsMatcher
	DeclaringClass  *ClassMatcher
	ReturnType      *ClassMatcher
	Parameters      *ParametersMatcher
	Annotations     *AnnotationsMatcher
	UsingStrings    []*StringMatcher
	UsingFields     []*UsingFieldMatcher
	UsingNumbers    []*NumberMatcher
	OpCodes         *OpCodesMatcher
	InvokingMethods *Collection[*MethodMatcher]
	MethodCallers   *Collection[*MethodMatcher]
}

// ParametersMatcher matches a method's parameter list positionally.
type ParametersMatcher = Collection[*ParameterMatcher]

// ParameterMatcher matches a single positional parameter.
type ParameterMatcher struct {
	TypeClass   *ClassMatcher
	Annotations *AnnotationsMatcher
}

// OpCodeToken is one element of an OpCodesMatcher sequence: a wildcard
// (Wildcard set; matches any opcode) or a specific opcode byte.
type OpCodeToken struct {
	Wildcard bool
	Opcode   byte
}

// OpCodesMatcher matches a method's opcode sequence.
type OpCodesMatcher struct {
	Count     *IntRange
	Sequence  []OpCodeToken
	MatchType MatchType // one of Equal, StartWith, EndWith, Contains
}

// UsingFieldMatcher matches a (field, read/write) pair from a method's
// field-use set.
type UsingFieldMatcher struct {
	Field     *FieldMatcher
	UsingType UsingType
}

// NumberMatcher matches a single numeric literal from a method's
// using-numbers set, regardless of its declared width/type.
type NumberMatcher struct {
	Value float64 // compared after widening both sides to float64
}

// RetentionPolicy mirrors java.lang.annotation.RetentionPolicy.
type RetentionPolicy uint8

const (
	RetentionUnspecified RetentionPolicy = iota
	RetentionSource
	RetentionClass
	RetentionRuntime
)

// AnnotationMatcher matches a single annotation instance.
type AnnotationMatcher struct {
	Type               *ClassMatcher
	TargetElementTypes uint32 // bitset, 0 = unconstrained
	Policy             *RetentionPolicy
	Elements           *AnnotationElementsMatcher
	UsingStrings       []*StringMatcher
}

// AnnotationElementMatcher matches one name/value pair of an annotation.
type AnnotationElementMatcher struct {
	Name  *StringMatcher
	Value *EncodedValueMatcher
}

// EncodedValueTag mirrors image.EncodedValueTag for the subset of tags a
// matcher can be written against.
type EncodedValueTag uint8

const (
	TagByte EncodedValueTag = iota
	TagShort
	TagChar
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagString
	TagType
	TagEnum
	TagArray
	TagAnnotation
	TagNull
	TagBoolean
)

// EncodedValueMatcher is a tagged matcher over one node of an
// encoded-value tree. Exactly one of the typed fields is meaningful,
// selected by Tag.
type EncodedValueMatcher struct {
	Tag EncodedValueTag

	Number *NumberMatcher // Byte, Short, Char, Int, Long, Float, Double
	String *StringMatcher // String, Enum (matched against the constant's field name)
	Type   *ClassMatcher  // Type
	Bool   *bool          // Boolean
	Array  *AnnotationEncodeArrayMatcher
}

// AnnotationEncodeArrayMatcher matches an ARRAY-tagged encoded value's
// element list.
type AnnotationEncodeArrayMatcher = Collection[*EncodedValueMatcher]
