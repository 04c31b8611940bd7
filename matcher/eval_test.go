// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package matcher

import (
	"testing"

	"github.com/saferwall/dxscan/cache"
	"github.com/saferwall/dxscan/image"
	"github.com/saferwall/dxscan/internal/testimage"
	"github.com/saferwall/dxscan/matcher/memo"
)

const evalFlags = cache.FlagStrings | cache.FlagTypes | cache.FlagProtos |
	cache.FlagFields | cache.FlagMethods | cache.FlagOpcodeSeq |
	cache.FlagUsingString | cache.FlagUsingField | cache.FlagMethodInvoking |
	cache.FlagUsingNumber | cache.FlagClassAnnotation | cache.FlagFieldAnnotation |
	cache.FlagMethodAnnotation | cache.FlagParameterAnnotation

type imageSetMap map[uint32]*cache.Cache

func (s imageSetMap) CacheFor(imageID uint32) *cache.Cache { return s[imageID] }

func buildCache(t *testing.T, imageID uint32, b *testimage.Builder) *cache.Cache {
	t.Helper()
	v, err := image.NewBytes(b.Bytes())
	if err != nil {
		t.Fatalf("NewBytes failed: %v", err)
	}
	c := cache.New(imageID, v, nil)
	if err := c.InitCache(evalFlags); err != nil {
		t.Fatalf("InitCache failed: %v", err)
	}
	return c
}

func newTestContext(caches ...*cache.Cache) *Context {
	set := make(imageSetMap)
	for _, c := range caches {
		set[c.ImageID] = c
	}
	return &Context{Images: set, Memo: memo.New()}
}

// fixtureBuilder declares Lcom/x/C; with fields {a:int, b:String,
// c:long}, a work() method exercising strings/fields/numbers/invokes,
// and the Lcom/x/Helper; class work() calls into.
func fixtureBuilder() *testimage.Builder {
	b := testimage.NewBuilder()
	lit := b.String("reSendEmo 123")
	helper := b.RawMethod("Lcom/x/Helper;", "help", "V")
	aField := b.RawField("Lcom/x/C;", "a", "I")
	cField := b.RawField("Lcom/x/C;", "c", "J")

	b.AddClass(testimage.Class{
		Descriptor:  "Lcom/x/C;",
		AccessFlags: 0x1,
		Superclass:  "Ljava/lang/Object;",
		Interfaces:  []string{"Ljava/lang/Runnable;", "Ljava/io/Serializable;"},
		SourceFile:  "C.java",
		Fields: []testimage.Field{
			{Name: "a", Type: "I", AccessFlags: 0x2},
			{Name: "b", Type: "Ljava/lang/String;", AccessFlags: 0x2},
			{Name: "c", Type: "J", AccessFlags: 0x2},
		},
		Methods: []testimage.Method{
			{
				Name: "work", Return: "I", Params: []string{"I", "Ljava/lang/String;"},
				AccessFlags: 0x1,
				Insns: []uint16{
					0x001a, uint16(lit), // const-string "reSendEmo 123"
					0x0013, 0x002a, // const/16 42
					0x0052, uint16(aField), // iget a
					0x0067, uint16(cField), // sput c (opcode range only; flags don't matter here)
					0x0070, uint16(helper), 0x0000, // invoke-direct Helper.help
					0x000e,
				},
			},
		},
	})
	b.AddClass(testimage.Class{
		Descriptor: "Lcom/x/Helper;",
		Methods: []testimage.Method{
			{Name: "help", Return: "V", AccessFlags: 0x9, Insns: []uint16{0x000e}},
		},
	})
	return b
}

func TestMatchClass(t *testing.T) {
	b := fixtureBuilder()
	c := buildCache(t, 0, b)
	classID := b.TypeID("Lcom/x/C;")

	tests := []struct {
		name string
		m    *ClassMatcher
		out  bool
	}{
		{"nil matcher", nil, true},
		{"by name", &ClassMatcher{ClassName: &StringMatcher{Value: "Lcom/x/C;", MatchType: Equal}}, true},
		{"by source name", &ClassMatcher{ClassName: &StringMatcher{Value: "com.x.C", MatchType: Equal}}, true},
		{"wrong name", &ClassMatcher{ClassName: &StringMatcher{Value: "Lcom/x/D;", MatchType: Equal}}, false},
		{"by source file", &ClassMatcher{SmaliSource: &StringMatcher{Value: "C.java", MatchType: Equal}}, true},
		{"by access flags", &ClassMatcher{AccessFlags: &AccessFlagsMatcher{Flags: 0x1, MatchType: FlagsContains}}, true},
		{
			"interfaces contains one",
			&ClassMatcher{Interfaces: &Collection[*ClassMatcher]{
				List: []*ClassMatcher{{ClassName: &StringMatcher{Value: "Ljava/lang/Runnable;", MatchType: Equal}}},
			}},
			true,
		},
		{
			"interfaces equal needs same size",
			&ClassMatcher{Interfaces: &Collection[*ClassMatcher]{
				List:      []*ClassMatcher{{ClassName: &StringMatcher{Value: "Ljava/lang/Runnable;", MatchType: Equal}}},
				MatchType: CollectionEqual,
			}},
			false,
		},
		{
			"interface count range",
			&ClassMatcher{Interfaces: &Collection[*ClassMatcher]{Count: &IntRange{Min: 2, Max: 2}}},
			true,
		},
		{
			"using strings across methods",
			&ClassMatcher{UsingStrings: []*StringMatcher{{Value: "^reSendEmo", MatchType: SimilarRegex}}},
			true,
		},
		{
			"using strings miss",
			&ClassMatcher{UsingStrings: []*StringMatcher{{Value: "qimei=", MatchType: Equal}}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext(c)
			if got := MatchClass(ctx, 0, classID, tt.m); got != tt.out {
				t.Errorf("MatchClass got %v, want %v", got, tt.out)
			}
		})
	}
}

func TestMatchClassFieldsHungarian(t *testing.T) {
	b := fixtureBuilder()
	c := buildCache(t, 0, b)
	classID := b.TypeID("Lcom/x/C;")

	typeField := func(desc string) *FieldMatcher {
		return &FieldMatcher{TypeClass: &ClassMatcher{ClassName: &StringMatcher{Value: desc, MatchType: Equal}}}
	}

	tests := []struct {
		name string
		m    *Collection[*FieldMatcher]
		out  bool
	}{
		{
			"contains int and long",
			&Collection[*FieldMatcher]{List: []*FieldMatcher{typeField("I"), typeField("J")}},
			true,
		},
		{
			"equal with all three",
			&Collection[*FieldMatcher]{
				List:      []*FieldMatcher{typeField("I"), typeField("J"), typeField("Ljava/lang/String;")},
				MatchType: CollectionEqual,
			},
			true,
		},
		{
			"equal missing one pattern",
			&Collection[*FieldMatcher]{
				List:      []*FieldMatcher{typeField("I"), typeField("J")},
				MatchType: CollectionEqual,
			},
			false,
		},
		{
			"unsatisfiable fourth pattern",
			&Collection[*FieldMatcher]{
				List: []*FieldMatcher{typeField("I"), typeField("J"), typeField("Ljava/lang/String;"), typeField("F")},
			},
			false,
		},
		{
			"empty count over non-empty set",
			&Collection[*FieldMatcher]{Count: &IntRange{Min: 0, Max: 0}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext(c)
			got := MatchClass(ctx, 0, classID, &ClassMatcher{Fields: tt.m})
			if got != tt.out {
				t.Errorf("MatchClass(fields) got %v, want %v", got, tt.out)
			}
		})
	}
}

func TestMatchMethod(t *testing.T) {
	b := fixtureBuilder()
	c := buildCache(t, 0, b)
	workID := b.MethodID("Lcom/x/C;", "work")

	tests := []struct {
		name string
		m    *MethodMatcher
		out  bool
	}{
		{"by name", &MethodMatcher{Name: &StringMatcher{Value: "work", MatchType: Equal}}, true},
		{
			"declaring class",
			&MethodMatcher{DeclaringClass: &ClassMatcher{ClassName: &StringMatcher{Value: "Lcom/x/C;", MatchType: Equal}}},
			true,
		},
		{
			"return type",
			&MethodMatcher{ReturnType: &ClassMatcher{ClassName: &StringMatcher{Value: "int", MatchType: Equal}}},
			true,
		},
		{
			"parameters positional",
			&MethodMatcher{Parameters: &Collection[*ParameterMatcher]{List: []*ParameterMatcher{
				{TypeClass: &ClassMatcher{ClassName: &StringMatcher{Value: "I", MatchType: Equal}}},
				{TypeClass: &ClassMatcher{ClassName: &StringMatcher{Value: "Ljava/lang/String;", MatchType: Equal}}},
			}}},
			true,
		},
		{
			"parameters wrong order",
			&MethodMatcher{Parameters: &Collection[*ParameterMatcher]{List: []*ParameterMatcher{
				{TypeClass: &ClassMatcher{ClassName: &StringMatcher{Value: "Ljava/lang/String;", MatchType: Equal}}},
				{TypeClass: &ClassMatcher{ClassName: &StringMatcher{Value: "I", MatchType: Equal}}},
			}}},
			false,
		},
		{
			"parameters wildcard position",
			&MethodMatcher{Parameters: &Collection[*ParameterMatcher]{List: []*ParameterMatcher{
				nil,
				{TypeClass: &ClassMatcher{ClassName: &StringMatcher{Value: "Ljava/lang/String;", MatchType: Equal}}},
			}}},
			true,
		},
		{
			"parameter count",
			&MethodMatcher{Parameters: &Collection[*ParameterMatcher]{Count: &IntRange{Min: 2, Max: 2}}},
			true,
		},
		{
			"opcodes startwith with wildcard",
			&MethodMatcher{OpCodes: &OpCodesMatcher{
				Sequence:  toks(0x1a, -1, 0x52),
				MatchType: StartWith,
			}},
			true,
		},
		{
			"opcodes empty sequence count only",
			&MethodMatcher{OpCodes: &OpCodesMatcher{Count: &IntRange{Min: 6, Max: 6}}},
			true,
		},
		{
			"using string",
			&MethodMatcher{UsingStrings: []*StringMatcher{{Value: "reSendEmo 123", MatchType: Equal}}},
			true,
		},
		{
			"using number",
			&MethodMatcher{UsingNumbers: []*NumberMatcher{{Value: 42}}},
			true,
		},
		{
			"using number miss",
			&MethodMatcher{UsingNumbers: []*NumberMatcher{{Value: 43}}},
			false,
		},
		{
			"using field get",
			&MethodMatcher{UsingFields: []*UsingFieldMatcher{{
				Field:     &FieldMatcher{Name: &StringMatcher{Value: "a", MatchType: Equal}},
				UsingType: UsingGet,
			}}},
			true,
		},
		{
			"using field put rejects the get",
			&MethodMatcher{UsingFields: []*UsingFieldMatcher{{
				Field:     &FieldMatcher{Name: &StringMatcher{Value: "a", MatchType: Equal}},
				UsingType: UsingPut,
			}}},
			false,
		},
		{
			"using field any",
			&MethodMatcher{UsingFields: []*UsingFieldMatcher{{
				Field:     &FieldMatcher{Name: &StringMatcher{Value: "c", MatchType: Equal}},
				UsingType: UsingAny,
			}}},
			true,
		},
		{
			"invoking methods",
			&MethodMatcher{InvokingMethods: &Collection[*MethodMatcher]{List: []*MethodMatcher{
				{Name: &StringMatcher{Value: "help", MatchType: Equal}},
			}}},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext(c)
			if got := MatchMethod(ctx, 0, workID, tt.m); got != tt.out {
				t.Errorf("MatchMethod got %v, want %v", got, tt.out)
			}
		})
	}
}

func TestMatchFieldCrossImageRedirect(t *testing.T) {
	// Image 0 references Lcom/b/B;.shared without declaring it; image 1
	// declares it. A redirect entry must transfer the evaluation.
	b0 := fixtureBuilder()
	refID := b0.RawField("Lcom/b/B;", "shared", "I")
	c0 := buildCache(t, 0, b0)

	b1 := testimage.NewBuilder()
	b1.AddClass(testimage.Class{
		Descriptor: "Lcom/b/B;",
		Fields:     []testimage.Field{{Name: "shared", Type: "I", AccessFlags: 0x9}},
	})
	c1 := buildCache(t, 1, b1)

	c0.FieldCrossInfo[refID] = cache.CrossRef{ImageID: 1, ID: b1.FieldID("Lcom/b/B;", "shared")}

	ctx := newTestContext(c0, c1)
	m := &FieldMatcher{
		Name:           &StringMatcher{Value: "shared", MatchType: Equal},
		DeclaringClass: &ClassMatcher{ClassName: &StringMatcher{Value: "Lcom/b/B;", MatchType: Equal}},
		AccessFlags:    &AccessFlagsMatcher{Flags: 0x9, MatchType: FlagsEqual},
	}
	if !MatchField(ctx, 0, refID, m) {
		t.Error("redirected field evaluation failed, want match in owning image")
	}
}

func TestMatchMethodCallers(t *testing.T) {
	b := fixtureBuilder()
	c := buildCache(t, 0, b)
	helpID := b.MethodID("Lcom/x/Helper;", "help")
	workID := b.MethodID("Lcom/x/C;", "work")

	// Simulate the put-cross-ref pass: work calls help.
	c.MethodCallerIDs[helpID] = []cache.CrossRef{{ImageID: 0, ID: workID}}

	ctx := newTestContext(c)
	m := &MethodMatcher{
		MethodCallers: &Collection[*MethodMatcher]{List: []*MethodMatcher{
			{DeclaringClass: &ClassMatcher{ClassName: &StringMatcher{Value: "Lcom/x/C;", MatchType: Equal}}},
		}},
	}
	if !MatchMethod(ctx, 0, helpID, m) {
		t.Error("method_callers match failed, want help matched via caller work")
	}

	miss := &MethodMatcher{
		MethodCallers: &Collection[*MethodMatcher]{List: []*MethodMatcher{
			{DeclaringClass: &ClassMatcher{ClassName: &StringMatcher{Value: "Lcom/y/Z;", MatchType: Equal}}},
		}},
	}
	if MatchMethod(ctx, 0, helpID, miss) {
		t.Error("method_callers matched a caller class that never calls")
	}
}

func TestMatchSuperClassRecursion(t *testing.T) {
	b := testimage.NewBuilder()
	b.AddClass(testimage.Class{Descriptor: "Lcom/x/Base;", Superclass: "Ljava/lang/Object;"})
	b.AddClass(testimage.Class{Descriptor: "Lcom/x/Derived;", Superclass: "Lcom/x/Base;"})
	c := buildCache(t, 0, b)

	ctx := newTestContext(c)
	m := &ClassMatcher{
		SuperClass: &ClassMatcher{ClassName: &StringMatcher{Value: "Lcom/x/Base;", MatchType: Equal}},
	}
	if !MatchClass(ctx, 0, b.TypeID("Lcom/x/Derived;"), m) {
		t.Error("super-class recursion failed")
	}
	if MatchClass(ctx, 0, b.TypeID("Lcom/x/Base;"), m) {
		t.Error("Base's super is Object, must not match Lcom/x/Base;")
	}
}

func TestMatchAnnotations(t *testing.T) {
	b := testimage.NewBuilder()
	b.AddClass(testimage.Class{Descriptor: "Lcom/x/Marker;"})
	b.AddClass(testimage.Class{
		Descriptor: "Lcom/x/C;",
		Annotations: []testimage.Annotation{{
			Type: "Lcom/x/Marker;",
			Elements: []testimage.Element{
				{Name: "value", Value: testimage.Str("tagged")},
				{Name: "count", Value: testimage.Int(3)},
				{Name: "names", Value: testimage.Array(testimage.Str("x"), testimage.Str("y"))},
			},
		}},
	})
	c := buildCache(t, 0, b)
	classID := b.TypeID("Lcom/x/C;")

	tests := []struct {
		name string
		m    *AnnotationsMatcher
		out  bool
	}{
		{
			"by type",
			&Collection[*AnnotationMatcher]{List: []*AnnotationMatcher{
				{Type: &ClassMatcher{ClassName: &StringMatcher{Value: "Lcom/x/Marker;", MatchType: Equal}}},
			}},
			true,
		},
		{
			"string element",
			&Collection[*AnnotationMatcher]{List: []*AnnotationMatcher{
				{Elements: &Collection[*AnnotationElementMatcher]{List: []*AnnotationElementMatcher{
					{
						Name:  &StringMatcher{Value: "value", MatchType: Equal},
						Value: &EncodedValueMatcher{Tag: TagString, String: &StringMatcher{Value: "tagged", MatchType: Equal}},
					},
				}}},
			}},
			true,
		},
		{
			"int element",
			&Collection[*AnnotationMatcher]{List: []*AnnotationMatcher{
				{Elements: &Collection[*AnnotationElementMatcher]{List: []*AnnotationElementMatcher{
					{
						Name:  &StringMatcher{Value: "count", MatchType: Equal},
						Value: &EncodedValueMatcher{Tag: TagInt, Number: &NumberMatcher{Value: 3}},
					},
				}}},
			}},
			true,
		},
		{
			"array element hungarian",
			&Collection[*AnnotationMatcher]{List: []*AnnotationMatcher{
				{Elements: &Collection[*AnnotationElementMatcher]{List: []*AnnotationElementMatcher{
					{
						Name: &StringMatcher{Value: "names", MatchType: Equal},
						Value: &EncodedValueMatcher{Tag: TagArray, Array: &Collection[*EncodedValueMatcher]{
							List: []*EncodedValueMatcher{
								{Tag: TagString, String: &StringMatcher{Value: "y", MatchType: Equal}},
							},
						}},
					},
				}}},
			}},
			true,
		},
		{
			"annotation using strings",
			&Collection[*AnnotationMatcher]{List: []*AnnotationMatcher{
				{UsingStrings: []*StringMatcher{{Value: "tagged", MatchType: Equal}}},
			}},
			true,
		},
		{
			"element value miss",
			&Collection[*AnnotationMatcher]{List: []*AnnotationMatcher{
				{Elements: &Collection[*AnnotationElementMatcher]{List: []*AnnotationElementMatcher{
					{
						Name:  &StringMatcher{Value: "value", MatchType: Equal},
						Value: &EncodedValueMatcher{Tag: TagString, String: &StringMatcher{Value: "other", MatchType: Equal}},
					},
				}}},
			}},
			false,
		},
		{
			"count zero over annotated class",
			&Collection[*AnnotationMatcher]{Count: &IntRange{Min: 0, Max: 0}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext(c)
			got := MatchClass(ctx, 0, classID, &ClassMatcher{Annotations: tt.m})
			if got != tt.out {
				t.Errorf("MatchClass(annotations) got %v, want %v", got, tt.out)
			}
		})
	}
}

func TestMatchParameterAnnotations(t *testing.T) {
	b := testimage.NewBuilder()
	b.AddClass(testimage.Class{Descriptor: "Lcom/x/Marker;"})
	b.AddClass(testimage.Class{
		Descriptor: "Lcom/x/C;",
		Methods: []testimage.Method{{
			Name: "m", Return: "V", Params: []string{"I", "J"},
			Insns:            []uint16{0x000e},
			ParamAnnotations: [][]testimage.Annotation{nil, {{Type: "Lcom/x/Marker;"}}},
		}},
	})
	c := buildCache(t, 0, b)
	mID := b.MethodID("Lcom/x/C;", "m")

	annotated := &Collection[*AnnotationMatcher]{List: []*AnnotationMatcher{
		{Type: &ClassMatcher{ClassName: &StringMatcher{Value: "Lcom/x/Marker;", MatchType: Equal}}},
	}}

	ctx := newTestContext(c)
	if !MatchMethod(ctx, 0, mID, &MethodMatcher{
		Parameters: &Collection[*ParameterMatcher]{List: []*ParameterMatcher{nil, {Annotations: annotated}}},
	}) {
		t.Error("second parameter's annotation not matched")
	}
	if MatchMethod(ctx, 0, mID, &MethodMatcher{
		Parameters: &Collection[*ParameterMatcher]{List: []*ParameterMatcher{{Annotations: annotated}, nil}},
	}) {
		t.Error("first parameter has no annotation, must not match")
	}
}
