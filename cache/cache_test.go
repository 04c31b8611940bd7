// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cache

import (
	"reflect"
	"sort"
	"sync"
	"testing"

	"github.com/saferwall/dxscan/bytecode"
	"github.com/saferwall/dxscan/image"
	"github.com/saferwall/dxscan/internal/testimage"
)

const allTestFlags = FlagStrings | FlagTypes | FlagProtos | FlagFields |
	FlagMethods | FlagOpcodeSeq | FlagUsingString | FlagUsingField |
	FlagMethodInvoking | FlagUsingNumber | FlagClassAnnotation |
	FlagFieldAnnotation | FlagMethodAnnotation | FlagParameterAnnotation

// buildFixture assembles one image with a class whose single method
// loads two strings, invokes a helper, reads one field, writes another,
// and materializes a few numeric literals.
func buildFixture(t *testing.T) (*testimage.Builder, *Cache) {
	t.Helper()
	b := testimage.NewBuilder()

	greet := b.String("greet")
	empty := b.String("")
	helperID := b.RawMethod("Lcom/x/Helper;", "help", "V")
	countID := b.RawField("Lcom/x/C;", "count", "I")
	tagID := b.RawField("Lcom/x/C;", "tag", "Ljava/lang/String;")

	b.AddClass(testimage.Class{
		Descriptor: "Lcom/x/C;",
		Superclass: "Ljava/lang/Object;",
		Fields: []testimage.Field{
			{Name: "count", Type: "I", AccessFlags: 0x2},
			{Name: "tag", Type: "Ljava/lang/String;", AccessFlags: 0x2},
		},
		Methods: []testimage.Method{
			{
				Name: "work", Return: "V", AccessFlags: 0x1,
				Insns: []uint16{
					0x001a, uint16(greet), // const-string "greet"
					0x001a, uint16(empty), // const-string ""
					0x0013, 0x002a, // const/16 42
					0x0019, 0x4010, // const-wide/high16
					uint16(bytecode.IgetStart), uint16(countID), // iget
					uint16(bytecode.IputStart), uint16(tagID), // iput (object variant not modeled, same range)
					0x0070, uint16(helperID), 0x0000, // invoke-direct Helper.help
					0x000e, // return-void
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

	v, err := image.NewBytes(b.Bytes())
	if err != nil {
		t.Fatalf("NewBytes failed: %v", err)
	}
	c := New(0, v, nil)
	if err := c.InitCache(allTestFlags); err != nil {
		t.Fatalf("InitCache failed: %v", err)
	}
	return b, c
}

func TestInitCacheIdempotent(t *testing.T) {
	_, c := buildFixture(t)

	before := len(c.TypeName)
	opcodes := append([]bytecode.Opcode(nil), c.MethodOpcodeSeq[0]...)

	if c.NeedInitCache(allTestFlags) {
		t.Fatal("NeedInitCache still true after full init")
	}
	if err := c.InitCache(allTestFlags); err != nil {
		t.Fatalf("second InitCache failed: %v", err)
	}
	if len(c.TypeName) != before {
		t.Errorf("TypeName length changed on second init: %d -> %d", before, len(c.TypeName))
	}
	if !reflect.DeepEqual(c.MethodOpcodeSeq[0], opcodes) {
		t.Errorf("opcode seq changed on second init")
	}
}

func TestInitCacheConcurrent(t *testing.T) {
	b := testimage.NewBuilder()
	lit := b.String("x")
	b.AddClass(testimage.Class{
		Descriptor: "La/A;",
		Methods: []testimage.Method{{
			Name: "m", Return: "V", Insns: []uint16{0x001a, uint16(lit), 0x000e},
		}},
	})
	v, err := image.NewBytes(b.Bytes())
	if err != nil {
		t.Fatalf("NewBytes failed: %v", err)
	}
	c := New(0, v, nil)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.InitCache(allTestFlags)
		}()
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent InitCache %d failed: %v", i, err)
		}
	}
	if c.NeedInitCache(allTestFlags) {
		t.Error("NeedInitCache still true after concurrent init")
	}
	mID := b.MethodID("La/A;", "m")
	if got := len(c.MethodOpcodeSeq[mID]); got != 2 {
		t.Errorf("opcode seq length got %d, want 2", got)
	}
}

func TestNeedInitCacheFlagSubsets(t *testing.T) {
	b := testimage.NewBuilder()
	b.AddClass(testimage.Class{Descriptor: "La/A;"})
	v, err := image.NewBytes(b.Bytes())
	if err != nil {
		t.Fatalf("NewBytes failed: %v", err)
	}
	c := New(0, v, nil)

	if !c.NeedInitCache(FlagTypes) {
		t.Fatal("fresh cache reports FlagTypes ready")
	}
	if err := c.InitCache(FlagTypes | FlagStrings); err != nil {
		t.Fatalf("InitCache failed: %v", err)
	}
	if c.NeedInitCache(FlagTypes) {
		t.Error("FlagTypes still missing after init")
	}
	if !c.NeedInitCache(FlagOpcodeSeq) {
		t.Error("FlagOpcodeSeq reported ready without a class-data walk")
	}
}

func TestTypeIndex(t *testing.T) {
	b, c := buildFixture(t)

	classType := b.TypeID("Lcom/x/C;")
	if got := c.TypeName[classType]; got != "Lcom/x/C;" {
		t.Errorf("TypeName got %q, want Lcom/x/C;", got)
	}
	if !c.TypeDefFlag[classType] {
		t.Error("TypeDefFlag false for a declared class")
	}
	objType := b.TypeID("Ljava/lang/Object;")
	if c.TypeDefFlag[objType] {
		t.Error("TypeDefFlag true for a merely-referenced type")
	}
	if got, ok := c.TypeIDByName["Lcom/x/C;"]; !ok || got != classType {
		t.Errorf("TypeIDByName got (%d, %v), want (%d, true)", got, ok, classType)
	}
}

func TestClassDataWalk(t *testing.T) {
	b, c := buildFixture(t)
	classType := b.TypeID("Lcom/x/C;")

	fields := append([]uint32(nil), c.ClassFieldIDs[classType]...)
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	want := []uint32{b.FieldID("Lcom/x/C;", "count"), b.FieldID("Lcom/x/C;", "tag")}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("ClassFieldIDs got %v, want %v", fields, want)
	}

	methods := c.ClassMethodIDs[classType]
	if len(methods) != 1 || methods[0] != b.MethodID("Lcom/x/C;", "work") {
		t.Errorf("ClassMethodIDs got %v, want [work]", methods)
	}
	if got := c.MethodAccessFlags[methods[0]]; got != 0x1 {
		t.Errorf("method access flags got %#x, want 0x1", got)
	}

	code := c.MethodCode[methods[0]]
	if code == nil || code == image.EmptyCodeItem {
		t.Fatal("MethodCode missing for a method with a code item")
	}
	if code != c.View.CodeItemAt(findCodeOffset(t, c.View, methods[0])) {
		t.Error("MethodCode is not the exact pointer from the class data offset")
	}
}

func findCodeOffset(t *testing.T, v *image.View, methodID uint32) uint32 {
	t.Helper()
	for _, cd := range v.ClassDefs {
		data := v.ClassDataAt(cd.ClassDataOffset)
		if data == nil {
			continue
		}
		for _, em := range append(append([]image.EncodedMethod{}, data.DirectMethods...), data.VirtualMethods...) {
			if em.MethodIdx == methodID {
				return em.CodeOffset
			}
		}
	}
	t.Fatalf("method %d not found in any class data", methodID)
	return 0
}

func TestMethodScan(t *testing.T) {
	b, c := buildFixture(t)
	workID := b.MethodID("Lcom/x/C;", "work")

	seq := c.MethodOpcodeSeq[workID]
	wantSeq := []bytecode.Opcode{
		bytecode.ConstString, bytecode.ConstString, bytecode.Const16,
		bytecode.ConstWideHigh16, bytecode.IgetStart, bytecode.IputStart,
		bytecode.InvokeDirect, bytecode.ReturnVoid,
	}
	if !reflect.DeepEqual(seq, wantSeq) {
		t.Errorf("opcode seq got %v, want %v", seq, wantSeq)
	}

	strs := c.MethodUsingStringIDs[workID]
	if len(strs) != 2 {
		t.Fatalf("using-string count got %d, want 2", len(strs))
	}
	if got := c.View.StringAt(strs[0]); got != "greet" {
		t.Errorf("first using-string got %q, want greet", got)
	}
	if got := c.View.StringAt(strs[1]); got != "" {
		t.Errorf("second using-string got %q, want empty", got)
	}

	invokes := c.MethodInvokingIDs[workID]
	if len(invokes) != 1 || invokes[0] != b.MethodID("Lcom/x/Helper;", "help") {
		t.Errorf("invoking ids got %v, want [help]", invokes)
	}

	uses := c.MethodUsingFieldIDs[workID]
	wantUses := []FieldUse{
		{FieldID: b.FieldID("Lcom/x/C;", "count"), IsGet: true},
		{FieldID: b.FieldID("Lcom/x/C;", "tag"), IsGet: false},
	}
	if !reflect.DeepEqual(uses, wantUses) {
		t.Errorf("field uses got %v, want %v", uses, wantUses)
	}

	nums := c.MethodUsingNumbers[workID]
	if len(nums) != 2 {
		t.Fatalf("number count got %d, want 2", len(nums))
	}
	if nums[0].Kind != bytecode.KindInt || nums[0].Int != 42 {
		t.Errorf("first literal got %+v, want int 42", nums[0])
	}
	if nums[1].Kind != bytecode.KindLong || nums[1].Int != int64(0x4010)<<48 {
		t.Errorf("second literal got %+v, want long %#x", nums[1], int64(0x4010)<<48)
	}
}

func TestResolveMethodAndField(t *testing.T) {
	b, c := buildFixture(t)

	id, ok := c.ResolveMethod("Lcom/x/Helper;", "help", "V")
	if !ok || id != b.MethodID("Lcom/x/Helper;", "help") {
		t.Errorf("ResolveMethod got (%d, %v), want help's id", id, ok)
	}
	if _, ok := c.ResolveMethod("Lcom/x/Helper;", "help", "I"); ok {
		t.Error("ResolveMethod matched a wrong shorty")
	}
	if _, ok := c.ResolveMethod("Lcom/x/Nothing;", "help", "V"); ok {
		t.Error("ResolveMethod matched an undeclared class")
	}

	fid, ok := c.ResolveField("Lcom/x/C;", "count")
	if !ok || fid != b.FieldID("Lcom/x/C;", "count") {
		t.Errorf("ResolveField got (%d, %v), want count's id", fid, ok)
	}
	if _, ok := c.ResolveField("Lcom/x/C;", "nope"); ok {
		t.Error("ResolveField matched a missing field")
	}
}

func TestPutCrossRef(t *testing.T) {
	_, c := buildFixture(t)

	c.PutCrossRef(3, 7, 11)
	c.PutCrossRef(3, 7, 12)
	refs := c.MethodCallerIDs[3]
	want := []CrossRef{{ImageID: 7, ID: 11}, {ImageID: 7, ID: 12}}
	if !reflect.DeepEqual(refs, want) {
		t.Errorf("MethodCallerIDs got %v, want %v", refs, want)
	}

	c.PutFieldCrossRef(5, 7, 11, true)
	c.PutFieldCrossRef(5, 7, 11, false)
	if got := c.FieldGetMethodIDs[5]; len(got) != 1 {
		t.Errorf("FieldGetMethodIDs got %v, want one entry", got)
	}
	if got := c.FieldPutMethodIDs[5]; len(got) != 1 {
		t.Errorf("FieldPutMethodIDs got %v, want one entry", got)
	}

	if c.CrossRefsBuilt() {
		t.Error("CrossRefsBuilt true before MarkCrossRefsBuilt")
	}
	c.MarkCrossRefsBuilt()
	if !c.CrossRefsBuilt() {
		t.Error("CrossRefsBuilt false after MarkCrossRefsBuilt")
	}
}

func TestAnnotationIndex(t *testing.T) {
	b := testimage.NewBuilder()
	b.AddClass(testimage.Class{
		Descriptor: "Lcom/x/Anno;",
	})
	b.AddClass(testimage.Class{
		Descriptor:  "Lcom/x/C;",
		Annotations: []testimage.Annotation{{Type: "Lcom/x/Anno;", Elements: []testimage.Element{{Name: "value", Value: testimage.Str("marked")}}}},
		Fields: []testimage.Field{
			{Name: "f", Type: "I", Annotations: []testimage.Annotation{{Type: "Lcom/x/Anno;"}}},
		},
		Methods: []testimage.Method{
			{
				Name: "m", Return: "V", Insns: []uint16{0x000e},
				Annotations:      []testimage.Annotation{{Type: "Lcom/x/Anno;"}},
				ParamAnnotations: [][]testimage.Annotation{{{Type: "Lcom/x/Anno;"}}},
			},
		},
	})
	v, err := image.NewBytes(b.Bytes())
	if err != nil {
		t.Fatalf("NewBytes failed: %v", err)
	}
	c := New(0, v, nil)
	if err := c.InitCache(allTestFlags); err != nil {
		t.Fatalf("InitCache failed: %v", err)
	}

	classType := b.TypeID("Lcom/x/C;")
	annoType := b.TypeID("Lcom/x/Anno;")

	set := c.ClassAnnotations[classType]
	if set == nil || len(set.Items) != 1 {
		t.Fatalf("class annotations got %v, want one item", set)
	}
	if set.Items[0].Annotation.TypeIdx != annoType {
		t.Errorf("class annotation type got %d, want %d", set.Items[0].Annotation.TypeIdx, annoType)
	}
	if got := c.View.StringAt(set.Items[0].Annotation.Elements[0].Value.Str); got != "marked" {
		t.Errorf("annotation element value got %q, want marked", got)
	}

	if c.FieldAnnotations[b.FieldID("Lcom/x/C;", "f")] == nil {
		t.Error("field annotations missing")
	}
	mID := b.MethodID("Lcom/x/C;", "m")
	if c.MethodAnnotations[mID] == nil {
		t.Error("method annotations missing")
	}
	params := c.MethodParameterAnnotations[mID]
	if len(params) != 1 || params[0] == nil || len(params[0].Items) != 1 {
		t.Errorf("parameter annotations got %v, want one set with one item", params)
	}
}

func TestWellKnownIDs(t *testing.T) {
	b := testimage.NewBuilder()
	b.Type("Ljava/lang/annotation/Retention;")
	b.Type("Ljava/lang/annotation/RetentionPolicy;")
	b.AddClass(testimage.Class{Descriptor: "La/A;"})
	v, err := image.NewBytes(b.Bytes())
	if err != nil {
		t.Fatalf("NewBytes failed: %v", err)
	}
	c := New(0, v, nil)
	if err := c.InitCache(FlagStrings | FlagTypes); err != nil {
		t.Fatalf("InitCache failed: %v", err)
	}

	if id, ok := c.WellKnownRetentionType(); !ok || id != b.TypeID("Ljava/lang/annotation/Retention;") {
		t.Errorf("WellKnownRetentionType got (%d, %v)", id, ok)
	}
	if id, ok := c.WellKnownRetentionPolicyType(); !ok || id != b.TypeID("Ljava/lang/annotation/RetentionPolicy;") {
		t.Errorf("WellKnownRetentionPolicyType got (%d, %v)", id, ok)
	}
	if _, ok := c.WellKnownTargetType(); ok {
		t.Error("WellKnownTargetType resolved in an image that never references it")
	}
}

func TestResolveEnumValue(t *testing.T) {
	b, c := buildFixture(t)
	countID := b.FieldID("Lcom/x/C;", "count")

	v := &image.EncodedValue{Tag: image.ValueEnum, Int: int64(countID)}
	if got := c.ResolveEnumValue(v); got != "count" {
		t.Errorf("ResolveEnumValue got %q, want count", got)
	}
	wrong := &image.EncodedValue{Tag: image.ValueString, Int: int64(countID)}
	if got := c.ResolveEnumValue(wrong); got != "" {
		t.Errorf("ResolveEnumValue on non-enum got %q, want empty", got)
	}
}
