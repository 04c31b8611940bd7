// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package testimage builds well-formed in-memory container images for
// tests: a fluent Builder that interns strings/types/protos/fields/
// methods the way a compiler's emitter would, then serializes the whole
// thing into the byte layout image.Parse expects. Tests feed the result
// to image.NewBytes or engine.AddImageBytes instead of shipping binary
// fixture files.
package testimage

import (
	"fmt"
	"sort"
)

// Value is one encoded-value literal in an annotation element. Build
// them with the Int/Long/Str/Bool/Enum/TypeOf/Array constructors.
type Value struct {
	tag   byte
	i     int64
	s     string
	typ   string
	b     bool
	arr   []Value
	field uint32
}

// Int builds a 32-bit integer encoded value.
func Int(v int32) Value { return Value{tag: 0x04, i: int64(v)} }

// Long builds a 64-bit integer encoded value.
func Long(v int64) Value { return Value{tag: 0x06, i: v} }

// Str builds a string encoded value.
func Str(s string) Value { return Value{tag: 0x17, s: s} }

// Bool builds a boolean encoded value.
func Bool(v bool) Value { return Value{tag: 0x1f, b: v} }

// Enum builds an enum encoded value referencing a field id previously
// obtained from Builder.RawField.
func Enum(fieldID uint32) Value { return Value{tag: 0x1b, field: fieldID} }

// TypeOf builds a type encoded value from a descriptor.
func TypeOf(descriptor string) Value { return Value{tag: 0x18, typ: descriptor} }

// Array builds an array encoded value.
func Array(vals ...Value) Value { return Value{tag: 0x1c, arr: vals} }

// Element is one name/value pair of an annotation.
type Element struct {
	Name  string
	Value Value
}

// Annotation declares one annotation instance on a class, field, method,
// or parameter.
type Annotation struct {
	Type     string // descriptor of the annotation's own type
	Elements []Element
}

// Field declares one field of a Class.
type Field struct {
	Name        string
	Type        string // descriptor
	AccessFlags uint32
	Static      bool
	Annotations []Annotation
}

// Method declares one method of a Class.
type Method struct {
	Name        string
	Return      string   // descriptor, "V" for void
	Params      []string // descriptors
	AccessFlags uint32
	Virtual     bool
	Insns       []uint16 // nil for abstract/native methods
	Annotations []Annotation
	// ParamAnnotations carries one annotation list per parameter
	// position; nil skips the parameter-annotation directory entry.
	ParamAnnotations [][]Annotation
}

// Class declares one class-def, its members, and its annotations.
type Class struct {
	Descriptor  string
	AccessFlags uint32
	Superclass  string   // "" for none
	Interfaces  []string // descriptors
	SourceFile  string   // "" for none
	Annotations []Annotation
	Fields      []Field
	Methods     []Method
}

const noIndex = ^uint32(0)

type protoRow struct {
	shortyIdx uint32
	returnIdx uint32
	params    []uint32
}

type fieldRow struct{ class, typ, name uint32 }

type methodRow struct{ class, proto, name uint32 }

type classEntry struct {
	spec     Class
	fieldIDs []uint32 // parallel to spec.Fields
	methods  []uint32 // parallel to spec.Methods
}

// Builder accumulates declarations and serializes them with Bytes.
type Builder struct {
	strings   []string
	stringIdx map[string]uint32

	types   []uint32 // descriptor string ids
	typeIdx map[string]uint32

	protos   []protoRow
	protoIdx map[string]uint32

	fields   []fieldRow
	fieldIdx map[string]uint32

	methods   []methodRow
	methodIdx map[string]uint32

	classes []*classEntry
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		stringIdx: make(map[string]uint32),
		typeIdx:   make(map[string]uint32),
		protoIdx:  make(map[string]uint32),
		fieldIdx:  make(map[string]uint32),
		methodIdx: make(map[string]uint32),
	}
}

// String interns s into the string table and returns its id.
func (b *Builder) String(s string) uint32 {
	if id, ok := b.stringIdx[s]; ok {
		return id
	}
	id := uint32(len(b.strings))
	b.strings = append(b.strings, s)
	b.stringIdx[s] = id
	return id
}

// Type interns a descriptor into the type-id table and returns its id.
func (b *Builder) Type(descriptor string) uint32 {
	if id, ok := b.typeIdx[descriptor]; ok {
		return id
	}
	strID := b.String(descriptor)
	id := uint32(len(b.types))
	b.types = append(b.types, strID)
	b.typeIdx[descriptor] = id
	return id
}

func shortyChar(descriptor string) byte {
	if len(descriptor) == 0 {
		return 'V'
	}
	c := descriptor[0]
	if c == 'L' || c == '[' {
		return 'L'
	}
	return c
}

func shortyOf(ret string, params []string) string {
	s := make([]byte, 0, len(params)+1)
	s = append(s, shortyChar(ret))
	for _, p := range params {
		s = append(s, shortyChar(p))
	}
	return string(s)
}

// Proto interns a (return, params) prototype and returns its id.
func (b *Builder) Proto(ret string, params ...string) uint32 {
	key := ret
	for _, p := range params {
		key += "|" + p
	}
	if id, ok := b.protoIdx[key]; ok {
		return id
	}
	row := protoRow{
		shortyIdx: b.String(shortyOf(ret, params)),
		returnIdx: b.Type(ret),
	}
	for _, p := range params {
		row.params = append(row.params, b.Type(p))
	}
	id := uint32(len(b.protos))
	b.protos = append(b.protos, row)
	b.protoIdx[key] = id
	return id
}

// RawField interns a field-id row (declared here or merely referenced)
// and returns its id, usable as an iget/iput/sget/sput operand.
func (b *Builder) RawField(classDesc, name, typeDesc string) uint32 {
	key := classDesc + "->" + name
	if id, ok := b.fieldIdx[key]; ok {
		return id
	}
	row := fieldRow{class: b.Type(classDesc), typ: b.Type(typeDesc), name: b.String(name)}
	id := uint32(len(b.fields))
	b.fields = append(b.fields, row)
	b.fieldIdx[key] = id
	return id
}

// RawMethod interns a method-id row and returns its id, usable as an
// invoke-* operand. Referencing a class never declared in this image is
// how tests model cross-image call edges.
func (b *Builder) RawMethod(classDesc, name, ret string, params ...string) uint32 {
	protoID := b.Proto(ret, params...)
	key := fmt.Sprintf("%s->%s/%d", classDesc, name, protoID)
	if id, ok := b.methodIdx[key]; ok {
		return id
	}
	row := methodRow{class: b.Type(classDesc), proto: protoID, name: b.String(name)}
	id := uint32(len(b.methods))
	b.methods = append(b.methods, row)
	b.methodIdx[key] = id
	return id
}

// AddClass registers a class-def and all its members, returning the
// class's type id.
func (b *Builder) AddClass(c Class) uint32 {
	typeID := b.Type(c.Descriptor)
	entry := &classEntry{spec: c}
	for _, f := range c.Fields {
		entry.fieldIDs = append(entry.fieldIDs, b.RawField(c.Descriptor, f.Name, f.Type))
	}
	for _, m := range c.Methods {
		entry.methods = append(entry.methods, b.RawMethod(c.Descriptor, m.Name, m.Return, m.Params...))
	}
	if c.Superclass != "" {
		b.Type(c.Superclass)
	}
	for _, iface := range c.Interfaces {
		b.Type(iface)
	}
	if c.SourceFile != "" {
		b.String(c.SourceFile)
	}
	b.registerAnnotationNames(c.Annotations)
	for _, f := range c.Fields {
		b.registerAnnotationNames(f.Annotations)
	}
	for _, m := range c.Methods {
		b.registerAnnotationNames(m.Annotations)
		for _, list := range m.ParamAnnotations {
			b.registerAnnotationNames(list)
		}
	}
	b.classes = append(b.classes, entry)
	return typeID
}

func (b *Builder) registerAnnotationNames(annos []Annotation) {
	for _, a := range annos {
		b.Type(a.Type)
		for _, el := range a.Elements {
			b.String(el.Name)
			b.registerValueNames(el.Value)
		}
	}
}

func (b *Builder) registerValueNames(v Value) {
	switch v.tag {
	case 0x17:
		b.String(v.s)
	case 0x18:
		b.Type(v.typ)
	case 0x1c:
		for _, e := range v.arr {
			b.registerValueNames(e)
		}
	}
}

// MethodID returns the interned method id for a class/name pair declared
// via AddClass or RawMethod, panicking if it was never registered —
// fixture wiring errors should fail loudly at build time, not produce an
// image that silently tests nothing.
func (b *Builder) MethodID(classDesc, name string) uint32 {
	prefix := classDesc + "->" + name + "/"
	for key, id := range b.methodIdx {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			return id
		}
	}
	panic("testimage: method not registered: " + classDesc + "->" + name)
}

// FieldID returns the interned field id for a class/name pair.
func (b *Builder) FieldID(classDesc, name string) uint32 {
	id, ok := b.fieldIdx[classDesc+"->"+name]
	if !ok {
		panic("testimage: field not registered: " + classDesc + "->" + name)
	}
	return id
}

// TypeID returns the interned type id of a descriptor.
func (b *Builder) TypeID(descriptor string) uint32 {
	id, ok := b.typeIdx[descriptor]
	if !ok {
		panic("testimage: type not registered: " + descriptor)
	}
	return id
}

// writer accumulates the output image with little-endian primitives.
type writer struct{ buf []byte }

func (w *writer) pos() uint32 { return uint32(len(w.buf)) }

func (w *writer) raw(b []byte) { w.buf = append(w.buf, b...) }

func (w *writer) u8(v uint8) { w.buf = append(w.buf, v) }

func (w *writer) u16(v uint16) { w.buf = append(w.buf, byte(v), byte(v>>8)) }

func (w *writer) u32(v uint32) {
	w.buf = append(w.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (w *writer) u32At(off uint32, v uint32) {
	w.buf[off] = byte(v)
	w.buf[off+1] = byte(v >> 8)
	w.buf[off+2] = byte(v >> 16)
	w.buf[off+3] = byte(v >> 24)
}

func (w *writer) uleb(v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.buf = append(w.buf, b)
		if v == 0 {
			return
		}
	}
}

const headerSize = 8 + 6*8

var magic = []byte("dxscan01")

// Bytes serializes everything registered so far into a parseable image.
func (b *Builder) Bytes() []byte {
	w := &writer{}
	w.raw(magic)
	for i := 0; i < 6*2; i++ {
		w.u32(0) // header pairs patched below
	}

	// String data entries, then the offset index the header points at.
	entryOffs := make([]uint32, len(b.strings))
	for i, s := range b.strings {
		entryOffs[i] = w.pos()
		w.uleb(uint64(len(s)))
		w.raw([]byte(s))
	}
	stringsOff := w.pos()
	for _, off := range entryOffs {
		w.u32(off)
	}

	typesOff := w.pos()
	for _, strID := range b.types {
		w.u32(strID)
	}

	writeTypeList := func(ids []uint32) uint32 {
		if len(ids) == 0 {
			return 0
		}
		off := w.pos()
		w.u32(uint32(len(ids)))
		for _, id := range ids {
			w.u32(id)
		}
		return off
	}

	protoParamOffs := make([]uint32, len(b.protos))
	for i, p := range b.protos {
		protoParamOffs[i] = writeTypeList(p.params)
	}
	protosOff := w.pos()
	for i, p := range b.protos {
		w.u32(p.shortyIdx)
		w.u32(p.returnIdx)
		w.u32(protoParamOffs[i])
	}

	fieldsOff := w.pos()
	for _, f := range b.fields {
		w.u32(f.class)
		w.u32(f.typ)
		w.u32(f.name)
	}

	methodsOff := w.pos()
	for _, m := range b.methods {
		w.u32(m.class)
		w.u32(m.proto)
		w.u32(m.name)
	}

	classDataOffs := make([]uint32, len(b.classes))
	annoDirOffs := make([]uint32, len(b.classes))
	ifaceOffs := make([]uint32, len(b.classes))
	for ci, entry := range b.classes {
		var ifaceIDs []uint32
		for _, iface := range entry.spec.Interfaces {
			ifaceIDs = append(ifaceIDs, b.typeIdx[iface])
		}
		ifaceOffs[ci] = writeTypeList(ifaceIDs)

		codeOffs := make([]uint32, len(entry.spec.Methods))
		for mi, m := range entry.spec.Methods {
			if m.Insns == nil {
				continue
			}
			codeOffs[mi] = w.pos()
			w.u16(8) // registers
			w.u16(uint16(len(m.Params)))
			w.u16(2) // outs
			w.u16(0) // tries
			w.u32(0) // debug info
			w.u32(uint32(len(m.Insns)))
			for _, u := range m.Insns {
				w.u16(u)
			}
		}

		classDataOffs[ci] = b.writeClassData(w, entry, codeOffs)
		annoDirOffs[ci] = b.writeAnnotationsDirectory(w, entry)
	}

	classDefsOff := w.pos()
	for ci, entry := range b.classes {
		c := entry.spec
		w.u32(b.typeIdx[c.Descriptor])
		w.u32(c.AccessFlags)
		if c.Superclass != "" {
			w.u32(b.typeIdx[c.Superclass])
		} else {
			w.u32(noIndex)
		}
		w.u32(ifaceOffs[ci])
		if c.SourceFile != "" {
			w.u32(b.stringIdx[c.SourceFile])
		} else {
			w.u32(noIndex)
		}
		w.u32(annoDirOffs[ci])
		w.u32(classDataOffs[ci])
		w.u32(0) // static values
	}

	pairs := []uint32{
		uint32(len(b.strings)), stringsOff,
		uint32(len(b.types)), typesOff,
		uint32(len(b.protos)), protosOff,
		uint32(len(b.fields)), fieldsOff,
		uint32(len(b.methods)), methodsOff,
		uint32(len(b.classes)), classDefsOff,
	}
	for i, v := range pairs {
		w.u32At(uint32(8+i*4), v)
	}
	return w.buf
}

type memberID struct {
	id    uint32
	flags uint32
	code  uint32
}

func deltaEncode(w *writer, members []memberID, withCode bool) {
	sort.Slice(members, func(i, j int) bool { return members[i].id < members[j].id })
	prev := uint32(0)
	for i, m := range members {
		diff := m.id
		if i > 0 {
			diff = m.id - prev
		}
		prev = m.id
		w.uleb(uint64(diff))
		w.uleb(uint64(m.flags))
		if withCode {
			w.uleb(uint64(m.code))
		}
	}
}

func (b *Builder) writeClassData(w *writer, entry *classEntry, codeOffs []uint32) uint32 {
	if len(entry.spec.Fields) == 0 && len(entry.spec.Methods) == 0 {
		return 0
	}
	var static, instance []memberID
	for fi, f := range entry.spec.Fields {
		m := memberID{id: entry.fieldIDs[fi], flags: f.AccessFlags}
		if f.Static {
			static = append(static, m)
		} else {
			instance = append(instance, m)
		}
	}
	var direct, virtual []memberID
	for mi, m := range entry.spec.Methods {
		row := memberID{id: entry.methods[mi], flags: m.AccessFlags, code: codeOffs[mi]}
		if m.Virtual {
			virtual = append(virtual, row)
		} else {
			direct = append(direct, row)
		}
	}

	off := w.pos()
	w.uleb(uint64(len(static)))
	w.uleb(uint64(len(instance)))
	w.uleb(uint64(len(direct)))
	w.uleb(uint64(len(virtual)))
	deltaEncode(w, static, false)
	deltaEncode(w, instance, false)
	deltaEncode(w, direct, true)
	deltaEncode(w, virtual, true)
	return off
}

func (b *Builder) writeValue(w *writer, v Value) {
	w.u8(v.tag)
	switch v.tag {
	case 0x04:
		w.u32(uint32(int32(v.i)))
	case 0x06:
		u := uint64(v.i)
		w.u32(uint32(u))
		w.u32(uint32(u >> 32))
	case 0x17:
		w.uleb(uint64(b.stringIdx[v.s]))
	case 0x18:
		w.uleb(uint64(b.typeIdx[v.typ]))
	case 0x1b:
		w.uleb(uint64(v.field))
	case 0x1c:
		w.uleb(uint64(len(v.arr)))
		for _, e := range v.arr {
			b.writeValue(w, e)
		}
	case 0x1f:
		if v.b {
			w.u8(1)
		} else {
			w.u8(0)
		}
	}
}

func (b *Builder) writeAnnotationSet(w *writer, annos []Annotation) uint32 {
	if len(annos) == 0 {
		return 0
	}
	itemOffs := make([]uint32, len(annos))
	for i, a := range annos {
		itemOffs[i] = w.pos()
		w.u8(1) // runtime visibility
		w.uleb(uint64(b.typeIdx[a.Type]))
		w.uleb(uint64(len(a.Elements)))
		for _, el := range a.Elements {
			w.uleb(uint64(b.stringIdx[el.Name]))
			b.writeValue(w, el.Value)
		}
	}
	off := w.pos()
	w.u32(uint32(len(annos)))
	for _, io := range itemOffs {
		w.u32(io)
	}
	return off
}

func (b *Builder) writeAnnotationsDirectory(w *writer, entry *classEntry) uint32 {
	c := entry.spec
	type fieldAnno struct {
		id  uint32
		off uint32
	}
	var fieldAnnos, methodAnnos []fieldAnno
	type paramAnno struct {
		id  uint32
		off uint32
	}
	var paramAnnos []paramAnno

	classSetOff := b.writeAnnotationSet(w, c.Annotations)
	for fi, f := range c.Fields {
		if len(f.Annotations) == 0 {
			continue
		}
		fieldAnnos = append(fieldAnnos, fieldAnno{id: entry.fieldIDs[fi], off: b.writeAnnotationSet(w, f.Annotations)})
	}
	for mi, m := range c.Methods {
		if len(m.Annotations) > 0 {
			methodAnnos = append(methodAnnos, fieldAnno{id: entry.methods[mi], off: b.writeAnnotationSet(w, m.Annotations)})
		}
		if len(m.ParamAnnotations) > 0 {
			setOffs := make([]uint32, len(m.ParamAnnotations))
			for pi, list := range m.ParamAnnotations {
				setOffs[pi] = b.writeAnnotationSet(w, list)
			}
			listOff := w.pos()
			w.u32(uint32(len(setOffs)))
			for _, so := range setOffs {
				w.u32(so)
			}
			paramAnnos = append(paramAnnos, paramAnno{id: entry.methods[mi], off: listOff})
		}
	}

	if classSetOff == 0 && len(fieldAnnos) == 0 && len(methodAnnos) == 0 && len(paramAnnos) == 0 {
		return 0
	}

	off := w.pos()
	w.u32(classSetOff)
	w.u32(uint32(len(fieldAnnos)))
	w.u32(uint32(len(methodAnnos)))
	w.u32(uint32(len(paramAnnos)))
	for _, fa := range fieldAnnos {
		w.u32(fa.id)
		w.u32(fa.off)
	}
	for _, ma := range methodAnnos {
		w.u32(ma.id)
		w.u32(ma.off)
	}
	for _, pa := range paramAnnos {
		w.u32(pa.id)
		w.u32(pa.off)
	}
	return off
}
