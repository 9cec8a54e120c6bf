// Copyright 2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package unknown stores fields that a schema does not recognize, verbatim
// and in the order they were encountered, so they can be written back out
// unchanged.
package unknown

import (
	"fmt"
	"iter"

	"buf.build/go/wirepb/bytestring"
	"buf.build/go/wirepb/coded"
	"buf.build/go/wirepb/wire"
)

// Field is a single unknown field.
type Field struct {
	tag    uint32
	scalar uint64                // Varint, fixed32 and fixed64 values.
	bytes  bytestring.ByteString // Length-delimited values.
	group  Set                   // Group bodies.
}

// Number returns this field's number.
func (f Field) Number() wire.Number {
	return wire.TagNumber(f.tag)
}

// Type returns this field's wire type.
func (f Field) Type() wire.Type {
	return wire.TagType(f.tag)
}

// Tag returns this field's tag.
func (f Field) Tag() uint32 {
	return f.tag
}

// Scalar returns the value of a varint, fixed32 or fixed64 field.
func (f Field) Scalar() uint64 {
	return f.scalar
}

// Bytes returns the value of a length-delimited field.
func (f Field) Bytes() bytestring.ByteString {
	return f.bytes
}

// Group returns the body of a group field.
func (f Field) Group() Set {
	return f.group
}

// Size returns the encoded size of this field, including its tag.
func (f Field) Size() int {
	n := wire.SizeTag(f.Number())
	switch f.Type() {
	case wire.VarintType:
		return n + wire.SizeVarint(f.scalar)
	case wire.Fixed32Type:
		return n + 4
	case wire.Fixed64Type:
		return n + 8
	case wire.BytesType:
		return n + wire.SizeBytes(f.bytes.Len())
	default:
		return 2*n + f.group.Size()
	}
}

// MarshalTo writes this field, with the wire type it was read with.
func (f Field) MarshalTo(out *coded.Output) {
	num := f.Number()
	switch f.Type() {
	case wire.VarintType:
		out.WriteUint64(num, f.scalar)
	case wire.Fixed32Type:
		out.WriteFixed32(num, uint32(f.scalar))
	case wire.Fixed64Type:
		out.WriteFixed64(num, f.scalar)
	case wire.BytesType:
		out.WriteByteString(num, f.bytes)
	default:
		out.WriteGroup(num, f.group)
	}
}

// Equal returns whether two fields have the same tag and value.
func (f Field) Equal(g Field) bool {
	return f.tag == g.tag &&
		f.scalar == g.scalar &&
		f.bytes.Equal(g.bytes) &&
		f.group.Equal(g.group)
}

func (f Field) hash() int32 {
	h := int32(f.tag)
	switch f.Type() {
	case wire.BytesType:
		h = h*31 + f.bytes.Hash()
	case wire.StartGroupType:
		h = h*31 + f.group.Hash()
	default:
		h = h*31 + int32(f.scalar^f.scalar>>32)
	}
	return h
}

// Format implements [fmt.Formatter].
func (f Field) Format(s fmt.State, verb rune) {
	switch f.Type() {
	case wire.VarintType:
		fmt.Fprintf(s, "%d: %d", f.Number(), f.scalar)
	case wire.Fixed32Type:
		fmt.Fprintf(s, "%d: %di32", f.Number(), f.scalar)
	case wire.Fixed64Type:
		fmt.Fprintf(s, "%d: %di64", f.Number(), f.scalar)
	case wire.BytesType:
		fmt.Fprintf(s, "%d: %q", f.Number(), f.bytes)
	default:
		fmt.Fprintf(s, "%d: !{%v}", f.Number(), f.group)
	}
}

// Set is an immutable, ordered collection of unknown fields. The zero value
// is empty.
//
// Sets are safe to share between goroutines.
type Set struct {
	fields []Field
}

var _ coded.Marshaler = Set{}

// Len returns the number of fields in this set.
func (s Set) Len() int {
	return len(s.fields)
}

// IsEmpty returns whether this set has no fields.
func (s Set) IsEmpty() bool {
	return len(s.fields) == 0
}

// Index returns the ith field.
func (s Set) Index(i int) Field {
	return s.fields[i]
}

// All returns an iterator over the fields in this set, in encounter order.
func (s Set) All() iter.Seq[Field] {
	return func(yield func(Field) bool) {
		for _, f := range s.fields {
			if !yield(f) {
				return
			}
		}
	}
}

// Size implements [coded.Marshaler].
func (s Set) Size() int {
	n := 0
	for _, f := range s.fields {
		n += f.Size()
	}
	return n
}

// MarshalTo implements [coded.Marshaler].
func (s Set) MarshalTo(out *coded.Output) {
	for _, f := range s.fields {
		f.MarshalTo(out)
	}
}

// Marshal returns the encoding of this set.
func (s Set) Marshal() bytestring.ByteString {
	b := coded.NewBuilder(s.Size())
	s.MarshalTo(b.Output())
	bs, err := b.Build()
	if err != nil {
		panic(err) // Size and MarshalTo disagree.
	}
	return bs
}

// SizeAsMessageSet returns the size of [Set.MarshalAsMessageSetTo]'s output.
func (s Set) SizeAsMessageSet() int {
	n := 0
	for _, f := range s.fields {
		if f.Type() == wire.BytesType {
			n += coded.SizeMessageSetExtension(f.Number(), f.bytes.Len())
		} else {
			n += f.Size()
		}
	}
	return n
}

// MarshalAsMessageSetTo writes this set for a message that uses the
// MessageSet wire format: each length-delimited field is written as a
// MessageSet item whose type ID is the field number. Other fields cannot be
// expressed as items, and are written as-is.
func (s Set) MarshalAsMessageSetTo(out *coded.Output) {
	for _, f := range s.fields {
		if f.Type() == wire.BytesType {
			out.WriteRawMessageSetExtension(f.Number(), f.bytes)
		} else {
			f.MarshalTo(out)
		}
	}
}

// Equal returns whether two sets contain equal fields in the same order.
func (s Set) Equal(t Set) bool {
	if len(s.fields) != len(t.fields) {
		return false
	}
	for i := range s.fields {
		if !s.fields[i].Equal(t.fields[i]) {
			return false
		}
	}
	return true
}

// Hash returns a hash of this set, consistent with [Set.Equal].
func (s Set) Hash() int32 {
	h := int32(17)
	for _, f := range s.fields {
		h = h*31 + f.hash()
	}
	return h
}

// ToBuilder returns a builder initialized with the contents of s. Changes
// to the builder do not affect s.
func (s Set) ToBuilder() *Builder {
	return &Builder{fields: s.fields, shared: true}
}

// Format implements [fmt.Formatter].
func (s Set) Format(st fmt.State, verb rune) {
	for i, f := range s.fields {
		if i > 0 {
			fmt.Fprint(st, " ")
		}
		f.Format(st, verb)
	}
}

// Builder accumulates unknown fields. The zero value is empty and ready to
// use.
type Builder struct {
	fields []Field
	shared bool // Set when fields aliases a Set's storage.
}

// Len returns the number of fields added so far.
func (b *Builder) Len() int {
	return len(b.fields)
}

func (b *Builder) add(f Field) {
	if b.shared {
		b.fields = append(make([]Field, 0, len(b.fields)+1), b.fields...)
		b.shared = false
	}
	b.fields = append(b.fields, f)
}

// AddVarint appends a varint field.
func (b *Builder) AddVarint(num wire.Number, v uint64) {
	b.add(Field{tag: wire.MakeTag(num, wire.VarintType), scalar: v})
}

// AddFixed32 appends a fixed32 field.
func (b *Builder) AddFixed32(num wire.Number, v uint32) {
	b.add(Field{tag: wire.MakeTag(num, wire.Fixed32Type), scalar: uint64(v)})
}

// AddFixed64 appends a fixed64 field.
func (b *Builder) AddFixed64(num wire.Number, v uint64) {
	b.add(Field{tag: wire.MakeTag(num, wire.Fixed64Type), scalar: v})
}

// AddBytes appends a length-delimited field.
func (b *Builder) AddBytes(num wire.Number, v bytestring.ByteString) {
	b.add(Field{tag: wire.MakeTag(num, wire.BytesType), bytes: v})
}

// AddGroup appends a group field.
func (b *Builder) AddGroup(num wire.Number, body Set) {
	b.add(Field{tag: wire.MakeTag(num, wire.StartGroupType), group: body})
}

// MergeSet appends all of the fields in s.
func (b *Builder) MergeSet(s Set) {
	if len(b.fields) == 0 {
		b.fields, b.shared = s.fields, true
		return
	}
	for _, f := range s.fields {
		b.add(f)
	}
}

// MergeFieldFrom reads the value of the field whose tag was just read from
// in, and appends it.
//
// Returns false, without reading anything, if tag is an end-group tag.
func (b *Builder) MergeFieldFrom(tag uint32, in *coded.Input) (bool, error) {
	num := wire.TagNumber(tag)
	switch wire.TagType(tag) {
	case wire.VarintType:
		v, err := in.ReadUint64()
		if err != nil {
			return true, err
		}
		b.AddVarint(num, v)
	case wire.Fixed32Type:
		v, err := in.ReadFixed32()
		if err != nil {
			return true, err
		}
		b.AddFixed32(num, v)
	case wire.Fixed64Type:
		v, err := in.ReadFixed64()
		if err != nil {
			return true, err
		}
		b.AddFixed64(num, v)
	case wire.BytesType:
		v, err := in.ReadBytes()
		if err != nil {
			return true, err
		}
		b.AddBytes(num, v)
	case wire.StartGroupType:
		var body Builder
		if err := in.ReadGroup(num, body.MergeFrom); err != nil {
			return true, err
		}
		b.AddGroup(num, body.Build())
	case wire.EndGroupType:
		return false, nil
	default:
		return true, wire.NewParseError(wire.ErrorReserved, in.Offset())
	}
	return true, nil
}

// MergeFrom reads fields from in until the end of the input, the current
// limit, or an end-group tag.
func (b *Builder) MergeFrom(in *coded.Input) error {
	for {
		tag, err := in.ReadTag()
		if err != nil || tag == 0 {
			return err
		}
		more, err := b.MergeFieldFrom(tag, in)
		if err != nil || !more {
			return err
		}
	}
}

// Build returns the fields added so far as a [Set], and resets the builder.
func (b *Builder) Build() Set {
	s := Set{fields: b.fields}
	*b = Builder{}
	return s
}

// Parse parses data as a sequence of unknown fields.
//
// A stray end-group tag at the top level is an error.
func Parse(data []byte, opts coded.Options) (Set, error) {
	return parse(coded.NewInput(data, opts))
}

// ParseByteString is like [Parse], but for a ByteString. Length-delimited
// values share memory with data.
func ParseByteString(data bytestring.ByteString, opts coded.Options) (Set, error) {
	return parse(coded.NewByteStringInput(data, opts))
}

func parse(in *coded.Input) (Set, error) {
	var b Builder
	if err := b.MergeFrom(in); err != nil {
		return Set{}, err
	}
	if err := in.CheckLastTagWas(0); err != nil {
		return Set{}, err
	}
	return b.Build(), nil
}
