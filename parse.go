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

package wirepb

import (
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"

	"buf.build/go/wirepb/bytestring"
	"buf.build/go/wirepb/coded"
	"buf.build/go/wirepb/fieldset"
	"buf.build/go/wirepb/internal/debug"
	"buf.build/go/wirepb/wire"
)

// Parse parses a message of type md from data.
//
// On failure, the error is a [*ParseError] whose Partial field holds what
// was parsed before the failure. Unless [WithAllowPartial] is set, a
// message with missing required fields fails with an
// [*UninitializedError].
func Parse(md protoreflect.MessageDescriptor, data []byte, opts ...ParseOption) (*DynamicMessage, error) {
	p := newParser(opts)
	return p.parse(md, p.from(coded.NewInput(data, p.opts.coded)))
}

// ParseByteString is like [Parse], but for a [bytestring.ByteString]. Bytes
// fields and lazy messages share memory with data.
func ParseByteString(md protoreflect.MessageDescriptor, data bytestring.ByteString, opts ...ParseOption) (*DynamicMessage, error) {
	p := newParser(opts)
	return p.parse(md, p.from(coded.NewByteStringInput(data, p.opts.coded)))
}

// ParseFrom is like [Parse], but reads r until EOF.
//
// At most [WithSizeLimit] bytes are read.
func ParseFrom(md protoreflect.MessageDescriptor, r io.Reader, opts ...ParseOption) (*DynamicMessage, error) {
	p := newParser(opts)
	return p.parse(md, p.from(coded.NewReaderInput(r, p.opts.coded)))
}

// ParseDelimited reads a size-prefixed message from r, as written by
// [DynamicMessage.MarshalDelimited]. Nothing past the message is read, so it
// may be called repeatedly to read a stream of messages.
//
// Returns [io.EOF], unwrapped, if r is exhausted before the size prefix.
func ParseDelimited(md protoreflect.MessageDescriptor, r io.Reader, opts ...ParseOption) (*DynamicMessage, error) {
	p := newParser(opts)
	n, err := coded.ReadDelimitedSize(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, err
		}
		return nil, &ParseError{err: err, Partial: Default(md)}
	}
	return p.parse(md, func(b *Builder) error { return p.mergeDelimited(b, r, n) })
}

type parser struct {
	opts options
}

func newParser(opts []ParseOption) *parser {
	return &parser{opts: newOptions(opts)}
}

// parse builds a message of type md with merge, then checks it.
func (p *parser) parse(md protoreflect.MessageDescriptor, merge func(*Builder) error) (*DynamicMessage, error) {
	b := NewBuilder(md)
	if err := merge(b); err != nil {
		return nil, &ParseError{err: err, Partial: b.BuildPartial()}
	}
	m := b.BuildPartial()
	if !p.opts.allowPartial && !m.IsInitialized() {
		return nil, &ParseError{
			err:     &UninitializedError{Missing: m.FindInitializationErrors()},
			Partial: m,
		}
	}
	return m, nil
}

// from returns a function that merges all of in.
func (p *parser) from(in *coded.Input) func(*Builder) error {
	return func(b *Builder) error { return p.merge(b, in) }
}

// mergeDelimited merges the next n bytes of r into b. Unlike an input that
// simply ends, a stream that stops short of n bytes is truncated even if it
// stops between two fields.
func (p *parser) mergeDelimited(b *Builder, r io.Reader, n int) error {
	in := coded.NewReaderInput(io.LimitReader(r, int64(n)), p.opts.coded)
	if err := p.merge(b, in); err != nil {
		return err
	}
	if in.Offset() != n {
		return wire.NewParseError(wire.ErrorTruncated, in.Offset())
	}
	return nil
}

// merge parses a whole message from in into b.
func (p *parser) merge(b *Builder, in *coded.Input) error {
	if err := p.mergeMessage(b, in); err != nil {
		return err
	}
	return in.CheckLastTagWas(0)
}

// mergeMessage parses fields into b until the end of the input, the current
// limit, or an end-group tag.
func (p *parser) mergeMessage(b *Builder, in *coded.Input) error {
	ms := infoOf(b.md).messageSet
	for {
		tag, err := in.ReadTag()
		if err != nil || tag == 0 {
			return err
		}

		if ms && tag == wire.MakeTag(coded.MessageSetItem, wire.StartGroupType) {
			if err := p.mergeMessageSetItem(b, in); err != nil {
				return err
			}
			continue
		}

		more, err := p.mergeField(b, in, tag)
		if err != nil || !more {
			return err
		}
	}
}

// mergeField parses the value of a single field whose tag was just read.
//
// Returns false if tag is an end-group tag.
func (p *parser) mergeField(b *Builder, in *coded.Input, tag uint32) (bool, error) {
	num, typ := wire.TagNumber(tag), wire.TagType(tag)
	if typ == wire.EndGroupType {
		return false, nil
	}

	fd := p.findField(b.md, num)
	switch {
	case fd == nil:
		return p.mergeUnknown(b, in, tag)
	case fieldset.IsRepeated(fd) && typ == wire.BytesType && isPackable(fd):
		return true, in.ReadPacked(func(in *coded.Input) error {
			return p.mergeValue(b, in, fd)
		})
	case typ != wireType(fd):
		return p.mergeUnknown(b, in, tag)
	default:
		return true, p.mergeValue(b, in, fd)
	}
}

// findField finds the field of md with number num, including extensions
// known to the resolver.
func (p *parser) findField(md protoreflect.MessageDescriptor, num wire.Number) protoreflect.FieldDescriptor {
	if fd := md.Fields().ByNumber(num); fd != nil {
		return fd
	}
	if p.opts.extensions == nil || !md.ExtensionRanges().Has(num) {
		return nil
	}
	xt, err := p.opts.extensions.FindExtensionByNumber(md.FullName(), num)
	if err != nil {
		if !errors.Is(err, protoregistry.NotFound) && debug.Enabled {
			debug.Log("extension lookup", "%s/%d: %v", md.FullName(), num, err)
		}
		return nil
	}
	return xt.TypeDescriptor()
}

func (p *parser) mergeUnknown(b *Builder, in *coded.Input, tag uint32) (bool, error) {
	if p.opts.discardUnknown {
		return in.SkipField(tag)
	}
	return b.unknown.MergeFieldFrom(tag, in)
}

// mergeValue reads one value of fd, without its tag, and merges it into b.
func (p *parser) mergeValue(b *Builder, in *coded.Input, fd protoreflect.FieldDescriptor) error {
	v, err := p.readValue(in, fd)
	if err != nil {
		return err
	}

	if fd.Kind() == protoreflect.EnumKind && fd.Enum().IsClosed() &&
		fd.Enum().Values().ByNumber(v.Enum()) == nil {
		// Closed enums reject values they do not define; keep them as
		// unknown varints so they survive a round trip.
		if !p.opts.discardUnknown {
			b.unknown.AddVarint(fd.Number(), uint64(int64(v.Enum())))
		}
		return nil
	}

	switch {
	case fieldset.IsRepeated(fd):
		b.fields.Add(fd, v)
	case v.Kind() == fieldset.KindMessage:
		b.mergeValue(fd, v)
	default:
		b.Set(fd, v)
	}
	return nil
}

func (p *parser) readValue(in *coded.Input, fd protoreflect.FieldDescriptor) (fieldset.Value, error) {
	var (
		v   fieldset.Value
		err error
	)
	switch fd.Kind() {
	case protoreflect.BoolKind:
		var x bool
		x, err = in.ReadBool()
		v = fieldset.ValueOfBool(x)
	case protoreflect.Int32Kind:
		var x int32
		x, err = in.ReadInt32()
		v = fieldset.ValueOfInt32(x)
	case protoreflect.Sint32Kind:
		var x int32
		x, err = in.ReadSint32()
		v = fieldset.ValueOfInt32(x)
	case protoreflect.Sfixed32Kind:
		var x int32
		x, err = in.ReadSfixed32()
		v = fieldset.ValueOfInt32(x)
	case protoreflect.Int64Kind:
		var x int64
		x, err = in.ReadInt64()
		v = fieldset.ValueOfInt64(x)
	case protoreflect.Sint64Kind:
		var x int64
		x, err = in.ReadSint64()
		v = fieldset.ValueOfInt64(x)
	case protoreflect.Sfixed64Kind:
		var x int64
		x, err = in.ReadSfixed64()
		v = fieldset.ValueOfInt64(x)
	case protoreflect.Uint32Kind:
		var x uint32
		x, err = in.ReadUint32()
		v = fieldset.ValueOfUint32(x)
	case protoreflect.Fixed32Kind:
		var x uint32
		x, err = in.ReadFixed32()
		v = fieldset.ValueOfUint32(x)
	case protoreflect.Uint64Kind:
		var x uint64
		x, err = in.ReadUint64()
		v = fieldset.ValueOfUint64(x)
	case protoreflect.Fixed64Kind:
		var x uint64
		x, err = in.ReadFixed64()
		v = fieldset.ValueOfUint64(x)
	case protoreflect.FloatKind:
		var x float32
		x, err = in.ReadFloat()
		v = fieldset.ValueOfFloat(x)
	case protoreflect.DoubleKind:
		var x float64
		x, err = in.ReadDouble()
		v = fieldset.ValueOfDouble(x)
	case protoreflect.EnumKind:
		var x int32
		x, err = in.ReadEnum()
		v = fieldset.ValueOfEnum(protoreflect.EnumNumber(x))
	case protoreflect.StringKind:
		var x string
		if p.checkUTF8(fd) {
			x, err = in.ReadStringRequireUTF8()
		} else {
			x, err = in.ReadString()
		}
		v = fieldset.ValueOfString(x)
	case protoreflect.BytesKind:
		var x bytestring.ByteString
		x, err = in.ReadBytes()
		v = fieldset.ValueOfBytes(x)

	case protoreflect.MessageKind:
		if p.isLazy(fd) {
			var x bytestring.ByteString
			x, err = in.ReadBytes()
			v = fieldset.ValueOfLazy(fieldset.NewLazyField(p.prototype(fd.Message(), in.Depth()), x))
			break
		}
		sub := NewBuilder(fd.Message())
		err = in.ReadMessage(func(in *coded.Input) error { return p.mergeMessage(sub, in) })
		v = fieldset.ValueOfMessage(sub.BuildPartial())
	case protoreflect.GroupKind:
		sub := NewBuilder(fd.Message())
		err = in.ReadGroup(fd.Number(), func(in *coded.Input) error { return p.mergeMessage(sub, in) })
		v = fieldset.ValueOfMessage(sub.BuildPartial())

	default:
		panic(fmt.Errorf("wirepb: unexpected kind %v for %s", fd.Kind(), fd.FullName()))
	}
	return v, err
}

// mergeMessageSetItem parses a MessageSet item, whose start tag was just
// read, into b.
//
// The type ID and the message may appear in either order. An item whose
// type ID is not a known extension is kept as an unknown bytes field
// numbered by the type ID.
func (p *parser) mergeMessageSetItem(b *Builder, in *coded.Input) error {
	var (
		typeID  uint32
		payload bytestring.ByteString
		found   bool
	)
	err := in.ReadGroup(coded.MessageSetItem, func(in *coded.Input) error {
		for {
			tag, err := in.ReadTag()
			if err != nil || tag == 0 {
				return err
			}
			switch tag {
			case wire.MakeTag(coded.MessageSetTypeID, wire.VarintType):
				if typeID, err = in.ReadUint32(); err != nil {
					return err
				}
			case wire.MakeTag(coded.MessageSetMessage, wire.BytesType):
				data, err := in.ReadBytes()
				if err != nil {
					return err
				}
				payload, found = payload.Concat(data), true
			default:
				more, err := in.SkipField(tag)
				if err != nil || !more {
					return err
				}
			}
		}
	})
	if err != nil {
		return err
	}

	num := wire.Number(typeID)
	if !found || typeID == 0 || num > wire.MaxNumber {
		if debug.Enabled {
			debug.Log("drop message set item", "type id %d, payload %v", typeID, found)
		}
		return nil
	}

	fd := p.findField(b.md, num)
	if fd == nil || !fd.IsExtension() || fieldset.IsRepeated(fd) || fd.Kind() != protoreflect.MessageKind {
		if !p.opts.discardUnknown {
			b.unknown.AddBytes(num, payload)
		}
		return nil
	}

	if !p.opts.eagerMessageSets {
		b.mergeValue(fd, fieldset.ValueOfLazy(fieldset.NewLazyField(p.prototype(fd.Message(), in.Depth()), payload)))
		return nil
	}

	sub := NewBuilder(fd.Message())
	subIn, err := coded.NewNestedInput(payload, in.Depth(), p.opts.coded)
	if err != nil {
		return err
	}
	if err := p.merge(sub, subIn); err != nil {
		return err
	}
	b.mergeValue(fd, fieldset.ValueOfMessage(sub.BuildPartial()))
	return nil
}

func (p *parser) isLazy(fd protoreflect.FieldDescriptor) bool {
	if fd.IsExtension() {
		return isLazy(fd)
	}
	return infoOf(fd.ContainingMessage()).lazy[fd.Number()]
}

func (p *parser) checkUTF8(fd protoreflect.FieldDescriptor) bool {
	return !p.opts.allowInvalidUTF8 && fd.Syntax() != protoreflect.Proto2
}

// prototype decodes lazy fields with the options of the parse that
// produced them, continuing its depth count from where the field was found.
type prototype struct {
	md    protoreflect.MessageDescriptor
	p     *parser
	depth int
}

func (p *parser) prototype(md protoreflect.MessageDescriptor, depth int) fieldset.Prototype {
	return prototype{md: md, p: p, depth: depth}
}

func (pt prototype) Descriptor() protoreflect.MessageDescriptor {
	return pt.md
}

func (pt prototype) Parse(data bytestring.ByteString) (fieldset.Message, error) {
	in, err := coded.NewNestedInput(data, pt.depth, pt.p.opts.coded)
	if err != nil {
		return nil, err
	}
	b := NewBuilder(pt.md)
	if err := pt.p.merge(b, in); err != nil {
		return nil, err
	}
	return b.BuildPartial(), nil
}

// wireType returns the wire type fd is encoded with when not packed.
func wireType(fd protoreflect.FieldDescriptor) wire.Type {
	switch fd.Kind() {
	case protoreflect.BoolKind, protoreflect.EnumKind,
		protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Uint32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Uint64Kind:
		return wire.VarintType
	case protoreflect.Fixed32Kind, protoreflect.Sfixed32Kind, protoreflect.FloatKind:
		return wire.Fixed32Type
	case protoreflect.Fixed64Kind, protoreflect.Sfixed64Kind, protoreflect.DoubleKind:
		return wire.Fixed64Type
	case protoreflect.GroupKind:
		return wire.StartGroupType
	default:
		return wire.BytesType
	}
}

// isPackable returns whether fd's elements may be packed, whether or not it
// is declared as packed. Parsers accept either encoding.
func isPackable(fd protoreflect.FieldDescriptor) bool {
	return wireType(fd) != wire.BytesType && wireType(fd) != wire.StartGroupType
}
