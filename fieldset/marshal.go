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

package fieldset

import (
	"google.golang.org/protobuf/reflect/protoreflect"

	"buf.build/go/wirepb/bytestring"
	"buf.build/go/wirepb/coded"
	"buf.build/go/wirepb/wire"
)

var _ coded.Marshaler = FieldSet{}

// Size returns the encoded size of this set.
func (s FieldSet) Size() int {
	n := 0
	for _, e := range s.entries {
		n += sizeField(e.fd, e.val)
	}
	return n
}

// MarshalTo writes every field in this set in field number order. Repeated
// fields are packed if their descriptor says so.
func (s FieldSet) MarshalTo(out *coded.Output) {
	for _, e := range s.entries {
		writeField(out, e.fd, e.val)
	}
}

// MessageSetSize returns the size of [FieldSet.MarshalMessageSetTo]'s
// output.
func (s FieldSet) MessageSetSize() int {
	n := 0
	for _, e := range s.entries {
		if isMessageSetItem(e.fd) {
			n += coded.SizeMessageSetExtension(e.fd.Number(), bodySize(e.val))
		} else {
			n += sizeField(e.fd, e.val)
		}
	}
	return n
}

// MarshalMessageSetTo writes this set for a message that uses the MessageSet
// wire format: singular message extensions are written as MessageSet items.
func (s FieldSet) MarshalMessageSetTo(out *coded.Output) {
	for _, e := range s.entries {
		if !isMessageSetItem(e.fd) {
			writeField(out, e.fd, e.val)
			continue
		}
		if e.val.lazy != nil {
			out.WriteRawMessageSetExtension(e.fd.Number(), e.val.lazy.Bytes())
		} else {
			out.WriteMessageSetExtension(e.fd.Number(), e.val.msg)
		}
	}
}

func isMessageSetItem(fd protoreflect.FieldDescriptor) bool {
	return fd.IsExtension() && !IsRepeated(fd) && fd.Kind() == protoreflect.MessageKind
}

func sizeField(fd protoreflect.FieldDescriptor, v Value) int {
	if !IsRepeated(fd) {
		return sizeElem(fd, v)
	}
	if len(v.list) == 0 {
		return 0
	}

	n := 0
	if fd.IsPacked() {
		for _, e := range v.list {
			n += sizeScalar(fd, e)
		}
		return coded.SizeTag(fd.Number()) + coded.SizeLengthDelimited(n)
	}
	for _, e := range v.list {
		n += sizeElem(fd, e)
	}
	return n
}

func writeField(out *coded.Output, fd protoreflect.FieldDescriptor, v Value) {
	if !IsRepeated(fd) {
		writeElem(out, fd, v)
		return
	}
	if len(v.list) == 0 {
		return
	}

	if fd.IsPacked() {
		n := 0
		for _, e := range v.list {
			n += sizeScalar(fd, e)
		}
		out.WriteTag(fd.Number(), wire.BytesType)
		out.WriteRawVarint(uint64(n))
		for _, e := range v.list {
			writeScalar(out, fd, e)
		}
		return
	}
	for _, e := range v.list {
		writeElem(out, fd, e)
	}
}

// sizeElem returns the size of a single value of fd, with its tag.
func sizeElem(fd protoreflect.FieldDescriptor, v Value) int {
	if fd.Kind() == protoreflect.GroupKind {
		return coded.SizeGroup(fd.Number(), bodySize(v))
	}
	return coded.SizeTag(fd.Number()) + sizeScalar(fd, v)
}

func writeElem(out *coded.Output, fd protoreflect.FieldDescriptor, v Value) {
	num := fd.Number()
	switch fd.Kind() {
	case protoreflect.GroupKind:
		out.WriteTag(num, wire.StartGroupType)
		if v.lazy != nil {
			out.WriteRawByteString(v.lazy.Bytes())
		} else {
			v.msg.MarshalTo(out)
		}
		out.WriteTag(num, wire.EndGroupType)
	case protoreflect.MessageKind, protoreflect.StringKind, protoreflect.BytesKind:
		out.WriteTag(num, wire.BytesType)
		writeScalar(out, fd, v)
	case protoreflect.Fixed32Kind, protoreflect.Sfixed32Kind, protoreflect.FloatKind:
		out.WriteTag(num, wire.Fixed32Type)
		writeScalar(out, fd, v)
	case protoreflect.Fixed64Kind, protoreflect.Sfixed64Kind, protoreflect.DoubleKind:
		out.WriteTag(num, wire.Fixed64Type)
		writeScalar(out, fd, v)
	default:
		out.WriteTag(num, wire.VarintType)
		writeScalar(out, fd, v)
	}
}

// sizeScalar returns the size of a single value of fd, without its tag.
func sizeScalar(fd protoreflect.FieldDescriptor, v Value) int {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return 1
	case protoreflect.Int32Kind, protoreflect.EnumKind:
		return coded.SizeInt32NoTag(int32(v.scalar))
	case protoreflect.Sint32Kind:
		return coded.SizeSint32NoTag(int32(v.scalar))
	case protoreflect.Sint64Kind:
		return coded.SizeSint64NoTag(int64(v.scalar))
	case protoreflect.Int64Kind, protoreflect.Uint32Kind, protoreflect.Uint64Kind:
		return coded.SizeVarint(v.scalar)
	case protoreflect.Fixed32Kind, protoreflect.Sfixed32Kind, protoreflect.FloatKind:
		return 4
	case protoreflect.Fixed64Kind, protoreflect.Sfixed64Kind, protoreflect.DoubleKind:
		return 8
	case protoreflect.StringKind:
		return coded.SizeLengthDelimited(len(v.str))
	case protoreflect.BytesKind:
		return coded.SizeLengthDelimited(v.bytes.Len())
	default:
		return coded.SizeLengthDelimited(bodySize(v))
	}
}

func writeScalar(out *coded.Output, fd protoreflect.FieldDescriptor, v Value) {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		out.WriteBoolNoTag(v.scalar != 0)
	case protoreflect.Int32Kind, protoreflect.EnumKind:
		out.WriteInt32NoTag(int32(v.scalar))
	case protoreflect.Sint32Kind:
		out.WriteSint32NoTag(int32(v.scalar))
	case protoreflect.Sint64Kind:
		out.WriteSint64NoTag(int64(v.scalar))
	case protoreflect.Int64Kind, protoreflect.Uint32Kind, protoreflect.Uint64Kind:
		out.WriteRawVarint(v.scalar)
	case protoreflect.Fixed32Kind, protoreflect.Sfixed32Kind, protoreflect.FloatKind:
		out.WriteRawLittleEndian32(uint32(v.scalar))
	case protoreflect.Fixed64Kind, protoreflect.Sfixed64Kind, protoreflect.DoubleKind:
		out.WriteRawLittleEndian64(v.scalar)
	case protoreflect.StringKind:
		out.WriteStringNoTag(v.str)
	case protoreflect.BytesKind:
		out.WriteByteStringNoTag(v.bytes)
	default:
		if v.lazy != nil {
			out.WriteByteStringNoTag(v.lazy.Bytes())
		} else {
			out.WriteMessageNoTag(v.msg)
		}
	}
}

// bodySize returns the encoded size of a message value.
func bodySize(v Value) int {
	if v.lazy != nil {
		return v.lazy.Bytes().Len()
	}
	return v.msg.Size()
}

// encoded returns the encoding of a message value.
func encoded(v Value) bytestring.ByteString {
	if v.lazy != nil {
		return v.lazy.Bytes()
	}
	b := coded.NewBuilder(v.msg.Size())
	v.msg.MarshalTo(b.Output())
	bs, err := b.Build()
	if err != nil {
		panic(err) // Size and MarshalTo disagree.
	}
	return bs
}
