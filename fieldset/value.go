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
	"fmt"
	"math"

	"google.golang.org/protobuf/reflect/protoreflect"

	"buf.build/go/wirepb/bytestring"
)

// Kind is the kind of data held in a [Value].
type Kind int8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt32
	KindInt64
	KindUint32
	KindUint64
	KindFloat
	KindDouble
	KindString
	KindBytes
	KindEnum
	KindMessage
	KindList
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindBool:    "bool",
	KindInt32:   "int32",
	KindInt64:   "int64",
	KindUint32:  "uint32",
	KindUint64:  "uint64",
	KindFloat:   "float",
	KindDouble:  "double",
	KindString:  "string",
	KindBytes:   "bytes",
	KindEnum:    "enum",
	KindMessage: "message",
	KindList:    "list",
}

// String implements [fmt.Stringer].
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// KindOf returns the kind of the values of fd. For a repeated field, this is
// the kind of its elements.
func KindOf(fd protoreflect.FieldDescriptor) Kind {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return KindBool
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return KindInt32
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return KindInt64
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return KindUint32
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return KindUint64
	case protoreflect.FloatKind:
		return KindFloat
	case protoreflect.DoubleKind:
		return KindDouble
	case protoreflect.StringKind:
		return KindString
	case protoreflect.BytesKind:
		return KindBytes
	case protoreflect.EnumKind:
		return KindEnum
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return KindMessage
	default:
		return KindInvalid
	}
}

// Value is the value of a field: a scalar, an enum number, a message, or a
// list of one of those.
//
// Values are immutable. The zero value is invalid.
type Value struct {
	kind   Kind
	scalar uint64
	str    string
	bytes  bytestring.ByteString
	msg    Message
	lazy   *LazyField
	list   []Value
}

// ValueOfBool returns a bool value.
func ValueOfBool(v bool) Value {
	if v {
		return Value{kind: KindBool, scalar: 1}
	}
	return Value{kind: KindBool}
}

// ValueOfInt32 returns an int32 value.
func ValueOfInt32(v int32) Value { return Value{kind: KindInt32, scalar: uint64(v)} }

// ValueOfInt64 returns an int64 value.
func ValueOfInt64(v int64) Value { return Value{kind: KindInt64, scalar: uint64(v)} }

// ValueOfUint32 returns a uint32 value.
func ValueOfUint32(v uint32) Value { return Value{kind: KindUint32, scalar: uint64(v)} }

// ValueOfUint64 returns a uint64 value.
func ValueOfUint64(v uint64) Value { return Value{kind: KindUint64, scalar: v} }

// ValueOfFloat returns a float value.
func ValueOfFloat(v float32) Value {
	return Value{kind: KindFloat, scalar: uint64(math.Float32bits(v))}
}

// ValueOfDouble returns a double value.
func ValueOfDouble(v float64) Value {
	return Value{kind: KindDouble, scalar: math.Float64bits(v)}
}

// ValueOfString returns a string value.
func ValueOfString(v string) Value { return Value{kind: KindString, str: v} }

// ValueOfBytes returns a bytes value.
func ValueOfBytes(v bytestring.ByteString) Value { return Value{kind: KindBytes, bytes: v} }

// ValueOfByteSlice returns a bytes value holding a copy of v. It is equal to
// the value [ValueOfBytes] returns for the same contents.
func ValueOfByteSlice(v []byte) Value { return ValueOfBytes(bytestring.CopyFrom(v)) }

// ValueOfEnum returns an enum value.
func ValueOfEnum(v protoreflect.EnumNumber) Value {
	return Value{kind: KindEnum, scalar: uint64(int64(v))}
}

// ValueOfMessage returns a message value.
func ValueOfMessage(v Message) Value { return Value{kind: KindMessage, msg: v} }

// ValueOfLazy returns a message value that is decoded on first use.
func ValueOfLazy(v *LazyField) Value { return Value{kind: KindMessage, lazy: v} }

// ValueOfList returns a list value. The list takes ownership of elems.
func ValueOfList(elems ...Value) Value { return Value{kind: KindList, list: elems} }

// ValueOf converts a protoreflect scalar for fd into a Value. It does not
// accept messages or lists.
func ValueOf(fd protoreflect.FieldDescriptor, v protoreflect.Value) Value {
	switch KindOf(fd) {
	case KindBool:
		return ValueOfBool(v.Bool())
	case KindInt32:
		return ValueOfInt32(int32(v.Int()))
	case KindInt64:
		return ValueOfInt64(v.Int())
	case KindUint32:
		return ValueOfUint32(uint32(v.Uint()))
	case KindUint64:
		return ValueOfUint64(v.Uint())
	case KindFloat:
		return ValueOfFloat(float32(v.Float()))
	case KindDouble:
		return ValueOfDouble(v.Float())
	case KindString:
		return ValueOfString(v.String())
	case KindBytes:
		return ValueOfByteSlice(v.Bytes())
	case KindEnum:
		return ValueOfEnum(v.Enum())
	default:
		panic(fmt.Errorf("fieldset: cannot convert %v for %s", v, fd.FullName()))
	}
}

// Kind returns the kind of this value. Lazy messages are [KindMessage].
func (v Value) Kind() Kind { return v.kind }

// IsValid returns whether this is not the zero Value.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

func (v Value) want(k Kind) {
	if v.kind != k {
		panic(fmt.Errorf("fieldset: value of kind %v accessed as %v", v.kind, k))
	}
}

// Bool returns a bool value.
func (v Value) Bool() bool {
	v.want(KindBool)
	return v.scalar != 0
}

// Int32 returns an int32 value.
func (v Value) Int32() int32 {
	v.want(KindInt32)
	return int32(v.scalar)
}

// Int64 returns an int64 value.
func (v Value) Int64() int64 {
	v.want(KindInt64)
	return int64(v.scalar)
}

// Uint32 returns a uint32 value.
func (v Value) Uint32() uint32 {
	v.want(KindUint32)
	return uint32(v.scalar)
}

// Uint64 returns a uint64 value.
func (v Value) Uint64() uint64 {
	v.want(KindUint64)
	return v.scalar
}

// Float returns a float value.
func (v Value) Float() float32 {
	v.want(KindFloat)
	return math.Float32frombits(uint32(v.scalar))
}

// Double returns a double value.
func (v Value) Double() float64 {
	v.want(KindDouble)
	return math.Float64frombits(v.scalar)
}

// String returns a string value. For other kinds, it returns a description of
// the value, like [fmt.Stringer].
func (v Value) String() string {
	if v.kind != KindString {
		return fmt.Sprint(v.Interface())
	}
	return v.str
}

// Bytes returns a bytes value.
func (v Value) Bytes() bytestring.ByteString {
	v.want(KindBytes)
	return v.bytes
}

// Enum returns an enum value.
func (v Value) Enum() protoreflect.EnumNumber {
	v.want(KindEnum)
	return protoreflect.EnumNumber(int64(v.scalar))
}

// Message returns a message value, decoding it if it is lazy.
//
// Panics if a lazy message cannot be decoded; use [Value.Lazy] to observe
// the error instead.
func (v Value) Message() Message {
	v.want(KindMessage)
	if v.lazy != nil {
		m, err := v.lazy.Message()
		if err != nil {
			panic(err)
		}
		return m
	}
	return v.msg
}

// Lazy returns the lazy field backing a message value, if there is one.
func (v Value) Lazy() *LazyField {
	if v.kind != KindMessage {
		return nil
	}
	return v.lazy
}

// Len returns the length of a list value.
func (v Value) Len() int {
	v.want(KindList)
	return len(v.list)
}

// Index returns the ith element of a list value.
func (v Value) Index(i int) Value {
	v.want(KindList)
	return v.list[i]
}

// Interface returns the contents of this value as a Go value: a bool, int32,
// int64, uint32, uint64, float32, float64, string,
// [bytestring.ByteString], [protoreflect.EnumNumber], [Message] or []any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.Bool()
	case KindInt32:
		return v.Int32()
	case KindInt64:
		return v.Int64()
	case KindUint32:
		return v.Uint32()
	case KindUint64:
		return v.Uint64()
	case KindFloat:
		return v.Float()
	case KindDouble:
		return v.Double()
	case KindString:
		return v.str
	case KindBytes:
		return v.bytes
	case KindEnum:
		return v.Enum()
	case KindMessage:
		if v.lazy != nil {
			if m, err := v.lazy.Message(); err == nil {
				return m
			}
			return v.lazy
		}
		return v.msg
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// Equal returns whether two values are equal.
//
// Floating-point values are compared bitwise, so NaN equals itself. A lazy
// message that cannot be decoded is equal only to a lazy message with the
// same bytes.
func (v Value) Equal(w Value) bool {
	if v.kind != w.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == w.str
	case KindBytes:
		return v.bytes.Equal(w.bytes)
	case KindMessage:
		m1, err1 := v.message()
		m2, err2 := w.message()
		if err1 != nil || err2 != nil {
			return v.lazy != nil && w.lazy != nil && v.lazy.Bytes().Equal(w.lazy.Bytes())
		}
		return m1.Equal(m2)
	case KindList:
		if len(v.list) != len(w.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(w.list[i]) {
				return false
			}
		}
		return true
	default:
		return v.scalar == w.scalar
	}
}

// Hash returns a hash of this value, consistent with [Value.Equal].
//
// Enums hash as their number.
func (v Value) Hash() int32 {
	switch v.kind {
	case KindBool:
		if v.scalar != 0 {
			return 1231
		}
		return 1237
	case KindInt32, KindUint32, KindFloat, KindEnum:
		return int32(v.scalar)
	case KindString:
		var h int32
		for i := range len(v.str) {
			h = h*31 + int32(int8(v.str[i]))
		}
		return h
	case KindBytes:
		return v.bytes.Hash()
	case KindMessage:
		m, err := v.message()
		if err != nil {
			return v.lazy.Bytes().Hash()
		}
		return m.Hash()
	case KindList:
		h := int32(1)
		for _, e := range v.list {
			h = h*31 + e.Hash()
		}
		return h
	default:
		return int32(v.scalar ^ v.scalar>>32)
	}
}

// message returns a message value without panicking.
func (v Value) message() (Message, error) {
	if v.lazy != nil {
		return v.lazy.Message()
	}
	return v.msg, nil
}

// checkElem checks that v can be stored as a value or element of fd.
func (v Value) checkElem(fd protoreflect.FieldDescriptor) {
	want := KindOf(fd)
	if v.kind != want {
		panic(fmt.Errorf("fieldset: cannot store %v value in %v field %s", v.kind, want, fd.FullName()))
	}
	if want != KindMessage {
		return
	}

	var md protoreflect.MessageDescriptor
	switch {
	case v.lazy != nil:
		md = v.lazy.Descriptor()
	case v.msg != nil:
		md = v.msg.Descriptor()
	default:
		panic(fmt.Errorf("fieldset: cannot store nil message in %s", fd.FullName()))
	}
	if md.FullName() != fd.Message().FullName() {
		panic(fmt.Errorf("fieldset: cannot store %s in field %s of type %s",
			md.FullName(), fd.FullName(), fd.Message().FullName()))
	}
}
