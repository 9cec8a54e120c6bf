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

package fieldset_test

import (
	"fmt"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"

	"buf.build/go/wirepb/bytestring"
	"buf.build/go/wirepb/coded"
	"buf.build/go/wirepb/fieldset"
	"buf.build/go/wirepb/internal/prototest"
	"buf.build/go/wirepb/unknown"
)

const schema = `
name: "test.proto"
package: "test"
syntax: "proto2"
message_type {
	name: "Inner"
	field { name: "a" number: 1 label: LABEL_REQUIRED type: TYPE_INT32 }
	field { name: "s" number: 2 label: LABEL_OPTIONAL type: TYPE_STRING }
	field { name: "r" number: 3 label: LABEL_REPEATED type: TYPE_INT32 }
}
message_type {
	name: "Outer"
	field { name: "i" number: 1 label: LABEL_OPTIONAL type: TYPE_INT32 }
	field { name: "packed" number: 2 label: LABEL_REPEATED type: TYPE_INT32 options { packed: true } }
	field { name: "unpacked" number: 3 label: LABEL_REPEATED type: TYPE_INT32 }
	field { name: "inner" number: 4 label: LABEL_OPTIONAL type: TYPE_MESSAGE type_name: ".test.Inner" }
	field { name: "inners" number: 5 label: LABEL_REPEATED type: TYPE_MESSAGE type_name: ".test.Inner" }
	field { name: "g" number: 6 label: LABEL_OPTIONAL type: TYPE_GROUP type_name: ".test.Outer.G" }
	field { name: "z" number: 8 label: LABEL_OPTIONAL type: TYPE_SINT64 }
	field { name: "b" number: 9 label: LABEL_OPTIONAL type: TYPE_BYTES }
	field { name: "f" number: 10 label: LABEL_OPTIONAL type: TYPE_FLOAT }
	field { name: "e" number: 11 label: LABEL_OPTIONAL type: TYPE_ENUM type_name: ".test.Color" }
	nested_type {
		name: "G"
		field { name: "x" number: 7 label: LABEL_OPTIONAL type: TYPE_INT32 }
	}
	extension_range { start: 100 end: 536870912 }
}
message_type {
	name: "Other"
	field { name: "i" number: 1 label: LABEL_OPTIONAL type: TYPE_INT32 }
}
enum_type {
	name: "Color"
	value { name: "RED" number: 0 }
	value { name: "BLUE" number: 2 }
}
extension {
	name: "ext" number: 100 label: LABEL_OPTIONAL type: TYPE_MESSAGE
	type_name: ".test.Inner" extendee: ".test.Outer"
}
`

type fixture struct {
	outer, inner, g, other protoreflect.MessageDescriptor
	ext                    protoreflect.ExtensionTypeDescriptor
}

func load(t *testing.T) fixture {
	t.Helper()
	s := prototest.Compile(t, schema)
	return fixture{
		outer: s.Message(t, "Outer"),
		inner: s.Message(t, "Inner"),
		g:     s.Message(t, "Outer.G"),
		other: s.Message(t, "Other"),
		ext:   s.Extension(t, "ext"),
	}
}

func (f fixture) field(t *testing.T, name string) protoreflect.FieldDescriptor {
	t.Helper()
	return prototest.Field(t, f.outer, name)
}

// message is a minimal [fieldset.Message] over a FieldSet.
type message struct {
	md protoreflect.MessageDescriptor
	fs fieldset.FieldSet
}

func newMessage(md protoreflect.MessageDescriptor, build func(*fieldset.Builder)) *message {
	b := fieldset.NewBuilder(md)
	if build != nil {
		build(b)
	}
	return &message{md: md, fs: b.Freeze()}
}

func (m *message) Descriptor() protoreflect.MessageDescriptor { return m.md }
func (m *message) Size() int { return m.fs.Size() }
func (m *message) MarshalTo(out *coded.Output) { m.fs.MarshalTo(out) }
func (m *message) Hash() int32 { return m.fs.Hash() }

func (m *message) Equal(other fieldset.Message) bool {
	o, ok := other.(*message)
	return ok && m.fs.Equal(o.fs)
}

func (m *message) IsInitialized() bool {
	return len(m.missing()) == 0 && m.fs.IsInitialized()
}

func (m *message) FindInitializationErrors() []string {
	return append(m.missing(), m.fs.FindInitializationErrors()...)
}

func (m *message) missing() []string {
	var names []string
	fields := m.md.Fields()
	for i := range fields.Len() {
		fd := fields.Get(i)
		if fd.Cardinality() == protoreflect.Required && !m.fs.Has(fd) {
			names = append(names, string(fd.Name()))
		}
	}
	return names
}

func (m *message) MergedWith(other fieldset.Message) fieldset.Message {
	b := m.fs.ToBuilder()
	b.MergeFrom(other.(*message).fs)
	return &message{md: m.md, fs: b.Freeze()}
}

func (m *message) bytes() bytestring.ByteString {
	b := coded.NewBuilder(m.Size())
	m.MarshalTo(b.Output())
	bs, err := b.Build()
	if err != nil {
		panic(err)
	}
	return bs
}

// prototype decodes messages with int32, string and message fields, and
// counts how often it is asked to.
type prototype struct {
	md    protoreflect.MessageDescriptor
	calls atomic.Int32
}

func (p *prototype) Descriptor() protoreflect.MessageDescriptor { return p.md }

func (p *prototype) Parse(data bytestring.ByteString) (fieldset.Message, error) {
	p.calls.Add(1)
	return decode(p.md, data)
}

func decode(md protoreflect.MessageDescriptor, data bytestring.ByteString) (*message, error) {
	set, err := unknown.ParseByteString(data, coded.Options{})
	if err != nil {
		return nil, err
	}

	b := fieldset.NewBuilder(md)
	for f := range set.All() {
		fd := md.Fields().ByNumber(f.Number())
		if fd == nil {
			return nil, fmt.Errorf("unexpected field %d", f.Number())
		}

		var v fieldset.Value
		switch fieldset.KindOf(fd) {
		case fieldset.KindInt32:
			v = fieldset.ValueOfInt32(int32(f.Scalar()))
		case fieldset.KindString:
			v = fieldset.ValueOfString(f.Bytes().String())
		case fieldset.KindMessage:
			m, err := decode(fd.Message(), f.Bytes())
			if err != nil {
				return nil, err
			}
			v = fieldset.ValueOfMessage(m)
		default:
			return nil, fmt.Errorf("unsupported field %s", fd.FullName())
		}

		if fieldset.IsRepeated(fd) {
			b.Add(fd, v)
		} else {
			b.MergeValue(fd, v)
		}
	}
	return &message{md: md, fs: b.Freeze()}, nil
}

func (f fixture) newInner(t *testing.T, a int32, s string) *message {
	t.Helper()
	return newMessage(f.inner, func(b *fieldset.Builder) {
		if a != 0 {
			b.Set(prototest.Field(t, f.inner, "a"), fieldset.ValueOfInt32(a))
		}
		if s != "" {
			b.Set(prototest.Field(t, f.inner, "s"), fieldset.ValueOfString(s))
		}
	})
}

func ints(vs ...int32) fieldset.Value {
	var out []fieldset.Value
	for _, v := range vs {
		out = append(out, fieldset.ValueOfInt32(v))
	}
	return fieldset.ValueOfList(out...)
}

func listInts(t *testing.T, v fieldset.Value) []int32 {
	t.Helper()
	require.Equal(t, fieldset.KindList, v.Kind())
	var out []int32
	for i := range v.Len() {
		out = append(out, v.Index(i).Int32())
	}
	return slices.Clip(out)
}
