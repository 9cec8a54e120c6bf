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
	"io"
	"iter"
	"strings"
	"sync/atomic"

	"google.golang.org/protobuf/reflect/protoreflect"

	"buf.build/go/wirepb/bytestring"
	"buf.build/go/wirepb/coded"
	"buf.build/go/wirepb/fieldset"
	"buf.build/go/wirepb/internal/sync2"
	"buf.build/go/wirepb/unknown"
)

// Message is the contract shared by all messages that can be stored in a
// field. [*DynamicMessage] is the implementation this package provides.
type Message = fieldset.Message

// DynamicMessage is an immutable message of a type described at runtime.
//
// A DynamicMessage is safe for concurrent use.
type DynamicMessage struct {
	md      protoreflect.MessageDescriptor
	fields  fieldset.FieldSet
	unknown unknown.Set

	size atomic.Int64 // Size plus one; zero if not computed yet.
	hash atomic.Int32 // Zero if not computed yet.
}

var _ Message = (*DynamicMessage)(nil)

var outputs = sync2.Pool[coded.Output]{
	Reset: func(out *coded.Output) bool {
		out.Reset(nil)
		return true
	},
}

// Default returns the message of type md with no fields set.
//
// The result is cached, so repeated calls return the same pointer.
func Default(md protoreflect.MessageDescriptor) *DynamicMessage {
	return infoOf(md).empty
}

// Descriptor returns this message's type.
func (m *DynamicMessage) Descriptor() protoreflect.MessageDescriptor {
	return m.md
}

// Fields returns the known fields of this message.
func (m *DynamicMessage) Fields() fieldset.FieldSet {
	return m.fields
}

// Unknown returns the fields of this message that its type did not
// recognize when it was parsed.
func (m *DynamicMessage) Unknown() unknown.Set {
	return m.unknown
}

// Len returns the number of fields that are set.
func (m *DynamicMessage) Len() int {
	return m.fields.Len()
}

// All yields each field that is set, in field number order.
func (m *DynamicMessage) All() iter.Seq2[protoreflect.FieldDescriptor, fieldset.Value] {
	return m.fields.All()
}

// Has returns whether a singular field is set.
//
// Panics if fd is repeated or does not belong to this message's type.
func (m *DynamicMessage) Has(fd protoreflect.FieldDescriptor) bool {
	return m.fields.Has(fd)
}

// Get returns the value of fd, or its default if it is not set.
//
// The default of a repeated field is an empty list, and the default of a
// message field is [Default] of its type.
func (m *DynamicMessage) Get(fd protoreflect.FieldDescriptor) fieldset.Value {
	if v, ok := m.fields.Get(fd); ok {
		return v
	}
	return defaultValue(fd)
}

// Count returns the number of elements in a repeated field.
func (m *DynamicMessage) Count(fd protoreflect.FieldDescriptor) int {
	return m.fields.Count(fd)
}

// Index returns the ith element of a repeated field.
func (m *DynamicMessage) Index(fd protoreflect.FieldDescriptor, i int) fieldset.Value {
	return m.fields.Index(fd, i)
}

// GetMessage returns the value of a singular message field, decoding it if
// it was parsed lazily.
//
// Unlike [fieldset.Value.Message], a decoding failure is returned rather
// than panicking.
func (m *DynamicMessage) GetMessage(fd protoreflect.FieldDescriptor) (Message, error) {
	v := m.Get(fd)
	if lazy := v.Lazy(); lazy != nil {
		return lazy.Message()
	}
	return v.Message(), nil
}

// WhichOneof returns the member of od that is set, or nil.
func (m *DynamicMessage) WhichOneof(od protoreflect.OneofDescriptor) protoreflect.FieldDescriptor {
	return whichOneof(m.fields.Has, od)
}

func whichOneof(has func(protoreflect.FieldDescriptor) bool, od protoreflect.OneofDescriptor) protoreflect.FieldDescriptor {
	fields := od.Fields()
	for i := range fields.Len() {
		if fd := fields.Get(i); has(fd) {
			return fd
		}
	}
	return nil
}

// IsInitialized returns whether all required fields in this message and its
// submessages are set.
func (m *DynamicMessage) IsInitialized() bool {
	for _, fd := range infoOf(m.md).required {
		if !m.fields.Has(fd) {
			return false
		}
	}
	return m.fields.IsInitialized()
}

// FindInitializationErrors returns the path to each missing required field.
func (m *DynamicMessage) FindInitializationErrors() []string {
	return missingFields(m.md, m.fields.Has, m.fields)
}

func missingFields(md protoreflect.MessageDescriptor, has func(protoreflect.FieldDescriptor) bool, fields fieldset.FieldSet) []string {
	var paths []string
	for _, fd := range infoOf(md).required {
		if !has(fd) {
			paths = append(paths, string(fd.Name()))
		}
	}
	return append(paths, fields.FindInitializationErrors()...)
}

// InitializationErrorString describes the missing required fields as a
// comma-separated list of paths.
func (m *DynamicMessage) InitializationErrorString() string {
	return strings.Join(m.FindInitializationErrors(), ", ")
}

// Equal returns whether other is a [*DynamicMessage] of the same type, with
// equal fields and unknown fields.
func (m *DynamicMessage) Equal(other Message) bool {
	o, ok := other.(*DynamicMessage)
	if !ok {
		return false
	}
	if m == o {
		return true
	}
	return m.md.FullName() == o.md.FullName() &&
		m.fields.Equal(o.fields) &&
		m.unknown.Equal(o.unknown)
}

// Hash returns a hash consistent with [DynamicMessage.Equal].
func (m *DynamicMessage) Hash() int32 {
	if h := m.hash.Load(); h != 0 {
		return h
	}

	h := int32(41)
	h = 19*h + bytestring.CopyFromString(string(m.md.FullName())).Hash()
	h = 53*h + m.fields.Hash()
	h = 29*h + m.unknown.Hash()
	if h == 0 {
		h = 1
	}
	m.hash.Store(h)
	return h
}

// MergedWith returns a message with the fields of m merged with those of
// other. See [Builder.MergeFrom].
func (m *DynamicMessage) MergedWith(other Message) Message {
	b := m.ToBuilder()
	b.MergeFrom(other)
	return b.BuildPartial()
}

// ToBuilder returns a builder that starts out with this message's contents.
func (m *DynamicMessage) ToBuilder() *Builder {
	return &Builder{
		md:      m.md,
		fields:  m.fields.ToBuilder(),
		unknown: m.unknown.ToBuilder(),
	}
}

// Size returns the number of bytes [DynamicMessage.MarshalTo] writes.
func (m *DynamicMessage) Size() int {
	if n := m.size.Load(); n != 0 {
		return int(n - 1)
	}

	var n int
	if infoOf(m.md).messageSet {
		n = m.fields.MessageSetSize() + m.unknown.SizeAsMessageSet()
	} else {
		n = m.fields.Size() + m.unknown.Size()
	}
	m.size.Store(int64(n) + 1)
	return n
}

// MarshalTo writes this message to out, without a length prefix.
//
// Known fields come first in field number order, followed by unknown fields
// in the order they were parsed.
func (m *DynamicMessage) MarshalTo(out *coded.Output) {
	if infoOf(m.md).messageSet {
		m.fields.MarshalMessageSetTo(out)
		m.unknown.MarshalAsMessageSetTo(out)
		return
	}
	m.fields.MarshalTo(out)
	m.unknown.MarshalTo(out)
}

// Marshal encodes this message. An empty encoding is returned as nil.
func (m *DynamicMessage) Marshal() []byte {
	size := m.Size()
	if size == 0 {
		return nil
	}
	out := coded.NewFixedOutput(make([]byte, size))
	m.MarshalTo(out)
	return out.Bytes()
}

// MarshalByteString encodes this message as a [bytestring.ByteString].
func (m *DynamicMessage) MarshalByteString() bytestring.ByteString {
	b := coded.NewBuilder(m.Size())
	m.MarshalTo(b.Output())
	s, err := b.Build()
	if err != nil {
		panic(err) // Size and MarshalTo disagree.
	}
	return s
}

// WriteTo encodes this message to w.
//
// Implements [io.WriterTo].
func (m *DynamicMessage) WriteTo(w io.Writer) (int64, error) {
	out := outputs.Get()
	defer outputs.Put(out)

	out.Reset(w)
	m.MarshalTo(out)
	err := out.Flush()
	return int64(out.Len()), err
}

// MarshalDelimited writes this message to w, prefixed with its size as a
// varint.
func (m *DynamicMessage) MarshalDelimited(w io.Writer) error {
	return outputs.With(func(out *coded.Output) error {
		out.Reset(w)
		out.WriteRawVarint(uint64(m.Size()))
		m.MarshalTo(out)
		return out.Flush()
	})
}

// defaultValue returns the value Get reports for fd when it is not set.
func defaultValue(fd protoreflect.FieldDescriptor) fieldset.Value {
	switch {
	case fieldset.IsRepeated(fd):
		return fieldset.ValueOfList()
	case fieldset.KindOf(fd) == fieldset.KindMessage:
		return fieldset.ValueOfMessage(Default(fd.Message()))
	default:
		return fieldset.ValueOf(fd, fd.Default())
	}
}
