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
	"fmt"
	"io"

	"google.golang.org/protobuf/reflect/protoreflect"

	"buf.build/go/wirepb/coded"
	"buf.build/go/wirepb/fieldset"
	"buf.build/go/wirepb/internal/debug"
	"buf.build/go/wirepb/unknown"
)

// Builder constructs a [DynamicMessage].
//
// A Builder remains usable after building; later changes do not affect
// messages already built. A Builder must not be used by multiple
// goroutines at once.
type Builder struct {
	md      protoreflect.MessageDescriptor
	fields  *fieldset.Builder
	unknown *unknown.Builder
}

// NewBuilder returns an empty builder for messages of type md.
func NewBuilder(md protoreflect.MessageDescriptor) *Builder {
	return &Builder{
		md:      md,
		fields:  fieldset.NewBuilder(md),
		unknown: new(unknown.Builder),
	}
}

// NewBuilderForField returns an empty builder for the type of a message
// field.
//
// Panics if fd is not a message field.
func NewBuilderForField(fd protoreflect.FieldDescriptor) *Builder {
	if fieldset.KindOf(fd) != fieldset.KindMessage {
		panic(fmt.Errorf("wirepb: %s is not a message field", fd.FullName()))
	}
	return NewBuilder(fd.Message())
}

// Descriptor returns the type of the message being built.
func (b *Builder) Descriptor() protoreflect.MessageDescriptor {
	return b.md
}

// Get returns the value of fd, or its default if it is not set.
func (b *Builder) Get(fd protoreflect.FieldDescriptor) fieldset.Value {
	if v, ok := b.fields.Get(fd); ok {
		return v
	}
	return defaultValue(fd)
}

// Has returns whether a singular field is set.
func (b *Builder) Has(fd protoreflect.FieldDescriptor) bool {
	return b.fields.Has(fd)
}

// Count returns the number of elements in a repeated field.
func (b *Builder) Count(fd protoreflect.FieldDescriptor) int {
	return b.fields.Count(fd)
}

// WhichOneof returns the member of od that is set, or nil.
func (b *Builder) WhichOneof(od protoreflect.OneofDescriptor) protoreflect.FieldDescriptor {
	return whichOneof(b.fields.Has, od)
}

// Set sets the value of fd. Repeated fields take a list.
//
// Setting a member of a oneof clears the others. Setting a field without
// presence to its default value clears it.
//
// Panics if fd does not belong to this message's type, or if v has the
// wrong kind.
func (b *Builder) Set(fd protoreflect.FieldDescriptor, v fieldset.Value) {
	b.clearOneof(fd)
	if !fd.HasPresence() && !fieldset.IsRepeated(fd) && v.Equal(defaultValue(fd)) {
		b.fields.Clear(fd)
		return
	}
	b.fields.Set(fd, v)
}

// Add appends an element to a repeated field.
func (b *Builder) Add(fd protoreflect.FieldDescriptor, v fieldset.Value) {
	b.fields.Add(fd, v)
}

// SetIndex replaces the ith element of a repeated field.
func (b *Builder) SetIndex(fd protoreflect.FieldDescriptor, i int, v fieldset.Value) {
	b.fields.SetIndex(fd, i, v)
}

// Clear unsets fd.
func (b *Builder) Clear(fd protoreflect.FieldDescriptor) {
	b.fields.Clear(fd)
}

// ClearOneof unsets whichever member of od is set.
func (b *Builder) ClearOneof(od protoreflect.OneofDescriptor) {
	if fd := b.WhichOneof(od); fd != nil {
		b.fields.Clear(fd)
	}
}

// clearOneof clears the members of fd's oneof other than fd.
func (b *Builder) clearOneof(fd protoreflect.FieldDescriptor) {
	od := fd.ContainingOneof()
	if od == nil {
		return
	}
	if set := b.WhichOneof(od); set != nil && set.Number() != fd.Number() {
		b.fields.Clear(set)
	}
}

// mergeValue merges v into fd as if it had been parsed.
func (b *Builder) mergeValue(fd protoreflect.FieldDescriptor, v fieldset.Value) {
	b.clearOneof(fd)
	b.fields.MergeValue(fd, v)
}

// Unknown returns the unknown fields collected so far.
func (b *Builder) Unknown() unknown.Set {
	set := b.unknown.Build()
	b.unknown.MergeSet(set)
	return set
}

// SetUnknown replaces the unknown fields.
func (b *Builder) SetUnknown(set unknown.Set) {
	b.unknown = set.ToBuilder()
}

// MergeUnknown appends unknown fields.
func (b *Builder) MergeUnknown(set unknown.Set) {
	b.unknown.MergeSet(set)
}

// MergeFrom merges other into this builder, as if other's encoding had been
// parsed after this builder's contents.
//
// Singular fields in other overwrite those here, except for messages, which
// are merged recursively. Repeated fields are concatenated. A oneof member
// set in other replaces a different member set here.
//
// Panics if other is not a [*DynamicMessage] of the same type.
func (b *Builder) MergeFrom(other Message) {
	o, ok := other.(*DynamicMessage)
	if !ok || o.md.FullName() != b.md.FullName() {
		panic(fmt.Errorf("wirepb: cannot merge %s into %s", other.Descriptor().FullName(), b.md.FullName()))
	}

	oneofs := b.md.Oneofs()
	for i := range oneofs.Len() {
		if fd := o.WhichOneof(oneofs.Get(i)); fd != nil {
			b.clearOneof(fd)
		}
	}
	b.fields.MergeFrom(o.fields)
	b.unknown.MergeSet(o.unknown)
}

// Merge parses data and merges it into this builder.
//
// Required fields are not checked. On error, the builder holds whatever
// was parsed before the failure.
func (b *Builder) Merge(data []byte, opts ...ParseOption) error {
	p := newParser(opts)
	return p.merge(b, coded.NewInput(data, p.opts.coded))
}

// MergeFromReader parses a message from r and merges it into this builder, reading
// until EOF.
func (b *Builder) MergeFromReader(r io.Reader, opts ...ParseOption) error {
	p := newParser(opts)
	return p.merge(b, coded.NewReaderInput(r, p.opts.coded))
}

// MergeDelimited reads a size-prefixed message from r and merges it into
// this builder. Nothing past the message is read.
//
// Returns [io.EOF] if r is exhausted before the size prefix.
func (b *Builder) MergeDelimited(r io.Reader, opts ...ParseOption) error {
	p := newParser(opts)
	n, err := coded.ReadDelimitedSize(r)
	if err != nil {
		return err
	}
	return p.mergeDelimited(b, r, n)
}

// IsInitialized returns whether all required fields are set.
func (b *Builder) IsInitialized() bool {
	for _, fd := range infoOf(b.md).required {
		if !b.fields.Has(fd) {
			return false
		}
	}
	return b.fields.Freeze().IsInitialized()
}

// Build returns the message built so far.
//
// Returns an [*UninitializedError] if required fields are missing.
func (b *Builder) Build() (*DynamicMessage, error) {
	m := b.BuildPartial()
	if !m.IsInitialized() {
		return nil, &UninitializedError{Missing: m.FindInitializationErrors()}
	}
	return m, nil
}

// BuildPartial returns the message built so far, without checking that
// required fields are set.
func (b *Builder) BuildPartial() *DynamicMessage {
	return &DynamicMessage{
		md:      b.md,
		fields:  b.fields.Freeze(),
		unknown: b.Unknown(),
	}
}

// GetFieldBuilder would return a builder nested inside this one, whose
// changes show up here.
//
// It is not supported; use [NewBuilderForField] and [Builder.Set] instead.
func (b *Builder) GetFieldBuilder(protoreflect.FieldDescriptor) *Builder {
	panic(debug.Unsupported())
}
