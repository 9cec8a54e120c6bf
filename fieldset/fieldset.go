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

// Package fieldset provides a reflective field storage for messages whose
// type is only known at runtime, keyed by field descriptors.
//
// A [Builder] is exclusively owned and mutable; freezing it produces a
// [FieldSet], which is immutable and may be shared freely. Builders made
// from a FieldSet copy its storage lazily, the first time they are written
// to.
package fieldset

import (
	"cmp"
	"fmt"
	"iter"
	"slices"

	"google.golang.org/protobuf/reflect/protoreflect"
)

type entry struct {
	fd  protoreflect.FieldDescriptor
	val Value

	// Set in a Builder when val's list is not shared with any FieldSet.
	owned bool
}

// entries is sorted by field number.
type entries []entry

func (es entries) find(num protoreflect.FieldNumber) (int, bool) {
	return slices.BinarySearchFunc(es, num, func(e entry, n protoreflect.FieldNumber) int {
		return cmp.Compare(e.fd.Number(), n)
	})
}

func (es entries) get(fd protoreflect.FieldDescriptor) (Value, bool) {
	i, ok := es.find(fd.Number())
	if !ok {
		return Value{}, false
	}
	return es[i].val, true
}

func (es entries) all() iter.Seq2[protoreflect.FieldDescriptor, Value] {
	return func(yield func(protoreflect.FieldDescriptor, Value) bool) {
		for _, e := range es {
			if !yield(e.fd, e.val) {
				return
			}
		}
	}
}

// checkOwner panics if fd is not a field or extension of owner.
func checkOwner(owner protoreflect.FullName, fd protoreflect.FieldDescriptor) {
	if got := fd.ContainingMessage().FullName(); got != owner {
		panic(fmt.Errorf("fieldset: %s is a field of %s, not %s", fd.FullName(), got, owner))
	}
}

// IsRepeated reports whether fd holds a list of values. Map fields count:
// they are stored as a list of entry messages.
func IsRepeated(fd protoreflect.FieldDescriptor) bool {
	return fd.IsList() || fd.IsMap()
}

func checkList(fd protoreflect.FieldDescriptor, list bool) {
	switch {
	case list && !IsRepeated(fd):
		panic(fmt.Errorf("fieldset: %s is not a repeated field", fd.FullName()))
	case !list && IsRepeated(fd):
		panic(fmt.Errorf("fieldset: %s is a repeated field", fd.FullName()))
	}
}

// FieldSet is an immutable set of field values, sorted by field number.
//
// The zero value is empty and has no owner.
type FieldSet struct {
	owner   protoreflect.FullName
	entries entries
}

// Owner returns the full name of the message type whose fields these are.
func (s FieldSet) Owner() protoreflect.FullName {
	return s.owner
}

// Len returns the number of fields that are set.
func (s FieldSet) Len() int {
	return len(s.entries)
}

// IsEmpty returns whether no fields are set.
func (s FieldSet) IsEmpty() bool {
	return len(s.entries) == 0
}

func (s FieldSet) check(fd protoreflect.FieldDescriptor) {
	if s.owner != "" {
		checkOwner(s.owner, fd)
	}
}

// Get returns the value of fd, if it is set.
func (s FieldSet) Get(fd protoreflect.FieldDescriptor) (Value, bool) {
	s.check(fd)
	return s.entries.get(fd)
}

// Has returns whether the singular field fd is set.
func (s FieldSet) Has(fd protoreflect.FieldDescriptor) bool {
	s.check(fd)
	checkList(fd, false)
	_, ok := s.entries.get(fd)
	return ok
}

// Count returns the number of elements in the repeated field fd.
func (s FieldSet) Count(fd protoreflect.FieldDescriptor) int {
	s.check(fd)
	checkList(fd, true)
	v, ok := s.entries.get(fd)
	if !ok {
		return 0
	}
	return v.Len()
}

// Index returns the ith element of the repeated field fd.
func (s FieldSet) Index(fd protoreflect.FieldDescriptor, i int) Value {
	s.check(fd)
	checkList(fd, true)
	v, _ := s.entries.get(fd)
	if i < 0 || i >= len(v.list) {
		panic(fmt.Errorf("fieldset: index %d out of range for %s of length %d", i, fd.FullName(), len(v.list)))
	}
	return v.list[i]
}

// All returns an iterator over the fields that are set, in field number
// order.
func (s FieldSet) All() iter.Seq2[protoreflect.FieldDescriptor, Value] {
	return s.entries.all()
}

// ToBuilder returns a builder that starts out with the contents of s.
// Changes to the builder never affect s.
func (s FieldSet) ToBuilder() *Builder {
	return &Builder{owner: s.owner, entries: s.entries, shared: true}
}

// IsInitialized returns whether every message stored in this set is
// initialized.
//
// Lazy messages are not checked, and are not decoded to check them.
func (s FieldSet) IsInitialized() bool {
	for _, e := range s.entries {
		if KindOf(e.fd) != KindMessage {
			continue
		}
		for _, v := range elems(e) {
			if v.lazy == nil && !v.msg.IsInitialized() {
				return false
			}
		}
	}
	return true
}

// FindInitializationErrors returns the paths to missing required fields in
// the messages stored in this set, such as "foo.bar[2].baz". Extensions
// appear as their full name in parentheses. Like [FieldSet.IsInitialized],
// it skips lazy messages.
func (s FieldSet) FindInitializationErrors() []string {
	var paths []string
	for _, e := range s.entries {
		if KindOf(e.fd) != KindMessage {
			continue
		}

		name := string(e.fd.Name())
		if e.fd.IsExtension() {
			name = "(" + string(e.fd.FullName()) + ")"
		}
		for i, v := range elems(e) {
			if v.lazy != nil {
				continue
			}
			m := v.msg
			prefix := name
			if IsRepeated(e.fd) {
				prefix = fmt.Sprintf("%s[%d]", name, i)
			}
			for _, path := range m.FindInitializationErrors() {
				paths = append(paths, prefix+"."+path)
			}
		}
	}
	return paths
}

func elems(e entry) []Value {
	if IsRepeated(e.fd) {
		return e.val.list
	}
	return []Value{e.val}
}

// Equal returns whether two sets have the same owner and equal values for
// the same fields.
func (s FieldSet) Equal(t FieldSet) bool {
	if s.owner != t.owner || len(s.entries) != len(t.entries) {
		return false
	}
	for i := range s.entries {
		a, b := s.entries[i], t.entries[i]
		if a.fd.Number() != b.fd.Number() || !a.val.Equal(b.val) {
			return false
		}
	}
	return true
}

// Hash returns a hash consistent with [FieldSet.Equal]. It does not depend
// on the order fields were set in.
func (s FieldSet) Hash() int32 {
	var h int32
	for _, e := range s.entries {
		h += 37*int32(e.fd.Number()) + 53*e.val.Hash()
	}
	return h
}

// Builder is a mutable set of field values.
//
// A Builder must not be used by multiple goroutines at once.
type Builder struct {
	owner   protoreflect.FullName
	entries entries
	shared  bool // Set when entries is shared with a FieldSet.
}

// NewBuilder returns an empty builder for fields of md.
func NewBuilder(md protoreflect.MessageDescriptor) *Builder {
	return &Builder{owner: md.FullName()}
}

// Owner returns the full name of the message type whose fields these are.
func (b *Builder) Owner() protoreflect.FullName {
	return b.owner
}

// Len returns the number of fields that are set.
func (b *Builder) Len() int {
	return len(b.entries)
}

// Get returns the value of fd, if it is set.
func (b *Builder) Get(fd protoreflect.FieldDescriptor) (Value, bool) {
	checkOwner(b.owner, fd)
	return b.entries.get(fd)
}

// Has returns whether the singular field fd is set.
func (b *Builder) Has(fd protoreflect.FieldDescriptor) bool {
	checkOwner(b.owner, fd)
	checkList(fd, false)
	_, ok := b.entries.get(fd)
	return ok
}

// Count returns the number of elements in the repeated field fd.
func (b *Builder) Count(fd protoreflect.FieldDescriptor) int {
	checkOwner(b.owner, fd)
	checkList(fd, true)
	v, ok := b.entries.get(fd)
	if !ok {
		return 0
	}
	return v.Len()
}

// Index returns the ith element of the repeated field fd.
func (b *Builder) Index(fd protoreflect.FieldDescriptor, i int) Value {
	return FieldSet{owner: b.owner, entries: b.entries}.Index(fd, i)
}

// All returns an iterator over the fields that are set, in field number
// order.
func (b *Builder) All() iter.Seq2[protoreflect.FieldDescriptor, Value] {
	return b.entries.all()
}

// unshare makes entries safe to write to.
func (b *Builder) unshare() {
	if !b.shared {
		return
	}
	es := make(entries, len(b.entries), len(b.entries)+1)
	for i, e := range b.entries {
		e.owned = false
		es[i] = e
	}
	b.entries = es
	b.shared = false
}

func (b *Builder) put(e entry) {
	b.unshare()
	i, ok := b.entries.find(e.fd.Number())
	if ok {
		b.entries[i] = e
		return
	}
	b.entries = slices.Insert(b.entries, i, e)
}

// list returns the entry for the repeated field fd, creating it if needed,
// with a list that the builder owns.
func (b *Builder) list(fd protoreflect.FieldDescriptor) *entry {
	b.unshare()
	i, ok := b.entries.find(fd.Number())
	if !ok {
		b.entries = slices.Insert(b.entries, i, entry{fd: fd, val: ValueOfList(), owned: true})
	}
	e := &b.entries[i]
	if !e.owned {
		e.val = ValueOfList(slices.Clone(e.val.list)...)
		e.owned = true
	}
	return e
}

// Set sets the value of fd. For a repeated field, v must be a list, which
// is copied.
//
// Panics if fd does not belong to this builder's message type, or v is not
// of the right kind.
func (b *Builder) Set(fd protoreflect.FieldDescriptor, v Value) {
	checkOwner(b.owner, fd)
	if !IsRepeated(fd) {
		v.checkElem(fd)
		b.put(entry{fd: fd, val: v})
		return
	}

	if v.kind != KindList {
		panic(fmt.Errorf("fieldset: cannot store %v value in repeated field %s", v.kind, fd.FullName()))
	}
	for _, e := range v.list {
		e.checkElem(fd)
	}
	b.put(entry{fd: fd, val: ValueOfList(slices.Clone(v.list)...), owned: true})
}

// Clear unsets fd.
func (b *Builder) Clear(fd protoreflect.FieldDescriptor) {
	checkOwner(b.owner, fd)
	i, ok := b.entries.find(fd.Number())
	if !ok {
		return
	}
	b.unshare()
	b.entries = slices.Delete(b.entries, i, i+1)
}

// Add appends v to the repeated field fd.
func (b *Builder) Add(fd protoreflect.FieldDescriptor, v Value) {
	checkOwner(b.owner, fd)
	checkList(fd, true)
	v.checkElem(fd)
	e := b.list(fd)
	e.val.list = append(e.val.list, v)
}

// SetIndex replaces the ith element of the repeated field fd.
func (b *Builder) SetIndex(fd protoreflect.FieldDescriptor, i int, v Value) {
	n := b.Count(fd)
	if i < 0 || i >= n {
		panic(fmt.Errorf("fieldset: index %d out of range for %s of length %d", i, fd.FullName(), n))
	}
	v.checkElem(fd)
	b.list(fd).val.list[i] = v
}

// MergeValue merges v into fd: repeated fields are appended to, singular
// messages are merged, and other fields are overwritten.
func (b *Builder) MergeValue(fd protoreflect.FieldDescriptor, v Value) {
	checkOwner(b.owner, fd)
	switch {
	case IsRepeated(fd):
		if v.kind != KindList {
			panic(fmt.Errorf("fieldset: cannot merge %v value into repeated field %s", v.kind, fd.FullName()))
		}
		if len(v.list) == 0 {
			return
		}
		for _, e := range v.list {
			e.checkElem(fd)
		}
		e := b.list(fd)
		e.val.list = append(e.val.list, v.list...)

	case KindOf(fd) == KindMessage:
		v.checkElem(fd)
		if old, ok := b.entries.get(fd); ok {
			v = mergeMessages(old, v)
		}
		b.put(entry{fd: fd, val: v})

	default:
		b.Set(fd, v)
	}
}

// MergeFrom merges every field of s into this builder, as if by
// [Builder.MergeValue].
func (b *Builder) MergeFrom(s FieldSet) {
	if s.owner != "" && s.owner != b.owner {
		panic(fmt.Errorf("fieldset: cannot merge fields of %s into %s", s.owner, b.owner))
	}
	if len(b.entries) == 0 {
		b.entries, b.shared = s.entries, true
		return
	}
	for fd, v := range s.All() {
		b.MergeValue(fd, v)
	}
}

// Freeze returns the contents of this builder as a [FieldSet].
//
// The builder remains usable; writing to it afterwards does not affect the
// result. Freezing again without writing returns an equal set that shares
// the same storage.
func (b *Builder) Freeze() FieldSet {
	b.shared = true
	return FieldSet{owner: b.owner, entries: b.entries}
}

// mergeMessages merges two message values.
func mergeMessages(old, new Value) Value {
	if old.lazy != nil && new.lazy != nil && !old.lazy.IsDecoded() && !new.lazy.IsDecoded() {
		return ValueOfLazy(old.lazy.Merge(new.lazy))
	}

	m1, err1 := old.message()
	m2, err2 := new.message()
	if err1 == nil && err2 == nil {
		return ValueOfMessage(m1.MergedWith(m2))
	}

	// Something does not decode; keep both halves encoded, so the failure
	// is reported when the result is accessed.
	proto := old.lazy
	if proto == nil {
		proto = new.lazy
	}
	return ValueOfLazy(NewLazyField(proto.proto, encoded(old).Concat(encoded(new))))
}
