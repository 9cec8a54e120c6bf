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

// Package prototest contains helpers for tests that need schemas and
// reference messages.
package prototest

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/testing/protocmp"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Schema is a compiled test schema.
type Schema struct {
	File  protoreflect.FileDescriptor
	Types *protoregistry.Types
}

// Compile builds a file from a text-format FileDescriptorProto. It may only
// import descriptor.proto.
func Compile(t testing.TB, textpb string) *Schema {
	t.Helper()

	fdp := new(descriptorpb.FileDescriptorProto)
	require.NoError(t, prototext.Unmarshal([]byte(textpb), fdp), "parsing schema")

	files := new(protoregistry.Files)
	require.NoError(t, files.RegisterFile(descriptorpb.File_google_protobuf_descriptor_proto))
	file, err := protodesc.NewFile(fdp, files)
	require.NoError(t, err, "building schema")

	types := new(protoregistry.Types)
	exts := file.Extensions()
	for i := range exts.Len() {
		require.NoError(t, types.RegisterExtension(dynamicpb.NewExtensionType(exts.Get(i))))
	}
	msgs := file.Messages()
	for i := range msgs.Len() {
		registerMessage(t, types, msgs.Get(i))
	}

	return &Schema{File: file, Types: types}
}

func registerMessage(t testing.TB, types *protoregistry.Types, md protoreflect.MessageDescriptor) {
	t.Helper()
	require.NoError(t, types.RegisterMessage(dynamicpb.NewMessageType(md)))

	exts := md.Extensions()
	for i := range exts.Len() {
		require.NoError(t, types.RegisterExtension(dynamicpb.NewExtensionType(exts.Get(i))))
	}
	msgs := md.Messages()
	for i := range msgs.Len() {
		if !msgs.Get(i).IsMapEntry() {
			registerMessage(t, types, msgs.Get(i))
		}
	}
}

// Message returns the descriptor for the message with the given name,
// relative to the file's package, such as "Outer.Inner".
func (s *Schema) Message(t testing.TB, name string) protoreflect.MessageDescriptor {
	t.Helper()
	full := protoreflect.FullName(name)
	if pkg := s.File.Package(); pkg != "" {
		full = pkg.Append(protoreflect.Name(name))
	}
	d, err := s.Types.FindMessageByName(full)
	require.NoError(t, err, "looking up %q", name)
	return d.Descriptor()
}

// Extension returns the descriptor for the extension with the given name,
// relative to the file's package.
func (s *Schema) Extension(t testing.TB, name string) protoreflect.ExtensionTypeDescriptor {
	t.Helper()
	xt, err := s.Types.FindExtensionByName(s.File.Package().Append(protoreflect.Name(name)))
	require.NoError(t, err, "looking up %q", name)
	return xt.TypeDescriptor()
}

// Field returns the field of md with the given name.
func Field(t testing.TB, md protoreflect.MessageDescriptor, name string) protoreflect.FieldDescriptor {
	t.Helper()
	fd := md.Fields().ByName(protoreflect.Name(name))
	require.NotNil(t, fd, "%s has no field %q", md.FullName(), name)
	return fd
}

// Unmarshal parses data with protobuf-go, as a reference. Required fields
// are not checked, and closed enums are split as by [SplitClosedEnums].
func (s *Schema) Unmarshal(md protoreflect.MessageDescriptor, data []byte) (proto.Message, error) {
	m := dynamicpb.NewMessage(md)
	err := proto.UnmarshalOptions{Resolver: s.Types, AllowPartial: true}.Unmarshal(data, m)
	if err == nil {
		SplitClosedEnums(m.ProtoReflect())
	}
	return m, err
}

// SplitClosedEnums moves the elements of repeated closed-enum fields that
// the enum does not declare into m's unknown fields, recursively.
//
// dynamicpb keeps such values in the list, whereas wirepb stores them as
// unknown fields. Once both sides are split, re-encoding through either one
// compares equal.
func SplitClosedEnums(m protoreflect.Message) {
	type split struct {
		fd   protoreflect.FieldDescriptor
		keep []protoreflect.EnumNumber
	}
	var (
		splits  []split
		unknown []byte
	)
	m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		switch {
		case fd.IsMap():
			if fd.MapValue().Message() != nil {
				v.Map().Range(func(_ protoreflect.MapKey, v protoreflect.Value) bool {
					SplitClosedEnums(v.Message())
					return true
				})
			}
		case fd.IsList() && fd.Kind() == protoreflect.EnumKind && fd.Enum().IsClosed():
			list := v.List()
			s := split{fd: fd}
			for i := range list.Len() {
				n := list.Get(i).Enum()
				if fd.Enum().Values().ByNumber(n) != nil {
					s.keep = append(s.keep, n)
					continue
				}
				unknown = protowire.AppendTag(unknown, fd.Number(), protowire.VarintType)
				unknown = protowire.AppendVarint(unknown, uint64(n))
			}
			if len(s.keep) != list.Len() {
				splits = append(splits, s)
			}
		case fd.IsList() && fd.Message() != nil:
			list := v.List()
			for i := range list.Len() {
				SplitClosedEnums(list.Get(i).Message())
			}
		case fd.Message() != nil:
			SplitClosedEnums(v.Message())
		}
		return true
	})

	for _, s := range splits {
		m.Clear(s.fd)
		if len(s.keep) == 0 {
			continue
		}
		list := m.Mutable(s.fd).List()
		for _, n := range s.keep {
			list.Append(protoreflect.ValueOfEnum(n))
		}
	}
	if len(unknown) > 0 {
		m.SetUnknown(append(m.GetUnknown(), unknown...))
	}
}

// Equal checks that two messages are equal, printing a diff if they are not.
func Equal(t testing.TB, want, got proto.Message) {
	t.Helper()
	if diff := cmp.Diff(want, got, protocmp.Transform()); diff != "" {
		t.Errorf("messages differ (-want +got):\n%s", diff)
	}
}
