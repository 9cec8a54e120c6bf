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

package wirepb_test

import (
	"testing"

	"github.com/protocolbuffers/protoscope"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"buf.build/go/wirepb/internal/prototest"
)

const schema2 = `
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
	field { name: "i" number: 1 label: LABEL_OPTIONAL type: TYPE_INT32 default_value: "-5" }
	field { name: "packed" number: 2 label: LABEL_REPEATED type: TYPE_INT32 options { packed: true } }
	field { name: "unpacked" number: 3 label: LABEL_REPEATED type: TYPE_INT32 }
	field { name: "inner" number: 4 label: LABEL_OPTIONAL type: TYPE_MESSAGE type_name: ".test.Inner" }
	field { name: "inners" number: 5 label: LABEL_REPEATED type: TYPE_MESSAGE type_name: ".test.Inner" }
	field { name: "g" number: 6 label: LABEL_OPTIONAL type: TYPE_GROUP type_name: ".test.Outer.G" }
	field { name: "z" number: 8 label: LABEL_OPTIONAL type: TYPE_SINT64 }
	field { name: "b" number: 9 label: LABEL_OPTIONAL type: TYPE_BYTES }
	field { name: "f" number: 10 label: LABEL_OPTIONAL type: TYPE_FLOAT }
	field { name: "e" number: 11 label: LABEL_OPTIONAL type: TYPE_ENUM type_name: ".test.Color" }
	field {
		name: "lazy" number: 12 label: LABEL_OPTIONAL type: TYPE_MESSAGE type_name: ".test.Inner"
		options { lazy: true }
	}
	field { name: "es" number: 13 label: LABEL_REPEATED type: TYPE_ENUM type_name: ".test.Color" }
	field { name: "o1" number: 14 label: LABEL_OPTIONAL type: TYPE_INT32 oneof_index: 0 }
	field { name: "o2" number: 15 label: LABEL_OPTIONAL type: TYPE_STRING oneof_index: 0 }
	field { name: "o3" number: 16 label: LABEL_OPTIONAL type: TYPE_MESSAGE type_name: ".test.Inner" oneof_index: 0 }
	field { name: "d" number: 17 label: LABEL_OPTIONAL type: TYPE_DOUBLE }
	field { name: "u" number: 18 label: LABEL_OPTIONAL type: TYPE_FIXED64 }
	oneof_decl { name: "choice" }
	nested_type {
		name: "G"
		field { name: "x" number: 7 label: LABEL_OPTIONAL type: TYPE_INT32 }
	}
	extension_range { start: 100 end: 536870912 }
}
message_type {
	name: "Container"
	extension_range { start: 4 end: 536870912 }
}
message_type {
	name: "Payload"
	field { name: "v" number: 1 label: LABEL_OPTIONAL type: TYPE_INT32 }
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
extension {
	name: "num" number: 101 label: LABEL_REPEATED type: TYPE_INT32 extendee: ".test.Outer"
}
extension {
	name: "item" number: 1000 label: LABEL_OPTIONAL type: TYPE_MESSAGE
	type_name: ".test.Payload" extendee: ".test.Container"
}
extension {
	name: "nest" number: 1002 label: LABEL_OPTIONAL type: TYPE_MESSAGE
	type_name: ".test.Container" extendee: ".test.Container"
}
`

const schema3 = `
name: "test3.proto"
package: "test3"
syntax: "proto3"
message_type {
	name: "Scalars"
	field { name: "i" number: 1 label: LABEL_OPTIONAL type: TYPE_INT32 }
	field { name: "s" number: 2 label: LABEL_OPTIONAL type: TYPE_STRING }
	field { name: "o" number: 3 label: LABEL_OPTIONAL type: TYPE_INT32 oneof_index: 0 proto3_optional: true }
	field { name: "r" number: 4 label: LABEL_REPEATED type: TYPE_INT32 }
	field { name: "e" number: 5 label: LABEL_OPTIONAL type: TYPE_ENUM type_name: ".test3.Open" }
	oneof_decl { name: "_o" }
}
enum_type {
	name: "Open"
	value { name: "ZERO" number: 0 }
	value { name: "ONE" number: 1 }
}
`

// fields looks up fields of md by name.
type fields struct {
	md protoreflect.MessageDescriptor
	t  *testing.T
}

func (f fields) get(name string) protoreflect.FieldDescriptor {
	f.t.Helper()
	return prototest.Field(f.t, f.md, name)
}

// messageSet makes a message type use the MessageSet wire format.
//
// protodesc refuses to build MessageSets, so the option is grafted on.
type messageSet struct {
	protoreflect.MessageDescriptor
}

func (messageSet) Options() protoreflect.ProtoMessage {
	return &descriptorpb.MessageOptions{MessageSetWireFormat: proto.Bool(true)}
}

// scope assembles protoscope text into bytes.
func scope(t *testing.T, text string) []byte {
	t.Helper()
	data, err := protoscope.NewScanner(text).Exec()
	require.NoError(t, err, "bad protoscope: %q", text)
	if len(data) == 0 {
		return nil // Match Marshal.
	}
	return data
}
