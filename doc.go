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

// Package wirepb is a Protobuf wire format library built around messages
// whose types are only known at runtime.
//
// A [DynamicMessage] holds the fields of any message type, given its
// [protoreflect.MessageDescriptor]. Messages are immutable once built; they
// are created by parsing with [Parse] and its siblings, or field by field
// through a [Builder].
//
// The wire codec itself lives in subpackages: [buf.build/go/wirepb/coded]
// reads and writes individual fields, [buf.build/go/wirepb/bytestring]
// provides the immutable byte strings that bytes fields are stored as, and
// [buf.build/go/wirepb/fieldset] and [buf.build/go/wirepb/unknown] store
// known and unknown fields respectively.
//
// # Support Status
//
// The following are not supported:
//
//   - Map fields get no special treatment; they behave as repeated fields
//     of their entry type.
//   - Text and JSON formats.
//   - Nested builders ([Builder.GetFieldBuilder]). Build submessages
//     separately with [NewBuilderForField] and set them instead.
package wirepb
