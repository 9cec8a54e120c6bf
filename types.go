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
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"buf.build/go/wirepb/fieldset"
	"buf.build/go/wirepb/internal/xsync"
)

// typeInfo is information about a message type that is computed once and
// then cached.
type typeInfo struct {
	messageSet bool
	required   []protoreflect.FieldDescriptor
	lazy       map[protoreflect.FieldNumber]bool
	empty      *DynamicMessage
}

// types is keyed by descriptor identity, not name: two schemas can define
// different types with the same name.
var types xsync.Cache[protoreflect.MessageDescriptor, *typeInfo]

func infoOf(md protoreflect.MessageDescriptor) *typeInfo {
	return types.Get(md, newTypeInfo)
}

func newTypeInfo(md protoreflect.MessageDescriptor) *typeInfo {
	info := &typeInfo{
		messageSet: isMessageSet(md),
		lazy:       make(map[protoreflect.FieldNumber]bool),
	}
	info.empty = &DynamicMessage{md: md, fields: fieldset.NewBuilder(md).Freeze()}

	fields := md.Fields()
	for i := range fields.Len() {
		fd := fields.Get(i)
		if fd.Cardinality() == protoreflect.Required {
			info.required = append(info.required, fd)
		}
		if isLazy(fd) {
			info.lazy[fd.Number()] = true
		}
	}
	return info
}

// isMessageSet returns whether md uses the MessageSet wire format.
func isMessageSet(md protoreflect.MessageDescriptor) bool {
	// Descriptors built by the protobuf runtime know this directly.
	if ms, ok := md.(interface{ IsMessageSet() bool }); ok && ms.IsMessageSet() {
		return true
	}
	opts, _ := md.Options().(*descriptorpb.MessageOptions)
	return opts.GetMessageSetWireFormat()
}

// isLazy returns whether fd is a singular message field that asks to be
// parsed lazily.
func isLazy(fd protoreflect.FieldDescriptor) bool {
	if fieldset.IsRepeated(fd) || fd.Kind() != protoreflect.MessageKind {
		return false
	}
	opts, _ := fd.Options().(*descriptorpb.FieldOptions)
	return opts.GetLazy() || opts.GetUnverifiedLazy()
}
