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
	"sync"
	"sync/atomic"

	"google.golang.org/protobuf/reflect/protoreflect"

	"buf.build/go/wirepb/bytestring"
	"buf.build/go/wirepb/coded"
	"buf.build/go/wirepb/internal/debug"
)

// Message is a message stored in a field.
type Message interface {
	coded.Marshaler

	// Descriptor returns this message's type.
	Descriptor() protoreflect.MessageDescriptor

	// IsInitialized returns whether all required fields in this message and
	// its submessages are set.
	IsInitialized() bool

	// FindInitializationErrors returns the paths of the required fields that
	// are missing, relative to this message.
	FindInitializationErrors() []string

	// Equal returns whether this message is equal to another.
	Equal(Message) bool

	// Hash returns a hash consistent with Equal.
	Hash() int32

	// MergedWith returns a new message with the fields of this message
	// merged with those of other, as if other had been parsed after it.
	MergedWith(other Message) Message
}

// Prototype decodes messages of a particular type.
type Prototype interface {
	// Descriptor returns the type of messages that Parse returns.
	Descriptor() protoreflect.MessageDescriptor

	// Parse decodes a message.
	Parse(data bytestring.ByteString) (Message, error)
}

// LazyField is a message that is kept encoded until it is first accessed.
//
// A LazyField is safe for concurrent use. Its message is decoded at most
// once, however many goroutines ask for it.
type LazyField struct {
	proto Prototype
	data  bytestring.ByteString

	once sync.Once
	done atomic.Bool
	msg  Message
	err  error
}

// NewLazyField returns a lazy field that decodes data with proto when
// needed.
func NewLazyField(proto Prototype, data bytestring.ByteString) *LazyField {
	return &LazyField{proto: proto, data: data}
}

// Descriptor returns the type of the message.
func (f *LazyField) Descriptor() protoreflect.MessageDescriptor {
	return f.proto.Descriptor()
}

// Bytes returns the encoded message.
func (f *LazyField) Bytes() bytestring.ByteString {
	return f.data
}

// IsDecoded returns whether the message has been decoded.
func (f *LazyField) IsDecoded() bool {
	return f.done.Load()
}

// Message decodes the message if it has not been already, and returns it.
// A decoding failure is reported by every call.
func (f *LazyField) Message() (Message, error) {
	if f.done.Load() {
		return f.msg, f.err
	}
	f.once.Do(func() {
		if debug.Enabled {
			debug.Log("lazy decode", "%s, %d bytes", f.proto.Descriptor().FullName(), f.data.Len())
		}
		f.msg, f.err = f.proto.Parse(f.data)
		f.done.Store(true)
	})
	return f.msg, f.err
}

// Merge returns a lazy field that decodes to f's message merged with
// other's.
//
// Concatenating two encoded messages of the same type encodes their merge,
// so if neither has been decoded yet, neither is.
func (f *LazyField) Merge(other *LazyField) *LazyField {
	return NewLazyField(f.proto, f.data.Concat(other.data))
}
