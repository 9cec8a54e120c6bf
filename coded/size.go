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

package coded

import "buf.build/go/wirepb/wire"

// SizeTag returns the size of a tag for num.
func SizeTag(num wire.Number) int { return wire.SizeTag(num) }

// SizeVarint returns the size of v as a varint.
func SizeVarint(v uint64) int { return wire.SizeVarint(v) }

// SizeInt32NoTag returns the size of an int32 value.
func SizeInt32NoTag(v int32) int { return wire.SizeVarint(uint64(int64(v))) }

// SizeSint32NoTag returns the size of an sint32 value.
func SizeSint32NoTag(v int32) int { return wire.SizeVarint(uint64(wire.EncodeZigZag32(v))) }

// SizeSint64NoTag returns the size of an sint64 value.
func SizeSint64NoTag(v int64) int { return wire.SizeVarint(wire.EncodeZigZag64(v)) }

// SizeBool returns the size of a bool value.
func SizeBool(bool) int { return 1 }

// SizeLengthDelimited returns the size of n bytes with their length prefix.
func SizeLengthDelimited(n int) int { return wire.SizeBytes(n) }

// SizeMessage returns the size of a message field with the given payload
// size.
func SizeMessage(num wire.Number, n int) int {
	return SizeTag(num) + SizeLengthDelimited(n)
}

// SizeGroup returns the size of a group field with the given body size.
func SizeGroup(num wire.Number, n int) int {
	return 2*SizeTag(num) + n
}

// SizeMessageSetExtension returns the size of a MessageSet item for an
// extension with the given payload size.
func SizeMessageSetExtension(num wire.Number, n int) int {
	return 2*SizeTag(MessageSetItem) +
		SizeTag(MessageSetTypeID) + SizeVarint(uint64(uint32(num))) +
		SizeMessage(MessageSetMessage, n)
}
