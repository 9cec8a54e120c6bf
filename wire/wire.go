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

// Package wire implements the primitive encodings of the Protobuf wire
// format: varints, zigzag, fixed-width integers, and tags.
//
// Decoding is hand-rolled so that failures can be reported as an [ErrorCode]
// without allocating; encoding defers to [protowire].
package wire

import (
	"encoding/binary"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"buf.build/go/wirepb/internal/zigzag"
)

// Number is a field number.
type Number = protowire.Number

// Type is a wire type.
type Type = protowire.Type

// The wire types.
const (
	VarintType     = protowire.VarintType
	Fixed64Type    = protowire.Fixed64Type
	BytesType      = protowire.BytesType
	StartGroupType = protowire.StartGroupType
	EndGroupType   = protowire.EndGroupType
	Fixed32Type    = protowire.Fixed32Type
)

const (
	// MaxVarintLen is the longest a varint may be.
	MaxVarintLen = 10
	// MaxVarint32Len is the longest a varint may be when it holds a value
	// that fits in 32 bits.
	MaxVarint32Len = 5

	// MaxNumber is the largest valid field number.
	MaxNumber = protowire.MaxValidNumber

	tagTypeBits = 3
	tagTypeMask = 1<<tagTypeBits - 1
)

// MakeTag packs a field number and wire type into a tag.
func MakeTag(num Number, typ Type) uint32 {
	return uint32(num)<<tagTypeBits | uint32(typ&tagTypeMask)
}

// TagNumber extracts the field number from a tag.
func TagNumber(tag uint32) Number { return Number(tag >> tagTypeBits) }

// TagType extracts the wire type from a tag.
func TagType(tag uint32) Type { return Type(tag & tagTypeMask) }

// ConsumeVarint parses a varint from the start of b, returning the value and
// the number of bytes consumed.
//
// Returns [ErrorTruncated] if b ends mid-varint, and [ErrorOverflow] if the
// varint does not fit in 64 bits or is longer than [MaxVarintLen].
func ConsumeVarint(b []byte) (v uint64, n int, code ErrorCode) {
	// Most varints on the wire are a single byte.
	if len(b) > 0 && b[0] < 0x80 {
		return uint64(b[0]), 1, ErrorOk
	}

	for i := range MaxVarintLen {
		if i == len(b) {
			return 0, 0, ErrorTruncated
		}
		c := b[i]
		if i == MaxVarintLen-1 && c > 1 {
			// The tenth byte may only contribute the 64th bit.
			return 0, 0, ErrorOverflow
		}
		v |= uint64(c&0x7f) << (7 * i)
		if c < 0x80 {
			return v, i + 1, ErrorOk
		}
	}
	return 0, 0, ErrorOverflow
}

// ConsumeFixed32 parses a little-endian fixed32 from the start of b.
func ConsumeFixed32(b []byte) (uint32, ErrorCode) {
	if len(b) < 4 {
		return 0, ErrorTruncated
	}
	return binary.LittleEndian.Uint32(b), ErrorOk
}

// ConsumeFixed64 parses a little-endian fixed64 from the start of b.
func ConsumeFixed64(b []byte) (uint64, ErrorCode) {
	if len(b) < 8 {
		return 0, ErrorTruncated
	}
	return binary.LittleEndian.Uint64(b), ErrorOk
}

// ConsumeTag parses a tag from the start of b and validates it.
func ConsumeTag(b []byte) (tag uint32, n int, code ErrorCode) {
	v, n, code := ConsumeVarint(b)
	if code != ErrorOk {
		return 0, 0, code
	}
	if code := ValidateTag(v); code != ErrorOk {
		return 0, 0, code
	}
	return uint32(v), n, ErrorOk
}

// ValidateTag checks that a raw tag value names a valid field with a wire
// type that can be parsed.
func ValidateTag(v uint64) ErrorCode {
	if v > math.MaxUint32 || TagNumber(uint32(v)) == 0 {
		return ErrorFieldNumber
	}
	if TagType(uint32(v)) > Fixed32Type {
		return ErrorReserved
	}
	return ErrorOk
}

// AppendVarint appends v as a varint.
func AppendVarint(b []byte, v uint64) []byte { return protowire.AppendVarint(b, v) }

// AppendFixed32 appends v in little-endian order.
func AppendFixed32(b []byte, v uint32) []byte { return protowire.AppendFixed32(b, v) }

// AppendFixed64 appends v in little-endian order.
func AppendFixed64(b []byte, v uint64) []byte { return protowire.AppendFixed64(b, v) }

// AppendTag appends the tag for the given field.
func AppendTag(b []byte, num Number, typ Type) []byte {
	return AppendVarint(b, uint64(MakeTag(num, typ)))
}

// SizeVarint returns the encoded size of v.
func SizeVarint(v uint64) int { return protowire.SizeVarint(v) }

// SizeTag returns the encoded size of a tag for num.
func SizeTag(num Number) int { return protowire.SizeTag(num) }

// SizeBytes returns the encoded size of a length-delimited payload of n
// bytes, including its length prefix.
func SizeBytes(n int) int { return protowire.SizeBytes(n) }

// EncodeZigZag32 zigzag-encodes a 32-bit signed value.
func EncodeZigZag32(n int32) uint32 { return uint32(zigzag.Encode(n)) }

// DecodeZigZag32 reverses [EncodeZigZag32].
func DecodeZigZag32(n uint32) int32 { return zigzag.Decode64[int32](uint64(n)) }

// EncodeZigZag64 zigzag-encodes a 64-bit signed value.
func EncodeZigZag64(n int64) uint64 { return zigzag.Encode(n) }

// DecodeZigZag64 reverses [EncodeZigZag64].
func DecodeZigZag64(n uint64) int64 { return zigzag.Decode64[int64](n) }
