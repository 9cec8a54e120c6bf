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

// Package zc provides helpers for working with zero-copy ranges.
package zc

import (
	"fmt"
	"math"

	"buf.build/go/wirepb/internal/debug"
)

// Range is a representation of a []byte as a slice relative to some larger byte
// array, such as the backing array of a byte string leaf.
//
// This is a packed representation of a value with the layout
//
//	struct {
//	  offset, len uint32
//	}
//
// The zero value faithfully represents an empty slice.
type Range uint64

// MaxLen is the largest length a Range can represent.
const MaxLen = math.MaxUint32

// New creates a new Range with the given start and length.
func New(offset, len int) Range {
	debug.Assert(offset >= 0 && len >= 0 && uint64(offset) <= MaxLen && uint64(len) <= MaxLen,
		"offset too large for zc: [%d:%d]", offset, len)
	return Range(offset) | Range(len)<<32
}

// Start returns the start offset of this slice within its source.
func (r Range) Start() int { return int(uint32(r)) }

// End returns the end offset of this slice within its source.
func (r Range) End() int { return r.Start() + r.Len() }

// Len returns the length of this Range.
func (r Range) Len() int { return int(r >> 32) }

// Sub returns the subrange [i:j] of this range.
func (r Range) Sub(i, j int) Range {
	debug.Assert(0 <= i && i <= j && j <= r.Len(), "subrange out of bounds: %v[%d:%d]", r, i, j)
	return New(r.Start()+i, j-i)
}

// Bytes converts this Range into a byte slice, given its source.
//
// The result has its capacity clipped, so appending to it will never write
// into src.
func (r Range) Bytes(src []byte) []byte {
	if r.Len() == 0 {
		return nil
	}
	return src[r.Start():r.End():r.End()]
}

// String converts this Range into a string, given its source.
func (r Range) String(src []byte) string {
	return string(r.Bytes(src))
}

// Format implements [fmt.Formatter].
func (r Range) Format(s fmt.State, verb rune) {
	fmt.Fprintf(s, "[%d:%d]", r.Start(), r.End())
}
