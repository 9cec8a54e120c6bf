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

// Package strictutf8 validates restricted UTF-8: no overlong encodings, no
// encoded surrogates, and nothing above U+10FFFF.
//
// Validation may be split across arbitrary chunk boundaries by threading a
// [State] through [PartialValid].
package strictutf8

import (
	"encoding/binary"
	"fmt"
)

// State is the resumable state of a partial validation.
//
// Besides [Complete] and [Malformed], a State may record the one to three
// bytes of a multi-byte sequence that was cut off at the end of a chunk.
// Such states are positive and packed as
//
//	count<<24 | b3<<16 | b2<<8 | b1
type State int32

const (
	// Complete means every sequence seen so far was well-formed and none is
	// pending.
	Complete State = 0
	// Malformed means an invalid sequence was seen. It is sticky.
	Malformed State = -1
)

const signBits = 0x8080808080808080

// Valid returns whether b is entirely well-formed.
func Valid(b []byte) bool {
	return validFrom(b) == Complete
}

// PartialValid continues validating from state over b, returning the state
// after the last byte of b.
//
// Validating a byte slice in pieces yields the same final State as
// validating it all at once, regardless of where it was split.
func PartialValid(state State, b []byte) State {
	switch {
	case state == Malformed:
		return Malformed
	case state == Complete:
		return validFrom(b)
	}

	var seq [4]byte
	n := state.pending(&seq)
	need := seqLen(seq[0])
	i := 0
	for n < need && i < len(b) {
		seq[n] = b[i]
		n++
		i++
	}
	if !checkPrefix(seq[:n]) {
		return Malformed
	}
	if n < need {
		return pack(seq[:n])
	}
	return validFrom(b[i:])
}

// Pending returns the number of bytes of an incomplete sequence recorded in
// s.
func (s State) Pending() int {
	if s <= 0 {
		return 0
	}
	return int(s >> 24)
}

// String implements [fmt.Stringer].
func (s State) String() string {
	switch s {
	case Complete:
		return "Complete"
	case Malformed:
		return "Malformed"
	}
	var seq [4]byte
	n := s.pending(&seq)
	return fmt.Sprintf("Pending(% x)", seq[:n])
}

func (s State) pending(seq *[4]byte) int {
	n := s.Pending()
	for i := range n {
		seq[i] = byte(s >> (8 * i))
	}
	return n
}

func pack(seq []byte) State {
	s := State(len(seq)) << 24
	for i, c := range seq {
		s |= State(c) << (8 * i)
	}
	return s
}

// validFrom validates b starting from a clean state.
func validFrom(b []byte) State {
	i := 0
	for i < len(b) {
		// Fast path for ASCII: simply check that all of the bytes don't have
		// their sign bits set, eight at a time.
		for len(b)-i >= 8 && binary.LittleEndian.Uint64(b[i:])&signBits == 0 {
			i += 8
		}
		for i < len(b) && b[i] < 0x80 {
			i++
		}
		if i == len(b) {
			break
		}

		n := seqLen(b[i])
		if n == 0 {
			return Malformed
		}
		end := min(i+n, len(b))
		if !checkPrefix(b[i:end]) {
			return Malformed
		}
		if end-i < n {
			return pack(b[i:end])
		}
		i = end
	}
	return Complete
}

// seqLen returns the length of the sequence introduced by lead, or zero if
// lead cannot begin a sequence.
//
// C0 and C1 can only begin overlong two-byte sequences, and F5 and above
// can only encode values past U+10FFFF.
func seqLen(lead byte) int {
	switch {
	case lead < 0x80:
		return 1
	case lead < 0xc2:
		return 0
	case lead < 0xe0:
		return 2
	case lead < 0xf0:
		return 3
	case lead < 0xf5:
		return 4
	default:
		return 0
	}
}

// checkPrefix checks the bytes of a possibly incomplete multi-byte sequence.
//
// The second byte carries the lead-specific constraints: E0 and F0 must not
// be overlong, ED must not encode a surrogate, and F4 must not exceed
// U+10FFFF.
func checkPrefix(seq []byte) bool {
	if seqLen(seq[0]) < 2 {
		return false
	}
	if len(seq) < 2 {
		return true
	}

	lo, hi := byte(0x80), byte(0xbf)
	switch seq[0] {
	case 0xe0:
		lo = 0xa0
	case 0xed:
		hi = 0x9f
	case 0xf0:
		lo = 0x90
	case 0xf4:
		hi = 0x8f
	}
	if seq[1] < lo || seq[1] > hi {
		return false
	}
	for _, c := range seq[2:] {
		if c&0xc0 != 0x80 {
			return false
		}
	}
	return true
}
