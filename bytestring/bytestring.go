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

// Package bytestring provides ByteString, an immutable byte sequence with
// zero-copy substrings and cheap concatenation.
//
// A ByteString is either a flat leaf, which is a window over a backing array
// that may be shared with other leaves, or a rope: a binary tree of
// concatenated leaves. Ropes are kept shallow by rebalancing whenever a
// concatenation would leave the tree too deep for its length.
package bytestring

import (
	"bytes"
	"fmt"
	"iter"
	"strings"
	"sync/atomic"

	"buf.build/go/wirepb/internal/strictutf8"
	"buf.build/go/wirepb/internal/zc"
)

// ByteString is an immutable sequence of bytes.
//
// The zero value is empty and ready to use. ByteStrings are safe to share
// between goroutines without synchronization.
type ByteString struct {
	n *node // nil iff empty.
}

// Empty is the empty ByteString.
var Empty ByteString

// node is a leaf or a concatenation node of a ByteString.
//
// Nodes are never empty.
type node struct {
	// Set for leaves.
	src []byte
	r   zc.Range

	// Set for concatenation nodes.
	left, right *node

	size, depth int

	// Memoized hash; zero means it has not been computed yet. Racing
	// goroutines may both compute it, but they will store the same value.
	hash atomic.Int32
}

func newLeaf(src []byte, r zc.Range) *node {
	return &node{src: src, r: r, size: r.Len()}
}

func newConcat(left, right *node) *node {
	return &node{
		left:  left,
		right: right,
		size:  left.size + right.size,
		depth: max(left.depth, right.depth) + 1,
	}
}

func (n *node) isLeaf() bool { return n.left == nil }

// bytes returns the contents of a leaf.
func (n *node) bytes() []byte { return n.r.Bytes(n.src) }

// Wrap returns a ByteString over b without copying it.
//
// The caller must not modify b afterwards.
func Wrap(b []byte) ByteString {
	switch {
	case len(b) == 0:
		return Empty
	case uint64(len(b)) > zc.MaxLen:
		half := len(b) / 2
		return Concat(Wrap(b[:half]), Wrap(b[half:]))
	}
	return ByteString{newLeaf(b, zc.New(0, len(b)))}
}

// CopyFrom returns a ByteString holding a copy of b.
func CopyFrom(b []byte) ByteString {
	return Wrap(bytes.Clone(b))
}

// CopyFromString returns a ByteString holding the bytes of s.
func CopyFromString(s string) ByteString {
	return Wrap([]byte(s))
}

// Len returns the number of bytes in s.
func (s ByteString) Len() int {
	if s.n == nil {
		return 0
	}
	return s.n.size
}

// IsEmpty returns whether s has no bytes.
func (s ByteString) IsEmpty() bool {
	return s.n == nil
}

// Depth returns the depth of the tree backing s. Leaves have depth zero.
func (s ByteString) Depth() int {
	if s.n == nil {
		return 0
	}
	return s.n.depth
}

// ByteAt returns the byte at index i.
//
// Panics if i is out of range.
func (s ByteString) ByteAt(i int) byte {
	if uint(i) >= uint(s.Len()) {
		panic(fmt.Errorf("bytestring: index %d out of range for length %d", i, s.Len()))
	}

	n := s.n
	for !n.isLeaf() {
		if i < n.left.size {
			n = n.left
		} else {
			i -= n.left.size
			n = n.right
		}
	}
	return n.src[n.r.Start()+i]
}

// Substring returns the bytes in [begin:end] without copying them.
//
// Panics if the range is out of bounds.
func (s ByteString) Substring(begin, end int) ByteString {
	checkRange(begin, end, s.Len())
	switch {
	case begin == end:
		return Empty
	case begin == 0 && end == s.Len():
		return s
	}
	return ByteString{substring(s.n, begin, end)}
}

func substring(n *node, begin, end int) *node {
	for {
		if begin == 0 && end == n.size {
			return n
		}
		if n.isLeaf() {
			return newLeaf(n.src, n.r.Sub(begin, end))
		}

		split := n.left.size
		switch {
		case end <= split:
			n = n.left
		case begin >= split:
			n = n.right
			begin -= split
			end -= split
		default:
			return newConcat(
				substring(n.left, begin, split),
				substring(n.right, 0, end-split),
			)
		}
	}
}

func checkRange(begin, end, size int) {
	if begin < 0 || begin > end || end > size {
		panic(fmt.Errorf("bytestring: range [%d:%d] out of bounds for length %d", begin, end, size))
	}
}

// Chunks returns an iterator over the flat pieces of s, in order.
//
// The yielded slices alias the contents of s and must not be modified.
func (s ByteString) Chunks() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		c := newCursor(s.n)
		for c.fill() {
			if !yield(c.cur) {
				return
			}
			c.cur = nil
		}
	}
}

// CopyTo copies the contents of s into dst, returning the number of bytes
// copied, which is the minimum of len(dst) and s.Len().
func (s ByteString) CopyTo(dst []byte) int {
	n := 0
	for chunk := range s.Chunks() {
		if n == len(dst) {
			break
		}
		n += copy(dst[n:], chunk)
	}
	return n
}

// Bytes returns a copy of the contents of s.
func (s ByteString) Bytes() []byte {
	if s.n == nil {
		return nil
	}
	if s.n.isLeaf() {
		return bytes.Clone(s.n.bytes())
	}

	b := make([]byte, s.Len())
	s.CopyTo(b)
	return b
}

// String returns the contents of s as a string.
func (s ByteString) String() string {
	if s.n == nil {
		return ""
	}
	if s.n.isLeaf() {
		return string(s.n.bytes())
	}

	var b strings.Builder
	b.Grow(s.Len())
	for chunk := range s.Chunks() {
		b.Write(chunk)
	}
	return b.String()
}

// Format implements [fmt.Formatter].
//
// %v and %s print the contents; %q quotes them and %x hex-encodes them.
func (s ByteString) Format(f fmt.State, verb rune) {
	switch verb {
	case 'q', 'x', 'X':
		fmt.Fprintf(f, fmt.FormatString(f, verb), s.String())
	default:
		fmt.Fprint(f, s.String())
	}
}

// Hash returns a content hash of s.
//
// The hash is never zero, and is memoized.
func (s ByteString) Hash() int32 {
	if s.n == nil {
		return 1
	}
	if h := s.n.hash.Load(); h != 0 {
		return h
	}

	h := int32(s.n.size)
	for chunk := range s.Chunks() {
		for _, b := range chunk {
			h = h*31 + int32(int8(b))
		}
	}
	if h == 0 {
		h = 1
	}
	s.n.hash.Store(h)
	return h
}

// Equal returns whether s and t have the same contents.
//
// This never flattens either side.
func (s ByteString) Equal(t ByteString) bool {
	switch {
	case s.n == t.n:
		return true
	case s.Len() != t.Len():
		return false
	}

	if h1, h2 := s.n.hash.Load(), t.n.hash.Load(); h1 != 0 && h2 != 0 && h1 != h2 {
		return false
	}
	if s.n.isLeaf() && t.n.isLeaf() {
		return bytes.Equal(s.n.bytes(), t.n.bytes())
	}

	a, b := newCursor(s.n), newCursor(t.n)
	for a.fill() && b.fill() {
		n := min(len(a.cur), len(b.cur))
		if !bytes.Equal(a.cur[:n], b.cur[:n]) {
			return false
		}
		a.cur, b.cur = a.cur[n:], b.cur[n:]
	}
	return true
}

// Compare compares s and t lexicographically, treating bytes as unsigned.
func (s ByteString) Compare(t ByteString) int {
	a, b := newCursor(s.n), newCursor(t.n)
	for {
		okA, okB := a.fill(), b.fill()
		switch {
		case !okA && !okB:
			return 0
		case !okA:
			return -1
		case !okB:
			return 1
		}

		n := min(len(a.cur), len(b.cur))
		if c := bytes.Compare(a.cur[:n], b.cur[:n]); c != 0 {
			return c
		}
		a.cur, b.cur = a.cur[n:], b.cur[n:]
	}
}

// HasPrefix returns whether s begins with prefix.
func (s ByteString) HasPrefix(prefix ByteString) bool {
	return s.Len() >= prefix.Len() && s.Substring(0, prefix.Len()).Equal(prefix)
}

// HasSuffix returns whether s ends with suffix.
func (s ByteString) HasSuffix(suffix ByteString) bool {
	return s.Len() >= suffix.Len() && s.Substring(s.Len()-suffix.Len(), s.Len()).Equal(suffix)
}

// UTF8State is the resumable state of [ByteString.PartialValidUTF8].
type UTF8State = strictutf8.State

// Terminal states for [UTF8State].
const (
	UTF8Complete  = strictutf8.Complete
	UTF8Malformed = strictutf8.Malformed
)

// IsValidUTF8 returns whether s is well-formed UTF-8.
//
// Overlong encodings, encoded surrogates, and values past U+10FFFF are all
// rejected.
func (s ByteString) IsValidUTF8() bool {
	if s.n != nil && s.n.isLeaf() {
		return strictutf8.Valid(s.n.bytes())
	}
	return s.PartialValidUTF8(UTF8Complete, 0, s.Len()) == UTF8Complete
}

// PartialValidUTF8 continues validating UTF-8 from state over the bytes
// [offset:offset+length] of s.
func (s ByteString) PartialValidUTF8(state UTF8State, offset, length int) UTF8State {
	for chunk := range s.Substring(offset, offset+length).Chunks() {
		state = strictutf8.PartialValid(state, chunk)
		if state == UTF8Malformed {
			break
		}
	}
	return state
}

// cursor walks the leaves of a tree left-to-right.
//
// Rather than recursing, it keeps the right subtrees it has yet to visit on
// a stack, which is never deeper than the tree.
type cursor struct {
	stack []*node
	cur   []byte
}

func newCursor(root *node) cursor {
	if root == nil {
		return cursor{}
	}
	stack := make([]*node, 1, root.depth+1)
	stack[0] = root
	return cursor{stack: stack}
}

// fill makes cur non-empty, unless there are no more bytes.
func (c *cursor) fill() bool {
	for len(c.cur) == 0 {
		if len(c.stack) == 0 {
			return false
		}
		n := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]
		for !n.isLeaf() {
			c.stack = append(c.stack, n.right)
			n = n.left
		}
		c.cur = n.bytes()
	}
	return true
}
