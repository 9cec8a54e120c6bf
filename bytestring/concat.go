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

package bytestring

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"

	"buf.build/go/wirepb/internal/debug"
)

// concatByCopySize is the size below which concatenation copies both sides
// into a new leaf instead of building a tree node.
const concatByCopySize = 128

// minLengthByDepth holds the minimum length a tree of a given depth must
// have to be considered balanced.
//
// These are the Fibonacci numbers, starting at 1, 2, 3, 5, ... and ending
// with the largest one that fits in an int, followed by [math.MaxInt] so that
// it can always be indexed at [depth+1].
var minLengthByDepth = func() []int {
	var fib []int
	f1, f2 := 1, 1
	for f2 > 0 {
		fib = append(fib, f2)
		f1, f2 = f2, f1+f2
	}
	return append(fib, math.MaxInt)
}()

func minLength(depth int) int {
	if depth >= len(minLengthByDepth) {
		return math.MaxInt
	}
	return minLengthByDepth[depth]
}

func (n *node) isBalanced() bool {
	return n.size >= minLength(n.depth)
}

// Concat returns the concatenation of left and right.
func Concat(left, right ByteString) ByteString {
	switch {
	case right.n == nil:
		return left
	case left.n == nil:
		return right
	}
	return ByteString{concat(left.n, right.n)}
}

// Concat is shorthand for [Concat](s, t).
func (s ByteString) Concat(t ByteString) ByteString {
	return Concat(s, t)
}

func concat(left, right *node) *node {
	if left.size > math.MaxInt-right.size {
		panic(fmt.Errorf("bytestring: concatenation too large: %d+%d", left.size, right.size))
	}

	size := left.size + right.size
	if size < concatByCopySize {
		return flatten(left, right)
	}

	if !left.isLeaf() {
		if left.right.size+right.size < concatByCopySize {
			// Appending a short piece to a tree whose rightmost child is also
			// short: fold both into one leaf rather than growing the tree.
			return newConcat(left.left, flatten(left.right, right))
		}

		if left.left.depth > left.right.depth && left.depth > right.depth {
			// The left tree is left-heavy, so hanging right off of its right
			// child cannot make the result any deeper.
			return newConcat(left.left, newConcat(left.right, right))
		}
	}

	depth := max(left.depth, right.depth) + 1
	if size >= minLength(depth) {
		return newConcat(left, right)
	}

	if debug.Enabled {
		debug.Log("rebalance", "%d+%d bytes, depth %d+%d", left.size, right.size, left.depth, right.depth)
	}
	return balance(left, right)
}

// flatten copies the contents of two nodes into a single leaf.
func flatten(left, right *node) *node {
	buf := make([]byte, left.size+right.size)
	n := ByteString{left}.CopyTo(buf)
	ByteString{right}.CopyTo(buf[n:])
	return Wrap(buf).n
}

// balancer rebuilds an unbalanced tree.
//
// The stack holds the part of the string traversed so far, from the left,
// as a sequence of trees whose lengths decrease from the bottom of the
// stack to the top. Each length falls in a "bin" between two consecutive
// entries of minLengthByDepth; inserting a tree merges every tree on the
// stack that is in the same bin or a shorter one.
//
// The result is not necessarily balanced, but it is nearly so: subtrees
// that are already balanced are inserted whole, which keeps rebalancing
// shallow.
type balancer struct {
	stack []*node
}

func balance(left, right *node) *node {
	b := new(balancer)
	b.walk(left)
	b.walk(right)

	// Sweep the stack to gather the result.
	tree := b.pop()
	for len(b.stack) > 0 {
		tree = newConcat(b.pop(), tree)
	}
	return tree
}

// walk inserts the balanced subtrees of root, in order.
func (b *balancer) walk(root *node) {
	todo := []*node{root}
	for len(todo) > 0 {
		n := todo[len(todo)-1]
		todo = todo[:len(todo)-1]

		if n.isBalanced() {
			b.insert(n)
			continue
		}
		// Leaves are always balanced, so n is a concatenation.
		todo = append(todo, n.right, n.left)
	}
}

func (b *balancer) insert(n *node) {
	bin := depthBin(n.size)
	binEnd := minLength(bin + 1)

	if len(b.stack) == 0 || b.peek().size >= binEnd {
		b.stack = append(b.stack, n)
		return
	}

	// Merge the shorter trees on top of the stack.
	binStart := minLength(bin)
	tree := b.pop()
	for len(b.stack) > 0 && b.peek().size < binStart {
		tree = newConcat(b.pop(), tree)
	}
	tree = newConcat(tree, n)

	// Keep merging until tree lands in an empty bin.
	for len(b.stack) > 0 {
		binEnd = minLength(depthBin(tree.size) + 1)
		if b.peek().size >= binEnd {
			break
		}
		tree = newConcat(b.pop(), tree)
	}
	b.stack = append(b.stack, tree)
}

func (b *balancer) peek() *node {
	return b.stack[len(b.stack)-1]
}

func (b *balancer) pop() *node {
	n := b.peek()
	b.stack = b.stack[:len(b.stack)-1]
	return n
}

// depthBin returns the index of the largest entry of minLengthByDepth that
// is at most size.
func depthBin(size int) int {
	i, found := slices.BinarySearch(minLengthByDepth, size)
	if !found {
		i--
	}
	return i
}

// Join concatenates parts, pairing them up so that the result is balanced.
func Join(parts ...ByteString) ByteString {
	switch len(parts) {
	case 0:
		return Empty
	case 1:
		return parts[0]
	}

	half := len(parts) / 2
	return Concat(Join(parts[:half]...), Join(parts[half:]...))
}

const (
	minReadChunk = 256
	maxReadChunk = 8192
)

// ReadFrom reads r to completion and returns everything it produced.
//
// Reads are done in chunks that start small and double up to 8 KiB, so
// short inputs do not waste memory and long ones do not need to be copied
// into ever-larger buffers.
func ReadFrom(r io.Reader) (ByteString, error) {
	var parts []ByteString
	size := minReadChunk
	for {
		buf := make([]byte, size)
		n, err := io.ReadFull(r, buf)
		switch {
		case n == len(buf):
			parts = append(parts, Wrap(buf))
		case n > 0:
			// Don't hold onto a mostly-empty buffer.
			parts = append(parts, CopyFrom(buf[:n]))
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return Join(parts...), nil
		default:
			return Join(parts...), err
		}
		size = min(size*2, maxReadChunk)
	}
}
