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

import "io"

const defaultOutputSize = 128

// Output is an [io.Writer] that accumulates a ByteString.
//
// Bytes handed out by [Output.ByteString] are never written to again, so
// the result shares the buffers that were written instead of copying them.
// Output is not safe for concurrent use.
type Output struct {
	initial int
	frozen  []ByteString
	size    int // Total bytes in frozen.

	// The current buffer. Bytes before len(buf) are written; bytes after it
	// belong to no one yet.
	buf []byte
}

var (
	_ io.Writer     = (*Output)(nil)
	_ io.ByteWriter = (*Output)(nil)
)

// NewOutput returns a new output whose first buffer has the given capacity.
func NewOutput(initial int) *Output {
	if initial <= 0 {
		initial = defaultOutputSize
	}
	return &Output{initial: initial}
}

// Len returns the number of bytes written so far.
func (o *Output) Len() int {
	return o.size + len(o.buf)
}

// Write implements [io.Writer]. It never fails.
func (o *Output) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		if len(o.buf) == cap(o.buf) {
			o.grow()
		}
		m := min(len(p), cap(o.buf)-len(o.buf))
		o.buf = append(o.buf, p[:m]...)
		p = p[m:]
	}
	return n, nil
}

// WriteByte implements [io.ByteWriter]. It never fails.
func (o *Output) WriteByte(b byte) error {
	if len(o.buf) == cap(o.buf) {
		o.grow()
	}
	o.buf = append(o.buf, b)
	return nil
}

// WriteString is like [Output.Write], but for a string.
func (o *Output) WriteString(s string) (int, error) {
	return o.Write([]byte(s))
}

// ByteString returns everything written so far.
//
// Output may continue to be written to afterwards; doing so does not
// affect ByteStrings already returned.
func (o *Output) ByteString() ByteString {
	o.freeze()
	return Join(o.frozen...)
}

// Reset discards everything written so far.
func (o *Output) Reset() {
	// buf may share a backing array with a returned ByteString, so it must
	// not be reused.
	o.frozen = nil
	o.size = 0
	o.buf = nil
}

// freeze moves the written part of buf into frozen. The unwritten tail of
// buf remains available for writing.
func (o *Output) freeze() {
	if len(o.buf) == 0 {
		return
	}
	o.frozen = append(o.frozen, Wrap(o.buf[:len(o.buf):len(o.buf)]))
	o.size += len(o.buf)
	o.buf = o.buf[len(o.buf):]
}

// grow freezes the current buffer and starts a new one, at least half as
// large as everything written so far.
func (o *Output) grow() {
	o.freeze()
	if o.initial == 0 {
		o.initial = defaultOutputSize
	}
	o.buf = make([]byte, 0, max(o.initial, o.size/2))
}
