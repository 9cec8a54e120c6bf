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

// Reader reads the contents of a ByteString without copying it up front.
type Reader struct {
	c    cursor
	left int
}

var (
	_ io.Reader     = (*Reader)(nil)
	_ io.ByteReader = (*Reader)(nil)
	_ io.WriterTo   = (*Reader)(nil)
)

// NewReader returns a reader over the contents of s.
func (s ByteString) NewReader() *Reader {
	return &Reader{c: newCursor(s.n), left: s.Len()}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return r.left
}

// Read implements [io.Reader].
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n := 0
	for n < len(p) && r.c.fill() {
		m := copy(p[n:], r.c.cur)
		r.c.cur = r.c.cur[m:]
		n += m
	}
	r.left -= n
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// ReadByte implements [io.ByteReader].
func (r *Reader) ReadByte() (byte, error) {
	if !r.c.fill() {
		return 0, io.EOF
	}
	b := r.c.cur[0]
	r.c.cur = r.c.cur[1:]
	r.left--
	return b, nil
}

// Discard skips the next n bytes, returning how many were skipped. If fewer
// than n bytes were left, it returns [io.EOF].
func (r *Reader) Discard(n int) (int, error) {
	skipped := 0
	for skipped < n && r.c.fill() {
		m := min(n-skipped, len(r.c.cur))
		r.c.cur = r.c.cur[m:]
		skipped += m
	}
	r.left -= skipped
	if skipped < n {
		return skipped, io.EOF
	}
	return skipped, nil
}

// WriteTo implements [io.WriterTo].
func (r *Reader) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for r.c.fill() {
		n, err := w.Write(r.c.cur)
		r.c.cur = r.c.cur[n:]
		r.left -= n
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteTo writes the contents of s to w.
func (s ByteString) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for chunk := range s.Chunks() {
		n, err := w.Write(chunk)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
