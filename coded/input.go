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

// Package coded implements buffered readers and writers of Protobuf wire
// data.
//
// Streams are schema-agnostic: an [Input] reports tags and decodes whatever
// primitive the caller asks for next, and an [Output] writes whatever it is
// told to. Choosing what to read or write for a given field is up to the
// caller.
package coded

import (
	"errors"
	"io"
	"math"

	"buf.build/go/wirepb/bytestring"
	"buf.build/go/wirepb/internal/debug"
	"buf.build/go/wirepb/internal/strictutf8"
	"buf.build/go/wirepb/wire"
)

const (
	// DefaultMaxDepth is the default limit on message and group nesting.
	DefaultMaxDepth = 64
	// DefaultSizeLimit is the default limit on the number of bytes read from
	// an [io.Reader].
	DefaultSizeLimit = 64 << 20

	bufferSize = 4096
	noLimit    = math.MaxInt
)

// Options configures an [Input]. The zero value selects the defaults.
type Options struct {
	// MaxDepth bounds how deeply messages and groups may nest.
	MaxDepth int

	// SizeLimit bounds the number of bytes consumed from an [io.Reader],
	// counted since construction or the last [Input.ResetSizeCounter].
	// Inputs over byte slices and ByteStrings are already in memory and are
	// not subject to it.
	SizeLimit int

	// Alias allows [Input.ReadBytes] to return ByteStrings that alias an
	// input []byte rather than copying out of it. The caller must not modify
	// the input afterwards.
	Alias bool
}

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.SizeLimit <= 0 {
		o.SizeLimit = DefaultSizeLimit
	}
	return o
}

// Input reads wire data from a byte slice, a ByteString, or an [io.Reader].
//
// Input is not safe for concurrent use.
type Input struct {
	opts Options

	buf     []byte // Buffered data; buf[pos:] is unread.
	pos     int
	retired int // Bytes consumed before buf[0].
	limit   int // Absolute offset at which reading must stop.
	end     int // Length of the whole input, if known in advance.

	lastTag uint32
	depth   int

	// Set when the whole input is a ByteString, so that ReadBytes can slice
	// it instead of copying.
	whole bytestring.ByteString

	// Set when buf must be refilled from a reader.
	r         io.Reader
	store     []byte
	sizeBase  int
	readerErr error
}

// NewInput returns an input over b.
func NewInput(b []byte, opts Options) *Input {
	in := &Input{opts: opts.withDefaults(), buf: b, limit: noLimit, end: len(b)}
	in.opts.SizeLimit = noLimit
	return in
}

// NewByteStringInput returns an input over the contents of s.
//
// Reading bytes fields from such an input never copies them.
func NewByteStringInput(s bytestring.ByteString, opts Options) *Input {
	in := &Input{opts: opts.withDefaults(), limit: noLimit, end: s.Len(), whole: s}
	in.opts.SizeLimit = noLimit
	chunks := 0
	for chunk := range s.Chunks() {
		in.buf = chunk
		chunks++
		if chunks > 1 {
			break
		}
	}
	if chunks > 1 {
		in.buf = nil
		in.r = s.NewReader()
	}
	return in
}

// NewNestedInput returns an input over s, the encoding of a message that
// was found at the given nesting depth of another input, such as a lazy
// field or a MessageSet item. Nesting within s counts toward MaxDepth
// starting from depth+1, so the limit spans both inputs.
func NewNestedInput(s bytestring.ByteString, depth int, opts Options) (*Input, error) {
	in := NewByteStringInput(s, opts)
	if depth >= in.opts.MaxDepth {
		return nil, in.fail(wire.ErrorRecursionDepth)
	}
	in.depth = depth + 1
	return in, nil
}

// NewReaderInput returns an input that reads from r.
//
// The input buffers, so it may consume more of r than it returns.
func NewReaderInput(r io.Reader, opts Options) *Input {
	return &Input{opts: opts.withDefaults(), limit: noLimit, end: noLimit, r: r}
}

// Offset returns the number of bytes consumed so far.
func (in *Input) Offset() int {
	return in.retired + in.pos
}

// LastTag returns the tag most recently returned by [Input.ReadTag].
func (in *Input) LastTag() uint32 {
	return in.lastTag
}

// Depth returns the current nesting depth.
func (in *Input) Depth() int {
	return in.depth
}

// ResetSizeCounter restarts the count of bytes that is checked against the
// size limit.
func (in *Input) ResetSizeCounter() {
	in.sizeBase = in.Offset()
}

func (in *Input) fail(code wire.ErrorCode) error {
	if debug.Enabled {
		debug.Log("fail", "%v at %d", code, in.Offset())
	}
	return wire.NewParseError(code, in.Offset())
}

// available returns the number of unread bytes in buf that are below the
// limit.
func (in *Input) available() int {
	return min(len(in.buf)-in.pos, in.limit-in.Offset())
}

// ensure makes at least n bytes available in buf[pos:].
func (in *Input) ensure(n int) error {
	return in.fill(n, true)
}

// fits reports whether n more bytes may exist before the limit and the end
// of the input. Lengths are checked against it before anything is allocated.
func (in *Input) fits(n int) bool {
	return n <= min(in.limit, in.end)-in.Offset()
}

// fill is like ensure, but only checks the size limit if checkSize is set.
func (in *Input) fill(n int, checkSize bool) error {
	if !in.fits(n) {
		return in.fail(wire.ErrorTruncated)
	}
	if checkSize && in.Offset()+n-in.sizeBase > in.opts.SizeLimit {
		return in.fail(wire.ErrorSizeLimit)
	}
	if len(in.buf)-in.pos >= n {
		return nil
	}
	if in.r == nil {
		return in.fail(wire.ErrorTruncated)
	}

	// Move the unread tail to the front of the store and refill behind it.
	if cap(in.store) < max(n, bufferSize) {
		in.store = make([]byte, 0, max(n, bufferSize))
	}
	rest := copy(in.store[:cap(in.store)], in.buf[in.pos:])
	in.retired += in.pos
	in.pos = 0
	in.buf = in.store[:rest]

	for len(in.buf) < n {
		if in.readerErr != nil {
			return in.readFailure()
		}
		m, err := in.r.Read(in.store[len(in.buf):cap(in.store)])
		in.buf = in.store[:len(in.buf)+m]
		if err != nil {
			in.readerErr = err
		}
	}
	return nil
}

func (in *Input) readFailure() error {
	if errors.Is(in.readerErr, io.EOF) {
		return in.fail(wire.ErrorTruncated)
	}
	return in.readerErr
}

// IsAtEnd returns whether the input is exhausted or the current limit has
// been reached.
//
// If the underlying reader fails, IsAtEnd returns true and the error is
// reported by the next read.
func (in *Input) IsAtEnd() bool {
	end, _ := in.atEnd()
	return end
}

func (in *Input) atEnd() (bool, error) {
	switch {
	case in.Offset() >= in.limit:
		return true, nil
	case in.pos < len(in.buf):
		return false, nil
	case in.r == nil:
		return true, nil
	}

	// Probing for one more byte is not subject to the size limit: a stream
	// that ends exactly at the limit is not over it.
	if err := in.fill(1, false); err != nil {
		if errors.Is(in.readerErr, io.EOF) {
			return true, nil
		}
		return true, err
	}
	return false, nil
}

// ReadTag reads a field tag. It returns zero at the end of the input or at
// the current limit.
//
// Tags with a field number of zero or an unknown wire type are rejected.
func (in *Input) ReadTag() (uint32, error) {
	end, err := in.atEnd()
	if err != nil {
		return 0, err
	}
	if end {
		in.lastTag = 0
		return 0, nil
	}

	v, err := in.ReadRawVarint64()
	if err != nil {
		return 0, err
	}
	if code := wire.ValidateTag(v); code != wire.ErrorOk {
		return 0, in.fail(code)
	}
	in.lastTag = uint32(v)
	return in.lastTag, nil
}

// CheckLastTagWas verifies that the most recent call to [Input.ReadTag]
// returned tag.
//
// After reading a whole message, tag should be zero; after a group, it
// should be the group's end tag.
func (in *Input) CheckLastTagWas(tag uint32) error {
	if in.lastTag != tag {
		return in.fail(wire.ErrorEndGroup)
	}
	return nil
}

// PushLimit restricts reading to the next n bytes, and returns the previous
// limit, which must be passed to [Input.PopLimit].
func (in *Input) PushLimit(n int) (int, error) {
	if n < 0 {
		return 0, in.fail(wire.ErrorNegativeSize)
	}
	old := in.limit
	if n > old-in.Offset() {
		return 0, in.fail(wire.ErrorTruncated)
	}
	in.limit = in.Offset() + n
	return old, nil
}

// PopLimit restores a limit returned by [Input.PushLimit].
func (in *Input) PopLimit(old int) {
	in.limit = old
}

// BytesUntilLimit returns the number of bytes before the current limit, or
// -1 if there is none.
func (in *Input) BytesUntilLimit() int {
	if in.limit == noLimit {
		return -1
	}
	return in.limit - in.Offset()
}

// ReadRawVarint64 reads a varint.
func (in *Input) ReadRawVarint64() (uint64, error) {
	for {
		avail := in.available()
		v, n, code := wire.ConsumeVarint(in.buf[in.pos : in.pos+avail])
		switch {
		case code == wire.ErrorOk:
			in.pos += n
			if in.Offset()-in.sizeBase > in.opts.SizeLimit {
				return 0, in.fail(wire.ErrorSizeLimit)
			}
			return v, nil
		case code == wire.ErrorTruncated && in.r != nil && avail < wire.MaxVarintLen:
			if err := in.ensure(avail + 1); err != nil {
				return 0, err
			}
		default:
			return 0, in.fail(code)
		}
	}
}

// ReadRawVarint32 reads a varint, keeping only its low 32 bits.
func (in *Input) ReadRawVarint32() (uint32, error) {
	v, err := in.ReadRawVarint64()
	return uint32(v), err
}

// ReadRawLittleEndian32 reads a fixed32.
func (in *Input) ReadRawLittleEndian32() (uint32, error) {
	if err := in.ensure(4); err != nil {
		return 0, err
	}
	v, _ := wire.ConsumeFixed32(in.buf[in.pos:])
	in.pos += 4
	return v, nil
}

// ReadRawLittleEndian64 reads a fixed64.
func (in *Input) ReadRawLittleEndian64() (uint64, error) {
	if err := in.ensure(8); err != nil {
		return 0, err
	}
	v, _ := wire.ConsumeFixed64(in.buf[in.pos:])
	in.pos += 8
	return v, nil
}

// ReadRawBytes reads the next n bytes into a new slice.
func (in *Input) ReadRawBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, in.fail(wire.ErrorNegativeSize)
	}
	if n <= len(in.buf)-in.pos || n <= bufferSize || in.r == nil {
		if err := in.ensure(n); err != nil {
			return nil, err
		}
		b := make([]byte, n)
		copy(b, in.buf[in.pos:])
		in.pos += n
		return b, nil
	}

	// Large reads bypass the buffer.
	if !in.fits(n) {
		return nil, in.fail(wire.ErrorTruncated)
	}
	if in.Offset()+n-in.sizeBase > in.opts.SizeLimit {
		return nil, in.fail(wire.ErrorSizeLimit)
	}
	b := make([]byte, n)
	buffered := copy(b, in.buf[in.pos:])
	in.retired += len(in.buf)
	in.buf, in.pos = in.buf[:0], 0

	m, err := io.ReadFull(in.r, b[buffered:])
	in.retired += m
	if err != nil {
		in.readerErr = err
		return nil, in.readFailure()
	}
	return b, nil
}

// Skip discards the next n bytes.
func (in *Input) Skip(n int) error {
	if n < 0 {
		return in.fail(wire.ErrorNegativeSize)
	}
	if n <= len(in.buf)-in.pos || in.r == nil {
		if err := in.ensure(n); err != nil {
			return err
		}
		in.pos += n
		return nil
	}

	if !in.fits(n) {
		return in.fail(wire.ErrorTruncated)
	}
	if in.Offset()+n-in.sizeBase > in.opts.SizeLimit {
		return in.fail(wire.ErrorSizeLimit)
	}
	rest := n - (len(in.buf) - in.pos)
	in.retired += len(in.buf)
	in.buf, in.pos = in.buf[:0], 0

	var m int64
	var err error
	if d, ok := in.r.(interface{ Discard(int) (int, error) }); ok {
		var k int
		k, err = d.Discard(rest)
		m = int64(k)
	} else {
		m, err = io.CopyN(io.Discard, in.r, int64(rest))
	}
	in.retired += int(m)
	if err != nil {
		in.readerErr = err
		return in.readFailure()
	}
	return nil
}

// readLength reads a length prefix.
func (in *Input) readLength() (int, error) {
	v, err := in.ReadRawVarint32()
	if err != nil {
		return 0, err
	}
	if int32(v) < 0 {
		return 0, in.fail(wire.ErrorNegativeSize)
	}
	return int(v), nil
}

// ReadDouble reads a double field value.
func (in *Input) ReadDouble() (float64, error) {
	v, err := in.ReadRawLittleEndian64()
	return math.Float64frombits(v), err
}

// ReadFloat reads a float field value.
func (in *Input) ReadFloat() (float32, error) {
	v, err := in.ReadRawLittleEndian32()
	return math.Float32frombits(v), err
}

// ReadUint64 reads a uint64 field value.
func (in *Input) ReadUint64() (uint64, error) {
	return in.ReadRawVarint64()
}

// ReadInt64 reads an int64 field value.
func (in *Input) ReadInt64() (int64, error) {
	v, err := in.ReadRawVarint64()
	return int64(v), err
}

// ReadInt32 reads an int32 field value.
func (in *Input) ReadInt32() (int32, error) {
	v, err := in.ReadRawVarint64()
	return int32(v), err
}

// ReadUint32 reads a uint32 field value.
func (in *Input) ReadUint32() (uint32, error) {
	return in.ReadRawVarint32()
}

// ReadFixed64 reads a fixed64 field value.
func (in *Input) ReadFixed64() (uint64, error) {
	return in.ReadRawLittleEndian64()
}

// ReadFixed32 reads a fixed32 field value.
func (in *Input) ReadFixed32() (uint32, error) {
	return in.ReadRawLittleEndian32()
}

// ReadSfixed64 reads an sfixed64 field value.
func (in *Input) ReadSfixed64() (int64, error) {
	v, err := in.ReadRawLittleEndian64()
	return int64(v), err
}

// ReadSfixed32 reads an sfixed32 field value.
func (in *Input) ReadSfixed32() (int32, error) {
	v, err := in.ReadRawLittleEndian32()
	return int32(v), err
}

// ReadSint64 reads an sint64 field value.
func (in *Input) ReadSint64() (int64, error) {
	v, err := in.ReadRawVarint64()
	return wire.DecodeZigZag64(v), err
}

// ReadSint32 reads an sint32 field value.
func (in *Input) ReadSint32() (int32, error) {
	v, err := in.ReadRawVarint32()
	return wire.DecodeZigZag32(v), err
}

// ReadBool reads a bool field value.
func (in *Input) ReadBool() (bool, error) {
	v, err := in.ReadRawVarint64()
	return v != 0, err
}

// ReadEnum reads an enum field value.
func (in *Input) ReadEnum() (int32, error) {
	return in.ReadInt32()
}

// ReadString reads a string field value without validating it.
func (in *Input) ReadString() (string, error) {
	return in.readString(false)
}

// ReadStringRequireUTF8 reads a string field value, and fails if it is not
// valid UTF-8.
func (in *Input) ReadStringRequireUTF8() (string, error) {
	return in.readString(true)
}

func (in *Input) readString(checkUTF8 bool) (string, error) {
	start := in.Offset()
	n, err := in.readLength()
	if err != nil {
		return "", err
	}

	var b []byte
	if n <= bufferSize || in.r == nil {
		if err := in.ensure(n); err != nil {
			return "", err
		}
		b = in.buf[in.pos : in.pos+n]
		in.pos += n
	} else if b, err = in.ReadRawBytes(n); err != nil {
		return "", err
	}

	if checkUTF8 && !strictutf8.Valid(b) {
		return "", wire.NewParseError(wire.ErrorUTF8, start)
	}
	return string(b), nil
}

// ReadBytes reads a bytes field value.
//
// When the input is a ByteString, or is a []byte and aliasing is enabled,
// the result shares memory with the input.
func (in *Input) ReadBytes() (bytestring.ByteString, error) {
	n, err := in.readLength()
	if err != nil {
		return bytestring.Empty, err
	}
	if n == 0 {
		return bytestring.Empty, nil
	}

	if !in.whole.IsEmpty() {
		start := in.Offset()
		if err := in.Skip(n); err != nil {
			return bytestring.Empty, err
		}
		return in.whole.Substring(start, start+n), nil
	}

	if in.r == nil && in.opts.Alias {
		if err := in.ensure(n); err != nil {
			return bytestring.Empty, err
		}
		b := in.buf[in.pos : in.pos+n : in.pos+n]
		in.pos += n
		return bytestring.Wrap(b), nil
	}

	b, err := in.ReadRawBytes(n)
	if err != nil {
		return bytestring.Empty, err
	}
	return bytestring.Wrap(b), nil
}

// SkipField skips the value of the field whose tag was just read.
//
// Returns false if tag is an end-group tag, meaning the enclosing group is
// over.
func (in *Input) SkipField(tag uint32) (bool, error) {
	switch wire.TagType(tag) {
	case wire.VarintType:
		_, err := in.ReadRawVarint64()
		return true, err
	case wire.Fixed64Type:
		return true, in.Skip(8)
	case wire.BytesType:
		n, err := in.readLength()
		if err != nil {
			return true, err
		}
		return true, in.Skip(n)
	case wire.StartGroupType:
		num := wire.TagNumber(tag)
		return true, in.ReadGroup(num, (*Input).SkipMessage)
	case wire.EndGroupType:
		return false, nil
	case wire.Fixed32Type:
		return true, in.Skip(4)
	default:
		return true, in.fail(wire.ErrorReserved)
	}
}

// SkipMessage skips fields until the end of the input, the current limit,
// or an end-group tag.
func (in *Input) SkipMessage() error {
	for {
		tag, err := in.ReadTag()
		if err != nil || tag == 0 {
			return err
		}
		ok, err := in.SkipField(tag)
		if err != nil || !ok {
			return err
		}
	}
}

// ReadMessage reads a length-prefix, and then calls parse with the input
// limited to that many bytes.
//
// parse should consume everything up to the limit. The limit and nesting
// depth are restored however it returns.
func (in *Input) ReadMessage(parse func(*Input) error) error {
	n, err := in.readLength()
	if err != nil {
		return err
	}
	if in.depth >= in.opts.MaxDepth {
		return in.fail(wire.ErrorRecursionDepth)
	}

	old, err := in.PushLimit(n)
	if err != nil {
		return err
	}
	in.depth++
	defer func() {
		in.depth--
		in.PopLimit(old)
	}()

	if err := parse(in); err != nil {
		return err
	}
	return in.CheckLastTagWas(0)
}

// ReadPacked reads a length prefix, and then calls read until the bytes it
// covers are used up.
func (in *Input) ReadPacked(read func(*Input) error) error {
	n, err := in.readLength()
	if err != nil {
		return err
	}
	old, err := in.PushLimit(n)
	if err != nil {
		return err
	}
	defer in.PopLimit(old)

	for {
		end, err := in.atEnd()
		if err != nil {
			return err
		}
		if end {
			return nil
		}
		if err := read(in); err != nil {
			return err
		}
	}
}

// ReadGroup calls parse to read the body of the group with field number num,
// whose start tag was just read, and then checks that it ended with the
// matching end tag.
func (in *Input) ReadGroup(num wire.Number, parse func(*Input) error) error {
	if in.depth >= in.opts.MaxDepth {
		return in.fail(wire.ErrorRecursionDepth)
	}

	in.depth++
	defer func() { in.depth-- }()

	if err := parse(in); err != nil {
		return err
	}
	return in.CheckLastTagWas(wire.MakeTag(num, wire.EndGroupType))
}

// ReadDelimitedSize reads the varint size prefix of a delimited message from
// r, one byte at a time so that nothing past the prefix is consumed.
//
// Returns [io.EOF] if r is already exhausted.
func ReadDelimitedSize(r io.Reader) (int, error) {
	var prefix [wire.MaxVarintLen]byte
	br, _ := r.(io.ByteReader)
	for i := range prefix {
		var err error
		if br != nil {
			prefix[i], err = br.ReadByte()
		} else {
			_, err = io.ReadFull(r, prefix[i:i+1])
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF) && i == 0:
			return 0, io.EOF
		case errors.Is(err, io.EOF):
			return 0, wire.NewParseError(wire.ErrorTruncated, i)
		default:
			return 0, err
		}

		if prefix[i] < 0x80 {
			v, _, code := wire.ConsumeVarint(prefix[:i+1])
			if code != wire.ErrorOk {
				return 0, wire.NewParseError(code, 0)
			}
			if v > math.MaxInt32 {
				return 0, wire.NewParseError(wire.ErrorNegativeSize, 0)
			}
			return int(v), nil
		}
	}
	return 0, wire.NewParseError(wire.ErrorOverflow, 0)
}
