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

import (
	"errors"
	"io"
	"math"

	"buf.build/go/wirepb/bytestring"
	"buf.build/go/wirepb/wire"
)

var (
	// ErrNoSpace is returned when writing past the end of a fixed-size
	// output.
	ErrNoSpace = errors.New("coded: out of space")
	// ErrSpaceLeft is returned when a fixed-size output was not completely
	// filled.
	ErrSpaceLeft = errors.New("coded: did not write as much data as expected")
)

// Marshaler is a value that knows how to write itself.
type Marshaler interface {
	// Size returns the exact number of bytes MarshalTo will write.
	Size() int
	// MarshalTo writes the value, without a tag or length prefix.
	MarshalTo(out *Output)
}

type outputMode int8

const (
	modeAppend outputMode = iota
	modeFixed
	modeWriter
)

// Output writes wire data to a growable buffer, a fixed-size buffer, or an
// [io.Writer].
//
// Errors are sticky, in the style of [bufio.Writer]: after the first one,
// writes are dropped, and the error is reported by [Output.Err] and
// [Output.Flush].
type Output struct {
	mode    outputMode
	buf     []byte
	w       io.Writer
	flushed int
	err     error
}

// NewOutput returns an output that buffers writes to w.
func NewOutput(w io.Writer) *Output {
	out := new(Output)
	out.Reset(w)
	return out
}

// NewAppendOutput returns an output that appends to buf, growing it as
// needed.
func NewAppendOutput(buf []byte) *Output {
	return &Output{mode: modeAppend, buf: buf}
}

// NewFixedOutput returns an output that writes into buf, which may not grow.
// Writing more than len(buf) bytes fails with [ErrNoSpace].
func NewFixedOutput(buf []byte) *Output {
	return &Output{mode: modeFixed, buf: buf[:0:len(buf)]}
}

// Reset discards any buffered data and errors, and directs output to w.
func (o *Output) Reset(w io.Writer) {
	if cap(o.buf) < bufferSize || o.mode != modeWriter {
		o.buf = make([]byte, 0, bufferSize)
	}
	*o = Output{mode: modeWriter, buf: o.buf[:0], w: w}
}

// Bytes returns the data written to an output that is not backed by an
// [io.Writer].
func (o *Output) Bytes() []byte {
	if o.mode == modeWriter {
		return nil
	}
	return o.buf
}

// Len returns the number of bytes written so far, including flushed ones.
func (o *Output) Len() int {
	return o.flushed + len(o.buf)
}

// SpaceLeft returns how many more bytes a fixed output can accept, or -1
// for other outputs.
func (o *Output) SpaceLeft() int {
	if o.mode != modeFixed {
		return -1
	}
	return cap(o.buf) - len(o.buf)
}

// CheckNoSpaceLeft verifies that a fixed output was filled exactly.
func (o *Output) CheckNoSpaceLeft() error {
	if o.err != nil {
		return o.err
	}
	if o.SpaceLeft() != 0 {
		return ErrSpaceLeft
	}
	return nil
}

// Err returns the first error encountered.
func (o *Output) Err() error {
	return o.err
}

// Flush writes any buffered data to the underlying writer.
func (o *Output) Flush() error {
	if o.err != nil || o.mode != modeWriter || len(o.buf) == 0 {
		return o.err
	}
	n, err := o.w.Write(o.buf)
	o.flushed += n
	if err == nil && n < len(o.buf) {
		err = io.ErrShortWrite
	}
	o.buf = o.buf[:0]
	o.err = err
	return err
}

// reserve makes room for n more bytes in buf, and returns false if they
// will not fit.
func (o *Output) reserve(n int) bool {
	if o.err != nil {
		return false
	}
	switch o.mode {
	case modeFixed:
		if cap(o.buf)-len(o.buf) < n {
			o.err = ErrNoSpace
			return false
		}
	case modeWriter:
		if cap(o.buf)-len(o.buf) < n && o.Flush() != nil {
			return false
		}
	}
	return true
}

// WriteRawBytes writes b.
func (o *Output) WriteRawBytes(b []byte) {
	if o.mode == modeWriter && len(b) > cap(o.buf) {
		// Too big to be worth buffering.
		if o.Flush() != nil {
			return
		}
		n, err := o.w.Write(b)
		o.flushed += n
		if err == nil && n < len(b) {
			err = io.ErrShortWrite
		}
		o.err = err
		return
	}
	if o.reserve(len(b)) {
		o.buf = append(o.buf, b...)
	}
}

// WriteRawByteString writes the contents of s.
func (o *Output) WriteRawByteString(s bytestring.ByteString) {
	for chunk := range s.Chunks() {
		o.WriteRawBytes(chunk)
	}
}

// WriteRawVarint writes v as a varint.
func (o *Output) WriteRawVarint(v uint64) {
	if o.reserve(wire.SizeVarint(v)) {
		o.buf = wire.AppendVarint(o.buf, v)
	}
}

// WriteRawLittleEndian32 writes v as a fixed32.
func (o *Output) WriteRawLittleEndian32(v uint32) {
	if o.reserve(4) {
		o.buf = wire.AppendFixed32(o.buf, v)
	}
}

// WriteRawLittleEndian64 writes v as a fixed64.
func (o *Output) WriteRawLittleEndian64(v uint64) {
	if o.reserve(8) {
		o.buf = wire.AppendFixed64(o.buf, v)
	}
}

// WriteTag writes a tag.
func (o *Output) WriteTag(num wire.Number, typ wire.Type) {
	o.WriteRawVarint(uint64(wire.MakeTag(num, typ)))
}

// WriteInt32NoTag writes an int32 value. Negative values are sign-extended
// and take ten bytes.
func (o *Output) WriteInt32NoTag(v int32) { o.WriteRawVarint(uint64(int64(v))) }

// WriteInt64NoTag writes an int64 value.
func (o *Output) WriteInt64NoTag(v int64) { o.WriteRawVarint(uint64(v)) }

// WriteUint32NoTag writes a uint32 value.
func (o *Output) WriteUint32NoTag(v uint32) { o.WriteRawVarint(uint64(v)) }

// WriteUint64NoTag writes a uint64 value.
func (o *Output) WriteUint64NoTag(v uint64) { o.WriteRawVarint(v) }

// WriteSint32NoTag writes an sint32 value.
func (o *Output) WriteSint32NoTag(v int32) { o.WriteRawVarint(uint64(wire.EncodeZigZag32(v))) }

// WriteSint64NoTag writes an sint64 value.
func (o *Output) WriteSint64NoTag(v int64) { o.WriteRawVarint(wire.EncodeZigZag64(v)) }

// WriteFixed32NoTag writes a fixed32 value.
func (o *Output) WriteFixed32NoTag(v uint32) { o.WriteRawLittleEndian32(v) }

// WriteFixed64NoTag writes a fixed64 value.
func (o *Output) WriteFixed64NoTag(v uint64) { o.WriteRawLittleEndian64(v) }

// WriteSfixed32NoTag writes an sfixed32 value.
func (o *Output) WriteSfixed32NoTag(v int32) { o.WriteRawLittleEndian32(uint32(v)) }

// WriteSfixed64NoTag writes an sfixed64 value.
func (o *Output) WriteSfixed64NoTag(v int64) { o.WriteRawLittleEndian64(uint64(v)) }

// WriteFloatNoTag writes a float value.
func (o *Output) WriteFloatNoTag(v float32) { o.WriteRawLittleEndian32(math.Float32bits(v)) }

// WriteDoubleNoTag writes a double value.
func (o *Output) WriteDoubleNoTag(v float64) { o.WriteRawLittleEndian64(math.Float64bits(v)) }

// WriteBoolNoTag writes a bool value.
func (o *Output) WriteBoolNoTag(v bool) {
	if v {
		o.WriteRawVarint(1)
	} else {
		o.WriteRawVarint(0)
	}
}

// WriteEnumNoTag writes an enum value.
func (o *Output) WriteEnumNoTag(v int32) { o.WriteInt32NoTag(v) }

// WriteStringNoTag writes a length-prefixed string.
func (o *Output) WriteStringNoTag(v string) {
	o.WriteRawVarint(uint64(len(v)))
	if o.mode == modeWriter && len(v) > cap(o.buf) {
		o.WriteRawBytes([]byte(v))
		return
	}
	if o.reserve(len(v)) {
		o.buf = append(o.buf, v...)
	}
}

// WriteBytesNoTag writes a length-prefixed byte slice.
func (o *Output) WriteBytesNoTag(v []byte) {
	o.WriteRawVarint(uint64(len(v)))
	o.WriteRawBytes(v)
}

// WriteByteStringNoTag writes a length-prefixed ByteString.
func (o *Output) WriteByteStringNoTag(v bytestring.ByteString) {
	o.WriteRawVarint(uint64(v.Len()))
	o.WriteRawByteString(v)
}

// WriteMessageNoTag writes a length-prefixed message.
func (o *Output) WriteMessageNoTag(m Marshaler) {
	o.WriteRawVarint(uint64(m.Size()))
	m.MarshalTo(o)
}

// WriteInt32 writes an int32 field.
func (o *Output) WriteInt32(num wire.Number, v int32) {
	o.WriteTag(num, wire.VarintType)
	o.WriteInt32NoTag(v)
}

// WriteInt64 writes an int64 field.
func (o *Output) WriteInt64(num wire.Number, v int64) {
	o.WriteTag(num, wire.VarintType)
	o.WriteInt64NoTag(v)
}

// WriteUint32 writes a uint32 field.
func (o *Output) WriteUint32(num wire.Number, v uint32) {
	o.WriteTag(num, wire.VarintType)
	o.WriteUint32NoTag(v)
}

// WriteUint64 writes a uint64 field.
func (o *Output) WriteUint64(num wire.Number, v uint64) {
	o.WriteTag(num, wire.VarintType)
	o.WriteUint64NoTag(v)
}

// WriteSint32 writes an sint32 field.
func (o *Output) WriteSint32(num wire.Number, v int32) {
	o.WriteTag(num, wire.VarintType)
	o.WriteSint32NoTag(v)
}

// WriteSint64 writes an sint64 field.
func (o *Output) WriteSint64(num wire.Number, v int64) {
	o.WriteTag(num, wire.VarintType)
	o.WriteSint64NoTag(v)
}

// WriteFixed32 writes a fixed32 field.
func (o *Output) WriteFixed32(num wire.Number, v uint32) {
	o.WriteTag(num, wire.Fixed32Type)
	o.WriteFixed32NoTag(v)
}

// WriteFixed64 writes a fixed64 field.
func (o *Output) WriteFixed64(num wire.Number, v uint64) {
	o.WriteTag(num, wire.Fixed64Type)
	o.WriteFixed64NoTag(v)
}

// WriteSfixed32 writes an sfixed32 field.
func (o *Output) WriteSfixed32(num wire.Number, v int32) {
	o.WriteTag(num, wire.Fixed32Type)
	o.WriteSfixed32NoTag(v)
}

// WriteSfixed64 writes an sfixed64 field.
func (o *Output) WriteSfixed64(num wire.Number, v int64) {
	o.WriteTag(num, wire.Fixed64Type)
	o.WriteSfixed64NoTag(v)
}

// WriteFloat writes a float field.
func (o *Output) WriteFloat(num wire.Number, v float32) {
	o.WriteTag(num, wire.Fixed32Type)
	o.WriteFloatNoTag(v)
}

// WriteDouble writes a double field.
func (o *Output) WriteDouble(num wire.Number, v float64) {
	o.WriteTag(num, wire.Fixed64Type)
	o.WriteDoubleNoTag(v)
}

// WriteBool writes a bool field.
func (o *Output) WriteBool(num wire.Number, v bool) {
	o.WriteTag(num, wire.VarintType)
	o.WriteBoolNoTag(v)
}

// WriteEnum writes an enum field.
func (o *Output) WriteEnum(num wire.Number, v int32) {
	o.WriteTag(num, wire.VarintType)
	o.WriteEnumNoTag(v)
}

// WriteString writes a string field.
func (o *Output) WriteString(num wire.Number, v string) {
	o.WriteTag(num, wire.BytesType)
	o.WriteStringNoTag(v)
}

// WriteBytes writes a bytes field.
func (o *Output) WriteBytes(num wire.Number, v []byte) {
	o.WriteTag(num, wire.BytesType)
	o.WriteBytesNoTag(v)
}

// WriteByteString writes a bytes field.
func (o *Output) WriteByteString(num wire.Number, v bytestring.ByteString) {
	o.WriteTag(num, wire.BytesType)
	o.WriteByteStringNoTag(v)
}

// WriteMessage writes a length-delimited message field.
func (o *Output) WriteMessage(num wire.Number, m Marshaler) {
	o.WriteTag(num, wire.BytesType)
	o.WriteMessageNoTag(m)
}

// WriteGroup writes a group field.
func (o *Output) WriteGroup(num wire.Number, m Marshaler) {
	o.WriteTag(num, wire.StartGroupType)
	m.MarshalTo(o)
	o.WriteTag(num, wire.EndGroupType)
}

// Field numbers used by the MessageSet wire format.
const (
	MessageSetItem    wire.Number = 1
	MessageSetTypeID  wire.Number = 2
	MessageSetMessage wire.Number = 3
)

// WriteMessageSetExtension writes an extension in MessageSet format:
//
//	group Item = 1 {
//	  required uint32 type_id = 2;
//	  required bytes message = 3;
//	}
func (o *Output) WriteMessageSetExtension(num wire.Number, m Marshaler) {
	o.WriteTag(MessageSetItem, wire.StartGroupType)
	o.WriteUint32(MessageSetTypeID, uint32(num))
	o.WriteMessage(MessageSetMessage, m)
	o.WriteTag(MessageSetItem, wire.EndGroupType)
}

// WriteRawMessageSetExtension is like [Output.WriteMessageSetExtension],
// but for an already-encoded message.
func (o *Output) WriteRawMessageSetExtension(num wire.Number, payload bytestring.ByteString) {
	o.WriteTag(MessageSetItem, wire.StartGroupType)
	o.WriteUint32(MessageSetTypeID, uint32(num))
	o.WriteByteString(MessageSetMessage, payload)
	o.WriteTag(MessageSetItem, wire.EndGroupType)
}

// Builder writes exactly a known number of bytes, and then turns them into
// a ByteString without copying.
type Builder struct {
	buf []byte
	out *Output
}

// NewBuilder returns a builder for a ByteString of exactly size bytes.
func NewBuilder(size int) *Builder {
	buf := make([]byte, size)
	return &Builder{buf: buf, out: NewFixedOutput(buf)}
}

// Output returns the output to write the contents to.
func (b *Builder) Output() *Output {
	return b.out
}

// Build checks that exactly the expected number of bytes was written, and
// returns them.
func (b *Builder) Build() (bytestring.ByteString, error) {
	if err := b.out.CheckNoSpaceLeft(); err != nil {
		return bytestring.Empty, err
	}
	return bytestring.Wrap(b.buf), nil
}
