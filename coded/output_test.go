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

package coded_test

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"buf.build/go/wirepb/bytestring"
	"buf.build/go/wirepb/coded"
	"buf.build/go/wirepb/wire"
)

func TestOutputEncoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		write func(*coded.Output)
		want  []byte
		size  int
	}{
		{
			name:  "tag",
			write: func(o *coded.Output) { o.WriteUint32(1, 300) },
			want:  []byte{0x08, 0xac, 0x02},
			size:  coded.SizeTag(1) + coded.SizeVarint(300),
		},
		{
			name:  "negative-int32",
			write: func(o *coded.Output) { o.WriteInt32NoTag(-1) },
			want:  protowire.AppendVarint(nil, math.MaxUint64),
			size:  coded.SizeInt32NoTag(-1),
		},
		{
			name:  "sint32",
			write: func(o *coded.Output) { o.WriteSint32NoTag(-1) },
			want:  []byte{0x01},
			size:  coded.SizeSint32NoTag(-1),
		},
		{
			name:  "sint64",
			write: func(o *coded.Output) { o.WriteSint64NoTag(math.MinInt64) },
			want:  protowire.AppendVarint(nil, math.MaxUint64),
			size:  coded.SizeSint64NoTag(math.MinInt64),
		},
		{
			name:  "double",
			write: func(o *coded.Output) { o.WriteDouble(2, 1) },
			want:  protowire.AppendFixed64(protowire.AppendTag(nil, 2, protowire.Fixed64Type), math.Float64bits(1)),
			size:  coded.SizeTag(2) + 8,
		},
		{
			name: "bytestring",
			write: func(o *coded.Output) {
				o.WriteByteString(3, bytestring.CopyFromString("abc"))
			},
			want: protowire.AppendString(protowire.AppendTag(nil, 3, protowire.BytesType), "abc"),
			size: coded.SizeTag(3) + coded.SizeLengthDelimited(3),
		},
		{
			name:  "group",
			write: func(o *coded.Output) { o.WriteGroup(4, rawMessage{0x08, 0x01}) },
			want:  []byte{0x23, 0x08, 0x01, 0x24},
			size:  coded.SizeGroup(4, 2),
		},
		{
			name:  "message-set",
			write: func(o *coded.Output) { o.WriteMessageSetExtension(1000, rawMessage{0x08, 0x01}) },
			want: func() []byte {
				b := protowire.AppendTag(nil, 1, protowire.StartGroupType)
				b = protowire.AppendTag(b, 2, protowire.VarintType)
				b = protowire.AppendVarint(b, 1000)
				b = protowire.AppendTag(b, 3, protowire.BytesType)
				b = protowire.AppendBytes(b, []byte{0x08, 0x01})
				return protowire.AppendTag(b, 1, protowire.EndGroupType)
			}(),
			size: coded.SizeMessageSetExtension(1000, 2),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out := coded.NewAppendOutput(nil)
			tt.write(out)
			require.NoError(t, out.Err())
			assert.Equal(t, tt.want, out.Bytes())
			assert.Equal(t, tt.size, out.Len())

			fixed := coded.NewFixedOutput(make([]byte, tt.size))
			tt.write(fixed)
			assert.NoError(t, fixed.CheckNoSpaceLeft())

			var buf bytes.Buffer
			w := coded.NewOutput(&buf)
			tt.write(w)
			require.NoError(t, w.Flush())
			assert.Equal(t, tt.want, buf.Bytes())
		})
	}
}

func TestFixedOutput(t *testing.T) {
	t.Parallel()

	out := coded.NewFixedOutput(make([]byte, 3))
	assert.Equal(t, 3, out.SpaceLeft())
	out.WriteUint32(1, 1)
	assert.Equal(t, 1, out.SpaceLeft())
	assert.ErrorIs(t, out.CheckNoSpaceLeft(), coded.ErrSpaceLeft)

	out.WriteUint32(1, 1)
	assert.ErrorIs(t, out.Err(), coded.ErrNoSpace)
	// Errors are sticky.
	out.WriteRawBytes([]byte{0})
	assert.ErrorIs(t, out.CheckNoSpaceLeft(), coded.ErrNoSpace)
}

func TestWriterOutput(t *testing.T) {
	t.Parallel()

	big := bytes.Repeat([]byte("0123456789"), 1000)

	var buf bytes.Buffer
	out := coded.NewOutput(&buf)
	out.WriteBytes(1, big)
	out.WriteString(2, string(big))
	for i := range 1000 {
		out.WriteUint64(3, uint64(i))
	}
	require.NoError(t, out.Flush())
	assert.Equal(t, buf.Len(), out.Len())
	assert.Nil(t, out.Bytes())

	in := coded.NewInput(buf.Bytes(), coded.Options{})
	expectTag(t, in, 1, wire.BytesType)
	assert.Equal(t, big, must[bytestring.ByteString](t)(in.ReadBytes()).Bytes())
	expectTag(t, in, 2, wire.BytesType)
	assert.Equal(t, string(big), must[string](t)(in.ReadString()))
	for i := range 1000 {
		expectTag(t, in, 3, wire.VarintType)
		assert.Equal(t, uint64(i), must[uint64](t)(in.ReadUint64()))
	}
	assert.True(t, in.IsAtEnd())

	// Reuse after Reset.
	var buf2 bytes.Buffer
	out.Reset(&buf2)
	out.WriteBool(1, true)
	require.NoError(t, out.Flush())
	assert.Equal(t, []byte{0x08, 0x01}, buf2.Bytes())
}

// shortWriter accepts at most max bytes per call and never reports an error.
type shortWriter struct{ max int }

func (w shortWriter) Write(b []byte) (int, error) {
	return min(len(b), w.max), nil
}

func TestShortWrite(t *testing.T) {
	t.Parallel()

	big := bytes.Repeat([]byte("x"), 64*1024)

	out := coded.NewOutput(shortWriter{max: 16})
	out.WriteRawBytes(big)
	require.ErrorIs(t, out.Err(), io.ErrShortWrite)
	assert.ErrorIs(t, out.Flush(), io.ErrShortWrite)

	out = coded.NewOutput(shortWriter{max: 16})
	out.WriteBytes(1, big)
	assert.ErrorIs(t, out.Flush(), io.ErrShortWrite)
}

func TestBuilder(t *testing.T) {
	t.Parallel()

	b := coded.NewBuilder(coded.SizeTag(1) + coded.SizeLengthDelimited(2))
	b.Output().WriteString(1, "hi")
	s, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "\x0a\x02hi", s.String())

	b = coded.NewBuilder(10)
	b.Output().WriteString(1, "hi")
	_, err = b.Build()
	assert.ErrorIs(t, err, coded.ErrSpaceLeft)

	b = coded.NewBuilder(2)
	b.Output().WriteString(1, "hi")
	_, err = b.Build()
	assert.ErrorIs(t, err, coded.ErrNoSpace)
}
