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

package unknown_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/protocolbuffers/protoscope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buf.build/go/wirepb/bytestring"
	"buf.build/go/wirepb/coded"
	"buf.build/go/wirepb/unknown"
	"buf.build/go/wirepb/wire"
)

func scope(t *testing.T, src string) []byte {
	t.Helper()
	b, err := protoscope.NewScanner(src).Exec()
	require.NoError(t, err)
	return b
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []string{
		``,
		`99: {"hi"}`,
		`1: 150`,
		`1: 1 1: 2 1: 3`,
		`2: 5i32 3: -1i64`,
		`4: !{1: 1 2: {"nested"} 3: !{}}`,
		`5: {1: 2 3: 4} 1: 0 5: {}`,
		`536870911: 1`,
		`1: -1`,
	}

	for _, tt := range tests {
		t.Run(tt, func(t *testing.T) {
			t.Parallel()
			data := scope(t, tt)

			set, err := unknown.Parse(data, coded.Options{})
			require.NoError(t, err)
			assert.Equal(t, len(data), set.Size())
			assert.True(t, bytes.Equal(data, set.Marshal().Bytes()), "%x", set.Marshal())

			out := coded.NewAppendOutput(nil)
			set.MarshalTo(out)
			assert.True(t, bytes.Equal(data, out.Bytes()), "%x", out.Bytes())

			set2, err := unknown.ParseByteString(bytestring.CopyFrom(data), coded.Options{})
			require.NoError(t, err)
			assert.True(t, set.Equal(set2))
			assert.Equal(t, set.Hash(), set2.Hash())
		})
	}
}

func TestUnknownField99(t *testing.T) {
	t.Parallel()

	data := scope(t, `99: {"hi"}`)
	set, err := unknown.Parse(data, coded.Options{})
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())

	f := set.Index(0)
	assert.Equal(t, wire.Number(99), f.Number())
	assert.Equal(t, wire.BytesType, f.Type())
	assert.Equal(t, "hi", f.Bytes().String())
	assert.Equal(t, `99: "hi"`, fmt.Sprint(f))
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"truncated", []byte{0x0a, 0x05, 'a'}, wire.ErrTruncated},
		{"unterminated-group", []byte{0x23, 0x08, 0x01}, wire.ErrEndGroup},
		{"stray-end-group", scope(t, `1: !{} 2:EGROUP`), wire.ErrEndGroup},
		{"only-end-group", scope(t, `2:EGROUP`), wire.ErrEndGroup},
		{"reserved", []byte{0x0f}, wire.ErrReserved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := unknown.Parse(tt.data, coded.Options{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMergeFieldFrom(t *testing.T) {
	t.Parallel()

	in := coded.NewInput(scope(t, `1: 5 2: {"x"} 3:EGROUP 4: 6`), coded.Options{})

	var b unknown.Builder
	require.NoError(t, b.MergeFrom(in))
	assert.Equal(t, wire.MakeTag(3, wire.EndGroupType), in.LastTag())
	assert.Equal(t, 2, b.Len())

	more, err := b.MergeFieldFrom(in.LastTag(), in)
	require.NoError(t, err)
	assert.False(t, more)

	tag, err := in.ReadTag()
	require.NoError(t, err)
	more, err = b.MergeFieldFrom(tag, in)
	require.NoError(t, err)
	assert.True(t, more)

	set := b.Build()
	assert.Equal(t, `1: 5 2: "x" 4: 6`, fmt.Sprint(set))
	assert.Zero(t, b.Len())
}

func TestBuilder(t *testing.T) {
	t.Parallel()

	var b unknown.Builder
	b.AddVarint(1, 150)
	b.AddFixed32(2, 7)
	b.AddFixed64(3, 8)
	b.AddBytes(4, bytestring.CopyFromString("abc"))
	var g unknown.Builder
	g.AddVarint(1, 1)
	b.AddGroup(5, g.Build())
	set := b.Build()

	assert.Equal(t,
		scope(t, `1: 150 2: 7i32 3: 8i64 4: {"abc"} 5: !{1: 1}`),
		set.Marshal().Bytes(),
	)

	// Builders made from a set never write through to it.
	b2 := set.ToBuilder()
	b2.AddVarint(6, 1)
	b3 := set.ToBuilder()
	b3.AddVarint(7, 1)
	assert.Equal(t, 5, set.Len())
	s2, s3 := b2.Build(), b3.Build()
	assert.Equal(t, wire.Number(6), s2.Index(5).Number())
	assert.Equal(t, wire.Number(7), s3.Index(5).Number())
	assert.False(t, s2.Equal(s3))

	var merged unknown.Builder
	merged.MergeSet(set)
	merged.MergeSet(set)
	assert.Equal(t, 10, merged.Len())
	assert.Equal(t, 5, set.Len())
}

func TestEqual(t *testing.T) {
	t.Parallel()

	parse := func(src string) unknown.Set {
		set, err := unknown.Parse(scope(t, src), coded.Options{})
		require.NoError(t, err)
		return set
	}

	a := parse(`1: 1 2: {"x"} 3: !{4: 5}`)
	assert.True(t, a.Equal(parse(`1: 1 2: {"x"} 3: !{4: 5}`)))
	assert.Equal(t, a.Hash(), parse(`1: 1 2: {"x"} 3: !{4: 5}`).Hash())

	// Order, wire type and value all matter.
	for _, other := range []string{
		`2: {"x"} 1: 1 3: !{4: 5}`,
		`1: 1i64 2: {"x"} 3: !{4: 5}`,
		`1: 1 2: {"y"} 3: !{4: 5}`,
		`1: 1 2: {"x"} 3: !{4: 6}`,
		`1: 1 2: {"x"}`,
	} {
		assert.False(t, a.Equal(parse(other)), other)
	}
}

func TestMessageSet(t *testing.T) {
	t.Parallel()

	var b unknown.Builder
	b.AddBytes(1000, bytestring.CopyFrom(scope(t, `1: 1`)))
	b.AddVarint(7, 3)
	set := b.Build()

	out := coded.NewAppendOutput(nil)
	set.MarshalAsMessageSetTo(out)
	want := scope(t, `1: !{2: 1000 3: {1: 1}} 7: 3`)
	assert.Equal(t, want, out.Bytes())
	assert.Equal(t, len(want), set.SizeAsMessageSet())

	// Read back, the items are groups.
	items, err := unknown.Parse(out.Bytes(), coded.Options{})
	require.NoError(t, err)
	require.Equal(t, 2, items.Len())
	item := items.Index(0).Group()
	assert.Equal(t, uint64(1000), item.Index(0).Scalar())
	assert.True(t, bytes.Equal(scope(t, `1: 1`), item.Index(1).Bytes().Bytes()))
}

func FuzzParse(f *testing.F) {
	f.Add([]byte{0x08, 0x96, 0x01})
	f.Add([]byte{0x0b, 0x08, 0x01, 0x0c})
	f.Add([]byte{0x0a, 0x02, 'h', 'i'})
	f.Fuzz(func(t *testing.T, data []byte) {
		set, err := unknown.Parse(data, coded.Options{})
		if err != nil {
			return
		}
		// Anything that parses is re-encoded byte for byte, except for
		// non-minimal varints.
		again, err := unknown.Parse(set.Marshal().Bytes(), coded.Options{})
		require.NoError(t, err)
		assert.True(t, set.Equal(again))
		assert.Equal(t, set.Size(), set.Marshal().Len())
	})
}
