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

package strictutf8_test

import (
	"fmt"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"buf.build/go/wirepb/internal/strictutf8"
)

func TestValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"empty", "", true},
		{"ascii", "Hello world!", true},
		{"long-ascii", "the quick brown fox jumps over the lazy dog", true},
		{"two", "é", true},
		{"three", "€", true},
		{"four", "\U0001f600", true},
		{"max", "\U0010ffff", true},
		{"mixed", "aéb€c\U0001f600d", true},

		{"ff", "\xff", false},
		{"lone-continuation", "\x80", false},
		{"overlong-2", "\xc0\xaf", false},
		{"overlong-c1", "\xc1\xbf", false},
		{"overlong-3", "\xe0\x80\xaf", false},
		{"overlong-4", "\xf0\x80\x80\xaf", false},
		{"surrogate-high", "\xed\xa0\x80", false},
		{"surrogate-low", "\xed\xbf\xbf", false},
		{"past-max", "\xf4\x90\x80\x80", false},
		{"f5", "\xf5\x80\x80\x80", false},
		{"truncated-2", "\xc3", false},
		{"truncated-4", "\xf0\x9f\x98", false},
		{"bad-third", "\xe2\x82\x28", false},
		{"ascii-then-bad", "01234567\xff", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, strictutf8.Valid([]byte(tt.in)))
			assert.Equal(t, utf8.ValidString(tt.in), strictutf8.Valid([]byte(tt.in)))
		})
	}
}

func TestPartialValid(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"aéb€c\U0001f600d",
		"\U0001f600\U0001f600\U0001f600",
		"\xed\xa0\x80",
		"abc\xf0\x9f\x98",
		"\xe2\x82",
		"plain ascii text that is long enough for the fast path",
	}

	for _, in := range inputs {
		t.Run(fmt.Sprintf("%q", in), func(t *testing.T) {
			t.Parallel()

			b := []byte(in)
			whole := strictutf8.PartialValid(strictutf8.Complete, b)
			for i := 0; i <= len(b); i++ {
				for j := i; j <= len(b); j++ {
					s := strictutf8.PartialValid(strictutf8.Complete, b[:i])
					s = strictutf8.PartialValid(s, b[i:j])
					s = strictutf8.PartialValid(s, b[j:])
					assert.Equal(t, whole, s, "split at %d, %d", i, j)
				}
			}
		})
	}

	s := strictutf8.PartialValid(strictutf8.Complete, []byte{0xf0, 0x9f})
	assert.Equal(t, 2, s.Pending())
	assert.Equal(t, "Pending(f0 9f)", s.String())
	assert.Equal(t, strictutf8.Complete, strictutf8.PartialValid(s, []byte{0x98, 0x80}))
	assert.Equal(t, strictutf8.Malformed, strictutf8.PartialValid(strictutf8.Malformed, []byte("ok")))
}

func FuzzValid(f *testing.F) {
	f.Add([]byte("Hello world!"))
	f.Add([]byte{0xff})
	f.Add([]byte("\xed\xa0\x80"))
	f.Add([]byte("\U0001f600"))
	f.Fuzz(func(t *testing.T, b []byte) {
		ok := strictutf8.Valid(b)
		// A valid string survives decoding to runes and re-encoding.
		roundTrip := string([]rune(string(b))) == string(b)
		assert.Equal(t, roundTrip, ok)
		assert.Equal(t, utf8.Valid(b), ok)

		mid := len(b) / 2
		s := strictutf8.PartialValid(strictutf8.Complete, b[:mid])
		s = strictutf8.PartialValid(s, b[mid:])
		assert.Equal(t, ok, s == strictutf8.Complete)
	})
}
