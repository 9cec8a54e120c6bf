// Copyright 2020-2025 Buf Technologies, Inc.
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

package sync2_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"buf.build/go/wirepb/internal/sync2"
)

func TestPool(t *testing.T) {
	t.Parallel()

	var resets int
	p := sync2.Pool[[]byte]{
		Reset: func(b *[]byte) bool {
			resets++
			*b = (*b)[:0]
			return cap(*b) <= 64
		},
	}

	v := p.Get()
	assert.NotNil(t, v)
	assert.Empty(t, *v)

	*v = append(*v, "hello"...)
	p.Put(v)
	assert.Equal(t, 1, resets)
	assert.Empty(t, *v)

	big := p.Get()
	*big = make([]byte, 128)
	p.Put(big)
	assert.Equal(t, 2, resets)

	p.Put(nil)
	assert.Equal(t, 2, resets)

	errBoom := errors.New("boom")
	err := p.With(func(b *[]byte) error {
		*b = append(*b, 'x')
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, resets)
}
