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

// Package sync2 holds typed wrappers over package sync.
package sync2

import "sync"

// Pool is a typed free list of *T, backed by a [sync.Pool].
//
// The zero value is ready to use; values are allocated with new(T) when the
// pool is empty.
type Pool[T any] struct {
	// Reset, if set, clears a value as it is returned to the pool. It may
	// report false to drop the value instead, for example when it holds an
	// unusually large buffer.
	Reset func(*T) bool

	impl sync.Pool
}

// Get takes a value from the pool, allocating one if needed.
func (p *Pool[T]) Get() *T {
	if v, ok := p.impl.Get().(*T); ok {
		return v
	}
	return new(T)
}

// Put returns v to the pool. v must not be used afterwards.
func (p *Pool[T]) Put(v *T) {
	if v == nil || (p.Reset != nil && !p.Reset(v)) {
		return
	}
	p.impl.Put(v)
}

// With runs f with a pooled value and returns it to the pool afterwards.
func (p *Pool[T]) With(f func(*T) error) error {
	v := p.Get()
	defer p.Put(v)
	return f(v)
}
