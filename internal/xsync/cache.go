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

// Package xsync holds concurrent containers.
package xsync

import "sync"

// Cache memoizes a value per key, computing it on first use.
//
// Entries are never evicted; keys should come from a bounded set, such as
// descriptors.
type Cache[K comparable, V any] struct {
	m sync.Map
}

// Get returns the value for k, calling compute if there is none yet.
//
// Under contention compute may run more than once for the same key, but every
// caller observes the single value that was stored first.
func (c *Cache[K, V]) Get(k K, compute func(K) V) V {
	if v, ok := c.m.Load(k); ok {
		return v.(V) //nolint:errcheck
	}
	v, _ := c.m.LoadOrStore(k, compute(k))
	return v.(V) //nolint:errcheck
}

// Peek returns the value for k without computing it.
func (c *Cache[K, V]) Peek(k K) (v V, ok bool) {
	w, ok := c.m.Load(k)
	if ok {
		v = w.(V) //nolint:errcheck
	}
	return v, ok
}

// Len counts the cached entries. It is linear in the size of the cache.
func (c *Cache[K, V]) Len() int {
	n := 0
	c.m.Range(func(any, any) bool { n++; return true })
	return n
}
