/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package ctxmap provides a generic concurrency-safe keyed store, used as
// the backing table for the session manager (client_id -> *Session).
package ctxmap

import "sync"

// FuncWalk is called once per entry during Range; returning false stops
// the iteration early.
type FuncWalk[K comparable, V any] func(key K, val V) bool

// Store is a generic keyed map with a fixed value type, safe for
// concurrent use by multiple goroutines.
type Store[K comparable, V any] interface {
	Load(key K) (V, bool)
	Store(key K, val V)
	LoadOrStore(key K, val V) (actual V, loaded bool)
	Delete(key K)
	LoadAndDelete(key K) (V, bool)
	Range(fn FuncWalk[K, V])
	Len() int
}

// store wraps a sync.Map typed to [K, V]; every value it ever holds was
// put there through Store/LoadOrStore, so the type assertions on read
// can never fail.
type store[K comparable, V any] struct {
	m sync.Map
}

// New returns an empty Store for the given key/value types.
func New[K comparable, V any]() Store[K, V] {
	return &store[K, V]{}
}

func (s *store[K, V]) Load(key K) (V, bool) {
	v, ok := s.m.Load(key)
	if !ok {
		var zero V
		return zero, false
	}

	return v.(V), true
}

func (s *store[K, V]) Store(key K, val V) {
	s.m.Store(key, val)
}

func (s *store[K, V]) LoadOrStore(key K, val V) (V, bool) {
	actual, loaded := s.m.LoadOrStore(key, val)
	return actual.(V), loaded
}

func (s *store[K, V]) Delete(key K) {
	s.m.Delete(key)
}

func (s *store[K, V]) LoadAndDelete(key K) (V, bool) {
	v, loaded := s.m.LoadAndDelete(key)
	if !loaded {
		var zero V
		return zero, false
	}

	return v.(V), true
}

func (s *store[K, V]) Range(fn FuncWalk[K, V]) {
	s.m.Range(func(key, val any) bool {
		return fn(key.(K), val.(V))
	})
}

func (s *store[K, V]) Len() int {
	n := 0
	s.m.Range(func(_, _ any) bool {
		n++
		return true
	})

	return n
}
