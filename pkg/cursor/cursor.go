/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package cursor provides a bounds-checked forward reader over a slice.
package cursor

import "errors"

// ErrOutOfBounds is returned when a read runs past the end of the data.
var ErrOutOfBounds = errors.New("cursor out of bounds")

// Cursor reads items from a borrowed slice front to back. The position is always
// within [0, len(items)].
type Cursor[T any] struct {
	items []T
	pos   int
}

// New returns a cursor positioned at the first item.
func New[T any](items []T) *Cursor[T] {
	return &Cursor[T]{items: items}
}

// Peek returns the current item without moving.
func (c *Cursor[T]) Peek() (T, bool) {
	if c.pos >= len(c.items) {
		var zero T

		return zero, false
	}

	return c.items[c.pos], true
}

// Next returns the current item and advances past it.
func (c *Cursor[T]) Next() (T, error) {
	item, ok := c.Peek()
	if !ok {
		return item, ErrOutOfBounds
	}

	c.pos++

	return item, nil
}

// Advance skips the current item. It is a no-op at the end.
func (c *Cursor[T]) Advance() {
	if c.pos < len(c.items) {
		c.pos++
	}
}

// HasNext reports whether at least one more item can be read.
func (c *Cursor[T]) HasNext() bool {
	return c.pos < len(c.items)
}

// Take reads exactly n items. On failure the position is left untouched.
func (c *Cursor[T]) Take(n int) ([]T, error) {
	if n < 0 || n > c.Remaining() {
		return nil, ErrOutOfBounds
	}

	out := c.items[c.pos : c.pos+n]
	c.pos += n

	return out, nil
}

// Pos returns the index of the next item to be read.
func (c *Cursor[T]) Pos() int {
	return c.pos
}

// Remaining returns the number of unread items.
func (c *Cursor[T]) Remaining() int {
	return len(c.items) - c.pos
}
