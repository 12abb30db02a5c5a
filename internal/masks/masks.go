/*
 * Copyright 2024 CloudWeGo Authors
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

// Package masks implements two parallel mask interners: a register-mask
// interner keyed by integer value, and a stack-mask interner keyed by
// byte-equal content of a bit-packed buffer.
package masks

import (
	"github.com/cloudwego/smstream/internal/arena"
	"github.com/cloudwego/smstream/internal/bitvec"
)

// RegisterInterner assigns insertion-ordered dense indices to 32-bit
// register masks: the first distinct value seen becomes index 0, the
// second distinct value becomes 1, and so on.
type RegisterInterner struct {
	order []uint32
	index map[uint32]int
}

// NewRegisterInterner returns an empty RegisterInterner.
func NewRegisterInterner() *RegisterInterner {
	return &RegisterInterner{index: make(map[uint32]int)}
}

// Add interns v, returning its dense index.
func (r *RegisterInterner) Add(v uint32) int {
	if i, ok := r.index[v]; ok {
		return i
	}
	i := len(r.order)
	r.order = append(r.order, v)
	r.index[v] = i
	return i
}

// Len returns the number of distinct register masks interned.
func (r *RegisterInterner) Len() int {
	return len(r.order)
}

// At returns the value at dense index i, in insertion order.
func (r *RegisterInterner) At(i int) uint32 {
	return r.order[i]
}

// StackInterner deduplicates stack masks by the byte-equal content of a
// uniform B-byte packed buffer. The backing buffer is preallocated to its
// final size (B * capacity) before interning begins; here it comes from
// the caller-supplied arena rather than a raw make([]byte, n).
//
// The C++ original keys this table by interior pointers into the
// preallocated buffer (§9 Design Notes: "interior pointers as hash
// keys"). Go does not offer stable, comparable interior pointers into a
// slice across appends, so this keys instead by the string conversion of
// each B-byte slot — an owned copy of the same bytes, giving
// byte-content equality without relying on address identity. This is the
// "separate owned-bytes key type" alternative §9 calls out for a
// pointer-safety-first rewrite.
type StackInterner struct {
	entryBytes int
	buf        []byte
	written    int
	index      map[string]int
	distinct   [][]byte
}

// NewStackInterner preallocates a buffer for up to capacity entries, each
// entryBytes wide.
func NewStackInterner(pool *arena.Pool, entryBytes, capacity int) *StackInterner {
	var buf []byte
	if entryBytes > 0 && capacity > 0 {
		buf = pool.Alloc(entryBytes * capacity)
	}
	return &StackInterner{
		entryBytes: entryBytes,
		buf:        buf,
		index:      make(map[string]int),
	}
}

// Add writes mask's byte-packed content (zero-padded/truncated to
// entryBytes) into the next preallocated slot and returns the dense index
// of that content: a new index if this slot's content has not been seen
// before, or the earlier index it collides with otherwise. A nil mask is
// treated as all-zero.
func (s *StackInterner) Add(mask *bitvec.Vector) int {
	slot := s.buf[s.written*s.entryBytes : (s.written+1)*s.entryBytes]
	if mask != nil {
		copy(slot, mask.Bytes())
	}
	s.written++

	key := string(slot)
	if i, ok := s.index[key]; ok {
		return i
	}
	i := len(s.distinct)
	s.index[key] = i
	s.distinct = append(s.distinct, slot)
	return i
}

// Len returns the number of distinct stack masks interned.
func (s *StackInterner) Len() int {
	return len(s.distinct)
}

// At returns the entryBytes-wide packed content of the distinct slot at
// index i.
func (s *StackInterner) At(i int) []byte {
	return s.distinct[i]
}
