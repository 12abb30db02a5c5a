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

package smstream

import "github.com/cloudwego/smstream/internal/bitvec"

// BitSet is a caller-built stack mask: one bit per stack slot, set where
// that slot holds a live GC reference at the safepoint. A nil *BitSet
// (or one with no bits set) means "no live stack references", the common
// case at most safepoints.
type BitSet struct {
	v *bitvec.Vector
}

// NewBitSet returns a BitSet of n bits, all clear.
func NewBitSet(n int) *BitSet {
	return &BitSet{v: bitvec.NewOfLength(n)}
}

// Set marks bit i live, growing the set if necessary.
func (s *BitSet) Set(i int) {
	if s.v == nil {
		s.v = bitvec.New()
	}
	s.v.SetBit(i)
}

// IsSet reports whether bit i is live.
func (s *BitSet) IsSet(i int) bool {
	if s == nil || s.v == nil {
		return false
	}
	return s.v.IsBitSet(i)
}

// Len reports the number of addressable bits.
func (s *BitSet) Len() int {
	if s == nil || s.v == nil {
		return 0
	}
	return s.v.Len()
}

func (s *BitSet) toInternal() *bitvec.Vector {
	if s == nil {
		return nil
	}
	return s.v
}
