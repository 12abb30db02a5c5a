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

// Package dexmap implements a hash table from a cheap rolling hash over a
// live-register map to the list of prior stack-map indices sharing that
// hash, enabling same-as offset sharing between entries whose
// dex-register maps are bit-exact equal.
//
// Bucket order matters (first structural match wins), so each bucket is a
// FIFO queue backed by oleiade/lane rather than a plain slice.
package dexmap

import (
	"github.com/oleiade/lane"
)

// Index maps rolling hash -> queue of prior entry indices with that hash.
type Index struct {
	buckets map[uint64]*lane.Queue
}

// New returns an empty Index.
func New() *Index {
	return &Index{buckets: make(map[uint64]*lane.Queue)}
}

// Candidates returns, oldest first, the indices of prior entries recorded
// under hash. The caller compares each in order and keeps the first
// structural match.
func (idx *Index) Candidates(hash uint64) []int {
	q, ok := idx.buckets[hash]
	if !ok {
		return nil
	}
	out := make([]int, 0, q.Size())
	// lane.Queue only exposes destructive iteration; walk a snapshot and
	// push it back so later lookups still see every candidate.
	tmp := make([]int, 0, q.Size())
	for !q.Empty() {
		v := q.Dequeue().(int)
		tmp = append(tmp, v)
	}
	for _, v := range tmp {
		q.Enqueue(v)
		out = append(out, v)
	}
	return out
}

// Record appends entryIndex to hash's bucket. The builder calls it at most
// once per entry, and only when Candidates has been consulted and found no
// structural match; entries that matched an earlier one are not recorded.
func (idx *Index) Record(hash uint64, entryIndex int) {
	q, ok := idx.buckets[hash]
	if !ok {
		q = lane.NewQueue()
		idx.buckets[hash] = q
	}
	q.Enqueue(entryIndex)
}
