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

package bitmem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreLoadBit(t *testing.T) {
	r := Wrap(make([]byte, 4))
	r.StoreBit(0, 1)
	r.StoreBit(7, 1)
	r.StoreBit(8, 1)
	require.Equal(t, 1, r.LoadBit(0))
	require.Equal(t, 1, r.LoadBit(7))
	require.Equal(t, 1, r.LoadBit(8))
	require.Equal(t, 0, r.LoadBit(1))
	r.StoreBit(0, 0)
	require.Equal(t, 0, r.LoadBit(0))
}

func TestStoreLoadBitsUnaligned(t *testing.T) {
	r := Wrap(make([]byte, 8))
	r.StoreBits(3, 13, 0x1a2b&((1<<13)-1))
	got := r.LoadBits(3, 13)
	require.Equal(t, uint64(0x1a2b&((1<<13)-1)), got)
}

func TestStoreLoadBitsZeroWidth(t *testing.T) {
	r := Wrap(make([]byte, 2))
	r.StoreBits(0, 0, 0xffff)
	require.Equal(t, uint64(0), r.LoadBits(0, 0))
}

func TestStoreByteRangeAndSlice(t *testing.T) {
	r := Wrap(make([]byte, 8))
	r.StoreByteRange(2, []byte{1, 2, 3})
	require.Equal(t, []byte{1, 2, 3}, r.Bytes()[2:5])

	sub := r.Slice(2, 3)
	require.Equal(t, []byte{1, 2, 3}, sub.Bytes())
}
