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

package bitvec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetAndIsBitSet(t *testing.T) {
	v := NewOfLength(40)
	for i := 0; i < 40; i++ {
		if i%3 == 0 {
			v.SetBit(i)
		}
	}
	for i := 0; i < 40; i++ {
		require.Equal(t, i%3 == 0, v.IsBitSet(i))
	}
	require.False(t, v.IsBitSet(100))
}

func TestGrowsOnSetBit(t *testing.T) {
	v := New()
	require.Equal(t, 0, v.Len())
	v.SetBit(63)
	require.Equal(t, 64, v.Len())
	require.True(t, v.IsBitSet(63))
	require.False(t, v.IsBitSet(62))
}

func TestPopCount(t *testing.T) {
	v := NewOfLength(16)
	require.Equal(t, 0, v.PopCount())
	v.SetBit(0)
	v.SetBit(7)
	v.SetBit(15)
	require.Equal(t, 3, v.PopCount())
}

func TestHighestSetBit(t *testing.T) {
	v := NewOfLength(16)
	require.Equal(t, -1, v.HighestSetBit())
	v.SetBit(3)
	require.Equal(t, 3, v.HighestSetBit())
	v.SetBit(12)
	require.Equal(t, 12, v.HighestSetBit())
}

func TestEqual(t *testing.T) {
	a := NewOfLength(10)
	b := NewOfLength(10)
	require.True(t, a.Equal(b))
	a.SetBit(4)
	require.False(t, a.Equal(b))
	b.SetBit(4)
	require.True(t, a.Equal(b))

	c := NewOfLength(11)
	require.False(t, a.Equal(c))
}

func TestBytesRoundTrip(t *testing.T) {
	v := NewOfLength(12)
	v.SetBit(0)
	v.SetBit(11)
	b := v.Bytes()
	require.Len(t, b, 2)
	require.Equal(t, byte(1), b[0]&1)
	require.Equal(t, byte(1<<3), b[1]&(1<<3))
}
