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

package masks

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudwego/smstream/internal/arena"
	"github.com/cloudwego/smstream/internal/bitvec"
)

func TestRegisterInternerAssignsDenseIndices(t *testing.T) {
	r := NewRegisterInterner()
	require.Equal(t, 0, r.Add(0xF0))
	require.Equal(t, 1, r.Add(0x0F))
	require.Equal(t, 0, r.Add(0xF0))
	require.Equal(t, 2, r.Len())
	require.Equal(t, uint32(0xF0), r.At(0))
	require.Equal(t, uint32(0x0F), r.At(1))
}

func TestStackInternerDedupesByContent(t *testing.T) {
	pool := arena.NewPool()
	s := NewStackInterner(pool, 2, 3)

	a := bitvec.NewOfLength(9)
	a.SetBit(0)
	b := bitvec.NewOfLength(9)
	b.SetBit(0)
	c := bitvec.NewOfLength(9)
	c.SetBit(8)

	ia := s.Add(a)
	ib := s.Add(b)
	ic := s.Add(c)

	require.Equal(t, ia, ib)
	require.NotEqual(t, ia, ic)
	require.Equal(t, 2, s.Len())
	require.Equal(t, a.Bytes(), s.At(ia))
}

func TestStackInternerNilMaskIsAllZero(t *testing.T) {
	pool := arena.NewPool()
	s := NewStackInterner(pool, 1, 2)
	zero := bitvec.NewOfLength(8)

	i1 := s.Add(nil)
	i2 := s.Add(zero)
	require.Equal(t, i1, i2)
}
