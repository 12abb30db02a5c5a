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

package stream

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/smstream/internal/arena"
	"github.com/cloudwego/smstream/internal/isa"
	"github.com/cloudwego/smstream/internal/reader"
)

// randomEntry is a fixture generated by gofakeit, mirroring one
// BeginStackMapEntry/AddDexRegisterEntry/EndStackMapEntry sequence, used to
// check the encoder against a large population of varied inputs rather
// than a handful of hand-picked cases.
type randomEntry struct {
	DexPC        uint32 `fake:"{number:1,100000}"`
	RegisterMask uint32 `fake:"{number:0,65535}"`
	Values       []int32
}

func TestRandomPopulationRoundTrips(t *testing.T) {
	gofakeit.Seed(1)

	b := NewBuilder(isa.ARM64, arena.NewPool(), true)
	const n = 40

	entries := make([]randomEntry, n)
	for i := range entries {
		require.NoError(t, gofakeit.Struct(&entries[i]))
		width := gofakeit.Number(0, 6)
		entries[i].Values = make([]int32, width)
		for j := range entries[i].Values {
			if gofakeit.Bool() {
				entries[i].Values[j] = -1 // sentinel for "dead register" in this fixture
			} else {
				entries[i].Values[j] = int32(gofakeit.Number(-200, 200))
			}
		}
	}

	for _, e := range entries {
		require.NoError(t, b.BeginStackMapEntry(e.DexPC, 0, e.RegisterMask, nil, len(e.Values), 0))
		for _, v := range e.Values {
			if v == -1 {
				require.NoError(t, b.AddDexRegisterEntry(KindNone, 0))
			} else {
				require.NoError(t, b.AddDexRegisterEntry(KindConstant, v))
			}
		}
		require.NoError(t, b.EndStackMapEntry())
	}

	size, err := b.PrepareForFillIn()
	require.NoError(t, err)
	region := make([]byte, size)
	require.NoError(t, b.FillIn(region))

	blob, err := reader.Parse(region, isa.Factor(isa.ARM64))
	require.NoError(t, err)
	require.Equal(t, n, blob.StackMapCount())

	for i, e := range entries {
		got := blob.StackMap(i)
		require.Equal(t, e.DexPC, got.DexPC)
		require.Equal(t, e.RegisterMask, got.RegisterMask)
		for pos, v := range e.Values {
			loc, live := got.DexRegisterMap[pos]
			if v == -1 {
				require.False(t, live)
			} else {
				require.True(t, live)
				require.Equal(t, v, loc.Value)
			}
		}
	}
}
