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

	"github.com/stretchr/testify/require"

	"github.com/cloudwego/smstream/internal/arena"
	"github.com/cloudwego/smstream/internal/bitvec"
	"github.com/cloudwego/smstream/internal/isa"
	"github.com/cloudwego/smstream/internal/reader"
)

func newTestBuilder() *Builder {
	return NewBuilder(isa.X86_64, arena.NewPool(), true)
}

func TestBeginStackMapEntryRejectsSentinelDexPC(t *testing.T) {
	b := newTestBuilder()
	err := b.BeginStackMapEntry(DexPCNone, 0, 0, nil, 0, 0)
	require.Error(t, err)
}

func TestBeginStackMapEntryRejectsReentry(t *testing.T) {
	b := newTestBuilder()
	require.NoError(t, b.BeginStackMapEntry(1, 0, 0, nil, 0, 0))
	err := b.BeginStackMapEntry(2, 0, 0, nil, 0, 0)
	require.Error(t, err)
}

func TestEndStackMapEntryRejectsPartialDexRegisters(t *testing.T) {
	b := newTestBuilder()
	require.NoError(t, b.BeginStackMapEntry(1, 0, 0, nil, 2, 0))
	require.NoError(t, b.AddDexRegisterEntry(KindConstant, 5))
	err := b.EndStackMapEntry()
	require.Error(t, err)
}

func TestEndStackMapEntryRejectsInlineDepthMismatch(t *testing.T) {
	b := newTestBuilder()
	require.NoError(t, b.BeginStackMapEntry(1, 0, 0, nil, 0, 1))
	err := b.EndStackMapEntry()
	require.Error(t, err)
}

func buildStackMap(t *testing.T, b *Builder, dexPC uint32, regValues []int32) {
	t.Helper()
	require.NoError(t, b.BeginStackMapEntry(dexPC, 0, 0xF, nil, len(regValues), 0))
	for _, v := range regValues {
		if v == -1 {
			require.NoError(t, b.AddDexRegisterEntry(KindNone, 0))
		} else {
			require.NoError(t, b.AddDexRegisterEntry(KindConstant, v))
		}
	}
	require.NoError(t, b.EndStackMapEntry())
}

func TestFullRoundTripThroughReader(t *testing.T) {
	b := newTestBuilder()

	// Two entries with bit-identical dex-register maps: should share a
	// dex-register-map offset via same-as.
	buildStackMap(t, b, 10, []int32{1, 2, -1})
	buildStackMap(t, b, 20, []int32{1, 2, -1})

	// A third entry with a distinct map, a stack mask and an inline frame.
	mask := bitvec.NewOfLength(20)
	mask.SetBit(3)
	mask.SetBit(19)
	require.NoError(t, b.BeginStackMapEntry(30, 0, 0x1, mask, 1, 1))
	require.NoError(t, b.AddDexRegisterEntry(KindRegister, 9))
	require.NoError(t, b.BeginInlineInfoEntry(MethodIndex(77), 5, 1))
	require.NoError(t, b.AddDexRegisterEntry(KindConstant, 3))
	require.NoError(t, b.EndInlineInfoEntry())
	require.NoError(t, b.EndStackMapEntry())

	require.Equal(t, -1, b.entries[0].sameAs)
	require.Equal(t, 0, b.entries[1].sameAs)

	size, err := b.PrepareForFillIn()
	require.NoError(t, err)
	require.Greater(t, size, 0)

	region := make([]byte, size)
	require.NoError(t, b.FillIn(region))

	blob, err := reader.Parse(region, isa.Factor(isa.X86_64))
	require.NoError(t, err)
	require.Equal(t, 3, blob.StackMapCount())

	sm0 := blob.StackMap(0)
	require.Equal(t, uint32(10), sm0.DexPC)
	require.Equal(t, int32(1), sm0.DexRegisterMap[0].Value)

	sm1 := blob.StackMap(1)
	require.Equal(t, sm0.DexRegisterMap, sm1.DexRegisterMap)

	sm2 := blob.StackMap(2)
	require.Equal(t, uint32(30), sm2.DexPC)
	require.Len(t, sm2.InlineFrames, 1)
	require.Equal(t, uint32(77), sm2.InlineFrames[0].HighOrIndex)
	require.False(t, sm2.InlineFrames[0].EncodesPointer)
	require.Equal(t, uint32(5), sm2.InlineFrames[0].DexPC)
}

func TestInlineDexPCAtAllOnesWidthRoundTrips(t *testing.T) {
	// A single inline frame whose dex PC is exactly 2^k-1 (here 1, width
	// 1) used to collide with the reserved "absent" sentinel: with no
	// other frame needing the sentinel, the field was sized to fit the
	// real value exactly, making the all-ones code point a legal value
	// indistinguishable from DexPCNone on decode.
	b := newTestBuilder()
	require.NoError(t, b.BeginStackMapEntry(1, 0, 0x1, nil, 0, 1))
	require.NoError(t, b.BeginInlineInfoEntry(MethodIndex(1), 1, 0))
	require.NoError(t, b.EndInlineInfoEntry())
	require.NoError(t, b.EndStackMapEntry())

	size, err := b.PrepareForFillIn()
	require.NoError(t, err)
	region := make([]byte, size)
	require.NoError(t, b.FillIn(region))

	blob, err := reader.Parse(region, isa.Factor(isa.X86_64))
	require.NoError(t, err)
	sm := blob.StackMap(0)
	require.Len(t, sm.InlineFrames, 1)
	require.Equal(t, uint32(1), sm.InlineFrames[0].DexPC)
}

func TestPrepareForFillInIsIdempotent(t *testing.T) {
	b := newTestBuilder()
	buildStackMap(t, b, 1, nil)
	n1, err := b.PrepareForFillIn()
	require.NoError(t, err)
	n2, err := b.PrepareForFillIn()
	require.NoError(t, err)
	require.Equal(t, n1, n2)
}

func TestFillInRejectsWrongSizeRegion(t *testing.T) {
	b := newTestBuilder()
	buildStackMap(t, b, 1, nil)
	size, err := b.PrepareForFillIn()
	require.NoError(t, err)
	err = b.FillIn(make([]byte, size+1))
	require.Error(t, err)
}

func TestFillInBeforePrepareFails(t *testing.T) {
	b := newTestBuilder()
	buildStackMap(t, b, 1, nil)
	err := b.FillIn(make([]byte, 10))
	require.Equal(t, ErrNotPrepared, err)
}
