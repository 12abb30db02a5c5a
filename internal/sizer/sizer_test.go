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

package sizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWidthFor(t *testing.T) {
	require.Equal(t, 0, WidthFor(0))
	require.Equal(t, 1, WidthFor(1))
	require.Equal(t, 2, WidthFor(2))
	require.Equal(t, 2, WidthFor(3))
	require.Equal(t, 3, WidthFor(4))
	require.Equal(t, 8, WidthFor(255))
	require.Equal(t, 9, WidthFor(256))
}

func TestFieldWidthNoRealValues(t *testing.T) {
	require.Equal(t, 0, FieldWidth(0, false, false))
	require.Equal(t, 0, FieldWidth(0, false, true))
}

func TestFieldWidthRealValuesNoSentinel(t *testing.T) {
	require.Equal(t, WidthFor(10), FieldWidth(10, true, false))
}

func TestFieldWidthRealValuesWithSentinel(t *testing.T) {
	w := FieldWidth(10, true, true)
	require.Equal(t, WidthFor(11), w)
	require.Greater(t, Sentinel(w), uint64(10))
}

func TestSentinelNeverCollidesWithMax(t *testing.T) {
	for _, max := range []int64{0, 1, 5, 255, 4095} {
		w := FieldWidth(max, true, true)
		s := Sentinel(w)
		require.Greater(t, s, uint64(max))
	}
}

func TestSingleEntryBits(t *testing.T) {
	require.Equal(t, 0, SingleEntryBits(0))
	require.Equal(t, 1, SingleEntryBits(1))
	require.Equal(t, 3, SingleEntryBits(5))
}

func TestLiveBitMaskBytes(t *testing.T) {
	require.Equal(t, 0, LiveBitMaskBytes(0))
	require.Equal(t, 1, LiveBitMaskBytes(1))
	require.Equal(t, 1, LiveBitMaskBytes(8))
	require.Equal(t, 2, LiveBitMaskBytes(9))
}

func TestDexMapByteSizeZeroWhenEmpty(t *testing.T) {
	require.Equal(t, 0, DexMapByteSize(0, 0, 10))
}

func TestDexMapByteSizeAccountsForHeaderMaskAndPacked(t *testing.T) {
	// 20 registers -> 3-byte live mask, catalog of 10 -> 4 bits/index,
	// 5 live registers -> ceil(5*4/8) = 3 packed bytes.
	got := DexMapByteSize(20, 5, 10)
	require.Equal(t, DexMapFixedHeaderBytes+3+3, got)
}

func TestWidthsRecordByteSizeRoundsUpToByte(t *testing.T) {
	w := Widths{DexPC: 3, NativePC: 3, RegisterMaskIndex: 1, StackMaskIndex: 1, InlineDepth: 0, DexRegisterMapOffset: 0, InlineInfoIndex: 0}
	require.Equal(t, 1, w.StackMapRecordBytes())
}

func TestMax(t *testing.T) {
	require.Equal(t, 5, Max(5, 3))
	require.Equal(t, 5, Max(3, 5))
	require.Equal(t, uint64(9), Max(uint64(9), uint64(9)))
}

func TestBuildReportSummarizesSizes(t *testing.T) {
	r := BuildReport(3, 1, 5, 2, 1, []float64{4, 6, 8})
	require.Equal(t, 3, r.StackMapCount)
	require.Equal(t, 1, r.StackMapsWithInline)
	require.Equal(t, 18, r.DexRegisterMapBytes)
	require.Equal(t, 6.0, r.MeanDexMapBytes)
	require.Equal(t, 8.0, r.MaxDexMapBytes)
}
