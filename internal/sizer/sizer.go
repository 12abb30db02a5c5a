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

// Package sizer implements bit-width selection from observed maxima,
// dex-register-map byte sizing, and the compact header encoding.
package sizer

import (
	"math/bits"

	"gonum.org/v1/gonum/stat"
)

// WidthFor returns ceil(log2(max+1)), the minimum number of bits needed to
// represent every value in [0, max]. WidthFor(0) is 0: clamped to 0 when
// max is 0.
func WidthFor(max uint64) int {
	return bits.Len64(max)
}

// FieldWidth returns the bit width of a field that may need a reserved
// sentinel code point (e.g. kNoDexRegisterMap, kNoInlineInfo).
//
//   - hasReal is true iff at least one entry carries a real (non-sentinel)
//     value for this field; maxReal is the largest such value.
//   - needSentinel is true iff at least one entry needs the sentinel.
//
// When hasReal is false, the field needs no bits at all: either nothing
// ever used it, or every entry needs the sentinel, in which case "always
// absent" is the only possible decoding and costs nothing to record:
// absence must never cost a "valid" encoding. When hasReal is true, the field is sized to fit every real value, plus
// one extra code point reserved for the sentinel when needSentinel holds.
func FieldWidth(maxReal int64, hasReal, needSentinel bool) int {
	if !hasReal {
		return 0
	}
	n := uint64(maxReal)
	if needSentinel {
		n++
	}
	return bits.Len64(n)
}

// Sentinel returns the reserved code point for a field of the given width
// sized by FieldWidth with needSentinel set: the all-ones value, which
// FieldWidth then guarantees is strictly greater than any real value in
// range.
func Sentinel(width int) uint64 {
	if width == 0 {
		return 0
	}
	return (uint64(1) << uint(width)) - 1
}

// SingleEntryBits returns the bit width of one packed catalog index, given
// the catalog's size k: SingleEntryBits(k) = ceil(log2(k+1)).
func SingleEntryBits(k int) int {
	return bits.Len64(uint64(k))
}

// LiveBitMaskBytes returns the byte size of a live-register bit mask of
// width n: ceil(n/8) bytes.
func LiveBitMaskBytes(n int) int {
	return (n + 7) / 8
}

// DexMapFixedHeaderBytes is the fixed header every non-empty dex-register
// map carries ahead of its live bit mask: a 16-bit little-endian count
// recording the map's N (number of dex registers it describes).
const DexMapFixedHeaderBytes = 2

// DexMapByteSize returns a dex-register map's serialized size given N (the
// number of dex registers it describes), the number of set bits in its
// live mask, and the catalog size it indexes into. It is 0 when N == 0.
func DexMapByteSize(n, liveBits, catalogLen int) int {
	if n == 0 {
		return 0
	}
	return DexMapFixedHeaderBytes + LiveBitMaskBytes(n) + (liveBits*SingleEntryBits(catalogLen)+7)/8
}

// Widths holds every variable-width field of the StackMap and InlineInfo
// records.
type Widths struct {
	DexPC                int
	NativePC             int
	RegisterMaskIndex    int
	StackMaskIndex       int
	InlineDepth          int
	DexRegisterMapOffset int
	InlineInfoIndex      int
	RegisterMaskValue    int
	StackMaskBits        int
	MethodIndexOrHigh    int
	ExtraDataOrLow       int
	InlineDexPC          int
}

// Layout records the non-header table byte offsets, in a fixed order:
// catalog, dex-register maps, inline info, register masks, stack masks,
// stack maps.
type Layout struct {
	Widths Widths

	HeaderBytes int

	CatalogOffset             int
	DexRegisterMapTableOffset int
	InlineInfoOffset          int
	RegisterMaskOffset        int
	StackMaskOffset           int
	StackMapOffset            int

	TotalBytes int
}

// StackMapRecordBytes returns the byte size of one fixed-width StackMap
// record under w (all bit-widths summed and rounded up to a byte
// boundary — the stack-map array is byte-aligned per-record so records
// can be indexed without a running bit cursor).
func (w Widths) StackMapRecordBytes() int {
	bitsTotal := w.DexPC + w.NativePC + w.RegisterMaskIndex + w.StackMaskIndex +
		w.InlineDepth + w.DexRegisterMapOffset + w.InlineInfoIndex
	return (bitsTotal + 7) / 8
}

// InlineInfoRecordBytes returns the byte size of one fixed-width
// InlineInfo record under w, plus one bit flag for "encodes method
// object" folded into the method/index field's byte alignment.
func (w Widths) InlineInfoRecordBytes() int {
	bitsTotal := 1 + w.MethodIndexOrHigh + w.ExtraDataOrLow + w.InlineDexPC + w.DexRegisterMapOffset
	return (bitsTotal + 7) / 8
}

// Report carries diagnostic statistics about a sized blob. Nothing in
// FillIn consults it; it exists purely as the kind of size/shape telemetry
// a compiler team wants to track across builds. The distribution stats are
// computed with gonum.org/v1/gonum/stat over the per-entry
// dex-register-map sizes collected during sizing.
type Report struct {
	StackMapCount         int
	StackMapsWithInline   int
	CatalogEntries        int
	DistinctRegisterMasks int
	DistinctStackMasks    int
	DexRegisterMapBytes   int
	MeanDexMapBytes       float64
	MaxDexMapBytes        float64
}

// BuildReport computes a Report from the per-entry dex-register-map sizes
// observed during sizing (entries with a same-as back-reference excluded,
// matching the set actually materialized in the blob).
func BuildReport(stackMapCount, stackMapsWithInline, catalogEntries, distinctRegMasks, distinctStackMasks int, materializedDexMapSizes []float64) Report {
	r := Report{
		StackMapCount:         stackMapCount,
		StackMapsWithInline:   stackMapsWithInline,
		CatalogEntries:        catalogEntries,
		DistinctRegisterMasks: distinctRegMasks,
		DistinctStackMasks:    distinctStackMasks,
	}
	total := 0.0
	for _, v := range materializedDexMapSizes {
		total += v
	}
	r.DexRegisterMapBytes = int(total)
	if len(materializedDexMapSizes) > 0 {
		r.MeanDexMapBytes = stat.Mean(materializedDexMapSizes, nil)
		max := materializedDexMapSizes[0]
		for _, v := range materializedDexMapSizes {
			if v > max {
				max = v
			}
		}
		r.MaxDexMapBytes = max
	}
	return r
}
