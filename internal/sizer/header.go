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

// The header is the encoding descriptor: a compact varint-packed record of
// every field's bit width, the six non-header table byte offsets and the
// total blob size. It
// is written once, by EncodeHeader, into the builder's internal buffer at
// PrepareForFillIn time, and copied verbatim to offset 0 by the writer.

func putUvarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func getUvarint(buf []byte) (uint64, int) {
	var v uint64
	var shift uint
	for i, b := range buf {
		if b < 0x80 {
			v |= uint64(b) << shift
			return v, i + 1
		}
		v |= uint64(b&0x7f) << shift
		shift += 7
	}
	return 0, len(buf)
}

func headerFields(l Layout) []uint64 {
	w := l.Widths
	return []uint64{
		uint64(w.DexPC), uint64(w.NativePC), uint64(w.RegisterMaskIndex),
		uint64(w.StackMaskIndex), uint64(w.InlineDepth), uint64(w.DexRegisterMapOffset),
		uint64(w.InlineInfoIndex), uint64(w.RegisterMaskValue), uint64(w.StackMaskBits),
		uint64(w.MethodIndexOrHigh), uint64(w.ExtraDataOrLow), uint64(w.InlineDexPC),
		uint64(l.CatalogOffset), uint64(l.DexRegisterMapTableOffset), uint64(l.InlineInfoOffset),
		uint64(l.RegisterMaskOffset), uint64(l.StackMaskOffset), uint64(l.StackMapOffset),
		uint64(l.TotalBytes),
	}
}

// EncodeHeader serializes l's widths and table offsets as a sequence of
// ULEB128 varints, in a fixed field order.
func EncodeHeader(l Layout) []byte {
	var buf []byte
	for _, f := range headerFields(l) {
		buf = putUvarint(buf, f)
	}
	return buf
}

// DecodeHeader parses a header previously produced by EncodeHeader,
// returning the reconstructed Layout and the number of bytes consumed.
func DecodeHeader(buf []byte) (Layout, int) {
	var l Layout
	vals := make([]uint64, 19)
	off := 0
	for i := range vals {
		v, n := getUvarint(buf[off:])
		vals[i] = v
		off += n
	}
	l.Widths = Widths{
		DexPC:                int(vals[0]),
		NativePC:             int(vals[1]),
		RegisterMaskIndex:    int(vals[2]),
		StackMaskIndex:       int(vals[3]),
		InlineDepth:          int(vals[4]),
		DexRegisterMapOffset: int(vals[5]),
		InlineInfoIndex:      int(vals[6]),
		RegisterMaskValue:    int(vals[7]),
		StackMaskBits:        int(vals[8]),
		MethodIndexOrHigh:    int(vals[9]),
		ExtraDataOrLow:       int(vals[10]),
		InlineDexPC:          int(vals[11]),
	}
	l.CatalogOffset = int(vals[12])
	l.DexRegisterMapTableOffset = int(vals[13])
	l.InlineInfoOffset = int(vals[14])
	l.RegisterMaskOffset = int(vals[15])
	l.StackMaskOffset = int(vals[16])
	l.StackMapOffset = int(vals[17])
	l.TotalBytes = int(vals[18])
	l.HeaderBytes = off
	return l, off
}
