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
	"github.com/cloudwego/smstream/internal/masks"
	"github.com/cloudwego/smstream/internal/sizer"
)

// PrepareForFillIn is the sizing pass: it assigns every deferred offset
// (dex-register-map offsets, inline-info indices),
// interns stack masks into a buffer now preallocated to its final size,
// derives every field's bit width from the observed maxima, and folds the
// fixed-point table-offset computation to account for the header's own
// varint-encoded size. The sizing runs once: a repeated call before FillIn
// returns the size already computed, and a call after FillIn returns
// ErrAlreadyFilled.
func (b *Builder) PrepareForFillIn() (int, error) {
	const op = "PrepareForFillIn"
	if b.filledIn {
		return 0, ErrAlreadyFilled
	}
	if b.prepared {
		return b.layout.TotalBytes, nil
	}
	if b.current != nil {
		return 0, precond(op, "a stack map entry is still open")
	}
	if b.openInline != nil {
		return 0, precond(op, "an inline frame is still open")
	}

	catalogLen := b.catalog.Len()

	dexMapHasReal := false
	var dexMapMaxReal int64 = -1
	var materialized []float64
	nextOffset := 0

	assignDexMap := func(n, live int) int64 {
		if n == 0 || live == 0 {
			return -1
		}
		size := sizer.DexMapByteSize(n, live, catalogLen)
		off := int64(nextOffset)
		materialized = append(materialized, float64(size))
		nextOffset += size
		dexMapHasReal = true
		if off > dexMapMaxReal {
			dexMapMaxReal = off
		}
		return off
	}

	for _, e := range b.entries {
		if e.sameAs != -1 {
			e.dexMapOffset = b.entries[e.sameAs].dexMapOffset
			if e.dexMapOffset != -1 {
				dexMapHasReal = true
				if e.dexMapOffset > dexMapMaxReal {
					dexMapMaxReal = e.dexMapOffset
				}
			}
			continue
		}
		e.dexMapOffset = assignDexMap(e.n, e.liveCount())
	}
	for _, f := range b.inlineInfos {
		f.dexMapOffset = assignDexMap(f.n, f.liveCount())
	}
	totalDexMapBytes := nextOffset
	// The reader always treats the all-ones code point as "absent" for
	// this field, whether or not any entry in this particular blob is
	// absent. The sentinel must be reserved unconditionally, or a real
	// offset that happens to equal the all-ones pattern would decode back
	// as absent.
	dexMapOffsetWidth := sizer.FieldWidth(dexMapMaxReal, dexMapHasReal, true)
	dexMapSentinel := int64(sizer.Sentinel(dexMapOffsetWidth))

	var inlineHasReal bool
	var inlineMaxReal int64 = -1
	for _, e := range b.entries {
		if e.inliningDepth == 0 {
			e.inlineInfoIndex = -1
			continue
		}
		e.inlineInfoIndex = int64(e.inlineStart)
		inlineHasReal = true
		if e.inlineInfoIndex > inlineMaxReal {
			inlineMaxReal = e.inlineInfoIndex
		}
	}
	// Same reasoning as dexMapOffsetWidth above: the reader always treats
	// the all-ones code point as "no inline frames", so it must always be
	// reserved.
	inlineInfoIndexWidth := sizer.FieldWidth(inlineMaxReal, inlineHasReal, true)
	inlineInfoSentinel := int64(sizer.Sentinel(inlineInfoIndexWidth))

	for _, e := range b.entries {
		if e.dexMapOffset == -1 {
			e.dexMapOffset = dexMapSentinel
		}
		if e.inlineInfoIndex == -1 {
			e.inlineInfoIndex = inlineInfoSentinel
		}
	}
	for _, f := range b.inlineInfos {
		if f.dexMapOffset == -1 {
			f.dexMapOffset = dexMapSentinel
		}
	}

	stackMaskBitWidth := 0
	if b.maxStackSetBit >= 0 {
		stackMaskBitWidth = int(b.maxStackSetBit) + 1
	}
	entryBytes := sizer.LiveBitMaskBytes(stackMaskBitWidth)
	b.stackInterner = masks.NewStackInterner(b.pool, entryBytes, len(b.entries))
	for _, e := range b.entries {
		e.stackMaskIndex = b.stackInterner.Add(e.stackMask)
	}

	maxIndex := func(n int) uint64 {
		if n <= 0 {
			return 0
		}
		return uint64(n - 1)
	}

	w := sizer.Widths{
		DexPC:                sizer.WidthFor(b.maxDexPC),
		NativePC:              sizer.WidthFor(b.maxNativePCCompressed),
		RegisterMaskIndex:     sizer.WidthFor(maxIndex(b.regInterner.Len())),
		StackMaskIndex:        sizer.WidthFor(maxIndex(b.stackInterner.Len())),
		InlineDepth:           sizer.WidthFor(uint64(b.maxInliningDepth)),
		DexRegisterMapOffset:  dexMapOffsetWidth,
		InlineInfoIndex:       inlineInfoIndexWidth,
		RegisterMaskValue:     sizer.WidthFor(b.maxRegisterMaskValue),
		StackMaskBits:         stackMaskBitWidth,
		MethodIndexOrHigh:     sizer.WidthFor(b.maxMethodIndexOrHigh),
		ExtraDataOrLow:        sizer.WidthFor(b.maxExtraData),
		// Same reasoning: the reader always treats the all-ones code point
		// as "no dex PC" for an inline frame, so it must always be
		// reserved, whether or not this blob happens to have a frame that
		// needs it.
		InlineDexPC: sizer.FieldWidth(b.maxInlineDexPC, b.anyInlineDexPCReal, true),
	}

	catalogBytes := b.catalog.ByteSize()
	regMaskEntryBytes := sizer.LiveBitMaskBytes(w.RegisterMaskValue)
	regMaskTableBytes := b.regInterner.Len() * regMaskEntryBytes
	stackMaskTableBytes := b.stackInterner.Len() * entryBytes
	inlineInfoTableBytes := len(b.inlineInfos) * w.InlineInfoRecordBytes()
	stackMapArrayBytes := len(b.entries) * w.StackMapRecordBytes()

	// The header's own varint encoding grows with the magnitude of the
	// offsets it records, and CatalogOffset == len(header). Fold to a
	// fixed point: a header large enough for its own offsets never needs
	// more than a couple of iterations, since adding one byte to the
	// header only ever grows downstream offsets by one.
	headerBytes := 0
	var layout sizer.Layout
	var headerBuf []byte
	for i := 0; i < 8; i++ {
		layout = sizer.Layout{
			Widths:                    w,
			HeaderBytes:               headerBytes,
			CatalogOffset:             headerBytes,
			DexRegisterMapTableOffset: headerBytes + catalogBytes,
			InlineInfoOffset:          headerBytes + catalogBytes + totalDexMapBytes,
			RegisterMaskOffset:        headerBytes + catalogBytes + totalDexMapBytes + inlineInfoTableBytes,
			StackMaskOffset:           headerBytes + catalogBytes + totalDexMapBytes + inlineInfoTableBytes + regMaskTableBytes,
			StackMapOffset:            headerBytes + catalogBytes + totalDexMapBytes + inlineInfoTableBytes + regMaskTableBytes + stackMaskTableBytes,
		}
		layout.TotalBytes = layout.StackMapOffset + stackMapArrayBytes
		headerBuf = sizer.EncodeHeader(layout)
		if len(headerBuf) == headerBytes {
			break
		}
		headerBytes = len(headerBuf)
	}

	b.layout = layout
	b.headerBuf = headerBuf
	b.report = sizer.BuildReport(len(b.entries), b.stackMapsWithInline, catalogLen, b.regInterner.Len(), b.stackInterner.Len(), materialized)
	b.prepared = true
	return b.layout.TotalBytes, nil
}

// Report returns the diagnostic statistics computed by PrepareForFillIn.
func (b *Builder) Report() sizer.Report {
	return b.report
}
