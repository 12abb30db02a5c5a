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
	"github.com/cloudwego/smstream/internal/bitmem"
	"github.com/cloudwego/smstream/internal/catalog"
	"github.com/cloudwego/smstream/internal/sizer"
)

// FillIn places the header, catalog, dex-register maps, inline-info table,
// register-mask table, stack-mask table and stack-map array into region,
// in that fixed order, using the sizing PrepareForFillIn already computed.
func (b *Builder) FillIn(region []byte) error {
	const op = "FillIn"
	if !b.prepared {
		return ErrNotPrepared
	}
	if b.filledIn {
		return ErrAlreadyFilled
	}
	if len(region) != b.layout.TotalBytes {
		return &ErrSizeMismatch{Want: b.layout.TotalBytes, Got: len(region)}
	}

	r := bitmem.Wrap(region)
	l := b.layout
	w := l.Widths
	singleBits := sizer.SingleEntryBits(b.catalog.Len())

	r.StoreByteRange(0, b.headerBuf)

	catalog.Write(b.catalog, r.Slice(l.CatalogOffset, l.DexRegisterMapTableOffset-l.CatalogOffset))

	dexMapRegion := r.Slice(l.DexRegisterMapTableOffset, l.InlineInfoOffset-l.DexRegisterMapTableOffset)
	for _, e := range b.entries {
		if e.sameAs != -1 {
			continue
		}
		writeDexMap(dexMapRegion, e.dexMapOffset, &e.regState, b.sharedIndex, singleBits, w.DexRegisterMapOffset)
	}
	for _, f := range b.inlineInfos {
		writeDexMap(dexMapRegion, f.dexMapOffset, &f.regState, b.sharedIndex, singleBits, w.DexRegisterMapOffset)
	}

	inlineRegion := r.Slice(l.InlineInfoOffset, l.RegisterMaskOffset-l.InlineInfoOffset)
	recBytes := w.InlineInfoRecordBytes()
	for i, f := range b.inlineInfos {
		rec := inlineRegion.Slice(i*recBytes, recBytes)
		off := 0
		if f.encodesPointer {
			rec.StoreBit(off, 1)
		} else {
			rec.StoreBit(off, 0)
		}
		off++
		rec.StoreBits(off, w.MethodIndexOrHigh, uint64(f.highOrIndex))
		off += w.MethodIndexOrHigh
		rec.StoreBits(off, w.ExtraDataOrLow, uint64(f.lowOrExtra))
		off += w.ExtraDataOrLow
		if f.dexPC == DexPCNone {
			rec.StoreBits(off, w.InlineDexPC, sizer.Sentinel(w.InlineDexPC))
		} else {
			rec.StoreBits(off, w.InlineDexPC, uint64(f.dexPC))
		}
		off += w.InlineDexPC
		rec.StoreBits(off, w.DexRegisterMapOffset, uint64(f.dexMapOffset))
	}

	regMaskRegion := r.Slice(l.RegisterMaskOffset, l.StackMaskOffset-l.RegisterMaskOffset)
	regMaskEntryBytes := sizer.LiveBitMaskBytes(w.RegisterMaskValue)
	for i := 0; i < b.regInterner.Len(); i++ {
		regMaskRegion.Slice(i*regMaskEntryBytes, regMaskEntryBytes).StoreBits(0, w.RegisterMaskValue, uint64(b.regInterner.At(i)))
	}

	stackMaskRegion := r.Slice(l.StackMaskOffset, l.StackMapOffset-l.StackMaskOffset)
	stackMaskEntryBytes := sizer.LiveBitMaskBytes(w.StackMaskBits)
	for i := 0; i < b.stackInterner.Len(); i++ {
		stackMaskRegion.StoreByteRange(i*stackMaskEntryBytes, b.stackInterner.At(i))
	}

	stackMapRegion := r.Slice(l.StackMapOffset, l.TotalBytes-l.StackMapOffset)
	recBytes = w.StackMapRecordBytes()
	for i, e := range b.entries {
		rec := stackMapRegion.Slice(i*recBytes, recBytes)
		off := 0
		rec.StoreBits(off, w.DexPC, uint64(e.dexPC))
		off += w.DexPC
		rec.StoreBits(off, w.NativePC, uint64(e.nativePCCompressed))
		off += w.NativePC
		rec.StoreBits(off, w.RegisterMaskIndex, uint64(e.registerMaskIndex))
		off += w.RegisterMaskIndex
		rec.StoreBits(off, w.StackMaskIndex, uint64(e.stackMaskIndex))
		off += w.StackMaskIndex
		rec.StoreBits(off, w.InlineDepth, uint64(e.inliningDepth))
		off += w.InlineDepth
		rec.StoreBits(off, w.DexRegisterMapOffset, uint64(e.dexMapOffset))
		off += w.DexRegisterMapOffset
		rec.StoreBits(off, w.InlineInfoIndex, uint64(e.inlineInfoIndex))
	}

	b.filledIn = true

	if b.verify {
		if err := verifyBlob(b, region); err != nil {
			return err
		}
	}
	return nil
}

// writeDexMap serializes one dex-register map's N, live bit mask and
// packed catalog indices at offset within region. A sentinel offset (the
// all-ones code point for the current field width, or a zero-width field)
// means "absent" and nothing is written.
func writeDexMap(region bitmem.Region, offset int64, rs *regState, shared []int, singleBits, offsetWidth int) {
	if rs.n == 0 || rs.liveCount() == 0 {
		return
	}
	if offsetWidth > 0 && offset == int64(sizer.Sentinel(offsetWidth)) {
		return
	}
	liveBits := rs.liveCount()
	size := sizer.DexMapFixedHeaderBytes + sizer.LiveBitMaskBytes(rs.n) + (liveBits*singleBits+7)/8
	base := int(offset)
	rec := region.Slice(base, size)
	rec.StoreBits(0, 16, uint64(rs.n))
	liveMaskBytes := sizer.LiveBitMaskBytes(rs.n)
	for i := 0; i < rs.n; i++ {
		if rs.liveMask.IsBitSet(i) {
			rec.StoreBit(16+i, 1)
		}
	}
	packedBase := 16 + liveMaskBytes*8
	la := rs.liveCount()
	for k := 0; k < la; k++ {
		rec.StoreBits(packedBase+k*singleBits, singleBits, uint64(shared[rs.start+k]))
	}
}
