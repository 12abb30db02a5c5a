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

// Package reader is the decode side of the blob format: a standalone
// consumer, symmetric to the writer, that knows nothing about the Builder
// that produced a blob. It is what the readback verifier is built on, and
// is also usable on its own by anything that only has the raw bytes (a
// debugger, an offline analysis tool).
package reader

import (
	"fmt"

	"github.com/cloudwego/smstream/internal/bitmem"
	"github.com/cloudwego/smstream/internal/catalog"
	"github.com/cloudwego/smstream/internal/sizer"
)

// DexPCNone mirrors the encoder's sentinel dex PC value.
const DexPCNone uint32 = 0xFFFFFFFF

// StackMap is one decoded safepoint record.
type StackMap struct {
	DexPC          uint32
	NativePCOffset uint32
	RegisterMask   uint32
	StackMask      []byte
	InlineDepth    int
	DexRegisterMap map[int]catalog.Location
	InlineFrames   []InlineInfoRecord
}

// InlineInfoRecord is one decoded inlined frame.
type InlineInfoRecord struct {
	EncodesPointer bool
	HighOrIndex    uint32
	LowOrExtra     uint32
	DexPC          uint32
	DexRegisterMap map[int]catalog.Location
}

// Blob is a parsed stack-map stream, ready for random-access decode of any
// stack map or inline frame it contains.
type Blob struct {
	region  []byte
	layout  sizer.Layout
	catalog []catalog.Location
	factor  uint32
}

// Parse decodes region's header and catalog. factor is the native-PC
// compression factor (isa.Factor(set)) used to decompress native_pc_offset
// fields; the blob format does not self-describe its instruction set.
func Parse(region []byte, factor uint32) (*Blob, error) {
	layout, headerLen := sizer.DecodeHeader(region)
	if layout.CatalogOffset != headerLen {
		return nil, fmt.Errorf("reader: header decoded to %d bytes but catalog_offset is %d", headerLen, layout.CatalogOffset)
	}
	if layout.TotalBytes != len(region) {
		return nil, fmt.Errorf("reader: header declares %d total bytes, region is %d", layout.TotalBytes, len(region))
	}
	catRegion := bitmem.Wrap(region).Slice(layout.CatalogOffset, layout.DexRegisterMapTableOffset-layout.CatalogOffset)
	return &Blob{
		region:  region,
		layout:  layout,
		catalog: catalog.Read(catRegion),
		factor:  factor,
	}, nil
}

// Layout returns the decoded field widths and table offsets.
func (b *Blob) Layout() sizer.Layout { return b.layout }

// Catalog returns the decoded location catalog, in interning order.
func (b *Blob) Catalog() []catalog.Location { return b.catalog }

// StackMapCount returns the number of stack map records in the blob.
func (b *Blob) StackMapCount() int {
	rb := b.layout.Widths.StackMapRecordBytes()
	if rb == 0 {
		return 0
	}
	return (b.layout.TotalBytes - b.layout.StackMapOffset) / rb
}

// isSentinel reports whether v, decoded from a field of the given width,
// is the reserved "absent" code point. A width of 0 means the field was
// never assigned any bits at all (sizer.FieldWidth's hasReal-false case),
// which only happens when every record in the blob is absent for this
// field — so width 0 always decodes as absent, regardless of v.
func isSentinel(v uint64, width int) bool {
	if width == 0 {
		return true
	}
	return v == sizer.Sentinel(width)
}

// StackMap decodes the i'th stack map record.
func (b *Blob) StackMap(i int) StackMap {
	w := b.layout.Widths
	recBytes := w.StackMapRecordBytes()
	rec := bitmem.Wrap(b.region).Slice(b.layout.StackMapOffset+i*recBytes, recBytes)

	off := 0
	dexPC := uint32(rec.LoadBits(off, w.DexPC))
	off += w.DexPC
	nativeCompressed := rec.LoadBits(off, w.NativePC)
	off += w.NativePC
	regMaskIdx := int(rec.LoadBits(off, w.RegisterMaskIndex))
	off += w.RegisterMaskIndex
	stackMaskIdx := int(rec.LoadBits(off, w.StackMaskIndex))
	off += w.StackMaskIndex
	depth := int(rec.LoadBits(off, w.InlineDepth))
	off += w.InlineDepth
	dexMapOff := rec.LoadBits(off, w.DexRegisterMapOffset)
	off += w.DexRegisterMapOffset
	inlineIdx := rec.LoadBits(off, w.InlineInfoIndex)

	sm := StackMap{
		DexPC:          dexPC,
		NativePCOffset: uint32(nativeCompressed) * b.factor,
		RegisterMask:   b.registerMaskAt(regMaskIdx),
		StackMask:      b.stackMaskAt(stackMaskIdx),
		InlineDepth:    depth,
		DexRegisterMap: b.readDexMap(dexMapOff, w.DexRegisterMapOffset),
	}
	if depth > 0 && !isSentinel(inlineIdx, w.InlineInfoIndex) {
		sm.InlineFrames = make([]InlineInfoRecord, depth)
		for k := 0; k < depth; k++ {
			sm.InlineFrames[k] = b.InlineInfo(int(inlineIdx) + k)
		}
	}
	return sm
}

func (b *Blob) registerMaskAt(idx int) uint32 {
	w := b.layout.Widths
	entryBytes := sizer.LiveBitMaskBytes(w.RegisterMaskValue)
	rec := bitmem.Wrap(b.region).Slice(b.layout.RegisterMaskOffset+idx*entryBytes, entryBytes)
	return uint32(rec.LoadBits(0, w.RegisterMaskValue))
}

func (b *Blob) stackMaskAt(idx int) []byte {
	w := b.layout.Widths
	entryBytes := sizer.LiveBitMaskBytes(w.StackMaskBits)
	if entryBytes == 0 {
		return nil
	}
	base := b.layout.StackMaskOffset + idx*entryBytes
	out := make([]byte, entryBytes)
	copy(out, b.region[base:base+entryBytes])
	return out
}

func (b *Blob) readDexMap(offset uint64, offsetWidth int) map[int]catalog.Location {
	if isSentinel(offset, offsetWidth) {
		return nil
	}
	base := b.layout.DexRegisterMapTableOffset + int(offset)
	buf := b.region
	n := int(buf[base]) | int(buf[base+1])<<8
	if n == 0 {
		return nil
	}
	liveMaskBytes := sizer.LiveBitMaskBytes(n)
	liveRegion := bitmem.Wrap(buf).Slice(base+2, liveMaskBytes)
	singleBits := sizer.SingleEntryBits(len(b.catalog))
	packedRegion := bitmem.Wrap(buf).Slice(base+2+liveMaskBytes, len(buf)-(base+2+liveMaskBytes))

	out := make(map[int]catalog.Location)
	k := 0
	for pos := 0; pos < n; pos++ {
		if liveRegion.LoadBit(pos) != 0 {
			idx := int(packedRegion.LoadBits(k*singleBits, singleBits))
			out[pos] = b.catalog[idx]
			k++
		}
	}
	return out
}

// InlineInfo decodes the inline-info record at index (an absolute index
// into the inline-info table, as recorded in a StackMap's inline_info
// field).
func (b *Blob) InlineInfo(index int) InlineInfoRecord {
	w := b.layout.Widths
	recBytes := w.InlineInfoRecordBytes()
	rec := bitmem.Wrap(b.region).Slice(b.layout.InlineInfoOffset+index*recBytes, recBytes)

	off := 0
	encodesPointer := rec.LoadBit(off) != 0
	off++
	highOrIndex := uint32(rec.LoadBits(off, w.MethodIndexOrHigh))
	off += w.MethodIndexOrHigh
	lowOrExtra := uint32(rec.LoadBits(off, w.ExtraDataOrLow))
	off += w.ExtraDataOrLow
	dexPCRaw := rec.LoadBits(off, w.InlineDexPC)
	off += w.InlineDexPC
	dexMapOff := rec.LoadBits(off, w.DexRegisterMapOffset)

	dexPC := uint32(dexPCRaw)
	if isSentinel(dexPCRaw, w.InlineDexPC) {
		dexPC = DexPCNone
	}
	return InlineInfoRecord{
		EncodesPointer: encodesPointer,
		HighOrIndex:    highOrIndex,
		LowOrExtra:     lowOrExtra,
		DexPC:          dexPC,
		DexRegisterMap: b.readDexMap(dexMapOff, w.DexRegisterMapOffset),
	}
}
