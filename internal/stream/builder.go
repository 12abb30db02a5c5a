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

// Package stream implements the streaming producer API, backed by the
// catalog interner, mask interners and dex-map similarity index, and the
// sizer and writer that turn a completed stream into a blob.
package stream

import (
	"github.com/cloudwego/smstream/internal/arena"
	"github.com/cloudwego/smstream/internal/bitvec"
	"github.com/cloudwego/smstream/internal/catalog"
	"github.com/cloudwego/smstream/internal/dexmap"
	"github.com/cloudwego/smstream/internal/isa"
	"github.com/cloudwego/smstream/internal/masks"
	"github.com/cloudwego/smstream/internal/sizer"
)

func updateMax(dst *uint64, v uint64) {
	*dst = sizer.Max(*dst, v)
}

// Builder accumulates one compiled method's stack maps.
type Builder struct {
	set     isa.InstructionSet
	pool    *arena.Pool
	verify  bool

	catalog     *catalog.Catalog
	sharedIndex []int

	entries     []*stackMapEntry
	inlineInfos []*inlineInfoEntry

	regInterner   *masks.RegisterInterner
	stackInterner *masks.StackInterner
	dexIndex      *dexmap.Index

	maxDexPC              uint64
	maxNativePCCompressed uint64
	maxRegisterMaskValue  uint64
	maxStackSetBit        int64 // -1: no mask has ever had a bit set
	stackMapsWithInline   int
	maxInliningDepth      int

	maxMethodIndexOrHigh uint64
	maxExtraData         uint64
	maxInlineDexPC     int64 // -1: no inline frame has a real dex PC
	anyInlineDexPCReal bool

	current     *stackMapEntry
	openInline  *inlineInfoEntry

	prepared bool
	filledIn bool

	layout    sizer.Layout
	headerBuf []byte
	report    sizer.Report
}

// NewBuilder returns an empty Builder targeting instruction set set, using
// pool for scratch allocations. verifyOnFillIn controls whether FillIn
// re-reads and checks the blob it just wrote before returning.
func NewBuilder(set isa.InstructionSet, pool *arena.Pool, verifyOnFillIn bool) *Builder {
	return &Builder{
		set:            set,
		pool:           pool,
		verify:         verifyOnFillIn,
		catalog:        catalog.New(),
		regInterner:    masks.NewRegisterInterner(),
		dexIndex:       dexmap.New(),
		maxStackSetBit: -1,
		maxInlineDexPC: -1,
	}
}

// BeginStackMapEntry opens a new entry.
func (b *Builder) BeginStackMapEntry(dexPC, nativePCOffsetBytes, registerMask uint32, stackMask *bitvec.Vector, numDexRegisters, inliningDepth int) error {
	const op = "BeginStackMapEntry"
	if b.current != nil {
		return precond(op, "an entry is already open")
	}
	if dexPC == DexPCNone {
		return precond(op, "dex_pc must not be the sentinel value")
	}
	if numDexRegisters < 0 {
		return precond(op, "numDexRegisters must be nonnegative")
	}
	if inliningDepth < 0 {
		return precond(op, "inliningDepth must be nonnegative")
	}

	factor := isa.Factor(b.set)
	if nativePCOffsetBytes%factor != 0 {
		return precond(op, "native PC offset is not aligned to the instruction set's compression factor")
	}
	compressed := nativePCOffsetBytes / factor

	e := &stackMapEntry{
		regState:      newRegState(numDexRegisters, len(b.sharedIndex)),
		dexPC:         dexPC,
		nativePCRaw:   nativePCOffsetBytes,
		nativePCCompressed: compressed,
		registerMask:  registerMask,
		inliningDepth: inliningDepth,
		inlineStart:   len(b.inlineInfos),
		sameAs:        -1,
		dexMapOffset:  -1,
		inlineInfoIndex: -1,
	}
	if stackMask != nil {
		cp := bitvec.NewOfLength(stackMask.Len())
		for i := 0; i < stackMask.Len(); i++ {
			if stackMask.IsBitSet(i) {
				cp.SetBit(i)
			}
		}
		e.stackMask = cp
	}

	updateMax(&b.maxDexPC, uint64(dexPC))
	updateMax(&b.maxNativePCCompressed, uint64(compressed))
	updateMax(&b.maxRegisterMaskValue, uint64(registerMask))
	if e.stackMask != nil {
		b.maxStackSetBit = sizer.Max(b.maxStackSetBit, int64(e.stackMask.HighestSetBit()))
	}
	if inliningDepth > 0 {
		b.stackMapsWithInline++
	}
	b.maxInliningDepth = sizer.Max(b.maxInliningDepth, inliningDepth)

	e.registerMaskIndex = b.regInterner.Add(registerMask)

	b.current = e
	return nil
}

// AddDexRegisterEntry records one dex-register location for whichever
// context is open: the current inline frame if one is open, else the
// current stack map entry.
func (b *Builder) AddDexRegisterEntry(kind DexRegisterKind, value int32) error {
	const op = "AddDexRegisterEntry"
	var rs *regState
	var top *stackMapEntry
	if b.openInline != nil {
		rs = &b.openInline.regState
	} else if b.current != nil {
		rs = &b.current.regState
		top = b.current
	} else {
		return precond(op, "no stack map entry is open")
	}
	if rs.cursor >= rs.n {
		return precond(op, "dex-register cursor out of range")
	}

	if kind != KindNone {
		idx := b.catalog.Intern(catalog.Location{Kind: kind, Value: value})
		b.sharedIndex = append(b.sharedIndex, idx)
		rs.liveMask.SetBit(rs.cursor)
		if top != nil {
			top.rollingHash = foldHash(top.rollingHash, kind, value, rs.cursor)
		}
	}
	rs.cursor++
	return nil
}

// BeginInlineInfoEntry opens a new inline frame.
func (b *Builder) BeginInlineInfoEntry(method MethodObject, dexPC uint32, numDexRegisters int) error {
	const op = "BeginInlineInfoEntry"
	if b.openInline != nil {
		return precond(op, "an inline frame is already open")
	}
	if numDexRegisters < 0 {
		return precond(op, "numDexRegisters must be nonnegative")
	}
	b.openInline = &inlineInfoEntry{
		regState: newRegState(numDexRegisters, len(b.sharedIndex)),
		method:   method,
		dexPC:    dexPC,
		dexMapOffset: -1,
	}
	return nil
}

// EndInlineInfoEntry closes the open inline frame.
func (b *Builder) EndInlineInfoEntry() error {
	const op = "EndInlineInfoEntry"
	if b.openInline == nil {
		return precond(op, "no inline frame is open")
	}
	if b.openInline.cursor != b.openInline.n {
		return precond(op, "inline frame closed before its dex registers were fully populated")
	}

	f := b.openInline

	var highOrIndex, lowOrExtra uint64
	switch m := f.method.(type) {
	case MethodRef:
		f.encodesPointer = true
		f.highOrIndex = m.High
		f.lowOrExtra = m.Low
		highOrIndex = uint64(m.High)
		lowOrExtra = uint64(m.Low)
	case MethodIndex:
		f.encodesPointer = false
		f.highOrIndex = uint32(m)
		f.lowOrExtra = 0
		highOrIndex = uint64(m)
	default:
		return precond(op, "inline frame has no method object")
	}
	updateMax(&b.maxMethodIndexOrHigh, highOrIndex)
	updateMax(&b.maxExtraData, lowOrExtra)
	if f.dexPC != DexPCNone {
		b.anyInlineDexPCReal = true
		b.maxInlineDexPC = sizer.Max(b.maxInlineDexPC, int64(f.dexPC))
	}

	b.inlineInfos = append(b.inlineInfos, f)
	b.openInline = nil
	return nil
}

// EndStackMapEntry closes the current entry, computing its same-as
// back-reference.
func (b *Builder) EndStackMapEntry() error {
	const op = "EndStackMapEntry"
	if b.current == nil {
		return precond(op, "no stack map entry is open")
	}
	e := b.current
	if e.cursor != e.n {
		return precond(op, "stack map entry closed before its dex registers were fully populated")
	}
	if got := len(b.inlineInfos) - e.inlineStart; got != e.inliningDepth {
		return precond(op, "inline frame count does not match the inliningDepth given to BeginStackMapEntry")
	}

	idx := len(b.entries)
	for _, ci := range b.dexIndex.Candidates(e.rollingHash) {
		if haveSameDexMaps(e, b.entries[ci], b.sharedIndex) {
			e.sameAs = ci
			break
		}
	}
	if e.sameAs == -1 {
		b.dexIndex.Record(e.rollingHash, idx)
	}

	b.entries = append(b.entries, e)
	b.current = nil
	return nil
}

// haveSameDexMaps reports whether two entries' dex-register maps are
// bit-exact equal: both absent (N==0) is equal, exactly one absent is
// unequal, otherwise N, live mask and the element-wise catalog-index
// slice over the live positions must all match.
func haveSameDexMaps(a, b *stackMapEntry, shared []int) bool {
	aAbsent := a.n == 0
	bAbsent := b.n == 0
	if aAbsent && bAbsent {
		return true
	}
	if aAbsent != bAbsent {
		return false
	}
	if a.n != b.n {
		return false
	}
	if !a.liveMask.Equal(b.liveMask) {
		return false
	}
	la := a.liveCount()
	aSlice := shared[a.start : a.start+la]
	bSlice := shared[b.start : b.start+la]
	for i := range aSlice {
		if aSlice[i] != bSlice[i] {
			return false
		}
	}
	return true
}

// foldHash folds one live dex-register contribution into the running
// rolling hash. Any hash with the property that equal maps hash equally
// suffices; an FNV-1a-style xor-then-multiply fold over whole values with
// the 64-bit FNV prime is used here, the constants are not load-bearing,
// only the full-equality fallback is.
func foldHash(h uint64, kind DexRegisterKind, value int32, cursor int) uint64 {
	const prime = 1099511628211
	h ^= uint64(kind)
	h *= prime
	h ^= uint64(uint32(value))
	h *= prime
	h ^= uint64(cursor)
	h *= prime
	return h
}
