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
	"github.com/cloudwego/smstream/internal/bitvec"
	"github.com/cloudwego/smstream/internal/catalog"
)

// DexRegisterKind re-exports catalog.Kind at the stream layer so callers
// of this package never need to import internal/catalog directly.
type DexRegisterKind = catalog.Kind

const (
	KindNone        = catalog.None
	KindConstant    = catalog.Constant
	KindRegister    = catalog.Register
	KindFpuRegister = catalog.FpuRegister
	KindStack       = catalog.Stack
)

// DexPCNone is the sentinel dex PC value: the reserved "no dex PC" index
// and the top-level "-1" rejected at admission share one representation,
// both the all-ones uint32.
const DexPCNone uint32 = 0xFFFFFFFF

// MethodObject is BeginInlineInfoEntry's disambiguated method
// representation: either a split encoded pointer or a dex method index.
type MethodObject interface {
	isMethodObject()
}

// MethodRef is an encoded ArtMethod* split into two 32-bit halves.
type MethodRef struct {
	High uint32
	Low  uint32
}

func (MethodRef) isMethodObject() {}

// MethodIndex is a dex_method_index reference.
type MethodIndex uint32

func (MethodIndex) isMethodObject() {}

// regState is the dex-register bookkeeping shared by StackMapEntry and
// InlineInfoEntry: the cursor AddDexRegisterEntry advances, the slice of
// the shared index array the map owns, and the live-register bit mask.
type regState struct {
	n        int
	start    int
	cursor   int
	liveMask *bitvec.Vector
}

func newRegState(n, start int) regState {
	rs := regState{n: n, start: start}
	if n > 0 {
		rs.liveMask = bitvec.NewOfLength(n)
	}
	return rs
}

func (r *regState) liveCount() int {
	if r.liveMask == nil {
		return 0
	}
	return r.liveMask.PopCount()
}

// stackMapEntry is one safepoint.
type stackMapEntry struct {
	regState

	dexPC             uint32
	nativePCRaw       uint32
	nativePCCompressed uint32
	registerMask      uint32
	stackMask         *bitvec.Vector // nil if absent
	inliningDepth     int
	inlineStart       int

	rollingHash uint64
	sameAs      int // -1 = none

	registerMaskIndex int
	stackMaskIndex    int

	// assigned during PrepareForFillIn
	dexMapOffset     int64 // -1 until assigned; sentinel value assigned post-hoc
	inlineInfoIndex  int64 // -1 until assigned
}

// inlineInfoEntry is one inlined frame.
type inlineInfoEntry struct {
	regState

	method MethodObject
	dexPC  uint32

	encodesPointer bool
	highOrIndex    uint32
	lowOrExtra     uint32

	dexMapOffset int64
}
