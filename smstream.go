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

// Package smstream builds the stack-map (safepoint metadata) blob consumed
// by GC root enumeration, exception unwinding, stack walking and
// deoptimization.
//
// A Builder accepts one streaming pass over the stack maps produced for a
// single compiled method (BeginStackMapEntry / AddDexRegisterEntry /
// BeginInlineInfoEntry / EndInlineInfoEntry / EndStackMapEntry), then
// PrepareForFillIn sizes the whole blob and FillIn writes it into a
// caller-supplied region. The encoder is not safe for concurrent use and
// does not support partial or incremental emission: the entire blob is
// computed in one pass after every entry has been recorded.
package smstream

import (
	"github.com/cloudwego/smstream/internal/arena"
	"github.com/cloudwego/smstream/internal/isa"
	"github.com/cloudwego/smstream/internal/sizer"
	"github.com/cloudwego/smstream/internal/stream"
)

// DexRegisterKind enumerates the short-form DexRegisterLocation kinds
// interned by the location catalog.
type DexRegisterKind = stream.DexRegisterKind

const (
	KindNone        = stream.KindNone
	KindConstant    = stream.KindConstant
	KindRegister    = stream.KindRegister
	KindFpuRegister = stream.KindFpuRegister
	KindStack       = stream.KindStack
)

// InstructionSet selects the native-PC compression factor used when
// recording BeginStackMapEntry's native_pc_offset argument.
type InstructionSet = isa.InstructionSet

const (
	X86    = isa.X86
	X86_64 = isa.X86_64
	ARM    = isa.ARM
	ARM64  = isa.ARM64
	Thumb2 = isa.Thumb2
)

// MethodObject is the disambiguated representation of an inline frame's
// method: either a split encoded pointer or a dex method index.
type MethodObject = stream.MethodObject

// MethodRef models an encoded ArtMethod* split into its high/low 32-bit
// halves, the pointer-safe alternative to storing a raw pointer in the
// blob.
type MethodRef = stream.MethodRef

// MethodIndex is a dex_method_index reference, the non-pointer alternative
// to MethodRef.
type MethodIndex = stream.MethodIndex

// Builder is the public streaming API for constructing a stack-map blob.
// The zero value is not usable; construct one with NewBuilder.
type Builder struct {
	b *stream.Builder
}

// NewBuilder creates an empty Builder targeting the given instruction set.
// If set is the zero value, options.DefaultISA is used.
func NewBuilder(set InstructionSet) *Builder {
	if set == 0 {
		set = DefaultISA()
	}
	return &Builder{b: stream.NewBuilder(set, arena.NewPool(), VerifyOnFillIn)}
}

// BeginStackMapEntry opens a new stack map entry.
func (s *Builder) BeginStackMapEntry(dexPC uint32, nativePCOffset uint32, registerMask uint32, stackMask *BitSet, numDexRegisters, inliningDepth int) error {
	return s.b.BeginStackMapEntry(dexPC, nativePCOffset, registerMask, stackMask.toInternal(), numDexRegisters, inliningDepth)
}

// AddDexRegisterEntry records one dex-register location, either for the
// currently open stack map entry or, if an inline frame is open, for that
// frame.
func (s *Builder) AddDexRegisterEntry(kind DexRegisterKind, value int32) error {
	return s.b.AddDexRegisterEntry(kind, value)
}

// BeginInlineInfoEntry opens a new inline frame. method decides whether
// the frame is stored as a split pointer (MethodRef) or a dex method
// index (MethodIndex), supplied by the caller because only the compiler
// driving the encoder knows the policy (e.g. "is this method resolved
// yet?").
func (s *Builder) BeginInlineInfoEntry(method MethodObject, dexPC uint32, numDexRegisters int) error {
	return s.b.BeginInlineInfoEntry(method, dexPC, numDexRegisters)
}

// EndInlineInfoEntry closes the currently open inline frame.
func (s *Builder) EndInlineInfoEntry() error {
	return s.b.EndInlineInfoEntry()
}

// EndStackMapEntry closes the currently open stack map entry, computing
// its same-as back-reference.
func (s *Builder) EndStackMapEntry() error {
	return s.b.EndStackMapEntry()
}

// PrepareForFillIn sizes the blob and returns the number of bytes FillIn
// requires. Calling it again before FillIn returns the same size without
// re-sizing; after FillIn it returns an error.
func (s *Builder) PrepareForFillIn() (int, error) {
	return s.b.PrepareForFillIn()
}

// Report returns diagnostic statistics about the sized blob, valid after
// PrepareForFillIn. It carries no bit that FillIn depends on.
func (s *Builder) Report() sizer.Report {
	return s.b.Report()
}

// FillIn writes the complete blob into region, which must be exactly the
// size PrepareForFillIn returned. When VerifyOnFillIn was set at NewBuilder
// time (the default in every build), it immediately re-reads the blob and
// verifies it against the builder's recorded state.
func (s *Builder) FillIn(region []byte) error {
	return s.b.FillIn(region)
}
