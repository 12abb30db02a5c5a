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

// Package isa carries the instruction-set enum and the native-PC
// compression factor it drives: the factor depends on instruction set
// alignment, either 1, 2 or 4.
package isa

import (
	"golang.org/x/arch/x86/x86asm"
)

// InstructionSet identifies the target architecture of the compiled
// method a stack map blob describes.
type InstructionSet uint8

const (
	_ InstructionSet = iota
	X86
	X86_64
	ARM
	ARM64
	Thumb2
)

func (s InstructionSet) String() string {
	switch s {
	case X86:
		return "x86"
	case X86_64:
		return "x86_64"
	case ARM:
		return "arm"
	case ARM64:
		return "arm64"
	case Thumb2:
		return "thumb2"
	default:
		return "unknown"
	}
}

// x86NopFactor is derived, not hardcoded: x86/x86-64 code offsets are
// stored compressed by the minimum possible instruction length, which
// x86asm reports for the canonical single-byte NOP (0x90).
var x86NopFactor = func() uint32 {
	inst, err := x86asm.Decode([]byte{0x90}, 64)
	if err != nil {
		return 1
	}
	return uint32(inst.Len)
}()

// Factor returns the native-PC compression factor for set: native byte
// offsets are divided by this factor before being stored as
// native_pc_offset, and multiplied back out on read.
func Factor(set InstructionSet) uint32 {
	switch set {
	case X86, X86_64:
		return x86NopFactor
	case ARM, Thumb2:
		return 2
	case ARM64:
		return 4
	default:
		panic("isa: unknown instruction set")
	}
}
