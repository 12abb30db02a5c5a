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
	"fmt"

	"github.com/davecgh/go-spew/spew"

	"github.com/cloudwego/smstream/internal/bitvec"
	"github.com/cloudwego/smstream/internal/catalog"
	"github.com/cloudwego/smstream/internal/isa"
	"github.com/cloudwego/smstream/internal/reader"
)

// VerifyMismatch reports a readback verification failure: FillIn wrote a
// blob that does not decode back to what the builder recorded. Seeing
// this means the sizer or the writer has a bug — it should never happen
// against correct code, and a release build can disable the check
// entirely rather than pay to detect something that can't occur.
type VerifyMismatch struct {
	Where string
	Dump  string
}

func (e *VerifyMismatch) Error() string {
	return fmt.Sprintf("smstream: readback verification failed at %s:\n%s", e.Where, e.Dump)
}

func mismatch(where string, want, got interface{}) error {
	return &VerifyMismatch{
		Where: where,
		Dump:  spew.Sdump("want", want, "got", got),
	}
}

// verifyBlob re-decodes region with the standalone reader and checks every
// stack map and inline frame against b's recorded state.
func verifyBlob(b *Builder, region []byte) error {
	blob, err := reader.Parse(region, isa.Factor(b.set))
	if err != nil {
		return fmt.Errorf("smstream: readback verification: %w", err)
	}
	if n := blob.StackMapCount(); n != len(b.entries) {
		return mismatch("stack map count", len(b.entries), n)
	}

	for i, e := range b.entries {
		got := blob.StackMap(i)
		if got.DexPC != e.dexPC {
			return mismatch(fmt.Sprintf("stack_map[%d].dex_pc", i), e.dexPC, got.DexPC)
		}
		if got.NativePCOffset != e.nativePCRaw {
			return mismatch(fmt.Sprintf("stack_map[%d].native_pc_offset", i), e.nativePCRaw, got.NativePCOffset)
		}
		if got.RegisterMask != e.registerMask {
			return mismatch(fmt.Sprintf("stack_map[%d].register_mask", i), e.registerMask, got.RegisterMask)
		}
		if !stackMaskEqual(e.stackMask, got.StackMask, b.layout.Widths.StackMaskBits) {
			return mismatch(fmt.Sprintf("stack_map[%d].stack_mask", i), e.stackMask, got.StackMask)
		}
		if e.inliningDepth != got.InlineDepth {
			return mismatch(fmt.Sprintf("stack_map[%d].inlining_depth", i), e.inliningDepth, got.InlineDepth)
		}
		want := expectedDexMap(&e.regState, b.sharedIndex, b.catalog)
		if !dexMapEqual(want, got.DexRegisterMap) {
			return mismatch(fmt.Sprintf("stack_map[%d].dex_register_map", i), want, got.DexRegisterMap)
		}
		for k := 0; k < e.inliningDepth; k++ {
			f := b.inlineInfos[e.inlineStart+k]
			if k >= len(got.InlineFrames) {
				return mismatch(fmt.Sprintf("stack_map[%d].inline_info[%d]", i, k), f, nil)
			}
			gf := got.InlineFrames[k]
			if f.encodesPointer != gf.EncodesPointer || f.highOrIndex != gf.HighOrIndex || f.lowOrExtra != gf.LowOrExtra {
				return mismatch(fmt.Sprintf("stack_map[%d].inline_info[%d].method", i, k), f, gf)
			}
			wantDexPC := f.dexPC
			if wantDexPC != gf.DexPC {
				return mismatch(fmt.Sprintf("stack_map[%d].inline_info[%d].dex_pc", i, k), wantDexPC, gf.DexPC)
			}
			wantMap := expectedDexMap(&f.regState, b.sharedIndex, b.catalog)
			if !dexMapEqual(wantMap, gf.DexRegisterMap) {
				return mismatch(fmt.Sprintf("stack_map[%d].inline_info[%d].dex_register_map", i, k), wantMap, gf.DexRegisterMap)
			}
		}
	}
	return nil
}

func expectedDexMap(rs *regState, shared []int, cat *catalog.Catalog) map[int]catalog.Location {
	if rs.n == 0 || rs.liveCount() == 0 {
		return nil
	}
	out := make(map[int]catalog.Location)
	k := 0
	for pos := 0; pos < rs.n; pos++ {
		if rs.liveMask.IsBitSet(pos) {
			out[pos] = cat.At(shared[rs.start+k])
			k++
		}
	}
	return out
}

func dexMapEqual(a, b map[int]catalog.Location) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func stackMaskEqual(want *bitvec.Vector, got []byte, width int) bool {
	for i := 0; i < width; i++ {
		wantBit := want != nil && want.IsBitSet(i)
		gotBit := i/8 < len(got) && got[i/8]&(1<<uint(i%8)) != 0
		if wantBit != gotBit {
			return false
		}
	}
	return true
}
