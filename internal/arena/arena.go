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

// Package arena provides a caller-owned pool of scratch buffers whose
// lifetime outlives a single encoder run. Built on bytedance/gopkg's
// size-classed mcache pool rather than plain make([]byte, n), so repeated
// encoder runs within one compiler process reuse backing storage across
// methods instead of pressuring the GC per compiled method.
package arena

import (
	"github.com/bytedance/gopkg/lang/mcache"
)

// Pool is the arena: a pooled source of scratch byte buffers used for the
// stack-mask intern buffer, preallocated to its final size before interning
// begins, and any other scratch storage the streaming phase needs before
// the final region size is known.
type Pool struct {
	live [][]byte
}

// NewPool returns an empty arena.
func NewPool() *Pool {
	return &Pool{}
}

// Alloc returns a zeroed buffer of exactly n bytes, owned by the arena
// until Release.
func (p *Pool) Alloc(n int) []byte {
	buf := mcache.Malloc(n)
	buf = buf[:n]
	for i := range buf {
		buf[i] = 0
	}
	p.live = append(p.live, buf)
	return buf
}

// Release returns every buffer the arena handed out back to the pool;
// nothing may reference arena memory afterward. The encoder never calls
// it: releasing is up to whoever owns the Pool.
func (p *Pool) Release() {
	for _, buf := range p.live {
		mcache.Free(buf)
	}
	p.live = nil
}
