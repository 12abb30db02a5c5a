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

// Package catalog implements a deduplicated, append-only list of
// (kind, value) DexRegisterLocation pairs addressed by dense index.
package catalog

import (
	"github.com/cloudwego/smstream/internal/bitmem"
)

// Kind is the closed DexRegisterLocation kind enum. Only the short-form
// kinds are interned at this stage.
type Kind uint8

const (
	None Kind = iota
	Constant
	Register
	FpuRegister
	Stack
)

// Location is one (kind, value) pair.
type Location struct {
	Kind  Kind
	Value int32
}

// FixedHeaderBytes is the catalog's fixed-size header: a uint32 entry
// count.
const FixedHeaderBytes = 4

// Catalog is the interner: an append-only vector of unique Locations plus
// a reverse index. No deletion.
type Catalog struct {
	entries []Location
	index   map[Location]int
}

// New returns an empty Catalog.
func New() *Catalog {
	return &Catalog{index: make(map[Location]int)}
}

// Intern returns the dense index for loc, creating a new entry at the
// next position if loc has not been seen before. The returned index is
// stable for the life of the Catalog.
func (c *Catalog) Intern(loc Location) int {
	if i, ok := c.index[loc]; ok {
		return i
	}
	i := len(c.entries)
	c.entries = append(c.entries, loc)
	c.index[loc] = i
	return i
}

// Len returns the number of distinct interned locations.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// At returns the location stored at index i.
func (c *Catalog) At(i int) Location {
	return c.entries[i]
}

// EntrySize returns the number of bytes loc occupies when serialized:
// magnitude decides whether the value needs the short (1-byte) or long
// (4-byte) form.
func EntrySize(loc Location) int {
	if loc.Value >= -128 && loc.Value <= 127 {
		return 2
	}
	return 5
}

// ByteSize returns the catalog's total serialized size: FixedHeaderBytes
// plus the sum of each entry's EntrySize.
func (c *Catalog) ByteSize() int {
	n := FixedHeaderBytes
	for _, loc := range c.entries {
		n += EntrySize(loc)
	}
	return n
}

const longFlag = 0x80

// Write serializes the catalog into region starting at byte offset 0:
// FixedHeaderBytes (entry count) followed by each entry's tag byte and
// value bytes, in interning order.
func Write(c *Catalog, region bitmem.Region) {
	region.StoreBits(0, 32, uint64(len(c.entries)))
	off := FixedHeaderBytes
	for _, loc := range c.entries {
		off += writeEntry(region, off, loc)
	}
}

func writeEntry(region bitmem.Region, byteOffset int, loc Location) int {
	size := EntrySize(loc)
	tag := byte(loc.Kind)
	if size == 5 {
		tag |= longFlag
	}
	region.StoreByteRange(byteOffset, []byte{tag})
	if size == 5 {
		v := uint32(loc.Value)
		region.StoreByteRange(byteOffset+1, []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
	} else {
		region.StoreByteRange(byteOffset+1, []byte{byte(int8(loc.Value))})
	}
	return size
}

// Read decodes the catalog back out of region, for the reader and the
// readback verifier.
func Read(region bitmem.Region) []Location {
	count := int(region.LoadBits(0, 32))
	out := make([]Location, 0, count)
	off := FixedHeaderBytes
	buf := region.Bytes()
	for i := 0; i < count; i++ {
		tag := buf[off]
		kind := Kind(tag &^ longFlag)
		if tag&longFlag != 0 {
			v := uint32(buf[off+1]) | uint32(buf[off+2])<<8 | uint32(buf[off+3])<<16 | uint32(buf[off+4])<<24
			out = append(out, Location{Kind: kind, Value: int32(v)})
			off += 5
		} else {
			out = append(out, Location{Kind: kind, Value: int32(int8(buf[off+1]))})
			off += 2
		}
	}
	return out
}
