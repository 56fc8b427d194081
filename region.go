// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import "unsafe"

// regionHeader is the bookkeeping stamped at offset 0 of every OS-mapped
// region. On 64-bit targets its fields (two int32s and three pointers) add
// up to exactly regionHdrPad bytes; blocks begin at regionHdrPad regardless,
// same as the C struct it is modeled on (see
// _examples/original_source/internal.h).
type regionHeader struct {
	size       int32
	blockCount int32
	prev, next *regionHeader
	freeList   *blockHeader
}

// regionAt casts a raw base address to a *regionHeader.
func regionAt(p unsafe.Pointer) *regionHeader { return (*regionHeader)(p) }

// firstBlock returns the first block header slot following a region header,
// accounting for padding.
func (r *regionHeader) firstBlock() *blockHeader {
	return blockAt(unsafe.Add(unsafe.Pointer(r), regionHdrPad))
}

// end returns the address one past the last byte owned by the region.
func (r *regionHeader) end() uintptr {
	return uintptr(unsafe.Pointer(r)) + uintptr(r.size)
}

// contains reports whether p lies within the region's mapped byte range:
// R <= p < R + R.size, a strict upper bound so an address one past the end
// of the mapping is correctly treated as foreign.
func (r *regionHeader) contains(p unsafe.Pointer) bool {
	base := uintptr(unsafe.Pointer(r))
	up := uintptr(p)
	return base <= up && up < r.end()
}

// allocRegion requests enough pages from the OS to hold a block of gross
// bytes plus the region header, rounded up to the OS page size and to the
// minimum OS request size M. On success, the region is prepended to the
// allocator's region list and stamped with one free block spanning the
// entire post-header area.
func (a *Allocator) allocRegion(gross int) (*regionHeader, error) {
	size := maxInt(gross+regionHdrPad, minMapSize)
	size = roundUp(size, a.pageSize())

	base, err := osMap(size)
	if err != nil {
		return nil, err
	}

	a.mmaps++
	a.mappedBytes += size

	r := regionAt(unsafe.Pointer(&base[0]))
	r.size = int32(size)
	r.blockCount = 0
	r.next = a.regions
	if r.next != nil {
		r.next.prev = r
	}
	r.prev = nil
	a.regions = r
	if a.live == nil {
		a.live = map[*regionHeader][]byte{}
	}
	a.live[r] = base
	a.liveRegions++

	freeSize := size - regionHdrPad
	r.freeList = initFreeBlock(unsafe.Pointer(r.firstBlock()), r, freeSize)

	a.logger().regionMapped(size, a.liveRegions)
	return r, nil
}

// severRegion unlinks r from the allocator's region list.
func (a *Allocator) severRegion(r *regionHeader) {
	if r == a.regions {
		a.regions = r.next
		if a.regions != nil {
			a.regions.prev = nil
		}
		r.next = nil
		return
	}

	assert(r.prev != nil, "severRegion: region not found in list head and has no prev")
	r.prev.next = r.next
	if r.next != nil {
		r.next.prev = r.prev
	}
	r.prev = nil
	r.next = nil
}

// freeRegion severs r from the region list and returns its memory to the
// OS.
func (a *Allocator) freeRegion(r *regionHeader) error {
	a.severRegion(r)
	a.liveRegions--
	a.mmaps--
	a.mappedBytes -= int(r.size)

	base, ok := a.live[r]
	delete(a.live, r)
	if !ok {
		base = unsafe.Slice((*byte)(unsafe.Pointer(r)), int(r.size))
	}

	a.logger().regionUnmapped(int(r.size), a.liveRegions)
	return osUnmap(base)
}

// pageSize lazily queries and caches the OS page size on first use.
func (a *Allocator) pageSize() int {
	if a.cachedPageSize == 0 {
		a.cachedPageSize = osPageSize()
	}
	return a.cachedPageSize
}
