// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import "unsafe"

// blockHeader is the bookkeeping stamped at the front of every block,
// in-use or free. A free block additionally carries a footer word (a copy
// of its size) at its last machine word, so its physical predecessor can be
// located by walking backward; see footer()/prevFooter().
//
// In-memory size is smaller than blockHdrPad; the payload begins at
// blockHdrPad regardless, matching the C layout this is modeled on.
type blockHeader struct {
	sizeAndFlags int64
	prev, next   *blockHeader // free-list links, meaningful only when free
	owner        *regionHeader
	magic        uint32
}

func blockAt(p unsafe.Pointer) *blockHeader { return (*blockHeader)(p) }

func (b *blockHeader) size() int      { return int(b.sizeAndFlags &^ flagMask) }
func (b *blockHeader) isFree() bool   { return b.sizeAndFlags&flagInUse == 0 }
func (b *blockHeader) isPrevFree() bool { return b.sizeAndFlags&flagPrevInUse == 0 }

func (b *blockHeader) setSize(n int) {
	b.sizeAndFlags = int64(n) | (b.sizeAndFlags & flagMask)
}
func (b *blockHeader) setFree()       { b.sizeAndFlags &^= flagInUse }
func (b *blockHeader) setInUse()      { b.sizeAndFlags |= flagInUse }
func (b *blockHeader) setPrevFree()   { b.sizeAndFlags &^= flagPrevInUse }
func (b *blockHeader) setPrevInUse()  { b.sizeAndFlags |= flagPrevInUse }

// footer returns a pointer to the size word replicated at the tail of a
// free block.
func (b *blockHeader) footer() *int64 {
	return (*int64)(unsafe.Add(unsafe.Pointer(b), b.size()-sizeofWord))
}

// prevFooter returns a pointer to the footer word of the block physically
// preceding b, valid only when that predecessor is free.
func (b *blockHeader) prevFooter() *int64 {
	return (*int64)(unsafe.Add(unsafe.Pointer(b), -sizeofWord))
}

// payload returns the user-visible pointer for an (in-use) block.
func (b *blockHeader) payload() unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(b), blockHdrPad)
}

// payloadSize returns the number of bytes usable by the caller, i.e. the
// gross size minus header padding.
func (b *blockHeader) payloadSize() int { return b.size() - blockHdrPad }

// blockFromPayload recovers the block header from a payload pointer handed
// back to a caller.
func blockFromPayload(p unsafe.Pointer) *blockHeader {
	return blockAt(unsafe.Add(p, -blockHdrPad))
}

// initBlock stamps a header at p for a block of the given size, owned by r.
// Free-list links are cleared; the free/in-use flag is left to the caller.
// initBlock stamps size/owner/links at p without touching the PREV_IN_USE
// bit already present in memory at p: a fresh region's underlying pages are
// OS-zeroed (predecessor implicitly "free"/boundary), and a re-stamped
// existing block's PREV_IN_USE reflects its physical predecessor, which
// this call does not change. setSize preserves whatever flag bits are
// already in the word it's overwriting.
func initBlock(p unsafe.Pointer, r *regionHeader, size int) *blockHeader {
	b := blockAt(p)
	b.setSize(size)
	b.owner = r
	b.prev = nil
	b.next = nil
	return b
}

// initFreeBlock stamps a free-block header at p: size, owner, cleared
// links, footer, and debug magic.
func initFreeBlock(p unsafe.Pointer, r *regionHeader, size int) *blockHeader {
	b := initBlock(p, r, size)
	b.setFree()
	*b.footer() = int64(size)
	b.magic = magicFree
	return b
}

// initUsedBlock stamps an in-use block header at p. No footer is
// maintained for in-use blocks.
func initUsedBlock(p unsafe.Pointer, r *regionHeader, size int) *blockHeader {
	b := initBlock(p, r, size)
	b.setInUse()
	b.magic = magicInUse
	return b
}

// nextAdjacent returns the block physically following b, or nil if b is the
// last block in its region.
func nextAdjacent(b *blockHeader) *blockHeader {
	next := uintptr(unsafe.Pointer(b)) + uintptr(b.size())
	if next >= b.owner.end() {
		return nil
	}
	return blockAt(unsafe.Pointer(next))
}

// prevAdjacent returns the block physically preceding b by reading its
// footer, valid only when b's PREV_IN_USE flag is clear. Returns nil if b
// is the first block in its region.
func prevAdjacent(b *blockHeader) *blockHeader {
	assert(b.isPrevFree(), "prevAdjacent: predecessor is not free")

	footerAddr := uintptr(unsafe.Pointer(b)) - uintptr(sizeofWord)
	regionStart := uintptr(unsafe.Pointer(b.owner)) + uintptr(regionHdrPad)
	if footerAddr < regionStart {
		return nil
	}

	prevSize := *b.prevFooter()
	return blockAt(unsafe.Pointer(uintptr(unsafe.Pointer(b)) - uintptr(prevSize)))
}

// prepend inserts free block b at the head of its owner's free list.
func prepend(b *blockHeader) {
	assert(b.isFree(), "prepend: block is not free")
	r := b.owner
	b.next = r.freeList
	if b.next != nil {
		b.next.prev = b
	}
	b.prev = nil
	r.freeList = b
}

// sever unlinks free block b from its owner's free list.
func sever(b *blockHeader) {
	r := b.owner
	if b.prev == nil {
		r.freeList = b.next
		if r.freeList != nil {
			r.freeList.prev = nil
		}
	} else {
		b.prev.next = b.next
		if b.next != nil {
			b.next.prev = b.prev
		}
	}
	b.prev = nil
	b.next = nil
}

// split takes the last gross bytes of free block b to form a new in-use
// block, shrinking b in place. Precondition: b is free and size(b) > gross.
func split(b *blockHeader, gross int) *blockHeader {
	assert(b.isFree() && b.size() > gross, "split: block not free or too small")

	newAddr := unsafe.Add(unsafe.Pointer(b), b.size()-gross)
	remaining := b.size() - gross
	b.setSize(remaining)
	*b.footer() = int64(remaining)

	c := initUsedBlock(newAddr, b.owner, gross)
	c.setPrevFree()
	return c
}

// takeWhole consumes all of free block b, re-stamping it in-use without
// shrinking it. Used when splitting would leave a residual smaller than
// minBlockSize.
func takeWhole(b *blockHeader) *blockHeader {
	size := b.size()
	r := b.owner
	sever(b)
	return initUsedBlock(unsafe.Pointer(b), r, size)
}

// allocBlock serves an allocation request from free block b: it decides
// between split and takeWhole by the residual-size test, updates the
// successor's PREV_IN_USE flag, and bumps the owner's block count.
func allocBlock(gross int, b *blockHeader) *blockHeader {
	assert(b.isFree(), "allocBlock: block is not free")

	var out *blockHeader
	if b.size()-gross < minBlockSize {
		out = takeWhole(b)
	} else {
		out = split(b, gross)
	}

	out.owner.blockCount++
	if next := nextAdjacent(out); next != nil {
		next.setPrevInUse()
	}
	return out
}

// freeBlock re-stamps b as free, prepends it to its owner's free list, and
// tells the physically next block that its predecessor is now free.
func freeBlock(b *blockHeader) {
	r := b.owner
	assert(r.blockCount > 0, "freeBlock: owner block count already zero")
	r.blockCount--

	initFreeBlock(unsafe.Pointer(b), r, b.size())
	prepend(b)

	if next := nextAdjacent(b); next != nil {
		next.setPrevFree()
	}
}

// coalescePair merges free block n into free block b, which must be n's
// physical predecessor. n ceases to exist as a block afterward.
func coalescePair(b, n *blockHeader) {
	assert(nextAdjacent(b) == n, "coalescePair: n is not b's physical successor")
	assert(b.isFree() && n.isFree(), "coalescePair: both blocks must be free")

	sever(n)
	size := b.size() + n.size()
	b.setSize(size)
	*b.footer() = int64(size)
}

// coalesce merges free block b with its immediate physical neighbors, if
// they are also free, and returns the (possibly different) surviving
// block. Must only be called on a free block.
func coalesce(b *blockHeader) *blockHeader {
	assert(b.isFree(), "coalesce: block is not free")

	if next := nextAdjacent(b); next != nil && next.isFree() {
		coalescePair(b, next)
	}

	if b.isPrevFree() {
		if prev := prevAdjacent(b); prev != nil {
			coalescePair(prev, b)
			b = prev
		}
	}

	return b
}

// findBlock performs a first-fit search across every region's free list,
// most-recently-mapped region first, returning the first free block with
// size >= gross, or nil if none fits.
func (a *Allocator) findBlock(gross int) *blockHeader {
	for r := a.regions; r != nil; r = r.next {
		for b := r.freeList; b != nil; b = b.next {
			if b.size() >= gross {
				return b
			}
		}
	}
	return nil
}
