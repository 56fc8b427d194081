// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import "unsafe"

// Realloc changes the size of the allocation at p to size bytes, following
// a five-way case analysis:
//
//  1. p is nil: equivalent to Malloc(size).
//  2. size == 0, or the new gross size is smaller than the current block's:
//     truncate in place.
//  3. the new gross size equals the current block's: return p unchanged.
//  4. the new gross size is larger and the physically next block is free
//     and large enough to absorb the shortfall: extend in place.
//  5. otherwise: allocate, copy, release.
//
// The returned pointer may equal p. Existing data is preserved up to
// min(old size, new size); extended space is not zeroed.
func (a *Allocator) Realloc(p unsafe.Pointer, size int) (unsafe.Pointer, error) {
	if p == nil {
		return a.Malloc(size)
	}

	b := blockFromPayload(p)
	assert(!b.isFree(), "Realloc: block is not in use")

	gross := grossSize(size)

	switch {
	case gross == b.size():
		return p, nil
	case size == 0 || gross < b.size():
		return a.reallocTruncate(b, size), nil
	}

	if next := nextAdjacent(b); next != nil && next.isFree() && next.size() >= gross-b.size() {
		return a.reallocExtend(b, next, gross), nil
	}

	q, err := a.Malloc(size)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, nil
	}

	copySize := b.payloadSize()
	if size < copySize {
		copySize = size
	}
	copy(unsafe.Slice((*byte)(q), copySize), unsafe.Slice((*byte)(p), copySize))
	a.Free(p)
	return q, nil
}

// reallocTruncate shrinks b to gross(size) bytes in place; grossSize
// already clamps size == 0 to minBlockSize. If the residual space would be
// smaller than minBlockSize, it does nothing and returns the unchanged
// payload.
func (a *Allocator) reallocTruncate(b *blockHeader, size int) unsafe.Pointer {
	gross := grossSize(size)

	if b.size()-gross < minBlockSize {
		return b.payload()
	}

	residual := b.size() - gross
	b.setSize(gross)

	nb := unsafe.Add(unsafe.Pointer(b), gross)
	free := initFreeBlock(nb, b.owner, residual)
	prepend(free)
	free.setPrevInUse()

	if next := nextAdjacent(free); next != nil {
		next.setPrevFree()
		coalesce(free)
	}

	return b.payload()
}

// reallocExtend grows b to absorb all or part of its free physical
// successor n.
func (a *Allocator) reallocExtend(b, n *blockHeader, gross int) unsafe.Pointer {
	leftover := b.size() + n.size() - gross

	if leftover < minBlockSize {
		sever(n)
		b.setSize(b.size() + n.size())
		if next := nextAdjacent(b); next != nil {
			next.setPrevInUse()
		}
		return b.payload()
	}

	sever(n)
	b.setSize(gross)

	nb := unsafe.Add(unsafe.Pointer(b), gross)
	free := initFreeBlock(nb, b.owner, leftover)
	prepend(free)
	free.setPrevInUse()

	return b.payload()
}
