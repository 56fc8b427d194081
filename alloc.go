// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memory implements a general-purpose dynamic memory allocator
// built from OS-mapped regions carved into physically adjacent blocks,
// with a boundary-tag scheme (block-size footers on free blocks) that
// makes in-place resize and neighbor discovery cheap.
//
// An Allocator's zero value is ready to use with spec defaults: a single
// empty region is cached across matched allocate/release cycles rather
// than unmapped and remapped every time.
package memory

import (
	"math"
	"unsafe"

	"go.uber.org/multierr"
)

// Allocator allocates and frees memory carved out of OS-mapped regions.
// Its zero value is ready for use. An Allocator is not safe for concurrent
// use by multiple goroutines without external synchronization; see the
// accompanying design notes.
type Allocator struct {
	opts Options

	regions     *regionHeader
	liveRegions int
	mmaps       int
	mappedBytes int

	cachedPageSize int

	// live retains, for every region whose header address we cannot
	// recompute a byte slice for (practically: all of them, since
	// region headers are interior pointers into the mapped slice), the
	// slice osMap returned, so osUnmap is handed back exactly what was
	// mapped.
	live map[*regionHeader][]byte
}

// New returns an Allocator configured by opts.
func New(opts Options) *Allocator {
	opts.check()
	return &Allocator{opts: opts}
}

// Malloc allocates size bytes and returns a pointer to the uninitialized
// payload, or nil if size is zero or the OS mapping request failed.
func (a *Allocator) Malloc(size int) (unsafe.Pointer, error) {
	a.opts.check()
	if size < 0 {
		panic("memory: negative Malloc size")
	}
	if size == 0 {
		return nil, nil
	}

	gross := grossSize(size)
	assert(gross >= minBlockSize, "Malloc: computed gross size below minimum block size")

	b := a.findBlock(gross)
	if b == nil {
		r, err := a.allocRegion(gross)
		if err != nil {
			return nil, err
		}
		b = r.freeList
	}

	b = allocBlock(gross, b)
	return b.payload(), nil
}

// Calloc allocates space for n elements of size s bytes each and zeroes the
// entire block payload area (not merely n*s bytes). Returns nil, nil on
// overflow of n*s, mirroring Malloc's nil-on-zero-size contract.
func (a *Allocator) Calloc(n, s int) (unsafe.Pointer, error) {
	if n < 0 || s < 0 {
		panic("memory: negative Calloc argument")
	}
	if n == 0 || s == 0 {
		return nil, nil
	}
	if n > math.MaxInt/s {
		return nil, nil
	}

	p, err := a.Malloc(n * s)
	if err != nil || p == nil {
		return nil, err
	}

	b := blockFromPayload(p)
	zero := unsafe.Slice((*byte)(p), b.payloadSize())
	for i := range zero {
		zero[i] = 0
	}
	return p, nil
}

// Free releases the memory at p, which must have been returned by Malloc,
// Calloc, or Realloc on the same Allocator. Free(nil) is a no-op.
func (a *Allocator) Free(p unsafe.Pointer) {
	a.opts.check()
	if p == nil {
		return
	}

	b := blockFromPayload(p)
	assert(!b.isFree(), "Free: double free")

	r := b.owner
	freeBlock(b)

	if r.blockCount == 0 && a.liveRegions > a.opts.SpanCache {
		if err := a.freeRegion(r); err != nil {
			panic(err)
		}
		return
	}

	b = coalesce(b)
	payload := b.payload()
	poison := unsafe.Slice((*byte)(payload), b.payloadSize()-sizeofWord)
	for i := range poison {
		poison[i] = poisonByte
	}

	if r.blockCount == 0 {
		a.logger().regionCached(a.liveRegions)
	}
}

// Owns reports whether p lies within a region managed by a, i.e. whether p
// is NOT a "foreign" pointer. The symbol interposition shim in shim/ uses
// this to decide whether to forward a release call to the next free()
// resolver instead of handling it here.
func (a *Allocator) Owns(p unsafe.Pointer) bool {
	for r := a.regions; r != nil; r = r.next {
		if r.contains(p) {
			return true
		}
	}
	return false
}

// UsableSize reports the number of bytes available in the block backing
// payload pointer p, which may be larger than what was originally
// requested.
func (a *Allocator) UsableSize(p unsafe.Pointer) int {
	if p == nil {
		return 0
	}
	return blockFromPayload(p).payloadSize()
}

// Close unconditionally returns every region (cached or not) to the OS and
// resets the Allocator to its zero value. It exists for test teardown, not
// for routine use: the empty-region cache policy is the steady-state
// behavior, Close bypasses it. Failures across multiple regions are
// aggregated rather than discarding all but the first.
func (a *Allocator) Close() error {
	var err error
	for r := a.regions; r != nil; {
		next := r.next
		if e := a.freeRegion(r); e != nil {
			err = multierr.Append(err, e)
		}
		r = next
	}
	*a = Allocator{}
	return err
}

// --- package-level default allocator, for drop-in-replacement ergonomics ---

var defaultAllocator Allocator

// Malloc allocates size bytes from the package-level default Allocator.
func Malloc(size int) (unsafe.Pointer, error) { return defaultAllocator.Malloc(size) }

// Free releases memory allocated by Malloc, Calloc, or Realloc on the
// package-level default Allocator.
func Free(p unsafe.Pointer) { defaultAllocator.Free(p) }

// Calloc allocates zeroed memory for n elements of size s bytes from the
// package-level default Allocator.
func Calloc(n, s int) (unsafe.Pointer, error) { return defaultAllocator.Calloc(n, s) }

// Realloc resizes the allocation at p to size bytes on the package-level
// default Allocator.
func Realloc(p unsafe.Pointer, size int) (unsafe.Pointer, error) {
	return defaultAllocator.Realloc(p, size)
}
