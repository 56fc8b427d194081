// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import "unsafe"

// Fixed layout constants, testable per spec: the unit of alignment, the
// minimum OS request size, the minimum block gross size, and the empty
// region cache quota.
const (
	alignment     = 16    // A
	regionHdrPad  = 32    // REGION_HDR_PAD, a multiple of alignment
	blockHdrPad   = 48    // BLOCK_HDR_PAD, a multiple of alignment
	minBlockSize  = 64    // MIN_BLK
	minMapSize    = 65536 // M
	defaultCache  = 1     // SPAN_CACHE
	sizeofWord    = int(unsafe.Sizeof(uintptr(0)))
	magicFree     = 0xbebebebe
	magicInUse    = 0xdededede
	poisonByte    = 0xae
)

// The two low bits of a block's packed size-and-flags word are repurposed
// as flags; the size itself is always a multiple of alignment so those
// bits are otherwise unused.
const (
	flagInUse     = 1 << 0
	flagPrevInUse = 1 << 1
	flagMask      = flagInUse | flagPrevInUse
)

// roundUp rounds n up to the next multiple of m. m must be a power of 2.
func roundUp(n, m int) int { return (n + m - 1) &^ (m - 1) }

// maxInt returns the larger of a and b.
func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// grossSize computes the gross block size needed to serve a user request of
// n bytes: the (padded) block header plus the request rounded up to the
// alignment boundary, so that any following block header is automatically
// aligned. The result is clamped to minBlockSize, since a block smaller than
// that can't hold its own header and free-list links.
func grossSize(n int) int {
	return maxInt(blockHdrPad+roundUp(n, alignment), minBlockSize)
}
