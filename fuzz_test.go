// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import (
	"bytes"
	"math"
	"testing"
	"unsafe"

	"github.com/cznic/mathutil"
	"github.com/stretchr/testify/require"
)

const fuzzQuota = 4 << 20

var (
	fuzzMax    = 2 * 4096
	fuzzBigMax = 2 * minMapSize
)

// randAlloc mallocs size bytes and fills them with rng output, remembering
// the content for the later verify pass.
func randAlloc(t *testing.T, a *Allocator, rng *mathutil.FC32, size int) (unsafe.Pointer, []byte) {
	t.Helper()
	p, err := a.Malloc(size)
	require.NoError(t, err)
	require.NotNil(t, p)

	buf := unsafe.Slice((*byte)(p), size)
	want := make([]byte, size)
	for i := range buf {
		v := byte(rng.Next())
		buf[i] = v
		want[i] = v
	}
	return p, want
}

// fuzzAllocateThenVerify allocates until fuzzQuota bytes have been
// requested, then compares every allocation against the copy of its content
// saved at allocation time before freeing everything in shuffled order. This
// adapts the allocate/verify/shuffle/free pattern the region/block engine
// inherited its predecessor's fuzz coverage from.
func fuzzAllocateThenVerify(t *testing.T, max int) {
	a := newTestAllocator()
	defer a.Close()

	rng, err := mathutil.NewFC32(0, math.MaxInt32, true)
	require.NoError(t, err)
	rng.Seed(42)

	rem := fuzzQuota
	var ptrs []unsafe.Pointer
	var want [][]byte
	for rem > 0 {
		size := rng.Next()%max + 1
		rem -= size
		p, w := randAlloc(t, a, rng, size)
		ptrs = append(ptrs, p)
		want = append(want, w)
	}

	for i, p := range ptrs {
		got := unsafe.Slice((*byte)(p), len(want[i]))
		require.True(t, bytes.Equal(got, want[i]), "allocation %d corrupted", i)
	}

	// Free in a different order than allocated, exercising coalescing
	// against whatever neighbors happen to already be free.
	order := make([]int, len(ptrs))
	for i := range order {
		order[i] = i
	}
	for i := range order {
		j := rng.Next() % len(order)
		order[i], order[j] = order[j], order[i]
	}
	for _, i := range order {
		require.NotPanics(t, func() { a.Free(ptrs[i]) })
	}

	require.LessOrEqual(t, a.liveRegions, a.opts.SpanCache)
}

func TestFuzzAllocateVerifySmall(t *testing.T) { fuzzAllocateThenVerify(t, fuzzMax) }
func TestFuzzAllocateVerifyBig(t *testing.T)   { fuzzAllocateThenVerify(t, fuzzBigMax) }

// fuzzInterleaved randomly interleaves allocation and release, the way a
// long-running process actually drives an allocator, and checks that every
// still-live allocation's content survives unrelated churn around it.
func fuzzInterleaved(t *testing.T, max int) {
	a := newTestAllocator()
	defer a.Close()

	rng, err := mathutil.NewFC32(1, max, true)
	require.NoError(t, err)

	live := map[unsafe.Pointer][]byte{}
	rem := fuzzQuota
	for rem > 0 {
		switch rng.Next() % 3 {
		case 0, 1: // 2/3 allocate
			size := rng.Next()
			rem -= size
			p, w := randAlloc(t, a, rng, size)
			live[p] = w
		default: // 1/3 free one live allocation
			for p, w := range live {
				got := unsafe.Slice((*byte)(p), len(w))
				require.True(t, bytes.Equal(got, w), "corrupted heap before free")
				rem += len(w)
				a.Free(p)
				delete(live, p)
				break
			}
		}
	}

	for p, w := range live {
		got := unsafe.Slice((*byte)(p), len(w))
		require.True(t, bytes.Equal(got, w), "corrupted heap at teardown")
		a.Free(p)
	}

	require.LessOrEqual(t, a.liveRegions, a.opts.SpanCache)
}

func TestFuzzInterleavedSmall(t *testing.T) { fuzzInterleaved(t, fuzzMax) }
func TestFuzzInterleavedBig(t *testing.T)   { fuzzInterleaved(t, fuzzBigMax) }
