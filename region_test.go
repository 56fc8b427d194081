// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocRegionSizing(t *testing.T) {
	a := newTestAllocator()
	defer a.Close()

	r, err := a.allocRegion(grossSize(128))
	require.NoError(t, err)
	require.GreaterOrEqual(t, int(r.size), minMapSize)
	require.Zero(t, int(r.size)%a.pageSize())
	require.EqualValues(t, 0, r.blockCount)
	require.NotNil(t, r.freeList)
	require.Equal(t, int(r.size)-regionHdrPad, r.freeList.size())
	require.Same(t, a.regions, r)
}

func TestAllocRegionLarge(t *testing.T) {
	a := newTestAllocator()
	defer a.Close()

	want := grossSize(1024 * 1024)
	r, err := a.allocRegion(want)
	require.NoError(t, err)
	require.GreaterOrEqual(t, int(r.size), want)
	require.Zero(t, int(r.size)%a.pageSize())
}

func TestSeverRegionHeadMiddleTail(t *testing.T) {
	a := newTestAllocator()
	defer a.Close()

	r1, err := a.allocRegion(grossSize(64))
	require.NoError(t, err)
	r2, err := a.allocRegion(grossSize(64))
	require.NoError(t, err)
	r3, err := a.allocRegion(grossSize(64))
	require.NoError(t, err)

	// List is most-recent-first: r3, r2, r1.
	require.Same(t, r3, a.regions)

	// Sever the middle region: r3 and r1 should now be adjacent.
	a.severRegion(r2)
	require.Same(t, r3, a.regions)
	require.Same(t, r1, r3.next)
	require.Nil(t, r1.next)
	require.Same(t, r3, r1.prev)

	// Sever the head region: r1 becomes the new head.
	a.severRegion(r3)
	require.Same(t, r1, a.regions)
	require.Nil(t, r1.prev)
	require.Nil(t, r1.next)

	// Sever the sole remaining region: list becomes empty.
	a.severRegion(r1)
	require.Nil(t, a.regions)

	// All three were severed by hand rather than through freeRegion, so
	// their backing mappings are still live in a.live; release them
	// directly to avoid leaking for the rest of the test run.
	for _, r := range []*regionHeader{r1, r2, r3} {
		require.NoError(t, osUnmap(a.live[r]))
		delete(a.live, r)
	}
	a.liveRegions = 0
}

func TestEmptyRegionPolicyKeepsOneCached(t *testing.T) {
	a := New(Options{SpanCache: 1})
	defer a.Close()

	p1, err := a.Malloc(64)
	require.NoError(t, err)
	a.Free(p1)
	require.Equal(t, 1, a.liveRegions)

	p2, err := a.Malloc(minMapSize)
	require.NoError(t, err)
	require.Equal(t, 2, a.liveRegions)

	a.Free(p2)
	require.Equal(t, 1, a.liveRegions)
}

func TestSpanCacheZeroNormalizesToDefault(t *testing.T) {
	a := New(Options{SpanCache: 0}) // normalizes to spec default of 1
	defer a.Close()

	p, err := a.Malloc(64)
	require.NoError(t, err)
	a.Free(p)
	require.Equal(t, 1, a.liveRegions, "SpanCache<=0 normalizes to the documented default of 1")
}
