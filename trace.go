// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import "go.uber.org/zap"

// lifecycle wraps a *zap.Logger (possibly nil) to report region-level
// events. It never influences control flow; it only observes it.
type lifecycle struct{ z *zap.Logger }

func (a *Allocator) logger() lifecycle {
	a.opts.check()
	return lifecycle{a.opts.Logger}
}

func (l lifecycle) regionMapped(size, liveRegions int) {
	if l.z == nil {
		return
	}
	l.z.Debug("region mapped",
		zap.Int("size", size),
		zap.Int("live_regions", liveRegions),
	)
}

func (l lifecycle) regionUnmapped(size, liveRegions int) {
	if l.z == nil {
		return
	}
	l.z.Debug("region unmapped",
		zap.Int("size", size),
		zap.Int("live_regions", liveRegions),
	)
}

func (l lifecycle) regionCached(liveRegions int) {
	if l.z == nil {
		return
	}
	l.z.Debug("empty region retained in cache", zap.Int("live_regions", liveRegions))
}
