// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import "go.uber.org/zap"

// Options amend the behavior of a New allocator, following the same
// check-once-and-cache pattern as github.com/cznic/exp/dbm.Options: fields
// are read directly by callers, then normalized exactly once on first use.
type Options struct {
	// SpanCache is the number of empty regions retained rather than
	// unmapped immediately. Zero means the default of 1.
	SpanCache int

	// Logger receives structured lifecycle events (region map/unmap, empty
	// region retained in the cache). A nil Logger disables logging entirely.
	Logger *zap.Logger

	checked bool
}

func (o *Options) check() {
	if o.checked {
		return
	}
	if o.SpanCache <= 0 {
		o.SpanCache = defaultCache
	}
	o.checked = true
}
