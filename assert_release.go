// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build release

package memory

// assert is a no-op under the release build tag; invariant checks carry a
// real cost on this allocator's hot path and production builds are meant
// to compile them out.
func assert(cond bool, msg string, args ...any) {}
