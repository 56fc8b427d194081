// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !release

package memory

import "fmt"

// assert panics when cond is false, the Go stand-in for the C assert()
// that aborts the process on an invariant violation. Builds tagged
// "release" compile this out entirely.
func assert(cond bool, msg string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("memory: invariant violated: "+msg, args...))
	}
}
