// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build cgo && !windows

// Command shim builds a shared library exporting malloc/free/calloc/realloc,
// backed by a package-level memory.Allocator, for preloading ahead of libc
// (LD_PRELOAD on ELF, DYLD_INSERT_LIBRARIES on Mach-O; no interpose table
// is built).
// Build with -buildmode=c-shared.
//
// This is thin glue, not where the allocator's invariants live: see the
// memory package for the actual engine.
package main

/*
#include <dlfcn.h>
#include <stddef.h>

static void call_free(void *fn, void *p) {
	void (*f)(void *) = fn;
	f(p);
}
*/
import "C"

import (
	"sync"
	"unsafe"

	memory "github.com/mdsn/baby-malloc"
)

var engine memory.Allocator

var (
	fwdOnce sync.Once
	fwdFree unsafe.Pointer
)

// resolveForwardFree looks up the next free() in the dynamic loader's
// symbol order, the way glibc's free might end up calling back into
// whatever allocator it was linked against before this one.
func resolveForwardFree() {
	fwdOnce.Do(func() {
		name := C.CString("free")
		fwdFree = unsafe.Pointer(C.dlsym(C.RTLD_NEXT, name))
	})
}

//export malloc
func malloc(n C.size_t) unsafe.Pointer {
	p, err := engine.Malloc(int(n))
	if err != nil {
		return nil
	}
	return p
}

//export free
func free(p unsafe.Pointer) {
	if p == nil {
		return
	}

	// A pointer this allocator never handed out must have come from
	// whatever allocator previously sat in this process's free() slot;
	// forward it instead of handing it to engine.Free, which would trip
	// its double-free assertion on foreign metadata.
	if !engine.Owns(p) {
		resolveForwardFree()
		if fwdFree != nil {
			C.call_free(fwdFree, p)
		}
		return
	}

	engine.Free(p)
}

//export calloc
func calloc(n, s C.size_t) unsafe.Pointer {
	p, err := engine.Calloc(int(n), int(s))
	if err != nil {
		return nil
	}
	return p
}

//export realloc
func realloc(p unsafe.Pointer, s C.size_t) unsafe.Pointer {
	q, err := engine.Realloc(p, int(s))
	if err != nil {
		return nil
	}
	return q
}

func main() {}
