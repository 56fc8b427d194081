// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

//go:build darwin || dragonfly || freebsd || linux || openbsd || solaris || netbsd

// Modifications (c) 2017 The Memory Authors.

package memory

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// osMap requests size bytes of anonymous, zero-initialized, read-write
// memory from the OS. size must already be a multiple of the page size.
func osMap(size int) ([]byte, error) {
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}

	if uintptr(unsafe.Pointer(&b[0]))&uintptr(osPageSize()-1) != 0 {
		panic("memory: mmap returned a non-page-aligned address")
	}

	return b, nil
}

// osUnmap returns a previously mapped region to the OS.
func osUnmap(b []byte) error {
	return unix.Munmap(b)
}

// osPageSize queries the OS page size.
func osPageSize() int { return os.Getpagesize() }
