// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

// Modifications (c) 2017 The Memory Authors.

//go:build windows

package memory

import (
	"errors"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// mmap on Windows is a two-step process: CreateFileMapping gets a handle,
// then MapViewOfFile gets an actual pointer into memory.

// handleMap lets osUnmap recover the original handle from the memory
// address UnmapViewOfFile is given.
var handleMap = map[uintptr]windows.Handle{}

// osMap requests size bytes of anonymous, zero-initialized, read-write
// memory from the OS. size must already be a multiple of the page size.
func osMap(size int) ([]byte, error) {
	maxSizeHigh := uint32(int64(size) >> 32)
	maxSizeLow := uint32(int64(size) & 0xFFFFFFFF)
	h, err := windows.CreateFileMapping(windows.Handle(^uintptr(0)), nil, windows.PAGE_READWRITE, maxSizeHigh, maxSizeLow, nil)
	if h == 0 {
		return nil, os.NewSyscallError("CreateFileMapping", err)
	}

	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if addr == 0 {
		return nil, os.NewSyscallError("MapViewOfFile", err)
	}

	if addr&uintptr(osPageSize()-1) != 0 {
		panic("memory: mmap returned a non-page-aligned address")
	}

	handleMap[addr] = h
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

// osUnmap returns a previously mapped region to the OS and closes its
// mapping handle. The handleMap entry is removed after UnmapViewOfFile with
// no lock around the pair, so, like the rest of the allocator, this is not
// safe for concurrent use.
func osUnmap(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&b[0]))

	if err := windows.UnmapViewOfFile(addr); err != nil {
		return err
	}

	handle, ok := handleMap[addr]
	if !ok {
		return errors.New("memory: unmap of unknown base address")
	}
	delete(handleMap, addr)

	return os.NewSyscallError("CloseHandle", windows.CloseHandle(handle))
}

// osPageSize queries the OS page size.
func osPageSize() int {
	var si windows.SystemInfo
	windows.GetSystemInfo(&si)
	return int(si.PageSize)
}
