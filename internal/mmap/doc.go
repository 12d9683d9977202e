// Package mmap maps local tensor frames read-only into memory.
//
//	m, err := mmap.Open("features.pmto")
//	if err != nil { ... }
//	defer m.Close()
//
//	_ = m.Advise(mmap.AccessSequential)
//	frame := m.Bytes()
//
// Unix systems use mmap(2) and madvise(2). Windows uses
// CreateFileMapping/MapViewOfFile and ignores access hints.
//
// A Mapping may be read concurrently. Close is idempotent; slices returned by
// Bytes must not be used after it returns.
package mmap
