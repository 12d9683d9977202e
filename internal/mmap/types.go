package mmap

import "errors"

// AccessPattern is a hint to the kernel about upcoming reads.
type AccessPattern int

const (
	// AccessDefault gives no advice.
	AccessDefault AccessPattern = iota
	// AccessSequential announces a front-to-back scan, as in frame decoding.
	AccessSequential
	// AccessRandom announces scattered reads.
	AccessRandom
	// AccessWillNeed asks the kernel to prefetch the mapping.
	AccessWillNeed
	// AccessDontNeed allows the kernel to drop the cached pages.
	AccessDontNeed
)

var (
	// ErrClosed is returned when a closed mapping is accessed.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned for files whose size cannot be mapped.
	ErrInvalidSize = errors.New("mmap: invalid file size")
	// ErrInvalidOffset is returned for negative read offsets.
	ErrInvalidOffset = errors.New("mmap: invalid offset")
)
