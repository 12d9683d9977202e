// Package hashtable implements the sparse lattice hash table: an
// open-addressing map from integer lattice keys to fixed-length value
// vectors.
//
// # Layout
//
// Keys and values live in two contiguous stores addressed by integer
// offsets. The entry array only records (keyOffset, valueOffset) pairs, so
// growth rehashes entries while keys and values are copied verbatim and keep
// their offsets:
//
//	entries  [cap]     {keyOff, valueOff} | empty (-1)
//	keys     [kd*cap/2] int16
//	values   [vd*cap/2] T (zero-initialized)
//
// Offsets are the only handles callers keep. They stay valid across growth,
// but slices returned by Values or Value must be re-fetched after any
// insertion that may grow the table.
//
// # Hashing
//
// The hash accumulates each coordinate and multiplies by 2531011 with
// wrapping unsigned arithmetic. Probing is linear with wraparound from
// hash mod capacity. Capacity is always a power of two and at most half of
// the slots are filled after any insertion.
//
// # Concurrency
//
// A Table is not safe for concurrent mutation. Lookup never mutates and may
// run concurrently with other Lookup calls.
package hashtable
