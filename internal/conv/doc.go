// Package conv provides the numeric type constraint shared by the lattice
// packages and bounds-checked integer conversions.
//
// The checked conversions guard the places where an int crosses into a
// fixed-width field: hash table offsets (int32) and tensor frame headers
// (uint32/uint64). Hot loops over values that are provably in range use plain
// casts instead.
package conv
