// Package lattice implements the permutohedral lattice engine used for
// high-dimensional Gaussian filtering (Adams, Baek and Davis, "Fast
// High-Dimensional Filtering Using the Permutohedral Lattice", 2010).
//
// # Pipeline
//
//	Splat  each element's position is elevated onto the hyperplane
//	       sum(x) = 0 in R^(d+1); its value is scattered into the d+1
//	       vertices of the enclosing simplex with barycentric weights, and
//	       every (offset, weight) pair is appended to the replay list.
//	Blur   a [1/4 1/2 1/4] kernel is applied along each of the d+1 lattice
//	       axes, double-buffered per axis pass.
//	Slice  the replay list is consumed in splat order to gather the blurred
//	       values back to each element.
//
// Callers splat exactly N elements, call Blur once, call BeginSlice once,
// then Slice exactly N times.
//
// # Concurrency
//
// A Lattice is single-owner. WithWorkers parallelizes the per-vertex loop
// inside one blur axis pass and allows SliceAt to be called from several
// goroutines; axis passes and splats always run sequentially.
package lattice
