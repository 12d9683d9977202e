// Package permuto implements high-dimensional Gaussian filtering on the
// permutohedral lattice.
//
// Every element carries a data vector and a feature vector. Filtering
// replaces each data vector by the Gaussian-weighted average of all data
// vectors, weighted by distance in feature space. The lattice makes this
// linear in the number of elements and polynomial in the feature dimension.
//
// # Quick Start
//
//	// 4 RGB pixels with (x, y, r, g, b) features.
//	data := []float32{...}     // 4 * 3 values
//	features := []float32{...} // 4 * 5 coordinates, pre-scaled by 1/sigma
//	err := permuto.Filter32(ctx, data, features, 3, 5, 4)
//
// The filter works in three phases:
//
//   - Splat: each feature vector is embedded into the lattice and its data,
//     extended by a homogeneous 1, is distributed to the d+1 vertices of the
//     enclosing simplex by barycentric weight.
//   - Blur: a [1/4 1/2 1/4] kernel runs along each of the d+1 lattice axes.
//   - Slice: each element reads back the weighted sum of its vertices and
//     divides by the homogeneous channel.
//
// # Options
//
//	metrics := &permuto.BasicMetricsCollector{}
//	err := permuto.Filter64(ctx, data, features, 1, 2, n,
//	    permuto.WithWorkers(8),
//	    permuto.WithMemoryLimit(512<<20),
//	    permuto.WithMetricsCollector(metrics),
//	    permuto.WithLogger(permuto.NewJSONLogger(slog.LevelDebug)),
//	)
//
// Tensor-shaped inputs and the bilateral filter live in package phl; tensor
// storage lives in packages tensor and blobstore.
package permuto
