// Package phl applies permutohedral lattice filtering to batched,
// channels-first tensors.
//
// Filter takes an input of shape [B, C, S...] and guidance features of shape
// [B, F, S...] and filters every batch item independently. Bilateral builds
// the features from the spatial position and the input values themselves.
//
//	out, err := phl.Bilateral(ctx, img, 5, 0.1, permuto.WithWorkers(4))
package phl
