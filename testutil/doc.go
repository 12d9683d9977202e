// Package testutil provides testing utilities for permuto.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating deterministic random buffers, grid
// feature layouts, and an exact O(N^2) Gaussian filter used as ground truth.
//
// # Random Buffers
//
//	rng := testutil.NewRNG(seed)
//	data := make([]float32, n*channels)
//	testutil.FillUniform(rng, data)  // uniform [0, 1)
//	testutil.FillGaussian(rng, data) // standard normal
//
// # Ground Truth
//
//	want := testutil.ExactGaussian(data, features, dataChannels, featureChannels)
package testutil
