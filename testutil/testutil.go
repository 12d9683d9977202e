package testutil

import (
	"math"
	"math/rand"
	"sync"

	"github.com/hupe1980/permuto/internal/conv"
)

// RNG wraps a seeded random source. It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// FillUniform fills dst with random values in [0, 1).
func FillUniform[T conv.Float](r *RNG, dst []T) {
	FillUniformRange(r, dst, 0, 1)
}

// FillUniformRange fills dst with random values in [minVal, maxVal).
func FillUniformRange[T conv.Float](r *RNG, dst []T, minVal, maxVal T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	span := maxVal - minVal
	for i := range dst {
		dst[i] = minVal + T(r.rand.Float64())*span
	}
}

// FillGaussian fills dst with standard normal values.
func FillGaussian[T conv.Float](r *RNG, dst []T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = T(r.rand.NormFloat64())
	}
}

// GridFeatures returns channel-last features holding each element's
// coordinates in a row-major grid of the given shape, divided by sigma.
func GridFeatures[T conv.Float](shape []int, sigma T) []T {
	n := 1
	for _, s := range shape {
		n *= s
	}

	dims := len(shape)
	out := make([]T, n*dims)
	coord := make([]int, dims)
	for e := 0; e < n; e++ {
		for k := 0; k < dims; k++ {
			out[e*dims+k] = T(coord[k]) / sigma
		}
		for k := dims - 1; k >= 0; k-- {
			coord[k]++
			if coord[k] < shape[k] {
				break
			}
			coord[k] = 0
		}
	}
	return out
}

// ExactGaussian filters data with an exact Gaussian of unit standard
// deviation in feature space, normalized per element. It is O(N^2) and only
// suitable for small inputs.
func ExactGaussian[T conv.Float](data, features []T, dataChannels, featureChannels int) []T {
	n := len(features) / featureChannels
	out := make([]T, len(data))
	acc := make([]float64, dataChannels)

	for i := 0; i < n; i++ {
		clear(acc)
		var norm float64
		fi := features[i*featureChannels : (i+1)*featureChannels]
		for j := 0; j < n; j++ {
			fj := features[j*featureChannels : (j+1)*featureChannels]
			var dist float64
			for k := range fi {
				diff := float64(fi[k] - fj[k])
				dist += diff * diff
			}
			w := math.Exp(-dist / 2)
			norm += w
			for c := 0; c < dataChannels; c++ {
				acc[c] += w * float64(data[j*dataChannels+c])
			}
		}
		for c := 0; c < dataChannels; c++ {
			out[i*dataChannels+c] = T(acc[c] / norm)
		}
	}
	return out
}

// Mean returns the per-channel mean of channel-last data.
func Mean[T conv.Float](data []T, channels int) []T {
	n := len(data) / channels
	sum := make([]float64, channels)
	for e := 0; e < n; e++ {
		for c := 0; c < channels; c++ {
			sum[c] += float64(data[e*channels+c])
		}
	}
	out := make([]T, channels)
	for c := range out {
		out[c] = T(sum[c] / float64(n))
	}
	return out
}

// Variance returns the variance of a single channel of channel-last data.
func Variance[T conv.Float](data []T, channels, channel int) float64 {
	n := len(data) / channels
	var sum, sumSq float64
	for e := 0; e < n; e++ {
		v := float64(data[e*channels+channel])
		sum += v
		sumSq += v * v
	}
	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}
