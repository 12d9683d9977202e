package phl

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/permuto"
	"github.com/hupe1980/permuto/tensor"
)

// ErrInvalidSigma is returned for missing or non-positive sigmas.
var ErrInvalidSigma = errors.New("phl: invalid sigma")

// Filter filters input [B, C, S...] guided by features [B, F, S...] and
// returns a new tensor of the input's shape. Each feature channel is divided
// by the matching entry of sigmas; a nil sigmas leaves the features as is.
func Filter[T permuto.Float](ctx context.Context, input, features *tensor.Tensor[T], sigmas []T, opts ...permuto.Option) (*tensor.Tensor[T], error) {
	if err := checkShapes(input, features); err != nil {
		return nil, err
	}

	featureChannels := features.Shape[1]
	if sigmas != nil {
		if len(sigmas) != featureChannels {
			return nil, fmt.Errorf("%w: %d sigmas for %d feature channels", ErrInvalidSigma, len(sigmas), featureChannels)
		}
		for i, s := range sigmas {
			if !(s > 0) {
				return nil, fmt.Errorf("%w: sigma[%d] = %v", ErrInvalidSigma, i, s)
			}
		}
	}

	out, err := tensor.New[T](input.Shape...)
	if err != nil {
		return nil, err
	}

	channels := input.Shape[1]
	for b := range input.Shape[0] {
		in, _ := input.Batch(b)
		feat, _ := features.Batch(b)

		data := in.ChannelsLast()
		guide := feat.ChannelsLast()
		if sigmas != nil {
			scale(guide.Data, sigmas)
		}

		n := data.Len() / channels
		if err := permuto.Filter(ctx, data.Data, guide.Data, channels, featureChannels, n, opts...); err != nil {
			return nil, fmt.Errorf("phl: batch %d: %w", b, err)
		}

		dst, _ := out.Batch(b)
		copy(dst.Data, data.ChannelsFirst().Data)
	}
	return out, nil
}

// Bilateral applies a bilateral filter to input [B, C, S...]. The features
// are the spatial coordinates divided by spatialSigma followed by the input
// channels divided by colorSigma.
func Bilateral[T permuto.Float](ctx context.Context, input *tensor.Tensor[T], spatialSigma, colorSigma T, opts ...permuto.Option) (*tensor.Tensor[T], error) {
	if !(spatialSigma > 0) || !(colorSigma > 0) {
		return nil, fmt.Errorf("%w: spatial %v, color %v", ErrInvalidSigma, spatialSigma, colorSigma)
	}
	features, err := BilateralFeatures(input, spatialSigma, colorSigma)
	if err != nil {
		return nil, err
	}
	return Filter(ctx, input, features, nil, opts...)
}

// BilateralFeatures builds the [B, len(S)+C, S...] feature tensor used by
// Bilateral.
func BilateralFeatures[T permuto.Float](input *tensor.Tensor[T], spatialSigma, colorSigma T) (*tensor.Tensor[T], error) {
	if input == nil || input.Rank() < 3 {
		return nil, fmt.Errorf("%w: input must be [B, C, S...]", tensor.ErrShapeMismatch)
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	batch, channels := input.Shape[0], input.Shape[1]
	spatial := input.Shape[2:]
	dims := len(spatial)

	shape := append([]int{batch, dims + channels}, spatial...)
	features, err := tensor.New[T](shape...)
	if err != nil {
		return nil, err
	}

	plane := 1
	for _, s := range spatial {
		plane *= s
	}

	// Spatial planes are identical for every batch item.
	coords := make([]T, dims*plane)
	coord := make([]int, dims)
	for e := range plane {
		for k := range dims {
			coords[k*plane+e] = T(coord[k]) / spatialSigma
		}
		for k := dims - 1; k >= 0; k-- {
			coord[k]++
			if coord[k] < spatial[k] {
				break
			}
			coord[k] = 0
		}
	}

	for b := range batch {
		in, _ := input.Batch(b)
		dst, _ := features.Batch(b)
		copy(dst.Data, coords)
		color := dst.Data[dims*plane:]
		for i, v := range in.Data {
			color[i] = v / colorSigma
		}
	}
	return features, nil
}

func checkShapes[T permuto.Float](input, features *tensor.Tensor[T]) error {
	if input == nil || features == nil {
		return fmt.Errorf("%w: nil tensor", tensor.ErrShapeMismatch)
	}
	for _, t := range []*tensor.Tensor[T]{input, features} {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	if input.Rank() < 3 || features.Rank() < 3 {
		return fmt.Errorf("%w: input %v and features %v must be [B, C, S...]", tensor.ErrShapeMismatch, input.Shape, features.Shape)
	}
	if input.Shape[0] != features.Shape[0] {
		return fmt.Errorf("%w: batch %d != %d", tensor.ErrShapeMismatch, input.Shape[0], features.Shape[0])
	}
	if !slices.Equal(input.Shape[2:], features.Shape[2:]) {
		return fmt.Errorf("%w: spatial shape %v != %v", tensor.ErrShapeMismatch, input.Shape[2:], features.Shape[2:])
	}
	return nil
}

// scale divides channels-last features by per-channel sigmas.
func scale[T permuto.Float](features, sigmas []T) {
	f := len(sigmas)
	for i := range features {
		features[i] /= sigmas[i%f]
	}
}
