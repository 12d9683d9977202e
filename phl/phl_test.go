package phl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/permuto"
	"github.com/hupe1980/permuto/tensor"
	"github.com/hupe1980/permuto/testutil"
)

func TestFilter_ConstantInput(t *testing.T) {
	input, err := tensor.New[float64](2, 2, 4, 5)
	require.NoError(t, err)
	for i := range input.Data {
		input.Data[i] = 3
	}
	features, err := tensor.New[float64](2, 3, 4, 5)
	require.NoError(t, err)
	testutil.FillUniform(testutil.NewRNG(7), features.Data)

	out, err := Filter(t.Context(), input, features, []float64{0.5, 0.5, 2})
	require.NoError(t, err)
	assert.Equal(t, input.Shape, out.Shape)
	for i, v := range out.Data {
		assert.InDelta(t, 3.0, v, 1e-9, "index %d", i)
	}
	assert.Equal(t, 3.0, input.Data[0], "input must not be modified")
}

func TestFilter_MatchesFlatFilter(t *testing.T) {
	rng := testutil.NewRNG(42)

	input, err := tensor.New[float32](2, 2, 6, 6)
	require.NoError(t, err)
	testutil.FillUniform(rng, input.Data)
	features, err := tensor.New[float32](2, 2, 6, 6)
	require.NoError(t, err)
	testutil.FillUniformRange(rng, features.Data, 0, 4)

	sigmas := []float32{2, 0.5}
	out, err := Filter(t.Context(), input, features, sigmas)
	require.NoError(t, err)

	for b := range 2 {
		in, err := input.Batch(b)
		require.NoError(t, err)
		feat, err := features.Batch(b)
		require.NoError(t, err)

		data := in.ChannelsLast()
		guide := feat.ChannelsLast()
		scale(guide.Data, sigmas)
		require.NoError(t, permuto.Filter32(t.Context(), data.Data, guide.Data, 2, 2, 36))

		got, err := out.Batch(b)
		require.NoError(t, err)
		assert.Equal(t, data.ChannelsFirst().Data, got.Data, "batch %d", b)
	}
}

func TestFilter_Validation(t *testing.T) {
	mk := func(shape ...int) *tensor.Tensor[float64] {
		x, err := tensor.New[float64](shape...)
		require.NoError(t, err)
		return x
	}

	tests := []struct {
		name     string
		input    *tensor.Tensor[float64]
		features *tensor.Tensor[float64]
		sigmas   []float64
		wantErr  error
	}{
		{"NoSpatial", mk(1, 2), mk(1, 2), nil, tensor.ErrShapeMismatch},
		{"Batch", mk(2, 1, 4), mk(1, 1, 4), nil, tensor.ErrShapeMismatch},
		{"Spatial", mk(1, 1, 4), mk(1, 1, 5), nil, tensor.ErrShapeMismatch},
		{"BadData", &tensor.Tensor[float64]{Shape: []int{1, 1, 4}, Data: make([]float64, 3)}, mk(1, 1, 4), nil, tensor.ErrShapeMismatch},
		{"ZeroFeatureChannels", mk(1, 1, 4), &tensor.Tensor[float64]{Shape: []int{1, 0, 4}}, nil, tensor.ErrShapeMismatch},
		{"ZeroInputChannels", &tensor.Tensor[float64]{Shape: []int{1, 0, 4}}, mk(1, 1, 4), nil, tensor.ErrShapeMismatch},
		{"ZeroBatch", &tensor.Tensor[float64]{Shape: []int{0, 1, 4}}, &tensor.Tensor[float64]{Shape: []int{0, 1, 4}}, nil, tensor.ErrShapeMismatch},
		{"SigmaCount", mk(1, 1, 4), mk(1, 2, 4), []float64{1}, ErrInvalidSigma},
		{"SigmaZero", mk(1, 1, 4), mk(1, 2, 4), []float64{1, 0}, ErrInvalidSigma},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Filter(t.Context(), tt.input, tt.features, tt.sigmas)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFilter_MemoryLimit(t *testing.T) {
	input, err := tensor.New[float64](1, 1, 8, 8)
	require.NoError(t, err)
	features, err := tensor.New[float64](1, 2, 8, 8)
	require.NoError(t, err)

	_, err = Filter(t.Context(), input, features, nil, permuto.WithMemoryLimit(1024))
	assert.ErrorIs(t, err, permuto.ErrMemoryLimitExceeded)
}

func TestBilateralFeatures(t *testing.T) {
	input, err := tensor.FromData([]float64{1, 2, 3, 4, 5, 6}, 1, 1, 2, 3)
	require.NoError(t, err)

	features, err := BilateralFeatures(input, 2, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 2, 3}, features.Shape)
	assert.Equal(t, []float64{
		0, 0, 0, 0.5, 0.5, 0.5, // row / 2
		0, 0.5, 1, 0, 0.5, 1, // column / 2
		2, 4, 6, 8, 10, 12, // value / 0.5
	}, features.Data)
}

func TestBilateralFeatures_InvalidInput(t *testing.T) {
	for _, input := range []*tensor.Tensor[float32]{
		nil,
		{Shape: []int{1, 0, 4}},
		{Shape: []int{1, 1, 4}, Data: make([]float32, 2)},
	} {
		_, err := BilateralFeatures(input, 1, 1)
		assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
	}
}

func TestBilateral_PreservesEdges(t *testing.T) {
	// [B=1, C=1, W=20] step from 0 to 10.
	input, err := tensor.New[float64](1, 1, 20)
	require.NoError(t, err)
	for i := 10; i < 20; i++ {
		input.Data[i] = 10
	}

	out, err := Bilateral(t.Context(), input, 5, 1, permuto.WithWorkers(2))
	require.NoError(t, err)

	for i := range 10 {
		assert.Less(t, out.Data[i], 0.5, "left index %d", i)
		assert.Greater(t, out.Data[10+i], 9.5, "right index %d", 10+i)
	}
}

func TestBilateral_InvalidSigma(t *testing.T) {
	input, err := tensor.New[float32](1, 1, 4)
	require.NoError(t, err)

	_, err = Bilateral(t.Context(), input, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidSigma)
	_, err = Bilateral(t.Context(), input, 1, -1)
	assert.ErrorIs(t, err, ErrInvalidSigma)
}
