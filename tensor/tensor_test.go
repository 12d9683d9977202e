package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	x, err := New[float32](2, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4}, x.Shape)
	assert.Equal(t, 24, x.Len())
	assert.Equal(t, 3, x.Rank())
	assert.Equal(t, []int{3, 4}, x.SpatialShape())

	for _, shape := range [][]int{{}, {0}, {3, -1}} {
		_, err := New[float64](shape...)
		assert.ErrorIs(t, err, ErrShapeMismatch, "shape %v", shape)
	}
}

func TestFromData(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}
	x, err := FromData(data, 2, 3)
	require.NoError(t, err)
	x.Data[0] = 42
	assert.Equal(t, 42.0, data[0], "FromData must not copy")

	_, err = FromData(data, 4, 2)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestValidate(t *testing.T) {
	x, err := New[float32](1, 2, 3)
	require.NoError(t, err)
	require.NoError(t, x.Validate())

	tests := []struct {
		name string
		x    *Tensor[float32]
	}{
		{"Empty", &Tensor[float32]{}},
		{"ZeroDim", &Tensor[float32]{Shape: []int{1, 0, 4}}},
		{"Negative", &Tensor[float32]{Shape: []int{2, -2}, Data: make([]float32, 4)}},
		{"ShortData", &Tensor[float32]{Shape: []int{2, 2}, Data: make([]float32, 3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.x.Validate(), ErrShapeMismatch)
		})
	}
}

func TestBatch(t *testing.T) {
	x, err := FromData([]float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, 2, 3, 2)
	require.NoError(t, err)

	b, err := x.Batch(1)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, b.Shape)
	assert.Equal(t, []float32{6, 7, 8, 9, 10, 11}, b.Data)

	b.Data[0] = -1
	assert.Equal(t, float32(-1), x.Data[6], "Batch returns a view")

	_, err = x.Batch(2)
	assert.Error(t, err)

	flat, err := FromData([]float32{1}, 1)
	require.NoError(t, err)
	_, err = flat.Batch(0)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestChannelsLastFirst(t *testing.T) {
	// [C=2, H=2, W=3]
	x, err := FromData([]float64{
		0, 1, 2, 3, 4, 5,
		10, 11, 12, 13, 14, 15,
	}, 2, 2, 3)
	require.NoError(t, err)

	last := x.ChannelsLast()
	assert.Equal(t, []int{2, 3, 2}, last.Shape)
	assert.Equal(t, []float64{0, 10, 1, 11, 2, 12, 3, 13, 4, 14, 5, 15}, last.Data)

	first := last.ChannelsFirst()
	assert.Equal(t, x.Shape, first.Shape)
	assert.Equal(t, x.Data, first.Data)
}

func TestChannelsLast_SingleChannel(t *testing.T) {
	x, err := FromData([]float32{1, 2, 3}, 1, 3)
	require.NoError(t, err)

	last := x.ChannelsLast()
	assert.Equal(t, []int{3, 1}, last.Shape)
	assert.Equal(t, x.Data, last.Data)
}
