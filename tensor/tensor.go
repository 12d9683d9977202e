package tensor

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/permuto/internal/conv"
)

var (
	// ErrShapeMismatch is returned when data length or shape do not agree.
	ErrShapeMismatch = errors.New("tensor: shape mismatch")
)

// Tensor is a dense, row-major N-D array.
//
// Filtering code uses two layouts: channels-first [C, S...] for storage and
// channels-last [S..., C] for the lattice, where S is the spatial shape.
type Tensor[T conv.Float] struct {
	Shape []int
	Data  []T
}

// New allocates a zeroed tensor with the given shape.
func New[T conv.Float](shape ...int) (*Tensor[T], error) {
	n, err := numElements(shape)
	if err != nil {
		return nil, err
	}
	return &Tensor[T]{Shape: slices.Clone(shape), Data: make([]T, n)}, nil
}

// FromData wraps data with the given shape without copying.
func FromData[T conv.Float](data []T, shape ...int) (*Tensor[T], error) {
	n, err := numElements(shape)
	if err != nil {
		return nil, err
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: shape %v holds %d elements, data has %d", ErrShapeMismatch, shape, n, len(data))
	}
	return &Tensor[T]{Shape: slices.Clone(shape), Data: data}, nil
}

func numElements(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("%w: empty shape", ErrShapeMismatch)
	}
	n := 1
	for _, s := range shape {
		if s <= 0 {
			return 0, fmt.Errorf("%w: non-positive dimension in %v", ErrShapeMismatch, shape)
		}
		var err error
		if n, err = conv.MulInt(n, s); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrShapeMismatch, err)
		}
	}
	return n, nil
}

// Validate reports whether the shape is non-empty with positive dimensions
// and matches the length of Data. Tensors built as struct literals should be
// validated before use.
func (t *Tensor[T]) Validate() error {
	n, err := numElements(t.Shape)
	if err != nil {
		return err
	}
	if n != len(t.Data) {
		return fmt.Errorf("%w: shape %v holds %d elements, data has %d", ErrShapeMismatch, t.Shape, n, len(t.Data))
	}
	return nil
}

// Len returns the number of elements.
func (t *Tensor[T]) Len() int { return len(t.Data) }

// Rank returns the number of dimensions.
func (t *Tensor[T]) Rank() int { return len(t.Shape) }

// SpatialShape returns the shape without its leading channel dimension.
func (t *Tensor[T]) SpatialShape() []int {
	if len(t.Shape) < 2 {
		return []int{1}
	}
	return slices.Clone(t.Shape[1:])
}

// Batch returns item b of a batched tensor [B, ...] as a view sharing Data.
func (t *Tensor[T]) Batch(b int) (*Tensor[T], error) {
	if len(t.Shape) < 2 {
		return nil, fmt.Errorf("%w: rank %d tensor has no batch dimension", ErrShapeMismatch, len(t.Shape))
	}
	if b < 0 || b >= t.Shape[0] {
		return nil, fmt.Errorf("tensor: batch index %d out of range [0, %d)", b, t.Shape[0])
	}
	stride := len(t.Data) / t.Shape[0]
	return &Tensor[T]{
		Shape: slices.Clone(t.Shape[1:]),
		Data:  t.Data[b*stride : (b+1)*stride : (b+1)*stride],
	}, nil
}

// ChannelsLast transposes a channels-first tensor [C, S...] into a new
// tensor [S..., C].
func (t *Tensor[T]) ChannelsLast() *Tensor[T] {
	c := t.Shape[0]
	s := len(t.Data) / c
	out := make([]T, len(t.Data))
	for ch := range c {
		src := t.Data[ch*s : (ch+1)*s]
		for i, v := range src {
			out[i*c+ch] = v
		}
	}
	shape := append(slices.Clone(t.Shape[1:]), c)
	return &Tensor[T]{Shape: shape, Data: out}
}

// ChannelsFirst transposes a channels-last tensor [S..., C] into a new
// tensor [C, S...].
func (t *Tensor[T]) ChannelsFirst() *Tensor[T] {
	c := t.Shape[len(t.Shape)-1]
	s := len(t.Data) / c
	out := make([]T, len(t.Data))
	for ch := range c {
		dst := out[ch*s : (ch+1)*s]
		for i := range dst {
			dst[i] = t.Data[i*c+ch]
		}
	}
	shape := append([]int{c}, t.Shape[:len(t.Shape)-1]...)
	return &Tensor[T]{Shape: shape, Data: out}
}
