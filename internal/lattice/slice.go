package lattice

import (
	"context"
	"fmt"
)

// BeginSlice rewinds the replay cursor to the first recorded element.
func (l *Lattice[T]) BeginSlice() {
	l.cursor = 0
}

// Slice writes into dst[:vd] the blurred value at the next element, in
// splat order.
func (l *Lattice[T]) Slice(dst []T) error {
	if l.cursor+l.d+1 > len(l.replay) {
		return ErrReplayExhausted
	}
	l.gather(l.replay[l.cursor:l.cursor+l.d+1], dst)
	l.cursor += l.d + 1
	return nil
}

// SliceAt writes into dst[:vd] the blurred value at the element-th splatted
// element. It does not move the cursor and is safe to call concurrently
// after Blur has returned.
func (l *Lattice[T]) SliceAt(element int, dst []T) error {
	lo := element * (l.d + 1)
	if element < 0 || lo+l.d+1 > len(l.replay) {
		return fmt.Errorf("%w: element %d", ErrReplayExhausted, element)
	}
	l.gather(l.replay[lo:lo+l.d+1], dst)
	return nil
}

func (l *Lattice[T]) gather(entries []replayEntry[T], dst []T) {
	out := dst[:l.vd]
	clear(out)
	values := l.table.Values()
	for _, r := range entries {
		v := values[r.offset : r.offset+l.vd]
		for j := range out {
			out[j] += T(r.weight * v[j])
		}
	}
}

// Parallel runs fn over [0, n) in ranges using the configured workers and
// returns the first error. It is used to parallelize per-element slicing.
func (l *Lattice[T]) Parallel(ctx context.Context, n int, fn func(lo, hi int) error) error {
	return l.forEachRange(ctx, n, fn)
}
