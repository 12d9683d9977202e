package lattice

import (
	"context"
	"unsafe"

	"golang.org/x/sync/errgroup"
)

// minBlurChunk is the smallest vertex range handed to one worker.
const minBlurChunk = 2048

// Blur smooths the stored values in place with a [1/4 1/2 1/4] kernel along
// each of the d+1 lattice axes. Missing neighbors count as zero. Blur never
// inserts vertices.
func (l *Lattice[T]) Blur(ctx context.Context) error {
	n := l.table.Size()
	if n == 0 {
		return nil
	}

	var zero T
	scratchBytes := int64(n*l.vd) * int64(unsafe.Sizeof(zero))
	if l.acquirer != nil {
		if err := l.acquirer.AcquireMemory(scratchBytes); err != nil {
			return err
		}
		defer l.acquirer.ReleaseMemory(scratchBytes)
	}

	base := l.table.Values()
	oldV, newV := base, make([]T, len(base))

	for axis := 0; axis <= l.d; axis++ {
		src, dst := oldV, newV
		if err := l.forEachRange(ctx, n, func(lo, hi int) error {
			l.blurRange(axis, lo, hi, src, dst)
			return nil
		}); err != nil {
			return err
		}
		oldV, newV = newV, oldV
	}

	// The freshest values are in oldV.
	if &oldV[0] != &base[0] {
		copy(base, oldV)
	}
	return nil
}

// blurRange blurs vertices [lo, hi) along axis, reading src and writing dst.
func (l *Lattice[T]) blurRange(axis, lo, hi int, src, dst []T) {
	d, vd := l.d, l.vd
	n1 := make([]int16, d)
	n2 := make([]int16, d)

	for i := lo; i < hi; i++ {
		key := l.table.Key(i)
		for k := 0; k < d; k++ {
			n1[k] = key[k] + 1
			n2[k] = key[k] - 1
		}
		// The axis-d neighbors only shift the stored coordinates.
		if axis < d {
			n1[axis] = key[axis] - int16(d)
			n2[axis] = key[axis] + int16(d)
		}

		left := l.zero
		if off, ok := l.table.Lookup(n1); ok {
			left = src[off : off+vd]
		}
		right := l.zero
		if off, ok := l.table.Lookup(n2); ok {
			right = src[off : off+vd]
		}

		center := src[i*vd : (i+1)*vd]
		out := dst[i*vd : (i+1)*vd]
		for k := range out {
			out[k] = T(T(0.25*left[k])+T(0.5*center[k])) + T(0.25*right[k])
		}
	}
}

// forEachRange splits [0, n) across the configured workers. Every range
// holds a worker slot of the configured WorkerAcquirer while it runs.
func (l *Lattice[T]) forEachRange(ctx context.Context, n int, fn func(lo, hi int) error) error {
	if l.workers <= 1 || n < 2*minBlurChunk {
		return l.withWorker(ctx, func() error {
			return fn(0, n)
		})
	}

	chunk := max((n+l.workers-1)/l.workers, minBlurChunk)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			return l.withWorker(gctx, func() error {
				return fn(lo, hi)
			})
		})
	}
	return g.Wait()
}

func (l *Lattice[T]) withWorker(ctx context.Context, fn func() error) error {
	if l.workerAcquirer == nil {
		return fn()
	}
	if err := l.workerAcquirer.AcquireWorker(ctx); err != nil {
		return err
	}
	defer l.workerAcquirer.ReleaseWorker()
	return fn()
}
