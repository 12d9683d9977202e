package lattice

import (
	"context"
	"errors"
	"fmt"
	"math"
	"unsafe"

	"github.com/hupe1980/permuto/internal/conv"
	"github.com/hupe1980/permuto/internal/hashtable"
)

var (
	// ErrInvalidDimension is returned when d or vd is not positive.
	ErrInvalidDimension = errors.New("lattice: dimensions must be positive")
	// ErrReplayExhausted is returned when Slice is called more often than elements were splatted.
	ErrReplayExhausted = errors.New("lattice: replay list exhausted")
	// ErrVectorLength is returned when a position or value vector is too short.
	ErrVectorLength = errors.New("lattice: vector too short")
)

type replayEntry[T conv.Float] struct {
	offset int
	weight T
}

// Lattice is a permutohedral lattice over d-dimensional positions carrying
// vd-dimensional values.
type Lattice[T conv.Float] struct {
	d, vd int

	table *hashtable.Table[T]

	canonical []int16
	scale     []T

	// per-splat scratch
	elevated    []T
	greedy      []int16
	rank        []int
	barycentric []T
	key         []int16

	replay         []replayEntry[T]
	replayReserved int64
	cursor         int

	zero           []T
	workers        int
	acquirer       hashtable.MemoryAcquirer
	workerAcquirer WorkerAcquirer
}

// WorkerAcquirer hands out slots for the goroutines of Blur and Parallel.
type WorkerAcquirer interface {
	AcquireWorker(ctx context.Context) error
	ReleaseWorker()
}

// Option configures a Lattice.
type Option func(*options)

type options struct {
	workers        int
	acquirer       hashtable.MemoryAcquirer
	workerAcquirer WorkerAcquirer
	onGrow         func(capacity int)
	tableCap       int
}

// WithWorkers sets the number of goroutines used by Blur.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithMemoryAcquirer charges hash table stores and blur scratch to acquirer.
func WithMemoryAcquirer(acquirer hashtable.MemoryAcquirer) Option {
	return func(o *options) {
		o.acquirer = acquirer
	}
}

// WithWorkerAcquirer makes every Blur and Parallel range hold a slot of
// acquirer while it runs, so lattices sharing acquirer share its limit.
func WithWorkerAcquirer(acquirer WorkerAcquirer) Option {
	return func(o *options) {
		o.workerAcquirer = acquirer
	}
}

// WithGrowHook is called with the new capacity whenever the hash table grows.
func WithGrowHook(fn func(capacity int)) Option {
	return func(o *options) {
		o.onGrow = fn
	}
}

// WithTableCapacity overrides the initial hash table capacity.
func WithTableCapacity(capacity int) Option {
	return func(o *options) {
		o.tableCap = capacity
	}
}

// New creates a lattice for d-dimensional positions and vd-dimensional
// values. elements is a sizing hint for the replay list.
func New[T conv.Float](d, vd, elements int, optFns ...Option) (*Lattice[T], error) {
	if d <= 0 || vd <= 0 {
		return nil, fmt.Errorf("%w: d=%d vd=%d", ErrInvalidDimension, d, vd)
	}

	o := options{workers: 1}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}

	tableOpts := []hashtable.Option{
		hashtable.WithMemoryAcquirer(o.acquirer),
		hashtable.WithGrowHook(o.onGrow),
	}
	if o.tableCap > 0 {
		tableOpts = append(tableOpts, hashtable.WithInitialCapacity(o.tableCap))
	}

	table, err := hashtable.New[T](d, vd, tableOpts...)
	if err != nil {
		return nil, err
	}

	replayLen := max(elements, 0) * (d + 1)
	replayBytes := int64(replayLen) * int64(unsafe.Sizeof(replayEntry[T]{}))
	if o.acquirer != nil {
		if err := o.acquirer.AcquireMemory(replayBytes); err != nil {
			table.Release()
			return nil, fmt.Errorf("lattice: reserve replay list: %w", err)
		}
	}

	l := &Lattice[T]{
		d:           d,
		vd:          vd,
		table:       table,
		canonical:   canonicalSimplex(d),
		scale:       scaleFactors[T](d),
		elevated:    make([]T, d+1),
		greedy:      make([]int16, d+1),
		rank:        make([]int, d+1),
		barycentric: make([]T, d+2),
		key:         make([]int16, d+1),
		replay:      make([]replayEntry[T], 0, replayLen),
		zero:        make([]T, vd),
		workers:     max(o.workers, 1),
		acquirer:    o.acquirer,

		workerAcquirer: o.workerAcquirer,
	}
	if o.acquirer != nil {
		l.replayReserved = replayBytes
	}
	return l, nil
}

// canonicalSimplex returns the (d+1)x(d+1) table of the canonical simplex,
// in which the differences between a contained point and the remainder-0
// vertex are ascending.
func canonicalSimplex(d int) []int16 {
	c := make([]int16, (d+1)*(d+1))
	for i := 0; i <= d; i++ {
		for j := 0; j <= d-i; j++ {
			c[i*(d+1)+j] = int16(i)
		}
		for j := d - i + 1; j <= d; j++ {
			c[i*(d+1)+j] = int16(i - (d + 1))
		}
	}
	return c
}

// scaleFactors returns the diagonal of the elevation matrix, scaled by
// (d+1)*sqrt(2/3) so that the splat-blur-slice pipeline has unit variance
// per input dimension. The total variance of the pipeline is 2d(d+1)^2/3.
//
// Both factors are rounded to float32 for every T, as in the Adams et al.
// filter, so float64 lattices elevate positions bit-identically to it. Only
// the final product is taken in T.
func scaleFactors[T conv.Float](d int) []T {
	stretch := float32(d+1) * sqrt32(float32(2.0/3))
	s := make([]T, d)
	for i := range s {
		s[i] = T(float32(1) / sqrt32(float32((i+1)*(i+2))))
		s[i] *= T(stretch)
	}
	return s
}

// sqrt32 is a correctly rounded float32 square root.
func sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

// Dim returns d.
func (l *Lattice[T]) Dim() int { return l.d }

// ValueDim returns vd.
func (l *Lattice[T]) ValueDim() int { return l.vd }

// Stats describes the lattice after splatting.
type Stats struct {
	Elements      int
	Vertices      int
	Capacity      int
	Growths       int
	ReplayEntries int
	ReservedBytes int64
}

// Stats returns the current lattice statistics.
func (l *Lattice[T]) Stats() Stats {
	return Stats{
		Elements:      len(l.replay) / (l.d + 1),
		Vertices:      l.table.Size(),
		Capacity:      l.table.Capacity(),
		Growths:       l.table.Growths(),
		ReplayEntries: len(l.replay),
		ReservedBytes: l.table.Reserved() + l.replayReserved,
	}
}

// Reset clears all vertices and the replay list for a new splat pass.
// Allocated storage is kept.
func (l *Lattice[T]) Reset() {
	l.table.Reset()
	l.replay = l.replay[:0]
	l.cursor = 0
}

// Release returns reserved memory. The lattice must not be used afterwards.
func (l *Lattice[T]) Release() {
	l.table.Release()
	if l.acquirer != nil && l.replayReserved > 0 {
		l.acquirer.ReleaseMemory(l.replayReserved)
	}
	l.replayReserved = 0
	l.replay = nil
}
