package permuto

import (
	"context"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/permuto/internal/conv"
	"github.com/hupe1980/permuto/internal/lattice"
)

// Float is the set of element types the filter is instantiated for.
type Float = conv.Float

// Stats describes a completed filter call.
type Stats struct {
	// Elements is the number of filtered elements.
	Elements int
	// Written is the number of elements whose output was written back.
	// It is smaller than Elements only when a mask is set.
	Written int
	// Vertices is the number of occupied lattice points.
	Vertices int
	// Capacity is the final hash table capacity.
	Capacity int
	// Growths counts hash table growth events.
	Growths int
	// ReservedBytes is the memory charged to the resource controller at the
	// end of splatting.
	ReservedBytes int64
	Duration      time.Duration
}

// Filter applies a Gaussian filter in feature space to data, in place.
//
// data holds elementCount vectors of dataChannels values, features holds
// elementCount vectors of featureChannels coordinates, both element-major.
// Each output vector is the Gaussian-weighted average of all data vectors,
// weighted by distance in feature space with unit standard deviation per
// feature channel. Scale the features to choose the filter width.
//
// data is only modified after the lattice has been built and blurred; a
// failed call leaves it untouched.
func Filter[T Float](ctx context.Context, data, features []T, dataChannels, featureChannels, elementCount int, optFns ...Option) error {
	_, err := FilterWithStats(ctx, data, features, dataChannels, featureChannels, elementCount, optFns...)
	return err
}

// Filter32 is Filter for float32 buffers.
func Filter32(ctx context.Context, data, features []float32, dataChannels, featureChannels, elementCount int, optFns ...Option) error {
	return Filter(ctx, data, features, dataChannels, featureChannels, elementCount, optFns...)
}

// Filter64 is Filter for float64 buffers.
func Filter64(ctx context.Context, data, features []float64, dataChannels, featureChannels, elementCount int, optFns ...Option) error {
	return Filter(ctx, data, features, dataChannels, featureChannels, elementCount, optFns...)
}

// FilterWithStats is Filter returning statistics about the lattice.
func FilterWithStats[T Float](ctx context.Context, data, features []T, dataChannels, featureChannels, elementCount int, optFns ...Option) (Stats, error) {
	o := applyOptions(optFns)
	logger := o.logger.WithDimension(featureChannels).WithCount(elementCount)

	start := time.Now()
	stats, err := filter(ctx, &o, logger, data, features, dataChannels, featureChannels, elementCount)
	stats.Duration = time.Since(start)
	err = translateError(err)

	o.metricsCollector.RecordFilter(elementCount, stats.Vertices, stats.Duration, err)
	logger.LogFilter(ctx, stats, err)
	return stats, err
}

func validate[T Float](data, features []T, dataChannels, featureChannels, elementCount int) error {
	if elementCount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidElementCount, elementCount)
	}
	if dataChannels <= 0 || featureChannels <= 0 {
		return fmt.Errorf("%w: data=%d features=%d", ErrInvalidChannels, dataChannels, featureChannels)
	}

	want, err := conv.MulInt(elementCount, dataChannels)
	if err != nil {
		return err
	}
	if len(data) != want {
		return &ErrBufferSize{Name: "data", Expected: want, Actual: len(data)}
	}

	want, err = conv.MulInt(elementCount, featureChannels)
	if err != nil {
		return err
	}
	if len(features) != want {
		return &ErrBufferSize{Name: "features", Expected: want, Actual: len(features)}
	}
	return nil
}

func filter[T Float](ctx context.Context, o *options, logger *Logger, data, features []T, dataChannels, featureChannels, elementCount int) (Stats, error) {
	stats := Stats{Elements: elementCount}

	if err := validate(data, features, dataChannels, featureChannels, elementCount); err != nil {
		return stats, err
	}
	if o.mask != nil {
		if _, err := conv.IntToUint32(elementCount - 1); err != nil {
			return stats, fmt.Errorf("mask: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	vd := dataChannels + 1
	latOpts := []lattice.Option{
		lattice.WithWorkers(o.workers),
		lattice.WithGrowHook(func(capacity int) {
			logger.LogGrowth(ctx, capacity)
			o.metricsCollector.RecordGrowth(capacity)
		}),
	}
	if o.controller != nil {
		latOpts = append(latOpts,
			lattice.WithMemoryAcquirer(o.controller),
			lattice.WithWorkerAcquirer(o.controller),
		)
	}

	lat, err := lattice.New[T](featureChannels, vd, elementCount, latOpts...)
	if err != nil {
		return stats, err
	}
	defer lat.Release()

	value := make([]T, vd)
	value[dataChannels] = 1
	for e := 0; e < elementCount; e++ {
		copy(value, data[e*dataChannels:(e+1)*dataChannels])
		if err := lat.Splat(features[e*featureChannels:(e+1)*featureChannels], value); err != nil {
			stats.fill(lat.Stats())
			return stats, err
		}
	}
	stats.fill(lat.Stats())
	logger.DebugContext(ctx, "splat completed", "vertices", stats.Vertices, "capacity", stats.Capacity)

	if err := lat.Blur(ctx); err != nil {
		return stats, err
	}
	logger.DebugContext(ctx, "blur completed")

	written, err := sliceInto(ctx, lat, data, dataChannels, elementCount, o.mask)
	stats.Written = written
	if err != nil {
		return stats, err
	}
	logger.DebugContext(ctx, "slice completed", "written", written)
	return stats, nil
}

// sliceInto writes the normalized lattice output over data and returns the
// number of elements written.
func sliceInto[T Float](ctx context.Context, lat *lattice.Lattice[T], data []T, dataChannels, elementCount int, mask *roaring.Bitmap) (int, error) {
	vd := dataChannels + 1

	write := func(lo, hi int, col []T) error {
		for e := lo; e < hi; e++ {
			if mask != nil && !mask.Contains(uint32(e)) {
				continue
			}
			if err := lat.SliceAt(e, col); err != nil {
				return err
			}
			scale := 1 / col[dataChannels]
			out := data[e*dataChannels : (e+1)*dataChannels]
			for c := range out {
				out[c] = col[c] * scale
			}
		}
		return nil
	}

	if err := lat.Parallel(ctx, elementCount, func(lo, hi int) error {
		return write(lo, hi, make([]T, vd))
	}); err != nil {
		return 0, err
	}

	if mask == nil {
		return elementCount, nil
	}
	return int(mask.Rank(uint32(elementCount - 1))), nil
}

func (s *Stats) fill(ls lattice.Stats) {
	s.Vertices = ls.Vertices
	s.Capacity = ls.Capacity
	s.Growths = ls.Growths
	s.ReservedBytes = ls.ReservedBytes
}
