package permuto

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/permuto/internal/resource"
	"github.com/hupe1980/permuto/testutil"
)

func TestFilter(t *testing.T) {
	t.Run("SingleElement", func(t *testing.T) {
		data := []float32{5}
		require.NoError(t, Filter32(t.Context(), data, []float32{0, 0}, 1, 2, 1))
		assert.InDelta(t, 5.0, float64(data[0]), 1e-5)
	})

	t.Run("IdenticalFeaturesAverage", func(t *testing.T) {
		data := []float32{1, 2, 3, 6}
		features := []float32{0.4, 0.9, 0.4, 0.9, 0.4, 0.9, 0.4, 0.9}
		require.NoError(t, Filter32(t.Context(), data, features, 1, 2, 4))
		for _, v := range data {
			assert.InDelta(t, 3.0, float64(v), 1e-5)
		}
	})

	t.Run("MultiChannelMean", func(t *testing.T) {
		data := []float64{1, 10, 3, 30}
		features := []float64{-2, 5, 1, -2, 5, 1}
		require.NoError(t, Filter64(t.Context(), data, features, 2, 3, 2))
		for e := 0; e < 2; e++ {
			assert.InDelta(t, 2.0, data[e*2], 1e-9)
			assert.InDelta(t, 20.0, data[e*2+1], 1e-9)
		}
	})

	t.Run("PreservesEdges", func(t *testing.T) {
		const n = 20
		data := make([]float64, n)
		features := make([]float64, n*2)
		for e := 0; e < n; e++ {
			features[e*2] = float64(e%10) * 0.3
			if e >= n/2 {
				data[e] = 10
				features[e*2+1] = 100
			}
		}

		require.NoError(t, Filter64(t.Context(), data, features, 1, 2, n))
		for e := 0; e < n/2; e++ {
			assert.InDelta(t, 0.0, data[e], 1e-9)
		}
		for e := n / 2; e < n; e++ {
			assert.InDelta(t, 10.0, data[e], 1e-9)
		}
	})

	t.Run("SmoothsNoise", func(t *testing.T) {
		rng := testutil.NewRNG(42)
		const n = 400

		data := make([]float64, n)
		testutil.FillGaussian(rng, data)
		before := testutil.Variance(data, 1, 0)

		features := testutil.GridFeatures([]int{n}, 4.0)
		require.NoError(t, Filter64(t.Context(), data, features, 1, 1, n))

		assert.Less(t, testutil.Variance(data, 1, 0), before/2)
	})

	t.Run("ConvexCombination", func(t *testing.T) {
		rng := testutil.NewRNG(3)
		const n = 300

		data := make([]float32, n)
		testutil.FillUniformRange(rng, data, 2, 7)
		features := make([]float32, n*3)
		testutil.FillUniformRange(rng, features, -4, 4)

		require.NoError(t, Filter32(t.Context(), data, features, 1, 3, n))
		for _, v := range data {
			assert.GreaterOrEqual(t, v, float32(2-1e-4))
			assert.LessOrEqual(t, v, float32(7+1e-4))
		}
	})
}

// Reference outputs of the abadams/MONAI permutohedral filter for the same
// inputs, built with -ffp-contract=off.
func TestFilter_Golden(t *testing.T) {
	features := []float64{
		0.1, 0.2, 0.3,
		0.5, 0.4, 0.9,
		1.3, 0.7, 0.2,
		2.1, 1.9, 0.4,
		0.3, 1.1, 1.7,
		1.6, 0.2, 0.8,
	}

	t.Run("Float64", func(t *testing.T) {
		data := []float64{1, 2, 3, 4, 5, 6}
		require.NoError(t, Filter64(t.Context(), data, features, 1, 3, 6))
		assert.Equal(t, []float64{
			2.3270120391806688,
			2.9382722580506093,
			3.3142775149777339,
			3.7794652655271395,
			3.5916151811473203,
			3.7382029550227132,
		}, data)
	})

	t.Run("Float32", func(t *testing.T) {
		features32 := make([]float32, len(features))
		for i, v := range features {
			features32[i] = float32(v)
		}
		data := []float32{1, 2, 3, 4, 5, 6}
		require.NoError(t, Filter32(t.Context(), data, features32, 1, 3, 6))
		assert.Equal(t, []float32{
			2.32701182,
			2.93827224,
			3.31427717,
			3.7794652,
			3.59161496,
			3.73820305,
		}, data)
	})
}

func TestFilter_Validation(t *testing.T) {
	tests := []struct {
		name     string
		data     []float32
		features []float32
		dc, fc   int
		n        int
		check    func(t *testing.T, err error)
	}{
		{
			name: "zero elements", data: nil, features: nil, dc: 1, fc: 1, n: 0,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInvalidElementCount) },
		},
		{
			name: "zero data channels", data: []float32{1}, features: []float32{1}, dc: 0, fc: 1, n: 1,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInvalidChannels) },
		},
		{
			name: "zero feature channels", data: []float32{1}, features: []float32{1}, dc: 1, fc: 0, n: 1,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInvalidChannels) },
		},
		{
			name: "short data", data: []float32{1}, features: []float32{1, 2}, dc: 1, fc: 1, n: 2,
			check: func(t *testing.T, err error) {
				var bs *ErrBufferSize
				require.ErrorAs(t, err, &bs)
				assert.Equal(t, "data", bs.Name)
				assert.Equal(t, 2, bs.Expected)
				assert.Equal(t, 1, bs.Actual)
			},
		},
		{
			name: "long features", data: []float32{1, 2}, features: []float32{1, 2, 3, 4, 5}, dc: 1, fc: 2, n: 2,
			check: func(t *testing.T, err error) {
				var bs *ErrBufferSize
				require.ErrorAs(t, err, &bs)
				assert.Equal(t, "features", bs.Name)
				assert.Equal(t, 4, bs.Expected)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Filter32(t.Context(), tt.data, tt.features, tt.dc, tt.fc, tt.n)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestFilter_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	data := []float32{1}
	err := Filter32(ctx, data, []float32{0}, 1, 1, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []float32{1}, data)
}

func TestFilter_MemoryLimit(t *testing.T) {
	data := []float32{1, 2, 3}
	features := []float32{0, 1, 2}

	err := Filter32(t.Context(), data, features, 1, 1, 3, WithMemoryLimit(1024))
	require.ErrorIs(t, err, ErrMemoryLimitExceeded)
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.Equal(t, []float32{1, 2, 3}, data)
}

func TestFilter_ResourceController(t *testing.T) {
	rc := NewResourceController(ResourceConfig{MemoryLimitBytes: 64 << 20, MaxWorkers: 2})

	data := []float64{1, 2, 3, 4}
	features := []float64{0, 0.5, 1, 1.5}
	stats, err := FilterWithStats(t.Context(), data, features, 1, 1, 4, WithResourceController(rc))
	require.NoError(t, err)

	assert.Positive(t, stats.ReservedBytes)
	assert.GreaterOrEqual(t, rc.PeakMemoryUsage(), stats.ReservedBytes)
	assert.Zero(t, rc.MemoryUsage())
}

func TestFilter_WorkersMatchSequential(t *testing.T) {
	rng := testutil.NewRNG(2024)
	const n, dc, fc = 8000, 3, 2

	data := make([]float32, n*dc)
	testutil.FillUniform(rng, data)
	features := make([]float32, n*fc)
	testutil.FillUniformRange(rng, features, -150, 150)

	seq := append([]float32(nil), data...)
	require.NoError(t, Filter32(t.Context(), seq, features, dc, fc, n))

	par := append([]float32(nil), data...)
	require.NoError(t, Filter32(t.Context(), par, features, dc, fc, n, WithWorkers(4)))

	assert.Equal(t, seq, par)
}

func TestFilter_SharedWorkerBudget(t *testing.T) {
	rng := testutil.NewRNG(77)
	const n, dc, fc = 6000, 1, 2

	data := make([]float32, n*dc)
	testutil.FillUniform(rng, data)
	features := make([]float32, n*fc)
	testutil.FillUniformRange(rng, features, -150, 150)

	want := append([]float32(nil), data...)
	require.NoError(t, Filter32(t.Context(), want, features, dc, fc, n))

	rc := NewResourceController(ResourceConfig{MaxWorkers: 1})
	outs := make([][]float32, 3)
	var g errgroup.Group
	for i := range outs {
		outs[i] = append([]float32(nil), data...)
		g.Go(func() error {
			return Filter32(t.Context(), outs[i], features, dc, fc, n, WithResourceController(rc), WithWorkers(4))
		})
	}
	require.NoError(t, g.Wait())

	for _, out := range outs {
		assert.Equal(t, want, out)
	}
	assert.True(t, rc.TryAcquireWorker(), "worker slot leaked")
	rc.ReleaseWorker()
}

func TestFilter_Mask(t *testing.T) {
	rng := testutil.NewRNG(17)
	const n = 50

	data := make([]float64, n)
	testutil.FillUniform(rng, data)
	features := make([]float64, n*2)
	testutil.FillUniformRange(rng, features, -2, 2)

	full := append([]float64(nil), data...)
	require.NoError(t, Filter64(t.Context(), full, features, 1, 2, n))

	mask := roaring.BitmapOf(0, 7, 49, 200)
	masked := append([]float64(nil), data...)
	stats, err := FilterWithStats(t.Context(), masked, features, 1, 2, n, WithMask(mask))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Written)

	for e := 0; e < n; e++ {
		if mask.Contains(uint32(e)) {
			assert.Equal(t, full[e], masked[e], "element %d", e)
		} else {
			assert.Equal(t, data[e], masked[e], "element %d", e)
		}
	}
}

func TestFilterWithStats(t *testing.T) {
	data := []float32{1, 2}
	stats, err := FilterWithStats(t.Context(), data, []float32{0, 0, 5, 5}, 1, 2, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Elements)
	assert.Equal(t, 2, stats.Written)
	assert.Positive(t, stats.Vertices)
	assert.LessOrEqual(t, stats.Vertices, 6)
	assert.Equal(t, 1<<15, stats.Capacity)
	assert.Zero(t, stats.Growths)
}

func TestMetricsCollector(t *testing.T) {
	metrics := &BasicMetricsCollector{}

	data := []float32{1, 2, 3}
	require.NoError(t, Filter32(t.Context(), data, []float32{0, 1, 2}, 1, 1, 3, WithMetricsCollector(metrics)))
	require.Error(t, Filter32(t.Context(), data, []float32{0}, 1, 1, 3, WithMetricsCollector(metrics)))

	stats := metrics.GetStats()
	assert.Equal(t, int64(2), stats.FilterCount)
	assert.Equal(t, int64(1), stats.FilterErrors)
	assert.Equal(t, int64(3), stats.ElementCount)
	assert.Positive(t, stats.VertexCount)

	metrics.RecordGrowth(64)
	metrics.RecordGrowth(32)
	assert.Equal(t, int64(2), metrics.GetStats().GrowthCount)
	assert.Equal(t, int64(64), metrics.GetStats().MaxCapacity)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	data := []float32{1, 2}
	require.NoError(t, Filter32(t.Context(), data, []float32{0, 1}, 1, 1, 2, WithLogger(logger)))

	out := buf.String()
	assert.Contains(t, out, "splat completed")
	assert.Contains(t, out, "blur completed")
	assert.Contains(t, out, "filter completed")
	assert.Contains(t, out, `"dimension":1`)
	assert.Contains(t, out, `"count":2`)

	buf.Reset()
	require.Error(t, Filter32(t.Context(), data, nil, 1, 1, 2, WithLogger(logger)))
	assert.Contains(t, buf.String(), "filter failed")
}
