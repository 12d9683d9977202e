package permuto

import (
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/permuto/internal/resource"
)

// ResourceController bounds memory, worker and IO usage. A single controller
// may be shared by many filter calls.
type ResourceController = resource.Controller

// ResourceConfig configures a ResourceController.
type ResourceConfig = resource.Config

// NewResourceController creates a ResourceController.
func NewResourceController(cfg ResourceConfig) *ResourceController {
	return resource.NewController(cfg)
}

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	memoryLimit      int64
	controller       *ResourceController
	workers          int
	mask             *roaring.Bitmap
}

// Option configures a filter call.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring filter calls.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &permuto.BasicMetricsCollector{}
//	_ = permuto.Filter32(ctx, data, features, 3, 5, n, permuto.WithMetricsCollector(metrics))
//	stats := metrics.GetStats()
//	fmt.Printf("Filters: %d, Avg latency: %dns\n", stats.FilterCount, stats.FilterAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := permuto.NewJSONLogger(slog.LevelInfo)
//	_ = permuto.Filter32(ctx, data, features, 3, 5, n, permuto.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMemoryLimit caps the bytes reserved by the lattice hash table, the
// replay list and the blur scratch buffer. Exceeding it fails the call with
// ErrMemoryLimitExceeded. Ignored when WithResourceController is set.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithResourceController charges lattice memory to a shared controller and
// bounds the blur and slice goroutines of all calls sharing it by its
// MaxWorkers. When no worker count is given, MaxWorkers is used.
func WithResourceController(rc *ResourceController) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithWorkers sets the number of goroutines used for blur and slice.
// The result does not depend on the worker count.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithMask restricts the write-back to the elements whose index is in mask.
// Every element still contributes to the filter.
func WithMask(mask *roaring.Bitmap) Option {
	return func(o *options) {
		o.mask = mask
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}

	if o.controller == nil && o.memoryLimit > 0 {
		o.controller = resource.NewController(resource.Config{
			MemoryLimitBytes: o.memoryLimit,
			MaxWorkers:       int64(max(o.workers, 1)),
		})
	}
	if o.workers <= 0 {
		o.workers = o.controller.MaxWorkers()
	}
	return o
}
