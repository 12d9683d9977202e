package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/permuto"
	"github.com/hupe1980/permuto/blobstore"
	"github.com/hupe1980/permuto/blobstore/minio"
	"github.com/hupe1980/permuto/blobstore/s3"
	"github.com/hupe1980/permuto/tensor"
)

// environment holds everything a command needs, built from the global flags.
type environment struct {
	logger  *permuto.Logger
	store   blobstore.BlobStore
	rc      *permuto.ResourceController
	metrics *permuto.BasicMetricsCollector

	filterOpts []permuto.Option
	tensorOpts []tensor.Option
}

func (g *globalOptions) logger() (*permuto.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(g.LogLevel)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	if g.JSONLogs {
		return permuto.NewJSONLogger(level), nil
	}
	return permuto.NewTextLogger(level), nil
}

// minioConfig builds the MinIO connection settings. Only commands that
// write frames create a missing bucket.
func (g *globalOptions) minioConfig(write bool) minio.Config {
	return minio.Config{
		Endpoint:     g.Endpoint,
		AccessKey:    g.AccessKey,
		SecretKey:    g.SecretKey,
		Secure:       !g.Insecure,
		Region:       g.Region,
		Bucket:       g.Bucket,
		Prefix:       g.Prefix,
		CreateBucket: write,
	}
}

func (g *globalOptions) openStore(ctx context.Context, write bool) (blobstore.BlobStore, error) {
	switch g.Store {
	case "", "local":
		return blobstore.NewLocalStore(g.Root), nil
	case "minio":
		if g.Bucket == "" || g.Endpoint == "" {
			return nil, errors.New("minio store requires --bucket and --endpoint")
		}
		store, err := minio.Dial(ctx, g.minioConfig(write))
		if err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		if g.Bucket == "" {
			return nil, errors.New("s3 store requires --bucket")
		}
		opts := []s3.Option{s3.WithPrefix(g.Prefix)}
		if g.Region != "" {
			opts = append(opts, s3.WithRegion(g.Region))
		}
		if g.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(g.Endpoint))
		}
		store, err := s3.New(ctx, g.Bucket, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown store %q", g.Store)
}

func (g *globalOptions) open(ctx context.Context, write bool) (*environment, error) {
	logger, err := g.logger()
	if err != nil {
		return nil, err
	}

	compression, err := tensor.ParseCompression(g.Compression)
	if err != nil {
		return nil, err
	}

	store, err := g.openStore(ctx, write)
	if err != nil {
		return nil, err
	}

	rc := permuto.NewResourceController(permuto.ResourceConfig{
		MemoryLimitBytes:   g.MemoryLimit,
		MaxWorkers:         int64(max(g.Workers, 1)),
		IOLimitBytesPerSec: g.IOLimit,
	})

	if g.CacheSize > 0 {
		store = blobstore.NewCachingStore(store, g.CacheSize, rc)
	}

	metrics := &permuto.BasicMetricsCollector{}

	return &environment{
		logger:  logger,
		store:   store,
		rc:      rc,
		metrics: metrics,
		filterOpts: []permuto.Option{
			permuto.WithLogger(logger),
			permuto.WithMetricsCollector(metrics),
			permuto.WithResourceController(rc),
		},
		tensorOpts: []tensor.Option{
			tensor.WithCompression(compression),
			tensor.WithResourceController(rc),
		},
	}, nil
}

// run executes fn with an environment and a context canceled on SIGINT or
// SIGTERM, and logs a summary when it returns. write is set by commands
// that store frames.
func (g *globalOptions) run(write bool, fn func(ctx context.Context, env *environment) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := g.open(ctx, write)
	if err != nil {
		return err
	}

	err = fn(ctx, env)

	stats := env.metrics.GetStats()
	env.logger.DebugContext(ctx, "run finished",
		"filters", stats.FilterCount,
		"filter_errors", stats.FilterErrors,
		"elements", stats.ElementCount,
		"vertices", stats.VertexCount,
		"growths", stats.GrowthCount,
		"peak_memory", env.rc.PeakMemoryUsage(),
	)
	if cs, ok := env.store.(*blobstore.CachingStore); ok {
		hits, misses := cs.Stats()
		env.logger.DebugContext(ctx, "blob cache", "hits", hits, "misses", misses)
	}
	return err
}
