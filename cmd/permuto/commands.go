package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/permuto"
	"github.com/hupe1980/permuto/blobstore"
	"github.com/hupe1980/permuto/phl"
	"github.com/hupe1980/permuto/tensor"
)

type filterCommand struct {
	globals *globalOptions

	Data     string    `long:"data" required:"true" description:"Input frame [B, C, S...]"`
	Features string    `long:"features" required:"true" description:"Feature frame [B, F, S...]"`
	Out      string    `long:"out" required:"true" description:"Output frame"`
	Sigma    []float64 `long:"sigma" description:"Standard deviation per feature channel (repeat once per channel)"`
}

func (c *filterCommand) Execute(_ []string) error {
	return c.globals.run(true, func(ctx context.Context, env *environment) error {
		if c.globals.Precision == "float64" {
			return runFilter[float64](ctx, env, c)
		}
		return runFilter[float32](ctx, env, c)
	})
}

func runFilter[T permuto.Float](ctx context.Context, env *environment, c *filterCommand) error {
	input, err := tensor.Load[T](ctx, env.store, c.Data, env.tensorOpts...)
	if err != nil {
		return err
	}
	features, err := tensor.Load[T](ctx, env.store, c.Features, env.tensorOpts...)
	if err != nil {
		return err
	}

	var sigmas []T
	for _, s := range c.Sigma {
		sigmas = append(sigmas, T(s))
	}

	out, err := phl.Filter(ctx, input, features, sigmas, env.filterOpts...)
	if err != nil {
		return err
	}
	if err := tensor.Save(ctx, env.store, c.Out, out, env.tensorOpts...); err != nil {
		return err
	}

	env.logger.InfoContext(ctx, "frame written", "name", c.Out, "shape", out.Shape)
	return nil
}

type bilateralCommand struct {
	globals *globalOptions

	Data         string  `long:"data" required:"true" description:"Input frame [B, C, S...]"`
	Out          string  `long:"out" required:"true" description:"Output frame"`
	SpatialSigma float64 `long:"spatial-sigma" default:"5" description:"Spatial standard deviation in elements"`
	ColorSigma   float64 `long:"color-sigma" default:"0.5" description:"Standard deviation of the channel values"`
}

func (c *bilateralCommand) Execute(_ []string) error {
	return c.globals.run(true, func(ctx context.Context, env *environment) error {
		if c.globals.Precision == "float64" {
			return runBilateral[float64](ctx, env, c)
		}
		return runBilateral[float32](ctx, env, c)
	})
}

func runBilateral[T permuto.Float](ctx context.Context, env *environment, c *bilateralCommand) error {
	input, err := tensor.Load[T](ctx, env.store, c.Data, env.tensorOpts...)
	if err != nil {
		return err
	}

	out, err := phl.Bilateral(ctx, input, T(c.SpatialSigma), T(c.ColorSigma), env.filterOpts...)
	if err != nil {
		return err
	}
	if err := tensor.Save(ctx, env.store, c.Out, out, env.tensorOpts...); err != nil {
		return err
	}

	env.logger.InfoContext(ctx, "frame written", "name", c.Out, "shape", out.Shape)
	return nil
}

type inspectCommand struct {
	globals *globalOptions
	out     io.Writer

	Args struct {
		Names []string `positional-arg-name:"NAME" required:"1"`
	} `positional-args:"yes"`
}

func (c *inspectCommand) Execute(_ []string) error {
	return c.globals.run(false, func(ctx context.Context, env *environment) error {
		w := c.out
		if w == nil {
			w = os.Stdout
		}
		for _, name := range c.Args.Names {
			h, err := readHeader(ctx, env.store, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%d bytes\n", name, h.DType, h.Shape, h.Compression, h.RawLen)
		}
		return nil
	})
}

// readHeader parses the frame header without fetching the payload.
func readHeader(ctx context.Context, store blobstore.BlobStore, name string) (*tensor.Header, error) {
	b, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	// magic..rank, up to 255 dims, rawLen and crc
	buf := make([]byte, min(b.Size(), 8+4*255+12))
	n, err := b.ReadAt(ctx, buf, 0)
	if err != nil && n < len(buf) {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	h, err := tensor.ParseHeader(buf[:n])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return h, nil
}
