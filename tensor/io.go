package tensor

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/permuto/blobstore"
	"github.com/hupe1980/permuto/internal/conv"
	"github.com/hupe1980/permuto/internal/resource"
)

const ioChunkSize = 256 * 1024

type options struct {
	compression Compression
	rc          *resource.Controller
}

// Option configures Load and Save.
type Option func(*options)

// WithCompression sets the payload compression used by Save.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithResourceController rate-limits blob I/O and charges the frame buffer
// and the decoded payload to the controller's memory budget.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Save encodes t and writes it to store under name.
func Save[T conv.Float](ctx context.Context, store blobstore.BlobStore, name string, t *Tensor[T], opts ...Option) error {
	o := applyOptions(opts)

	frame, err := Encode(t, o.compression)
	if err != nil {
		return err
	}

	w, err := store.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("tensor: create %s: %w", name, err)
	}

	rw := resource.NewRateLimitedWriter(ctx, w, o.rc)
	for rest := frame; len(rest) > 0; {
		n := min(len(rest), ioChunkSize)
		if _, err := rw.Write(rest[:n]); err != nil {
			_ = w.Close()
			_ = store.Delete(context.WithoutCancel(ctx), name)
			return fmt.Errorf("tensor: write %s: %w", name, err)
		}
		rest = rest[n:]
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("tensor: commit %s: %w", name, err)
	}
	return nil
}

// Load reads and decodes the frame stored under name.
func Load[T conv.Float](ctx context.Context, store blobstore.BlobStore, name string, opts ...Option) (*Tensor[T], error) {
	o := applyOptions(opts)

	b, err := store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("tensor: open %s: %w", name, err)
	}
	defer b.Close()

	size := b.Size()
	if err := o.rc.AcquireMemory(size); err != nil {
		return nil, fmt.Errorf("tensor: load %s: %w", name, err)
	}
	defer o.rc.ReleaseMemory(size)

	r, err := b.ReadRange(ctx, 0, size)
	if err != nil {
		return nil, fmt.Errorf("tensor: read %s: %w", name, err)
	}
	defer r.Close()

	frame := make([]byte, size)
	if _, err := io.ReadFull(resource.NewRateLimitedReader(ctx, r, o.rc), frame); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = fmt.Errorf("%w: %w", ErrInvalidFrame, err)
		}
		return nil, fmt.Errorf("tensor: read %s: %w", name, err)
	}

	// The decoded payload is sized by the header, not by the blob.
	h, err := ParseHeader(frame)
	if err != nil {
		return nil, fmt.Errorf("tensor: decode %s: %w", name, err)
	}
	rawLen, err := conv.Uint64ToInt(h.RawLen)
	if err != nil {
		return nil, fmt.Errorf("tensor: decode %s: %w: %w", name, ErrInvalidFrame, err)
	}
	if err := o.rc.AcquireMemory(int64(rawLen)); err != nil {
		return nil, fmt.Errorf("tensor: decode %s: %w", name, err)
	}
	defer o.rc.ReleaseMemory(int64(rawLen))

	t, err := Decode[T](frame)
	if err != nil {
		return nil, fmt.Errorf("tensor: decode %s: %w", name, err)
	}
	return t, nil
}
