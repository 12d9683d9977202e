package permuto

import (
	"errors"
	"fmt"

	"github.com/hupe1980/permuto/internal/lattice"
	"github.com/hupe1980/permuto/internal/resource"
)

var (
	// ErrInvalidElementCount is returned when the element count is not positive.
	ErrInvalidElementCount = errors.New("element count must be positive")

	// ErrInvalidChannels is returned when the data or feature channel count is not positive.
	ErrInvalidChannels = errors.New("channel counts must be positive")

	// ErrMemoryLimitExceeded is returned when the lattice does not fit the configured memory limit.
	ErrMemoryLimitExceeded = errors.New("memory limit exceeded")
)

// ErrBufferSize indicates a data or feature buffer whose length does not
// match elementCount times its channel count.
type ErrBufferSize struct {
	Name     string
	Expected int
	Actual   int
}

func (e *ErrBufferSize) Error() string {
	return fmt.Sprintf("%s buffer size mismatch: expected %d, got %d", e.Name, e.Expected, e.Actual)
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, resource.ErrMemoryLimitExceeded) {
		return fmt.Errorf("%w: %w", ErrMemoryLimitExceeded, err)
	}
	if errors.Is(err, lattice.ErrInvalidDimension) {
		return fmt.Errorf("%w: %w", ErrInvalidChannels, err)
	}

	return err
}
