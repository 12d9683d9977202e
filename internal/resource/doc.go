// Package resource governs the memory, worker and IO budgets of filter runs.
//
// Three budgets are tracked by a single Controller:
//
//   - Memory: bytes reserved for lattice storage (hash table key/value/entry
//     stores and the blur scratch buffer). Reservation is non-blocking and
//     fails fast with ErrMemoryLimitExceeded.
//   - Workers: every blur and slice range holds a worker slot while it runs,
//     so filter calls sharing a Controller never exceed MaxWorkers busy
//     goroutines between them.
//   - IO: a token bucket throttling tensor reads and writes against a blob
//     store.
//
// Usage:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 512 << 20,
//	    MaxWorkers:       4,
//	})
//	if err := rc.AcquireMemory(n); err != nil {
//	    return err // ErrMemoryLimitExceeded
//	}
//	defer rc.ReleaseMemory(n)
//
// All methods are nil-safe: a nil *Controller tracks nothing and limits
// nothing, so callers never need nil checks.
package resource
