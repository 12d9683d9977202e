package hashtable

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/hupe1980/permuto/internal/conv"
)

const (
	// DefaultCapacity is the initial number of entry slots.
	DefaultCapacity = 1 << 15

	// hashMultiplier must not change: lattice output depends on probe order.
	hashMultiplier = 2531011

	empty = -1
)

// ErrInvalidDimension is returned when kd or vd is not positive.
var ErrInvalidDimension = errors.New("hashtable: dimensions must be positive")

// MemoryAcquirer reserves and releases bytes against a budget.
type MemoryAcquirer interface {
	AcquireMemory(bytes int64) error
	ReleaseMemory(bytes int64)
}

type entry struct {
	keyOff   int32
	valueOff int32
}

// Table maps lattice keys to value vectors.
type Table[T conv.Float] struct {
	kd, vd   int
	capacity int
	filled   int
	growths  int

	entries []entry
	keys    []int16
	values  []T

	reserved int64
	acquirer MemoryAcquirer
	onGrow   func(capacity int)
}

// Option configures a Table.
type Option func(*options)

type options struct {
	capacity int
	acquirer MemoryAcquirer
	onGrow   func(capacity int)
}

// WithInitialCapacity sets the initial slot count.
// It is rounded up to a power of two (minimum 4).
func WithInitialCapacity(capacity int) Option {
	return func(o *options) {
		o.capacity = capacity
	}
}

// WithMemoryAcquirer charges every store allocation to acquirer.
func WithMemoryAcquirer(acquirer MemoryAcquirer) Option {
	return func(o *options) {
		o.acquirer = acquirer
	}
}

// WithGrowHook registers fn to be called with the new capacity after each growth.
func WithGrowHook(fn func(capacity int)) Option {
	return func(o *options) {
		o.onGrow = fn
	}
}

// New creates a table for kd-dimensional keys and vd-dimensional values.
func New[T conv.Float](kd, vd int, optFns ...Option) (*Table[T], error) {
	if kd <= 0 || vd <= 0 {
		return nil, fmt.Errorf("%w: kd=%d vd=%d", ErrInvalidDimension, kd, vd)
	}

	o := options{capacity: DefaultCapacity}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}

	t := &Table[T]{
		kd:       kd,
		vd:       vd,
		capacity: roundCapacity(o.capacity),
		acquirer: o.acquirer,
		onGrow:   o.onGrow,
	}

	if err := t.allocate(t.capacity); err != nil {
		return nil, err
	}
	t.entries = newEntries(t.capacity)
	t.keys = make([]int16, kd*t.capacity/2)
	t.values = make([]T, vd*t.capacity/2)

	return t, nil
}

func roundCapacity(c int) int {
	n := 4
	for n < c {
		n <<= 1
	}
	return n
}

func newEntries(capacity int) []entry {
	e := make([]entry, capacity)
	for i := range e {
		e[i] = entry{keyOff: empty, valueOff: empty}
	}
	return e
}

// footprint returns the bytes held by all three stores at the given capacity.
func (t *Table[T]) footprint(capacity int) int64 {
	var zero T
	half := int64(capacity / 2)
	return int64(capacity)*int64(unsafe.Sizeof(entry{})) +
		half*int64(t.kd)*int64(unsafe.Sizeof(int16(0))) +
		half*int64(t.vd)*int64(unsafe.Sizeof(zero))
}

// allocate checks that offsets at capacity fit the entry fields and reserves
// the memory for the stores.
func (t *Table[T]) allocate(capacity int) error {
	if _, err := conv.IntToInt32(max(t.kd, t.vd) * (capacity / 2)); err != nil {
		return fmt.Errorf("hashtable: capacity %d: %w", capacity, err)
	}
	bytes := t.footprint(capacity)
	if t.acquirer != nil {
		if err := t.acquirer.AcquireMemory(bytes); err != nil {
			return fmt.Errorf("hashtable: reserve %d bytes for capacity %d: %w", bytes, capacity, err)
		}
	}
	t.reserved += bytes
	return nil
}

// Hash returns the hash of the first kd coordinates of key.
func (t *Table[T]) Hash(key []int16) uint64 {
	var h uint64
	for _, k := range key[:t.kd] {
		h += uint64(int64(k))
		h *= hashMultiplier
	}
	return h
}

func (t *Table[T]) slot(key []int16) int {
	return int(t.Hash(key) & uint64(t.capacity-1))
}

func (t *Table[T]) matches(e entry, key []int16) bool {
	stored := t.keys[e.keyOff : int(e.keyOff)+t.kd]
	for i, k := range stored {
		if k != key[i] {
			return false
		}
	}
	return true
}

// LookupOrInsert returns the value offset for key, inserting the key with a
// zero value vector if it is absent. It may grow the table.
func (t *Table[T]) LookupOrInsert(key []int16) (int, error) {
	if t.filled >= t.capacity/2-1 {
		if err := t.grow(); err != nil {
			return 0, err
		}
	}

	h := t.slot(key)
	for {
		e := t.entries[h]
		if e.keyOff == empty {
			keyOff := t.filled * t.kd
			copy(t.keys[keyOff:keyOff+t.kd], key[:t.kd])
			e = entry{keyOff: int32(keyOff), valueOff: int32(t.filled * t.vd)}
			t.entries[h] = e
			t.filled++
			return int(e.valueOff), nil
		}
		if t.matches(e, key) {
			return int(e.valueOff), nil
		}
		h++
		if h == t.capacity {
			h = 0
		}
	}
}

// Lookup returns the value offset for key without inserting.
func (t *Table[T]) Lookup(key []int16) (int, bool) {
	h := t.slot(key)
	for {
		e := t.entries[h]
		if e.keyOff == empty {
			return 0, false
		}
		if t.matches(e, key) {
			return int(e.valueOff), true
		}
		h++
		if h == t.capacity {
			h = 0
		}
	}
}

// grow doubles the capacity. Keys and values keep their offsets; only the
// entry array is rehashed.
func (t *Table[T]) grow() error {
	oldBytes := t.reserved
	newCap := t.capacity * 2
	if err := t.allocate(newCap); err != nil {
		return err
	}

	values := make([]T, t.vd*newCap/2)
	copy(values, t.values[:t.filled*t.vd])

	keys := make([]int16, t.kd*newCap/2)
	copy(keys, t.keys[:t.filled*t.kd])

	t.capacity = newCap
	t.keys = keys
	t.values = values

	entries := newEntries(newCap)
	for _, e := range t.entries {
		if e.keyOff == empty {
			continue
		}
		h := t.slot(t.keys[e.keyOff : int(e.keyOff)+t.kd])
		for entries[h].keyOff != empty {
			h++
			if h == newCap {
				h = 0
			}
		}
		entries[h] = e
	}
	t.entries = entries

	if t.acquirer != nil {
		t.acquirer.ReleaseMemory(oldBytes)
	}
	t.reserved -= oldBytes
	t.growths++

	if t.onGrow != nil {
		t.onGrow(newCap)
	}
	return nil
}

// Size returns the number of stored keys.
func (t *Table[T]) Size() int { return t.filled }

// Capacity returns the number of entry slots.
func (t *Table[T]) Capacity() int { return t.capacity }

// Growths returns how many times the table has doubled.
func (t *Table[T]) Growths() int { return t.growths }

// KeyDim returns kd.
func (t *Table[T]) KeyDim() int { return t.kd }

// ValueDim returns vd.
func (t *Table[T]) ValueDim() int { return t.vd }

// Keys returns the key store truncated to the stored keys.
// Key i occupies Keys()[i*kd:(i+1)*kd].
func (t *Table[T]) Keys() []int16 { return t.keys[:t.filled*t.kd] }

// Key returns the i-th stored key.
func (t *Table[T]) Key(i int) []int16 { return t.keys[i*t.kd : (i+1)*t.kd] }

// Values returns the value store truncated to the stored vectors.
// The slice is invalidated by growth.
func (t *Table[T]) Values() []T { return t.values[:t.filled*t.vd] }

// Value returns the vector at a value offset.
func (t *Table[T]) Value(offset int) []T { return t.values[offset : offset+t.vd] }

// Reserved returns the bytes currently charged to the memory acquirer.
func (t *Table[T]) Reserved() int64 { return t.reserved }

// Reset empties the table, keeping its capacity.
func (t *Table[T]) Reset() {
	for i := range t.entries {
		t.entries[i] = entry{keyOff: empty, valueOff: empty}
	}
	clear(t.values[:t.filled*t.vd])
	t.filled = 0
}

// Release returns the reserved memory and drops the stores.
// The table must not be used afterwards.
func (t *Table[T]) Release() {
	if t.acquirer != nil {
		t.acquirer.ReleaseMemory(t.reserved)
	}
	t.reserved = 0
	t.entries, t.keys, t.values = nil, nil, nil
	t.filled = 0
}
