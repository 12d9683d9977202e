package blobstore

import (
	"context"

	"github.com/hupe1980/permuto/internal/cache"
	"github.com/hupe1980/permuto/internal/resource"
)

// CachingStore wraps a BlobStore and keeps whole blobs in an LRU cache.
// Blobs are read through in full on first Open.
type CachingStore struct {
	inner BlobStore
	cache *cache.LRU
}

// NewCachingStore caches up to capacity bytes of inner's blobs. If rc is
// non-nil, cached bytes count against its memory limit.
func NewCachingStore(inner BlobStore, capacity int64, rc *resource.Controller) *CachingStore {
	return &CachingStore{
		inner: inner,
		cache: cache.NewLRU(capacity, rc),
	}
}

// Open returns the cached blob, reading it from the inner store on a miss.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	if data, ok := s.cache.Get(name); ok {
		return &memoryBlob{data: data}, nil
	}

	data, err := ReadAll(ctx, s.inner, name)
	if err != nil {
		return nil, err
	}
	s.cache.Set(name, data)
	return &memoryBlob{data: data}, nil
}

// Create creates a blob in the inner store. The cached copy, if any, is
// dropped when the writer is closed.
func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	w, err := s.inner.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &invalidatingBlob{WritableBlob: w, invalidate: func() { s.invalidate(name) }}, nil
}

// Put writes through to the inner store.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.invalidate(name)
	return s.inner.Put(ctx, name, data)
}

// Delete removes the blob from the cache and the inner store.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.invalidate(name)
	return s.inner.Delete(ctx, name)
}

// List lists the inner store.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// Stats returns cache hit and miss counts.
func (s *CachingStore) Stats() (hits, misses int64) {
	return s.cache.Stats()
}

func (s *CachingStore) invalidate(name string) {
	s.cache.Invalidate(func(n string) bool { return n == name })
}

type invalidatingBlob struct {
	WritableBlob
	invalidate func()
}

func (b *invalidatingBlob) Close() error {
	err := b.WritableBlob.Close()
	b.invalidate()
	return err
}
