package blobstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory BlobStore for tests. It counts open blobs so
// tests can assert handle bounds.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte

	openMu  sync.Mutex
	live    int
	maxLive int
	opens   int
}

// NewMemoryStore creates a new in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Open opens a blob for reading. The blob sees the data as of Open.
func (m *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	m.mu.RLock()
	data, ok := m.blobs[name]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	m.openMu.Lock()
	m.live++
	m.opens++
	m.maxLive = max(m.maxLive, m.live)
	m.openMu.Unlock()

	return &memoryBlob{store: m, data: data}, nil
}

// Create creates a new writable blob.
func (m *MemoryStore) Create(_ context.Context, name string) (WritableBlob, error) {
	return &memoryWritableBlob{store: m, name: name}, nil
}

// Put writes a blob atomically.
func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	m.set(name, bytes.Clone(data))
	return nil
}

func (m *MemoryStore) set(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = data
}

// Delete removes a blob.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, name)
	return nil
}

// List returns the sorted names of blobs starting with prefix.
func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name := range m.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// LiveBlobs returns the number of blobs currently open.
func (m *MemoryStore) LiveBlobs() int {
	m.openMu.Lock()
	defer m.openMu.Unlock()
	return m.live
}

// MaxLiveBlobs returns the high-water mark of simultaneously open blobs.
func (m *MemoryStore) MaxLiveBlobs() int {
	m.openMu.Lock()
	defer m.openMu.Unlock()
	return m.maxLive
}

// Opens returns the total number of successful opens.
func (m *MemoryStore) Opens() int {
	m.openMu.Lock()
	defer m.openMu.Unlock()
	return m.opens
}

type memoryBlob struct {
	store  *MemoryStore
	data   []byte
	closed bool
}

func (b *memoryBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *memoryBlob) Size() int64 {
	return int64(len(b.data))
}

func (b *memoryBlob) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.store.openMu.Lock()
	b.store.live--
	b.store.openMu.Unlock()
	return nil
}

type memoryWritableBlob struct {
	store *MemoryStore
	name  string
	buf   bytes.Buffer
}

func (w *memoryWritableBlob) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *memoryWritableBlob) Close() error {
	w.store.set(w.name, bytes.Clone(w.buf.Bytes()))
	return nil
}

func (w *memoryWritableBlob) Sync() error {
	return nil
}
