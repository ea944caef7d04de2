// Package testutil provides shared test utilities and mocks for unit testing.
package testutil

import (
	"context"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/webminifier/internal/storage"
)

// MockStorageProvider implements storage.Provider in memory
type MockStorageProvider struct {
	mu      sync.RWMutex
	objects map[string][]byte
	options map[string]storage.UploadOptions

	// Callbacks for custom behavior
	OnUpload func(ctx context.Context, key string) error
	OnHealth func(ctx context.Context) error
}

// NewMockStorageProvider creates a new mock storage provider
func NewMockStorageProvider() *MockStorageProvider {
	return &MockStorageProvider{
		objects: make(map[string][]byte),
		options: make(map[string]storage.UploadOptions),
	}
}

func (m *MockStorageProvider) Name() string {
	return "mock"
}

func (m *MockStorageProvider) Health(ctx context.Context) error {
	if m.OnHealth != nil {
		return m.OnHealth(ctx)
	}
	return nil
}

func (m *MockStorageProvider) Upload(ctx context.Context, key string, data io.Reader, size int64, opts *storage.UploadOptions) (*storage.Object, error) {
	if m.OnUpload != nil {
		if err := m.OnUpload(ctx, key); err != nil {
			return nil, err
		}
	}

	content, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = content
	obj := &storage.Object{
		Key:          key,
		Size:         int64(len(content)),
		LastModified: time.Now(),
	}
	if opts != nil {
		m.options[key] = *opts
		obj.ContentType = opts.ContentType
		obj.ContentEncoding = opts.ContentEncoding
	}
	return obj, nil
}

func (m *MockStorageProvider) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

// Object returns the uploaded content of key
func (m *MockStorageProvider) Object(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	return data, ok
}

// Options returns the upload options key was stored with
func (m *MockStorageProvider) Options(key string) storage.UploadOptions {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.options[key]
}

// Keys returns every uploaded key, sorted
func (m *MockStorageProvider) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MemFs returns an in-memory filesystem holding files, keyed by path
func MemFs(t testing.TB, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}
	return fs
}
