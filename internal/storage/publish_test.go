package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memProvider struct {
	uploads map[string]string
	opts    map[string]UploadOptions
	failOn  string
}

func newMemProvider() *memProvider {
	return &memProvider{uploads: map[string]string{}, opts: map[string]UploadOptions{}}
}

func (m *memProvider) Upload(_ context.Context, key string, data io.Reader, size int64, opts *UploadOptions) (*Object, error) {
	if key == m.failOn {
		return nil, assert.AnError
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}
	m.uploads[key] = string(b)
	m.opts[key] = *opts
	return &Object{Key: key, Size: size, ContentType: opts.ContentType, ContentEncoding: opts.ContentEncoding}, nil
}

func (m *memProvider) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.uploads[key]
	return ok, nil
}

func (m *memProvider) Name() string { return "mem" }

func (m *memProvider) Health(_ context.Context) error { return nil }

func TestPublisher_Publish(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/dest/1.min.js", []byte("a"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/dest/1.min.js.gz", []byte("gz"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/dest/js/vendor.min.js.br", []byte("br"), 0644))

	provider := newMemProvider()
	p := &Publisher{Provider: provider, Fs: fs, Root: "/dest", Prefix: "/static/", CacheControl: "max-age=60"}

	objects, err := p.Publish(context.Background(), []string{
		"/dest/1.min.js",
		"/dest/1.min.js.gz",
		"/dest/js/vendor.min.js.br",
	})
	require.NoError(t, err)
	require.Len(t, objects, 3)

	assert.Equal(t, "a", provider.uploads["static/1.min.js"])
	assert.Equal(t, "gz", provider.uploads["static/1.min.js.gz"])
	assert.Equal(t, "br", provider.uploads["static/js/vendor.min.js.br"])

	assert.Equal(t, "application/javascript", provider.opts["static/1.min.js.gz"].ContentType)
	assert.Equal(t, "gzip", provider.opts["static/1.min.js.gz"].ContentEncoding)
	assert.Equal(t, "br", provider.opts["static/js/vendor.min.js.br"].ContentEncoding)
	assert.Equal(t, "max-age=60", provider.opts["static/1.min.js"].CacheControl)
}

func TestPublisher_StopsOnFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/dest/1.js", []byte("1"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/dest/2.js", []byte("2"), 0644))

	provider := newMemProvider()
	provider.failOn = "1.js"
	p := &Publisher{Provider: provider, Fs: fs, Root: "/dest"}

	objects, err := p.Publish(context.Background(), []string{"/dest/1.js", "/dest/2.js"})
	require.Error(t, err)
	assert.Empty(t, objects)
	assert.Empty(t, provider.uploads)
}

func TestPublisher_SkipExisting(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/dest/1.min.js", []byte("new"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/dest/2.min.js", []byte("two"), 0644))

	provider := newMemProvider()
	provider.uploads["1.min.js"] = "old"
	p := &Publisher{Provider: provider, Fs: fs, Root: "/dest", SkipExisting: true}

	objects, err := p.Publish(context.Background(), []string{"/dest/1.min.js", "/dest/2.min.js"})
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "2.min.js", objects[0].Key)
	assert.Equal(t, "old", provider.uploads["1.min.js"])
	assert.Equal(t, "two", provider.uploads["2.min.js"])
}

func TestPublisher_Key(t *testing.T) {
	p := &Publisher{Root: "/dest"}

	key, err := p.Key("/dest/a/b.js")
	require.NoError(t, err)
	assert.Equal(t, "a/b.js", key)

	_, err = p.Key("/elsewhere/b.js")
	assert.Error(t, err)
}

func TestContentHeaders(t *testing.T) {
	tests := []struct {
		file, contentType, encoding string
	}{
		{"1.min.js", "application/javascript", ""},
		{"1.min.js.gz", "application/javascript", "gzip"},
		{"1.min.js.br", "application/javascript", "br"},
		{"index.html", "text/html; charset=utf-8", ""},
		{"blob.unknownext", "application/octet-stream", ""},
	}

	for _, tt := range tests {
		ct, enc := ContentHeaders(tt.file)
		assert.Equal(t, tt.contentType, ct, tt.file)
		assert.Equal(t, tt.encoding, enc, tt.file)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "disabled", cfg: Config{Provider: "ftp"}},
		{name: "local ok", cfg: Config{Enabled: true, Provider: "local", LocalPath: "/out"}},
		{name: "local missing path", cfg: Config{Enabled: true, Provider: "local"}, wantErr: "local_path"},
		{name: "s3 ok", cfg: Config{Enabled: true, Provider: "s3", Endpoint: "s3.example.com", Bucket: "b"}},
		{name: "s3 missing bucket", cfg: Config{Enabled: true, Provider: "s3", Endpoint: "s3.example.com"}, wantErr: "bucket"},
		{name: "unknown provider", cfg: Config{Enabled: true, Provider: "ftp"}, wantErr: "provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr))
		})
	}
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(Config{Provider: "local", LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "local", p.Name())

	p, err = NewProvider(Config{Provider: "s3", Endpoint: "localhost:9000", Bucket: "b"})
	require.NoError(t, err)
	assert.Equal(t, "s3", p.Name())

	_, err = NewProvider(Config{Provider: "gcs"})
	assert.Error(t, err)
}
