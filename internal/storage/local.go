package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// LocalStorage publishes into a directory
type LocalStorage struct {
	fs       afero.Fs
	basePath string
}

// NewLocalStorage creates a local directory provider. A nil fs uses the OS
// filesystem.
func NewLocalStorage(fs afero.Fs, basePath string) (*LocalStorage, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if err := fs.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		fs:       fs,
		basePath: basePath,
	}, nil
}

// Name returns the provider name
func (ls *LocalStorage) Name() string {
	return "local"
}

// Health checks that the directory is writable
func (ls *LocalStorage) Health(ctx context.Context) error {
	if _, err := ls.fs.Stat(ls.basePath); err != nil {
		return fmt.Errorf("storage directory not accessible: %w", err)
	}

	testFile := filepath.Join(ls.basePath, ".health_check")
	if err := afero.WriteFile(ls.fs, testFile, []byte("ok"), 0644); err != nil {
		return fmt.Errorf("storage directory not writable: %w", err)
	}
	_ = ls.fs.Remove(testFile)

	return nil
}

// getPath maps a slash-separated key below the base path
func (ls *LocalStorage) getPath(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(ls.basePath, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// Upload writes data under key
func (ls *LocalStorage) Upload(ctx context.Context, key string, data io.Reader, size int64, opts *UploadOptions) (*Object, error) {
	if opts == nil {
		opts = &UploadOptions{}
	}

	filePath, err := ls.getPath(key)
	if err != nil {
		return nil, err
	}
	if err := ls.fs.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := ls.fs.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer func() { _ = file.Close() }()

	hash := md5.New()
	written, err := io.Copy(io.MultiWriter(file, hash), data)
	if err != nil {
		_ = ls.fs.Remove(filePath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	log.Debug().
		Str("key", key).
		Int64("size", written).
		Msg("File published to local storage")

	return &Object{
		Key:             key,
		Size:            info.Size(),
		ContentType:     opts.ContentType,
		ContentEncoding: opts.ContentEncoding,
		LastModified:    info.ModTime(),
		ETag:            hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

// Exists checks if a published file exists
func (ls *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	filePath, err := ls.getPath(key)
	if err != nil {
		return false, err
	}
	return afero.Exists(ls.fs, filePath)
}
