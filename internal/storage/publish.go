package storage

import (
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/fluxbase-eu/webminifier/internal/observability"
	"github.com/fluxbase-eu/webminifier/internal/precompress"
)

// Publisher uploads build outputs, keyed by their path relative to Root.
type Publisher struct {
	Provider     Provider
	Fs           afero.Fs
	Root         string
	Prefix       string
	CacheControl string
	// SkipExisting leaves keys already present in the target untouched.
	SkipExisting bool
	Tracer       *observability.Tracer
}

// Key maps a file below Root to its object key.
func (p *Publisher) Key(file string) (string, error) {
	rel, err := filepath.Rel(p.Root, file)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s", file, p.Root)
	}
	return path.Join(strings.Trim(p.Prefix, "/"), filepath.ToSlash(rel)), nil
}

// Publish uploads every file in order and stops at the first failure.
// Files skipped because of SkipExisting are not part of the result.
func (p *Publisher) Publish(ctx context.Context, files []string) ([]*Object, error) {
	objects := make([]*Object, 0, len(files))
	for _, file := range files {
		obj, err := p.publishFile(ctx, file)
		if err != nil {
			return objects, err
		}
		if obj != nil {
			objects = append(objects, obj)
		}
	}
	return objects, nil
}

func (p *Publisher) publishFile(ctx context.Context, file string) (obj *Object, err error) {
	key, err := p.Key(file)
	if err != nil {
		return nil, err
	}

	ctx, span := p.Tracer.StartPublishSpan(ctx, p.Provider.Name(), key)
	defer func() { observability.EndSpan(span, err) }()

	if p.SkipExisting {
		exists, err := p.Provider.Exists(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s: %w", key, err)
		}
		if exists {
			observability.AddSpanEvent(ctx, "publish.skipped")
			return nil, nil
		}
	}

	f, err := p.Fs.Open(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", file, err)
	}

	contentType, contentEncoding := ContentHeaders(file)
	obj, err = p.Provider.Upload(ctx, key, f, info.Size(), &UploadOptions{
		ContentType:     contentType,
		ContentEncoding: contentEncoding,
		CacheControl:    p.CacheControl,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to publish %s: %w", file, err)
	}
	return obj, nil
}

// ContentHeaders derives Content-Type and Content-Encoding from a file name.
// Pre-compressed sidecars carry the type of the file they were made from.
func ContentHeaders(file string) (contentType, contentEncoding string) {
	name := file
	if f, ok := precompress.FormatOf(file); ok {
		contentEncoding = f.ContentEncoding()
		name = strings.TrimSuffix(file, f.Extension())
	}

	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".js", ".mjs":
		contentType = "application/javascript"
	default:
		contentType = mime.TypeByExtension(ext)
		if contentType == "" {
			contentType = "application/octet-stream"
		}
	}
	return contentType, contentEncoding
}
