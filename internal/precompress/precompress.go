// Package precompress writes pre-compressed sidecars (.gz, .br) next to
// final outputs so static file servers can serve them directly.
package precompress

import (
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
)

// Format is a sidecar compression format.
type Format string

const (
	Gzip   Format = "gzip"
	Brotli Format = "brotli"
)

// Extension is the suffix appended to the original file name.
func (f Format) Extension() string {
	switch f {
	case Gzip:
		return ".gz"
	case Brotli:
		return ".br"
	}
	return ""
}

// ContentEncoding is the HTTP Content-Encoding the sidecar is served with.
func (f Format) ContentEncoding() string {
	switch f {
	case Gzip:
		return "gzip"
	case Brotli:
		return "br"
	}
	return ""
}

// ParseFormats validates configured format names. "br" and "gz" are accepted
// as aliases; duplicates are dropped.
func ParseFormats(names []string) ([]Format, error) {
	var out []Format
	seen := make(map[Format]bool)
	for _, name := range names {
		var f Format
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "gzip", "gz":
			f = Gzip
		case "brotli", "br":
			f = Brotli
		default:
			return nil, fmt.Errorf("unknown precompression format %q", name)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// FormatOf returns the format of a sidecar path, if it is one.
func FormatOf(path string) (Format, bool) {
	switch {
	case strings.HasSuffix(path, Gzip.Extension()):
		return Gzip, true
	case strings.HasSuffix(path, Brotli.Extension()):
		return Brotli, true
	}
	return "", false
}

// Write creates one sidecar per format for path and returns the sidecar
// paths. When keepExisting is set, sidecars already on disk are left alone.
func Write(fs afero.Fs, path string, formats []Format, keepExisting bool) ([]string, error) {
	if len(formats) == 0 {
		return nil, nil
	}

	var src []byte
	var written []string
	for _, f := range formats {
		target := path + f.Extension()
		if keepExisting {
			exists, err := afero.Exists(fs, target)
			if err != nil {
				return written, fmt.Errorf("failed to stat %s: %w", target, err)
			}
			if exists {
				written = append(written, target)
				continue
			}
		}

		if src == nil {
			b, err := afero.ReadFile(fs, path)
			if err != nil {
				return written, fmt.Errorf("failed to read %s: %w", path, err)
			}
			src = b
		}
		if err := writeSidecar(fs, target, f, src); err != nil {
			return written, err
		}
		written = append(written, target)
	}
	return written, nil
}

func writeSidecar(fs afero.Fs, target string, f Format, src []byte) error {
	dst, err := fs.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	defer func() { _ = dst.Close() }()

	var w io.WriteCloser
	switch f {
	case Gzip:
		gw, err := gzip.NewWriterLevel(dst, gzip.BestCompression)
		if err != nil {
			return fmt.Errorf("failed to create gzip writer: %w", err)
		}
		w = gw
	case Brotli:
		w = brotli.NewWriterLevel(dst, brotli.BestCompression)
	default:
		return fmt.Errorf("unknown precompression format %q", f)
	}

	if _, err := w.Write(src); err != nil {
		return fmt.Errorf("failed to compress %s: %w", target, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to compress %s: %w", target, err)
	}
	return dst.Close()
}
