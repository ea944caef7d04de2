package compress

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// lookupEncoding resolves a charset label. UTF-8 and the empty label yield a
// nil encoding, meaning no transcoding is needed.
func lookupEncoding(label string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8":
		return nil, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return enc, nil
}

// toUTF8 decodes src from the named charset.
func toUTF8(src []byte, label string) ([]byte, error) {
	enc, err := lookupEncoding(label)
	if err != nil || enc == nil {
		return src, err
	}
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(src), enc.NewDecoder()))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", label, err)
	}
	return out, nil
}

// fromUTF8 encodes UTF-8 src into the named charset.
func fromUTF8(src []byte, label string) ([]byte, error) {
	enc, err := lookupEncoding(label)
	if err != nil || enc == nil {
		return src, err
	}
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(src), enc.NewEncoder()))
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", label, err)
	}
	return out, nil
}
