// Package compress minifies bundle files through pluggable engines.
package compress

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Compressor types.
const (
	TypeNone    = "none"
	TypeMinify  = "minify"
	TypeEsbuild = "esbuild"
)

// Compressor turns a script into a smaller equivalent script. Problems with
// the script itself are sent to the reporter; the returned error is reserved
// for failures that have nothing to do with the input, such as an unknown
// charset.
type Compressor interface {
	Name() string
	Compress(src []byte, charset string, r Reporter) ([]byte, error)
}

// Passthrough is implemented by compressors that leave bundles untouched.
// The stage never invokes them and publishes the plain bundle instead.
type Passthrough interface {
	Passthrough() bool
}

// IsPassthrough reports whether c leaves its input untouched.
func IsPassthrough(c Compressor) bool {
	p, ok := c.(Passthrough)
	return ok && p.Passthrough()
}

// Options selects and configures a compressor.
type Options struct {
	Type    string         `mapstructure:"type" yaml:"type"`
	Minify  MinifyOptions  `mapstructure:"minify" yaml:"minify"`
	Esbuild EsbuildOptions `mapstructure:"esbuild" yaml:"esbuild"`
}

// New creates the compressor selected by opts.Type.
func New(opts Options, logger zerolog.Logger) (Compressor, error) {
	switch strings.ToLower(opts.Type) {
	case TypeNone:
		return None{}, nil
	case TypeMinify:
		return NewMinify(opts.Minify, logger), nil
	case "", TypeEsbuild:
		return NewEsbuild(opts.Esbuild)
	default:
		return nil, fmt.Errorf("unknown compressor type %q (expected %s, %s or %s)", opts.Type, TypeNone, TypeMinify, TypeEsbuild)
	}
}

// None publishes bundles as they are.
type None struct{}

func (None) Name() string { return TypeNone }

func (None) Passthrough() bool { return true }

func (None) Compress(src []byte, _ string, _ Reporter) ([]byte, error) {
	return src, nil
}
