package compress

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Esbuild optimization levels.
const (
	LevelWhitespace = "whitespace"
	LevelSimple     = "simple"
	LevelAdvanced   = "advanced"
)

// EsbuildOptions configure the esbuild compressor.
type EsbuildOptions struct {
	// Level is one of whitespace, simple or advanced.
	Level string `mapstructure:"level" yaml:"level"`
	// AcceptConst allows ES2015+ syntax in the output. Without it the output
	// targets ES5 and syntax that cannot be lowered is reported as an error.
	AcceptConst bool `mapstructure:"accept_const" yaml:"accept_const"`
}

// Esbuild minifies with esbuild's transform API.
type Esbuild struct {
	opts api.TransformOptions
}

// NewEsbuild creates an esbuild compressor.
func NewEsbuild(o EsbuildOptions) (*Esbuild, error) {
	opts := api.TransformOptions{
		Loader:  api.LoaderJS,
		Charset: api.CharsetUTF8,
		Target:  api.ES5,
	}
	if o.AcceptConst {
		opts.Target = api.ESNext
	}

	switch strings.ToLower(o.Level) {
	case LevelWhitespace:
		opts.MinifyWhitespace = true
	case "", LevelSimple:
		opts.MinifyWhitespace = true
		opts.MinifySyntax = true
	case LevelAdvanced:
		opts.MinifyWhitespace = true
		opts.MinifySyntax = true
		opts.MinifyIdentifiers = true
	default:
		return nil, fmt.Errorf("unknown esbuild level %q", o.Level)
	}
	return &Esbuild{opts: opts}, nil
}

func (e *Esbuild) Name() string { return TypeEsbuild }

func (e *Esbuild) Compress(src []byte, charset string, r Reporter) ([]byte, error) {
	in, err := toUTF8(src, charset)
	if err != nil {
		return nil, err
	}

	result := api.Transform(string(in), e.opts)
	for _, msg := range result.Warnings {
		r.Report(fromMessage(SeverityWarning, msg))
	}
	for _, msg := range result.Errors {
		r.Report(fromMessage(SeverityError, msg))
	}
	if len(result.Errors) > 0 {
		return nil, nil
	}
	return fromUTF8(result.Code, charset)
}

func fromMessage(sev Severity, msg api.Message) Diagnostic {
	d := Diagnostic{Severity: sev, Message: msg.Text}
	if msg.Location != nil {
		d.Line = msg.Location.Line
		d.Column = msg.Location.Column
		d.LineText = msg.Location.LineText
	}
	return d
}
