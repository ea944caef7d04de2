package compress

import (
	"bytes"
	"errors"
	"io"

	"github.com/rs/zerolog"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/parse/v2"
	jslex "github.com/tdewolff/parse/v2/js"
)

const javascriptMediaType = "application/javascript"

// MinifyOptions configure the tdewolff compressor.
type MinifyOptions struct {
	// Munge renames local variables.
	Munge bool `mapstructure:"munge" yaml:"munge"`
	// LineBreak inserts a newline after the first ';' or '}' past this
	// column. Negative disables line breaking.
	LineBreak int `mapstructure:"linebreak" yaml:"linebreak"`
	// PreserveSemicolons is accepted for compatibility but has no effect.
	PreserveSemicolons bool `mapstructure:"preserve_semicolons" yaml:"preserve_semicolons"`
	// Precision is the number of significant digits kept in numbers; zero
	// keeps them all.
	Precision int `mapstructure:"precision" yaml:"precision"`
}

// Minify minifies with github.com/tdewolff/minify.
type Minify struct {
	m         *minify.M
	lineBreak int
}

// NewMinify creates a tdewolff compressor.
func NewMinify(o MinifyOptions, logger zerolog.Logger) *Minify {
	if o.PreserveSemicolons {
		logger.Warn().Str("compressor", TypeMinify).Msg("preserve_semicolons is not supported and will be ignored")
	}
	m := minify.New()
	m.Add(javascriptMediaType, &js.Minifier{
		Precision:    o.Precision,
		KeepVarNames: !o.Munge,
	})
	return &Minify{m: m, lineBreak: o.LineBreak}
}

func (c *Minify) Name() string { return TypeMinify }

func (c *Minify) Compress(src []byte, charset string, r Reporter) ([]byte, error) {
	in, err := toUTF8(src, charset)
	if err != nil {
		return nil, err
	}

	out, err := c.m.Bytes(javascriptMediaType, in)
	if err != nil {
		d := Diagnostic{Severity: SeverityError, Message: err.Error()}
		var perr *parse.Error
		if errors.As(err, &perr) {
			d.Message = perr.Message
			d.Line = perr.Line
			d.Column = perr.Column
			d.LineText = perr.Context
		}
		r.Report(d)
		return nil, nil
	}

	if c.lineBreak >= 0 {
		out = breakLines(out, c.lineBreak)
	}
	return fromUTF8(out, charset)
}

// breakLines inserts a newline after every ';' or '}' token that ends past
// column. Input that cannot be tokenized is returned unchanged.
func breakLines(src []byte, column int) []byte {
	l := jslex.NewLexer(parse.NewInputBytes(src))
	var buf bytes.Buffer
	buf.Grow(len(src) + len(src)/max(column, 1))

	col := 0
	prev := jslex.ErrorToken
	for {
		tt, data := l.Next()
		if tt == jslex.ErrorToken {
			if l.Err() != io.EOF {
				return src
			}
			break
		}
		if (tt == jslex.DivToken || tt == jslex.DivEqToken) && regexpAllowed(prev) {
			tt, data = l.RegExp()
			if tt == jslex.ErrorToken {
				return src
			}
		}

		buf.Write(data)
		if i := bytes.LastIndexByte(data, '\n'); i >= 0 {
			col = len(data) - i - 1
		} else {
			col += len(data)
		}

		if (tt == jslex.SemicolonToken || tt == jslex.CloseBraceToken) && col > column {
			buf.WriteByte('\n')
			col = 0
		}
		switch tt {
		case jslex.WhitespaceToken, jslex.LineTerminatorToken, jslex.CommentToken, jslex.CommentLineTerminatorToken:
		default:
			prev = tt
		}
	}
	return buf.Bytes()
}

// regexpAllowed reports whether a '/' following prev starts a regular
// expression literal rather than a division.
func regexpAllowed(prev jslex.TokenType) bool {
	switch prev {
	case jslex.IdentifierToken, jslex.StringToken, jslex.TemplateToken, jslex.TemplateEndToken,
		jslex.RegExpToken, jslex.PrivateIdentifierToken,
		jslex.CloseParenToken, jslex.CloseBracketToken, jslex.CloseBraceToken,
		jslex.ThisToken, jslex.SuperToken, jslex.TrueToken, jslex.FalseToken, jslex.NullToken:
		return false
	}
	return !jslex.IsNumeric(prev)
}
