package compress

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Severity classifies a compressor diagnostic.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Diagnostic is a problem a compressor found in its input.
type Diagnostic struct {
	Severity Severity
	Message  string
	// Line is 1-based; zero when unknown.
	Line int
	// Column is 0-based.
	Column   int
	LineText string
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%d:%d: %s", d.Line, d.Column, d.Message)
	}
	return d.Message
}

// Reporter receives the diagnostics of one compressor invocation.
type Reporter interface {
	Report(d Diagnostic)
}

// State is a Reporter that keeps every diagnostic and logs it as it arrives.
type State struct {
	logger      zerolog.Logger
	diagnostics []Diagnostic
}

// NewState creates a reporter logging through logger.
func NewState(logger zerolog.Logger) *State {
	return &State{logger: logger}
}

// Report records d.
func (s *State) Report(d Diagnostic) {
	s.diagnostics = append(s.diagnostics, d)

	ev := s.logger.Warn()
	if d.Severity == SeverityError {
		ev = s.logger.Error()
	}
	ev = ev.Str("severity", d.Severity.String())
	if d.Line > 0 {
		ev = ev.Int("line", d.Line).Int("column", d.Column)
	}
	if d.LineText != "" {
		ev = ev.Str("source", d.LineText)
	}
	ev.Msg(d.Message)
}

// Errors returns the error diagnostics in report order.
func (s *State) Errors() []Diagnostic {
	return s.filter(SeverityError)
}

// Warnings returns the warning diagnostics in report order.
func (s *State) Warnings() []Diagnostic {
	return s.filter(SeverityWarning)
}

// HasErrors reports whether any error was reported.
func (s *State) HasErrors() bool {
	return len(s.Errors()) > 0
}

// HasWarnings reports whether any warning was reported.
func (s *State) HasWarnings() bool {
	return len(s.Warnings()) > 0
}

func (s *State) filter(sev Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range s.diagnostics {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}
