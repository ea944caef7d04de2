package compress

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/fluxbase-eu/webminifier/internal/observability"
	"github.com/fluxbase-eu/webminifier/internal/planner"
)

// ErrCompression is returned when a compressor reported errors for a bundle.
var ErrCompression = errors.New("compression failed")

// Result describes what happened to one bundle.
type Result struct {
	Bundle *planner.Bundle
	// Output is the file documents should reference.
	Output     string
	SizeBefore int64
	SizeAfter  int64
	Errors     []Diagnostic
	Warnings   []Diagnostic
	// Skipped is set when the compressor was not invoked.
	Skipped bool
	// Pruned is set when the plain bundle was removed.
	Pruned bool
}

// HasErrors reports whether the compressor reported errors.
func (r *Result) HasErrors() bool { return len(r.Errors) > 0 }

// HasWarnings reports whether the compressor reported warnings.
func (r *Result) HasWarnings() bool { return len(r.Warnings) > 0 }

// Ratio is the minified size over the plain size; zero when unknown.
func (r *Result) Ratio() float64 {
	if r.SizeBefore == 0 || r.SizeAfter == 0 {
		return 0
	}
	return float64(r.SizeAfter) / float64(r.SizeBefore)
}

// Stage runs bundles through a compressor and writes the minified siblings.
type Stage struct {
	Fs         afero.Fs
	Compressor Compressor
	Charset    string
	// PruneUnminified removes the plain bundle after a clean compression.
	PruneUnminified bool
	Logger          zerolog.Logger
	Metrics         *observability.Metrics
	Tracer          *observability.Tracer
}

// Compress minifies b. A bundle that is already on disk together with its
// minified sibling is not compressed again. When the compressor reports
// errors the plain bundle is left in place, nothing is written and the
// returned error wraps ErrCompression.
func (s *Stage) Compress(ctx context.Context, b *planner.Bundle) (*Result, error) {
	res := &Result{Bundle: b, Output: b.MinifiedPath}
	logger := s.Logger.With().Str("bundle", b.Name).Logger()

	if IsPassthrough(s.Compressor) {
		res.Output = b.Path
		res.Skipped = true
		return res, nil
	}

	if b.Preexisting {
		exists, err := afero.Exists(s.Fs, b.MinifiedPath)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", b.MinifiedPath, err)
		}
		if exists {
			logger.Debug().Str("path", b.MinifiedPath).Msg("Minified bundle already present, skipping compression")
			res.Skipped = true
			return res, nil
		}
	}

	src, err := afero.ReadFile(s.Fs, b.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle %s: %w", b.Path, err)
	}
	res.SizeBefore = int64(len(src))

	ctx, span := s.Tracer.StartCompressionSpan(ctx, b.Name, s.Compressor.Name())
	err = s.compress(ctx, res, src, logger)
	observability.EndSpan(span, err)
	return res, err
}

func (s *Stage) compress(ctx context.Context, res *Result, src []byte, logger zerolog.Logger) error {
	b := res.Bundle
	state := NewState(logger.With().Str("compressor", s.Compressor.Name()).Logger())

	out, err := s.Compressor.Compress(src, s.Charset, state)
	if err != nil {
		return fmt.Errorf("failed to compress bundle %s: %w", b.Path, err)
	}
	res.Errors = state.Errors()
	res.Warnings = state.Warnings()
	s.Metrics.RecordDiagnostics(SeverityError.String(), len(res.Errors))
	s.Metrics.RecordDiagnostics(SeverityWarning.String(), len(res.Warnings))

	if res.HasErrors() {
		s.Metrics.RecordCompression(s.Compressor.Name(), res.SizeBefore, 0)
		logger.Error().
			Int("errors", len(res.Errors)).
			Str("path", b.Path).
			Msg("Compressor reported errors, unminified bundle kept for inspection")
		return fmt.Errorf("%w: %s: %s", ErrCompression, b.Path, res.Errors[0])
	}

	if err := afero.WriteFile(s.Fs, b.MinifiedPath, out, 0644); err != nil {
		return fmt.Errorf("failed to write minified bundle %s: %w", b.MinifiedPath, err)
	}
	res.SizeAfter = int64(len(out))
	s.Metrics.RecordCompression(s.Compressor.Name(), res.SizeBefore, res.SizeAfter)
	observability.AddSpanEvent(ctx, "bundle.minified")

	switch {
	case res.HasWarnings():
		logger.Warn().
			Int("warnings", len(res.Warnings)).
			Str("path", b.Path).
			Msg("Compressor reported warnings, unminified bundle kept alongside the minified one")
	case s.PruneUnminified:
		if err := s.Fs.Remove(b.Path); err != nil {
			return fmt.Errorf("failed to remove unminified bundle %s: %w", b.Path, err)
		}
		res.Pruned = true
	}

	logger.Info().
		Int64("before", res.SizeBefore).
		Int64("after", res.SizeAfter).
		Str("ratio", fmt.Sprintf("%.1f%%", res.Ratio()*100)).
		Msg("Bundle compressed")
	return nil
}
