// Package pipeline drives a build: it copies the source tree into the
// destination, bundles and minifies the scripts of every document, rewrites
// the documents and cleans up what the bundles replaced.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fluxbase-eu/webminifier/internal/bundle"
	"github.com/fluxbase-eu/webminifier/internal/compress"
	"github.com/fluxbase-eu/webminifier/internal/config"
	"github.com/fluxbase-eu/webminifier/internal/markup"
	"github.com/fluxbase-eu/webminifier/internal/observability"
	"github.com/fluxbase-eu/webminifier/internal/planner"
	"github.com/fluxbase-eu/webminifier/internal/precompress"
	"github.com/fluxbase-eu/webminifier/internal/resource"
	"github.com/fluxbase-eu/webminifier/internal/rewrite"
	"github.com/fluxbase-eu/webminifier/internal/storage"
)

// ErrParse is returned when a document cannot be parsed.
var ErrParse = errors.New("failed to parse document")

// Pipeline runs builds for one configuration.
type Pipeline struct {
	cfg        *config.Config
	fs         afero.Fs
	compressor compress.Compressor
	logger     zerolog.Logger
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	provider   storage.Provider

	source      string
	destination string
	formats     []precompress.Format
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFs sets the filesystem. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(p *Pipeline) { p.fs = fs }
}

// WithCompressor overrides the compressor selected by the configuration.
func WithCompressor(c compress.Compressor) Option {
	return func(p *Pipeline) { p.compressor = c }
}

// WithLogger sets the logger. Defaults to the global logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithMetrics sets the metrics the run records into.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithTracer sets the tracer.
func WithTracer(t *observability.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// WithProvider overrides the publish provider selected by the configuration.
func WithProvider(provider storage.Provider) Option {
	return func(p *Pipeline) { p.provider = provider }
}

// New creates a pipeline for cfg.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		cfg:         cfg,
		fs:          afero.NewOsFs(),
		logger:      log.Logger,
		source:      filepath.Clean(cfg.SourceFolder),
		destination: filepath.Clean(cfg.DestinationFolder),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With().Str("component", "pipeline").Logger()

	if p.compressor == nil {
		c, err := compress.New(cfg.Compressor, p.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create compressor: %w", err)
		}
		p.compressor = c
	}
	if p.metrics == nil {
		p.metrics = observability.NewMetrics()
	}
	if p.provider == nil && cfg.Publish.Enabled {
		provider, err := storage.NewProvider(cfg.Publish)
		if err != nil {
			return nil, fmt.Errorf("failed to create publish provider: %w", err)
		}
		p.provider = provider
	}

	formats, err := cfg.PrecompressFormats()
	if err != nil {
		return nil, err
	}
	p.formats = formats

	return p, nil
}

// Metrics returns the metrics the pipeline records into.
func (p *Pipeline) Metrics() *observability.Metrics {
	return p.metrics
}

// run holds the state shared by the documents of one run.
type run struct {
	id         string
	logger     zerolog.Logger
	sequence   *planner.Sequence
	classifier *resource.Classifier
	consumed   []string
	seen       map[string]bool
	outputs    []string
	isOutput   map[string]bool
}

func (r *run) consume(paths []string) {
	for _, path := range paths {
		if !r.seen[path] {
			r.seen[path] = true
			r.consumed = append(r.consumed, path)
		}
	}
}

func (r *run) output(paths ...string) {
	for _, path := range paths {
		if !r.isOutput[path] {
			r.isOutput[path] = true
			r.outputs = append(r.outputs, path)
		}
	}
}

func (p *Pipeline) newRun(base string) (*run, error) {
	classifier, err := resource.NewClassifier(p.fs, base, p.cfg.ProjectSourceFolder)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	return &run{
		id:         id,
		logger:     p.logger.With().Str("run_id", id).Logger(),
		sequence:   &planner.Sequence{},
		classifier: classifier,
		seen:       make(map[string]bool),
		isOutput:   make(map[string]bool),
	}, nil
}

// Run performs a build.
func (p *Pipeline) Run(ctx context.Context) (report *Report, err error) {
	start := time.Now()
	r, err := p.newRun(p.destination)
	if err != nil {
		return nil, err
	}
	report = &Report{RunID: r.id}

	ctx, span := p.tracer.StartRunSpan(ctx, r.id, false)
	defer func() { observability.EndSpan(span, err) }()
	if traceID := observability.ExtractTraceID(ctx); traceID != "" {
		r.logger = r.logger.With().Str("trace_id", traceID).Logger()
	}

	r.logger.Info().
		Str("source", p.source).
		Str("destination", p.destination).
		Str("compressor", p.compressor.Name()).
		Msg("Starting build")

	if p.cfg.Clean {
		if err := p.fs.RemoveAll(p.destination); err != nil {
			return nil, fmt.Errorf("failed to clean destination %s: %w", p.destination, err)
		}
	}
	if err := copyTree(p.fs, p.source, p.destination); err != nil {
		return nil, err
	}

	docs, err := discover(p.fs, p.destination, p.cfg.HTMLIncludes, p.cfg.HTMLExcludes)
	if err != nil {
		return nil, err
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dr, err := p.processDocument(ctx, r, doc)
		if err != nil {
			return nil, err
		}
		report.Documents = append(report.Documents, *dr)
	}

	removed, err := p.removeConsumed(r)
	if err != nil {
		return nil, err
	}
	report.Removed = p.relAll(p.destination, removed)

	dirs, err := removeEmptyDirs(p.fs, p.destination)
	if err != nil {
		return nil, err
	}
	report.RemovedDirs = p.relAll(p.destination, dirs)

	if p.provider != nil {
		published, err := p.publish(ctx, r)
		if err != nil {
			return nil, err
		}
		report.Published = published
	}

	p.metrics.RecordRun(start)
	if err := p.metrics.WriteTextfile(p.cfg.Metrics.Textfile); err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	r.logger.Info().
		Int("documents", len(report.Documents)).
		Int("bundles", report.Bundles()).
		Int("compressions", report.Compressions()).
		Dur("duration", report.Duration).
		Msg("Build completed")
	return report, nil
}

func (p *Pipeline) processDocument(ctx context.Context, r *run, path string) (dr *DocumentReport, err error) {
	ctx, span := p.tracer.StartDocumentSpan(ctx, path)
	defer func() { observability.EndSpan(span, err) }()

	logger := r.logger.With().Str("document", p.rel(p.destination, path)).Logger()

	doc, err := p.parse(path)
	if err != nil {
		return nil, err
	}

	extractor := &resource.Extractor{Fs: p.fs, Root: p.destination}
	refs := extractor.Extract(doc, path)
	dr = &DocumentReport{Path: p.rel(p.destination, path), Scripts: len(refs)}
	p.metrics.RecordDocument()
	if len(refs) == 0 {
		logger.Debug().Msg("No local scripts, document left unchanged")
		return dr, nil
	}

	plan := p.plan(r, refs, p.destination, p.destination, p.exists)
	observability.SetSpanAttributes(ctx,
		attribute.Int("webminifier.scripts", len(refs)),
		attribute.Int("webminifier.bundles", len(plan.Bundles)),
	)

	builder := &bundle.Builder{Fs: p.fs, Separator: p.separator()}
	consumed, err := builder.Build(plan)
	if err != nil {
		return nil, err
	}
	r.consume(consumed)

	stage := &compress.Stage{
		Fs:              p.fs,
		Compressor:      p.compressor,
		Charset:         p.cfg.Encoding,
		PruneUnminified: p.cfg.PruneUnminified,
		Logger:          logger,
		Metrics:         p.metrics,
		Tracer:          p.tracer,
	}

	finals := make([]string, 0, len(plan.Bundles))
	for _, b := range plan.Bundles {
		p.metrics.RecordBundle(b.Preexisting)
		res, err := stage.Compress(ctx, b)
		if err != nil {
			return nil, err
		}

		sidecars, err := precompress.Write(p.fs, res.Output, p.formats, b.Preexisting)
		if err != nil {
			return nil, fmt.Errorf("failed to precompress %s: %w", res.Output, err)
		}

		finals = append(finals, res.Output)
		r.output(res.Output)
		r.output(sidecars...)
		dr.Bundles = append(dr.Bundles, p.bundleReport(p.destination, b, res, sidecars))
	}

	rewriter := &rewrite.Rewriter{Base: p.destination}
	if err := rewriter.Rewrite(doc, path, refs, finals); err != nil {
		return nil, fmt.Errorf("failed to rewrite %s: %w", path, err)
	}
	if err := p.write(doc, path); err != nil {
		return nil, err
	}

	logger.Info().
		Int("scripts", len(refs)).
		Int("bundles", len(plan.Bundles)).
		Msg("Document processed")
	return dr, nil
}

func (p *Pipeline) parse(path string) (*markup.Document, error) {
	data, err := afero.ReadFile(p.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc, err := markup.Parse(bytes.NewReader(data), p.cfg.Encoding)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrParse, path, err)
	}
	return doc, nil
}

func (p *Pipeline) write(doc *markup.Document, path string) error {
	var buf bytes.Buffer
	if err := doc.Render(&buf, p.cfg.Encoding); err != nil {
		return fmt.Errorf("failed to render %s: %w", path, err)
	}
	if err := afero.WriteFile(p.fs, path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// plan partitions refs when dependency splitting is enabled and assigns them
// to bundles. Split-point keys are relative to base; bundles go to bundleDir.
func (p *Pipeline) plan(r *run, refs []resource.ScriptReference, base, bundleDir string, exists func(string) bool) *planner.Plan {
	ordered, boundary := refs, 0
	if p.cfg.SplitDependencies {
		ordered, boundary = planner.Partition(refs, r.classifier.IsProject)
	}
	return planner.Plan(ordered, planner.Options{
		SplitPoints:        p.cfg.SplitPointTable(),
		SplitDependencies:  p.cfg.SplitDependencies,
		DependencyBoundary: boundary,
		BaseDir:            base,
		BundleDir:          bundleDir,
		MinifiedSuffix:     p.cfg.MinifiedSuffix,
		Sequence:           r.sequence,
		Exists:             exists,
	})
}

func (p *Pipeline) exists(path string) bool {
	ok, err := afero.Exists(p.fs, path)
	return err == nil && ok
}

func (p *Pipeline) separator() string {
	if compress.IsPassthrough(p.compressor) {
		return bundle.LineSeparator
	}
	return bundle.StatementSeparator
}

// removeConsumed deletes the sources that went into bundles. Files that are
// themselves outputs of the run are kept.
func (p *Pipeline) removeConsumed(r *run) ([]string, error) {
	var removed []string
	for _, path := range r.consumed {
		if r.isOutput[path] {
			continue
		}
		if err := p.fs.Remove(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return removed, fmt.Errorf("failed to remove consumed source %s: %w", path, err)
		}
		removed = append(removed, path)
	}
	sort.Strings(removed)
	return removed, nil
}

func (p *Pipeline) publish(ctx context.Context, r *run) ([]string, error) {
	if err := p.provider.Health(ctx); err != nil {
		return nil, fmt.Errorf("publish target %s is not available: %w", p.provider.Name(), err)
	}

	publisher := &storage.Publisher{
		Provider:     p.provider,
		Fs:           p.fs,
		Root:         p.destination,
		Prefix:       p.cfg.Publish.Prefix,
		CacheControl: p.cfg.Publish.CacheControl,
		SkipExisting: p.cfg.Publish.SkipExisting,
		Tracer:       p.tracer,
	}

	var files []string
	for _, path := range r.outputs {
		if p.exists(path) {
			files = append(files, path)
		}
	}
	objects, err := publisher.Publish(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("failed to publish: %w", err)
	}

	keys := make([]string, len(objects))
	for i, obj := range objects {
		keys[i] = obj.Key
	}
	r.logger.Info().
		Str("provider", p.provider.Name()).
		Int("objects", len(objects)).
		Msg("Outputs published")
	return keys, nil
}

func (p *Pipeline) bundleReport(base string, b *planner.Bundle, res *compress.Result, sidecars []string) BundleReport {
	members := make([]string, len(b.Members))
	for i, m := range b.Members {
		members[i] = p.rel(base, m.Path)
	}
	br := BundleReport{
		Name:        b.Name,
		Members:     members,
		Output:      p.rel(p.destination, b.Path),
		Preexisting: b.Preexisting,
		Sidecars:    p.relAll(p.destination, sidecars),
	}
	if res != nil {
		br.Output = p.rel(p.destination, res.Output)
		br.Compressed = !res.Skipped
		br.Pruned = res.Pruned
		br.SizeBefore = res.SizeBefore
		br.SizeAfter = res.SizeAfter
		br.Warnings = len(res.Warnings)
	}
	return br
}

func (p *Pipeline) rel(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func (p *Pipeline) relAll(base string, paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, len(paths))
	for i, path := range paths {
		out[i] = p.rel(base, path)
	}
	return out
}
