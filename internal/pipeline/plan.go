package pipeline

import (
	"context"
	"time"

	"github.com/fluxbase-eu/webminifier/internal/observability"
	"github.com/fluxbase-eu/webminifier/internal/resource"
)

// Plan computes the bundles a build would produce without touching the
// filesystem. Documents and scripts are read from the source folder; bundle
// pre-existence is probed in the destination folder. A bundle planned for an
// earlier document counts as pre-existing for later ones, as it would in a
// real run.
func (p *Pipeline) Plan(ctx context.Context) (report *Report, err error) {
	start := time.Now()
	r, err := p.newRun(p.source)
	if err != nil {
		return nil, err
	}
	report = &Report{RunID: r.id, DryRun: true}

	ctx, span := p.tracer.StartRunSpan(ctx, r.id, true)
	defer func() { observability.EndSpan(span, err) }()

	docs, err := discover(p.fs, p.source, p.cfg.HTMLIncludes, p.cfg.HTMLExcludes)
	if err != nil {
		return nil, err
	}

	planned := make(map[string]bool)
	exists := func(path string) bool {
		return planned[path] || p.exists(path)
	}

	extractor := &resource.Extractor{Fs: p.fs, Root: p.source}
	for _, path := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := p.parse(path)
		if err != nil {
			return nil, err
		}

		refs := extractor.Extract(doc, path)
		dr := DocumentReport{Path: p.rel(p.source, path), Scripts: len(refs)}
		if len(refs) > 0 {
			plan := p.plan(r, refs, p.source, p.destination, exists)
			for _, b := range plan.Bundles {
				dr.Bundles = append(dr.Bundles, p.bundleReport(p.source, b, nil, nil))
				planned[b.Path] = true
			}
		}
		report.Documents = append(report.Documents, dr)
	}

	report.Duration = time.Since(start)
	r.logger.Info().
		Int("documents", len(report.Documents)).
		Int("bundles", report.Bundles()).
		Msg("Plan computed")
	return report, nil
}
