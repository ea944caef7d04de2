// Package planner assigns the script references of a document to bundles.
//
// References are walked from the last declared script to the first. A split
// point configured for a script closes the bundle that is open at that point
// and opens the named bundle, so everything declared after the split-point
// script ends up in a different bundle than the split-point script itself and
// the scripts declared before it. The dependency/project boundary closes the
// open bundle in the same way when dependency splitting is enabled.
package planner

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fluxbase-eu/webminifier/internal/resource"
)

// DefaultMinifiedSuffix is appended to a bundle name to form the file name of
// its minified sibling.
const DefaultMinifiedSuffix = ".min.js"

// SplitPoints maps a script path relative to the base folder (forward
// slashes) to the name of the bundle that starts at that script.
type SplitPoints map[string]string

// Sequence hands out numeric bundle names. The zero value starts at 1.
type Sequence struct {
	n int
}

// Next returns the next numeric bundle name.
func (s *Sequence) Next() string {
	s.n++
	return strconv.Itoa(s.n)
}

// Bundle is a named output file aggregating script references.
type Bundle struct {
	Name string
	// Path is the plain (unminified) bundle file.
	Path string
	// MinifiedPath is the minified sibling of Path.
	MinifiedPath string
	// Members are the references assigned to the bundle, in document order.
	Members []resource.ScriptReference
	// Preexisting is set when the bundle, or its minified sibling, was already
	// on disk when the bundle was first opened.
	Preexisting bool
}

// Assignment pairs a reference with the bundle it was assigned to.
type Assignment struct {
	Ref    resource.ScriptReference
	Bundle *Bundle
}

// Plan is the outcome of planning one document.
type Plan struct {
	// Assignments are in document order.
	Assignments []Assignment
	// Bundles are distinct, ordered by their first member in document order.
	Bundles []*Bundle
}

// Preexisting returns the bundles of the plan that were already built.
func (p *Plan) Preexisting() []*Bundle {
	var out []*Bundle
	for _, b := range p.Bundles {
		if b.Preexisting {
			out = append(out, b)
		}
	}
	return out
}

// BundleFor returns the bundle a reference path was assigned to.
func (p *Plan) BundleFor(path string) *Bundle {
	for _, a := range p.Assignments {
		if a.Ref.Path == path {
			return a.Bundle
		}
	}
	return nil
}

// Options control planning.
type Options struct {
	// SplitPoints are keyed by paths relative to BaseDir.
	SplitPoints SplitPoints
	// SplitDependencies separates dependency scripts from project scripts.
	SplitDependencies bool
	// DependencyBoundary is the index of the first project reference; the
	// references before it are dependencies. See Partition.
	DependencyBoundary int
	// BaseDir is the folder split-point keys are relative to.
	BaseDir string
	// BundleDir is where bundle files are written. Defaults to BaseDir.
	BundleDir string
	// MinifiedSuffix defaults to DefaultMinifiedSuffix.
	MinifiedSuffix string
	// Sequence supplies numeric names. A fresh sequence is used when nil.
	Sequence *Sequence
	// Exists probes the filesystem. Nothing is considered pre-existing when nil.
	Exists func(path string) bool
}

// Partition stably moves dependency references in front of project
// references and returns the reordered list together with the index of the
// first project reference.
func Partition(refs []resource.ScriptReference, isProject func(resource.ScriptReference) bool) ([]resource.ScriptReference, int) {
	deps := make([]resource.ScriptReference, 0, len(refs))
	project := make([]resource.ScriptReference, 0, len(refs))
	for _, r := range refs {
		if isProject(r) {
			project = append(project, r)
		} else {
			deps = append(deps, r)
		}
	}
	boundary := len(deps)
	ordered := append(deps, project...)
	for i := range ordered {
		ordered[i].Index = i
	}
	return ordered, boundary
}

// Plan assigns every reference to exactly one bundle.
func Plan(refs []resource.ScriptReference, opts Options) *Plan {
	p := &planning{
		opts:    opts,
		bundles: make(map[string]*Bundle),
	}
	if p.opts.Sequence == nil {
		p.opts.Sequence = &Sequence{}
	}
	if p.opts.BundleDir == "" {
		p.opts.BundleDir = p.opts.BaseDir
	}
	if p.opts.MinifiedSuffix == "" {
		p.opts.MinifiedSuffix = DefaultMinifiedSuffix
	}

	assigned := make([]*Bundle, len(refs))
	var current *Bundle
	crossedBoundary := false

	for i := len(refs) - 1; i >= 0; i-- {
		ref := refs[i]

		name, named := p.splitPointName(ref)
		crossing := false
		if opts.SplitDependencies && !crossedBoundary && i < opts.DependencyBoundary {
			crossing = true
			crossedBoundary = true
		}

		switch {
		case named:
			current = p.open(name)
		case crossing:
			current = p.open(p.opts.Sequence.Next())
		case current == nil:
			current = p.open(p.opts.Sequence.Next())
		}
		assigned[i] = current
	}

	plan := &Plan{Assignments: make([]Assignment, len(refs))}
	seen := make(map[*Bundle]bool)
	for i, ref := range refs {
		b := assigned[i]
		b.Members = append(b.Members, ref)
		plan.Assignments[i] = Assignment{Ref: ref, Bundle: b}
		if !seen[b] {
			seen[b] = true
			plan.Bundles = append(plan.Bundles, b)
		}
	}
	return plan
}

type planning struct {
	opts    Options
	bundles map[string]*Bundle
}

func (p *planning) splitPointName(ref resource.ScriptReference) (string, bool) {
	if len(p.opts.SplitPoints) == 0 {
		return "", false
	}
	rel, err := filepath.Rel(p.opts.BaseDir, ref.Path)
	if err != nil {
		return "", false
	}
	name, ok := p.opts.SplitPoints[filepath.ToSlash(rel)]
	if !ok || strings.TrimSpace(name) == "" {
		return "", false
	}
	return name, true
}

// open makes the named bundle current. Re-opening a name already used in the
// same plan reuses its bundle record, so all members targeting one file are
// kept together. Pre-existence is probed on the first opening only.
func (p *planning) open(name string) *Bundle {
	if b, ok := p.bundles[name]; ok {
		return b
	}
	path := filepath.Join(p.opts.BundleDir, name+".js")
	b := &Bundle{
		Name:         name,
		Path:         path,
		MinifiedPath: MinifiedPath(path, p.opts.MinifiedSuffix),
	}
	if p.opts.Exists != nil {
		b.Preexisting = p.opts.Exists(b.Path) || p.opts.Exists(b.MinifiedPath)
	}
	p.bundles[name] = b
	return b
}

// MinifiedPath derives the minified sibling of a bundle path.
func MinifiedPath(path, suffix string) string {
	if suffix == "" {
		suffix = DefaultMinifiedSuffix
	}
	return strings.TrimSuffix(path, ".js") + suffix
}
