// Package bundle concatenates script files into bundle files.
package bundle

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/fluxbase-eu/webminifier/internal/planner"
)

const (
	// StatementSeparator terminates each member when the bundle is minified
	// afterwards, so a member lacking a trailing semicolon cannot merge with
	// the next one.
	StatementSeparator = ";\n"
	// LineSeparator is used when bundles are published as is.
	LineSeparator = "\n"
)

// Error reports a failed filesystem operation on a bundle or one of its
// members.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("bundle %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Builder writes the bundles of a plan.
type Builder struct {
	Fs afero.Fs
	// Separator is appended after every member. Defaults to StatementSeparator.
	Separator string
}

// Build appends the members of every bundle that was not already on disk to
// its bundle file, in document order. It returns the source paths consumed by
// the plan, including members of pre-existing bundles. Sources are not
// removed here; other documents of the same run may still reference them.
func (b *Builder) Build(plan *planner.Plan) ([]string, error) {
	sep := b.Separator
	if sep == "" {
		sep = StatementSeparator
	}

	created := make(map[string]bool)
	for _, a := range plan.Assignments {
		if a.Bundle.Preexisting {
			continue
		}
		if !created[a.Bundle.Path] {
			dir := filepath.Dir(a.Bundle.Path)
			if err := b.Fs.MkdirAll(dir, 0755); err != nil {
				return nil, &Error{Op: "mkdir", Path: dir, Err: err}
			}
			created[a.Bundle.Path] = true
		}
		if err := b.appendMember(a.Bundle.Path, a.Ref.Path, sep); err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool)
	var consumed []string
	for _, bu := range plan.Bundles {
		for _, m := range bu.Members {
			if seen[m.Path] {
				continue
			}
			seen[m.Path] = true
			consumed = append(consumed, m.Path)
		}
	}
	return consumed, nil
}

func (b *Builder) appendMember(bundlePath, memberPath, sep string) error {
	src, err := b.Fs.Open(memberPath)
	if err != nil {
		return &Error{Op: "read", Path: memberPath, Err: err}
	}
	defer func() { _ = src.Close() }()

	dst, err := b.Fs.OpenFile(bundlePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return &Error{Op: "open", Path: bundlePath, Err: err}
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return &Error{Op: "append", Path: bundlePath, Err: err}
	}
	if _, err := io.WriteString(dst, sep); err != nil {
		_ = dst.Close()
		return &Error{Op: "append", Path: bundlePath, Err: err}
	}
	if err := dst.Close(); err != nil {
		return &Error{Op: "close", Path: bundlePath, Err: err}
	}
	return nil
}
