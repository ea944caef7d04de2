// Package rewrite points documents at their bundles.
package rewrite

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fluxbase-eu/webminifier/internal/markup"
	"github.com/fluxbase-eu/webminifier/internal/resource"
)

// Rewriter replaces the script references of a document with references to
// the final bundle files.
type Rewriter struct {
	// Base is the folder documents and bundles are laid out under.
	Base string
}

// Rewrite removes the elements that produced refs, including repeated
// inclusions of the same file, and appends one script
// element per final output to the document head, in order. Documents that do
// not have exactly one head get no new elements.
func (r *Rewriter) Rewrite(doc *markup.Document, docPath string, refs []resource.ScriptReference, finals []string) error {
	srcs := make([]string, 0, len(finals))
	for _, f := range finals {
		src, err := r.Src(docPath, f)
		if err != nil {
			return err
		}
		srcs = append(srcs, src)
	}

	for _, ref := range refs {
		for _, n := range ref.Nodes() {
			doc.Remove(n)
		}
	}

	heads := doc.Heads()
	if len(heads) != 1 {
		return nil
	}
	for _, src := range srcs {
		heads[0].AppendChild(doc.NewScriptElement(src))
	}
	return nil
}

// Src computes the src attribute with which the document at docPath refers to
// target: one "../" per directory between Base and the document, followed by
// the path of target relative to Base.
func (r *Rewriter) Src(docPath, target string) (string, error) {
	rel, err := filepath.Rel(r.Base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("bundle %s is outside %s", target, r.Base)
	}

	docDir, err := filepath.Rel(r.Base, filepath.Dir(docPath))
	if err != nil || docDir == ".." || strings.HasPrefix(docDir, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("document %s is outside %s", docPath, r.Base)
	}

	depth := 0
	if docDir != "." {
		depth = len(strings.Split(docDir, string(filepath.Separator)))
	}
	return strings.Repeat("../", depth) + filepath.ToSlash(rel), nil
}
