// Package resource discovers the script files a document references.
package resource

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/net/html"

	"github.com/fluxbase-eu/webminifier/internal/markup"
)

// ScriptReference is one external script inclusion found in a document.
type ScriptReference struct {
	// Path is the resolved location of the script file.
	Path string
	// Document is the path of the document that references it.
	Document string
	// Src is the attribute value as written in the document.
	Src string
	// Index is the position of the reference in document order.
	Index int

	node       *html.Node
	duplicates []*html.Node
}

// Node returns the element that produced the reference.
func (r ScriptReference) Node() *html.Node {
	return r.node
}

// Nodes returns the producing element followed by every later element that
// included the same file.
func (r ScriptReference) Nodes() []*html.Node {
	if r.node == nil {
		return nil
	}
	return append([]*html.Node{r.node}, r.duplicates...)
}

// Extractor resolves script references against a filesystem.
type Extractor struct {
	Fs afero.Fs
	// Root is the site root that "/"-prefixed sources resolve against.
	Root string
}

// Extract returns the ordered script references of doc, which was read from
// docPath. Only sources naming an existing regular file below Root are kept.
// The first reference to a file wins when it is included more than once; the
// later elements are recorded on it so they can be removed with it.
func (e *Extractor) Extract(doc *markup.Document, docPath string) []ScriptReference {
	docDir := filepath.Dir(docPath)
	seen := make(map[string]int)

	var refs []ScriptReference
	for _, n := range doc.ScriptElements() {
		src, ok := markup.Attr(n, "src")
		if !ok {
			continue
		}
		path, ok := e.resolve(docDir, src)
		if !ok {
			continue
		}
		if i, dup := seen[path]; dup {
			refs[i].duplicates = append(refs[i].duplicates, n)
			continue
		}
		if info, err := e.Fs.Stat(path); err != nil || !info.Mode().IsRegular() {
			continue
		}
		seen[path] = len(refs)
		refs = append(refs, ScriptReference{
			Path:     path,
			Document: docPath,
			Src:      src,
			Index:    len(refs),
			node:     n,
		})
	}
	return refs
}

// resolve maps a src attribute to a filesystem path. Remote and empty sources
// are rejected, as are paths that climb out of Root.
func (e *Extractor) resolve(docDir, src string) (string, bool) {
	path, ok := e.join(docDir, src)
	if !ok || e.Root == "" {
		return path, ok
	}
	rel, err := filepath.Rel(e.Root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return path, true
}

func (e *Extractor) join(docDir, src string) (string, bool) {
	src = strings.TrimSpace(src)
	if src == "" || strings.HasPrefix(src, "//") {
		return "", false
	}
	if u, err := url.Parse(src); err == nil {
		if u.Scheme != "" {
			return "", false
		}
		src = u.Path
	} else if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	if src == "" {
		return "", false
	}

	rel := filepath.FromSlash(src)
	if strings.HasPrefix(src, "/") {
		root := e.Root
		if root == "" {
			root = docDir
		}
		return filepath.Join(root, rel), true
	}
	return filepath.Join(docDir, rel), true
}
