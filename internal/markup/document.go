// Package markup wraps golang.org/x/net/html with the small set of document
// operations the minifier needs: locating script elements, removing and
// inserting them, and rendering the result back to bytes.
package markup

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Document is a parsed HTML document.
type Document struct {
	root *html.Node
}

// Parse decodes r using the named charset and parses it as HTML.
func Parse(r io.Reader, charsetLabel string) (*Document, error) {
	if charsetLabel != "" {
		decoded, err := charset.NewReaderLabel(charsetLabel, r)
		if err != nil {
			return nil, fmt.Errorf("unsupported charset %q: %w", charsetLabel, err)
		}
		r = decoded
	}

	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return &Document{root: root}, nil
}

// ScriptElements returns every <script> element in document order.
func (d *Document) ScriptElements() []*html.Node {
	return d.elements(atom.Script)
}

// Heads returns every <head> element in document order.
func (d *Document) Heads() []*html.Node {
	return d.elements(atom.Head)
}

func (d *Document) elements(a atom.Atom) []*html.Node {
	var found []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = append(found, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
	return found
}

// Remove detaches n from its parent. Nodes without a parent are ignored.
func (d *Document) Remove(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// NewScriptElement creates a detached external script element.
func (d *Document) NewScriptElement(src string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Script,
		Data:     "script",
		Attr: []html.Attribute{
			{Key: "type", Val: "text/javascript"},
			{Key: "src", Val: src},
		},
	}
}

// Doctype reports the document type identifiers, if a doctype is present.
func (d *Document) Doctype() (public, system string, ok bool) {
	n := d.doctype()
	if n == nil {
		return "", "", false
	}
	for _, a := range n.Attr {
		switch a.Key {
		case "public":
			public = a.Val
		case "system":
			system = a.Val
		}
	}
	return public, system, true
}

func (d *Document) doctype() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.DoctypeNode {
			return c
		}
	}
	return nil
}

// Render serializes the document to w, encoding it with the named charset.
//
// Public and system identifiers of the doctype are written verbatim. A doctype
// carrying neither identifier is written as the bare "<!DOCTYPE html>".
func (d *Document) Render(w io.Writer, charsetLabel string) error {
	if n := d.doctype(); n != nil {
		if public, system, _ := d.Doctype(); public == "" && system == "" {
			n.Data = "html"
			n.Attr = nil
		}
	}

	if charsetLabel != "" && !isUTF8(charsetLabel) {
		enc, err := htmlindex.Get(charsetLabel)
		if err != nil {
			return fmt.Errorf("unsupported charset %q: %w", charsetLabel, err)
		}
		tw := transform.NewWriter(w, enc.NewEncoder())
		if err := html.Render(tw, d.root); err != nil {
			return fmt.Errorf("failed to render html: %w", err)
		}
		return tw.Close()
	}

	if err := html.Render(w, d.root); err != nil {
		return fmt.Errorf("failed to render html: %w", err)
	}
	return nil
}

// Attr returns the value of the named attribute of n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func isUTF8(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "utf-8", "utf8", "unicode-1-1-utf-8":
		return true
	}
	return false
}
