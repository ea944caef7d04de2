package pipeline

import "time"

// Report summarizes a run.
type Report struct {
	RunID       string           `json:"run_id" yaml:"run_id"`
	DryRun      bool             `json:"dry_run" yaml:"dry_run"`
	Documents   []DocumentReport `json:"documents" yaml:"documents"`
	Removed     []string         `json:"removed,omitempty" yaml:"removed,omitempty"`
	RemovedDirs []string         `json:"removed_dirs,omitempty" yaml:"removed_dirs,omitempty"`
	Published   []string         `json:"published,omitempty" yaml:"published,omitempty"`
	Duration    time.Duration    `json:"duration" yaml:"duration"`
}

// DocumentReport describes one processed document. Paths are relative to the
// destination folder, or to the source folder for dry runs.
type DocumentReport struct {
	Path    string         `json:"path" yaml:"path"`
	Scripts int            `json:"scripts" yaml:"scripts"`
	Bundles []BundleReport `json:"bundles,omitempty" yaml:"bundles,omitempty"`
}

// BundleReport describes one bundle of a document.
type BundleReport struct {
	Name        string   `json:"name" yaml:"name"`
	Members     []string `json:"members" yaml:"members"`
	Output      string   `json:"output" yaml:"output"`
	Preexisting bool     `json:"preexisting" yaml:"preexisting"`
	Compressed  bool     `json:"compressed" yaml:"compressed"`
	Pruned      bool     `json:"pruned,omitempty" yaml:"pruned,omitempty"`
	SizeBefore  int64    `json:"size_before,omitempty" yaml:"size_before,omitempty"`
	SizeAfter   int64    `json:"size_after,omitempty" yaml:"size_after,omitempty"`
	Warnings    int      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Sidecars    []string `json:"sidecars,omitempty" yaml:"sidecars,omitempty"`
}

// Bundles counts the bundles over all documents.
func (r *Report) Bundles() int {
	n := 0
	for _, d := range r.Documents {
		n += len(d.Bundles)
	}
	return n
}

// Compressions counts compressor invocations.
func (r *Report) Compressions() int {
	n := 0
	for _, d := range r.Documents {
		for _, b := range d.Bundles {
			if b.Compressed {
				n++
			}
		}
	}
	return n
}
