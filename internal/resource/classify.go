package resource

import (
	"fmt"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"
)

const defaultClassifierCacheSize = 4096

// Classifier tells project scripts from dependency scripts. A script is a
// project script when the same path, taken relative to the destination
// folder, exists under the project source folder.
type Classifier struct {
	fs            afero.Fs
	destination   string
	projectSource string
	cache         *lru.Cache[string, bool]
}

// NewClassifier creates a classifier. Results are memoized for the lifetime
// of the classifier, which is expected to be a single run.
func NewClassifier(fs afero.Fs, destination, projectSource string) (*Classifier, error) {
	cache, err := lru.New[string, bool](defaultClassifierCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier cache: %w", err)
	}
	return &Classifier{
		fs:            fs,
		destination:   destination,
		projectSource: projectSource,
		cache:         cache,
	}, nil
}

// IsProject reports whether ref resolves under the project source tree.
func (c *Classifier) IsProject(ref ScriptReference) bool {
	if c.projectSource == "" {
		return false
	}
	if v, ok := c.cache.Get(ref.Path); ok {
		return v
	}

	project := false
	if rel, err := filepath.Rel(c.destination, ref.Path); err == nil {
		if exists, err := afero.Exists(c.fs, filepath.Join(c.projectSource, rel)); err == nil {
			project = exists
		}
	}
	c.cache.Add(ref.Path, project)
	return project
}
