package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

// copyTree copies every file below src into dst, replacing files that are
// already there.
func copyTree(fs afero.Fs, src, dst string) error {
	info, err := fs.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source folder %s: %w", src, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source folder %s is not a directory", src)
	}

	return afero.Walk(fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return fs.MkdirAll(target, 0755)
		}
		return copyFile(fs, path, target, info.Mode().Perm())
	})
}

func copyFile(fs afero.Fs, from, to string, perm os.FileMode) error {
	in, err := fs.Open(from)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", from, err)
	}
	defer in.Close()

	out, err := fs.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", to, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", from, err)
	}
	return out.Close()
}

// discover returns the documents below root matching includes and none of
// excludes, sorted. Patterns match forward-slash paths relative to root.
func discover(fs afero.Fs, root string, includes, excludes []string) ([]string, error) {
	var docs []string
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if matchAny(excludes, rel) || !matchAny(includes, rel) {
			return nil
		}
		docs = append(docs, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover documents in %s: %w", root, err)
	}
	sort.Strings(docs)
	return docs, nil
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// removeEmptyDirs removes, depth-first, every directory below root that is
// empty once its own subdirectories have been handled. root itself is kept.
// The removed directories are returned.
func removeEmptyDirs(fs afero.Fs, root string) ([]string, error) {
	var removed []string
	var visit func(dir string) (bool, error)
	visit = func(dir string) (bool, error) {
		entries, err := afero.ReadDir(fs, dir)
		if err != nil {
			return false, fmt.Errorf("failed to read directory %s: %w", dir, err)
		}
		empty := true
		for _, e := range entries {
			if !e.IsDir() {
				empty = false
				continue
			}
			sub := filepath.Join(dir, e.Name())
			subEmpty, err := visit(sub)
			if err != nil {
				return false, err
			}
			if !subEmpty {
				empty = false
				continue
			}
			if err := fs.Remove(sub); err != nil {
				return false, fmt.Errorf("failed to remove directory %s: %w", sub, err)
			}
			removed = append(removed, sub)
		}
		return empty, nil
	}

	if _, err := visit(root); err != nil {
		return removed, err
	}
	return removed, nil
}
