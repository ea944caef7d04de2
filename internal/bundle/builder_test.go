package bundle

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/webminifier/internal/planner"
	"github.com/fluxbase-eu/webminifier/internal/resource"
)

func refsIn(dir string, names ...string) []resource.ScriptReference {
	out := make([]resource.ScriptReference, len(names))
	for i, n := range names {
		out[i] = resource.ScriptReference{Path: filepath.Join(dir, n), Src: n, Index: i}
	}
	return out
}

func writeFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}
}

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	b, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(b)
}

func TestBuild(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/dest/a.js": "var a = 1",
		"/dest/b.js": "var b = 2;",
		"/dest/c.js": "var c = 3",
	})

	plan := planner.Plan(refsIn("/dest", "a.js", "b.js", "c.js"), planner.Options{
		BaseDir:     "/dest",
		SplitPoints: planner.SplitPoints{"b.js": "vendor"},
	})

	b := &Builder{Fs: fs}
	consumed, err := b.Build(plan)
	require.NoError(t, err)

	assert.Equal(t, "var a = 1;\nvar b = 2;;\n", readFile(t, fs, "/dest/vendor.js"))
	assert.Equal(t, "var c = 3;\n", readFile(t, fs, "/dest/1.js"))
	assert.ElementsMatch(t, []string{"/dest/a.js", "/dest/b.js", "/dest/c.js"}, consumed)

	// sources are left in place
	exists, err := afero.Exists(fs, "/dest/a.js")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBuild_Separator(t *testing.T) {
	tests := []struct {
		name      string
		separator string
		expected  string
	}{
		{name: "default", separator: "", expected: "x;\ny;\n"},
		{name: "statement", separator: StatementSeparator, expected: "x;\ny;\n"},
		{name: "line", separator: LineSeparator, expected: "x\ny\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			writeFiles(t, fs, map[string]string{"/d/x.js": "x", "/d/y.js": "y"})

			plan := planner.Plan(refsIn("/d", "x.js", "y.js"), planner.Options{BaseDir: "/d"})
			_, err := (&Builder{Fs: fs, Separator: tt.separator}).Build(plan)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, readFile(t, fs, "/d/1.js"))
		})
	}
}

func TestBuild_PreexistingBundleIsNotTouched(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/dest/a.js":      "a",
		"/dest/b.js":      "b",
		"/dest/vendor.js": "built earlier",
	})

	plan := planner.Plan(refsIn("/dest", "a.js", "b.js"), planner.Options{
		BaseDir:     "/dest",
		SplitPoints: planner.SplitPoints{"b.js": "vendor"},
		Exists: func(path string) bool {
			ok, _ := afero.Exists(fs, path)
			return ok
		},
	})
	require.Len(t, plan.Preexisting(), 1)

	consumed, err := (&Builder{Fs: fs}).Build(plan)
	require.NoError(t, err)

	assert.Equal(t, "built earlier", readFile(t, fs, "/dest/vendor.js"))
	assert.ElementsMatch(t, []string{"/dest/a.js", "/dest/b.js"}, consumed)
}

func TestBuild_CreatesBundleDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{"/dest/a.js": "a"})

	plan := planner.Plan(refsIn("/dest", "a.js"), planner.Options{BaseDir: "/dest", BundleDir: "/dest/bundles"})
	_, err := (&Builder{Fs: fs}).Build(plan)
	require.NoError(t, err)
	assert.Equal(t, "a;\n", readFile(t, fs, "/dest/bundles/1.js"))
}

func TestBuild_MissingSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	plan := planner.Plan(refsIn("/dest", "gone.js"), planner.Options{BaseDir: "/dest"})

	_, err := (&Builder{Fs: fs}).Build(plan)
	require.Error(t, err)

	var bErr *Error
	require.True(t, errors.As(err, &bErr))
	assert.Equal(t, "/dest/gone.js", bErr.Path)
	assert.Equal(t, "read", bErr.Op)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestBuild_ReadOnlyFs(t *testing.T) {
	base := afero.NewMemMapFs()
	writeFiles(t, base, map[string]string{"/dest/a.js": "a"})
	fs := afero.NewReadOnlyFs(base)

	plan := planner.Plan(refsIn("/dest", "a.js"), planner.Options{BaseDir: "/dest"})
	_, err := (&Builder{Fs: fs}).Build(plan)

	var bErr *Error
	require.True(t, errors.As(err, &bErr))
}
