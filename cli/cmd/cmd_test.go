package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/webminifier/internal/pipeline"
)

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "webminifier dev")
	assert.Contains(t, buf.String(), "Commit: unknown")
}

func TestCompletionCommand(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			var buf bytes.Buffer
			rootCmd.SetOut(&buf)
			rootCmd.SetArgs([]string{"completion", shell})
			t.Cleanup(func() {
				rootCmd.SetOut(nil)
				rootCmd.SetArgs(nil)
			})

			require.NoError(t, rootCmd.Execute())
			assert.Contains(t, buf.String(), "webminifier")
		})
	}
}

func TestBundleStatus(t *testing.T) {
	tests := []struct {
		name   string
		bundle pipeline.BundleReport
		want   string
	}{
		{name: "planned", bundle: pipeline.BundleReport{}, want: "new"},
		{name: "built", bundle: pipeline.BundleReport{Compressed: true}, want: "new, minified"},
		{name: "reused", bundle: pipeline.BundleReport{Preexisting: true}, want: "reused"},
		{name: "warnings", bundle: pipeline.BundleReport{Compressed: true, Warnings: 2}, want: "new, minified with warnings"},
		{name: "pruned", bundle: pipeline.BundleReport{Compressed: true, Pruned: true}, want: "new, minified, pruned"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bundleStatus(tt.bundle))
		})
	}
}

func TestReportTable(t *testing.T) {
	report := &pipeline.Report{
		Documents: []pipeline.DocumentReport{
			{Path: "about.html"},
			{
				Path:    "index.html",
				Scripts: 3,
				Bundles: []pipeline.BundleReport{
					{Name: "vendor", Members: []string{"a.js", "b.js"}, Output: "vendor.min.js", Compressed: true, SizeBefore: 2048, SizeAfter: 1024},
					{Name: "1", Members: []string{"c.js"}, Output: "1.min.js", Preexisting: true},
				},
			},
		},
	}

	data := reportTable(report)

	assert.Equal(t, []string{"DOCUMENT", "BUNDLE", "MEMBERS", "OUTPUT", "STATUS", "SIZE"}, data.Headers)
	assert.Equal(t, [][]string{
		{"about.html", "-", "-", "-", "unchanged", "-"},
		{"index.html", "vendor", "a.js,b.js", "vendor.min.js", "new, minified", "2.0 KB -> 1.0 KB"},
		{"index.html", "1", "c.js", "1.min.js", "reused", "-"},
	}, data.Rows)
}
