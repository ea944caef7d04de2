package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{input: "", want: FormatTable},
		{input: "table", want: FormatTable},
		{input: "JSON", want: FormatJSON},
		{input: "yml", want: FormatYAML},
		{input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newTestFormatter(format Format, noHeaders, quiet bool) (*Formatter, *bytes.Buffer) {
	var buf bytes.Buffer
	f := NewFormatter(format, noHeaders, quiet)
	f.Writer = &buf
	return f, &buf
}

var sample = TableData{
	Headers: []string{"DOCUMENT", "BUNDLE"},
	Rows: [][]string{
		{"index.html", "vendor"},
		{"index.html", "1"},
	},
}

func TestPrintTable_Table(t *testing.T) {
	f, buf := newTestFormatter(FormatTable, false, false)
	require.NoError(t, f.PrintTable(sample))

	out := buf.String()
	assert.Contains(t, out, "DOCUMENT")
	assert.Contains(t, out, "vendor")
	assert.NotContains(t, out, "|")
}

func TestPrintTable_NoHeaders(t *testing.T) {
	f, buf := newTestFormatter(FormatTable, true, false)
	require.NoError(t, f.PrintTable(sample))

	assert.NotContains(t, buf.String(), "DOCUMENT")
	assert.Contains(t, buf.String(), "index.html")
}

func TestPrintTable_JSON(t *testing.T) {
	f, buf := newTestFormatter(FormatJSON, false, false)
	require.NoError(t, f.PrintTable(sample))

	var records []map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &records))
	assert.Equal(t, []map[string]string{
		{"document": "index.html", "bundle": "vendor"},
		{"document": "index.html", "bundle": "1"},
	}, records)
}

func TestPrint_TableModeWritesYAML(t *testing.T) {
	f, buf := newTestFormatter(FormatTable, false, false)
	require.NoError(t, f.Print(map[string]int{"bundles": 2}))

	var decoded map[string]int
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 2, decoded["bundles"])
}

func TestQuiet(t *testing.T) {
	f, buf := newTestFormatter(FormatJSON, false, true)
	require.NoError(t, f.Print(map[string]int{"bundles": 2}))
	require.NoError(t, f.PrintTable(sample))
	f.PrintSuccess("done")
	f.PrintInfo("info")

	assert.Empty(t, buf.String())
}
