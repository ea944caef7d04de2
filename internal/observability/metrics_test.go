package observability

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	m1 := NewMetrics()
	m2 := NewMetrics()

	m1.RecordDocument()

	assert.Equal(t, 1.0, testutil.ToFloat64(m1.documentsProcessed))
	assert.Equal(t, 0.0, testutil.ToFloat64(m2.documentsProcessed))
}

func TestMetrics_AllMethods(t *testing.T) {
	m := NewMetrics()
	require.NotNil(t, m)

	t.Run("RecordBundle", func(t *testing.T) {
		m.RecordBundle(false)
		m.RecordBundle(false)
		m.RecordBundle(true)

		assert.Equal(t, 2.0, testutil.ToFloat64(m.bundlesBuilt))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.bundlesReused))
	})

	t.Run("RecordCompression", func(t *testing.T) {
		m.RecordCompression("esbuild", 2048, 512)
		m.RecordCompression("esbuild", 100, 0)

		assert.Equal(t, 2.0, testutil.ToFloat64(m.compressorInvocations.WithLabelValues("esbuild")))
		assert.Equal(t, 2, testutil.CollectAndCount(m.bundleSize))
	})

	t.Run("RecordDiagnostics", func(t *testing.T) {
		m.RecordDiagnostics("warning", 3)
		m.RecordDiagnostics("error", 0)

		assert.Equal(t, 3.0, testutil.ToFloat64(m.compressionDiagnostics.WithLabelValues("warning")))
		assert.Equal(t, 1, testutil.CollectAndCount(m.compressionDiagnostics))
	})

	t.Run("RecordRun", func(t *testing.T) {
		m.RecordRun(time.Now().Add(-2 * time.Second))
		assert.GreaterOrEqual(t, testutil.ToFloat64(m.runDuration), 2.0)
	})
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordDocument()
		m.RecordBundle(true)
		m.RecordCompression("minify", 1, 1)
		m.RecordDiagnostics("error", 1)
		m.RecordRun(time.Now())
	})
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.RecordDocument()
	m.RecordBundle(false)

	path := filepath.Join(t.TempDir(), "webminifier.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "webminifier_documents_processed_total 1")
	assert.Contains(t, string(data), "webminifier_bundles_built_total 1")
}

func TestMetrics_WriteTextfileEmptyPath(t *testing.T) {
	assert.NoError(t, NewMetrics().WriteTextfile(""))
}
