package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SeparateRegistries(t *testing.T) {
	a := New()
	b := New()

	a.Analysis("SUCCESS")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.AnalysesTotal.WithLabelValues("SUCCESS")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.AnalysesTotal.WithLabelValues("SUCCESS")))
}

func TestRecorder(t *testing.T) {
	m := New()

	m.PackagesResolved("lockfile", 12)
	m.VulnChunk("ok")
	m.VulnChunk("ok")
	m.VulnChunk("failed")
	m.Findings("HIGH", 3)
	m.StageDuration("resolve", 250*time.Millisecond)

	assert.Equal(t, 12.0, testutil.ToFloat64(m.PackagesTotal.WithLabelValues("lockfile")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.VulnChunksTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VulnChunksTotal.WithLabelValues("failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FindingsTotal.WithLabelValues("HIGH")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StageSeconds))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Analysis("PARTIAL")

	path := filepath.Join(t.TempDir(), "depcompliance.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `depcompliance_analyses_total{status="PARTIAL"} 1`)
}

func TestOrNop(t *testing.T) {
	assert.IsType(t, Nop{}, OrNop(nil))
	m := New()
	assert.Same(t, m, OrNop(m))
	OrNop(nil).Findings("LOW", 1)
}
