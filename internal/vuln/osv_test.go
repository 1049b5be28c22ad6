package vuln

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depcompliance/internal/metrics"
	"depcompliance/internal/model"
)

func npmRecord(name, version string) model.PackageRecord {
	return model.PackageRecord{
		ID:        model.PackageID(name, version),
		Name:      name,
		Version:   version,
		Ecosystem: model.EcosystemNPM,
		PURL:      "pkg:npm/" + name + "@" + version,
	}
}

// osvServer answers every query with the vulns listed for its package name.
func osvServer(t *testing.T, vulns map[string][]map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req osvBatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		results := make([]map[string]any, len(req.Queries))
		for i, q := range req.Queries {
			results[i] = map[string]any{"vulns": vulns[q.Package.Name]}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
}

func TestCorrelate_SingleHighFinding(t *testing.T) {
	srv := osvServer(t, map[string][]map[string]any{
		"lodash": {{"id": "GHSA-p6mc-m468-83gw", "database_specific": map[string]any{"severity": "HIGH"}}},
	})
	defer srv.Close()

	rep := New(WithURL(srv.URL)).Correlate(context.Background(), []model.PackageRecord{
		npmRecord("lodash", "4.17.20"),
		npmRecord("left-pad", "1.3.0"),
	})

	assert.Equal(t, model.VulnStatusCompleted, rep.Status)
	assert.Equal(t, 1, rep.TotalVulnerabilities)
	assert.Equal(t, map[model.Severity]int{model.SeverityHigh: 1}, rep.SeverityBreakdown)
	assert.Equal(t, []string{"lodash@4.17.20"}, rep.VulnerablePackages)
	assert.Equal(t, 2, rep.ScannedPackages)
	require.Len(t, rep.Findings, 1)
	assert.Equal(t, "GHSA-p6mc-m468-83gw", rep.Findings[0].Identifier)
	assert.Equal(t, Source, rep.Findings[0].Source)
	assert.Empty(t, rep.Error)
}

func TestCorrelate_FailingChunkKeepsOthers(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		var req osvBatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if n == 2 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		results := make([]map[string]any, len(req.Queries))
		for i, q := range req.Queries {
			results[i] = map[string]any{"vulns": []map[string]any{
				{"id": "OSV-" + q.Package.Name, "severity": "moderate"},
			}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
	defer srv.Close()

	var pkgs []model.PackageRecord
	for i := 0; i < 5; i++ {
		pkgs = append(pkgs, npmRecord(fmt.Sprintf("pkg-%d", i), "1.0.0"))
	}

	m := metrics.New()
	rep := New(WithURL(srv.URL), WithChunkSize(2), WithRecorder(m)).Correlate(context.Background(), pkgs)

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, model.VulnStatusPartial, rep.Status)
	require.Len(t, rep.ChunkFailures, 1)
	assert.Equal(t, 1, rep.ChunkFailures[0].Chunk)
	assert.Equal(t, 2, rep.ChunkFailures[0].Packages)
	assert.Equal(t, 3, rep.TotalVulnerabilities)
	assert.Equal(t, map[model.Severity]int{model.SeverityMedium: 3}, rep.SeverityBreakdown)
	assert.NotEmpty(t, rep.Error)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.VulnChunksTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VulnChunksTotal.WithLabelValues("failed")))
}

func TestCorrelate_ResultCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"vulns":[{"id":"X"}]}]}`))
	}))
	defer srv.Close()

	rep := New(WithURL(srv.URL)).Correlate(context.Background(), []model.PackageRecord{
		npmRecord("a", "1.0.0"), npmRecord("b", "1.0.0"),
	})

	assert.Equal(t, model.VulnStatusFailed, rep.Status)
	assert.Zero(t, rep.TotalVulnerabilities)
	require.Len(t, rep.ChunkFailures, 1)
	assert.Contains(t, rep.ChunkFailures[0].Reason, "1 results for 2 queries")
}

func TestCorrelate_TimeoutPerChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	rep := New(WithURL(srv.URL), WithTimeout(50*time.Millisecond)).
		Correlate(context.Background(), []model.PackageRecord{npmRecord("a", "1.0.0")})

	assert.Equal(t, model.VulnStatusFailed, rep.Status)
	require.Len(t, rep.ChunkFailures, 1)
}

func TestCorrelate_SkipsUnusableVersions(t *testing.T) {
	var queried []osvQuery
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req osvBatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		queried = append(queried, req.Queries...)
		results := make([]map[string]any, len(req.Queries))
		for i := range results {
			results[i] = map[string]any{"vulns": []any{}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
	defer srv.Close()

	pkgs := []model.PackageRecord{
		npmRecord("react", "^18.2.0"),
		npmRecord("anything", "*"),
		{ID: "@babel/core@~7.24.0", Name: "@babel/core", Version: "~7.24.0", Ecosystem: model.EcosystemNPM},
		{ID: "Django@>=4.2,<5", Name: "Django", Version: ">=4.2,<5", Ecosystem: model.EcosystemPyPI, PURL: "pkg:pypi/django"},
	}

	rep := New(WithURL(srv.URL)).Correlate(context.Background(), pkgs)

	assert.Equal(t, 3, rep.ScannedPackages)
	assert.Equal(t, 1, rep.SkippedPackages)
	require.Len(t, queried, 3)
	assert.Equal(t, osvQuery{Package: osvPackage{Name: "react", Ecosystem: "npm"}, Version: "18.2.0"}, queried[0])
	assert.Equal(t, osvQuery{Package: osvPackage{Name: "@babel/core", Ecosystem: "npm"}, Version: "7.24.0"}, queried[1])
	assert.Equal(t, osvQuery{Package: osvPackage{Name: "django", Ecosystem: "PyPI"}, Version: "4.2"}, queried[2])
}

func TestCorrelate_NoPackages(t *testing.T) {
	rep := New(WithURL("http://127.0.0.1:0")).Correlate(context.Background(), nil)

	assert.Equal(t, model.VulnStatusCompleted, rep.Status)
	assert.Empty(t, rep.Findings)
	assert.Empty(t, rep.SeverityBreakdown)
	assert.NotNil(t, rep.VulnerablePackages)
}

func TestSeverityOf(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want model.Severity
	}{
		{"database specific", `{"id":"A","database_specific":{"severity":"CRITICAL"}}`, model.SeverityCritical},
		{"moderate string", `{"id":"A","severity":"MODERATE"}`, model.SeverityMedium},
		{"numeric score", `{"id":"A","severity":[{"type":"CVSS_V3","score":"7.5"}]}`, model.SeverityHigh},
		{"number score", `{"id":"A","severity":[{"type":"CVSS_V3","score":9.8}]}`, model.SeverityCritical},
		{"vector only", `{"id":"A","severity":[{"type":"CVSS_V3","score":"CVSS:3.1/AV:N/AC:L"}]}`, model.SeverityUnknown},
		{"nothing", `{"id":"A"}`, model.SeverityUnknown},
		{"garbage label", `{"id":"A","severity":"bad"}`, model.SeverityUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v osvVuln
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &v))
			assert.Equal(t, tt.want, severityOf(v))
		})
	}
}

func TestCleanVersion(t *testing.T) {
	tests := []struct {
		eco, in, want string
	}{
		{model.EcosystemNPM, "1.2.3", "1.2.3"},
		{model.EcosystemNPM, "^1.2.3", "1.2.3"},
		{model.EcosystemNPM, ">= 2.0.0 <3", "2.0.0"},
		{model.EcosystemNPM, "v1.0.0-beta.1", "1.0.0-beta.1"},
		{model.EcosystemNPM, "1.x", ""},
		{model.EcosystemNPM, "latest", ""},
		{model.EcosystemNPM, "^1.0.0 || ^2.0.0", ""},
		{model.EcosystemNPM, "git+https://github.com/a/b.git", ""},
		{model.EcosystemPyPI, "2.31.0", "2.31.0"},
		{model.EcosystemPyPI, "~=1.4", "1.4"},
		{model.EcosystemPyPI, "2.0.0rc1", "2.0.0rc1"},
		{model.EcosystemPyPI, "*", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanVersion(tt.eco, tt.in), "%s %q", tt.eco, tt.in)
	}
}

func TestSkipped(t *testing.T) {
	rep := Skipped()
	assert.Equal(t, model.VulnStatusSkipped, rep.Status)
	assert.NotNil(t, rep.Findings)
}

func TestCorrelate_BreakdownCountsEachFinding(t *testing.T) {
	srv := osvServer(t, map[string][]map[string]any{
		"a": {
			{"id": "GHSA-aaaa-0001", "database_specific": map[string]any{"severity": "HIGH"}},
			{"id": "GHSA-aaaa-0002", "database_specific": map[string]any{"severity": "MODERATE"}},
		},
	})
	defer srv.Close()

	rep := New(WithURL(srv.URL)).Correlate(context.Background(), []model.PackageRecord{
		npmRecord("a", "1.0.0"),
		npmRecord("b", "1.0.0"),
	})

	assert.Equal(t, 2, rep.TotalVulnerabilities)
	assert.Equal(t, map[model.Severity]int{model.SeverityHigh: 1, model.SeverityMedium: 1}, rep.SeverityBreakdown)
	assert.Equal(t, []string{"a@1.0.0"}, rep.VulnerablePackages)
	require.Len(t, rep.Findings, 2)
	assert.Equal(t, model.SeverityHigh, rep.Findings[0].Severity)
}
