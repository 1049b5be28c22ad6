package aggregate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depcompliance/internal/model"
)

func TestFindings(t *testing.T) {
	f1 := model.VulnerabilityFinding{
		Source:     "osv",
		Ecosystem:  "npm",
		Package:    "pkg-a",
		Version:    "1.0.0",
		Identifier: "GHSA-0001",
		Severity:   model.SeverityHigh,
	}
	f2 := f1

	f3 := model.VulnerabilityFinding{
		Source:     "osv",
		Ecosystem:  "npm",
		Package:    "pkg-b",
		Version:    "2.0.0",
		Identifier: "GHSA-0002",
		Severity:   model.SeverityCritical,
	}

	f4 := model.VulnerabilityFinding{
		Source:     "osv",
		Ecosystem:  "npm",
		Package:    "pkg-c",
		Version:    "3.0.0",
		Identifier: "GHSA-0003",
		Severity:   model.SeverityLow,
	}

	result := Findings([]model.VulnerabilityFinding{f1, f4, f2, f3})

	require.Len(t, result, 3)
	assert.Equal(t, model.SeverityCritical, result[0].Severity)
	assert.Equal(t, model.SeverityHigh, result[1].Severity)
	assert.Equal(t, model.SeverityLow, result[2].Severity)
}

func TestFindings_KeepsHigherSeverityAndMergesAliases(t *testing.T) {
	low := model.VulnerabilityFinding{Source: "osv", Ecosystem: "npm", Package: "x", Version: "1.0.0",
		Identifier: "GHSA-1", Severity: model.SeverityLow, Aliases: []string{"CVE-2024-1"}}
	high := low
	high.Severity = model.SeverityHigh
	high.Aliases = []string{"CVE-2024-2"}

	result := Findings([]model.VulnerabilityFinding{low, high})

	require.Len(t, result, 1)
	assert.Equal(t, model.SeverityHigh, result[0].Severity)
	assert.Equal(t, []string{"CVE-2024-1", "CVE-2024-2"}, result[0].Aliases)
}

func TestFindings_OrderIsStable(t *testing.T) {
	in := []model.VulnerabilityFinding{
		{Package: "b", Version: "1", Identifier: "ID-2", Severity: model.SeverityMedium},
		{Package: "a", Version: "1", Identifier: "ID-3", Severity: model.SeverityMedium},
		{Package: "a", Version: "1", Identifier: "ID-1", Severity: model.SeverityMedium},
	}

	var got []string
	for _, f := range Findings(in) {
		got = append(got, f.Package+"/"+f.Identifier)
	}
	if diff := cmp.Diff([]string{"a/ID-1", "a/ID-3", "b/ID-2"}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestBreakdownAndVulnerablePackages(t *testing.T) {
	in := []model.VulnerabilityFinding{
		{Package: "lodash", Version: "4.17.20", Identifier: "A", Severity: model.SeverityHigh},
		{Package: "lodash", Version: "4.17.20", Identifier: "B", Severity: model.SeverityHigh},
		{Package: "minimist", Version: "0.0.8", Identifier: "C", Severity: model.SeverityCritical},
	}

	assert.Equal(t, map[model.Severity]int{model.SeverityHigh: 2, model.SeverityCritical: 1}, Breakdown(in))
	assert.Equal(t, []string{"lodash@4.17.20", "minimist@0.0.8"}, VulnerablePackages(in))
	assert.Empty(t, Breakdown(nil))
}
