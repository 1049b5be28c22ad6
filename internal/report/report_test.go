package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depcompliance/internal/model"
)

var topLevelKeys = []string{
	"sbom", "licenseCompliance", "securityVulnerabilities", "outdatedDependencies",
	"supplyChainRisk", "riskAssessment", "reports", "metadata",
}

func sampleInput() Input {
	return Input{
		Meta: Metadata{ProjectName: "demo", ProjectPath: "/src/demo", Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		BOM: model.BillOfMaterials{
			ProjectName:   "demo",
			Strategy:      "lockfile",
			TotalPackages: 1,
			DocumentID:    "SPDXRef-DOCUMENT",
			Packages: []model.PackageRecord{
				{ID: "gpl-lib@1.0.0", Name: "gpl-lib", Version: "1.0.0", NormalizedLicense: "GPL-3.0",
					RiskBucket: model.BucketStrongCopyleft, SPDXID: "SPDXRef-Package-gpl-lib-1.0.0", PURL: "pkg:npm/gpl-lib@1.0.0"},
			},
		},
		Verdict: model.CompatibilityVerdict{
			ProjectLicense:   "MIT",
			ProjectBucket:    model.BucketPermissive,
			ComplianceStatus: model.ComplianceNonCompliant,
			Conflicts: []model.LicenseConflict{
				{Package: "gpl-lib@1.0.0", DependencyLicense: "GPL-3.0", Severity: model.SeverityHigh, Reason: "STRONG_COPYLEFT dependency in a PERMISSIVE project"},
			},
		},
		Vulns: model.VulnerabilityReport{
			Status:               model.VulnStatusCompleted,
			TotalVulnerabilities: 1,
			SeverityBreakdown:    map[model.Severity]int{model.SeverityHigh: 1},
			Findings: []model.VulnerabilityFinding{
				{Package: "gpl-lib", Version: "1.0.0", Identifier: "GHSA-1", Severity: model.SeverityHigh, Summary: "a | b"},
			},
		},
		Staleness:   model.StalenessReport{Skipped: true},
		SupplyChain: model.SupplyChainReport{RiskLevel: model.LevelNone},
		Risk:        model.RiskAssessment{OverallScore: 70, Level: model.LevelMedium},
	}
}

func TestBuild_AllKeysPresent(t *testing.T) {
	doc := Build(Input{})

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	var generic map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &generic))

	for _, key := range topLevelKeys {
		assert.Contains(t, generic, key)
	}
	assert.NotContains(t, generic, "error")
	assert.Equal(t, StatusSuccess, doc.Metadata.Status)
	assert.Equal(t, []Recommendation{{Priority: model.LevelLow, Category: "general", Message: "No action required"}}, doc.Reports.Recommendations)
}

func TestBuild_StatusAndRecommendations(t *testing.T) {
	in := sampleInput()
	in.Meta.StageErrors = []StageError{{Source: "outdated", Message: "npm executable not found in PATH"}}

	doc := Build(in)

	assert.Equal(t, StatusPartial, doc.Metadata.Status)
	require.GreaterOrEqual(t, len(doc.Reports.Recommendations), 2)
	assert.Equal(t, "license", doc.Reports.Recommendations[0].Category)
	assert.Equal(t, model.LevelHigh, doc.Reports.Recommendations[0].Priority)
	assert.Contains(t, doc.Reports.Recommendations[0].Message, "gpl-lib@1.0.0")
	assert.Equal(t, "security", doc.Reports.Recommendations[1].Category)
	assert.Contains(t, doc.Reports.ExecutiveSummary, "1 stages reported errors")
}

func TestErrorDocument(t *testing.T) {
	doc := ErrorDocument(Metadata{ProjectName: "demo"}, "resolve", errors.New("context deadline exceeded"))

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	var generic map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &generic))
	for _, key := range append(topLevelKeys, "error") {
		assert.Contains(t, generic, key)
	}
	assert.Equal(t, StatusError, doc.Metadata.Status)
	assert.Equal(t, "context deadline exceeded", doc.Error.Message)
	assert.NotNil(t, doc.SBOM.Packages)
}

func TestGenerate(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	doc := Build(sampleInput())

	require.NoError(t, Generate(out, doc))

	for _, name := range []string{JSONFile, MarkdownFile, SPDXFile} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}

	md, err := os.ReadFile(filepath.Join(out, MarkdownFile))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Dependency Compliance Report")
	assert.Contains(t, string(md), "| HIGH | gpl-lib@1.0.0 | GPL-3.0 |")
	assert.Contains(t, string(md), `a \| b`)
	assert.Contains(t, string(md), "_Outdated check skipped._")

	var back Document
	data, err := os.ReadFile(filepath.Join(out, JSONFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "demo", back.SBOM.ProjectName)
	assert.Equal(t, 1, back.SecurityVulnerabilities.TotalVulnerabilities)
}

func TestGenerate_ErrorSkipsSPDX(t *testing.T) {
	out := t.TempDir()
	doc := ErrorDocument(Metadata{ProjectName: "demo"}, "", errors.New("boom"))

	require.NoError(t, Generate(out, doc))

	_, err := os.Stat(filepath.Join(out, SPDXFile))
	assert.True(t, os.IsNotExist(err))
	md, err := os.ReadFile(filepath.Join(out, MarkdownFile))
	require.NoError(t, err)
	assert.Contains(t, string(md), "Analysis failed: boom")
}
