// Package report assembles the analysis document and writes it to disk as
// JSON, Markdown and SPDX.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"depcompliance/internal/detect"
	"depcompliance/internal/license"
	"depcompliance/internal/model"
	"depcompliance/internal/sbom"
)

// Report status values.
const (
	StatusSuccess = "SUCCESS"
	StatusPartial = "PARTIAL"
	StatusError   = "ERROR"
)

// Output file names written by Generate.
const (
	JSONFile     = "report.json"
	MarkdownFile = "report.md"
	SPDXFile     = "sbom.spdx.json"
)

// StageError records a stage that degraded instead of aborting the analysis.
type StageError struct {
	Source   string `json:"source"`
	Location string `json:"location"`
	Message  string `json:"message"`
}

// Metadata describes the run itself.
type Metadata struct {
	ProjectPath    string                 `json:"projectPath"`
	ProjectName    string                 `json:"projectName"`
	Timestamp      time.Time              `json:"timestamp"`
	DurationMillis int64                  `json:"durationMillis"`
	ToolVersion    string                 `json:"toolVersion"`
	PolicyVersion  string                 `json:"policyVersion"`
	Status         string                 `json:"status"`
	Detected       detect.DetectionResult `json:"detected"`
	Stages         map[string]bool        `json:"stages"`
	StageErrors    []StageError           `json:"stageErrors"`
}

// LicenseCompliance is the license section: bucket counts plus the verdict.
type LicenseCompliance struct {
	license.Summary
	model.CompatibilityVerdict
	Error string `json:"error,omitempty"`
}

// Recommendation is one ordered remediation step.
type Recommendation struct {
	Priority string `json:"priority"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Reports carries the human-oriented summaries.
type Reports struct {
	ExecutiveSummary string           `json:"executiveSummary"`
	Recommendations  []Recommendation `json:"recommendations"`
}

// ErrorInfo is present only when the analysis aborted.
type ErrorInfo struct {
	Message string `json:"message"`
	Stage   string `json:"stage,omitempty"`
}

// Document is the complete analysis output. Every section is always present.
type Document struct {
	SBOM                    model.BillOfMaterials     `json:"sbom"`
	LicenseCompliance       LicenseCompliance         `json:"licenseCompliance"`
	SecurityVulnerabilities model.VulnerabilityReport `json:"securityVulnerabilities"`
	OutdatedDependencies    model.StalenessReport     `json:"outdatedDependencies"`
	SupplyChainRisk         model.SupplyChainReport   `json:"supplyChainRisk"`
	RiskAssessment          model.RiskAssessment      `json:"riskAssessment"`
	Reports                 Reports                   `json:"reports"`
	Metadata                Metadata                  `json:"metadata"`
	Error                   *ErrorInfo                `json:"error,omitempty"`
}

// Input gathers the stage outputs Build needs.
type Input struct {
	Meta        Metadata
	BOM         model.BillOfMaterials
	Summary     license.Summary
	Verdict     model.CompatibilityVerdict
	Vulns       model.VulnerabilityReport
	Staleness   model.StalenessReport
	SupplyChain model.SupplyChainReport
	Risk        model.RiskAssessment
}

// Build assembles the document and derives the status, executive summary
// and recommendations.
func Build(in Input) Document {
	doc := Document{
		SBOM:                    in.BOM,
		LicenseCompliance:       LicenseCompliance{Summary: in.Summary, CompatibilityVerdict: in.Verdict},
		SecurityVulnerabilities: in.Vulns,
		OutdatedDependencies:    in.Staleness,
		SupplyChainRisk:         in.SupplyChain,
		RiskAssessment:          in.Risk,
		Metadata:                in.Meta,
	}
	normalize(&doc)

	if len(doc.Metadata.StageErrors) > 0 {
		doc.Metadata.Status = StatusPartial
	} else {
		doc.Metadata.Status = StatusSuccess
	}

	doc.Reports = Reports{
		ExecutiveSummary: executiveSummary(doc),
		Recommendations:  recommendations(doc),
	}
	return doc
}

// ErrorDocument is the structurally complete document returned when the
// analysis aborted: every section is present but empty.
func ErrorDocument(meta Metadata, stage string, err error) Document {
	doc := Document{Metadata: meta}
	normalize(&doc)
	doc.Metadata.Status = StatusError
	doc.Error = &ErrorInfo{Message: err.Error(), Stage: stage}
	doc.RiskAssessment.Level = model.LevelLow
	doc.SupplyChainRisk.RiskLevel = model.LevelNone
	doc.Reports = Reports{
		ExecutiveSummary: fmt.Sprintf("Analysis of %s failed: %s", meta.ProjectName, err),
		Recommendations:  []Recommendation{},
	}
	return doc
}

// normalize replaces nil slices and maps with empty ones so the JSON shape
// never depends on which stages produced data.
func normalize(doc *Document) {
	if doc.SBOM.Packages == nil {
		doc.SBOM.Packages = []model.PackageRecord{}
	}
	if doc.SBOM.StrategyChain == nil {
		doc.SBOM.StrategyChain = []model.StrategyAttempt{}
	}
	if doc.SBOM.CreationInfo.Creators == nil {
		doc.SBOM.CreationInfo.Creators = []string{}
	}
	lc := &doc.LicenseCompliance
	if lc.ByBucket == nil {
		lc.ByBucket = map[model.RiskBucket]int{}
	}
	if lc.ByLicense == nil {
		lc.ByLicense = map[string]int{}
	}
	if lc.Conflicts == nil {
		lc.Conflicts = []model.LicenseConflict{}
	}
	if lc.Warnings == nil {
		lc.Warnings = []model.LicenseWarning{}
	}
	if lc.Violations == nil {
		lc.Violations = []model.PolicyViolation{}
	}
	sv := &doc.SecurityVulnerabilities
	if sv.SeverityBreakdown == nil {
		sv.SeverityBreakdown = map[model.Severity]int{}
	}
	if sv.Findings == nil {
		sv.Findings = []model.VulnerabilityFinding{}
	}
	if sv.VulnerablePackages == nil {
		sv.VulnerablePackages = []string{}
	}
	if doc.OutdatedDependencies.Packages == nil {
		doc.OutdatedDependencies.Packages = []model.StalenessRecord{}
	}
	sc := &doc.SupplyChainRisk
	if sc.Abandoned == nil {
		sc.Abandoned = []string{}
	}
	if sc.Unmaintained == nil {
		sc.Unmaintained = []string{}
	}
	if sc.NoRepository == nil {
		sc.NoRepository = []string{}
	}
	pr := &doc.RiskAssessment.Priorities
	if pr.High == nil {
		pr.High = []model.PackagePriority{}
	}
	if pr.Medium == nil {
		pr.Medium = []model.PackagePriority{}
	}
	if pr.Low == nil {
		pr.Low = []model.PackagePriority{}
	}
	if doc.Metadata.StageErrors == nil {
		doc.Metadata.StageErrors = []StageError{}
	}
	if doc.Metadata.Stages == nil {
		doc.Metadata.Stages = map[string]bool{}
	}
}

func executiveSummary(doc Document) string {
	lc := doc.LicenseCompliance
	sv := doc.SecurityVulnerabilities
	ra := doc.RiskAssessment

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d dependencies resolved via the %s strategy. ",
		doc.SBOM.ProjectName, doc.SBOM.TotalPackages, doc.SBOM.Strategy)
	fmt.Fprintf(&sb, "Overall risk is %s (%d/100). ", ra.Level, ra.OverallScore)
	fmt.Fprintf(&sb, "License compliance: %s with %d conflicts, %d policy violations and %d warnings. ",
		lc.ComplianceStatus, len(lc.Conflicts), len(lc.Violations), len(lc.Warnings))
	if sv.Status == model.VulnStatusSkipped {
		sb.WriteString("Vulnerability correlation was skipped. ")
	} else {
		fmt.Fprintf(&sb, "%d known vulnerabilities across %d packages. ",
			sv.TotalVulnerabilities, len(sv.VulnerablePackages))
	}
	if !doc.OutdatedDependencies.Skipped && doc.OutdatedDependencies.Error == "" {
		fmt.Fprintf(&sb, "%d outdated dependencies (%d major). ",
			doc.OutdatedDependencies.TotalOutdated, doc.OutdatedDependencies.MajorUpdates)
	}
	fmt.Fprintf(&sb, "Supply-chain risk is %s.", doc.SupplyChainRisk.RiskLevel)
	if n := len(doc.Metadata.StageErrors); n > 0 {
		fmt.Fprintf(&sb, " %d stages reported errors; results are partial.", n)
	}
	return sb.String()
}

func recommendations(doc Document) []Recommendation {
	var out []Recommendation
	add := func(priority, category, format string, args ...any) {
		out = append(out, Recommendation{Priority: priority, Category: category, Message: fmt.Sprintf(format, args...)})
	}

	lc := doc.LicenseCompliance
	if len(lc.Violations) > 0 {
		add(model.LevelHigh, "license", "Replace %d dependencies whose licenses are blocked by policy: %s",
			len(lc.Violations), joinLimited(violationPackages(lc.Violations), 5))
	}
	var high, medium []string
	for _, c := range lc.Conflicts {
		if c.Severity == model.SeverityHigh {
			high = append(high, c.Package)
		} else {
			medium = append(medium, c.Package)
		}
	}
	if len(high) > 0 {
		add(model.LevelHigh, "license", "Remove or isolate %d copyleft dependencies that prevent distribution under %s: %s",
			len(high), lc.ProjectLicense, joinLimited(high, 5))
	}

	sv := doc.SecurityVulnerabilities
	if n := sv.SeverityBreakdown[model.SeverityCritical] + sv.SeverityBreakdown[model.SeverityHigh]; n > 0 {
		add(model.LevelHigh, "security", "Upgrade packages with %d critical or high severity vulnerabilities", n)
	}
	if sv.Status == model.VulnStatusPartial || sv.Status == model.VulnStatusFailed {
		add(model.LevelMedium, "security", "Re-run vulnerability correlation: %d of the queries failed", len(sv.ChunkFailures))
	}
	if len(medium) > 0 {
		add(model.LevelMedium, "license", "Review %d dependencies with license obligations: %s",
			len(medium), joinLimited(medium, 5))
	}
	if n := sv.SeverityBreakdown[model.SeverityMedium]; n > 0 {
		add(model.LevelMedium, "security", "Plan upgrades for %d medium severity vulnerabilities", n)
	}
	if n := doc.OutdatedDependencies.MajorUpdates; n > 0 {
		add(model.LevelMedium, "maintenance", "Evaluate %d major version upgrades with breaking changes", n)
	}
	if n := len(doc.SupplyChainRisk.Abandoned); n > 0 {
		add(model.LevelMedium, "supply-chain", "Replace %d deprecated packages: %s", n, joinLimited(doc.SupplyChainRisk.Abandoned, 5))
	}
	var unknown int
	for _, w := range lc.Warnings {
		if strings.Contains(w.Reason, "could not be classified") {
			unknown++
		}
	}
	if unknown > 0 {
		add(model.LevelLow, "license", "Confirm the licenses of %d packages that could not be classified", unknown)
	}
	if n := len(doc.SupplyChainRisk.Unmaintained); n > 0 {
		add(model.LevelLow, "supply-chain", "Watch %d packages maintained by a single person", n)
	}
	if len(out) == 0 {
		add(model.LevelLow, "general", "No action required")
	}
	return out
}

func violationPackages(vs []model.PolicyViolation) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Package
	}
	return out
}

func joinLimited(items []string, limit int) string {
	if len(items) <= limit {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(items[:limit], ", "), len(items)-limit)
}

// Generate writes report.json, report.md and, unless the analysis failed,
// sbom.spdx.json into outDir.
func Generate(outDir string, doc Document) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	jsonBytes, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outDir, JSONFile), jsonBytes, 0644); err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(outDir, MarkdownFile), []byte(Markdown(doc)), 0644); err != nil {
		return err
	}

	if doc.Metadata.Status == StatusError {
		return nil
	}
	spdx, err := sbom.MarshalSPDX(doc.SBOM)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, SPDXFile), spdx, 0644)
}
