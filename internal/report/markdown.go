package report

import (
	"fmt"
	"strings"

	"depcompliance/internal/model"
)

const topFindings = 30

// Markdown renders the document as a human-readable report.
func Markdown(doc Document) string {
	var sb strings.Builder
	meta := doc.Metadata

	sb.WriteString("# Dependency Compliance Report\n\n")
	fmt.Fprintf(&sb, "**Project:** `%s`\n", meta.ProjectName)
	fmt.Fprintf(&sb, "**Path:** `%s`\n", meta.ProjectPath)
	fmt.Fprintf(&sb, "**Timestamp:** %s\n", meta.Timestamp.UTC().Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(&sb, "**Status:** %s\n\n", meta.Status)

	if doc.Error != nil {
		sb.WriteString("> [!CAUTION]\n")
		fmt.Fprintf(&sb, "> Analysis failed: %s\n", escape(doc.Error.Message))
		return sb.String()
	}

	sb.WriteString("## Executive Summary\n\n")
	sb.WriteString(doc.Reports.ExecutiveSummary)
	sb.WriteString("\n\n")

	ra := doc.RiskAssessment
	sb.WriteString("## Risk Assessment\n\n")
	sb.WriteString("| Dimension | Score |\n")
	sb.WriteString("| :--- | :--- |\n")
	fmt.Fprintf(&sb, "| **Overall (%s)** | %d |\n", ra.Level, ra.OverallScore)
	fmt.Fprintf(&sb, "| Security | %d |\n", ra.Breakdown.Security)
	fmt.Fprintf(&sb, "| License | %d |\n", ra.Breakdown.License)
	fmt.Fprintf(&sb, "| Supply chain | %d |\n", ra.Breakdown.SupplyChain)
	sb.WriteString("\n")

	if len(doc.Reports.Recommendations) > 0 {
		sb.WriteString("## Recommendations\n\n")
		for i, r := range doc.Reports.Recommendations {
			fmt.Fprintf(&sb, "%d. **[%s]** %s: %s\n", i+1, r.Priority, r.Category, r.Message)
		}
		sb.WriteString("\n")
	}

	writeLicenses(&sb, doc.LicenseCompliance)
	writeVulnerabilities(&sb, doc.SecurityVulnerabilities)
	writeOutdated(&sb, doc.OutdatedDependencies)

	if len(meta.StageErrors) > 0 {
		fmt.Fprintf(&sb, "\n## Stage Errors (%d)\n\n", len(meta.StageErrors))
		sb.WriteString("> [!WARNING]\n")
		sb.WriteString("> The following stages degraded. Their sections may be incomplete.\n\n")
		sb.WriteString("| Source | Location | Message |\n")
		sb.WriteString("|---|---|---|\n")
		for _, e := range meta.StageErrors {
			fmt.Fprintf(&sb, "| %s | %s | %s |\n", e.Source, e.Location, escape(e.Message))
		}
	}

	return sb.String()
}

func writeLicenses(sb *strings.Builder, lc LicenseCompliance) {
	sb.WriteString("## License Compliance\n\n")
	fmt.Fprintf(sb, "**Project license:** %s (%s)\n", lc.ProjectLicense, lc.ProjectBucket)
	fmt.Fprintf(sb, "**Status:** %s, can distribute: %t\n\n", lc.ComplianceStatus, lc.CanDistribute)

	sb.WriteString("| Bucket | Packages |\n")
	sb.WriteString("| :--- | :--- |\n")
	for _, b := range model.RiskBuckets {
		fmt.Fprintf(sb, "| %s | %d |\n", b, lc.ByBucket[b])
	}
	sb.WriteString("\n")

	if len(lc.Conflicts) > 0 {
		fmt.Fprintf(sb, "### Conflicts (%d)\n\n", len(lc.Conflicts))
		sb.WriteString("| Severity | Package | License | Reason |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, c := range lc.Conflicts {
			fmt.Fprintf(sb, "| %s | %s | %s | %s |\n", c.Severity, c.Package, c.DependencyLicense, escape(c.Reason))
		}
		sb.WriteString("\n")
	}
	if len(lc.Violations) > 0 {
		fmt.Fprintf(sb, "### Policy Violations (%d)\n\n", len(lc.Violations))
		sb.WriteString("| Package | License | Rule |\n")
		sb.WriteString("|---|---|---|\n")
		for _, v := range lc.Violations {
			fmt.Fprintf(sb, "| %s | %s | %s |\n", v.Package, v.License, v.Rule)
		}
		sb.WriteString("\n")
	}
}

func writeVulnerabilities(sb *strings.Builder, sv model.VulnerabilityReport) {
	sb.WriteString("## Vulnerabilities\n\n")
	if sv.Status == model.VulnStatusSkipped {
		sb.WriteString("_Vulnerability correlation skipped._\n\n")
		return
	}

	sb.WriteString("| Severity | Count |\n")
	sb.WriteString("| :--- | :--- |\n")
	for _, s := range model.Severities {
		fmt.Fprintf(sb, "| %s | %d |\n", s, sv.SeverityBreakdown[s])
	}
	sb.WriteString("\n")

	if len(sv.Findings) == 0 {
		sb.WriteString("_No findings._\n\n")
		return
	}
	sb.WriteString("| Sev | Package | Version | ID | Summary |\n")
	sb.WriteString("| :--- | :--- | :--- | :--- | :--- |\n")
	limit := min(topFindings, len(sv.Findings))
	for _, f := range sv.Findings[:limit] {
		fmt.Fprintf(sb, "| %s | %s | %s | %s | %s |\n",
			f.Severity, f.Package, f.Version, f.Identifier, escape(f.Summary))
	}
	if len(sv.Findings) > topFindings {
		fmt.Fprintf(sb, "\n*...and %d more findings inside %s*\n", len(sv.Findings)-topFindings, JSONFile)
	}
	sb.WriteString("\n")
}

func writeOutdated(sb *strings.Builder, st model.StalenessReport) {
	sb.WriteString("## Outdated Dependencies\n\n")
	switch {
	case st.Skipped:
		sb.WriteString("_Outdated check skipped._\n\n")
		return
	case st.Error != "":
		fmt.Fprintf(sb, "_Outdated check unavailable: %s_\n\n", escape(st.Error))
		return
	case len(st.Packages) == 0:
		sb.WriteString("_All dependencies are up to date._\n\n")
		return
	}
	sb.WriteString("| Package | Current | Wanted | Latest | Update |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, p := range st.Packages {
		fmt.Fprintf(sb, "| %s | %s | %s | %s | %s |\n", p.Package, p.Current, p.Wanted, p.Latest, p.UpdateType)
	}
	sb.WriteString("\n")
}

func escape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
