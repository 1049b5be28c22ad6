package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"depcompliance/internal/config"
	"depcompliance/internal/license"
	"depcompliance/internal/model"
	"depcompliance/internal/report"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Width(12)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	badStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

func printPlan(w io.Writer, target string, cfg config.Config, policy *license.Policy) {
	fmt.Fprintln(w, titleStyle.Render("=== depcompliance Plan ==="))
	row(w, "Target:", target)
	row(w, "Output:", cfg.Out)
	row(w, "Timeout:", cfg.Timeout.String())
	row(w, "Fail On:", cfg.FailOn)
	row(w, "Policy:", policy.Version)
	if cfg.OSVEnabled {
		row(w, "OSV:", fmt.Sprintf("%s (chunk %d, %s)", cfg.OSVURL, cfg.OSVChunkSize, cfg.OSVTimeout))
	} else {
		row(w, "OSV:", "disabled")
	}
	row(w, "Outdated:", fmt.Sprintf("%v", cfg.OutdatedEnabled))
	fmt.Fprintln(w)
}

func printSummary(w io.Writer, doc report.Document) {
	meta := doc.Metadata
	fmt.Fprintln(w)
	fmt.Fprintln(w, sectionStyle.Render("[Detected Manifests]"))
	printFiles(w, "Lockfiles", meta.Detected.Lockfiles)
	printFiles(w, "Manifests", meta.Detected.Manifests)
	printFiles(w, "Requirements", meta.Detected.Requirements)

	fmt.Fprintln(w)
	fmt.Fprintln(w, sectionStyle.Render("[Summary]"))
	row(w, "Status:", statusStyle(meta.Status).Render(meta.Status))
	if doc.Error != nil {
		row(w, "Error:", doc.Error.Message)
		return
	}
	row(w, "Packages:", fmt.Sprintf("%d (strategy %s)", doc.SBOM.TotalPackages, doc.SBOM.Strategy))
	row(w, "License:", fmt.Sprintf("%s, %d conflict(s), %d violation(s)",
		doc.LicenseCompliance.ComplianceStatus, len(doc.LicenseCompliance.Conflicts), len(doc.LicenseCompliance.Violations)))
	row(w, "Vulns:", fmt.Sprintf("%d (%s)", doc.SecurityVulnerabilities.TotalVulnerabilities, doc.SecurityVulnerabilities.Status))
	ra := doc.RiskAssessment
	row(w, "Risk:", levelStyle(ra.Level).Render(fmt.Sprintf("%s %d", ra.Level, ra.OverallScore)))

	for _, e := range meta.StageErrors {
		fmt.Fprintf(w, " - [%s] %s\n", e.Source, e.Message)
	}
}

func printFiles(w io.Writer, name string, files []string) {
	if len(files) == 0 {
		return
	}
	fmt.Fprintf(w, "- %s (%d files)\n", name, len(files))
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	for _, f := range sorted {
		fmt.Fprintf(w, "  * %s\n", f)
	}
}

func row(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render(label), value)
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case report.StatusSuccess:
		return okStyle
	case report.StatusPartial:
		return warnStyle
	default:
		return badStyle
	}
}

func levelStyle(level string) lipgloss.Style {
	switch level {
	case model.LevelHigh, model.LevelCritical:
		return badStyle
	case model.LevelMedium:
		return warnStyle
	default:
		return okStyle
	}
}

// renderMarkdown prints md through glamour, falling back to the raw text.
func renderMarkdown(w io.Writer, md string) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		fmt.Fprint(w, md)
		return
	}
	out, err := renderer.Render(md)
	if err != nil {
		fmt.Fprint(w, md)
		return
	}
	fmt.Fprint(w, out)
}
