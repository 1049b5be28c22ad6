package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"depcompliance/internal/config"
	"depcompliance/internal/license"
	"depcompliance/internal/logging"
	"depcompliance/internal/metrics"
	"depcompliance/internal/model"
	"depcompliance/internal/pipeline"
	"depcompliance/internal/report"
	"depcompliance/internal/risk"
	"depcompliance/internal/scanners/npm"
	"depcompliance/internal/vuln"
)

var analyzeBindings = map[string]string{
	config.KeyOut:          "out",
	config.KeyFailOn:       "fail-on",
	config.KeyTimeout:      "timeout",
	config.KeyPolicyFile:   "policy",
	config.KeyOSVURL:       "osv-url",
	config.KeyOSVChunkSize: "chunk-size",
	config.KeyMetricsFile:  "metrics-file",
}

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [path]",
		Short: "Analyze a project and write report.json, report.md and sbom.spdx.json",
		Long: `Analyze resolves the dependencies of the project at path (default: the
current directory), classifies their licenses against the policy, queries
the OSV database for known vulnerabilities, checks for outdated packages
and writes the reports into the output directory.

Exit codes:
  0  analysis succeeded and the risk level is below --fail-on
  1  usage or configuration error
  2  the overall risk reached --fail-on
  3  the analysis failed or one of its stages degraded`,
		Args: cobra.MaximumNArgs(1),
		RunE: runAnalyze,
	}

	f := cmd.Flags()
	f.String("out", "depcompliance-report", "Output directory")
	f.String("fail-on", "high", "Fail when the overall risk reaches this level (none, low, medium, high)")
	f.Duration("timeout", 0, "Wall-clock budget of the whole analysis (default 5m)")
	f.Bool("no-osv", false, "Disable the OSV vulnerability lookup")
	f.Bool("no-outdated", false, "Disable the npm outdated check")
	f.String("policy", "", "License policy YAML file")
	f.String("osv-url", "", "OSV querybatch endpoint")
	f.Int("chunk-size", 0, "Packages per OSV request")
	f.Bool("pretty", false, "Render report.md in the terminal")
	f.String("metrics-file", "", "Write Prometheus metrics to this textfile")
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	absPath, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("invalid target path: %w", err)
	}

	cfg, err := loadConfig(cmd, analyzeBindings)
	if err != nil {
		return err
	}
	if noOSV, _ := cmd.Flags().GetBool("no-osv"); noOSV {
		cfg.OSVEnabled = false
	}
	if noOutdated, _ := cmd.Flags().GetBool("no-outdated"); noOutdated {
		cfg.OutdatedEnabled = false
	}

	policy, err := license.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printPlan(out, absPath, cfg, policy)

	m := metrics.New()
	opts := pipeline.Options{
		Policy:      policy,
		Recorder:    m,
		Logger:      logging.New("pipeline"),
		ToolVersion: version,
	}
	if cfg.OSVEnabled {
		opts.Correlator = vuln.New(
			vuln.WithURL(cfg.OSVURL),
			vuln.WithChunkSize(cfg.OSVChunkSize),
			vuln.WithTimeout(cfg.OSVTimeout),
			vuln.WithLogger(logging.New("vuln")),
			vuln.WithRecorder(m),
		)
	}
	if cfg.OutdatedEnabled {
		outdated := npm.NewOutdated(logging.New("npm"))
		outdated.RawDir = filepath.Join(cfg.Out, "raw")
		opts.Outdated = outdated
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
	defer cancel()

	fmt.Fprintln(out, sectionStyle.Render("[Execution]"))
	doc := pipeline.New(opts).Analyze(ctx, absPath)

	if err := report.Generate(cfg.Out, doc); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	fmt.Fprintf(out, "Reports saved to %s/\n", cfg.Out)

	if cfg.MetricsFile != "" {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			logging.New("metrics").Warn("failed to write metrics textfile", "path", cfg.MetricsFile, "error", err)
		}
	}

	printSummary(out, doc)
	if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
		renderMarkdown(out, report.Markdown(doc))
	}

	return verdict(doc, cfg.FailOn)
}

// verdict maps the finished document onto the process exit code. A failed
// analysis wins over the threshold; the threshold wins over degraded stages.
func verdict(doc report.Document, failOn string) error {
	switch {
	case doc.Metadata.Status == report.StatusError:
		return &exitError{code: ExitDegraded, msg: "FAILURE: analysis did not complete: " + doc.Error.Message}
	case exceeds(failOn, doc.RiskAssessment):
		return &exitError{code: ExitThreshold, msg: fmt.Sprintf("FAILURE: overall risk %s (%d) reached --fail-on %s.",
			doc.RiskAssessment.Level, doc.RiskAssessment.OverallScore, failOn)}
	case doc.Metadata.Status == report.StatusPartial:
		return &exitError{code: ExitDegraded, msg: fmt.Sprintf("COMPLETED WITH ERRORS: %d stage(s) degraded.", len(doc.Metadata.StageErrors))}
	}
	return nil
}

// exceeds reports whether the assessment reaches the fail-on level. "low"
// trips on any non-zero score, so a clean project still passes.
func exceeds(failOn string, ra model.RiskAssessment) bool {
	switch failOn {
	case "high":
		return ra.OverallScore >= risk.HighThreshold
	case "medium":
		return ra.OverallScore >= risk.MediumThreshold
	case "low":
		return ra.OverallScore > 0
	default:
		return false
	}
}
