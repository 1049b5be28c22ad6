// Package pipeline runs the analysis stages in order and always produces a
// structurally complete report document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"depcompliance/internal/detect"
	"depcompliance/internal/enrich"
	"depcompliance/internal/license"
	"depcompliance/internal/logging"
	"depcompliance/internal/metrics"
	"depcompliance/internal/model"
	"depcompliance/internal/report"
	"depcompliance/internal/resolve"
	"depcompliance/internal/risk"
	"depcompliance/internal/sbom"
	"depcompliance/internal/staleness"
	"depcompliance/internal/vuln"
)

// Stage names used in logs, metrics and stage errors.
const (
	StageDetect      = "detect"
	StageResolve     = "resolve"
	StageEnrich      = "enrich"
	StageSBOM        = "sbom"
	StageLicense     = "license"
	StageVulns       = "vulnerabilities"
	StageOutdated    = "outdated"
	StageSupplyChain = "supplyChain"
	StageRisk        = "risk"
)

// Correlator looks up known vulnerabilities for BOM packages.
type Correlator interface {
	Correlate(ctx context.Context, pkgs []model.PackageRecord) model.VulnerabilityReport
}

// Options wires the collaborators of a Pipeline. Nil Correlator or Outdated
// disables that stage.
type Options struct {
	Policy      *license.Policy
	Strategies  []resolve.Strategy
	Correlator  Correlator
	Outdated    staleness.OutdatedSource
	Recorder    metrics.Recorder
	Logger      *slog.Logger
	ToolVersion string
	SBOMOptions []sbom.Option
	Now         func() time.Time
}

// Pipeline is one configured analysis.
type Pipeline struct {
	policy     *license.Policy
	resolver   *resolve.Resolver
	enricher   *enrich.Enricher
	builder    *sbom.Builder
	correlator Correlator
	assessor   *staleness.Assessor
	outdated   bool
	recorder   metrics.Recorder
	logger     *slog.Logger
	version    string
	now        func() time.Time
}

func New(opts Options) *Pipeline {
	logger := logging.OrDiscard(opts.Logger)
	policy := opts.Policy
	if policy == nil {
		policy = license.DefaultPolicy()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sbomOpts := append([]sbom.Option{sbom.WithClock(now)}, opts.SBOMOptions...)

	return &Pipeline{
		policy:     policy,
		resolver:   resolve.New(logger.With("stage", StageResolve), opts.Strategies...),
		enricher:   enrich.New(logger.With("stage", StageEnrich)),
		builder:    sbom.New(policy, opts.ToolVersion, sbomOpts...),
		correlator: opts.Correlator,
		assessor:   staleness.New(opts.Outdated, logger.With("stage", StageOutdated)),
		outdated:   opts.Outdated != nil,
		recorder:   metrics.OrNop(opts.Recorder),
		logger:     logger,
		version:    opts.ToolVersion,
		now:        now,
	}
}

// Analyze runs every stage against dir. It never returns an error: fatal
// failures, panics and an expired context all yield a document with status
// ERROR, degraded stages yield status PARTIAL.
func (p *Pipeline) Analyze(ctx context.Context, dir string) (doc report.Document) {
	started := p.now()
	meta := report.Metadata{
		ProjectPath:   dir,
		Timestamp:     started.UTC(),
		ToolVersion:   p.version,
		PolicyVersion: p.policy.Version,
		Stages:        map[string]bool{},
	}
	if abs, err := filepath.Abs(dir); err == nil {
		meta.ProjectPath = abs
	}
	stage := StageDetect

	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("analysis panicked", "stage", stage, "panic", rec)
			doc = report.ErrorDocument(meta, stage, fmt.Errorf("%w: panic in %s: %v", model.ErrAnalysisFatal, stage, rec))
		}
		doc.Metadata.DurationMillis = p.now().Sub(started).Milliseconds()
		p.recorder.Analysis(doc.Metadata.Status)
		p.logger.Info("analysis finished", "status", doc.Metadata.Status, "durationMs", doc.Metadata.DurationMillis)
	}()

	fail := func(err error) report.Document {
		p.logger.Error("analysis failed", "stage", stage, "error", err)
		return report.ErrorDocument(meta, stage, err)
	}
	timed := func(name string, f func()) {
		stage = name
		t := p.now()
		f()
		p.recorder.StageDuration(name, p.now().Sub(t))
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		if err == nil {
			err = errors.New("not a directory")
		}
		return fail(fmt.Errorf("%w: project directory %s: %v", model.ErrAnalysisFatal, dir, err))
	}

	projectName, projectLicense := resolve.ProjectInfo(dir)
	meta.ProjectName = projectName

	timed(StageDetect, func() {
		found, err := detect.FindManifests(dir)
		if err != nil {
			p.logger.Warn("manifest detection failed", "error", err)
		}
		meta.Detected = relativize(meta.ProjectPath, found)
	})
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	var resolved resolve.Result
	timed(StageResolve, func() {
		resolved = p.resolver.Resolve(ctx, dir)
	})
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	p.recorder.PackagesResolved(resolved.Strategy, len(resolved.Packages))
	for _, a := range resolved.Chain {
		if a.Status == model.StrategyFailed {
			meta.StageErrors = append(meta.StageErrors, report.StageError{
				Source: StageResolve, Location: a.Name, Message: a.Error,
			})
		}
	}

	pkgs := resolved.Packages
	var enrichment model.EnrichmentStats
	timed(StageEnrich, func() {
		enrichment = p.enricher.Enrich(dir, &pkgs)
	})
	meta.Stages[StageEnrich] = enrichment.Available
	for _, e := range enrichment.Errors {
		meta.StageErrors = append(meta.StageErrors, report.StageError{Source: StageEnrich, Location: enrich.InstallDir, Message: e})
	}

	var bom model.BillOfMaterials
	timed(StageSBOM, func() {
		bom = p.builder.Build(sbom.Input{
			ProjectName:    projectName,
			ProjectLicense: projectLicense,
			Strategy:       resolved.Strategy,
			Chain:          resolved.Chain,
			Packages:       pkgs,
			Enrichment:     enrichment,
			Started:        started,
		})
	})

	var summary license.Summary
	var verdict model.CompatibilityVerdict
	timed(StageLicense, func() {
		summary = license.Summarize(bom.Packages)
		verdict = p.policy.CheckCompatibility(bom.ProjectLicense, bom.Packages)
	})
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	vulns := vuln.Skipped()
	meta.Stages[StageVulns] = p.correlator != nil
	if p.correlator != nil {
		timed(StageVulns, func() {
			vulns = p.correlator.Correlate(ctx, bom.Packages)
		})
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if vulns.Error != "" {
			meta.StageErrors = append(meta.StageErrors, report.StageError{Source: StageVulns, Message: vulns.Error})
		}
	}

	stale := staleness.Skipped()
	meta.Stages[StageOutdated] = p.outdated
	if p.outdated {
		timed(StageOutdated, func() {
			stale = p.assessor.Assess(ctx, dir, bom.Packages)
		})
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if stale.Error != "" {
			meta.StageErrors = append(meta.StageErrors, report.StageError{Source: StageOutdated, Location: stale.Source, Message: stale.Error})
		}
	}

	var supply model.SupplyChainReport
	timed(StageSupplyChain, func() {
		supply = staleness.SupplyChain(bom.Packages)
	})

	var assessment model.RiskAssessment
	timed(StageRisk, func() {
		assessment = risk.Assess(verdict, vulns, supply)
	})

	return report.Build(report.Input{
		Meta:        meta,
		BOM:         bom,
		Summary:     summary,
		Verdict:     verdict,
		Vulns:       vulns,
		Staleness:   stale,
		SupplyChain: supply,
		Risk:        assessment,
	})
}

func relativize(root string, found detect.DetectionResult) detect.DetectionResult {
	rel := func(paths []string) []string {
		out := make([]string, 0, len(paths))
		for _, p := range paths {
			if r, err := filepath.Rel(root, p); err == nil {
				p = r
			}
			out = append(out, filepath.ToSlash(p))
		}
		return out
	}
	return detect.DetectionResult{
		Lockfiles:    rel(found.Lockfiles),
		Manifests:    rel(found.Manifests),
		Requirements: rel(found.Requirements),
	}
}
