// Package risk blends the license, security and supply-chain results into one
// weighted assessment with per-package remediation priorities.
package risk

import (
	"fmt"
	"math"
	"sort"

	"depcompliance/internal/model"
)

// Dimension weights of the overall score.
const (
	WeightSecurity    = 0.6
	WeightLicense     = 0.25
	WeightSupplyChain = 0.15
)

// Thresholds shared by the overall level and the priority buckets.
const (
	HighThreshold   = 80
	MediumThreshold = 50
)

// SecurityScore is the severity-weighted sum of all findings, saturating at
// 100. Adding a finding never lowers it.
func SecurityScore(findings []model.VulnerabilityFinding) int {
	total := 0
	for _, f := range findings {
		total += f.Severity.Weight()
	}
	return clamp(total)
}

// LicenseScore maps a compatibility verdict onto the score scale.
func LicenseScore(v model.CompatibilityVerdict) int {
	switch {
	case len(v.Violations) > 0 || v.HasHighConflict():
		return 100
	case len(v.Conflicts) > 0:
		return 60
	case len(v.Warnings) > 0:
		return 20
	default:
		return 0
	}
}

// Overall blends the three dimension scores.
func Overall(security, license, supplyChain int) int {
	score := WeightSecurity*float64(security) +
		WeightLicense*float64(license) +
		WeightSupplyChain*float64(supplyChain)
	return clamp(int(math.Round(score)))
}

// Level buckets a score as HIGH, MEDIUM or LOW.
func Level(score int) string {
	switch {
	case score >= HighThreshold:
		return model.LevelHigh
	case score >= MediumThreshold:
		return model.LevelMedium
	default:
		return model.LevelLow
	}
}

// Assess computes the overall assessment.
func Assess(verdict model.CompatibilityVerdict, vulns model.VulnerabilityReport, supply model.SupplyChainReport) model.RiskAssessment {
	breakdown := model.RiskBreakdown{
		License:     LicenseScore(verdict),
		Security:    SecurityScore(vulns.Findings),
		SupplyChain: clamp(supply.RiskScore),
	}
	overall := Overall(breakdown.Security, breakdown.License, breakdown.SupplyChain)
	return model.RiskAssessment{
		OverallScore: overall,
		Level:        Level(overall),
		Breakdown:    breakdown,
		Priorities:   Prioritize(verdict, vulns.Findings),
	}
}

type candidate struct {
	score   int
	reasons []string
}

// Prioritize scores every package with a finding, conflict or violation as
// the maximum of its vulnerability weights and its license weight, then
// buckets it with the same thresholds as the overall level.
func Prioritize(verdict model.CompatibilityVerdict, findings []model.VulnerabilityFinding) model.Priorities {
	byPkg := make(map[string]*candidate)
	get := func(id string) *candidate {
		c, ok := byPkg[id]
		if !ok {
			c = &candidate{}
			byPkg[id] = c
		}
		return c
	}

	type vulnTally struct {
		count int
		worst model.Severity
	}
	tallies := make(map[string]*vulnTally)
	for _, f := range findings {
		id := model.PackageID(f.Package, f.Version)
		t, ok := tallies[id]
		if !ok {
			t = &vulnTally{worst: f.Severity}
			tallies[id] = t
		}
		t.count++
		if f.Severity.Rank() > t.worst.Rank() {
			t.worst = f.Severity
		}
	}
	for id, t := range tallies {
		c := get(id)
		c.score = max(c.score, t.worst.Weight())
		c.reasons = append(c.reasons, fmt.Sprintf("%d known vulnerabilities (worst %s)", t.count, t.worst))
	}

	for _, conflict := range verdict.Conflicts {
		c := get(conflict.Package)
		c.score = max(c.score, conflict.Severity.Weight())
		c.reasons = append(c.reasons, fmt.Sprintf("%s license conflict: %s", conflict.Severity, conflict.DependencyLicense))
	}
	for _, violation := range verdict.Violations {
		c := get(violation.Package)
		c.score = 100
		c.reasons = append(c.reasons, fmt.Sprintf("policy violation (%s): %s", violation.Rule, violation.License))
	}

	out := model.Priorities{
		High:   []model.PackagePriority{},
		Medium: []model.PackagePriority{},
		Low:    []model.PackagePriority{},
	}
	ids := make([]string, 0, len(byPkg))
	for id := range byPkg {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		c := byPkg[id]
		p := model.PackagePriority{Package: id, Score: c.score, Reasons: c.reasons}
		switch Level(c.score) {
		case model.LevelHigh:
			out.High = append(out.High, p)
		case model.LevelMedium:
			out.Medium = append(out.Medium, p)
		default:
			out.Low = append(out.Low, p)
		}
	}
	for _, bucket := range [][]model.PackagePriority{out.High, out.Medium, out.Low} {
		sort.SliceStable(bucket, func(i, j int) bool { return bucket[i].Score > bucket[j].Score })
	}
	return out
}

func clamp(score int) int {
	return min(100, max(0, score))
}
