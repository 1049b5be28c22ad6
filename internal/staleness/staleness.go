// Package staleness classifies outdated dependencies and scores supply-chain
// maintenance signals.
package staleness

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/Masterminds/semver/v3"

	"depcompliance/internal/logging"
	"depcompliance/internal/model"
)

// OutdatedSource reports which dependencies of a project have newer releases.
type OutdatedSource interface {
	Name() string
	Outdated(ctx context.Context, dir string) ([]model.OutdatedEntry, error)
}

// Assessor turns OutdatedSource output into a StalenessReport.
type Assessor struct {
	source OutdatedSource
	logger *slog.Logger
}

func New(source OutdatedSource, logger *slog.Logger) *Assessor {
	return &Assessor{source: source, logger: logging.OrDiscard(logger)}
}

// Skipped is the report used when the stage is disabled.
func Skipped() model.StalenessReport {
	return model.StalenessReport{Packages: []model.StalenessRecord{}, Skipped: true}
}

// Assess queries the source and classifies every entry against the BOM. A
// source failure yields an empty report carrying the error; a project the
// source has no manifest for is reported as skipped.
func (a *Assessor) Assess(ctx context.Context, dir string, pkgs []model.PackageRecord) model.StalenessReport {
	rep := model.StalenessReport{Packages: []model.StalenessRecord{}}
	if a.source == nil {
		rep.Skipped = true
		return rep
	}
	rep.Source = a.source.Name()

	entries, err := a.source.Outdated(ctx, dir)
	if errors.Is(err, model.ErrManifestNotFound) {
		a.logger.Info("no manifest for outdated check", "source", rep.Source)
		rep.Skipped = true
		return rep
	}
	if err != nil {
		a.logger.Warn("outdated check unavailable", "source", rep.Source, "error", err)
		rep.Error = err.Error()
		return rep
	}

	installed := make(map[string]string, len(pkgs))
	for _, p := range pkgs {
		if p.InstalledVersion != "" {
			if _, ok := installed[p.Name]; !ok {
				installed[p.Name] = p.InstalledVersion
			}
		}
	}

	for _, e := range entries {
		current := e.Current
		if current == "" {
			current = installed[e.Name]
		}
		updateType, ok := Classify(current, e.Latest)
		if !ok {
			continue
		}
		rep.Packages = append(rep.Packages, model.StalenessRecord{
			Package:    e.Name,
			Current:    current,
			Wanted:     e.Wanted,
			Latest:     e.Latest,
			UpdateType: updateType,
			Breaking:   updateType == model.UpdateMajor,
		})
		switch updateType {
		case model.UpdateMajor:
			rep.MajorUpdates++
		case model.UpdateMinor:
			rep.MinorUpdates++
		default:
			rep.PatchUpdates++
		}
	}
	rep.TotalOutdated = len(rep.Packages)
	rep.StalenessScore = min(100, percent(rep.MajorUpdates, len(pkgs)))

	a.logger.Info("staleness assessed", "outdated", rep.TotalOutdated, "major", rep.MajorUpdates)
	return rep
}

// Classify compares current against latest component-wise. It returns false
// when either version does not parse or current is not behind latest.
func Classify(current, latest string) (model.UpdateType, bool) {
	cv, err := semver.NewVersion(current)
	if err != nil {
		return "", false
	}
	lv, err := semver.NewVersion(latest)
	if err != nil {
		return "", false
	}
	if !cv.LessThan(lv) {
		return "", false
	}
	switch {
	case cv.Major() != lv.Major():
		return model.UpdateMajor, true
	case cv.Minor() != lv.Minor():
		return model.UpdateMinor, true
	default:
		return model.UpdatePatch, true
	}
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(n) / float64(total) * 100))
}
