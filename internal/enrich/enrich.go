// Package enrich fills package metadata from a locally installed
// node_modules tree.
package enrich

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"depcompliance/internal/logging"
	"depcompliance/internal/model"
	"depcompliance/internal/resolve"
)

// InstallDir is the install cache directory name.
const InstallDir = "node_modules"

// StrategyInstalled tags records discovered only on disk.
const StrategyInstalled = "installed"

// Enricher reads installed package manifests.
type Enricher struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Enricher {
	return &Enricher{logger: logging.OrDiscard(logger)}
}

type installed struct {
	rel string
	pkg resolve.PackageJSON
}

// Enrich scans dir/node_modules (top-level and @scope entries) and updates
// pkgs in place: missing license, description and repository fields are
// filled from the installed manifest, the installed version is recorded, and
// installed packages absent from pkgs are appended. Resolved versions are
// never rewritten. A missing cache is not an error: stats.Available is false.
func (e *Enricher) Enrich(dir string, pkgs *[]model.PackageRecord) model.EnrichmentStats {
	stats := model.EnrichmentStats{}
	root := filepath.Join(dir, InstallDir)

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		e.logger.Info("skipping enrichment", "reason", fmt.Errorf("%s: %w", root, model.ErrEnrichmentUnavailable))
		return stats
	}
	stats.Available = true

	found, errs := scan(root)
	for _, err := range errs {
		stats.Errors = append(stats.Errors, err.Error())
		e.logger.Debug("unreadable installed manifest", "error", err)
	}
	stats.Scanned = len(found)

	byName := make(map[string][]int)
	for i, p := range *pkgs {
		if p.Ecosystem == model.EcosystemNPM {
			byName[p.Name] = append(byName[p.Name], i)
		}
	}

	for _, inst := range found {
		name := inst.pkg.Name
		idxs, ok := byName[name]
		if !ok {
			rec := fromInstalled(inst)
			*pkgs = append(*pkgs, rec)
			byName[name] = append(byName[name], len(*pkgs)-1)
			stats.Added++
			continue
		}
		changed := false
		for _, i := range matching(*pkgs, idxs, inst.pkg.Version) {
			if apply(&(*pkgs)[i], inst) {
				changed = true
			}
		}
		if changed {
			stats.Enriched++
		}
	}

	e.logger.Info("enrichment complete",
		"scanned", stats.Scanned, "enriched", stats.Enriched, "added", stats.Added)
	return stats
}

// scan lists installed package manifests in deterministic order.
func scan(root string) ([]installed, []error) {
	var found []installed
	var errs []error

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, []error{err}
	}

	var dirs []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if strings.HasPrefix(name, "@") {
			scoped, err := os.ReadDir(filepath.Join(root, name))
			if err != nil {
				errs = append(errs, err)
				continue
			}
			for _, s := range scoped {
				if s.IsDir() && !strings.HasPrefix(s.Name(), ".") {
					dirs = append(dirs, filepath.Join(root, name, s.Name()))
				}
			}
			continue
		}
		dirs = append(dirs, filepath.Join(root, name))
	}
	sort.Strings(dirs)

	for _, d := range dirs {
		pkg, err := resolve.ReadPackageJSON(filepath.Join(d, "package.json"))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if pkg.Name == "" {
			rel, _ := filepath.Rel(root, d)
			pkg.Name = filepath.ToSlash(rel)
		}
		rel, _ := filepath.Rel(filepath.Dir(root), d)
		found = append(found, installed{rel: filepath.ToSlash(rel), pkg: pkg})
	}
	return found, errs
}

// matching picks the records an installed copy describes. Records pinned to
// the installed version win; otherwise only records whose version is a range
// or otherwise not concrete take the installed metadata, so a nested copy at
// another exact version is left alone.
func matching(pkgs []model.PackageRecord, idxs []int, installedVersion string) []int {
	if installedVersion == "" {
		return idxs
	}
	var exact, loose []int
	for _, i := range idxs {
		v := pkgs[i].Version
		switch {
		case v == installedVersion:
			exact = append(exact, i)
		case !concrete(v):
			loose = append(loose, i)
		}
	}
	if len(exact) > 0 {
		return exact
	}
	return loose
}

func concrete(v string) bool {
	_, err := semver.StrictNewVersion(v)
	return err == nil
}

func apply(rec *model.PackageRecord, inst installed) bool {
	changed := false
	lic := inst.pkg.DeclaredLicense()
	if (rec.DeclaredLicense == "" || rec.NormalizedLicense == model.NoAssertion) && !lic.IsZero() {
		rec.DeclaredLicense = lic.String()
		rec.NormalizedLicense = lic.Collapse()
		changed = true
	}
	if rec.Description == "" && inst.pkg.Description != "" {
		rec.Description = inst.pkg.Description
		changed = true
	}
	if rec.RepositoryURL == "" && inst.pkg.Repository.URL != "" {
		rec.RepositoryURL = inst.pkg.Repository.URL
		changed = true
	}
	if inst.pkg.Version != "" && rec.InstalledVersion != inst.pkg.Version {
		rec.InstalledVersion = inst.pkg.Version
		changed = true
	}
	if inst.pkg.Deprecated.Deprecated && !rec.Deprecated {
		rec.Deprecated = true
		changed = true
	}
	if n := len(inst.pkg.Maintainers); n > 0 && rec.Maintainers == 0 {
		rec.Maintainers = n
		changed = true
	}
	return changed
}

func fromInstalled(inst installed) model.PackageRecord {
	version := inst.pkg.Version
	if version == "" {
		version = "unknown"
	}
	lic := inst.pkg.DeclaredLicense()
	return model.PackageRecord{
		ID:                 model.PackageID(inst.pkg.Name, version),
		Name:               inst.pkg.Name,
		Version:            version,
		Ecosystem:          model.EcosystemNPM,
		DeclaredLicense:    lic.String(),
		NormalizedLicense:  lic.Collapse(),
		RiskBucket:         model.BucketUnknown,
		RepositoryURL:      inst.pkg.Repository.URL,
		Description:        inst.pkg.Description,
		ResolutionStrategy: StrategyInstalled,
		PURL:               resolve.PackageURL(model.EcosystemNPM, inst.pkg.Name, version),
		InstalledVersion:   inst.pkg.Version,
		Deprecated:         inst.pkg.Deprecated.Deprecated,
		Maintainers:        len(inst.pkg.Maintainers),
		Manifest:           inst.rel + "/package.json",
	}
}
