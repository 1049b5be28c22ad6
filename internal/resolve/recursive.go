package resolve

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"depcompliance/internal/detect"
	"depcompliance/internal/model"
)

// ResolveRecursive walks the tree for nested manifests and concatenates what
// they declare. In a directory holding both a lockfile and a package.json the
// lockfile wins. Unparsable files are skipped; the strategy only fails when
// every file it found failed.
func ResolveRecursive(ctx context.Context, dir string) ([]model.PackageRecord, error) {
	found, err := detect.FindManifests(dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", dir, model.ErrManifestNotFound, err)
	}
	if found.Empty() {
		return nil, fmt.Errorf("%s: %w", dir, model.ErrManifestNotFound)
	}

	locked := make(map[string]struct{})
	for _, p := range found.Lockfiles {
		locked[filepath.Dir(p)] = struct{}{}
	}

	type job struct {
		path  string
		parse func(string) ([]model.PackageRecord, error)
	}
	var jobs []job
	for _, p := range found.Lockfiles {
		jobs = append(jobs, job{p, ParseLockfile})
	}
	for _, p := range found.Manifests {
		if _, ok := locked[filepath.Dir(p)]; ok {
			continue
		}
		jobs = append(jobs, job{p, ParseManifest})
	}
	for _, p := range found.Requirements {
		jobs = append(jobs, job{p, ParseRequirements})
	}

	var pkgs []model.PackageRecord
	var errs []error
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return pkgs, err
		}
		got, err := j.parse(j.path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rel, relErr := filepath.Rel(dir, j.path)
		if relErr != nil {
			rel = j.path
		}
		for i := range got {
			got[i].ResolutionStrategy = StrategyRecursive
			got[i].Manifest = filepath.ToSlash(rel)
		}
		pkgs = append(pkgs, got...)
	}

	if len(pkgs) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return pkgs, nil
}
