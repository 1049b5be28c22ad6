package resolve

import (
	"context"
	"path/filepath"
	"sort"

	"depcompliance/internal/detect"
	"depcompliance/internal/model"
)

// ResolveManifest reads the top-level package.json. Versions are the
// declared ranges, kept verbatim.
func ResolveManifest(_ context.Context, dir string) ([]model.PackageRecord, error) {
	return ParseManifest(filepath.Join(dir, detect.PackageJSON))
}

// ParseManifest lists runtime, dev, optional and peer dependencies of a
// package.json. A name declared in several sections is emitted once, from
// the first section that lists it.
func ParseManifest(path string) ([]model.PackageRecord, error) {
	pkg, err := ReadPackageJSON(path)
	if err != nil {
		return nil, err
	}

	manifest := filepath.Base(path)
	seen := make(map[string]struct{})
	var pkgs []model.PackageRecord
	for _, section := range []map[string]string{
		pkg.Dependencies,
		pkg.DevDependencies,
		pkg.OptionalDependencies,
		pkg.PeerDependencies,
	} {
		names := make([]string, 0, len(section))
		for name := range section {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			pkgs = append(pkgs, newRecord(model.EcosystemNPM, name, section[name], StrategyManifest, manifest, model.RawLicense{}))
		}
	}
	return pkgs, nil
}
