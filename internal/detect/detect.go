package detect

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Manifest file names recognized by the resolver.
const (
	PackageLock    = "package-lock.json"
	Shrinkwrap     = "npm-shrinkwrap.json"
	PackageJSON    = "package.json"
	RequirementsTx = "requirements.txt"
)

type DetectionResult struct {
	Lockfiles    []string `json:"lockfiles"`
	Manifests    []string `json:"manifests"`
	Requirements []string `json:"requirements"`
}

// Empty reports whether nothing was found.
func (r DetectionResult) Empty() bool {
	return len(r.Lockfiles) == 0 && len(r.Manifests) == 0 && len(r.Requirements) == 0
}

// Ignored directories (exact match on folder name). Installed or vendored
// dependency trees are never descended into.
var ignoredDirs = map[string]struct{}{
	".git":             {},
	"node_modules":     {},
	"vendor":           {},
	"bower_components": {},
	"bin":              {},
	"obj":              {},
	".venv":            {},
	"venv":             {},
	"__pycache__":      {},
	"site-packages":    {},
	"dist":             {},
	"build":            {},
}

// FindManifests walks root for dependency manifests.
// It skips ignored directories and returns sorted absolute paths.
func FindManifests(root string) (DetectionResult, error) {
	var res DetectionResult
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return res, err
	}

	err = filepath.Walk(absRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, the walk goes on.
			if info != nil && info.IsDir() && path != absRoot {
				return filepath.SkipDir
			}
			if path == absRoot {
				return err
			}
			return nil
		}

		if info.IsDir() {
			if _, ok := ignoredDirs[info.Name()]; ok && path != absRoot {
				return filepath.SkipDir
			}
			return nil
		}

		filename := strings.ToLower(info.Name())
		switch filename {
		case PackageLock, Shrinkwrap:
			res.Lockfiles = append(res.Lockfiles, path)
		case PackageJSON:
			res.Manifests = append(res.Manifests, path)
		case RequirementsTx:
			res.Requirements = append(res.Requirements, path)
		}
		return nil
	})

	if err != nil {
		return res, err
	}

	// Ensure deterministic order
	sort.Strings(res.Lockfiles)
	sort.Strings(res.Manifests)
	sort.Strings(res.Requirements)

	return res, nil
}
