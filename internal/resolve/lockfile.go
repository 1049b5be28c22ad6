package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"depcompliance/internal/detect"
	"depcompliance/internal/model"
)

// resolvedVersion extracts "<semver>" from a trailing "-<semver>.<ext>"
// in a download location such as .../lodash-4.17.21.tgz.
var resolvedVersion = regexp.MustCompile(`-(\d+\.\d+\.\d+(?:[-+][0-9A-Za-z.+-]*)?)\.(?:tgz|tar\.gz|zip|whl|gem|jar)$`)

type lockEntry struct {
	Name     string           `json:"name"`
	Version  string           `json:"version"`
	Resolved string           `json:"resolved"`
	License  model.RawLicense `json:"license"`
	Link     bool             `json:"link"`
}

// ResolveLockfile reads package-lock.json, or npm-shrinkwrap.json when no
// lockfile exists, from dir.
func ResolveLockfile(_ context.Context, dir string) ([]model.PackageRecord, error) {
	for _, name := range []string{detect.PackageLock, detect.Shrinkwrap} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return ParseLockfile(path)
		}
	}
	return nil, fmt.Errorf("%s: %w", dir, model.ErrManifestNotFound)
}

// ParseLockfile parses a lockfile. Three layouts are accepted: the v2/v3
// "packages" map keyed by install path, the v1 "dependencies" map, and a
// bare top-level map of name to entry.
func ParseLockfile(path string) ([]model.PackageRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, model.ErrManifestParse, err)
	}

	manifest := filepath.Base(path)
	if raw, ok := doc["packages"]; ok && isObject(raw) {
		return parseEntries(raw, manifest, packageNameFromPath)
	}
	if raw, ok := doc["dependencies"]; ok && isObject(raw) {
		return parseEntries(raw, manifest, nil)
	}
	return parseEntries(data, manifest, nil)
}

// parseEntries decodes a name → entry map. Keys are visited in sorted
// order so the output never depends on map iteration. nameOf maps a key to
// a package name; an empty result skips the entry.
func parseEntries(raw json.RawMessage, manifest string, nameOf func(key string, e lockEntry) string) ([]model.PackageRecord, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", manifest, model.ErrManifestParse, err)
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pkgs []model.PackageRecord
	for _, key := range keys {
		value := entries[key]
		if !isObject(value) {
			continue
		}
		var e lockEntry
		if err := json.Unmarshal(value, &e); err != nil {
			return nil, fmt.Errorf("%s: entry %q: %w: %v", manifest, key, model.ErrManifestParse, err)
		}
		if e.Link {
			continue
		}

		name := key
		if nameOf != nil {
			name = nameOf(key, e)
		}
		if name == "" {
			continue
		}

		version := e.Version
		if version == "" {
			version = VersionFromResolved(e.Resolved)
		}

		rec := newRecord(model.EcosystemNPM, name, version, StrategyLockfile, manifest, e.License)
		rec.DownloadLocation = e.Resolved
		pkgs = append(pkgs, rec)
	}
	return pkgs, nil
}

// packageNameFromPath maps "node_modules/a/node_modules/@s/b" to "@s/b".
// The root entry ("") and workspace folders without a name are skipped.
func packageNameFromPath(key string, e lockEntry) string {
	const marker = "node_modules/"
	if i := strings.LastIndex(key, marker); i >= 0 {
		return key[i+len(marker):]
	}
	if key == "" {
		return ""
	}
	return e.Name
}

// VersionFromResolved extracts a version from a download URL, or "".
func VersionFromResolved(resolved string) string {
	resolved = strings.SplitN(resolved, "#", 2)[0]
	resolved = strings.SplitN(resolved, "?", 2)[0]
	m := resolvedVersion.FindStringSubmatch(resolved)
	if m == nil {
		return ""
	}
	return m[1]
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
