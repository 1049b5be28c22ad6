// Package aggregate merges vulnerability findings into a stable, de-duplicated list.
package aggregate

import (
	"fmt"
	"sort"

	"depcompliance/internal/model"
)

// Findings deduplicates and sorts vulnerability findings: severity descending,
// then package, version and identifier ascending. When the same advisory shows
// up twice the copy with the higher severity is kept and aliases are merged.
func Findings(findings []model.VulnerabilityFinding) []model.VulnerabilityFinding {
	unique := make(map[string]model.VulnerabilityFinding, len(findings))

	for _, f := range findings {
		key := dedupeKey(f)
		prev, exists := unique[key]
		if !exists {
			unique[key] = f
			continue
		}
		if f.Severity.Rank() > prev.Severity.Rank() {
			f.Aliases = mergeAliases(f.Aliases, prev.Aliases)
			unique[key] = f
			continue
		}
		prev.Aliases = mergeAliases(prev.Aliases, f.Aliases)
		unique[key] = prev
	}

	result := make([]model.VulnerabilityFinding, 0, len(unique))
	for _, f := range unique {
		result = append(result, f)
	}

	sort.Slice(result, func(i, j int) bool {
		fi, fj := result[i], result[j]

		// Severity DESC
		ri, rj := fi.Severity.Rank(), fj.Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		if fi.Ecosystem != fj.Ecosystem {
			return fi.Ecosystem < fj.Ecosystem
		}
		if fi.Package != fj.Package {
			return fi.Package < fj.Package
		}
		if fi.Version != fj.Version {
			return fi.Version < fj.Version
		}
		return fi.Identifier < fj.Identifier
	})

	return result
}

// Breakdown counts findings per severity. Severities with no findings are absent.
func Breakdown(findings []model.VulnerabilityFinding) map[model.Severity]int {
	out := make(map[model.Severity]int)
	for _, f := range findings {
		out[f.Severity]++
	}
	return out
}

// VulnerablePackages returns the sorted distinct name@version ids with findings.
func VulnerablePackages(findings []model.VulnerabilityFinding) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, f := range findings {
		id := model.PackageID(f.Package, f.Version)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func dedupeKey(f model.VulnerabilityFinding) string {
	// source|ecosystem|package|version|id
	return fmt.Sprintf("%s|%s|%s|%s|%s", f.Source, f.Ecosystem, f.Package, f.Version, f.Identifier)
}

func mergeAliases(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
