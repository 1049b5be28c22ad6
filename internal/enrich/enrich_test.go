package enrich

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depcompliance/internal/model"
)

func install(t *testing.T, dir, rel, manifest string) {
	t.Helper()
	path := filepath.Join(dir, InstallDir, rel, "package.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0644))
}

func TestEnrich_FillsAndAdds(t *testing.T) {
	dir := t.TempDir()
	install(t, dir, "lodash", `{
  "name": "lodash", "version": "4.17.21", "license": "MIT",
  "description": "Lodash modular utilities.",
  "repository": {"type": "git", "url": "git+https://github.com/lodash/lodash.git"},
  "maintainers": [{"name": "jdalton"}]
}`)
	install(t, dir, "@types/node", `{"name": "@types/node", "version": "20.11.5", "license": "MIT", "repository": "https://github.com/DefinitelyTyped/DefinitelyTyped"}`)
	install(t, dir, "request", `{"name": "request", "version": "2.88.2", "licenses": [{"type": "Apache-2.0"}], "deprecated": "request has been deprecated"}`)
	install(t, dir, "broken", `{not json`)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, InstallDir, ".bin"), 0755))

	pkgs := []model.PackageRecord{
		{ID: "lodash@^4.17.0", Name: "lodash", Version: "^4.17.0", Ecosystem: model.EcosystemNPM, NormalizedLicense: model.NoAssertion},
		{ID: "request@2.88.2", Name: "request", Version: "2.88.2", Ecosystem: model.EcosystemNPM, DeclaredLicense: "Apache-2.0", NormalizedLicense: "Apache-2.0"},
	}

	stats := New(nil).Enrich(dir, &pkgs)

	assert.True(t, stats.Available)
	assert.Equal(t, 3, stats.Scanned)
	assert.Equal(t, 2, stats.Enriched)
	assert.Equal(t, 1, stats.Added)
	assert.Len(t, stats.Errors, 1)

	require.Len(t, pkgs, 3)

	lodash := pkgs[0]
	assert.Equal(t, "^4.17.0", lodash.Version, "resolved version must not change")
	assert.Equal(t, "4.17.21", lodash.InstalledVersion)
	assert.Equal(t, "MIT", lodash.NormalizedLicense)
	assert.Equal(t, "https://github.com/lodash/lodash", lodash.RepositoryURL)
	assert.Equal(t, "Lodash modular utilities.", lodash.Description)
	assert.Equal(t, 1, lodash.Maintainers)

	request := pkgs[1]
	assert.Equal(t, "Apache-2.0", request.NormalizedLicense)
	assert.True(t, request.Deprecated)

	added := pkgs[2]
	assert.Equal(t, "@types/node@20.11.5", added.ID)
	assert.Equal(t, StrategyInstalled, added.ResolutionStrategy)
	assert.Equal(t, "MIT", added.NormalizedLicense)
	assert.Equal(t, "node_modules/@types/node/package.json", added.Manifest)
}

func TestEnrich_NestedCopyKeepsItsOwnMetadata(t *testing.T) {
	dir := t.TempDir()
	install(t, dir, "b", `{"name": "b", "version": "1.0.0", "license": "MIT", "description": "top-level b"}`)

	pkgs := []model.PackageRecord{
		{ID: "b@1.0.0", Name: "b", Version: "1.0.0", Ecosystem: model.EcosystemNPM},
		{ID: "b@2.0.0", Name: "b", Version: "2.0.0", Ecosystem: model.EcosystemNPM},
	}

	stats := New(nil).Enrich(dir, &pkgs)

	assert.Equal(t, 1, stats.Enriched)
	assert.Zero(t, stats.Added)
	assert.Equal(t, "1.0.0", pkgs[0].InstalledVersion)
	assert.Equal(t, "top-level b", pkgs[0].Description)

	assert.Empty(t, pkgs[1].InstalledVersion)
	assert.Empty(t, pkgs[1].Description)
	assert.Empty(t, pkgs[1].DeclaredLicense)
}

func TestEnrich_RangeVersionTakesInstalledCopy(t *testing.T) {
	dir := t.TempDir()
	install(t, dir, "b", `{"name": "b", "version": "1.4.0", "license": "MIT"}`)

	pkgs := []model.PackageRecord{
		{ID: "b@^1.0.0", Name: "b", Version: "^1.0.0", Ecosystem: model.EcosystemNPM},
		{ID: "b@2.0.0", Name: "b", Version: "2.0.0", Ecosystem: model.EcosystemNPM},
	}

	New(nil).Enrich(dir, &pkgs)

	assert.Equal(t, "1.4.0", pkgs[0].InstalledVersion)
	assert.Equal(t, "MIT", pkgs[0].NormalizedLicense)
	assert.Empty(t, pkgs[1].InstalledVersion)
}

func TestEnrich_NoCache(t *testing.T) {
	pkgs := []model.PackageRecord{{ID: "a@1.0.0", Name: "a", Version: "1.0.0", Ecosystem: model.EcosystemNPM}}

	stats := New(nil).Enrich(t.TempDir(), &pkgs)

	assert.False(t, stats.Available)
	assert.Zero(t, stats.Scanned)
	assert.Len(t, pkgs, 1)
	assert.Empty(t, pkgs[0].InstalledVersion)
}

func TestEnrich_IgnoresOtherEcosystems(t *testing.T) {
	dir := t.TempDir()
	install(t, dir, "six", `{"name": "six", "version": "9.9.9", "license": "MIT"}`)

	pkgs := []model.PackageRecord{{ID: "six@1.16.0", Name: "six", Version: "1.16.0", Ecosystem: model.EcosystemPyPI}}

	stats := New(nil).Enrich(dir, &pkgs)

	assert.Equal(t, 1, stats.Added)
	assert.Empty(t, pkgs[0].InstalledVersion)
	assert.Equal(t, model.EcosystemNPM, pkgs[1].Ecosystem)
}
