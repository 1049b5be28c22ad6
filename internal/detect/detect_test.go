package detect

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFindManifests(t *testing.T) {
	tmpDir := t.TempDir()

	files := []string{
		"package.json",
		"frontend/package-lock.json",
		"frontend/package.json",
		"services/api/requirements.txt",
		"tools/npm-shrinkwrap.json",
		"node_modules/ignored-package/package.json",   // Should be ignored
		".git/config",                                 // Should be ignored
		"vendor/lib/requirements.txt",                 // Should be ignored
		"nested/node_modules/stuff/package-lock.json", // Should be ignored
		".venv/lib/site/requirements.txt",             // Should be ignored
	}

	for _, f := range files {
		path := filepath.Join(tmpDir, f)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(""), 0644); err != nil {
			t.Fatal(err)
		}
	}

	res, err := FindManifests(tmpDir)
	if err != nil {
		t.Fatalf("FindManifests failed: %v", err)
	}

	if len(res.Lockfiles) != 2 {
		t.Errorf("expected 2 lockfiles, got %d: %v", len(res.Lockfiles), res.Lockfiles)
	}
	if len(res.Manifests) != 2 {
		t.Errorf("expected 2 manifests, got %d: %v", len(res.Manifests), res.Manifests)
	}
	if len(res.Requirements) != 1 {
		t.Errorf("expected 1 requirements file, got %d", len(res.Requirements))
	}

	for _, path := range append(append(res.Lockfiles, res.Manifests...), res.Requirements...) {
		if strings.Contains(path, "node_modules") || strings.Contains(path, "vendor") || strings.Contains(path, ".venv") {
			t.Errorf("found file in ignored directory: %s", path)
		}
	}
}

func TestFindManifests_Empty(t *testing.T) {
	res, err := FindManifests(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Empty() {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestFindManifests_MissingRoot(t *testing.T) {
	if _, err := FindManifests(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Error("expected error for missing root")
	}
}
