package resolve

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"depcompliance/internal/detect"
	"depcompliance/internal/model"
)

// requirementLine matches "name[extras] <spec>" where spec starts with one
// of the PEP 440 comparison operators.
var requirementLine = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)\s*(\[[^\]]*\])?\s*((?:===|==|>=|<=|~=|!=|>|<).*)?$`)

// ResolveRequirements reads requirements.txt from dir.
func ResolveRequirements(_ context.Context, dir string) ([]model.PackageRecord, error) {
	return ParseRequirements(filepath.Join(dir, detect.RequirementsTx))
}

// ParseRequirements parses a line-oriented Python requirements file.
// "name==1.2" pins 1.2; any other operator keeps the specifier verbatim
// (">=1.2,<2"); a bare name becomes "*". Options, URLs, comments and
// environment markers are ignored.
func ParseRequirements(path string) ([]model.PackageRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, model.ErrManifestNotFound)
		}
		return nil, err
	}
	defer f.Close()

	manifest := filepath.Base(path)
	seen := make(map[string]struct{})
	var pkgs []model.PackageRecord

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		if i := strings.Index(line, ";"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "-") || strings.Contains(line, "://") {
			continue
		}

		m := requirementLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := m[1]
		version := requirementVersion(m[3])

		key := strings.ToLower(name) + "@" + version
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		pkgs = append(pkgs, newRecord(model.EcosystemPyPI, name, version, StrategyRequirements, manifest, model.RawLicense{}))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, model.ErrManifestParse, err)
	}
	return pkgs, nil
}

func requirementVersion(spec string) string {
	spec = strings.Join(strings.Fields(spec), "")
	if spec == "" {
		return "*"
	}
	if strings.HasPrefix(spec, "==") && !strings.HasPrefix(spec, "===") && !strings.Contains(spec, ",") {
		return strings.TrimPrefix(spec, "==")
	}
	return spec
}
