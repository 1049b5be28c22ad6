package resolve

import (
	"strings"

	"github.com/package-url/packageurl-go"

	"depcompliance/internal/model"
)

// PackageURL builds the purl of a package. npm scopes become the namespace;
// PyPI names are lower-cased with underscores folded to dashes.
func PackageURL(ecosystem, name, version string) string {
	var purlType, namespace string
	switch ecosystem {
	case model.EcosystemPyPI:
		purlType = packageurl.TypePyPi
		name = strings.ReplaceAll(strings.ToLower(name), "_", "-")
	default:
		purlType = packageurl.TypeNPM
		if strings.HasPrefix(name, "@") {
			if i := strings.Index(name, "/"); i > 0 {
				namespace, name = name[:i], name[i+1:]
			}
		}
	}
	if version == "*" || version == "unknown" {
		version = ""
	}
	return packageurl.NewPackageURL(purlType, namespace, name, version, nil, "").ToString()
}

func newRecord(ecosystem, name, version, strategy, manifest string, lic model.RawLicense) model.PackageRecord {
	if version == "" {
		version = "unknown"
	}
	return model.PackageRecord{
		ID:                 model.PackageID(name, version),
		Name:               name,
		Version:            version,
		Ecosystem:          ecosystem,
		DeclaredLicense:    lic.String(),
		NormalizedLicense:  lic.Collapse(),
		RiskBucket:         model.BucketUnknown,
		ResolutionStrategy: strategy,
		PURL:               PackageURL(ecosystem, name, version),
		Manifest:           manifest,
	}
}
