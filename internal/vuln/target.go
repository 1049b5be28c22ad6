package vuln

import (
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/package-url/packageurl-go"

	"depcompliance/internal/model"
)

// target is one query: the database coordinates plus the BOM identity the
// findings are attributed to.
type target struct {
	ecosystem     string
	name          string
	version       string
	record        string
	recordVersion string
}

var pep440 = regexp.MustCompile(`^\d+(\.\d+)*((a|b|rc|\.post|\.dev)\d+)*(\+[A-Za-z0-9.]+)?$`)

func targetFor(p model.PackageRecord) (target, bool) {
	ecosystem, name := coordinates(p)
	version := CleanVersion(ecosystem, p.Version)
	if version == "" && p.InstalledVersion != "" {
		version = CleanVersion(ecosystem, p.InstalledVersion)
	}
	if name == "" || version == "" {
		return target{}, false
	}
	return target{
		ecosystem:     ecosystem,
		name:          name,
		version:       version,
		record:        p.Name,
		recordVersion: p.Version,
	}, true
}

// coordinates derives the database ecosystem and package name from the purl,
// falling back to the record fields with npm as the default ecosystem.
func coordinates(p model.PackageRecord) (string, string) {
	if p.PURL != "" {
		if u, err := packageurl.FromString(p.PURL); err == nil {
			switch u.Type {
			case packageurl.TypeNPM:
				name := u.Name
				if u.Namespace != "" {
					name = u.Namespace + "/" + u.Name
				}
				return model.EcosystemNPM, name
			case packageurl.TypePyPi:
				return model.EcosystemPyPI, u.Name
			}
		}
	}
	ecosystem := p.Ecosystem
	if ecosystem == "" {
		ecosystem = model.EcosystemNPM
	}
	return ecosystem, p.Name
}

// CleanVersion reduces a declared version or range to one concrete version
// the database can match. It returns "" when nothing usable remains.
func CleanVersion(ecosystem, v string) string {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "", "*", "x", "latest", "unknown", "next":
		return ""
	}
	if strings.Contains(v, "||") || strings.Contains(v, " - ") || strings.Contains(v, ":") {
		return ""
	}
	v = strings.TrimLeft(v, "=^~<>!v ")
	if i := strings.IndexAny(v, ", "); i >= 0 {
		v = v[:i]
	}

	if ecosystem == model.EcosystemPyPI {
		if pep440.MatchString(v) {
			return v
		}
		return ""
	}
	if _, err := semver.StrictNewVersion(v); err != nil {
		return ""
	}
	return v
}
