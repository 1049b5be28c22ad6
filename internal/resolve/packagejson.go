package resolve

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"depcompliance/internal/model"
)

// PackageJSON is the subset of an npm package manifest the pipeline reads,
// both for the project itself and for installed packages.
type PackageJSON struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Description          string            `json:"description"`
	License              model.RawLicense  `json:"license"`
	Licenses             model.RawLicense  `json:"licenses"`
	Repository           Repository        `json:"repository"`
	Homepage             string            `json:"homepage"`
	Deprecated           Deprecation       `json:"deprecated"`
	Maintainers          []json.RawMessage `json:"maintainers"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
}

// DeclaredLicense prefers the modern license field over the legacy list.
func (p PackageJSON) DeclaredLicense() model.RawLicense {
	if !p.License.IsZero() {
		return p.License
	}
	return p.Licenses
}

// ReadPackageJSON decodes a package.json file.
func ReadPackageJSON(path string) (PackageJSON, error) {
	var pkg PackageJSON
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return pkg, fmt.Errorf("%s: %w", path, model.ErrManifestNotFound)
		}
		return pkg, err
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return pkg, fmt.Errorf("%s: %w: %v", path, model.ErrManifestParse, err)
	}
	return pkg, nil
}

// Repository accepts both the string and the {type, url} forms.
type Repository struct {
	URL string
}

func (r *Repository) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	r.URL = ""
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		r.URL = NormalizeRepositoryURL(s)
	case data[0] == '{':
		var obj struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		r.URL = NormalizeRepositoryURL(obj.URL)
	}
	return nil
}

// NormalizeRepositoryURL turns npm repository shorthands and git transport
// URLs into browsable https URLs.
func NormalizeRepositoryURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	u = strings.TrimPrefix(u, "git+")

	for prefix, host := range map[string]string{
		"github:":    "https://github.com/",
		"gitlab:":    "https://gitlab.com/",
		"bitbucket:": "https://bitbucket.org/",
	} {
		if strings.HasPrefix(u, prefix) {
			u = host + strings.TrimPrefix(u, prefix)
		}
	}

	switch {
	case strings.HasPrefix(u, "git://"):
		u = "https://" + strings.TrimPrefix(u, "git://")
	case strings.HasPrefix(u, "ssh://git@"):
		u = "https://" + strings.TrimPrefix(u, "ssh://git@")
	case strings.HasPrefix(u, "git@"):
		u = "https://" + strings.Replace(strings.TrimPrefix(u, "git@"), ":", "/", 1)
	case !strings.Contains(u, "://") && strings.Count(u, "/") == 1 && !strings.HasPrefix(u, "."):
		u = "https://github.com/" + u
	}
	return strings.TrimSuffix(u, ".git")
}

// Deprecation accepts the string message or a boolean flag.
type Deprecation struct {
	Deprecated bool
	Message    string
}

func (d *Deprecation) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*d = Deprecation{}
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return nil
	case data[0] == '"':
		if err := json.Unmarshal(data, &d.Message); err != nil {
			return err
		}
		d.Deprecated = strings.TrimSpace(d.Message) != ""
	case bytes.Equal(data, []byte("true")):
		d.Deprecated = true
	}
	return nil
}
