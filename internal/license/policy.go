package license

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"depcompliance/internal/model"
)

// PolicyVersion identifies the built-in tables. Bump it whenever the default
// risk table, aliases or lists change.
const PolicyVersion = "2026.10"

// Policy is the single authoritative license configuration. It is built once
// and consumed by reference; nothing in the pipeline mutates it.
type Policy struct {
	Version            string                      `yaml:"version" json:"version"`
	BlockedLicenses    []string                    `yaml:"blocked_licenses" json:"blockedLicenses"`
	WarningLicenses    []string                    `yaml:"warning_licenses" json:"warningLicenses"`
	BlockedRiskBuckets []model.RiskBucket          `yaml:"blocked_risk_buckets" json:"blockedRiskBuckets"`
	RiskTable          map[string]model.RiskBucket `yaml:"risk_table" json:"riskTable"`
	Aliases            map[string]string           `yaml:"aliases" json:"aliases"`

	once    sync.Once
	table   map[string]tableEntry
	alias   map[string]string
	blocked map[string]struct{}
	warn    map[string]struct{}
	buckets map[model.RiskBucket]struct{}
}

type tableEntry struct {
	id     string
	bucket model.RiskBucket
}

var defaultRiskTable = map[model.RiskBucket][]string{
	model.BucketPermissive: {
		"MIT", "MIT-0", "Apache-2.0", "Apache-1.1", "BSD-2-Clause", "BSD-3-Clause",
		"BSD-3-Clause-Clear", "0BSD", "ISC", "Unlicense", "CC0-1.0", "Zlib", "WTFPL",
		"Python-2.0", "PSF-2.0", "BlueOak-1.0.0", "CC-BY-3.0", "CC-BY-4.0", "BSL-1.0",
		"X11", "PostgreSQL", "Public Domain",
	},
	model.BucketWeakCopyleft: {
		"LGPL-2.0", "LGPL-2.1", "LGPL-3.0", "MPL-1.1", "MPL-2.0", "EPL-1.0", "EPL-2.0",
		"CDDL-1.0", "CDDL-1.1", "CPL-1.0", "MS-RL",
	},
	model.BucketStrongCopyleft: {
		"GPL-2.0", "GPL-3.0", "AGPL-1.0", "AGPL-3.0", "OSL-3.0", "SSPL-1.0",
		"EUPL-1.1", "EUPL-1.2", "CC-BY-SA-4.0",
	},
	model.BucketProprietary: {
		"Proprietary", "Commercial", "UNLICENSED",
	},
}

var defaultAliases = map[string]string{
	"mit license":                 "MIT",
	"the mit license":             "MIT",
	"expat":                       "MIT",
	"apache 2.0":                  "Apache-2.0",
	"apache 2":                    "Apache-2.0",
	"apache2":                     "Apache-2.0",
	"apache-2":                    "Apache-2.0",
	"apache license 2.0":          "Apache-2.0",
	"apache license, version 2.0": "Apache-2.0",
	"apache software license":     "Apache-2.0",
	"bsd":                         "BSD-3-Clause",
	"new bsd":                     "BSD-3-Clause",
	"bsd-3":                       "BSD-3-Clause",
	"bsd license":                 "BSD-3-Clause",
	"simplified bsd":              "BSD-2-Clause",
	"bsd-2":                       "BSD-2-Clause",
	"isc license":                 "ISC",
	"cc0":                         "CC0-1.0",
	"public-domain":               "Public Domain",
	"gplv2":                       "GPL-2.0",
	"gpl-2":                       "GPL-2.0",
	"gpl 2":                       "GPL-2.0",
	"gpl-2.0-only":                "GPL-2.0",
	"gpl-2.0-or-later":            "GPL-2.0",
	"gpl-2.0+":                    "GPL-2.0",
	"gplv3":                       "GPL-3.0",
	"gpl-3":                       "GPL-3.0",
	"gpl 3":                       "GPL-3.0",
	"gpl-3.0-only":                "GPL-3.0",
	"gpl-3.0-or-later":            "GPL-3.0",
	"gpl-3.0+":                    "GPL-3.0",
	"lgpl-2.1-only":               "LGPL-2.1",
	"lgpl-2.1-or-later":           "LGPL-2.1",
	"lgpl-2.1+":                   "LGPL-2.1",
	"lgplv3":                      "LGPL-3.0",
	"lgpl-3.0-only":               "LGPL-3.0",
	"lgpl-3.0-or-later":           "LGPL-3.0",
	"lgpl-3.0+":                   "LGPL-3.0",
	"agplv3":                      "AGPL-3.0",
	"agpl-3.0-only":               "AGPL-3.0",
	"agpl-3.0-or-later":           "AGPL-3.0",
	"mpl 2.0":                     "MPL-2.0",
	"mozilla public license 2.0":  "MPL-2.0",
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() *Policy {
	p := &Policy{
		Version:         PolicyVersion,
		BlockedLicenses: []string{"AGPL-1.0", "AGPL-3.0", "SSPL-1.0"},
		WarningLicenses: []string{"LGPL-2.1", "LGPL-3.0", "MPL-2.0", "EPL-1.0", "EPL-2.0"},
		RiskTable:       make(map[string]model.RiskBucket),
		Aliases:         make(map[string]string, len(defaultAliases)),
	}
	for bucket, ids := range defaultRiskTable {
		for _, id := range ids {
			p.RiskTable[id] = bucket
		}
	}
	for k, v := range defaultAliases {
		p.Aliases[k] = v
	}
	return p
}

// LoadPolicy reads a YAML policy file on top of the defaults. Lists in the
// file replace the default lists; risk_table and aliases entries are merged.
func LoadPolicy(path string) (*Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var override Policy
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}

	for id, bucket := range override.RiskTable {
		if !bucket.Valid() {
			return nil, fmt.Errorf("policy %s: invalid risk bucket %q for %s", path, bucket, id)
		}
		p.RiskTable[id] = bucket
	}
	for k, v := range override.Aliases {
		p.Aliases[strings.ToLower(k)] = v
	}
	if override.BlockedLicenses != nil {
		p.BlockedLicenses = override.BlockedLicenses
	}
	if override.WarningLicenses != nil {
		p.WarningLicenses = override.WarningLicenses
	}
	if override.BlockedRiskBuckets != nil {
		for _, b := range override.BlockedRiskBuckets {
			if !b.Valid() {
				return nil, fmt.Errorf("policy %s: invalid blocked risk bucket %q", path, b)
			}
		}
		p.BlockedRiskBuckets = override.BlockedRiskBuckets
	}
	if override.Version != "" {
		p.Version = override.Version
	}
	return p, nil
}

func (p *Policy) index() {
	p.once.Do(func() {
		p.table = make(map[string]tableEntry, len(p.RiskTable))
		for id, bucket := range p.RiskTable {
			p.table[strings.ToLower(id)] = tableEntry{id: id, bucket: bucket}
		}
		p.alias = make(map[string]string, len(p.Aliases))
		for k, v := range p.Aliases {
			p.alias[strings.ToLower(k)] = v
		}
		p.blocked = toSet(p.BlockedLicenses)
		p.warn = toSet(p.WarningLicenses)
		p.buckets = make(map[model.RiskBucket]struct{}, len(p.BlockedRiskBuckets))
		for _, b := range p.BlockedRiskBuckets {
			p.buckets[b] = struct{}{}
		}
	})
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[strings.ToLower(strings.TrimSpace(id))] = struct{}{}
	}
	return set
}

// IsBlocked reports whether a canonical license id is on the blocked list.
func (p *Policy) IsBlocked(id string) bool {
	p.index()
	_, ok := p.blocked[strings.ToLower(id)]
	return ok
}

// IsWarning reports whether a canonical license id is on the warning list.
func (p *Policy) IsWarning(id string) bool {
	p.index()
	_, ok := p.warn[strings.ToLower(id)]
	return ok
}

// IsBlockedBucket reports whether every license of the bucket is rejected.
func (p *Policy) IsBlockedBucket(b model.RiskBucket) bool {
	p.index()
	_, ok := p.buckets[b]
	return ok
}

// YAML renders the effective policy.
func (p *Policy) YAML() ([]byte, error) {
	return yaml.Marshal(p)
}
