// Package sbom assembles the bill of materials for one analysis and renders
// it as an SPDX 2.3 JSON document.
package sbom

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"depcompliance/internal/license"
	"depcompliance/internal/model"
)

const (
	SPDXVersion   = "SPDX-2.3"
	DataLicense   = "CC0-1.0"
	DocumentID    = "SPDXRef-DOCUMENT"
	NamespaceBase = "https://spdx.org/spdxdocs/"
)

var unsafeID = regexp.MustCompile(`[^A-Za-z0-9.-]+`)

// Input is everything the builder needs from the earlier stages.
type Input struct {
	ProjectName    string
	ProjectLicense model.RawLicense
	Strategy       string
	Chain          []model.StrategyAttempt
	Packages       []model.PackageRecord
	Enrichment     model.EnrichmentStats
	Started        time.Time
}

// Builder turns resolved packages into a BillOfMaterials.
type Builder struct {
	policy      *license.Policy
	toolVersion string
	now         func() time.Time
	newID       func() string
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithNamespaceID overrides the random document namespace suffix.
func WithNamespaceID(f func() string) Option {
	return func(b *Builder) { b.newID = f }
}

func New(policy *license.Policy, toolVersion string, opts ...Option) *Builder {
	if policy == nil {
		policy = license.DefaultPolicy()
	}
	b := &Builder{
		policy:      policy,
		toolVersion: toolVersion,
		now:         time.Now,
		newID:       func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Build de-duplicates packages by id and classifies every license. The first
// record seen for an id fixes its identity and position; later duplicates
// overwrite metadata with whatever non-empty values they carry.
func (b *Builder) Build(in Input) model.BillOfMaterials {
	now := b.now().UTC()
	started := in.Started
	if started.IsZero() {
		started = now
	}

	project := in.ProjectName
	if project == "" {
		project = "project"
	}

	bom := model.BillOfMaterials{
		DocumentID:        DocumentID,
		DocumentNamespace: NamespaceBase + sanitize(project) + "-" + b.newID(),
		SPDXVersion:       SPDXVersion,
		DataLicense:       DataLicense,
		ProjectName:       project,
		ProjectLicense:    b.policy.Normalize(in.ProjectLicense),
		GeneratedAt:       now,
		CreationInfo: model.CreationInfo{
			Created:  now,
			Creators: []string{"Tool: depcompliance-" + b.toolVersion},
		},
		Strategy:        in.Strategy,
		StrategyChain:   in.Chain,
		EnrichmentStats: in.Enrichment,
		Packages:        []model.PackageRecord{},
	}
	if bom.StrategyChain == nil {
		bom.StrategyChain = []model.StrategyAttempt{}
	}

	index := make(map[string]int, len(in.Packages))
	for _, p := range in.Packages {
		if p.ID == "" {
			p.ID = model.PackageID(p.Name, p.Version)
		}
		if i, ok := index[p.ID]; ok {
			merge(&bom.Packages[i], p)
			continue
		}
		index[p.ID] = len(bom.Packages)
		bom.Packages = append(bom.Packages, p)
	}

	ids := make(map[string]struct{}, len(bom.Packages))
	for i := range bom.Packages {
		p := &bom.Packages[i]
		b.finish(p)
		if _, taken := ids[p.SPDXID]; taken {
			p.SPDXID += "-" + shortHash(p.ID)
		}
		ids[p.SPDXID] = struct{}{}
	}

	bom.TotalPackages = len(bom.Packages)
	bom.GenerationMillis = b.now().Sub(started).Milliseconds()
	return bom
}

func (b *Builder) finish(p *model.PackageRecord) {
	raw := p.NormalizedLicense
	if raw == "" || raw == model.NoAssertion {
		raw = p.DeclaredLicense
	}
	p.NormalizedLicense = b.policy.Canonical(raw)
	if p.DeclaredLicense == "" {
		p.DeclaredLicense = model.NoAssertion
	}
	p.RiskBucket = b.policy.Classify(p.NormalizedLicense)
	p.SPDXID = spdxID(p)
	if p.DownloadLocation == "" {
		p.DownloadLocation = model.NoAssertion
		if p.RepositoryURL != "" {
			p.DownloadLocation = p.RepositoryURL
		}
	}
}

func merge(dst *model.PackageRecord, src model.PackageRecord) {
	if src.DeclaredLicense != "" && src.DeclaredLicense != model.NoAssertion {
		dst.DeclaredLicense = src.DeclaredLicense
	}
	if src.NormalizedLicense != "" && src.NormalizedLicense != model.NoAssertion {
		dst.NormalizedLicense = src.NormalizedLicense
	}
	if src.RepositoryURL != "" {
		dst.RepositoryURL = src.RepositoryURL
	}
	if src.Description != "" {
		dst.Description = src.Description
	}
	if src.InstalledVersion != "" {
		dst.InstalledVersion = src.InstalledVersion
	}
	if src.DownloadLocation != "" {
		dst.DownloadLocation = src.DownloadLocation
	}
	if src.Maintainers > 0 {
		dst.Maintainers = src.Maintainers
	}
	dst.Deprecated = dst.Deprecated || src.Deprecated
}

// spdxID derives the package identifier from name and version. When
// sanitizing drops or folds characters the id gets a hash of the package id
// appended, so "@foo/bar" and "foo-bar" never share one.
func spdxID(p *model.PackageRecord) string {
	name, version := sanitize(p.Name), sanitize(p.Version)
	id := "SPDXRef-Package-" + name + "-" + version
	if name != p.Name || version != p.Version {
		id += "-" + shortHash(p.ID)
	}
	return id
}

// shortHash is a stable 8 hex digit digest of s.
func shortHash(s string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(s)).String()[:8]
}

func sanitize(s string) string {
	s = strings.TrimPrefix(s, "@")
	s = unsafeID.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "unknown"
	}
	return s
}
