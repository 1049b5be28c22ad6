package model

import (
	"encoding/json"
	"time"
)

// RiskBucket is the legal risk category of a license.
type RiskBucket string

const (
	BucketPermissive     RiskBucket = "PERMISSIVE"
	BucketWeakCopyleft   RiskBucket = "WEAK_COPYLEFT"
	BucketStrongCopyleft RiskBucket = "STRONG_COPYLEFT"
	BucketProprietary    RiskBucket = "PROPRIETARY"
	BucketUnknown        RiskBucket = "UNKNOWN"
)

// RiskBuckets lists the buckets from least to most restrictive.
var RiskBuckets = []RiskBucket{BucketPermissive, BucketWeakCopyleft, BucketStrongCopyleft, BucketProprietary, BucketUnknown}

// Rank orders buckets by obligation weight. UNKNOWN sits between weak and
// strong copyleft so that an "A OR UNKNOWN" expression still prefers A.
func (b RiskBucket) Rank() int {
	switch b {
	case BucketPermissive:
		return 0
	case BucketWeakCopyleft:
		return 1
	case BucketUnknown:
		return 2
	case BucketStrongCopyleft:
		return 3
	case BucketProprietary:
		return 4
	default:
		return 2
	}
}

// Valid reports whether b is one of the closed set of buckets.
func (b RiskBucket) Valid() bool {
	switch b {
	case BucketPermissive, BucketWeakCopyleft, BucketStrongCopyleft, BucketProprietary, BucketUnknown:
		return true
	}
	return false
}

func (b RiskBucket) MarshalJSON() ([]byte, error) {
	if !b.Valid() {
		return json.Marshal(string(BucketUnknown))
	}
	return json.Marshal(string(b))
}

// NoAssertion is the canonical identifier for an absent license.
const NoAssertion = "NOASSERTION"

// PackageRecord is one dependency inside a bill of materials.
type PackageRecord struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Version            string     `json:"version"`
	Ecosystem          string     `json:"ecosystem"`
	DeclaredLicense    string     `json:"declaredLicense"`
	NormalizedLicense  string     `json:"normalizedLicense"`
	RiskBucket         RiskBucket `json:"riskBucket"`
	RepositoryURL      string     `json:"repositoryUrl,omitempty"`
	Description        string     `json:"description,omitempty"`
	ResolutionStrategy string     `json:"resolutionStrategy"`
	PURL               string     `json:"purl,omitempty"`
	SPDXID             string     `json:"spdxId,omitempty"`
	DownloadLocation   string     `json:"downloadLocation,omitempty"`
	InstalledVersion   string     `json:"installedVersion,omitempty"`
	Deprecated         bool       `json:"deprecated,omitempty"`
	Maintainers        int        `json:"maintainers,omitempty"`
	Manifest           string     `json:"manifest,omitempty"`
}

// PackageID builds the name@version identity of a package.
func PackageID(name, version string) string {
	return name + "@" + version
}

// Strategy outcome values recorded in a StrategyAttempt.
const (
	StrategySucceeded = "SUCCEEDED"
	StrategyEmpty     = "EMPTY"
	StrategyNotFound  = "NOT_FOUND"
	StrategyFailed    = "FAILED"
	StrategySkipped   = "SKIPPED"
)

// StrategyAttempt records one resolver strategy run.
type StrategyAttempt struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Packages int    `json:"packages"`
	Error    string `json:"error,omitempty"`
}

// EnrichmentStats summarizes the local metadata enrichment pass.
type EnrichmentStats struct {
	Available bool     `json:"available"`
	Scanned   int      `json:"scanned"`
	Enriched  int      `json:"enriched"`
	Added     int      `json:"added"`
	Errors    []string `json:"errors,omitempty"`
}

// CreationInfo mirrors the SPDX creation info block.
type CreationInfo struct {
	Created  time.Time `json:"created"`
	Creators []string  `json:"creators"`
}

// BillOfMaterials is the canonical package inventory of one analysis.
type BillOfMaterials struct {
	DocumentID        string            `json:"documentId"`
	DocumentNamespace string            `json:"documentNamespace"`
	SPDXVersion       string            `json:"spdxVersion"`
	DataLicense       string            `json:"dataLicense"`
	ProjectName       string            `json:"projectName"`
	ProjectLicense    string            `json:"projectLicense"`
	GeneratedAt       time.Time         `json:"generatedAt"`
	GenerationMillis  int64             `json:"generationMillis"`
	CreationInfo      CreationInfo      `json:"creationInfo"`
	Strategy          string            `json:"strategy"`
	StrategyChain     []StrategyAttempt `json:"strategyChain"`
	Packages          []PackageRecord   `json:"packages"`
	TotalPackages     int               `json:"totalPackages"`
	EnrichmentStats   EnrichmentStats   `json:"enrichmentStats"`
}

// Ecosystem names as used by the vulnerability database.
const (
	EcosystemNPM  = "npm"
	EcosystemPyPI = "PyPI"
)
