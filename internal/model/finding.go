package model

// VulnerabilityFinding is one known vulnerability correlated to a BOM package.
type VulnerabilityFinding struct {
	Package    string   `json:"package"`
	Version    string   `json:"version"`
	Ecosystem  string   `json:"ecosystem"`
	Identifier string   `json:"identifier"`
	Severity   Severity `json:"severity"`
	Source     string   `json:"source"`
	Summary    string   `json:"summary,omitempty"`
	Aliases    []string `json:"aliases,omitempty"`
	URL        string   `json:"url,omitempty"`
}

// Vulnerability report status values.
const (
	VulnStatusCompleted = "COMPLETED"
	VulnStatusPartial   = "PARTIAL"
	VulnStatusFailed    = "FAILED"
	VulnStatusSkipped   = "SKIPPED"
)

// ChunkFailure records one batch request that contributed no findings.
type ChunkFailure struct {
	Chunk    int    `json:"chunk"`
	Packages int    `json:"packages"`
	Reason   string `json:"reason"`
}

// VulnerabilityReport is the output of the vulnerability correlation stage.
type VulnerabilityReport struct {
	Status               string                 `json:"status"`
	TotalVulnerabilities int                    `json:"totalVulnerabilities"`
	SeverityBreakdown    map[Severity]int       `json:"severityBreakdown"`
	Findings             []VulnerabilityFinding `json:"findings"`
	VulnerablePackages   []string               `json:"vulnerablePackages"`
	ScannedPackages      int                    `json:"scannedPackages"`
	SkippedPackages      int                    `json:"skippedPackages"`
	ChunkFailures        []ChunkFailure         `json:"chunkFailures,omitempty"`
	Source               string                 `json:"source"`
	Error                string                 `json:"error,omitempty"`
}
