package model

// UpdateType classifies the gap between installed and latest versions.
type UpdateType string

const (
	UpdateMajor UpdateType = "MAJOR"
	UpdateMinor UpdateType = "MINOR"
	UpdatePatch UpdateType = "PATCH"
)

// StalenessRecord describes one outdated dependency.
type StalenessRecord struct {
	Package    string     `json:"package"`
	Current    string     `json:"current"`
	Wanted     string     `json:"wanted"`
	Latest     string     `json:"latest"`
	UpdateType UpdateType `json:"updateType"`
	Breaking   bool       `json:"breaking"`
}

// OutdatedEntry is what a package manager reports for one dependency that
// has a newer release.
type OutdatedEntry struct {
	Name     string `json:"name"`
	Current  string `json:"current"`
	Wanted   string `json:"wanted"`
	Latest   string `json:"latest"`
	Location string `json:"location,omitempty"`
}

// StalenessReport is the outdated-dependencies section of the report.
type StalenessReport struct {
	Source         string            `json:"source"`
	TotalOutdated  int               `json:"totalOutdated"`
	MajorUpdates   int               `json:"majorUpdates"`
	MinorUpdates   int               `json:"minorUpdates"`
	PatchUpdates   int               `json:"patchUpdates"`
	StalenessScore int               `json:"stalenessScore"`
	Packages       []StalenessRecord `json:"packages"`
	Skipped        bool              `json:"skipped,omitempty"`
	Error          string            `json:"error,omitempty"`
}

// SupplyChainReport summarizes maintenance signals across the BOM.
type SupplyChainReport struct {
	TotalPackages int      `json:"totalPackages"`
	Abandoned     []string `json:"abandoned"`
	Unmaintained  []string `json:"unmaintained"`
	NoRepository  []string `json:"noRepository"`
	RiskScore     int      `json:"riskScore"`
	RiskLevel     string   `json:"riskLevel"`
	Error         string   `json:"error,omitempty"`
}
