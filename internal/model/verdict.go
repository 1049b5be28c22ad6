package model

// Compliance status values.
const (
	ComplianceCompliant      = "COMPLIANT"
	ComplianceReviewRequired = "REVIEW_REQUIRED"
	ComplianceNonCompliant   = "NON_COMPLIANT"
)

// LicenseConflict is a dependency whose obligations would propagate into the project.
type LicenseConflict struct {
	Package           string     `json:"package"`
	DependencyLicense string     `json:"dependencyLicense"`
	DependencyBucket  RiskBucket `json:"dependencyBucket"`
	Severity          Severity   `json:"severity"`
	Reason            string     `json:"reason"`
}

// LicenseWarning flags a dependency that needs manual review.
type LicenseWarning struct {
	Package string `json:"package"`
	License string `json:"license"`
	Reason  string `json:"reason"`
}

// PolicyViolation is a dependency rejected by the license policy.
type PolicyViolation struct {
	Package string     `json:"package"`
	License string     `json:"license"`
	Bucket  RiskBucket `json:"bucket"`
	Rule    string     `json:"rule"`
}

// CompatibilityVerdict is the outcome of checking every dependency license
// against the project license and the policy.
type CompatibilityVerdict struct {
	ProjectLicense   string            `json:"projectLicense"`
	ProjectBucket    RiskBucket        `json:"projectBucket"`
	Conflicts        []LicenseConflict `json:"conflicts"`
	Warnings         []LicenseWarning  `json:"warnings"`
	Violations       []PolicyViolation `json:"violations"`
	CanDistribute    bool              `json:"canDistribute"`
	ComplianceStatus string            `json:"complianceStatus"`
}

// HasHighConflict reports whether any conflict is HIGH severity.
func (v CompatibilityVerdict) HasHighConflict() bool {
	for _, c := range v.Conflicts {
		if c.Severity == SeverityHigh {
			return true
		}
	}
	return false
}
