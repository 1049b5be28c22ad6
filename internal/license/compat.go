package license

import (
	"fmt"

	"depcompliance/internal/model"
)

// CheckCompatibility evaluates every dependency license against the project's
// own license and the policy lists.
//
// A conflict is raised when a strong-copyleft or proprietary dependency sits
// inside a permissive or weak-copyleft project: its obligations would
// propagate upward. The reverse direction is never a conflict. A project with
// no recognizable license raises no conflicts; its copyleft and proprietary
// dependencies are listed as warnings instead.
func (p *Policy) CheckCompatibility(projectLicense string, pkgs []model.PackageRecord) model.CompatibilityVerdict {
	projectID := p.Canonical(projectLicense)
	projectBucket := p.Classify(projectID)

	v := model.CompatibilityVerdict{
		ProjectLicense: projectID,
		ProjectBucket:  projectBucket,
		Conflicts:      []model.LicenseConflict{},
		Warnings:       []model.LicenseWarning{},
		Violations:     []model.PolicyViolation{},
	}

	for _, pkg := range pkgs {
		depID := pkg.NormalizedLicense
		if depID == "" {
			depID = p.Canonical(pkg.DeclaredLicense)
		}
		bucket := pkg.RiskBucket
		if !bucket.Valid() {
			bucket = p.Classify(depID)
		}

		if c, ok := conflictFor(projectBucket, bucket); ok {
			c.Package = pkg.ID
			c.DependencyLicense = depID
			v.Conflicts = append(v.Conflicts, c)
		} else if projectBucket == model.BucketUnknown && propagates(bucket) {
			v.Warnings = append(v.Warnings, model.LicenseWarning{
				Package: pkg.ID,
				License: depID,
				Reason:  fmt.Sprintf("project license %s is not recognized; %s obligations could not be checked", projectID, bucket),
			})
		}

		switch {
		case p.IsBlocked(depID):
			v.Violations = append(v.Violations, model.PolicyViolation{
				Package: pkg.ID, License: depID, Bucket: bucket, Rule: "blocked-license",
			})
		case p.IsBlockedBucket(bucket):
			v.Violations = append(v.Violations, model.PolicyViolation{
				Package: pkg.ID, License: depID, Bucket: bucket, Rule: "blocked-risk-bucket",
			})
		}

		if bucket == model.BucketUnknown {
			v.Warnings = append(v.Warnings, model.LicenseWarning{
				Package: pkg.ID,
				License: depID,
				Reason:  "license could not be classified; manual review required",
			})
		} else if p.IsWarning(depID) {
			v.Warnings = append(v.Warnings, model.LicenseWarning{
				Package: pkg.ID,
				License: depID,
				Reason:  "license is on the policy warning list",
			})
		}
	}

	v.CanDistribute = !v.HasHighConflict()
	switch {
	case len(v.Violations) > 0 || !v.CanDistribute:
		v.ComplianceStatus = model.ComplianceNonCompliant
	case len(v.Conflicts) > 0 || len(v.Warnings) > 0:
		v.ComplianceStatus = model.ComplianceReviewRequired
	default:
		v.ComplianceStatus = model.ComplianceCompliant
	}
	return v
}

func conflictFor(project, dep model.RiskBucket) (model.LicenseConflict, bool) {
	if project != model.BucketPermissive && project != model.BucketWeakCopyleft {
		return model.LicenseConflict{}, false
	}
	if !propagates(dep) {
		return model.LicenseConflict{}, false
	}

	sev := model.SeverityMedium
	if dep == model.BucketStrongCopyleft && project == model.BucketPermissive {
		sev = model.SeverityHigh
	}
	return model.LicenseConflict{
		DependencyBucket: dep,
		Severity:         sev,
		Reason:           fmt.Sprintf("%s dependency in a %s project", dep, project),
	}, true
}

// propagates reports whether a dependency bucket carries obligations upward.
func propagates(b model.RiskBucket) bool {
	return b == model.BucketStrongCopyleft || b == model.BucketProprietary
}
