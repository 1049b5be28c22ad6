package staleness

import (
	"math"
	"sort"

	"depcompliance/internal/model"
)

// Signal weights of the supply-chain score.
const (
	weightAbandoned    = 10
	weightUnmaintained = 5
	weightNoRepository = 3
)

// SupplyChain scores maintenance signals recorded on the BOM. A package is
// abandoned when its installed manifest is deprecated and unmaintained when
// it lists exactly one maintainer. Every package without a repository link
// counts as noRepository.
func SupplyChain(pkgs []model.PackageRecord) model.SupplyChainReport {
	rep := model.SupplyChainReport{
		TotalPackages: len(pkgs),
		Abandoned:     []string{},
		Unmaintained:  []string{},
		NoRepository:  []string{},
	}
	for _, p := range pkgs {
		if p.Deprecated {
			rep.Abandoned = append(rep.Abandoned, p.ID)
		}
		if p.Maintainers == 1 {
			rep.Unmaintained = append(rep.Unmaintained, p.ID)
		}
		if p.RepositoryURL == "" {
			rep.NoRepository = append(rep.NoRepository, p.ID)
		}
	}
	sort.Strings(rep.Abandoned)
	sort.Strings(rep.Unmaintained)
	sort.Strings(rep.NoRepository)

	if rep.TotalPackages > 0 {
		weighted := len(rep.Abandoned)*weightAbandoned +
			len(rep.Unmaintained)*weightUnmaintained +
			len(rep.NoRepository)*weightNoRepository
		score := math.Round(float64(weighted) / float64(rep.TotalPackages) * 100)
		rep.RiskScore = int(math.Min(100, score))
	}
	rep.RiskLevel = SupplyChainLevel(rep.RiskScore)
	return rep
}

// SupplyChainLevel buckets a supply-chain score.
func SupplyChainLevel(score int) string {
	switch {
	case score >= 80:
		return model.LevelCritical
	case score >= 60:
		return model.LevelHigh
	case score >= 40:
		return model.LevelMedium
	case score >= 20:
		return model.LevelLow
	default:
		return model.LevelNone
	}
}
