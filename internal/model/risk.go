package model

// Risk levels shared by the supply-chain and overall assessments.
const (
	LevelCritical = "CRITICAL"
	LevelHigh     = "HIGH"
	LevelMedium   = "MEDIUM"
	LevelLow      = "LOW"
	LevelNone     = "NONE"
)

// RiskBreakdown holds the per-dimension scores, each in [0,100].
type RiskBreakdown struct {
	License     int `json:"license"`
	Security    int `json:"security"`
	SupplyChain int `json:"supplyChain"`
}

// PackagePriority is the remediation priority of a single package.
type PackagePriority struct {
	Package string   `json:"package"`
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
}

// Priorities groups packages by remediation bucket.
type Priorities struct {
	High   []PackagePriority `json:"high"`
	Medium []PackagePriority `json:"medium"`
	Low    []PackagePriority `json:"low"`
}

// RiskAssessment is the weighted overall verdict of an analysis.
type RiskAssessment struct {
	OverallScore int           `json:"overallScore"`
	Level        string        `json:"level"`
	Breakdown    RiskBreakdown `json:"breakdown"`
	Priorities   Priorities    `json:"priorities"`
}
