package license

import (
	"regexp"
	"strings"

	"depcompliance/internal/model"
)

var (
	orSplit   = regexp.MustCompile(`(?i)\s+OR\s+`)
	andSplit  = regexp.MustCompile(`(?i)\s+AND\s+`)
	withSplit = regexp.MustCompile(`(?i)\s+WITH\s+`)
)

// Normalize collapses a raw declaration and maps it to its canonical id.
func (p *Policy) Normalize(raw model.RawLicense) string {
	return p.Canonical(raw.Collapse())
}

// Canonical maps a collapsed license string to its canonical spelling.
// Strings absent from both the alias and risk tables come back trimmed but
// otherwise untouched; empty input becomes NOASSERTION.
func (p *Policy) Canonical(s string) string {
	p.index()
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, model.NoAssertion) {
		return model.NoAssertion
	}

	if isExpression(s) {
		inner := strings.TrimSpace(strings.NewReplacer("(", "", ")", "").Replace(s))
		var alts []string
		for _, alt := range orSplit.Split(inner, -1) {
			var all []string
			for _, term := range andSplit.Split(alt, -1) {
				all = append(all, p.canonicalTerm(term))
			}
			alts = append(alts, strings.Join(all, " AND "))
		}
		if len(alts) == 1 {
			return alts[0]
		}
		return "(" + strings.Join(alts, " OR ") + ")"
	}
	return p.canonicalTerm(s)
}

func (p *Policy) canonicalTerm(s string) string {
	s = strings.TrimSpace(s)
	base, exception, hasException := splitWith(s)
	if hasException {
		return p.canonicalTerm(base) + " WITH " + exception
	}
	key := strings.ToLower(s)
	if id, ok := p.alias[key]; ok {
		return id
	}
	if e, ok := p.table[key]; ok {
		return e.id
	}
	return s
}

// Classify buckets a license id. Expressions take the least restrictive
// alternative of an OR and the most restrictive term of an AND. Anything not
// in the risk table is UNKNOWN.
func (p *Policy) Classify(id string) model.RiskBucket {
	p.index()
	id = strings.TrimSpace(id)
	if id == "" || strings.EqualFold(id, model.NoAssertion) {
		return model.BucketUnknown
	}

	inner := strings.TrimSpace(strings.NewReplacer("(", "", ")", "").Replace(id))
	best := model.RiskBucket("")
	for _, alt := range orSplit.Split(inner, -1) {
		worst := model.RiskBucket("")
		for _, term := range andSplit.Split(alt, -1) {
			b := p.classifyTerm(term)
			if worst == "" || b.Rank() > worst.Rank() {
				worst = b
			}
		}
		if best == "" || worst.Rank() < best.Rank() {
			best = worst
		}
	}
	if best == "" {
		return model.BucketUnknown
	}
	return best
}

func (p *Policy) classifyTerm(term string) model.RiskBucket {
	term = p.canonicalTerm(term)
	base, _, hasException := splitWith(term)
	e, ok := p.table[strings.ToLower(strings.TrimSpace(base))]
	if !ok {
		return model.BucketUnknown
	}
	// A linking exception (Classpath, LLVM, GCC runtime) relaxes a strong
	// copyleft license to weak copyleft obligations.
	if hasException && e.bucket == model.BucketStrongCopyleft {
		return model.BucketWeakCopyleft
	}
	return e.bucket
}

func splitWith(s string) (string, string, bool) {
	parts := withSplit.Split(s, 2)
	if len(parts) != 2 {
		return s, "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}

func isExpression(s string) bool {
	return orSplit.MatchString(s) || andSplit.MatchString(s) || strings.ContainsAny(s, "()")
}

// Summary counts packages per bucket and per canonical license.
type Summary struct {
	TotalPackages int                      `json:"totalPackages"`
	ByBucket      map[model.RiskBucket]int `json:"byBucket"`
	ByLicense     map[string]int           `json:"byLicense"`
}

// Summarize tallies the classified packages of a BOM.
func Summarize(pkgs []model.PackageRecord) Summary {
	s := Summary{
		TotalPackages: len(pkgs),
		ByBucket:      make(map[model.RiskBucket]int, len(model.RiskBuckets)),
		ByLicense:     make(map[string]int),
	}
	for _, b := range model.RiskBuckets {
		s.ByBucket[b] = 0
	}
	for _, pkg := range pkgs {
		bucket := pkg.RiskBucket
		if !bucket.Valid() {
			bucket = model.BucketUnknown
		}
		s.ByBucket[bucket]++
		id := pkg.NormalizedLicense
		if id == "" {
			id = model.NoAssertion
		}
		s.ByLicense[id]++
	}
	return s
}
