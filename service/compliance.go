package service

import (
	"math"
	"strings"

	"contractlens-backend/models"
)

const (
	MethodPatternCompliance = "Pattern-based Analysis"

	complianceBaseScore  = 0.2
	complianceConfidence = 0.6
)

// complianceFactors are weighted contract elements; each contributes once
var complianceFactors = []struct {
	weight float64
	terms  []string
}{
	{0.2, []string{"party", "parties", "between"}},
	{0.2, []string{"consideration", "payment", "salary", "amount"}},
	{0.15, []string{"term", "duration", "period"}},
	{0.15, []string{"obligation", "duty", "responsibility"}},
	{0.1, []string{"termination", "expiry", "expire"}},
}

// ComplianceChecker runs keyword heuristics over contract text
type ComplianceChecker struct{}

// NewComplianceChecker creates a pattern-based checker
func NewComplianceChecker() *ComplianceChecker { return &ComplianceChecker{} }

// Check scores the presence of essential contract elements and flags
// common omissions.
func (c *ComplianceChecker) Check(contractText string) models.ComplianceCheck {
	text := strings.ToLower(contractText)

	score := complianceBaseScore
	for _, f := range complianceFactors {
		if containsAny(text, f.terms) {
			score += f.weight
		}
	}
	score = math.Min(math.Round(score*100)/100, 1)

	issues := make([]string, 0)
	if strings.Contains(text, "termination") && !strings.Contains(text, "notice") {
		issues = append(issues, "Termination clause lacks proper notice requirements")
	}
	if strings.Contains(text, "salary") && !strings.Contains(text, "minimum wage") {
		issues = append(issues, "Salary terms should reference minimum wage compliance")
	}
	if strings.Contains(text, "confidentiality") && !strings.Contains(text, "duration") {
		issues = append(issues, "Confidentiality clause lacks duration specification")
	}

	recommendations := make([]string, 0, 4)
	if score < 0.7 {
		recommendations = append(recommendations,
			"Review contract with legal counsel",
			"Ensure compliance with Indian Contract Act 1872",
		)
	}
	if score < 0.5 {
		recommendations = append(recommendations, "Add constitutional law compliance clauses")
	}
	recommendations = append(recommendations, "Verify alignment with latest labour law amendments")

	return models.ComplianceCheck{
		Score:           score,
		Method:          MethodPatternCompliance,
		Confidence:      complianceConfidence,
		Issues:          issues,
		Recommendations: recommendations,
	}
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
