package models

// NotSpecified marks a key term the summarizer could not find
const NotSpecified = "Not specified"

// KeyTerms are the structured terms extracted from a contract
type KeyTerms struct {
	PaymentTerms      string `json:"payment_terms"`
	DeliveryTerms     string `json:"delivery_terms"`
	GoverningLaw      string `json:"governing_law"`
	TerminationClause string `json:"termination_clause"`
	WarrantyTerms     string `json:"warranty_terms"`
	LiabilityTerms    string `json:"liability_terms"`
}

// ComplianceCheck is the outcome of the pattern-based legal compliance check
type ComplianceCheck struct {
	Score           float64  `json:"compliance_score"`
	Method          string   `json:"verification_method"`
	Confidence      float64  `json:"confidence"`
	Issues          []string `json:"legal_issues"`
	Recommendations []string `json:"recommendations"`
}
