package models

import (
	"time"

	"github.com/google/uuid"
)

// NoRelevantSourceExplanation is the explanation returned when the index has
// no neighbors for a theme. It is never produced by the generative model.
const NoRelevantSourceExplanation = "No relevant articles could be found in the Constitution of India for this topic."

// Theme is a short label for a legal concept used as the retrieval query
type Theme string

// SourcePassage is a piece of reference text returned by the vector index
type SourcePassage struct {
	ID      string  `json:"id"`
	Article string  `json:"article,omitempty"`
	Title   string  `json:"title,omitempty"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"` // Similarity under the index metric
}

// RetrievalResult is the grounded explanation for one theme together with
// the exact passages that were given to the generative step.
type RetrievalResult struct {
	Theme       Theme           `json:"theme"`
	Sources     []SourcePassage `json:"sources"`
	Explanation string          `json:"explanation"`
	Grounded    bool            `json:"grounded"` // false when the index returned no neighbors
}

// VerdictKind tells consumers whether Score carries meaning
type VerdictKind string

const (
	VerdictScored        VerdictKind = "scored"
	VerdictNotApplicable VerdictKind = "not_applicable"
	VerdictUnavailable   VerdictKind = "unavailable"
)

// VerificationVerdict is the faithfulness assessment of an explanation
// against its sources.
type VerificationVerdict struct {
	Kind              VerdictKind `json:"kind"`
	Score             float64     `json:"score"`
	Supported         bool        `json:"supported"`
	UnsupportedClaims []string    `json:"unsupported_claims"`
	Confidence        float64     `json:"confidence"`
	Method            string      `json:"method"`
	Reason            string      `json:"reason,omitempty"`
}

// NotApplicableVerdict is returned when there is no grounding to score against
func NotApplicableVerdict(method string) VerificationVerdict {
	return VerificationVerdict{
		Kind:              VerdictNotApplicable,
		UnsupportedClaims: []string{},
		Method:            method,
		Reason:            "unverifiable: no grounding sources",
	}
}

// UnavailableVerdict is the conservative default when scoring could not run
func UnavailableVerdict(method string) VerificationVerdict {
	return VerificationVerdict{
		Kind:              VerdictUnavailable,
		UnsupportedClaims: []string{},
		Method:            method,
		Reason:            "verification unavailable",
	}
}

// BranchStatus is the user-visible outcome of one theme branch
type BranchStatus string

const (
	BranchSuccess           BranchStatus = "success"
	BranchSuccessUngrounded BranchStatus = "success-ungrounded"
	BranchDegraded          BranchStatus = "degraded"
	BranchFailed            BranchStatus = "failed"
)

// BranchState is the last state a branch reached in the pipeline
type BranchState string

const (
	StatePending   BranchState = "PENDING"
	StateRetrieved BranchState = "RETRIEVED"
	StateVerified  BranchState = "VERIFIED"
	StateFailed    BranchState = "FAILED"
)

// BranchResult is the terminal outcome of one theme branch
type BranchResult struct {
	Theme     Theme                `json:"theme"`
	Status    BranchStatus         `json:"status"`
	State     BranchState          `json:"state"`
	Retrieval *RetrievalResult     `json:"retrieval,omitempty"`
	Verdict   *VerificationVerdict `json:"verification,omitempty"`
	ErrorKind string               `json:"error_kind,omitempty"`
	Error     string               `json:"error,omitempty"`
	Duration  time.Duration        `json:"duration_ns"`
}

// ReportStatus is the terminal state of an analysis request
type ReportStatus string

const ReportDone ReportStatus = "DONE"

// AnalysisReport is assembled once per contract analysis request
type AnalysisReport struct {
	ID          uuid.UUID        `json:"id"`
	Status      ReportStatus     `json:"status"`
	Summary     string           `json:"summary"`
	Themes      []Theme          `json:"themes"`
	ThemeSource string           `json:"theme_source"`
	Branches    []BranchResult   `json:"branches"`
	KeyTerms    *KeyTerms        `json:"key_terms,omitempty"`
	Compliance  *ComplianceCheck `json:"compliance,omitempty"`
	Errors      []string         `json:"errors"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
}

// Branch returns the result for a theme
func (r *AnalysisReport) Branch(theme Theme) (BranchResult, bool) {
	for _, b := range r.Branches {
		if b.Theme == theme {
			return b, true
		}
	}
	return BranchResult{}, false
}

// Counts returns the number of branches per status
func (r *AnalysisReport) Counts() map[BranchStatus]int {
	counts := make(map[BranchStatus]int, 4)
	for _, b := range r.Branches {
		counts[b.Status]++
	}
	return counts
}
