package service

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"contractlens-backend/models"
)

const (
	// DefaultSupportThreshold is the minimum claim coverage, and the minimum
	// overall score, for an explanation to count as supported.
	DefaultSupportThreshold = 0.5

	MethodLexical = "lexical-overlap"

	minClaimTokens = 3
)

// Verifier scores whether an explanation is supported by its sources.
// Implementations never return an error; failures degrade to an
// unavailable verdict.
type Verifier interface {
	Verify(ctx context.Context, explanation string, sources []models.SourcePassage) models.VerificationVerdict
}

var (
	sentenceBoundary = regexp.MustCompile(`([.!?])\s+|\n+`)
	markupPrefix     = regexp.MustCompile(`^[\s*#>\-•\d.)]+`)
)

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {}, "you": {}, "all": {},
	"any": {}, "can": {}, "has": {}, "have": {}, "had": {}, "was": {}, "were": {}, "this": {},
	"that": {}, "these": {}, "those": {}, "with": {}, "from": {}, "into": {}, "such": {},
	"which": {}, "who": {}, "whom": {}, "its": {}, "their": {}, "there": {}, "they": {},
	"them": {}, "than": {}, "then": {}, "also": {}, "shall": {}, "may": {}, "must": {},
	"would": {}, "could": {}, "should": {}, "will": {}, "been": {}, "being": {}, "does": {},
	"did": {}, "other": {}, "under": {}, "upon": {}, "about": {}, "each": {}, "both": {},
	"more": {}, "most": {}, "only": {}, "own": {}, "same": {}, "very": {}, "what": {},
	"when": {}, "where": {}, "while": {}, "how": {}, "why": {}, "our": {}, "his": {}, "her": {},
	"provided": {}, "theme": {}, "explanation": {}, "relates": {}, "relate": {}, "related": {},
	"regard": {}, "regarding": {}, "therefore": {}, "thus": {}, "hence": {}, "however": {},
}

// LexicalVerifier scores claims by content-word overlap with the sources.
// It is a pure function of its inputs.
type LexicalVerifier struct {
	threshold float64
}

// NewLexicalVerifier creates a verifier; threshold outside (0,1] selects the default
func NewLexicalVerifier(threshold float64) *LexicalVerifier {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSupportThreshold
	}
	return &LexicalVerifier{threshold: threshold}
}

// Threshold returns the support threshold
func (v *LexicalVerifier) Threshold() float64 { return v.threshold }

// Verify checks every claim of explanation against the sources
func (v *LexicalVerifier) Verify(_ context.Context, explanation string, sources []models.SourcePassage) models.VerificationVerdict {
	if len(sources) == 0 {
		return models.NotApplicableVerdict(MethodLexical)
	}

	sourceTokens := make([]map[string]struct{}, 0, len(sources))
	for _, s := range sources {
		sourceTokens = append(sourceTokens, tokenSet(s.Content))
	}

	claims := SplitClaims(explanation)
	if len(claims) == 0 {
		return models.VerificationVerdict{
			Kind:              models.VerdictScored,
			UnsupportedClaims: []string{},
			Method:            MethodLexical,
			Reason:            "explanation has no verifiable claims",
		}
	}

	var (
		supported     int
		totalCoverage float64
		unsupported   = make([]string, 0)
	)
	for _, claim := range claims {
		coverage := bestCoverage(tokenSet(claim), sourceTokens)
		totalCoverage += coverage
		if coverage >= v.threshold {
			supported++
		} else {
			unsupported = append(unsupported, claim)
		}
	}

	score := float64(supported) / float64(len(claims))
	return models.VerificationVerdict{
		Kind:              models.VerdictScored,
		Score:             score,
		Supported:         score >= v.threshold,
		UnsupportedClaims: unsupported,
		Confidence:        totalCoverage / float64(len(claims)),
		Method:            MethodLexical,
	}
}

// SplitClaims splits an explanation into sentence-level claims, dropping
// headings and fragments too short to verify.
func SplitClaims(explanation string) []string {
	marked := sentenceBoundary.ReplaceAllString(explanation, "$1\x00")
	parts := strings.Split(marked, "\x00")

	claims := make([]string, 0, len(parts))
	for _, p := range parts {
		p = markupPrefix.ReplaceAllString(p, "")
		p = strings.ReplaceAll(p, "**", "")
		p = strings.TrimSpace(p)
		if p == "" || strings.HasSuffix(p, ":") {
			continue
		}
		if len(tokenSet(p)) < minClaimTokens {
			continue
		}
		claims = append(claims, p)
	}
	return claims
}

func bestCoverage(claim map[string]struct{}, sources []map[string]struct{}) float64 {
	if len(claim) == 0 {
		return 0
	}
	best := 0.0
	for _, src := range sources {
		hit := 0
		for tok := range claim {
			if _, ok := src[tok]; ok {
				hit++
			}
		}
		if c := float64(hit) / float64(len(claim)); c > best {
			best = c
		}
	}
	return best
}

func tokenSet(text string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len(w) < 3 {
			// Article numbers such as "14" or "21" are meaningful
			if !isNumber(w) {
				continue
			}
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		set[stem(w)] = struct{}{}
	}
	return set
}

// stem strips a few English inflections so "rights" matches "right"
func stem(w string) string {
	switch {
	case len(w) > 5 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}

func isNumber(w string) bool {
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return w != ""
}
