package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"contractlens-backend/models"
)

const (
	keyTermsTextLimit = 3000
	themesTextLimit   = 2000
)

var (
	keyTermsOptions = GenerateOptions{MaxTokens: 1024, Temperature: 0.1, TopP: 0.8}
	summaryOptions  = GenerateOptions{MaxTokens: 512, Temperature: 0.2, TopP: 0.9}
	themeOptions    = GenerateOptions{MaxTokens: 256, Temperature: 0.1, TopP: 0.8}
)

// keyTermPatterns capture one labelled line of the extraction answer each
var keyTermPatterns = []struct {
	re  *regexp.Regexp
	set func(*models.KeyTerms, string)
}{
	{regexp.MustCompile(`(?im)^[ \t]*PAYMENT TERMS:[ \t]*(.+)$`), func(k *models.KeyTerms, v string) { k.PaymentTerms = v }},
	{regexp.MustCompile(`(?im)^[ \t]*DELIVERY TERMS:[ \t]*(.+)$`), func(k *models.KeyTerms, v string) { k.DeliveryTerms = v }},
	{regexp.MustCompile(`(?im)^[ \t]*GOVERNING LAW:[ \t]*(.+)$`), func(k *models.KeyTerms, v string) { k.GoverningLaw = v }},
	{regexp.MustCompile(`(?im)^[ \t]*TERMINATION CLAUSE:[ \t]*(.+)$`), func(k *models.KeyTerms, v string) { k.TerminationClause = v }},
	{regexp.MustCompile(`(?im)^[ \t]*WARRANTY TERMS:[ \t]*(.+)$`), func(k *models.KeyTerms, v string) { k.WarrantyTerms = v }},
	{regexp.MustCompile(`(?im)^[ \t]*LIABILITY TERMS:[ \t]*(.+)$`), func(k *models.KeyTerms, v string) { k.LiabilityTerms = v }},
}

// Summarizer extracts key terms, a short narrative summary and candidate
// themes from a contract with a single generative model.
type Summarizer struct {
	generator Generator
}

// NewSummarizer creates a summarizer backed by generator
func NewSummarizer(generator Generator) *Summarizer {
	return &Summarizer{generator: generator}
}

// SummaryResult is the summarizer output attached to an analysis report
type SummaryResult struct {
	Summary  string
	KeyTerms models.KeyTerms
}

// ExtractKeyTerms asks the model for labelled key terms and parses its answer
func (s *Summarizer) ExtractKeyTerms(ctx context.Context, contractText string) (models.KeyTerms, error) {
	if s.generator == nil {
		return emptyKeyTerms(), ErrGeneratorNotSet
	}

	prompt := fmt.Sprintf(`Analyze this contract and extract the key terms in a structured format:

CONTRACT TEXT:
%s

Extract the following information:
1. PAYMENT TERMS: When and how payment should be made
2. DELIVERY TERMS: Delivery timeline and conditions
3. GOVERNING LAW: Which jurisdiction's laws apply
4. TERMINATION CLAUSE: How the contract can be terminated
5. WARRANTY TERMS: Any warranties or guarantees provided
6. LIABILITY TERMS: Limitation of liability clauses

Format your response as:
PAYMENT TERMS: [extracted information]
DELIVERY TERMS: [extracted information]
GOVERNING LAW: [extracted information]
TERMINATION CLAUSE: [extracted information]
WARRANTY TERMS: [extracted information]
LIABILITY TERMS: [extracted information]

If any term is not found, write "Not specified in contract".`, truncate(contractText, keyTermsTextLimit))

	text, err := s.generator.Generate(ctx, prompt, keyTermsOptions)
	if err != nil {
		return emptyKeyTerms(), NewGenerationError(err)
	}
	return ParseKeyTerms(text), nil
}

// Summarize extracts key terms and produces the formatted contract summary
func (s *Summarizer) Summarize(ctx context.Context, contractText string) (*SummaryResult, error) {
	terms, err := s.ExtractKeyTerms(ctx, contractText)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Create a concise summary of this contract focusing on the most important aspects:

KEY TERMS EXTRACTED:
- Payment: %s
- Delivery: %s
- Governing Law: %s
- Termination: %s

Write a 2-3 sentence summary that captures the essence of this contract.
Focus on the main obligations, timeline, and key conditions.`,
		terms.PaymentTerms, terms.DeliveryTerms, terms.GoverningLaw, terms.TerminationClause)

	narrative, err := s.generator.Generate(ctx, prompt, summaryOptions)
	if err != nil {
		return nil, NewGenerationError(err)
	}

	return &SummaryResult{
		Summary:  FormatSummary(terms, narrative),
		KeyTerms: terms,
	}, nil
}

// Themes asks the model for the constitutional themes of a contract
func (s *Summarizer) Themes(ctx context.Context, contractText string) ([]models.Theme, error) {
	if s.generator == nil {
		return nil, ErrGeneratorNotSet
	}

	prompt := fmt.Sprintf(`Identify the main legal themes in this contract that might relate to Indian constitutional law:

CONTRACT TEXT:
%s

Focus on themes like:
- Right to Equality
- Right to Freedom
- Right against Exploitation
- Right to Constitutional Remedies
- Property Rights
- Contract Enforcement
- Commercial Law
- Labor Rights

Return only the most relevant themes as a comma-separated list.`, truncate(contractText, themesTextLimit))

	text, err := s.generator.Generate(ctx, prompt, themeOptions)
	if err != nil {
		return nil, NewGenerationError(err)
	}
	return ParseThemeList(text), nil
}

// ParseKeyTerms reads labelled lines; missing labels stay NotSpecified
func ParseKeyTerms(text string) models.KeyTerms {
	terms := emptyKeyTerms()
	for _, p := range keyTermPatterns {
		m := p.re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		v := strings.TrimSpace(m[1])
		if v == "" || strings.HasPrefix(strings.ToLower(v), "not specified") {
			continue
		}
		p.set(&terms, v)
	}
	return terms
}

// FormatSummary joins the specified key terms and the narrative
func FormatSummary(terms models.KeyTerms, narrative string) string {
	var parts []string
	add := func(label, value string) {
		if value != "" && value != models.NotSpecified {
			parts = append(parts, label+": "+value)
		}
	}
	add("PAYMENT", terms.PaymentTerms)
	add("DELIVERY", terms.DeliveryTerms)
	add("GOVERNING LAW", terms.GoverningLaw)
	add("TERMINATION", terms.TerminationClause)

	if n := strings.TrimSpace(narrative); n != "" {
		parts = append(parts, "OVERVIEW: "+n)
	}
	if len(parts) == 0 {
		return "Unable to generate summary"
	}
	return strings.Join(parts, " | ")
}

func emptyKeyTerms() models.KeyTerms {
	return models.KeyTerms{
		PaymentTerms:      models.NotSpecified,
		DeliveryTerms:     models.NotSpecified,
		GoverningLaw:      models.NotSpecified,
		TerminationClause: models.NotSpecified,
		WarrantyTerms:     models.NotSpecified,
		LiabilityTerms:    models.NotSpecified,
	}
}

// truncate cuts s to at most limit bytes without splitting a UTF-8 sequence
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
