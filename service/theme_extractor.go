package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"contractlens-backend/models"
)

const (
	// MaxThemes bounds the number of retrieval branches per contract
	MaxThemes = 3

	// DefaultTheme is used when no keyword category matches
	DefaultTheme models.Theme = "Contract Enforceability under Indian Law"
)

// Theme sources reported on the analysis report
const (
	ThemeSourceHeuristic   = "heuristic"
	ThemeSourceLLM         = "llm"
	ThemeSourceLLMFallback = "llm-fallback"
)

// ThemeExtractor derives candidate constitutional themes from contract text
type ThemeExtractor interface {
	Extract(ctx context.Context, contractText string) ([]models.Theme, string, error)
}

// ThemeRule maps contract keywords onto a constitutional theme
type ThemeRule struct {
	Theme    models.Theme `yaml:"theme"`
	Keywords []string     `yaml:"keywords"`
}

// DefaultThemeRules returns the built-in rules in priority order
func DefaultThemeRules() []ThemeRule {
	return []ThemeRule{
		{Theme: "Right to Work and Employment", Keywords: []string{"employee", "employer", "employment", "employ", "hire", "staff", "workforce"}},
		{Theme: "Right to Fair Compensation", Keywords: []string{"salary", "wage", "compensation", "remuneration", "payment", "bonus", "stipend"}},
		{Theme: "Due Process and Natural Justice", Keywords: []string{"termination", "terminate", "dismissal", "disciplinary", "hearing", "notice period"}},
		{Theme: "Right to Equality", Keywords: []string{"discrimination", "equal", "gender", "caste", "religion", "harassment"}},
		{Theme: "Right to Freedom of Trade and Profession", Keywords: []string{"non-compete", "non-solicit", "restraint", "exclusivity", "profession"}},
		{Theme: "Right against Exploitation", Keywords: []string{"forced labour", "forced labor", "bonded", "child labour", "child labor", "overtime"}},
		{Theme: "Right to Property", Keywords: []string{"property", "lease", "tenant", "land", "ownership", "premises"}},
		{Theme: "Freedom of Speech and Expression", Keywords: []string{"confidential", "non-disclosure", "publication", "speech", "gag"}},
		{Theme: "Right to Constitutional Remedies", Keywords: []string{"arbitration", "dispute", "jurisdiction", "court", "remedy"}},
	}
}

type compiledRule struct {
	theme    models.Theme
	patterns []*regexp.Regexp
}

// HeuristicExtractor matches keyword categories in priority order.
// It is deterministic for a given rule set.
type HeuristicExtractor struct {
	rules []compiledRule
}

// NewHeuristicExtractor compiles rules; nil or empty rules select the defaults
func NewHeuristicExtractor(rules []ThemeRule) (*HeuristicExtractor, error) {
	if len(rules) == 0 {
		rules = DefaultThemeRules()
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		if strings.TrimSpace(string(rule.Theme)) == "" {
			return nil, errors.New("theme rule has no theme")
		}
		cr := compiledRule{theme: rule.Theme}
		for _, kw := range rule.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			// Keywords match at a word start and may be followed by a suffix
			// ("employ" matches "employer", "employment").
			re, err := regexp.Compile(`\b` + regexp.QuoteMeta(kw) + `\w*`)
			if err != nil {
				return nil, fmt.Errorf("invalid keyword %q for theme %q: %w", kw, rule.Theme, err)
			}
			cr.patterns = append(cr.patterns, re)
		}
		if len(cr.patterns) == 0 {
			return nil, fmt.Errorf("theme rule %q has no keywords", rule.Theme)
		}
		compiled = append(compiled, cr)
	}

	return &HeuristicExtractor{rules: compiled}, nil
}

// Extract returns up to MaxThemes matched themes, or DefaultTheme
func (h *HeuristicExtractor) Extract(_ context.Context, contractText string) ([]models.Theme, string, error) {
	themes, err := h.match(contractText)
	return themes, ThemeSourceHeuristic, err
}

func (h *HeuristicExtractor) match(contractText string) ([]models.Theme, error) {
	if strings.TrimSpace(contractText) == "" {
		return nil, NewThemeExtractionError(ErrEmptyContract)
	}

	text := strings.ToLower(contractText)
	themes := make([]models.Theme, 0, MaxThemes)
	for _, rule := range h.rules {
		for _, re := range rule.patterns {
			if re.MatchString(text) {
				themes = append(themes, rule.theme)
				break
			}
		}
		if len(themes) == MaxThemes {
			break
		}
	}

	if len(themes) == 0 {
		return []models.Theme{DefaultTheme}, nil
	}
	return themes, nil
}

// LLMExtractor asks the summarizer model for themes and falls back to the
// heuristic extractor when the model is unavailable or returns nothing usable.
type LLMExtractor struct {
	summarizer *Summarizer
	fallback   *HeuristicExtractor
	logger     *slog.Logger
}

// NewLLMExtractor creates an extractor backed by the summarizer's theme output
func NewLLMExtractor(summarizer *Summarizer, fallback *HeuristicExtractor, logger *slog.Logger) *LLMExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMExtractor{summarizer: summarizer, fallback: fallback, logger: logger}
}

// Extract returns LLM themes, or heuristic themes on failure
func (l *LLMExtractor) Extract(ctx context.Context, contractText string) ([]models.Theme, string, error) {
	if strings.TrimSpace(contractText) == "" {
		return nil, "", NewThemeExtractionError(ErrEmptyContract)
	}
	if l.fallback == nil {
		return nil, "", NewThemeExtractionError(ErrExtractorNotSet)
	}

	if l.summarizer != nil {
		themes, err := l.summarizer.Themes(ctx, contractText)
		if err == nil && len(themes) > 0 {
			return themes, ThemeSourceLLM, nil
		}
		l.logger.Warn("llm theme extraction failed, using keyword rules", "error", err)
	}

	themes, err := l.fallback.match(contractText)
	return themes, ThemeSourceLLMFallback, err
}

// ParseThemeList splits a comma or newline separated model answer into
// unique themes, capped at MaxThemes.
func ParseThemeList(raw string) []models.Theme {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';'
	})

	seen := make(map[string]struct{}, len(fields))
	themes := make([]models.Theme, 0, MaxThemes)
	for _, f := range fields {
		t := strings.TrimSpace(f)
		t = strings.TrimLeft(t, "-*•0123456789. ")
		t = strings.Trim(t, `"'`)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		themes = append(themes, models.Theme(t))
		if len(themes) == MaxThemes {
			break
		}
	}
	return themes
}
