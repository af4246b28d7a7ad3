package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"contractlens-backend/models"
)

const (
	MethodJudge = "llm-judge"

	judgeConfidence = 0.8
)

var (
	judgeOptions = GenerateOptions{MaxTokens: 512, Temperature: 0, TopP: 1}

	judgeScorePattern = regexp.MustCompile(`(?i)score\s*[:=]\s*([0-9]*\.?[0-9]+)`)
)

// JudgeVerifier asks a secondary model call whether each claim of the
// explanation is supported by the sources. Any failure yields an
// unavailable verdict; it never retries.
type JudgeVerifier struct {
	generator Generator
	threshold float64
	logger    *slog.Logger
}

// NewJudgeVerifier creates a model-backed verifier
func NewJudgeVerifier(generator Generator, threshold float64, logger *slog.Logger) *JudgeVerifier {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSupportThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JudgeVerifier{generator: generator, threshold: threshold, logger: logger}
}

// Verify scores explanation against sources with the judge model
func (j *JudgeVerifier) Verify(ctx context.Context, explanation string, sources []models.SourcePassage) models.VerificationVerdict {
	if len(sources) == 0 {
		return models.NotApplicableVerdict(MethodJudge)
	}
	if j.generator == nil {
		j.unavailable(ErrGeneratorNotSet)
		return models.UnavailableVerdict(MethodJudge)
	}

	answer, err := j.generator.Generate(ctx, buildJudgePrompt(explanation, sources), judgeOptions)
	if err != nil {
		j.unavailable(err)
		return models.UnavailableVerdict(MethodJudge)
	}

	score, unsupported, err := ParseJudgeAnswer(answer)
	if err != nil {
		j.unavailable(err)
		return models.UnavailableVerdict(MethodJudge)
	}

	return models.VerificationVerdict{
		Kind:              models.VerdictScored,
		Score:             score,
		Supported:         score >= j.threshold,
		UnsupportedClaims: unsupported,
		Confidence:        judgeConfidence,
		Method:            MethodJudge,
	}
}

func (j *JudgeVerifier) unavailable(err error) {
	j.logger.Warn("faithfulness verification degraded", "error", &VerificationUnavailableError{err: err})
}

func buildJudgePrompt(explanation string, sources []models.SourcePassage) string {
	var b strings.Builder
	for i, s := range sources {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, s.Content)
	}

	return fmt.Sprintf(`You are verifying a generated legal explanation against its source passages.

SOURCE PASSAGES:
%s
EXPLANATION:
%s

TASK:
For every sentence of the explanation decide whether it is directly supported
by at least one source passage. Do not use outside knowledge.

Answer in exactly this format:
SCORE: <fraction of supported sentences between 0.0 and 1.0>
UNSUPPORTED:
- <unsupported sentence, copied verbatim>
(write "- none" if every sentence is supported)`, b.String(), explanation)
}

// ParseJudgeAnswer reads the SCORE line and the UNSUPPORTED list
func ParseJudgeAnswer(answer string) (float64, []string, error) {
	m := judgeScorePattern.FindStringSubmatch(answer)
	if len(m) < 2 {
		return 0, nil, ErrMalformedVerdict
	}
	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}
	score = math.Min(math.Max(score, 0), 1)

	unsupported := make([]string, 0)
	inList := false
	for _, line := range strings.Split(answer, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToUpper(line), "UNSUPPORTED") {
			inList = true
			continue
		}
		if !inList || !strings.HasPrefix(line, "-") {
			continue
		}
		claim := strings.TrimSpace(strings.TrimPrefix(line, "-"))
		if claim == "" || strings.EqualFold(claim, "none") {
			continue
		}
		unsupported = append(unsupported, claim)
	}
	return score, unsupported, nil
}
