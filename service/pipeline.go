package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"contractlens-backend/metrics"
	"contractlens-backend/models"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultMaxConcurrency bounds concurrent theme branches
	DefaultMaxConcurrency = 3

	// DefaultAnalysisTimeout is the wall-clock budget of one analysis
	DefaultAnalysisTimeout = 60 * time.Second

	KindCanceled = "canceled"
)

// Pipeline stages reported to a ProgressFunc, in order
const (
	StepExtractThemes  = "Extracting Themes"
	StepAnalyzeThemes  = "Retrieving and Verifying Articles"
	StepAssembleReport = "Assembling Report"
)

// PipelineSteps returns the stage names in execution order
func PipelineSteps() []string {
	return []string{StepExtractThemes, StepAnalyzeThemes, StepAssembleReport}
}

// ProgressFunc observes stage transitions. It is called from the goroutine
// running the analysis.
type ProgressFunc func(step, status string)

// Retriever produces the grounded explanation for one theme
type Retriever interface {
	Retrieve(ctx context.Context, theme models.Theme) (*models.RetrievalResult, error)
}

// Pipeline runs theme extraction, per-theme retrieval and verification, and
// aggregates the branch outcomes into an AnalysisReport.
type Pipeline struct {
	extractor      ThemeExtractor
	retriever      Retriever
	verifier       Verifier
	summarizer     *Summarizer
	compliance     *ComplianceChecker
	maxConcurrency int
	timeout        time.Duration
	metrics        *metrics.Collector
	logger         *slog.Logger
}

// PipelineOption is a functional option for Pipeline
type PipelineOption func(*Pipeline)

// PipelineWithExtractor sets the theme extractor
func PipelineWithExtractor(e ThemeExtractor) PipelineOption {
	return func(p *Pipeline) {
		p.extractor = e
	}
}

// PipelineWithRetriever sets the RAG retriever
func PipelineWithRetriever(r Retriever) PipelineOption {
	return func(p *Pipeline) {
		p.retriever = r
	}
}

// PipelineWithVerifier sets the faithfulness verifier
func PipelineWithVerifier(v Verifier) PipelineOption {
	return func(p *Pipeline) {
		p.verifier = v
	}
}

// PipelineWithSummarizer attaches the contract summarizer
func PipelineWithSummarizer(s *Summarizer) PipelineOption {
	return func(p *Pipeline) {
		p.summarizer = s
	}
}

// PipelineWithCompliance attaches the pattern-based compliance checker
func PipelineWithCompliance(c *ComplianceChecker) PipelineOption {
	return func(p *Pipeline) {
		p.compliance = c
	}
}

// PipelineWithMaxConcurrency bounds concurrent branches
func PipelineWithMaxConcurrency(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxConcurrency = n
		}
	}
}

// PipelineWithTimeout sets the wall-clock budget; zero disables it
func PipelineWithTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.timeout = d
	}
}

// PipelineWithMetrics records branch and analysis metrics
func PipelineWithMetrics(m *metrics.Collector) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// PipelineWithLogger sets the structured logger
func PipelineWithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// NewPipeline creates a pipeline orchestrator
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		maxConcurrency: DefaultMaxConcurrency,
		timeout:        DefaultAnalysisTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Analyze runs the full analysis. The only error it returns is a
// *ThemeExtractionError; branch failures are recorded on the report.
func (p *Pipeline) Analyze(ctx context.Context, contractText string) (*models.AnalysisReport, error) {
	return p.AnalyzeWithProgress(ctx, contractText, nil)
}

// AnalyzeWithProgress is Analyze reporting each stage to progress
func (p *Pipeline) AnalyzeWithProgress(ctx context.Context, contractText string, progress ProgressFunc) (*models.AnalysisReport, error) {
	started := time.Now()
	if progress == nil {
		progress = func(string, string) {}
	}

	if p.extractor == nil {
		return nil, NewThemeExtractionError(ErrExtractorNotSet)
	}
	if p.retriever == nil {
		return nil, ErrRetrieverNotSet
	}
	if p.verifier == nil {
		return nil, ErrVerifierNotSet
	}

	// START -> THEMES_EXTRACTED
	progress(StepExtractThemes, models.StepInProgress)
	themes, source, err := p.extractor.Extract(ctx, contractText)
	if err == nil && len(themes) == 0 {
		err = ErrNoThemesExtracted
	}
	if err != nil {
		progress(StepExtractThemes, models.StepFailed)
		if !IsThemeExtractionError(err) {
			err = NewThemeExtractionError(err)
		}
		return nil, err
	}
	progress(StepExtractThemes, models.StepCompleted)
	if len(themes) > MaxThemes {
		themes = themes[:MaxThemes]
	}

	report := &models.AnalysisReport{
		ID:          uuid.New(),
		Themes:      themes,
		ThemeSource: source,
		Errors:      []string{},
		StartedAt:   started,
	}
	p.logger.Info("themes extracted", "analysis_id", report.ID, "themes", themes, "source", source)

	runCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	summaryCh := p.startSummary(runCtx, contractText)

	// PER-THEME: RETRIEVED -> VERIFIED | FAILED
	progress(StepAnalyzeThemes, models.StepInProgress)
	report.Branches = p.runBranches(runCtx, themes)
	progress(StepAnalyzeThemes, models.StepCompleted)

	// AGGREGATED
	progress(StepAssembleReport, models.StepInProgress)
	for _, b := range report.Branches {
		p.metrics.ObserveBranch(string(b.Status))
		if b.Verdict != nil && b.Verdict.Kind == models.VerdictScored {
			p.metrics.ObserveVerification(b.Verdict.Score)
		}
		if b.Status == models.BranchFailed {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", b.Theme, b.Error))
		}
	}

	if p.compliance != nil {
		check := p.compliance.Check(contractText)
		report.Compliance = &check
	}

	report.Summary = digestSummary(report.Branches)
	if summaryCh != nil {
		select {
		case out := <-summaryCh:
			if out.err != nil {
				report.Errors = append(report.Errors, "summarizer: "+out.err.Error())
			} else {
				report.Summary = out.result.Summary
				terms := out.result.KeyTerms
				report.KeyTerms = &terms
			}
		case <-runCtx.Done():
			report.Errors = append(report.Errors, "summarizer: "+KindTimeout)
		}
	}

	// DONE
	report.Status = models.ReportDone
	report.CompletedAt = time.Now()
	p.metrics.ObserveAnalysis(started)
	progress(StepAssembleReport, models.StepCompleted)

	counts := report.Counts()
	p.logger.Info("analysis complete",
		"analysis_id", report.ID,
		"success", counts[models.BranchSuccess],
		"ungrounded", counts[models.BranchSuccessUngrounded],
		"degraded", counts[models.BranchDegraded],
		"failed", counts[models.BranchFailed],
		"duration", report.CompletedAt.Sub(started),
	)
	return report, nil
}

type summaryOutcome struct {
	result *SummaryResult
	err    error
}

func (p *Pipeline) startSummary(ctx context.Context, contractText string) <-chan summaryOutcome {
	if p.summarizer == nil {
		return nil
	}
	ch := make(chan summaryOutcome, 1)
	go func() {
		result, err := p.summarizer.Summarize(ctx, contractText)
		ch <- summaryOutcome{result: result, err: err}
	}()
	return ch
}

type indexedResult struct {
	index  int
	result models.BranchResult
}

// runBranches fans out one branch per theme and waits until every branch
// reached a terminal state or ctx is done. Branches still pending at that
// point are reported as failed.
func (p *Pipeline) runBranches(ctx context.Context, themes []models.Theme) []models.BranchResult {
	sem := semaphore.NewWeighted(int64(p.maxConcurrency))
	ch := make(chan indexedResult, len(themes))

	for i, theme := range themes {
		go func(i int, theme models.Theme) {
			ch <- indexedResult{index: i, result: p.runBranch(ctx, sem, theme)}
		}(i, theme)
	}

	results := make([]models.BranchResult, len(themes))
	done := make([]bool, len(themes))
	store := func(r indexedResult) {
		results[r.index] = r.result
		done[r.index] = true
	}

	remaining := len(themes)
wait:
	for remaining > 0 {
		select {
		case r := <-ch:
			store(r)
			remaining--
		case <-ctx.Done():
			break wait
		}
	}

	// Keep results that finished together with the deadline
drain:
	for remaining > 0 {
		select {
		case r := <-ch:
			store(r)
			remaining--
		default:
			break drain
		}
	}

	for i := range results {
		if !done[i] {
			results[i] = pendingResult(themes[i], ctx.Err())
			p.logger.Warn("branch did not finish", "theme", themes[i], "error", ctx.Err())
		}
	}
	return results
}

func (p *Pipeline) runBranch(ctx context.Context, sem *semaphore.Weighted, theme models.Theme) (res models.BranchResult) {
	start := time.Now()
	res = models.BranchResult{Theme: theme, State: models.StatePending}
	defer func() {
		if r := recover(); r != nil {
			res = failedResult(theme, fmt.Errorf("branch panic: %v", r))
		}
		res.Duration = time.Since(start)
	}()

	if err := sem.Acquire(ctx, 1); err != nil {
		return pendingResult(theme, err)
	}
	defer sem.Release(1)

	retrieval, err := p.retriever.Retrieve(ctx, theme)
	if err != nil {
		p.logger.Warn("branch failed", "theme", theme, "kind", ErrorKind(err), "error", err)
		return failedResult(theme, err)
	}
	res.Retrieval = retrieval
	res.State = models.StateRetrieved

	// The verifier receives exactly the passages used for generation
	verifyStart := time.Now()
	verdict := p.verifier.Verify(ctx, retrieval.Explanation, retrieval.Sources)
	var verifyErr error
	if verdict.Kind == models.VerdictUnavailable {
		verifyErr = errors.New(verdict.Reason)
	}
	p.metrics.ObserveCall(metrics.CapabilityVerification, verifyStart, verifyErr)
	res.Verdict = &verdict
	res.State = models.StateVerified

	switch {
	case !retrieval.Grounded:
		res.Status = models.BranchSuccessUngrounded
	case verdict.Kind == models.VerdictScored && verdict.Supported:
		res.Status = models.BranchSuccess
	case verdict.Kind == models.VerdictUnavailable:
		res.Status = models.BranchDegraded
		res.ErrorKind = KindVerification
		res.Error = verdict.Reason
	default:
		res.Status = models.BranchDegraded
	}
	return res
}

func failedResult(theme models.Theme, err error) models.BranchResult {
	kind := ErrorKind(err)
	return models.BranchResult{
		Theme:     theme,
		Status:    models.BranchFailed,
		State:     models.StateFailed,
		ErrorKind: kind,
		Error:     describe(kind, err),
	}
}

func pendingResult(theme models.Theme, cause error) models.BranchResult {
	res := models.BranchResult{
		Theme:     theme,
		Status:    models.BranchFailed,
		State:     models.StateFailed,
		ErrorKind: KindTimeout,
		Error:     KindTimeout,
	}
	if errors.Is(cause, context.Canceled) {
		res.ErrorKind = KindCanceled
		res.Error = KindCanceled
	}
	return res
}

func digestSummary(branches []models.BranchResult) string {
	var grounded, ungrounded, degraded, failed []string
	for _, b := range branches {
		switch b.Status {
		case models.BranchSuccess:
			grounded = append(grounded, string(b.Theme))
		case models.BranchSuccessUngrounded:
			ungrounded = append(ungrounded, string(b.Theme))
		case models.BranchDegraded:
			degraded = append(degraded, string(b.Theme))
		default:
			failed = append(failed, string(b.Theme))
		}
	}

	parts := []string{fmt.Sprintf("Constitutional analysis of %d theme(s).", len(branches))}
	add := func(label string, themes []string) {
		if len(themes) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s.", label, strings.Join(themes, ", ")))
		}
	}
	add("Grounded", grounded)
	add("No matching provisions", ungrounded)
	add("Low confidence", degraded)
	add("Failed", failed)
	return strings.Join(parts, " ")
}
