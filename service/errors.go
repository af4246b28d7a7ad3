package service

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrEmptyContract     = errors.New("contract text is empty")
	ErrEmptyEmbedding    = errors.New("embedding service returned an empty vector")
	ErrEmptyGeneration   = errors.New("generation service returned empty content")
	ErrMalformedVerdict  = errors.New("judge response has no score")
	ErrVerifierNotSet    = errors.New("verifier not set")
	ErrRetrieverNotSet   = errors.New("retriever not set")
	ErrExtractorNotSet   = errors.New("theme extractor not set")
	ErrGeneratorNotSet   = errors.New("generator not set")
	ErrBranchTimeout     = errors.New("timeout")
	ErrNoThemesExtracted = errors.New("no themes extracted")
)

// Error kinds reported in branch results
const (
	KindEmbedding    = "EmbeddingError"
	KindIndex        = "IndexError"
	KindGeneration   = "GenerationError"
	KindVerification = "VerificationUnavailable"
	KindExtraction   = "ThemeExtractionError"
	KindTimeout      = "timeout"
	KindUnknown      = "InternalError"
)

// EmbeddingError reports an unreachable embedding service or a malformed response
type EmbeddingError struct {
	err error
}

func (e *EmbeddingError) Error() string { return "embedding failed: " + e.err.Error() }
func (e *EmbeddingError) Unwrap() error { return e.err }

// NewEmbeddingError wraps err as an embedding failure
func NewEmbeddingError(err error) error { return &EmbeddingError{err: err} }

// IndexError reports a vector index failure
type IndexError struct {
	err error
}

func (e *IndexError) Error() string { return "index query failed: " + e.err.Error() }
func (e *IndexError) Unwrap() error { return e.err }

// NewIndexError wraps err as an index failure
func NewIndexError(err error) error { return &IndexError{err: err} }

// GenerationError reports a generation failure or a content-policy rejection
type GenerationError struct {
	err error
}

func (e *GenerationError) Error() string { return "generation failed: " + e.err.Error() }
func (e *GenerationError) Unwrap() error { return e.err }

// NewGenerationError wraps err as a generation failure
func NewGenerationError(err error) error { return &GenerationError{err: err} }

// VerificationUnavailableError is never returned to callers; verifiers log it
// and degrade to a conservative verdict.
type VerificationUnavailableError struct {
	err error
}

func (e *VerificationUnavailableError) Error() string {
	return "verification unavailable: " + e.err.Error()
}
func (e *VerificationUnavailableError) Unwrap() error { return e.err }

// ThemeExtractionError aborts the whole analysis request
type ThemeExtractionError struct {
	err error
}

func (e *ThemeExtractionError) Error() string { return "theme extraction failed: " + e.err.Error() }
func (e *ThemeExtractionError) Unwrap() error { return e.err }

// NewThemeExtractionError wraps err as a fatal extraction failure
func NewThemeExtractionError(err error) error { return &ThemeExtractionError{err: err} }

// IsThemeExtractionError reports whether err aborted theme extraction
func IsThemeExtractionError(err error) bool {
	var target *ThemeExtractionError
	return errors.As(err, &target)
}

// ErrorKind maps an error onto the name reported in branch results
func ErrorKind(err error) string {
	var (
		embErr   *EmbeddingError
		idxErr   *IndexError
		genErr   *GenerationError
		verErr   *VerificationUnavailableError
		themeErr *ThemeExtractionError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBranchTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &embErr):
		return KindEmbedding
	case errors.As(err, &idxErr):
		return KindIndex
	case errors.As(err, &genErr):
		return KindGeneration
	case errors.As(err, &verErr):
		return KindVerification
	case errors.As(err, &themeErr):
		return KindExtraction
	default:
		return KindUnknown
	}
}

func describe(kind string, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", kind, err)
}
