package service

import (
	"errors"
	"fmt"

	"github.com/capitalize-ai/vcon-datasets/internal/extract"
	"github.com/capitalize-ai/vcon-datasets/internal/storage"
)

var (
	// ErrInvalidInput is returned when a record is not UTF-8 encoded JSON.
	ErrInvalidInput = errors.New("invalid input")

	// ErrExtraction is returned when the extraction step fails.
	ErrExtraction = extract.ErrExtraction

	// ErrWrite is returned when the dataset cannot be persisted.
	ErrWrite = storage.ErrWrite

	// ErrExtractorRequired is returned when a pipeline is built without an extractor.
	ErrExtractorRequired = errors.New("extractor required")

	// ErrWriterRequired is returned when a pipeline is built without a writer.
	ErrWriterRequired = errors.New("writer required")
)

// Stable error codes reported to API clients.
const (
	CodeInvalidInput     = "invalid_input"
	CodeExtractionFailed = "extraction_failed"
	CodeWriteFailed      = "write_failed"
	CodeInternal         = "internal_error"
)

// StageError records the state a failed run was unable to reach.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline failed before %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ErrorCode maps a pipeline error to its stable code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrExtraction):
		return CodeExtractionFailed
	case errors.Is(err, ErrWrite):
		return CodeWriteFailed
	default:
		return CodeInternal
	}
}

// FailedStage returns the state a pipeline error occurred in, if known.
func FailedStage(err error) State {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
