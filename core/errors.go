package core

import (
	"errors"
	"fmt"
)

// Error codes for the processing error taxonomy.
const (
	ErrCodeInvalidInput         = "INVALID_INPUT"
	ErrCodeUnsupportedFormat    = "UNSUPPORTED_FORMAT"
	ErrCodeMissingContext       = "MISSING_CONTEXT"
	ErrCodeNoProcessorAvailable = "NO_PROCESSOR_AVAILABLE"
	ErrCodePreprocessingFailed  = "PREPROCESSING_FAILED"
	ErrCodeOcrFailed            = "OCR_FAILED"
	ErrCodeClassificationFailed = "CLASSIFICATION_FAILED"
	ErrCodeStorageFailed        = "STORAGE_FAILED"
	ErrCodeEmissionFailed       = "EMISSION_FAILED"
	ErrCodeProcessingTimeout    = "TIMEOUT"
)

// ProcessingError is the pipeline error type. It carries a stable code
// for programmatic handling, the pipeline step it originated from, and
// the wrapped underlying cause.
type ProcessingError struct {
	Code    string // Stable error code (see ErrCode* constants)
	Message string // Human-readable error message
	Step    string // Pipeline step where the error occurred
	Err     error  // Underlying cause, if any
}

func (e *ProcessingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %v", e.Message, e.Step, e.Err)
	}
	return fmt.Sprintf("%s [%s]", e.Message, e.Step)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// ErrInvalidInput returns an error for missing or malformed input data.
// Never retried: only the caller can fix it.
func ErrInvalidInput(step, message string) *ProcessingError {
	return &ProcessingError{
		Code:    ErrCodeInvalidInput,
		Message: message,
		Step:    step,
	}
}

// ErrUnsupportedFormat returns an error for a MIME type outside the
// supported set.
func ErrUnsupportedFormat(step, mimeType string) *ProcessingError {
	return &ProcessingError{
		Code:    ErrCodeUnsupportedFormat,
		Message: fmt.Sprintf("Nicht unterstütztes Dateiformat: %s", mimeType),
		Step:    step,
	}
}

// ErrMissingContext returns an error for an OCR call without a
// document context.
func ErrMissingContext(step string) *ProcessingError {
	return &ProcessingError{
		Code:    ErrCodeMissingContext,
		Message: "Dokumentkontext ist erforderlich",
		Step:    step,
	}
}

// ErrNoProcessorAvailable returns an error when no OCR backend is
// available.
func ErrNoProcessorAvailable() *ProcessingError {
	return &ProcessingError{
		Code:    ErrCodeNoProcessorAvailable,
		Message: "Kein OCR-Processor verfügbar",
		Step:    "processor-selection",
	}
}

// ErrPreprocessing wraps an image decode/convert failure.
func ErrPreprocessing(step string, err error) *ProcessingError {
	return &ProcessingError{
		Code:    ErrCodePreprocessingFailed,
		Message: "Fehler bei der Bildvorverarbeitung",
		Step:    step,
		Err:     err,
	}
}

// ErrOcr wraps an OCR engine or backend failure.
func ErrOcr(step string, err error) *ProcessingError {
	return &ProcessingError{
		Code:    ErrCodeOcrFailed,
		Message: "OCR-Verarbeitung fehlgeschlagen",
		Step:    step,
		Err:     err,
	}
}

// ErrClassification wraps a classifier failure, including malformed
// LLM responses.
func ErrClassification(err error) *ProcessingError {
	return &ProcessingError{
		Code:    ErrCodeClassificationFailed,
		Message: "Klassifizierungsfehler",
		Step:    "classification",
		Err:     err,
	}
}

// ErrStorage wraps a document record write failure.
func ErrStorage(err error) *ProcessingError {
	return &ProcessingError{
		Code:    ErrCodeStorageFailed,
		Message: "Dokument konnte nicht gespeichert werden",
		Step:    "storage",
		Err:     err,
	}
}

// ErrEmission wraps a status-store write failure. Logged only, never
// fails a job.
func ErrEmission(err error) *ProcessingError {
	return &ProcessingError{
		Code:    ErrCodeEmissionFailed,
		Message: "Statusaktualisierung fehlgeschlagen",
		Step:    "emission",
		Err:     err,
	}
}

// ErrTimeout returns an error for an attempt that exceeded the
// processing timeout.
func ErrTimeout(step string) *ProcessingError {
	return &ProcessingError{
		Code:    ErrCodeProcessingTimeout,
		Message: "Verarbeitung hat das Zeitlimit überschritten",
		Step:    step,
	}
}

// AsProcessingError checks whether err is (or wraps) a ProcessingError.
func AsProcessingError(err error) (*ProcessingError, bool) {
	var procErr *ProcessingError
	if errors.As(err, &procErr) {
		return procErr, true
	}
	return nil, false
}

// ErrorCode extracts the taxonomy code from an error, or "" if the
// error is not a ProcessingError.
func ErrorCode(err error) string {
	if procErr, ok := AsProcessingError(err); ok {
		return procErr.Code
	}
	return ""
}

// WrapStep ensures err is a ProcessingError; non-taxonomy errors are
// wrapped with the given code and step, taxonomy errors pass through
// unchanged.
func WrapStep(err error, code, step, message string) *ProcessingError {
	if procErr, ok := AsProcessingError(err); ok {
		return procErr
	}
	return &ProcessingError{
		Code:    code,
		Message: message,
		Step:    step,
		Err:     err,
	}
}
