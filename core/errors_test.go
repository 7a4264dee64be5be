package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestProcessingErrorError(t *testing.T) {
	tests := []struct {
		name string
		err  *ProcessingError
		want string
	}{
		{
			name: "without cause",
			err:  ErrMissingContext("ocr-service"),
			want: "Dokumentkontext ist erforderlich [ocr-service]",
		},
		{
			name: "with cause",
			err:  ErrOcr("tesseract", errors.New("engine crashed")),
			want: "OCR-Verarbeitung fehlgeschlagen [tesseract]: engine crashed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProcessingErrorUnwrap(t *testing.T) {
	cause := errors.New("decode failed")
	err := ErrPreprocessing("image-preprocessing", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestAsProcessingError(t *testing.T) {
	procErr := ErrUnsupportedFormat("validation", "image/gif")
	wrapped := fmt.Errorf("outer: %w", procErr)

	got, ok := AsProcessingError(wrapped)
	if !ok {
		t.Fatal("AsProcessingError should unwrap through fmt.Errorf")
	}
	if got.Code != ErrCodeUnsupportedFormat {
		t.Errorf("Code = %q, want %q", got.Code, ErrCodeUnsupportedFormat)
	}

	if _, ok := AsProcessingError(errors.New("plain")); ok {
		t.Error("plain errors should not match")
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"invalid input", ErrInvalidInput("validation", "missing mime"), ErrCodeInvalidInput},
		{"no processor", ErrNoProcessorAvailable(), ErrCodeNoProcessorAvailable},
		{"timeout", ErrTimeout("pipeline"), ErrCodeProcessingTimeout},
		{"plain error", errors.New("boom"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.want {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapStepPassesThroughTaxonomyErrors(t *testing.T) {
	orig := ErrClassification(errors.New("bad json"))
	got := WrapStep(orig, ErrCodeOcrFailed, "ocr", "should not be used")

	if got != orig {
		t.Error("taxonomy errors must pass through unchanged")
	}
}

func TestWrapStepWrapsPlainErrors(t *testing.T) {
	cause := errors.New("connection refused")
	got := WrapStep(cause, ErrCodeOcrFailed, "ocr-service", "OCR Verarbeitungsfehler")

	if got.Code != ErrCodeOcrFailed {
		t.Errorf("Code = %q, want %q", got.Code, ErrCodeOcrFailed)
	}
	if got.Step != "ocr-service" {
		t.Errorf("Step = %q, want %q", got.Step, "ocr-service")
	}
	if !errors.Is(got, cause) {
		t.Error("wrapped error should retain the cause")
	}
}
