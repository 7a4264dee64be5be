// Package ocr implements tiered text extraction for the document
// pipeline: a GPT-Vision-backed processor, a local Tesseract-backed
// processor, a factory that selects an available backend with
// fallback, and the orchestrating service.
package ocr

import (
	"context"
	"time"

	"insurance_backend/core"
	"insurance_backend/preprocess"

	"github.com/google/uuid"
)

// Processor identifiers.
const (
	ProcessorGPTVision = "gpt4-vision"
	ProcessorTesseract = "tesseract"
)

// DocumentContext carries the document metadata an OCR call operates
// on. Required for every ProcessImage call.
type DocumentContext struct {
	FileName string
	MimeType string
	FileSize int64
	Metadata map[string]any
}

// Options control one OCR run.
type Options struct {
	// Language is the primary recognition language ("de" default)
	Language string

	// EnhanceImage requests raster enhancement during preprocessing
	EnhanceImage bool

	// MinQuality is the advisory minimum image quality
	MinQuality float64

	// PreferredProcessor names a processor to try first, if available
	PreferredProcessor string

	// DocumentContext is required
	DocumentContext *DocumentContext
}

// DefaultOptions returns the pipeline defaults: German language with
// enhancement enabled.
func DefaultOptions() Options {
	return Options{
		Language:     "de",
		EnhanceImage: true,
		MinQuality:   0.7,
	}
}

// Processor is the capability interface shared by all OCR backends.
type Processor interface {
	// Name returns the stable processor identifier
	Name() string

	// Available reports whether the backend can currently process
	// images. Re-checked per factory call, never cached indefinitely.
	Available(ctx context.Context) bool

	// ProcessImage preprocesses and recognizes the image. A missing
	// DocumentContext is rejected with MISSING_CONTEXT.
	ProcessImage(ctx context.Context, image []byte, opts Options) (*core.OcrResult, error)
}

// CleanupProcessor is implemented by processors holding engine
// workers that need explicit release. Cleanup is idempotent.
type CleanupProcessor interface {
	Processor
	Cleanup() error
}

// ImagePreprocessor is the slice of the preprocess package the
// processors depend on.
type ImagePreprocessor interface {
	PreprocessImage(ctx context.Context, data []byte, opts preprocess.Options) (*preprocess.Result, error)
}

// enrichedContext builds the fresh ProcessingContext each processor
// embeds into its result, carrying processor name, confidence, and
// elapsed time in the metadata.
func enrichedContext(docCtx *DocumentContext, processor string, confidence float64, elapsed time.Duration) core.ProcessingContext {
	metadata := make(map[string]any, len(docCtx.Metadata)+3)
	for k, v := range docCtx.Metadata {
		metadata[k] = v
	}
	metadata["ocrProcessor"] = processor
	metadata["ocrConfidence"] = confidence
	metadata["processingTime"] = elapsed

	return core.ProcessingContext{
		ProcessID: uuid.NewString(),
		FileName:  docCtx.FileName,
		MimeType:  docCtx.MimeType,
		FileSize:  docCtx.FileSize,
		StartedAt: time.Now(),
		Metadata:  metadata,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
