// Package agent provides the single entry point for processing one
// document: validate the input, run OCR, classify the text, and
// assemble a result that reports failure instead of propagating it.
package agent

import (
	"context"
	"time"

	"insurance_backend/core"
	"insurance_backend/logging"
	"insurance_backend/ocr"

	"go.uber.org/zap"
)

// OcrService is the slice of the ocr package the agent drives.
type OcrService interface {
	ProcessDocument(ctx context.Context, image []byte, opts ocr.Options) (*core.OcrResult, error)
}

// Classifier is the single classification interface the agent drives.
type Classifier interface {
	ClassifyDocument(ctx context.Context, text string) (*core.ClassificationResult, error)
}

// ResultData carries the extraction payload of a successful run.
type ResultData struct {
	ExtractedText string
	Metadata      map[string]any
}

// ProcessingResult is the agent's outcome for one document. Success or
// failure, ProcessDocument always returns a populated result and a nil
// error.
type ProcessingResult struct {
	Success        bool
	Message        string
	DocumentType   core.DocumentType
	ProcessingTime time.Duration
	Confidence     float64
	Data           *ResultData
	Error          *core.ProcessingError
	Context        *core.ProcessingContext
	Classification *core.ClassificationResult
}

// Agent validates, OCRs, and classifies one document at a time.
//
// Thread-safety: safe for concurrent use; all state lives in the
// collaborators.
type Agent struct {
	ocrService OcrService
	classifier Classifier
	supported  map[string]bool
	logger     *logging.Logger
}

// NewAgent wires the document agent with its collaborators and the set
// of accepted MIME types.
func NewAgent(ocrService OcrService, classifier Classifier, supportedMimeTypes []string, logger *logging.Logger) *Agent {
	supported := make(map[string]bool, len(supportedMimeTypes))
	for _, mt := range supportedMimeTypes {
		supported[mt] = true
	}
	return &Agent{
		ocrService: ocrService,
		classifier: classifier,
		supported:  supported,
		logger:     logger.Named("agent"),
	}
}

// ProcessDocument runs the full per-document flow. It never returns an
// error: failures are captured in the result with Success false.
func (a *Agent) ProcessDocument(ctx context.Context, doc *core.Document) *ProcessingResult {
	start := time.Now()

	if err := a.validate(doc); err != nil {
		return a.failure(err, start)
	}

	opts := ocr.DefaultOptions()
	opts.DocumentContext = &ocr.DocumentContext{
		FileName: doc.FileName,
		MimeType: doc.MimeType,
		FileSize: doc.FileSize,
		Metadata: doc.Metadata,
	}

	ocrResult, err := a.ocrService.ProcessDocument(ctx, doc.File, opts)
	if err != nil {
		a.logger.Warn("OCR failed",
			zap.String("file", doc.FileName),
			zap.Error(err))
		return a.failure(err, start)
	}

	classification, err := a.classifier.ClassifyDocument(ctx, ocrResult.Text)
	if err != nil {
		a.logger.Warn("classification failed",
			zap.String("file", doc.FileName),
			zap.Error(err))
		return a.failure(err, start)
	}

	procCtx := ocrResult.Context
	procCtx.DocumentType = classification.Type
	metadata := procCtx.CloneMetadata()
	metadata["classificationMethod"] = string(classification.Method)
	metadata["classificationConfidence"] = classification.Confidence
	for k, v := range classification.ExtractedData {
		metadata[k] = v
	}
	procCtx.Metadata = metadata

	elapsed := time.Since(start)
	a.logger.Info("document processed",
		zap.String("file", doc.FileName),
		zap.String("type", string(classification.Type)),
		zap.Float64("confidence", classification.Confidence),
		zap.Duration("elapsed", elapsed))

	return &ProcessingResult{
		Success:        true,
		Message:        "Dokument erfolgreich verarbeitet",
		DocumentType:   classification.Type,
		ProcessingTime: elapsed,
		Confidence:     classification.Confidence,
		Data: &ResultData{
			ExtractedText: ocrResult.Text,
			Metadata:      metadata,
		},
		Context:        &procCtx,
		Classification: classification,
	}
}

// validate checks the document fields before any processing work.
func (a *Agent) validate(doc *core.Document) error {
	if doc == nil {
		return core.ErrInvalidInput("validation", "Kein Dokument bereitgestellt")
	}
	if doc.FileName == "" {
		return core.ErrInvalidInput("validation", "Dateiname fehlt")
	}
	if doc.MimeType == "" {
		return core.ErrInvalidInput("validation", "MIME-Typ fehlt")
	}
	if doc.FileSize <= 0 || len(doc.File) == 0 {
		return core.ErrInvalidInput("validation", "Dokument ist leer")
	}
	if !a.supported[doc.MimeType] {
		return core.ErrUnsupportedFormat("validation", doc.MimeType)
	}
	return nil
}

// failure wraps an error into the uniform failure result shape.
func (a *Agent) failure(err error, start time.Time) *ProcessingResult {
	procErr := core.WrapStep(err, core.ErrCodeOcrFailed, "document-processing", "Dokumentverarbeitung fehlgeschlagen")
	return &ProcessingResult{
		Success:        false,
		Message:        procErr.Message,
		ProcessingTime: time.Since(start),
		Error:          procErr,
	}
}
