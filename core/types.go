// Package core provides shared types, configuration, and error handling
// for the insurance document processing pipeline.
//
// types.go defines the value types that flow through the pipeline:
// the input Document, the per-attempt ProcessingContext, and the OCR
// and classification result shapes.
package core

import "time"

// DocumentType classifies an ingested insurance document.
type DocumentType string

// Supported document types. MiscellaneousDocument is the fallback when
// no other type matches.
const (
	AccidentReport        DocumentType = "accident_report"
	DamageReport          DocumentType = "damage_report"
	ContractChange        DocumentType = "contract_change"
	MiscellaneousDocument DocumentType = "miscellaneous"
)

// ClassifiableTypes lists the types the rule-based classifier scores,
// in evaluation order. Ties resolve to the earliest entry.
var ClassifiableTypes = []DocumentType{
	AccidentReport,
	DamageReport,
	ContractChange,
}

// IsValid reports whether t is one of the known document types.
func (t DocumentType) IsValid() bool {
	switch t {
	case AccidentReport, DamageReport, ContractChange, MiscellaneousDocument:
		return true
	}
	return false
}

// Document is the immutable pipeline input: the raw upload plus the
// metadata the web layer captured with it. The pipeline never mutates
// a Document and never persists its raw bytes.
type Document struct {
	// File holds the raw uploaded bytes
	File []byte

	// FileName is the original upload file name
	FileName string

	// MimeType is the declared content type (e.g. "application/pdf")
	MimeType string

	// FileSize is the upload size in bytes
	FileSize int64

	// Metadata carries free-form caller annotations (uploader, channel, ...)
	Metadata map[string]any
}

// ProcessingContext correlates one document-processing attempt. It is
// created when a job starts and accumulates OCR/classification
// annotations in Metadata as the pipeline advances; keys are only ever
// added, never removed.
type ProcessingContext struct {
	// ProcessID is the correlation identifier for the attempt
	ProcessID string

	// FileName, MimeType, FileSize mirror the input document
	FileName string
	MimeType string
	FileSize int64

	// DocumentType is empty until classification has run
	DocumentType DocumentType

	// StartedAt is when the attempt began
	StartedAt time.Time

	// Metadata accumulates pipeline annotations (processor, confidence, ...)
	Metadata map[string]any
}

// CloneMetadata returns a copy of the context metadata map so callers
// can enrich it without aliasing the original.
func (c *ProcessingContext) CloneMetadata() map[string]any {
	out := make(map[string]any, len(c.Metadata)+4)
	for k, v := range c.Metadata {
		out[k] = v
	}
	return out
}

// ImageMetadata describes the preprocessed image handed to an OCR
// processor.
type ImageMetadata struct {
	// Format is the source format ("png", "jpeg", "pdf", ...)
	Format string

	// Width and Height are the output dimensions in pixels
	Width  int
	Height int

	// Quality is the estimated image quality in [0,1]
	Quality float64

	// EnhancementApplied reports whether normalization/sharpening ran
	EnhancementApplied bool
}

// OcrResult is the outcome of one OCR pass. It is immutable once
// produced by a processor, with one exception: the OCR service
// overwrites ProcessingTime with the end-to-end elapsed time before
// returning to the caller.
type OcrResult struct {
	// Text is the extracted text (possibly empty)
	Text string

	// Confidence is the extraction confidence in [0,1]
	Confidence float64

	// Metadata describes the preprocessed image
	Metadata ImageMetadata

	// ProcessingTime is the elapsed recognition time
	ProcessingTime time.Duration

	// Processor identifies the backend that produced the result
	Processor string

	// Context is the enriched processing context for the attempt
	Context ProcessingContext
}

// ClassificationMethod identifies which stage produced the final type
// decision.
type ClassificationMethod string

const (
	MethodRuleBased ClassificationMethod = "rule-based"
	MethodLLM       ClassificationMethod = "llm"
)

// ClassificationResult is the outcome of document classification,
// including the structured fields extracted for the winning type.
type ClassificationResult struct {
	// Type is the classified document type
	Type DocumentType

	// Confidence is the classification confidence in [0,1]
	Confidence float64

	// ExtractedData maps field names to extracted values
	// (dates list, location, damage type, change type, ...)
	ExtractedData map[string]any

	// Method is the stage that produced the final type decision
	Method ClassificationMethod

	// ProcessingTime is the total classification time
	ProcessingTime time.Duration

	// Timestamp is when classification completed
	Timestamp time.Time
}

// DocumentRecord is the flat per-type record shape the record store
// persists after successful classification.
type DocumentRecord struct {
	ProcessID     string
	Type          DocumentType
	FileName      string
	MimeType      string
	ExtractedText string
	Confidence    float64
	Fields        map[string]any
	CreatedAt     time.Time
}
