package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"insurance_backend/core"
	"insurance_backend/logging"
	"insurance_backend/ocr"
)

var supportedTypes = []string{"application/pdf", "image/jpeg", "image/png"}

// fakeOcrService records calls and returns a canned result.
type fakeOcrService struct {
	result *core.OcrResult
	err    error
	calls  int
}

func (f *fakeOcrService) ProcessDocument(ctx context.Context, image []byte, opts ocr.Options) (*core.OcrResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeClassifier records calls and returns a canned result.
type fakeClassifier struct {
	result *core.ClassificationResult
	err    error
	calls  int
}

func (f *fakeClassifier) ClassifyDocument(ctx context.Context, text string) (*core.ClassificationResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func validDocument() *core.Document {
	return &core.Document{
		File:     []byte("image bytes"),
		FileName: "schadensmeldung.png",
		MimeType: "image/png",
		FileSize: 11,
	}
}

func okOcrResult() *core.OcrResult {
	return &core.OcrResult{
		Text:       "Schadensmeldung: Wasserschaden",
		Confidence: 0.9,
		Processor:  ocr.ProcessorTesseract,
		Context: core.ProcessingContext{
			ProcessID: "p-1",
			FileName:  "schadensmeldung.png",
			Metadata:  map[string]any{"ocrProcessor": ocr.ProcessorTesseract},
		},
	}
}

func okClassification() *core.ClassificationResult {
	return &core.ClassificationResult{
		Type:          core.DamageReport,
		Confidence:    0.85,
		ExtractedData: map[string]any{"damageType": "Wasserschaden"},
		Method:        core.MethodRuleBased,
		Timestamp:     time.Now(),
	}
}

func TestProcessDocumentSuccess(t *testing.T) {
	ocrSvc := &fakeOcrService{result: okOcrResult()}
	classifier := &fakeClassifier{result: okClassification()}
	a := NewAgent(ocrSvc, classifier, supportedTypes, logging.NewNop())

	result := a.ProcessDocument(context.Background(), validDocument())

	if !result.Success {
		t.Fatalf("Success = false, error = %v", result.Error)
	}
	if result.DocumentType != core.DamageReport {
		t.Errorf("DocumentType = %q, want damage_report", result.DocumentType)
	}
	if result.Confidence != 0.85 {
		t.Errorf("Confidence = %f, want classification confidence", result.Confidence)
	}
	if result.Data == nil || result.Data.ExtractedText != "Schadensmeldung: Wasserschaden" {
		t.Error("Data must carry the extracted text")
	}
	if result.Data.Metadata["damageType"] != "Wasserschaden" {
		t.Error("extracted fields must be merged into result metadata")
	}
	if result.Context == nil || result.Context.DocumentType != core.DamageReport {
		t.Error("context must carry the classified type")
	}
	if result.Error != nil {
		t.Errorf("Error = %v on success", result.Error)
	}
}

func TestProcessDocumentValidationGating(t *testing.T) {
	tests := []struct {
		name     string
		doc      *core.Document
		wantCode string
	}{
		{"nil document", nil, core.ErrCodeInvalidInput},
		{"missing file name", &core.Document{File: []byte("x"), MimeType: "image/png", FileSize: 1}, core.ErrCodeInvalidInput},
		{"missing mime type", &core.Document{File: []byte("x"), FileName: "a.png", FileSize: 1}, core.ErrCodeInvalidInput},
		{"empty file", &core.Document{FileName: "a.png", MimeType: "image/png"}, core.ErrCodeInvalidInput},
		{"unsupported format", &core.Document{File: []byte("x"), FileName: "a.gif", MimeType: "image/gif", FileSize: 1}, core.ErrCodeUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ocrSvc := &fakeOcrService{result: okOcrResult()}
			classifier := &fakeClassifier{result: okClassification()}
			a := NewAgent(ocrSvc, classifier, supportedTypes, logging.NewNop())

			result := a.ProcessDocument(context.Background(), tt.doc)

			if result.Success {
				t.Fatal("Success = true for invalid input")
			}
			if result.Error == nil || result.Error.Code != tt.wantCode {
				t.Errorf("Error = %v, want code %q", result.Error, tt.wantCode)
			}
			// Validation failures must not reach the OCR backend.
			if ocrSvc.calls != 0 {
				t.Errorf("OCR invoked %d times for invalid input", ocrSvc.calls)
			}
			if classifier.calls != 0 {
				t.Errorf("classifier invoked %d times for invalid input", classifier.calls)
			}
		})
	}
}

func TestProcessDocumentNeverPanicsOnFailures(t *testing.T) {
	tests := []struct {
		name       string
		ocrErr     error
		classErr   error
		wantCode   string
		classCalls int
	}{
		{"ocr taxonomy error", core.ErrNoProcessorAvailable(), nil, core.ErrCodeNoProcessorAvailable, 0},
		{"ocr plain error", errors.New("boom"), nil, core.ErrCodeOcrFailed, 0},
		{"classification error", nil, core.ErrClassification(errors.New("bad json")), core.ErrCodeClassificationFailed, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ocrSvc := &fakeOcrService{result: okOcrResult(), err: tt.ocrErr}
			classifier := &fakeClassifier{result: okClassification(), err: tt.classErr}
			a := NewAgent(ocrSvc, classifier, supportedTypes, logging.NewNop())

			result := a.ProcessDocument(context.Background(), validDocument())

			if result.Success {
				t.Fatal("Success = true despite failure")
			}
			if result.Error == nil || result.Error.Code != tt.wantCode {
				t.Errorf("Error = %v, want code %q", result.Error, tt.wantCode)
			}
			if classifier.calls != tt.classCalls {
				t.Errorf("classifier calls = %d, want %d", classifier.calls, tt.classCalls)
			}
		})
	}
}

func TestProcessDocumentPassesDefaults(t *testing.T) {
	var captured ocr.Options
	ocrSvc := &capturingOcrService{result: okOcrResult(), captured: &captured}
	a := NewAgent(ocrSvc, &fakeClassifier{result: okClassification()}, supportedTypes, logging.NewNop())

	a.ProcessDocument(context.Background(), validDocument())

	if captured.Language != "de" || !captured.EnhanceImage {
		t.Errorf("options = %+v, want German defaults with enhancement", captured)
	}
	if captured.DocumentContext == nil || captured.DocumentContext.FileName != "schadensmeldung.png" {
		t.Error("document context must mirror the input document")
	}
}

type capturingOcrService struct {
	result   *core.OcrResult
	captured *ocr.Options
}

func (c *capturingOcrService) ProcessDocument(ctx context.Context, image []byte, opts ocr.Options) (*core.OcrResult, error) {
	*c.captured = opts
	return c.result, nil
}
