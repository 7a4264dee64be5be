package pipeline

import (
	"context"
	"testing"

	"insurance_backend/agent"
	"insurance_backend/classify"
	"insurance_backend/core"
	"insurance_backend/logging"
	"insurance_backend/metrics"
	"insurance_backend/ocr"
)

// cannedOcrService stands in for the OCR tier, returning fixed German
// document text.
type cannedOcrService struct {
	text string
}

func (c *cannedOcrService) ProcessDocument(ctx context.Context, image []byte, opts ocr.Options) (*core.OcrResult, error) {
	return &core.OcrResult{
		Text:       c.text,
		Confidence: 0.92,
		Processor:  ocr.ProcessorTesseract,
		Context: core.ProcessingContext{
			ProcessID: "ocr-ctx",
			FileName:  opts.DocumentContext.FileName,
			MimeType:  opts.DocumentContext.MimeType,
			FileSize:  opts.DocumentContext.FileSize,
			Metadata:  map[string]any{"ocrProcessor": ocr.ProcessorTesseract},
		},
	}, nil
}

// TestDamageReportEndToEnd runs a damage report upload through the
// real agent and classifier, asserting the final status, the typed
// record, and the single notification.
func TestDamageReportEndToEnd(t *testing.T) {
	classifier, err := classify.NewClassifier(&core.Config{
		ClassifierModel: core.DefaultClassifierModel,
		TestMode:        true,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("build classifier: %v", err)
	}

	ocrText := "Schadensmeldung\nVersicherungsnummer: 123456\nSchadensdatum: 15.02.2024"
	docAgent := agent.NewAgent(
		&cannedOcrService{text: ocrText},
		classifier,
		[]string{"application/pdf", "image/jpeg", "image/png"},
		logging.NewNop(),
	)

	statuses := &memStatusStore{}
	records := &memRecordStore{}
	notifier := &memNotifier{}
	manager := NewManager(docAgent, statuses, records, notifier,
		metrics.NewCollector(), testConfig(), logging.NewNop())

	processID := manager.ProcessDocument(&core.Document{
		File:     []byte("png bytes"),
		FileName: "schadensmeldung.png",
		MimeType: "image/png",
		FileSize: 9,
	})
	manager.Wait()

	final, ok := manager.GetProgress(processID)
	if !ok || final.Status != StatusCompleted {
		t.Fatalf("final progress = %+v", final)
	}
	if final.DocumentType != core.DamageReport {
		t.Errorf("DocumentType = %q, want damage_report", final.DocumentType)
	}

	if len(records.records) != 1 {
		t.Fatalf("record store got %d inserts, want 1", len(records.records))
	}
	rec := records.records[0]
	if rec.Type != core.DamageReport {
		t.Errorf("record type = %q", rec.Type)
	}
	if rec.Fields["insuranceNumber"] != "123456" {
		t.Errorf("record fields = %v, want insurance number 123456", rec.Fields)
	}
	dates, _ := rec.Fields["dates"].([]string)
	if len(dates) != 1 || dates[0] != "15.02.2024" {
		t.Errorf("record dates = %v, want [15.02.2024]", rec.Fields["dates"])
	}

	if notifier.count() != 1 {
		t.Fatalf("notifier invoked %d times, want exactly 1", notifier.count())
	}
	n := notifier.notifications[0]
	if n.ProcessID != processID || n.DocumentType != core.DamageReport {
		t.Errorf("notification = %+v", n)
	}
	if n.ExtractedText != ocrText {
		t.Errorf("notification text = %q", n.ExtractedText)
	}
}
