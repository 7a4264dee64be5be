package ocr

import (
	"context"
	"sync"
	"time"

	"insurance_backend/core"
	"insurance_backend/logging"
	"insurance_backend/preprocess"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
)

// tesseractEngine abstracts the local recognition engine so tests can
// substitute a fake. The production implementation wraps gosseract.
type tesseractEngine interface {
	// Recognize runs OCR and returns text plus the engine-reported
	// confidence on its native 0-100 scale.
	Recognize(image []byte) (text string, confidence float64, err error)
	Close() error
}

// gosseractEngine is the production engine backed by a gosseract
// client. The client is not re-entrant; the owning processor
// serializes access.
type gosseractEngine struct {
	client *gosseract.Client
}

func newGosseractEngine(languages []string) (tesseractEngine, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(languages...); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &gosseractEngine{client: client}, nil
}

func (e *gosseractEngine) Recognize(image []byte) (string, float64, error) {
	if err := e.client.SetImageFromBytes(image); err != nil {
		return "", 0, err
	}

	text, err := e.client.Text()
	if err != nil {
		return "", 0, err
	}

	// Mean word confidence on the engine's 0-100 scale. An image with
	// no recognized words reports zero.
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return "", 0, err
	}
	var confidence float64
	if len(boxes) > 0 {
		var sum float64
		for _, box := range boxes {
			sum += box.Confidence
		}
		confidence = sum / float64(len(boxes))
	}

	return text, confidence, nil
}

func (e *gosseractEngine) Close() error {
	return e.client.Close()
}

// TesseractProcessor extracts text with a local Tesseract engine.
// The engine worker is created lazily on the first availability check
// or recognition call and retained for reuse.
//
// Thread-safety: the engine is not re-entrant, so all engine access is
// serialized through the processor mutex.
type TesseractProcessor struct {
	languages    []string
	preprocessor ImagePreprocessor
	logger       *logging.Logger

	mu        sync.Mutex
	engine    tesseractEngine
	newEngine func(languages []string) (tesseractEngine, error)
}

// NewTesseractProcessor creates the local OCR processor. The engine is
// not initialized until first use.
func NewTesseractProcessor(languages []string, pre ImagePreprocessor, logger *logging.Logger) *TesseractProcessor {
	if len(languages) == 0 {
		languages = []string{"deu", "eng"}
	}
	return &TesseractProcessor{
		languages:    languages,
		preprocessor: pre,
		logger:       logger.Named("tesseract"),
		newEngine:    newGosseractEngine,
	}
}

// Name returns the stable processor identifier.
func (p *TesseractProcessor) Name() string {
	return ProcessorTesseract
}

// Available lazily initializes the engine worker and reports whether
// initialization succeeded. A successfully created engine is retained
// for subsequent calls.
func (p *TesseractProcessor) Available(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureEngineLocked(); err != nil {
		p.logger.Warn("tesseract engine unavailable", zap.Error(err))
		return false
	}
	return true
}

// ensureEngineLocked creates the engine if needed. Caller holds mu.
func (p *TesseractProcessor) ensureEngineLocked() error {
	if p.engine != nil {
		return nil
	}
	engine, err := p.newEngine(p.languages)
	if err != nil {
		return err
	}
	p.engine = engine
	return nil
}

// ProcessImage preprocesses the document and runs local recognition.
// The engine-reported 0-100 score is normalized to [0,1].
func (p *TesseractProcessor) ProcessImage(ctx context.Context, image []byte, opts Options) (*core.OcrResult, error) {
	start := time.Now()

	if opts.DocumentContext == nil {
		return nil, core.ErrMissingContext("tesseract-processing")
	}

	pre, err := p.preprocessor.PreprocessImage(ctx, image, preprocess.Options{
		MimeType:     opts.DocumentContext.MimeType,
		EnhanceImage: opts.EnhanceImage,
		MinQuality:   opts.MinQuality,
	})
	if err != nil {
		return nil, core.WrapStep(err, core.ErrCodeOcrFailed, "tesseract-processing", "Tesseract Verarbeitungsfehler")
	}

	p.mu.Lock()
	if err := p.ensureEngineLocked(); err != nil {
		p.mu.Unlock()
		return nil, core.ErrOcr("tesseract-processing", err)
	}
	text, rawConfidence, err := p.engine.Recognize(pre.ProcessedImage)
	p.mu.Unlock()

	if err != nil {
		return nil, core.ErrOcr("tesseract-processing", err)
	}

	elapsed := time.Since(start)
	confidence := clamp01(rawConfidence / 100)

	p.logger.Debug("tesseract extraction complete",
		zap.Int("text_length", len(text)),
		zap.Float64("confidence", confidence),
		zap.Duration("elapsed", elapsed))

	return &core.OcrResult{
		Text:           text,
		Confidence:     confidence,
		Metadata:       pre.Metadata,
		ProcessingTime: elapsed,
		Processor:      p.Name(),
		Context:        enrichedContext(opts.DocumentContext, p.Name(), confidence, elapsed),
	}, nil
}

// Cleanup releases the engine worker. Idempotent.
func (p *TesseractProcessor) Cleanup() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.engine == nil {
		return nil
	}
	err := p.engine.Close()
	p.engine = nil
	return err
}
