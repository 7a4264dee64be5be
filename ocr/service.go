package ocr

import (
	"context"
	"time"

	"insurance_backend/core"
	"insurance_backend/logging"

	"go.uber.org/zap"
)

// Service orchestrates one OCR run: validate the request, pick a
// backend through the factory, and normalize the result timing to the
// full end-to-end duration including selection overhead.
type Service struct {
	factory *Factory
	timeout time.Duration
	logger  *logging.Logger
}

// NewService creates the OCR orchestration service. timeout bounds one
// OCR run; zero disables the deadline.
func NewService(factory *Factory, timeout time.Duration, logger *logging.Logger) *Service {
	return &Service{
		factory: factory,
		timeout: timeout,
		logger:  logger.Named("ocr-service"),
	}
}

// ProcessDocument validates the request and runs OCR via the selected
// backend. The result's ProcessingTime covers the whole call, not just
// the backend's recognition step.
func (s *Service) ProcessDocument(ctx context.Context, image []byte, opts Options) (*core.OcrResult, error) {
	start := time.Now()

	if len(image) == 0 {
		return nil, core.ErrInvalidInput("ocr-service", "Kein Dokument zum Verarbeiten bereitgestellt")
	}
	if opts.DocumentContext == nil {
		return nil, core.ErrMissingContext("ocr-service")
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	processor, err := s.factory.GetProcessor(ctx, opts.PreferredProcessor)
	if err != nil {
		return nil, err
	}

	s.logger.Info("starting OCR",
		zap.String("processor", processor.Name()),
		zap.String("file", opts.DocumentContext.FileName),
		zap.Int64("size", opts.DocumentContext.FileSize))

	result, err := processor.ProcessImage(ctx, image, opts)
	if err != nil {
		return nil, core.WrapStep(err, core.ErrCodeOcrFailed, "ocr-service", "OCR Verarbeitungsfehler")
	}

	// Overwrite the backend timing with the end-to-end duration and
	// refresh the embedded context so it reflects the final figures.
	elapsed := time.Since(start)
	result.ProcessingTime = elapsed
	result.Context = enrichedContext(opts.DocumentContext, result.Processor, result.Confidence, elapsed)

	s.logger.Info("OCR complete",
		zap.String("processor", result.Processor),
		zap.Float64("confidence", result.Confidence),
		zap.Int("text_length", len(result.Text)),
		zap.Duration("elapsed", elapsed))

	return result, nil
}

// AvailableProcessors reports the identifiers of backends that can
// currently serve requests, in fallback order.
func (s *Service) AvailableProcessors(ctx context.Context) []string {
	var names []string
	for _, p := range s.factory.AvailableProcessors(ctx) {
		names = append(names, p.Name())
	}
	return names
}

// Cleanup releases backend resources held by the factory's processors.
func (s *Service) Cleanup() error {
	return s.factory.Cleanup()
}
