package ocr

import (
	"context"

	"insurance_backend/core"
	"insurance_backend/logging"

	"go.uber.org/zap"
)

// Factory selects an OCR backend for each request. Processors are
// registered once at construction; availability is re-checked on every
// selection so a backend that becomes reachable (or loses its
// credential) is picked up without a restart.
type Factory struct {
	order      []string
	processors map[string]Processor
	logger     *logging.Logger
}

// NewFactory wires the standard two-tier setup: GPT-Vision first,
// Tesseract as the local fallback.
func NewFactory(cfg *core.Config, pre ImagePreprocessor, logger *logging.Logger) *Factory {
	f := newFactoryWithProcessors(logger,
		NewVisionProcessor(cfg, pre, logger),
		NewTesseractProcessor(cfg.TesseractLanguages, pre, logger),
	)
	return f
}

// newFactoryWithProcessors registers the given processors in fallback
// order. Used directly by tests.
func newFactoryWithProcessors(logger *logging.Logger, processors ...Processor) *Factory {
	f := &Factory{
		processors: make(map[string]Processor, len(processors)),
		logger:     logger.Named("ocr-factory"),
	}
	for _, p := range processors {
		f.order = append(f.order, p.Name())
		f.processors[p.Name()] = p
	}
	return f
}

// GetProcessor returns the best available processor. A preferred
// processor is honored when it exists and is available; otherwise
// selection walks the registration order. When no backend is available
// the call fails with NO_PROCESSOR_AVAILABLE.
func (f *Factory) GetProcessor(ctx context.Context, preferred string) (Processor, error) {
	if preferred != "" {
		if p, ok := f.processors[preferred]; ok && p.Available(ctx) {
			return p, nil
		}
		f.logger.Debug("preferred processor unavailable, falling back",
			zap.String("preferred", preferred))
	}

	for _, name := range f.order {
		if p := f.processors[name]; p.Available(ctx) {
			f.logger.Debug("selected OCR processor", zap.String("processor", name))
			return p, nil
		}
	}

	return nil, core.ErrNoProcessorAvailable()
}

// AvailableProcessors returns the currently available backends in
// fallback order.
func (f *Factory) AvailableProcessors(ctx context.Context) []Processor {
	var available []Processor
	for _, name := range f.order {
		if p := f.processors[name]; p.Available(ctx) {
			available = append(available, p)
		}
	}
	return available
}

// Cleanup releases every processor that holds engine resources.
// The first error is returned; cleanup still runs for all processors.
func (f *Factory) Cleanup() error {
	var firstErr error
	for _, name := range f.order {
		cp, ok := f.processors[name].(CleanupProcessor)
		if !ok {
			continue
		}
		if err := cp.Cleanup(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
