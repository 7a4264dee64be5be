// Package pipeline owns the asynchronous document-processing jobs: the
// in-memory queue, the per-job state machine with bounded retries, and
// the progress emission to the external status store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"insurance_backend/agent"
	"insurance_backend/core"
	"insurance_backend/logging"
	"insurance_backend/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DocumentProcessor is the per-document pipeline the manager drives.
// *agent.Agent satisfies it.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, doc *core.Document) *agent.ProcessingResult
}

// StatusStore receives every progress update. Upsert must be
// idempotent per process id; failures never fail a job.
type StatusStore interface {
	Upsert(ctx context.Context, progress ProcessingProgress) error
}

// RecordStore persists the typed document record of a completed job.
type RecordStore interface {
	Insert(ctx context.Context, record core.DocumentRecord) error
}

// Notifier is invoked once per successfully completed job.
// Fire-and-forget: failures are logged, never propagated.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// ManagerConfig bounds the retry loop and the per-attempt deadline.
type ManagerConfig struct {
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// ManagerConfigFromCore maps the process configuration onto the
// manager knobs.
func ManagerConfigFromCore(cfg *core.Config) ManagerConfig {
	return ManagerConfig{
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Timeout:    cfg.ProcessingTimeout,
	}
}

// JobOptions overrides the manager's retry knobs for a single job.
// Nil fields keep the configured defaults.
type JobOptions struct {
	MaxRetries *int
	RetryDelay *time.Duration
}

// apply resolves the per-job configuration from the manager defaults.
func (o JobOptions) apply(base ManagerConfig) ManagerConfig {
	if o.MaxRetries != nil && *o.MaxRetries >= 0 {
		base.MaxRetries = *o.MaxRetries
	}
	if o.RetryDelay != nil && *o.RetryDelay >= 0 {
		base.RetryDelay = *o.RetryDelay
	}
	return base
}

// Manager runs document jobs asynchronously. ProcessDocument returns a
// process id immediately; a detached goroutine drives the attempt loop
// and emits milestone updates.
//
// Thread-safety: safe for concurrent use; the progress map is guarded
// by a mutex and jobs never share state.
type Manager struct {
	processor DocumentProcessor
	statuses  StatusStore
	records   RecordStore
	notifier  Notifier
	collector *metrics.Collector
	config    ManagerConfig
	logger    *logging.Logger

	mu       sync.Mutex
	progress map[string]*ProcessingProgress

	wg sync.WaitGroup
}

// NewManager wires the processing manager with its collaborators.
func NewManager(processor DocumentProcessor, statuses StatusStore, records RecordStore, notifier Notifier, collector *metrics.Collector, config ManagerConfig, logger *logging.Logger) *Manager {
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	return &Manager{
		processor: processor,
		statuses:  statuses,
		records:   records,
		notifier:  notifier,
		collector: collector,
		config:    config,
		logger:    logger.Named("pipeline"),
		progress:  make(map[string]*ProcessingProgress),
	}
}

// ProcessDocument queues one document and returns its process id
// immediately. The job runs on a detached goroutine. At most one
// JobOptions value is honored; it overrides the retry knobs for this
// job only.
func (m *Manager) ProcessDocument(doc *core.Document, opts ...JobOptions) string {
	processID := uuid.NewString()

	config := m.config
	if len(opts) > 0 {
		config = opts[0].apply(config)
	}

	m.update(processID, func(p *ProcessingProgress) {
		p.Status = StatusQueued
		p.CurrentStep = StepUpload
		p.Progress = ProgressQueued
		p.Message = "Dokument in Warteschlange"
		p.StartedAt = time.Now()
	})
	m.collector.JobStarted()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(processID, doc, config)
	}()

	m.logger.Info("document queued",
		zap.String("process_id", processID),
		zap.String("file", doc.FileName))

	return processID
}

// GetProgress returns a copy of the job's current progress record.
func (m *Manager) GetProgress(processID string) (ProcessingProgress, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.progress[processID]
	if !ok {
		return ProcessingProgress{}, false
	}
	return *p, true
}

// Wait blocks until every queued job has terminated. Used at shutdown
// and by tests.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// run drives the whole-pipeline attempt loop: the first attempt plus
// up to MaxRetries retries with a fixed delay, then terminal failure.
func (m *Manager) run(processID string, doc *core.Document, config ManagerConfig) {
	start := time.Now()

	var lastErr *core.ProcessingError
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			m.collector.RetryScheduled()
			m.update(processID, func(p *ProcessingProgress) {
				p.RetryCount = attempt
				p.Message = fmt.Sprintf("Verarbeitung wird wiederholt (Versuch %d von %d)", attempt, config.MaxRetries)
			})
			time.Sleep(config.RetryDelay)
		}

		err := m.runAttempt(processID, doc, config)
		if err == nil {
			m.collector.JobCompleted(time.Since(start))
			return
		}

		lastErr = err
		m.logger.Warn("processing attempt failed",
			zap.String("process_id", processID),
			zap.Int("attempt", attempt+1),
			zap.String("code", err.Code),
			zap.Error(err))
	}

	m.collector.JobFailed()
	m.update(processID, func(p *ProcessingProgress) {
		p.Status = StatusFailed
		p.Message = "Verarbeitung fehlgeschlagen"
		p.Error = &ErrorDetail{
			Code:       lastErr.Code,
			Message:    lastErr.Message,
			Step:       lastErr.Step,
			RetryCount: config.MaxRetries,
			Timestamp:  time.Now(),
		}
	})
	m.logger.Error("job failed terminally",
		zap.String("process_id", processID),
		zap.String("code", lastErr.Code),
		zap.Int("attempts", config.MaxRetries+1))
}

// runAttempt executes one full pipeline pass under the per-attempt
// deadline. Every error return is retryable; the caller owns the
// budget.
func (m *Manager) runAttempt(processID string, doc *core.Document, config ManagerConfig) *core.ProcessingError {
	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	m.update(processID, func(p *ProcessingProgress) {
		p.Status = StatusProcessingOCR
		p.CurrentStep = StepOCR
		p.Progress = ProgressOCR
		p.Message = "Texterkennung läuft"
	})

	result := m.processor.ProcessDocument(ctx, doc)
	if !result.Success {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return core.ErrTimeout("document-processing")
		}
		if result.Error != nil {
			return result.Error
		}
		return core.ErrOcr("document-processing", fmt.Errorf("processing failed without error detail"))
	}

	m.update(processID, func(p *ProcessingProgress) {
		p.Status = StatusProcessingClassification
		p.CurrentStep = StepClassification
		p.Progress = ProgressClassification
		p.Message = "Dokument wird klassifiziert"
		p.DocumentType = result.DocumentType
	})

	m.update(processID, func(p *ProcessingProgress) {
		p.Status = StatusProcessingStorage
		p.CurrentStep = StepStorage
		p.Progress = ProgressStorage
		p.Message = "Ergebnisse werden gespeichert"
	})

	record := core.DocumentRecord{
		ProcessID:     processID,
		Type:          result.DocumentType,
		FileName:      doc.FileName,
		MimeType:      doc.MimeType,
		ExtractedText: result.Data.ExtractedText,
		Confidence:    result.Confidence,
		Fields:        result.Classification.ExtractedData,
		CreatedAt:     time.Now(),
	}
	if err := m.records.Insert(ctx, record); err != nil {
		return core.ErrStorage(err)
	}

	m.update(processID, func(p *ProcessingProgress) {
		p.Status = StatusCompleted
		p.Progress = ProgressCompleted
		p.Message = "Verarbeitung abgeschlossen"
		now := time.Now()
		p.CompletedAt = &now
	})

	m.notify(ctx, Notification{
		ProcessID:     processID,
		DocumentType:  result.DocumentType,
		ExtractedText: result.Data.ExtractedText,
		Metadata:      result.Data.Metadata,
	})

	return nil
}

// update mutates the in-memory progress record under the lock and
// emits the new snapshot to the status store.
func (m *Manager) update(processID string, mutate func(*ProcessingProgress)) {
	m.mu.Lock()
	p, ok := m.progress[processID]
	if !ok {
		p = &ProcessingProgress{ProcessID: processID}
		m.progress[processID] = p
	}
	mutate(p)
	p.UpdatedAt = time.Now()
	snapshot := *p
	m.mu.Unlock()

	m.emit(snapshot)
}

// emit pushes one progress snapshot to the status store.
// Fire-and-forget: a failed write is logged as an emission failure and
// never fails the job.
func (m *Manager) emit(p ProcessingProgress) {
	if m.statuses == nil {
		return
	}
	if err := m.statuses.Upsert(context.Background(), p); err != nil {
		emErr := core.ErrEmission(err)
		m.logger.Warn("status emission failed",
			zap.String("process_id", p.ProcessID),
			zap.String("code", emErr.Code),
			zap.Error(err))
	}
}

// notify invokes the completion notifier. Failures are logged only.
func (m *Manager) notify(ctx context.Context, n Notification) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, n); err != nil {
		m.logger.Warn("completion notification failed",
			zap.String("process_id", n.ProcessID),
			zap.Error(err))
	}
}
