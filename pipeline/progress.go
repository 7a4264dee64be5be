package pipeline

import (
	"time"

	"insurance_backend/core"
)

// Job statuses. The state machine is linear with a single absorbing
// failed state reachable from every processing step.
const (
	StatusQueued                   = "queued"
	StatusProcessingOCR            = "processing_ocr"
	StatusProcessingClassification = "processing_classification"
	StatusProcessingStorage        = "processing_storage"
	StatusCompleted                = "completed"
	StatusFailed                   = "failed"
)

// Progress milestones per status.
const (
	ProgressQueued         = 0
	ProgressOCR            = 25
	ProgressClassification = 50
	ProgressStorage        = 75
	ProgressCompleted      = 100
)

// Pipeline steps. CurrentStep names the stage a job is in; a completed
// job keeps the storage step, a failed job keeps the step it died in.
const (
	StepUpload         = "upload"
	StepOCR            = "ocr"
	StepClassification = "classification"
	StepStorage        = "storage"
)

// ErrorDetail is the failure payload attached to a failed job. Retries
// overwrite it in place; a job carries at most one.
type ErrorDetail struct {
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Step       string    `json:"step"`
	RetryCount int       `json:"retryCount"`
	Timestamp  time.Time `json:"timestamp"`
}

// ProcessingProgress is the per-job status record. The manager's
// in-memory map is the in-process source of truth; every update is
// also emitted to the status store.
type ProcessingProgress struct {
	ProcessID    string            `json:"processId"`
	Status       string            `json:"status"`
	CurrentStep  string            `json:"currentStep"`
	Progress     int               `json:"progress"`
	Message      string            `json:"message"`
	DocumentType core.DocumentType `json:"documentType,omitempty"`
	RetryCount   int               `json:"retryCount"`
	StartedAt    time.Time         `json:"startedAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	CompletedAt  *time.Time        `json:"completedAt,omitempty"`
	Error        *ErrorDetail      `json:"error,omitempty"`
}

// Notification is the fire-and-forget completion payload sent once per
// successfully completed job.
type Notification struct {
	ProcessID     string            `json:"processId"`
	DocumentType  core.DocumentType `json:"documentType"`
	ExtractedText string            `json:"extractedText"`
	Metadata      map[string]any    `json:"metadata"`
}
