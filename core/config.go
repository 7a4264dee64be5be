package core

import (
	"fmt"
	"time"
)

// Default configuration values.
const (
	DefaultVisionModel       = "gpt-4o"
	DefaultClassifierModel   = "gpt-4"
	DefaultMaxVisionTokens   = 4096
	DefaultMaxRetries        = 2
	DefaultRetryDelayMS      = 2000
	DefaultOCRTimeoutMS      = 30000
	DefaultProcessingTimeout = 300000
	DefaultMaxFileSize       = 10 * 1024 * 1024
)

// Config holds all configuration values for the document pipeline.
type Config struct {
	// OpenAI credentials. An empty OpenAIAPIKey is not an error: it
	// means the GPT-Vision processor and the LLM classifier stage are
	// unavailable and the pipeline falls back to local processing.
	OpenAIAPIKey  string
	OpenAIBaseURL string

	// Model selection
	VisionModel     string
	ClassifierModel string
	MaxVisionTokens int

	// Tesseract configuration
	TesseractLanguages []string

	// Upload constraints
	SupportedMimeTypes []string
	MaxFileSize        int64

	// Retry / timeout policy
	MaxRetries        int
	RetryDelay        time.Duration
	OCRTimeout        time.Duration
	ProcessingTimeout time.Duration

	// Storage
	DatabasePath   string
	MigrationsPath string

	// Notification
	WebhookURL string

	// Classifier rule overrides (optional YAML file path)
	RulesPath string

	// Logging / runtime flags
	LogFilePath string
	DevMode     bool
	TestMode    bool
}

// LoadConfig loads configuration from environment variables with
// sensible defaults. Call godotenv.Load first if a .env file should be
// honored.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		OpenAIAPIKey:  GetEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIBaseURL: GetEnvOrDefault("OPENAI_API_BASE_URL", ""),

		VisionModel:     GetEnvOrDefault("OCR_VISION_MODEL", DefaultVisionModel),
		ClassifierModel: GetEnvOrDefault("CLASSIFIER_MODEL", DefaultClassifierModel),
		MaxVisionTokens: ParseIntEnv("OCR_VISION_MAX_TOKENS", DefaultMaxVisionTokens),

		TesseractLanguages: ParseListEnv("TESSERACT_LANGUAGES", []string{"deu", "eng"}),

		SupportedMimeTypes: ParseListEnv("SUPPORTED_MIME_TYPES", []string{
			"application/pdf",
			"image/jpeg",
			"image/png",
		}),
		MaxFileSize: ParseInt64Env("MAX_FILE_SIZE", DefaultMaxFileSize),

		MaxRetries:        ParseIntEnv("MAX_RETRIES", DefaultMaxRetries),
		RetryDelay:        ParseDurationMSEnv("RETRY_DELAY_MS", DefaultRetryDelayMS),
		OCRTimeout:        ParseDurationMSEnv("OCR_TIMEOUT_MS", DefaultOCRTimeoutMS),
		ProcessingTimeout: ParseDurationMSEnv("PROCESSING_TIMEOUT_MS", DefaultProcessingTimeout),

		DatabasePath:   GetEnvOrDefault("DATABASE_PATH", "data/documents.db"),
		MigrationsPath: GetEnvOrDefault("MIGRATIONS_PATH", "file://store/migrations"),

		WebhookURL: GetEnvOrDefault("NOTIFY_WEBHOOK_URL", ""),
		RulesPath:  GetEnvOrDefault("CLASSIFIER_RULES_PATH", ""),

		LogFilePath: GetEnvOrDefault("LOG_FILE", "app.log"),
		DevMode:     ParseBoolEnv("DEV_MODE", false),
		TestMode:    ParseBoolEnv("TEST_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants that would otherwise fail
// deep inside the pipeline.
func (c *Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must be >= 0, got %d", c.MaxRetries)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("RETRY_DELAY_MS must be >= 0, got %v", c.RetryDelay)
	}
	if c.ProcessingTimeout <= 0 {
		return fmt.Errorf("PROCESSING_TIMEOUT_MS must be > 0, got %v", c.ProcessingTimeout)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be > 0, got %d", c.MaxFileSize)
	}
	if len(c.SupportedMimeTypes) == 0 {
		return fmt.Errorf("SUPPORTED_MIME_TYPES must not be empty")
	}
	return nil
}

// HasOpenAI reports whether an OpenAI credential is configured.
func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
