package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"insurance_backend/agent"
	"insurance_backend/classify"
	"insurance_backend/core"
	"insurance_backend/logging"
	"insurance_backend/metrics"
	"insurance_backend/notify"
	"insurance_backend/ocr"
	"insurance_backend/pipeline"
	"insurance_backend/preprocess"
	"insurance_backend/store"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Use fmt here since logger isn't initialized yet
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	isDevelopment := os.Getenv("DEV_MODE") == "true"

	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "app.log"
	}

	logger, err := logging.NewLogger(isDevelopment, logFile)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Printf("Failed to sync logger: %v\n", syncErr)
		}
	}()

	config, err := core.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Configuration loaded",
		zap.String("vision_model", config.VisionModel),
		zap.String("classifier_model", config.ClassifierModel),
		zap.Strings("tesseract_languages", config.TesseractLanguages),
		zap.Int("max_retries", config.MaxRetries),
		zap.Duration("retry_delay", config.RetryDelay),
		zap.Duration("processing_timeout", config.ProcessingTimeout),
		zap.String("database", config.DatabasePath),
		zap.Bool("openai_configured", config.HasOpenAI()),
		zap.Bool("dev_mode", isDevelopment),
	)

	if dir := filepath.Dir(config.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Fatal("Failed to create database directory", zap.Error(err))
		}
	}

	if err := store.RunMigrationsFromPath(config.DatabasePath, config.MigrationsPath); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	db, err := store.NewSQLiteConnectionWithDefaults(config.DatabasePath)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	preprocessor := preprocess.NewPreprocessor(preprocess.DefaultConfig(), logger)
	factory := ocr.NewFactory(config, preprocessor, logger)
	defer func() {
		if err := factory.Cleanup(); err != nil {
			logger.Warn("OCR cleanup failed", zap.Error(err))
		}
	}()
	ocrService := ocr.NewService(factory, config.OCRTimeout, logger)

	classifier, err := classify.NewClassifier(config, logger)
	if err != nil {
		logger.Fatal("Failed to build classifier", zap.Error(err))
	}

	docAgent := agent.NewAgent(ocrService, classifier, config.SupportedMimeTypes, logger)

	var notifier pipeline.Notifier
	if config.WebhookURL != "" {
		notifier = notify.NewWebhook(config.WebhookURL, logger)
	} else {
		notifier = notify.NewLogNotifier(logger)
	}

	collector := metrics.NewCollector()
	manager := pipeline.NewManager(
		docAgent,
		store.NewStatusStore(db),
		store.NewRecordStore(db),
		notifier,
		collector,
		pipeline.ManagerConfigFromCore(config),
		logger,
	)

	files := os.Args[1:]
	if len(files) == 0 {
		fmt.Println("Usage: insurance_backend <document> [document ...]")
		fmt.Println("Supported formats: PDF, JPEG, PNG")
		os.Exit(1)
	}

	available := ocrService.AvailableProcessors(context.Background())
	logger.Info("OCR processors ready", zap.Strings("available", available))

	ids := make([]string, 0, len(files))
	for _, path := range files {
		doc, err := loadDocument(path, config.MaxFileSize)
		if err != nil {
			color.Red("✗ %s: %v", path, err)
			continue
		}
		id := manager.ProcessDocument(doc)
		ids = append(ids, id)
		color.Cyan("→ %s queued as %s", doc.FileName, id)
	}

	for _, id := range ids {
		watchJob(manager, id)
	}
	manager.Wait()

	snapshot := collector.Snapshot()
	logger.Info("Run complete",
		zap.Int64("completed", snapshot.JobsCompleted),
		zap.Int64("failed", snapshot.JobsFailed),
		zap.Int64("retries", snapshot.Retries),
		zap.Duration("avg_duration", snapshot.AvgDuration))

	if snapshot.JobsFailed > 0 {
		os.Exit(1)
	}
}

// loadDocument reads one upload from disk and derives its MIME type
// from the file extension.
func loadDocument(path string, maxSize int64) (*core.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxSize {
		return nil, fmt.Errorf("file exceeds maximum size of %d bytes", maxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var mimeType string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		mimeType = "application/pdf"
	case ".jpg", ".jpeg":
		mimeType = "image/jpeg"
	case ".png":
		mimeType = "image/png"
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", filepath.Ext(path))
	}

	return &core.Document{
		File:     data,
		FileName: filepath.Base(path),
		MimeType: mimeType,
		FileSize: info.Size(),
	}, nil
}

// watchJob polls one job until it terminates, printing milestone
// transitions.
func watchJob(manager *pipeline.Manager, processID string) {
	lastProgress := -1
	for {
		p, ok := manager.GetProgress(processID)
		if !ok {
			return
		}
		if p.Progress != lastProgress || p.Status == pipeline.StatusFailed {
			lastProgress = p.Progress
			switch p.Status {
			case pipeline.StatusCompleted:
				color.Green("✓ %s [%3d%%] %s (%s)", processID, p.Progress, p.Message, p.DocumentType)
				return
			case pipeline.StatusFailed:
				msg := p.Message
				if p.Error != nil {
					msg = fmt.Sprintf("%s: %s [%s]", p.Message, p.Error.Message, p.Error.Code)
				}
				color.Red("✗ %s %s", processID, msg)
				return
			default:
				color.Yellow("… %s [%3d%%] %s", processID, p.Progress, p.Message)
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
}
