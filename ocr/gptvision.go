package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"insurance_backend/core"
	"insurance_backend/logging"
	"insurance_backend/preprocess"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// visionSystemPrompt instructs the vision model to extract everything
// it can read, flagging uncertain passages instead of failing.
const visionSystemPrompt = `Du bist ein Experte für die Analyse von Versicherungsdokumenten, insbesondere SUVA-Formulare.
Deine Aufgabe ist es, den gesamten Text aus dem Dokument zu extrahieren und alle wichtigen Informationen zu identifizieren.

Wichtige Anweisungen:
1. Extrahiere IMMER den kompletten Text, auch wenn das Bild nicht optimal ist
2. Versuche auch bei schlechter Bildqualität so viel wie möglich zu erkennen
3. Markiere unsichere Erkennungen mit [unsicher]
4. Gib NIEMALS eine Fehlermeldung zurück, sondern extrahiere so viel wie möglich

Achte besonders auf:
- Schaden-Nummer/Unfall-Nummer
- Persönliche Daten (Name, Geburtsdatum, AHV-Nummer)
- Unfalldatum und -zeit
- Unfallort und Beschreibung
- Arbeitgeber-Informationen

Formatiere die Ausgabe in klar strukturierten Abschnitten mit Überschriften.`

// visionAPI is the slice of the OpenAI client the processor uses.
// *openai.Client satisfies it.
type visionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// VisionProcessor extracts text via a vision-capable LLM over an
// OpenAI-compatible API. Available iff an API key is configured.
//
// Thread-safety: safe for concurrent use; the HTTP client handles
// concurrency internally.
type VisionProcessor struct {
	apiKey       string
	model        string
	maxTokens    int
	client       visionAPI
	preprocessor ImagePreprocessor
	logger       *logging.Logger
}

// NewVisionProcessor creates the GPT-Vision processor. An empty API
// key yields an unavailable processor, which is the normal fallback
// trigger rather than an error.
func NewVisionProcessor(cfg *core.Config, pre ImagePreprocessor, logger *logging.Logger) *VisionProcessor {
	p := &VisionProcessor{
		apiKey:       cfg.OpenAIAPIKey,
		model:        cfg.VisionModel,
		maxTokens:    cfg.MaxVisionTokens,
		preprocessor: pre,
		logger:       logger.Named("gpt4-vision"),
	}

	if cfg.OpenAIAPIKey != "" {
		clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
		if cfg.OpenAIBaseURL != "" {
			clientConfig.BaseURL = cfg.OpenAIBaseURL
		}
		p.client = openai.NewClientWithConfig(clientConfig)
	}
	return p
}

// newVisionProcessorWithClient wires an explicit API client. Used by
// tests.
func newVisionProcessorWithClient(client visionAPI, pre ImagePreprocessor, logger *logging.Logger) *VisionProcessor {
	return &VisionProcessor{
		apiKey:       "test-key",
		model:        core.DefaultVisionModel,
		maxTokens:    core.DefaultMaxVisionTokens,
		client:       client,
		preprocessor: pre,
		logger:       logger.Named("gpt4-vision"),
	}
}

// Name returns the stable processor identifier.
func (p *VisionProcessor) Name() string {
	return ProcessorGPTVision
}

// Available reports whether an API credential is configured.
func (p *VisionProcessor) Available(ctx context.Context) bool {
	return p.apiKey != "" && p.client != nil
}

// ProcessImage preprocesses the document, sends it to the vision model
// as a base64 data URL, and derives a confidence score from image
// quality and response characteristics.
func (p *VisionProcessor) ProcessImage(ctx context.Context, image []byte, opts Options) (*core.OcrResult, error) {
	start := time.Now()

	if opts.DocumentContext == nil {
		return nil, core.ErrMissingContext("gpt4-vision-processing")
	}

	pre, err := p.preprocessor.PreprocessImage(ctx, image, preprocess.Options{
		MimeType:     opts.DocumentContext.MimeType,
		EnhanceImage: opts.EnhanceImage,
		MinQuality:   opts.MinQuality,
	})
	if err != nil {
		return nil, core.WrapStep(err, core.ErrCodeOcrFailed, "gpt4-vision-processing", "GPT-4 Vision Verarbeitungsfehler")
	}

	base64Image := preprocess.ConvertToBase64(pre.ProcessedImage)

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: visionSystemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: fmt.Sprintf("Extrahiere den Text aus diesem Dokument: %s", opts.DocumentContext.FileName),
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: "data:image/png;base64," + base64Image,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, core.ErrOcr("gpt4-vision-processing", err)
	}

	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}

	elapsed := time.Since(start)
	confidence := deriveVisionConfidence(pre.Metadata.Quality, text)

	p.logger.Debug("vision extraction complete",
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

// deriveVisionConfidence computes the derived confidence for a vision
// response: start from image quality, halve for an empty response,
// x0.8 for a very short one, x0.9 when the response shows truncation
// or uncertainty markers. This penalty-only rule is the single
// deterministic policy for this processor.
func deriveVisionConfidence(imageQuality float64, text string) float64 {
	confidence := imageQuality

	if text == "" {
		confidence *= 0.5
	} else if len(text) < 50 {
		confidence *= 0.8
	}

	if strings.HasSuffix(text, "...") ||
		strings.Contains(text, "[unsicher]") ||
		strings.Contains(text, "[unlesbar]") ||
		strings.Contains(text, "[unklar]") {
		confidence *= 0.9
	}

	return clamp01(confidence)
}
