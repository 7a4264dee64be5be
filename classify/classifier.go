// Package classify implements two-stage document classification:
// weighted keyword scoring with rule-based field extraction, escalated
// to an LLM only for low-confidence results.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"insurance_backend/core"
	"insurance_backend/logging"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// escalationThreshold is the stage-1 confidence below which the LLM
// stage runs (when a client is configured).
const escalationThreshold = 0.8

// classifierSystemPrompt instructs the escalation model to return the
// strict JSON shape the parser expects.
const classifierSystemPrompt = `Du bist ein Klassifizierer für Versicherungsdokumente.
Klassifiziere den folgenden Dokumenttext als einen dieser Typen:
- accident_report (Unfallbericht)
- damage_report (Schadensmeldung)
- contract_change (Vertragsänderung)
- miscellaneous (Sonstiges)

Extrahiere zusätzlich strukturierte Felder (Daten, Ort, Schadenart, Änderungsart, Versicherungsnummer), soweit vorhanden.

Antworte AUSSCHLIESSLICH mit einem JSON-Objekt in genau dieser Form, ohne weiteren Text:
{"type": "<typ>", "confidence": <0.0-1.0>, "extractedData": {<feld>: <wert>}}`

// classifierAPI is the slice of the OpenAI client the escalation stage
// uses. *openai.Client satisfies it.
type classifierAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Classifier is the document classifier. Stage 1 always runs; stage 2
// runs only below the confidence threshold when an LLM client is
// configured and test mode is off.
//
// Thread-safety: safe for concurrent use; the rule set is immutable
// after construction.
type Classifier struct {
	rules    *compiledRules
	client   classifierAPI
	model    string
	testMode bool
	logger   *logging.Logger
}

// NewClassifier builds the classifier from configuration. Without an
// API key the classifier is purely rule-based.
func NewClassifier(cfg *core.Config, logger *logging.Logger) (*Classifier, error) {
	rules, err := LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, err
	}
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}

	c := &Classifier{
		rules:    compiled,
		model:    cfg.ClassifierModel,
		testMode: cfg.TestMode,
		logger:   logger.Named("classifier"),
	}
	if cfg.OpenAIAPIKey != "" {
		clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
		if cfg.OpenAIBaseURL != "" {
			clientConfig.BaseURL = cfg.OpenAIBaseURL
		}
		c.client = openai.NewClientWithConfig(clientConfig)
	}
	return c, nil
}

// newClassifierWithClient wires an explicit rule set and API client.
// Used by tests.
func newClassifierWithClient(rules Rules, client classifierAPI, logger *logging.Logger) (*Classifier, error) {
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	return &Classifier{
		rules:  compiled,
		client: client,
		model:  core.DefaultClassifierModel,
		logger: logger.Named("classifier"),
	}, nil
}

// ClassifyDocument classifies the extracted document text and returns
// the winning type, confidence, and extracted fields.
func (c *Classifier) ClassifyDocument(ctx context.Context, text string) (*core.ClassificationResult, error) {
	start := time.Now()

	if strings.TrimSpace(text) == "" {
		return nil, core.ErrInvalidInput("classification", "Kein Text zum Klassifizieren bereitgestellt")
	}

	docType, confidence := c.scoreKeywords(text)
	fields := c.extractFields(text, docType)
	method := core.MethodRuleBased

	c.logger.Debug("stage-1 classification",
		zap.String("type", string(docType)),
		zap.Float64("confidence", confidence))

	if confidence < escalationThreshold && c.client != nil && !c.testMode {
		llmResult, err := c.classifyWithLLM(ctx, text)
		if err != nil {
			return nil, err
		}
		// Higher-confidence stage wins type and confidence; extracted
		// fields always merge, LLM values winning key collisions.
		if llmResult.confidence > confidence {
			docType = llmResult.docType
			confidence = llmResult.confidence
			method = core.MethodLLM
		}
		for k, v := range llmResult.fields {
			fields[k] = v
		}
	}

	result := &core.ClassificationResult{
		Type:           docType,
		Confidence:     clamp01(confidence),
		ExtractedData:  fields,
		Method:         method,
		ProcessingTime: time.Since(start),
		Timestamp:      time.Now(),
	}

	c.logger.Info("classification complete",
		zap.String("type", string(result.Type)),
		zap.Float64("confidence", result.Confidence),
		zap.String("method", string(result.Method)))

	return result, nil
}

// scoreKeywords runs the weighted substring match over all candidate
// types. High-weight keywords count +2, medium-weight +1; the raw
// score is normalized by maxRawScore and clamped. A zero score for
// every type yields miscellaneous.
func (c *Classifier) scoreKeywords(text string) (core.DocumentType, float64) {
	lower := strings.ToLower(text)

	bestType := core.MiscellaneousDocument
	bestScore := 0

	for _, rule := range c.rules.types {
		score := 0
		for _, kw := range rule.highWeight {
			if strings.Contains(lower, kw) {
				score += 2
			}
		}
		for _, kw := range rule.mediumWeight {
			if strings.Contains(lower, kw) {
				score += 1
			}
		}
		// Strictly-greater keeps the earliest type on ties.
		if score > bestScore {
			bestScore = score
			bestType = rule.docType
		}
	}

	if bestScore == 0 {
		return core.MiscellaneousDocument, 0
	}
	return bestType, clamp01(float64(bestScore) / maxRawScore)
}

// extractFields runs the rule-based patterns: all dates, the common
// patterns, and the winning type's single field.
func (c *Classifier) extractFields(text string, docType core.DocumentType) map[string]any {
	fields := make(map[string]any)

	if c.rules.datePattern != nil {
		if dates := c.rules.datePattern.FindAllString(text, -1); len(dates) > 0 {
			fields["dates"] = dates
		}
	}

	for name, re := range c.rules.commonPatterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			fields[name] = strings.TrimSpace(m[1])
		}
	}

	for _, rule := range c.rules.types {
		if rule.docType != docType || rule.fieldPattern == nil {
			continue
		}
		if m := rule.fieldPattern.FindStringSubmatch(text); len(m) > 1 {
			fields[rule.fieldName] = strings.TrimSpace(m[1])
		}
	}

	return fields
}

// llmClassification is the parsed stage-2 outcome.
type llmClassification struct {
	docType    core.DocumentType
	confidence float64
	fields     map[string]any
}

// llmResponse is the strict JSON shape the escalation model must
// return.
type llmResponse struct {
	Type          string         `json:"type"`
	Confidence    float64        `json:"confidence"`
	ExtractedData map[string]any `json:"extractedData"`
}

// classifyWithLLM sends the text to the escalation model and parses the
// strict JSON reply. Any shape violation is a classification error.
func (c *Classifier) classifyWithLLM(ctx context.Context, text string) (*llmClassification, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return nil, core.ErrClassification(err)
	}
	if len(resp.Choices) == 0 {
		return nil, core.ErrClassification(fmt.Errorf("empty LLM response"))
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)

	var parsed llmResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, core.ErrClassification(fmt.Errorf("invalid JSON response: %w", err))
	}

	docType := core.DocumentType(parsed.Type)
	if !docType.IsValid() {
		return nil, core.ErrClassification(fmt.Errorf("unknown document type in LLM response: %q", parsed.Type))
	}
	if parsed.Confidence < 0 || parsed.Confidence > 1 {
		return nil, core.ErrClassification(fmt.Errorf("LLM confidence %f out of range", parsed.Confidence))
	}

	fields := parsed.ExtractedData
	if fields == nil {
		fields = map[string]any{}
	}

	c.logger.Debug("stage-2 classification",
		zap.String("type", parsed.Type),
		zap.Float64("confidence", parsed.Confidence))

	return &llmClassification{
		docType:    docType,
		confidence: parsed.Confidence,
		fields:     fields,
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
