package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"fjacquet/statement-import/internal/logging"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const extractionPrompt = `You are reading a bank statement%s.
List every transaction in the statement as a JSON array. Each element must be an object with:
  "date": transaction date as YYYY-MM-DD,
  "description": the transaction description as printed,
  "amount": signed number, negative for money leaving the account,
  "kind": "credit" or "debit",
  "balanceAfter": running balance after the transaction, or null,
  "rawText": the original statement line,
  "confidence": number between 0 and 1 expressing how sure you are about this row,
  "lineNumber": line number in the document, or null.
Do not include opening or closing balance lines. Respond with the JSON array only.`

// GeminiExtractor sends the statement file to Google Gemini and decodes the
// returned JSON array of candidates.
type GeminiExtractor struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
	logger    logging.Logger
}

// NewGeminiExtractor creates a Gemini client for modelName.
func NewGeminiExtractor(ctx context.Context, apiKey, modelName string, logger logging.Logger) (*GeminiExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiExtractor{
		client:    client,
		model:     client.GenerativeModel(modelName),
		modelName: modelName,
		logger:    logging.OrDefault(logger),
	}, nil
}

// Name returns "gemini".
func (g *GeminiExtractor) Name() string {
	return "gemini"
}

// Extract uploads the document inline and parses the model's answer.
func (g *GeminiExtractor) Extract(ctx context.Context, doc Document) ([]any, error) {
	mimeType := doc.MIMEType
	if mimeType == "" {
		mimeType = "application/pdf"
	}

	g.logger.Debug("Requesting Gemini extraction",
		logging.Field{Key: logging.FieldExtractor, Value: g.Name()},
		logging.Field{Key: logging.FieldFileName, Value: doc.FileName},
		logging.Field{Key: logging.FieldBank, Value: doc.BankHint},
		logging.Field{Key: logging.FieldModel, Value: g.modelName})

	resp, err := g.model.GenerateContent(ctx,
		genai.Blob{MIMEType: mimeType, Data: doc.Content},
		genai.Text(BuildPrompt(doc.BankHint)))
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, fmt.Errorf("no response from Gemini API")
	}
	return ParseCandidates(text)
}

// Close releases the underlying client.
func (g *GeminiExtractor) Close() error {
	return g.client.Close()
}

// BuildPrompt renders the extraction prompt, mentioning the bank when known.
func BuildPrompt(bankHint string) string {
	hint := ""
	if bankHint != "" {
		hint = fmt.Sprintf(" issued by %s", bankHint)
	}
	return fmt.Sprintf(extractionPrompt, hint)
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

// ParseCandidates decodes a JSON array of candidate objects from model output,
// tolerating surrounding prose and markdown code fences. Numbers are kept as
// json.Number so amounts do not lose precision.
func ParseCandidates(text string) ([]any, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("response does not contain a JSON array")
	}

	dec := json.NewDecoder(strings.NewReader(text[start : end+1]))
	dec.UseNumber()
	var out []any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode extraction response: %w", err)
	}
	return out, nil
}
