package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/level10nurd/documentExtraction/internal/extractor"
	"github.com/level10nurd/documentExtraction/internal/models"
	"github.com/level10nurd/documentExtraction/pkg/utils"
	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultMaxTextChars bounds the document text sent with one request
const DefaultMaxTextChars = 12000

// Config configures the OpenAI extractor
type Config struct {
	APIKey       string
	Model        string
	BaseURL      string
	PromptsPath  string
	MaxTextChars int
}

// OpenAIExtractor reads invoices of vendors without a rule set through chat completions
type OpenAIExtractor struct {
	client   *openai.Client
	model    string
	prompts  *PromptConfig
	maxChars int
	logger   *zap.Logger
}

// NewOpenAIExtractor creates an extractor. It fails when the prompts cannot be loaded.
func NewOpenAIExtractor(cfg Config, logger *zap.Logger) (*OpenAIExtractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	prompts, err := LoadPrompts(cfg.PromptsPath)
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = DefaultMaxTextChars
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIExtractor{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		prompts:  prompts,
		maxChars: cfg.MaxTextChars,
		logger:   logger,
	}, nil
}

type promptData struct {
	Filename   string
	VendorHint string
	Text       string
}

type extractedItem struct {
	Quantity    decimal.NullDecimal `json:"quantity"`
	ItemCode    string              `json:"item_code"`
	Description string              `json:"description"`
	PriceEach   decimal.NullDecimal `json:"price_each"`
	Amount      decimal.NullDecimal `json:"amount"`
}

type extractedInvoice struct {
	Vendor        string              `json:"vendor"`
	InvoiceNumber string              `json:"invoice_number"`
	InvoiceDate   string              `json:"invoice_date"`
	PONumber      string              `json:"po_number"`
	Subtotal      decimal.NullDecimal `json:"subtotal"`
	SalesTax      decimal.NullDecimal `json:"sales_tax"`
	Total         decimal.NullDecimal `json:"total"`
	LineItems     []extractedItem     `json:"line_items"`
}

// Extract asks the model for the invoice fields. hint may be VendorUnknown.
// Rate limiting and server errors are returned wrapped in models.ErrTransient.
func (e *OpenAIExtractor) Extract(ctx context.Context, text, filename string, hint models.Vendor) (*models.Record, error) {
	p := e.prompts.InvoiceExtraction

	data := promptData{Filename: filename, Text: truncate(text, e.maxChars)}
	if hint.IsKnown() {
		data.VendorHint = hint.String()
	}
	prompt, err := renderTemplate(p.UserTemplate, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrExtraction, err)
	}

	e.logger.Debug("Requesting LLM extraction",
		zap.String("file", filename),
		zap.String("model", e.model),
		zap.Int("prompt_chars", len(prompt)))

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		e.logger.Warn("OpenAI call failed", zap.String("file", filename), zap.Error(err))
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no response from OpenAI", models.ErrExtraction)
	}

	content := resp.Choices[0].Message.Content
	raw := extractJSON(content)
	if raw == "" {
		return nil, fmt.Errorf("%w: response is not JSON", models.ErrExtraction)
	}

	var out extractedInvoice
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		e.logger.Error("Failed to parse extraction result",
			zap.Error(err),
			zap.String("content", content))
		return nil, fmt.Errorf("%w: failed to parse response: %w", models.ErrExtraction, err)
	}

	return toRecord(&out, filename, hint), nil
}

func toRecord(out *extractedInvoice, filename string, hint models.Vendor) *models.Record {
	vendor := hint
	if !vendor.IsKnown() {
		vendor = models.ParseVendor(out.Vendor)
	}

	r := models.NewRecord(vendor, filename)
	r.ExtractionMethod = models.ExtractionMethodLLM

	// Models sometimes answer with a sentence instead of the number
	number := extractor.CleanInvoiceNumber(out.InvoiceNumber)
	switch err := utils.ValidateInvoiceNumber(number); {
	case err != nil:
		r.AddError(err.Error())
	case number == "":
		r.AddError(extractor.MsgNoInvoiceNumber)
	default:
		r.InvoiceNumber = number
	}
	if d, ok := extractor.ParseDate(out.InvoiceDate); ok {
		r.InvoiceDate = d
	} else {
		r.AddError(extractor.MsgNoInvoiceDate)
	}
	r.PONumber = extractor.CleanPONumber(out.PONumber)

	r.Subtotal = out.Subtotal
	r.SalesTax = out.SalesTax
	r.Total = out.Total
	if !r.Total.Valid {
		r.AddError(extractor.MsgNoTotal)
	}

	for _, it := range out.LineItems {
		if !it.Amount.Valid {
			continue
		}
		item := models.LineItem{
			Quantity:    decimal.NewFromInt(1),
			ItemCode:    strings.TrimSpace(it.ItemCode),
			Description: strings.TrimSpace(it.Description),
			PriceEach:   it.PriceEach,
			Amount:      it.Amount.Decimal,
		}
		if it.Quantity.Valid {
			item.Quantity = it.Quantity.Decimal
		}
		r.LineItems = append(r.LineItems, item)
	}
	return r
}

// classify maps client errors onto the per-file error kinds
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", models.ErrTimeout, err)
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %w: %w", models.ErrExtraction, models.ErrTransient, err)
	}
	return fmt.Errorf("%w: %w", models.ErrExtraction, err)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// extractJSON returns the first balanced JSON object in content,
// which may be wrapped in a markdown code fence
func extractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}
	end := findJSONEnd(content, start)
	if end <= start {
		return ""
	}
	return content[start:end]
}

// findJSONEnd finds the end of JSON content starting at a given position
func findJSONEnd(content string, start int) int {
	depth := 0
	inString := false
	escapeNext := false

	for i := start; i < len(content); i++ {
		c := content[i]

		if escapeNext {
			escapeNext = false
			continue
		}
		if c == '\\' {
			escapeNext = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}
