package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/vedant7151/Invoice-Generator/internal/billing"
	"github.com/vedant7151/Invoice-Generator/internal/config"
	"github.com/vedant7151/Invoice-Generator/internal/logger"
	"github.com/vedant7151/Invoice-Generator/internal/models"
	"github.com/vedant7151/Invoice-Generator/internal/services"
)

// ChatCompleter is the part of the OpenAI client the drafter needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// IInvoiceDrafter turns free-form text into an unsaved invoice payload.
type IInvoiceDrafter interface {
	// DraftInvoice returns a body suitable for POST /api/invoice. Nothing is
	// persisted.
	DraftInvoice(ctx context.Context, owner, prompt string) (*services.InvoiceInput, error)
}

const dateLayout = "2006-01-02"

var (
	errNoChoices = errors.New("no response choices")
	errNoItems   = errors.New("draft has no line items")
)

type invoiceDrafter struct {
	client         ChatCompleter
	model          string
	temperature    float32
	maxAttempts    int
	maxPromptChars int
	timeout        time.Duration
	now            func() time.Time
	log            *zap.Logger
}

// NewInvoiceDrafter builds a drafter backed by the OpenAI chat API. Without
// OPENAI_API_KEY every call fails with an internal error.
func NewInvoiceDrafter(cfg *config.Config, log *zap.Logger) IInvoiceDrafter {
	var client ChatCompleter
	if cfg.OpenAIAPIKey != "" {
		oc := openai.DefaultConfig(cfg.OpenAIAPIKey)
		if cfg.OpenAIBaseURL != "" {
			oc.BaseURL = cfg.OpenAIBaseURL
		}
		oc.HTTPClient = &http.Client{Timeout: cfg.ExternalCallTimeout}
		client = openai.NewClientWithConfig(oc)
	}
	return NewInvoiceDrafterWithClient(client, cfg, log)
}

// NewInvoiceDrafterWithClient creates a drafter around an existing client.
// client may be nil.
func NewInvoiceDrafterWithClient(client ChatCompleter, cfg *config.Config, log *zap.Logger) IInvoiceDrafter {
	d := &invoiceDrafter{
		client:         client,
		model:          "gpt-4o-mini",
		temperature:    0.1,
		maxAttempts:    2,
		maxPromptChars: 8000,
		timeout:        20 * time.Second,
		now:            time.Now,
		log:            logger.OrNop(log),
	}
	if cfg != nil {
		if cfg.OpenAIModel != "" {
			d.model = cfg.OpenAIModel
		}
		if cfg.AIMaxAttempts > 0 {
			d.maxAttempts = cfg.AIMaxAttempts
		}
		if cfg.AIMaxPromptChars > 0 {
			d.maxPromptChars = cfg.AIMaxPromptChars
		}
		if cfg.ExternalCallTimeout > 0 {
			d.timeout = cfg.ExternalCallTimeout
		}
	}
	return d
}

func (d *invoiceDrafter) DraftInvoice(ctx context.Context, owner, prompt string) (*services.InvoiceInput, error) {
	const op = "InvoiceDrafter.DraftInvoice"
	if owner == "" {
		return nil, services.Unauthenticated(op)
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, services.BadRequest(op, "prompt is required", nil)
	}
	if len([]rune(prompt)) > d.maxPromptChars {
		return nil, services.BadRequest(op, fmt.Sprintf("prompt must be at most %d characters", d.maxPromptChars), nil)
	}
	if d.client == nil {
		return nil, services.Internal(op, "AI invoice generation is not configured", errors.New("missing OPENAI_API_KEY"))
	}

	var (
		lastErr     error
		parseFailed bool
	)
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		content, err := d.complete(ctx, prompt)
		if err != nil {
			lastErr, parseFailed = err, false
			d.log.Warn("AI completion failed",
				zap.String("owner", owner),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", d.maxAttempts),
				zap.Error(err),
			)
			if ctx.Err() != nil || !retryable(err) {
				break
			}
			continue
		}

		draft, err := parseDraft(content)
		if err != nil {
			lastErr, parseFailed = err, true
			d.log.Warn("Failed to parse AI invoice draft",
				zap.String("owner", owner),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}

		d.log.Info("Drafted invoice from prompt",
			zap.String("owner", owner),
			zap.Int("items", len(draft.Items)),
			zap.Int("attempt", attempt),
		)
		return draft, nil
	}

	if parseFailed {
		return nil, services.BadRequest(op, "could not build an invoice from that text, please add client and item details", lastErr)
	}
	var apiErr *openai.APIError
	if errors.As(lastErr, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return nil, services.RateLimited(op, "AI service is busy, please try again in a few minutes")
	}
	return nil, services.Internal(op, "AI invoice generation failed", lastErr)
}

func (d *invoiceDrafter) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       d.model,
		Temperature: d.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt(d.now()),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

// retryable reports whether another attempt could succeed. Client errors
// other than rate limiting will fail the same way again.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	return true
}

func systemPrompt(now time.Time) string {
	return `You convert free-form invoice notes into JSON for an invoicing app.
Today is ` + now.UTC().Format(dateLayout) + `.
Reply with a single JSON object and nothing else, using these keys:
{
  "issueDate": "YYYY-MM-DD",
  "dueDate": "YYYY-MM-DD",
  "fromBusinessName": "", "fromEmail": "", "fromAddress": "", "fromPhone": "", "fromGst": "",
  "client": {"name": "", "email": "", "address": "", "phone": ""},
  "items": [{"description": "", "qty": 1, "unitPrice": 0}],
  "currency": "INR or USD",
  "taxPercent": 18,
  "notes": ""
}
Use numbers for qty, unitPrice and taxPercent. Leave a string empty when the text does not say.
Resolve relative dates against today. Omit a date you cannot determine.`
}

// parseDraft decodes model output into an invoice body. Fields the server
// assigns itself are cleared.
func parseDraft(content string) (*services.InvoiceInput, error) {
	raw := extractJSON(content)
	if raw == "" {
		return nil, errors.New("response contains no JSON object")
	}
	var in services.InvoiceInput
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}

	in.InvoiceNumber = ""
	in.Status = ""
	in.LogoDataURL, in.StampDataURL, in.SignatureDataURL = nil, nil, nil
	in.IssueDate = validDate(in.IssueDate)
	in.DueDate = validDate(in.DueDate)

	switch cur := strings.ToUpper(strings.TrimSpace(in.Currency)); cur {
	case models.CurrencyINR, models.CurrencyUSD:
		in.Currency = cur
	default:
		in.Currency = ""
	}

	in.Items = lo.Filter(in.Items, func(it *billing.RawItem, _ int) bool {
		return it != nil && strings.TrimSpace(it.Description) != ""
	})
	if len(in.Items) == 0 {
		return nil, errNoItems
	}
	return &in, nil
}

// extractJSON strips markdown fences and any prose around the outermost object.
func extractJSON(content string) string {
	s := strings.TrimSpace(content)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

func validDate(s string) string {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(dateLayout, s); err != nil {
		return ""
	}
	return s
}
