package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const DefaultBrevoURL = "https://api.brevo.com/v3/smtp/email"

// BrevoSender sends through the Brevo transactional email API.
type BrevoSender struct {
	url    string
	apiKey string
	from   string
	client *http.Client
}

type brevoAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoAttachment struct {
	Content string `json:"content"`
	Name    string `json:"name"`
}

type brevoRequest struct {
	Sender      brevoAddress      `json:"sender"`
	To          []brevoAddress    `json:"to"`
	Subject     string            `json:"subject"`
	HTMLContent string            `json:"htmlContent"`
	Attachment  []brevoAttachment `json:"attachment,omitempty"`
}

// NewBrevoSender requires both an API key and a sender address. client may be
// nil to use http.DefaultClient.
func NewBrevoSender(url, apiKey, from string, client *http.Client) (*BrevoSender, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("email service is not configured: missing BREVO_API_KEY")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("sender email is not configured: missing SENDER_EMAIL")
	}
	if url == "" {
		url = DefaultBrevoURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &BrevoSender{url: url, apiKey: strings.TrimSpace(apiKey), from: strings.TrimSpace(from), client: client}, nil
}

func (s *BrevoSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}
	name := msg.FromName
	if name == "" {
		name, _, _ = strings.Cut(s.from, "@")
	}
	body := brevoRequest{
		Sender:      brevoAddress{Email: s.from, Name: name},
		Subject:     msg.Subject,
		HTMLContent: msg.HTMLBody,
	}
	for _, to := range msg.To {
		body.To = append(body.To, brevoAddress{Email: to})
	}
	for _, a := range msg.Attachments {
		body.Attachment = append(body.Attachment, brevoAttachment{
			Content: base64.StdEncoding.EncodeToString(a.Data),
			Name:    a.Filename,
		})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal brevo request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build brevo request: %w", err)
	}
	req.Header.Set("api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("brevo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		var parsed struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(detail, &parsed) == nil && parsed.Message != "" {
			return fmt.Errorf("brevo returned %d: %s", resp.StatusCode, parsed.Message)
		}
		return fmt.Errorf("brevo returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
