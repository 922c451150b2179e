package email

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vedant7151/Invoice-Generator/internal/logger"
)

// MockEmailTTL is how long a stored message stays readable.
const MockEmailTTL = 5 * time.Minute

// MockEmailKey is the Redis key RedisSender stores a message under.
func MockEmailKey(to, tag string) string {
	if tag == "" {
		tag = "unknown"
	}
	return fmt.Sprintf("mockemail:%s:%s", strings.ToLower(to), tag)
}

// StoredEmail is the JSON document RedisSender writes.
type StoredEmail struct {
	To          string   `json:"to"`
	From        string   `json:"from"`
	FromName    string   `json:"fromName"`
	Subject     string   `json:"subject"`
	HTMLBody    string   `json:"body"`
	Attachments []string `json:"attachments"`
	SentAt      string   `json:"sent_at"`
	Tag         string   `json:"tag"`
}

// RedisSender implements the Sender interface by storing emails in Redis,
// where end-to-end tests read them back through the service API.
type RedisSender struct {
	client redis.Cmdable
	from   string
	log    *zap.Logger
}

func NewRedisSender(client redis.Cmdable, from string, log *zap.Logger) *RedisSender {
	return &RedisSender{client: client, from: from, log: logger.OrNop(log)}
}

// Send stores one document per recipient.
func (s *RedisSender) Send(ctx context.Context, msg Message) error {
	attachments := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		attachments = append(attachments, a.Filename)
	}
	for _, to := range msg.To {
		doc := StoredEmail{
			To:          to,
			From:        s.from,
			FromName:    msg.FromName,
			Subject:     msg.Subject,
			HTMLBody:    msg.HTMLBody,
			Attachments: attachments,
			SentAt:      time.Now().UTC().Format(time.RFC3339Nano),
			Tag:         msg.Tag,
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal email data: %w", err)
		}
		key := MockEmailKey(to, msg.Tag)
		if err := s.client.Set(ctx, key, data, MockEmailTTL).Err(); err != nil {
			return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
		}
		s.log.Info("Mock email stored in Redis", zap.String("key", key), zap.String("subject", msg.Subject))
	}
	return nil
}
