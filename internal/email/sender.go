package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vedant7151/Invoice-Generator/internal/config"
	"github.com/vedant7151/Invoice-Generator/internal/logger"
)

// Attachment is a file sent along with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a transactional email. The sender address is a property of the
// Sender, FromName only sets the display name.
type Message struct {
	To          []string
	FromName    string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
	// Tag groups messages of one kind, e.g. "invoice". Only mock senders use it.
	Tag string
}

// Sender defines the interface for sending emails.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender builds the Sender selected by EMAIL_PROVIDER. When EMAIL_LOG_FILE
// is set every message is additionally appended to that file.
func NewSender(cfg *config.Config, rdb *redis.Client, log *zap.Logger) (Sender, error) {
	log = logger.OrNop(log)

	var primary Sender
	switch cfg.EmailProvider {
	case "brevo", "":
		if cfg.BrevoAPIKey == "" {
			log.Warn("BREVO_API_KEY not configured, using logging email sender")
			primary = NewLoggingSender(cfg.SenderEmail, log)
			break
		}
		s, err := NewBrevoSender(cfg.BrevoURL, cfg.BrevoAPIKey, cfg.SenderEmail, nil)
		if err != nil {
			return nil, err
		}
		primary = s
	case "smtp":
		primary = NewSMTPSender(cfg, log)
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis email sender requires a redis client")
		}
		primary = NewRedisSender(rdb, cfg.SenderEmail, log)
	case "log":
		primary = NewLoggingSender(cfg.SenderEmail, log)
	default:
		return nil, fmt.Errorf("unknown EMAIL_PROVIDER %q", cfg.EmailProvider)
	}

	if strings.TrimSpace(cfg.EmailLogFile) == "" {
		return primary, nil
	}
	fileSender, err := NewFileEmailSender(cfg.EmailLogFile, cfg.SenderEmail, log)
	if err != nil {
		return nil, err
	}
	return NewCompositeEmailSender(primary, fileSender), nil
}

// SMTPSender implements the Sender interface using Go's net/smtp package.
type SMTPSender struct {
	from string
	auth smtp.Auth
	addr string
	log  *zap.Logger
}

// NewSMTPSender creates a new SMTPSender.
// It returns Sender so we can easily swap implementations (e.g., for testing).
func NewSMTPSender(cfg *config.Config, log *zap.Logger) Sender {
	log = logger.OrNop(log)
	if cfg.SmtpHost == "" {
		log.Warn("SMTP host not configured, using logging email sender")
		return NewLoggingSender(cfg.SenderEmail, log)
	}

	var auth smtp.Auth
	if cfg.SmtpUsername != "" {
		auth = smtp.PlainAuth("", cfg.SmtpUsername, cfg.SmtpPassword, cfg.SmtpHost)
	}
	return &SMTPSender{
		from: cfg.SenderEmail,
		auth: auth,
		addr: fmt.Sprintf("%s:%d", cfg.SmtpHost, cfg.SmtpPort),
		log:  log,
	}
}

// Send sends an email using SMTP. net/smtp has no context support, so ctx is
// only checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := BuildMIME(s.from, msg)
	if err != nil {
		return err
	}
	if err := smtp.SendMail(s.addr, s.auth, s.from, msg.To, raw); err != nil {
		s.log.Error("Failed to send email via SMTP", zap.Strings("to", msg.To), zap.Error(err))
		return fmt.Errorf("smtp error: %w", err)
	}
	s.log.Info("Email sent via SMTP", zap.Strings("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

// LoggingSender only logs messages. Useful for development or when no
// provider is configured.
type LoggingSender struct {
	from string
	log  *zap.Logger
}

func NewLoggingSender(from string, log *zap.Logger) *LoggingSender {
	return &LoggingSender{from: from, log: logger.OrNop(log)}
}

func (s *LoggingSender) Send(_ context.Context, msg Message) error {
	names := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		names = append(names, fmt.Sprintf("%s (%d bytes)", a.Filename, len(a.Data)))
	}
	s.log.Info("Email (logged, not sent)",
		zap.String("from", s.from),
		zap.String("fromName", msg.FromName),
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Strings("attachments", names),
		zap.Int("htmlBytes", len(msg.HTMLBody)))
	return nil
}
