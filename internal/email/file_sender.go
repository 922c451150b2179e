package email

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vedant7151/Invoice-Generator/internal/logger"
)

// FileEmailSender implements the Sender interface by appending the full MIME
// message to a file.
type FileEmailSender struct {
	filePath string
	from     string
	log      *zap.Logger
	mu       sync.Mutex
}

// NewFileEmailSender creates a new FileEmailSender.
// It ensures the directory for the log file exists.
func NewFileEmailSender(filePath, from string, log *zap.Logger) (*FileEmailSender, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, fmt.Errorf("email log file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for email log file '%s': %w", dir, err)
	}

	return &FileEmailSender{filePath: filePath, from: from, log: logger.OrNop(log)}, nil
}

// Send writes the raw email message to the configured file.
func (s *FileEmailSender) Send(_ context.Context, msg Message) error {
	raw, err := BuildMIME(s.from, msg)
	if err != nil {
		return err
	}
	timestamp := time.Now().Format(time.RFC3339Nano)

	var entry []byte
	entry = append(entry, fmt.Sprintf("--- Email Logged at %s (To: %v, Subject: %s) ---\n", timestamp, msg.To, msg.Subject)...)
	entry = append(entry, raw...)
	entry = append(entry, "\n--- End Logged Email ---\n\n"...)

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open email log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(entry); err != nil {
		return fmt.Errorf("failed to write email to log file: %w", err)
	}
	s.log.Debug("Email written to log file", zap.Strings("to", msg.To), zap.String("path", s.filePath))
	return nil
}
