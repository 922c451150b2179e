package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/vedant7151/Invoice-Generator/internal/billing"
	"github.com/vedant7151/Invoice-Generator/internal/config"
	"github.com/vedant7151/Invoice-Generator/internal/email"
	"github.com/vedant7151/Invoice-Generator/internal/logger"
	"github.com/vedant7151/Invoice-Generator/internal/models"
	"github.com/vedant7151/Invoice-Generator/internal/ratelimit"
)

const emailRateKeyPrefix = "invoice-email:"

var recipientPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// InvoiceRenderer produces the PDF attached to invoice emails.
type InvoiceRenderer interface {
	Render(ctx context.Context, inv *models.Invoice) ([]byte, error)
}

// InvoiceEmailQueue hands an invoice email over to the background worker.
type InvoiceEmailQueue interface {
	EnqueueInvoiceEmail(ctx context.Context, invoiceID, owner, recipient string) (taskID string, err error)
}

// EmailResult describes an accepted send request.
type EmailResult struct {
	InvoiceID string `json:"invoiceId"`
	Recipient string `json:"recipient"`
	Queued    bool   `json:"queued"`
	TaskID    string `json:"taskId,omitempty"`
}

// IInvoiceMailer emails invoices to their clients as PDF attachments.
type IInvoiceMailer interface {
	SendInvoice(ctx context.Context, owner, ref, customerEmail string) (*EmailResult, error)
	QueueInvoice(ctx context.Context, owner, ref, customerEmail string) (*EmailResult, error)
	// DeliverInvoice renders and sends an invoice whose recipient has already
	// been validated. It is the worker side of QueueInvoice.
	DeliverInvoice(ctx context.Context, owner, invoiceID, recipient string) error
}

// MailerDeps groups the collaborators of the invoice mailer. Queue may be nil,
// in which case QueueInvoice sends synchronously.
type MailerDeps struct {
	Invoices IInvoiceService
	Profiles IBusinessProfileService
	Store    IInvoiceStore
	Limiter  ratelimit.Limiter
	Renderer InvoiceRenderer
	Sender   email.Sender
	Queue    InvoiceEmailQueue
}

type invoiceMailer struct {
	MailerDeps
	log     *zap.Logger
	now     func() time.Time
	timeout time.Duration
}

// NewInvoiceMailer creates an IInvoiceMailer. cfg may be nil.
func NewInvoiceMailer(deps MailerDeps, cfg *config.Config, log *zap.Logger) IInvoiceMailer {
	m := &invoiceMailer{
		MailerDeps: deps,
		log:        logger.OrNop(log),
		now:        time.Now,
		timeout:    20 * time.Second,
	}
	if cfg != nil && cfg.ExternalCallTimeout > 0 {
		m.timeout = cfg.ExternalCallTimeout
	}
	return m
}

func (m *invoiceMailer) SendInvoice(ctx context.Context, owner, ref, customerEmail string) (*EmailResult, error) {
	const op = "invoice.send_email"
	inv, recipient, err := m.prepare(ctx, op, owner, ref, customerEmail)
	if err != nil {
		return nil, err
	}
	if err := m.deliver(ctx, op, inv, recipient); err != nil {
		return nil, err
	}
	return &EmailResult{InvoiceID: inv.ID.Hex(), Recipient: recipient}, nil
}

func (m *invoiceMailer) QueueInvoice(ctx context.Context, owner, ref, customerEmail string) (*EmailResult, error) {
	const op = "invoice.queue_email"
	if m.Queue == nil {
		return m.SendInvoice(ctx, owner, ref, customerEmail)
	}
	inv, recipient, err := m.prepare(ctx, op, owner, ref, customerEmail)
	if err != nil {
		return nil, err
	}
	taskID, err := m.Queue.EnqueueInvoiceEmail(ctx, inv.ID.Hex(), owner, recipient)
	if err != nil {
		return nil, Internal(op, "failed to queue invoice email", err)
	}
	m.log.Info("Queued invoice email",
		zap.String("invoice_id", inv.ID.Hex()),
		zap.String("task_id", taskID),
	)
	return &EmailResult{InvoiceID: inv.ID.Hex(), Recipient: recipient, Queued: true, TaskID: taskID}, nil
}

func (m *invoiceMailer) DeliverInvoice(ctx context.Context, owner, invoiceID, recipient string) error {
	const op = "invoice.deliver_email"
	inv, err := m.Invoices.GetInvoice(ctx, owner, invoiceID)
	if err != nil {
		return err
	}
	if !recipientPattern.MatchString(recipient) {
		return BadRequest(op, "invalid recipient email address", nil)
	}
	return m.deliver(ctx, op, inv, recipient)
}

// prepare applies the rate limit, resolves the invoice and picks the
// recipient. The limit is consumed before anything else happens.
func (m *invoiceMailer) prepare(ctx context.Context, op, owner, ref, customerEmail string) (*models.Invoice, string, error) {
	if owner == "" {
		return nil, "", Unauthenticated(op)
	}
	ok, err := m.Limiter.TryConsume(ctx, emailRateKeyPrefix+owner)
	if err != nil {
		return nil, "", Internal(op, "failed to check email rate limit", err)
	}
	if !ok {
		return nil, "", RateLimited(op, "too many emails sent, please try again later")
	}

	inv, err := m.Invoices.GetInvoice(ctx, owner, ref)
	if err != nil {
		return nil, "", err
	}

	recipient := lo.CoalesceOrEmpty(strings.TrimSpace(customerEmail), strings.TrimSpace(inv.Client.Email))
	if recipient == "" {
		return nil, "", BadRequest(op, "customer email is required", nil)
	}
	if !recipientPattern.MatchString(recipient) {
		return nil, "", BadRequest(op, "invalid customer email address", nil)
	}
	return inv, recipient, nil
}

func (m *invoiceMailer) deliver(ctx context.Context, op string, stored *models.Invoice, recipient string) error {
	profile, err := m.Profiles.GetMyProfile(ctx, stored.Owner)
	if err != nil {
		return err
	}
	inv := billing.MergeProfile(*stored, profile)

	renderCtx, cancel := context.WithTimeout(ctx, m.timeout)
	pdf, err := m.Renderer.Render(renderCtx, &inv)
	cancel()
	if err != nil {
		return Internal(op, "failed to generate invoice pdf", err)
	}

	subject, body, err := email.BuildInvoiceEmail(&inv)
	if err != nil {
		return Internal(op, "failed to build invoice email", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err = m.Sender.Send(sendCtx, email.Message{
		To:       []string{recipient},
		FromName: inv.FromBusinessName,
		Subject:  subject,
		HTMLBody: body,
		Attachments: []email.Attachment{{
			Filename:    email.InvoiceAttachmentName(&inv),
			ContentType: "application/pdf",
			Data:        pdf,
		}},
		Tag: email.TagInvoice,
	})
	cancel()
	if err != nil {
		return Internal(op, "failed to send invoice email", err)
	}

	// The message is out; a failed stamp is only worth a warning.
	if err := m.Store.SetEmailedAt(ctx, stored.ID, m.now().UTC()); err != nil {
		m.log.Warn("Failed to record invoice email time",
			zap.String("invoice_id", stored.ID.Hex()),
			zap.Error(err),
		)
	}
	m.log.Info("Sent invoice email",
		zap.String("invoice_id", stored.ID.Hex()),
		zap.Int("pdf_bytes", len(pdf)),
	)
	return nil
}
