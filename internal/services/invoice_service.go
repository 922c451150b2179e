package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/vedant7151/Invoice-Generator/internal/billing"
	"github.com/vedant7151/Invoice-Generator/internal/config"
	"github.com/vedant7151/Invoice-Generator/internal/db"
	"github.com/vedant7151/Invoice-Generator/internal/logger"
	"github.com/vedant7151/Invoice-Generator/internal/models"
)

const dateLayout = "2006-01-02"

var objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// InvoiceInput is the body of a create request. Derived totals are not part
// of it: whatever the client sends for them is dropped during decoding.
type InvoiceInput struct {
	InvoiceNumber    string             `json:"invoiceNumber"`
	IssueDate        string             `json:"issueDate"`
	DueDate          string             `json:"dueDate"`
	FromBusinessName string             `json:"fromBusinessName"`
	FromEmail        string             `json:"fromEmail"`
	FromAddress      string             `json:"fromAddress"`
	FromPhone        string             `json:"fromPhone"`
	FromGst          string             `json:"fromGst"`
	Client           models.ClientInput `json:"client"`
	Items            []*billing.RawItem `json:"items"`
	Currency         string             `json:"currency"`
	Status           string             `json:"status"`
	LogoDataURL      *string            `json:"logoDataUrl"`
	StampDataURL     *string            `json:"stampDataUrl"`
	SignatureDataURL *string            `json:"signatureDataUrl"`
	SignatureName    string             `json:"signatureName"`
	SignatureTitle   string             `json:"signatureTitle"`
	TaxPercent       any                `json:"taxPercent"`
	Notes            string             `json:"notes"`
}

// InvoicePatch is the body of an update request. Only fields present in the
// payload are applied; an explicit null or empty value clears the field.
type InvoicePatch struct {
	InvoiceNumber    models.Optional[string]             `json:"invoiceNumber"`
	IssueDate        models.Optional[string]             `json:"issueDate"`
	DueDate          models.Optional[string]             `json:"dueDate"`
	FromBusinessName models.Optional[string]             `json:"fromBusinessName"`
	FromEmail        models.Optional[string]             `json:"fromEmail"`
	FromAddress      models.Optional[string]             `json:"fromAddress"`
	FromPhone        models.Optional[string]             `json:"fromPhone"`
	FromGst          models.Optional[string]             `json:"fromGst"`
	Client           models.Optional[models.ClientInput] `json:"client"`
	Items            models.Optional[[]*billing.RawItem] `json:"items"`
	Currency         models.Optional[string]             `json:"currency"`
	Status           models.Optional[string]             `json:"status"`
	LogoDataURL      models.Optional[string]             `json:"logoDataUrl"`
	StampDataURL     models.Optional[string]             `json:"stampDataUrl"`
	SignatureDataURL models.Optional[string]             `json:"signatureDataUrl"`
	SignatureName    models.Optional[string]             `json:"signatureName"`
	SignatureTitle   models.Optional[string]             `json:"signatureTitle"`
	TaxPercent       models.Optional[any]                `json:"taxPercent"`
	Notes            models.Optional[string]             `json:"notes"`
}

// IInvoiceService coordinates invoice persistence. ref arguments accept
// either the database id or the invoice number.
type IInvoiceService interface {
	CreateInvoice(ctx context.Context, owner string, in InvoiceInput) (*models.Invoice, error)
	GetInvoice(ctx context.Context, owner, ref string) (*models.Invoice, error)
	UpdateInvoice(ctx context.Context, owner, ref string, patch InvoicePatch) (*models.Invoice, error)
	DeleteInvoice(ctx context.Context, owner, ref string) error
	ListInvoices(ctx context.Context, owner string, q InvoiceQuery) ([]models.Invoice, error)
	MarkOverdueInvoices(ctx context.Context) (int64, error)
}

type invoiceService struct {
	store        IInvoiceStore
	allocator    *billing.Allocator
	log          *zap.Logger
	now          func() time.Time
	saveAttempts int
	retryBackoff time.Duration
	currency     string
	taxPercent   float64
}

// NewInvoiceService creates an IInvoiceService. cfg may be nil, in which case
// built-in defaults apply.
func NewInvoiceService(store IInvoiceStore, allocator *billing.Allocator, cfg *config.Config, log *zap.Logger) IInvoiceService {
	s := &invoiceService{
		store:        store,
		allocator:    allocator,
		log:          logger.OrNop(log),
		now:          time.Now,
		saveAttempts: db.DefaultMaxAttempts,
		retryBackoff: db.DefaultBackoff,
		currency:     models.CurrencyINR,
		taxPercent:   models.DefaultTaxPercent,
	}
	if cfg != nil {
		if cfg.InvoiceSaveAttempts > 0 {
			s.saveAttempts = cfg.InvoiceSaveAttempts
		}
		if cfg.DefaultCurrency != "" {
			s.currency = strings.ToUpper(cfg.DefaultCurrency)
		}
		if cfg.DefaultTaxPercent >= 0 {
			s.taxPercent = cfg.DefaultTaxPercent
		}
	}
	if s.allocator == nil {
		s.allocator = billing.NewAllocator(store)
	}
	return s
}

func (s *invoiceService) CreateInvoice(ctx context.Context, owner string, in InvoiceInput) (*models.Invoice, error) {
	const op = "invoice.create"
	if owner == "" {
		return nil, Unauthenticated(op)
	}

	template, err := s.templateFromInput(op, owner, in)
	if err != nil {
		return nil, err
	}

	number := strings.TrimSpace(in.InvoiceNumber)
	userProvided := number != ""
	if userProvided {
		taken, err := s.store.InvoiceNumberExists(ctx, number)
		if err != nil {
			return nil, Internal(op, "failed to create invoice", err)
		}
		if taken {
			return nil, Conflict(op, "invoice number in use", nil)
		}
	}

	var saved *models.Invoice
	attempts := 0
	err = db.WithRetries(ctx, func(int) error {
		attempts++
		candidate := number
		if !userProvided {
			allocated, err := s.allocator.Allocate(ctx)
			if err != nil {
				return err
			}
			candidate = allocated
		}
		inv := freshInvoice(template, candidate, s.now().UTC())
		if err := s.store.Insert(ctx, inv); err != nil {
			return err
		}
		saved = inv
		return nil
	}, s.saveAttempts, s.retryBackoff, func(err error) bool {
		return !userProvided && db.IsMongoDuplicateKeyError(err)
	})

	switch {
	case err == nil:
	case errors.Is(err, db.ErrRetriesExhausted):
		return nil, Internal(op, "conflict resolution failed", err)
	case userProvided && db.IsMongoDuplicateKeyError(err):
		return nil, Conflict(op, "invoice number in use", err)
	default:
		return nil, Internal(op, "failed to create invoice", err)
	}

	s.log.Info("Invoice created",
		zap.String("owner", owner),
		zap.String("invoiceNumber", saved.InvoiceNumber),
		zap.Bool("userProvidedNumber", userProvided),
		zap.Int("attempts", attempts))
	return saved, nil
}

// templateFromInput validates and normalises everything except the number
// and identity, which change per attempt.
func (s *invoiceService) templateFromInput(op, owner string, in InvoiceInput) (models.Invoice, error) {
	items, err := billing.ToLineItems(in.Items)
	if err != nil {
		return models.Invoice{}, BadRequest(op, err.Error(), err)
	}
	status, err := models.ParseInvoiceStatus(in.Status)
	if err != nil {
		return models.Invoice{}, BadRequest(op, err.Error(), err)
	}
	issueDate, err := normalizeDate(in.IssueDate)
	if err != nil {
		return models.Invoice{}, BadRequest(op, "invalid issueDate", err)
	}
	if issueDate == "" {
		issueDate = s.now().UTC().Format(dateLayout)
	}
	dueDate, err := normalizeDate(in.DueDate)
	if err != nil {
		return models.Invoice{}, BadRequest(op, "invalid dueDate", err)
	}

	tax := s.taxPercent
	if in.TaxPercent != nil {
		tax = billing.ParseFloat(in.TaxPercent)
	}

	return models.Invoice{
		Owner:            owner,
		IssueDate:        issueDate,
		DueDate:          dueDate,
		FromBusinessName: strings.TrimSpace(in.FromBusinessName),
		FromEmail:        strings.TrimSpace(in.FromEmail),
		FromAddress:      in.FromAddress,
		FromPhone:        strings.TrimSpace(in.FromPhone),
		FromGst:          strings.TrimSpace(in.FromGst),
		Client:           in.Client.Normalize(models.Client{}),
		Items:            items,
		Currency:         s.normalizeCurrency(in.Currency),
		Status:           status,
		LogoDataURL:      nonEmpty(in.LogoDataURL),
		StampDataURL:     nonEmpty(in.StampDataURL),
		SignatureDataURL: nonEmpty(in.SignatureDataURL),
		SignatureName:    strings.TrimSpace(in.SignatureName),
		SignatureTitle:   strings.TrimSpace(in.SignatureTitle),
		TaxPercent:       tax,
		Notes:            in.Notes,
	}, nil
}

// freshInvoice builds a new record for one insert attempt. Nothing is shared
// with previous attempts.
func freshInvoice(template models.Invoice, number string, now time.Time) *models.Invoice {
	inv := template
	inv.Base = models.NewBase(now)
	inv.InvoiceNumber = number
	inv.Items = append([]models.LineItem(nil), template.Items...)
	billing.ComputeInvoiceTotals(&inv)
	return &inv
}

func (s *invoiceService) GetInvoice(ctx context.Context, owner, ref string) (*models.Invoice, error) {
	return s.resolve(ctx, "invoice.get", owner, ref)
}

// resolve loads an invoice by id or number and checks ownership. A 24 hex
// character ref is tried as an id first; since the allocator's fallback
// numbers have that shape too, a miss falls through to a number lookup.
func (s *invoiceService) resolve(ctx context.Context, op, owner, ref string) (*models.Invoice, error) {
	if owner == "" {
		return nil, Unauthenticated(op)
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, NotFound(op, "invoice not found")
	}

	inv, err := s.lookup(ctx, ref)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, NotFound(op, "invoice not found")
	}
	if err != nil {
		return nil, Internal(op, "failed to load invoice", err)
	}
	if inv.Owner != owner {
		return nil, Forbidden(op, "you do not have access to this invoice")
	}
	return inv, nil
}

func (s *invoiceService) lookup(ctx context.Context, ref string) (*models.Invoice, error) {
	if objectIDPattern.MatchString(ref) {
		id, err := primitive.ObjectIDFromHex(ref)
		if err == nil {
			inv, err := s.store.FindByID(ctx, id)
			if !errors.Is(err, mongo.ErrNoDocuments) {
				return inv, err
			}
		}
	}
	return s.store.FindByNumber(ctx, ref)
}

func (s *invoiceService) UpdateInvoice(ctx context.Context, owner, ref string, patch InvoicePatch) (*models.Invoice, error) {
	const op = "invoice.update"
	existing, err := s.resolve(ctx, op, owner, ref)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.Items = append([]models.LineItem(nil), existing.Items...)

	if patch.InvoiceNumber.Set {
		number := strings.TrimSpace(patch.InvoiceNumber.Value)
		if patch.InvoiceNumber.Null || number == "" {
			return nil, BadRequest(op, "invoice number cannot be empty", nil)
		}
		if number != existing.InvoiceNumber {
			taken, err := s.store.NumberTakenByOther(ctx, number, existing.ID)
			if err != nil {
				return nil, Internal(op, "failed to update invoice", err)
			}
			if taken {
				return nil, Conflict(op, "invoice number in use", nil)
			}
			updated.InvoiceNumber = number
		}
	}

	if patch.IssueDate.Set {
		issueDate, err := normalizeDate(patch.IssueDate.Value)
		if err != nil {
			return nil, BadRequest(op, "invalid issueDate", err)
		}
		if issueDate == "" {
			issueDate = s.now().UTC().Format(dateLayout)
		}
		updated.IssueDate = issueDate
	}
	if patch.DueDate.Set {
		dueDate, err := normalizeDate(patch.DueDate.Value)
		if err != nil {
			return nil, BadRequest(op, "invalid dueDate", err)
		}
		updated.DueDate = dueDate
	}

	applyString(&updated.FromBusinessName, patch.FromBusinessName)
	applyString(&updated.FromEmail, patch.FromEmail)
	applyString(&updated.FromAddress, patch.FromAddress)
	applyString(&updated.FromPhone, patch.FromPhone)
	applyString(&updated.FromGst, patch.FromGst)
	applyString(&updated.SignatureName, patch.SignatureName)
	applyString(&updated.SignatureTitle, patch.SignatureTitle)
	applyString(&updated.Notes, patch.Notes)

	if patch.Client.Set {
		if patch.Client.Null {
			updated.Client = models.Client{}
		} else {
			updated.Client = patch.Client.Value.Normalize(existing.Client)
		}
	}

	if patch.Items.Set {
		items, err := billing.ToLineItems(patch.Items.Value)
		if err != nil {
			return nil, BadRequest(op, err.Error(), err)
		}
		updated.Items = items
	}

	if patch.Currency.Set {
		updated.Currency = s.normalizeCurrency(patch.Currency.Value)
	}
	if patch.Status.Set {
		status, err := models.ParseInvoiceStatus(patch.Status.Value)
		if err != nil {
			return nil, BadRequest(op, err.Error(), err)
		}
		updated.Status = status
	}

	if patch.LogoDataURL.Set {
		updated.LogoDataURL = models.StringPtr(patch.LogoDataURL)
	}
	if patch.StampDataURL.Set {
		updated.StampDataURL = models.StringPtr(patch.StampDataURL)
	}
	if patch.SignatureDataURL.Set {
		updated.SignatureDataURL = models.StringPtr(patch.SignatureDataURL)
	}

	if patch.TaxPercent.Set {
		if patch.TaxPercent.Null {
			updated.TaxPercent = s.taxPercent
		} else {
			updated.TaxPercent = billing.ParseFloat(patch.TaxPercent.Value)
		}
	}

	billing.ComputeInvoiceTotals(&updated)
	updated.Touch(s.now().UTC())

	if err := s.store.Replace(ctx, &updated); err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return nil, NotFound(op, "invoice not found")
		case db.IsMongoDuplicateKeyError(err):
			return nil, Conflict(op, "invoice number in use", err)
		default:
			return nil, Internal(op, "failed to update invoice", err)
		}
	}
	return &updated, nil
}

func (s *invoiceService) DeleteInvoice(ctx context.Context, owner, ref string) error {
	const op = "invoice.delete"
	existing, err := s.resolve(ctx, op, owner, ref)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, existing.ID, owner); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return NotFound(op, "invoice not found")
		}
		return Internal(op, "failed to delete invoice", err)
	}
	s.log.Info("Invoice deleted", zap.String("owner", owner), zap.String("invoiceNumber", existing.InvoiceNumber))
	return nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, owner string, q InvoiceQuery) ([]models.Invoice, error) {
	const op = "invoice.list"
	if owner == "" {
		return nil, Unauthenticated(op)
	}
	if strings.TrimSpace(q.Status) != "" {
		status, err := models.ParseInvoiceStatus(q.Status)
		if err != nil {
			return nil, BadRequest(op, err.Error(), err)
		}
		q.Status = string(status)
	} else {
		q.Status = ""
	}
	q.InvoiceNumber = strings.TrimSpace(q.InvoiceNumber)
	q.Search = strings.TrimSpace(q.Search)

	invoices, err := s.store.List(ctx, owner, q)
	if err != nil {
		return nil, Internal(op, "failed to list invoices", err)
	}
	return invoices, nil
}

// MarkOverdueInvoices moves unpaid invoices past their due date to overdue.
func (s *invoiceService) MarkOverdueInvoices(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	n, err := s.store.MarkOverdue(ctx, now.Format(dateLayout), now)
	if err != nil {
		return 0, Internal("invoice.mark_overdue", "failed to mark overdue invoices", err)
	}
	return n, nil
}

func (s *invoiceService) normalizeCurrency(raw string) string {
	c := strings.ToUpper(strings.TrimSpace(raw))
	if c == "" {
		return s.currency
	}
	return c
}

// normalizeDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the
// calendar date. Empty input yields "".
func normalizeDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t.Format(dateLayout), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return "", err
	}
	return t.UTC().Format(dateLayout), nil
}

func applyString(dst *string, o models.Optional[string]) {
	if o.Set {
		*dst = strings.TrimSpace(o.Or(""))
	}
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
