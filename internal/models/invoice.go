package models

import (
	"fmt"
	"strings"
	"time"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	StatusDraft   InvoiceStatus = "draft"
	StatusUnpaid  InvoiceStatus = "unpaid"
	StatusPaid    InvoiceStatus = "paid"
	StatusOverdue InvoiceStatus = "overdue"
)

// ParseInvoiceStatus lower-cases raw and checks it against the known states.
// An empty string yields StatusDraft.
func ParseInvoiceStatus(raw string) (InvoiceStatus, error) {
	s := InvoiceStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case "":
		return StatusDraft, nil
	case StatusDraft, StatusUnpaid, StatusPaid, StatusOverdue:
		return s, nil
	}
	return "", fmt.Errorf("unknown invoice status %q", raw)
}

const (
	CurrencyINR = "INR"
	CurrencyUSD = "USD"

	DefaultTaxPercent = 18.0
)

// LineItem is a single billable row. Insertion order is display order.
type LineItem struct {
	ID          string  `bson:"id" json:"id"`
	Description string  `bson:"description" json:"description"`
	Quantity    float64 `bson:"qty" json:"qty"`
	UnitPrice   float64 `bson:"unit_price" json:"unitPrice"`
}

// Client is the billed party.
type Client struct {
	Name    string `bson:"name" json:"name"`
	Email   string `bson:"email" json:"email"`
	Address string `bson:"address" json:"address"`
	Phone   string `bson:"phone" json:"phone"`
}

// Invoice is a bill issued by Owner. Subtotal, Tax and Total are derived from
// Items and TaxPercent and are rewritten on every save.
type Invoice struct {
	Base          `bson:",inline"`
	Owner         string `bson:"owner" json:"owner"`
	InvoiceNumber string `bson:"invoice_number" json:"invoiceNumber"`
	IssueDate     string `bson:"issue_date" json:"issueDate"`
	DueDate       string `bson:"due_date" json:"dueDate"`

	// Issuer snapshot, copied from the business profile at creation time.
	FromBusinessName string `bson:"from_business_name" json:"fromBusinessName"`
	FromEmail        string `bson:"from_email" json:"fromEmail"`
	FromAddress      string `bson:"from_address" json:"fromAddress"`
	FromPhone        string `bson:"from_phone" json:"fromPhone"`
	FromGst          string `bson:"from_gst" json:"fromGst"`

	Client   Client        `bson:"client" json:"client"`
	Items    []LineItem    `bson:"items" json:"items"`
	Currency string        `bson:"currency" json:"currency"`
	Status   InvoiceStatus `bson:"status" json:"status"`

	LogoDataURL      *string `bson:"logo_data_url" json:"logoDataUrl"`
	StampDataURL     *string `bson:"stamp_data_url" json:"stampDataUrl"`
	SignatureDataURL *string `bson:"signature_data_url" json:"signatureDataUrl"`
	SignatureName    string  `bson:"signature_name" json:"signatureName"`
	SignatureTitle   string  `bson:"signature_title" json:"signatureTitle"`

	TaxPercent float64 `bson:"tax_percent" json:"taxPercent"`
	Subtotal   float64 `bson:"subtotal" json:"subtotal"`
	Tax        float64 `bson:"tax" json:"tax"`
	Total      float64 `bson:"total" json:"total"`

	Notes     string     `bson:"notes" json:"notes"`
	EmailedAt *time.Time `bson:"emailed_at,omitempty" json:"emailedAt,omitempty"`
}

// ItemPointers returns pointers into inv.Items, in order.
func (inv *Invoice) ItemPointers() []*LineItem {
	out := make([]*LineItem, len(inv.Items))
	for i := range inv.Items {
		out[i] = &inv.Items[i]
	}
	return out
}
