package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/vedant7151/Invoice-Generator/internal/billing"
	"github.com/vedant7151/Invoice-Generator/internal/models"
)

// TagInvoice marks invoice emails.
const TagInvoice = "invoice"

var invoiceEmailTemplate = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1.0"></head>
<body style="font-family: system-ui, -apple-system, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #1d4ed8;">Invoice Details</h2>
  <p>Dear {{.ClientName}},</p>
  <p>We hope you are doing well.</p>
  <p>Please find attached the invoice <strong>{{.Number}}</strong> issued on <strong>{{.IssueDate}}</strong> for the total amount of <strong>{{.Total}}</strong>.</p>
  <table style="border-collapse: collapse; width: 100%; margin: 20px 0; font-size: 14px;">
    <tr style="background: #f3f4f6;"><td style="padding: 8px 12px; border: 1px solid #e5e7eb;">Invoice Number</td><td style="padding: 8px 12px; border: 1px solid #e5e7eb;">{{.Number}}</td></tr>
    <tr><td style="padding: 8px 12px; border: 1px solid #e5e7eb;">Issue Date</td><td style="padding: 8px 12px; border: 1px solid #e5e7eb;">{{.IssueDate}}</td></tr>
    <tr style="background: #f9fafb;"><td style="padding: 8px 12px; border: 1px solid #e5e7eb;">Due Date</td><td style="padding: 8px 12px; border: 1px solid #e5e7eb;">{{.DueDate}}</td></tr>
    <tr><td style="padding: 8px 12px; border: 1px solid #e5e7eb;">Total Amount</td><td style="padding: 8px 12px; border: 1px solid #e5e7eb;">{{.Total}}</td></tr>
  </table>
  <p>Kindly ensure that the payment is completed on or before the due date.</p>
  <p>If you have already processed the payment, please disregard this message.</p>
  <p>Should you have any questions regarding this invoice, feel free to contact us.</p>
  <p style="margin-top: 24px;">Best regards,<br><strong>{{.Company}}</strong><br>{{.CompanyEmail}}<br>{{.CompanyPhone}}</p>
</body>
</html>`))

type invoiceEmailData struct {
	Number       string
	ClientName   string
	IssueDate    string
	DueDate      string
	Total        string
	Company      string
	CompanyEmail string
	CompanyPhone string
}

// InvoiceAttachmentName is the PDF file name used for inv.
func InvoiceAttachmentName(inv *models.Invoice) string {
	return fmt.Sprintf("Invoice-%s.pdf", invoiceRef(inv))
}

func invoiceRef(inv *models.Invoice) string {
	if inv.InvoiceNumber != "" {
		return inv.InvoiceNumber
	}
	if !inv.ID.IsZero() {
		return inv.ID.Hex()
	}
	return "invoice"
}

// BuildInvoiceEmail renders the subject and HTML body for inv. inv should
// already be merged with the issuer's business profile.
func BuildInvoiceEmail(inv *models.Invoice) (subject, html string, err error) {
	data := invoiceEmailData{
		Number:       invoiceRef(inv),
		ClientName:   orDefault(inv.Client.Name, "Client"),
		IssueDate:    billing.FormatDate(inv.IssueDate),
		DueDate:      billing.FormatDate(inv.DueDate),
		Total:        billing.FormatCurrency(inv.Total, inv.Currency),
		Company:      orDefault(inv.FromBusinessName, "Company"),
		CompanyEmail: inv.FromEmail,
		CompanyPhone: inv.FromPhone,
	}
	var buf bytes.Buffer
	if err := invoiceEmailTemplate.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render invoice email: %w", err)
	}
	return fmt.Sprintf("Invoice %s from %s", data.Number, data.Company), buf.String(), nil
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
