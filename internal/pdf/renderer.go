// Package pdf renders invoices as A4 PDF documents.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"github.com/vedant7151/Invoice-Generator/internal/billing"
	"github.com/vedant7151/Invoice-Generator/internal/logger"
	"github.com/vedant7151/Invoice-Generator/internal/models"
)

// Renderer turns a finalized invoice (already merged with the business
// profile) into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, inv *models.Invoice) ([]byte, error)
}

const (
	margin       = 43.0
	pageWidth    = 595.0
	pageHeight   = 842.0
	contentWidth = pageWidth - margin*2
	pageBreakY   = 720.0

	defaultTerms       = "Thank you for your business!"
	defaultCompanyName = "Business Name"
)

type rgb struct{ r, g, b int }

var (
	blue700 = rgb{0x1d, 0x4e, 0xd8}
	gray900 = rgb{0x11, 0x18, 0x27}
	gray800 = rgb{0x1f, 0x29, 0x37}
	gray600 = rgb{0x4b, 0x55, 0x63}
	gray500 = rgb{0x6b, 0x72, 0x80}
	gray400 = rgb{0x9c, 0xa3, 0xaf}
	gray200 = rgb{0xe5, 0xe7, 0xeb}
	gray100 = rgb{0xf3, 0xf4, 0xf6}
	gray50  = rgb{0xf9, 0xfa, 0xfb}
)

// GofpdfRenderer draws invoices with the core Helvetica fonts.
type GofpdfRenderer struct {
	client        *http.Client
	log           *zap.Logger
	imageTimeout  time.Duration
	maxImageBytes int64
	sources       []*url.URL
}

// Option configures a GofpdfRenderer.
type Option func(*GofpdfRenderer)

// WithImageSources allows remote images whose URL falls under one of the
// given prefixes (scheme, host and path). Without it only data URIs are drawn.
func WithImageSources(prefixes ...string) Option {
	return func(r *GofpdfRenderer) {
		for _, p := range prefixes {
			u, err := url.Parse(strings.TrimSpace(p))
			if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
				r.log.Warn("Ignoring invalid image source", zap.String("prefix", p))
				continue
			}
			if !strings.HasSuffix(u.Path, "/") {
				u.Path += "/"
			}
			r.sources = append(r.sources, u)
		}
	}
}

const maxImageRedirects = 3

// NewRenderer creates a GofpdfRenderer. client is used to fetch remote
// images and may be nil; redirects are only followed to allowed sources.
func NewRenderer(client *http.Client, log *zap.Logger, opts ...Option) *GofpdfRenderer {
	if client == nil {
		client = http.DefaultClient
	}
	r := &GofpdfRenderer{
		log:           logger.OrNop(log),
		imageTimeout:  10 * time.Second,
		maxImageBytes: 5 << 20,
	}
	for _, opt := range opts {
		opt(r)
	}

	c := *client
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxImageRedirects {
			return errors.New("too many redirects")
		}
		if !r.allowedSource(req.URL) {
			return fmt.Errorf("redirect to %s is not an allowed image source", req.URL.Host)
		}
		return nil
	}
	r.client = &c
	return r
}

// page wraps a gofpdf document with the drawing helpers the layout needs.
type page struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func (p *page) font(style string, size float64, c rgb) {
	p.pdf.SetFont("Helvetica", style, size)
	p.pdf.SetTextColor(c.r, c.g, c.b)
}

func (p *page) text(x, y, w float64, s, align string) {
	_, size := p.pdf.GetFontSize()
	p.pdf.SetXY(x, y)
	p.pdf.CellFormat(w, size*1.2, p.tr(s), "", 0, align, false, 0, "")
}

func (p *page) line(x1, y1, x2, y2 float64, c rgb) {
	p.pdf.SetDrawColor(c.r, c.g, c.b)
	p.pdf.Line(x1, y1, x2, y2)
}

func (p *page) image(name string, data []byte, x, y, w, h float64) {
	if data == nil {
		return
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	p.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	p.pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
}

// money uses "Rs." for the rupee sign, which the core fonts cannot draw.
func money(amount float64, currency string) string {
	return strings.Replace(billing.FormatCurrency(amount, currency), "₹", "Rs. ", 1)
}

func numberString(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return billing.MissingValue
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

func (r *GofpdfRenderer) Render(ctx context.Context, inv *models.Invoice) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	signature := r.loadImage(ctx, inv.SignatureDataURL)
	stamp := r.loadImage(ctx, inv.StampDataURL)

	doc := gofpdf.New("P", "pt", "A4", "")
	doc.SetMargins(margin, margin, margin)
	doc.SetAutoPageBreak(false, margin)
	doc.SetTitle("Invoice "+inv.InvoiceNumber, true)
	doc.AddPage()
	p := &page{pdf: doc, tr: doc.UnicodeTranslatorFromDescriptor("")}

	currency := inv.Currency
	if currency == "" {
		currency = models.CurrencyINR
	}
	company := inv.FromBusinessName
	if strings.TrimSpace(company) == "" {
		company = defaultCompanyName
	}
	ref := inv.InvoiceNumber
	if ref == "" && !inv.ID.IsZero() {
		ref = inv.ID.Hex()
	}

	y := margin

	// Header.
	p.font("B", 24, blue700)
	p.text(margin, y, 200, "INVOICE", "L")
	p.font("", 10, gray600)
	p.text(margin, y+28, 250, "#"+orDash(ref), "L")

	dateValX := pageWidth - margin - 90
	p.font("B", 10, gray900)
	p.text(dateValX-70, y, 70, "Date:", "L")
	p.font("", 10, gray600)
	p.text(dateValX, y, 90, billing.FormatDate(inv.IssueDate), "R")
	p.font("B", 10, gray900)
	p.text(dateValX-70, y+16, 70, "Due Date:", "L")
	p.font("", 10, gray600)
	p.text(dateValX, y+16, 90, billing.FormatDate(inv.DueDate), "R")

	y += 52
	p.line(margin, y, pageWidth-margin, y, gray200)
	y += 32

	// Billed from / billed to.
	colWidth := contentWidth/2 - 24
	rightX := margin + contentWidth/2 + 12
	top := y

	p.font("B", 9, gray900)
	p.text(margin, y, colWidth, "BILLED FROM", "L")
	y += 16
	p.font("B", 11, gray900)
	p.text(margin, y, colWidth, company, "L")
	y += 14
	p.font("", 10, gray600)
	if addr := strings.TrimSpace(inv.FromAddress); addr != "" {
		for _, l := range strings.Split(addr, "\n") {
			p.text(margin, y, colWidth, strings.TrimSpace(l), "L")
			y += 14
		}
	}
	p.text(margin, y, colWidth, inv.FromEmail, "L")
	y += 14
	p.text(margin, y, colWidth, inv.FromPhone, "L")
	y += 14
	if inv.FromGst != "" {
		p.font("", 9, gray500)
		p.text(margin, y, colWidth, "GST: "+inv.FromGst, "L")
		y += 14
	}

	yr := top
	p.font("B", 9, gray900)
	p.text(rightX, yr, colWidth, "BILLED TO", "L")
	yr += 16
	p.font("B", 11, gray900)
	p.text(rightX, yr, colWidth, orDash(inv.Client.Name), "L")
	yr += 14
	p.font("", 10, gray600)
	clientAddr := strings.TrimSpace(inv.Client.Address)
	if clientAddr == "" {
		clientAddr = "No address provided"
	}
	for _, l := range strings.Split(clientAddr, "\n") {
		p.text(rightX, yr, colWidth, strings.TrimSpace(l), "L")
		yr += 14
	}
	p.text(rightX, yr, colWidth, orDash(inv.Client.Email), "L")
	yr += 14
	p.text(rightX, yr, colWidth, orDash(inv.Client.Phone), "L")
	yr += 14

	y = max(y, yr) + 24

	// Items table.
	descW := contentWidth * 0.5
	const qtyW, priceW, totalW, thH, tdH = 60.0, 85.0, 95.0, 28.0, 26.0
	qtyX := margin + descW + 8
	priceX := qtyX + qtyW
	totalX := priceX + priceW

	doc.SetFillColor(gray50.r, gray50.g, gray50.b)
	doc.SetDrawColor(gray200.r, gray200.g, gray200.b)
	doc.Rect(margin, y, contentWidth, thH, "FD")
	p.font("B", 9, gray500)
	p.text(margin+12, y+8, descW-16, "Description", "L")
	p.text(qtyX, y+8, qtyW, "QTY.", "R")
	p.text(priceX, y+8, priceW, "PRICE", "R")
	p.text(totalX, y+8, totalW, "TOTAL", "R")
	y += thH

	if len(inv.Items) == 0 {
		doc.SetDrawColor(gray200.r, gray200.g, gray200.b)
		doc.Rect(margin, y, contentWidth, tdH, "D")
		p.font("", 10, gray400)
		p.text(margin+12, y+8, contentWidth-24, "No items added", "L")
		y += tdH
	} else {
		for _, it := range inv.Items {
			if y+tdH > pageBreakY {
				doc.AddPage()
				y = margin
			}
			p.line(margin, y, margin+contentWidth, y, gray100)
			qty, price := it.Quantity, it.UnitPrice
			p.font("", 10, gray900)
			p.text(margin+12, y+6, descW-16, truncate(it.Description, 80), "L")
			p.text(qtyX, y+6, qtyW, numberString(qty), "R")
			p.font("", 10, gray600)
			p.text(priceX, y+6, priceW, money(price, currency), "R")
			p.font("B", 10, gray900)
			p.text(totalX, y+6, totalW, money(qty*price, currency), "R")
			y += tdH
		}
		p.line(margin, y, margin+contentWidth, y, gray200)
	}
	y += 24

	// Totals.
	if y+120 > pageBreakY {
		doc.AddPage()
		y = margin
	}
	const blockW = 220.0
	left := pageWidth - margin - blockW
	p.font("", 10, gray600)
	p.text(left, y, blockW, "Subtotal", "L")
	p.text(left, y, blockW-10, money(inv.Subtotal, currency), "R")
	y += 18
	p.text(left, y, blockW, fmt.Sprintf("Tax (%s%%)", numberString(inv.TaxPercent)), "L")
	p.text(left, y, blockW-10, money(inv.Tax, currency), "R")
	y += 22
	p.line(left, y, pageWidth-margin, y, gray200)
	y += 18
	p.font("B", 11, gray900)
	p.text(left, y, blockW, "TOTAL AMOUNT", "L")
	p.font("B", 11, blue700)
	p.text(left, y-1, blockW-10, money(inv.Total, currency), "R")
	y += 28

	// Signature and stamp.
	if y+150 > pageHeight-margin {
		doc.AddPage()
		y = margin
	}
	p.line(margin, y, pageWidth-margin, y, gray100)
	y += 20
	p.image("signature", signature, margin, y, 120, 50)
	p.image("stamp", stamp, pageWidth-margin-80, y, 80, 48)
	y += 58
	p.line(margin, y, margin+200, y, gray200)
	y += 10
	p.font("B", 10, gray800)
	p.text(margin, y, 200, "Authorized Signature", "L")
	y += 12
	signName := inv.SignatureName
	if strings.TrimSpace(signName) == "" {
		signName = company
	}
	p.font("", 9, gray500)
	p.text(margin, y, 200, signName, "L")
	if inv.SignatureTitle != "" {
		y += 12
		p.text(margin, y, 200, inv.SignatureTitle, "L")
	}
	y += 28

	// Footer.
	p.line(margin, y, pageWidth-margin, y, gray100)
	y += 14
	terms := strings.TrimSpace(inv.Notes)
	if terms == "" {
		terms = defaultTerms
	}
	p.font("", 9, gray400)
	doc.SetXY(margin, y)
	doc.MultiCell(contentWidth, 11, p.tr(terms), "", "C", false)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}
