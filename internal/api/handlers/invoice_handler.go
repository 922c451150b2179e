package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vedant7151/Invoice-Generator/internal/api/middleware"
	"github.com/vedant7151/Invoice-Generator/internal/logger"
	"github.com/vedant7151/Invoice-Generator/internal/models"
	"github.com/vedant7151/Invoice-Generator/internal/services"
)

// InvoiceHandler handles REST requests for invoices.
type InvoiceHandler struct {
	invoices services.IInvoiceService
	mailer   services.IInvoiceMailer
	log      *zap.Logger
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(invoices services.IInvoiceService, mailer services.IInvoiceMailer, log *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, mailer: mailer, log: logger.OrNop(log)}
}

// CreateInvoice handles POST /api/invoice
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var in services.InvoiceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	inv, err := h.invoices.CreateInvoice(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	sendSuccess(c, http.StatusCreated, inv, "Invoice created")
}

// ListInvoices handles GET /api/invoice
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	q := services.InvoiceQuery{
		Status:        c.Query("status"),
		InvoiceNumber: c.Query("invoiceNumber"),
		Search:        c.Query("search"),
	}
	invoices, err := h.invoices.ListInvoices(c.Request.Context(), middleware.UserID(c), q)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if invoices == nil {
		invoices = []models.Invoice{}
	}
	sendSuccess(c, http.StatusOK, invoices, "")
}

// GetInvoice handles GET /api/invoice/:id
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	inv, err := h.invoices.GetInvoice(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	sendSuccess(c, http.StatusOK, inv, "")
}

// UpdateInvoice handles PUT /api/invoice/:id
func (h *InvoiceHandler) UpdateInvoice(c *gin.Context) {
	var patch services.InvoicePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		bindError(c, err)
		return
	}
	inv, err := h.invoices.UpdateInvoice(c.Request.Context(), middleware.UserID(c), c.Param("id"), patch)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	sendSuccess(c, http.StatusOK, inv, "Invoice updated")
}

// DeleteInvoice handles DELETE /api/invoice/:id
func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	if err := h.invoices.DeleteInvoice(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	sendSuccess(c, http.StatusOK, nil, "Invoice deleted successfully")
}

type sendEmailRequest struct {
	CustomerEmail string `json:"customerEmail"`
}

// SendInvoiceEmail handles POST /api/invoice/:id/send-email. With
// ?async=true the email is queued for the background worker.
func (h *InvoiceHandler) SendInvoiceEmail(c *gin.Context) {
	var body sendEmailRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			bindError(c, err)
			return
		}
	}

	owner, ref := middleware.UserID(c), c.Param("id")
	if c.Query("async") == "true" {
		res, err := h.mailer.QueueInvoice(c.Request.Context(), owner, ref, body.CustomerEmail)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		if res.Queued {
			sendSuccess(c, http.StatusAccepted, res, "Invoice email queued")
			return
		}
		sendSuccess(c, http.StatusOK, res, "Invoice email sent successfully")
		return
	}

	res, err := h.mailer.SendInvoice(c.Request.Context(), owner, ref, body.CustomerEmail)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	sendSuccess(c, http.StatusOK, res, "Invoice email sent successfully")
}
