package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vedant7151/Invoice-Generator/internal/ai"
	"github.com/vedant7151/Invoice-Generator/internal/api/middleware"
	"github.com/vedant7151/Invoice-Generator/internal/logger"
)

// AIHandler drafts invoices from free-form text.
type AIHandler struct {
	drafter ai.IInvoiceDrafter
	log     *zap.Logger
}

func NewAIHandler(drafter ai.IInvoiceDrafter, log *zap.Logger) *AIHandler {
	return &AIHandler{drafter: drafter, log: logger.OrNop(log)}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

// GenerateInvoice handles POST /api/ai/generate. The draft is returned, not saved.
func (h *AIHandler) GenerateInvoice(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	draft, err := h.drafter.DraftInvoice(c.Request.Context(), middleware.UserID(c), req.Prompt)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	sendSuccess(c, http.StatusOK, draft, "Invoice draft generated")
}
