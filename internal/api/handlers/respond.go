package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vedant7151/Invoice-Generator/internal/services"
)

// Response is the envelope of every API response.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func sendSuccess(c *gin.Context, status int, data any, message string) {
	c.JSON(status, Response{Success: true, Data: data, Message: message})
}

func sendFailure(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Message: message})
}

var kindStatus = map[services.Kind]int{
	services.KindUnauthenticated: http.StatusUnauthorized,
	services.KindForbidden:       http.StatusForbidden,
	services.KindNotFound:        http.StatusNotFound,
	services.KindConflict:        http.StatusConflict,
	services.KindBadRequest:      http.StatusBadRequest,
	services.KindPayloadTooLarge: http.StatusRequestEntityTooLarge,
	services.KindRateLimited:     http.StatusTooManyRequests,
	services.KindInternal:        http.StatusInternalServerError,
}

// respondError maps a service error onto its status and message. Causes of
// internal errors are logged, never returned.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	_ = c.Error(err)

	var se *services.Error
	if !errors.As(err, &se) {
		log.Error("Unhandled error", zap.String("path", c.FullPath()), zap.Error(err))
		sendFailure(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	status := kindStatus[se.Kind]
	if se.Kind == services.KindInternal {
		log.Error("Request failed",
			zap.String("op", se.Op),
			zap.String("path", c.FullPath()),
			zap.Error(se.Err),
		)
	}
	message := se.Message
	if message == "" {
		message = http.StatusText(status)
	}
	sendFailure(c, status, message)
}

// bindError turns a body decoding failure into a response.
func bindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
		sendFailure(c, http.StatusRequestEntityTooLarge, "Payload too large (check image sizes)")
		return
	}
	sendFailure(c, http.StatusBadRequest, "Invalid request body")
}
