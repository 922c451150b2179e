package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vedant7151/Invoice-Generator/internal/api/middleware"
	"github.com/vedant7151/Invoice-Generator/internal/logger"
	"github.com/vedant7151/Invoice-Generator/internal/models"
	"github.com/vedant7151/Invoice-Generator/internal/services"
)

const multipartMemory = 16 << 20

// Form file fields, in order of preference.
var (
	logoFields      = []string{"logoName", "logo"}
	stampFields     = []string{"stampName", "stamp"}
	signatureFields = []string{"signatureNameMeta", "signature"}
)

// BusinessProfileHandler handles REST requests for business profiles.
type BusinessProfileHandler struct {
	profiles  services.IBusinessProfileService
	maxUpload int64
	log       *zap.Logger
}

// NewBusinessProfileHandler creates a new BusinessProfileHandler. Each
// uploaded file may be at most maxUpload bytes.
func NewBusinessProfileHandler(profiles services.IBusinessProfileService, maxUpload int64, log *zap.Logger) *BusinessProfileHandler {
	if maxUpload <= 0 {
		maxUpload = 5 << 20
	}
	return &BusinessProfileHandler{profiles: profiles, maxUpload: maxUpload, log: logger.OrNop(log)}
}

// CreateProfile handles POST /api/businessProfile
func (h *BusinessProfileHandler) CreateProfile(c *gin.Context) {
	in, uploads, ok := h.parseRequest(c)
	if !ok {
		return
	}
	p, err := h.profiles.CreateProfile(c.Request.Context(), middleware.UserID(c), in, uploads)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	sendSuccess(c, http.StatusCreated, p, "Business Profile Created")
}

// UpdateProfile handles PUT /api/businessProfile/:id
func (h *BusinessProfileHandler) UpdateProfile(c *gin.Context) {
	in, uploads, ok := h.parseRequest(c)
	if !ok {
		return
	}
	p, err := h.profiles.UpdateProfile(c.Request.Context(), middleware.UserID(c), c.Param("id"), in, uploads)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	sendSuccess(c, http.StatusOK, p, "Profile Updated")
}

// GetMyProfile handles GET /api/businessProfile/me
func (h *BusinessProfileHandler) GetMyProfile(c *gin.Context) {
	p, err := h.profiles.GetMyProfile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if p == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": nil, "message": "No profile found"})
		return
	}
	sendSuccess(c, http.StatusOK, p, "")
}

// parseRequest accepts multipart forms (text fields plus optional files) and
// plain JSON bodies. It writes the response itself when it returns false.
func (h *BusinessProfileHandler) parseRequest(c *gin.Context) (services.BusinessProfileInput, services.ProfileUploads, bool) {
	var in services.BusinessProfileInput
	var uploads services.ProfileUploads

	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if c.Request.ContentLength == 0 {
			return in, uploads, true
		}
		if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
			bindError(c, err)
			return in, uploads, false
		}
		return in, uploads, true
	}

	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		bindError(c, err)
		return in, uploads, false
	}
	form := c.Request.MultipartForm

	text := func(key string) models.Optional[string] {
		if vs, ok := form.Value[key]; ok && len(vs) > 0 {
			return models.Some(vs[0])
		}
		return models.Optional[string]{}
	}
	in.BusinessName = text("businessName")
	in.Email = text("email")
	in.Address = text("address")
	in.Phone = text("phone")
	in.Gst = text("gst")
	in.LogoURL = text("logoUrl")
	in.StampURL = text("stampUrl")
	in.SignatureURL = text("signatureUrl")
	in.SignatureOwnerName = text("signatureOwnerName")
	in.SignatureOwnerTitle = text("signatureOwnerTitle")
	if tax := text("defaultTaxPercent"); tax.Set {
		in.DefaultTaxPercent = models.Some[any](tax.Value)
	}

	var err error
	if uploads.Logo, err = h.readUpload(form, logoFields); err == nil {
		if uploads.Stamp, err = h.readUpload(form, stampFields); err == nil {
			uploads.Signature, err = h.readUpload(form, signatureFields)
		}
	}
	if err != nil {
		respondError(c, h.log, err)
		return in, uploads, false
	}
	return in, uploads, true
}

func (h *BusinessProfileHandler) readUpload(form *multipart.Form, fields []string) (*services.Upload, error) {
	const op = "business_profile.upload"
	for _, field := range fields {
		files := form.File[field]
		if len(files) == 0 {
			continue
		}
		fh := files[0]
		if fh.Size > h.maxUpload {
			return nil, services.PayloadTooLarge(op,
				fmt.Sprintf("%s exceeds the %d MB upload limit", field, h.maxUpload>>20))
		}
		f, err := fh.Open()
		if err != nil {
			return nil, services.BadRequest(op, "could not read uploaded file", err)
		}
		data, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
		f.Close()
		if err != nil {
			return nil, services.BadRequest(op, "could not read uploaded file", err)
		}
		if int64(len(data)) > h.maxUpload {
			return nil, services.PayloadTooLarge(op,
				fmt.Sprintf("%s exceeds the %d MB upload limit", field, h.maxUpload>>20))
		}
		if len(data) == 0 {
			continue
		}
		return &services.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		}, nil
	}
	return nil, nil
}
