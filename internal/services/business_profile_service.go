package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vedant7151/Invoice-Generator/internal/billing"
	"github.com/vedant7151/Invoice-Generator/internal/config"
	"github.com/vedant7151/Invoice-Generator/internal/db"
	"github.com/vedant7151/Invoice-Generator/internal/logger"
	"github.com/vedant7151/Invoice-Generator/internal/models"
	"github.com/vedant7151/Invoice-Generator/internal/storage"
)

// Upload is one file received with a profile request.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ProfileUploads holds the optional asset files of a profile request.
type ProfileUploads struct {
	Logo      *Upload
	Stamp     *Upload
	Signature *Upload
}

func (u ProfileUploads) empty() bool {
	return u.Logo == nil && u.Stamp == nil && u.Signature == nil
}

// BusinessProfileInput carries the text fields of a profile request. On
// create, absent fields take their defaults; on update they stay untouched.
type BusinessProfileInput struct {
	BusinessName        models.Optional[string] `json:"businessName"`
	Email               models.Optional[string] `json:"email"`
	Address             models.Optional[string] `json:"address"`
	Phone               models.Optional[string] `json:"phone"`
	Gst                 models.Optional[string] `json:"gst"`
	LogoURL             models.Optional[string] `json:"logoUrl"`
	StampURL            models.Optional[string] `json:"stampUrl"`
	SignatureURL        models.Optional[string] `json:"signatureUrl"`
	SignatureOwnerName  models.Optional[string] `json:"signatureOwnerName"`
	SignatureOwnerTitle models.Optional[string] `json:"signatureOwnerTitle"`
	DefaultTaxPercent   models.Optional[any]    `json:"defaultTaxPercent"`
}

// IBusinessProfileService coordinates business profile persistence.
type IBusinessProfileService interface {
	CreateProfile(ctx context.Context, owner string, in BusinessProfileInput, uploads ProfileUploads) (*models.BusinessProfile, error)
	UpdateProfile(ctx context.Context, owner, id string, in BusinessProfileInput, uploads ProfileUploads) (*models.BusinessProfile, error)
	// GetMyProfile returns nil and no error when owner has no profile yet.
	GetMyProfile(ctx context.Context, owner string) (*models.BusinessProfile, error)
}

type businessProfileService struct {
	store      IBusinessProfileStore
	assets     storage.IAssetStorage
	log        *zap.Logger
	now        func() time.Time
	timeout    time.Duration
	taxPercent float64
}

// NewBusinessProfileService creates an IBusinessProfileService. assets may be
// nil, in which case requests carrying files fail with Internal.
func NewBusinessProfileService(store IBusinessProfileStore, assets storage.IAssetStorage, cfg *config.Config, log *zap.Logger) IBusinessProfileService {
	s := &businessProfileService{
		store:      store,
		assets:     assets,
		log:        logger.OrNop(log),
		now:        time.Now,
		timeout:    20 * time.Second,
		taxPercent: models.DefaultTaxPercent,
	}
	if cfg != nil {
		if cfg.ExternalCallTimeout > 0 {
			s.timeout = cfg.ExternalCallTimeout
		}
		if cfg.DefaultTaxPercent >= 0 {
			s.taxPercent = cfg.DefaultTaxPercent
		}
	}
	return s
}

func (s *businessProfileService) CreateProfile(ctx context.Context, owner string, in BusinessProfileInput, uploads ProfileUploads) (*models.BusinessProfile, error) {
	const op = "business_profile.create"
	if owner == "" {
		return nil, Unauthenticated(op)
	}

	// Checked before uploading so a rejected request leaves no stray assets.
	if _, err := s.store.FindByOwner(ctx, owner); err == nil {
		return nil, Conflict(op, "business profile already exists", nil)
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, Internal(op, "failed to create business profile", err)
	}

	urls, err := s.uploadAll(ctx, op, owner, uploads)
	if err != nil {
		return nil, err
	}

	p := &models.BusinessProfile{
		Base:                models.NewBase(s.now().UTC()),
		Owner:               owner,
		BusinessName:        models.DefaultBusinessName,
		DefaultTaxPercent:   s.taxPercent,
		SignatureOwnerName:  strings.TrimSpace(in.SignatureOwnerName.Or("")),
		SignatureOwnerTitle: strings.TrimSpace(in.SignatureOwnerTitle.Or("")),
		Email:               strings.TrimSpace(in.Email.Or("")),
		Address:             strings.TrimSpace(in.Address.Or("")),
		Phone:               strings.TrimSpace(in.Phone.Or("")),
		Gst:                 strings.TrimSpace(in.Gst.Or("")),
		LogoURL:             models.StringPtr(in.LogoURL),
		StampURL:            models.StringPtr(in.StampURL),
		SignatureURL:        models.StringPtr(in.SignatureURL),
	}
	if name := strings.TrimSpace(in.BusinessName.Or("")); name != "" {
		p.BusinessName = name
	}
	if in.DefaultTaxPercent.Set && !in.DefaultTaxPercent.Null {
		p.DefaultTaxPercent = billing.ParseFloat(in.DefaultTaxPercent.Value)
	}
	urls.apply(p)

	if err := s.store.Insert(ctx, p); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return nil, Conflict(op, "business profile already exists", err)
		}
		return nil, Internal(op, "failed to create business profile", err)
	}
	s.log.Info("Business profile created", zap.String("owner", owner), zap.String("profileID", p.ID.Hex()))
	return p, nil
}

func (s *businessProfileService) UpdateProfile(ctx context.Context, owner, id string, in BusinessProfileInput, uploads ProfileUploads) (*models.BusinessProfile, error) {
	const op = "business_profile.update"
	if owner == "" {
		return nil, Unauthenticated(op)
	}
	objectID, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return nil, NotFound(op, "business profile not found")
	}

	existing, err := s.store.FindByID(ctx, objectID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, NotFound(op, "business profile not found")
	}
	if err != nil {
		return nil, Internal(op, "failed to load business profile", err)
	}
	if existing.Owner != owner {
		return nil, Forbidden(op, "you do not have access to this business profile")
	}

	updated := *existing
	if in.BusinessName.Set {
		updated.BusinessName = strings.TrimSpace(in.BusinessName.Or(""))
		if updated.BusinessName == "" {
			updated.BusinessName = models.DefaultBusinessName
		}
	}
	applyString(&updated.Email, in.Email)
	applyString(&updated.Address, in.Address)
	applyString(&updated.Phone, in.Phone)
	applyString(&updated.Gst, in.Gst)
	applyString(&updated.SignatureOwnerName, in.SignatureOwnerName)
	applyString(&updated.SignatureOwnerTitle, in.SignatureOwnerTitle)
	if in.LogoURL.Set {
		updated.LogoURL = models.StringPtr(in.LogoURL)
	}
	if in.StampURL.Set {
		updated.StampURL = models.StringPtr(in.StampURL)
	}
	if in.SignatureURL.Set {
		updated.SignatureURL = models.StringPtr(in.SignatureURL)
	}
	if in.DefaultTaxPercent.Set {
		if in.DefaultTaxPercent.Null {
			updated.DefaultTaxPercent = s.taxPercent
		} else {
			updated.DefaultTaxPercent = billing.ParseFloat(in.DefaultTaxPercent.Value)
		}
	}

	urls, err := s.uploadAll(ctx, op, owner, uploads)
	if err != nil {
		return nil, err
	}
	urls.apply(&updated)
	updated.Touch(s.now().UTC())

	if err := s.store.Replace(ctx, &updated); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, NotFound(op, "business profile not found")
		}
		return nil, Internal(op, "failed to update business profile", err)
	}
	return &updated, nil
}

func (s *businessProfileService) GetMyProfile(ctx context.Context, owner string) (*models.BusinessProfile, error) {
	const op = "business_profile.get_mine"
	if owner == "" {
		return nil, Unauthenticated(op)
	}
	p, err := s.store.FindByOwner(ctx, owner)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, Internal(op, "failed to load business profile", err)
	}
	return p, nil
}

type assetURLs struct {
	logo, stamp, signature string
}

// apply overrides profile URLs with freshly uploaded ones.
func (u assetURLs) apply(p *models.BusinessProfile) {
	set := func(dst **string, v string) {
		if v != "" {
			url := v
			*dst = &url
		}
	}
	set(&p.LogoURL, u.logo)
	set(&p.StampURL, u.stamp)
	set(&p.SignatureURL, u.signature)
}

// uploadAll sends the present files to asset storage concurrently, bounded
// by the external call timeout. The first failure cancels the rest.
func (s *businessProfileService) uploadAll(ctx context.Context, op, owner string, uploads ProfileUploads) (assetURLs, error) {
	var urls assetURLs
	if uploads.empty() {
		return urls, nil
	}
	if s.assets == nil {
		return urls, Internal(op, "asset storage is not configured", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	start := func(u *Upload, kind storage.AssetKind, dst *string) {
		if u == nil {
			return
		}
		g.Go(func() error {
			url, err := s.assets.Upload(gctx, owner, kind, u.Filename, u.ContentType, u.Data)
			if err != nil {
				return err
			}
			*dst = url
			return nil
		})
	}
	start(uploads.Logo, storage.AssetLogo, &urls.logo)
	start(uploads.Stamp, storage.AssetStamp, &urls.stamp)
	start(uploads.Signature, storage.AssetSignature, &urls.signature)

	if err := g.Wait(); err != nil {
		if errors.Is(err, storage.ErrImageTooLarge) {
			return assetURLs{}, BadRequest(op, "uploaded image dimensions are too large", err)
		}
		return assetURLs{}, Internal(op, "failed to upload business profile assets", err)
	}
	return urls, nil
}
