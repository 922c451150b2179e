package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vedant7151/Invoice-Generator/internal/models"
	"github.com/vedant7151/Invoice-Generator/internal/storage"
)

func newTestProfileService(store *MockBusinessProfileStore, assets *MockAssetStorage) *businessProfileService {
	var st storage.IAssetStorage
	if assets != nil {
		st = assets
	}
	svc := NewBusinessProfileService(store, st, nil, nil).(*businessProfileService)
	svc.now = func() time.Time { return fixedNow }
	svc.timeout = time.Second
	return svc
}

func TestCreateProfile_DefaultsAndPayloadURLs(t *testing.T) {
	store := new(MockBusinessProfileStore)
	svc := newTestProfileService(store, nil)

	store.On("FindByOwner", mock.Anything, "user_1").Return(nil, mongo.ErrNoDocuments)
	store.On("Insert", mock.Anything, mock.AnythingOfType("*models.BusinessProfile")).Return(nil)

	p, err := svc.CreateProfile(context.Background(), "user_1", BusinessProfileInput{
		Email:   models.Some(" owner@abc.test "),
		LogoURL: models.Some("https://cdn.test/logo.png"),
	}, ProfileUploads{})
	require.NoError(t, err)

	assert.Equal(t, "user_1", p.Owner)
	assert.Equal(t, models.DefaultBusinessName, p.BusinessName)
	assert.Equal(t, 18.0, p.DefaultTaxPercent)
	assert.Equal(t, "owner@abc.test", p.Email)
	require.NotNil(t, p.LogoURL)
	assert.Equal(t, "https://cdn.test/logo.png", *p.LogoURL)
	assert.Nil(t, p.StampURL)
	assert.Nil(t, p.SignatureURL)
	assert.Equal(t, fixedNow, p.CreatedAt)
}

func TestCreateProfile_UploadBeatsPayloadURL(t *testing.T) {
	store := new(MockBusinessProfileStore)
	assets := new(MockAssetStorage)
	svc := newTestProfileService(store, assets)

	store.On("FindByOwner", mock.Anything, "user_1").Return(nil, mongo.ErrNoDocuments)
	store.On("Insert", mock.Anything, mock.Anything).Return(nil)
	assets.On("Upload", mock.Anything, "user_1", storage.AssetLogo, "logo.png", "image/png", []byte("L")).Return("https://s3/logo", nil)
	assets.On("Upload", mock.Anything, "user_1", storage.AssetSignature, "sig.png", "image/png", []byte("S")).Return("https://s3/sig", nil)

	p, err := svc.CreateProfile(context.Background(), "user_1", BusinessProfileInput{
		LogoURL:           models.Some("https://cdn.test/old.png"),
		DefaultTaxPercent: models.Some[any]("12.5"),
	}, ProfileUploads{
		Logo:      &Upload{Filename: "logo.png", ContentType: "image/png", Data: []byte("L")},
		Signature: &Upload{Filename: "sig.png", ContentType: "image/png", Data: []byte("S")},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://s3/logo", *p.LogoURL)
	assert.Equal(t, "https://s3/sig", *p.SignatureURL)
	assert.Nil(t, p.StampURL)
	assert.Equal(t, 12.5, p.DefaultTaxPercent)
	assets.AssertExpectations(t)
}

func TestCreateProfile_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("unauthenticated", func(t *testing.T) {
		svc := newTestProfileService(new(MockBusinessProfileStore), nil)
		_, err := svc.CreateProfile(ctx, "", BusinessProfileInput{}, ProfileUploads{})
		assert.Equal(t, KindUnauthenticated, KindOf(err))
	})

	t.Run("already exists", func(t *testing.T) {
		store := new(MockBusinessProfileStore)
		assets := new(MockAssetStorage)
		svc := newTestProfileService(store, assets)
		store.On("FindByOwner", mock.Anything, "user_1").Return(&models.BusinessProfile{Owner: "user_1"}, nil)

		_, err := svc.CreateProfile(ctx, "user_1", BusinessProfileInput{}, ProfileUploads{Logo: &Upload{Data: []byte("x")}})
		assert.Equal(t, KindConflict, KindOf(err))
		assets.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("duplicate on insert", func(t *testing.T) {
		store := new(MockBusinessProfileStore)
		svc := newTestProfileService(store, nil)
		store.On("FindByOwner", mock.Anything, "user_1").Return(nil, mongo.ErrNoDocuments)
		store.On("Insert", mock.Anything, mock.Anything).Return(duplicateKeyError())

		_, err := svc.CreateProfile(ctx, "user_1", BusinessProfileInput{}, ProfileUploads{})
		assert.Equal(t, KindConflict, KindOf(err))
	})

	t.Run("upload fails", func(t *testing.T) {
		store := new(MockBusinessProfileStore)
		assets := new(MockAssetStorage)
		svc := newTestProfileService(store, assets)
		store.On("FindByOwner", mock.Anything, "user_1").Return(nil, mongo.ErrNoDocuments)
		assets.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("s3 down"))

		_, err := svc.CreateProfile(ctx, "user_1", BusinessProfileInput{}, ProfileUploads{Stamp: &Upload{Data: []byte("x")}})
		assert.Equal(t, KindInternal, KindOf(err))
		store.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})

	t.Run("no storage configured", func(t *testing.T) {
		store := new(MockBusinessProfileStore)
		svc := newTestProfileService(store, nil)
		store.On("FindByOwner", mock.Anything, "user_1").Return(nil, mongo.ErrNoDocuments)

		_, err := svc.CreateProfile(ctx, "user_1", BusinessProfileInput{}, ProfileUploads{Logo: &Upload{Data: []byte("x")}})
		assert.Equal(t, KindInternal, KindOf(err))
	})

	t.Run("image too large", func(t *testing.T) {
		store := new(MockBusinessProfileStore)
		assets := new(MockAssetStorage)
		svc := newTestProfileService(store, assets)
		store.On("FindByOwner", mock.Anything, "user_1").Return(nil, mongo.ErrNoDocuments)
		assets.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("", fmt.Errorf("logo upload: %w", storage.ErrImageTooLarge))

		_, err := svc.CreateProfile(ctx, "user_1", BusinessProfileInput{}, ProfileUploads{Logo: &Upload{Data: []byte("x")}})
		assert.Equal(t, KindBadRequest, KindOf(err))
		assert.ErrorIs(t, err, storage.ErrImageTooLarge)
		store.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})
}

func existingProfile(owner string) *models.BusinessProfile {
	logo := "https://cdn.test/logo.png"
	stamp := "https://cdn.test/stamp.png"
	return &models.BusinessProfile{
		Base:              models.NewBase(fixedNow.Add(-24 * time.Hour)),
		Owner:             owner,
		BusinessName:      "Acme Traders",
		Email:             "hello@acme.test",
		Phone:             "+91 99999 00000",
		LogoURL:           &logo,
		StampURL:          &stamp,
		DefaultTaxPercent: 18,
	}
}

func TestUpdateProfile_PartialWithUploadPrecedence(t *testing.T) {
	store := new(MockBusinessProfileStore)
	assets := new(MockAssetStorage)
	svc := newTestProfileService(store, assets)
	existing := existingProfile("user_1")

	store.On("FindByID", mock.Anything, existing.ID).Return(existing, nil)
	store.On("Replace", mock.Anything, mock.Anything).Return(nil)
	assets.On("Upload", mock.Anything, "user_1", storage.AssetStamp, mock.Anything, mock.Anything, mock.Anything).Return("https://s3/new-stamp", nil)

	got, err := svc.UpdateProfile(context.Background(), "user_1", existing.ID.Hex(), BusinessProfileInput{
		Phone:    models.Some(""),
		StampURL: models.Some("https://cdn.test/ignored.png"),
		LogoURL:  models.Some("https://cdn.test/logo-v2.png"),
	}, ProfileUploads{Stamp: &Upload{Filename: "s.png", Data: []byte("S")}})
	require.NoError(t, err)

	assert.Equal(t, "Acme Traders", got.BusinessName, "absent field untouched")
	assert.Equal(t, "hello@acme.test", got.Email)
	assert.Empty(t, got.Phone, "empty clears")
	assert.Equal(t, "https://s3/new-stamp", *got.StampURL, "upload wins over payload url")
	assert.Equal(t, "https://cdn.test/logo-v2.png", *got.LogoURL, "payload url wins over existing")
	assert.Nil(t, got.SignatureURL)
	assert.Equal(t, fixedNow, got.UpdatedAt)
	assert.Equal(t, "https://cdn.test/stamp.png", *existing.StampURL, "stored copy is not mutated")
}

func TestUpdateProfile_Failures(t *testing.T) {
	ctx := context.Background()
	store := new(MockBusinessProfileStore)
	svc := newTestProfileService(store, nil)
	theirs := existingProfile("user_2")
	missing := primitive.NewObjectID()

	store.On("FindByID", mock.Anything, theirs.ID).Return(theirs, nil)
	store.On("FindByID", mock.Anything, missing).Return(nil, mongo.ErrNoDocuments)

	_, err := svc.UpdateProfile(ctx, "user_1", theirs.ID.Hex(), BusinessProfileInput{BusinessName: models.Some("Mine now")}, ProfileUploads{})
	assert.Equal(t, KindForbidden, KindOf(err))
	assert.Equal(t, "Acme Traders", theirs.BusinessName)

	_, err = svc.UpdateProfile(ctx, "user_1", missing.Hex(), BusinessProfileInput{}, ProfileUploads{})
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = svc.UpdateProfile(ctx, "user_1", "not-an-id", BusinessProfileInput{}, ProfileUploads{})
	assert.Equal(t, KindNotFound, KindOf(err))

	store.AssertNotCalled(t, "Replace", mock.Anything, mock.Anything)
}

func TestUpdateProfile_ClearingNameRestoresDefault(t *testing.T) {
	store := new(MockBusinessProfileStore)
	svc := newTestProfileService(store, nil)
	existing := existingProfile("user_1")

	store.On("FindByID", mock.Anything, existing.ID).Return(existing, nil)
	store.On("Replace", mock.Anything, mock.Anything).Return(nil)

	got, err := svc.UpdateProfile(context.Background(), "user_1", existing.ID.Hex(), BusinessProfileInput{
		BusinessName:      models.Null[string](),
		DefaultTaxPercent: models.Some[any](-4),
	}, ProfileUploads{})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultBusinessName, got.BusinessName)
	assert.Equal(t, 0.0, got.DefaultTaxPercent)
}

func TestGetMyProfile(t *testing.T) {
	ctx := context.Background()
	store := new(MockBusinessProfileStore)
	svc := newTestProfileService(store, nil)
	mine := existingProfile("user_1")

	store.On("FindByOwner", mock.Anything, "user_1").Return(mine, nil)
	store.On("FindByOwner", mock.Anything, "user_new").Return(nil, mongo.ErrNoDocuments)
	store.On("FindByOwner", mock.Anything, "user_err").Return(nil, errors.New("boom"))

	p, err := svc.GetMyProfile(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, mine, p)

	p, err = svc.GetMyProfile(ctx, "user_new")
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = svc.GetMyProfile(ctx, "user_err")
	assert.Equal(t, KindInternal, KindOf(err))
}
