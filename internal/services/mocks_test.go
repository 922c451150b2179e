package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vedant7151/Invoice-Generator/internal/email"
	"github.com/vedant7151/Invoice-Generator/internal/models"
	"github.com/vedant7151/Invoice-Generator/internal/storage"
)

func duplicateKeyError() error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key error"}}}
}

// MockInvoiceStore is a mock implementation of IInvoiceStore.
type MockInvoiceStore struct {
	mock.Mock
}

func (m *MockInvoiceStore) Insert(ctx context.Context, inv *models.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvoiceStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceStore) FindByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceStore) InvoiceNumberExists(ctx context.Context, number string) (bool, error) {
	args := m.Called(ctx, number)
	return args.Bool(0), args.Error(1)
}

func (m *MockInvoiceStore) NumberTakenByOther(ctx context.Context, number string, self primitive.ObjectID) (bool, error) {
	args := m.Called(ctx, number, self)
	return args.Bool(0), args.Error(1)
}

func (m *MockInvoiceStore) Replace(ctx context.Context, inv *models.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvoiceStore) Delete(ctx context.Context, id primitive.ObjectID, owner string) error {
	args := m.Called(ctx, id, owner)
	return args.Error(0)
}

func (m *MockInvoiceStore) List(ctx context.Context, owner string, q InvoiceQuery) ([]models.Invoice, error) {
	args := m.Called(ctx, owner, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Invoice), args.Error(1)
}

func (m *MockInvoiceStore) SetEmailedAt(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockInvoiceStore) MarkOverdue(ctx context.Context, today string, now time.Time) (int64, error) {
	args := m.Called(ctx, today, now)
	return args.Get(0).(int64), args.Error(1)
}

// MockBusinessProfileStore is a mock implementation of IBusinessProfileStore.
type MockBusinessProfileStore struct {
	mock.Mock
}

func (m *MockBusinessProfileStore) Insert(ctx context.Context, p *models.BusinessProfile) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockBusinessProfileStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.BusinessProfile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BusinessProfile), args.Error(1)
}

func (m *MockBusinessProfileStore) FindByOwner(ctx context.Context, owner string) (*models.BusinessProfile, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BusinessProfile), args.Error(1)
}

func (m *MockBusinessProfileStore) Replace(ctx context.Context, p *models.BusinessProfile) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

// MockAssetStorage is a mock implementation of storage.IAssetStorage.
type MockAssetStorage struct {
	mock.Mock
}

func (m *MockAssetStorage) Upload(ctx context.Context, owner string, kind storage.AssetKind, filename, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, owner, kind, filename, contentType, data)
	return args.String(0), args.Error(1)
}

// MockRenderer is a mock implementation of InvoiceRenderer.
type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) Render(ctx context.Context, inv *models.Invoice) ([]byte, error) {
	args := m.Called(ctx, inv)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockSender is a mock implementation of email.Sender.
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, msg email.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockEmailQueue is a mock implementation of InvoiceEmailQueue.
type MockEmailQueue struct {
	mock.Mock
}

func (m *MockEmailQueue) EnqueueInvoiceEmail(ctx context.Context, invoiceID, owner, recipient string) (string, error) {
	args := m.Called(ctx, invoiceID, owner, recipient)
	return args.String(0), args.Error(1)
}
