package handlers_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/vedant7151/Invoice-Generator/internal/models"
	"github.com/vedant7151/Invoice-Generator/internal/services"
)

// MockInvoiceService implements services.IInvoiceService
type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) CreateInvoice(ctx context.Context, owner string, in services.InvoiceInput) (*models.Invoice, error) {
	args := m.Called(ctx, owner, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) GetInvoice(ctx context.Context, owner, ref string) (*models.Invoice, error) {
	args := m.Called(ctx, owner, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) UpdateInvoice(ctx context.Context, owner, ref string, patch services.InvoicePatch) (*models.Invoice, error) {
	args := m.Called(ctx, owner, ref, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) DeleteInvoice(ctx context.Context, owner, ref string) error {
	args := m.Called(ctx, owner, ref)
	return args.Error(0)
}

func (m *MockInvoiceService) ListInvoices(ctx context.Context, owner string, q services.InvoiceQuery) ([]models.Invoice, error) {
	args := m.Called(ctx, owner, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) MarkOverdueInvoices(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockInvoiceMailer implements services.IInvoiceMailer
type MockInvoiceMailer struct {
	mock.Mock
}

func (m *MockInvoiceMailer) SendInvoice(ctx context.Context, owner, ref, customerEmail string) (*services.EmailResult, error) {
	args := m.Called(ctx, owner, ref, customerEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.EmailResult), args.Error(1)
}

func (m *MockInvoiceMailer) QueueInvoice(ctx context.Context, owner, ref, customerEmail string) (*services.EmailResult, error) {
	args := m.Called(ctx, owner, ref, customerEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.EmailResult), args.Error(1)
}

func (m *MockInvoiceMailer) DeliverInvoice(ctx context.Context, owner, invoiceID, recipient string) error {
	args := m.Called(ctx, owner, invoiceID, recipient)
	return args.Error(0)
}

// MockBusinessProfileService implements services.IBusinessProfileService
type MockBusinessProfileService struct {
	mock.Mock
}

func (m *MockBusinessProfileService) CreateProfile(ctx context.Context, owner string, in services.BusinessProfileInput, uploads services.ProfileUploads) (*models.BusinessProfile, error) {
	args := m.Called(ctx, owner, in, uploads)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BusinessProfile), args.Error(1)
}

func (m *MockBusinessProfileService) UpdateProfile(ctx context.Context, owner, id string, in services.BusinessProfileInput, uploads services.ProfileUploads) (*models.BusinessProfile, error) {
	args := m.Called(ctx, owner, id, in, uploads)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BusinessProfile), args.Error(1)
}

func (m *MockBusinessProfileService) GetMyProfile(ctx context.Context, owner string) (*models.BusinessProfile, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BusinessProfile), args.Error(1)
}

// MockInvoiceDrafter implements ai.IInvoiceDrafter
type MockInvoiceDrafter struct {
	mock.Mock
}

func (m *MockInvoiceDrafter) DraftInvoice(ctx context.Context, owner, prompt string) (*services.InvoiceInput, error) {
	args := m.Called(ctx, owner, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.InvoiceInput), args.Error(1)
}
