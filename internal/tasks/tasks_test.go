package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vedant7151/Invoice-Generator/internal/models"
	"github.com/vedant7151/Invoice-Generator/internal/services"
)

// --- Mocks ---

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendInvoice(ctx context.Context, owner, ref, customerEmail string) (*services.EmailResult, error) {
	args := m.Called(ctx, owner, ref, customerEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.EmailResult), args.Error(1)
}

func (m *MockMailer) QueueInvoice(ctx context.Context, owner, ref, customerEmail string) (*services.EmailResult, error) {
	args := m.Called(ctx, owner, ref, customerEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.EmailResult), args.Error(1)
}

func (m *MockMailer) DeliverInvoice(ctx context.Context, owner, invoiceID, recipient string) error {
	args := m.Called(ctx, owner, invoiceID, recipient)
	return args.Error(0)
}

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
	return args.Get(0).([]models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) MarkOverdueInvoices(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}

func emailTask(t *testing.T, p InvoiceEmailPayload) *asynq.Task {
	t.Helper()
	task, err := NewInvoiceEmailTask(p)
	require.NoError(t, err)
	return task
}

// --- Tests ---

func TestEnqueueInvoiceEmail(t *testing.T) {
	fake := &fakeEnqueuer{}
	c := &Client{client: fake, log: zap.NewNop()}

	id, err := c.EnqueueInvoiceEmail(context.Background(), "inv1", "user_1", "a@b.test")
	require.NoError(t, err)
	assert.Equal(t, "task-1", id)
	require.Len(t, fake.tasks, 1)
	assert.Equal(t, TypeInvoiceEmail, fake.tasks[0].Type())

	var got InvoiceEmailPayload
	require.NoError(t, json.Unmarshal(fake.tasks[0].Payload(), &got))
	assert.Equal(t, InvoiceEmailPayload{InvoiceID: "inv1", Owner: "user_1", Recipient: "a@b.test"}, got)

	fake.err = errors.New("redis down")
	_, err = c.EnqueueInvoiceEmail(context.Background(), "inv1", "user_1", "a@b.test")
	assert.Error(t, err)
}

func TestHandleInvoiceEmailTask_Success(t *testing.T) {
	mailer := new(MockMailer)
	p := NewTaskProcessor(mailer, nil, nil)
	mailer.On("DeliverInvoice", mock.Anything, "user_1", "inv1", "a@b.test").Return(nil)

	err := p.HandleInvoiceEmailTask(context.Background(), emailTask(t, InvoiceEmailPayload{
		InvoiceID: "inv1", Owner: "user_1", Recipient: "a@b.test",
	}))
	assert.NoError(t, err)
	mailer.AssertExpectations(t)
}

func TestHandleInvoiceEmailTask_SkipsRetry(t *testing.T) {
	mailer := new(MockMailer)
	p := NewTaskProcessor(mailer, nil, nil)

	err := p.HandleInvoiceEmailTask(context.Background(), asynq.NewTask(TypeInvoiceEmail, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = p.HandleInvoiceEmailTask(context.Background(), emailTask(t, InvoiceEmailPayload{InvoiceID: "inv1"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	mailer.On("DeliverInvoice", mock.Anything, "user_1", "gone", "a@b.test").
		Return(services.NotFound("invoice.deliver_email", "invoice not found"))
	err = p.HandleInvoiceEmailTask(context.Background(), emailTask(t, InvoiceEmailPayload{
		InvoiceID: "gone", Owner: "user_1", Recipient: "a@b.test",
	}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleInvoiceEmailTask_RetriesTransientFailures(t *testing.T) {
	mailer := new(MockMailer)
	p := NewTaskProcessor(mailer, nil, nil)
	mailer.On("DeliverInvoice", mock.Anything, "user_1", "inv1", "a@b.test").
		Return(services.Internal("invoice.deliver_email", "failed to send invoice email", errors.New("timeout")))

	err := p.HandleInvoiceEmailTask(context.Background(), emailTask(t, InvoiceEmailPayload{
		InvoiceID: "inv1", Owner: "user_1", Recipient: "a@b.test",
	}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleMarkOverdueTask(t *testing.T) {
	invoices := new(MockInvoiceService)
	p := NewTaskProcessor(nil, invoices, nil)

	invoices.On("MarkOverdueInvoices", mock.Anything).Return(int64(3), nil).Once()
	assert.NoError(t, p.HandleMarkOverdueTask(context.Background(), asynq.NewTask(TypeInvoiceMarkOverdue, nil)))

	invoices.On("MarkOverdueInvoices", mock.Anything).Return(int64(0), errors.New("mongo down")).Once()
	assert.Error(t, p.HandleMarkOverdueTask(context.Background(), asynq.NewTask(TypeInvoiceMarkOverdue, nil)))
}
