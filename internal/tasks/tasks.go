package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vedant7151/Invoice-Generator/internal/logger"
	"github.com/vedant7151/Invoice-Generator/internal/services"
)

// Task types handled by the background worker.
const (
	TypeInvoiceEmail       = "invoice:email"
	TypeInvoiceMarkOverdue = "invoice:mark_overdue"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// RedisOpt derives asynq connection options from an existing go-redis client.
func RedisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

// --- Task Client (Enqueuing tasks) ---

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Client enqueues invoice tasks. It satisfies services.InvoiceEmailQueue.
type Client struct {
	client enqueuer
	closer func() error
	log    *zap.Logger
}

func NewClient(rdb *redis.Client, log *zap.Logger) *Client {
	c := asynq.NewClient(RedisOpt(rdb))
	return &Client{client: c, closer: c.Close, log: logger.OrNop(log)}
}

func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// InvoiceEmailPayload identifies a validated invoice email request.
type InvoiceEmailPayload struct {
	InvoiceID string `json:"invoice_id"`
	Owner     string `json:"owner"`
	Recipient string `json:"recipient"`
}

// NewInvoiceEmailTask builds the task that emails one invoice.
func NewInvoiceEmailTask(p InvoiceEmailPayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal invoice email payload: %w", err)
	}
	return asynq.NewTask(TypeInvoiceEmail, b,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
	), nil
}

func (c *Client) EnqueueInvoiceEmail(ctx context.Context, invoiceID, owner, recipient string) (string, error) {
	task, err := NewInvoiceEmailTask(InvoiceEmailPayload{InvoiceID: invoiceID, Owner: owner, Recipient: recipient})
	if err != nil {
		return "", err
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", TypeInvoiceEmail, err)
	}
	c.log.Debug("Enqueued task", zap.String("type", TypeInvoiceEmail), zap.String("task_id", info.ID))
	return info.ID, nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
type TaskProcessor struct {
	mailer   services.IInvoiceMailer
	invoices services.IInvoiceService
	log      *zap.Logger
}

func NewTaskProcessor(mailer services.IInvoiceMailer, invoices services.IInvoiceService, log *zap.Logger) *TaskProcessor {
	return &TaskProcessor{mailer: mailer, invoices: invoices, log: logger.OrNop(log)}
}

// NewServeMux registers every handler of p.
func NewServeMux(p *TaskProcessor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeInvoiceEmail, p.HandleInvoiceEmailTask)
	mux.HandleFunc(TypeInvoiceMarkOverdue, p.HandleMarkOverdueTask)
	return mux
}

// SetupServer configures an asynq server. The caller starts it with the mux
// from NewServeMux and shuts it down.
func SetupServer(rdb *redis.Client, concurrency int, log *zap.Logger) *asynq.Server {
	log = logger.OrNop(log)
	return asynq.NewServer(
		RedisOpt(rdb),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueCritical: 6,
				QueueDefault:  3,
				QueueLow:      1,
			},
			Logger: log.Sugar(),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error("Task failed",
					zap.String("type", task.Type()),
					zap.ByteString("payload", task.Payload()),
					zap.Error(err),
				)
			}),
		},
	)
}

// SetupScheduler registers the periodic overdue sweep under cronspec.
func SetupScheduler(rdb *redis.Client, cronspec string, log *zap.Logger) (*asynq.Scheduler, error) {
	log = logger.OrNop(log)
	scheduler := asynq.NewScheduler(RedisOpt(rdb), &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   log.Sugar(),
	})
	entryID, err := scheduler.Register(cronspec, asynq.NewTask(TypeInvoiceMarkOverdue, nil, asynq.Queue(QueueLow), asynq.MaxRetry(1)))
	if err != nil {
		return nil, fmt.Errorf("register %s with %q: %w", TypeInvoiceMarkOverdue, cronspec, err)
	}
	log.Info("Scheduled overdue sweep", zap.String("cron", cronspec), zap.String("entry_id", entryID))
	return scheduler, nil
}

// --- Task Handlers ---

// HandleInvoiceEmailTask renders and sends one invoice. Errors that another
// attempt cannot fix skip the retry queue.
func (p *TaskProcessor) HandleInvoiceEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload InvoiceEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal invoice email payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.InvoiceID == "" || payload.Owner == "" || payload.Recipient == "" {
		return fmt.Errorf("incomplete invoice email payload: %w", asynq.SkipRetry)
	}

	err := p.mailer.DeliverInvoice(ctx, payload.Owner, payload.InvoiceID, payload.Recipient)
	if err == nil {
		p.log.Info("Invoice email task processed", zap.String("invoice_id", payload.InvoiceID))
		return nil
	}
	switch services.KindOf(err) {
	case services.KindNotFound, services.KindForbidden, services.KindBadRequest, services.KindUnauthenticated:
		p.log.Warn("Dropping invoice email task",
			zap.String("invoice_id", payload.InvoiceID),
			zap.Error(err),
		)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// HandleMarkOverdueTask flips unpaid invoices past their due date to overdue.
func (p *TaskProcessor) HandleMarkOverdueTask(ctx context.Context, _ *asynq.Task) error {
	n, err := p.invoices.MarkOverdueInvoices(ctx)
	if err != nil {
		return err
	}
	p.log.Info("Overdue sweep finished", zap.Int64("updated", n))
	return nil
}
