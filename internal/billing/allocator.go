package billing

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NumberChecker reports whether an invoice number is already taken. It should
// be an existence query, not a document fetch.
type NumberChecker interface {
	InvoiceNumberExists(ctx context.Context, number string) (bool, error)
}

const (
	DefaultAllocatorAttempts = 8
	MinAllocatorAttempts     = 8
	MaxAllocatorAttempts     = 10
	defaultAllocatorPause    = 2 * time.Millisecond
)

// Allocator produces system-generated invoice numbers. The existence check is
// advisory: true uniqueness is enforced by the store's unique index at write
// time.
type Allocator struct {
	checker  NumberChecker
	attempts int
	pause    time.Duration
	now      func() time.Time
	intn     func(n int) int
	fallback func() string
}

// AllocatorOption customises an Allocator.
type AllocatorOption func(*Allocator)

// WithAttempts sets the number of candidates tried before falling back. The
// value is clamped to [MinAllocatorAttempts, MaxAllocatorAttempts].
func WithAttempts(n int) AllocatorOption {
	return func(a *Allocator) {
		if n < MinAllocatorAttempts {
			n = MinAllocatorAttempts
		}
		if n > MaxAllocatorAttempts {
			n = MaxAllocatorAttempts
		}
		a.attempts = n
	}
}

// WithPause sets the wait between colliding candidates.
func WithPause(d time.Duration) AllocatorOption {
	return func(a *Allocator) { a.pause = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) AllocatorOption {
	return func(a *Allocator) { a.now = now }
}

// WithRandom replaces the random source; intn must return a value in [0,n).
func WithRandom(intn func(n int) int) AllocatorOption {
	return func(a *Allocator) { a.intn = intn }
}

// WithFallback replaces the guaranteed-unique fallback generator.
func WithFallback(fn func() string) AllocatorOption {
	return func(a *Allocator) { a.fallback = fn }
}

// NewAllocator creates an Allocator backed by checker.
func NewAllocator(checker NumberChecker, opts ...AllocatorOption) *Allocator {
	a := &Allocator{
		checker:  checker,
		attempts: DefaultAllocatorAttempts,
		pause:    defaultAllocatorPause,
		now:      time.Now,
		intn:     rand.Intn,
		fallback: func() string { return primitive.NewObjectID().Hex() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Candidate builds one number of the form INV-<6 digits of ms>-<6 digits random>.
func (a *Allocator) Candidate() string {
	ts := strconv.FormatInt(a.now().UnixMilli(), 10)
	if len(ts) > 6 {
		ts = ts[len(ts)-6:]
	}
	return fmt.Sprintf("INV-%s-%06d", ts, a.intn(900000))
}

// Allocate returns the first candidate the checker reports as free. When
// every attempt collides it returns the fallback instead of failing. Only
// checker errors and context cancellation produce an error.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	for i := 0; i < a.attempts; i++ {
		candidate := a.Candidate()
		exists, err := a.checker.InvoiceNumberExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("checking invoice number %s: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
		if i < a.attempts-1 && a.pause > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(a.pause):
			}
		}
	}
	return a.fallback(), nil
}
