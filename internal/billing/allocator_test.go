package billing

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockNumberChecker struct {
	mock.Mock
}

func (m *MockNumberChecker) InvoiceNumberExists(ctx context.Context, number string) (bool, error) {
	args := m.Called(ctx, number)
	return args.Bool(0), args.Error(1)
}

var candidatePattern = regexp.MustCompile(`^INV-\d{6}-\d{6}$`)

func fixedClock() time.Time {
	return time.UnixMilli(1718000123456)
}

func TestAllocator_Candidate(t *testing.T) {
	a := NewAllocator(nil, WithClock(fixedClock), WithRandom(func(int) int { return 42 }))
	assert.Equal(t, "INV-123456-000042", a.Candidate())

	assert.Regexp(t, candidatePattern, NewAllocator(nil).Candidate())
}

func TestAllocator_FirstFreeCandidateWins(t *testing.T) {
	checker := new(MockNumberChecker)
	seq := []int{1, 2, 3}
	call := 0
	a := NewAllocator(checker, WithClock(fixedClock), WithPause(0), WithRandom(func(int) int {
		v := seq[call]
		call++
		return v
	}))

	checker.On("InvoiceNumberExists", mock.Anything, "INV-123456-000001").Return(true, nil).Once()
	checker.On("InvoiceNumberExists", mock.Anything, "INV-123456-000002").Return(false, nil).Once()

	number, err := a.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "INV-123456-000002", number)
	checker.AssertExpectations(t)
	checker.AssertNumberOfCalls(t, "InvoiceNumberExists", 2)
}

func TestAllocator_FallsBackWhenEveryCandidateCollides(t *testing.T) {
	checker := new(MockNumberChecker)
	checker.On("InvoiceNumberExists", mock.Anything, mock.Anything).Return(true, nil)
	a := NewAllocator(checker, WithPause(0), WithFallback(func() string { return "65f0c0ffee0000000000abcd" }))

	number, err := a.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "65f0c0ffee0000000000abcd", number)
	checker.AssertNumberOfCalls(t, "InvoiceNumberExists", DefaultAllocatorAttempts)
}

func TestAllocator_DefaultFallbackIsObjectIDHex(t *testing.T) {
	checker := new(MockNumberChecker)
	checker.On("InvoiceNumberExists", mock.Anything, mock.Anything).Return(true, nil)

	number, err := NewAllocator(checker, WithPause(0)).Allocate(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9a-f]{24}$`, number)
}

func TestAllocator_AttemptsAreClamped(t *testing.T) {
	checker := new(MockNumberChecker)
	checker.On("InvoiceNumberExists", mock.Anything, mock.Anything).Return(true, nil)

	_, err := NewAllocator(checker, WithPause(0), WithAttempts(50)).Allocate(context.Background())
	require.NoError(t, err)
	checker.AssertNumberOfCalls(t, "InvoiceNumberExists", MaxAllocatorAttempts)
}

func TestAllocator_CheckerErrorPropagates(t *testing.T) {
	checker := new(MockNumberChecker)
	boom := errors.New("server selection timeout")
	checker.On("InvoiceNumberExists", mock.Anything, mock.Anything).Return(false, boom)

	_, err := NewAllocator(checker).Allocate(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestAllocator_StopsOnCancelledContext(t *testing.T) {
	checker := new(MockNumberChecker)
	checker.On("InvoiceNumberExists", mock.Anything, mock.Anything).Return(true, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAllocator(checker, WithPause(time.Second)).Allocate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	checker.AssertNumberOfCalls(t, "InvoiceNumberExists", 1)
}
