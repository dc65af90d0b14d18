package worker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"carwash/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockOutbox struct {
	mock.Mock
}

func (m *mockOutbox) EnqueueMail(ctx context.Context, req *models.MailRequest) error {
	return m.Called(ctx, req).Error(0)
}
func (m *mockOutbox) GetMailRequest(ctx context.Context, key string) (*models.MailRequest, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MailRequest), args.Error(1)
}
func (m *mockOutbox) GetQueuedMail(ctx context.Context, limit int) ([]*models.MailRequest, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.MailRequest), args.Error(1)
}
func (m *mockOutbox) MarkMailDispatched(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}
func (m *mockOutbox) MarkMailRetry(ctx context.Context, key, lastError string, nextRetryAt time.Time) error {
	return m.Called(ctx, key, lastError, nextRetryAt).Error(0)
}
func (m *mockOutbox) MarkMailFailed(ctx context.Context, key, lastError string) error {
	return m.Called(ctx, key, lastError).Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, req *models.MailRequest) error {
	return m.Called(ctx, req).Error(0)
}

func newTestWorker(outbox *mockOutbox, pub *mockPublisher) *MailWorker {
	logger := zerolog.New(io.Discard)
	retry := RetryPolicy{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: time.Minute, BackoffFactor: 2}
	return NewMailWorker(outbox, pub, retry, time.Second, &logger)
}

func TestProcessBatchDispatches(t *testing.T) {
	outbox := new(mockOutbox)
	pub := new(mockPublisher)
	w := newTestWorker(outbox, pub)
	ctx := context.Background()

	req := &models.MailRequest{Key: "b1_customer", To: "jane@example.com", Status: models.MailStatusQueued}
	outbox.On("GetQueuedMail", ctx, models.WorkerBatchSize).Return([]*models.MailRequest{req}, nil).Once()
	pub.On("Publish", ctx, req).Return(nil).Once()
	outbox.On("MarkMailDispatched", ctx, "b1_customer").Return(nil).Once()

	w.ProcessBatch(ctx)

	outbox.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestProcessBatchRetriesOnPublishError(t *testing.T) {
	outbox := new(mockOutbox)
	pub := new(mockPublisher)
	w := newTestWorker(outbox, pub)
	ctx := context.Background()

	req := &models.MailRequest{Key: "b1_customer", Attempts: 0}
	outbox.On("GetQueuedMail", ctx, models.WorkerBatchSize).Return([]*models.MailRequest{req}, nil).Once()
	pub.On("Publish", ctx, req).Return(errors.New("broker down")).Once()
	outbox.On("MarkMailRetry", ctx, "b1_customer", "broker down", mock.Anything).Return(nil).Once()

	w.ProcessBatch(ctx)

	outbox.AssertExpectations(t)
	outbox.AssertNotCalled(t, "MarkMailFailed", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessBatchParksExhaustedRequest(t *testing.T) {
	outbox := new(mockOutbox)
	pub := new(mockPublisher)
	w := newTestWorker(outbox, pub)
	ctx := context.Background()

	// Two prior attempts; this one is the third and last.
	req := &models.MailRequest{Key: "b1_customer", Attempts: 2}
	outbox.On("GetQueuedMail", ctx, models.WorkerBatchSize).Return([]*models.MailRequest{req}, nil).Once()
	pub.On("Publish", ctx, req).Return(errors.New("broker down")).Once()
	outbox.On("MarkMailFailed", ctx, "b1_customer", "broker down").Return(nil).Once()

	w.ProcessBatch(ctx)

	outbox.AssertExpectations(t)
	outbox.AssertNotCalled(t, "MarkMailRetry", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessBatchOutboxError(t *testing.T) {
	outbox := new(mockOutbox)
	pub := new(mockPublisher)
	w := newTestWorker(outbox, pub)
	ctx := context.Background()

	outbox.On("GetQueuedMail", ctx, models.WorkerBatchSize).Return(nil, errors.New("db closed")).Once()

	w.ProcessBatch(ctx)

	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2}

	assert.Equal(t, 2*time.Second, policy.NextDelay(1))
	assert.Equal(t, 4*time.Second, policy.NextDelay(2))
	assert.Equal(t, 8*time.Second, policy.NextDelay(3))
	assert.Equal(t, time.Minute, policy.NextDelay(10))
	assert.Equal(t, 2*time.Second, policy.NextDelay(0))
}
