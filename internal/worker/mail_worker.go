package worker

import (
	"context"
	"time"

	"carwash/internal/domain"
	"carwash/internal/metrics"
	"carwash/internal/models"

	"github.com/rs/zerolog"
)

// MailWorker drains the mail outbox into the dispatcher queue. Publishing
// failures are retried with exponential backoff; a request that exhausts
// its retries is parked as failed for manual inspection.
type MailWorker struct {
	outbox       domain.MailOutbox
	pub          Publisher
	retryPolicy  RetryPolicy
	pollInterval time.Duration
	batchSize    int
	logger       *zerolog.Logger
}

// NewMailWorker builds a worker, filling in defaults for zero-value fields.
func NewMailWorker(outbox domain.MailOutbox, pub Publisher, retry RetryPolicy, pollInterval time.Duration, logger *zerolog.Logger) *MailWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if pollInterval <= 0 {
		pollInterval = models.WorkerPollIntervalSeconds * time.Second
	}

	return &MailWorker{
		outbox:       outbox,
		pub:          pub,
		retryPolicy:  retry,
		pollInterval: pollInterval,
		batchSize:    models.WorkerBatchSize,
		logger:       logger,
	}
}

// Start blocks until the context is cancelled, processing one batch per tick.
func (w *MailWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("poll_interval", w.pollInterval).Msg("mail worker started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("mail worker stopped")
			return
		case <-ticker.C:
			w.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch publishes every due mail request once.
func (w *MailWorker) ProcessBatch(ctx context.Context) {
	reqs, err := w.outbox.GetQueuedMail(ctx, w.batchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("mail worker: read outbox")
		return
	}

	for _, req := range reqs {
		w.dispatch(ctx, req)
	}
}

func (w *MailWorker) dispatch(ctx context.Context, req *models.MailRequest) {
	err := w.pub.Publish(ctx, req)
	if err == nil {
		if err := w.outbox.MarkMailDispatched(ctx, req.Key); err != nil {
			w.logger.Error().Err(err).Str("key", req.Key).Msg("mail worker: mark dispatched")
		}
		metrics.IncMailDispatched("ok")
		w.logger.Info().Str("key", req.Key).Str("to", req.To).Msg("mail request dispatched")
		return
	}

	attempt := req.Attempts + 1
	if attempt >= w.retryPolicy.MaxRetries {
		if markErr := w.outbox.MarkMailFailed(ctx, req.Key, err.Error()); markErr != nil {
			w.logger.Error().Err(markErr).Str("key", req.Key).Msg("mail worker: mark failed")
		}
		metrics.IncMailDispatched("failed")
		w.logger.Error().Err(err).Str("key", req.Key).Int("attempts", attempt).Msg("mail request failed permanently")
		return
	}

	nextRetry := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	if markErr := w.outbox.MarkMailRetry(ctx, req.Key, err.Error(), nextRetry); markErr != nil {
		w.logger.Error().Err(markErr).Str("key", req.Key).Msg("mail worker: mark retry")
	}
	metrics.IncMailDispatched("retry")
	w.logger.Warn().Err(err).Str("key", req.Key).Time("next_retry_at", nextRetry).Msg("mail request publish failed, will retry")
}
