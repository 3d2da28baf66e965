package worker

import (
	"context"
	"time"

	"gardenplots/internal/config"
	"gardenplots/internal/domain"
	"gardenplots/internal/metrics"
	"gardenplots/internal/models"

	"github.com/rs/zerolog"
)

// Publisher delivers one outbox task to the event stream.
type Publisher interface {
	Publish(ctx context.Context, task *models.OutboxTask) error
}

// OutboxWorker delivers committed outbox rows at least once. Rows are written
// by the store together with the change they describe; the worker only reads
// them, on a timer or as soon as Notify is called.
type OutboxWorker struct {
	store        domain.OutboxStore
	publisher    Publisher
	retryPolicy  RetryPolicy
	wake         chan struct{}
	pollInterval time.Duration
	batchSize    int
	logger       *zerolog.Logger
	now          func() time.Time
}

func NewOutboxWorker(
	store domain.OutboxStore,
	publisher Publisher,
	cfg config.OutboxConfig,
	logger *zerolog.Logger,
) *OutboxWorker {
	retry := DefaultRetryPolicy
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 5 * time.Second
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}

	return &OutboxWorker{
		store:        store,
		publisher:    publisher,
		retryPolicy:  retry,
		wake:         make(chan struct{}, 1),
		pollInterval: poll,
		batchSize:    batch,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Notify asks for a poll without waiting for the next tick. Calls made while
// a wake-up is already pending are coalesced.
func (w *OutboxWorker) Notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Start runs the delivery loop until ctx is done.
func (w *OutboxWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("poll_interval", w.pollInterval).Msg("outbox worker started")
	defer w.logger.Info().Msg("outbox worker stopped")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
			w.poll(ctx)
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *OutboxWorker) poll(ctx context.Context) {
	tasks, err := w.store.GetPendingOutboxTasks(ctx, w.batchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("fetch pending outbox tasks")
		return
	}
	for _, task := range tasks {
		if ctx.Err() != nil {
			return
		}
		w.processTask(ctx, task)
	}
}

func (w *OutboxWorker) processTask(ctx context.Context, task *models.OutboxTask) {
	if err := w.publisher.Publish(ctx, task); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncOutbox(models.OutboxStatusCompleted)
	if err := w.store.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxStatusCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark outbox task completed")
	}
}

func (w *OutboxWorker) retryOrFail(ctx context.Context, task *models.OutboxTask, cause error) {
	attempt := task.RetryCount + 1
	log := w.logger.With().Int64("task_id", task.ID).Str("event_type", task.EventType).Int("attempt", attempt).Logger()

	if w.retryPolicy.Exhausted(attempt) {
		metrics.IncOutbox(models.OutboxStatusFailed)
		log.Error().Err(cause).Msg("outbox delivery failed permanently")
		if err := w.store.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxStatusFailed, cause.Error(), nil); err != nil {
			log.Error().Err(err).Msg("mark outbox task failed")
		}
		return
	}

	metrics.IncOutbox(models.OutboxStatusRetry)
	next := w.now().Add(w.retryPolicy.NextDelay(attempt))
	log.Warn().Err(cause).Time("next_retry_at", next).Msg("outbox delivery failed, will retry")
	if err := w.store.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxStatusRetry, cause.Error(), &next); err != nil {
		log.Error().Err(err).Msg("mark outbox task retry")
	}
}
