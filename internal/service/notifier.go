package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/siwes-logbook-api/internal/models"
	"github.com/noah-isme/siwes-logbook-api/pkg/jobs"
)

// NotificationSink receives domain events. Delivery is best-effort: the core
// workflow never fails because a sink could not be reached.
type NotificationSink interface {
	Notify(ctx context.Context, event models.NotificationEvent)
}

// NopSink discards all events. Used when notifications are disabled.
type NopSink struct{}

// Notify implements NotificationSink.
func (NopSink) Notify(context.Context, models.NotificationEvent) {}

type eventPublisher interface {
	Publish(ctx context.Context, channel string, payload interface{}) error
}

// RedisSink pushes events onto a Redis channel through a background queue so
// publishing latency stays off the request path.
type RedisSink struct {
	queue   *jobs.Queue
	channel string
	logger  *zap.Logger
}

// NewRedisSink wires the sink with its worker queue.
func NewRedisSink(publisher eventPublisher, channel string, cfg jobs.QueueConfig, logger *zap.Logger) *RedisSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	sink := &RedisSink{channel: channel, logger: logger}
	sink.queue = jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(models.NotificationEvent)
		if !ok {
			logger.Warn("dropping notification with unexpected payload", zap.String("job_id", job.ID))
			return nil
		}
		return publisher.Publish(ctx, channel, event)
	}, cfg)
	return sink
}

// Start launches the worker pool.
func (s *RedisSink) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains and stops the worker pool.
func (s *RedisSink) Stop() {
	s.queue.Stop()
}

// Notify enqueues the event. Failures are logged and swallowed.
func (s *RedisSink) Notify(_ context.Context, event models.NotificationEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := s.queue.Enqueue(jobs.Job{ID: event.ID, Type: event.Type, Payload: event}); err != nil {
		s.logger.Warn("notification dropped", zap.String("event_type", event.Type), zap.Error(err))
	}
}
