package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Dispatcher executes a due action.
type Dispatcher interface {
	Dispatch(ctx context.Context, action Action) error
}

// Scheduler polls the queue on a fixed interval and hands due actions to
// the dispatcher. A dispatch failure never blocks the remaining actions of
// the same tick.
type Scheduler struct {
	queue      *Queue
	dispatcher Dispatcher
	interval   time.Duration
	logger     *slog.Logger
	metrics    *Metrics
	now        func() time.Time
}

func New(queue *Queue, dispatcher Dispatcher, interval time.Duration, logger *slog.Logger, metrics *Metrics) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		queue:      queue,
		dispatcher: dispatcher,
		interval:   interval,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Run ticks until the context is cancelled. Call in a goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("scheduler started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick dispatches every action due at the current time.
func (s *Scheduler) Tick(ctx context.Context) {
	start := time.Now()
	due := s.queue.PopDue(s.now())
	for _, action := range due {
		outcome := "ok"
		if err := s.dispatcher.Dispatch(ctx, action); err != nil {
			outcome = "error"
			s.logger.Error("dispatch failed",
				"uuid", action.UUID,
				"kind", string(action.Kind),
				"error", err,
			)
		}
		if s.metrics != nil {
			s.metrics.ActionsDispatched.WithLabelValues(string(action.Kind), outcome).Inc()
		}
	}
	if s.metrics != nil {
		s.metrics.QueueDepth.Set(float64(s.queue.Len()))
		s.metrics.TickDuration.Observe(time.Since(start).Seconds())
	}
}
