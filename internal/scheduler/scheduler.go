// Package scheduler runs the periodic maintenance jobs: expiring cards whose
// date has passed and dropping stale idempotency cache rows.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type cardExpirer interface {
	ExpireDue(ctx context.Context, today time.Time) (int64, error)
}

type idempotencyCleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

type expiryRecorder interface {
	RecordCardsExpired(n int64)
}

type nopRecorder struct{}

func (nopRecorder) RecordCardsExpired(int64) {}

type Schedules struct {
	CardExpiry       string
	IdempotencyClean string
}

type Scheduler struct {
	cron        *cron.Cron
	cards       cardExpirer
	idempotency idempotencyCleaner
	metrics     expiryRecorder
	logger      *slog.Logger
	now         func() time.Time
}

// New registers both jobs. Schedules use the standard five-field cron syntax
// and descriptors such as @hourly, evaluated in UTC.
func New(cards cardExpirer, idempotency idempotencyCleaner, metrics expiryRecorder, logger *slog.Logger, sched Schedules) (*Scheduler, error) {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		cards:       cards,
		idempotency: idempotency,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}

	if _, err := s.cron.AddFunc(sched.CardExpiry, func() { s.ExpireCards(context.Background()) }); err != nil {
		return nil, fmt.Errorf("scheduler.New: card expiry schedule %q: %w", sched.CardExpiry, err)
	}
	if _, err := s.cron.AddFunc(sched.IdempotencyClean, func() { s.CleanIdempotency(context.Background()) }); err != nil {
		return nil, fmt.Errorf("scheduler.New: idempotency schedule %q: %w", sched.IdempotencyClean, err)
	}
	return s, nil
}

// Start runs the jobs until ctx is done, then waits for a running job to finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	s.cron.Start()

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) ExpireCards(ctx context.Context) {
	y, m, d := s.now().UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	n, err := s.cards.ExpireDue(ctx, today)
	if err != nil {
		s.logger.Error("card expiry sweep failed", "error", err)
		return
	}
	s.metrics.RecordCardsExpired(n)
	if n > 0 {
		s.logger.Info("cards expired", "count", n, "as_of", today.Format(time.DateOnly))
	}
}

func (s *Scheduler) CleanIdempotency(ctx context.Context) {
	n, err := s.idempotency.CleanExpired(ctx)
	if err != nil {
		s.logger.Error("idempotency cleanup failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("idempotency entries removed", "count", n)
	}
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
