// Package jobs runs the panel's scheduled maintenance.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/canchallena/panel/internal/calendar"
)

const runTimeout = 2 * time.Minute

// Completer marks bookings that finished before today as completed.
type Completer interface {
	CompleteFinished(ctx context.Context, today calendar.Date) (int64, error)
}

type Scheduler struct {
	cron      *cron.Cron
	completer Completer
	loc       *time.Location
	now       func() time.Time
	log       *zap.Logger
}

// New schedules the completion job on spec, a five-field cron expression
// evaluated in loc.
func New(spec string, completer Completer, loc *time.Location, log *zap.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{
		completer: completer,
		loc:       loc,
		now:       time.Now,
		log:       log.With(zap.String("component", "jobs")),
	}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := s.cron.AddFunc(spec, s.completeFinished); err != nil {
		return nil, fmt.Errorf("schedule completion job %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop waits for a running job to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) completeFinished() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	if _, err := s.RunCompletion(ctx); err != nil {
		s.log.Error("completion job failed", zap.Error(err))
	}
}

// RunCompletion runs the completion job once for the current day.
func (s *Scheduler) RunCompletion(ctx context.Context) (int64, error) {
	today := calendar.DateOf(s.now().In(s.loc))
	n, err := s.completer.CompleteFinished(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("complete bookings before %s: %w", today, err)
	}
	if n == 0 {
		s.log.Debug("no finished bookings", zap.String("today", today.String()))
	} else {
		s.log.Info("bookings completed", zap.Int64("count", n), zap.String("today", today.String()))
	}
	return n, nil
}
