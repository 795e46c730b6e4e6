package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"trustscan/internal/logging"
)

// TickFunc runs one scan for the given slot.
type TickFunc func(ctx context.Context, slot time.Time) error

// Options tune scheduler behaviour. MaxRuns of zero means unbounded.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
	RunFirst     bool
	MaxRuns      int
}

// Scheduler drives periodic scans in watch mode.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logging.Component(logger, "scheduler"), now: time.Now}
}

// Run blocks, invoking tick at each slot until ctx is cancelled or MaxRuns
// ticks have executed. Tick errors are logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := sleep(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	runs := 0
	execute := func(slot time.Time) bool {
		s.logger.Debug().Time("slot", slot).Int("run", runs+1).Msg("executing scan")
		if err := tick(ctx, slot); err != nil {
			s.logger.Error().Err(err).Time("slot", slot).Msg("scan failed")
		}
		runs++
		return s.opts.MaxRuns > 0 && runs >= s.opts.MaxRuns
	}

	if s.opts.RunFirst {
		if execute(s.now().UTC()) {
			return nil
		}
	}

	next := s.nextTick(s.now().UTC())
	for {
		delay := next.Sub(s.now())
		if delay < 0 {
			next = s.nextTick(s.now().UTC())
			delay = next.Sub(s.now())
		}

		s.logger.Debug().Time("next_slot", next).Msg("waiting for next slot")
		if err := sleep(ctx, delay); err != nil {
			return err
		}

		if execute(s.slotStart(next)) {
			return nil
		}
		next = next.Add(s.opts.Interval)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	slot := now.Truncate(s.opts.Interval)
	if !slot.After(now) {
		slot = slot.Add(s.opts.Interval)
	}
	return slot
}

func (s *Scheduler) slotStart(t time.Time) time.Time {
	if !s.opts.AlignToStart {
		return t
	}
	return t.Truncate(s.opts.Interval)
}
