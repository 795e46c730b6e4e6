package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunStopsAfterMaxRuns(t *testing.T) {
	s := New(Options{Interval: 5 * time.Millisecond, RunFirst: true, MaxRuns: 3}, zerolog.Nop())

	calls := 0
	err := s.Run(context.Background(), func(ctx context.Context, slot time.Time) error {
		calls++
		return errors.New("tick errors are tolerated")
	})
	if err != nil {
		t.Fatalf("bounded run should return nil, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 ticks, got %d", calls)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	s := New(Options{Interval: time.Hour, AlignToStart: true}, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := s.Run(ctx, func(ctx context.Context, slot time.Time) error {
		t.Fatal("tick should not run before the first slot")
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNextTickAligned(t *testing.T) {
	s := New(Options{Interval: time.Minute, AlignToStart: true}, zerolog.Nop())
	now := time.Date(2024, 3, 14, 9, 15, 30, 0, time.UTC)
	if got := s.nextTick(now); !got.Equal(time.Date(2024, 3, 14, 9, 16, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next tick %s", got)
	}
	onBoundary := time.Date(2024, 3, 14, 9, 16, 0, 0, time.UTC)
	if got := s.nextTick(onBoundary); !got.Equal(onBoundary.Add(time.Minute)) {
		t.Fatalf("boundary should advance, got %s", got)
	}
}
