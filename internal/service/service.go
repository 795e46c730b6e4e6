package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trustscan/internal/alerting"
	"trustscan/internal/config"
	"trustscan/internal/detector"
	"trustscan/internal/ledger"
	"trustscan/internal/logging"
	"trustscan/internal/market"
	"trustscan/internal/metrics"
	"trustscan/internal/scheduler"
	"trustscan/internal/storage"
)

var hundred = decimal.NewFromInt(100)

// ScanResult summarises one scan pass.
type ScanResult struct {
	Snapshots  int
	Rejected   []error
	Candidates []detector.Candidate
	Committed  []storage.SignalRecord
	Duplicates int
	Skipped    bool
}

// Service runs the scan pipeline: fetch snapshots, detect, commit each
// candidate in detector order, notify.
type Service struct {
	scheduler *scheduler.Scheduler
	source    market.SnapshotSource
	detector  *detector.Detector
	ledger    *ledger.Ledger
	notifier  alerting.Notifier
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	minStrength int
	channels    []string
	alertsOn    bool
	locker      storage.AdvisoryLocker
	lockKey     int64
}

// New constructs the scan service. sched, notifier, m and locker may be nil.
func New(cfg *config.Config, sched *scheduler.Scheduler, source market.SnapshotSource, det *detector.Detector, led *ledger.Ledger, notifier alerting.Notifier, m *metrics.Metrics, locker storage.AdvisoryLocker, logger zerolog.Logger) *Service {
	return &Service{
		scheduler:   sched,
		source:      source,
		detector:    det,
		ledger:      led,
		notifier:    notifier,
		metrics:     m,
		logger:      logging.Component(logger, "service"),
		minStrength: cfg.Alerting.MinStrength,
		channels:    cfg.Alerting.Channels,
		alertsOn:    cfg.Alerting.Enabled,
		locker:      locker,
		lockKey:     cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the periodic scan loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessSlot)
}

// ProcessSlot adapts Scan to the scheduler.
func (s *Service) ProcessSlot(ctx context.Context, slot time.Time) error {
	res, err := s.Scan(ctx)
	if err != nil {
		return err
	}
	s.logger.Info().Time("slot", slot).
		Int("candidates", len(res.Candidates)).
		Int("committed", len(res.Committed)).
		Int("duplicates", res.Duplicates).
		Bool("skipped", res.Skipped).
		Msg("scan finished")
	return nil
}

// Scan performs a single pass. A persistence failure stops the batch; the
// records committed before it are still reported.
func (s *Service) Scan(ctx context.Context) (ScanResult, error) {
	var res ScanResult

	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return res, err
	}
	if !proceed {
		s.logger.Debug().Msg("skip scan because advisory lock held elsewhere")
		res.Skipped = true
		return res, nil
	}
	if unlock != nil {
		defer unlock()
	}

	started := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ScansTotal.Inc()
			s.metrics.ScanDuration.Observe(time.Since(started).Seconds())
		}
	}()

	snapshots, err := s.source.FetchSnapshots(ctx)
	if err != nil {
		return res, fmt.Errorf("fetch snapshots: %w", err)
	}
	res.Snapshots = len(snapshots)

	candidates, err := s.detector.Detect(snapshots)
	if err != nil {
		res.Rejected = splitJoined(err)
		for _, rejected := range res.Rejected {
			s.logger.Warn().Err(rejected).Msg("snapshot rejected")
		}
		if s.metrics != nil {
			s.metrics.SnapshotsRejected.Add(float64(len(res.Rejected)))
		}
		if s.detector.Policy().Strict {
			return res, fmt.Errorf("detect: %w", err)
		}
	}
	res.Candidates = candidates
	if s.metrics != nil {
		s.metrics.CandidatesTotal.Add(float64(len(candidates)))
	}

	for _, candidate := range candidates {
		rec, err := s.ledger.Commit(ctx, candidate)
		switch {
		case errors.Is(err, ledger.ErrDuplicateSignal):
			res.Duplicates++
			continue
		case err != nil:
			return res, fmt.Errorf("commit %s: %w", candidate.Symbol, err)
		}
		res.Committed = append(res.Committed, rec)
		s.notify(ctx, rec, candidate)
	}

	return res, nil
}

func (s *Service) notify(ctx context.Context, rec storage.SignalRecord, c detector.Candidate) {
	if !s.alertsOn || s.notifier == nil || rec.Strength < s.minStrength {
		return
	}
	note := alerting.Notification{
		Record:       rec,
		PriceEdgePct: c.PriceEdge.Mul(hundred).StringFixed(2),
		VolumeRatio:  c.VolumeRatio.StringFixed(2),
		Channels:     s.channels,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Uint64("sequence", rec.Sequence).Msg("failed to dispatch alert")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

func splitJoined(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
