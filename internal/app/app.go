package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-redis/redis/v8"
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
	"trustscan/internal/service"
	"trustscan/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logging.Component(logger, "app"), Out: os.Stdout}
}

type backend struct {
	store  storage.StateStore
	locker storage.AdvisoryLocker
	close  func()
}

func (a *App) openStore(ctx context.Context) (*backend, error) {
	cfg := a.Config.Storage
	switch strings.ToLower(cfg.Backend) {
	case "memory":
		return &backend{store: storage.NewMemoryStore(cfg.MemoryDelay), close: func() {}}, nil
	case "file":
		return &backend{store: storage.NewFileStore(cfg.FilePath), close: func() {}}, nil
	case "sqlite":
		store, err := storage.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &backend{store: store, close: func() { _ = store.Close() }}, nil
	case "postgres":
		pool, err := storage.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		store := storage.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return &backend{store: store, locker: store, close: store.Close}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		store := storage.NewRedisStore(client, cfg.Redis.Key)
		return &backend{store: store, close: func() { _ = store.Close() }}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func (a *App) openLedger(ctx context.Context, store storage.StateStore, m *metrics.Metrics) (*ledger.Ledger, error) {
	algo, err := ledger.ParseHashAlgorithm(a.Config.Ledger.Hash)
	if err != nil {
		return nil, err
	}
	opts := []ledger.Option{ledger.WithHash(algo)}
	if m != nil {
		opts = append(opts, ledger.WithObserver(m))
	}
	led, err := ledger.Open(ctx, store, a.Logger, opts...)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.LedgerRecords.Set(float64(led.Len()))
	}
	return led, nil
}

func (a *App) newDetector() *detector.Detector {
	cfg := a.Config.Detector
	return detector.New(detector.Policy{
		SurgeMultiplier: decimal.NewFromFloat(cfg.SurgeMultiplier),
		PriceWeight:     decimal.NewFromFloat(cfg.PriceWeight),
		VolumeWeight:    decimal.NewFromFloat(cfg.VolumeWeight),
		Strict:          cfg.Strict,
	})
}

func (a *App) newSource() market.SnapshotSource {
	cfg := a.Config.Market
	switch strings.ToLower(cfg.Source) {
	case "file":
		return market.NewFileSource(cfg.SnapshotFile)
	case "http":
		return market.NewHTTPSource(market.HTTPOptions{
			URL:       cfg.URL,
			Timeout:   cfg.RequestTimeout,
			UserAgent: cfg.UserAgent,
		}, a.Logger)
	default:
		return &market.StaticSource{Snapshots: market.DemoSnapshots()}
	}
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
	}
	return nil
}

// session bundles an opened backend and ledger for one command.
type session struct {
	backend *backend
	ledger  *ledger.Ledger
}

func (a *App) openSession(ctx context.Context, m *metrics.Metrics) (*session, error) {
	b, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	led, err := a.openLedger(ctx, b.store, m)
	if err != nil {
		b.close()
		return nil, err
	}
	return &session{backend: b, ledger: led}, nil
}

func (s *session) Close() {
	s.backend.close()
}

func (a *App) newService(sess *session, source market.SnapshotSource, sched *scheduler.Scheduler, m *metrics.Metrics) *service.Service {
	return service.New(a.Config, sched, source, a.newDetector(), sess.ledger, a.newNotifier(), m, sess.backend.locker, a.Logger)
}

// Run executes the long-running watch mode.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var m *metrics.Metrics
	if a.Config.Metrics.Enabled {
		var stop func()
		m, stop = a.startMetrics(ctx)
		defer stop()
	}

	sess, err := a.openSession(ctx, m)
	if err != nil {
		return err
	}
	defer sess.Close()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		RunFirst:     opts.Immediate,
		MaxRuns:      opts.Count,
	}, a.Logger)

	svc := a.newService(sess, a.newSource(), sched, m)

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting scanner")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("scanner terminated with error")
		return err
	}

	a.Logger.Info().Int("records", sess.ledger.Len()).Msg("scanner stopped")
	return nil
}

// startMetrics serves the metrics endpoint in the background. The returned
// stop cancels the server and blocks until it has shut down.
func (a *App) startMetrics(ctx context.Context) (*metrics.Metrics, func()) {
	m := metrics.New()
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := m.Serve(ctx, a.Config.Metrics.Listen, a.Logger); err != nil {
			a.Logger.Error().Err(err).Msg("metrics endpoint stopped")
		}
	}()
	return m, func() {
		cancel()
		<-done
	}
}

// RunOptions configure watch mode.
type RunOptions struct {
	Count     int
	Immediate bool
}

// ScanOptions configure a single scan.
type ScanOptions struct {
	SnapshotFile string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit    int
	FullHash bool
}

// ExportOptions hold parameters for exporting the ledger.
type ExportOptions struct {
	PNGPath    string
	CSVPath    string
	MaxRecords int
}

// SimulateOptions describe one synthetic snapshot.
type SimulateOptions struct {
	Symbol       string
	Name         string
	CurrentPrice decimal.Decimal
	PreviousHigh decimal.Decimal
	Volume       int64
	AvgVolume    int64
}
