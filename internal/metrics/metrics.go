package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"trustscan/internal/storage"
)

// Metrics holds the scanner and ledger collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	ScansTotal         prometheus.Counter
	ScanDuration       prometheus.Histogram
	SnapshotsRejected  prometheus.Counter
	CandidatesTotal    prometheus.Counter
	CommitsTotal       *prometheus.CounterVec // labels: strength
	DuplicatesTotal    prometheus.Counter
	PersistFailures    *prometheus.CounterVec // labels: op
	ResetsTotal        prometheus.Counter
	LedgerRecords      prometheus.Gauge
	LastCommitUnixTime prometheus.Gauge
}

// New registers and returns all collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trustscan_scans_total",
			Help: "Completed scan passes",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustscan_scan_duration_seconds",
			Help:    "Wall time of a scan pass including commits",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		SnapshotsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trustscan_snapshots_rejected_total",
			Help: "Snapshots excluded as invalid",
		}),
		CandidatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trustscan_candidates_total",
			Help: "Breakout candidates produced by the detector",
		}),
		CommitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trustscan_ledger_commits_total",
			Help: "Signals committed to the ledger",
		}, []string{"strength"}),
		DuplicatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trustscan_ledger_duplicates_total",
			Help: "Commits rejected as duplicate signals",
		}),
		PersistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trustscan_ledger_persist_failures_total",
			Help: "Storage saves that failed and were rolled back",
		}, []string{"op"}),
		ResetsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trustscan_ledger_resets_total",
			Help: "Whole-ledger resets",
		}),
		LedgerRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trustscan_ledger_records",
			Help: "Records currently held by the ledger",
		}),
		LastCommitUnixTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trustscan_ledger_last_commit_timestamp_seconds",
			Help: "Unix time of the most recent commit",
		}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ScansTotal,
		m.ScanDuration,
		m.SnapshotsRejected,
		m.CandidatesTotal,
		m.CommitsTotal,
		m.DuplicatesTotal,
		m.PersistFailures,
		m.ResetsTotal,
		m.LedgerRecords,
		m.LastCommitUnixTime,
	)
	return m
}

// Committed implements ledger.Observer.
func (m *Metrics) Committed(rec storage.SignalRecord) {
	m.CommitsTotal.WithLabelValues(strconv.Itoa(rec.Strength)).Inc()
	m.LedgerRecords.Set(float64(rec.Sequence + 1))
	m.LastCommitUnixTime.Set(float64(rec.CommittedAt.Unix()))
}

// Duplicate implements ledger.Observer.
func (m *Metrics) Duplicate(string) {
	m.DuplicatesTotal.Inc()
}

// PersistFailed implements ledger.Observer.
func (m *Metrics) PersistFailed(op string) {
	m.PersistFailures.WithLabelValues(op).Inc()
}

// Reset implements ledger.Observer.
func (m *Metrics) Reset() {
	m.ResetsTotal.Inc()
	m.LedgerRecords.Set(0)
}

// Router exposes /metrics and /healthz.
func (m *Metrics) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	return r
}

// Serve runs the metrics endpoint until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info().Str("addr", addr).Msg("metrics endpoint listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
