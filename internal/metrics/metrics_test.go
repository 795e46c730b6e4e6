package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"trustscan/internal/storage"
)

func TestObserverUpdatesCollectors(t *testing.T) {
	m := New()
	m.Committed(storage.SignalRecord{Sequence: 2, Strength: 7, CommittedAt: time.Unix(1700000000, 0)})
	m.Duplicate("abc")
	m.PersistFailed("commit")

	if got := testutil.ToFloat64(m.CommitsTotal.WithLabelValues("7")); got != 1 {
		t.Fatalf("commits = %v", got)
	}
	if got := testutil.ToFloat64(m.LedgerRecords); got != 3 {
		t.Fatalf("records gauge = %v", got)
	}
	if got := testutil.ToFloat64(m.DuplicatesTotal); got != 1 {
		t.Fatalf("duplicates = %v", got)
	}

	m.Reset()
	if got := testutil.ToFloat64(m.LedgerRecords); got != 0 {
		t.Fatalf("records gauge after reset = %v", got)
	}
}

func TestRouterServesMetrics(t *testing.T) {
	m := New()
	m.ScansTotal.Inc()
	srv := httptest.NewServer(m.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "trustscan_scans_total 1") {
		t.Fatalf("scans counter missing from exposition")
	}

	health, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", health.StatusCode)
	}
}
