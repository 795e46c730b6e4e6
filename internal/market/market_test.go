package market

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestHTTPSourceMissingURL(t *testing.T) {
	src := NewHTTPSource(HTTPOptions{}, noopLogger())
	if _, err := src.FetchSnapshots(context.Background()); err == nil {
		t.Fatal("missing url should fail")
	}
}

func TestHTTPSourceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "upstream down"})
	}))
	defer srv.Close()

	src := NewHTTPSource(HTTPOptions{URL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := src.FetchSnapshots(context.Background()); err == nil {
		t.Fatal("HTTP 502 should fail")
	}
}

func TestHTTPSourceSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "test" {
			t.Fatalf("unexpected user agent %q", ua)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"instruments":[{"symbol":"SBIN","name":"State Bank of India","currentPrice":"788.50","previousHigh":"745","volume":25000000,"avgVolume":12000000}]}`))
	}))
	defer srv.Close()

	src := NewHTTPSource(HTTPOptions{URL: srv.URL, Timeout: time.Second, UserAgent: "test"}, noopLogger())
	snaps, err := src.FetchSnapshots(context.Background())
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps))
	}
	if !snaps[0].CurrentPrice.Equal(decimal.RequireFromString("788.5")) {
		t.Fatalf("unexpected price %s", snaps[0].CurrentPrice)
	}
	if snaps[0].AvgVolume != 12_000_000 {
		t.Fatalf("unexpected avg volume %d", snaps[0].AvgVolume)
	}
}

func TestFileSourceYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "universe.yaml")
	doc := `instruments:
  - symbol: TCS
    name: Tata Consultancy Services
    currentPrice: "4150.10"
    previousHigh: "4050.00"
    volume: 3200000
    avgVolume: 1500000
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	snaps, err := NewFileSource(path).FetchSnapshots(context.Background())
	if err != nil {
		t.Fatalf("yaml should parse: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Symbol != "TCS" {
		t.Fatalf("unexpected snapshots %#v", snaps)
	}
	if !snaps[0].PreviousHigh.Equal(decimal.NewFromInt(4050)) {
		t.Fatalf("unexpected previous high %s", snaps[0].PreviousHigh)
	}
}

func TestFileSourceJSONList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "universe.json")
	doc := `[{"symbol":"INFY","name":"Infosys Ltd.","currentPrice":1620,"previousHigh":1680,"volume":6500000,"avgVolume":7000000}]`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	snaps, err := NewFileSource(path).FetchSnapshots(context.Background())
	if err != nil {
		t.Fatalf("json should parse: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Volume != 6_500_000 {
		t.Fatalf("unexpected snapshots %#v", snaps)
	}
}

func TestFileSourceBadPrice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "universe.yml")
	doc := "- symbol: X\n  currentPrice: abc\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileSource(path).FetchSnapshots(context.Background()); err == nil {
		t.Fatal("bad price should fail")
	}
}

func TestDemoSnapshotsAreCopies(t *testing.T) {
	src := &StaticSource{Snapshots: DemoSnapshots()}
	first, _ := src.FetchSnapshots(context.Background())
	first[0].Symbol = "MUTATED"
	second, _ := src.FetchSnapshots(context.Background())
	if second[0].Symbol != "RELIANCE" {
		t.Fatalf("static source leaked its backing slice")
	}
	if len(second) != 8 {
		t.Fatalf("demo universe should hold 8 instruments, got %d", len(second))
	}
}
