package detector

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"trustscan/internal/market"
)

var frozen = time.Date(2024, 3, 14, 9, 15, 30, 123456789, time.UTC)

func frozenClock() time.Time { return frozen }

func snap(symbol, price, high string, volume, avg int64) market.Snapshot {
	return market.Snapshot{
		Symbol:       symbol,
		Name:         symbol + " Ltd.",
		CurrentPrice: decimal.RequireFromString(price),
		PreviousHigh: decimal.RequireFromString(high),
		Volume:       volume,
		AvgVolume:    avg,
	}
}

func TestBreakoutWithVolumeSurge(t *testing.T) {
	d := New(DefaultPolicy(), WithClock(frozenClock))
	got, err := d.Detect([]market.Snapshot{snap("RELIANCE", "2985.50", "2920.00", 8_500_000, 4_000_000)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one candidate, got %d", len(got))
	}
	c := got[0]
	if c.Strength <= minStrength {
		t.Fatalf("strength should exceed baseline, got %d", c.Strength)
	}
	if !c.Price.Equal(decimal.RequireFromString("2985.5")) {
		t.Fatalf("trigger price should be copied from snapshot, got %s", c.Price)
	}
	if !c.VolumeRatio.Equal(decimal.RequireFromString("2.125")) {
		t.Fatalf("unexpected volume ratio %s", c.VolumeRatio)
	}
	if !c.ObservedAt.Equal(frozen.Truncate(time.Millisecond)) {
		t.Fatalf("observed at should come from the clock, got %s", c.ObservedAt)
	}
}

func TestPriceBelowHighIsIgnored(t *testing.T) {
	d := New(DefaultPolicy(), WithClock(frozenClock))
	got, err := d.Detect([]market.Snapshot{snap("HDFCBANK", "1445.00", "1510.00", 18_000_000, 15_000_000)})
	if err != nil || len(got) != 0 {
		t.Fatalf("expected no candidate, got %v (err %v)", got, err)
	}
}

func TestQuietVolumeIsIgnored(t *testing.T) {
	d := New(DefaultPolicy(), WithClock(frozenClock))
	got, err := d.Detect([]market.Snapshot{snap("ICICIBANK", "1092.10", "1080.00", 9_000_000, 10_000_000)})
	if err != nil || len(got) != 0 {
		t.Fatalf("expected no candidate, got %v (err %v)", got, err)
	}
}

func TestPriceAtOrBelowHighNeverQualifies(t *testing.T) {
	d := New(DefaultPolicy(), WithClock(frozenClock))
	cases := []market.Snapshot{
		snap("EQ", "100", "100", 1_000_000_000, 1),
		snap("BELOW", "99.99", "100", 1_000_000_000, 1),
		snap("ZERO", "0", "100", 1_000_000_000, 1),
	}
	got, err := d.Detect(cases)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected no candidates, got %v (err %v)", got, err)
	}
}

func TestVolumeGateIsStrict(t *testing.T) {
	d := New(DefaultPolicy(), WithClock(frozenClock))
	got, _ := d.Detect([]market.Snapshot{
		snap("EXACT", "101", "100", 1_500_000, 1_000_000),
		snap("ABOVE", "101", "100", 1_500_001, 1_000_000),
	})
	if len(got) != 1 || got[0].Symbol != "ABOVE" {
		t.Fatalf("only the snapshot above 1.5x should qualify, got %#v", got)
	}
}

func TestZeroReferenceValuesYieldNoBreakout(t *testing.T) {
	d := New(DefaultPolicy(), WithClock(frozenClock))
	got, err := d.Detect([]market.Snapshot{
		snap("NOHIGH", "10", "0", 100, 10),
		snap("NOAVG", "10", "5", 100, 0),
	})
	if err != nil || len(got) != 0 {
		t.Fatalf("zero references should not break out, got %v (err %v)", got, err)
	}
}

func TestDemoUniverseKeepsInputOrder(t *testing.T) {
	d := New(DefaultPolicy(), WithClock(frozenClock))
	got, err := d.Detect(market.DemoSnapshots())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var symbols []string
	for _, c := range got {
		symbols = append(symbols, c.Symbol)
	}
	want := []string{"RELIANCE", "TCS", "SBIN", "TATAMOTORS"}
	if !reflect.DeepEqual(symbols, want) {
		t.Fatalf("expected %v, got %v", want, symbols)
	}
}

func TestDetectDeterministicWithFrozenClock(t *testing.T) {
	d := New(DefaultPolicy(), WithClock(frozenClock))
	first, _ := d.Detect(market.DemoSnapshots())
	second, _ := d.Detect(market.DemoSnapshots())
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("detect should be deterministic under a frozen clock")
	}
}

func TestInvalidSnapshotBestEffort(t *testing.T) {
	d := New(DefaultPolicy(), WithClock(frozenClock))
	got, err := d.Detect([]market.Snapshot{
		snap("BAD", "-1", "100", 10, 10),
		snap("SBIN", "788.50", "745.00", 25_000_000, 12_000_000),
		{Symbol: "NEGVOL", CurrentPrice: decimal.NewFromInt(1), PreviousHigh: decimal.NewFromInt(1), Volume: -5},
	})
	if !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot, got %v", err)
	}
	var snapErr *SnapshotError
	if !errors.As(err, &snapErr) || snapErr.Symbol != "BAD" {
		t.Fatalf("expected SnapshotError for BAD, got %v", err)
	}
	if len(got) != 1 || got[0].Symbol != "SBIN" {
		t.Fatalf("valid snapshots should still be evaluated, got %#v", got)
	}
}

func TestInvalidSnapshotStrict(t *testing.T) {
	policy := DefaultPolicy()
	policy.Strict = true
	d := New(policy, WithClock(frozenClock))
	got, err := d.Detect([]market.Snapshot{
		snap("SBIN", "788.50", "745.00", 25_000_000, 12_000_000),
		{Symbol: "NEGAVG", CurrentPrice: decimal.NewFromInt(1), PreviousHigh: decimal.NewFromInt(1), AvgVolume: -1},
	})
	if !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot, got %v", err)
	}
	if got != nil {
		t.Fatalf("strict mode should drop the whole batch, got %#v", got)
	}
}

func TestScoreReferencePoints(t *testing.T) {
	d := New(DefaultPolicy())
	cases := []struct {
		name  string
		edge  string
		ratio string
		want  int
	}{
		{"one percent edge alone", "0.01", "1", 3},
		{"double volume alone", "0", "2", 5},
		{"nothing", "0", "1", 1},
		{"half up rounding", "0.005", "1", 2},
		{"clamped high", "0.5", "10", 10},
		{"clamped low", "0", "0", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := d.Score(decimal.RequireFromString(tc.edge), decimal.RequireFromString(tc.ratio))
			if got != tc.want {
				t.Fatalf("Score(%s, %s) = %d, want %d", tc.edge, tc.ratio, got, tc.want)
			}
		})
	}
}

func TestScoreMonotonic(t *testing.T) {
	d := New(DefaultPolicy())
	prev := 0
	for i := 0; i <= 60; i++ {
		edge := decimal.NewFromInt(int64(i)).Div(decimal.NewFromInt(1000))
		s := d.Score(edge, decimal.RequireFromString("1.6"))
		if s < prev {
			t.Fatalf("score decreased at edge %s: %d < %d", edge, s, prev)
		}
		if s < minStrength || s > maxStrength {
			t.Fatalf("score %d out of range", s)
		}
		prev = s
	}

	prev = 0
	for i := 15; i <= 40; i++ {
		ratio := decimal.NewFromInt(int64(i)).Div(decimal.NewFromInt(10))
		s := d.Score(decimal.RequireFromString("0.001"), ratio)
		if s < prev {
			t.Fatalf("score decreased at ratio %s: %d < %d", ratio, s, prev)
		}
		prev = s
	}
}
