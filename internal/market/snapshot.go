package market

import (
	"context"

	"github.com/shopspring/decimal"
)

// Snapshot is one instrument's market data at a single point in time.
type Snapshot struct {
	Symbol       string          `json:"symbol" yaml:"symbol"`
	Name         string          `json:"name" yaml:"name"`
	CurrentPrice decimal.Decimal `json:"currentPrice" yaml:"currentPrice"`
	PreviousHigh decimal.Decimal `json:"previousHigh" yaml:"previousHigh"`
	Volume       int64           `json:"volume" yaml:"volume"`
	AvgVolume    int64           `json:"avgVolume" yaml:"avgVolume"`
}

// SnapshotSource supplies the universe scanned on each run.
type SnapshotSource interface {
	FetchSnapshots(ctx context.Context) ([]Snapshot, error)
}

// DemoSnapshots returns the built-in NSE demo universe.
func DemoSnapshots() []Snapshot {
	return []Snapshot{
		{Symbol: "RELIANCE", Name: "Reliance Industries Ltd.", CurrentPrice: decimal.RequireFromString("2985.50"), PreviousHigh: decimal.RequireFromString("2920.00"), Volume: 8_500_000, AvgVolume: 4_000_000},
		{Symbol: "TCS", Name: "Tata Consultancy Services", CurrentPrice: decimal.RequireFromString("4150.10"), PreviousHigh: decimal.RequireFromString("4050.00"), Volume: 3_200_000, AvgVolume: 1_500_000},
		{Symbol: "HDFCBANK", Name: "HDFC Bank Ltd.", CurrentPrice: decimal.RequireFromString("1445.00"), PreviousHigh: decimal.RequireFromString("1510.00"), Volume: 18_000_000, AvgVolume: 15_000_000},
		{Symbol: "INFY", Name: "Infosys Ltd.", CurrentPrice: decimal.RequireFromString("1620.00"), PreviousHigh: decimal.RequireFromString("1680.00"), Volume: 6_500_000, AvgVolume: 7_000_000},
		{Symbol: "SBIN", Name: "State Bank of India", CurrentPrice: decimal.RequireFromString("788.50"), PreviousHigh: decimal.RequireFromString("745.00"), Volume: 25_000_000, AvgVolume: 12_000_000},
		{Symbol: "ICICIBANK", Name: "ICICI Bank Ltd.", CurrentPrice: decimal.RequireFromString("1092.10"), PreviousHigh: decimal.RequireFromString("1080.00"), Volume: 9_000_000, AvgVolume: 10_000_000},
		{Symbol: "TATAMOTORS", Name: "Tata Motors Ltd.", CurrentPrice: decimal.RequireFromString("965.00"), PreviousHigh: decimal.RequireFromString("920.00"), Volume: 12_000_000, AvgVolume: 5_000_000},
		{Symbol: "BHARTIARTL", Name: "Bharti Airtel Ltd.", CurrentPrice: decimal.RequireFromString("1215.00"), PreviousHigh: decimal.RequireFromString("1180.00"), Volume: 5_500_000, AvgVolume: 4_500_000},
	}
}

// StaticSource serves a fixed snapshot list.
type StaticSource struct {
	Snapshots []Snapshot
}

// FetchSnapshots returns a copy of the configured snapshots.
func (s *StaticSource) FetchSnapshots(ctx context.Context) ([]Snapshot, error) {
	out := make([]Snapshot, len(s.Snapshots))
	copy(out, s.Snapshots)
	return out, nil
}

var _ SnapshotSource = (*StaticSource)(nil)
