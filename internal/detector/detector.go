package detector

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"trustscan/internal/market"
)

const (
	minStrength = 1
	maxStrength = 10
)

var (
	// ErrInvalidSnapshot marks a snapshot with negative price, high or volume figures.
	ErrInvalidSnapshot = errors.New("detector: invalid snapshot")

	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// SnapshotError ties an ErrInvalidSnapshot to the offending instrument.
type SnapshotError struct {
	Index  int
	Symbol string
	Reason string
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("%s: snapshot %d (%s): %s", ErrInvalidSnapshot.Error(), e.Index, e.Symbol, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidSnapshot.
func (e *SnapshotError) Unwrap() error {
	return ErrInvalidSnapshot
}

// Policy holds the breakout thresholds and score weights.
type Policy struct {
	SurgeMultiplier decimal.Decimal
	PriceWeight     decimal.Decimal
	VolumeWeight    decimal.Decimal
	Strict          bool
}

// DefaultPolicy returns the reference thresholds: 1.5x volume surge, a 1% edge
// scoring 3 and a 2x surge scoring 5.
func DefaultPolicy() Policy {
	return Policy{
		SurgeMultiplier: decimal.RequireFromString("1.5"),
		PriceWeight:     decimal.NewFromInt(3),
		VolumeWeight:    decimal.NewFromInt(5),
	}
}

// Candidate is a detected breakout that has not been committed yet.
type Candidate struct {
	Symbol      string
	StockName   string
	Price       decimal.Decimal
	Strength    int
	ObservedAt  time.Time
	PriceEdge   decimal.Decimal
	VolumeRatio decimal.Decimal
}

// Option customises a Detector.
type Option func(*Detector)

// WithClock replaces the wall clock used to stamp candidates.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		if now != nil {
			d.now = now
		}
	}
}

// Detector evaluates snapshots against a Policy. It holds no state between calls.
type Detector struct {
	policy Policy
	now    func() time.Time
}

// New constructs a Detector.
func New(policy Policy, opts ...Option) *Detector {
	d := &Detector{policy: policy, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Policy returns the active policy.
func (d *Detector) Policy() Policy {
	return d.policy
}

// Detect returns candidates in input order. Invalid snapshots are skipped and
// reported in the returned error unless the policy is strict, in which case
// the first invalid snapshot aborts the batch.
func (d *Detector) Detect(snapshots []market.Snapshot) ([]Candidate, error) {
	observedAt := d.now().UTC().Truncate(time.Millisecond)

	candidates := make([]Candidate, 0)
	var invalid []error
	for i, snap := range snapshots {
		if err := validate(i, snap); err != nil {
			if d.policy.Strict {
				return nil, err
			}
			invalid = append(invalid, err)
			continue
		}

		candidate, ok := d.evaluate(snap)
		if !ok {
			continue
		}
		candidate.ObservedAt = observedAt
		candidates = append(candidates, candidate)
	}

	return candidates, errors.Join(invalid...)
}

func validate(index int, snap market.Snapshot) error {
	switch {
	case snap.CurrentPrice.IsNegative():
		return &SnapshotError{Index: index, Symbol: snap.Symbol, Reason: "negative current price"}
	case snap.PreviousHigh.IsNegative():
		return &SnapshotError{Index: index, Symbol: snap.Symbol, Reason: "negative previous high"}
	case snap.Volume < 0:
		return &SnapshotError{Index: index, Symbol: snap.Symbol, Reason: "negative volume"}
	case snap.AvgVolume < 0:
		return &SnapshotError{Index: index, Symbol: snap.Symbol, Reason: "negative average volume"}
	}
	return nil
}

func (d *Detector) evaluate(snap market.Snapshot) (Candidate, bool) {
	if snap.PreviousHigh.IsZero() || snap.AvgVolume == 0 {
		return Candidate{}, false
	}
	if !snap.CurrentPrice.GreaterThan(snap.PreviousHigh) {
		return Candidate{}, false
	}

	volume := decimal.NewFromInt(snap.Volume)
	avgVolume := decimal.NewFromInt(snap.AvgVolume)
	if !volume.GreaterThan(avgVolume.Mul(d.policy.SurgeMultiplier)) {
		return Candidate{}, false
	}

	priceEdge := snap.CurrentPrice.Sub(snap.PreviousHigh).Div(snap.PreviousHigh)
	volumeRatio := volume.Div(avgVolume)

	return Candidate{
		Symbol:      snap.Symbol,
		StockName:   snap.Name,
		Price:       snap.CurrentPrice,
		Strength:    d.Score(priceEdge, volumeRatio),
		PriceEdge:   priceEdge,
		VolumeRatio: volumeRatio,
	}, true
}

// Score maps a fractional price edge and a volume ratio onto [1,10]. It is
// non-decreasing in both arguments as long as the weights are non-negative.
func (d *Detector) Score(priceEdge, volumeRatio decimal.Decimal) int {
	raw := priceEdge.Mul(hundred).Mul(d.policy.PriceWeight).
		Add(volumeRatio.Sub(one).Mul(d.policy.VolumeWeight)).
		Round(0)

	switch {
	case raw.LessThan(decimal.NewFromInt(minStrength)):
		return minStrength
	case raw.GreaterThan(decimal.NewFromInt(maxStrength)):
		return maxStrength
	default:
		return int(raw.IntPart())
	}
}
