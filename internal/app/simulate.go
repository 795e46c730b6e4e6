package app

import (
	"context"
	"errors"
	"strings"

	"trustscan/internal/market"
)

// SimulateSignal pushes one synthetic snapshot through detect, commit and
// notify against the configured ledger.
func (a *App) SimulateSignal(ctx context.Context, opts SimulateOptions) error {
	if strings.TrimSpace(opts.Symbol) == "" {
		return errors.New("symbol is required")
	}
	name := opts.Name
	if name == "" {
		name = opts.Symbol
	}

	snapshot := market.Snapshot{
		Symbol:       strings.ToUpper(opts.Symbol),
		Name:         name,
		CurrentPrice: opts.CurrentPrice,
		PreviousHigh: opts.PreviousHigh,
		Volume:       opts.Volume,
		AvgVolume:    opts.AvgVolume,
	}

	sess, err := a.openSession(ctx, nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	source := &market.StaticSource{Snapshots: []market.Snapshot{snapshot}}
	res, err := a.newService(sess, source, nil, nil).Scan(ctx)
	a.printScan(res)
	return err
}
