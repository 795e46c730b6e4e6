package app

import (
	"context"
	"fmt"
	"text/tabwriter"

	"trustscan/internal/market"
	"trustscan/internal/service"
)

// Scan runs one detection pass and commits every candidate.
func (a *App) Scan(ctx context.Context, opts ScanOptions) error {
	sess, err := a.openSession(ctx, nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	source := a.newSource()
	if opts.SnapshotFile != "" {
		source = market.NewFileSource(opts.SnapshotFile)
	}

	res, err := a.newService(sess, source, nil, nil).Scan(ctx)
	a.printScan(res)
	return err
}

func (a *App) printScan(res service.ScanResult) {
	if res.Skipped {
		fmt.Fprintln(a.Out, "scan skipped: another scanner holds the ledger lock")
		return
	}
	if len(res.Candidates) == 0 {
		fmt.Fprintf(a.Out, "no breakouts detected across %d instruments", res.Snapshots)
		if len(res.Rejected) > 0 {
			fmt.Fprintf(a.Out, " (%d rejected)", len(res.Rejected))
		}
		fmt.Fprintln(a.Out)
		return
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "#\tStock\tPrice\tStrength\tFingerprint")
	for _, rec := range res.Committed {
		fmt.Fprintf(writer, "%d\t%s\t%s\t%d/10\t%s\n",
			rec.Sequence,
			rec.StockName,
			formatPrice(rec.Price),
			rec.Strength,
			shortHash(rec.Fingerprint),
		)
	}
	writer.Flush()

	fmt.Fprintf(a.Out, "instruments=%d rejected=%d candidates=%d committed=%d duplicates=%d\n",
		res.Snapshots, len(res.Rejected), len(res.Candidates), len(res.Committed), res.Duplicates)
}
