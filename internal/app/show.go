package app

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// Show prints the most recent ledger records, oldest first.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	sess, err := a.openSession(ctx, nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	records := sess.ledger.List()
	if len(records) == 0 {
		fmt.Fprintln(a.Out, "ledger empty: no breakout signals have been secured")
		return nil
	}
	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[len(records)-opts.Limit:]
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "#\tObserved (UTC)\tSymbol\tStock\tPrice\tStrength\tFingerprint")
	for _, rec := range records {
		hash := shortHash(rec.Fingerprint)
		if opts.FullHash {
			hash = rec.Fingerprint
		}
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\t%s\t%d/10\t%s\n",
			rec.Sequence,
			rec.ObservedAt.UTC().Format(time.RFC3339),
			rec.Symbol,
			sanitizeInline(rec.StockName),
			formatPrice(rec.Price),
			rec.Strength,
			hash,
		)
	}
	return writer.Flush()
}

// Verify recomputes every fingerprint in the persisted ledger.
func (a *App) Verify(ctx context.Context) error {
	sess, err := a.openSession(ctx, nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.ledger.Verify(); err != nil {
		return err
	}
	head, ok := sess.ledger.Head()
	if !ok {
		fmt.Fprintln(a.Out, "ledger empty: nothing to verify")
		return nil
	}
	fmt.Fprintf(a.Out, "verified %d records, head #%d %s\n", sess.ledger.Len(), head.Sequence, head.Fingerprint)
	return nil
}

// Reset clears the ledger. Callers must have confirmed with the user.
func (a *App) Reset(ctx context.Context) error {
	sess, err := a.openSession(ctx, nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	cleared := sess.ledger.Len()
	if err := sess.ledger.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "ledger has been cleared (%d records removed)\n", cleared)
	return nil
}

func shortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:8] + "..." + h[len(h)-4:]
}

func formatPrice(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
