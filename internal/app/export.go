package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"trustscan/internal/storage"
)

// Export writes the ledger as CSV and/or a PNG chart of signal strengths.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxRecords = a.Config.ResolveMaxRecords(opts.MaxRecords)

	sess, err := a.openSession(ctx, nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	records := sess.ledger.List()
	if len(records) == 0 {
		a.Logger.Info().Msg("ledger empty; nothing to export")
		return nil
	}

	downsampled := downsampleRecords(records, opts.MaxRecords)
	a.Logger.Info().Int("total", len(records)).Int("exported", len(downsampled)).Msg("exporting records")

	if opts.CSVPath != "" {
		if err := writeRecordsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeRecordsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleRecords(records []storage.SignalRecord, max int) []storage.SignalRecord {
	if max <= 0 || len(records) <= max {
		return records
	}
	if max == 1 {
		return records[len(records)-1:]
	}

	result := make([]storage.SignalRecord, 0, max)
	step := float64(len(records)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(records) {
			idx = len(records) - 1
		}
		result = append(result, records[idx])
	}
	return result
}

func writeRecordsCSV(path string, records []storage.SignalRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"sequence", "id", "observed_at", "symbol", "stock_name", "price", "strength", "fingerprint", "committed_at"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		row := []string{
			strconv.FormatUint(rec.Sequence, 10),
			rec.ID,
			rec.ObservedAt.UTC().Format(time.RFC3339Nano),
			rec.Symbol,
			rec.StockName,
			rec.Price.String(),
			strconv.Itoa(rec.Strength),
			rec.Fingerprint,
			rec.CommittedAt.UTC().Format(time.RFC3339Nano),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeRecordsPNG(path string, records []storage.SignalRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	bars := make([]chart.Value, len(records))
	for i, rec := range records {
		bars[i] = chart.Value{
			Label: fmt.Sprintf("#%d %s", rec.Sequence, rec.Symbol),
			Value: float64(rec.Strength),
		}
	}

	barWidth := 40
	if fit := 1100 / (len(bars) * 3 / 2); fit < barWidth {
		barWidth = max(fit, 2)
	}

	graph := chart.BarChart{
		Title:  "Secured breakout strength",
		Width:  1280,
		Height: 720,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		BarWidth:   barWidth,
		BarSpacing: barWidth / 2,
		YAxis: chart.YAxis{
			Name: "Strength",
			Range: &chart.ContinuousRange{
				Min: 0,
				Max: 10,
			},
		},
		Bars: bars,
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
