package cli

import (
	"github.com/spf13/cobra"

	"trustscan/internal/app"
)

var (
	exportPNGPath    string
	exportCSVPath    string
	exportMaxRecords int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export ledger records as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			PNGPath:    exportPNGPath,
			CSVPath:    exportCSVPath,
			MaxRecords: exportMaxRecords,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxRecords, "max-records", 0, "Maximum records to export (defaults to config)")
}
