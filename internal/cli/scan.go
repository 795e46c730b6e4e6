package cli

import (
	"github.com/spf13/cobra"

	"trustscan/internal/app"
)

var scanSnapshotFile string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one detection pass and secure every breakout",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Scan(cmd.Context(), app.ScanOptions{SnapshotFile: scanSnapshotFile})
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanSnapshotFile, "snapshots", "", "Read snapshots from this YAML/JSON file instead of the configured source")
}
