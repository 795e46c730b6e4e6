package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"trustscan/internal/app"
)

var (
	showLimit int
	showFull  bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent ledger records",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:    showLimit,
			FullHash: showFull,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of records to display")
	showCmd.Flags().BoolVar(&showFull, "full", false, "Print full fingerprints")
}
