package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"trustscan/internal/app"
)

var (
	runCount int
	runNow   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scan on the configured interval until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runCount < 0 {
			return fmt.Errorf("--count cannot be negative")
		}
		return getApp().Run(cmd.Context(), app.RunOptions{
			Count:     runCount,
			Immediate: runNow,
		})
	},
}

func init() {
	runCmd.Flags().IntVar(&runCount, "count", 0, "Stop after this many scans (0 runs forever)")
	runCmd.Flags().BoolVar(&runNow, "now", false, "Scan immediately instead of waiting for the first tick")
}
