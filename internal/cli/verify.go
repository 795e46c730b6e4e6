package cli

import (
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Recompute every fingerprint and check sequence order",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Verify(cmd.Context())
	},
}
