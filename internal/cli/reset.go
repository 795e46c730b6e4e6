package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var resetConfirmed bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the ledger; all committed signals are lost",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetConfirmed {
			return errors.New("refusing to clear the ledger without --yes")
		}
		return getApp().Reset(cmd.Context())
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetConfirmed, "yes", false, "Confirm the ledger should be cleared")
}
