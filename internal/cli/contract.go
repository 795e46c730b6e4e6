package cli

import (
	"github.com/spf13/cobra"

	"trustscan/internal/app"
)

var contractCmd = &cobra.Command{
	Use:         "contract",
	Short:       "Print the reference archive contract",
	Annotations: map[string]string{"config": "none"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a := &app.App{Out: cmd.OutOrStdout()}
		return a.Contract()
	},
}
