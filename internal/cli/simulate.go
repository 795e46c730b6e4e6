package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"trustscan/internal/app"
)

var (
	simulateSymbol    string
	simulateName      string
	simulatePrice     string
	simulateHigh      string
	simulateVolume    int64
	simulateAvgVolume int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-signal",
	Short: "Push one synthetic snapshot through detection, the ledger and alerting",
	RunE: func(cmd *cobra.Command, args []string) error {
		price, err := decimal.NewFromString(simulatePrice)
		if err != nil {
			return errors.New("--price must be a decimal number")
		}
		high, err := decimal.NewFromString(simulateHigh)
		if err != nil {
			return errors.New("--high must be a decimal number")
		}

		return getApp().SimulateSignal(cmd.Context(), app.SimulateOptions{
			Symbol:       simulateSymbol,
			Name:         simulateName,
			CurrentPrice: price,
			PreviousHigh: high,
			Volume:       simulateVolume,
			AvgVolume:    simulateAvgVolume,
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateSymbol, "symbol", "", "Ticker symbol")
	simulateCmd.Flags().StringVar(&simulateName, "name", "", "Display name (defaults to the symbol)")
	simulateCmd.Flags().StringVar(&simulatePrice, "price", "", "Current price")
	simulateCmd.Flags().StringVar(&simulateHigh, "high", "", "Previous high")
	simulateCmd.Flags().Int64Var(&simulateVolume, "volume", 0, "Current session volume")
	simulateCmd.Flags().Int64Var(&simulateAvgVolume, "avg-volume", 0, "Average session volume")
	_ = simulateCmd.MarkFlagRequired("symbol")
	_ = simulateCmd.MarkFlagRequired("price")
	_ = simulateCmd.MarkFlagRequired("high")
}
