package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/StrathCole/poster-oracle/pkg/logging"
	"github.com/StrathCole/poster-oracle/pkg/pricemodel"
	"github.com/StrathCole/poster-oracle/pkg/setup"
)

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Bootstrap the oracle from config and print every asset's price and status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		now := time.Now()
		sys, err := setup.Build(cmd.Context(), cfg, logging.NewNoopLogger(), now)
		if err != nil {
			return fmt.Errorf("failed to build oracle: %w", err)
		}
		defer sys.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SYMBOL\tADDRESS\tMODEL\tPRICE\tVALID")
		for _, a := range sys.Assets {
			p, valid := sys.Oracle.GetUnderlyingPriceAndStatus(cmd.Context(), a.Address, now)
			model := a.Model
			if model == "" {
				model = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", a.Symbol, a.Address.Hex(), model, pricemodel.ToDecimal(p).String(), valid)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(pricesCmd)
}
