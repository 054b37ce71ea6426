package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run trades against the simulated venue",
	Long: `Run the same place and close flows against an in-process simulated venue.

The simulated venue keeps its open contracts in memory unless --db points at
a SQLite file, in which case contracts survive between invocations.

Examples:
  trader demo place --db sim.db --symbol R_100 --amount 10 --duration 5 --unit minutes
  trader demo list --db sim.db
  trader demo close --db sim.db --contract C-01HV...`,
}

var demoPlaceCmd = &cobra.Command{
	Use:   "place",
	Short: "Buy a contract on the simulated venue",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, _, done, err := simTrader(demoDB)
		if err != nil {
			return err
		}
		defer done()
		return runPlace(cmd, t)
	},
}

var demoCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Sell a contract on the simulated venue",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, _, done, err := simTrader(demoDB)
		if err != nil {
			return err
		}
		defer done()
		return runClose(cmd, t)
	},
}

var demoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contracts open on the simulated venue",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, v, done, err := simTrader(demoDB)
		if err != nil {
			return err
		}
		defer done()

		open, err := v.Book().Open(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CONTRACT\tSYMBOL\tTYPE\tBUY PRICE\tPAYOUT")
		for _, c := range open {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Instrument, c.ContractType, c.BuyPrice, c.Payout)
		}
		return w.Flush()
	},
}

var demoDB string

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.AddCommand(demoPlaceCmd)
	demoCmd.AddCommand(demoCloseCmd)
	demoCmd.AddCommand(demoListCmd)

	demoCmd.PersistentFlags().StringVar(&demoDB, "db", "", "SQLite file for the simulated venue's contracts (default: sim.db_path, else memory)")
	addPlaceFlags(demoPlaceCmd)
	addCloseFlags(demoCloseCmd)
}
