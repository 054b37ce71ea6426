package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/contracttrader/broker"
	"github.com/rustyeddy/contracttrader/broker/sim"
	"github.com/rustyeddy/contracttrader/broker/venue"
	"github.com/rustyeddy/contracttrader/rpc"
)

var placeCmd = &cobra.Command{
	Use:   "place",
	Short: "Buy a contract on the venue",
	Long: `Authorize, request a price, and buy at the quoted ask price.

Example:
  trader place --symbol frxUSDJPY --direction CALL --amount 10 --duration 60 --unit seconds`,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, done, err := liveTrader()
		if err != nil {
			return err
		}
		defer done()
		return runPlace(cmd, t)
	},
}

var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "Sell an open contract at market",
	Long: `Authorize and sell an open contract.

Example:
  trader close --contract 250111`,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, done, err := liveTrader()
		if err != nil {
			return err
		}
		defer done()
		return runClose(cmd, t)
	},
}

var (
	placeSymbol    string
	placeDirection string
	placeAmount    string
	placeDuration  int
	placeUnit      string
	placeBarrier   string

	closeContract string
)

func init() {
	rootCmd.AddCommand(placeCmd)
	rootCmd.AddCommand(closeCmd)
	addPlaceFlags(placeCmd)
	addCloseFlags(closeCmd)
}

func addPlaceFlags(c *cobra.Command) {
	c.Flags().StringVarP(&placeSymbol, "symbol", "s", "", "instrument symbol (required)")
	c.Flags().StringVarP(&placeDirection, "direction", "d", "CALL", "CALL (up) or PUT (down)")
	c.Flags().StringVarP(&placeAmount, "amount", "a", "", "stake in the settlement currency (required)")
	c.Flags().IntVar(&placeDuration, "duration", 0, "contract duration (required)")
	c.Flags().StringVar(&placeUnit, "unit", "seconds", "duration unit: seconds|minutes|hours")
	c.Flags().StringVar(&placeBarrier, "barrier", "", "optional barrier, e.g. +0.005")
	c.MarkFlagRequired("symbol")
	c.MarkFlagRequired("amount")
	c.MarkFlagRequired("duration")
}

func addCloseFlags(c *cobra.Command) {
	c.Flags().StringVarP(&closeContract, "contract", "c", "", "contract id to sell (required)")
	c.MarkFlagRequired("contract")
}

func placeRequest(cmd *cobra.Command) (rpc.Request, error) {
	amount, err := decimal.NewFromString(placeAmount)
	if err != nil {
		return rpc.Request{}, fmt.Errorf("invalid --amount %q: %w", placeAmount, err)
	}
	duration := placeDuration
	req := rpc.Request{
		Action:       rpc.ActionPlace,
		Symbol:       placeSymbol,
		Direction:    placeDirection,
		Amount:       &amount,
		Duration:     &duration,
		DurationType: placeUnit,
	}
	if cmd.Flags().Changed("barrier") {
		b := placeBarrier
		req.Barrier = &b
	}
	return req, nil
}

func runPlace(cmd *cobra.Command, t broker.Trader) error {
	req, err := placeRequest(cmd)
	if err != nil {
		return err
	}
	return runTrade(cmd, t, req)
}

func runClose(cmd *cobra.Command, t broker.Trader) error {
	return runTrade(cmd, t, rpc.Request{Action: rpc.ActionClose, ContractID: closeContract})
}

// runTrade prints the response in its JSON shape and turns a failure into a
// non-zero exit.
func runTrade(cmd *cobra.Command, t broker.Trader, req rpc.Request) error {
	resp := rpc.NewHandler(t, slog.Default()).Handle(cmd.Context(), req)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("trade failed (%s): %s", resp.Kind, resp.Error)
	}
	return nil
}

func liveTrader() (broker.Trader, func(), error) {
	if cfg.Venue.Token == "" {
		return nil, nil, fmt.Errorf("venue: missing token (set venue.token or VENUE_API_TOKEN)")
	}
	timeout, err := cfg.Venue.TimeoutDuration()
	if err != nil {
		return nil, nil, err
	}
	handshake, err := cfg.Venue.HandshakeDuration()
	if err != nil {
		return nil, nil, err
	}

	d := &venue.WSDialer{
		Endpoint:         cfg.Venue.Endpoint,
		AppID:            cfg.Venue.AppID,
		HandshakeTimeout: handshake,
		UserAgent:        "trader/" + version,
		Logger:           slog.Default(),
	}
	t := venue.NewOrchestrator(d, cfg.Venue.Token,
		venue.WithTimeout(timeout),
		venue.WithCurrency(cfg.Venue.Currency),
		venue.WithLogger(slog.Default()),
	)
	return t, func() {}, nil
}

// simTrader wires the orchestrator to the simulated venue. dbPath selects a
// SQLite book; empty keeps the book in memory for this process only.
func simTrader(dbPath string) (broker.Trader, *sim.Venue, func(), error) {
	if dbPath == "" {
		dbPath = cfg.Sim.DBPath
	}

	var book sim.Book = sim.NewMemoryBook()
	if dbPath != "" {
		b, err := sim.NewSQLiteBook(dbPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sim book: %w", err)
		}
		book = b
	}

	ratio := decimal.RequireFromString(sim.DefaultPayoutRatio)
	if cfg.Sim.PayoutRatio != "" {
		ratio = decimal.RequireFromString(cfg.Sim.PayoutRatio)
	}
	timeout, err := cfg.Venue.TimeoutDuration()
	if err != nil {
		book.Close()
		return nil, nil, nil, err
	}

	v := sim.New(book, sim.Options{
		Token:       cfg.Venue.Token,
		Currency:    cfg.Venue.Currency,
		PayoutRatio: ratio,
		Notices:     true,
	})
	t := venue.NewOrchestrator(v, cfg.Venue.Token,
		venue.WithTimeout(timeout),
		venue.WithCurrency(cfg.Venue.Currency),
		venue.WithLogger(slog.Default()),
	)
	return t, v, func() { book.Close() }, nil
}
