package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/contracttrader/broker"
	"github.com/rustyeddy/contracttrader/rpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve trades as a JSON endpoint",
	Long: `Serve POST /api/trade. The request body is

  {"action":"place","symbol":"frxUSDJPY","direction":"CALL","amount":10,"duration":60,"durationType":"seconds"}
  {"action":"close","contractId":"250111"}

and every response, success or failure, has a "success" field.

Example:
  trader serve --addr :8080`,
	RunE: runServe,
}

var (
	serveAddr string
	serveSim  bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.addr)")
	serveCmd.Flags().BoolVar(&serveSim, "sim", false, "trade against the simulated venue")
	serveCmd.Flags().StringVar(&demoDB, "db", "", "SQLite file for the simulated venue (with --sim)")
}

func runServe(cmd *cobra.Command, args []string) error {
	var (
		t    broker.Trader
		done func()
		err  error
	)
	if serveSim {
		t, _, done, err = simTrader(demoDB)
	} else {
		t, done, err = liveTrader()
	}
	if err != nil {
		return err
	}
	defer done()

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              addr,
		Handler:           rpc.NewRouter(rpc.NewHandler(t, slog.Default())),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("serving trades", "addr", addr, "sim", serveSim)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-cmd.Context().Done():
	}

	// in-flight trades finish within the venue timeout
	timeout, _ := cfg.Venue.TimeoutDuration()
	ctx, cancel := context.WithTimeout(context.Background(), timeout+5*time.Second)
	defer cancel()
	slog.Info("shutting down")
	return srv.Shutdown(ctx)
}
