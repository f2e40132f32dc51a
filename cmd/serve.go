package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wxprobe/internal/server"
	"wxprobe/internal/store"
)

var (
	listenAddr string
	serveDB    string
)

// serveCmd starts the orchestration API that drives suites remotely
// and serves stored history and analytics.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the test orchestration HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		addr := listenAddr
		if addr == "" {
			addr = viper.GetString("listen_addr")
		}
		dbPath := serveDB
		if dbPath == "" {
			dbPath = viper.GetString("database_path")
		}

		var st *store.Store
		if dbPath != "" {
			var err error
			st, err = store.Open(dbPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
				os.Exit(1)
			}
			defer st.Close()
			log.Info().Str("path", dbPath).Msg("database ready")
		} else {
			log.Warn().Msg("running without a database, history disabled")
		}

		srv := server.New(st)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start(addr)
		}()
		log.Info().Str("addr", addr).Msg("server listening")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if err != nil {
				fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
				os.Exit(1)
			}
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", err)
				os.Exit(1)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (default from config)")
	serveCmd.Flags().StringVar(&serveDB, "db", "", "SQLite database path (default from config)")
}
