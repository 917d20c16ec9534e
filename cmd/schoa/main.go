package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"schoa/internal/config"
	"schoa/internal/core"
	"schoa/internal/db"
	httpserver "schoa/internal/http"
	"schoa/internal/llm"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "schoa",
		Short:         "Smart Clinical & Operational Assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().Bool("raw", false, "Print model output as plain markdown")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(patientsCmd())
	rootCmd.AddCommand(summarizeCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app holds everything a command needs once configuration is loaded.
type app struct {
	cfg        *config.Config
	log        zerolog.Logger
	store      db.Store
	summarizer *core.Summarizer
	analyst    *core.FinancialAnalyst
	search     *core.PatientSearch
}

func newLogger(out io.Writer, dev bool) zerolog.Logger {
	if dev {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// newApp loads configuration, the record store and the model client.  Logs
// go to logOut so command output on stdout stays clean.
func newApp(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := newLogger(logOut, cfg.IsDev())

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client, err := llm.New(cfg.LLMOptions())
	if err != nil {
		return nil, err
	}
	if !cfg.HasCredential() {
		logger.Warn().Str("provider", cfg.LLMProvider).Msg("no API key configured; AI features will return fallback text")
	}

	return &app{
		cfg:        cfg,
		log:        logger,
		store:      store,
		summarizer: core.NewSummarizer(client, logger),
		analyst:    core.NewFinancialAnalyst(client, logger),
		search:     core.NewPatientSearch(client, logger),
	}, nil
}

// openStore picks the record source: a PostgreSQL snapshot, a fixture file
// or the embedded demo data.
func openStore(ctx context.Context, cfg *config.Config) (db.Store, error) {
	if cfg.DatabaseURL == "" {
		return db.LoadFixture(cfg.FixturePath)
	}
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return db.Snapshot(ctx, db.NewRepository(conn))
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the SCHOA web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	a, err := newApp(ctx, os.Stdout)
	if err != nil {
		return err
	}
	srv, err := httpserver.NewServer(a.store, a.summarizer, a.analyst, a.search, a.log)
	if err != nil {
		return fmt.Errorf("failed to construct server: %w", err)
	}

	httpSrv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		a.log.Info().Str("addr", httpSrv.Addr).Str("provider", a.cfg.LLMProvider).Msg("listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	a.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the PostgreSQL tables read by the record store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			conn, err := db.Open(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := db.Migrate(cmd.Context(), conn); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		},
	}
}
