package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/jengzang/records-explorer-go/internal/api"
	"github.com/jengzang/records-explorer-go/internal/config"
	"github.com/jengzang/records-explorer-go/internal/database"
	"github.com/jengzang/records-explorer-go/internal/explorer"
	"github.com/jengzang/records-explorer-go/internal/repository"
	"github.com/jengzang/records-explorer-go/internal/service"
)

var (
	computeOnStart bool

	rootCmd = &cobra.Command{
		Use:          "records-explorer",
		Short:        "Tile exploration ledger with cluster and square achievements",
		SilenceUsage: true,
		RunE:         runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE:  runServe,
	}

	computeCmd = &cobra.Command{
		Use:   "compute",
		Short: "Fold all unprocessed activities into the explorer state and exit",
		RunE:  runCompute,
	}

	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Discard the explorer state; the next compute rebuilds it from all activities",
		RunE:  runReset,
	}

	summaryCmd = &cobra.Command{
		Use:   "summary",
		Short: "Print the explorer summary of every achievement zoom as JSON",
		RunE:  runSummary,
	}
)

func init() {
	serveCmd.Flags().BoolVar(&computeOnStart, "compute", false, "run a compute pass before serving")
	rootCmd.AddCommand(serveCmd, computeCmd, resetCmd, summaryCmd)
}

// app holds everything the subcommands share
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB
	store  *explorer.Store
}

func setup() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := database.Init(database.Config{Path: cfg.DBPath}); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	store, err := explorer.NewStore(cfg.StateDir, cfg.AchievementZooms, logger)
	if err != nil {
		database.Close()
		return nil, err
	}
	store.Load()

	return &app{cfg: cfg, logger: logger, db: database.GetDB(), store: store}, nil
}

func (a *app) explorerService() *service.ExplorerService {
	return service.NewExplorerService(a.store, repository.NewActivityRepository(a.db), a.logger)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if computeOnStart {
		if _, err := a.explorerService().Compute(ctx); err != nil {
			return err
		}
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              a.cfg.Port,
		Handler:           api.SetupRouter(a.cfg, a.db, a.store, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "addr", a.cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runCompute(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := a.explorerService().Compute(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd, report)
}

func runReset(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer database.Close()

	return a.explorerService().Reset()
}

func runSummary(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer database.Close()

	svc := a.explorerService()
	var summaries []any
	for _, zoom := range a.store.AchievementZooms() {
		summary, err := svc.Summary(zoom)
		if err != nil {
			return err
		}
		summaries = append(summaries, summary)
	}
	return printJSON(cmd, summaries)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
