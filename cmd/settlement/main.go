package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/attaboy/settlement/internal/app"
	"github.com/attaboy/settlement/internal/auth"
	"github.com/attaboy/settlement/internal/infra"
	"github.com/attaboy/settlement/internal/scheduler"
	"github.com/spf13/cobra"
)

var (
	cfg    *infra.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "settlement",
	Short:         "Settle pending bets against completed game results",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = infra.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger = infra.NewLogger(os.Stdout, cfg.LogLevel)
		slog.SetDefault(logger)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the /settle trigger and run passes on SETTLE_SCHEDULE",
	RunE: func(cmd *cobra.Command, args []string) error {
		noSchedule, _ := cmd.Flags().GetBool("no-schedule")
		return serve(cmd.Context(), !noSchedule)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one settlement pass and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.HasDatabase() {
			return fmt.Errorf("database not configured: set DATABASE_URL or PGHOST/PGUSER")
		}
		return infra.RunMigrations(cfg.DSN(), logger)
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Mint a trigger token signed with TRIGGER_JWT_SECRET",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.TriggerJWTSecret == "" {
			return fmt.Errorf("TRIGGER_JWT_SECRET is not set")
		}
		realm, _ := cmd.Flags().GetString("realm")
		role, _ := cmd.Flags().GetString("role")
		if auth.Realm(realm) == auth.RealmAdmin && !auth.ValidRole(role) {
			return fmt.Errorf("unknown admin role %q", role)
		}
		mgr := auth.NewJWTManager(cfg.TriggerJWTSecret, 365*24*time.Hour, 12*time.Hour)
		token, err := mgr.GenerateToken(auth.Realm(realm), args[0], role)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	serveCmd.Flags().Bool("no-schedule", false, "only serve the HTTP trigger")
	tokenCmd.Flags().String("realm", string(auth.RealmService), "token realm: service or admin")
	tokenCmd.Flags().String("role", "", "admin role (operator or admin)")
	rootCmd.AddCommand(serveCmd, runCmd, migrateCmd, tokenCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		l := logger
		if l == nil {
			l = slog.Default()
		}
		l.Error("settlement failed", "error", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, withSchedule bool) error {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var sched *scheduler.Scheduler
	if withSchedule && a.Engine != nil {
		sched = scheduler.New(a.Engine, cfg.PassTimeout, logger)
		if err := sched.ScheduleSettlement(cfg.Schedule); err != nil {
			return err
		}
		if err := sched.Start(); err != nil {
			return err
		}
	}

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:        addr,
		Handler:     a.Router(),
		ReadTimeout: 15 * time.Second,
		// A pass may take a while on a large backlog.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("settlement server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			logger.Error("scheduler stop", "error", err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

func runOnce(ctx context.Context) error {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.ConfigErr != nil {
		return a.ConfigErr
	}

	result, err := a.Engine.RunPass(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
