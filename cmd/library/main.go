package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"librarysys/pkg/api"
	"librarysys/pkg/circulation"
	"librarysys/pkg/config"
	"librarysys/pkg/database"
	"librarysys/pkg/lifecycle"
	"librarysys/pkg/logger"
	"librarysys/pkg/overdue"
	"librarysys/pkg/store"
)

// app is the wired service. Every subcommand builds one.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *gorm.DB
	service *circulation.Service
	handler *api.Handler
}

func newApp(cfg *config.Config, log *zap.Logger) (*app, error) {
	policy, err := lifecycle.ParsePolicy(cfg.Circulation.Policy)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if cfg.Database.SeedDemoData {
		if err := database.Seed(db, log); err != nil {
			if closeErr := database.Close(db); closeErr != nil {
				log.Warn("Error closing database", zap.Error(closeErr))
			}
			return nil, err
		}
	}

	st := store.New(db)
	engine := lifecycle.New(lifecycle.Options{
		Policy:         policy,
		LoanPeriodDays: cfg.Circulation.LoanPeriodDays,
		Location:       cfg.Circulation.Location(),
	})
	service := circulation.NewService(st, engine, log)

	return &app{
		cfg:     cfg,
		log:     log,
		db:      db,
		service: service,
		handler: api.NewHandler(db, st, service, log),
	}, nil
}

func (a *app) close() {
	if err := database.Close(a.db); err != nil {
		a.log.Warn("Error closing database", zap.Error(err))
	}
}

// serve runs the HTTP server until SIGINT or SIGTERM.
func (a *app) serve() error {
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    a.cfg.HTTP.Addr(),
		Handler: api.NewRouter(a.handler),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var scheduler *overdue.Scheduler
	if a.cfg.Overdue.SweepEnabled {
		scheduler = overdue.NewScheduler(a.service, a.cfg.Overdue.SweepSchedule, a.log)
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		a.log.Info("Library service starting",
			zap.String("addr", srv.Addr),
			zap.String("policy", a.service.Policy().String()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}

	a.log.Info("Shutting down", zap.Duration("timeout", a.cfg.Global.ShutdownTimeout))
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.Global.ShutdownTimeout)
	defer shutdownCancel()

	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	a.log.Info("Server exited")
	return nil
}

func newRootCmd() *cobra.Command {
	var (
		configFile string
		cfg        *config.Config
		log        *zap.Logger
	)

	withApp := func(run func(cmd *cobra.Command, a *app) error) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.close()
			return run(cmd, a)
		}
	}

	rootCmd := &cobra.Command{
		Use:           "library",
		Short:         "Library circulation service: catalogue, readers and borrow records",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configFile)
			if err != nil {
				return err
			}
			log = logger.New(cfg.Log)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if log != nil {
				_ = log.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (yaml, json or toml)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  withApp(func(cmd *cobra.Command, a *app) error { return a.serve() }),
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			a.log.Info("Database schema is up to date")
			return nil
		}),
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep-overdue",
		Short: "Mark every borrowed record past its due date as overdue and exit",
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			flagged, err := a.service.SweepOverdue(context.Background())
			if err != nil {
				return err
			}
			a.log.Info("Overdue sweep done", zap.Int("flagged", flagged))
			fmt.Fprintf(cmd.OutOrStdout(), "%d record(s) marked overdue\n", flagged)
			return nil
		}),
	}

	rootCmd.RunE = serveCmd.RunE
	rootCmd.AddCommand(serveCmd, migrateCmd, sweepCmd)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
