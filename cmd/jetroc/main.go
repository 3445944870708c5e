package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jetroc/internal/config"
	"jetroc/internal/http/handlers"
	"jetroc/internal/http/server"
	applog "jetroc/internal/log"
	"jetroc/internal/repos"
	"jetroc/internal/services"
)

var (
	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "jetroc",
	Short:         "JeTroc.ci storefront: catalog, WhatsApp handoff and admin",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd.Flags())
		if err != nil {
			return err
		}
		logger, err = applog.New(cfg.LogLevel, cfg.LogFile)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		applog.SetLogger(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and seed an empty catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := repos.OpenDB(cfg.DBDSN, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		logger.Info("database ready", zap.String("dsn", cfg.DBDSN))
		return nil
	},
}

var grantEmail string

var grantAdminCmd = &cobra.Command{
	Use:   "grant-admin",
	Short: "Grant the admin role to a registered account",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := repos.OpenDB(cfg.DBDSN, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		auth := services.NewAuthService(repos.NewUserRepo(db), repos.NewRoleRepo(db))
		if err := auth.GrantAdmin(cmd.Context(), grantEmail); err != nil {
			return err
		}
		logger.Info("admin role granted", zap.String("email", grantEmail))
		return nil
	},
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())
	grantAdminCmd.Flags().StringVar(&grantEmail, "email", "", "account e-mail")
	_ = grantAdminCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(serveCmd, migrateCmd, grantAdminCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "jetroc:", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	db, err := repos.OpenDB(cfg.DBDSN, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := ensureAdmin(ctx, db); err != nil {
		return err
	}

	deps, err := handlers.NewDeps(db, cfg, logger)
	if err != nil {
		return err
	}
	app := server.New(cfg, deps, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("port", cfg.Port), zap.String("media_dir", cfg.MediaDir))
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(10 * time.Second)
	})
	return g.Wait()
}

// ensureAdmin provisions ADMIN_EMAIL/ADMIN_PASSWORD when both are set.
func ensureAdmin(ctx context.Context, db *sqlx.DB) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	auth := services.NewAuthService(repos.NewUserRepo(db), repos.NewRoleRepo(db))
	if err := auth.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return fmt.Errorf("provision admin %s: %w", cfg.AdminEmail, err)
	}
	logger.Info("admin provisioned", zap.String("email", cfg.AdminEmail))
	return nil
}
