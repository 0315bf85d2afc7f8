package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"deluxe_backend/internal/model"
	"deluxe_backend/internal/repository"
	"deluxe_backend/pkg/billing"
	"deluxe_backend/pkg/config"
	"deluxe_backend/pkg/database"
	"deluxe_backend/pkg/logger"
	"deluxe_backend/pkg/seed"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "deluxe-api",
		Short:        "Deluxe e-commerce subscription backend",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP API and background jobs",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE: func(_ *cobra.Command, _ []string) error {
				return withDatabase(func(_ *config.Config, _ *gorm.DB, _ *zap.Logger) error {
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Seed the demo account, product and plans",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(func(cfg *config.Config, db *gorm.DB, log *zap.Logger) error {
					gateway := billing.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, log)
					seeder := seed.NewSeeder(
						repository.NewAccountRepository(db),
						repository.NewCatalogRepository(db),
						gateway,
						cfg.Stripe,
						log,
					)
					return seeder.Run(cmd.Context())
				})
			},
		},
	)
	return root
}

// withDatabase opens and migrates the database, runs fn and closes it again.
func withDatabase(fn func(cfg *config.Config, db *gorm.DB, log *zap.Logger) error) error {
	cfg := config.Load()
	log := logger.New(cfg.Log)
	defer log.Sync()

	db, err := openDatabase(cfg, log)
	if err != nil {
		return err
	}
	defer database.Close(db)

	return fn(cfg, db, log)
}

func openDatabase(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := database.InitDB(cfg.Database.DSN(), log)
	if err != nil {
		return nil, err
	}
	if err := database.MigrateDatabase(db, log, model.All()...); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func runServe(parent context.Context) error {
	cfg := config.Load()
	log := logger.New(cfg.Log)
	defer log.Sync()

	db, err := openDatabase(cfg, log)
	if err != nil {
		log.Error("Database unavailable", zap.Error(err))
		return err
	}
	defer database.Close(db)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, db, log)
	if err != nil {
		return err
	}

	scheduler, err := app.startCron(cfg.Cron)
	if err != nil {
		return err
	}
	defer func() {
		<-scheduler.Stop().Done()
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server is running", zap.String("port", cfg.Server.Port))
		errCh <- app.http.Listen(":" + cfg.Server.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.http.ShutdownWithContext(shutdownCtx)
}
