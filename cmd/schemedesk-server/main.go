package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/schemedesk/schemedesk/internal/config"
	"github.com/schemedesk/schemedesk/internal/platform/auth"
	"github.com/schemedesk/schemedesk/internal/platform/db"
	"github.com/schemedesk/schemedesk/internal/platform/events"
	"github.com/schemedesk/schemedesk/internal/platform/sandbox"
	"github.com/schemedesk/schemedesk/internal/platform/websocket"
	"github.com/schemedesk/schemedesk/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "schemedesk-server",
		Short: "Healthcare scheme eligibility and approval server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(eventsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// migrationsFS returns the embedded schema unless dir overrides it.
func migrationsFS(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return migrations.FS
}

func openMigrator(ctx context.Context, dir string) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.StoreBackend != config.StorePostgres {
		return nil, nil, fmt.Errorf("migrations only apply to STORE_BACKEND=%s, got %q", config.StorePostgres, cfg.StoreBackend)
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrationsFS(dir)), pool.Close, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			migrator, closeFn, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			migrator, closeFn, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

// app is everything a command needs to run domain operations outside the
// HTTP server.
type app struct {
	cfg         *config.Config
	backend     *backend
	publisher   events.Publisher
	hub         *websocket.Hub
	revocations *auth.TokenRevocationStore
	services    *services
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := newLogger(cfg)

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	broker, err := openPublisher(ctx, cfg, logger)
	if err != nil {
		b.Close()
		return nil, err
	}
	// Connected dashboards see every event the broker does.
	hub := websocket.NewHub(logger)
	publisher := events.Fanout{broker, hub}

	issuer := auth.NewTokenIssuer(cfg.SigningKey(), cfg.JWTIssuer, cfg.TokenTTL)
	revocations := auth.NewTokenRevocationStore(time.Minute)

	return &app{
		cfg:         cfg,
		backend:     b,
		publisher:   publisher,
		hub:         hub,
		revocations: revocations,
		services:    newServices(cfg, b, publisher, issuer, revocations, logger),
	}, nil
}

func (a *app) jwtConfig() auth.JWTConfig {
	return auth.JWTConfig{
		Issuer:      a.cfg.JWTIssuer,
		SigningKey:  a.cfg.SigningKey(),
		Revocations: a.revocations,
		Skipper:     auth.AuthSkipper,
	}
}

func (a *app) Close(logger zerolog.Logger) {
	a.revocations.Close()
	if err := a.publisher.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close event publisher")
	}
	a.backend.Close()
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the scheme catalog, demo users, and optional synthetic patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			patients, _ := cmd.Flags().GetInt("patients")
			seed, _ := cmd.Flags().GetInt64("seed")
			password, _ := cmd.Flags().GetString("password")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx := context.Background()
			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close(logger)

			seeder := sandbox.NewSeeder(a.services.schemes, a.services.identity, a.services.patients, sandbox.SeedConfig{
				PatientCount: patients,
				Seed:         seed,
				DemoPassword: password,
			}, logger)
			result, err := seeder.Seed(ctx)
			if err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}

			fmt.Printf("Seeded %d scheme(s), %d user(s), %d patient(s); %d already present.\n",
				result.Schemes, result.Users, result.Patients, result.Skipped)
			return nil
		},
	}
	cmd.Flags().Int("patients", 0, "Number of synthetic patients to register")
	cmd.Flags().Int64("seed", 1, "Random seed for synthetic patients")
	cmd.Flags().String("password", sandbox.DefaultDemoPassword, "Password for the demo users")
	return cmd
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Re-create approval records missing for registered patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx := context.Background()
			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close(logger)

			result, err := a.services.patients.Reconcile(ctx)
			if err != nil {
				return fmt.Errorf("reconcile failed: %w", err)
			}
			fmt.Printf("Checked %d patient(s), created %d approval record(s).\n", result.Patients, result.Created)
			return nil
		},
	}
}

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the approval event stream",
	}

	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Print approval events from Kafka as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			group, _ := cmd.Flags().GetString("group")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if len(cfg.KafkaBrokers) == 0 {
				return errors.New("KAFKA_BROKERS is required to tail events")
			}
			logger := newLogger(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reader := events.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaTopic, group)
			defer reader.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			return events.Tail(ctx, reader, logger, func(e events.Event) error {
				return enc.Encode(e)
			})
		},
	}
	tailCmd.Flags().String("group", "schemedesk-tail", "Kafka consumer group")
	cmd.AddCommand(tailCmd)

	return cmd
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	a, err := openApp(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open storage")
	}
	defer a.Close(logger)

	e := newServer(cfg, a.backend, a.services, a.hub, a.jwtConfig(), logger)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("store", a.backend.name).Str("events", cfg.EventsBackend).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
