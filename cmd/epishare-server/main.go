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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/epishare/epishare/internal/config"
	"github.com/epishare/epishare/internal/domain/caze"
	"github.com/epishare/epishare/internal/domain/event"
	"github.com/epishare/epishare/internal/domain/facility"
	"github.com/epishare/epishare/internal/domain/sample"
	"github.com/epishare/epishare/internal/domain/user"
	"github.com/epishare/epishare/internal/jurisdiction"
	"github.com/epishare/epishare/internal/platform/auth"
	"github.com/epishare/epishare/internal/platform/crypto"
	"github.com/epishare/epishare/internal/platform/db"
	"github.com/epishare/epishare/internal/platform/exchange"
	"github.com/epishare/epishare/internal/platform/middleware"
	"github.com/epishare/epishare/internal/sharing"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "epishare-server",
		Short: "Disease surveillance exchange server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(orgCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the surveillance API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "org_default", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
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
	statusCmd.Flags().String("schema", "org_default", "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func orgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage surveillance organizations",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new organization schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			dir, _ := cmd.Flags().GetString("dir")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating organization schema: org_%s\n", name)
			if err := db.CreateOrgSchema(ctx, pool, name, dir); err != nil {
				return err
			}
			fmt.Println("Organization created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Organization identifier (alphanumeric)")
	createCmd.Flags().String("dir", "./migrations", "Path to migrations directory")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List organization schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			orgs, err := db.ListOrgSchemas(ctx, pool)
			if err != nil {
				return err
			}
			for _, org := range orgs {
				fmt.Println(org)
			}
			return nil
		},
	}

	cmd.AddCommand(createCmd)
	cmd.AddCommand(listCmd)
	return cmd
}

// newLogger returns a JSON logger, or a console logger in development.
func newLogger(env string, out io.Writer) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

func runServer() error {
	// Logger
	logger := newLogger(os.Getenv("ENV"), os.Stdout)

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.SanitizeWithLogger(logger))
	e.Use(middleware.BodyLimit("1M", "16M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Org-ID"},
	}))

	// Organization middleware pins each request to its org schema
	e.Use(db.OrgMiddleware(pool, cfg.DefaultOrg))

	// Rate limiting runs after the org is resolved so buckets are scoped
	// per organization.
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))

	// Access trail for personal data
	e.Use(middleware.Audit(logger))

	// Exchange plumbing. The sealer derives per-partnership keys from each
	// partner's shared secret, the directory knows the peer instances, the
	// client delivers to them.
	sealer := crypto.NewSealer(cfg.InstanceID)

	directory := exchange.NewDirectory()
	if cfg.PartnersFile != "" {
		if loaded, err := exchange.LoadDirectory(cfg.PartnersFile); err != nil {
			logger.Warn().Err(err).Str("file", cfg.PartnersFile).Msg("partner directory not loaded")
		} else {
			directory = loaded
			logger.Info().Int("partners", len(directory.List())).Msg("partner directory loaded")
		}
	}

	// Domain repositories and services
	userRepo := user.NewRepo(pool)
	userSvc := user.NewService(userRepo)

	facilityRepo := facility.NewRepo(pool)
	facilitySvc := facility.NewService(facilityRepo)

	filters := jurisdiction.NewBuilder(facilityRepo)

	caseRepo := caze.NewRepo(pool)
	caseSvc := caze.NewService(caseRepo, filters)

	eventRepo := event.NewRepo(pool)
	eventSvc := event.NewService(eventRepo, filters)

	sampleRepo := sample.NewRepo(pool)
	sampleSvc := sample.NewService(sampleRepo)

	// Sharing protocol
	shareInfoRepo := sharing.NewShareInfoRepo(pool)
	shareRequestRepo := sharing.NewShareRequestRepo(pool)
	originInfoRepo := sharing.NewOriginInfoRepo(pool)

	coordinator := sharing.NewCoordinator()
	coordinator.Register(sharing.KindCase, sharing.NewCaseAdapter(caseRepo, sampleRepo).Capabilities())
	coordinator.Register(sharing.KindContact, sharing.NewContactAdapter(caseRepo).Capabilities())
	coordinator.Register(sharing.KindEvent, sharing.NewEventAdapter(eventRepo, sampleRepo).Capabilities())
	coordinator.Register(sharing.KindSample, sharing.NewSampleAdapter(sampleRepo, caseRepo, eventRepo).Capabilities())

	// Entities received from a partner stay read-only until ownership is
	// handed over; the guard enforces that on every local edit.
	guard := sharing.NewGuard(originInfoRepo)
	caseSvc.SetOwnershipChecker(guard)
	eventSvc.SetOwnershipChecker(guard)
	sampleSvc.SetOwnershipChecker(guard)

	// Operator API
	api := e.Group("/api/v1")
	if cfg.IsDev() {
		api.Use(auth.DevAuth())
	} else {
		api.Use(auth.JWTAuth([]byte(cfg.AuthSigningKey)))
	}

	user.NewHandler(userSvc).RegisterRoutes(api)
	facility.NewHandler(facilitySvc).RegisterRoutes(api)
	caze.NewHandler(caseSvc, userSvc).RegisterRoutes(api)
	event.NewHandler(eventSvc, userSvc).RegisterRoutes(api)
	sample.NewHandler(sampleSvc).RegisterRoutes(api)

	// Exchange surface. Without partners there is nobody to exchange with,
	// so the share service and both exchange-facing route groups stay off.
	if len(directory.List()) > 0 {
		exchangeClient := exchange.NewClient(cfg.InstanceID, directory, sealer, logger)
		shareSvc := sharing.NewService(
			cfg.InstanceID, cfg.InstanceName, cfg.AcceptRejectEnabled,
			coordinator, shareInfoRepo, shareRequestRepo, originInfoRepo,
			exchangeClient, logger,
		)

		// Receiver endpoints authenticate partners with their own tokens,
		// outside the operator auth group.
		receiver := sharing.NewReceiver(cfg.InstanceID, directory, sealer, shareSvc)
		receiver.RegisterRoutes(e)

		sharing.NewHandler(shareSvc, directory).RegisterRoutes(api)
	} else {
		logger.Warn().Msg("no exchange partners configured; exchange endpoints disabled")
	}

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("instance", cfg.InstanceID).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
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
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
