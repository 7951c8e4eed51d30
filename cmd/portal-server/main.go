package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fhirportal/fhirportal/internal/config"
	"github.com/fhirportal/fhirportal/internal/domain/records"
	"github.com/fhirportal/fhirportal/internal/platform/auth"
	"github.com/fhirportal/fhirportal/internal/platform/fhir"
	"github.com/fhirportal/fhirportal/internal/platform/middleware"
	"github.com/fhirportal/fhirportal/internal/platform/session"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "portal-server",
		Short: "FHIR Patient Portal API Server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the portal API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Load and validate the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Printf("configuration ok\n")
			fmt.Printf("  env:           %s\n", cfg.Env)
			fmt.Printf("  port:          %s\n", cfg.Port)
			fmt.Printf("  fhir base url: %s\n", cfg.FHIRBaseURL)
			fmt.Printf("  client id:     %s\n", cfg.ClientID)
			fmt.Printf("  redirect uri:  %s\n", cfg.RedirectURI)
			fmt.Printf("  scopes:        %s\n", cfg.Scopes)
			return nil
		},
	})

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Session store and auth flow
	sessions := session.NewMemoryStore()
	flow := auth.NewFlow(auth.Config{
		AuthURL:      cfg.FHIRAuthURL,
		TokenURL:     cfg.FHIRTokenURL,
		FHIRBaseURL:  cfg.FHIRBaseURL,
		ClientID:     cfg.ClientID,
		RedirectURI:  cfg.RedirectURI,
		Scopes:       strings.Fields(cfg.Scopes),
		PatientClaim: cfg.PatientClaim,
		SessionTTL:   cfg.SessionTTL,
		Timeout:      cfg.UpstreamTimeout,
	}, sessions, logger)

	// Upstream FHIR client and records service
	fhirClient := fhir.NewClient(cfg.FHIRBaseURL, cfg.UpstreamTimeout)
	recordsSvc := records.NewService(sessions, fhirClient, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.AccessLog(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))

	// Auth endpoints
	auth.NewHandler(flow).RegisterRoutes(e)

	// Clinical data API
	api := e.Group("/api")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))
	records.NewHandler(recordsSvc).RegisterRoutes(api)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("fhir_base_url", cfg.FHIRBaseURL).Msg("starting server")
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
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
