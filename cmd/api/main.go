package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"NutriVida_Pro/internal/auth"
	"NutriVida_Pro/internal/config"
	"NutriVida_Pro/internal/database"
	"NutriVida_Pro/internal/server"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nutrivida",
		Short: "NutriVida Pro clinic API",
		// Running the bare binary starts the server.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedDoctorCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the SQLite schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := database.NewService(cmd.Context(), cfg.DBFile)
			if err != nil {
				return err
			}
			defer db.Close()

			fmt.Printf("Schema is up to date in %s\n", cfg.DBFile)
			return nil
		},
	}
}

func seedDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed-doctor",
		Short: "Create the practitioner account if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			if name == "" {
				name = cfg.DoctorName
			}
			if email == "" {
				email = cfg.DoctorEmail
			}
			if password == "" {
				password = cfg.DoctorPassword
			}

			db, err := database.NewService(cmd.Context(), cfg.DBFile)
			if err != nil {
				return err
			}
			defer db.Close()

			res, err := auth.SeedDoctor(cmd.Context(), db.Queries(), name, email, password)
			if err != nil {
				return err
			}
			if res.Existed {
				fmt.Printf("Practitioner %s already exists (id %d)\n", res.Email, res.ID)
			} else {
				fmt.Printf("Practitioner %s created (id %d)\n", res.Email, res.ID)
			}
			return nil
		},
	}
	cmd.Flags().String("name", "", "Display name (defaults to DOCTOR_NAME)")
	cmd.Flags().String("email", "", "Login e-mail (defaults to DOCTOR_EMAIL)")
	cmd.Flags().String("password", "", "Password, at least 8 characters (defaults to DOCTOR_PASSWORD)")
	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	setupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsDev() {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	db, err := database.NewService(ctx, cfg.DBFile)
	if err != nil {
		log.Error().Err(err).Msg("Could not open the database")
		return err
	}
	defer db.Close()

	seedDoctor(ctx, cfg, db)

	var leads *database.LeadStore
	if cfg.DatabaseURL != "" {
		leads, err = database.NewLeadStore(ctx, cfg.DatabaseURL)
		if err != nil {
			// The clinic works without the landing form; keep serving.
			log.Error().Err(err).Msg("Landing lead store unavailable")
			leads = nil
		} else {
			defer leads.Close()
		}
	}

	apiServer := server.New(cfg, db, leads).NewServer()

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)
	go gracefulShutdown(apiServer, done)

	log.Info().Str("addr", apiServer.Addr).Str("env", cfg.Env).Msg("NutriVida Pro API listening")
	if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}

	<-done
	log.Info().Msg("Graceful shutdown complete.")
	return nil
}

// seedDoctor creates the practitioner from config on first start. Failures
// are logged; an existing account lets the server run anyway.
func seedDoctor(ctx context.Context, cfg *config.Config, db database.Service) {
	if cfg.DoctorEmail == "" || cfg.DoctorPassword == "" {
		log.Warn().Msg("DOCTOR_EMAIL or DOCTOR_PASSWORD not set; skipping practitioner seed")
		return
	}
	res, err := auth.SeedDoctor(ctx, db.Queries(), cfg.DoctorName, cfg.DoctorEmail, cfg.DoctorPassword)
	if err != nil {
		log.Error().Err(err).Msg("Failed to seed practitioner")
		return
	}
	if !res.Existed {
		log.Info().Str("email", res.Email).Int64("id", res.ID).Msg("Practitioner account created")
	}
}

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info().Msg("shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")

	done <- true
}
