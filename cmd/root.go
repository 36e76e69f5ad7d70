package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/gatekeeper/internal/config"
	"github.com/andresmejia3/gatekeeper/internal/logging"
	"github.com/andresmejia3/gatekeeper/internal/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// annotationDB marks commands that need the identity store.
const annotationDB = "needs-db"

var (
	// DB is the identity store shared by subcommands that need it
	DB *store.Store
	// Cfg is the resolved configuration (defaults, file, env, then flags)
	Cfg *config.Config
	// Logger is the structured diagnostic logger
	Logger = zap.NewNop()

	dbURL      string
	configPath string
	logLevel   string
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "gatekeeper",
	Short:   "Local face recognition access control",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if dbURL != "" {
			cfg.Database.URL = dbURL
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		Cfg = cfg

		log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			return err
		}
		Logger = log.With(zap.String("command", cmd.Name()))

		if cmd.Annotations[annotationDB] != "true" {
			return nil
		}
		// Use the command's context (which will be cancellable) for the connection
		if err := connectStore(cmd.Context(), cfg); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		return nil
	},
}

// connectStore opens the shared store once. Execute closes it.
func connectStore(ctx context.Context, cfg *config.Config) error {
	if DB != nil {
		return nil
	}
	db, err := store.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A missing .env is fine; real environment variables still apply.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "⚠️  Ignoring unreadable .env file: %v\n", err)
	}

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	err := rootCmd.ExecuteContext(ctx)

	// PersistentPostRun is skipped when RunE fails, so the store is closed here.
	// Use Background because ctx might be cancelled already (due to Ctrl+C).
	if DB != nil {
		DB.Close(context.Background())
	}
	Logger.Sync()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string (default: postgres://localhost:5432/gatekeeper)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: info)")
}
