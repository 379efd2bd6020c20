// janus es el authorization server. Subcomandos: serve (default), rotate-keys
// y clean-deprecated-keys para operar el material de firma sin downtime.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/janus/internal/app"
	"github.com/dropDatabas3/janus/internal/bootstrap"
	"github.com/dropDatabas3/janus/internal/config"
	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/store/postgres"
)

func main() {
	var (
		configPath string
		envFile    string
	)

	root := &cobra.Command{
		Use:           "janus",
		Short:         "OAuth 2.0 / OIDC authorization server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "ruta a config.yaml (fallback: $CONFIG_PATH)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "ruta a .env (si existe, se carga)")

	loadConfig := func() (*config.Config, error) {
		if envFile != "" {
			if _, err := os.Stat(envFile); err == nil {
				_ = godotenv.Load(envFile)
			}
		}
		path := configPath
		if path == "" {
			path = os.Getenv("CONFIG_PATH")
		}
		return config.Load(path)
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "arranca el servidor HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger.Init(logger.Config{Env: cfg.App.Env, Level: os.Getenv("LOG_LEVEL"), ServiceName: cfg.App.Name})
			defer func() { _ = logger.Sync() }()
			return runServe(cmd.Context(), cfg)
		},
	}

	rotate := &cobra.Command{
		Use:   "rotate-keys",
		Short: "genera una clave de firma nueva y depreca la activa",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger.Init(logger.Config{Env: cfg.App.Env, Level: os.Getenv("LOG_LEVEL"), ServiceName: cfg.App.Name})
			defer func() { _ = logger.Sync() }()

			container, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer container.Close()
			if err := container.Keystore.Rotate(cmd.Context()); err != nil {
				return err
			}
			logger.L().Info("signing_key_rotated")
			return nil
		},
	}

	clean := &cobra.Command{
		Use:   "clean-deprecated-keys",
		Short: "elimina las claves deprecadas del JWKS",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger.Init(logger.Config{Env: cfg.App.Env, Level: os.Getenv("LOG_LEVEL"), ServiceName: cfg.App.Name})
			defer func() { _ = logger.Sync() }()

			container, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer container.Close()
			if err := container.Keystore.CleanDeprecated(cmd.Context()); err != nil {
				return err
			}
			logger.L().Info("deprecated_keys_cleaned")
			return nil
		},
	}

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "aplica las migraciones de schema pendientes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger.Init(logger.Config{Env: cfg.App.Env, Level: os.Getenv("LOG_LEVEL"), ServiceName: cfg.App.Name})
			defer func() { _ = logger.Sync() }()

			da, err := postgres.New(cmd.Context(), cfg.Storage.PostgresDSN)
			if err != nil {
				return err
			}
			defer da.Close()
			ran, err := da.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			logger.L().Info("migrations_applied", logger.Int("count", len(ran)))
			return nil
		},
	}

	var seedEmail, seedPassword string
	seed := &cobra.Command{
		Use:   "seed",
		Short: "crea la primera cuenta del sistema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger.Init(logger.Config{Env: cfg.App.Env, Level: os.Getenv("LOG_LEVEL"), ServiceName: cfg.App.Name})
			defer func() { _ = logger.Sync() }()

			da, err := postgres.New(cmd.Context(), cfg.Storage.PostgresDSN)
			if err != nil {
				return err
			}
			defer da.Close()
			return bootstrap.CreateFirstUser(cmd.Context(), bootstrap.FirstUserConfig{
				DA:         da,
				SkipPrompt: seedPassword != "",
				Email:      seedEmail,
				Password:   seedPassword,
			})
		},
	}
	seed.Flags().StringVar(&seedEmail, "email", "", "email de la cuenta")
	seed.Flags().StringVar(&seedPassword, "password", "", "password (si falta, se pide por stdin)")

	root.AddCommand(serve, migrate, seed, rotate, clean)
	root.RunE = serve.RunE // sin subcomando, serve

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		logger.L().Error("fatal", logger.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	container, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           container.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.L().Info("server_up",
			logger.String("addr", cfg.Server.Addr),
			logger.String("issuer", cfg.Server.PublicURL),
			logger.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
