package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Streetliferoleplay/web43/internal/auth"
	"github.com/Streetliferoleplay/web43/internal/config"
	"github.com/Streetliferoleplay/web43/internal/database"
	"github.com/Streetliferoleplay/web43/internal/fivem"
	"github.com/Streetliferoleplay/web43/internal/logging"
	"github.com/Streetliferoleplay/web43/internal/server"
	"github.com/Streetliferoleplay/web43/internal/whitelist"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "web43-api",
		Short: "Streetlife roleplay whitelist backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("admin-user", defaults.GetString("admin.user"), "Admin account user name")
	cmd.PersistentFlags().String("admin-pass", "", "Admin account password (overrides env)")
	cmd.PersistentFlags().String("fivem-webhook-key", "", "Pre-shared key for game-server pushes (overrides env)")
	cmd.PersistentFlags().Int("session-ttl-hours", defaults.GetInt("session.ttl_hours"), "Admin session lifetime in hours")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "admin.user", "admin-user")
	bindFlag(cmd, "admin.pass", "admin-pass")
	bindFlag(cmd, "fivem.webhook_key", "fivem-webhook-key")
	bindFlag(cmd, "session.ttl_hours", "session-ttl-hours")
	bindFlag(cmd, "log.level", "log-level")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	submissions, err := whitelist.NewService(whitelist.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Secrets:  whitelist.NewRandomSecretProvider(),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	sessions, err := auth.NewSessionManager(auth.SessionManagerConfig{
		Credentials: auth.Credentials{
			User: appConfig.AdminUser,
			Pass: appConfig.AdminPass,
		},
		SessionTTL: appConfig.SessionTTL,
	})
	if err != nil {
		return err
	}

	relay, err := fivem.NewService(fivem.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Submissions: submissions,
		Sessions:    sessions,
		FiveM:       relay,
		WebhookKey:  appConfig.FiveMWebhookKey,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("admin_user", appConfig.AdminUser))
		if appConfig.FiveMWebhookKey == "" {
			logger.Warn("fivem webhook key not configured, player pushes will be rejected")
		}
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
