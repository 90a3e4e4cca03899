package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/drillhub/backend/internal/admin"
	"github.com/drillhub/backend/internal/approaches"
	"github.com/drillhub/backend/internal/auth"
	"github.com/drillhub/backend/internal/cache"
	"github.com/drillhub/backend/internal/catalog"
	"github.com/drillhub/backend/internal/config"
	"github.com/drillhub/backend/internal/database"
	"github.com/drillhub/backend/internal/logging"
	"github.com/drillhub/backend/internal/progress"
	"github.com/drillhub/backend/internal/ratelimit"
	"github.com/drillhub/backend/internal/server"
	"github.com/drillhub/backend/internal/users"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "drillhub-api",
		Short: "DrillHub coding-practice backend service",
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
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("auth-issuer", defaults.GetString("auth.issuer"), "JWT issuer claim")
	cmd.PersistentFlags().String("auth-audience", defaults.GetString("auth.audience"), "JWT audience claim")
	cmd.PersistentFlags().Duration("auth-token-ttl", defaults.GetDuration("auth.token_ttl"), "Bearer token lifetime")
	cmd.PersistentFlags().Duration("cache-ttl", defaults.GetDuration("cache.ttl"), "In-process cache entry lifetime")
	cmd.PersistentFlags().String("signing-secret", "", "Token signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.issuer", "auth-issuer")
	bindFlag(cmd, "auth.audience", "auth-audience")
	bindFlag(cmd, "auth.token_ttl", "auth-token-ttl")
	bindFlag(cmd, "cache.ttl", "cache-ttl")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
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

// lateProgressPurger defers the catalog -> progress dependency until the
// progress service exists; the two services reference each other.
type lateProgressPurger struct {
	delegate *progress.Service
}

func (p *lateProgressPurger) RemoveQuestionFromAllUsers(ctx context.Context, questionID string) (int, error) {
	if p.delegate == nil {
		return 0, errors.New("progress service not wired")
	}
	return p.delegate.RemoveQuestionFromAllUsers(ctx, questionID)
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

	store, err := cache.NewStore(cache.StoreConfig{TTL: appConfig.CacheTTL})
	if err != nil {
		return err
	}

	lookup := catalog.NewLookup(db)

	repository, err := approaches.NewRepository(db)
	if err != nil {
		return err
	}
	approachService, err := approaches.NewService(approaches.ServiceConfig{
		Repository: repository,
		Questions:  lookup,
		Clock:      time.Now,
		IDProvider: approaches.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	progressPurger := &lateProgressPurger{}

	categoryService, err := catalog.NewCategoryService(catalog.CategoryServiceConfig{
		Database:   db,
		Cache:      store,
		Clock:      time.Now,
		IDProvider: catalog.NewUUIDProvider(),
		Approaches: approachService,
		Progress:   progressPurger,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	questionService, err := catalog.NewQuestionService(catalog.QuestionServiceConfig{
		Database:   db,
		Cache:      store,
		Clock:      time.Now,
		IDProvider: catalog.NewUUIDProvider(),
		Categories: categoryService,
		Approaches: approachService,
		Progress:   progressPurger,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	progressService, err := progress.NewService(progress.ServiceConfig{
		Database:   db,
		Cache:      store,
		Clock:      time.Now,
		Questions:  lookup,
		Approaches: approachService,
		Catalog:    questionService,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	progressPurger.delegate = progressService

	userService, err := users.NewService(users.ServiceConfig{Database: db, Clock: time.Now})
	if err != nil {
		return err
	}

	adminService, err := admin.NewService(admin.ServiceConfig{
		Database:   db,
		Cache:      store,
		Clock:      time.Now,
		Categories: categoryService,
		Questions:  questionService,
		Users:      userService,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.AuthSigningSecret),
		Issuer:        appConfig.AuthIssuer,
		Audience:      appConfig.AuthAudience,
		TokenTTL:      appConfig.AuthTokenTTL,
	})

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenManager: tokenManager,
		Users:        userService,
		Approaches:   approachService,
		Categories:   categoryService,
		Questions:    questionService,
		Progress:     progressService,
		Admin:        adminService,
		Limiter:      ratelimit.NewLimiter(),
		Logger:       logger,
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
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
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
