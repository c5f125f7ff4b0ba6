package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/cmlabs-hris/timeclock-sync/internal/config"
	appHTTP "github.com/cmlabs-hris/timeclock-sync/internal/handler/http"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/cron"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/crypto"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/database"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/jwt"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/locks"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/square"
	"github.com/cmlabs-hris/timeclock-sync/internal/repository/postgresql"
	squareSyncService "github.com/cmlabs-hris/timeclock-sync/internal/service/squaresync"
	"github.com/go-chi/httplog/v3"
	"golang.org/x/time/rate"
)

const (
	appName    = "timeclock-sync"
	appVersion = "v1.0.0"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.App)
	slog.SetDefault(logger)

	db, err := database.NewPostgreSQLDB(cfg.DatabaseURL(), database.PoolOptions{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	encryptor, err := crypto.NewTokenEncryptor(cfg.Encryption.TokenKey)
	if err != nil {
		return fmt.Errorf("init token encryptor: %w", err)
	}

	connectionRepo := postgresql.NewSquareConnectionRepository(db, encryptor)
	mappingRepo := postgresql.NewMappingRepository(db)
	employeeRepo := postgresql.NewEmployeeRepository(db)
	timeClockRepo := postgresql.NewTimeClockRepository(db)
	txManager := postgresql.NewTxManager(db)

	var locker locks.Locker = locks.NewLocalLocker()
	if cfg.Redis.Address != "" {
		rdb, err := locks.NewRedisClient(locks.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		locker = locks.NewRedsyncLocker(rdb, 30*time.Second)
		slog.Info("Token refresh lock backed by Redis", "address", cfg.Redis.Address)
	}

	accessExpiration, err := time.ParseDuration(cfg.JWT.AccessExpiration)
	if err != nil {
		return fmt.Errorf("invalid JWT_ACCESS_EXPIRATION_TIME: %w", err)
	}
	JWTService := jwt.NewJWTService(cfg.JWT.Secret, accessExpiration)

	clientOptions := square.ClientOptions{
		BaseURL:    cfg.SquareBaseURL(),
		APIVersion: cfg.Square.APIVersion,
		Timeout:    cfg.Square.RequestTimeout,
		Limiter:    rate.NewLimiter(rate.Limit(cfg.Square.RequestsPerSecond), int(cfg.Square.RequestsPerSecond)+1),
	}

	oauthService := square.NewOAuthService(square.OAuthConfig{
		ClientID:     cfg.Square.ApplicationID,
		ClientSecret: cfg.Square.ApplicationSecret,
		RedirectURL:  cfg.Square.RedirectURL,
		Scopes:       cfg.Square.Scopes,
		BaseURL:      cfg.SquareBaseURL(),
	})

	syncService := squareSyncService.NewSquareSyncService(squareSyncService.Dependencies{
		Connections: connectionRepo,
		Mappings:    mappingRepo,
		Employees:   employeeRepo,
		TimeClock:   timeClockRepo,
		Tx:          txManager,
		OAuth:       oauthService,
		NewClient: func(accessToken string) squareSyncService.SquareAPI {
			return square.NewClient(accessToken, clientOptions)
		},
		Locker:   locker,
		States:   JWTService,
		Verifier: square.NewWebhookVerifier(cfg.Square.WebhookSignatureKey, cfg.Square.WebhookNotificationURL),
	}, squareSyncService.Config{
		BootstrapDays:   cfg.Sync.BootstrapDays,
		RefreshWindow:   cfg.Sync.RefreshWindow,
		WorkdayTimezone: cfg.Sync.WorkdayTimezone,
		RedirectURL:     cfg.Square.RedirectURL,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Square.WebhookAccessToken != "" {
		ensureWebhookSubscription(ctx, square.NewClient(cfg.Square.WebhookAccessToken, clientOptions), cfg.Square.WebhookNotificationURL)
	}

	scheduler := cron.NewScheduler()
	if !cfg.Sync.SchedulerDisabled {
		cron.NewSquareSyncJobs(connectionRepo, syncService).RegisterJobs(scheduler, cfg.Sync.Interval, cfg.Sync.StartupDelay)
		scheduler.Start()
	}

	squareHandler := appHTTP.NewSquareHandler(syncService, cfg.App.FrontendURL)
	router := appHTTP.NewRouter(JWTService, squareHandler, appHTTP.RouterOptions{
		Logger:         logger,
		AllowedOrigins: cfg.App.AllowedOrigins,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server running", "addr", server.Addr, "env", cfg.App.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			scheduler.Stop()
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
	scheduler.Stop()

	return nil
}

func newLogger(cfg config.AppConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	logFormat := httplog.SchemaECS.Concise(cfg.Env != "production")
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", appName),
		slog.String("version", appVersion),
		slog.String("env", cfg.Env),
	)
}

// ensureWebhookSubscription registers the timecard webhook once per
// application. Failures are logged; the poller still covers every tenant.
func ensureWebhookSubscription(ctx context.Context, client *square.Client, notificationURL string) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	sub, err := client.EnsureWebhookSubscription(ctx, notificationURL, square.TimecardEventTypes)
	if err != nil {
		slog.Error("Failed to ensure Square webhook subscription", "error", err)
		return
	}
	slog.Info("Square webhook subscription ready", "subscription_id", sub.ID, "notification_url", sub.NotificationURL)
}
