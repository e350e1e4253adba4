// Package main provides the main entry point for the Apay Summit registration service
package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apaysummit/summit-registration/app/handlers"
	"github.com/apaysummit/summit-registration/app/middleware"
	"github.com/apaysummit/summit-registration/app/router"
	"github.com/apaysummit/summit-registration/app/services"
	businessflow "github.com/apaysummit/summit-registration/business_flow"
	"github.com/apaysummit/summit-registration/config"
	"github.com/apaysummit/summit-registration/logging"
	"github.com/apaysummit/summit-registration/migrations"
	"github.com/apaysummit/summit-registration/models"
	"github.com/apaysummit/summit-registration/pricing"
	"github.com/apaysummit/summit-registration/repository"
	"github.com/apaysummit/summit-registration/utils"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.Config
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, logSink := logging.Setup(cfg.Logging)
	defer logSink.Close()

	logger.Info("Starting Apay Summit registration service", "environment", cfg.Environment)

	// Initialize application
	app, err := initializeApplication(cfg, logSink)
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		serverErr <- app.router.Start(address)
	}()

	select {
	case <-sigChan:
		logger.Info("Shutting down gracefully...")
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.router.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", "error", err)
	}

	// Stop background workers and release connections once requests have drained
	for _, fn := range app.stopFuncs {
		fn()
	}

	logger.Info("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.New(log.Default(), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Database connection established",
		"max_open_conns", cfg.MaxOpenConns, "max_idle_conns", cfg.MaxIdleConns)

	return db, nil
}

// runMigrations applies pending schema files. A missing migrations directory falls back to the embedded schema.
func runMigrations(ctx context.Context, db *gorm.DB, dir string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	var fsys fs.FS = migrations.Files
	if dir != "" {
		if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
			fsys = os.DirFS(dir)
		}
	}

	applied, err := migrations.Apply(ctx, sqlDB, fsys)
	if err != nil {
		return err
	}
	slog.Info("Schema is up to date", "applied", applied)
	return nil
}

// initializeCache returns a redis client when redis is the configured provider, otherwise nil
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("Redis connection established", "addr", opt.Addr, "db", opt.DB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis. The returned function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					slog.Warn("Redis healthcheck failed", "error", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeNotificationService picks the SMTP relay, or the logging provider when no host is configured
func initializeNotificationService(cfg config.EmailConfig) services.NotificationService {
	var emailProvider services.EmailProvider
	if cfg.Host == "" {
		slog.Warn("EMAIL_HOST is empty, outgoing email is logged only")
		emailProvider = services.NewMockEmailProvider()
	} else {
		emailProvider = services.NewSMTPEmailProvider(cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.FromEmail)
	}
	return services.NewNotificationService(emailProvider)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.Config, accessLog io.Writer) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := runMigrations(context.Background(), db, cfg.Database.MigrationsDir); err != nil {
			return nil, err
		}
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	var cache services.CacheService
	if rc != nil {
		cache = services.NewRedisCache(rc, cfg.Cache.RedisPrefix)
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, 30*time.Second))
		stopFuncs = append(stopFuncs, func() { _ = rc.Close() })
	} else {
		cache = services.NewMemoryCache()
	}

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	txr := repository.NewTransactor(db)

	if err := ensureStaffAccount(context.Background(), accountRepo, profileRepo, txr, cfg.Admin); err != nil {
		return nil, fmt.Errorf("failed to ensure staff account: %w", err)
	}

	// Initialize services
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
		rc,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	notificationService := initializeNotificationService(cfg.Email)
	storage := services.NewLocalFileStorage(cfg.Storage.ProofUploadDir)
	policy := pricing.NewSummitPolicy()
	renderer := services.NewDocumentRenderer(policy, cfg.Site.Name)

	// Initialize business flows
	ledger := businessflow.NewInvoiceLedger(accountRepo, invoiceRepo, txr, policy)

	authFlow := businessflow.NewAuthFlow(
		accountRepo,
		profileRepo,
		txr,
		tokenService,
		notificationService,
		cache,
		cfg.Site.URL,
		cfg.Security.PasswordMinLength,
	)
	participantFlow := businessflow.NewParticipantFlow(participantRepo, invoiceRepo, ledger, txr, renderer)
	invoiceFlow := businessflow.NewInvoiceFlow(accountRepo, profileRepo, participantRepo, invoiceRepo, ledger, renderer, policy)
	paymentFlow := businessflow.NewPaymentFlow(accountRepo, profileRepo, participantRepo, invoiceRepo, txr, storage)
	dashboardFlow := businessflow.NewDashboardFlow(accountRepo, participantRepo, invoiceRepo, cache)

	// Initialize handlers
	h := router.Handlers{
		Auth:        handlers.NewAuthHandler(authFlow),
		Participant: handlers.NewParticipantHandler(participantFlow),
		Invoice:     handlers.NewInvoiceHandler(invoiceFlow),
		Payment:     handlers.NewPaymentHandler(paymentFlow),
		Dashboard:   handlers.NewDashboardHandler(dashboardFlow),
	}

	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	healthProbe := func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if rc != nil {
			if err := rc.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}

	appRouter := router.NewFiberRouter(cfg, h, authMiddleware, accessLog, healthProbe)

	stopFuncs = append(stopFuncs, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return &Application{
		router:    appRouter,
		config:    cfg,
		stopFuncs: stopFuncs,
	}, nil
}

// ensureStaffAccount creates the configured staff login with a verified profile, or promotes an existing one
func ensureStaffAccount(
	ctx context.Context,
	accountRepo repository.AccountRepository,
	profileRepo repository.ProfileRepository,
	txr repository.Transactor,
	cfg config.AdminConfig,
) error {
	if cfg.Username == "" {
		return nil
	}

	return txr.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := accountRepo.ByUsername(txCtx, cfg.Username)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.IsStaff {
				return nil
			}
			existing.IsStaff = true
			slog.Warn("Promoting configured admin account to staff", "username", existing.Username)
			return accountRepo.Update(txCtx, existing)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		account := &models.Account{
			Username:     cfg.Username,
			Email:        cfg.Email,
			PasswordHash: string(hash),
			IsStaff:      true,
			IsActive:     utils.ToPtr(true),
			CreatedAt:    utils.UTCNow(),
			UpdatedAt:    utils.UTCNow(),
		}
		if err := accountRepo.Save(txCtx, account); err != nil {
			return err
		}

		profile := models.NewProfile(account.ID, "", "", "", "", utils.UTCNow())
		profile.MarkEmailVerified()
		if err := profileRepo.Save(txCtx, profile); err != nil {
			return err
		}

		slog.Info("Created staff account", "username", account.Username)
		return nil
	})
}
