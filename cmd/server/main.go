package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/chemsus-backend/internal/config"
	"github.com/ignatzorin/chemsus-backend/internal/db"
	"github.com/ignatzorin/chemsus-backend/internal/goroutine"
	httpHandlers "github.com/ignatzorin/chemsus-backend/internal/http/handlers"
	"github.com/ignatzorin/chemsus-backend/internal/http/middleware"
	httpRouter "github.com/ignatzorin/chemsus-backend/internal/http/router"
	"github.com/ignatzorin/chemsus-backend/internal/logger"
	"github.com/ignatzorin/chemsus-backend/internal/mailer"
	"github.com/ignatzorin/chemsus-backend/internal/pkg/otpcode"
	"github.com/ignatzorin/chemsus-backend/internal/repository"
	"github.com/ignatzorin/chemsus-backend/internal/service"
	"github.com/ignatzorin/chemsus-backend/internal/storage"
	"github.com/ignatzorin/chemsus-backend/internal/validation"
	"github.com/ignatzorin/chemsus-backend/internal/ws"
)

const (
	dbConnectTimeout = 30 * time.Second
	shutdownTimeout  = 10 * time.Second
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.InitForEnv(cfg.Env, cfg.LogLevel)
	recovery := goroutine.NewRecoveryHandler(goroutine.LoggerFunc(logger.Errorf))

	if err := validation.RegisterBindings(); err != nil {
		logger.Log.Fatalf("main: ошибка регистрации валидаторов: %v", err)
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL, dbConnectTimeout)
	if err != nil {
		logger.Log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		logger.Log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Инфраструктура.
	receipts, err := storage.NewReceiptStorage(cfg.ReceiptStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		logger.Log.Fatalf("main: не удалось подготовить хранилище квитанций: %v", err)
	}

	mail, err := mailer.New(cfg.Mail)
	switch {
	case errors.Is(err, mailer.ErrNotConfigured):
		logger.Log.Warn("main: почта не настроена, коды будут только в логе")
		mail = nil
	case err != nil:
		logger.Log.Fatalf("main: ошибка настройки почты: %v", err)
	}

	limiterStore, err := middleware.NewRateLimitStore(ctx, cfg.RedisURL)
	if err != nil {
		logger.Log.Fatalf("main: ошибка хранилища лимитов: %v", err)
	}

	var adminKeys jwk.Set
	if cfg.Admin.JWKSURL != "" {
		adminKeys, err = service.NewJWKSKeySet(ctx, cfg.Admin.JWKSURL)
		if err != nil {
			logger.Log.Fatalf("main: ошибка настройки JWKS: %v", err)
		}
	}

	// Репозитории.
	otpRepo := repository.NewOTPSessionRepository(dbConn)
	orderRepo := repository.NewOrderRepository(dbConn)
	catalogRepo := repository.NewCatalogRepository(dbConn)
	paymentRepo := repository.NewPaymentRepository(dbConn)
	messageRepo := repository.NewMessageRepository(dbConn)
	settingsRepo := repository.NewSettingsRepository(dbConn)

	// Вебсокеты.
	hub := ws.NewHub(recovery)
	recovery.SafeGoWithContext(ctx, hub.Run)

	// Сервисы.
	cache := service.NewCacheService()
	recovery.SafeGoWithContext(ctx, cache.Run)

	otpService := service.NewOTPService(otpRepo, otpcode.NewGenerator(), otpcode.NewHasher(cfg.OTP.Secret), mail, service.OTPConfig{
		TTL:             cfg.OTP.TTL,
		ResendCooldown:  cfg.OTP.ResendCooldown,
		MaxAttempts:     cfg.OTP.MaxAttempts,
		TokenTTL:        cfg.OTP.TokenTTL,
		ExposeDebugCode: cfg.OTP.ExposeDebugCode,
		DeliveryTimeout: cfg.OTP.DeliveryTimeout,
	})
	orderService := service.NewOrderService(orderRepo, catalogRepo, otpService, paymentRepo, hub, mail, recovery)
	paymentService := service.NewPaymentService(paymentRepo, receipts, orderService, hub, service.UPIConfig{
		PayeeVPA:  cfg.UPIID,
		PayeeName: cfg.UPIPayeeName,
	})
	messageService := service.NewMessageService(messageRepo, orderService, hub)
	catalogService := service.NewCatalogService(catalogRepo, cache)
	settingsService := service.NewSettingsService(settingsRepo, cache)
	adminAuth := service.NewAdminAuthService(cfg.Admin, adminKeys)

	// Периодическая очистка старых сессий кодов.
	// Количество удалённых сессий логирует сам Purge.
	recovery.Every(ctx, cfg.OTP.PurgeInterval, func(ctx context.Context) {
		if _, err := otpService.Purge(ctx); err != nil {
			logger.Log.WithError(err).Error("main: очистка сессий кодов не удалась")
		}
	})

	// HTTP хэндлеры.
	handlers := httpRouter.Handlers{
		OTP:       httpHandlers.NewOTPHandler(otpService),
		Orders:    httpHandlers.NewOrderHandler(orderService),
		Payments:  httpHandlers.NewPaymentHandler(paymentService, receipts.MaxUploadBytes()),
		Messages:  httpHandlers.NewMessageHandler(messageService),
		Catalog:   httpHandlers.NewCatalogHandler(catalogService),
		Settings:  httpHandlers.NewSettingsHandler(settingsService),
		AdminAuth: httpHandlers.NewAdminAuthHandler(adminAuth),
		WS:        httpHandlers.NewWSHandler(hub, adminAuth, orderService, cfg.AllowedOrigins),
		Health:    httpHandlers.NewHealthHandler(dbConn),
	}

	engine := httpRouter.SetupRouter(cfg, handlers, adminAuth, limiterStore)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	recovery.SafeGo(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Error("main: ошибка остановки http сервера")
		}
	})

	logger.Log.WithFields(logrus.Fields{
		"port":       cfg.HTTPPort,
		"env":        cfg.Env,
		"mail":       mail != nil,
		"admin_jwks": adminKeys != nil,
		"redis":      cfg.RedisURL != "",
	}).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
