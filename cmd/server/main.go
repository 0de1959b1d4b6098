package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/sratov/TimeBankingBot/internal/config"
	"github.com/sratov/TimeBankingBot/internal/db"
	"github.com/sratov/TimeBankingBot/internal/goroutine"
	httpHandlers "github.com/sratov/TimeBankingBot/internal/http/handlers"
	httpRouter "github.com/sratov/TimeBankingBot/internal/http/router"
	"github.com/sratov/TimeBankingBot/internal/logger"
	"github.com/sratov/TimeBankingBot/internal/metrics"
	"github.com/sratov/TimeBankingBot/internal/notify"
	"github.com/sratov/TimeBankingBot/internal/repository"
	"github.com/sratov/TimeBankingBot/internal/service"
	"github.com/sratov/TimeBankingBot/internal/storage"
	"github.com/sratov/TimeBankingBot/internal/ws"
)

const sessionPurgeInterval = time.Hour

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		log.Fatalf("main: %v", err)
	}
}

// run собирает зависимости и обслуживает HTTP до отмены ctx.
// Ошибки возвращаются наверх, чтобы отложенные закрытия успели выполниться.
func run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	logg := logger.New(cfg.LogLevel, cfg.Env)
	runner := goroutine.NewRecoveryHandler(logg)

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("ошибка подключения к базе: %w", err)
	}
	defer safeClose(dbConn, logg)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath, logg); err != nil {
		return fmt.Errorf("ошибка миграций: %w", err)
	}

	avatars, err := storage.NewAvatarStorage(cfg.MediaStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		return fmt.Errorf("не удалось подготовить файловое хранилище: %w", err)
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	listingRepo := repository.NewListingRepository(dbConn)
	transactionRepo := repository.NewTransactionRepository(dbConn)
	friendRepo := repository.NewFriendRepository(dbConn)
	sessionRepo := repository.NewSessionRepository(dbConn)
	store := repository.NewStore(dbConn)

	// Вебсокеты и уведомления.
	hub := ws.NewHub(logg)
	runner.SafeGoWithContext(ctx, hub.Run)

	publishers := []notify.Publisher{notify.NewHubPublisher(hub, logg)}
	if cfg.TelegramNotify {
		bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			logg.WithError(err).Warn("main: Telegram бот недоступен, уведомления только через websocket")
		} else {
			publishers = append(publishers, notify.NewTelegramPublisher(bot, userRepo, logg))
		}
	}
	publisher := notify.NewFanout(runner, publishers...)

	// Сервисы.
	recorder := metrics.New()
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	ledger := service.NewLedger(transactionRepo)
	userService := service.NewUserService(userRepo, friendRepo, cfg.StartingBalance, logg)
	listingService := service.NewListingService(service.ListingDeps{
		Listings:  listingRepo,
		Users:     userRepo,
		Friends:   friendRepo,
		Store:     store,
		Ledger:    ledger,
		Publisher: publisher,
		Observer:  recorder,
		Log:       logg,
	})
	friendService := service.NewFriendService(friendRepo, userRepo, publisher)
	authService := service.NewAuthService(service.AuthConfig{
		BotToken:   cfg.BotToken,
		AuthMaxAge: cfg.TelegramMaxAge,
	}, userService, userRepo, sessionRepo, tokenManager, recorder, logg)

	runner.SafeGoWithContext(ctx, func(ctx context.Context) {
		purgeSessions(ctx, authService, logg)
	})

	// HTTP хэндлеры.
	h := httpRouter.Handlers{
		Auth: httpHandlers.NewAuthHandler(authService, httpHandlers.CookieOptions{
			Secure:     cfg.CookieSecure,
			AccessTTL:  cfg.AccessTokenTTL,
			RefreshTTL: cfg.RefreshTokenTTL,
		}),
		Users:        httpHandlers.NewUserHandler(userService, listingService, avatars, cfg.MediaBaseURL, logg),
		Listings:     httpHandlers.NewListingHandler(listingService),
		Friends:      httpHandlers.NewFriendHandler(friendService),
		Transactions: httpHandlers.NewTransactionHandler(ledger),
		Health:       httpHandlers.NewHealthHandler(dbConn),
		WS:           httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins, logg),
	}

	engine := httpRouter.SetupRouter(cfg, h, tokenManager, recorder, logg)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.WithError(err).Error("main: ошибка остановки http сервера")
		}
	}()

	logg.WithFields(logrus.Fields{"port": cfg.HTTPPort, "env": cfg.Env}).Info("main: HTTP сервер запущен")

	serveErr := server.ListenAndServe()
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}

	stop()
	runner.Wait()
	if serveErr != nil {
		return fmt.Errorf("сервер завершился с ошибкой: %w", serveErr)
	}
	logg.Info("main: сервер остановлен")
	return nil
}

// purgeSessions периодически удаляет просроченные refresh-сессии.
func purgeSessions(ctx context.Context, auth *service.AuthService, logg *logrus.Logger) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := auth.PurgeExpiredSessions(ctx)
			if err != nil {
				logg.WithError(err).Warn("main: не удалось очистить просроченные сессии")
				continue
			}
			if removed > 0 {
				logg.WithField("removed", removed).Debug("main: просроченные сессии удалены")
			}
		}
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB, logg *logrus.Logger) {
	if err := db.Close(); err != nil {
		logg.WithError(err).Error("main: ошибка закрытия базы")
	}
}
