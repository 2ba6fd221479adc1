// Точка входа media-gateway — шлюза к приватным медиафайлам.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/goartstore/media-gateway/internal/api/handlers"
	"github.com/bigkaa/goartstore/media-gateway/internal/api/middleware"
	"github.com/bigkaa/goartstore/media-gateway/internal/authz"
	"github.com/bigkaa/goartstore/media-gateway/internal/config"
	"github.com/bigkaa/goartstore/media-gateway/internal/identity"
	"github.com/bigkaa/goartstore/media-gateway/internal/server"
	"github.com/bigkaa/goartstore/media-gateway/internal/service"
	"github.com/bigkaa/goartstore/media-gateway/internal/signing"
	"github.com/bigkaa/goartstore/media-gateway/internal/storage/metastore"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger := config.SetupLogger(cfg)
	logger.Info("media-gateway запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("issuer", cfg.IssuerURL()),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("media-gateway остановлен")
}

// run собирает компоненты, запускает фоновые процессы и HTTP-сервер.
func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Инициализация компонентов ---

	// 1. Каналы и папки
	channels, err := config.LoadChannels(cfg.ConfigPath, cfg.BasePath)
	if err != nil {
		return fmt.Errorf("загрузка каналов: %w", err)
	}
	logger.Info("Каналы загружены",
		slog.Int("channels", len(channels.All())),
		slog.Int("folders", len(channels.Folders)),
	)

	// 2. Metadata Store
	store, err := metastore.Open(ctx, cfg.DBPath, logger)
	if err != nil {
		return fmt.Errorf("открытие Metadata Store: %w", err)
	}
	defer store.Close()

	// 3. Identity provider: KeySet Cache, Token Verifier, Credential Exchanger
	client, err := identity.NewHTTPClient(identity.ClientConfig{
		CACertPath:    cfg.CACertPath,
		TLSSkipVerify: cfg.TLSSkipVerify,
		Timeout:       cfg.HTTPClientTimeout,
	})
	if err != nil {
		return fmt.Errorf("HTTP-клиент identity provider: %w", err)
	}
	certsURL := identity.CertsURL(cfg.KeycloakURL, cfg.Realm)
	keys := identity.NewKeySet(certsURL, cfg.KeySetTTL, client, logger)
	verifier := identity.NewVerifier(keys, cfg.IssuerURL(), logger)
	sessions := identity.NewSessions(cfg.SessionCacheSize, cfg.SessionCacheTTL)
	exchanger := identity.NewExchanger(identity.ExchangerConfig{
		TokenURL:     identity.TokenURL(cfg.KeycloakURL, cfg.Realm),
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}, client, sessions, channels, logger)

	// 4. Подписанные URL и Authorization Resolver
	signer := signing.NewManager(channels.Default.Domain, cfg.HMACKeyTTL, cfg.SignatureTTL, logger)
	resolver := authz.NewResolver(verifier, exchanger, signer, sessions, channels, logger)

	// 5. Листинги каналов
	cache := service.NewChannelCache(cfg.ChannelCacheTTL, nil)
	refreshEnabled := cfg.RSSDays >= 0
	lister := service.NewLister(store, cache, !refreshEnabled, logger)

	// --- Фоновые процессы ---

	// 6.1 Извлечение описаний событий из docx
	var extractor handlers.ExtractionRunner
	if cfg.WatchPath != "" {
		extractionSvc := service.NewExtractionService(store, cfg.WatchPath, cfg.FilePattern, cfg.PollInterval, logger)
		extractionSvc.Start(ctx)
		defer extractionSvc.Stop()
		extractor = extractionSvc
	} else {
		logger.Info("MG_WATCH_PATH не задан, извлечение описаний отключено")
	}

	// 6.2 Конвейер обновления листингов и RSS
	if refreshEnabled {
		refreshSvc := service.NewRefreshService(
			channels.All(), store, cache,
			cfg.PollInterval, cfg.PipelineBuffer, cfg.RSSDays, logger,
		)
		refreshSvc.Start(ctx)
		defer refreshSvc.Stop()
	} else {
		logger.Info("MG_RSS_DAYS < 0, обновление листингов отключено")
	}

	// 6.3 topologymetrics — мониторинг identity provider
	var deps handlers.DependencyHealth
	dephealthSvc, dephealthErr := service.NewDephealthService(
		cfg.ServiceID,
		cfg.DephealthGroup,
		certsURL,
		cfg.DephealthCheckInterval,
		cfg.TLSSkipVerify,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
	} else {
		defer dephealthSvc.Stop()
		deps = dephealthSvc
		logger.Info("topologymetrics запущен",
			slog.String("certs_url", certsURL),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 7. Handlers
	authMW := middleware.NewAuth(resolver, logger)
	apiHandler := handlers.NewAPIHandler(
		handlers.NewAuthHandler(exchanger, signer, sessions, logger),
		handlers.NewFilesHandler(channels, lister, service.NewDownloadService(logger), cfg.BasePath, logger),
		handlers.NewMaintenanceHandler(extractor),
		handlers.NewHealthHandler(store, deps),
		authMW.Middleware(),
		authMW.SubrequestMiddleware(),
	)

	// 8. HTTP-сервер; возврат из Run запускает остановку фоновых процессов
	srv := server.New(cfg, logger, apiHandler)
	return srv.Run(ctx)
}
