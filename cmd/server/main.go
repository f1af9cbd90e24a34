package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"bookshop/internal/app"
	"bookshop/internal/config"
	"bookshop/internal/ratelimit"
	"bookshop/internal/server"
	"bookshop/internal/storage"
	"bookshop/internal/util"
	"bookshop/internal/view"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	appCore, err := app.New(app.Config{
		DatabaseURL:   cfg.DatabaseURL,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		SessionTTL:    sessionTTL,
		AMQPURL:       cfg.AMQPURL,
		OrderExchange: cfg.OrderExchange,
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	defer func() {
		if err := appCore.Close(); err != nil {
			logger.Error("close app", "err", err)
		}
	}()

	images, err := newImageStore(cfg)
	if err != nil {
		log.Fatalf("failed to init image store: %v", err)
	}
	renderer, err := view.NewTemplateRenderer()
	if err != nil {
		log.Fatalf("failed to load templates: %v", err)
	}
	loginLimiter, err := newLoginLimiter(cfg)
	if err != nil {
		log.Fatalf("failed to init login limiter: %v", err)
	}

	httpServer := server.New(server.Config{
		App:               appCore,
		Renderer:          renderer,
		Images:            images,
		PublicDir:         cfg.PublicDir,
		SessionCookieName: cfg.SessionCookieName,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		AllowedExtensions: cfg.AllowedExtensions,
		LoginLimiter:      loginLimiter,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

// newLoginLimiter builds the Redis-backed login limiter when enabled.
func newLoginLimiter(cfg config.FileConfig) (*ratelimit.FixedWindowLimiter, error) {
	if cfg.LoginRateLimit <= 0 {
		return nil, nil
	}
	window := time.Minute
	if cfg.LoginRateWindow != "" {
		parsed, err := time.ParseDuration(cfg.LoginRateWindow)
		if err != nil {
			return nil, err
		}
		window = parsed
	}
	return ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "bookshop:ratelimit:login", cfg.LoginRateLimit, window)
}

// newImageStore prefers MinIO when configured, local disk otherwise.
func newImageStore(cfg config.FileConfig) (storage.ImageStore, error) {
	if cfg.MinioEndpoint != "" {
		return storage.NewMinioImageStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	}
	return storage.NewDiskImageStore(cfg.UploadDir)
}
