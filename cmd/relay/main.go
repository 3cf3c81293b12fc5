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
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-widget/internal/config"
	"github.com/zhouzirui/chat-widget/internal/handler"
	"github.com/zhouzirui/chat-widget/internal/logging"
	"github.com/zhouzirui/chat-widget/internal/relay"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Setup("info", true)
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)

	if envErr != nil {
		log.Debug().Err(envErr).Msg("[relay] no .env file, continuing with system environment variables only")
	}

	metrics := relay.NewMetrics()
	hub := relay.NewHub(relay.HubOptions{
		Limits:        relay.LimitConfig{RPS: cfg.Relay.RateRPS, Burst: cfg.Relay.RateBurst},
		ReadTimeout:   cfg.Relay.ReadTimeout,
		PingInterval:  cfg.Relay.PingInterval,
		MaxFrameBytes: cfg.Relay.MaxFrameBytes,
	}, metrics)

	if cfg.Relay.StaticDir == "" {
		log.Info().Msg("[relay] RELAY_STATIC_DIR 未配置，/embed 与静态资源不可用")
	}

	router := handler.NewRouter(hub, metrics, cfg.Relay.StaticDir)

	startServer(ctx, cfg.Server, hub, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, hub *relay.Hub, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	// hijacked websocket and streaming SSE connections are not tracked by Shutdown
	srv.RegisterOnShutdown(hub.Close)

	log.Info().Str("addr", addr).Msg("[relay] chat relay listening")
	if err := runServer(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("[relay] server error")
	}
	hub.Close()
	hub.Wait()
	log.Info().Msg("[relay] stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
