// Command gatewayd runs the realtime gateway daemon.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/sirsinexus/realtime-gateway/config"
	"github.com/sirsinexus/realtime-gateway/server"
	"github.com/sirsinexus/realtime-gateway/src/auth"
	"github.com/sirsinexus/realtime-gateway/src/bridge"
	"github.com/sirsinexus/realtime-gateway/src/gateway"
	"github.com/sirsinexus/realtime-gateway/src/hub"
	"github.com/sirsinexus/realtime-gateway/src/metrics"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration error")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	h := hub.New(logger, m, cfg.SendQueueSize)
	svc := gateway.New(h, logger)
	verifier := auth.NewVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience)

	go h.Run()

	// Attempt the Redis bridge; the gateway runs standalone without it.
	b := initBridge(h, logger)

	srv := server.New(cfg, verifier, svc, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
	}

	if err := srv.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	if b != nil {
		if err := b.Stop(); err != nil {
			logger.Error().Err(err).Msg("bridge stop error")
		}
	}
	svc.Shutdown()
}

// initBridge tries to start the Redis pub/sub bridge. If Redis is not
// reachable, the hub runs in standalone mode.
func initBridge(h *hub.Hub, logger zerolog.Logger) bridge.Bridge {
	cfg, err := bridge.RedisConfigFromEnv()
	if err != nil {
		logger.Warn().Err(err).Msg("redis config invalid, running standalone")
		return nil
	}

	rb := bridge.NewRedisBridge(cfg, h, logger)
	if err := rb.Start(); err != nil {
		logger.Warn().Err(err).Msg("redis bridge unavailable, running standalone")
		return nil
	}

	h.SetBridge(rb)
	logger.Info().Str("redis_addr", cfg.Addr).Msg("redis bridge connected")
	return rb
}
