package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/HmRandomGuy/T-V-B/adapters/ffmpeg"
	"github.com/HmRandomGuy/T-V-B/adapters/telegram"
	"github.com/HmRandomGuy/T-V-B/adapters/tts"
	"github.com/HmRandomGuy/T-V-B/domain/repositories"
	"github.com/HmRandomGuy/T-V-B/internal/api"
	"github.com/HmRandomGuy/T-V-B/internal/config"
	"github.com/HmRandomGuy/T-V-B/internal/metrics"
	"github.com/HmRandomGuy/T-V-B/internal/worker"
	"github.com/HmRandomGuy/T-V-B/repository"
	"github.com/HmRandomGuy/T-V-B/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err == nil {
		logger.Info("loaded environment from .env file")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	// Initialize adapters
	renderer, err := buildRenderer(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build speech renderer", zap.Error(err))
	}

	transcoder := ffmpeg.New(ffmpeg.Config{
		FFmpegPath:  cfg.Engine.FFmpegPath,
		FFprobePath: cfg.Engine.FFprobePath,
		WorkDir:     cfg.Engine.WorkDir,
	}, logger)

	prefs := repository.NewMemoryPreferenceStore()

	gateway, err := telegram.NewGateway(telegram.Config{
		BotToken:           cfg.Telegram.BotToken,
		PollTimeout:        cfg.Telegram.PollTimeout,
		LargeTextThreshold: cfg.Pipeline.MaxTextLength,
	}, prefs, logger)
	if err != nil {
		logger.Fatal("failed to connect to Telegram", zap.Error(err))
	}

	// Initialize usecase and supervisor
	pipeline := usecase.NewPipeline(renderer, transcoder, prefs, cfg.Pipeline, m, logger)
	supervisor := worker.NewSupervisor(gateway, gateway, pipeline, worker.Config{
		MaxConcurrent:   cfg.Pipeline.MaxConcurrent,
		DispatchRetries: cfg.Telegram.DispatchRetries,
		DispatchBackoff: cfg.Telegram.DispatchBackoff,
	}, m, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerDone := make(chan struct{})
	go func() {
		supervisor.Run(ctx)
		close(workerDone)
	}()

	// Liveness server
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	api.InitRoutes(e, prometheus.DefaultGatherer)

	// A dead liveness endpoint means the process should not keep running.
	go func() {
		if err := e.Start(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil && err != http.ErrServerClosed {
			logger.Fatal("liveness server failed", zap.Error(err))
		}
	}()

	logger.Info("bot started",
		zap.Int("port", cfg.HTTP.Port),
		zap.String("renderer", cfg.Pipeline.Renderer),
		zap.Int("max_concurrent", cfg.Pipeline.MaxConcurrent))

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	cancel()

	select {
	case <-workerDone:
	case <-time.After(30 * time.Second):
		logger.Warn("worker did not drain in time")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("bot exited")
}

func buildRenderer(cfg *config.Config, logger *zap.Logger) (repositories.SpeechRenderer, error) {
	switch cfg.Pipeline.Renderer {
	case "elevenlabs":
		return tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
	default:
		return tts.NewGoogleTranslateTTS(tts.GoogleTranslateConfig{}, logger), nil
	}
}
