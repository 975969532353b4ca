package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"milestonez/internal/app"
	"milestonez/internal/config"
	"milestonez/internal/handler"
	"milestonez/internal/httpserver"
	"milestonez/pkg/logger"
	"milestonez/pkg/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg.Debug)
	defer log.Sync()

	log.Info("Starting milestonez api...",
		zap.String("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Driver),
		zap.String("llm_provider", cfg.LLM.Provider),
	)

	shutdownTracing, err := otel.Init(cfg.OTel, log)
	if err != nil {
		log.Warn("Tracing disabled", zap.Error(err))
	}
	defer shutdownTracing()

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to init service", zap.Error(err))
	}

	h := handler.NewMilestoneHandler(a.Service, log)
	router := httpserver.NewRouter(h, httpserver.Readiness{
		Store:     a.Service.Ready,
		Publisher: a.PublisherReady,
	}, cfg.JWT.Secret, log)
	srv := router.Server(cfg.Server.Port)

	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down milestonez api gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	a.Close()
	log.Info("milestonez api shutdown complete")
}
