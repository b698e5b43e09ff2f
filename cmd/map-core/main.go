package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"geopanel/map-core/internal/config"
	"geopanel/map-core/internal/httpapi"
	"geopanel/map-core/internal/interact"
	"geopanel/map-core/internal/metrics"
	"geopanel/map-core/internal/refreshworker"
	"geopanel/map-core/internal/store"
)

func main() {
	// A .env file is a local convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		bootLogger := httpapi.NewLogger("info")
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}

	logger := httpapi.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	board := httpapi.NewBoard()
	ctrl := interact.New(logger, board, interact.Config{
		MaxSelections:      cfg.Map.MaxSelections,
		CountryThreshold:   cfg.Map.CountryThreshold,
		CityThreshold:      cfg.Map.CityThreshold,
		MaxScale:           cfg.Map.MaxScale,
		ViewportWidth:      cfg.Map.ViewportWidth,
		ViewportHeight:     cfg.Map.ViewportHeight,
		MarkerBaseSizes:    cfg.Map.MarkerBaseSizes,
		ClickDelay:         cfg.Map.ClickDelay(),
		RapidClickGuard:    cfg.Map.RapidClickGuard(),
		TransitionDuration: cfg.Map.TransitionDuration(),
	})
	defer ctrl.Destroy()
	ctrl.SetMetrics(m)

	var st *store.Store
	if cfg.DatabaseURL != "" {
		s, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer s.Close()
		st = s

		if data, err := s.LoadTree(ctx); err != nil {
			logger.Error().Err(err).Msg("initial tree load failed")
		} else if res, ok := ctrl.UpdateData(data); !ok {
			logger.Error().Int("errors", len(res.Errors)).Msg("initial tree failed validation")
		}

		if cfg.Refresh.Enabled {
			worker := refreshworker.New(logger, s, ctrl, refreshworker.Options{
				Interval:  cfg.Refresh.Interval(),
				JitterPct: cfg.Refresh.JitterPct,
				Timeout:   cfg.Refresh.Timeout(),
			}, m)
			go worker.Run(ctx)
		}
	}

	h := httpapi.NewHandler(logger, ctrl, board, st, m)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("map-core listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("shutdown complete")
}
