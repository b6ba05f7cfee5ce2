package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	"cryptotracker/internal/cache"
	"cryptotracker/internal/config"
	"cryptotracker/internal/database"
	"cryptotracker/internal/handlers"
	"cryptotracker/internal/logger"
	"cryptotracker/internal/tracing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	port := flag.String("port", "8081", "Port for the API service")
	instance := flag.String("instance", "api-1", "Instance ID for this server")
	rps := flag.Int("rps", 20, "Per-client requests per second")
	flag.Parse()

	logger.InitLogger()
	cfg := config.Load()

	redisCache, err := cache.New(cfg.RedisAddr, *instance)
	if err != nil {
		logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisCache.Close()

	store, err := database.NewStore(cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	shutdown, err := tracing.InitTracer()
	if err != nil {
		logger.Log.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx := context.Background()
		if err := shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer", zap.Error(err))
		}
	}()

	handler := handlers.New(store, redisCache, *instance)

	// SSE fan-out of triggered alerts from the notifier service
	stream := handlers.NewStream(redisCache)
	if err := stream.Start(); err != nil {
		logger.Log.Fatal("Failed to start alert stream", zap.Error(err))
	}

	// Setup routes
	mux := http.NewServeMux()

	mux.HandleFunc("/alerts/stream", stream.StreamAlertsHandler)
	mux.HandleFunc("/alerts", handler.AlertsHandler)
	mux.HandleFunc("/alerts/", handler.AlertsHandler)
	mux.HandleFunc("/watchlist", handler.WatchlistHandler)
	mux.HandleFunc("/watchlist/", handler.WatchlistHandler)
	mux.Handle("/metrics", promhttp.Handler())

	logger.Log.Info("API service starting on", zap.String("port", *port))
	log.Fatal(http.ListenAndServe(":"+*port, handlers.RateLimit(redisCache, *rps, mux)))
}
