package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"cryptotracker/internal/cache"
	"cryptotracker/internal/checker"
	"cryptotracker/internal/config"
	"cryptotracker/internal/database"
	"cryptotracker/internal/logger"
	"cryptotracker/internal/marketdata"
	"cryptotracker/internal/notifier"
	"cryptotracker/internal/tracing"

	"go.uber.org/zap"
)

func main() {
	instance := flag.String("instance", "checker-1", "Instance ID for this server")
	runNow := flag.Bool("run-now", false, "Run one pass immediately on startup")
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

	prices := marketdata.NewClient(cfg.CoinGeckoBaseURL, redisCache, cfg.PriceCacheTTL, cfg.RequestTimeout)

	kafkaNotifier, err := notifier.NewKafkaNotifier(cfg.KafkaBroker)
	if err != nil {
		logger.Log.Fatal("Failed to create Kafka producer", zap.Error(err))
	}
	defer kafkaNotifier.Close()

	chk := checker.New(store, prices, kafkaNotifier, cfg.Currency)
	if err := chk.Start(cfg.CheckerSchedule); err != nil {
		logger.Log.Fatal("Failed to start checker", zap.Error(err))
	}
	defer chk.Stop()

	if *runNow {
		chk.Tick(context.Background())
	}

	// Wait for interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Log.Info("Shutting down alert checker")
}
