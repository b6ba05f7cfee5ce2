package main

import (
	"context"
	"encoding/json"
	"flag"

	"cryptotracker/internal/cache"
	"cryptotracker/internal/config"
	"cryptotracker/internal/logger"
	"cryptotracker/internal/models"
	"cryptotracker/internal/notifier"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

func main() {
	instance := flag.String("instance", "notifier-1", "Instance ID for this server")
	flag.Parse()

	logger.InitLogger()
	cfg := config.Load()

	redisCache, err := cache.New(cfg.RedisAddr, *instance)
	if err != nil {
		logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisCache.Close()

	email := notifier.NewEmailNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)

	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.KafkaBroker,
		"group.id":          "alert-notifier-group",
		"auto.offset.reset": "earliest",
	})
	if err != nil {
		logger.Log.Fatal("Failed to create Kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	if err := consumer.Subscribe(notifier.TriggeredTopic, nil); err != nil {
		logger.Log.Fatal("Failed to subscribe to Kafka topic", zap.Error(err))
	}

	logger.Log.Info("Listening for triggered alerts", zap.String("topic", notifier.TriggeredTopic))

	for {
		msg, err := consumer.ReadMessage(-1)
		if err != nil {
			logger.Log.Error("Kafka consumer error", zap.Error(err))
			continue
		}

		var event models.TriggeredEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Log.Error("Error parsing triggered event", zap.Error(err))
			continue
		}

		deliver(redisCache, email, event)
	}
}

// deliver sends the owner email and republishes the event for SSE
// clients. Both are best effort: the trigger is already persisted, so
// failures are logged and the message is not redelivered.
func deliver(redisCache *cache.Cache, email *notifier.EmailNotifier, event models.TriggeredEvent) {
	ctx := context.Background()

	if err := email.Notify(ctx, event); err != nil {
		logger.Log.Error("Failed to send alert email",
			zap.String("alert_id", event.AlertID),
			zap.String("owner_email", event.OwnerEmail),
			zap.Error(err),
		)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Log.Error("Failed to marshal event for SSE", zap.Error(err))
		return
	}

	if err := redisCache.Publish(ctx, cache.TriggeredChannel, string(payload)); err != nil {
		logger.Log.Error("Failed to publish event to Redis",
			zap.String("alert_id", event.AlertID),
			zap.Error(err),
		)
		return
	}

	logger.Log.Info("Alert delivered",
		zap.String("alert_id", event.AlertID),
		zap.String("coin_id", event.CoinID),
	)
}
