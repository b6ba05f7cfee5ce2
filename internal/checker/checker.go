package checker

import (
	"context"
	"sync/atomic"
	"time"

	"cryptotracker/internal/logger"
	"cryptotracker/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var (
	ticksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checker_ticks_total",
			Help: "Total number of completed checker passes",
		},
	)
	tickFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checker_tick_failures_total",
			Help: "Total number of checker passes aborted by a load or fetch error",
		},
	)
	ticksDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checker_ticks_dropped_total",
			Help: "Total number of scheduled passes skipped because the previous one was still running",
		},
	)
	alertsTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checker_alerts_triggered_total",
			Help: "Total number of alerts transitioned to triggered",
		},
	)
	notifyFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checker_notify_failures_total",
			Help: "Total number of notification attempts that failed",
		},
	)
)

func init() {
	prometheus.MustRegister(ticksTotal)
	prometheus.MustRegister(tickFailuresTotal)
	prometheus.MustRegister(ticksDroppedTotal)
	prometheus.MustRegister(alertsTriggeredTotal)
	prometheus.MustRegister(notifyFailuresTotal)
}

// AlertStore is what the checker needs from the database: the pending
// working set and the single-row trigger transition.
type AlertStore interface {
	ListPendingAlertsWithOwner(ctx context.Context) ([]*models.PendingAlert, error)
	MarkTriggered(ctx context.Context, id string) (bool, error)
}

// PriceSource returns current prices for a batch of coin ids.
type PriceSource interface {
	FetchPrices(ctx context.Context, ids []string, currency string) (map[string]float64, error)
}

// Notifier delivers a triggered-alert event. Delivery is best effort;
// the checker logs failures and moves on.
type Notifier interface {
	Notify(ctx context.Context, event models.TriggeredEvent) error
}

// Checker runs the periodic alert evaluation pass: load pending alerts,
// batch-fetch prices for their coins, evaluate each alert, persist
// trigger transitions, then notify. It holds no alert state between
// passes; the store's triggered flag is the source of truth.
type Checker struct {
	store    AlertStore
	prices   PriceSource
	notifier Notifier
	currency string

	cron       *cron.Cron
	inProgress atomic.Bool
}

func New(store AlertStore, prices PriceSource, notifier Notifier, currency string) *Checker {
	return &Checker{
		store:    store,
		prices:   prices,
		notifier: notifier,
		currency: currency,
		cron:     cron.New(),
	}
}

// Start registers the tick on the given cron schedule (e.g. "@every 5m")
// and starts the scheduler.
func (c *Checker) Start(schedule string) error {
	_, err := c.cron.AddFunc(schedule, func() {
		c.Tick(context.Background())
	})
	if err != nil {
		return err
	}

	c.cron.Start()
	logger.Log.Info("Alert checker started", zap.String("schedule", schedule))
	return nil
}

// Stop halts the scheduler. A pass already running finishes.
func (c *Checker) Stop() {
	c.cron.Stop()
}

// Tick runs one evaluation pass. Overlapping invocations are dropped:
// if a pass is still running when the schedule fires again, the new
// one is skipped rather than letting passes pile up and double-notify.
func (c *Checker) Tick(ctx context.Context) {
	if !c.inProgress.CompareAndSwap(false, true) {
		ticksDroppedTotal.Inc()
		logger.Log.Warn("Skipping alert check, previous pass still running")
		return
	}
	defer c.inProgress.Store(false)

	tracer := otel.Tracer("crypto-tracker")
	ctx, span := tracer.Start(ctx, "CheckerTick")
	defer span.End()

	if err := c.runPass(ctx); err != nil {
		// A failed pass is not retried; the next scheduled pass
		// re-reads the still-pending alerts.
		tickFailuresTotal.Inc()
		logger.Log.Error("Alert check pass failed", zap.Error(err))
		return
	}

	ticksTotal.Inc()
}

func (c *Checker) runPass(ctx context.Context) error {
	alerts, err := c.store.ListPendingAlertsWithOwner(ctx)
	if err != nil {
		return err
	}

	if len(alerts) == 0 {
		logger.Log.Info("No pending alerts, skipping price fetch")
		return nil
	}

	// One provider call for the whole pass, never one per alert.
	coinIDs := distinctCoins(alerts)
	prices, err := c.prices.FetchPrices(ctx, coinIDs, c.currency)
	if err != nil {
		return err
	}

	logger.Log.Info("Evaluating pending alerts",
		zap.Int("alerts", len(alerts)),
		zap.Int("coins", len(coinIDs)),
	)

	for _, alert := range alerts {
		// Failures are isolated per alert; one bad alert must not
		// abort the rest of the pass.
		c.processAlert(ctx, alert, prices)
	}

	return nil
}

// processAlert evaluates one alert against the fetched prices and, when
// it fires, persists the transition before notifying. The persisted
// triggered flag is the authoritative event; a lost notification is not
// retried.
func (c *Checker) processAlert(ctx context.Context, alert *models.PendingAlert, prices map[string]float64) {
	currentPrice, ok := prices[alert.CoinID]
	if !ok {
		// No quote for this coin in this pass. Not an error: the
		// alert stays pending and is retried next tick.
		logger.Log.Warn("No price for coin, skipping alert",
			zap.String("alert_id", alert.ID),
			zap.String("coin_id", alert.CoinID),
		)
		return
	}

	if !ShouldTrigger(alert.Direction, alert.TargetPrice, currentPrice) {
		return
	}

	transitioned, err := c.store.MarkTriggered(ctx, alert.ID)
	if err != nil {
		// The in-memory decision is discarded; the alert is still
		// pending in the store and the next pass retries it.
		logger.Log.Error("Failed to persist trigger, alert stays pending",
			zap.String("alert_id", alert.ID),
			zap.Error(err),
		)
		return
	}
	if !transitioned {
		// Someone else already triggered it (e.g. a manual trigger
		// through the API). Do not notify twice.
		return
	}

	alertsTriggeredTotal.Inc()
	logger.Log.Info("Alert triggered",
		zap.String("alert_id", alert.ID),
		zap.String("coin_id", alert.CoinID),
		zap.String("direction", alert.Direction),
		zap.Float64("target_price", alert.TargetPrice),
		zap.Float64("current_price", currentPrice),
	)

	event := models.TriggeredEvent{
		AlertID:      alert.ID,
		UserID:       alert.UserID,
		OwnerName:    alert.OwnerName,
		OwnerEmail:   alert.OwnerEmail,
		CoinID:       alert.CoinID,
		Direction:    alert.Direction,
		TargetPrice:  alert.TargetPrice,
		CurrentPrice: currentPrice,
		TriggeredAt:  time.Now().UTC(),
	}

	if err := c.notifier.Notify(ctx, event); err != nil {
		// The trigger is already persisted and is not rolled back;
		// the owner misses this notification.
		notifyFailuresTotal.Inc()
		logger.Log.Error("Failed to notify alert owner",
			zap.String("alert_id", alert.ID),
			zap.String("owner_email", alert.OwnerEmail),
			zap.Error(err),
		)
	}
}

// distinctCoins returns the deduplicated coin ids of the pending set,
// in first-seen order.
func distinctCoins(alerts []*models.PendingAlert) []string {
	seen := make(map[string]bool, len(alerts))
	var ids []string
	for _, alert := range alerts {
		if !seen[alert.CoinID] {
			seen[alert.CoinID] = true
			ids = append(ids, alert.CoinID)
		}
	}
	return ids
}
