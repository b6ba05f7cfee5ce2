package models

import (
	"time"
)

// Direction says which way the price has to cross the target for an
// alert to fire.
const (
	DirectionAbove = "above"
	DirectionBelow = "below"
)

// Alert represents a price alert for a cryptocurrency. Triggered is
// monotonic: once the checker flips it to true the alert is never
// evaluated again.
type Alert struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	CoinID      string     `json:"coin_id" db:"coin_id"`
	TargetPrice float64    `json:"target_price" db:"target_price"`
	Direction   string     `json:"direction" db:"direction"`
	Triggered   bool       `json:"triggered" db:"triggered"`
	TriggeredAt *time.Time `json:"triggered_at,omitempty" db:"triggered_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// PendingAlert is a pending alert joined with its owner's contact,
// as loaded by the checker each tick.
type PendingAlert struct {
	Alert
	OwnerName  string `json:"owner_name" db:"owner_name"`
	OwnerEmail string `json:"owner_email" db:"owner_email"`
}

// TriggeredEvent is the payload published when an alert fires. It is
// produced to Kafka by the checker and re-broadcast over Redis pub/sub
// for SSE clients.
type TriggeredEvent struct {
	AlertID      string    `json:"alert_id"`
	UserID       string    `json:"user_id"`
	OwnerName    string    `json:"owner_name"`
	OwnerEmail   string    `json:"owner_email"`
	CoinID       string    `json:"coin_id"`
	Direction    string    `json:"direction"`
	TargetPrice  float64   `json:"target_price"`
	CurrentPrice float64   `json:"current_price"`
	TriggeredAt  time.Time `json:"triggered_at"`
}

// WatchlistItem is a coin a user follows on their dashboard.
type WatchlistItem struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	CoinID    string    `json:"coin_id" db:"coin_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
