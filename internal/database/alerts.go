package database

import (
	"context"
	"database/sql"
	"errors"

	"cryptotracker/internal/logger"
	"cryptotracker/internal/models"

	"go.uber.org/zap"
)

// ErrAlertNotFound is returned when an alert id does not exist or does
// not belong to the requesting user.
var ErrAlertNotFound = errors.New("alert not found")

// CreateAlert inserts a new alert into the database
func (s *Store) CreateAlert(ctx context.Context, alert *models.Alert) error {
	query := `
		INSERT INTO alerts (id, user_id, coin_id, target_price, direction, triggered, created_at)
		VALUES ($1, $2, $3, $4, $5, false, $6)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		alert.ID,
		alert.UserID,
		alert.CoinID,
		alert.TargetPrice,
		alert.Direction,
		alert.CreatedAt,
	)

	if err != nil {
		logger.Log.Error("Failed to create alert in database",
			zap.String("alert_id", alert.ID),
			zap.Error(err),
		)
		return err
	}

	return nil
}

// GetAlertByID retrieves an alert by its ID
func (s *Store) GetAlertByID(ctx context.Context, id string) (*models.Alert, error) {
	query := `
		SELECT id, user_id, coin_id, target_price, direction, triggered, triggered_at, created_at
		FROM alerts
		WHERE id = $1
	`

	var alert models.Alert
	var triggeredAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&alert.ID,
		&alert.UserID,
		&alert.CoinID,
		&alert.TargetPrice,
		&alert.Direction,
		&alert.Triggered,
		&triggeredAt,
		&alert.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		logger.Log.Error("Failed to retrieve alert",
			zap.String("alert_id", id),
			zap.Error(err),
		)
		return nil, err
	}

	if triggeredAt.Valid {
		t := triggeredAt.Time
		alert.TriggeredAt = &t
	}

	return &alert, nil
}

// ListPendingAlertsByUser retrieves a user's alerts that have not fired yet
func (s *Store) ListPendingAlertsByUser(ctx context.Context, userID string) ([]*models.Alert, error) {
	query := `
		SELECT id, user_id, coin_id, target_price, direction, triggered, triggered_at, created_at
		FROM alerts
		WHERE user_id = $1 AND triggered = false
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		logger.Log.Error("Failed to query pending alerts by user ID",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// ListTriggeredAlertsByUser retrieves a user's fired alerts, most recent first
func (s *Store) ListTriggeredAlertsByUser(ctx context.Context, userID string) ([]*models.Alert, error) {
	query := `
		SELECT id, user_id, coin_id, target_price, direction, triggered, triggered_at, created_at
		FROM alerts
		WHERE user_id = $1 AND triggered = true
		ORDER BY triggered_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		logger.Log.Error("Failed to query triggered alerts by user ID",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// ListPendingAlertsWithOwner loads every alert with triggered = false
// joined with its owner's contact. This is the checker's working set
// for one evaluation pass.
func (s *Store) ListPendingAlertsWithOwner(ctx context.Context) ([]*models.PendingAlert, error) {
	query := `
		SELECT a.id, a.user_id, a.coin_id, a.target_price, a.direction, a.created_at,
		       u.name, u.email
		FROM alerts a
		JOIN users u ON u.id = a.user_id
		WHERE a.triggered = false
		ORDER BY a.created_at
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		logger.Log.Error("Failed to query pending alerts", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var alerts []*models.PendingAlert
	for rows.Next() {
		var pa models.PendingAlert
		err := rows.Scan(
			&pa.ID,
			&pa.UserID,
			&pa.CoinID,
			&pa.TargetPrice,
			&pa.Direction,
			&pa.CreatedAt,
			&pa.OwnerName,
			&pa.OwnerEmail,
		)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, &pa)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return alerts, nil
}

// MarkTriggered flips a single alert to triggered and stamps the time.
// The WHERE clause makes it idempotent: a second call matches no row,
// so triggered_at keeps its first-set value. It reports whether this
// call performed the transition.
func (s *Store) MarkTriggered(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE alerts
		SET triggered = true, triggered_at = NOW()
		WHERE id = $1 AND triggered = false
	`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		logger.Log.Error("Failed to mark alert triggered",
			zap.String("alert_id", id),
			zap.Error(err),
		)
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected == 1, nil
}

// UpdateAlertTarget changes the target price of one of the user's alerts
func (s *Store) UpdateAlertTarget(ctx context.Context, id, userID string, targetPrice float64) (*models.Alert, error) {
	query := `
		UPDATE alerts
		SET target_price = $1
		WHERE id = $2 AND user_id = $3
	`

	result, err := s.db.ExecContext(ctx, query, targetPrice, id, userID)
	if err != nil {
		logger.Log.Error("Failed to update alert",
			zap.String("alert_id", id),
			zap.Error(err),
		)
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, ErrAlertNotFound
	}

	return s.GetAlertByID(ctx, id)
}

// DeleteAlert deletes one of the user's alerts by ID
func (s *Store) DeleteAlert(ctx context.Context, id, userID string) error {
	query := `DELETE FROM alerts WHERE id = $1 AND user_id = $2`

	result, err := s.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		logger.Log.Error("Failed to delete alert",
			zap.String("alert_id", id),
			zap.Error(err),
		)
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrAlertNotFound
	}

	return nil
}

// ClearTriggeredAlerts removes all of a user's fired alerts
func (s *Store) ClearTriggeredAlerts(ctx context.Context, userID string) error {
	query := `DELETE FROM alerts WHERE user_id = $1 AND triggered = true`

	_, err := s.db.ExecContext(ctx, query, userID)
	if err != nil {
		logger.Log.Error("Failed to clear triggered alerts",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return err
	}

	return nil
}

// Helper function to scan alert rows
func scanAlerts(rows *sql.Rows) ([]*models.Alert, error) {
	var alerts []*models.Alert

	for rows.Next() {
		var alert models.Alert
		var triggeredAt sql.NullTime

		err := rows.Scan(
			&alert.ID,
			&alert.UserID,
			&alert.CoinID,
			&alert.TargetPrice,
			&alert.Direction,
			&alert.Triggered,
			&triggeredAt,
			&alert.CreatedAt,
		)

		if err != nil {
			return nil, err
		}

		if triggeredAt.Valid {
			t := triggeredAt.Time
			alert.TriggeredAt = &t
		}

		alerts = append(alerts, &alert)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return alerts, nil
}
