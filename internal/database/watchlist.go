package database

import (
	"context"
	"errors"

	"cryptotracker/internal/logger"
	"cryptotracker/internal/models"

	"go.uber.org/zap"
)

var ErrWatchlistItemNotFound = errors.New("watchlist item not found")

// AddWatchlistItem adds a coin to the user's watchlist
func (s *Store) AddWatchlistItem(ctx context.Context, item *models.WatchlistItem) error {
	query := `
		INSERT INTO watchlist (id, user_id, coin_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, coin_id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query, item.ID, item.UserID, item.CoinID, item.CreatedAt)
	if err != nil {
		logger.Log.Error("Failed to add watchlist item",
			zap.String("user_id", item.UserID),
			zap.String("coin_id", item.CoinID),
			zap.Error(err),
		)
		return err
	}

	return nil
}

// ListWatchlist retrieves the user's watchlist, newest first
func (s *Store) ListWatchlist(ctx context.Context, userID string) ([]*models.WatchlistItem, error) {
	query := `
		SELECT id, user_id, coin_id, created_at
		FROM watchlist
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		logger.Log.Error("Failed to query watchlist",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	var items []*models.WatchlistItem
	for rows.Next() {
		var item models.WatchlistItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.CoinID, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// RemoveWatchlistItem removes a coin from the user's watchlist
func (s *Store) RemoveWatchlistItem(ctx context.Context, userID, coinID string) error {
	query := `DELETE FROM watchlist WHERE user_id = $1 AND coin_id = $2`

	result, err := s.db.ExecContext(ctx, query, userID, coinID)
	if err != nil {
		logger.Log.Error("Failed to remove watchlist item",
			zap.String("user_id", userID),
			zap.String("coin_id", coinID),
			zap.Error(err),
		)
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrWatchlistItemNotFound
	}

	return nil
}
