package database

import (
	"context"
	"database/sql"
	"time"

	"cryptotracker/internal/logger"

	_ "github.com/lib/pq"
)

// Store wraps the shared Postgres connection pool. A single Store is
// constructed at process start and handed to the handlers and the
// checker; all mutation it performs is scoped to single rows.
type Store struct {
	db *sql.DB
}

// NewStore opens the database connection and verifies it
func NewStore(connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Set connection pool parameters
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	logger.Log.Info("Database connection established")
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
