package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"cryptotracker/internal/database"
	"cryptotracker/internal/logger"
	"cryptotracker/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

type AddWatchlistRequest struct {
	UserID string `json:"user_id"`
	CoinID string `json:"coin_id"`
}

// WatchlistHandler routes watchlist requests
func (h *Handler) WatchlistHandler(w http.ResponseWriter, r *http.Request) {
	// URL patterns: /watchlist, /watchlist/{coin_id}
	path := strings.TrimPrefix(r.URL.Path, "/watchlist")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.BrowseWatchlistHandler(w, r)
		case http.MethodPost:
			h.AddWatchlistHandler(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.RemoveWatchlistHandler(w, r, path)
}

// BrowseWatchlistHandler lists the user's watchlist
func (h *Handler) BrowseWatchlistHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("crypto-tracker")
	ctx, span := tracer.Start(ctx, "BrowseWatchlistHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "Missing required query parameter: user_id", http.StatusBadRequest)
		return
	}

	items, err := h.store.ListWatchlist(ctx, userID)
	if err != nil {
		logger.Log.Error("Failed to fetch watchlist",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		http.Error(w, "Failed to fetch watchlist", http.StatusInternalServerError)
		return
	}

	response := Response{
		Message: "Watchlist retrieved successfully",
		Data:    items,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// AddWatchlistHandler adds a coin to the user's watchlist
func (h *Handler) AddWatchlistHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("crypto-tracker")
	ctx, span := tracer.Start(ctx, "AddWatchlistHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	var req AddWatchlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.Error("Failed to parse request body",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.UserID == "" || req.CoinID == "" {
		http.Error(w, "Missing required fields: user_id, coin_id", http.StatusBadRequest)
		return
	}

	item := &models.WatchlistItem{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		CoinID:    strings.ToLower(req.CoinID),
		CreatedAt: time.Now(),
	}

	if err := h.store.AddWatchlistItem(ctx, item); err != nil {
		logger.Log.Error("Failed to add watchlist item",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		http.Error(w, "Failed to add watchlist item", http.StatusInternalServerError)
		return
	}

	response := Response{
		Message: "Watchlist item added successfully",
		Data:    item,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(response)
}

// RemoveWatchlistHandler removes a coin from the user's watchlist
func (h *Handler) RemoveWatchlistHandler(w http.ResponseWriter, r *http.Request, coinID string) {
	ctx := r.Context()
	tracer := otel.Tracer("crypto-tracker")
	ctx, span := tracer.Start(ctx, "RemoveWatchlistHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "Missing required query parameter: user_id", http.StatusBadRequest)
		return
	}

	if err := h.store.RemoveWatchlistItem(ctx, userID, coinID); err != nil {
		if errors.Is(err, database.ErrWatchlistItemNotFound) {
			http.Error(w, "Watchlist item not found", http.StatusNotFound)
			return
		}
		logger.Log.Error("Failed to remove watchlist item",
			zap.String("trace_id", traceID),
			zap.String("coin_id", coinID),
			zap.Error(err),
		)
		http.Error(w, "Failed to remove watchlist item", http.StatusInternalServerError)
		return
	}

	response := Response{
		Message: "Watchlist item removed successfully",
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
