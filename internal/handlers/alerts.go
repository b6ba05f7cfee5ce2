package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"cryptotracker/internal/cache"
	"cryptotracker/internal/database"
	"cryptotracker/internal/logger"
	"cryptotracker/internal/models"

	"github.com/google/uuid"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

type Response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type CreateAlertRequest struct {
	UserID      string  `json:"user_id"`
	CoinID      string  `json:"coin_id"`
	TargetPrice float64 `json:"target_price"`
	Direction   string  `json:"direction"`
}

type UpdateAlertRequest struct {
	TargetPrice float64 `json:"target_price"`
}

// Handler carries the shared store and cache. They are the same
// instances the checker uses; all alert mutation is single-row, so
// concurrent ticks and requests are safe.
type Handler struct {
	store    *database.Store
	cache    *cache.Cache
	instance string
}

func New(store *database.Store, c *cache.Cache, instance string) *Handler {
	return &Handler{store: store, cache: c, instance: instance}
}

// AlertsHandler routes alert requests based on path and HTTP method
func (h *Handler) AlertsHandler(w http.ResponseWriter, r *http.Request) {
	// URL patterns: /alerts, /alerts/triggered, /alerts/{id}
	path := strings.TrimPrefix(r.URL.Path, "/alerts")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.BrowseAlertsHandler(w, r)
		case http.MethodPost:
			h.CreateAlertHandler(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if path == "triggered" {
		switch r.Method {
		case http.MethodGet:
			h.TriggeredAlertsHandler(w, r)
		case http.MethodDelete:
			h.ClearTriggeredHandler(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	alertID := path
	switch r.Method {
	case http.MethodPut, http.MethodPatch:
		h.UpdateAlertHandler(w, r, alertID)
	case http.MethodDelete:
		h.DeleteAlertHandler(w, r, alertID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// BrowseAlertsHandler lists a user's pending alerts
func (h *Handler) BrowseAlertsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("crypto-tracker")
	ctx, span := tracer.Start(ctx, "BrowseAlertsHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "Missing required query parameter: user_id", http.StatusBadRequest)
		return
	}

	cacheKey := generateCacheKey(r, "browse_alerts_")

	cached, err := h.cache.Get(ctx, cacheKey, "/alerts")
	if err == nil && cached != "" {
		logger.Log.Info("Cache hit for /alerts",
			zap.String("trace_id", traceID),
			zap.String("cache_key", cacheKey),
		)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(cached))
		return
	}

	alerts, dbErr := h.store.ListPendingAlertsByUser(ctx, userID)
	if dbErr != nil {
		logger.Log.Error("Failed to fetch alerts",
			zap.String("trace_id", traceID),
			zap.Error(dbErr),
		)
		http.Error(w, "Failed to fetch alerts", http.StatusInternalServerError)
		return
	}

	response := Response{
		Message: "Alerts retrieved successfully",
		Data:    alerts,
	}

	respBytes, err := json.Marshal(response)
	if err != nil {
		logger.Log.Error("Failed to encode JSON response",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		http.Error(w, "Failed to encode JSON response", http.StatusInternalServerError)
		return
	}

	if cacheErr := h.cache.Set(ctx, cacheKey, string(respBytes), 30*time.Second); cacheErr != nil {
		logger.Log.Warn("Failed to store response in cache",
			zap.String("trace_id", traceID),
			zap.String("cache_key", cacheKey),
			zap.Error(cacheErr),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(respBytes)
}

// CreateAlertHandler handles creating a new alert
func (h *Handler) CreateAlertHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("crypto-tracker")
	ctx, span := tracer.Start(ctx, "CreateAlertHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	var req CreateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.Error("Failed to parse request body",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if msg, ok := validateCreateAlert(&req); !ok {
		logger.Log.Error("Invalid alert request",
			zap.String("trace_id", traceID),
			zap.String("reason", msg),
		)
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	alert := &models.Alert{
		ID:          uuid.New().String(),
		UserID:      req.UserID,
		CoinID:      strings.ToLower(req.CoinID),
		TargetPrice: req.TargetPrice,
		Direction:   req.Direction,
		CreatedAt:   time.Now(),
	}

	if err := h.store.CreateAlert(ctx, alert); err != nil {
		logger.Log.Error("Failed to create alert",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		http.Error(w, "Failed to create alert", http.StatusInternalServerError)
		return
	}

	h.cache.InvalidateByPrefix(ctx, "browse_alerts_", "/alerts")

	response := Response{
		Message: "Alert created successfully",
		Data:    alert,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(response)
}

// TriggeredAlertsHandler lists a user's fired alerts
func (h *Handler) TriggeredAlertsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("crypto-tracker")
	ctx, span := tracer.Start(ctx, "TriggeredAlertsHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "Missing required query parameter: user_id", http.StatusBadRequest)
		return
	}

	alerts, err := h.store.ListTriggeredAlertsByUser(ctx, userID)
	if err != nil {
		logger.Log.Error("Failed to fetch triggered alerts",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		http.Error(w, "Failed to fetch triggered alerts", http.StatusInternalServerError)
		return
	}

	response := Response{
		Message: "Triggered alerts retrieved successfully",
		Data:    alerts,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// ClearTriggeredHandler deletes all of a user's fired alerts
func (h *Handler) ClearTriggeredHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("crypto-tracker")
	ctx, span := tracer.Start(ctx, "ClearTriggeredHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "Missing required query parameter: user_id", http.StatusBadRequest)
		return
	}

	if err := h.store.ClearTriggeredAlerts(ctx, userID); err != nil {
		logger.Log.Error("Failed to clear triggered alerts",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		http.Error(w, "Failed to clear triggered alerts", http.StatusInternalServerError)
		return
	}

	response := Response{
		Message: "Triggered alerts cleared",
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// UpdateAlertHandler changes an alert's target price
func (h *Handler) UpdateAlertHandler(w http.ResponseWriter, r *http.Request, alertID string) {
	ctx := r.Context()
	tracer := otel.Tracer("crypto-tracker")
	ctx, span := tracer.Start(ctx, "UpdateAlertHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "Missing required query parameter: user_id", http.StatusBadRequest)
		return
	}

	var req UpdateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.Error("Failed to parse request body",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.TargetPrice <= 0 {
		http.Error(w, "target_price must be positive", http.StatusBadRequest)
		return
	}

	alert, err := h.store.UpdateAlertTarget(ctx, alertID, userID, req.TargetPrice)
	if err != nil {
		if errors.Is(err, database.ErrAlertNotFound) {
			http.Error(w, "Alert not found or not authorized", http.StatusNotFound)
			return
		}
		logger.Log.Error("Failed to update alert",
			zap.String("trace_id", traceID),
			zap.String("alert_id", alertID),
			zap.Error(err),
		)
		http.Error(w, "Failed to update alert", http.StatusInternalServerError)
		return
	}

	h.cache.InvalidateByPrefix(ctx, "browse_alerts_", "/alerts")

	response := Response{
		Message: "Alert updated successfully",
		Data:    alert,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// DeleteAlertHandler deletes an alert
func (h *Handler) DeleteAlertHandler(w http.ResponseWriter, r *http.Request, alertID string) {
	ctx := r.Context()
	tracer := otel.Tracer("crypto-tracker")
	ctx, span := tracer.Start(ctx, "DeleteAlertHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "Missing required query parameter: user_id", http.StatusBadRequest)
		return
	}

	if err := h.store.DeleteAlert(ctx, alertID, userID); err != nil {
		if errors.Is(err, database.ErrAlertNotFound) {
			http.Error(w, "Alert not found or not authorized", http.StatusNotFound)
			return
		}
		logger.Log.Error("Failed to delete alert",
			zap.String("trace_id", traceID),
			zap.String("alert_id", alertID),
			zap.Error(err),
		)
		http.Error(w, "Failed to delete alert", http.StatusInternalServerError)
		return
	}

	h.cache.InvalidateByPrefix(ctx, "browse_alerts_", "/alerts")

	response := Response{
		Message: "Alert deleted successfully",
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func validateCreateAlert(req *CreateAlertRequest) (string, bool) {
	if req.UserID == "" || req.CoinID == "" {
		return "Missing required fields: user_id, coin_id", false
	}
	if req.TargetPrice <= 0 {
		return "target_price must be positive", false
	}
	if req.Direction != models.DirectionAbove && req.Direction != models.DirectionBelow {
		return "direction must be \"above\" or \"below\"", false
	}
	return "", true
}

func generateCacheKey(r *http.Request, prefix string) string {
	queryParams := r.URL.Query()
	var keys []string
	for k := range queryParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var queryString []string
	for _, k := range keys {
		queryString = append(queryString, fmt.Sprintf("%s=%s", k, strings.Join(queryParams[k], ",")))
	}
	joinedParams := strings.Join(queryString, "&")

	hash := sha256.Sum256([]byte(joinedParams))
	return prefix + hex.EncodeToString(hash[:8])
}
