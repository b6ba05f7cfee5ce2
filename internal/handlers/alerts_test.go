package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cryptotracker/internal/logger"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	m.Run()
}

func TestValidateCreateAlert(t *testing.T) {
	tests := []struct {
		name string
		req  CreateAlertRequest
		ok   bool
	}{
		{"valid above", CreateAlertRequest{UserID: "u1", CoinID: "bitcoin", TargetPrice: 50000, Direction: "above"}, true},
		{"valid below", CreateAlertRequest{UserID: "u1", CoinID: "bitcoin", TargetPrice: 50000, Direction: "below"}, true},
		{"missing user", CreateAlertRequest{CoinID: "bitcoin", TargetPrice: 50000, Direction: "above"}, false},
		{"missing coin", CreateAlertRequest{UserID: "u1", TargetPrice: 50000, Direction: "above"}, false},
		{"zero target", CreateAlertRequest{UserID: "u1", CoinID: "bitcoin", Direction: "above"}, false},
		{"negative target", CreateAlertRequest{UserID: "u1", CoinID: "bitcoin", TargetPrice: -1, Direction: "above"}, false},
		{"bad direction", CreateAlertRequest{UserID: "u1", CoinID: "bitcoin", TargetPrice: 50000, Direction: "sideways"}, false},
		{"missing direction", CreateAlertRequest{UserID: "u1", CoinID: "bitcoin", TargetPrice: 50000}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := validateCreateAlert(&tt.req)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestCreateAlertHandler_RejectsInvalidRequests(t *testing.T) {
	h := New(nil, nil, "test-1") // invalid requests never reach the store

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"bad direction", `{"user_id":"u1","coin_id":"bitcoin","target_price":50000,"direction":"diagonal"}`},
		{"zero target", `{"user_id":"u1","coin_id":"bitcoin","target_price":0,"direction":"above"}`},
		{"missing coin", `{"user_id":"u1","target_price":50000,"direction":"above"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/alerts", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.CreateAlertHandler(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAlertsHandler_MethodNotAllowed(t *testing.T) {
	h := New(nil, nil, "test-1")

	req := httptest.NewRequest(http.MethodPatch, "/alerts", nil)
	rec := httptest.NewRecorder()
	h.AlertsHandler(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/alerts/triggered", nil)
	rec = httptest.NewRecorder()
	h.AlertsHandler(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBrowseAlertsHandler_RequiresUserID(t *testing.T) {
	h := New(nil, nil, "test-1")

	req := httptest.NewRequest(http.MethodGet, "/alerts", nil)
	rec := httptest.NewRecorder()
	h.BrowseAlertsHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
