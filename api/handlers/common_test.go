package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BaSui01/imageflow/api"
	"github.com/BaSui01/imageflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"explicit status wins", types.NewError(types.ErrUpstreamError, "boom").WithHTTPStatus(http.StatusBadGateway), http.StatusBadGateway},
		{"invalid request", types.NewError(types.ErrInvalidRequest, "bad"), http.StatusBadRequest},
		{"unauthorized", types.NewError(types.ErrUnauthorized, "no"), http.StatusUnauthorized},
		{"forbidden", types.NewError(types.ErrForbidden, "no"), http.StatusForbidden},
		{"rate limited", types.NewError(types.ErrRateLimited, "slow down"), http.StatusTooManyRequests},
		{"quota", types.NewError(types.ErrQuotaExceeded, "empty"), http.StatusPaymentRequired},
		{"upstream default", types.NewError(types.ErrUpstreamError, "boom"), http.StatusInternalServerError},
		{"plain error wrapped", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err, zap.NewNop())
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp api.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestWriteError_DetailsPassthrough(t *testing.T) {
	details := `{"error":{"message":"rate limited"}}`
	err := types.NewError(types.ErrRateLimited, "upstream failed").WithDetails([]byte(details))

	rec := httptest.NewRecorder()
	WriteError(rec, err, zap.NewNop())

	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "upstream failed", resp.Error)
	assert.JSONEq(t, details, string(resp.Details))
}

func TestWriteJSON_ContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, map[string]string{"ok": "yes"})

	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestResponseWriter_CapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK) // 第二次无效

	assert.Equal(t, http.StatusTeapot, rw.StatusCode)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
