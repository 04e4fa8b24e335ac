package apperrors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteError_Envelope(t *testing.T) {
	var rec *httptest.ResponseRecorder
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteNotFound(w, r, "Circle not found")
	}))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, CodeNotFound, resp.Error.Code)
	require.Equal(t, "Circle not found", resp.Error.Message)
	require.NotEmpty(t, resp.Error.RequestID)
	require.Equal(t, rec.Header().Get(RequestIDHeader), resp.Error.RequestID)
}

func TestRequestIDMiddleware_ReusesWellFormedID(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "upstream-id-1234")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "upstream-id-1234", seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "bad id\nwith newline")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.NotEqual(t, "bad id\nwith newline", seen)
	require.NotEmpty(t, seen)
}

func TestWriteSuccess_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusCreated, map[string]string{"ok": "yes"})

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "yes", resp.Data["ok"])
}

func TestDomainWriters(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter, r *http.Request)
		status int
		code   Code
	}{
		{"invite disabled", WriteInviteDisabled, http.StatusForbidden, CodeInviteDisabled},
		{"invite exhausted", WriteInviteExhausted, http.StatusGone, CodeInviteExhausted},
		{"method not allowed", WriteMethodNotAllowed, http.StatusMethodNotAllowed, CodeMethodNotAllowed},
		{"conflict", func(w http.ResponseWriter, r *http.Request) { WriteConflict(w, r, "taken") }, http.StatusConflict, CodeConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec, httptest.NewRequest(http.MethodPost, "/", nil))

			require.Equal(t, tt.status, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Equal(t, tt.code, resp.Error.Code)
			require.NotEmpty(t, resp.Error.Message)
		})
	}
}
