package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"golang.org/x/oauth2"
)

func TestHTTPRefresher_Success(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		if r.URL.Path != "/auth/refresh" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		if body.RefreshToken != "refresh-1" {
			http.Error(w, "unknown refresh token", http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-2",
			"expires_in":   900,
		})
	}))
	defer server.Close()

	r := NewHTTPRefresher(server.URL, WrapHTTPClient(http.DefaultClient), discardLogger())

	token, err := r.Refresh(context.Background(), "refresh-1")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if token != "access-2" {
		t.Errorf("Refresh() = %q, want access-2", token)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 network call, got %d", calls.Load())
	}
}

func TestHTTPRefresher_NoRefreshToken(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	r := NewHTTPRefresher(server.URL, WrapHTTPClient(http.DefaultClient), discardLogger())

	_, err := r.Refresh(context.Background(), "")
	if !errors.Is(err, ErrNoRefreshToken) {
		t.Fatalf("Refresh(\"\") error = %v, want ErrNoRefreshToken", err)
	}
	if calls.Load() != 0 {
		t.Errorf("Refresh with empty token made %d network calls, want 0", calls.Load())
	}
}

func TestHTTPRefresher_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{
			name:    "endpoint returns unauthorized",
			status:  http.StatusUnauthorized,
			body:    `{"error":"invalid refresh token"}`,
			wantErr: ErrRefreshRejected,
		},
		{
			name:    "endpoint returns server error",
			status:  http.StatusInternalServerError,
			body:    "boom",
			wantErr: ErrRefreshRejected,
		},
		{
			name:    "success status with malformed payload",
			status:  http.StatusOK,
			body:    "not json",
			wantErr: ErrRefreshRejected,
		},
		{
			name:    "success status missing access_token",
			status:  http.StatusOK,
			body:    `{"expires_in":900}`,
			wantErr: ErrRefreshRejected,
		},
		{
			name:    "success status with empty access_token",
			status:  http.StatusOK,
			body:    `{"access_token":""}`,
			wantErr: ErrRefreshRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(tt.status)
					w.Write([]byte(tt.body))
				}),
			)
			defer server.Close()

			r := NewHTTPRefresher(server.URL, WrapHTTPClient(http.DefaultClient), discardLogger())

			_, err := r.Refresh(context.Background(), "refresh-1")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Refresh() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHTTPRefresher_NonSuccessKeepsResponseDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	r := NewHTTPRefresher(server.URL, WrapHTTPClient(http.DefaultClient), discardLogger())

	_, err := r.Refresh(context.Background(), "refresh-1")

	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		t.Fatalf("error %v does not wrap *oauth2.RetrieveError", err)
	}
	if retrieveErr.Response.StatusCode != http.StatusUnauthorized {
		t.Errorf("RetrieveError status = %d, want 401", retrieveErr.Response.StatusCode)
	}
	if string(retrieveErr.Body) != `{"error":"invalid_grant"}` {
		t.Errorf("RetrieveError body = %s", retrieveErr.Body)
	}
}

func TestHTTPRefresher_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	r := NewHTTPRefresher(server.URL, WrapHTTPClient(http.DefaultClient), discardLogger())

	_, err := r.Refresh(context.Background(), "refresh-1")
	if !errors.Is(err, ErrRefreshRejected) {
		t.Errorf("Refresh() against dead server error = %v, want ErrRefreshRejected", err)
	}
}
