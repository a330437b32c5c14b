package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// defaultRefreshTimeout bounds a single refresh call so the coordinator can
// never be stuck in the Refreshing state indefinitely.
const defaultRefreshTimeout = 10 * time.Second

// Refresher exchanges a refresh token for a new access token. It has no side
// effects on session state; persistence is the coordinator's job, which
// keeps the exchange mechanism testable in isolation.
type Refresher interface {
	// Refresh returns the new access token. Failures satisfy
	// errors.Is(err, ErrNoRefreshToken) or errors.Is(err, ErrRefreshRejected).
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

// HTTPRefresher performs the exchange against POST {baseURL}/auth/refresh.
type HTTPRefresher struct {
	baseURL string
	client  Doer
	logger  *slog.Logger
}

// NewHTTPRefresher creates a refresher that posts to baseURL + "/auth/refresh"
// through client.
func NewHTTPRefresher(baseURL string, client Doer, logger *slog.Logger) *HTTPRefresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPRefresher{baseURL: baseURL, client: client, logger: logger}
}

func (r *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", ErrNoRefreshToken
	}

	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return "", fmt.Errorf("%w: failed to encode request: %v", ErrRefreshRejected, err)
	}

	// Mark the context so a gateway serving as our Doer treats a 401 here as
	// terminal instead of recursing into another refresh.
	req, err := http.NewRequestWithContext(
		markRefreshCall(ctx),
		http.MethodPost,
		r.baseURL+"/auth/refresh",
		bytes.NewReader(payload),
	)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %v", ErrRefreshRejected, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.DoWithContext(req.Context(), req)
	if err != nil {
		return "", fmt.Errorf("%w: request failed: %v", ErrRefreshRejected, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", ErrRefreshRejected, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r.logger.Debug("refresh endpoint rejected token", "status", resp.StatusCode)
		return "", fmt.Errorf("%w: %w", ErrRefreshRejected, &oauth2.RetrieveError{
			Response: resp,
			Body:     body,
		})
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("%w: failed to parse response: %v", ErrRefreshRejected, err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("%w: response missing access_token", ErrRefreshRejected)
	}

	return tokenResp.AccessToken, nil
}
