package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// LoginWithGoogle exchanges a Google OAuth credential for a session. On
// success the token pair goes into the session store and the remaining
// response fields are kept as the profile; the token fields are stripped
// from what gets stored and returned.
func (c *Client) LoginWithGoogle(ctx context.Context, credential string) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]string{"token": credential})
	if err != nil {
		return nil, fmt.Errorf("failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/auth/google",
		bytes.NewReader(payload),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Goes through Do so the request carries an ID; there is no token to
	// attach yet, which is fine at this layer.
	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read login response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("login failed: %w", &oauth2.RetrieveError{
			Response: resp,
			Body:     body,
		})
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse login response: %w", err)
	}

	accessToken, err := stringField(fields, "access_token")
	if err != nil {
		return nil, err
	}
	refreshToken, err := stringField(fields, "refresh_token")
	if err != nil {
		return nil, err
	}

	// Only profile data gets persisted; the tokens live in their own slots.
	delete(fields, "access_token")
	delete(fields, "refresh_token")
	profile, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}

	c.store.SetSession(accessToken, refreshToken, profile)
	c.logger.Info("logged in")
	return profile, nil
}

// Logout clears the session and persisted credentials. Requests queued for a
// token refresh are aborted so they do not retry with stale state.
func (c *Client) Logout() {
	c.store.Clear()
	c.logger.Info("logged out")
}

func stringField(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("login response missing %s", key)
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("login response has malformed %s: %w", key, err)
	}
	if value == "" {
		return "", fmt.Errorf("login response has empty %s", key)
	}
	return value, nil
}
