package authclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/google/uuid"
)

// Doer executes a single HTTP request. *retry.Client satisfies it directly;
// WrapHTTPClient adapts a plain *http.Client.
type Doer interface {
	DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error)
}

// httpDoer adapts *http.Client to Doer.
type httpDoer struct {
	c *http.Client
}

func (d httpDoer) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	return d.c.Do(req.WithContext(ctx))
}

// WrapHTTPClient adapts a plain *http.Client to the Doer interface.
func WrapHTTPClient(c *http.Client) Doer {
	return httpDoer{c: c}
}

// Context markers carried on outgoing requests.
type ctxMarker int

const (
	ctxRefreshCall ctxMarker = iota // this request is the refresh call itself
	ctxRetried                      // this request has already been replayed once
)

func markRefreshCall(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxRefreshCall, true)
}

func isRefreshCall(ctx context.Context) bool {
	v, _ := ctx.Value(ctxRefreshCall).(bool)
	return v
}

func markRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxRetried, true)
}

func wasRetried(ctx context.Context) bool {
	v, _ := ctx.Value(ctxRetried).(bool)
	return v
}

// Config configures a Client.
type Config struct {
	// BaseURL is the scheme://host[:port] of the API server. Required.
	BaseURL string

	// Transport executes the actual HTTP requests. Defaults to a retrying
	// client over a TLS 1.2+ transport.
	Transport Doer

	// Credentials is the durable store the session writes through to.
	// Optional; nil keeps the session purely in memory.
	Credentials CredentialStore

	// Notifier receives the session-expired signal. Defaults to a no-op.
	Notifier Notifier

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// RefreshTimeout bounds the refresh network call. Defaults to 10s.
	RefreshTimeout time.Duration
}

// Client is the outward-facing HTTP client. It attaches the current access
// token to every request, intercepts unauthorized responses, obtains a fresh
// token through the coordinator, and replays the original request once.
type Client struct {
	baseURL string
	base    Doer
	store   *SessionStore
	coord   *Coordinator
	logger  *slog.Logger
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	if err := validateBaseURL(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := cfg.Transport
	if base == nil {
		retryClient, err := retry.NewBackgroundClient(
			retry.WithHTTPClient(defaultHTTPClient()),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create retry client: %w", err)
		}
		base = retryClient
	}

	store := NewSessionStore(cfg.Credentials, logger)
	refresher := NewHTTPRefresher(cfg.BaseURL, base, logger)
	coord := NewCoordinator(store, refresher, cfg.Notifier, logger, cfg.RefreshTimeout)

	return &Client{
		baseURL: cfg.BaseURL,
		base:    base,
		store:   store,
		coord:   coord,
		logger:  logger,
	}, nil
}

// defaultHTTPClient mirrors the transport settings used for all outbound
// calls when no custom Doer is supplied.
func defaultHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			DisableKeepAlives:   false,
		},
	}
}

// validateBaseURL checks that the server URL is usable.
func validateBaseURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("server URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL must include a host")
	}
	return nil
}

// Store exposes the session store for read access and explicit clears.
func (c *Client) Store() *SessionStore { return c.store }

// Session returns the current session snapshot.
func (c *Client) Session() Session { return c.store.Get() }

// Restore loads persisted credentials into the session store.
func (c *Client) Restore() error { return c.store.Restore() }

// NewRequest builds a request against the configured base URL. path must
// start with "/".
func (c *Client) NewRequest(
	ctx context.Context,
	method, path string,
	body io.Reader,
) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
}

// DoWithContext implements Doer so a Client can itself serve as a transport.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.Do(req.WithContext(ctx))
}

// Do sends the request with the current access token attached as a bearer
// credential. A missing token is not an error at this layer; unauthenticated
// requests (the login call itself) pass through without the header.
//
// On a 401 the request is replayed exactly once after the coordinator
// produces a fresh token. If the refresh fails, or the replay is rejected
// again, the unauthorized response is surfaced to the caller as-is. All
// other responses and transport errors pass through unchanged.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}

	if err := bufferRequestBody(req); err != nil {
		return nil, fmt.Errorf("failed to buffer request body: %w", err)
	}

	if session := c.store.Get(); session.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	}

	resp, err := c.base.DoWithContext(req.Context(), req)
	if err != nil {
		// Transport failures are not token problems; pass them through.
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	ctx := req.Context()

	if isRefreshCall(ctx) {
		// The refresh endpoint itself rejected us. Refreshing again can only
		// loop, so this is a terminal session expiry.
		c.logger.Warn("refresh call rejected, expiring session",
			"request_id", req.Header.Get("X-Request-ID"))
		c.coord.ExpireSession(ErrRefreshRejected)
		return resp, nil
	}

	if wasRetried(ctx) {
		c.logger.Debug("request unauthorized after retry",
			"request_id", req.Header.Get("X-Request-ID"))
		return resp, nil
	}

	// Keep the original unauthorized reply around in case the refresh fails
	// and we have to hand it back.
	snapshot, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		snapshot = nil
	}

	accessToken, refreshErr := c.coord.ObtainFreshToken(ctx)
	if refreshErr != nil {
		c.logger.Debug("refresh failed, surfacing original response",
			"request_id", req.Header.Get("X-Request-ID"), "error", refreshErr)
		resp.Body = io.NopCloser(bytes.NewReader(snapshot))
		return resp, nil
	}

	retryReq := req.Clone(markRetried(ctx))
	if req.GetBody != nil {
		retryBody, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		retryReq.Body = retryBody
	}
	retryReq.Header.Set("Authorization", "Bearer "+accessToken)

	c.logger.Debug("replaying request with fresh token",
		"request_id", req.Header.Get("X-Request-ID"))
	return c.Do(retryReq)
}

// bufferRequestBody makes the request body replayable. Requests built with
// http.NewRequest from byte readers already have GetBody; anything else gets
// read into memory once.
func bufferRequestBody(req *http.Request) error {
	if req.Body == nil || req.GetBody != nil {
		return nil
	}
	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return err
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return nil
}
