package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/joho/godotenv"

	tea "charm.land/bubbletea/v2"

	authclient "github.com/go-authgate/authclient"
	"github.com/go-authgate/authclient/tui"
)

var (
	serverURL         string
	googleCredential  string
	credsFile         string
	pingPath          string
	flagServerURL     *string
	flagCredential    *string
	flagCredsFile     *string
	flagPingPath      *string
	configInitialized bool
)

const requestTimeout = 10 * time.Second

func init() {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	// Define flags (but don't parse yet to avoid conflicts with test flags)
	flagServerURL = flag.String(
		"server-url",
		"",
		"API server URL (default: http://localhost:8080 or SERVER_URL env)",
	)
	flagCredential = flag.String(
		"credential",
		"",
		"Google OAuth credential for the initial login (or GOOGLE_CREDENTIAL env)",
	)
	flagCredsFile = flag.String(
		"creds-file",
		"",
		"Credential storage file (default: .session-credentials.json or CREDS_FILE env)",
	)
	flagPingPath = flag.String(
		"ping-path",
		"",
		"Authenticated endpoint to call (default: /api/me or PING_PATH env)",
	)
}

// initConfig parses flags and initializes configuration
// Separated from init() to avoid conflicts with test flag parsing
func initConfig() {
	if configInitialized {
		return
	}
	configInitialized = true

	flag.Parse()

	// Priority: flag > env > default
	serverURL = getConfig(*flagServerURL, "SERVER_URL", "http://localhost:8080")
	googleCredential = getConfig(*flagCredential, "GOOGLE_CREDENTIAL", "")
	credsFile = getConfig(*flagCredsFile, "CREDS_FILE", ".session-credentials.json")
	pingPath = getConfig(*flagPingPath, "PING_PATH", "/api/me")

	// Warn if using HTTP instead of HTTPS
	if strings.HasPrefix(strings.ToLower(serverURL), "http://") {
		fmt.Fprintln(
			os.Stderr,
			"⚠️  WARNING: Using HTTP instead of HTTPS. Tokens will be transmitted in plaintext!",
		)
		fmt.Fprintln(
			os.Stderr,
			"⚠️  This is only safe for local development. Use HTTPS in production.",
		)
		fmt.Fprintln(os.Stderr)
	}
}

// getConfig returns value with priority: flag > env > default
func getConfig(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if value := os.Getenv(envKey); value != "" {
		return value
	}
	return defaultValue
}

// isTTY reports whether stderr is a character device (interactive terminal).
// We check stderr because the TUI renders to stderr, allowing stdout to be piped.
func isTTY() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func main() {
	initConfig()

	if isTTY() {
		// Run TUI program on stderr so stdout pipes are not corrupted
		m := tui.NewModel()
		// WithInput(nil): disable stdin/keyboard input so BubbleTea skips terminal
		// capability queries (?2026/?2027). Ctrl+C is handled by signal.NotifyContext.
		p := tea.NewProgram(m, tea.WithOutput(os.Stderr), tea.WithInput(nil))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			}
		}()

		d := tui.NewProgramDisplayer(p)
		d.Banner()
		runErr := run(d)
		p.Quit() // let BubbleTea drain terminal query responses before exiting
		wg.Wait()
		if runErr != nil {
			os.Exit(1)
		}
	} else {
		d := tui.NewPlainDisplayer(os.Stderr)
		d.Banner()
		if err := run(d); err != nil {
			os.Exit(1)
		}
	}
}

func run(d tui.Displayer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	retryClient, err := retry.NewBackgroundClient()
	if err != nil {
		d.Fatal(fmt.Errorf("failed to create retry client: %w", err))
		return err
	}

	client, err := authclient.New(authclient.Config{
		BaseURL:     serverURL,
		Transport:   retryClient,
		Credentials: authclient.NewFileCredentialStore(credsFile),
		// Session-expired toasts surface on the displayer.
		Notifier: authclient.NotifierFunc(func(n authclient.Notification) {
			d.Toast(n.Title, n.Description, string(n.Severity))
		}),
	})
	if err != nil {
		d.Fatal(err)
		return err
	}

	// Pick up any session persisted by a previous run.
	if err := client.Restore(); err != nil {
		d.Fatal(fmt.Errorf("failed to restore session: %w", err))
		return err
	}

	if client.Session().Authenticated() {
		d.SessionRestored()
	} else {
		d.SessionEmpty()
		if googleCredential == "" {
			err := errors.New(
				"no session and no credential; provide -credential or GOOGLE_CREDENTIAL",
			)
			d.Fatal(err)
			return err
		}
		d.LoggingIn()
		if _, err := client.LoginWithGoogle(ctx, googleCredential); err != nil {
			d.LoginFailed(err)
			return err
		}
		d.LoginOK()
	}

	// Make an authenticated call. An expired access token is handled
	// transparently: one refresh, one replay.
	before := client.Session().AccessToken

	d.RequestStart(pingPath)
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := client.NewRequest(reqCtx, http.MethodGet, pingPath, nil)
	if err != nil {
		d.Fatal(err)
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		d.RequestFailed(err)
		return err
	}
	defer resp.Body.Close()
	d.RequestOK(resp.StatusCode)

	session := client.Session()
	if session.AccessToken != before && session.Authenticated() {
		d.TokenRefreshed()
	}

	if !session.Authenticated() {
		// The refresh token was rejected; the toast has already fired.
		return errors.New("session expired")
	}

	tokenPreview := session.AccessToken
	if len(tokenPreview) > 50 {
		tokenPreview = tokenPreview[:50]
	}
	d.Done(tokenPreview)

	return nil
}
