package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"golang.org/x/oauth2"
)

func TestLoginWithGoogle_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/google" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}

		var body struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token != "google-cred" {
			http.Error(w, "bad credential", http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "T1",
			"refresh_token": "R1",
			"email":         "ada@example.com",
			"name":          "Ada",
		})
	}))
	defer server.Close()

	tempDir := t.TempDir()
	creds := NewFileCredentialStore(filepath.Join(tempDir, "creds.json"))
	client, err := New(Config{
		BaseURL:     server.URL,
		Transport:   WrapHTTPClient(http.DefaultClient),
		Credentials: creds,
		Logger:      discardLogger(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	profile, err := client.LoginWithGoogle(context.Background(), "google-cred")
	if err != nil {
		t.Fatalf("LoginWithGoogle() error = %v", err)
	}

	session := client.Session()
	if session.AccessToken != "T1" || session.RefreshToken != "R1" {
		t.Errorf("Session tokens = %q/%q, want T1/R1", session.AccessToken, session.RefreshToken)
	}

	// Profile keeps the identity fields but never the tokens
	var fields map[string]any
	if err := json.Unmarshal(profile, &fields); err != nil {
		t.Fatalf("Returned profile is not valid JSON: %v", err)
	}
	if fields["email"] != "ada@example.com" || fields["name"] != "Ada" {
		t.Errorf("Profile fields = %v", fields)
	}
	if _, ok := fields["access_token"]; ok {
		t.Errorf("Profile leaked access_token: %s", profile)
	}
	if _, ok := fields["refresh_token"]; ok {
		t.Errorf("Profile leaked refresh_token: %s", profile)
	}

	// Credentials are persisted for a later Restore
	saved, err := creds.Load()
	if err != nil {
		t.Fatalf("Failed to load persisted credentials: %v", err)
	}
	if saved == nil {
		t.Fatal("No credentials persisted after login")
	}
	if saved.AccessToken != "T1" || saved.RefreshToken != "R1" {
		t.Errorf("Persisted tokens = %q/%q, want T1/R1", saved.AccessToken, saved.RefreshToken)
	}
	if string(saved.Profile) != string(profile) {
		t.Errorf("Persisted profile = %s, want %s", saved.Profile, profile)
	}
}

func TestLoginWithGoogle_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid credential"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	_, err := client.LoginWithGoogle(context.Background(), "bad-cred")
	if err == nil {
		t.Fatal("LoginWithGoogle() with rejected credential expected error")
	}

	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		t.Errorf("error %v does not wrap *oauth2.RetrieveError", err)
	} else if retrieveErr.Response.StatusCode != http.StatusUnauthorized {
		t.Errorf("RetrieveError status = %d, want 401", retrieveErr.Response.StatusCode)
	}

	if session := client.Session(); session.Authenticated() {
		t.Errorf("Failed login populated the session: %+v", session)
	}
}

func TestLoginWithGoogle_MalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "not json"},
		{"missing access_token", `{"refresh_token":"R1","email":"a@b.c"}`},
		{"missing refresh_token", `{"access_token":"T1","email":"a@b.c"}`},
		{"empty access_token", `{"access_token":"","refresh_token":"R1"}`},
		{"access_token wrong type", `{"access_token":42,"refresh_token":"R1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Content-Type", "application/json")
					w.Write([]byte(tt.body))
				}),
			)
			defer server.Close()

			client := newTestClient(t, server.URL, nil)

			if _, err := client.LoginWithGoogle(context.Background(), "cred"); err == nil {
				t.Error("LoginWithGoogle() expected error, got nil")
			}
			if session := client.Session(); session.Authenticated() {
				t.Errorf("Malformed login populated the session: %+v", session)
			}
		})
	}
}

func TestLogout_ClearsSessionAndCredentials(t *testing.T) {
	tempDir := t.TempDir()
	creds := NewFileCredentialStore(filepath.Join(tempDir, "creds.json"))
	client, err := New(Config{
		BaseURL:     "http://localhost:1",
		Transport:   WrapHTTPClient(http.DefaultClient),
		Credentials: creds,
		Logger:      discardLogger(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	client.Store().SetSession("T1", "R1", json.RawMessage(`{"name":"Ada"}`))
	client.Logout()

	if session := client.Session(); session.Authenticated() {
		t.Errorf("Session survives logout: %+v", session)
	}
	saved, err := creds.Load()
	if err != nil {
		t.Fatalf("Failed to load credentials after logout: %v", err)
	}
	if saved != nil {
		t.Errorf("Credentials survive logout: %+v", saved)
	}
}
