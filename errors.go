package authclient

import "errors"

// Refresh failure taxonomy. Both refresh sentinels are terminal for the
// current session: the coordinator clears stored credentials on either one.
var (
	// ErrNoRefreshToken indicates a refresh was attempted with no refresh
	// token on record. No network call is made in this case.
	ErrNoRefreshToken = errors.New("no refresh token on record")

	// ErrRefreshRejected indicates the refresh endpoint rejected the refresh
	// token, failed at the transport level, or returned an unusable payload.
	ErrRefreshRejected = errors.New("refresh rejected")

	// ErrSessionExpired is delivered to queued requests when the session is
	// cleared out from under them (logout, terminal refresh failure).
	ErrSessionExpired = errors.New("session expired")
)
