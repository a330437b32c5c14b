package tui

// MsgBanner signals that the banner/title should be displayed.
type MsgBanner struct{}

// MsgSessionRestored signals that a persisted session was found on disk.
type MsgSessionRestored struct{}

// MsgSessionEmpty signals that no persisted session was found.
type MsgSessionEmpty struct{}

// MsgLoggingIn signals that the Google credential exchange has started.
type MsgLoggingIn struct{}

// MsgLoginOK signals a successful login.
type MsgLoginOK struct{}

// MsgLoginFailed signals that the login call failed.
type MsgLoginFailed struct{ Err error }

// MsgRequestStart signals that an authenticated API call is starting.
type MsgRequestStart struct{ Path string }

// MsgRequestOK signals that an API call completed.
type MsgRequestOK struct{ Status int }

// MsgRequestFailed signals that an API call failed at the transport level.
type MsgRequestFailed struct{ Err error }

// MsgTokenRefreshed signals that the access token changed during a call,
// meaning an unauthorized response was handled transparently.
type MsgTokenRefreshed struct{}

// MsgToast carries a user-facing notification from the client library.
type MsgToast struct {
	Title       string
	Description string
	Severity    string
}

// MsgDone signals successful completion of the demo flow.
type MsgDone struct{ TokenPreview string }

// MsgFatal signals a fatal error that should terminate the flow.
type MsgFatal struct{ Err error }
