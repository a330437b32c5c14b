package authclient

import (
	"fmt"
	"io"
)

// Severity classifies a user-facing notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a user-facing signal, typically rendered as a toast by the
// embedding application.
type Notification struct {
	Title       string
	Description string
	Severity    Severity
}

// Notifier receives user-facing notifications from the client. The only
// notification the library itself emits is the session-expired signal, fired
// exactly once per terminal refresh failure.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// NoopNotifier discards all notifications. Used when the embedding
// application has no user-facing surface, and in tests.
type NoopNotifier struct{}

func (NoopNotifier) Notify(Notification) {}

// WriterNotifier writes notifications as plain text lines to w.
type WriterNotifier struct {
	w io.Writer
}

// NewWriterNotifier creates a WriterNotifier that writes to w.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

func (n *WriterNotifier) Notify(msg Notification) {
	fmt.Fprintf(n.w, "[%s] %s: %s\n", msg.Severity, msg.Title, msg.Description)
}

func sessionExpiredNotification() Notification {
	return Notification{
		Title:       "Session expired",
		Description: "Your session has expired. Please sign in again.",
		Severity:    SeverityError,
	}
}
