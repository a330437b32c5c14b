package tui

import (
	"fmt"
	"io"

	tea "charm.land/bubbletea/v2"
)

// Displayer abstracts all output from the session demo flow.
type Displayer interface {
	Banner()
	SessionRestored()
	SessionEmpty()
	LoggingIn()
	LoginOK()
	LoginFailed(err error)
	RequestStart(path string)
	RequestOK(status int)
	RequestFailed(err error)
	TokenRefreshed()
	Toast(title, description, severity string)
	Done(tokenPreview string)
	Fatal(err error)
}

// PlainDisplayer writes plain text output to w.
// Used when stderr is not a TTY (pipes, CI, SSH without pty).
type PlainDisplayer struct {
	w io.Writer
}

// NewPlainDisplayer creates a PlainDisplayer that writes to w.
func NewPlainDisplayer(w io.Writer) *PlainDisplayer {
	return &PlainDisplayer{w: w}
}

func (p *PlainDisplayer) Banner() {
	fmt.Fprintln(p.w, "=== Authenticated Session Client Demo ===")
	fmt.Fprintln(p.w)
}

func (p *PlainDisplayer) SessionRestored() {
	fmt.Fprintln(p.w, "Restored existing session from disk")
}

func (p *PlainDisplayer) SessionEmpty() {
	fmt.Fprintln(p.w, "No persisted session found")
}

func (p *PlainDisplayer) LoggingIn() {
	fmt.Fprintln(p.w, "Signing in with Google credential...")
}

func (p *PlainDisplayer) LoginOK() {
	fmt.Fprintln(p.w, "Signed in successfully!")
}

func (p *PlainDisplayer) LoginFailed(err error) {
	fmt.Fprintf(p.w, "Login failed: %v\n", err)
}

func (p *PlainDisplayer) RequestStart(path string) {
	fmt.Fprintf(p.w, "Calling %s...\n", path)
}

func (p *PlainDisplayer) RequestOK(status int) {
	fmt.Fprintf(p.w, "Request completed with status %d\n", status)
}

func (p *PlainDisplayer) RequestFailed(err error) {
	fmt.Fprintf(p.w, "Request failed: %v\n", err)
}

func (p *PlainDisplayer) TokenRefreshed() {
	fmt.Fprintln(p.w, "Access token was refreshed transparently")
}

func (p *PlainDisplayer) Toast(title, description, severity string) {
	fmt.Fprintf(p.w, "[%s] %s: %s\n", severity, title, description)
}

func (p *PlainDisplayer) Done(tokenPreview string) {
	fmt.Fprintln(p.w, "\n========================================")
	fmt.Fprintf(p.w, "Access Token: %s...\n", tokenPreview)
	fmt.Fprintln(p.w, "========================================")
}

func (p *PlainDisplayer) Fatal(err error) {
	fmt.Fprintf(p.w, "Error: %v\n", err)
}

// NoopDisplayer is a no-op implementation used in tests.
type NoopDisplayer struct{}

func (NoopDisplayer) Banner()               {}
func (NoopDisplayer) SessionRestored()      {}
func (NoopDisplayer) SessionEmpty()         {}
func (NoopDisplayer) LoggingIn()            {}
func (NoopDisplayer) LoginOK()              {}
func (NoopDisplayer) LoginFailed(_ error)   {}
func (NoopDisplayer) RequestStart(_ string) {}
func (NoopDisplayer) RequestOK(_ int)       {}
func (NoopDisplayer) RequestFailed(_ error) {}
func (NoopDisplayer) TokenRefreshed()       {}
func (NoopDisplayer) Toast(_, _, _ string)  {}
func (NoopDisplayer) Done(_ string)         {}
func (NoopDisplayer) Fatal(_ error)         {}

// ProgramDisplayer sends BubbleTea messages to a running tea.Program.
type ProgramDisplayer struct {
	p *tea.Program
}

// NewProgramDisplayer creates a ProgramDisplayer that sends messages to p.
func NewProgramDisplayer(p *tea.Program) *ProgramDisplayer {
	return &ProgramDisplayer{p: p}
}

func (t *ProgramDisplayer) Banner() {
	t.p.Send(MsgBanner{})
}

func (t *ProgramDisplayer) SessionRestored() {
	t.p.Send(MsgSessionRestored{})
}

func (t *ProgramDisplayer) SessionEmpty() {
	t.p.Send(MsgSessionEmpty{})
}

func (t *ProgramDisplayer) LoggingIn() {
	t.p.Send(MsgLoggingIn{})
}

func (t *ProgramDisplayer) LoginOK() {
	t.p.Send(MsgLoginOK{})
}

func (t *ProgramDisplayer) LoginFailed(err error) {
	t.p.Send(MsgLoginFailed{Err: err})
}

func (t *ProgramDisplayer) RequestStart(path string) {
	t.p.Send(MsgRequestStart{Path: path})
}

func (t *ProgramDisplayer) RequestOK(status int) {
	t.p.Send(MsgRequestOK{Status: status})
}

func (t *ProgramDisplayer) RequestFailed(err error) {
	t.p.Send(MsgRequestFailed{Err: err})
}

func (t *ProgramDisplayer) TokenRefreshed() {
	t.p.Send(MsgTokenRefreshed{})
}

func (t *ProgramDisplayer) Toast(title, description, severity string) {
	t.p.Send(MsgToast{Title: title, Description: description, Severity: severity})
}

func (t *ProgramDisplayer) Done(tokenPreview string) {
	t.p.Send(MsgDone{TokenPreview: tokenPreview})
}

func (t *ProgramDisplayer) Fatal(err error) {
	t.p.Send(MsgFatal{Err: err})
}
