package tui

import (
	"fmt"
	"io"

	tea "charm.land/bubbletea/v2"
)

// Displayer abstracts all output from the account status flow.
type Displayer interface {
	Banner()
	ConfigLoaded(backend, baseURL string)
	CallbackProvided()
	Resolving()
	ModuleDisabled(notice string)
	Resolved(msg MsgResolved)
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
	fmt.Fprintln(p.w, "=== NeutromeLabs Account Status ===")
	fmt.Fprintln(p.w)
}

func (p *PlainDisplayer) ConfigLoaded(backend, baseURL string) {
	if baseURL == "" {
		baseURL = "(not configured)"
	}
	fmt.Fprintf(p.w, "Config backend: %s\n", backend)
	fmt.Fprintf(p.w, "Base URL: %s\n", baseURL)
}

func (p *PlainDisplayer) CallbackProvided() {
	fmt.Fprintln(p.w, "Callback token received, exchanging...")
}

func (p *PlainDisplayer) Resolving() {
	fmt.Fprintln(p.w, "Refreshing account status...")
}

func (p *PlainDisplayer) ModuleDisabled(notice string) {
	fmt.Fprintln(p.w, notice)
}

func (p *PlainDisplayer) Resolved(msg MsgResolved) {
	fmt.Fprintln(p.w, "----------------------------------------")
	if msg.SignedIn {
		fmt.Fprintf(p.w, "Signed in as: %s\n", msg.Email)
	} else {
		fmt.Fprintln(p.w, "Not signed in")
	}
	fmt.Fprintf(p.w, "Status: %s\n", msg.StatusMessage)
	if msg.SignInURL != "" {
		fmt.Fprintf(p.w, "Sign in: %s\n", msg.SignInURL)
	}
	fmt.Fprintln(p.w, "----------------------------------------")
}

func (p *PlainDisplayer) Fatal(err error) {
	fmt.Fprintf(p.w, "Error: %v\n", err)
}

// NoopDisplayer is a no-op implementation used in tests.
type NoopDisplayer struct{}

func (NoopDisplayer) Banner()                  {}
func (NoopDisplayer) ConfigLoaded(_, _ string) {}
func (NoopDisplayer) CallbackProvided()        {}
func (NoopDisplayer) Resolving()               {}
func (NoopDisplayer) ModuleDisabled(_ string)  {}
func (NoopDisplayer) Resolved(_ MsgResolved)   {}
func (NoopDisplayer) Fatal(_ error)            {}

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

func (t *ProgramDisplayer) ConfigLoaded(backend, baseURL string) {
	t.p.Send(MsgConfigLoaded{Backend: backend, BaseURL: baseURL})
}

func (t *ProgramDisplayer) CallbackProvided() {
	t.p.Send(MsgCallbackProvided{})
}

func (t *ProgramDisplayer) Resolving() {
	t.p.Send(MsgResolving{})
}

func (t *ProgramDisplayer) ModuleDisabled(notice string) {
	t.p.Send(MsgModuleDisabled{Notice: notice})
}

func (t *ProgramDisplayer) Resolved(msg MsgResolved) {
	t.p.Send(msg)
}

func (t *ProgramDisplayer) Fatal(err error) {
	t.p.Send(MsgFatal{Err: err})
}
