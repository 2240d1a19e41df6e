package tui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func update(m Model, msgs ...any) Model {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestModel_ResolvedSignedIn(t *testing.T) {
	m := update(NewModel(),
		MsgBanner{},
		MsgConfigLoaded{Backend: "file", BaseURL: "https://cloud.example.com"},
		MsgCallbackProvided{},
		MsgResolving{},
		MsgResolved{
			Email:         "e@x.com",
			SignedIn:      true,
			StatusMessage: "Account status refreshed.",
			SignInURL:     "https://cloud.example.com/profile?wtoken=1&then=",
		},
	)

	if m.state != stateResolved {
		t.Fatalf("state = %v, want resolved", m.state)
	}
	out := m.viewResolved()
	for _, want := range []string{"e@x.com", "Account status refreshed.", "profile?wtoken=1"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if len(m.statusLines) != 4 {
		t.Errorf("Expected 4 status lines, got %d", len(m.statusLines))
	}
}

func TestModel_DisabledAndFatal(t *testing.T) {
	m := update(NewModel(), MsgModuleDisabled{Notice: "NeutromeLabs Core module is disabled."})
	if m.state != stateDisabled || !strings.Contains(m.viewDisabled(), "disabled") {
		t.Errorf("Expected disabled view, state = %v", m.state)
	}

	m = update(NewModel(), MsgFatal{Err: errors.New("config backend unreachable")})
	if m.state != stateError || !strings.Contains(m.viewError(), "config backend unreachable") {
		t.Errorf("Expected error view, state = %v", m.state)
	}
}

func TestPlainDisplayer(t *testing.T) {
	var buf bytes.Buffer
	d := NewPlainDisplayer(&buf)

	d.Banner()
	d.ConfigLoaded("memory", "")
	d.Resolving()
	d.Resolved(MsgResolved{StatusMessage: "Failed to verify account. It might be invalid or expired.", Failed: true})

	out := buf.String()
	for _, want := range []string{"(not configured)", "Not signed in", "Failed to verify account"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
