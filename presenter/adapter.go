// Package presenter maps a resolved account status onto what the admin
// surfaces render.
package presenter

import (
	"context"
	"strings"

	"github.com/neutromelabs/account-status/status"
)

// DisabledNotice replaces the status block when the module is switched off.
const DisabledNotice = "NeutromeLabs Core module is disabled."

// signInSuffix is appended to the profile URL; callers append the return
// path after "then=".
const signInSuffix = "/profile?wtoken=1&then="

// Settings is the configuration the adapter reads.
type Settings interface {
	BaseURL(ctx context.Context) string
	ModuleEnabled(ctx context.Context) bool
}

// ResolverFactory builds the resolver for the current cycle. It is only
// called when the module is enabled.
type ResolverFactory func() *status.Resolver

// View is the rendered account block.
type View struct {
	Disabled      bool   `json:"disabled"`
	Notice        string `json:"notice,omitempty"`
	Email         string `json:"email,omitempty"`
	SignedIn      bool   `json:"signed_in"`
	StatusMessage string `json:"status_message,omitempty"`
	SignInURL     string `json:"sign_in_url,omitempty"`
}

// Adapter exposes the account getters for one render cycle.
type Adapter struct {
	settings   Settings
	newResolve ResolverFactory
	forceOff   bool

	resolver *status.Resolver
}

// Option configures an Adapter.
type Option func(*Adapter)

// ForceDisabled treats the module as disabled regardless of configuration.
func ForceDisabled(off bool) Option {
	return func(a *Adapter) { a.forceOff = off }
}

// New returns an Adapter.
func New(settings Settings, factory ResolverFactory, opts ...Option) *Adapter {
	a := &Adapter{settings: settings, newResolve: factory}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Enabled reports whether the module is switched on.
func (a *Adapter) Enabled(ctx context.Context) bool {
	return !a.forceOff && a.settings.ModuleEnabled(ctx)
}

// SignInURL returns the profile sign-in link, or "" when no base URL is
// configured.
func (a *Adapter) SignInURL(ctx context.Context) string {
	base := a.settings.BaseURL(ctx)
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + signInSuffix
}

// AccountEmail resolves (once) and returns the account email. A disabled
// module reports no email.
func (a *Adapter) AccountEmail(ctx context.Context) (string, bool) {
	r, ok := a.enabledResolver(ctx)
	if !ok {
		return "", false
	}
	return r.Email()
}

// IsSignedIn resolves (once) and reports whether an email was found.
func (a *Adapter) IsSignedIn(ctx context.Context) bool {
	r, ok := a.enabledResolver(ctx)
	return ok && r.IsSignedIn()
}

// StatusMessage resolves (once) and returns the operator message, or
// DisabledNotice when the module is switched off.
func (a *Adapter) StatusMessage(ctx context.Context) string {
	r, ok := a.enabledResolver(ctx)
	if !ok {
		return DisabledNotice
	}
	return r.StatusMessage()
}

// Render builds the full view. When the module is disabled no resolver is
// created and nothing is sent to the cloud API.
func (a *Adapter) Render(ctx context.Context) View {
	r, ok := a.enabledResolver(ctx)
	if !ok {
		return View{Disabled: true, Notice: DisabledNotice}
	}

	email, _ := r.Email()
	return View{
		Email:         email,
		SignedIn:      r.IsSignedIn(),
		StatusMessage: r.StatusMessage(),
		SignInURL:     a.SignInURL(ctx),
	}
}

// enabledResolver returns the resolved resolver, or false without building
// one when the module is disabled.
func (a *Adapter) enabledResolver(ctx context.Context) (*status.Resolver, bool) {
	if !a.Enabled(ctx) {
		return nil, false
	}
	return a.resolve(ctx), true
}

func (a *Adapter) resolve(ctx context.Context) *status.Resolver {
	if a.resolver == nil {
		a.resolver = a.newResolve()
	}
	a.resolver.Resolve(ctx)
	return a.resolver
}
