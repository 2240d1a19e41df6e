package tui

// MsgBanner signals that the banner/title should be displayed.
type MsgBanner struct{}

// MsgConfigLoaded reports which configuration backend is in use.
type MsgConfigLoaded struct {
	Backend string
	BaseURL string
}

// MsgCallbackProvided signals that a callback token came with the request.
type MsgCallbackProvided struct{}

// MsgResolving signals that the account status is being refreshed.
type MsgResolving struct{}

// MsgModuleDisabled signals that the module is switched off.
type MsgModuleDisabled struct{ Notice string }

// MsgResolved carries the resolved account status.
type MsgResolved struct {
	Email         string
	SignedIn      bool
	StatusMessage string
	SignInURL     string
	Failed        bool
}

// MsgFatal signals a fatal error that should terminate the flow.
type MsgFatal struct{ Err error }
