// Package status resolves the account-link status shown on the admin page.
// A Resolver lives for one render/request cycle and contacts the cloud API
// at most once.
package status

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neutromelabs/account-status/account"
	"github.com/neutromelabs/account-status/logging"
)

// Status messages shown to the operator.
const (
	MessageRefreshed  = "Account status refreshed."
	MessageNoEmail    = "Token seems valid, but could not retrieve email. Please check NeutromeLabs account details."
	MessageFailed     = "Failed to verify account. It might be invalid or expired."
	MessageUnexpected = "An unexpected error occurred. Please check logs."
)

// State is the resolver's position in its one-way lifecycle.
type State int

const (
	Unresolved State = iota
	Resolved
)

func (s State) String() string {
	if s == Resolved {
		return "resolved"
	}
	return "unresolved"
}

// TokenSource yields the callback token carried by a request.
type TokenSource interface {
	Token(params url.Values) (string, error)
}

// Refresher exchanges a token for the account record.
type Refresher interface {
	RefreshAuth(ctx context.Context, currentToken string) (account.UserRecord, error)
}

// Result is the display-ready outcome of a resolution.
type Result struct {
	Email         string
	HasEmail      bool
	StatusMessage string
	Failure       error
}

// Resolver runs the refresh flow once and caches the outcome.
type Resolver struct {
	params    url.Values
	source    TokenSource
	refresher Refresher
	logger    *zap.Logger

	state  State
	result Result
}

// NewResolver creates a Resolver for one cycle over the given request params.
func NewResolver(params url.Values, source TokenSource, refresher Refresher, logger *zap.Logger) *Resolver {
	return &Resolver{
		params:    params,
		source:    source,
		refresher: refresher,
		logger:    logging.OrNop(logger).With(zap.String("cycle_id", uuid.NewString())),
	}
}

// Resolve runs the flow on the first call and returns the cached Result on
// every later call. Failures are not retried within the cycle.
func (r *Resolver) Resolve(ctx context.Context) Result {
	if r.state == Resolved {
		return r.result
	}
	r.result = r.run(ctx)
	r.state = Resolved
	return r.result
}

func (r *Resolver) run(ctx context.Context) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			logging.Critical(r.logger, "status: error processing token",
				zap.Any("exception", p))
			res = Result{
				StatusMessage: MessageUnexpected,
				Failure:       fmt.Errorf("status: panic: %v", p),
			}
		}
	}()

	// A decode failure has been logged by the source and reads as no token.
	callbackToken, _ := r.source.Token(r.params)

	record, err := r.refresher.RefreshAuth(ctx, callbackToken)
	if err != nil || record == nil {
		r.logger.Warn("status: failed to refresh token or get user record",
			zap.Bool("callbackTokenProvided", callbackToken != ""),
			zap.Stringer("reason", account.ReasonOf(err)),
		)
		return Result{StatusMessage: MessageFailed, Failure: err}
	}

	email, hasEmail := record.Email()
	res = Result{Email: email, HasEmail: hasEmail}
	if callbackToken != "" && email != "" {
		res.StatusMessage = MessageRefreshed
		return res
	}

	res.StatusMessage = MessageNoEmail
	r.logger.Warn("status: token refreshed, but no email in user record",
		zap.Any("record", map[string]any(record)))
	return res
}

// State reports whether Resolve has run.
func (r *Resolver) State() State {
	return r.state
}

// Email returns the account email after resolution.
func (r *Resolver) Email() (string, bool) {
	if r.state != Resolved {
		return "", false
	}
	return r.result.Email, r.result.HasEmail
}

// IsSignedIn reports whether resolution produced an email.
func (r *Resolver) IsSignedIn() bool {
	_, ok := r.Email()
	return ok
}

// StatusMessage returns the operator-facing message, or "" before resolution.
func (r *Resolver) StatusMessage() string {
	if r.state != Resolved {
		return ""
	}
	return r.result.StatusMessage
}

// Failure returns the classified error behind a failed resolution.
func (r *Resolver) Failure() error {
	if r.state != Resolved {
		return nil
	}
	return r.result.Failure
}
