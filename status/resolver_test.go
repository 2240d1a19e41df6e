package status

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/neutromelabs/account-status/account"
	"github.com/neutromelabs/account-status/apiclient"
	"github.com/neutromelabs/account-status/callback"
	"github.com/neutromelabs/account-status/configstore"
)

type fakeRefresher struct {
	calls  int
	record account.UserRecord
	err    error
	panic  any
	gotTok string
}

func (f *fakeRefresher) RefreshAuth(_ context.Context, token string) (account.UserRecord, error) {
	f.calls++
	f.gotTok = token
	if f.panic != nil {
		panic(f.panic)
	}
	return f.record, f.err
}

func callbackParams(token string) url.Values {
	return url.Values{callback.Param: {base64.StdEncoding.EncodeToString([]byte(token))}}
}

func newObserved() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestResolve_Paths(t *testing.T) {
	tests := []struct {
		name        string
		params      url.Values
		refresher   *fakeRefresher
		wantMessage string
		wantEmail   string
		wantSigned  bool
		wantWarns   int
		wantToken   string
	}{
		{
			name:        "callback and email",
			params:      callbackParams("cb"),
			refresher:   &fakeRefresher{record: account.UserRecord{"email": "e@x.com"}},
			wantMessage: MessageRefreshed,
			wantEmail:   "e@x.com",
			wantSigned:  true,
			wantToken:   "cb",
		},
		{
			name:        "callback without email",
			params:      callbackParams("cb"),
			refresher:   &fakeRefresher{record: account.UserRecord{}},
			wantMessage: MessageNoEmail,
			wantSigned:  false,
			wantWarns:   1,
			wantToken:   "cb",
		},
		{
			name:        "stored token with email",
			params:      nil,
			refresher:   &fakeRefresher{record: account.UserRecord{"email": "e@x.com"}},
			wantMessage: MessageNoEmail,
			wantEmail:   "e@x.com",
			wantSigned:  true,
			wantWarns:   1,
		},
		{
			name:        "empty email string",
			params:      callbackParams("cb"),
			refresher:   &fakeRefresher{record: account.UserRecord{"email": ""}},
			wantMessage: MessageNoEmail,
			wantSigned:  true,
			wantWarns:   1,
			wantToken:   "cb",
		},
		{
			name:        "refresh failed",
			params:      callbackParams("cb"),
			refresher:   &fakeRefresher{err: account.Fail(account.ReasonHTTPStatus, "test", nil)},
			wantMessage: MessageFailed,
			wantWarns:   1,
			wantToken:   "cb",
		},
		{
			name:        "bad callback falls back",
			params:      url.Values{callback.Param: {"%%%"}},
			refresher:   &fakeRefresher{err: account.Fail(account.ReasonSchema, "test", nil)},
			wantMessage: MessageFailed,
			wantWarns:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := newObserved()
			r := NewResolver(tt.params, callback.NewSource(logger), tt.refresher, logger)

			res := r.Resolve(context.Background())

			if res.StatusMessage != tt.wantMessage || r.StatusMessage() != tt.wantMessage {
				t.Errorf("StatusMessage = %q, want %q", res.StatusMessage, tt.wantMessage)
			}
			email, _ := r.Email()
			if email != tt.wantEmail {
				t.Errorf("Email() = %q, want %q", email, tt.wantEmail)
			}
			if r.IsSignedIn() != tt.wantSigned {
				t.Errorf("IsSignedIn() = %v, want %v", r.IsSignedIn(), tt.wantSigned)
			}
			if tt.refresher.gotTok != tt.wantToken {
				t.Errorf("refresher got token %q, want %q", tt.refresher.gotTok, tt.wantToken)
			}
			if n := logs.FilterLevelExact(zapcore.WarnLevel).Len(); n != tt.wantWarns {
				t.Errorf("Expected %d warnings, got %d", tt.wantWarns, n)
			}
		})
	}
}

func TestResolve_FailureLogsOnlyWhetherCallbackWasPresent(t *testing.T) {
	logger, logs := newObserved()
	refresher := &fakeRefresher{err: account.Fail(account.ReasonTransport, "test", nil)}
	r := NewResolver(callbackParams("secret-cb"), callback.NewSource(logger), refresher, logger)

	r.Resolve(context.Background())

	entries := logs.FilterMessage("status: failed to refresh token or get user record").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one failure warning, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["callbackTokenProvided"] != true {
		t.Errorf("callbackTokenProvided = %v", fields["callbackTokenProvided"])
	}
	for k, v := range fields {
		if v == "secret-cb" {
			t.Errorf("Field %s leaked the callback token", k)
		}
	}
	if account.ReasonOf(r.Failure()) != account.ReasonTransport {
		t.Errorf("Failure() = %v", r.Failure())
	}
}

func TestResolve_IsMemoized(t *testing.T) {
	refresher := &fakeRefresher{err: account.Fail(account.ReasonTransport, "test", nil)}
	r := NewResolver(nil, callback.NewSource(nil), refresher, nil)

	if r.State() != Unresolved {
		t.Fatalf("State() = %s before Resolve", r.State())
	}
	if r.StatusMessage() != "" || r.IsSignedIn() {
		t.Errorf("Expected empty accessors before Resolve")
	}

	first := r.Resolve(context.Background())
	refresher.err = nil
	refresher.record = account.UserRecord{"email": "late@x.com"}
	second := r.Resolve(context.Background())

	if refresher.calls != 1 {
		t.Errorf("Expected 1 refresh call, got %d", refresher.calls)
	}
	if first.StatusMessage != second.StatusMessage || second.StatusMessage != MessageFailed {
		t.Errorf("Expected cached failure, got %q then %q", first.StatusMessage, second.StatusMessage)
	}
	if r.State() != Resolved {
		t.Errorf("State() = %s after Resolve", r.State())
	}
}

func TestResolve_RecoversPanic(t *testing.T) {
	logger, logs := newObserved()
	refresher := &fakeRefresher{panic: "nil map write"}
	r := NewResolver(nil, callback.NewSource(logger), refresher, logger)

	res := r.Resolve(context.Background())

	if res.StatusMessage != MessageUnexpected {
		t.Errorf("StatusMessage = %q, want %q", res.StatusMessage, MessageUnexpected)
	}
	if r.State() != Resolved {
		t.Errorf("Expected Resolved after a panic")
	}
	if logs.FilterField(zap.String("severity", "critical")).Len() != 1 {
		t.Errorf("Expected one critical entry")
	}
	r.Resolve(context.Background())
	if refresher.calls != 1 {
		t.Errorf("Expected no retry after a panic, got %d calls", refresher.calls)
	}
}

// End to end through the real API client and config store.

type cloud struct {
	server *httptest.Server
	calls  atomic.Int32
	status int
	body   any
	auth   atomic.Value
}

func newCloud(t *testing.T, status int, body any) *cloud {
	t.Helper()
	c := &cloud{status: status, body: body}
	c.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.calls.Add(1)
		c.auth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(c.status)
		json.NewEncoder(w).Encode(c.body)
	}))
	t.Cleanup(c.server.Close)
	return c
}

func newStack(t *testing.T, c *cloud, params url.Values) (*Resolver, *configstore.Config, *observer.ObservedLogs) {
	t.Helper()
	logger, logs := newObserved()
	cfg := configstore.New(configstore.NewMemoryBackend(map[string]string{
		configstore.BaseURLPath: c.server.URL,
		configstore.TokenPath:   "stored",
	}), logger)
	client, err := apiclient.New(cfg, apiclient.WithLogger(logger))
	if err != nil {
		t.Fatalf("apiclient.New() error = %v", err)
	}
	return NewResolver(params, callback.NewSource(logger), client, logger), cfg, logs
}

func TestStack_RoundTrip(t *testing.T) {
	c := newCloud(t, http.StatusOK, map[string]any{
		"token":  "T",
		"record": map[string]any{"email": "e@x.com"},
	})
	r, cfg, _ := newStack(t, c, callbackParams("cb"))

	r.Resolve(context.Background())
	r.Resolve(context.Background())

	if c.calls.Load() != 1 {
		t.Errorf("Expected exactly 1 outbound call, got %d", c.calls.Load())
	}
	if got := cfg.Token(context.Background()); got != "T" {
		t.Errorf("stored token = %q, want T", got)
	}
	if email, _ := r.Email(); email != "e@x.com" || !r.IsSignedIn() {
		t.Errorf("Email() = %q, IsSignedIn() = %v", email, r.IsSignedIn())
	}
	if r.StatusMessage() != MessageRefreshed {
		t.Errorf("StatusMessage() = %q", r.StatusMessage())
	}
	if c.auth.Load() != "Bearer cb" {
		t.Errorf("Authorization = %v", c.auth.Load())
	}
}

func TestStack_AbsentCallbackUsesStoredTokenWithoutWarning(t *testing.T) {
	c := newCloud(t, http.StatusOK, map[string]any{
		"token":  "T",
		"record": map[string]any{"email": "e@x.com"},
	})
	r, _, logs := newStack(t, c, url.Values{})

	r.Resolve(context.Background())

	if c.auth.Load() != "Bearer stored" {
		t.Errorf("Authorization = %v, want stored token", c.auth.Load())
	}
	if logs.FilterMessage("callback: invalid base64 in callback parameter").Len() != 0 {
		t.Errorf("Decode warning logged for an absent callback")
	}
}

func TestStack_RecordWithoutEmail(t *testing.T) {
	c := newCloud(t, http.StatusOK, map[string]any{"token": "T", "record": map[string]any{}})
	r, _, _ := newStack(t, c, callbackParams("cb"))

	r.Resolve(context.Background())

	if r.StatusMessage() != MessageNoEmail {
		t.Errorf("StatusMessage() = %q", r.StatusMessage())
	}
	if r.IsSignedIn() {
		t.Errorf("IsSignedIn() = true without email")
	}
}

func TestStack_ServerError(t *testing.T) {
	c := newCloud(t, http.StatusInternalServerError, map[string]any{"message": "boom"})
	r, cfg, _ := newStack(t, c, callbackParams("cb"))

	r.Resolve(context.Background())

	if r.StatusMessage() != MessageFailed {
		t.Errorf("StatusMessage() = %q", r.StatusMessage())
	}
	if got := cfg.Token(context.Background()); got != "stored" {
		t.Errorf("stored token = %q, want unchanged", got)
	}
	if account.ReasonOf(r.Failure()) != account.ReasonHTTPStatus {
		t.Errorf("Failure() = %v", r.Failure())
	}
}

func TestStack_MissingToken(t *testing.T) {
	c := newCloud(t, http.StatusOK, map[string]any{"record": map[string]any{"email": "e@x.com"}})
	r, cfg, _ := newStack(t, c, callbackParams("cb"))

	r.Resolve(context.Background())

	if r.StatusMessage() != MessageFailed {
		t.Errorf("StatusMessage() = %q, want failure path", r.StatusMessage())
	}
	if got := cfg.Token(context.Background()); got != "stored" {
		t.Errorf("stored token = %q, want unchanged", got)
	}
	if account.ReasonOf(r.Failure()) != account.ReasonSchema {
		t.Errorf("Failure() = %v", r.Failure())
	}
}
