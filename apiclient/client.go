// Package apiclient talks to the NeutromeLabs cloud API.
package apiclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/neutromelabs/account-status/account"
	"github.com/neutromelabs/account-status/configstore"
	"github.com/neutromelabs/account-status/logging"
)

const (
	apiPrefix       = "/api"
	authRefreshPath = "/collections/users/auth-refresh"

	defaultRequestTimeout = 10 * time.Second
)

var errNotObject = errors.New("response is not a JSON object")

// Client issues authenticated requests against the configured base URL.
type Client struct {
	config  *configstore.Config
	http    *retry.Client
	logger  *zap.Logger
	timeout time.Duration
	base    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.base = h }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New builds a Client. Failed calls are never retried.
func New(config *configstore.Config, opts ...Option) (*Client, error) {
	c := &Client{
		config:  config,
		timeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrNop(c.logger)
	if c.base == nil {
		c.base = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	// Every status comes back as a response; fetch classifies it.
	rc, err := retry.NewClient(
		retry.WithHTTPClient(c.base),
		retry.WithMaxRetries(0),
		retry.WithRetryableChecker(func(error, *http.Response) bool { return false }),
		retry.WithNoLogging(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http client: %w", err)
	}
	c.http = rc
	return c, nil
}

// RefreshAuth exchanges currentToken, or the stored token when currentToken
// is empty, for a fresh token and the account record. The new token is
// persisted before the record is returned. Every failure is logged here and
// returned as an *account.Error.
func (c *Client) RefreshAuth(ctx context.Context, currentToken string) (account.UserRecord, error) {
	const op = "apiclient.RefreshAuth"

	data, err := c.fetch(ctx, http.MethodPost, authRefreshPath, currentToken, nil, nil)
	if err != nil {
		return nil, err
	}

	newToken, hasToken := data["token"].(string)
	record, hasRecord := data["record"].(map[string]any)
	if !hasToken || !hasRecord {
		c.logger.Warn("apiclient: auth-refresh response missing token or record",
			zap.Any("response", data))
		return nil, account.Fail(account.ReasonSchema, op, nil)
	}

	if err := c.config.SaveToken(ctx, newToken); err != nil {
		logging.Critical(c.logger, "apiclient: failed to persist refreshed token", zap.Error(err))
		return nil, account.Fail(account.ReasonStore, op, err)
	}
	c.logger.Info("apiclient: token refreshed and saved")

	return account.UserRecord(record), nil
}

// fetch sends one request to baseURL + "/api" + path and decodes a 200 JSON
// object response. An empty token means the stored one. header entries
// override the defaults.
func (c *Client) fetch(
	ctx context.Context,
	method, path, token string,
	body any,
	header http.Header,
) (map[string]any, error) {
	const op = "apiclient.fetch"

	baseURL := c.config.BaseURL(ctx)
	if baseURL == "" {
		c.logger.Error("apiclient: base url is not configured", zap.String("path", configstore.BaseURLPath))
		return nil, account.Fail(account.ReasonNotConfigured, op, nil)
	}
	apiURL := strings.TrimRight(baseURL, "/") + apiPrefix + path

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			logging.Critical(c.logger, "apiclient: failed to encode request body", zap.Error(err))
			return nil, account.Fail(account.ReasonTransport, op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, apiURL, reader)
	if err != nil {
		logging.Critical(c.logger, "apiclient: exception during API request",
			zap.String("url", apiURL), zap.Error(err))
		return nil, account.Fail(account.ReasonTransport, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token == "" {
		token = c.config.Token(ctx)
	}
	(&oauth2.Token{AccessToken: token}).SetAuthHeader(req)
	for k, v := range header {
		req.Header[http.CanonicalHeaderKey(k)] = v
	}

	resp, err := c.http.DoWithContext(reqCtx, req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		logging.Critical(c.logger, "apiclient: exception during API request",
			zap.String("url", apiURL), zap.Error(err))
		return nil, account.Fail(account.ReasonTransport, op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		logging.Critical(c.logger, "apiclient: failed to read response",
			zap.String("url", apiURL), zap.Error(err))
		return nil, account.Fail(account.ReasonTransport, op, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("apiclient: API request failed",
			zap.String("url", apiURL),
			zap.Int("status", resp.StatusCode),
			zap.String("response", string(respBody)),
		)
		return nil, account.Fail(account.ReasonHTTPStatus, op, &oauth2.RetrieveError{
			Response: resp,
			Body:     respBody,
		})
	}

	var data map[string]any
	if err := json.Unmarshal(respBody, &data); err != nil || data == nil {
		if err == nil {
			err = errNotObject
		}
		c.logger.Error("apiclient: failed to parse API response",
			zap.String("url", apiURL), zap.Error(err))
		return nil, account.Fail(account.ReasonParse, op, err)
	}

	return data, nil
}
