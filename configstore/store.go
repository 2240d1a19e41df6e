// Package configstore persists the scalar settings the extension needs:
// the operator base URL, the bearer token, and the module enablement flag.
package configstore

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/neutromelabs/account-status/logging"
)

// Configuration paths, as stored in core_config_data.
const (
	BaseURLPath = "neutromelabs/cloud/base_url"
	TokenPath   = "neutromelabs/cloud/token"
	EnabledPath = "neutromelabs/general/enabled"
)

// ErrNotFound is returned by a Backend when the path has no value.
var ErrNotFound = errors.New("configstore: value not found")

// Backend is a key-value configuration system.
type Backend interface {
	Get(ctx context.Context, path string) (string, error)
	Set(ctx context.Context, path, value string) error
}

// Config is the typed view over a Backend. Reads never fail: a missing value
// or a backend error both read as "".
type Config struct {
	backend Backend
	logger  *zap.Logger
}

// New wraps backend.
func New(backend Backend, logger *zap.Logger) *Config {
	return &Config{backend: backend, logger: logging.OrNop(logger)}
}

// BaseURL returns the configured operator base URL.
func (c *Config) BaseURL(ctx context.Context) string {
	return c.get(ctx, BaseURLPath)
}

// Token returns the last persisted bearer token.
func (c *Config) Token(ctx context.Context) string {
	return c.get(ctx, TokenPath)
}

// SaveToken overwrites the stored token. The value is not validated.
func (c *Config) SaveToken(ctx context.Context, token string) error {
	return c.backend.Set(ctx, TokenPath, token)
}

// SetBaseURL overwrites the operator base URL.
func (c *Config) SetBaseURL(ctx context.Context, baseURL string) error {
	return c.backend.Set(ctx, BaseURLPath, baseURL)
}

// ModuleEnabled reports whether the extension is switched on. An unset flag
// means enabled.
func (c *Config) ModuleEnabled(ctx context.Context) bool {
	switch strings.ToLower(strings.TrimSpace(c.get(ctx, EnabledPath))) {
	case "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

func (c *Config) get(ctx context.Context, path string) string {
	value, err := c.backend.Get(ctx, path)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Error("configstore: read failed", zap.String("path", path), zap.Error(err))
		}
		return ""
	}
	return value
}
