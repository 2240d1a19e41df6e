// Package callback decodes the one-time token delivered on the admin
// page's "callback" query parameter.
package callback

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/neutromelabs/account-status/account"
	"github.com/neutromelabs/account-status/logging"
)

// Param is the request parameter carrying the encoded token.
const Param = "callback"

var errLineBreak = errors.New("line break in encoded value")

// Source extracts callback tokens from request parameters.
type Source struct {
	logger *zap.Logger
}

// NewSource returns a Source that reports decode failures to logger.
func NewSource(logger *zap.Logger) *Source {
	return &Source{logger: logging.OrNop(logger)}
}

// Token returns the decoded callback token. A missing or empty parameter
// yields ("", nil) without logging. A value that is not strict standard
// base64 is logged once and returned as a ReasonDecode error.
func (s *Source) Token(params url.Values) (string, error) {
	raw := params.Get(Param)
	if raw == "" {
		return "", nil
	}

	decoded, err := decode(raw)
	if err != nil {
		s.logger.Warn("callback: invalid base64 in callback parameter")
		return "", account.Fail(account.ReasonDecode, "callback.Token", err)
	}
	return decoded, nil
}

// decode rejects anything outside the base64 alphabet, including the CR/LF
// the standard decoder would otherwise skip, and non-canonical padding bits.
func decode(raw string) (string, error) {
	if strings.ContainsAny(raw, "\r\n") {
		return "", errLineBreak
	}
	b, err := base64.StdEncoding.Strict().DecodeString(raw)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
