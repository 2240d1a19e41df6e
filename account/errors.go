package account

import (
	"errors"
	"fmt"
)

// Reason classifies why a resolution step failed.
type Reason int

const (
	ReasonUnknown Reason = iota
	ReasonDecode         // callback parameter was not valid base64
	ReasonTransport      // request never produced a response
	ReasonHTTPStatus     // response status was not 200
	ReasonParse          // 200 response body was not a JSON object
	ReasonSchema         // JSON object lacked token or record
	ReasonNotConfigured  // base URL is empty
	ReasonStore          // refreshed token could not be persisted
)

func (r Reason) String() string {
	switch r {
	case ReasonDecode:
		return "decode_error"
	case ReasonTransport:
		return "transport_error"
	case ReasonHTTPStatus:
		return "http_status_error"
	case ReasonParse:
		return "parse_error"
	case ReasonSchema:
		return "schema_error"
	case ReasonNotConfigured:
		return "not_configured"
	case ReasonStore:
		return "store_error"
	default:
		return "unknown"
	}
}

// Error is a classified failure from the token source or the API client.
type Error struct {
	Reason Reason
	Op     string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Fail builds an *Error.
func Fail(reason Reason, op string, err error) *Error {
	return &Error{Reason: reason, Op: op, Err: err}
}

// ReasonOf returns the Reason carried by err, or ReasonUnknown.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ReasonUnknown
}
