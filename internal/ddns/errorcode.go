package ddns

import (
	"context"
	"errors"
	"net"
	"net/url"
)

var (
	// ErrDetectionFailed is returned by a Detector when no echo endpoint answered.
	ErrDetectionFailed = errors.New("public address detection failed")
	// ErrPublishFailed wraps every publisher failure.
	ErrPublishFailed = errors.New("dns update failed")
)

type codedError struct {
	Code    string
	Message string
}

func (e codedError) Error() string { return e.Message }

// classifyError maps a cycle failure to a short code kept in update history.
func classifyError(err error) codedError {
	if err == nil {
		return codedError{}
	}

	code := "UNKNOWN"
	switch {
	case errors.Is(err, context.Canceled):
		code = "CANCELED"
	case errors.Is(err, context.DeadlineExceeded):
		code = "TIMEOUT"
	case errors.Is(err, errUnexpectedBody):
		code = "BAD_RESPONSE"
	case errors.Is(err, errBadStatus):
		code = "HTTP_STATUS"
	}

	if code == "UNKNOWN" {
		var dnsErr *net.DNSError
		var opErr *net.OpError
		var urlErr *url.Error
		switch {
		case errors.As(err, &dnsErr):
			code = "DNS"
		case errors.As(err, &opErr):
			code = "NETWORK"
		case errors.As(err, &urlErr):
			if urlErr.Timeout() {
				code = "TIMEOUT"
			} else {
				code = "NETWORK"
			}
		case errors.Is(err, ErrDetectionFailed):
			code = "DETECTION"
		case errors.Is(err, ErrPublishFailed):
			code = "PUBLISH"
		}
	}

	return codedError{Code: code, Message: err.Error()}
}
