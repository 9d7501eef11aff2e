// Package analyzer wraps the remote generative-text service that interprets
// readings. Every failure surfaces as a *ProviderError.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

type Analyzer interface {
	Analyze(ctx context.Context, prompt string) (string, error)
}

type Kind string

const (
	KindTimeout   Kind = "timeout"
	KindAuth      Kind = "auth"
	KindQuota     Kind = "quota"
	KindMalformed Kind = "malformed_response"
	KindTransport Kind = "transport"
)

type ProviderError struct {
	Provider string
	Kind     Kind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// KindOf reports the failure kind of err, or "" when err is not a provider error.
func KindOf(err error) Kind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// classify maps an HTTP-ish status code and status text from the remote API
// onto a failure kind.
func classify(code int, status string) Kind {
	switch strings.ToUpper(status) {
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		return KindAuth
	case "RESOURCE_EXHAUSTED":
		return KindQuota
	case "DEADLINE_EXCEEDED":
		return KindTimeout
	}
	switch code {
	case 401, 403:
		return KindAuth
	case 429:
		return KindQuota
	case 408, 504:
		return KindTimeout
	}
	return KindTransport
}

func classifyErr(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindTransport
}
