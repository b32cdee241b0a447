// Package render fetches a business website and returns its page content or
// a typed failure. Two drivers exist: a plain HTTP client and headless Chrome.
package render

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/gurnoornatt/supergoodleadgen/internal/config"
	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

// Renderer is the page-rendering capability used by the worker pool.
type Renderer interface {
	Name() string
	Render(ctx context.Context, url string) (*model.Page, error)
	Close() error
}

// Error is a typed render failure.
type Error struct {
	Kind   model.FailureKind
	URL    string
	Status int
	Block  BlockType
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Block != BlockNone:
		return fmt.Sprintf("render %s: %s: blocked (%s)", e.URL, e.Kind, e.Block)
	case e.Status > 0:
		return fmt.Sprintf("render %s: %s: status %d", e.URL, e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("render %s: %s: %v", e.URL, e.Kind, e.Err)
	default:
		return fmt.Sprintf("render %s: %s", e.URL, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether a retry may succeed. HTTP errors are answers from
// the site and are not retried.
func (e *Error) Transient() bool {
	return e.Kind != model.FailureHTTP
}

// Classify converts a transport error into a typed *Error. An error that is
// already typed is returned unchanged.
func Classify(url string, err error) *Error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	return &Error{Kind: kindOf(err), URL: url, Err: err}
}

// KindOf returns the failure kind for any render error.
func KindOf(err error) model.FailureKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return kindOf(err)
}

func kindOf(err error) model.FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.FailureTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return model.FailureTimeout
		}
		return model.FailureDNS
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.FailureTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such host"),
		strings.Contains(msg, "name resolution"),
		strings.Contains(msg, "err_name_not_resolved"):
		return model.FailureDNS
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "timed out"),
		strings.Contains(msg, "deadline exceeded"):
		return model.FailureTimeout
	case strings.Contains(msg, "err_http_response_code_failure"),
		strings.Contains(msg, "err_invalid_response"):
		return model.FailureHTTP
	default:
		return model.FailureConnection
	}
}

// New returns the renderer selected by cfg.Driver.
func New(ctx context.Context, cfg config.RenderConfig) (Renderer, error) {
	switch cfg.Driver {
	case "", "http":
		return NewHTTPRenderer(cfg)
	case "chrome":
		return NewChromeRenderer(ctx, cfg)
	default:
		return nil, eris.Errorf("render: unknown driver %q", cfg.Driver)
	}
}
