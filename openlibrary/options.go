package openlibrary

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ramonpiresone/biblioteca"
)

// Logger is re-exported so callers of this package do not need to import the
// root package for interface types.
type Logger = biblioteca.Logger

// ContextualLogger is re-exported so callers of this package do not need to
// import the root package for interface types.
type ContextualLogger = biblioteca.ContextualLogger

var (
	ErrInvalidBaseURL = errors.New("base url must not be empty")
	ErrNilHTTPClient  = errors.New("http client must not be nil")
)

// Option configures a Client. Options apply in order.
type Option func(*Client) error

// WithBaseURL points the client at a different endpoint, typically a test
// server or a caching proxy. A trailing slash is stripped.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) error {
		trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
		if trimmed == "" {
			return ErrInvalidBaseURL
		}

		c.baseURL = trimmed

		return nil
	}
}

// WithHTTPClient replaces the default HTTP client, including its timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) error {
		if client == nil {
			return ErrNilHTTPClient
		}

		c.httpClient = client

		return nil
	}
}

// WithTimeout sets the total per-request timeout on the HTTP client in use.
// Zero means no timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		clone := *c.httpClient
		clone.Timeout = timeout
		c.httpClient = &clone

		return nil
	}
}

// WithLogger configures a logger for lookup outcomes.
func WithLogger(logger Logger) Option {
	return func(c *Client) error {
		c.logger = logger

		return nil
	}
}

// WithContextualLogger configures a context-aware logger, preferred over the
// plain logger when both are set.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(c *Client) error {
		c.contextualLogger = logger

		return nil
	}
}
