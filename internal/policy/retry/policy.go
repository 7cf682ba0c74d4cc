// Package retry implements the transport retry policy used against the portal.
package retry

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Defaults match the portal client the scraper was first written against.
const (
	DefaultMaxRetries    = 5
	DefaultBackoffFactor = 300 * time.Millisecond
	DefaultMaxBackoff    = 2 * time.Minute
)

// Policy decides whether a failed attempt is retried and how long to wait.
type Policy struct {
	maxRetries    int
	backoffFactor time.Duration
	maxBackoff    time.Duration
	statuses      map[int]struct{}
	methods       map[string]struct{}
}

// Config tunes a Policy. Zero values fall back to the defaults; a negative
// MaxRetries disables retries.
type Config struct {
	MaxRetries    int
	BackoffFactor time.Duration
	MaxBackoff    time.Duration
}

// New builds a policy retrying connection failures and 429/500/502/503/504
// for GET and POST only.
func New(cfg Config) *Policy {
	maxRetries := cfg.MaxRetries
	switch {
	case maxRetries == 0:
		maxRetries = DefaultMaxRetries
	case maxRetries < 0:
		maxRetries = 0
	}
	factor := cfg.BackoffFactor
	if factor <= 0 {
		factor = DefaultBackoffFactor
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = DefaultMaxBackoff
	}
	return &Policy{
		maxRetries:    maxRetries,
		backoffFactor: factor,
		maxBackoff:    maxBackoff,
		statuses: map[int]struct{}{
			http.StatusTooManyRequests:     {},
			http.StatusInternalServerError: {},
			http.StatusBadGateway:          {},
			http.StatusServiceUnavailable:  {},
			http.StatusGatewayTimeout:      {},
		},
		methods: map[string]struct{}{
			http.MethodGet:  {},
			http.MethodPost: {},
		},
	}
}

// MaxRetries returns the retry cap (attempts = MaxRetries + 1).
func (p *Policy) MaxRetries() int {
	return p.maxRetries
}

// MethodAllowed reports whether requests with the method may be retried.
func (p *Policy) MethodAllowed(method string) bool {
	_, ok := p.methods[strings.ToUpper(method)]
	return ok
}

// RetryableStatus reports whether an HTTP status is transient.
func (p *Policy) RetryableStatus(code int) bool {
	_, ok := p.statuses[code]
	return ok
}

// ShouldRetry decides whether attempt (1-based) may be followed by another.
// Exactly one of statusCode or err describes the failure.
func (p *Policy) ShouldRetry(method string, statusCode int, err error, attempt int) bool {
	if attempt > p.maxRetries || !p.MethodAllowed(method) {
		return false
	}
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return p.RetryableStatus(statusCode)
}

// Backoff returns the wait before retry n (1-based): factor * 2^(n-1).
func (p *Policy) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	delay := p.backoffFactor
	for i := 1; i < n; i++ {
		delay *= 2
		if delay >= p.maxBackoff {
			return p.maxBackoff
		}
	}
	return min(delay, p.maxBackoff)
}

// Wait picks the larger of the computed backoff and a Retry-After hint,
// never exceeding the configured maximum.
func (p *Policy) Wait(n int, headers http.Header, now time.Time) time.Duration {
	delay := p.Backoff(n)
	if hint, ok := RetryAfter(headers, now); ok && hint > delay {
		delay = min(hint, p.maxBackoff)
	}
	return delay
}

// RetryAfter parses a Retry-After header in seconds or HTTP-date form.
func RetryAfter(headers http.Header, now time.Time) (time.Duration, bool) {
	if headers == nil {
		return 0, false
	}
	raw := strings.TrimSpace(headers.Get("Retry-After"))
	if raw == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	at, err := http.ParseTime(raw)
	if err != nil {
		return 0, false
	}
	d := at.Sub(now)
	if d < 0 {
		return 0, true
	}
	return d, true
}
