// Package collyfetcher implements procurement.Fetcher using gocolly, with
// retries, backoff, and optional per-host rate limiting.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/sirup-adspend/internal/metrics"
	"github.com/JakeFAU/sirup-adspend/internal/policy/ratelimit"
	"github.com/JakeFAU/sirup-adspend/internal/policy/retry"
	"github.com/JakeFAU/sirup-adspend/internal/procurement"
)

// DefaultUserAgent is sent when Config.UserAgent is empty.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const defaultTimeout = 30 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent           string
	Timeout             time.Duration
	MaxIdleConnsPerHost int
	Retry               retry.Config
	RateLimit           ratelimit.Config
}

// Fetcher implements procurement.Fetcher using the Colly collector. One
// Fetcher is shared by every worker of a run.
type Fetcher struct {
	cfg           Config
	policy        *retry.Policy
	limiter       *ratelimit.Limiter
	baseCollector *colly.Collector
	logger        *zap.Logger
	sleep         func(context.Context, time.Duration) error
	now           func() time.Time
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithSleeper replaces the backoff sleep, mainly for tests.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(f *Fetcher) {
		if sleep != nil {
			f.sleep = sleep
		}
	}
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

var _ procurement.Fetcher = (*Fetcher)(nil)

// New builds a Fetcher. The transport and timeout are fixed on the base
// collector; clones only carry per-call callbacks.
func New(cfg Config, opts ...Option) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(0),
		colly.ParseHTTPErrorResponse(),
		colly.UserAgent(cfg.UserAgent),
	)
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport(cfg.MaxIdleConnsPerHost))
	c.SetRequestTimeout(cfg.Timeout)

	f := &Fetcher{
		cfg:           cfg,
		policy:        retry.New(cfg.Retry),
		limiter:       ratelimit.New(cfg.RateLimit),
		baseCollector: c,
		logger:        zap.NewNop(),
		sleep:         sleepContext,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Get issues a GET for rawURL with params appended to its query, retrying
// per the retry policy. Non-2xx final outcomes are returned as
// *procurement.FetchError.
func (f *Fetcher) Get(ctx context.Context, rawURL string, params url.Values) (procurement.FetchResponse, error) {
	target, err := buildURL(rawURL, params)
	if err != nil {
		return procurement.FetchResponse{}, err
	}

	for attempt := 1; ; attempt++ {
		if err := f.limiter.Wait(ctx, target); err != nil {
			return procurement.FetchResponse{}, err
		}

		resp, fetchErr := f.fetchOnce(ctx, target)
		resp.Attempts = attempt
		metrics.ObserveFetch(target, resp.StatusCode, resp.Duration)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return procurement.FetchResponse{}, fmt.Errorf("fetch %s canceled: %w", target, ctxErr)
		}
		if fetchErr == nil && isSuccess(resp.StatusCode) {
			return resp, nil
		}
		if !f.policy.ShouldRetry(http.MethodGet, resp.StatusCode, fetchErr, attempt) {
			return procurement.FetchResponse{}, &procurement.FetchError{
				URL:        target,
				StatusCode: resp.StatusCode,
				Attempts:   attempt,
				Err:        fetchErr,
			}
		}

		wait := f.policy.Wait(attempt, resp.Headers, f.now())
		metrics.ObserveRetry(resp.StatusCode)
		f.logger.Debug("retrying portal request",
			zap.String("url", target),
			zap.Int("attempt", attempt),
			zap.Int("status", resp.StatusCode),
			zap.Duration("backoff", wait),
			zap.Error(fetchErr),
		)
		if err := f.sleep(ctx, wait); err != nil {
			return procurement.FetchResponse{}, fmt.Errorf("fetch %s canceled during backoff: %w", target, err)
		}
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, target string) (procurement.FetchResponse, error) {
	var (
		result   procurement.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(ctx)
	f.configureCollectorHooks(collector, start, &result, &fetchErr)

	err := f.runCollector(ctx, collector, target, &fetchErr)
	if result.Duration == 0 {
		result.Duration = time.Since(start)
	}
	if result.URL == "" {
		result.URL = target
	}
	return result, err
}

func (f *Fetcher) buildCollector(ctx context.Context) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true
	collector.MaxBodySize = 0
	collector.UserAgent = f.cfg.UserAgent
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *procurement.FetchResponse,
	fetchErr *error,
) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = procurement.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			result.StatusCode = r.StatusCode
			if r.Headers != nil {
				result.Headers = r.Headers.Clone()
			}
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, target string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		// Hooks write into the caller's result until Visit returns.
		<-done
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			*fetchErr = err
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func buildURL(rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("parse url %q: %w", rawURL, errors.New("missing scheme or host"))
	}
	if len(params) > 0 {
		q := u.Query()
		for key, values := range params {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newHTTPTransport(maxIdlePerHost int) *http.Transport {
	if maxIdlePerHost <= 0 {
		maxIdlePerHost = 64
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   maxIdlePerHost,
		IdleConnTimeout:       90 * time.Second,
	}
}
