package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, http.StatusText(e.Code))
}

// ErrIdleTimeout is the cause of a request that received nothing for the
// configured timeout.
var ErrIdleTimeout = errors.New("read timeout")

type FetcherOptions struct {
	HTMLTimeout time.Duration
	PDFTimeout  time.Duration

	UserAgent string
	Headers   map[string]string

	MaxRetries   int
	RetryBackoff time.Duration

	// RequestDelay spaces consecutive requests; zero disables pacing.
	RequestDelay time.Duration

	// Transport overrides the default transport (tests).
	Transport http.RoundTripper
}

// Fetcher is the crawl session: one HTTP client and one cookie jar shared by
// every request of a run.
type Fetcher struct {
	client  *http.Client
	jar     http.CookieJar
	opts    FetcherOptions
	limiter *rate.Limiter
}

func NewFetcher(opts FetcherOptions) (*Fetcher, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	if opts.HTMLTimeout <= 0 {
		opts.HTMLTimeout = 15 * time.Second
	}
	if opts.PDFTimeout <= 0 {
		opts.PDFTimeout = 30 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	f := &Fetcher{
		client: &http.Client{
			Jar:       jar,
			Transport: opts.Transport,
		},
		jar:  jar,
		opts: opts,
	}
	if opts.RequestDelay > 0 {
		f.limiter = rate.NewLimiter(rate.Every(opts.RequestDelay), 1)
	}
	return f, nil
}

// CookieState is the deterministic snapshot of the cookies the session
// would send to rawURL.
func (f *Fetcher) CookieState(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	cookies := f.jar.Cookies(u)
	if len(cookies) == 0 {
		return ""
	}
	pairs := make([]string, len(cookies))
	for i, c := range cookies {
		pairs[i] = c.Name + "=" + c.Value
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ";")
}

type FetchResult struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// FetchHTML downloads a page. attempts counts every request made.
func (f *Fetcher) FetchHTML(ctx context.Context, rawURL string) (res *FetchResult, attempts int, err error) {
	attempts, err = f.withRetry(ctx, func() error {
		return f.do(ctx, rawURL, f.opts.HTMLTimeout, func(resp *http.Response, body io.Reader) error {
			data, err := io.ReadAll(body)
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}
			res = &FetchResult{
				URL:         rawURL,
				StatusCode:  resp.StatusCode,
				ContentType: resp.Header.Get("Content-Type"),
				Body:        data,
			}
			return nil
		})
	})
	return res, attempts, err
}

// StreamPDF hands the response body to sink without buffering it. sink is
// called again on a retry and must discard what it wrote on failure.
func (f *Fetcher) StreamPDF(ctx context.Context, rawURL string, sink func(io.Reader) error) (int, error) {
	return f.withRetry(ctx, func() error {
		return f.do(ctx, rawURL, f.opts.PDFTimeout, func(_ *http.Response, body io.Reader) error {
			return sink(body)
		})
	})
}

// do performs one GET. The timeout is an inactivity timeout: it covers
// connecting and waiting for headers, and restarts on every body read.
func (f *Fetcher) do(ctx context.Context, rawURL string, timeout time.Duration, handle func(*http.Response, io.Reader) error) error {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	timer := time.AfterFunc(timeout, func() { cancel(ErrIdleTimeout) })
	defer timer.Stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Permanent(fmt.Errorf("create request: %w", err))
	}
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}
	for k, v := range f.opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fetchError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode}
	}

	body := &idleReader{r: resp.Body, timer: timer, timeout: timeout}
	if err := handle(resp, body); err != nil {
		return fetchError(ctx, err)
	}
	return nil
}

// fetchError replaces a bare context error with its cause.
func fetchError(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil && errors.Is(cause, ErrIdleTimeout) {
		return fmt.Errorf("fetch: %w", ErrIdleTimeout)
	}
	return fmt.Errorf("fetch: %w", err)
}

type idleReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.timer.Reset(r.timeout)
	}
	return n, err
}

// withRetry runs op once plus up to MaxRetries more times while it fails
// with a transient error, waiting RetryBackoff*attempt in between.
func (f *Fetcher) withRetry(ctx context.Context, op func() error) (int, error) {
	attempts := 0
	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{step: f.opts.RetryBackoff}, uint64(f.opts.MaxRetries)),
		ctx,
	)
	err := backoff.Retry(func() error {
		attempts++
		err := op()
		if err != nil && !Transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	return attempts, err
}

// linearBackOff waits step, 2*step, 3*step and so on.
type linearBackOff struct {
	step time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return b.step * time.Duration(b.n)
}

func (b *linearBackOff) Reset() { b.n = 0 }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Transient reports whether a failed fetch is worth another attempt:
// network errors, timeouts, 429 and 5xx responses.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	var pe *backoff.PermanentError
	if errors.As(err, &pe) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return true
}
