package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html/charset"
)

const (
	// DefaultUserAgent identifies the fetcher to target sites.
	DefaultUserAgent = "Mozilla/5.0 (compatible; goenrich/1.0; +https://github.com/hyperifyio/goenrich)"
	// DefaultTimeout bounds the whole request including the body read.
	DefaultTimeout = 10 * time.Second
	// DefaultMaxBodyBytes caps how much markup is read from one page.
	DefaultMaxBodyBytes = 5 << 20
	defaultRedirectMaxHops = 10
)

// Kind classifies fetch failures.
type Kind int

const (
	// KindNetwork covers DNS, connection, TLS and redirect policy failures.
	KindNetwork Kind = iota
	// KindTimedOut means the request did not finish within the timeout.
	KindTimedOut
	// KindHTTPStatus means the server answered with a non-2xx status.
	KindHTTPStatus
)

func (k Kind) String() string {
	switch k {
	case KindTimedOut:
		return "timed_out"
	case KindHTTPStatus:
		return "http_status"
	default:
		return "network"
	}
}

// Error is returned by Client.Get for every failure.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	// Status is the status line text, e.g. "404 Not Found".
	Status  string
	Timeout time.Duration
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return "failed to fetch URL: " + e.Status
	case KindTimedOut:
		return fmt.Sprintf("failed to fetch URL: timed out after %s", e.Timeout)
	default:
		if e.Err != nil {
			return "failed to fetch URL: " + e.Err.Error()
		}
		return "failed to fetch URL"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Client retrieves raw page markup. The zero value is usable.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// Timeout bounds each Get. Zero means DefaultTimeout.
	Timeout time.Duration
	// RedirectMaxHops caps redirect following. Zero means 10.
	RedirectMaxHops int
	// MaxBodyBytes caps the body read. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
	// MaxConcurrent limits concurrent in-flight requests per client instance.
	// Zero means unlimited.
	MaxConcurrent int

	limiter     chan struct{}
	limiterOnce sync.Once
}

func (c *Client) getHTTPClient() *http.Client {
	if c.HTTPClient != nil {
		// Clone to attach our redirect policy without mutating caller's client
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirectFunc()
		return &base
	}
	return &http.Client{CheckRedirect: c.checkRedirectFunc()}
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// Get issues a single GET for rawURL and returns the body decoded to UTF-8.
// There is no retry; every failure is an *Error.
func (c *Client) Get(ctx context.Context, rawURL string) (string, error) {
	if err := c.acquire(ctx); err != nil {
		return "", c.classify(rawURL, err)
	}
	defer c.release()

	timeout := c.timeout()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &Error{Kind: KindNetwork, URL: rawURL, Err: fmt.Errorf("new request: %w", err)}
	}
	// Reject non-HTTP(S) schemes early
	if !isHTTPScheme(req.URL) {
		return "", &Error{Kind: KindNetwork, URL: rawURL, Err: fmt.Errorf("unsupported URL scheme: %q", req.URL.Scheme)}
	}
	ua := c.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := c.getHTTPClient().Do(req)
	if err != nil {
		return "", c.classify(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return "", &Error{
			Kind:       KindHTTPStatus,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Status:     statusLine(resp),
		}
	}

	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	var body io.Reader = io.LimitReader(resp.Body, limit)
	if r, err := charset.NewReader(body, resp.Header.Get("Content-Type")); err == nil {
		body = r
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", c.classify(rawURL, fmt.Errorf("read body: %w", err))
	}
	return string(b), nil
}

func (c *Client) classify(rawURL string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimedOut, URL: rawURL, Timeout: c.timeout(), Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Kind: KindTimedOut, URL: rawURL, Timeout: c.timeout(), Err: err}
	}
	return &Error{Kind: KindNetwork, URL: rawURL, Err: err}
}

// statusLine renders "<code> <reason>", falling back to the standard reason
// phrase when the server sent none.
func statusLine(resp *http.Response) string {
	if s := strings.TrimSpace(resp.Status); s != "" && s != fmt.Sprint(resp.StatusCode) {
		return s
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = defaultRedirectMaxHops
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		// Only allow http/https during redirects
		if !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func (c *Client) acquire(ctx context.Context) error {
	if c.MaxConcurrent <= 0 {
		return nil
	}
	c.limiterOnce.Do(func() {
		c.limiter = make(chan struct{}, c.MaxConcurrent)
	})
	select {
	case c.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) release() {
	if c.MaxConcurrent <= 0 || c.limiter == nil {
		return
	}
	select {
	case <-c.limiter:
	default:
		// should not happen, but avoid blocking
	}
}
