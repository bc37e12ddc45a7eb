package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/http/cookiejar"
	"slices"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"
)

const (
	// DefaultTimeout bounds a whole request including the body read.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize caps response bodies.
	DefaultMaxBodySize = 50 * 1024 * 1024

	// maxRedirects matches the net/http default.
	maxRedirects = 10
)

var (
	// ErrTooManyRedirects is returned when a redirect chain exceeds maxRedirects.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrBodyTooLarge is returned by a response body read once the body
	// turns out to be longer than the client's max body size.
	ErrBodyTooLarge = errors.New("response body too large")
)

// Response is the result of a request that reached the server.
type Response struct {
	// StatusCode is the HTTP status of the final response.
	StatusCode int

	// Header is the header of the final response.
	Header http.Header

	// FinalURL is the URL of the final response after redirects.
	FinalURL string

	// RedirectChain lists every URL requested before FinalURL, in order.
	// It is empty when no redirect happened.
	RedirectChain []string

	// Body is the response body. Reading past the client's max body size
	// fails with ErrBodyTooLarge. The caller must close it.
	Body io.ReadCloser
}

// ContentType returns the media type of the response without parameters.
func (r *Response) ContentType() string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

// Aliases returns every URL the response is known by: the redirect chain
// followed by the final URL.
func (r *Response) Aliases() []string {
	out := make([]string, 0, len(r.RedirectChain)+1)
	out = append(out, r.RedirectChain...)
	return append(out, r.FinalURL)
}

// IsError reports whether the status is a client or server error.
func (r *Response) IsError() bool {
	return r.StatusCode >= http.StatusBadRequest
}

// Client performs HTTP requests.
type Client struct {
	httpClient   *http.Client
	userAgent    string
	maxBodySize  int64
	timeout      time.Duration
	proxyAddress string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent sent when the caller sets none.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithMaxBodySize caps response bodies at n bytes.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithProxy routes every connection through the SOCKS5 proxy at addr
// ("host:port").
func WithProxy(addr string) Option {
	return func(c *Client) {
		c.proxyAddress = addr
	}
}

// New creates a Client.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		maxBodySize: DefaultMaxBodySize,
		timeout:     DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if c.proxyAddress != "" {
		dialer, err := socksDialer(c.proxyAddress)
		if err != nil {
			return nil, err
		}
		transport.Proxy = nil
		transport.DialContext = dialer
	}

	c.httpClient = &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   c.timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}
	return c, nil
}

func socksDialer(addr string) (func(ctx context.Context, network, address string) (net.Conn, error), error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return nil, fmt.Errorf("invalid proxy address %q: %w", addr, err)
	}
	dialer, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(_ context.Context, network, address string) (net.Conn, error) {
		return dialer.Dial(network, address)
	}, nil
}

// Request sends a request and returns the final response. A non-nil error
// means the server could not be reached; HTTP error statuses are returned
// in the Response.
func (c *Client) Request(ctx context.Context, method, rawURL string, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if req.Header.Get("User-Agent") == "" && c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode:    resp.StatusCode,
		Header:        resp.Header,
		FinalURL:      resp.Request.URL.String(),
		RedirectChain: redirectChain(resp),
		Body:          limitBody(resp.Body, c.maxBodySize),
	}, nil
}

// redirectChain walks back from the final request through the responses
// that caused each redirect.
func redirectChain(resp *http.Response) []string {
	var chain []string
	for r := resp.Request; r != nil && r.Response != nil; r = r.Response.Request {
		chain = append(chain, r.Response.Request.URL.String())
	}
	slices.Reverse(chain)
	return chain
}

type limitedBody struct {
	body      io.ReadCloser
	limit     int64
	remaining int64
}

func limitBody(body io.ReadCloser, n int64) io.ReadCloser {
	if n <= 0 {
		return body
	}
	return &limitedBody{body: body, limit: n, remaining: n}
}

func (b *limitedBody) Read(p []byte) (int, error) {
	if b.remaining <= 0 {
		// The limit is used up; one more byte means the body is too long.
		var extra [1]byte
		for {
			n, err := b.body.Read(extra[:])
			if n > 0 {
				return 0, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, b.limit)
			}
			if err != nil {
				return 0, err
			}
		}
	}
	if int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.body.Read(p)
	b.remaining -= int64(n)
	return n, err
}

func (b *limitedBody) Close() error {
	return b.body.Close()
}
