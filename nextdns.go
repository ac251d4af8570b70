package nextdns

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public NextDNS API endpoint.
const DefaultBaseURL = "https://api.nextdns.io"

var discard = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// Client talks to the NextDNS API.
// It should be constructed using New.
type Client struct {
	apiKey    string
	baseURL   string
	userAgent string
	timeout   time.Duration
	http      *retryablehttp.Client
	limiter   *rate.Limiter
	logger    logrus.FieldLogger
}

// New returns a Client configured by options.
// An API key is required; see UsingAPIKey.
//
// By default the client retries transient failures (connection errors, 429 and 5xx)
// three times, does not rate limit, and gives each call 30 seconds.
func New(options ...ClientOption) (*Client, error) {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = cleanhttp.DefaultPooledClient()
	rc.RetryMax = 3
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: "nextdnsctl",
		timeout:   30 * time.Second,
		http:      rc,
		limiter:   rate.NewLimiter(rate.Inf, 0),
		logger:    discard,
	}
	for i, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("nextdns.New: option %d returned an error: %s", i, err)
		}
	}
	if c.apiKey == "" {
		return nil, &AuthError{Detail: "no API key configured - run \"nextdnsctl auth\" or set NEXTDNS_API_KEY"}
	}

	// set last so the retry logger follows WithLogger regardless of option order
	c.http.Logger = leveledLogger{c.logger}
	return c, nil
}

// ClientOption configures a Client; see New.
type ClientOption func(*Client) error

// UsingAPIKey sets the key sent in the X-Api-Key header.
func UsingAPIKey(key string) ClientOption {
	return func(c *Client) error {
		c.apiKey = strings.TrimSpace(key)
		return nil
	}
}

// WithBaseURL points the client at another API root, e.g. a test server.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) error {
		u, err := url.Parse(baseURL)
		if err != nil {
			return fmt.Errorf("error parsing URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("unsupported URL scheme %q", u.Scheme)
		}
		c.baseURL = strings.TrimRight(u.String(), "/")
		return nil
	}
}

func WithLogger(logger logrus.FieldLogger) ClientOption {
	return func(c *Client) error {
		if logger == nil {
			logger = discard
		}
		c.logger = logger
		return nil
	}
}

// UsingHTTPClient replaces the underlying http.Client.
// Retries are still handled by the Client.
func UsingHTTPClient(httpclient *http.Client) ClientOption {
	return func(c *Client) error {
		if httpclient == nil {
			httpclient = cleanhttp.DefaultPooledClient()
		}
		c.http.HTTPClient = httpclient
		return nil
	}
}

// WithRetries sets how many times a failed request is retried.
func WithRetries(n int) ClientOption {
	return func(c *Client) error {
		if n < 0 {
			return fmt.Errorf("retries cannot be negative: %d", n)
		}
		c.http.RetryMax = n
		return nil
	}
}

// WithRateLimit caps outgoing requests to r per second with the given burst.
// A zero or negative r disables limiting.
func WithRateLimit(r float64, burst int) ClientOption {
	return func(c *Client) error {
		if r <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return nil
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(r), burst)
		return nil
	}
}

// WithTimeout bounds each API call, including retries.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive: %s", d)
		}
		c.timeout = d
		return nil
	}
}
