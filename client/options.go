package client

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/paysdk/config"
	"github.com/adamwoolhether/paysdk/throttle"
	"github.com/adamwoolhether/paysdk/token"
)

// Option is a functional option for configuring a [Client] via [Build].
type Option func(*options) error
type options struct {
	client            *http.Client
	rt                http.RoundTripper
	timeout           *time.Duration
	userAgent         string
	throttle          *throttle.Config
	noFollowRedirects bool
	logger            *slog.Logger
	cfg               *config.Options
	baseURL           *url.URL
	tokens            *token.Cache
	tracer            trace.Tracer
	metrics           *Metrics
	noRequestIDs      bool
}

// WithClient replaces the default [http.Client] used by the [Client].
func WithClient(hc *http.Client) Option {
	return func(c *options) error {
		if hc == nil {
			return errors.New("client must not be nil")
		}
		c.client = hc
		return nil
	}
}

// WithTransport sets a custom [http.RoundTripper] as the base transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		c.rt = rt
		return nil
	}
}

// WithTimeout sets the overall request timeout on the underlying [http.Client].
func WithTimeout(d time.Duration) Option {
	return func(c *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		c.timeout = &d
		return nil
	}
}

// WithUserAgent adds a persistent User-Agent header to all outgoing requests.
func WithUserAgent(header string) Option {
	return func(c *options) error {
		c.userAgent = header
		return nil
	}
}

// WithThrottle enables token-bucket rate limiting with the given requests per second and burst capacity.
func WithThrottle(rps, burst int) Option {
	return func(c *options) error {
		cfg := throttle.Config{RPS: rps, Burst: burst}
		if err := cfg.Validate(); err != nil {
			return err
		}
		c.throttle = &cfg
		return nil
	}
}

// WithNoFollowRedirects prevents the [Client] from following HTTP redirects.
func WithNoFollowRedirects() Option {
	return func(c *options) error {
		c.noFollowRedirects = true
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(c *options) error {
		c.logger = logger
		return nil
	}
}

// WithConfig seeds the base URL, timeout, user agent, throttle and default
// headers from resolved options. Explicit options take precedence regardless
// of order.
func WithConfig(cfg config.Options) Option {
	return func(c *options) error {
		if cfg.Host == "" {
			return errors.New("config host must not be empty")
		}
		c.cfg = &cfg
		return nil
	}
}

// WithBaseURL sets the scheme and host descriptors are resolved against.
func WithBaseURL(u *url.URL) Option {
	return func(c *options) error {
		if u == nil || u.Scheme == "" || u.Host == "" {
			return errors.New("base url must be absolute")
		}
		cpy := *u
		c.baseURL = &cpy
		return nil
	}
}

// WithTokens authorizes every call with a bearer token from cache.
func WithTokens(cache *token.Cache) Option {
	return func(c *options) error {
		if cache == nil {
			return errors.New("token cache must not be nil")
		}
		c.tokens = cache
		return nil
	}
}

// WithTracer injects the given tracer into the Client.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *options) error {
		c.tracer = tracer
		return nil
	}
}

// WithMetrics records request counts and latencies on m.
func WithMetrics(m *Metrics) Option {
	return func(c *options) error {
		c.metrics = m
		return nil
	}
}

// WithoutRequestIDs stops the Client from generating a PayPal-Request-Id
// for POST calls that don't carry one.
func WithoutRequestIDs() Option {
	return func(c *options) error {
		c.noRequestIDs = true
		return nil
	}
}

// userAgent is an http.RoundTripper, enabling the persistent User-Agent header.
type userAgent struct {
	value string
	base  http.RoundTripper
}

func (ua userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	cpy := r.Clone(r.Context())
	cpy.Header.Set("User-Agent", ua.value)
	return ua.base.RoundTrip(cpy)
}

// DoOption is a functional option for [Client.Do].
type DoOption func(options *doOpts) error

type doOpts struct {
	responseBody any
	useJSONNum   bool
	requestOpts  []RequestOption
}

// WithDestination decodes the HTTP response body into bodyTemplate.
// bodyTemplate must be a pointer.
func WithDestination[T any](bodyTemplate *T) DoOption {
	return func(opts *doOpts) error {
		if bodyTemplate == nil {
			return errors.New("destination must not be nil")
		}
		opts.responseBody = bodyTemplate

		return nil
	}
}

// WithJSONNumb tells the JSON decoder to use [json.Decoder.UseNumber],
// preserving number precision as [json.Number] instead of float64.
func WithJSONNumb() DoOption {
	return func(opts *doOpts) error {
		opts.useJSONNum = true

		return nil
	}
}

// WithRequestOptions applies opts when [Client.Do] builds the request.
func WithRequestOptions(opts ...RequestOption) DoOption {
	return func(o *doOpts) error {
		o.requestOpts = append(o.requestOpts, opts...)

		return nil
	}
}

// RequestOption is a functional option for [Request].
type RequestOption func(options *requestOpts) error

type requestOpts struct {
	cookies []*http.Cookie
	headers map[string][]string
	query   url.Values
}

// WithHeaders adds custom headers to the outgoing request.
func WithHeaders(headers map[string][]string) RequestOption {
	return func(opts *requestOpts) error {
		opts.headers = headers

		return nil
	}
}

// WithCookies attaches the given cookies to the outgoing request.
func WithCookies(cookies ...*http.Cookie) RequestOption {
	return func(opts *requestOpts) error {
		opts.cookies = cookies

		return nil
	}
}

// WithQuery appends query parameters, such as list filters, to the
// resolved path.
func WithQuery(query url.Values) RequestOption {
	return func(opts *requestOpts) error {
		if len(query) == 0 {
			return errors.New("cannot use empty query")
		}

		opts.query = query

		return nil
	}
}

// URLOption is a functional option for [URL].
type URLOption func(options *urlOpts)

type urlOpts struct {
	queryStrings map[string]string
	port         *int
}

// WithQueryStrings appends query parameters to the URL.
func WithQueryStrings(queryKV map[string]string) URLOption {
	return func(opts *urlOpts) {
		opts.queryStrings = queryKV
	}
}

// WithPort sets the port number on the URL's host.
func WithPort(port int) URLOption {
	return func(opts *urlOpts) {
		opts.port = &port
	}
}
