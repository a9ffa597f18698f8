package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/paysdk/request"
	"github.com/adamwoolhether/paysdk/throttle"
	"github.com/adamwoolhether/paysdk/token"
)

// Client sends request descriptors to the REST API.
// It sets a default *http.Client and *http.Transport, which
// can be customized via optional funcs.
type Client struct {
	c          *http.Client
	logger     *slog.Logger
	baseURL    *url.URL
	headers    map[string]string
	tokens     *token.Cache
	tracer     trace.Tracer
	metrics    *Metrics
	requestIDs bool
}

func Build(optFns ...Option) (*Client, error) {
	client := &Client{
		c:          &http.Client{},
		logger:     slog.Default(),
		tracer:     noop.NewTracerProvider().Tracer("no-op tracer"),
		requestIDs: true,
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	if cfg := opts.cfg; cfg != nil {
		if opts.timeout == nil && cfg.Timeout > 0 {
			opts.timeout = &cfg.Timeout
		}
		if opts.userAgent == "" {
			opts.userAgent = cfg.UserAgent
		}
		if opts.throttle == nil && cfg.Throttle != nil {
			opts.throttle = &throttle.Config{RPS: cfg.Throttle.RPS, Burst: cfg.Throttle.Burst}
		}
		if opts.baseURL == nil {
			opts.baseURL = URL(cfg.Schema, cfg.Address(), "")
		}
		client.headers = maps.Clone(cfg.Headers)
	}

	if opts.client != nil {
		client.c = opts.client
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}

	if opts.timeout != nil {
		client.c.Timeout = *opts.timeout
	}

	if opts.noFollowRedirects {
		client.c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	client.baseURL = opts.baseURL
	client.tokens = opts.tokens
	client.metrics = opts.metrics
	client.requestIDs = !opts.noRequestIDs
	if opts.tracer != nil {
		client.tracer = opts.tracer
	}

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		transport = opts.client.Transport
	default:
		transport = http.DefaultTransport
	}
	if opts.userAgent != "" {
		transport = userAgent{value: opts.userAgent, base: transport}
	}
	if opts.throttle != nil {
		rt, err := throttle.NewRoundTripper(*opts.throttle, func() *slog.Logger { return client.logger }, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	client.c.Transport = transport

	return client, nil
}

// BaseURL returns a copy of the URL descriptors are resolved against, or nil.
func (c *Client) BaseURL() *url.URL {
	if c.baseURL == nil {
		return nil
	}
	cpy := *c.baseURL
	return &cpy
}

// Do sends d and writes the response to the destination given via
// [WithDestination], if any. Default headers from the config fill in
// headers d leaves out, an access token is attached when the Client
// holds a token cache, and POST calls get a PayPal-Request-Id unless
// one is already set.
func (c *Client) Do(ctx context.Context, d request.Descriptor, expCode int, opts ...DoOption) error {
	var settings doOpts
	for _, opt := range opts {
		err := opt(&settings)
		if err != nil {
			return err
		}
	}

	if err := d.Validate(); err != nil {
		return fmt.Errorf("validating descriptor: %w", err)
	}
	if c.baseURL == nil {
		return ErrNoBaseURL
	}

	endpoint := endpointName(d)
	ctx, span := c.tracer.Start(ctx, "paysdk.client.do",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("paysdk.endpoint", endpoint),
			attribute.String("http.request.method", string(d.Verb())),
		),
	)
	defer span.End()

	d, cachedAuth, err := c.decorate(ctx, d)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	req, err := Request(ctx, c.baseURL, d, settings.requestOpts...)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	doFunc := func(resp *http.Response) error {
		if settings.responseBody != nil {
			dec := json.NewDecoder(resp.Body)

			if settings.useJSONNum {
				dec.UseNumber()
			}

			if err := dec.Decode(settings.responseBody); err != nil {
				return fmt.Errorf("decoding body: %w", err)
			}
		}

		return nil
	}

	start := time.Now()
	status, err := c.exec(req, expCode, doFunc)
	c.metrics.observe(string(d.Verb()), endpoint, status, time.Since(start))

	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		if status == http.StatusUnauthorized && cachedAuth {
			c.logger.Warn("access token rejected, invalidating cache", "endpoint", endpoint)
			c.tokens.Invalidate()
		}
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s: %w", d, err)
	}

	return nil
}

// decorate fills in the headers the Client is responsible for. It
// reports whether the Authorization header came from the token cache.
func (c *Client) decorate(ctx context.Context, d request.Descriptor) (request.Descriptor, bool, error) {
	for k, v := range c.headers {
		if !hasHeader(d, k) {
			d = d.WithHeader(k, v)
		}
	}

	var cachedAuth bool
	if c.tokens != nil && !hasHeader(d, authorizationHeader) {
		h, err := c.tokens.Get(ctx)
		if err != nil {
			return request.Descriptor{}, false, fmt.Errorf("fetching access token: %w", err)
		}
		d = d.WithHeader(authorizationHeader, authorization(h))
		cachedAuth = true
	}

	if c.requestIDs && d.Verb() == request.POST && !hasHeader(d, requestIDHeader) {
		d = d.WithHeader(requestIDHeader, uuid.NewString())
	}

	return d, cachedAuth, nil
}

// URL creates a url.URL for use in Request.
// It's just a convenience method that wraps the public URL func.
func (c *Client) URL(scheme, host, path string, opts ...URLOption) *url.URL {
	return URL(scheme, host, path, opts...)
}

// exec runs the request and injected function on success after validating the
// expected status code. The returned status is zero when no response arrived.
func (c *Client) exec(req *http.Request, expCode int, fn execFn) (int, error) {
	resp, err := c.c.Do(req)
	if err != nil {
		return 0, fmt.Errorf("exec http do: %w", err)
	}

	discardBody := true
	defer func() {
		if discardBody {
			if _, err = io.Copy(io.Discard, resp.Body); err != nil {
				c.logger.Error("failed to discard unused body", "error", err)
			}
		}
		if err = resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != expCode {
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
		if err != nil {
			b = []byte("unable to read body")
		}

		statusErr := &UnexpectedStatusError{
			StatusCode: resp.StatusCode,
			Body:       string(b),
			Err:        ErrUnexpectedStatusCode,
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			statusErr.Err = errors.Join(ErrUnexpectedStatusCode, ErrAuthFailure)
		}

		return resp.StatusCode, statusErr
	}

	if err := fn(resp); err != nil {
		discardBody = false
		return resp.StatusCode, fmt.Errorf("exec fn: %w", err)
	}

	return resp.StatusCode, nil
}

// Request converts d into an *http.Request against base. The resolved path
// is appended to base verbatim so escaped segments survive, and a body is
// JSON encoded only when d carries a non-nil one.
func Request(ctx context.Context, base *url.URL, d request.Descriptor, opts ...RequestOption) (*http.Request, error) {
	if base == nil {
		return nil, ErrNoBaseURL
	}

	var settings requestOpts
	for _, opt := range opts {
		err := opt(&settings)
		if err != nil {
			return nil, err
		}
	}

	var payload bytes.Buffer
	if d.Body() != nil {
		if err := json.NewEncoder(&payload).Encode(d.Body()); err != nil {
			return nil, fmt.Errorf("encoding request payload: %w", err)
		}
	}

	target := strings.TrimSuffix(base.String(), "/") + d.Path()
	req, err := http.NewRequestWithContext(ctx, string(d.Verb()), target, &payload)
	if err != nil {
		return nil, fmt.Errorf("instantiating request: %w", err)
	}

	if settings.query != nil {
		q := req.URL.Query()
		for k, vs := range settings.query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}

	for _, cookie := range settings.cookies {
		req.AddCookie(cookie)
	}

	for k, v := range d.Headers() {
		req.Header.Set(k, v)
	}
	for k, v := range settings.headers {
		for _, element := range v {
			req.Header.Add(k, element)
		}
	}

	return req, nil
}

// URL creates a url.URL for use in Request.
func URL(scheme, host, path string, opts ...URLOption) *url.URL {
	var settings urlOpts
	for _, opt := range opts {
		opt(&settings)
	}

	if settings.port != nil {
		host = fmt.Sprintf("%s:%d", host, *settings.port)
	}

	endpoint := url.URL{
		Scheme: scheme,
		Host:   host,
		Path:   path,
	}

	if settings.queryStrings != nil {
		queryParams := url.Values{}
		for k, v := range settings.queryStrings {
			queryParams.Add(k, v)
		}

		endpoint.RawQuery = queryParams.Encode()
	}

	return &endpoint
}

func hasHeader(d request.Descriptor, key string) bool {
	for k := range d.Headers() {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

func authorization(h token.Hash) string {
	scheme := h.TokenType
	if scheme == "" || strings.EqualFold(scheme, "bearer") {
		scheme = "Bearer"
	}
	return scheme + " " + h.AccessToken
}

func endpointName(d request.Descriptor) string {
	if d.Name() != "" {
		return d.Name()
	}
	return "custom"
}
