package paysdktest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/paysdk/configtree"
	"github.com/adamwoolhether/paysdk/request"
)

const (
	tokenPath = "/v1/oauth2/token"
	appID     = "APP-80W284485P519543T"
)

// Call is a request received by a catalog endpoint.
type Call struct {
	Endpoint   string
	Method     string
	RequestURI string
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the call's JSON body into v.
func (c Call) Decode(v any) error {
	return json.Unmarshal(c.Body, v)
}

type stub struct {
	status int
	body   any
}

// Server is a fake payments API listening on a local address.
type Server struct {
	srv *httptest.Server

	clientID     string
	clientSecret string
	lifetime     int

	mu     sync.Mutex
	tokens map[string]bool
	grants int
	calls  []Call
	stubs  map[string]stub
}

// Option is a functional option for [New].
type Option func(*options)

type options struct {
	clientID     string
	clientSecret string
	lifetime     int
	logger       *slog.Logger
	tracer       trace.Tracer
}

// WithCredentials sets the client id and secret the token endpoint accepts.
func WithCredentials(id, secret string) Option {
	return func(o *options) {
		o.clientID = id
		o.clientSecret = secret
	}
}

// WithTokenLifetime sets expires_in, in seconds, for issued tokens.
func WithTokenLifetime(seconds int) Option {
	return func(o *options) {
		o.lifetime = seconds
	}
}

// WithLogger injects a custom [slog.Logger] into the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTracer injects the given tracer into the Server.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// New starts a Server. Callers must Close it when done.
func New(optFns ...Option) *Server {
	opts := options{
		clientID:     "client-id",
		clientSecret: "client-secret",
		lifetime:     32400,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:       noop.NewTracerProvider().Tracer("no-op tracer"),
	}
	for _, opt := range optFns {
		opt(&opts)
	}

	s := &Server{
		clientID:     opts.clientID,
		clientSecret: opts.clientSecret,
		lifetime:     opts.lifetime,
		tokens:       make(map[string]bool),
		stubs:        make(map[string]stub),
	}

	rt := &router{
		mux:    http.NewServeMux(),
		mw:     []middleware{logger(opts.logger), errs(opts.logger), panics()},
		logger: opts.logger,
		tracer: opts.tracer,
	}

	rt.handle(http.MethodPost, tokenPath, "oauth2.token", s.issueToken)
	for _, route := range request.Routes() {
		rt.handle(string(route.Verb), strings.TrimSuffix(route.Path, "?"), route.Name, s.serveRoute(route), s.record(), s.authenticate())
	}

	s.srv = httptest.NewServer(rt)

	return s
}

// URL is the base URL of the server.
func (s *Server) URL() string {
	return s.srv.URL
}

// Close shuts down the server.
func (s *Server) Close() {
	s.srv.Close()
}

// Config is a configuration tree pointing at the server with its credentials.
func (s *Server) Config() configtree.Tree {
	u, _ := url.Parse(s.srv.URL)

	return configtree.Tree{
		"schema":        u.Scheme,
		"host":          u.Hostname(),
		"port":          u.Port(),
		"client_id":     s.clientID,
		"client_secret": s.clientSecret,
	}
}

// Stub makes the endpoint named by the catalog answer with status and body.
// An error body created with [NewError] is sent in the API's error shape.
func (s *Server) Stub(endpoint string, status int, body any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stubs[endpoint] = stub{status: status, body: body}
}

// Calls returns the calls received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Call, len(s.calls))
	copy(out, s.calls)

	return out
}

// Grants is the number of tokens issued.
func (s *Server) Grants() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.grants
}

// RevokeTokens makes every issued token invalid, as if it had expired
// on the server's side.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.tokens)
}

func (s *Server) validToken(tok string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tokens[tok]
}

type tokenResponse struct {
	Scope       string `json:"scope"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	AppID       string `json:"app_id"`
	ExpiresIn   int    `json:"expires_in"`
	Nonce       string `json:"nonce"`
}

func (s *Server) issueToken(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, secret, ok := r.BasicAuth()
	if !ok {
		if err := r.ParseForm(); err == nil {
			id, secret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
		}
	}
	if id != s.clientID || secret != s.clientSecret {
		return &tokenError{Code: http.StatusUnauthorized, Err: "invalid_client", Description: "Client Authentication failed"}
	}

	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
		return &tokenError{Code: http.StatusBadRequest, Err: "unsupported_grant_type", Description: "Grant Type is NULL"}
	}

	tok := "A21AA" + strings.ReplaceAll(uuid.NewString(), "-", "")

	s.mu.Lock()
	s.tokens[tok] = true
	s.grants++
	s.mu.Unlock()

	return respondJSON(ctx, w, http.StatusOK, tokenResponse{
		Scope:       "https://uri.paypal.com/services/subscriptions https://uri.paypal.com/services/payments/refund",
		AccessToken: tok,
		TokenType:   "Bearer",
		AppID:       appID,
		ExpiresIn:   s.lifetime,
		Nonce:       uuid.NewString(),
	})
}

// serveRoute answers a catalog endpoint with its stub, or with the path
// values it was called with.
func (s *Server) serveRoute(route request.Route) handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if route.HasBody && r.ContentLength != 0 {
			var body any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
				return errMalformedJSON
			}
		}

		s.mu.Lock()
		st, ok := s.stubs[route.Name]
		s.mu.Unlock()

		if ok {
			if apiErr, isErr := st.body.(*APIError); isErr {
				cpy := *apiErr
				cpy.Code = st.status
				return &cpy
			}
			return respondJSON(ctx, w, st.status, st.body)
		}

		resp := map[string]string{"endpoint": route.Name}
		for _, name := range route.Params() {
			resp[name] = r.PathValue(name)
		}

		status := http.StatusOK
		switch {
		case route.Verb == request.DELETE:
			status = http.StatusNoContent
		case strings.HasSuffix(route.Name, ".create"):
			status = http.StatusCreated
		}

		return respondJSON(ctx, w, status, resp)
	}
}
