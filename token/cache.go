package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrNoFetcher is returned when a Cache is built without a way to
// obtain tokens.
var ErrNoFetcher = errors.New("token fetcher must not be nil")

// Fetcher obtains a fresh token hash from the auth endpoint.
type Fetcher func(ctx context.Context) (Hash, error)

// Cache holds the current token hash and refreshes it once it expires.
// Checking, refreshing and storing happen in a single critical section
// so concurrent callers never trigger more than one refresh.
type Cache struct {
	sem    chan struct{}
	hash   *Hash
	fetch  Fetcher
	now    func() time.Time
	logger *slog.Logger
}

// Option is a functional option for [NewCache].
type Option func(*options) error

type options struct {
	now     func() time.Time
	logger  *slog.Logger
	initial *Hash
}

// WithClock replaces time.Now as the source of "now" for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) error {
		if now == nil {
			return errors.New("clock must not be nil")
		}
		o.now = now
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Cache].
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithInitial seeds the cache with a previously stored hash.
func WithInitial(h Hash) Option {
	return func(o *options) error {
		if err := h.Validate(); err != nil {
			return fmt.Errorf("initial hash: %w", err)
		}
		o.initial = &h
		return nil
	}
}

// NewCache returns a Cache that obtains tokens with fetch.
func NewCache(fetch Fetcher, optFns ...Option) (*Cache, error) {
	if fetch == nil {
		return nil, ErrNoFetcher
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying cache option: %w", err)
		}
	}

	c := &Cache{
		sem:    make(chan struct{}, 1),
		hash:   opts.initial,
		fetch:  fetch,
		now:    time.Now,
		logger: slog.Default(),
	}
	if opts.now != nil {
		c.now = opts.now
	}
	if opts.logger != nil {
		c.logger = opts.logger
	}

	return c, nil
}

// Get returns the cached hash, fetching a new one first when none is
// held or the held one has expired.
func (c *Cache) Get(ctx context.Context) (Hash, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return Hash{}, fmt.Errorf("waiting for token: %w", ctx.Err())
	}
	defer func() { <-c.sem }()

	if c.hash != nil {
		expired, err := IsExpired(*c.hash, c.now())
		if err != nil {
			c.logger.Warn("discarding cached token", "error", err)
		}
		if err == nil && !expired {
			return *c.hash, nil
		}
		c.hash = nil
	}

	h, err := c.fetch(ctx)
	if err != nil {
		return Hash{}, fmt.Errorf("fetching token: %w", err)
	}
	if err := h.Validate(); err != nil {
		return Hash{}, fmt.Errorf("fetched token: %w", err)
	}

	c.hash = &h
	c.logger.Info("access token refreshed", "expires_at", h.ExpiresAt().UTC().Format(time.RFC3339), "app_id", h.AppID)

	return h, nil
}

// Invalidate drops the cached hash so the next Get refreshes it,
// e.g. after the remote service rejected the token.
func (c *Cache) Invalidate() {
	c.sem <- struct{}{}
	c.hash = nil
	<-c.sem
}

// TokenSource exposes the cache as an [oauth2.TokenSource]. ctx is used
// for any refresh the source triggers.
func (c *Cache) TokenSource(ctx context.Context) oauth2.TokenSource {
	return cacheSource{ctx: ctx, cache: c}
}

type cacheSource struct {
	ctx   context.Context
	cache *Cache
}

func (s cacheSource) Token() (*oauth2.Token, error) {
	h, err := s.cache.Get(s.ctx)
	if err != nil {
		return nil, err
	}

	return h.OAuth2(), nil
}

// OAuth2 converts the hash into an [oauth2.Token].
func (h Hash) OAuth2() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken: h.AccessToken,
		TokenType:   h.TokenType,
		Expiry:      h.ExpiresAt(),
	}

	return tok.WithExtra(map[string]any{
		"app_id": h.AppID,
		"scope":  h.Scope,
		"nonce":  h.Nonce,
	})
}

// FetcherFromSource adapts an [oauth2.TokenSource] into a Fetcher. The
// token's absolute expiry is turned into a lifetime measured from now.
// Tokens without an expiry are rejected since their freshness cannot
// be evaluated.
func FetcherFromSource(ts oauth2.TokenSource, now func() time.Time) Fetcher {
	if now == nil {
		now = time.Now
	}

	return func(_ context.Context) (Hash, error) {
		tok, err := ts.Token()
		if err != nil {
			return Hash{}, fmt.Errorf("token source: %w", err)
		}

		return fromOAuth2(tok, now())
	}
}

// FetcherFromCredentials runs the client credentials grant described by
// cc on every fetch. Unlike cc.TokenSource it keeps no token of its own,
// so [Cache.Invalidate] always leads to a new grant.
func FetcherFromCredentials(cc *clientcredentials.Config, now func() time.Time) Fetcher {
	if now == nil {
		now = time.Now
	}

	return func(ctx context.Context) (Hash, error) {
		if cc == nil {
			return Hash{}, ErrNoFetcher
		}

		tok, err := cc.Token(ctx)
		if err != nil {
			return Hash{}, fmt.Errorf("client credentials grant: %w", err)
		}

		return fromOAuth2(tok, now())
	}
}

func fromOAuth2(tok *oauth2.Token, received time.Time) (Hash, error) {
	if tok.Expiry.IsZero() {
		return Hash{}, fmt.Errorf("%w: token source returned no expiry", ErrMalformed)
	}

	h := Hash{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		ExpiresIn:   max(tok.Expiry.Sub(received).Seconds(), 0),
		CreatedAt:   seconds(received),
	}
	h.AppID, _ = tok.Extra("app_id").(string)
	h.Scope, _ = tok.Extra("scope").(string)
	h.Nonce, _ = tok.Extra("nonce").(string)

	return h, nil
}
