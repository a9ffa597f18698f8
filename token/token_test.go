package token_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/adamwoolhether/paysdk/token"
	"github.com/google/go-cmp/cmp"
)

func TestIsExpired(t *testing.T) {
	h := token.Hash{CreatedAt: 1000, ExpiresIn: 100}

	testCases := map[string]struct {
		now time.Time
		exp bool
	}{
		"justCreated":      {now: time.Unix(1000, 0), exp: false},
		"oneSecondBefore":  {now: time.Unix(1099, 0), exp: false},
		"fractionalBefore": {now: time.Unix(1099, int64(999*time.Millisecond)), exp: false},
		"exactlyAtExpiry":  {now: time.Unix(1100, 0), exp: true},
		"afterExpiry":      {now: time.Unix(5000, 0), exp: true},
		"clockBehind":      {now: time.Unix(900, 0), exp: false},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			got, err := token.IsExpired(h, tc.now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.exp {
				t.Errorf("exp expired=%t, got %t", tc.exp, got)
			}
		})
	}
}

func TestIsExpired_ZeroLifetime(t *testing.T) {
	got, err := token.IsExpired(token.Hash{CreatedAt: 1000, ExpiresIn: 0}, time.Unix(1000, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("zero lifetime token should be expired immediately")
	}
}

func TestIsExpired_UnsetLifetime(t *testing.T) {
	// Without FromMap's presence check an unset ExpiresIn reads as zero.
	got, err := token.IsExpired(token.Hash{AccessToken: "A21AA1", CreatedAt: 1000}, time.Unix(1000, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("hash without a lifetime should be expired")
	}
}

func TestIsExpired_Malformed(t *testing.T) {
	testCases := map[string]token.Hash{
		"missingCreatedAt": {ExpiresIn: 100},
		"zeroCreatedAt":    {CreatedAt: 0, ExpiresIn: 100},
		"nanCreatedAt":     {CreatedAt: math.NaN(), ExpiresIn: 100},
		"infCreatedAt":     {CreatedAt: math.Inf(1), ExpiresIn: 100},
		"nanExpiresIn":     {CreatedAt: 1000, ExpiresIn: math.NaN()},
		"infExpiresIn":     {CreatedAt: 1000, ExpiresIn: math.Inf(1)},
		"negativeLifetime": {CreatedAt: 1000, ExpiresIn: -1},
	}

	for name, h := range testCases {
		t.Run(name, func(t *testing.T) {
			expired, err := token.IsExpired(h, time.Unix(1050, 0))
			if !errors.Is(err, token.ErrMalformed) {
				t.Fatalf("exp err: %v, got: %v", token.ErrMalformed, err)
			}
			if expired {
				t.Error("malformed hash must not report a freshness verdict")
			}
		})
	}
}

func TestIsExpired_DoesNotMutate(t *testing.T) {
	h := token.Hash{AccessToken: "abc", CreatedAt: 1000, ExpiresIn: 100}
	orig := h

	if _, err := token.IsExpired(h, time.Unix(2000, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff(orig, h); diff != "" {
		t.Errorf("hash mutated (-want +got):\n%s", diff)
	}
}

func TestHash_ExpiresAt(t *testing.T) {
	h := token.Hash{CreatedAt: 1000.5, ExpiresIn: 100}

	exp := time.Unix(1100, int64(500*time.Millisecond))
	if got := h.ExpiresAt(); !got.Equal(exp) {
		t.Errorf("exp %v, got %v", exp, got)
	}
}

func TestFromMap(t *testing.T) {
	testCases := map[string]struct {
		m   map[string]any
		exp token.Hash
		err error
	}{
		"valid": {
			m: map[string]any{
				"access_token": "A21AA",
				"token_type":   "Bearer",
				"app_id":       "APP-80W284485P519543T",
				"expires_in":   32400,
				"created_at":   1700000000.25,
			},
			exp: token.Hash{
				AccessToken: "A21AA",
				TokenType:   "Bearer",
				AppID:       "APP-80W284485P519543T",
				ExpiresIn:   32400,
				CreatedAt:   1700000000.25,
			},
		},
		"jsonNumbers": {
			m: map[string]any{
				"expires_in": json.Number("100"),
				"created_at": json.Number("1000"),
			},
			exp: token.Hash{ExpiresIn: 100, CreatedAt: 1000},
		},
		"nil":              {m: nil, err: token.ErrMalformed},
		"missingCreatedAt": {m: map[string]any{"expires_in": 100}, err: token.ErrMalformed},
		"missingExpiresIn": {m: map[string]any{"created_at": 1000}, err: token.ErrMalformed},
		"nonNumericCreatedAt": {
			m:   map[string]any{"created_at": "yesterday", "expires_in": 100},
			err: token.ErrMalformed,
		},
		"nonNumericExpiresIn": {
			m:   map[string]any{"created_at": 1000, "expires_in": true},
			err: token.ErrMalformed,
		},
		"nullCreatedAt": {
			m:   map[string]any{"created_at": nil, "expires_in": 100},
			err: token.ErrMalformed,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			got, err := token.FromMap(tc.m)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("exp err: %v, got: %v", tc.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if diff := cmp.Diff(tc.exp, got); diff != "" {
				t.Errorf("hash mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse(t *testing.T) {
	body := []byte(`{
		"scope": "https://uri.paypal.com/services/subscriptions",
		"access_token": "A21AAFEpH4PsADK7qSS7pSRsgzfENtu",
		"token_type": "Bearer",
		"app_id": "APP-80W284485P519543T",
		"expires_in": 31668,
		"nonce": "2020-04-03T15:35:36ZaYZlGvEkV4yVSz8g6bAKFoGSEzuy3CQcz3ljhibkOHg"
	}`)
	received := time.Unix(1700000000, 0)

	h, err := token.Parse(body, received)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if h.CreatedAt != 1700000000 {
		t.Errorf("created_at not stamped: %v", h.CreatedAt)
	}
	if h.ExpiresIn != 31668 {
		t.Errorf("expires_in: exp 31668, got %v", h.ExpiresIn)
	}
	if h.AccessToken != "A21AAFEpH4PsADK7qSS7pSRsgzfENtu" {
		t.Errorf("unexpected access token %q", h.AccessToken)
	}

	expired, err := token.IsExpired(h, received.Add(31667*time.Second))
	if err != nil || expired {
		t.Errorf("expected fresh token, got expired=%t err=%v", expired, err)
	}
}

func TestParse_Malformed(t *testing.T) {
	testCases := map[string][]byte{
		"notJSON":          []byte(`<html>`),
		"null":             []byte(`null`),
		"missingExpiresIn": []byte(`{"access_token":"x"}`),
		"stringExpiresIn":  []byte(`{"access_token":"x","expires_in":"soon"}`),
	}

	for name, body := range testCases {
		t.Run(name, func(t *testing.T) {
			if _, err := token.Parse(body, time.Unix(1000, 0)); !errors.Is(err, token.ErrMalformed) {
				t.Errorf("exp err: %v, got: %v", token.ErrMalformed, err)
			}
		})
	}
}
