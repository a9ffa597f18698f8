// Package token evaluates whether a cached access token is still fresh and
// owns the cache that refreshes it.
package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

var ErrMalformed = errors.New("malformed token hash")

// Hash is the cached credential returned by the token endpoint. CreatedAt
// is stamped locally when the token is received; ExpiresIn is its
// lifetime in seconds.
type Hash struct {
	AccessToken string  `json:"access_token" mapstructure:"access_token"`
	TokenType   string  `json:"token_type" mapstructure:"token_type"`
	AppID       string  `json:"app_id,omitempty" mapstructure:"app_id"`
	Scope       string  `json:"scope,omitempty" mapstructure:"scope"`
	Nonce       string  `json:"nonce,omitempty" mapstructure:"nonce"`
	ExpiresIn   float64 `json:"expires_in" mapstructure:"expires_in"`
	CreatedAt   float64 `json:"created_at" mapstructure:"created_at"`
}

// Validate reports whether the timing fields can be used to decide
// freshness.
func (h Hash) Validate() error {
	switch {
	case math.IsNaN(h.CreatedAt) || math.IsInf(h.CreatedAt, 0) || h.CreatedAt <= 0:
		return fmt.Errorf("%w: created_at[%v] must be a positive epoch", ErrMalformed, h.CreatedAt)
	case math.IsNaN(h.ExpiresIn) || math.IsInf(h.ExpiresIn, 0) || h.ExpiresIn < 0:
		return fmt.Errorf("%w: expires_in[%v] must be a non-negative number of seconds", ErrMalformed, h.ExpiresIn)
	}

	return nil
}

// ExpiresAt is the instant the token stops being fresh.
func (h Hash) ExpiresAt() time.Time {
	return epoch(h.CreatedAt + h.ExpiresIn)
}

// IsExpired reports whether h is stale at now: the token is expired
// once the seconds elapsed since CreatedAt reach ExpiresIn.
//
// CreatedAt must be a positive epoch. A zero CreatedAt is treated as
// never stamped and returns [ErrMalformed], even though 0 is a valid
// epoch. A Hash built in code with ExpiresIn left unset has a zero
// lifetime and is always expired; use [FromMap] or [Parse] to have a
// missing expires_in rejected instead.
func IsExpired(h Hash, now time.Time) (bool, error) {
	if err := h.Validate(); err != nil {
		return false, err
	}

	delta := seconds(now) - h.CreatedAt

	return delta >= h.ExpiresIn, nil
}

// FromMap decodes a stored token hash. created_at and expires_in must be
// present and numeric.
func FromMap(m map[string]any) (Hash, error) {
	if m == nil {
		return Hash{}, fmt.Errorf("%w: nil", ErrMalformed)
	}

	for _, key := range []string{"created_at", "expires_in"} {
		if _, ok := m[key]; !ok {
			return Hash{}, fmt.Errorf("%w: %s is missing", ErrMalformed, key)
		}
	}

	var h Hash
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &h,
		WeaklyTypedInput: false,
		DecodeHook:       jsonNumberHook,
	})
	if err != nil {
		return Hash{}, fmt.Errorf("building decoder: %w", err)
	}

	if err := dec.Decode(m); err != nil {
		return Hash{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if err := h.Validate(); err != nil {
		return Hash{}, err
	}

	return h, nil
}

// Parse decodes a token endpoint response body and stamps CreatedAt
// with receivedAt.
func Parse(data []byte, receivedAt time.Time) (Hash, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Hash{}, fmt.Errorf("%w: decoding response: %w", ErrMalformed, err)
	}
	if m == nil {
		return Hash{}, fmt.Errorf("%w: empty response", ErrMalformed)
	}

	m["created_at"] = seconds(receivedAt)

	return FromMap(m)
}

// jsonNumberHook converts json.Number into float64 so hashes decoded
// with UseNumber still pass strict decoding.
func jsonNumberHook(_, to reflect.Type, data any) (any, error) {
	n, ok := data.(json.Number)
	if !ok || to.Kind() != reflect.Float64 {
		return data, nil
	}

	f, err := n.Float64()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func seconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func epoch(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*float64(time.Second)))
}
