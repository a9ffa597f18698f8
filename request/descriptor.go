// Package request describes outgoing API calls as immutable values.
//
// A [Descriptor] captures the verb, resolved path, headers and body of
// one call. Endpoints are plain data ([Route]) built by one generic
// builder; [Endpoint] binds a body type to a route for compile-time
// checking at the call site:
//
//	d, err := request.SubscriptionActivate.BuildWithBody(
//		request.Params{"subscription_id": "I-BW452GLLEP1G"},
//		request.StateChangeReason{Reason: "Reactivating the subscription"},
//	)
//
// Descriptors are never mutated: WithBody and WithHeader return updated
// copies. A transport consumes them; this package performs no I/O.
package request

import (
	"errors"
	"fmt"
	"maps"
	"net/http"

	"github.com/adamwoolhether/paysdk/internal/validate"
	"github.com/adamwoolhether/paysdk/pathtmpl"
)

const ContentTypeJSON = "application/json"

var (
	ErrInvalidVerb     = errors.New("invalid verb")
	ErrInvalidPath     = errors.New("invalid path")
	ErrBodyNotAllowed  = errors.New("endpoint does not accept a body")
	ErrUnknownEndpoint = errors.New("unknown endpoint")
)

// Verb is the HTTP method of a call.
type Verb string

const (
	GET    Verb = http.MethodGet
	POST   Verb = http.MethodPost
	PUT    Verb = http.MethodPut
	PATCH  Verb = http.MethodPatch
	DELETE Verb = http.MethodDelete
)

// Validate reports whether v is one of the supported verbs.
func (v Verb) Validate() error {
	if err := validate.Var("verb", string(v), "required,oneof=GET POST PUT PATCH DELETE"); err != nil {
		return fmt.Errorf("%w[%s]: %w", ErrInvalidVerb, v, err)
	}

	return nil
}

// Params maps path placeholder names to raw, unescaped values.
type Params map[string]string

// Descriptor is the fully specified shape of one outgoing call.
type Descriptor struct {
	name    string
	verb    Verb
	path    string
	headers map[string]string
	body    any
	hasBody bool
}

// New builds a descriptor for verb, resolving template with params.
// Content-Type is fixed to application/json.
func New(verb Verb, template string, params Params) (Descriptor, error) {
	if err := verb.Validate(); err != nil {
		return Descriptor{}, err
	}

	path, err := pathtmpl.Resolve(template, params)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}

	d := Descriptor{
		verb: verb,
		path: path,
		headers: map[string]string{
			"Content-Type": ContentTypeJSON,
		},
	}

	return d, nil
}

// Name is the endpoint the descriptor was built from, empty for ad hoc
// descriptors.
func (d Descriptor) Name() string { return d.name }

func (d Descriptor) Verb() Verb { return d.verb }

func (d Descriptor) Path() string { return d.path }

// Headers returns a copy of the descriptor's headers.
func (d Descriptor) Headers() map[string]string { return maps.Clone(d.headers) }

// Header returns the value of a single header.
func (d Descriptor) Header(key string) (string, bool) {
	v, ok := d.headers[key]
	return v, ok
}

func (d Descriptor) Body() any { return d.body }

// HasBody reports whether a body was set, including an explicit nil.
func (d Descriptor) HasBody() bool { return d.hasBody }

// WithBody returns a copy of d carrying body. Calling it again replaces
// the previous body; bodies are never merged. The body's shape is not
// checked here.
func (d Descriptor) WithBody(body any) Descriptor {
	d.body = body
	d.hasBody = true
	return d
}

// WithHeader returns a copy of d with key set to value.
func (d Descriptor) WithHeader(key, value string) Descriptor {
	headers := maps.Clone(d.headers)
	if headers == nil {
		headers = make(map[string]string, 1)
	}
	headers[key] = value
	d.headers = headers
	return d
}

// Validate checks the descriptor invariants: a supported verb and a
// rooted path with no unresolved placeholders.
func (d Descriptor) Validate() error {
	if err := d.verb.Validate(); err != nil {
		return err
	}

	if err := validate.Var("path", d.path, "required,startswith=/,excludesall={}"); err != nil {
		return fmt.Errorf("%w[%s]: %w", ErrInvalidPath, d.path, err)
	}

	return nil
}

// String renders the request line, e.g. "GET /v1/payments/sale/1?".
func (d Descriptor) String() string {
	return string(d.verb) + " " + d.path
}
