package request

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/adamwoolhether/paysdk/pathtmpl"
)

// Route is the data describing one endpoint: its verb, path template
// and whether it carries a request body.
type Route struct {
	Name    string
	Verb    Verb
	Path    string
	HasBody bool
}

// Params lists the placeholders the route's path expects.
func (r Route) Params() []string {
	names, err := pathtmpl.Names(r.Path)
	if err != nil {
		return nil
	}
	return names
}

// Build creates a descriptor for the route. A body may only be given
// when the route accepts one; pass nil to leave it unset.
func (r Route) Build(params Params, body any) (Descriptor, error) {
	if body != nil && !r.HasBody {
		return Descriptor{}, fmt.Errorf("%s: %w", r.Name, ErrBodyNotAllowed)
	}

	d, err := New(r.Verb, r.Path, params)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%s: %w", r.Name, err)
	}
	d.name = r.Name

	if body != nil {
		d = d.WithBody(body)
	}

	return d, nil
}

// NoBody marks an [Endpoint] that never sends a request body.
type NoBody struct{}

// Endpoint is a [Route] whose body is typed as B.
type Endpoint[B any] struct {
	Route
}

// Build creates a descriptor without a body.
func (e Endpoint[B]) Build(params Params) (Descriptor, error) {
	return e.Route.Build(params, nil)
}

// BuildWithBody creates a descriptor carrying body.
func (e Endpoint[B]) BuildWithBody(params Params, body B) (Descriptor, error) {
	if !e.HasBody {
		return Descriptor{}, fmt.Errorf("%s: %w", e.Name, ErrBodyNotAllowed)
	}

	d, err := e.Route.Build(params, nil)
	if err != nil {
		return Descriptor{}, err
	}

	return d.WithBody(body), nil
}

var registry = struct {
	mu     sync.RWMutex
	routes map[string]Route
}{routes: map[string]Route{}}

// Register adds an endpoint to the table, panicking on a duplicate or
// malformed definition. It is meant for package-level declarations.
func Register[B any](name string, verb Verb, path string) Endpoint[B] {
	_, noBody := any(*new(B)).(NoBody)

	r := Route{
		Name:    name,
		Verb:    verb,
		Path:    path,
		HasBody: !noBody,
	}

	if err := verb.Validate(); err != nil {
		panic(fmt.Sprintf("registering %s: %v", name, err))
	}
	if _, err := pathtmpl.Names(path); err != nil {
		panic(fmt.Sprintf("registering %s: %v", name, err))
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.routes[name]; exists {
		panic(fmt.Sprintf("registering %s: duplicate endpoint", name))
	}
	registry.routes[name] = r

	return Endpoint[B]{Route: r}
}

// Lookup returns the registered route called name.
func Lookup(name string) (Route, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	r, ok := registry.routes[name]
	if !ok {
		return Route{}, fmt.Errorf("%w: %s", ErrUnknownEndpoint, name)
	}

	return r, nil
}

// Routes returns every registered route sorted by name.
func Routes() []Route {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	routes := make([]Route, 0, len(registry.routes))
	for _, r := range registry.routes {
		routes = append(routes, r)
	}
	slices.SortFunc(routes, func(a, b Route) int {
		return strings.Compare(a.Name, b.Name)
	})

	return routes
}
