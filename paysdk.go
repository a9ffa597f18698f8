// Package paysdk builds API clients for the payments REST API.
package paysdk

import (
	"fmt"

	"github.com/adamwoolhether/paysdk/client"
	"github.com/adamwoolhether/paysdk/config"
	"github.com/adamwoolhether/paysdk/configtree"
	"github.com/adamwoolhether/paysdk/token"
)

// NewClient instantiates a new *Client with the provided options.
// If not specified, a fresh http.Client and the default http.Transport are used.
func NewClient(opts ...client.Option) (*client.Client, error) {
	return client.Build(opts...)
}

// Configure resolves overrides against the environment defaults and builds
// a Client from the result. When a client id is configured, calls are
// authorized with tokens from the client credentials grant, cached until
// they expire. opts are applied after the configuration and win over it.
func Configure(overrides configtree.Tree, opts ...client.Option) (*client.Client, error) {
	cfg, err := config.Build(overrides)
	if err != nil {
		return nil, fmt.Errorf("resolving configuration: %w", err)
	}

	base := []client.Option{client.WithConfig(cfg)}
	if cc := cfg.TokenConfig(); cc != nil {
		cache, err := token.NewCache(token.FetcherFromCredentials(cc, nil))
		if err != nil {
			return nil, fmt.Errorf("creating token cache: %w", err)
		}
		base = append(base, client.WithTokens(cache))
	}

	return client.Build(append(base, opts...)...)
}

// ConfigureFile is Configure with overrides read from a YAML file.
func ConfigureFile(path string, opts ...client.Option) (*client.Client, error) {
	tree, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}

	return Configure(tree, opts...)
}
