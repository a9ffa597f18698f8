// Package config assembles the effective options for API calls by
// layering user supplied trees over environment defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"golang.org/x/oauth2/clientcredentials"
	"gopkg.in/yaml.v3"

	"github.com/adamwoolhether/paysdk/configtree"
	"github.com/adamwoolhether/paysdk/internal/validate"
)

// Mode selects the environment calls are sent to.
type Mode string

const (
	Sandbox             Mode = "sandbox"
	Live                Mode = "live"
	SecurityTestSandbox Mode = "security-test-sandbox"
)

const tokenPath = "/v1/oauth2/token"

var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultEndpoint is the web hostname for mode.
func DefaultEndpoint(mode Mode) string {
	if mode == Live {
		return "paypal.com"
	}
	return "sandbox.paypal.com"
}

// DefaultAPIEndpoint is the REST API hostname for mode.
func DefaultAPIEndpoint(mode Mode) string {
	api := "api."
	if mode == SecurityTestSandbox {
		api = "test-api."
	}
	return api + DefaultEndpoint(mode)
}

// Options are the decoded, validated settings for a client.
type Options struct {
	Mode         Mode              `mapstructure:"mode" validate:"oneof=sandbox live security-test-sandbox"`
	Schema       string            `mapstructure:"schema" validate:"oneof=http https"`
	Host         string            `mapstructure:"host" validate:"required,hostname_rfc1123"`
	Port         int               `mapstructure:"port" validate:"omitempty,gte=1,lte=65535"`
	ClientID     string            `mapstructure:"client_id"`
	ClientSecret string            `mapstructure:"client_secret" validate:"required_with=ClientID"`
	Timeout      time.Duration     `mapstructure:"timeout" validate:"gte=0"`
	UserAgent    string            `mapstructure:"user_agent"`
	Headers      map[string]string `mapstructure:"headers"`
	Throttle     *Throttle         `mapstructure:"throttle"`
}

// Throttle caps the outbound request rate.
type Throttle struct {
	RPS   int `mapstructure:"rps" validate:"gt=0"`
	Burst int `mapstructure:"burst" validate:"gt=0"`
}

// Address is host[:port] as used in URLs.
func (o Options) Address() string {
	if o.Port == 0 {
		return o.Host
	}
	return o.Host + ":" + strconv.Itoa(o.Port)
}

// TokenConfig describes the client credentials grant against the
// environment's token endpoint. It is nil when no client id is set.
func (o Options) TokenConfig() *clientcredentials.Config {
	if o.ClientID == "" {
		return nil
	}

	u := url.URL{Scheme: o.Schema, Host: o.Address(), Path: tokenPath}

	return &clientcredentials.Config{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		TokenURL:     u.String(),
	}
}

// Defaults is the configuration tree every build starts from.
func Defaults(mode Mode) configtree.Tree {
	return configtree.Tree{
		"mode":       string(mode),
		"schema":     "https",
		"host":       DefaultAPIEndpoint(mode),
		"timeout":    "30s",
		"user_agent": "paysdk-go",
		"headers": configtree.Tree{
			"Accept": "application/json",
		},
	}
}

// Build merges overrides over the defaults for the requested mode and
// decodes the result. overrides is not modified.
func Build(overrides configtree.Tree) (Options, error) {
	if overrides == nil {
		overrides = configtree.Tree{}
	}

	mode := Sandbox
	if m, ok := overrides["mode"].(string); ok && m != "" {
		mode = Mode(m)
	}

	tree, err := configtree.Merge(Defaults(mode), overrides)
	if err != nil {
		return Options{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return decode(tree)
}

// ForCall resolves the options for a single call: values in call win,
// and global only fills in keys call leaves out. Neither tree is
// modified.
func ForCall(global, call configtree.Tree) (Options, error) {
	tree, err := configtree.CloneTree(call)
	if err != nil {
		return Options{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if tree == nil {
		tree = configtree.Tree{}
	}

	if global != nil {
		if _, err := configtree.Merge(tree, global, configtree.AppendOnly()); err != nil {
			return Options{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	return Build(tree)
}

// Load reads a YAML document into a tree. An empty document yields an
// empty tree.
func Load(r io.Reader) (configtree.Tree, error) {
	tree := configtree.Tree{}
	if err := yaml.NewDecoder(r).Decode(&tree); err != nil {
		if errors.Is(err, io.EOF) {
			return configtree.Tree{}, nil
		}
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}

	return tree, nil
}

// LoadFile reads a YAML configuration file into a tree.
func LoadFile(path string) (configtree.Tree, error) {
	if path == "" {
		return nil, errors.New("configuration file path is required")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening configuration: %w", err)
	}
	defer f.Close()

	tree, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	return tree, nil
}

func decode(tree configtree.Tree) (Options, error) {
	var opts Options
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &opts,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return Options{}, fmt.Errorf("building decoder: %w", err)
	}

	if err := dec.Decode(tree); err != nil {
		return Options{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := validate.Struct(opts); err != nil {
		return Options{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return opts, nil
}
