// Package pathtmpl substitutes {name} placeholders in API path
// templates with percent-encoded values.
//
// Placeholders are plain RFC 6570 expressions of the form {name}; operators
// such as {+name} or {#name}, prefixes and variable lists are rejected.
// Every byte of a value's UTF-8 encoding outside the unreserved set
// (ALPHA / DIGIT / "-" / "." / "_" / "~") is percent-encoded, so values
// containing "/", "?", spaces or unicode are always safe to place in a
// request line.
//
//	p, err := pathtmpl.Resolve("/v1/billing/subscriptions/{subscription_id}/activate?",
//		map[string]string{"subscription_id": "I D/with space"})
//	// p == "/v1/billing/subscriptions/I%20D%2Fwith%20space/activate?"
package pathtmpl

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/yosida95/uritemplate/v3"
)

var (
	ErrInvalidTemplate = errors.New("invalid path template")
	ErrMissingValue    = errors.New("missing path value")
)

var (
	expression  = regexp.MustCompile(`\{[^{}]*\}`)
	placeholder = regexp.MustCompile(`^\{[A-Za-z0-9_]+\}$`)
)

// Resolve replaces every placeholder in template with the escaped form
// of its value. Every referenced name must be present in values; values
// not referenced by the template are ignored.
func Resolve(template string, values map[string]string) (string, error) {
	tmpl, err := parse(template)
	if err != nil {
		return "", err
	}

	var missing *multierror.Error
	for _, name := range varnames(tmpl) {
		if _, ok := values[name]; !ok {
			missing = multierror.Append(missing, fmt.Errorf("%w: %s", ErrMissingValue, name))
		}
	}
	if err := missing.ErrorOrNil(); err != nil {
		return "", fmt.Errorf("resolving %q: %w", template, err)
	}

	path := expression.ReplaceAllStringFunc(template, func(expr string) string {
		return escape(values[expr[1:len(expr)-1]])
	})

	return path, nil
}

// Names lists the placeholder names referenced by template, sorted and
// without duplicates.
func Names(template string) ([]string, error) {
	tmpl, err := parse(template)
	if err != nil {
		return nil, err
	}

	return varnames(tmpl), nil
}

func varnames(tmpl *uritemplate.Template) []string {
	names := slices.Clone(tmpl.Varnames())
	slices.Sort(names)

	return slices.Compact(names)
}

// parse checks the template syntax and allows bare {name} expressions
// only. Operators, modifiers and lists would place values unescaped or
// truncated.
func parse(template string) (*uritemplate.Template, error) {
	tmpl, err := uritemplate.New(template)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidTemplate, template, err)
	}

	for _, expr := range expression.FindAllString(template, -1) {
		if !placeholder.MatchString(expr) {
			return nil, fmt.Errorf("%w %q: %s is not a plain placeholder", ErrInvalidTemplate, template, expr)
		}
	}

	return tmpl, nil
}

const upperhex = "0123456789ABCDEF"

// escape percent-encodes every byte of v outside the unreserved set.
// Multi-byte characters are encoded byte by byte; invalid UTF-8 passes
// through the same way.
func escape(v string) string {
	var b strings.Builder
	b.Grow(len(v))

	for i := range len(v) {
		c := v[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0F])
	}

	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}
