package resource

import (
	"fmt"
	"net/url"
	"strings"
)

// Placeholders returns the %(name)s placeholders of template in the order
// they appear.
func Placeholders(template string) ([]string, error) {
	var names []string

	err := scanTemplate(template, func(literal string) {}, func(name string) error {
		names = append(names, name)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return names, nil
}

// Resolve expands every %(name)s placeholder of template, left to right, with
// the path-escaped binding. Substituted values are never rescanned, and "%%"
// yields a literal percent sign.
func Resolve(template string, bindings map[string]string) (string, error) {
	var out strings.Builder

	out.Grow(len(template))

	err := scanTemplate(template,
		func(literal string) {
			out.WriteString(literal)
		},
		func(name string) error {
			value, ok := bindings[name]
			if !ok || value == "" {
				return fmt.Errorf("%w: %s", ErrMissingPathParameter, name)
			}

			out.WriteString(url.PathEscape(value))

			return nil
		})
	if err != nil {
		return "", err
	}

	return out.String(), nil
}

func scanTemplate(template string, literal func(string), placeholder func(string) error) error {
	rest := template

	for {
		idx := strings.IndexByte(rest, '%')
		if idx < 0 {
			literal(rest)

			return nil
		}

		literal(rest[:idx])
		rest = rest[idx:]

		switch {
		case strings.HasPrefix(rest, "%%"):
			literal("%")
			rest = rest[2:]
		case strings.HasPrefix(rest, "%("):
			end := strings.Index(rest, ")s")
			if end < 0 {
				return fmt.Errorf("%w: unterminated placeholder in %q", ErrMalformedTemplate, template)
			}

			name := rest[2:end]
			if name == "" || strings.ContainsAny(name, "%()") {
				return fmt.Errorf("%w: bad placeholder %q in %q", ErrMalformedTemplate, rest[:end+2], template)
			}

			err := placeholder(name)
			if err != nil {
				return err
			}

			rest = rest[end+2:]
		default:
			literal("%")
			rest = rest[1:]
		}
	}
}

// joinPath appends escaped segments to a resolved base path.
func joinPath(base string, segments ...string) string {
	path := strings.TrimRight(base, "/")

	for _, segment := range segments {
		path += "/" + url.PathEscape(segment)
	}

	return path
}
