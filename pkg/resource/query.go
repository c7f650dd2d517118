package resource

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
)

// Reserved external names of the pagination parameters.
const (
	QueryLimit  = "limit"
	QueryMarker = "marker"
)

// QueryMapping declares which filter, sort and pagination keys a list
// operation accepts and how external names alias wire keys. limit and marker
// are always present unless explicitly remapped.
type QueryMapping struct {
	params     map[string]string
	permissive bool
	defaults   map[string]string
}

// QueryParam is one external-to-wire alias.
type QueryParam struct {
	Name string
	Wire string
}

// Param declares a filter whose external name equals its wire key.
func Param(name string) QueryParam {
	return QueryParam{Name: name, Wire: name}
}

// Alias declares a filter exposed as name but sent as wire.
func Alias(name, wire string) QueryParam {
	return QueryParam{Name: name, Wire: wire}
}

// NewQueryMapping builds a mapping. Duplicate external names are rejected.
func NewQueryMapping(params ...QueryParam) (QueryMapping, error) {
	mapping := QueryMapping{
		params: map[string]string{
			QueryLimit:  QueryLimit,
			QueryMarker: QueryMarker,
		},
	}

	seen := make(map[string]struct{}, len(params))

	for _, param := range params {
		if param.Name == "" || param.Wire == "" {
			return QueryMapping{}, fmt.Errorf("%w: empty query parameter name", ErrInvalidSchema)
		}

		if _, dup := seen[param.Name]; dup {
			return QueryMapping{}, fmt.Errorf("%w: duplicate query parameter %q", ErrInvalidSchema, param.Name)
		}

		seen[param.Name] = struct{}{}
		mapping.params[param.Name] = param.Wire
	}

	return mapping, nil
}

// Permissive returns a copy that passes unknown parameters through verbatim.
func (m QueryMapping) Permissive() QueryMapping {
	m.permissive = true

	return m
}

// WithDefaults returns a copy whose defaults are merged under caller filters.
// Keys are external names.
func (m QueryMapping) WithDefaults(defaults map[string]string) QueryMapping {
	merged := make(map[string]string, len(m.defaults)+len(defaults))
	for k, v := range m.defaults {
		merged[k] = v
	}

	for k, v := range defaults {
		merged[k] = v
	}

	m.defaults = merged

	return m
}

// Names returns the accepted external names, sorted.
func (m QueryMapping) Names() []string {
	names := make([]string, 0, len(m.params))
	for name := range m.params {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// WireKey returns the wire key for an external name.
func (m QueryMapping) WireKey(name string) (string, bool) {
	if m.params == nil {
		switch name {
		case QueryLimit, QueryMarker:
			return name, true
		}

		return "", false
	}

	wire, ok := m.params[name]

	return wire, ok
}

// IsPermissive reports whether unknown parameters pass through.
func (m QueryMapping) IsPermissive() bool {
	return m.permissive
}

// Transpose merges filters over the defaults and renames them to wire keys.
// Unknown names fail with ErrInvalidQuery unless the mapping is permissive.
func (m QueryMapping) Transpose(filters map[string]any) (url.Values, error) {
	values := url.Values{}

	for name, value := range m.defaults {
		if _, overridden := filters[name]; overridden {
			continue
		}

		wire, _ := m.WireKey(name)
		if wire == "" {
			wire = name
		}

		values.Set(wire, value)
	}

	for name, value := range filters {
		wire, ok := m.WireKey(name)
		if !ok {
			if !m.permissive {
				return nil, fmt.Errorf("%w: %q", ErrInvalidQuery, name)
			}

			wire = name
		}

		values.Del(wire)

		for _, v := range queryStrings(value) {
			values.Add(wire, v)
		}
	}

	return values, nil
}

func queryStrings(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return []string{v}
	case []string:
		return v
	case bool:
		return []string{strconv.FormatBool(v)}
	case int:
		return []string{strconv.Itoa(v)}
	case int64:
		return []string{strconv.FormatInt(v, 10)}
	case float64:
		return []string{strconv.FormatFloat(v, 'f', -1, 64)}
	case time.Time:
		return []string{v.UTC().Format(time.RFC3339)}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, queryStrings(item)...)
		}

		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}

// FiltersFromStruct converts a `url:"name,omitempty"` tagged struct into a
// filter map keyed by external names.
func FiltersFromStruct(opts any) (map[string]any, error) {
	values, err := query.Values(opts)
	if err != nil {
		return nil, fmt.Errorf("encoding filters: %w", err)
	}

	filters := make(map[string]any, len(values))

	for key, vals := range values {
		switch len(vals) {
		case 0:
		case 1:
			filters[key] = vals[0]
		default:
			filters[key] = append([]string(nil), vals...)
		}
	}

	return filters, nil
}

// parseLimit reads a positive page size from a filter value.
func parseLimit(value any) (int, bool) {
	strs := queryStrings(value)
	if len(strs) != 1 {
		return 0, false
	}

	n, err := strconv.Atoi(strings.TrimSpace(strs[0]))
	if err != nil || n <= 0 {
		return 0, false
	}

	return n, true
}
