package resource

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ToValue coerces a raw wire value to the attribute's type. Soft problems
// (a malformed timestamp) leave the raw value in place and come back as
// warnings; hard problems come back as err.
func ToValue(raw any, attr Attribute, microversion string) (any, []error, error) {
	return coerce(raw, attr.Type, microversion)
}

func coerce(raw any, t ValueType, microversion string) (any, []error, error) {
	if raw == nil {
		return nil, nil, nil
	}

	switch t.Kind {
	case KindAny:
		return raw, nil, nil
	case KindString:
		v, err := coerceString(raw)

		return v, nil, err
	case KindInt:
		v, err := coerceInt(raw)

		return v, nil, err
	case KindFloat:
		v, err := coerceFloat(raw)

		return v, nil, err
	case KindBool:
		v, err := coerceBool(raw)

		return v, nil, err
	case KindTimestamp:
		return coerceTimestamp(raw)
	case KindNested:
		return coerceNested(raw, t.Schema, microversion)
	case KindList:
		return coerceList(raw, *t.Elem, microversion)
	default:
		return raw, nil, nil
	}
}

func coerceString(raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool, int, int64, float64:
		return fmt.Sprint(v), nil
	default:
		return nil, fmt.Errorf("%w: %T is not a string", ErrInvalidValue, raw)
	}
}

func coerceInt(raw any) (any, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return floatToInt(v, fmt.Sprint(v))
	case json.Number:
		return parseIntString(v.String())
	case string:
		return parseIntString(v)
	default:
		return nil, fmt.Errorf("%w: %T is not an integer", ErrInvalidValue, raw)
	}
}

func parseIntString(s string) (any, error) {
	s = strings.TrimSpace(s)

	n, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return n, nil
	}

	f, ferr := strconv.ParseFloat(s, 64)
	if ferr != nil && !errors.Is(ferr, strconv.ErrRange) {
		return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, s)
	}

	return floatToInt(f, strconv.Quote(s))
}

// floatToInt accepts whole numbers within the int64 range.
func floatToInt(f float64, text string) (any, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %s is not an integer", ErrInvalidValue, text)
	}

	if f < math.MinInt64 || f >= math.MaxInt64 {
		return nil, fmt.Errorf("%w: %s overflows int64", ErrInvalidValue, text)
	}

	return int64(f), nil
}

func coerceFloat(raw any) (any, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, v.String())
		}

		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, v)
		}

		return f, nil
	default:
		return nil, fmt.Errorf("%w: %T is not a number", ErrInvalidValue, raw)
	}
}

func coerceBool(raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, v)
		}

		return b, nil
	default:
		return nil, fmt.Errorf("%w: %T is not a boolean", ErrInvalidValue, raw)
	}
}

// coerceTimestamp parses ISO-8601 first and falls back to dateparse for the
// zone-less and space-separated forms some services emit.
func coerceTimestamp(raw any) (any, []error, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil, nil
	case string:
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err == nil {
			return ts, nil, nil
		}

		ts, err = dateparse.ParseIn(v, time.UTC)
		if err == nil {
			return ts, nil, nil
		}

		return v, []error{fmt.Errorf("%w: %q", ErrMalformedTimestamp, v)}, nil
	default:
		return raw, []error{fmt.Errorf("%w: %T", ErrMalformedTimestamp, raw)}, nil
	}
}

func coerceNested(raw any, schema *Schema, microversion string) (any, []error, error) {
	switch v := raw.(type) {
	case *Entity:
		if v.schema != schema {
			return nil, nil, fmt.Errorf("%w: entity of %s where %s expected", ErrInvalidValue, v.schema.Name(), schema.Name())
		}

		return v, nil, nil
	case map[string]any:
		child, err := fromWire(schema, v, nil, microversion)
		if err != nil {
			return nil, nil, err
		}

		return child, child.warnings, nil
	default:
		return nil, nil, fmt.Errorf("%w: %T is not a mapping for %s", ErrInvalidValue, raw, schema.Name())
	}
}

func coerceList(raw any, elem ValueType, microversion string) (any, []error, error) {
	var items []any

	switch v := raw.(type) {
	case []any:
		items = v
	case []string:
		items = make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
	case []map[string]any:
		items = make([]any, len(v))
		for i, m := range v {
			items[i] = m
		}
	case []*Entity:
		items = make([]any, len(v))
		for i, e := range v {
			items[i] = e
		}
	default:
		return nil, nil, fmt.Errorf("%w: %T is not a list", ErrInvalidValue, raw)
	}

	out := make([]any, len(items))

	var warnings []error

	for i, item := range items {
		value, warns, err := coerce(item, elem, microversion)
		if err != nil {
			return nil, nil, fmt.Errorf("element %d: %w", i, err)
		}

		out[i] = value
		warnings = append(warnings, warns...)
	}

	return out, warnings, nil
}

// toWire converts a typed value back to its wire representation.
func toWire(value any, t ValueType, microversion string) any {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case *Entity:
		return v.payload(microversion, false)
	case []any:
		elem := TypeAny
		if t.Elem != nil {
			elem = *t.Elem
		}

		out := make([]any, len(v))
		for i, item := range v {
			out[i] = toWire(item, elem, microversion)
		}

		return out
	default:
		return value
	}
}

// FromEntity emits the full wire payload of the entity's present body fields.
func FromEntity(e *Entity) map[string]any {
	return e.payload(e.microversion, false)
}

// CommitPayload emits only the fields changed since the last sync; fields
// marked for removal are emitted as null. The identity is left out when the
// schema addresses entities by it in the path.
func CommitPayload(e *Entity) map[string]any {
	payload := e.payload(e.microversion, true)

	if attr, ok := e.schema.Identity(); ok && e.schema.RequiresID() && attr.Location == LocationBody {
		delete(payload, attr.WireName)
	}

	return payload
}

// UnwrapSingle strips the single-entity envelope declared by the schema.
func UnwrapSingle(body any, schema *Schema) (map[string]any, error) {
	mapping, ok := body.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected an object, got %T", ErrUnexpectedEnvelope, body)
	}

	key := schema.ResourceKey()
	if key == "" {
		return mapping, nil
	}

	inner, present := mapping[key]
	if !present {
		return nil, fmt.Errorf("%w: key %q absent", ErrUnexpectedEnvelope, key)
	}

	entity, ok := inner.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: key %q holds %T", ErrUnexpectedEnvelope, key, inner)
	}

	return entity, nil
}

// UnwrapMany strips the list envelope declared by the schema. An envelope key
// mapped to null yields an empty sequence.
func UnwrapMany(body any, schema *Schema) ([]map[string]any, error) {
	list := body

	key := schema.ResourcesKey()
	if key != "" {
		mapping, ok := body.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: expected an object, got %T", ErrUnexpectedEnvelope, body)
		}

		inner, present := mapping[key]
		if !present {
			return nil, fmt.Errorf("%w: key %q absent", ErrUnexpectedEnvelope, key)
		}

		if inner == nil {
			return nil, nil
		}

		list = inner
	}

	items, ok := list.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a list, got %T", ErrUnexpectedEnvelope, list)
	}

	out := make([]map[string]any, 0, len(items))

	for i, item := range items {
		mapping, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: element %d is %T", ErrUnexpectedEnvelope, i, item)
		}

		out = append(out, mapping)
	}

	return out, nil
}

// wrap places payload under key, or returns it unchanged when key is empty.
func wrap(payload map[string]any, key string) map[string]any {
	if key == "" {
		return payload
	}

	return map[string]any{key: payload}
}

// decodeBody decodes a JSON body preserving number precision. An empty body
// decodes to nil.
func decodeBody(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var body any

	err := decoder.Decode(&body)
	if err != nil {
		return nil, fmt.Errorf("decoding response body: %w", err)
	}

	return body, nil
}

// headerValues renders the header attributes changed since the last sync.
// Values absorbed from a response are not sent back.
func headerValues(e *Entity, microversion string) http.Header {
	headers := http.Header{}

	for _, attr := range e.schema.attributesAt(LocationHeader) {
		if !attr.activeAt(microversion) {
			continue
		}

		if _, dirty := e.dirty[attr.Name]; !dirty {
			continue
		}

		f, ok := e.fields[attr.Name]
		if !ok || f.value == nil {
			continue
		}

		headers.Set(attr.WireName, fmt.Sprint(toWire(f.value, attr.Type, microversion)))
	}

	return headers
}
