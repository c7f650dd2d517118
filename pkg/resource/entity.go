package resource

import (
	"fmt"
	"net/http"
	"sort"
	"time"
)

// State is the lifecycle position of an entity.
type State int

// Entity lifecycle states.
const (
	// StateUnbound: constructed locally, no identity, never synced.
	StateUnbound State = iota
	// StateUnsynced: locally modified since the last sync.
	StateUnsynced
	// StateSynced: fields reflect the last known server state.
	StateSynced
	// StateDeleted: deleted remotely; no longer valid for commit or fetch.
	StateDeleted
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateUnsynced:
		return "unsynced"
	case StateSynced:
		return "synced"
	case StateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

type field struct {
	value any
	// wire holds the value exactly as received while it is unmodified, so
	// re-serialization is lossless.
	wire    any
	hasWire bool
}

// Entity is an attribute-value mapping conforming to one Schema plus the
// transient state needed to compute minimal update payloads. It is owned by
// its caller and is not safe for concurrent mutation.
type Entity struct {
	schema       *Schema
	microversion string
	fields       map[string]field
	dirty        map[string]struct{}
	removed      map[string]struct{}
	extra        map[string]any
	state        State
	warnings     []error
}

// EntityOption customizes entity construction.
type EntityOption func(*Entity)

// AtMicroversion binds the entity to a negotiated microversion.
func AtMicroversion(microversion string) EntityOption {
	return func(e *Entity) {
		e.microversion = microversion
	}
}

func newEntity(schema *Schema) *Entity {
	return &Entity{
		schema:  schema,
		fields:  make(map[string]field),
		dirty:   make(map[string]struct{}),
		removed: make(map[string]struct{}),
	}
}

// New builds an entity from logical attribute names. Undeclared names fail
// with ErrUnknownAttribute.
func New(schema *Schema, attrs map[string]any, opts ...EntityOption) (*Entity, error) {
	e := newEntity(schema)

	for _, opt := range opts {
		opt(e)
	}

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		err := e.Set(name, attrs[name])
		if err != nil {
			return nil, err
		}
	}

	return e, nil
}

// FromWire translates a raw wire mapping into a synced entity.
func FromWire(schema *Schema, raw map[string]any, opts ...EntityOption) (*Entity, error) {
	probe := newEntity(schema)
	for _, opt := range opts {
		opt(probe)
	}

	return fromWire(schema, raw, nil, probe.microversion)
}

func fromWire(schema *Schema, raw map[string]any, headers http.Header, microversion string) (*Entity, error) {
	e := newEntity(schema)
	e.microversion = microversion

	err := e.absorb(raw, headers, true)
	if err != nil {
		return nil, err
	}

	e.state = StateSynced

	return e, nil
}

// absorb merges a wire mapping and response headers into the entity. With
// replace set, body and header fields absent from the response are dropped.
// URI fields are always kept.
func (e *Entity) absorb(raw map[string]any, headers http.Header, replace bool) error {
	fields := make(map[string]field, len(e.fields))
	warnings := []error(nil)

	for name, f := range e.fields {
		attr, _ := e.schema.Attribute(name)
		if replace && attr.Location != LocationURI {
			continue
		}

		fields[name] = f
	}

	for _, attr := range e.schema.attrs {
		if !attr.activeAt(e.microversion) {
			continue
		}

		var (
			rawValue any
			present  bool
		)

		switch attr.Location {
		case LocationBody:
			rawValue, present = raw[attr.WireName]
		case LocationHeader:
			if headers != nil {
				if values := headers.Values(attr.WireName); len(values) > 0 {
					rawValue, present = values[0], true
				}
			}
		case LocationURI:
			continue
		}

		if !present {
			continue
		}

		value, warns, err := coerce(rawValue, attr.Type, e.microversion)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", attr.Name, err)
		}

		warnings = append(warnings, warns...)
		fields[attr.Name] = field{value: value, wire: rawValue, hasWire: true}
	}

	if e.schema.PermissiveBody() {
		extra := make(map[string]any)

		for key, value := range raw {
			if _, declared := e.schema.byWire[LocationBody][key]; !declared {
				extra[key] = value
			}
		}

		if len(extra) > 0 || replace {
			e.extra = extra
		}
	}

	e.fields = fields
	e.warnings = warnings
	e.dirty = make(map[string]struct{})
	e.removed = make(map[string]struct{})

	return nil
}

// Schema returns the entity's schema.
func (e *Entity) Schema() *Schema { return e.schema }

// State returns the lifecycle state.
func (e *Entity) State() State { return e.state }

// Microversion returns the microversion the entity was last translated at.
func (e *Entity) Microversion() string { return e.microversion }

// Warnings returns soft translation problems (e.g. malformed timestamps)
// recorded by the last sync.
func (e *Entity) Warnings() []error {
	return append([]error(nil), e.warnings...)
}

// Extra returns undeclared wire fields retained in permissive mode.
func (e *Entity) Extra() map[string]any {
	out := make(map[string]any, len(e.extra))
	for k, v := range e.extra {
		out[k] = v
	}

	return out
}

// ID returns the value of the resolved identity attribute.
func (e *Entity) ID() (any, bool) {
	attr, ok := e.schema.Identity()
	if !ok {
		return nil, false
	}

	f, ok := e.fields[attr.Name]
	if !ok || f.value == nil {
		return nil, false
	}

	return f.value, true
}

// IDString returns the identity rendered as a string, or "".
func (e *Entity) IDString() string {
	id, ok := e.ID()
	if !ok {
		return ""
	}

	if s, ok := id.(string); ok {
		return s
	}

	return fmt.Sprint(id)
}

// Get returns a field by logical name.
func (e *Entity) Get(name string) (any, bool) {
	f, ok := e.fields[name]
	if !ok {
		return nil, false
	}

	return f.value, true
}

// Has reports whether a field is present.
func (e *Entity) Has(name string) bool {
	_, ok := e.fields[name]

	return ok
}

// String returns a string field, or "".
func (e *Entity) String(name string) string {
	v, _ := e.Get(name)
	s, _ := v.(string)

	return s
}

// Int returns an integer field, or 0.
func (e *Entity) Int(name string) int64 {
	v, _ := e.Get(name)
	n, _ := v.(int64)

	return n
}

// Float returns a float field, or 0.
func (e *Entity) Float(name string) float64 {
	v, _ := e.Get(name)
	f, _ := v.(float64)

	return f
}

// Bool returns a boolean field, or false.
func (e *Entity) Bool(name string) bool {
	v, _ := e.Get(name)
	b, _ := v.(bool)

	return b
}

// Time returns a timestamp field. ok is false when the field is absent or
// was retained as a malformed string.
func (e *Entity) Time(name string) (time.Time, bool) {
	v, _ := e.Get(name)
	t, ok := v.(time.Time)

	return t, ok
}

// Nested returns a nested entity field, or nil.
func (e *Entity) Nested(name string) *Entity {
	v, _ := e.Get(name)
	child, _ := v.(*Entity)

	return child
}

// List returns a list field, or nil.
func (e *Entity) List(name string) []any {
	v, _ := e.Get(name)
	list, _ := v.([]any)

	return list
}

// Map returns a free-form mapping field, or nil.
func (e *Entity) Map(name string) map[string]any {
	v, _ := e.Get(name)
	m, _ := v.(map[string]any)

	return m
}

// Fields returns the present field values keyed by logical name.
func (e *Entity) Fields() map[string]any {
	out := make(map[string]any, len(e.fields))
	for name, f := range e.fields {
		out[name] = f.value
	}

	return out
}

// Set assigns a field by logical name, coercing it to the declared type.
func (e *Entity) Set(name string, value any) error {
	attr, ok := e.schema.Attribute(name)
	if !ok {
		return newError(ErrUnknownAttribute, e.schema.Name(), "", "", fmt.Errorf("%q", name))
	}

	typed, warns, err := coerce(value, attr.Type, e.microversion)
	if err != nil {
		return newError(ErrInvalidValue, e.schema.Name(), "", "", fmt.Errorf("attribute %q: %w", name, err))
	}

	e.warnings = append(e.warnings, warns...)
	e.fields[name] = field{value: typed}
	e.dirty[name] = struct{}{}
	delete(e.removed, name)
	e.touch()

	return nil
}

// Unset marks a field for explicit removal; the next commit sends it as null.
func (e *Entity) Unset(name string) error {
	if _, ok := e.schema.Attribute(name); !ok {
		return newError(ErrUnknownAttribute, e.schema.Name(), "", "", fmt.Errorf("%q", name))
	}

	delete(e.fields, name)
	e.dirty[name] = struct{}{}
	e.removed[name] = struct{}{}
	e.touch()

	return nil
}

func (e *Entity) touch() {
	switch e.state {
	case StateSynced:
		e.state = StateUnsynced
	case StateUnbound:
		if _, ok := e.ID(); ok {
			e.state = StateUnsynced
		}
	}
}

// Changed returns the logical names modified since the last sync, sorted.
func (e *Entity) Changed() []string {
	names := make([]string, 0, len(e.dirty))

	for _, attr := range e.schema.attrs {
		if e.isDirty(attr.Name) {
			names = append(names, attr.Name)
		}
	}

	sort.Strings(names)

	return names
}

func (e *Entity) isDirty(name string) bool {
	if _, ok := e.dirty[name]; ok {
		return true
	}

	f, ok := e.fields[name]
	if !ok {
		return false
	}

	return hasNestedChanges(f.value)
}

func hasNestedChanges(value any) bool {
	switch v := value.(type) {
	case *Entity:
		return len(v.Changed()) > 0
	case []any:
		for _, item := range v {
			if hasNestedChanges(item) {
				return true
			}
		}
	}

	return false
}

// payload renders body fields. changedOnly restricts it to dirty fields.
func (e *Entity) payload(microversion string, changedOnly bool) map[string]any {
	out := make(map[string]any)

	if !changedOnly {
		for key, value := range e.extra {
			out[key] = value
		}
	}

	for _, attr := range e.schema.attributesAt(LocationBody) {
		if !attr.activeAt(microversion) {
			continue
		}

		if changedOnly && !e.isDirty(attr.Name) {
			continue
		}

		if _, removed := e.removed[attr.Name]; removed {
			out[attr.WireName] = nil

			continue
		}

		f, ok := e.fields[attr.Name]
		if !ok {
			continue
		}

		if f.hasWire && !hasNestedChanges(f.value) {
			out[attr.WireName] = f.wire

			continue
		}

		out[attr.WireName] = toWire(f.value, attr.Type, microversion)
	}

	return out
}

// uriBindings collects URI attribute values keyed by placeholder name.
func (e *Entity) uriBindings() map[string]string {
	bindings := make(map[string]string)

	for _, attr := range e.schema.attributesAt(LocationURI) {
		f, ok := e.fields[attr.Name]
		if !ok || f.value == nil {
			continue
		}

		bindings[attr.WireName] = fmt.Sprint(f.value)
	}

	return bindings
}

// markSynced clears transient change tracking after a successful exchange.
func (e *Entity) markSynced() {
	e.dirty = make(map[string]struct{})
	e.removed = make(map[string]struct{})
	e.state = StateSynced

	for name, f := range e.fields {
		clearNested(f.value)
		e.fields[name] = f
	}
}

func clearNested(value any) {
	switch v := value.(type) {
	case *Entity:
		v.markSynced()
	case []any:
		for _, item := range v {
			clearNested(item)
		}
	}
}
