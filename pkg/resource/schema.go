package resource

import (
	"fmt"
	"net/http"
)

// PaginationMode selects how the pagination engine advances between pages.
// It is schema configuration and is never inferred from responses.
type PaginationMode int

// Pagination modes.
const (
	// PaginateMarker sends marker=<last id> and stops on a short page.
	PaginateMarker PaginationMode = iota
	// PaginateLink follows the service-supplied next reference verbatim.
	PaginateLink
)

// String implements fmt.Stringer.
func (m PaginationMode) String() string {
	if m == PaginateLink {
		return "link"
	}

	return "marker"
}

// Definition is the static declaration a Schema is built from.
type Definition struct {
	// Name identifies the schema in errors and logs.
	Name string
	// Service is the service type used for endpoint discovery.
	Service string
	// BasePath may contain %(field)s placeholders bound by URI attributes.
	BasePath string
	// ResourceKey wraps a single entity; empty means the body is the entity.
	ResourceKey string
	// ResourcesKey wraps a list; empty means the body is a bare array.
	ResourcesKey string
	Attributes   []Attribute
	Capabilities Capabilities
	// CreateMethod defaults to POST.
	CreateMethod string
	// CommitMethod defaults to PATCH.
	CommitMethod string
	// MaxMicroversion caps negotiation; empty disables microversioning.
	MaxMicroversion string
	// MicroversionHeader, when set, carries the negotiated microversion.
	MicroversionHeader string
	Query              []QueryParam
	QueryDefaults      map[string]string
	// PermissiveQuery passes unknown list filters through.
	PermissiveQuery bool
	// PermissiveBody retains undeclared wire fields on entities.
	PermissiveBody bool
	Pagination     PaginationMode
	// NextLinkKey is the dotted body path of the next reference in link mode.
	NextLinkKey string
	// NoIDInPath addresses fetch/commit/delete/head at the base path itself.
	NoIDInPath bool
}

// Schema is an immutable, inspectable resource declaration.
type Schema struct {
	def      Definition
	attrs    []Attribute
	byName   map[string]int
	byWire   map[Location]map[string]int
	identity int
	query    QueryMapping
}

// NewSchema validates def and seals it into a Schema.
func NewSchema(def Definition) (*Schema, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("%w: schema name is required", ErrInvalidSchema)
	}

	schema := &Schema{
		def:      def,
		attrs:    append([]Attribute(nil), def.Attributes...),
		byName:   make(map[string]int, len(def.Attributes)),
		byWire:   make(map[Location]map[string]int, 3),
		identity: -1,
	}
	schema.def.Attributes = nil

	if schema.def.CreateMethod == "" {
		schema.def.CreateMethod = http.MethodPost
	}

	if schema.def.CommitMethod == "" {
		schema.def.CommitMethod = http.MethodPatch
	}

	validators := []func() error{
		schema.indexAttributes,
		schema.resolveIdentity,
		schema.validatePath,
		schema.validateCapabilities,
		schema.validateMethods,
		schema.validateMicroversions,
		schema.validatePagination,
		schema.buildQuery,
	}

	for _, validate := range validators {
		err := validate()
		if err != nil {
			return nil, newError(ErrInvalidSchema, def.Name, "", def.BasePath, err)
		}
	}

	return schema, nil
}

// MustSchema is NewSchema for package-level declarations; it panics on an
// invalid definition.
func MustSchema(def Definition) *Schema {
	schema, err := NewSchema(def)
	if err != nil {
		panic(err)
	}

	return schema
}

func (s *Schema) indexAttributes() error {
	for i, attr := range s.attrs {
		if attr.Name == "" || attr.WireName == "" {
			return fmt.Errorf("attribute %d has no name", i)
		}

		if _, dup := s.byName[attr.Name]; dup {
			return fmt.Errorf("duplicate attribute %q", attr.Name)
		}

		wires := s.byWire[attr.Location]
		if wires == nil {
			wires = make(map[string]int)
			s.byWire[attr.Location] = wires
		}

		key := attr.WireName
		if attr.Location == LocationHeader {
			key = http.CanonicalHeaderKey(key)
		}

		if _, dup := wires[key]; dup {
			return fmt.Errorf("duplicate %s wire name %q", attr.Location, attr.WireName)
		}

		err := validateType(attr.Type)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", attr.Name, err)
		}

		s.byName[attr.Name] = i
		wires[key] = i
	}

	return nil
}

func validateType(t ValueType) error {
	switch t.Kind {
	case KindNested:
		if t.Schema == nil {
			return fmt.Errorf("%w: nested type without schema", ErrInvalidSchema)
		}
	case KindList:
		if t.Elem == nil {
			return fmt.Errorf("%w: list type without element type", ErrInvalidSchema)
		}

		return validateType(*t.Elem)
	}

	return nil
}

// resolveIdentity applies the resolution order: explicit id, else the
// alternate id, else none.
func (s *Schema) resolveIdentity() error {
	primary, alternate := -1, -1

	for i, attr := range s.attrs {
		if attr.PrimaryID {
			if primary >= 0 {
				return fmt.Errorf("%w: multiple primary id attributes", ErrInvalidSchema)
			}

			primary = i
		}

		if attr.AlternateID {
			if alternate >= 0 {
				return fmt.Errorf("%w: multiple alternate id attributes", ErrInvalidSchema)
			}

			alternate = i
		}
	}

	switch {
	case primary >= 0:
		s.identity = primary
	case alternate >= 0:
		s.identity = alternate
	}

	return nil
}

func (s *Schema) validatePath() error {
	names, err := Placeholders(s.def.BasePath)
	if err != nil {
		return err
	}

	for _, name := range names {
		if _, ok := s.byWire[LocationURI][name]; !ok {
			return fmt.Errorf("placeholder %q has no URI attribute", name)
		}
	}

	return nil
}

func (s *Schema) validateCapabilities() error {
	if s.identity >= 0 || s.def.NoIDInPath {
		return nil
	}

	for _, op := range []Operation{OpFetch, OpCommit, OpDelete, OpHead} {
		if s.def.Capabilities.Has(op) {
			return fmt.Errorf("identity-less schema cannot declare %s", op)
		}
	}

	return nil
}

func (s *Schema) validateMethods() error {
	switch s.def.CreateMethod {
	case http.MethodPost, http.MethodPut:
	default:
		return fmt.Errorf("unsupported create method %q", s.def.CreateMethod)
	}

	switch s.def.CommitMethod {
	case http.MethodPatch, http.MethodPut, http.MethodPost:
	default:
		return fmt.Errorf("unsupported commit method %q", s.def.CommitMethod)
	}

	return nil
}

func (s *Schema) validateMicroversions() error {
	if s.def.MaxMicroversion != "" {
		_, err := parseMicroversion(s.def.MaxMicroversion)
		if err != nil {
			return err
		}
	}

	for _, attr := range s.attrs {
		if attr.MinMicroversion == "" {
			continue
		}

		_, err := parseMicroversion(attr.MinMicroversion)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", attr.Name, err)
		}
	}

	return nil
}

func (s *Schema) validatePagination() error {
	if s.def.Pagination == PaginateLink && s.def.NextLinkKey == "" {
		return fmt.Errorf("%w: link pagination requires a next link key", ErrInvalidSchema)
	}

	return nil
}

func (s *Schema) buildQuery() error {
	mapping, err := NewQueryMapping(s.def.Query...)
	if err != nil {
		return err
	}

	if len(s.def.QueryDefaults) > 0 {
		mapping = mapping.WithDefaults(s.def.QueryDefaults)
	}

	if s.def.PermissiveQuery {
		mapping = mapping.Permissive()
	}

	s.query = mapping

	return nil
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.def.Name }

// Service returns the service type used for endpoint discovery.
func (s *Schema) Service() string { return s.def.Service }

// BasePath returns the path template.
func (s *Schema) BasePath() string { return s.def.BasePath }

// ResourceKey returns the single-entity envelope key, or "".
func (s *Schema) ResourceKey() string { return s.def.ResourceKey }

// ResourcesKey returns the list envelope key, or "".
func (s *Schema) ResourcesKey() string { return s.def.ResourcesKey }

// Capabilities returns the sealed capability set.
func (s *Schema) Capabilities() Capabilities { return s.def.Capabilities }

// Supports reports whether op is permitted.
func (s *Schema) Supports(op Operation) bool { return s.def.Capabilities.Has(op) }

// CreateMethod returns the HTTP method used by create.
func (s *Schema) CreateMethod() string { return s.def.CreateMethod }

// CommitMethod returns the HTTP method used by commit.
func (s *Schema) CommitMethod() string { return s.def.CommitMethod }

// MaxMicroversion returns the highest microversion the schema understands.
func (s *Schema) MaxMicroversion() string { return s.def.MaxMicroversion }

// MicroversionHeader returns the header carrying the negotiated microversion.
func (s *Schema) MicroversionHeader() string { return s.def.MicroversionHeader }

// Query returns the list query mapping.
func (s *Schema) Query() QueryMapping { return s.query }

// Pagination returns the configured pagination mode.
func (s *Schema) Pagination() PaginationMode { return s.def.Pagination }

// NextLinkKey returns the dotted path of the next reference.
func (s *Schema) NextLinkKey() string { return s.def.NextLinkKey }

// RequiresID reports whether item operations append the identity to the path.
func (s *Schema) RequiresID() bool { return !s.def.NoIDInPath }

// PermissiveBody reports whether undeclared wire fields are retained.
func (s *Schema) PermissiveBody() bool { return s.def.PermissiveBody }

// Attributes returns a copy of the declared attributes in declaration order.
func (s *Schema) Attributes() []Attribute {
	return append([]Attribute(nil), s.attrs...)
}

// Attribute looks up an attribute by logical name.
func (s *Schema) Attribute(name string) (Attribute, bool) {
	idx, ok := s.byName[name]
	if !ok {
		return Attribute{}, false
	}

	return s.attrs[idx], true
}

// Identity returns the resolved identity attribute, if any.
func (s *Schema) Identity() (Attribute, bool) {
	if s.identity < 0 {
		return Attribute{}, false
	}

	return s.attrs[s.identity], true
}

func (s *Schema) attributesAt(loc Location) []Attribute {
	out := make([]Attribute, 0, len(s.byWire[loc]))

	for _, attr := range s.attrs {
		if attr.Location == loc {
			out = append(out, attr)
		}
	}

	return out
}
