package resource

// Location says where an attribute travels in a request or response.
type Location int

// Attribute locations.
const (
	LocationBody Location = iota
	LocationURI
	LocationHeader
)

// String implements fmt.Stringer.
func (l Location) String() string {
	switch l {
	case LocationBody:
		return "body"
	case LocationURI:
		return "uri"
	case LocationHeader:
		return "header"
	default:
		return "unknown"
	}
}

// Kind is the coercion family of a ValueType.
type Kind int

// Value kinds.
const (
	KindAny Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindTimestamp
	KindNested
	KindList
)

// ValueType is the coercion target of an attribute: a primitive, a nested
// schema, or a list of either.
type ValueType struct {
	Kind   Kind
	Schema *Schema
	Elem   *ValueType
}

// Primitive value types.
var (
	TypeAny       = ValueType{Kind: KindAny}
	TypeString    = ValueType{Kind: KindString}
	TypeInt       = ValueType{Kind: KindInt}
	TypeFloat     = ValueType{Kind: KindFloat}
	TypeBool      = ValueType{Kind: KindBool}
	TypeTimestamp = ValueType{Kind: KindTimestamp}
)

// NestedOf coerces a sub-mapping into a child entity of schema.
func NestedOf(schema *Schema) ValueType {
	return ValueType{Kind: KindNested, Schema: schema}
}

// ListOf coerces every element of a list with elem, preserving order.
func ListOf(elem ValueType) ValueType {
	return ValueType{Kind: KindList, Elem: &elem}
}

// Attribute declares how one logical field maps to the wire.
type Attribute struct {
	// Name is the logical field name callers use.
	Name string
	// WireName is the key on the wire (body key, header name or placeholder).
	WireName string
	Location Location
	Type     ValueType
	// PrimaryID marks the explicit id field.
	PrimaryID bool
	// AlternateID marks the fallback identity when no primary id exists.
	AlternateID bool
	// MinMicroversion gates the attribute on the negotiated microversion.
	MinMicroversion string
}

// AttributeOption customizes an attribute declaration.
type AttributeOption func(*Attribute)

// Wire sets a wire name different from the logical name.
func Wire(name string) AttributeOption {
	return func(a *Attribute) {
		a.WireName = name
	}
}

// Typed sets the coercion type.
func Typed(t ValueType) AttributeOption {
	return func(a *Attribute) {
		a.Type = t
	}
}

// AsID marks the attribute as the primary identity.
func AsID() AttributeOption {
	return func(a *Attribute) {
		a.PrimaryID = true
	}
}

// AsAlternateID marks the attribute as the alternate identity.
func AsAlternateID() AttributeOption {
	return func(a *Attribute) {
		a.AlternateID = true
	}
}

// Since gates the attribute on a minimum microversion.
func Since(microversion string) AttributeOption {
	return func(a *Attribute) {
		a.MinMicroversion = microversion
	}
}

// Body declares a body-located attribute. Type defaults to string.
func Body(name string, opts ...AttributeOption) Attribute {
	return newAttribute(name, LocationBody, opts)
}

// URI declares a path placeholder attribute.
func URI(name string, opts ...AttributeOption) Attribute {
	return newAttribute(name, LocationURI, opts)
}

// Header declares a header-located attribute.
func Header(name, header string, opts ...AttributeOption) Attribute {
	return newAttribute(name, LocationHeader, append([]AttributeOption{Wire(header)}, opts...))
}

// ID declares the conventional body "id" primary identity.
func ID(opts ...AttributeOption) Attribute {
	return Body("id", append([]AttributeOption{AsID()}, opts...)...)
}

func newAttribute(name string, loc Location, opts []AttributeOption) Attribute {
	attr := Attribute{
		Name:     name,
		WireName: name,
		Location: loc,
		Type:     TypeString,
	}

	for _, opt := range opts {
		opt(&attr)
	}

	return attr
}

// activeAt reports whether the attribute participates in translation at the
// negotiated microversion.
func (a Attribute) activeAt(microversion string) bool {
	if a.MinMicroversion == "" {
		return true
	}

	if microversion == "" {
		return false
	}

	return CompareMicroversions(microversion, a.MinMicroversion) >= 0
}
