package services

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fivetwenty-io/resourcekit/pkg/resource"
)

// Static errors for err113 compliance.
var (
	ErrUnknownResource   = errors.New("unknown resource")
	ErrDuplicateResource = errors.New("duplicate resource")
)

// Registry indexes schemas by name for generic tooling.
type Registry struct {
	schemas map[string]*resource.Schema
}

// NewRegistry builds a registry. Two schemas with the same name are
// rejected.
func NewRegistry(schemas ...*resource.Schema) (*Registry, error) {
	registry := &Registry{schemas: make(map[string]*resource.Schema, len(schemas))}

	for _, schema := range schemas {
		if _, exists := registry.schemas[schema.Name()]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateResource, schema.Name())
		}

		registry.schemas[schema.Name()] = schema
	}

	return registry, nil
}

// DefaultRegistry returns the registry of every schema declared in this
// package, nested-only schemas excluded.
func DefaultRegistry() *Registry {
	registry, err := NewRegistry(
		PolicySchema,
		NodeSchema,
		ZoneSchema,
		RecordsetSchema,
		ShareSchema,
		ShareExportLocationSchema,
		LimitsSchema,
	)
	if err != nil {
		panic(err)
	}

	return registry
}

// Lookup returns the schema registered under name.
func (r *Registry) Lookup(name string) (*resource.Schema, error) {
	schema, ok := r.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, name)
	}

	return schema, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Schemas returns the registered schemas ordered by name.
func (r *Registry) Schemas() []*resource.Schema {
	names := r.Names()
	schemas := make([]*resource.Schema, 0, len(names))

	for _, name := range names {
		schemas = append(schemas, r.schemas[name])
	}

	return schemas
}

// Services groups the typed clients of one session.
type Services struct {
	session *resource.Session

	Policies        *PoliciesClient
	Nodes           *NodesClient
	Zones           *ZonesClient
	Recordsets      *RecordsetsClient
	Shares          *SharesClient
	ExportLocations *ExportLocationsClient
	Limits          *LimitsClient
}

// New binds every typed client to session.
func New(session *resource.Session) *Services {
	return &Services{
		session:         session,
		Policies:        NewPoliciesClient(session),
		Nodes:           NewNodesClient(session),
		Zones:           NewZonesClient(session),
		Recordsets:      NewRecordsetsClient(session),
		Shares:          NewSharesClient(session),
		ExportLocations: NewExportLocationsClient(session),
		Limits:          NewLimitsClient(session),
	}
}

// Session returns the underlying session.
func (s *Services) Session() *resource.Session {
	return s.session
}
