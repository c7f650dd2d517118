// Package resource is the resource-mapping and pagination engine behind the
// typed service bindings in pkg/services.
//
// # Overview
//
// A Schema is an explicit, immutable table of Attribute descriptors plus the
// envelope keys, path template, capability set and query mapping of one
// remote resource type. Entities are attribute-value mappings conforming to a
// Schema; a Session moves them over a Transport.
//
//	var Policy = resource.MustSchema(resource.Definition{
//	  Name:         "policy",
//	  Service:      "identity",
//	  BasePath:     "/policies",
//	  ResourceKey:  "policy",
//	  ResourcesKey: "policies",
//	  Capabilities: resource.CRUD,
//	  Attributes: []resource.Attribute{
//	    resource.ID(),
//	    resource.Body("blob"),
//	    resource.Body("type"),
//	  },
//	})
//
//	session, err := resource.NewSession(transport)
//	if err != nil { return err }
//
//	e, err := session.Get(ctx, Policy, "abc")
//	if err != nil { return err }
//
//	_ = e.Set("type", "application/json")
//	err = session.Commit(ctx, e) // PATCH /policies/abc {"policy":{"type":...}}
//
// # Lifecycle
//
// Entities move between Unbound, Unsynced, Synced and Deleted. Create merges
// server-assigned fields, Fetch replaces local state, Commit sends only the
// changed fields and Delete leaves the entity Deleted; further operations on
// a deleted entity fail with ErrStaleEntity.
//
// # Pagination
//
// List returns a Pager that requests pages on demand:
//
//	pager := session.List(ctx, Policy, map[string]any{"type": "json"}, resource.PageSize(100))
//	for e, err := range pager.All() {
//	  if err != nil { return err }
//	  _ = e
//	}
//
// Marker pagination stops on a page shorter than the page size (or empty).
// Link pagination follows the service-supplied next reference until it is
// absent.
//
// # Errors
//
// Every failure is an *Error carrying the schema name, operation and resolved
// path, and matching one kind sentinel (ErrUnsupportedOperation,
// ErrMissingPathParameter, ErrUnexpectedEnvelope, ErrStaleEntity,
// ErrTransportFailure, ...) with errors.Is. Capability, path and stale-state
// checks run before any transport call.
package resource
