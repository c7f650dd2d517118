package resource

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Session drives entity operations over a Transport. It holds no mutable
// state after construction and may be shared between goroutines.
type Session struct {
	transport    Transport
	catalog      Catalog
	logger       Logger
	microversion string
	region       string
	iface        string
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithCatalog resolves per-service base URLs. Without one, paths are passed
// to the transport relative to its own base URL.
func WithCatalog(catalog Catalog) SessionOption {
	return func(s *Session) {
		s.catalog = catalog
	}
}

// WithMicroversion sets the requested microversion; each schema caps it.
func WithMicroversion(microversion string) SessionOption {
	return func(s *Session) {
		s.microversion = microversion
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRegion narrows catalog lookups to a region.
func WithRegion(region string) SessionOption {
	return func(s *Session) {
		s.region = region
	}
}

// WithInterface narrows catalog lookups to an endpoint interface
// (public, internal, admin).
func WithInterface(iface string) SessionOption {
	return func(s *Session) {
		s.iface = iface
	}
}

// NewSession creates a session over transport.
func NewSession(transport Transport, opts ...SessionOption) (*Session, error) {
	if transport == nil {
		return nil, ErrNoTransport
	}

	session := &Session{
		transport: transport,
		logger:    noopLogger{},
	}

	for _, opt := range opts {
		opt(session)
	}

	if session.microversion != "" {
		_, err := parseMicroversion(session.microversion)
		if err != nil {
			return nil, err
		}
	}

	return session, nil
}

// Microversion returns the microversion negotiated for schema.
func (s *Session) Microversion(schema *Schema) string {
	return NegotiateMicroversion(s.microversion, schema.MaxMicroversion())
}

// CallOption customizes a single operation.
type CallOption func(*callOptions)

type callOptions struct {
	pathParams map[string]string
	headers    http.Header
	pageSize   int
}

// PathParams supplies URI placeholder bindings, e.g. a parent id. Values
// given here win over the entity's own URI fields and are bound onto returned
// entities.
func PathParams(params map[string]string) CallOption {
	return func(o *callOptions) {
		if o.pathParams == nil {
			o.pathParams = make(map[string]string, len(params))
		}

		for k, v := range params {
			o.pathParams[k] = v
		}
	}
}

// Headers adds request headers.
func Headers(headers http.Header) CallOption {
	return func(o *callOptions) {
		if o.headers == nil {
			o.headers = http.Header{}
		}

		for k, values := range headers {
			for _, v := range values {
				o.headers.Add(k, v)
			}
		}
	}
}

// PageSize sets the list page size (sent as limit unless a limit filter is
// given).
func PageSize(n int) CallOption {
	return func(o *callOptions) {
		o.pageSize = n
	}
}

func newCallOptions(opts []CallOption) callOptions {
	var o callOptions

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// exchange is the per-operation context shared by all operations.
type exchange struct {
	schema       *Schema
	op           Operation
	microversion string
	endpoint     string
	path         string
}

func (x *exchange) fail(kind error, cause error) error {
	return newError(kindOf(cause, kind), x.schema.Name(), x.op, x.path, cause)
}

// prepare runs the local checks in order: capability gate, stale state,
// path resolution. None of them touch the transport.
func (s *Session) prepare(ctx context.Context, e *Entity, schema *Schema, op Operation, o callOptions) (*exchange, error) {
	err := CheckAllowed(schema, op)
	if err != nil {
		return nil, err
	}

	x := &exchange{
		schema:       schema,
		op:           op,
		microversion: s.Microversion(schema),
		path:         schema.BasePath(),
	}

	bindings := map[string]string{}

	if e != nil {
		if e.schema != schema {
			return nil, x.fail(ErrInvalidValue, fmt.Errorf("%w: entity belongs to %s", ErrInvalidValue, e.schema.Name()))
		}

		if e.state == StateDeleted {
			return nil, x.fail(ErrStaleEntity, fmt.Errorf("entity %q was deleted", e.IDString()))
		}

		e.microversion = x.microversion
		e.bindURI(o.pathParams)
		bindings = e.uriBindings()
	}

	for k, v := range o.pathParams {
		bindings[k] = v
	}

	path, err := Resolve(schema.BasePath(), bindings)
	if err != nil {
		return nil, x.fail(ErrMissingPathParameter, err)
	}

	x.path = path

	if e != nil && needsID(schema, op, e) {
		id := e.IDString()
		if id == "" {
			attr, _ := schema.Identity()

			return nil, x.fail(ErrMissingPathParameter, fmt.Errorf("%w: %s", ErrMissingPathParameter, attr.Name))
		}

		x.path = joinPath(path, id)
	}

	if s.catalog != nil {
		endpoint, err := s.catalog.Endpoint(ctx, ServiceFilter{
			Type:      schema.Service(),
			Region:    s.region,
			Interface: s.iface,
		})
		if err != nil {
			return nil, x.fail(ErrTransportFailure, err)
		}

		x.endpoint = endpoint
	}

	return x, nil
}

func needsID(schema *Schema, op Operation, e *Entity) bool {
	if !schema.RequiresID() {
		return false
	}

	switch op {
	case OpFetch, OpCommit, OpDelete, OpHead:
		return true
	case OpCreate:
		_, hasID := e.ID()

		return hasID && schema.CreateMethod() == http.MethodPut
	default:
		return false
	}
}

func (x *exchange) url() string {
	return joinEndpoint(x.endpoint, x.path)
}

func joinEndpoint(endpoint, path string) string {
	if endpoint == "" || strings.Contains(path, "://") {
		return path
	}

	return strings.TrimRight(endpoint, "/") + "/" + strings.TrimLeft(path, "/")
}

func (s *Session) headers(x *exchange, e *Entity, o callOptions) http.Header {
	headers := http.Header{}

	if e != nil {
		headers = headerValues(e, x.microversion)
	}

	for k, values := range o.headers {
		for _, v := range values {
			headers.Add(k, v)
		}
	}

	if name := x.schema.MicroversionHeader(); name != "" && x.microversion != "" {
		headers.Set(name, x.microversion)
	}

	return headers
}

// do issues req and maps failures onto TransportFailure.
func (s *Session) do(ctx context.Context, x *exchange, req *Request) (*Response, error) {
	s.logger.Debug("Issuing request", map[string]interface{}{
		"schema":    x.schema.Name(),
		"operation": string(x.op),
		"method":    req.Method,
		"path":      req.Path,
	})

	resp, err := s.transport.Request(ctx, req)
	if err != nil {
		return nil, x.fail(ErrTransportFailure, fmt.Errorf("%w: %w", ErrTransportFailure, err))
	}

	if !isSuccess(resp.StatusCode) {
		return nil, x.fail(ErrTransportFailure, &TransportError{
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
			Headers:    resp.Headers,
		})
	}

	return resp, nil
}

// absorbResponse unwraps a single-entity response into e.
func (s *Session) absorbResponse(x *exchange, e *Entity, resp *Response, replace bool) error {
	body, err := decodeBody(resp.Body)
	if err != nil {
		return x.fail(ErrUnexpectedEnvelope, fmt.Errorf("%w: %w", ErrUnexpectedEnvelope, err))
	}

	raw := map[string]any{}

	// A replacing fetch needs an entity; a create or commit may answer 204.
	if body != nil || replace {
		raw, err = UnwrapSingle(body, x.schema)
		if err != nil {
			return x.fail(ErrUnexpectedEnvelope, err)
		}
	}

	err = e.absorb(raw, resp.Headers, replace)
	if err != nil {
		return x.fail(ErrInvalidValue, err)
	}

	e.markSynced()
	s.logWarnings(x, e.warnings)

	return nil
}

func (s *Session) logWarnings(x *exchange, warnings []error) {
	for _, warning := range warnings {
		s.logger.Warn("Attribute coercion warning", map[string]interface{}{
			"schema":    x.schema.Name(),
			"operation": string(x.op),
			"path":      x.path,
			"warning":   warning.Error(),
		})
	}
}

// Create sends the entity's body fields and merges server-assigned fields
// back in. Unbound or Unsynced becomes Synced.
func (s *Session) Create(ctx context.Context, e *Entity, opts ...CallOption) error {
	o := newCallOptions(opts)

	x, err := s.prepare(ctx, e, e.schema, OpCreate, o)
	if err != nil {
		return err
	}

	resp, err := s.do(ctx, x, &Request{
		Method:  x.schema.CreateMethod(),
		Path:    x.url(),
		Body:    wrap(e.payload(x.microversion, false), x.schema.ResourceKey()),
		Headers: s.headers(x, e, o),
	})
	if err != nil {
		return err
	}

	return s.absorbResponse(x, e, resp, false)
}

// Fetch replaces local state with the server's. Any state becomes Synced,
// except Deleted, which fails with ErrStaleEntity.
func (s *Session) Fetch(ctx context.Context, e *Entity, opts ...CallOption) error {
	o := newCallOptions(opts)

	x, err := s.prepare(ctx, e, e.schema, OpFetch, o)
	if err != nil {
		return err
	}

	resp, err := s.do(ctx, x, &Request{
		Method:  http.MethodGet,
		Path:    x.url(),
		Headers: s.headers(x, nil, o),
	})
	if err != nil {
		return err
	}

	return s.absorbResponse(x, e, resp, true)
}

// Get fetches the entity identified by id. Singleton schemas ignore id.
func (s *Session) Get(ctx context.Context, schema *Schema, id string, opts ...CallOption) (*Entity, error) {
	e := newEntity(schema)

	if attr, ok := schema.Identity(); ok && id != "" {
		e.fields[attr.Name] = field{value: id}
	}

	err := s.Fetch(ctx, e, opts...)
	if err != nil {
		return nil, err
	}

	return e, nil
}

// Commit sends only the fields changed since the last sync. Nothing is sent
// when nothing changed.
func (s *Session) Commit(ctx context.Context, e *Entity, opts ...CallOption) error {
	o := newCallOptions(opts)

	x, err := s.prepare(ctx, e, e.schema, OpCommit, o)
	if err != nil {
		return err
	}

	if len(e.Changed()) == 0 {
		return nil
	}

	resp, err := s.do(ctx, x, &Request{
		Method:  x.schema.CommitMethod(),
		Path:    x.url(),
		Body:    wrap(CommitPayload(e), x.schema.ResourceKey()),
		Headers: s.headers(x, e, o),
	})
	if err != nil {
		return err
	}

	return s.absorbResponse(x, e, resp, false)
}

// Delete removes the entity remotely. On success the entity becomes Deleted
// and further operations on it fail with ErrStaleEntity.
func (s *Session) Delete(ctx context.Context, e *Entity, opts ...CallOption) error {
	o := newCallOptions(opts)

	x, err := s.prepare(ctx, e, e.schema, OpDelete, o)
	if err != nil {
		return err
	}

	_, err = s.do(ctx, x, &Request{
		Method:  http.MethodDelete,
		Path:    x.url(),
		Headers: s.headers(x, nil, o),
	})
	if err != nil {
		return err
	}

	e.state = StateDeleted

	return nil
}

// Head refreshes header attributes without transferring a body.
func (s *Session) Head(ctx context.Context, e *Entity, opts ...CallOption) error {
	o := newCallOptions(opts)

	x, err := s.prepare(ctx, e, e.schema, OpHead, o)
	if err != nil {
		return err
	}

	resp, err := s.do(ctx, x, &Request{
		Method:  http.MethodHead,
		Path:    x.url(),
		Headers: s.headers(x, nil, o),
	})
	if err != nil {
		return err
	}

	resp.Body = nil

	return s.absorbResponse(x, e, resp, false)
}

// List returns a lazy pager over schema's collection. No request is issued
// until the first pull; local failures surface on that pull.
func (s *Session) List(ctx context.Context, schema *Schema, filters map[string]any, opts ...CallOption) *Pager {
	return newPager(ctx, s, schema, filters, newCallOptions(opts))
}

// bindURI stores URI placeholder values on the entity without marking them
// changed.
func (e *Entity) bindURI(params map[string]string) {
	for _, attr := range e.schema.attributesAt(LocationURI) {
		value, ok := params[attr.WireName]
		if !ok || value == "" {
			continue
		}

		e.fields[attr.Name] = field{value: value}
	}
}
