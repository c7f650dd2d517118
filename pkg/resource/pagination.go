package resource

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strings"
)

// Pager is a lazy, pull-based sequence of entities spanning every page of a
// list operation. A page is requested only once the previous page has been
// fully consumed. Pager is not safe for concurrent use.
type Pager struct {
	ctx      context.Context
	session  *Session
	x        *exchange
	headers  http.Header
	bindings map[string]string

	markerKey string
	pageSize  int

	// next is the request for the following page, nil once exhausted.
	next   *Request
	buffer []*Entity
	err    error
	pages  int
}

func newPager(ctx context.Context, s *Session, schema *Schema, filters map[string]any, o callOptions) *Pager {
	p := &Pager{
		ctx:      ctx,
		session:  s,
		bindings: o.pathParams,
	}

	x, err := s.prepare(ctx, nil, schema, OpList, o)
	if err != nil {
		p.err = err

		return p
	}

	p.x = x
	p.headers = s.headers(x, nil, o)

	mapping := schema.Query()
	p.markerKey, _ = mapping.WireKey(QueryMarker)

	if limit, ok := filters[QueryLimit]; ok {
		p.pageSize, _ = parseLimit(limit)
	} else if o.pageSize > 0 {
		p.pageSize = o.pageSize
		filters = withFilter(filters, QueryLimit, o.pageSize)
	}

	query, err := mapping.Transpose(filters)
	if err != nil {
		p.err = x.fail(ErrInvalidQuery, err)

		return p
	}

	if p.pageSize == 0 {
		if limitKey, ok := mapping.WireKey(QueryLimit); ok {
			p.pageSize, _ = parseLimit(query.Get(limitKey))
		}
	}

	p.next = &Request{
		Method:  http.MethodGet,
		Path:    x.url(),
		Query:   query,
		Headers: p.headers,
	}

	return p
}

func withFilter(filters map[string]any, name string, value any) map[string]any {
	out := make(map[string]any, len(filters)+1)
	for k, v := range filters {
		out[k] = v
	}

	out[name] = value

	return out
}

// HasNext reports whether another pull may yield an entity. It can be true
// when the next page turns out to be empty.
func (p *Pager) HasNext() bool {
	if p.err != nil {
		return true
	}

	return len(p.buffer) > 0 || p.next != nil
}

// Next returns the next entity, fetching a page when the buffer is drained.
// It returns ErrNoMoreItems at the end. A failed page request leaves the
// cursor in place, so pulling again retries the same request.
func (p *Pager) Next() (*Entity, error) {
	if p.err != nil {
		return nil, p.err
	}

	for len(p.buffer) == 0 {
		if p.next == nil {
			return nil, ErrNoMoreItems
		}

		err := p.fetchPage()
		if err != nil {
			return nil, err
		}
	}

	e := p.buffer[0]
	p.buffer[0] = nil
	p.buffer = p.buffer[1:]

	return e, nil
}

// Pages returns how many pages have been fetched so far.
func (p *Pager) Pages() int { return p.pages }

func (p *Pager) fetchPage() error {
	req := p.next

	resp, err := p.session.do(p.ctx, p.x, req)
	if err != nil {
		return err
	}

	body, err := decodeBody(resp.Body)
	if err != nil {
		return p.x.fail(ErrUnexpectedEnvelope, fmt.Errorf("%w: %w", ErrUnexpectedEnvelope, err))
	}

	raws, err := UnwrapMany(body, p.x.schema)
	if err != nil {
		return p.x.fail(ErrUnexpectedEnvelope, err)
	}

	entities := make([]*Entity, 0, len(raws))

	for _, raw := range raws {
		e, err := fromWire(p.x.schema, raw, nil, p.x.microversion)
		if err != nil {
			return p.x.fail(ErrInvalidValue, err)
		}

		e.bindURI(p.bindings)
		p.session.logWarnings(p.x, e.warnings)
		entities = append(entities, e)
	}

	next, err := p.advance(req, body, entities)
	if err != nil {
		return err
	}

	p.pages++
	p.next = next
	p.buffer = entities

	return nil
}

// advance computes the request for the page after req, or nil when req
// returned the last page.
func (p *Pager) advance(req *Request, body any, page []*Entity) (*Request, error) {
	if p.x.schema.Pagination() == PaginateLink {
		href := nextLink(body, p.x.schema.NextLinkKey())
		if href == "" {
			return nil, nil
		}

		path := resolveLink(p.x.endpoint, href)
		if path == req.Path && len(req.Query) == 0 {
			return nil, p.x.fail(ErrUnexpectedEnvelope, fmt.Errorf("%w: next link %q repeats the current page", ErrUnexpectedEnvelope, href))
		}

		return &Request{Method: http.MethodGet, Path: path, Headers: p.headers}, nil
	}

	count := len(page)
	if count == 0 {
		return nil, nil
	}

	if p.pageSize == 0 {
		p.pageSize = count
	}

	if count < p.pageSize {
		return nil, nil
	}

	marker := page[count-1].IDString()
	if marker == "" || p.markerKey == "" {
		return nil, p.x.fail(ErrUnexpectedEnvelope, fmt.Errorf("%w: full page without a marker identity", ErrUnexpectedEnvelope))
	}

	query := url.Values{}
	for k, v := range req.Query {
		query[k] = append([]string(nil), v...)
	}

	query.Set(p.markerKey, marker)

	return &Request{Method: http.MethodGet, Path: req.Path, Query: query, Headers: p.headers}, nil
}

// nextLink looks up a dotted key path. The value may be an href string or a
// list of {rel, href} objects.
func nextLink(body any, keyPath string) string {
	current := body

	for _, key := range strings.Split(keyPath, ".") {
		mapping, ok := current.(map[string]any)
		if !ok {
			return ""
		}

		current = mapping[key]
	}

	switch v := current.(type) {
	case string:
		return v
	case []any:
		for _, item := range v {
			link, ok := item.(map[string]any)
			if !ok {
				continue
			}

			if rel, _ := link["rel"].(string); rel == "next" {
				href, _ := link["href"].(string)

				return href
			}
		}
	}

	return ""
}

// All returns a range-over-func sequence. Iteration stops at the end or
// after yielding the first error.
func (p *Pager) All() iter.Seq2[*Entity, error] {
	return func(yield func(*Entity, error) bool) {
		for {
			e, err := p.Next()
			if errors.Is(err, ErrNoMoreItems) {
				return
			}

			if err != nil {
				yield(nil, err)

				return
			}

			if !yield(e, nil) {
				return
			}
		}
	}
}

// Collect drains the pager.
func (p *Pager) Collect() ([]*Entity, error) {
	var out []*Entity

	for e, err := range p.All() {
		if err != nil {
			return out, err
		}

		out = append(out, e)
	}

	return out, nil
}

// ForEach calls fn for each remaining entity, stopping at the first error.
func (p *Pager) ForEach(fn func(*Entity) error) error {
	for e, err := range p.All() {
		if err != nil {
			return err
		}

		err = fn(e)
		if err != nil {
			return err
		}
	}

	return nil
}
