// Package services declares concrete resource schemas and typed clients on
// top of the resource engine. Nothing here issues HTTP directly; every call
// goes through a resource.Session.
package services

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/fivetwenty-io/resourcekit/pkg/resource"
)

// Static errors for err113 compliance.
var (
	ErrIDRequired = errors.New("resource id is required")
	ErrNoChanges  = errors.New("no changes to update")
)

// Client drives one schema through a session and wraps entities as T.
type Client[T any] struct {
	session *resource.Session
	schema  *resource.Schema
	wrap    func(*resource.Entity) T
}

func newClient[T any](session *resource.Session, schema *resource.Schema, wrap func(*resource.Entity) T) *Client[T] {
	return &Client[T]{session: session, schema: schema, wrap: wrap}
}

// Schema returns the schema the client drives.
func (c *Client[T]) Schema() *resource.Schema {
	return c.schema
}

// Get fetches one entity by id.
func (c *Client[T]) Get(ctx context.Context, id string, opts ...resource.CallOption) (T, error) {
	var zero T

	if id == "" {
		return zero, fmt.Errorf("getting %s: %w", c.schema.Name(), ErrIDRequired)
	}

	entity, err := c.session.Get(ctx, c.schema, id, opts...)
	if err != nil {
		return zero, err
	}

	return c.wrap(entity), nil
}

// CreateFrom creates an entity from logical attribute values.
func (c *Client[T]) CreateFrom(ctx context.Context, attrs map[string]any, opts ...resource.CallOption) (T, error) {
	var zero T

	entity, err := resource.New(c.schema, attrs)
	if err != nil {
		return zero, err
	}

	err = c.session.Create(ctx, entity, opts...)
	if err != nil {
		return zero, err
	}

	return c.wrap(entity), nil
}

// UpdateFrom commits changes to the entity with id without fetching it
// first. An empty changes map is rejected before any request is made.
func (c *Client[T]) UpdateFrom(ctx context.Context, id string, changes map[string]any, opts ...resource.CallOption) (T, error) {
	var zero T

	if len(changes) == 0 {
		return zero, fmt.Errorf("%w: %s %s", ErrNoChanges, c.schema.Name(), id)
	}

	entity, err := c.reference(id)
	if err != nil {
		return zero, err
	}

	for name, value := range changes {
		err = entity.Set(name, value)
		if err != nil {
			return zero, err
		}
	}

	err = c.session.Commit(ctx, entity, opts...)
	if err != nil {
		return zero, err
	}

	return c.wrap(entity), nil
}

// Save commits the changes made on a previously loaded entity.
func (c *Client[T]) Save(ctx context.Context, entity *resource.Entity, opts ...resource.CallOption) error {
	return c.session.Commit(ctx, entity, opts...)
}

// Delete removes the entity with id.
func (c *Client[T]) Delete(ctx context.Context, id string, opts ...resource.CallOption) error {
	entity, err := c.reference(id)
	if err != nil {
		return err
	}

	return c.session.Delete(ctx, entity, opts...)
}

// List returns a lazy iterator over the collection.
func (c *Client[T]) List(ctx context.Context, filters map[string]any, opts ...resource.CallOption) *Iterator[T] {
	return &Iterator[T]{pager: c.session.List(ctx, c.schema, filters, opts...), wrap: c.wrap}
}

// ListWith is List with filters taken from a url-tagged options struct.
func (c *Client[T]) ListWith(ctx context.Context, options any, opts ...resource.CallOption) *Iterator[T] {
	filters, err := resource.FiltersFromStruct(options)
	if err != nil {
		return &Iterator[T]{err: err, wrap: c.wrap}
	}

	return c.List(ctx, filters, opts...)
}

// reference builds an entity carrying only its identity.
func (c *Client[T]) reference(id string) (*resource.Entity, error) {
	if id == "" {
		return nil, fmt.Errorf("%s: %w", c.schema.Name(), ErrIDRequired)
	}

	identity, ok := c.schema.Identity()
	if !ok {
		return nil, fmt.Errorf("%s: %w", c.schema.Name(), resource.ErrUnsupportedOperation)
	}

	return resource.New(c.schema, map[string]any{identity.Name: id})
}

// Iterator is a typed view over a resource.Pager.
type Iterator[T any] struct {
	pager *resource.Pager
	wrap  func(*resource.Entity) T
	err   error
}

// HasNext reports whether Next may yield another item.
func (it *Iterator[T]) HasNext() bool {
	if it.err != nil {
		return true
	}

	return it.pager.HasNext()
}

// Next returns the next item, or resource.ErrNoMoreItems at the end.
func (it *Iterator[T]) Next() (T, error) {
	var zero T

	if it.err != nil {
		return zero, it.err
	}

	entity, err := it.pager.Next()
	if err != nil {
		return zero, err
	}

	return it.wrap(entity), nil
}

// All yields every remaining item; iteration stops after the first error.
func (it *Iterator[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		if it.err != nil {
			var zero T

			yield(zero, it.err)

			return
		}

		for entity, err := range it.pager.All() {
			var item T
			if entity != nil {
				item = it.wrap(entity)
			}

			if !yield(item, err) || err != nil {
				return
			}
		}
	}
}

// Collect drains the iterator.
func (it *Iterator[T]) Collect() ([]T, error) {
	var items []T

	for item, err := range it.All() {
		if err != nil {
			return items, err
		}

		items = append(items, item)
	}

	return items, nil
}
