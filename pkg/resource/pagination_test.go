package resource_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/fivetwenty-io/resourcekit/pkg/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// policyPage renders a policies page with ids start..start+n-1.
func policyPage(start, n int) fakeResponse {
	items := make([]string, 0, n)
	for i := range n {
		items = append(items, fmt.Sprintf(`{"id": "p%d", "name": "policy-%d"}`, start+i, start+i))
	}

	return ok(`{"policies": [` + strings.Join(items, ",") + `]}`)
}

func collectIDs(t *testing.T, pager *resource.Pager) []string {
	t.Helper()

	entities, err := pager.Collect()
	require.NoError(t, err)

	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.IDString())
	}

	return ids
}

func TestPager_MarkerStopsOnShortPage(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport(policyPage(1, 2), policyPage(3, 2), policyPage(5, 1))
	session := newSession(t, transport)

	pager := session.List(context.Background(), policySchema, nil, resource.PageSize(2))
	ids := collectIDs(t, pager)

	assert.Equal(t, []string{"p1", "p2", "p3", "p4", "p5"}, ids)
	assert.Equal(t, 3, transport.calls())
	assert.Equal(t, 3, pager.Pages())
	assert.False(t, pager.HasNext())

	first := transport.request(t, 0)
	assert.Equal(t, "/policies", first.Path)
	assert.Equal(t, "2", first.Query.Get("limit"))
	assert.Empty(t, first.Query.Get("marker"))

	assert.Equal(t, "p2", transport.request(t, 1).Query.Get("marker"))
	assert.Equal(t, "p4", transport.request(t, 2).Query.Get("marker"))
	assert.Equal(t, "2", transport.request(t, 2).Query.Get("limit"))
}

func TestPager_MarkerStopsOnEmptyPage(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport(policyPage(1, 2), policyPage(3, 2), policyPage(5, 0))
	session := newSession(t, transport)

	ids := collectIDs(t, session.List(context.Background(), policySchema, nil, resource.PageSize(2)))

	assert.Equal(t, []string{"p1", "p2", "p3", "p4"}, ids)
	assert.Equal(t, 3, transport.calls())
}

func TestPager_LimitFilterSetsPageSize(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport(policyPage(1, 3), policyPage(4, 1))
	session := newSession(t, transport)

	ids := collectIDs(t, session.List(context.Background(), policySchema, map[string]any{
		"limit": 3,
		"kind":  "json",
	}))

	assert.Len(t, ids, 4)
	assert.Equal(t, 2, transport.calls())

	first := transport.request(t, 0)
	assert.Equal(t, "3", first.Query.Get("limit"))
	assert.Equal(t, "json", first.Query.Get("type"))
	assert.Equal(t, "json", transport.request(t, 1).Query.Get("type"))
}

func TestPager_UnknownPageSizeAdoptsFirstPage(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport(policyPage(1, 3), policyPage(4, 3), policyPage(7, 2))
	session := newSession(t, transport)

	ids := collectIDs(t, session.List(context.Background(), policySchema, nil))

	assert.Len(t, ids, 8)
	assert.Equal(t, 3, transport.calls())
	assert.Empty(t, transport.request(t, 0).Query.Get("limit"))
}

func TestPager_IsLazy(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport(policyPage(1, 2), policyPage(3, 2))
	session := newSession(t, transport)

	pager := session.List(context.Background(), policySchema, nil, resource.PageSize(2))
	assert.Equal(t, 0, transport.calls())

	count := 0

	for e, err := range pager.All() {
		require.NoError(t, err)
		require.NotNil(t, e)

		count++
		if count == 2 {
			break
		}
	}

	assert.Equal(t, 2, count)
	assert.Equal(t, 1, transport.calls())
}

func TestPager_FailureThenRetry(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport(
		policyPage(1, 2),
		status(http.StatusServiceUnavailable, "try later"),
		policyPage(3, 1),
	)
	session := newSession(t, transport)

	pager := session.List(context.Background(), policySchema, nil, resource.PageSize(2))

	for range 2 {
		_, err := pager.Next()
		require.NoError(t, err)
	}

	_, err := pager.Next()
	require.ErrorIs(t, err, resource.ErrTransportFailure)
	assert.Equal(t, http.StatusServiceUnavailable, resource.StatusCode(err))
	assert.True(t, pager.HasNext())

	e, err := pager.Next()
	require.NoError(t, err)
	assert.Equal(t, "p3", e.IDString())

	assert.Equal(t, transport.request(t, 1).Query, transport.request(t, 2).Query)

	_, err = pager.Next()
	require.ErrorIs(t, err, resource.ErrNoMoreItems)
}

func TestPager_NullEnvelopeIsEmpty(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport(ok(`{"policies": null}`))
	session := newSession(t, transport)

	ids := collectIDs(t, session.List(context.Background(), policySchema, nil, resource.PageSize(5)))
	assert.Empty(t, ids)
	assert.Equal(t, 1, transport.calls())
}

func TestPager_LocalErrorsSurfaceOnFirstPull(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport()
	session := newSession(t, transport)

	pager := session.List(context.Background(), policySchema, map[string]any{"colour": "red"})
	_, err := pager.Next()
	require.ErrorIs(t, err, resource.ErrInvalidQuery)

	pager = session.List(context.Background(), recordSchema, nil)
	_, err = pager.Collect()
	require.ErrorIs(t, err, resource.ErrMissingPathParameter)

	pager = session.List(context.Background(), resource.MustSchema(resource.Definition{
		Name:         "singleton",
		BasePath:     "/singleton",
		Capabilities: resource.Allow(resource.OpFetch),
		NoIDInPath:   true,
	}), nil)
	_, err = pager.Next()
	require.ErrorIs(t, err, resource.ErrUnsupportedOperation)

	assert.Equal(t, 0, transport.calls())
}

func TestPager_LinkFollowsNextReference(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport(
		ok(`{"recordsets": [{"id": "r1"}, {"id": "r2"}], "links": {"next": "https://dns.example.com/v2/zones/z1/recordsets?marker=r2"}}`),
		ok(`{"recordsets": [], "links": {"next": "https://dns.example.com/v2/zones/z1/recordsets?marker=r2&page=3"}}`),
		ok(`{"recordsets": [{"id": "r3"}], "links": {"self": "https://dns.example.com/v2/zones/z1/recordsets?page=3"}}`),
	)
	session := newSession(t, transport)

	pager := session.List(context.Background(), recordSchema, map[string]any{"name": "www"},
		resource.PathParams(map[string]string{"zone_id": "z1"}))

	entities, err := pager.Collect()
	require.NoError(t, err)
	require.Len(t, entities, 3)
	assert.Equal(t, "z1", entities[0].String("zone_id"))

	assert.Equal(t, "/v2/zones/z1/recordsets", transport.request(t, 0).Path)

	second := transport.request(t, 1)
	assert.Equal(t, "https://dns.example.com/v2/zones/z1/recordsets?marker=r2", second.Path)
	assert.Empty(t, second.Query)
	assert.Equal(t, 3, transport.calls())
}

func TestPager_LinkListWithRel(t *testing.T) {
	t.Parallel()

	schema := resource.MustSchema(resource.Definition{
		Name:         "image",
		Service:      "image",
		BasePath:     "/v2/images",
		ResourcesKey: "images",
		Capabilities: resource.Allow(resource.OpList),
		Pagination:   resource.PaginateLink,
		NextLinkKey:  "images_links",
		Attributes:   []resource.Attribute{resource.Body("name")},
	})

	transport := newFakeTransport(
		ok(`{"images": [{"name": "a"}], "images_links": [{"rel": "self", "href": "/v2/images"}, {"rel": "next", "href": "/v2/images?marker=a"}]}`),
		ok(`{"images": [{"name": "b"}], "images_links": [{"rel": "self", "href": "/v2/images?marker=a"}]}`),
	)
	session := newSession(t, transport, resource.WithCatalog(resource.StaticCatalog{Default: "https://glance.example.com:9292"}))

	entities, err := session.List(context.Background(), schema, nil).Collect()
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "b", entities[1].String("name"))

	assert.Equal(t, "https://glance.example.com:9292/v2/images", transport.request(t, 0).Path)
	assert.Equal(t, "https://glance.example.com:9292/v2/images?marker=a", transport.request(t, 1).Path)
}

func TestPager_ForEach(t *testing.T) {
	t.Parallel()

	errStop := errors.New("stop")

	transport := newFakeTransport(policyPage(1, 2), policyPage(3, 2))
	session := newSession(t, transport)

	seen := 0
	err := session.List(context.Background(), policySchema, nil, resource.PageSize(2)).ForEach(func(e *resource.Entity) error {
		seen++
		if e.IDString() == "p3" {
			return errStop
		}

		return nil
	})

	require.ErrorIs(t, err, errStop)
	assert.Equal(t, 3, seen)
	assert.Equal(t, 2, transport.calls())
}
