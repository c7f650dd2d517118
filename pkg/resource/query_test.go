package resource_test

import (
	"net/url"
	"testing"

	"github.com/fivetwenty-io/resourcekit/pkg/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryMapping_Transpose(t *testing.T) {
	t.Parallel()

	mapping, err := resource.NewQueryMapping(
		resource.Param("name"),
		resource.Alias("kind", "type"),
		resource.Alias("sort", "sort_key"),
	)
	require.NoError(t, err)

	mapping = mapping.WithDefaults(map[string]string{"sort": "created_at", "kind": "all"})

	values, err := mapping.Transpose(map[string]any{
		"name":  "web",
		"kind":  "json",
		"limit": 50,
	})
	require.NoError(t, err)

	assert.Equal(t, url.Values{
		"name":     {"web"},
		"type":     {"json"},
		"sort_key": {"created_at"},
		"limit":    {"50"},
	}, values)
}

func TestQueryMapping_ReservedParamsAlwaysPresent(t *testing.T) {
	t.Parallel()

	mapping, err := resource.NewQueryMapping()
	require.NoError(t, err)

	wire, ok := mapping.WireKey(resource.QueryLimit)
	assert.True(t, ok)
	assert.Equal(t, "limit", wire)

	wire, ok = mapping.WireKey(resource.QueryMarker)
	assert.True(t, ok)
	assert.Equal(t, "marker", wire)

	var zero resource.QueryMapping

	_, ok = zero.WireKey(resource.QueryMarker)
	assert.True(t, ok)
}

func TestQueryMapping_RemapMarker(t *testing.T) {
	t.Parallel()

	mapping, err := resource.NewQueryMapping(resource.Alias("marker", "page_token"))
	require.NoError(t, err)

	values, err := mapping.Transpose(map[string]any{"marker": "abc"})
	require.NoError(t, err)
	assert.Equal(t, "abc", values.Get("page_token"))
	assert.Empty(t, values.Get("marker"))
}

func TestQueryMapping_UnknownParameter(t *testing.T) {
	t.Parallel()

	mapping, err := resource.NewQueryMapping(resource.Param("name"))
	require.NoError(t, err)

	_, err = mapping.Transpose(map[string]any{"colour": "red"})
	require.ErrorIs(t, err, resource.ErrInvalidQuery)
	assert.Contains(t, err.Error(), "colour")

	values, err := mapping.Permissive().Transpose(map[string]any{"colour": "red"})
	require.NoError(t, err)
	assert.Equal(t, "red", values.Get("colour"))
}

func TestQueryMapping_ListValuesRepeat(t *testing.T) {
	t.Parallel()

	mapping, err := resource.NewQueryMapping(resource.Param("tags"))
	require.NoError(t, err)

	values, err := mapping.Transpose(map[string]any{"tags": []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, values["tags"])

	values, err = mapping.Transpose(map[string]any{"tags": []any{"c", 1, true}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "1", "true"}, values["tags"])
}

func TestNewQueryMapping_Invalid(t *testing.T) {
	t.Parallel()

	_, err := resource.NewQueryMapping(resource.Param("name"), resource.Alias("name", "display_name"))
	require.ErrorIs(t, err, resource.ErrInvalidSchema)

	_, err = resource.NewQueryMapping(resource.Param(""))
	require.ErrorIs(t, err, resource.ErrInvalidSchema)
}

func TestFiltersFromStruct(t *testing.T) {
	t.Parallel()

	type listOptions struct {
		Name   string   `url:"name,omitempty"`
		Status string   `url:"status,omitempty"`
		Tags   []string `url:"tags,omitempty"`
		Limit  int      `url:"limit,omitempty"`
	}

	filters, err := resource.FiltersFromStruct(listOptions{
		Name:  "web",
		Tags:  []string{"a", "b"},
		Limit: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"name":  "web",
		"tags":  []string{"a", "b"},
		"limit": "10",
	}, filters)

	_, err = resource.FiltersFromStruct("not a struct")
	require.Error(t, err)
}
