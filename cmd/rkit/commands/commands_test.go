package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/resourcekit/internal/constants"
	"github.com/fivetwenty-io/resourcekit/pkg/resource"
	"github.com/fivetwenty-io/resourcekit/pkg/services"
)

const testEndpoint = "https://cloud.example.com"

// fakeCloud answers every request with the next canned body and records
// what it was asked.
type fakeCloud struct {
	mu       sync.Mutex
	requests []*resource.Request
	statuses []int
	bodies   []string
	released int
}

func (f *fakeCloud) sessions() SessionFactory {
	return func(ctx context.Context) (*resource.Session, func(), error) {
		transport := resource.TransportFunc(func(_ context.Context, req *resource.Request) (*resource.Response, error) {
			f.mu.Lock()
			defer f.mu.Unlock()

			f.requests = append(f.requests, req)

			if len(f.bodies) == 0 {
				return &resource.Response{StatusCode: http.StatusNotFound}, nil
			}

			status := http.StatusOK
			if len(f.statuses) > 0 {
				status, f.statuses = f.statuses[0], f.statuses[1:]
			}

			body := f.bodies[0]
			f.bodies = f.bodies[1:]

			return &resource.Response{StatusCode: status, Body: []byte(body)}, nil
		})

		session, err := resource.NewSession(transport, resource.WithCatalog(resource.StaticCatalog{Default: testEndpoint}))
		if err != nil {
			return nil, nil, err
		}

		return session, func() {
			f.mu.Lock()
			f.released++
			f.mu.Unlock()
		}, nil
	}
}

func useOutput(t *testing.T, format string) {
	t.Helper()

	viper.Set("output", format)
	t.Cleanup(viper.Reset)
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

func findSubcommand(cmd *cobra.Command, name string) *cobra.Command {
	for _, c := range cmd.Commands() {
		if c.Name() == name {
			return c
		}
	}

	return nil
}

func subcommandNames(cmd *cobra.Command) []string {
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}

	return names
}

func TestNewResourceCommandGatesOperations(t *testing.T) {
	t.Parallel()

	cloud := &fakeCloud{}

	policy := NewResourceCommand(services.PolicySchema, cloud.sessions())
	assert.Equal(t, "policy", policy.Use)
	assert.ElementsMatch(t, []string{"list", "get", "create", "update", "delete"}, subcommandNames(policy))
	assert.Equal(t, "get ID", findSubcommand(policy, "get").Use)

	exports := NewResourceCommand(services.ShareExportLocationSchema, cloud.sessions())
	assert.ElementsMatch(t, []string{"list", "get"}, subcommandNames(exports))

	limits := NewResourceCommand(services.LimitsSchema, cloud.sessions())
	assert.Equal(t, []string{"get"}, subcommandNames(limits))
	assert.Equal(t, "get", findSubcommand(limits, "get").Use)

	list := findSubcommand(policy, "list")
	require.NotNil(t, list)

	pageSize := list.Flags().Lookup("page-size")
	require.NotNil(t, pageSize)
	assert.Equal(t, "50", pageSize.DefValue)
	assert.NotNil(t, list.Flags().Lookup("filter"))
	assert.NotNil(t, list.Flags().Lookup("max-items"))
}

func TestParseKeyValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   []string
		want    map[string]string
		wantErr bool
	}{
		{name: "empty", input: nil, want: map[string]string{}},
		{name: "pairs", input: []string{"a=1", "b=two"}, want: map[string]string{"a": "1", "b": "two"}},
		{name: "value keeps equals", input: []string{"blob={\"a\"=1}"}, want: map[string]string{"blob": "{\"a\"=1}"}},
		{name: "empty value", input: []string{"name="}, want: map[string]string{"name": ""}},
		{name: "missing separator", input: []string{"name"}, wantErr: true},
		{name: "missing key", input: []string{"=value"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseKeyValues(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, constants.ErrInvalidKeyValue)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "plain", parseValue("plain"))
	assert.Equal(t, "42", parseValue("42"))
	assert.Equal(t, []interface{}{"a", "b"}, parseValue(`["a","b"]`))
	assert.Equal(t, map[string]interface{}{"k": "v"}, parseValue(`{"k":"v"}`))
	assert.Equal(t, "[broken", parseValue("[broken"))
}

func TestColumns(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"id", "blob", "type", "project_id", "user_id", "request_id"}, columns(services.PolicySchema))
	assert.Equal(t, "uuid", columns(services.NodeSchema)[0])
	assert.Empty(t, columns(services.LimitsSchema))
}

func TestCell(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "N/A", cell(nil, true))
	assert.Equal(t, "N/A", cell("x", false))
	assert.Equal(t, "7", cell(int64(7), true))

	long := strings.Repeat("a", 100)
	assert.Len(t, cell(long, true), 60)
	assert.True(t, strings.HasSuffix(cell(long, true), "..."))
}

func TestEncodeUnknownFormat(t *testing.T) {
	t.Parallel()

	err := encode(&bytes.Buffer{}, "xml", map[string]string{})
	require.ErrorIs(t, err, constants.ErrUnknownOutputFormat)
}

func TestListCommand(t *testing.T) { //nolint:paralleltest // viper is global
	useOutput(t, "json")

	cloud := &fakeCloud{bodies: []string{
		`{"policies": [{"id": "p1", "type": "application/json"}, {"id": "p2", "type": "application/json"}]}`,
		`{"policies": [{"id": "p3", "type": "text/plain"}]}`,
	}}

	cmd := NewResourceCommand(services.PolicySchema, cloud.sessions())
	out, err := execute(t, cmd, "list", "--filter", "type=application/json", "--page-size", "2")
	require.NoError(t, err)

	var docs []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &docs))
	require.Len(t, docs, 3)
	assert.Equal(t, "p1", docs[0]["id"])
	assert.Equal(t, "p3", docs[2]["id"])

	require.Len(t, cloud.requests, 2)
	assert.Equal(t, testEndpoint+"/policies", cloud.requests[0].Path)
	assert.Equal(t, "application/json", cloud.requests[0].Query.Get("type"))
	assert.Equal(t, "2", cloud.requests[0].Query.Get("limit"))
	assert.Equal(t, "p2", cloud.requests[1].Query.Get("marker"))
	assert.Equal(t, 1, cloud.released)
}

func TestListCommandMaxItems(t *testing.T) { //nolint:paralleltest // viper is global
	useOutput(t, "json")

	cloud := &fakeCloud{bodies: []string{
		`{"policies": [{"id": "p1"}, {"id": "p2"}]}`,
	}}

	cmd := NewResourceCommand(services.PolicySchema, cloud.sessions())
	out, err := execute(t, cmd, "list", "--page-size", "2", "--max-items", "1")
	require.NoError(t, err)

	var docs []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &docs))
	require.Len(t, docs, 1)
	assert.Len(t, cloud.requests, 1)
}

func TestListCommandRejectsUnknownFilter(t *testing.T) { //nolint:paralleltest // viper is global
	useOutput(t, "json")

	cloud := &fakeCloud{}

	cmd := NewResourceCommand(services.PolicySchema, cloud.sessions())
	_, err := execute(t, cmd, "list", "--filter", "colour=red")
	require.ErrorIs(t, err, resource.ErrInvalidQuery)
	assert.Empty(t, cloud.requests)
}

func TestGetCommand(t *testing.T) { //nolint:paralleltest // viper is global
	useOutput(t, "json")

	cloud := &fakeCloud{bodies: []string{`{"policy": {"id": "p1", "blob": "{}"}}`}}

	cmd := NewResourceCommand(services.PolicySchema, cloud.sessions())
	out, err := execute(t, cmd, "get", "p1")
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "p1", doc["id"])
	assert.Equal(t, "{}", doc["blob"])

	require.Len(t, cloud.requests, 1)
	assert.Equal(t, http.MethodGet, cloud.requests[0].Method)
	assert.Equal(t, testEndpoint+"/policies/p1", cloud.requests[0].Path)
}

func TestGetCommandNotFound(t *testing.T) { //nolint:paralleltest // viper is global
	useOutput(t, "json")

	cloud := &fakeCloud{}

	cmd := NewResourceCommand(services.PolicySchema, cloud.sessions())
	_, err := execute(t, cmd, "get", "missing")
	require.Error(t, err)
	assert.True(t, resource.IsNotFound(err))
}

func TestGetSingletonCommand(t *testing.T) { //nolint:paralleltest // viper is global
	useOutput(t, "json")

	cloud := &fakeCloud{bodies: []string{
		`{"limits": {"absolute": {"maxTotalInstances": 10, "totalInstancesUsed": 3}, "rate": []}}`,
	}}

	cmd := NewResourceCommand(services.LimitsSchema, cloud.sessions())
	out, err := execute(t, cmd, "get")
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))

	absolute, ok := doc["absolute"].(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 10, absolute["max_instances"], 0)
	assert.InDelta(t, 3, absolute["instances_used"], 0)

	require.Len(t, cloud.requests, 1)
	assert.Equal(t, testEndpoint+"/limits", cloud.requests[0].Path)
}

func TestGetWithPathParams(t *testing.T) { //nolint:paralleltest // viper is global
	useOutput(t, "json")

	cloud := &fakeCloud{bodies: []string{`{"export_location": {"id": "e1", "path": "10.0.0.1:/share"}}`}}

	cmd := NewResourceCommand(services.ShareExportLocationSchema, cloud.sessions())
	_, err := execute(t, cmd, "get", "e1", "--path", "share_id=s1")
	require.NoError(t, err)

	require.Len(t, cloud.requests, 1)
	assert.Equal(t, testEndpoint+"/shares/s1/export_locations/e1", cloud.requests[0].Path)
}

func TestCreateCommand(t *testing.T) { //nolint:paralleltest // viper is global
	useOutput(t, "json")

	cloud := &fakeCloud{
		statuses: []int{http.StatusCreated},
		bodies:   []string{`{"policy": {"id": "p9", "blob": "{}", "type": "application/json"}}`},
	}

	cmd := NewResourceCommand(services.PolicySchema, cloud.sessions())
	out, err := execute(t, cmd, "create", "--set", "blob={}", "--set", "type=application/json")
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "p9", doc["id"])

	require.Len(t, cloud.requests, 1)
	assert.Equal(t, http.MethodPost, cloud.requests[0].Method)
	assert.Equal(t, testEndpoint+"/policies", cloud.requests[0].Path)
}

func TestCreateCommandUnknownAttribute(t *testing.T) { //nolint:paralleltest // viper is global
	useOutput(t, "json")

	cloud := &fakeCloud{}

	cmd := NewResourceCommand(services.PolicySchema, cloud.sessions())
	_, err := execute(t, cmd, "create", "--set", "colour=red")
	require.Error(t, err)
	assert.Empty(t, cloud.requests)
}

func TestUpdateCommand(t *testing.T) { //nolint:paralleltest // viper is global
	useOutput(t, "json")

	cloud := &fakeCloud{bodies: []string{`{"policy": {"id": "p1", "type": "text/plain"}}`}}

	cmd := NewResourceCommand(services.PolicySchema, cloud.sessions())
	out, err := execute(t, cmd, "update", "p1", "--set", "type=text/plain")
	require.NoError(t, err)
	assert.Contains(t, out, "text/plain")

	require.Len(t, cloud.requests, 1)
	assert.Equal(t, http.MethodPatch, cloud.requests[0].Method)
	assert.Equal(t, testEndpoint+"/policies/p1", cloud.requests[0].Path)
}

func TestUpdateCommandWithoutChanges(t *testing.T) { //nolint:paralleltest // viper is global
	useOutput(t, "json")

	cloud := &fakeCloud{}

	cmd := NewResourceCommand(services.PolicySchema, cloud.sessions())
	_, err := execute(t, cmd, "update", "p1")
	require.ErrorIs(t, err, constants.ErrNothingToUpdate)
	assert.Empty(t, cloud.requests)
}

func TestDeleteCommand(t *testing.T) { //nolint:paralleltest // viper is global
	useOutput(t, "json")

	cloud := &fakeCloud{statuses: []int{http.StatusNoContent}, bodies: []string{""}}

	cmd := NewResourceCommand(services.PolicySchema, cloud.sessions())
	out, err := execute(t, cmd, "delete", "p1")
	require.NoError(t, err)
	assert.Equal(t, "Deleted policy p1\n", out)

	require.Len(t, cloud.requests, 1)
	assert.Equal(t, http.MethodDelete, cloud.requests[0].Method)
	assert.Equal(t, testEndpoint+"/policies/p1", cloud.requests[0].Path)
}

func TestResourcesCommand(t *testing.T) { //nolint:paralleltest // viper is global
	useOutput(t, "json")

	out, err := execute(t, NewResourcesCommand(services.DefaultRegistry()))
	require.NoError(t, err)

	var infos []struct {
		Name       string   `json:"name"`
		Service    string   `json:"service"`
		Path       string   `json:"path"`
		Operations []string `json:"operations"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 7)
	assert.Equal(t, "limits", infos[0].Name)
	assert.Equal(t, "compute", infos[0].Service)
	assert.Equal(t, []string{"fetch"}, infos[0].Operations)
}

func TestResourcesCommandTable(t *testing.T) { //nolint:paralleltest // viper is global
	useOutput(t, "table")

	out, err := execute(t, NewResourcesCommand(services.DefaultRegistry()))
	require.NoError(t, err)
	assert.Contains(t, out, "share-export-location")
	assert.Contains(t, out, "/v2/zones")
}

func TestVersionCommand(t *testing.T) { //nolint:paralleltest // viper is global
	useOutput(t, "yaml")

	out, err := execute(t, NewVersionCommand("1.2.3", "abc123", "2026-01-01"))
	require.NoError(t, err)
	assert.Contains(t, out, "version: 1.2.3")
	assert.Contains(t, out, "commit: abc123")
}

func TestSetConfigValue(t *testing.T) {
	t.Parallel()

	config := &Config{}

	require.NoError(t, setConfigValue(config, "endpoint", "https://cloud.example.com"))
	require.NoError(t, setConfigValue(config, "endpoints.dns", "https://dns.example.com"))
	assert.Equal(t, "https://cloud.example.com", config.Endpoint)
	assert.Equal(t, map[string]string{"dns": "https://dns.example.com"}, config.Endpoints)

	require.NoError(t, setConfigValue(config, "endpoints.dns", ""))
	assert.Empty(t, config.Endpoints)

	err := setConfigValue(config, "colour", "red")
	require.ErrorIs(t, err, constants.ErrUnknownConfigKey)
}

func TestBuildSDKConfig(t *testing.T) { //nolint:paralleltest // viper is global
	t.Cleanup(viper.Reset)

	_, err := buildSDKConfig(&bytes.Buffer{})
	require.ErrorIs(t, err, constants.ErrEndpointRequired)

	viper.Set("endpoint", testEndpoint)
	viper.Set("microversion", "2.65")
	viper.Set("cache", map[string]interface{}{"type": "memory", "max_size": 10})

	config, err := buildSDKConfig(&bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, testEndpoint, config.Endpoint)
	assert.Equal(t, "2.65", config.Microversion)
	require.NotNil(t, config.Cache)
	assert.Equal(t, 10, config.Cache.MaxSize)
}

func TestLogger(t *testing.T) {
	t.Parallel()

	var quiet bytes.Buffer

	logger := NewLogger(&quiet, false)
	logger.Debug("hidden", nil)
	logger.Warn("shown", map[string]interface{}{"b": 2, "a": 1})
	assert.NotContains(t, quiet.String(), "hidden")
	assert.Contains(t, quiet.String(), "msg=shown a=1 b=2")

	var verbose bytes.Buffer

	NewLogger(&verbose, true).Debug("request", map[string]interface{}{"method": "GET"})
	assert.Contains(t, verbose.String(), "level=DEBUG")
	assert.Contains(t, verbose.String(), "method=GET")
}
