package resource_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/fivetwenty-io/resourcekit/pkg/resource"
	"github.com/stretchr/testify/require"
)

var errUnexpectedRequest = errors.New("unexpected request")

type fakeResponse struct {
	status  int
	body    string
	headers http.Header
	err     error
}

// fakeTransport records every request and replays queued responses in order.
type fakeTransport struct {
	mu        sync.Mutex
	requests  []*resource.Request
	responses []fakeResponse
}

func newFakeTransport(responses ...fakeResponse) *fakeTransport {
	return &fakeTransport{responses: responses}
}

func (f *fakeTransport) Request(_ context.Context, req *resource.Request) (*resource.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)

	if len(f.responses) == 0 {
		return nil, errUnexpectedRequest
	}

	next := f.responses[0]
	f.responses = f.responses[1:]

	if next.err != nil {
		return nil, next.err
	}

	return &resource.Response{
		StatusCode: next.status,
		Body:       []byte(next.body),
		Headers:    next.headers,
	}, nil
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.requests)
}

func (f *fakeTransport) request(t *testing.T, i int) *resource.Request {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	require.Greater(t, len(f.requests), i, "request %d was never issued", i)

	return f.requests[i]
}

func ok(body string) fakeResponse {
	return fakeResponse{status: http.StatusOK, body: body}
}

func status(code int, body string) fakeResponse {
	return fakeResponse{status: code, body: body}
}

func bodyJSON(t *testing.T, body any) string {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	return string(data)
}

func newSession(t *testing.T, transport resource.Transport, opts ...resource.SessionOption) *resource.Session {
	t.Helper()

	session, err := resource.NewSession(transport, opts...)
	require.NoError(t, err)

	return session
}

var policySchema = resource.MustSchema(resource.Definition{
	Name:         "policy",
	Service:      "identity",
	BasePath:     "/policies",
	ResourceKey:  "policy",
	ResourcesKey: "policies",
	Capabilities: resource.CRUD,
	Attributes: []resource.Attribute{
		resource.ID(),
		resource.Body("name"),
		resource.Body("value"),
		resource.Body("created_at", resource.Typed(resource.TypeTimestamp)),
		resource.Header("request_id", "X-Openstack-Request-Id"),
	},
	Query: []resource.QueryParam{
		resource.Param("name"),
		resource.Alias("kind", "type"),
	},
})

var readOnlySchema = resource.MustSchema(resource.Definition{
	Name:         "flavor",
	BasePath:     "/flavors",
	ResourceKey:  "flavor",
	ResourcesKey: "flavors",
	Capabilities: resource.Allow(resource.OpFetch, resource.OpList),
	Attributes: []resource.Attribute{
		resource.ID(),
		resource.Body("name"),
	},
})

var recordSchema = resource.MustSchema(resource.Definition{
	Name:         "recordset",
	Service:      "dns",
	BasePath:     "/v2/zones/%(zone_id)s/recordsets",
	ResourcesKey: "recordsets",
	Capabilities: resource.CRUD,
	Pagination:   resource.PaginateLink,
	NextLinkKey:  "links.next",
	Query:        []resource.QueryParam{resource.Param("name"), resource.Param("type")},
	Attributes: []resource.Attribute{
		resource.ID(),
		resource.URI("zone_id"),
		resource.Body("name"),
		resource.Body("ttl", resource.Typed(resource.TypeInt)),
		resource.Body("records", resource.Typed(resource.ListOf(resource.TypeString))),
	},
})

var volumeSchema = resource.MustSchema(resource.Definition{
	Name:               "share",
	Service:            "shared-file-system",
	BasePath:           "/shares",
	ResourceKey:        "share",
	ResourcesKey:       "shares",
	Capabilities:       resource.CRUD,
	CreateMethod:       http.MethodPut,
	CommitMethod:       http.MethodPut,
	MaxMicroversion:    "2.70",
	MicroversionHeader: "X-OpenStack-Manila-API-Version",
	Attributes: []resource.Attribute{
		resource.ID(),
		resource.Body("name"),
		resource.Body("size", resource.Typed(resource.TypeInt)),
		resource.Body("is_soft_deleted", resource.Typed(resource.TypeBool), resource.Since("2.69")),
	},
})
