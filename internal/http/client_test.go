package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	rkhttp "github.com/fivetwenty-io/resourcekit/internal/http"
	"github.com/fivetwenty-io/resourcekit/pkg/resource"
	"github.com/fivetwenty-io/resourcekit/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockTokenManager for testing.
type MockTokenManager struct {
	token string
	err   error
}

func (m *MockTokenManager) GetToken(ctx context.Context) (string, error) {
	return m.token, m.err
}

// MockLogger for testing.
type MockLogger struct {
	mu   sync.Mutex
	logs []map[string]interface{}
}

func (l *MockLogger) record(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logs = append(l.logs, map[string]interface{}{"level": level, "msg": msg, "fields": fields})
}

func (l *MockLogger) Debug(msg string, fields map[string]interface{}) { l.record("debug", msg, fields) }
func (l *MockLogger) Info(msg string, fields map[string]interface{})  { l.record("info", msg, fields) }
func (l *MockLogger) Warn(msg string, fields map[string]interface{})  { l.record("warn", msg, fields) }
func (l *MockLogger) Error(msg string, fields map[string]interface{}) { l.record("error", msg, fields) }

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_Do(t *testing.T) {
	t.Parallel()
	t.Run("successful request", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/v1/policies", request.URL.Path)
			assert.Equal(t, "GET", request.Method)
			assert.Equal(t, "test-token", request.Header.Get("X-Auth-Token"))
			assert.Equal(t, "application/json", request.Header.Get("Accept"))
			assert.Equal(t, "resourcekit/1.0", request.Header.Get("User-Agent"))

			_ = json.NewEncoder(writer).Encode(map[string]any{"policies": []map[string]string{{"id": "p1"}}})
		}))
		defer server.Close()

		client := rkhttp.NewClient(server.URL+"/v1/", &MockTokenManager{token: "test-token"})

		resp, err := client.Do(context.Background(), &rkhttp.Request{Method: "GET", Path: "/policies"})
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.JSONEq(t, `{"policies": [{"id": "p1"}]}`, string(resp.Body))
	})

	t.Run("request with query parameters", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/policies", request.URL.Path)
			assert.Equal(t, "limit=2&marker=p2", request.URL.RawQuery)
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := rkhttp.NewClient(server.URL, nil)

		resp, err := client.Do(context.Background(), &rkhttp.Request{
			Method: "GET",
			Path:   "/policies?marker=p2",
			Query:  url.Values{"limit": []string{"2"}},
		})
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})

	t.Run("absolute path bypasses base URL", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/v2/zones", request.URL.Path)
			assert.Equal(t, "z2", request.URL.Query().Get("marker"))
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := rkhttp.NewClient("http://unused.invalid", nil)

		_, err := client.Get(context.Background(), server.URL+"/v2/zones?marker=z2", nil)
		require.NoError(t, err)
	})

	t.Run("request with body", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "POST", request.Method)
			assert.Equal(t, "application/json", request.Header.Get("Content-Type"))

			var body map[string]map[string]string

			_ = json.NewDecoder(request.Body).Decode(&body)
			assert.Equal(t, "allow-all", body["policy"]["name"])

			writer.WriteHeader(http.StatusCreated)
		}))
		defer server.Close()

		client := rkhttp.NewClient(server.URL, nil)

		resp, err := client.Do(context.Background(), &rkhttp.Request{
			Method: "POST",
			Path:   "/policies",
			Body:   map[string]any{"policy": map[string]string{"name": "allow-all"}},
		})
		require.NoError(t, err)
		assert.Equal(t, 201, resp.StatusCode)
	})

	t.Run("error response", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusNotFound)
			_, _ = writer.Write([]byte(`{"itemNotFound": {"code": 404, "message": "Policy p9 could not be found."}}`))
		}))
		defer server.Close()

		client := rkhttp.NewClient(server.URL, nil)

		resp, err := client.Do(context.Background(), &rkhttp.Request{Method: "GET", Path: "/policies/p9"})
		require.Error(t, err)
		assert.Equal(t, 404, resp.StatusCode)
		assert.True(t, resource.IsNotFound(err))

		transportErr := &resource.TransportError{}
		require.ErrorAs(t, err, &transportErr)
		assert.Contains(t, string(transportErr.Body), "could not be found")
	})

	t.Run("token failure", func(t *testing.T) {
		t.Parallel()

		errExpired := errors.New("token expired")
		client := rkhttp.NewClient("http://unused.invalid", &MockTokenManager{err: errExpired})

		_, err := client.Get(context.Background(), "/policies", nil)
		require.ErrorIs(t, err, errExpired)
	})

	t.Run("custom headers", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "custom-value", request.Header.Get("X-Custom-Header"))
			assert.Equal(t, "share 2.70", request.Header.Get("OpenStack-API-Version"))
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := rkhttp.NewClient(server.URL, nil)

		resp, err := client.Do(context.Background(), &rkhttp.Request{
			Method: "GET",
			Path:   "/shares",
			Headers: http.Header{
				"X-Custom-Header":       []string{"custom-value"},
				"Openstack-Api-Version": []string{"share 2.70"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})

	t.Run("with debug logging", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(writer).Encode(map[string]string{"result": "ok"})
		}))
		defer server.Close()

		logger := &MockLogger{}
		client := rkhttp.NewClient(server.URL, nil, rkhttp.WithLogger(logger), rkhttp.WithDebug(true))

		_, err := client.Do(context.Background(), &rkhttp.Request{Method: "GET", Path: "/policies"})
		require.NoError(t, err)

		require.Len(t, logger.logs, 2)
		assert.Equal(t, "HTTP Request", logger.logs[0]["msg"])
		assert.Equal(t, "HTTP Response", logger.logs[1]["msg"])
	})

	t.Run("transport failure", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		serverURL := server.URL
		server.Close()

		client := rkhttp.NewClient(serverURL, nil, rkhttp.WithRetryConfig(0, time.Millisecond, time.Millisecond))

		resp, err := client.Get(context.Background(), "/policies", nil)
		require.ErrorIs(t, err, rkhttp.ErrRequestFailed)
		assert.Nil(t, resp)
	})
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_Methods(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		fn     func(*rkhttp.Client, context.Context) (*rkhttp.Response, error)
	}{
		{
			name:   "GET",
			method: "GET",
			fn: func(c *rkhttp.Client, ctx context.Context) (*rkhttp.Response, error) {
				return c.Get(ctx, "/test", nil)
			},
		},
		{
			name:   "HEAD",
			method: "HEAD",
			fn: func(c *rkhttp.Client, ctx context.Context) (*rkhttp.Response, error) {
				return c.Head(ctx, "/test")
			},
		},
		{
			name:   "POST",
			method: "POST",
			fn: func(c *rkhttp.Client, ctx context.Context) (*rkhttp.Response, error) {
				return c.Post(ctx, "/test", map[string]string{"key": "value"})
			},
		},
		{
			name:   "PUT",
			method: "PUT",
			fn: func(c *rkhttp.Client, ctx context.Context) (*rkhttp.Response, error) {
				return c.Put(ctx, "/test", map[string]string{"key": "value"})
			},
		},
		{
			name:   "PATCH",
			method: "PATCH",
			fn: func(c *rkhttp.Client, ctx context.Context) (*rkhttp.Response, error) {
				return c.Patch(ctx, "/test", map[string]string{"key": "value"})
			},
		},
		{
			name:   "DELETE",
			method: "DELETE",
			fn: func(c *rkhttp.Client, ctx context.Context) (*rkhttp.Response, error) {
				return c.Delete(ctx, "/test")
			},
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				assert.Equal(t, testCase.method, request.Method)
				assert.Equal(t, "/test", request.URL.Path)
				writer.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			client := rkhttp.NewClient(server.URL, nil)
			resp, err := testCase.fn(client, context.Background())
			require.NoError(t, err)
			assert.Equal(t, 200, resp.StatusCode)
		})
	}
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_RetryLogic(t *testing.T) {
	t.Parallel()
	t.Run("retries on 5xx errors", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if attempts.Add(1) < 3 {
				writer.WriteHeader(http.StatusInternalServerError)
			} else {
				writer.WriteHeader(http.StatusOK)
			}
		}))
		defer server.Close()

		client := rkhttp.NewClient(server.URL, nil, rkhttp.WithRetryConfig(3, 10*time.Millisecond, 100*time.Millisecond))

		resp, err := client.Get(context.Background(), "/test", nil)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, int32(3), attempts.Load())
	})

	t.Run("retries on rate limiting", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if attempts.Add(1) < 2 {
				writer.WriteHeader(http.StatusTooManyRequests)
			} else {
				writer.WriteHeader(http.StatusOK)
			}
		}))
		defer server.Close()

		client := rkhttp.NewClient(server.URL, nil, rkhttp.WithRetryConfig(3, 10*time.Millisecond, 100*time.Millisecond))

		resp, err := client.Get(context.Background(), "/test", nil)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, int32(2), attempts.Load())
	})

	t.Run("does not retry on client errors", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			attempts.Add(1)
			writer.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		client := rkhttp.NewClient(server.URL, nil, rkhttp.WithRetryConfig(3, 10*time.Millisecond, 100*time.Millisecond))

		resp, err := client.Get(context.Background(), "/test", nil)
		require.Error(t, err)
		assert.Equal(t, 400, resp.StatusCode)
		assert.Equal(t, int32(1), attempts.Load())
	})

	t.Run("exhausted retries return the last response", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := rkhttp.NewClient(server.URL, nil, rkhttp.WithRetryConfig(1, time.Millisecond, time.Millisecond))

		resp, err := client.Get(context.Background(), "/test", nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusServiceUnavailable, resource.StatusCode(err))
	})
}

func TestClient_Interceptors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		hits.Add(1)
		assert.Equal(t, "rkit", request.Header.Get("X-Client"))
		writer.Header().Set("ETag", `"v1"`)
		_, _ = writer.Write([]byte(`{"policy": {"id": "p1"}}`))
	}))
	defer server.Close()

	chain := transport.NewInterceptorChain()
	chain.AddRequestInterceptor(transport.HeaderInterceptor(map[string]string{"X-Client": "rkit"}))
	transport.ConfigureSmartCache(chain, transport.NewCacheManager(nil, nil), nil)

	client := rkhttp.NewClient(server.URL, nil, rkhttp.WithInterceptors(chain))
	ctx := context.Background()

	for range 2 {
		resp, err := client.Get(ctx, "/policies/p1", nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"policy": {"id": "p1"}}`, string(resp.Body))
	}

	assert.Equal(t, int32(1), hits.Load())

	_, err := client.Patch(ctx, "/policies/p1", map[string]any{"policy": map[string]string{"name": "x"}})
	require.NoError(t, err)

	_, err = client.Get(ctx, "/policies/p1", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestClient_InterceptorRejects(t *testing.T) {
	t.Parallel()

	chain := transport.NewInterceptorChain()
	breaker := transport.NewCircuitBreaker(&transport.CircuitBreakerConfig{Threshold: 1, Timeout: time.Hour, SuccessThreshold: 1})
	chain.AddRequestInterceptor(transport.CircuitBreakerRequestInterceptor(breaker))
	chain.AddResponseInterceptor(transport.CircuitBreakerResponseInterceptor(breaker))

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := rkhttp.NewClient(server.URL, nil, rkhttp.WithInterceptors(chain), rkhttp.WithRetryConfig(0, 0, 0))

	_, err := client.Get(context.Background(), "/policies", nil)
	require.Error(t, err)

	_, err = client.Get(context.Background(), "/policies", nil)
	require.ErrorIs(t, err, transport.ErrCircuitBreakerOpen)
}

func TestClient_Transport(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch request.URL.Path {
		case "/policies":
			assert.Equal(t, "2", request.URL.Query().Get("limit"))
			_, _ = writer.Write([]byte(`{"policies": [{"id": "p1"}]}`))
		default:
			writer.WriteHeader(http.StatusConflict)
		}
	}))
	defer server.Close()

	tr := rkhttp.NewClient(server.URL, rkhttp.StaticToken("tok")).Transport()

	resp, err := tr.Request(context.Background(), &resource.Request{
		Method: http.MethodGet,
		Path:   "/policies",
		Query:  url.Values{"limit": []string{"2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = tr.Request(context.Background(), &resource.Request{Method: http.MethodDelete, Path: "/policies/p1"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
