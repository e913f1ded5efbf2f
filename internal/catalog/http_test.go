package catalog_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ProductStore/internal/catalog"
	"ProductStore/pkg/kit"
)

type testEnv struct {
	ts   *httptest.Server
	path string
}

func newTestEnv(t *testing.T, opts ...func(*catalog.Server, *catalog.HTTPDeps)) *testEnv {
	t.Helper()

	path := filepath.Join(t.TempDir(), "products.json")
	s := &catalog.Server{
		Store: catalog.NewFileStore(path),
		Log:   zap.NewNop(),
	}
	deps := catalog.HTTPDeps{
		Log:     zap.NewNop(),
		Service: "productstore",
	}
	for _, o := range opts {
		o(s, &deps)
	}

	ts := httptest.NewServer(catalog.NewHandler(s, deps))
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, path: path}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func (e *testEnv) writeFile(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(e.path, []byte(content), 0o644))
}

func decodeError(t *testing.T, raw []byte) kit.ErrorResponse {
	t.Helper()
	var er kit.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &er), "body=%s", raw)
	return er
}

func TestStoreThenFetch(t *testing.T) {
	env := newTestEnv(t)

	resp, raw := env.do(t, http.MethodPost, "/products/",
		`{"products":[{"id":"1","name":"Widget","data":{"color":"red"}}]}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body=%s", raw)
	assert.JSONEq(t, `{"message":"Products stored successfully."}`, string(raw))

	resp, raw = env.do(t, http.MethodGet, "/products/1", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body=%s", raw)
	assert.JSONEq(t, `{"id":"1","name":"Widget","data":{"color":"red"}}`, string(raw))
}

func TestListReturnsStoredOrder(t *testing.T) {
	env := newTestEnv(t)
	env.writeFile(t, `[
		{"id":"3","name":"Three","data":null},
		{"id":"1","name":"One","data":{"n":1}},
		{"id":"2","name":"Two"}
	]`)

	resp, raw := env.do(t, http.MethodGet, "/products/", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body=%s", raw)
	assert.JSONEq(t, `{"products":[
		{"id":"3","name":"Three","data":null},
		{"id":"1","name":"One","data":{"n":1}},
		{"id":"2","name":"Two","data":null}
	]}`, string(raw))
}

func TestListWithoutTrailingSlash(t *testing.T) {
	env := newTestEnv(t)
	env.writeFile(t, `[]`)

	resp, raw := env.do(t, http.MethodGet, "/products", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body=%s", raw)
	assert.JSONEq(t, `{"products":[]}`, string(raw))
}

func TestReplaceRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	body := `{"products":[
		{"id":"a","name":"Alpha","data":{"nested":{"k":[1,2.5,"x",null,true]}}},
		{"id":"b","name":"Beta","data":null},
		{"id":"c","name":"Gamma"}
	]}`

	resp, raw := env.do(t, http.MethodPost, "/products/", body, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body=%s", raw)

	resp, raw = env.do(t, http.MethodGet, "/products/", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body=%s", raw)
	assert.JSONEq(t, `{"products":[
		{"id":"a","name":"Alpha","data":{"nested":{"k":[1,2.5,"x",null,true]}}},
		{"id":"b","name":"Beta","data":null},
		{"id":"c","name":"Gamma","data":null}
	]}`, string(raw))
}

func TestReplaceWithEmptyList(t *testing.T) {
	env := newTestEnv(t)
	env.writeFile(t, `[{"id":"1","name":"One"}]`)

	resp, raw := env.do(t, http.MethodPost, "/products/", `{"products":[]}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body=%s", raw)

	resp, raw = env.do(t, http.MethodGet, "/products/", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body=%s", raw)
	assert.JSONEq(t, `{"products":[]}`, string(raw))
}

func TestListErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		env := newTestEnv(t)

		resp, raw := env.do(t, http.MethodGet, "/products/", nil, nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		er := decodeError(t, raw)
		assert.Equal(t, "Products file not found", er.Detail)
		assert.NotEmpty(t, er.RequestID)
	})

	t.Run("malformed file", func(t *testing.T) {
		env := newTestEnv(t)
		env.writeFile(t, "not json")

		resp, raw := env.do(t, http.MethodGet, "/products/", nil, nil)
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "Unable to decode JSON data", decodeError(t, raw).Detail)
	})
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t)
	env.writeFile(t, `[
		{"id":"1","name":"First"},
		{"id":"2","name":"Second"},
		{"id":"1","name":"Shadowed"}
	]`)

	t.Run("first match wins", func(t *testing.T) {
		resp, raw := env.do(t, http.MethodGet, "/products/1", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"id":"1","name":"First","data":null}`, string(raw))
	})

	t.Run("absent id", func(t *testing.T) {
		resp, raw := env.do(t, http.MethodGet, "/products/42", nil, nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "Product with id 42 not found", decodeError(t, raw).Detail)
	})

	t.Run("escaped id", func(t *testing.T) {
		resp, raw := env.do(t, http.MethodGet, "/products/a%2Fb", nil, nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "Product with id a/b not found", decodeError(t, raw).Detail)
	})
}

func TestGetProductErrors(t *testing.T) {
	env := newTestEnv(t)

	resp, raw := env.do(t, http.MethodGet, "/products/1", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Products file not found", decodeError(t, raw).Detail)

	env.writeFile(t, `{"products": []}`)
	resp, raw = env.do(t, http.MethodGet, "/products/1", nil, nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Unable to decode JSON data", decodeError(t, raw).Detail)
}

func TestProductDetails(t *testing.T) {
	env := newTestEnv(t)
	env.writeFile(t, `[
		{"id":"a","name":"A"},
		{"id":"b","name":"B"},
		{"id":"c","name":"C"}
	]`)

	t.Run("all found", func(t *testing.T) {
		resp, raw := env.do(t, http.MethodPost, "/products/details/", map[string]any{"ids": []string{"b", "a"}}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "body=%s", raw)
		assert.JSONEq(t, `{"products":[
			{"id":"a","name":"A","data":null},
			{"id":"b","name":"B","data":null}
		]}`, string(raw))
	})

	t.Run("duplicate request ids", func(t *testing.T) {
		resp, raw := env.do(t, http.MethodPost, "/products/details/", map[string]any{"ids": []string{"c", "c"}}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "body=%s", raw)
		assert.JSONEq(t, `{"products":[{"id":"c","name":"C","data":null}]}`, string(raw))
	})

	t.Run("empty request", func(t *testing.T) {
		resp, raw := env.do(t, http.MethodPost, "/products/details/", map[string]any{"ids": []string{}}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "body=%s", raw)
		assert.JSONEq(t, `{"products":[]}`, string(raw))
	})

	t.Run("missing id", func(t *testing.T) {
		resp, raw := env.do(t, http.MethodPost, "/products/details/", map[string]any{"ids": []string{"a", "z"}}, nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, `Products with ids {"z"} not found`, decodeError(t, raw).Detail)
	})

	t.Run("null id element", func(t *testing.T) {
		resp, raw := env.do(t, http.MethodPost, "/products/details/", `{"ids": ["a", null]}`, nil)
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "ids[1]: field required", decodeError(t, raw).Detail)
	})

	t.Run("null ids", func(t *testing.T) {
		resp, raw := env.do(t, http.MethodPost, "/products/details/", `{"ids": null}`, nil)
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "ids: field required", decodeError(t, raw).Detail)
	})
}

func TestProductDetailsMissingFile(t *testing.T) {
	env := newTestEnv(t)

	resp, raw := env.do(t, http.MethodPost, "/products/details/", map[string]any{"ids": []string{"a"}}, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Products file not found", decodeError(t, raw).Detail)
}

func TestReplaceValidation(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		detail string
	}{
		{
			name:   "missing name",
			body:   `{"products":[{"id":"1"}]}`,
			status: http.StatusUnprocessableEntity,
			detail: "products[0].name: field required",
		},
		{
			name:   "missing id and name",
			body:   `{"products":[{"id":"1","name":"ok"},{"data":{}}]}`,
			status: http.StatusUnprocessableEntity,
			detail: "products[1].id: field required; products[1].name: field required",
		},
		{
			name:   "missing products",
			body:   `{}`,
			status: http.StatusUnprocessableEntity,
			detail: "products: field required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.writeFile(t, `[{"id":"keep","name":"Keep"}]`)

			resp, raw := env.do(t, http.MethodPost, "/products/", tt.body, nil)
			require.Equal(t, tt.status, resp.StatusCode, "body=%s", raw)
			assert.Equal(t, tt.detail, decodeError(t, raw).Detail)

			stored, err := os.ReadFile(env.path)
			require.NoError(t, err)
			assert.JSONEq(t, `[{"id":"keep","name":"Keep"}]`, string(stored))
		})
	}
}

func TestReplaceRejectsMalformedBody(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{"", "not json", `{"products":[]} trailing`, `{"products":[{"id":1,"name":"x"}]}`} {
		resp, raw := env.do(t, http.MethodPost, "/products/", body, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, "body=%q resp=%s", body, raw)
	}
}

func TestReplaceBodyTooLarge(t *testing.T) {
	env := newTestEnv(t, func(_ *catalog.Server, deps *catalog.HTTPDeps) {
		deps.MaxBodyBytes = 32
	})

	resp, _ := env.do(t, http.MethodPost, "/products/",
		`{"products":[{"id":"1","name":"a name that is long enough"}]}`, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestReplaceWriteFailure(t *testing.T) {
	missingDir := filepath.Join(t.TempDir(), "missing", "products.json")
	env := newTestEnv(t, func(s *catalog.Server, _ *catalog.HTTPDeps) {
		s.Store = catalog.NewFileStore(missingDir)
	})

	resp, raw := env.do(t, http.MethodPost, "/products/", `{"products":[{"id":"1","name":"x"}]}`, nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotEmpty(t, decodeError(t, raw).Detail)

	resp, _ = env.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReplaceRateLimited(t *testing.T) {
	env := newTestEnv(t, func(_ *catalog.Server, deps *catalog.HTTPDeps) {
		deps.WriteRateLimit = 1
	})

	resp, _ := env.do(t, http.MethodPost, "/products/", `{"products":[]}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw := env.do(t, http.MethodPost, "/products/", `{"products":[]}`, nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "too many requests", decodeError(t, raw).Detail)

	resp, _ = env.do(t, http.MethodGet, "/products/", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWorksWithMemStore(t *testing.T) {
	env := newTestEnv(t, func(s *catalog.Server, _ *catalog.HTTPDeps) {
		s.Store = catalog.NewMemStore(catalog.Product{ID: "m", Name: "Mem"})
	})

	resp, raw := env.do(t, http.MethodGet, "/products/m", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"id":"m","name":"Mem","data":null}`, string(raw))
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	broken := newTestEnv(t, func(s *catalog.Server, _ *catalog.HTTPDeps) {
		s.Store = catalog.NewFileStore(filepath.Join(t.TempDir(), "gone", "products.json"))
	})
	resp, raw := broken.do(t, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "not ready", decodeError(t, raw).Detail)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, func(_ *catalog.Server, deps *catalog.HTTPDeps) {
		deps.Registry = prometheus.NewRegistry()
		deps.MetricsEnabled = true
		deps.MetricsToken = "secret"
	})

	resp, _ := env.do(t, http.MethodGet, "/products/", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, raw := env.do(t, http.MethodGet, "/metrics", nil, map[string]string{"Authorization": "Bearer secret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "http_requests_total")
	assert.Contains(t, string(raw), `status="404"`)
	assert.Contains(t, string(raw), `service="productstore"`)
	assert.Contains(t, string(raw), `product_store_operations_total{op="load",result="not_found"} 1`)
}

func TestNewHandlerLeavesServerUntouched(t *testing.T) {
	store := catalog.NewMemStore()
	s := &catalog.Server{Store: store}

	catalog.NewHandler(s, catalog.HTTPDeps{
		Registry:       prometheus.NewRegistry(),
		MaxBodyBytes:   64,
		WriteRateLimit: 5,
	})

	assert.Same(t, store, s.Store)
	assert.Zero(t, s.MaxBodyBytes)
	assert.Nil(t, s.WriteLimiter)
}

func TestReplaceUsesServerLimiter(t *testing.T) {
	env := newTestEnv(t, func(s *catalog.Server, deps *catalog.HTTPDeps) {
		s.WriteLimiter = kit.NewIPRateLimiter(1, time.Minute)
		deps.WriteRateLimit = 100
	})

	resp, _ := env.do(t, http.MethodPost, "/products/", `{"products":[]}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/products/", `{"products":[]}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestStoredElementsMustBeProducts(t *testing.T) {
	for _, doc := range []string{`[null]`, `[{}]`, `[{"name":"no id"}]`, `[{"id":"1"}]`} {
		t.Run(doc, func(t *testing.T) {
			env := newTestEnv(t)
			env.writeFile(t, doc)

			resp, raw := env.do(t, http.MethodGet, "/products/", nil, nil)
			require.Equal(t, http.StatusInternalServerError, resp.StatusCode, "body=%s", raw)
			assert.Equal(t, "Unable to decode JSON data", decodeError(t, raw).Detail)

			resp, raw = env.do(t, http.MethodGet, "/products/1", nil, nil)
			require.Equal(t, http.StatusInternalServerError, resp.StatusCode, "body=%s", raw)
			assert.Equal(t, "Unable to decode JSON data", decodeError(t, raw).Detail)

			resp, _ = env.do(t, http.MethodPost, "/products/details/", `{"ids":["1"]}`, nil)
			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		})
	}
}
