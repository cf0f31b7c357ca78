// Package testutil provides an HTTP client, a GraphQL helper, an admin
// client, and assertion helpers for testing the srvgraph service.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// Client is an HTTP client for interacting with the service in tests.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	t          *testing.T
}

// NewClient creates a client pointed at a test server.
func NewClient(t *testing.T, server *httptest.Server) *Client {
	return &Client{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		t:          t,
	}
}

// NewClientURL creates a client pointed at a specific URL.
func NewClientURL(t *testing.T, baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{},
		t:          t,
	}
}

// Response wraps an HTTP response with helper methods.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	t          *testing.T
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) {
	r.t.Helper()
	if err := json.Unmarshal(r.Body, v); err != nil {
		r.t.Fatalf("failed to unmarshal response: %v\nbody: %s", err, string(r.Body))
	}
}

// JSONMap returns the response body as a map.
func (r *Response) JSONMap() map[string]any {
	r.t.Helper()
	var m map[string]any
	r.JSON(&m)
	return m
}

// AssertStatus asserts the response has the expected status code.
func (r *Response) AssertStatus(expected int) *Response {
	r.t.Helper()
	if r.StatusCode != expected {
		r.t.Errorf("expected status %d, got %d\nbody: %s", expected, r.StatusCode, string(r.Body))
	}
	return r
}

// AssertBodyContains asserts the response body contains the given substring.
func (r *Response) AssertBodyContains(substr string) *Response {
	r.t.Helper()
	if !strings.Contains(string(r.Body), substr) {
		r.t.Errorf("expected body to contain %q, got: %s", substr, string(r.Body))
	}
	return r
}

// AssertEmptyBody asserts the response carried no body.
func (r *Response) AssertEmptyBody() *Response {
	r.t.Helper()
	if len(r.Body) != 0 {
		r.t.Errorf("expected empty body, got: %s", string(r.Body))
	}
	return r
}

// GraphQLError is one entry of a GraphQL "errors" array.
type GraphQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// GraphQLResult is a decoded GraphQL response envelope.
type GraphQLResult struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []GraphQLError             `json:"errors"`
}

// GraphQL decodes the response body as a GraphQL result.
func (r *Response) GraphQL() *GraphQLResult {
	r.t.Helper()
	var res GraphQLResult
	r.JSON(&res)
	return &res
}

// Field unmarshals data.<name> into v.
func (g *GraphQLResult) Field(t *testing.T, name string, v any) {
	t.Helper()
	raw, ok := g.Data[name]
	if !ok {
		t.Fatalf("data has no field %q", name)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("failed to unmarshal data.%s: %v\nraw: %s", name, err, string(raw))
	}
}

// IsNull reports whether data.<name> is present and null.
func (g *GraphQLResult) IsNull(name string) bool {
	raw, ok := g.Data[name]
	return ok && string(raw) == "null"
}

// Get performs a GET request.
func (c *Client) Get(path string) *Response {
	c.t.Helper()
	return c.do("GET", path, nil, nil)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(path string, body any) *Response {
	c.t.Helper()
	return c.do("POST", path, body, nil)
}

// PostRaw performs a POST request with a raw body and content type.
func (c *Client) PostRaw(path, contentType, body string) *Response {
	c.t.Helper()
	req, err := http.NewRequest("POST", c.BaseURL+path, strings.NewReader(body))
	if err != nil {
		c.t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.doReq(req)
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(path string, body any) *Response {
	c.t.Helper()
	return c.do("PATCH", path, body, nil)
}

// Delete performs a DELETE request.
func (c *Client) Delete(path string) *Response {
	c.t.Helper()
	return c.do("DELETE", path, nil, nil)
}

// DoWithHeaders performs a request with custom headers.
func (c *Client) DoWithHeaders(method, path string, body any, headers map[string]string) *Response {
	c.t.Helper()
	return c.do(method, path, body, headers)
}

// Query POSTs a GraphQL document with optional variables to /graphql.
func (c *Client) Query(query string, variables map[string]any) *Response {
	c.t.Helper()
	body := map[string]any{"query": query}
	if variables != nil {
		body["variables"] = variables
	}
	return c.do("POST", "/graphql", body, nil)
}

// QueryGET sends a GraphQL document as a GET query string to /graphql.
func (c *Client) QueryGET(query string) *Response {
	c.t.Helper()
	return c.do("GET", "/graphql?"+url.Values{"query": {query}}.Encode(), nil, nil)
}

func (c *Client) do(method, path string, body any, headers map[string]string) *Response {
	c.t.Helper()

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		c.t.Fatalf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.doReq(req)
}

func (c *Client) doReq(req *http.Request) *Response {
	c.t.Helper()

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("failed to read response: %v", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Headers:    resp.Header,
		t:          c.t,
	}
}

// AdminClient provides convenience methods for the /admin/* control plane.
type AdminClient struct {
	*Client
}

// NewAdminClient creates an admin client from a client.
func NewAdminClient(c *Client) *AdminClient {
	return &AdminClient{c}
}

// Reset calls POST /admin/reset.
func (ac *AdminClient) Reset() *Response {
	ac.t.Helper()
	return ac.Post("/admin/reset", nil)
}

// GetState calls GET /admin/state.
func (ac *AdminClient) GetState() *Response {
	ac.t.Helper()
	return ac.Get("/admin/state")
}

// LoadState calls POST /admin/state with the given state data.
func (ac *AdminClient) LoadState(state any) *Response {
	ac.t.Helper()
	return ac.Post("/admin/state", state)
}

// InjectFault calls POST /admin/fault/{endpoint}.
func (ac *AdminClient) InjectFault(endpoint string, fault any) *Response {
	ac.t.Helper()
	return ac.Post("/admin/fault/"+strings.TrimPrefix(endpoint, "/"), fault)
}

// RemoveFault calls DELETE /admin/fault/{endpoint}.
func (ac *AdminClient) RemoveFault(endpoint string) *Response {
	ac.t.Helper()
	return ac.Delete("/admin/fault/" + strings.TrimPrefix(endpoint, "/"))
}

// GetRequests calls GET /admin/requests.
func (ac *AdminClient) GetRequests() *Response {
	ac.t.Helper()
	return ac.Get("/admin/requests")
}

// FlushWebhooks calls POST /admin/webhooks/flush.
func (ac *AdminClient) FlushWebhooks() *Response {
	ac.t.Helper()
	return ac.Post("/admin/webhooks/flush", nil)
}

// Webhooks calls GET /admin/webhooks.
func (ac *AdminClient) Webhooks() *Response {
	ac.t.Helper()
	return ac.Get("/admin/webhooks")
}

// UpdateConfig calls PATCH /admin/config.
func (ac *AdminClient) UpdateConfig(updates map[string]any) *Response {
	ac.t.Helper()
	return ac.Patch("/admin/config", updates)
}

// Health calls GET /admin/health.
func (ac *AdminClient) Health() *Response {
	ac.t.Helper()
	return ac.Get("/admin/health")
}
