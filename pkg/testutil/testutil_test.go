package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// ---------------------------------------------------------------------------
// Helper: create a test server with GraphQL-shaped and admin endpoints
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func newTestServer() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /graphql", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"data": map[string]any{"echo": r.URL.Query().Get("query")},
		})
	})

	mux.HandleFunc("POST /graphql", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Query == "" {
			writeJSON(w, http.StatusOK, map[string]any{
				"data":   nil,
				"errors": []map[string]any{{"message": "Must provide an operation."}},
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"data": map[string]any{
				"echo":    body.Query,
				"vars":    body.Variables,
				"missing": nil,
			},
		})
	})

	mux.HandleFunc("POST /raw", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		writeJSON(w, http.StatusOK, map[string]string{
			"content_type": r.Header.Get("Content-Type"),
			"body":         string(b),
		})
	})

	mux.HandleFunc("GET /empty", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	mux.HandleFunc("DELETE /items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /echo-headers", func(w http.ResponseWriter, r *http.Request) {
		headers := map[string]string{}
		for k := range r.Header {
			headers[k] = r.Header.Get(k)
		}
		writeJSON(w, http.StatusOK, headers)
	})

	mux.HandleFunc("GET /admin/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /admin/reset", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
	})
	mux.HandleFunc("GET /admin/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"records": map[string]any{}})
	})
	mux.HandleFunc("POST /admin/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "loaded"})
	})
	mux.HandleFunc("POST /admin/fault/{endpoint}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "injected", "endpoint": r.PathValue("endpoint")})
	})
	mux.HandleFunc("DELETE /admin/fault/{endpoint}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "removed", "endpoint": r.PathValue("endpoint")})
	})
	mux.HandleFunc("GET /admin/requests", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]string{{"method": "POST", "path": "/graphql"}})
	})
	mux.HandleFunc("POST /admin/webhooks/flush", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
	})
	mux.HandleFunc("GET /admin/webhooks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"queued": []any{}, "deliveries": []any{}})
	})
	mux.HandleFunc("PATCH /admin/config", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, body)
	})

	return httptest.NewServer(mux)
}

// ---------------------------------------------------------------------------
// Client tests
// ---------------------------------------------------------------------------

func TestNewClient(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	c := NewClient(t, srv)
	if c.BaseURL != srv.URL {
		t.Errorf("expected BaseURL=%s, got %s", srv.URL, c.BaseURL)
	}
}

func TestNewClientURL(t *testing.T) {
	c := NewClientURL(t, "http://localhost:3000/")
	if c.BaseURL != "http://localhost:3000" {
		t.Errorf("expected trailing slash trimmed, got %s", c.BaseURL)
	}
}

func TestClientDelete(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	NewClient(t, srv).Delete("/items/42").AssertStatus(http.StatusNoContent)
}

func TestClientPostRaw(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	m := NewClient(t, srv).PostRaw("/raw", "application/graphql", "{ apiVersion }").
		AssertStatus(http.StatusOK).
		JSONMap()
	if m["content_type"] != "application/graphql" || m["body"] != "{ apiVersion }" {
		t.Errorf("unexpected echo: %+v", m)
	}
}

func TestClientDoWithHeaders(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp := NewClient(t, srv).DoWithHeaders("GET", "/echo-headers", nil, map[string]string{
		"Idempotency-Key": "key-1",
	})

	resp.AssertStatus(http.StatusOK)
	m := resp.JSONMap()
	if m["Idempotency-Key"] != "key-1" {
		t.Errorf("expected Idempotency-Key=key-1, got %v", m["Idempotency-Key"])
	}
}

// ---------------------------------------------------------------------------
// GraphQL helpers
// ---------------------------------------------------------------------------

func TestClientQuery(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	res := NewClient(t, srv).Query("{ record(id: $id) { name } }", map[string]any{"id": 1}).
		AssertStatus(http.StatusOK).
		GraphQL()

	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", res.Errors)
	}
	var echo string
	res.Field(t, "echo", &echo)
	if echo != "{ record(id: $id) { name } }" {
		t.Errorf("unexpected echo: %s", echo)
	}
	var vars map[string]float64
	res.Field(t, "vars", &vars)
	if vars["id"] != 1 {
		t.Errorf("expected variables to be sent, got %+v", vars)
	}
	if !res.IsNull("missing") {
		t.Error("expected data.missing to be null")
	}
	if res.IsNull("echo") {
		t.Error("did not expect data.echo to be null")
	}
}

func TestClientQueryErrors(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	res := NewClient(t, srv).Query("", nil).GraphQL()
	if len(res.Errors) != 1 || res.Errors[0].Message != "Must provide an operation." {
		t.Errorf("unexpected errors: %+v", res.Errors)
	}
}

func TestClientQueryGET(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	res := NewClient(t, srv).QueryGET("{ apiVersion }").GraphQL()
	var echo string
	res.Field(t, "echo", &echo)
	if echo != "{ apiVersion }" {
		t.Errorf("expected query string round trip, got %q", echo)
	}
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func TestResponseAssertEmptyBody(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	NewClient(t, srv).Get("/empty").
		AssertStatus(http.StatusNotFound).
		AssertEmptyBody()
}

func TestResponseAssertStatusChaining(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp := NewClient(t, srv).Get("/admin/health")

	chained := resp.AssertStatus(http.StatusOK)
	if chained != resp {
		t.Error("expected AssertStatus to return the same Response for chaining")
	}
}

func TestResponseAssertBodyContainsChaining(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp := NewClient(t, srv).Get("/admin/health")

	chained := resp.AssertBodyContains(`"ok"`)
	if chained != resp {
		t.Error("expected AssertBodyContains to return the same Response for chaining")
	}
}

// ---------------------------------------------------------------------------
// AdminClient tests
// ---------------------------------------------------------------------------

func TestAdminClientHealth(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	ac := NewAdminClient(NewClient(t, srv))
	m := ac.Health().AssertStatus(http.StatusOK).JSONMap()
	if m["status"] != "ok" {
		t.Errorf("expected status=ok, got %v", m["status"])
	}
}

func TestAdminClientEndpoints(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	ac := NewAdminClient(NewClient(t, srv))

	ac.Reset().AssertStatus(http.StatusOK).AssertBodyContains("reset")
	ac.GetState().AssertStatus(http.StatusOK).AssertBodyContains("records")
	ac.LoadState(map[string]any{"records": map[string]any{}}).AssertStatus(http.StatusOK).AssertBodyContains("loaded")
	ac.GetRequests().AssertStatus(http.StatusOK).AssertBodyContains("/graphql")
	ac.FlushWebhooks().AssertStatus(http.StatusOK).AssertBodyContains("flushed")
	ac.Webhooks().AssertStatus(http.StatusOK).AssertBodyContains("deliveries")
	ac.UpdateConfig(map[string]any{"latency": "5ms"}).AssertStatus(http.StatusOK).AssertBodyContains("5ms")
}

func TestAdminClientFaultStripsLeadingSlash(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	ac := NewAdminClient(NewClient(t, srv))

	m := ac.InjectFault("/graphql", map[string]any{"status_code": 503}).
		AssertStatus(http.StatusOK).
		JSONMap()
	if m["endpoint"] != "graphql" {
		t.Errorf("expected endpoint=graphql, got %v", m["endpoint"])
	}

	m = ac.RemoveFault("/graphql").AssertStatus(http.StatusOK).JSONMap()
	if m["status"] != "removed" || m["endpoint"] != "graphql" {
		t.Errorf("unexpected remove response: %+v", m)
	}
}
