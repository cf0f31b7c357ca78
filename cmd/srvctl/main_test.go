package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/health", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("POST /admin/reset", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"reset"}`)
	})
	mux.HandleFunc("GET /admin/state", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"records":{"0":{"name":"Traffic Routing"}}}`)
	})
	mux.HandleFunc("POST /graphql", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		w.Write(b)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunCommands(t *testing.T) {
	srv := newServer(t)

	cases := []struct {
		args []string
		want string
	}{
		{[]string{"health"}, `"ok"`},
		{[]string{"reset"}, `"reset"`},
		{[]string{"state"}, "Traffic Routing"},
		{[]string{"query", "{ apiVersion }"}, `"query":"{ apiVersion }"`},
		{[]string{"query", "query($id: Int!) { record(id: $id) { name } }", `{"id": 1}`}, `"variables":{"id":1}`},
	}
	for _, tc := range cases {
		var out bytes.Buffer
		if err := run(append([]string{"-addr", srv.URL}, tc.args...), &out); err != nil {
			t.Errorf("%v: %v", tc.args, err)
			continue
		}
		if !strings.Contains(out.String(), tc.want) {
			t.Errorf("%v: expected output to contain %q, got %q", tc.args, tc.want, out.String())
		}
	}
}

func TestRunAddrFromEnv(t *testing.T) {
	srv := newServer(t)
	t.Setenv("SRVGRAPH_ADDR", srv.URL)

	var out bytes.Buffer
	if err := run([]string{"health"}, &out); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestRunErrors(t *testing.T) {
	srv := newServer(t)

	for _, args := range [][]string{
		{},
		{"bogus"},
		{"seed"},
		{"query"},
		{"query", "{ apiVersion }", "{not json"},
	} {
		var out bytes.Buffer
		if err := run(append([]string{"-addr", srv.URL}, args...), &out); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestRunCheckReportsFailures(t *testing.T) {
	srv := newServer(t)

	var out bytes.Buffer
	err := run([]string{"-addr", srv.URL, "check"}, &out)
	if err == nil {
		t.Fatal("expected failures against a stub server")
	}
	if !strings.Contains(out.String(), "PASS  Server responds to health check") {
		t.Errorf("expected health check to pass, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "FAIL") {
		t.Errorf("expected failed checks in output, got:\n%s", out.String())
	}
}

func TestRunHelpSucceeds(t *testing.T) {
	for _, arg := range []string{"-h", "-help"} {
		var out bytes.Buffer
		if err := run([]string{arg}, &out); err != nil {
			t.Errorf("%s: expected nil error, got %v", arg, err)
		}
		if !strings.Contains(out.String(), "srvctl") {
			t.Errorf("%s: expected usage text, got %q", arg, out.String())
		}
	}
}
