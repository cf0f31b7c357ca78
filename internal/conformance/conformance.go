// Package conformance checks that a running srvgraph server honours the
// public API contract: the GraphQL operations, the explorer page, the 404
// fallback and the admin reset. The checks create records and reset state,
// so point it only at disposable servers.
package conformance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Result represents the outcome of a single conformance check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Report holds the results of a full conformance run.
type Report struct {
	BaseURL string   `json:"base_url"`
	Results []Result `json:"results"`
	Passed  int      `json:"passed"`
	Failed  int      `json:"failed"`
}

type checker struct {
	baseURL string
	http    *http.Client
}

// Run executes the conformance suite against the server at baseURL.
func Run(baseURL string) *Report {
	c := &checker{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
	report := &Report{BaseURL: c.baseURL}

	report.addResult(c.checkHealth())

	// Everything else needs a reachable server.
	if report.Results[0].Passed {
		report.addResult(c.checkReset())
		report.addResult(c.checkAPIVersion())
		report.addResult(c.checkSeedRecord())
		report.addResult(c.checkRecordNotFound())
		report.addResult(c.checkCreateRoundTrip())
		report.addResult(c.checkResetRestoresSeed())
		report.addResult(c.checkGraphiQL())
		report.addResult(c.checkNotFound())
	}

	for _, r := range report.Results {
		if r.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	return report
}

func (r *Report) addResult(res Result) {
	r.Results = append(r.Results, res)
}

func pass(name, detail string) Result { return Result{Name: name, Passed: true, Detail: detail} }

func fail(name, format string, args ...any) Result {
	return Result{Name: name, Passed: false, Detail: fmt.Sprintf(format, args...)}
}

type gqlResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type record struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Desc string `json:"desc"`
}

func (c *checker) query(document string, variables map[string]any) (*gqlResponse, error) {
	body, err := json.Marshal(map[string]any{"query": document, "variables": variables})
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Post(c.baseURL+"/graphql", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("POST /graphql returned %d", resp.StatusCode)
	}
	var out gqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &out, nil
}

func (c *checker) fetchRecord(id int) (*record, *gqlResponse, error) {
	res, err := c.query(`query($id: Int!) { record(id: $id) { id name desc } }`, map[string]any{"id": id})
	if err != nil {
		return nil, nil, err
	}
	raw, ok := res.Data["record"]
	if !ok || string(raw) == "null" {
		return nil, res, nil
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, res, err
	}
	return &rec, res, nil
}

func (c *checker) checkHealth() Result {
	name := "Server responds to health check within 5s"
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := c.http.Get(c.baseURL + "/admin/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return pass(name, "GET /admin/health returned 200")
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fail(name, "GET /admin/health did not return 200 within 5s")
}

func (c *checker) checkReset() Result {
	name := "POST /admin/reset returns 200"

	resp, err := c.http.Post(c.baseURL+"/admin/reset", "application/json", nil)
	if err != nil {
		return fail(name, "request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fail(name, "expected 200, got %d", resp.StatusCode)
	}
	return pass(name, "POST /admin/reset returned 200")
}

func (c *checker) checkAPIVersion() Result {
	name := "apiVersion returns 0.1.0"

	res, err := c.query("{ apiVersion }", nil)
	if err != nil {
		return fail(name, "%v", err)
	}
	var version string
	if err := json.Unmarshal(res.Data["apiVersion"], &version); err != nil || version != "0.1.0" {
		return fail(name, "unexpected apiVersion %s", res.Data["apiVersion"])
	}
	return pass(name, "apiVersion = 0.1.0")
}

func (c *checker) checkSeedRecord() Result {
	name := "record(id: 0) returns the first seed record"

	rec, _, err := c.fetchRecord(0)
	if err != nil {
		return fail(name, "%v", err)
	}
	if rec == nil {
		return fail(name, "record 0 is missing")
	}
	return pass(name, fmt.Sprintf("record 0 = %q", rec.Name))
}

func (c *checker) checkRecordNotFound() Result {
	name := "record of an unknown id is null with a not found error"

	rec, res, err := c.fetchRecord(-1)
	if err != nil {
		return fail(name, "%v", err)
	}
	if rec != nil {
		return fail(name, "expected null record, got %+v", *rec)
	}
	if len(res.Errors) == 0 || res.Errors[0].Message != "not found" {
		return fail(name, "expected a 'not found' error, got %+v", res.Errors)
	}
	return pass(name, "record(id: -1) is null with 'not found'")
}

func (c *checker) checkCreateRoundTrip() Result {
	name := "createRecord stores a record that record(id) returns"

	res, err := c.query(`mutation($d: NewRecordInput!) { createRecord(data: $d) { id name desc } }`,
		map[string]any{"d": map[string]any{"name": "conformance", "desc": "probe"}})
	if err != nil {
		return fail(name, "%v", err)
	}
	var created record
	if err := json.Unmarshal(res.Data["createRecord"], &created); err != nil {
		return fail(name, "unexpected createRecord payload %s", res.Data["createRecord"])
	}
	got, _, err := c.fetchRecord(created.ID)
	if err != nil {
		return fail(name, "%v", err)
	}
	if got == nil || *got != created {
		return fail(name, "record(id: %d) did not return the created record", created.ID)
	}
	return pass(name, fmt.Sprintf("created record at id %d", created.ID))
}

func (c *checker) checkResetRestoresSeed() Result {
	name := "POST /admin/reset removes created records"

	res, err := c.query(`mutation { createRecord(data: {name: "tmp", desc: ""}) { id } }`, nil)
	if err != nil {
		return fail(name, "%v", err)
	}
	var created record
	if err := json.Unmarshal(res.Data["createRecord"], &created); err != nil {
		return fail(name, "unexpected createRecord payload %s", res.Data["createRecord"])
	}
	if r := c.checkReset(); !r.Passed {
		return fail(name, "%s", r.Detail)
	}
	rec, _, err := c.fetchRecord(created.ID)
	if err != nil {
		return fail(name, "%v", err)
	}
	if rec != nil {
		return fail(name, "record %d survived reset", created.ID)
	}
	return pass(name, "reset dropped the created record")
}

func (c *checker) checkGraphiQL() Result {
	name := "GET / serves the GraphiQL page"

	resp, err := c.http.Get(c.baseURL + "/")
	if err != nil {
		return fail(name, "request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fail(name, "expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "/graphql") {
		return fail(name, "page does not reference /graphql")
	}
	return pass(name, "GET / returned the explorer page")
}

func (c *checker) checkNotFound() Result {
	name := "Unknown paths return 404 with an empty body"

	resp, err := c.http.Get(c.baseURL + "/conformance-missing")
	if err != nil {
		return fail(name, "request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusNotFound || len(body) != 0 {
		return fail(name, "expected empty 404, got %d with %d bytes", resp.StatusCode, len(body))
	}
	return pass(name, "GET /conformance-missing returned an empty 404")
}
