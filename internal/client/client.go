// Package client provides an HTTP client for a running srvgraph server,
// covering the admin endpoints and GraphQL queries.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Client talks to one srvgraph server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for baseURL with a 5-second timeout.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Health checks GET /admin/health. Returns (ok, response body or error message).
func (c *Client) Health() (bool, string) {
	resp, err := c.http.Get(c.baseURL + "/admin/health")
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusOK {
		return true, strings.TrimSpace(string(body))
	}
	return false, fmt.Sprintf("status %d: %s", resp.StatusCode, body)
}

// Reset calls POST /admin/reset.
func (c *Client) Reset() (string, error) {
	return c.post("/admin/reset", "reset", nil)
}

// State fetches GET /admin/state.
func (c *Client) State() (string, error) {
	resp, err := c.http.Get(c.baseURL + "/admin/state")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("state returned status %d: %s", resp.StatusCode, body)
	}
	return strings.TrimSpace(string(body)), nil
}

// Seed POSTs the contents of a JSON state file to POST /admin/state.
func (c *Client) Seed(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("reading seed file: %w", err)
	}
	return c.post("/admin/state", "seed", data)
}

// Query sends a GraphQL document with optional variables to POST /graphql
// and returns the raw response. GraphQL errors are part of the response,
// not of err.
func (c *Client) Query(document string, variables map[string]any) (string, error) {
	payload := map[string]any{"query": document}
	if variables != nil {
		payload["variables"] = variables
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding query: %w", err)
	}
	return c.post("/graphql", "query", data)
}

func (c *Client) post(path, op string, data []byte) (string, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}
	resp, err := c.http.Post(c.baseURL+path, "application/json", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s failed (status %d): %s", op, resp.StatusCode, respBody)
	}
	return strings.TrimSpace(string(respBody)), nil
}
