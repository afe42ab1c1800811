package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/WarpBuilds/docker-configure/pkg/types"
)

// DefaultDomain is the production provisioning API.
const DefaultDomain = "https://api.warpbuild.com"

// Client is an HTTP client for the WarpBuild builder provisioning API.
//
// Transport failures are returned as errors; HTTP error statuses are not.
// Callers inspect the returned result's StatusCode so they can tell "the
// server said no" apart from "the server was unreachable".
type Client struct {
	baseURL    string
	credential string
	httpClient *http.Client
}

// New creates a provisioning API client. The credential is sent as a
// bearer token on every request.
func New(domain, credential string) *Client {
	if domain == "" {
		domain = DefaultDomain
	}
	return &Client{
		baseURL:    domain,
		credential: credential,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// AssignResult is the outcome of an assign call.
type AssignResult struct {
	StatusCode int
	Instances  []types.BuilderInstance
	RawBody    string
}

// DetailsResult is the outcome of a details call.
type DetailsResult struct {
	StatusCode int
	Status     string
	Metadata   types.BuilderMetadata
	Arch       string
	RawBody    string
}

// TeardownResult is the outcome of a teardown call.
type TeardownResult struct {
	StatusCode int
	RawBody    string
}

// Assign requests one or more builders for the given profile.
func (c *Client) Assign(ctx context.Context, profileName string) (*AssignResult, error) {
	body := map[string]string{"profile_name": profileName}
	status, raw, err := c.doRequest(ctx, http.MethodPost, "/api/v1/builders/assign", body)
	if err != nil {
		return nil, err
	}

	result := &AssignResult{StatusCode: status, RawBody: string(raw)}

	// Malformed bodies are kept as raw text rather than failing the call;
	// the caller classifies on status code either way.
	var parsed types.AssignResponse
	if json.Unmarshal(raw, &parsed) == nil {
		result.Instances = parsed.Instances
	}
	return result, nil
}

// GetDetails fetches the current status and connection material for a builder.
func (c *Client) GetDetails(ctx context.Context, builderID string) (*DetailsResult, error) {
	path := fmt.Sprintf("/api/v1/builders/%s/details", builderID)
	status, raw, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	result := &DetailsResult{StatusCode: status, RawBody: string(raw)}

	var parsed types.DetailsResponse
	if json.Unmarshal(raw, &parsed) == nil {
		result.Status = parsed.Status
		result.Metadata = parsed.Metadata
		result.Arch = parsed.Arch
	}
	return result, nil
}

// Teardown releases a builder.
func (c *Client) Teardown(ctx context.Context, builderID string) (*TeardownResult, error) {
	path := fmt.Sprintf("/api/v1/builders/%s/teardown", builderID)
	status, raw, err := c.doRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return nil, err
	}
	return &TeardownResult{StatusCode: status, RawBody: string(raw)}, nil
}

// doRequest performs an HTTP request with bearer authentication and returns
// the status code and the full response body.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (int, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, raw, nil
}

// Class is the retry classification of an API response.
type Class int

const (
	ClassSuccess Class = iota
	ClassRetryable
	ClassFatal
)

// Classify maps a status code to a retry class: 2xx is success, conflict,
// rate-limit and server errors are retryable, everything else is fatal.
func Classify(statusCode int) Class {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return ClassSuccess
	case statusCode == http.StatusConflict, statusCode == http.StatusTooManyRequests:
		return ClassRetryable
	case statusCode >= 500:
		return ClassRetryable
	default:
		return ClassFatal
	}
}

// ClassifyAssign classifies an assign result. A 2xx with zero instances is
// a contract violation, not something worth retrying.
func ClassifyAssign(res *AssignResult) Class {
	class := Classify(res.StatusCode)
	if class == ClassSuccess && len(res.Instances) == 0 {
		return ClassFatal
	}
	return class
}
