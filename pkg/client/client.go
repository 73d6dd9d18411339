// Package client is an HTTP client for the search service query API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/claimhub/search-service/pkg/build"
	"github.com/claimhub/search-service/pkg/search"
	"github.com/claimhub/search-service/pkg/telemetry"
)

const queryPath = "/query"

type ErrFailedResponse struct {
	StatusCode int
	Body       string
}

func errFromResponse(res *http.Response) ErrFailedResponse {
	err := ErrFailedResponse{StatusCode: res.StatusCode}

	message, merr := io.ReadAll(res.Body)
	if merr != nil {
		err.Body = merr.Error()
	} else {
		err.Body = string(message)
	}
	return err
}

func (e ErrFailedResponse) Error() string {
	return fmt.Sprintf("http request failed, status: %d %s, message: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

type queryRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type Client struct {
	serviceURL url.URL
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient configures the HTTP client to use for making query requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func New(serviceURL url.URL, options ...Option) *Client {
	httpClient := telemetry.GetInstrumentedHTTPClient()
	httpClient.Timeout = 30 * time.Second
	c := Client{
		serviceURL: serviceURL,
		httpClient: httpClient,
	}
	for _, opt := range options {
		opt(&c)
	}
	return &c
}

// Resolve resolves claim URLs on the server.
func (c *Client) Resolve(ctx context.Context, urls []string) (*search.Outputs, error) {
	return c.Query(ctx, "resolve", urls)
}

// Search runs a search with the given option map on the server.
func (c *Client) Search(ctx context.Context, params map[string]any) (*search.Outputs, error) {
	return c.Query(ctx, "search", params)
}

// Query dispatches a named query with its payload and decodes the output
// bundle.
func (c *Client) Query(ctx context.Context, name string, payload any) (*search.Outputs, error) {
	params, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding query payload: %w", err)
	}
	body, err := json.Marshal(queryRequest{Method: name, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encoding query request: %w", err)
	}

	endpoint := c.serviceURL.JoinPath(queryPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", build.UserAgent)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending query to server: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, errFromResponse(res)
	}

	var out search.Outputs
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding query response: %w", err)
	}
	return &out, nil
}
