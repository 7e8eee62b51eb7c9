// internal/briefapi/client.go
package briefapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/simple-brief/internal/process"
	"github.com/tendant/simple-brief/pkg/schema"
)

const (
	briefPath       = "/ingredient-brief"
	statusPathFmt   = "/ingredient-brief/status/%s"
	maxErrorBodyLen = 512
)

// Client talks to the ingredient brief endpoints of the analysis service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for baseURL. A nil httpClient gets a client with
// a 10 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// InitiateBrief posts the entity and reports whether generation is deferred.
func (c *Client) InitiateBrief(ctx context.Context, key process.EntityKey) (process.Initiation, error) {
	body, err := json.Marshal(schema.InitiateBriefRequest{Entity: key.String()})
	if err != nil {
		return process.Initiation{}, fmt.Errorf("marshal initiate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+briefPath, bytes.NewReader(body))
	if err != nil {
		return process.Initiation{}, fmt.Errorf("build initiate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp schema.InitiateBriefResponse
	if err := c.do(req, &resp); err != nil {
		return process.Initiation{}, fmt.Errorf("initiate brief: %w", err)
	}
	return process.Initiation{InProgress: resp.InProgress, Brief: resp.Summary}, nil
}

// QueryStatus fetches the generation progress for key.
func (c *Client) QueryStatus(ctx context.Context, key process.EntityKey) (process.Status, error) {
	endpoint := c.baseURL + fmt.Sprintf(statusPathFmt, url.PathEscape(key.String()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return process.Status{}, fmt.Errorf("build status request: %w", err)
	}

	var resp schema.BriefStatusResponse
	if err := c.do(req, &resp); err != nil {
		return process.Status{}, fmt.Errorf("query brief status: %w", err)
	}
	return process.Status{State: resp.Status, Message: resp.Message, Brief: resp.Summary}, nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodyLen))
		return &StatusError{Code: res.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
