// Package jobclient talks to the external job service that runs analysis jobs
// for asynchronous operators and answers short calls for synchronous ones.
package jobclient

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

	"mediaflow/internal/config"
	"mediaflow/internal/operator"
)

const userAgent = "mediaflow/0.1.0"

// Client implements operator.JobClient and operator.Caller over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New builds a client from the operators configuration section.
func New(cfg config.Operators) *Client {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.JobServiceURL, "/"),
		apiKey:  cfg.JobServiceKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type startResponse struct {
	JobID string `json:"jobId"`
}

// StartJob submits a job of the given kind and returns its id.
func (c *Client) StartJob(ctx context.Context, kind string, input operator.JobInput) (string, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("encode job input: %w", err)
	}
	endpoint := c.baseURL + "/jobs/" + url.PathEscape(kind)
	var resp startResponse
	if err := c.do(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return "", err
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("job service returned no job id for %s", kind)
	}
	return resp.JobID, nil
}

// JobStatus fetches the current state of a job.
func (c *Client) JobStatus(ctx context.Context, kind, jobID string) (operator.JobStatus, error) {
	endpoint := c.baseURL + "/jobs/" + url.PathEscape(kind) + "/" + url.PathEscape(jobID)
	var status operator.JobStatus
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &status); err != nil {
		return operator.JobStatus{}, err
	}
	return status, nil
}

// Call runs a short action and returns its result in the same response.
func (c *Client) Call(ctx context.Context, action string, input operator.JobInput) (operator.CallResult, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return operator.CallResult{}, fmt.Errorf("encode call input: %w", err)
	}
	endpoint := c.baseURL + "/calls/" + url.PathEscape(action)
	var result operator.CallResult
	if err := c.do(ctx, http.MethodPost, endpoint, body, &result); err != nil {
		return operator.CallResult{}, err
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build job request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("job service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode job service response: %w", err)
	}
	return nil
}
