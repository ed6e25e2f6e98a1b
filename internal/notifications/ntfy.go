package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const userAgent = "MediaFlow-Go/0.1.0"

// Ntfy posts a short text notification to an ntfy topic URL.
type Ntfy struct {
	endpoint string
	client   *http.Client
}

// NewNtfy builds an ntfy publisher for the topic URL.
func NewNtfy(endpoint string, timeout time.Duration) *Ntfy {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Ntfy{endpoint: strings.TrimSpace(endpoint), client: &http.Client{Timeout: timeout}}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

func formatMessage(msg Message) payload {
	status := strings.TrimSpace(msg.Status)
	data := payload{
		title:   "MediaFlow - Execution " + status,
		message: fmt.Sprintf("Execution %s for asset %s is now %s", msg.WorkflowExecutionID, msg.AssetID, status),
		tags:    []string{"mediaflow", "execution", strings.ToLower(status)},
	}
	switch status {
	case "Error":
		data.priority = "high"
		data.tags = append(data.tags, "alert")
	case "Complete":
		data.priority = "default"
	default:
		data.priority = "low"
	}
	return data
}

// Publish sends msg to the topic.
func (n *Ntfy) Publish(ctx context.Context, msg Message) error {
	if n == nil || n.client == nil || n.endpoint == "" {
		return nil
	}
	return n.send(ctx, formatMessage(msg))
}

func (n *Ntfy) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
