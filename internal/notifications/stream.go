package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// Stream appends messages to a Redis stream so several consumers can follow
// execution status changes with their own consumer groups.
type Stream struct {
	client goredis.UniversalClient
	stream string
	maxLen int64
}

// NewStream publishes to stream through client. A positive maxLen trims the
// stream approximately to that many entries.
func NewStream(client goredis.UniversalClient, stream string, maxLen int64) *Stream {
	return &Stream{client: client, stream: stream, maxLen: maxLen}
}

// Publish adds msg as one stream entry.
func (s *Stream) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	args := &goredis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"WorkflowExecutionId": msg.WorkflowExecutionID,
			"Status":              msg.Status,
			"payload":             string(body),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}
