package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mediaflow/internal/config"
)

// ErrStaleReceipt reports an Ack whose receipt no longer owns the item,
// usually because the visibility timeout expired and it was redelivered.
var ErrStaleReceipt = errors.New("stale queue receipt")

// Item asks the stage executor to advance one stage of one execution.
type Item struct {
	ExecutionID string `json:"WorkflowExecutionId"`
	StageName   string `json:"StageName"`
}

func (i Item) String() string {
	return i.ExecutionID + "/" + i.StageName
}

// Delivery is a received item together with the receipt needed to Ack it.
type Delivery struct {
	Item
	ID       string
	Receipt  string
	Attempts int
}

// Queue is the execution queue boundary.
type Queue interface {
	Enqueue(ctx context.Context, item Item, delay time.Duration) error
	Receive(ctx context.Context, max int) ([]Delivery, error)
	Ack(ctx context.Context, d Delivery) error
	Close() error
}

// Open builds the queue backend named in the configuration.
func Open(cfg *config.Config) (Queue, error) {
	switch cfg.Queue.Backend {
	case config.QueueBackendRedis:
		return NewRedisFromConfig(cfg)
	case config.QueueBackendSQLite, "":
		return OpenSQLite(cfg.QueuePath(), cfg.VisibilityTimeout())
	default:
		return nil, fmt.Errorf("queue: unsupported backend %q", cfg.Queue.Backend)
	}
}

func validateItem(item Item) error {
	if item.ExecutionID == "" || item.StageName == "" {
		return fmt.Errorf("queue: item requires execution id and stage name, got %q", item.String())
	}
	return nil
}
