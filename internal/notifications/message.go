package notifications

import (
	"context"
	"time"
)

// Message is published once per execution status transition.
type Message struct {
	EventTimestamp      time.Time `json:"EventTimestamp"`
	WorkflowExecutionID string    `json:"WorkflowExecutionId"`
	AssetID             string    `json:"AssetId"`
	Status              string    `json:"Status"`
	Globals             any       `json:"Globals"`
	Configuration       any       `json:"Configuration"`
	Created             any       `json:"Created"`
}

// Publisher delivers messages to one transport.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Noop discards every message.
type Noop struct{}

func (Noop) Publish(context.Context, Message) error { return nil }
