package cdc

import (
	"context"
	"fmt"
	"log/slog"

	"mediaflow/internal/attrvalue"
	"mediaflow/internal/logging"
	"mediaflow/internal/notifications"
	"mediaflow/internal/services"
	"mediaflow/internal/store"
)

// Stats counts what one Handle call did with its records.
type Stats struct {
	Records   int
	Published int
	Ignored   int
	Undecoded int
	Failed    int
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Records += other.Records
	s.Published += other.Published
	s.Ignored += other.Ignored
	s.Undecoded += other.Undecoded
	s.Failed += other.Failed
}

// Pipeline publishes status transitions found in change records.
type Pipeline struct {
	publisher notifications.Publisher
	logger    *slog.Logger
}

// NewPipeline constructs a pipeline publishing through publisher.
func NewPipeline(publisher notifications.Publisher, logger *slog.Logger) *Pipeline {
	if publisher == nil {
		publisher = notifications.Noop{}
	}
	return &Pipeline{publisher: publisher, logger: logging.NewComponentLogger(logger, "cdc")}
}

// Handle processes records in order. It never fails: undecodable records and
// publish errors are logged and counted.
func (p *Pipeline) Handle(ctx context.Context, records []store.ChangeRecord) Stats {
	stats := Stats{Records: len(records)}
	for _, rec := range records {
		logger := logging.WithContext(services.WithExecutionID(ctx, rec.ExecutionID), p.logger)
		if rec.EventName != store.EventModify {
			stats.Ignored++
			continue
		}
		msg, changed, err := transition(rec)
		if err != nil {
			stats.Undecoded++
			logging.WarnWithContext(logger, "skipping undecodable change record", "change_undecodable",
				logging.Int64("seq", rec.Seq),
				logging.Error(err),
				logging.String(logging.FieldImpact, "no notification for this change"),
				logging.String(logging.FieldErrorHint, "inspect execution_changes for unexpected attribute kinds"),
			)
			continue
		}
		if !changed {
			stats.Ignored++
			continue
		}
		if err := p.publisher.Publish(ctx, msg); err != nil {
			stats.Failed++
			logging.WarnWithContext(logger, "status notification failed", "notification_failed",
				logging.Int64("seq", rec.Seq),
				logging.Status(msg.Status),
				logging.Error(err),
				logging.String(logging.FieldImpact, "subscribers miss this transition"),
				logging.String(logging.FieldErrorHint, "check notification endpoints"),
			)
			continue
		}
		stats.Published++
		logger.Debug("status notification published",
			logging.String(logging.FieldEventType, "notification_published"),
			logging.Status(msg.Status),
		)
	}
	return stats
}

// transition decodes both images and reports whether Status changed.
func transition(rec store.ChangeRecord) (notifications.Message, bool, error) {
	oldImage, err := attrvalue.UnmarshalMap(rec.OldImage)
	if err != nil {
		return notifications.Message{}, false, fmt.Errorf("old image: %w", err)
	}
	newImage, err := attrvalue.UnmarshalMap(rec.NewImage)
	if err != nil {
		return notifications.Message{}, false, fmt.Errorf("new image: %w", err)
	}
	oldStatus, _ := oldImage["Status"].(string)
	newStatus, _ := newImage["Status"].(string)
	if oldStatus == newStatus {
		return notifications.Message{}, false, nil
	}

	id, _ := newImage["Id"].(string)
	if id == "" {
		id = rec.ExecutionID
	}
	asset, _ := newImage["AssetId"].(string)
	if asset == "" {
		asset, _ = oldImage["AssetId"].(string)
	}
	return notifications.Message{
		EventTimestamp:      rec.Created,
		WorkflowExecutionID: id,
		AssetID:             asset,
		Status:              newStatus,
		Globals:             newImage["Globals"],
		Configuration:       newImage["Configuration"],
		Created:             newImage["Created"],
	}, true, nil
}
