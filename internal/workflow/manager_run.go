package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mediaflow/internal/logging"
	"mediaflow/internal/queue"
	"mediaflow/internal/services"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.queue == nil || m.processor == nil {
		m.mu.Unlock()
		return errors.New("workflow queue and processor are required")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(m.workers)
	if m.tailer != nil {
		m.wg.Add(1)
	}
	m.mu.Unlock()

	for i := range m.workers {
		go m.runLane(runCtx, i)
	}
	if m.tailer != nil {
		go m.runTailer(runCtx)
	}
	m.logger.Info("workflow started",
		logging.String(logging.FieldEventType, "workflow_start"),
		logging.Int("workers", m.workers),
		logging.Int("receive_batch", m.batch),
		logging.Bool("cdc", m.tailer != nil),
	)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stop"))
}

func (m *Manager) runTailer(ctx context.Context) {
	defer m.wg.Done()
	if err := m.tailer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		m.setLastError(err)
		logging.ErrorWithContext(m.logger, "change feed tailer stopped", "cdc_stopped",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "restart the daemon"),
		)
	}
}

func (m *Manager) runLane(ctx context.Context, lane int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String("lane", fmt.Sprintf("worker-%d", lane)))

	for {
		if err := m.limiter.Wait(ctx); err != nil {
			return
		}
		deliveries, err := m.queue.Receive(ctx, m.batch)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.handleReceiveError(ctx, logger, err)
			continue
		}
		if len(deliveries) == 0 {
			if !m.wait(ctx, m.pollInterval) {
				return
			}
			continue
		}
		for _, d := range deliveries {
			if ctx.Err() != nil {
				return
			}
			m.processDelivery(ctx, logger, d)
		}
	}
}

func (m *Manager) processDelivery(ctx context.Context, laneLogger *slog.Logger, d queue.Delivery) {
	m.setLastItem(d.Item)
	ctx = services.WithExecutionID(ctx, d.ExecutionID)
	ctx = services.WithStage(ctx, d.StageName)
	ctx = services.WithRequestID(ctx, d.ID)
	logger := logging.WithContext(ctx, laneLogger)

	result, err := m.processor.Process(ctx, d.Item)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		m.recordFailure(err)
		logging.ErrorWithContext(logger, "stage item failed; leaving for redelivery", "item_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Int("attempts", d.Attempts),
			logging.String(logging.FieldErrorHint, "the item is retried after the queue visibility timeout"),
		)
		return
	}

	if err := m.queue.Ack(ctx, d); err != nil {
		if errors.Is(err, queue.ErrStaleReceipt) {
			logging.WarnWithContext(logger, "queue receipt expired before ack", "ack_stale",
				logging.Error(err),
				logging.String(logging.FieldImpact, "item will be redelivered and ignored as a duplicate"),
				logging.String(logging.FieldErrorHint, "raise queue.visibility_timeout if stages run long"),
			)
		} else {
			m.setLastError(err)
			logging.ErrorWithContext(logger, "failed to acknowledge queue item", "ack_failed", logging.Error(err))
		}
	}
	m.recordSuccess()
	logger.Debug("stage item processed", logging.String("result", string(result)))
}

func (m *Manager) handleReceiveError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logging.ErrorWithContext(logger, "failed to receive queue items", "queue_receive_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check queue backend access"),
	)
	m.wait(ctx, m.errorRetry)
}

// wait sleeps for d and reports false when ctx ended first.
func (m *Manager) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
