package cdc

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"mediaflow/internal/config"
	"mediaflow/internal/logging"
	"mediaflow/internal/store"
)

// CursorSetting is the system setting holding the last handled change sequence.
const CursorSetting = "cdc_cursor"

// Tailer follows the store change feed.
type Tailer struct {
	store    *store.Store
	pipeline *Pipeline
	logger   *slog.Logger
	interval time.Duration
	batch    int
	limiter  *rate.Limiter
}

// NewTailer constructs a tailer. Batches are rate limited so a large backlog
// drains without starving stage executors of store access.
func NewTailer(cfg *config.Config, st *store.Store, pipeline *Pipeline, logger *slog.Logger) *Tailer {
	t := &Tailer{
		store:    st,
		pipeline: pipeline,
		logger:   logging.NewComponentLogger(logger, "cdc"),
		interval: time.Second,
		batch:    100,
		limiter:  rate.NewLimiter(rate.Limit(20), 5),
	}
	if cfg != nil {
		if cfg.CDC.PollInterval > 0 {
			t.interval = time.Duration(cfg.CDC.PollInterval) * time.Second
		}
		if cfg.CDC.BatchSize > 0 {
			t.batch = cfg.CDC.BatchSize
		}
	}
	return t
}

// Cursor returns the last handled sequence number.
func (t *Tailer) Cursor(ctx context.Context) (int64, error) {
	raw, ok, err := t.store.GetSetting(ctx, CursorSetting)
	if err != nil || !ok {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

// Poll handles one batch after the cursor, advances the cursor and prunes the
// handled records. It returns the number of records read.
func (t *Tailer) Poll(ctx context.Context) (int, Stats, error) {
	cursor, err := t.Cursor(ctx)
	if err != nil {
		return 0, Stats{}, err
	}
	records, err := t.store.ChangesAfter(ctx, cursor, t.batch)
	if err != nil || len(records) == 0 {
		return 0, Stats{}, err
	}
	stats := t.pipeline.Handle(ctx, records)
	last := records[len(records)-1].Seq
	if err := t.store.PutSetting(ctx, CursorSetting, strconv.FormatInt(last, 10)); err != nil {
		return len(records), stats, err
	}
	if _, err := t.store.PruneChanges(ctx, last); err != nil {
		logging.WarnWithContext(t.logger, "failed to prune change feed", "change_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "change feed grows until the next successful prune"),
		)
	}
	return len(records), stats, nil
}

// Run polls until ctx is cancelled.
func (t *Tailer) Run(ctx context.Context) error {
	t.logger.Info("change feed tailer started",
		logging.String(logging.FieldEventType, "cdc_start"),
		logging.Duration("poll_interval", t.interval),
		logging.Int("batch_size", t.batch),
	)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		if err := t.drain(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			logging.ErrorWithContext(t.logger, "change feed poll failed", "cdc_poll_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check store health"),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (t *Tailer) drain(ctx context.Context) error {
	var total Stats
	for {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
		n, stats, err := t.Poll(ctx)
		total.Add(stats)
		if err != nil {
			return err
		}
		if n < t.batch {
			break
		}
	}
	if total.Records > 0 {
		t.logger.Debug("change feed drained",
			logging.Int("records", total.Records),
			logging.Int("published", total.Published),
			logging.Int("failed", total.Failed),
		)
	}
	return nil
}
