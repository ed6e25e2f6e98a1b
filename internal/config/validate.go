package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateOperators(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateCDC(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateQueue() error {
	switch c.Queue.Backend {
	case QueueBackendSQLite:
	case QueueBackendRedis:
		if c.Queue.RedisAddr == "" {
			return errors.New("queue.redis_addr must be set when queue.backend is redis")
		}
	default:
		return fmt.Errorf("queue.backend: unsupported value %q", c.Queue.Backend)
	}
	if c.Queue.VisibilityTimeout <= 0 {
		return errors.New("queue.visibility_timeout must be positive")
	}
	if c.Queue.RedisDB < 0 {
		return errors.New("queue.redis_db must not be negative")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.DefaultMaxConcurrentWorkflows < MinMaxConcurrentWorkflows {
		return fmt.Errorf("scheduler.default_max_concurrent_workflows must be at least %d", MinMaxConcurrentWorkflows)
	}
	if c.Scheduler.ConflictRetries <= 0 {
		return errors.New("scheduler.conflict_retries must be positive")
	}
	if c.Scheduler.ConflictBackoffMillis <= 0 {
		return errors.New("scheduler.conflict_backoff_ms must be positive")
	}
	return nil
}

func (c *Config) validateOperators() error {
	if c.Operators.PollInterval <= 0 {
		return errors.New("operators.poll_interval must be positive")
	}
	if c.Operators.RequestTimeout <= 0 {
		return errors.New("operators.request_timeout must be positive")
	}
	if len(c.Operators.Async) == 0 && len(c.Operators.Sync) == 0 {
		return nil
	}
	if c.Operators.JobServiceURL == "" {
		return errors.New("operators.job_service_url must be set when operators are configured")
	}
	if _, err := url.ParseRequestURI(c.Operators.JobServiceURL); err != nil {
		return fmt.Errorf("operators.job_service_url: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Operators.Async)+len(c.Operators.Sync))
	for i, op := range c.Operators.Async {
		if op.Name == "" {
			return fmt.Errorf("operators.async[%d].name must be set", i)
		}
		if op.JobKind == "" {
			return fmt.Errorf("operators.async[%d].job_kind must be set", i)
		}
		if _, dup := seen[op.Name]; dup {
			return fmt.Errorf("operators.async: duplicate operator name %q", op.Name)
		}
		seen[op.Name] = struct{}{}
	}
	for i, op := range c.Operators.Sync {
		if op.Name == "" {
			return fmt.Errorf("operators.sync[%d].name must be set", i)
		}
		if op.Action == "" {
			return fmt.Errorf("operators.sync[%d].action must be set", i)
		}
		if _, dup := seen[op.Name]; dup {
			return fmt.Errorf("operators.sync: duplicate operator name %q", op.Name)
		}
		seen[op.Name] = struct{}{}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if c.Notifications.RedisStream != "" && c.Notifications.RedisAddr == "" {
		return errors.New("notifications.redis_addr must be set when notifications.redis_stream is configured")
	}
	return nil
}

func (c *Config) validateCDC() error {
	if c.CDC.PollInterval <= 0 {
		return errors.New("cdc.poll_interval must be positive")
	}
	if c.CDC.BatchSize <= 0 {
		return errors.New("cdc.batch_size must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	if c.Workflow.ReceiveBatch <= 0 {
		return errors.New("workflow.receive_batch must be positive")
	}
	if c.Workflow.Workers <= 0 {
		return errors.New("workflow.workers must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
