package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeQueue()
	c.normalizeOperators()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Store.Path, err = expandPath(strings.TrimSpace(c.Store.Path)); err != nil {
		return fmt.Errorf("store.path: %w", err)
	}
	if c.Queue.Path, err = expandPath(strings.TrimSpace(c.Queue.Path)); err != nil {
		return fmt.Errorf("queue.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeQueue() {
	c.Queue.Backend = strings.ToLower(strings.TrimSpace(c.Queue.Backend))
	if c.Queue.Backend == "" {
		c.Queue.Backend = defaultQueueBackend
	}
	c.Queue.RedisAddr = strings.TrimSpace(c.Queue.RedisAddr)
	if value, ok := os.LookupEnv("MEDIAFLOW_REDIS_PASSWORD"); ok && c.Queue.RedisPassword == "" {
		c.Queue.RedisPassword = value
	}
	if strings.TrimSpace(c.Queue.RedisKeyPrefix) == "" {
		c.Queue.RedisKeyPrefix = defaultRedisKeyPrefix
	}
}

func (c *Config) normalizeOperators() {
	c.Operators.JobServiceURL = strings.TrimRight(strings.TrimSpace(c.Operators.JobServiceURL), "/")
	if c.Operators.JobServiceKey == "" {
		if value, ok := os.LookupEnv("MEDIAFLOW_JOB_SERVICE_KEY"); ok {
			c.Operators.JobServiceKey = strings.TrimSpace(value)
		}
	}
	for i := range c.Operators.Async {
		op := &c.Operators.Async[i]
		op.Name = strings.TrimSpace(op.Name)
		op.JobKind = strings.TrimSpace(op.JobKind)
		op.OutputMediaType = strings.TrimSpace(op.OutputMediaType)
	}
	for i := range c.Operators.Sync {
		op := &c.Operators.Sync[i]
		op.Name = strings.TrimSpace(op.Name)
		op.Action = strings.TrimSpace(op.Action)
		op.OutputMediaType = strings.TrimSpace(op.OutputMediaType)
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Notifications.RedisStream = strings.TrimSpace(c.Notifications.RedisStream)
	c.Notifications.RedisAddr = strings.TrimSpace(c.Notifications.RedisAddr)
	if c.Notifications.RedisStream != "" && c.Notifications.RedisAddr == "" {
		c.Notifications.RedisAddr = c.Queue.RedisAddr
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
